package httpserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	holderlottery "holderdrop/contexts/treasury-rewards/holder-lottery"
	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
)

func newTestModule() holderlottery.Module {
	module := holderlottery.NewInMemoryModule(
		"TreasuryWa11et",
		[]entities.HolderRecord{
			{Address: "PoolAccount", Balance: 1_000_000},
			{Address: "HolderB", Balance: 500},
			{Address: "HolderC", Balance: 300},
		},
		holderlottery.Settings{},
		nil,
		slog.Default(),
	)
	module.Store.SetNow(time.Date(2026, 3, 1, 12, 1, 30, 0, time.UTC))
	module.Ledger.Accrue(10_000_000)
	return module
}

func newTestServer(module holderlottery.Module, opts Options) *Server {
	return New(module, slog.Default(), ":0", opts)
}

func serve(t *testing.T, server *Server, method string, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	server.mux.ServeHTTP(rr, req)

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v body=%s", err, rr.Body.String())
	}
	return rr, body
}

func TestTriggerPaysOnceThenReportsAlreadyProcessed(t *testing.T) {
	module := newTestModule()
	server := newTestServer(module, Options{TriggerMinInterval: -1})

	rr, body := serve(t, server, http.MethodPost, "/v1/distributions/trigger")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
	recipient := body["recipient"]
	if recipient != "HolderB" && recipient != "HolderC" {
		t.Fatalf("expected a non-top holder to win, got %v", recipient)
	}
	if body["amount_lamports"] != float64(5_000_000) {
		t.Fatalf("expected payout of 5000000 lamports, got %v", body["amount_lamports"])
	}
	if _, ok := body["window_timing"].(map[string]any); !ok {
		t.Fatalf("expected window_timing, got %v", body)
	}

	rr, body = serve(t, server, http.MethodPost, "/v1/distributions/trigger")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if body["success"] != false || body["reason"] != "already-processed" {
		t.Fatalf("expected already-processed, got %v", body)
	}
	if len(module.Ledger.Transfers()) != 1 {
		t.Fatalf("expected exactly one transfer, got %d", len(module.Ledger.Transfers()))
	}
	if module.Ledger.ClaimCalls() != 1 {
		t.Fatalf("expected one claim, got %d", module.Ledger.ClaimCalls())
	}
}

func TestLegacyClaimRoutes(t *testing.T) {
	module := newTestModule()
	server := newTestServer(module, Options{TriggerMinInterval: -1})

	rr, body := serve(t, server, http.MethodPost, "/api/claim")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if body["current_window_recorded"] != false {
		t.Fatalf("expected no record yet, got %v", body)
	}
	if module.Ledger.ClaimCalls() != 0 {
		t.Fatalf("status must not trigger a claim")
	}

	rr, body = serve(t, server, http.MethodGet, "/api/claim")
	if rr.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("expected legacy GET to trigger, got %d body=%s", rr.Code, rr.Body.String())
	}

	rr, body = serve(t, server, http.MethodGet, "/v1/distributions/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	if body["current_window_recorded"] != true {
		t.Fatalf("expected current window recorded, got %v", body)
	}
	history, ok := body["history"].([]any)
	if !ok || len(history) != 1 {
		t.Fatalf("expected one history entry, got %v", body["history"])
	}
}

func TestTriggerIsRateLimited(t *testing.T) {
	server := newTestServer(newTestModule(), Options{})

	rr, _ := serve(t, server, http.MethodPost, "/v1/distributions/trigger")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	rr, body := serve(t, server, http.MethodPost, "/v1/distributions/trigger")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d body=%s", rr.Code, rr.Body.String())
	}
	if body["code"] != "rate_limited" {
		t.Fatalf("expected rate_limited code, got %v", body["code"])
	}
	if _, ok := body["window_timing"].(map[string]any); !ok {
		t.Fatalf("expected window_timing on error, got %v", body)
	}
}

func TestTriggerMapsUpstreamFailure(t *testing.T) {
	module := newTestModule()
	module.Ledger.FailClaims(fmt.Errorf("portal down: %w", domainerrors.ErrUpstreamUnavailable))
	server := newTestServer(module, Options{TriggerMinInterval: -1})

	rr, body := serve(t, server, http.MethodPost, "/v1/distributions/trigger")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d body=%s", rr.Code, rr.Body.String())
	}
	if body["success"] != false || body["code"] != "upstream_unavailable" {
		t.Fatalf("unexpected error body %v", body)
	}
	if len(module.Ledger.Transfers()) != 0 {
		t.Fatalf("expected no transfer after failed claim")
	}

	rr, body = serve(t, server, http.MethodGet, "/v1/distributions/status")
	if rr.Code != http.StatusOK || body["current_window_recorded"] != false {
		t.Fatalf("failed window must stay unrecorded, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestHealth(t *testing.T) {
	server := newTestServer(newTestModule(), Options{})
	rr, body := serve(t, server, http.MethodGet, "/healthz")
	if rr.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response %d body=%s", rr.Code, rr.Body.String())
	}
}
