package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const lotteryPrefix = "holderdrop/contexts/treasury-rewards/holder-lottery"

func TestDomainMayImportDecimalOnly(t *testing.T) {
	source := []byte(`package entities

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)
`)
	violations := validateSource("entities.go", source, "domain", lotteryPrefix)
	require.Len(t, violations, 1)
	require.Equal(t, "gorm.io/gorm", violations[0].Import)
	require.Equal(t, "domain import is outside explicit allowlist", violations[0].Rule)
}

func TestApplicationMustNotImportAdapters(t *testing.T) {
	source := []byte(`package commands

import (
	"go.opentelemetry.io/otel"
	"holderdrop/contexts/treasury-rewards/holder-lottery/adapters/memory"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"
)
`)
	violations := validateSource("distribute.go", source, "application", lotteryPrefix)
	require.Len(t, violations, 2)
	for _, v := range violations {
		require.Contains(t, v.Import, "/adapters/memory")
	}
}

func TestCrossContextImportIsReported(t *testing.T) {
	source := []byte(`package memory

import "holderdrop/contexts/other-area/other-service/ports"
`)
	violations := validateSource("store.go", source, "adapters", lotteryPrefix)
	require.Len(t, violations, 1)
	require.Equal(t, "cross-module imports are forbidden", violations[0].Rule)
}

func TestIsStdlib(t *testing.T) {
	require.True(t, isStdlib("log/slog"))
	require.False(t, isStdlib("holderdrop/contracts/gen/events/v1"))
	require.False(t, isStdlib("github.com/google/uuid"))
}
