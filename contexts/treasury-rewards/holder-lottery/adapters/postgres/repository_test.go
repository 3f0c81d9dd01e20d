package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var recordColumns = []string{
	"id", "window_id", "recipient", "amount", "amount_lamports",
	"signature", "status", "outcome", "claimed_lamports", "recorded_at",
}

func newMockRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return NewRepository(gormDB, nil), mock
}

func paidRecord() entities.DistributionRecord {
	recipient := "HolderB"
	signature := "5igSig"
	return entities.DistributionRecord{
		ID:              "rec-1",
		WindowID:        7_400_000,
		Recipient:       &recipient,
		AmountLamports:  5_000_000,
		Amount:          entities.LamportsToSOL(5_000_000),
		Signature:       &signature,
		Status:          entities.RecordStatusConfirmed,
		Outcome:         entities.OutcomePaid,
		ClaimedLamports: 10_000_000,
		RecordedAt:      time.Date(2026, 3, 1, 12, 1, 30, 0, time.UTC),
	}
}

func TestGetRecordByWindow(t *testing.T) {
	repo, mock := newMockRepository(t)
	recordedAt := time.Date(2026, 3, 1, 12, 1, 30, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "distribution_records" WHERE window_id = $1`)).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("rec-1", int64(7_400_000), "HolderB", "0.005", int64(5_000_000), "5igSig", "confirmed", "paid", int64(10_000_000), recordedAt))

	record, err := repo.GetRecordByWindow(context.Background(), 7_400_000)
	require.NoError(t, err)
	require.Equal(t, "rec-1", record.ID)
	require.Equal(t, "HolderB", record.RecipientOrEmpty())
	require.Equal(t, uint64(5_000_000), record.AmountLamports)
	require.True(t, record.Amount.Equal(decimal.RequireFromString("0.005")))
	require.Equal(t, entities.RecordStatusConfirmed, record.Status)
	require.Equal(t, recordedAt, record.RecordedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRecordByWindowNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "distribution_records"`)).
		WillReturnRows(sqlmock.NewRows(recordColumns))

	_, err := repo.GetRecordByWindow(context.Background(), 1)
	require.ErrorIs(t, err, domainerrors.ErrRecordNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRecord(t *testing.T) {
	repo, mock := newMockRepository(t)
	record := paidRecord()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "distribution_records"`)).
		WithArgs(
			"rec-1", int64(7_400_000), "HolderB", sqlmock.AnyArg(), int64(5_000_000),
			"5igSig", "confirmed", "paid", int64(10_000_000), record.RecordedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.InsertRecord(context.Background(), record))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRecordMapsUniqueViolation(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "distribution_records"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "distribution_records_window_id_key"})
	mock.ExpectRollback()

	err := repo.InsertRecord(context.Background(), paidRecord())
	require.ErrorIs(t, err, domainerrors.ErrDuplicateWindowRecord)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRecordRejectsInvalidInput(t *testing.T) {
	repo, mock := newMockRepository(t)

	record := paidRecord()
	record.ID = "  "
	require.ErrorIs(t, repo.InsertRecord(context.Background(), record), domainerrors.ErrInvalidConfiguration)

	record = paidRecord()
	record.AmountLamports = 1 << 63
	require.ErrorIs(t, repo.InsertRecord(context.Background(), record), domainerrors.ErrInvalidConfiguration)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertRecordPassesThroughOtherErrors(t *testing.T) {
	repo, mock := newMockRepository(t)
	boom := errors.New("connection refused")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "distribution_records"`)).WillReturnError(boom)
	mock.ExpectRollback()

	err := repo.InsertRecord(context.Background(), paidRecord())
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, domainerrors.ErrDuplicateWindowRecord)
}

func TestListRecentRecordsOrdersNewestFirst(t *testing.T) {
	repo, mock := newMockRepository(t)
	later := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	earlier := later.Add(-4 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY recorded_at DESC,window_id DESC`)).
		WillReturnRows(sqlmock.NewRows(recordColumns).
			AddRow("rec-2", int64(2), nil, "0", int64(0), nil, "no_payout", "below_threshold", int64(100), later).
			AddRow("rec-1", int64(1), "HolderB", "0.005", int64(5_000_000), "sig", "confirmed", "paid", int64(10_000_000), earlier))

	items, err := repo.ListRecentRecords(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "rec-2", items[0].ID)
	require.Nil(t, items[0].Recipient)
	require.Nil(t, items[0].Signature)
	require.True(t, items[0].Amount.IsZero())
	require.Equal(t, "HolderB", items[1].RecipientOrEmpty())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendOutboxIsIdempotent(t *testing.T) {
	repo, mock := newMockRepository(t)
	envelope := ports.EventEnvelope{
		EventID:      "evt-1",
		EventType:    "distribution.recorded",
		OccurredAt:   time.Date(2026, 3, 1, 12, 1, 30, 0, time.UTC),
		PartitionKey: "7400000",
		Data:         json.RawMessage(`{"window_id":"7400000"}`),
	}
	payload, err := json.Marshal(envelope)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("outbox_id") DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.AppendOutbox(context.Background(), envelope))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("outbox_id") DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "distribution_outbox" WHERE outbox_id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))
	require.NoError(t, repo.AppendOutbox(context.Background(), envelope))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT ("outbox_id") DO NOTHING`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "distribution_outbox"`)).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte(`{"different":true}`)))
	require.ErrorIs(t, repo.AppendOutbox(context.Background(), envelope), domainerrors.ErrInvalidConfiguration)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOutboxPublished(t *testing.T) {
	repo, mock := newMockRepository(t)
	at := time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "distribution_outbox" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.MarkOutboxPublished(context.Background(), "evt-1", at))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "distribution_outbox" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	require.ErrorIs(t, repo.MarkOutboxPublished(context.Background(), "missing", at), domainerrors.ErrRecordNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateAppliesEmbeddedSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS distribution_records`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, Migrate(context.Background(), gormDB))
	require.NoError(t, mock.ExpectationsWereMet())
}
