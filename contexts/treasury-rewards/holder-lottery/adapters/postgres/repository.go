package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"holderdrop/contexts/treasury-rewards/holder-lottery/domain/entities"
	domainerrors "holderdrop/contexts/treasury-rewards/holder-lottery/domain/errors"
	"holderdrop/contexts/treasury-rewards/holder-lottery/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"

	defaultHistoryLimit = 20
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) GetRecordByWindow(ctx context.Context, windowID int64) (entities.DistributionRecord, error) {
	var row distributionRecordModel
	err := r.db.WithContext(ctx).
		Where("window_id = ?", windowID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.DistributionRecord{}, domainerrors.ErrRecordNotFound
		}
		return entities.DistributionRecord{}, r.logError("holder_lottery_repo_get_record_failed", err,
			"window_id", windowID,
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) InsertRecord(ctx context.Context, record entities.DistributionRecord) error {
	if strings.TrimSpace(record.ID) == "" || record.AmountLamports > math.MaxInt64 || record.ClaimedLamports > math.MaxInt64 {
		r.logWarn("holder_lottery_repo_insert_record_invalid_input",
			"record_id", strings.TrimSpace(record.ID),
			"window_id", record.WindowID,
		)
		return domainerrors.ErrInvalidConfiguration
	}

	row := distributionRecordModelFromEntity(record)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("holder_lottery_repo_insert_record_unique_conflict",
				"record_id", row.ID,
				"window_id", row.WindowID,
			)
			return domainerrors.ErrDuplicateWindowRecord
		}
		return r.logError("holder_lottery_repo_insert_record_failed", err,
			"record_id", row.ID,
			"window_id", row.WindowID,
		)
	}
	return nil
}

func (r *Repository) ListRecentRecords(ctx context.Context, limit int) ([]entities.DistributionRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var rows []distributionRecordModel
	if err := r.db.WithContext(ctx).
		Order("recorded_at DESC").
		Order("window_id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("holder_lottery_repo_list_recent_failed", err,
			"limit", limit,
		)
	}
	items := make([]entities.DistributionRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("holder_lottery_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := distributionOutboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	createResult := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if createResult.Error != nil {
		return r.logError("holder_lottery_repo_append_outbox_insert_failed", createResult.Error,
			"outbox_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing distributionOutboxModel
	if err := r.db.WithContext(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).
		Error; err != nil {
		return r.logError("holder_lottery_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		r.logWarn("holder_lottery_repo_append_outbox_payload_conflict",
			"outbox_id", row.OutboxID,
			"event_type", row.EventType,
		)
		return fmt.Errorf("outbox %s payload mismatch: %w", row.OutboxID, domainerrors.ErrInvalidConfiguration)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []distributionOutboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("holder_lottery_repo_list_pending_outbox_failed", err,
			"limit", limit,
		)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&distributionOutboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("holder_lottery_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("holder_lottery_repo_mark_outbox_published_not_found",
			"outbox_id", strings.TrimSpace(outboxID),
		)
		return domainerrors.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "treasury-rewards/holder-lottery",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("holder lottery repository operation failed", fields...)
	return err
}

func (r *Repository) logWarn(event string, attrs ...any) {
	fields := make([]any, 0, len(attrs)+6)
	fields = append(fields,
		"event", event,
		"module", "treasury-rewards/holder-lottery",
		"layer", "adapter",
	)
	fields = append(fields, attrs...)
	r.logger.Warn("holder lottery repository warning", fields...)
}

type distributionRecordModel struct {
	ID              string          `gorm:"column:id;primaryKey"`
	WindowID        int64           `gorm:"column:window_id"`
	Recipient       *string         `gorm:"column:recipient"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(20,9)"`
	AmountLamports  int64           `gorm:"column:amount_lamports"`
	Signature       *string         `gorm:"column:signature"`
	Status          string          `gorm:"column:status"`
	Outcome         string          `gorm:"column:outcome"`
	ClaimedLamports int64           `gorm:"column:claimed_lamports"`
	RecordedAt      time.Time       `gorm:"column:recorded_at"`
}

func (distributionRecordModel) TableName() string {
	return "distribution_records"
}

func distributionRecordModelFromEntity(record entities.DistributionRecord) distributionRecordModel {
	row := distributionRecordModel{
		ID:              strings.TrimSpace(record.ID),
		WindowID:        record.WindowID,
		Recipient:       trimOptional(record.Recipient),
		Amount:          entities.LamportsToSOL(record.AmountLamports),
		AmountLamports:  int64(record.AmountLamports),
		Signature:       trimOptional(record.Signature),
		Status:          string(record.Status),
		Outcome:         string(record.Outcome),
		ClaimedLamports: int64(record.ClaimedLamports),
		RecordedAt:      record.RecordedAt.UTC(),
	}
	if row.RecordedAt.IsZero() {
		row.RecordedAt = time.Now().UTC()
	}
	return row
}

func (m distributionRecordModel) toEntity() entities.DistributionRecord {
	var lamports, claimed uint64
	if m.AmountLamports > 0 {
		lamports = uint64(m.AmountLamports)
	}
	if m.ClaimedLamports > 0 {
		claimed = uint64(m.ClaimedLamports)
	}
	return entities.DistributionRecord{
		ID:              m.ID,
		WindowID:        m.WindowID,
		Recipient:       trimOptional(m.Recipient),
		AmountLamports:  lamports,
		Amount:          entities.LamportsToSOL(lamports),
		Signature:       trimOptional(m.Signature),
		Status:          entities.RecordStatus(m.Status),
		Outcome:         entities.Outcome(m.Outcome),
		ClaimedLamports: claimed,
		RecordedAt:      m.RecordedAt.UTC(),
	}
}

type distributionOutboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (distributionOutboxModel) TableName() string {
	return "distribution_outbox"
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.RecordRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
