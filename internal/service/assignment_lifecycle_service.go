package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type pendingAssignmentStore interface {
	CreateBatch(ctx context.Context, records []models.PendingAssignment) error
	ListByDateStatus(ctx context.Context, date string, status models.AssignmentStatus) ([]models.PendingAssignment, error)
	ListByStatus(ctx context.Context, status models.AssignmentStatus) ([]models.PendingAssignment, error)
	UpdateSubstitute(ctx context.Context, key models.CompositeKey, substituteID *string) error
	DeleteByKey(ctx context.Context, key models.CompositeKey) error
	MarkExpired(ctx context.Context, createdBefore, processedAt time.Time) (int64, error)
}

type assignmentLedger interface {
	Append(ctx context.Context, record models.FinalizedAssignment) error
}

// AssignmentLifecycleConfig holds lifecycle tunables.
type AssignmentLifecycleConfig struct {
	ExpireAfter time.Duration
}

// AssignmentLifecycleService owns the pending -> finalized | expired state machine.
type AssignmentLifecycleService struct {
	pending pendingAssignmentStore
	ledger  assignmentLedger
	cfg     AssignmentLifecycleConfig
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewAssignmentLifecycleService constructs the lifecycle service.
func NewAssignmentLifecycleService(pending pendingAssignmentStore, ledger assignmentLedger, cfg AssignmentLifecycleConfig, metrics *MetricsService, logger *zap.Logger) *AssignmentLifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ExpireAfter <= 0 {
		cfg.ExpireAfter = 7 * 24 * time.Hour
	}
	return &AssignmentLifecycleService{
		pending: pending,
		ledger:  ledger,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Create persists freshly scored assignments as pending rows.
func (s *AssignmentLifecycleService) Create(ctx context.Context, records []models.PendingAssignment) ([]models.PendingAssignment, error) {
	if len(records) == 0 {
		return []models.PendingAssignment{}, nil
	}
	now := s.now().UTC()
	created := make([]models.PendingAssignment, 0, len(records))
	seen := make(map[models.CompositeKey]struct{}, len(records))
	for _, record := range records {
		if err := validateCompositeKey(record.Key()); err != nil {
			return nil, err
		}
		if record.Status != "" && record.Status != models.AssignmentStatusPending {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot create %s assignment %s", record.Status, record.Key()))
		}
		if _, dup := seen[record.Key()]; dup {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("duplicate assignment %s", record.Key()))
		}
		seen[record.Key()] = struct{}{}

		if record.ID == "" {
			record.ID = uuid.NewString()
		}
		record.Status = models.AssignmentStatusPending
		record.CreatedAt = now
		record.ProcessedAt = nil
		created = append(created, record)
	}
	if err := s.pending.CreateBatch(ctx, created); err != nil {
		if errors.Is(err, appErrors.ErrConflict) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store pending assignments")
	}
	s.logger.Info("pending assignments created", zap.String("date", created[0].Date), zap.Int("count", len(created)))
	return created, nil
}

// ListPending returns the rows of a date still awaiting verification.
func (s *AssignmentLifecycleService) ListPending(ctx context.Context, date string) ([]models.PendingAssignment, error) {
	if date == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	rows, err := s.pending.ListByDateStatus(ctx, date, models.AssignmentStatusPending)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending assignments")
	}
	return rows, nil
}

// ListExpired returns every row the sweep expired, oldest first.
func (s *AssignmentLifecycleService) ListExpired(ctx context.Context) ([]models.PendingAssignment, error) {
	rows, err := s.pending.ListByStatus(ctx, models.AssignmentStatusExpired)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load expired assignments")
	}
	return rows, nil
}

// UpdateSubstitute replaces the substitute of a pending row. Finalized and expired
// rows are never touched.
func (s *AssignmentLifecycleService) UpdateSubstitute(ctx context.Context, key models.CompositeKey, substituteID *string) error {
	if err := validateCompositeKey(key); err != nil {
		return err
	}
	if substituteID != nil && (*substituteID == "" || *substituteID == models.NoSubstituteLabel) {
		substituteID = nil
	}
	if err := s.pending.UpdateSubstitute(ctx, key, substituteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no pending assignment for %s", key))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update substitute")
	}
	return nil
}

// Finalize appends every pending row of the date to the ledger and removes it from
// the pending store. Rows that fail either step stay pending and are reported.
func (s *AssignmentLifecycleService) Finalize(ctx context.Context, date, verifiedBy string) (*models.FinalizeResult, error) {
	if date == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	if verifiedBy == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "verified_by is required")
	}
	rows, err := s.ListPending(ctx, date)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result := &models.FinalizeResult{Date: date, VerifiedBy: verifiedBy, Failed: []models.CompositeKey{}}
	for _, row := range rows {
		if !row.Status.CanTransitionTo(models.AssignmentStatusFinalized) {
			continue
		}
		record := models.FinalizedAssignment{PendingAssignment: row, VerifiedBy: verifiedBy, VerifiedAt: now}
		record.Status = models.AssignmentStatusFinalized
		record.ProcessedAt = &now

		if err := s.ledger.Append(ctx, record); err != nil {
			s.logger.Warn("ledger append failed", zap.String("key", row.Key().String()), zap.Error(err))
			result.FailedCount++
			result.Failed = append(result.Failed, row.Key())
			continue
		}
		if err := s.pending.DeleteByKey(ctx, row.Key()); err != nil {
			s.logger.Warn("pending delete failed after ledger append", zap.String("key", row.Key().String()), zap.Error(err))
			result.FailedCount++
			result.Failed = append(result.Failed, row.Key())
			continue
		}
		result.FinalizedCount++
	}

	s.metrics.RecordFinalize(result)
	s.logger.Info("assignments finalized",
		zap.String("date", date),
		zap.String("verified_by", verifiedBy),
		zap.Int("finalized", result.FinalizedCount),
		zap.Int("failed", result.FailedCount),
	)
	return result, nil
}

// Expire marks pending rows older than the expiration window as expired.
func (s *AssignmentLifecycleService) Expire(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	cutoff := now.Add(-s.cfg.ExpireAfter)
	count, err := s.pending.MarkExpired(ctx, cutoff, now)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire pending assignments")
	}
	s.metrics.RecordExpired(count)
	s.logger.Info("pending assignments expired", zap.Time("cutoff", cutoff), zap.Int64("count", count))
	return count, nil
}

// ExpireAfter exposes the configured window.
func (s *AssignmentLifecycleService) ExpireAfter() time.Duration {
	return s.cfg.ExpireAfter
}

func validateCompositeKey(key models.CompositeKey) error {
	switch {
	case key.Date == "":
		return appErrors.Clone(appErrors.ErrValidation, "assignment date is required")
	case key.AbsentTeacherID == "":
		return appErrors.Clone(appErrors.ErrValidation, "absent_teacher_id is required")
	case key.Day == "":
		return appErrors.Clone(appErrors.ErrValidation, "day is required")
	case key.Period < 1:
		return appErrors.Clone(appErrors.ErrValidation, "period must be >= 1")
	}
	return nil
}
