package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

const uniqueViolation = "23505"

const pendingColumns = `id, to_char(assignment_date, 'YYYY-MM-DD') AS assignment_date, absent_teacher_id, day, period,
       class_id, subject_id, substitute_teacher_id, notes, status, created_at, processed_at`

// PendingAssignmentRepository persists proposed substitutions awaiting verification.
type PendingAssignmentRepository struct {
	db *sqlx.DB
}

// NewPendingAssignmentRepository constructs the repository.
func NewPendingAssignmentRepository(db *sqlx.DB) *PendingAssignmentRepository {
	return &PendingAssignmentRepository{db: db}
}

// CreateBatch inserts all rows in one transaction. A composite key collision aborts the batch.
func (r *PendingAssignmentRepository) CreateBatch(ctx context.Context, records []models.PendingAssignment) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pending assignments tx: %w", err)
	}
	const query = `INSERT INTO pending_assignments
	(id, assignment_date, absent_teacher_id, day, period, class_id, subject_id, substitute_teacher_id, notes, status, created_at, processed_at)
	VALUES (:id, :assignment_date, :absent_teacher_id, :day, :period, :class_id, :subject_id, :substitute_teacher_id, :notes, :status, :created_at, :processed_at)`
	for i := range records {
		if _, err := tx.NamedExecContext(ctx, query, records[i]); err != nil {
			_ = tx.Rollback()
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("assignment %s already exists", records[i].Key()))
			}
			return fmt.Errorf("insert pending assignment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pending assignments tx: %w", err)
	}
	return nil
}

// ListByDateStatus returns the rows of a date, optionally filtered by status, in period order.
func (r *PendingAssignmentRepository) ListByDateStatus(ctx context.Context, date string, status models.AssignmentStatus) ([]models.PendingAssignment, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_assignments WHERE assignment_date = $1`
	args := []interface{}{date}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY period, absent_teacher_id`

	var rows []models.PendingAssignment
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list pending assignments: %w", err)
	}
	return rows, nil
}

// ListByStatus returns every row in a status, oldest first.
func (r *PendingAssignmentRepository) ListByStatus(ctx context.Context, status models.AssignmentStatus) ([]models.PendingAssignment, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_assignments WHERE status = $1 ORDER BY assignment_date, period, absent_teacher_id`
	var rows []models.PendingAssignment
	if err := r.db.SelectContext(ctx, &rows, query, status); err != nil {
		return nil, fmt.Errorf("list pending assignments by status: %w", err)
	}
	return rows, nil
}

// UpdateSubstitute changes the substitute of a row that is still pending.
// It returns sql.ErrNoRows when no pending row carries the key.
func (r *PendingAssignmentRepository) UpdateSubstitute(ctx context.Context, key models.CompositeKey, substituteID *string) error {
	const query = `UPDATE pending_assignments SET substitute_teacher_id = $1
	WHERE assignment_date = $2 AND absent_teacher_id = $3 AND day = $4 AND period = $5 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, substituteID, key.Date, key.AbsentTeacherID, key.Day, key.Period)
	if err != nil {
		return fmt.Errorf("update substitute: %w", err)
	}
	return expectAffected(res)
}

// DeleteByKey removes a pending row after it reached the ledger.
func (r *PendingAssignmentRepository) DeleteByKey(ctx context.Context, key models.CompositeKey) error {
	const query = `DELETE FROM pending_assignments
	WHERE assignment_date = $1 AND absent_teacher_id = $2 AND day = $3 AND period = $4 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, key.Date, key.AbsentTeacherID, key.Day, key.Period)
	if err != nil {
		return fmt.Errorf("delete pending assignment: %w", err)
	}
	return expectAffected(res)
}

// MarkExpired flips pending rows created before the cutoff to expired.
func (r *PendingAssignmentRepository) MarkExpired(ctx context.Context, createdBefore, processedAt time.Time) (int64, error) {
	const query = `UPDATE pending_assignments SET status = 'expired', processed_at = $1
	WHERE status = 'pending' AND created_at < $2`
	res, err := r.db.ExecContext(ctx, query, processedAt, createdBefore)
	if err != nil {
		return 0, fmt.Errorf("expire pending assignments: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire pending assignments rows: %w", err)
	}
	return affected, nil
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
