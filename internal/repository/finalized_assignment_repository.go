package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// FinalizedAssignmentRepository is the append-only ledger of verified substitutions.
type FinalizedAssignmentRepository struct {
	db *sqlx.DB
}

// NewFinalizedAssignmentRepository constructs the repository.
func NewFinalizedAssignmentRepository(db *sqlx.DB) *FinalizedAssignmentRepository {
	return &FinalizedAssignmentRepository{db: db}
}

// Append stores a finalized row. Re-appending an existing key is a no-op.
func (r *FinalizedAssignmentRepository) Append(ctx context.Context, record models.FinalizedAssignment) error {
	const query = `INSERT INTO finalized_assignments
	(id, assignment_date, absent_teacher_id, day, period, class_id, subject_id, substitute_teacher_id, notes, status, created_at, processed_at, verified_by, verified_at)
	VALUES (:id, :assignment_date, :absent_teacher_id, :day, :period, :class_id, :subject_id, :substitute_teacher_id, :notes, :status, :created_at, :processed_at, :verified_by, :verified_at)
	ON CONFLICT (assignment_date, absent_teacher_id, day, period) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("append finalized assignment: %w", err)
	}
	return nil
}

// ListHistory returns every covered substitution up to and including the date.
func (r *FinalizedAssignmentRepository) ListHistory(ctx context.Context, through string) ([]models.SubstitutionHistoryEntry, error) {
	const query = `SELECT substitute_teacher_id AS teacher_id, to_char(assignment_date, 'YYYY-MM-DD') AS assignment_date,
       day, period, class_id, subject_id
	FROM finalized_assignments
	WHERE substitute_teacher_id IS NOT NULL AND assignment_date <= $1
	ORDER BY assignment_date, period`
	var entries []models.SubstitutionHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, through); err != nil {
		return nil, fmt.Errorf("list substitution history: %w", err)
	}
	return entries, nil
}

// CountByDate reports how many ledger rows exist for a date.
func (r *FinalizedAssignmentRepository) CountByDate(ctx context.Context, date string) (int, error) {
	const query = `SELECT COUNT(*) FROM finalized_assignments WHERE assignment_date = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, date); err != nil {
		return 0, fmt.Errorf("count finalized assignments: %w", err)
	}
	return count, nil
}

// Workload counts covered substitutions per substitute between two dates inclusive.
func (r *FinalizedAssignmentRepository) Workload(ctx context.Context, from, to string) ([]models.WorkloadCount, error) {
	const query = `SELECT substitute_teacher_id AS teacher_id, COUNT(*) AS substitutions
	FROM finalized_assignments
	WHERE substitute_teacher_id IS NOT NULL AND assignment_date BETWEEN $1 AND $2
	GROUP BY substitute_teacher_id
	ORDER BY substitutions DESC, teacher_id`
	var counts []models.WorkloadCount
	if err := r.db.SelectContext(ctx, &counts, query, from, to); err != nil {
		return nil, fmt.Errorf("aggregate workload: %w", err)
	}
	return counts, nil
}

// ListByDate returns the ledger rows of a date in period order.
func (r *FinalizedAssignmentRepository) ListByDate(ctx context.Context, date string) ([]models.FinalizedAssignment, error) {
	const query = `SELECT id, to_char(assignment_date, 'YYYY-MM-DD') AS assignment_date, absent_teacher_id, day, period,
       class_id, subject_id, substitute_teacher_id, notes, status, created_at, processed_at, verified_by, verified_at
	FROM finalized_assignments WHERE assignment_date = $1
	ORDER BY period, absent_teacher_id`
	var rows []models.FinalizedAssignment
	if err := r.db.SelectContext(ctx, &rows, query, date); err != nil {
		return nil, fmt.Errorf("list finalized assignments: %w", err)
	}
	return rows, nil
}
