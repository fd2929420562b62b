package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// AbsenceRepository stores leave requests.
type AbsenceRepository struct {
	db *sqlx.DB
}

// NewAbsenceRepository constructs the repository.
func NewAbsenceRepository(db *sqlx.DB) *AbsenceRepository {
	return &AbsenceRepository{db: db}
}

type absenceRow struct {
	ID        string        `db:"id"`
	TeacherID string        `db:"teacher_id"`
	Date      string        `db:"absence_date"`
	Day       string        `db:"day"`
	Periods   pq.Int64Array `db:"periods"`
	Reason    string        `db:"reason"`
	CreatedAt time.Time     `db:"created_at"`
}

func (r absenceRow) toModel() models.AbsenceRequest {
	periods := make([]int, len(r.Periods))
	for i, p := range r.Periods {
		periods[i] = int(p)
	}
	return models.AbsenceRequest{
		ID:        r.ID,
		TeacherID: r.TeacherID,
		Date:      r.Date,
		Day:       r.Day,
		Periods:   periods,
		Reason:    r.Reason,
		CreatedAt: r.CreatedAt,
	}
}

// Create inserts a leave request.
func (r *AbsenceRepository) Create(ctx context.Context, req *models.AbsenceRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	periods := make(pq.Int64Array, len(req.Periods))
	for i, p := range req.Periods {
		periods[i] = int64(p)
	}
	const query = `INSERT INTO absence_requests (id, teacher_id, absence_date, day, periods, reason, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query, req.ID, req.TeacherID, req.Date, req.Day, periods, req.Reason, req.CreatedAt); err != nil {
		return fmt.Errorf("create absence: %w", err)
	}
	return nil
}

// ListByDate returns the leave requests of a date in submission order.
func (r *AbsenceRepository) ListByDate(ctx context.Context, date string) ([]models.AbsenceRequest, error) {
	const query = `SELECT id, teacher_id, to_char(absence_date, 'YYYY-MM-DD') AS absence_date, day, periods, reason, created_at
	FROM absence_requests WHERE absence_date = $1 ORDER BY created_at, teacher_id`
	var rows []absenceRow
	if err := r.db.SelectContext(ctx, &rows, query, date); err != nil {
		return nil, fmt.Errorf("list absences: %w", err)
	}
	out := make([]models.AbsenceRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// ListLeaveDays maps each teacher to the weekdays they have recorded leave on,
// considering only absences dated on or before through.
func (r *AbsenceRepository) ListLeaveDays(ctx context.Context, through string) (map[string]map[string]struct{}, error) {
	const query = `SELECT DISTINCT teacher_id, day FROM absence_requests WHERE absence_date <= $1`
	var rows []struct {
		TeacherID string `db:"teacher_id"`
		Day       string `db:"day"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, through); err != nil {
		return nil, fmt.Errorf("list leave days: %w", err)
	}
	out := make(map[string]map[string]struct{})
	for _, row := range rows {
		if out[row.TeacherID] == nil {
			out[row.TeacherID] = make(map[string]struct{})
		}
		out[row.TeacherID][row.Day] = struct{}{}
	}
	return out, nil
}
