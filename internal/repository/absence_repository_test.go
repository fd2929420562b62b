package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

func TestAbsenceRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newSubstitutionRepoMock(t)
	defer cleanup()

	repo := NewAbsenceRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO absence_requests")).
		WithArgs(sqlmock.AnyArg(), "T017", "2025-11-28", "Fri", sqlmock.AnyArg(), "sick", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.AbsenceRequest{TeacherID: "T017", Date: "2025-11-28", Day: "Fri", Periods: []int{1, 2}, Reason: "sick"}
	require.NoError(t, repo.Create(context.Background(), req))
	require.NotEmpty(t, req.ID)
	require.False(t, req.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAbsenceRepositoryListByDate(t *testing.T) {
	db, mock, cleanup := newSubstitutionRepoMock(t)
	defer cleanup()

	repo := NewAbsenceRepository(db)
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "absence_date", "day", "periods", "reason", "created_at"}).
		AddRow("abs-1", "T017", "2025-11-28", "Fri", "{1,2,5}", "sick", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM absence_requests WHERE absence_date = $1")).
		WithArgs("2025-11-28").
		WillReturnRows(rows)

	list, err := repo.ListByDate(context.Background(), "2025-11-28")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, []int{1, 2, 5}, list[0].Periods)
	require.Equal(t, "Fri", list[0].Day)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAbsenceRepositoryListLeaveDays(t *testing.T) {
	db, mock, cleanup := newSubstitutionRepoMock(t)
	defer cleanup()

	repo := NewAbsenceRepository(db)
	rows := sqlmock.NewRows([]string{"teacher_id", "day"}).
		AddRow("T017", "Fri").
		AddRow("T017", "Mon").
		AddRow("T003", "Tue")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT teacher_id, day FROM absence_requests WHERE absence_date <= $1")).
		WithArgs("2025-11-28").
		WillReturnRows(rows)

	days, err := repo.ListLeaveDays(context.Background(), "2025-11-28")
	require.NoError(t, err)
	require.Len(t, days, 2)
	require.Contains(t, days["T017"], "Mon")
	require.Contains(t, days["T003"], "Tue")
	require.NoError(t, mock.ExpectationsWereMet())
}
