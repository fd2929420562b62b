package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type stubWorkloadSource struct {
	counts   []models.WorkloadCount
	err      error
	from, to string
}

func (s *stubWorkloadSource) Workload(_ context.Context, from, to string) ([]models.WorkloadCount, error) {
	s.from, s.to = from, to
	return s.counts, s.err
}

func workloadRoster() *models.Roster {
	return &models.Roster{
		Schedule: []models.ScheduleEntry{
			{TeacherID: "T001", SubjectID: "MATH", Day: "Mon", Period: 1, ClassID: "ม.1/1"},
			{TeacherID: "T002", SubjectID: "THAI", Day: "Mon", Period: 2, ClassID: "ม.1/1"},
			{TeacherID: "T003", SubjectID: "SCI", Day: "Tue", Period: 1, ClassID: "ม.2/1"},
		},
		FullNames: map[string]string{"T001": "ครูสมชาย", "T002": "ครูสุจิตร", "T003": "ครูปานิสา"},
	}
}

func TestWorkloadIncludesIdleTeachersSorted(t *testing.T) {
	source := &stubWorkloadSource{counts: []models.WorkloadCount{
		{TeacherID: "T003", Substitutions: 2},
		{TeacherID: "T002", Substitutions: 2},
	}}
	svc := NewWorkloadService(source, workloadRoster(), nil, nil, nil)

	report, err := svc.Workload(context.Background(), dto.WorkloadQuery{From: "2025-11-01", To: "2025-11-30"})
	require.NoError(t, err)
	require.Equal(t, "2025-11-01", source.from)
	require.Equal(t, "2025-11-30", source.to)
	require.Equal(t, []models.WorkloadCount{
		{TeacherID: "T002", Name: "ครูสุจิตร", Substitutions: 2},
		{TeacherID: "T003", Name: "ครูปานิสา", Substitutions: 2},
		{TeacherID: "T001", Name: "ครูสมชาย", Substitutions: 0},
	}, report.Counts)
}

func TestWorkloadRejectsBadRange(t *testing.T) {
	svc := NewWorkloadService(&stubWorkloadSource{}, workloadRoster(), nil, nil, nil)

	_, err := svc.Workload(context.Background(), dto.WorkloadQuery{From: "2025-12-01", To: "2025-11-01"})
	require.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.Workload(context.Background(), dto.WorkloadQuery{From: "01/11/2025", To: "2025-11-30"})
	require.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestWorkloadSourceFailure(t *testing.T) {
	svc := NewWorkloadService(&stubWorkloadSource{err: errors.New("db down")}, workloadRoster(), nil, nil, nil)

	_, err := svc.Workload(context.Background(), dto.WorkloadQuery{From: "2025-11-01", To: "2025-11-30"})
	require.True(t, errors.Is(err, appErrors.ErrInternal))
}

func TestWorkloadExportCSV(t *testing.T) {
	source := &stubWorkloadSource{counts: []models.WorkloadCount{{TeacherID: "T002", Substitutions: 1}}}
	svc := NewWorkloadService(source, workloadRoster(), nil, nil, nil)

	file, err := svc.Export(context.Background(), dto.WorkloadQuery{From: "2025-11-01", To: "2025-11-30", Format: "csv"})
	require.NoError(t, err)
	require.Equal(t, "workload_2025-11-01_2025-11-30.csv", file.Filename)
	require.True(t, strings.HasPrefix(file.ContentType, "text/csv"))
	body := string(file.Data)
	require.Contains(t, body, "teacher_id,name,substitutions")
	require.Contains(t, body, "T002,ครูสุจิตร,1")
}

func TestWorkloadExportPDFAndUnknownFormat(t *testing.T) {
	svc := NewWorkloadService(&stubWorkloadSource{}, workloadRoster(), nil, nil, nil)

	file, err := svc.Export(context.Background(), dto.WorkloadQuery{From: "2025-11-01", To: "2025-11-30", Format: "pdf"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(file.Data), "%PDF"))

	_, err = svc.Export(context.Background(), dto.WorkloadQuery{From: "2025-11-01", To: "2025-11-30", Format: "docx"})
	require.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestWorkloadDatasetOmitsNamesForPDF(t *testing.T) {
	report := &WorkloadReport{From: "2025-11-01", To: "2025-11-30", Counts: []models.WorkloadCount{{TeacherID: "T002", Name: "ครูสุจิตร", Substitutions: 3}}}

	data := WorkloadDataset(report, false)
	require.Equal(t, []string{"teacher_id", "substitutions"}, data.Headers)
	require.Equal(t, "3", data.Rows[0]["substitutions"])

	text := FormatWorkload(report)
	require.Contains(t, text, "ครูสุจิตร (T002): 3 คาบ")
}
