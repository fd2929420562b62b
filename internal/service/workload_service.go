package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/export"
)

type workloadSource interface {
	Workload(ctx context.Context, from, to string) ([]models.WorkloadCount, error)
}

// WorkloadReport is the counter table for a date range.
type WorkloadReport struct {
	From   string                 `json:"from"`
	To     string                 `json:"to"`
	Counts []models.WorkloadCount `json:"counts"`
}

// WorkloadExport is a rendered workload file.
type WorkloadExport struct {
	Filename    string
	ContentType string
	Data        []byte
}

// WorkloadService aggregates finalized substitutions per teacher.
type WorkloadService struct {
	ledger    workloadSource
	roster    *models.Roster
	renderers export.Registry
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewWorkloadService constructs the service.
func NewWorkloadService(ledger workloadSource, roster *models.Roster, renderers export.Registry, validate *validator.Validate, logger *zap.Logger) *WorkloadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if renderers == nil {
		renderers = export.NewRegistry("")
	}
	return &WorkloadService{ledger: ledger, roster: roster, renderers: renderers, validate: validate, logger: logger}
}

// Workload returns every roster teacher with their substitution count between from and to inclusive.
func (s *WorkloadService) Workload(ctx context.Context, query dto.WorkloadQuery) (*WorkloadReport, error) {
	if err := s.validate.Struct(query); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if query.From > query.To {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}

	counts, err := s.ledger.Workload(ctx, query.From, query.To)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workload")
	}

	byID := make(map[string]int)
	for _, id := range s.roster.TeacherIDs() {
		byID[id] = 0
	}
	for _, count := range counts {
		byID[count.TeacherID] += count.Substitutions
	}

	out := make([]models.WorkloadCount, 0, len(byID))
	for id, n := range byID {
		out = append(out, models.WorkloadCount{TeacherID: id, Name: s.roster.DisplayName(id), Substitutions: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Substitutions != out[j].Substitutions {
			return out[i].Substitutions > out[j].Substitutions
		}
		return out[i].TeacherID < out[j].TeacherID
	})
	return &WorkloadReport{From: query.From, To: query.To, Counts: out}, nil
}

// Export renders the workload table in the requested format.
func (s *WorkloadService) Export(ctx context.Context, query dto.WorkloadQuery) (*WorkloadExport, error) {
	format, err := export.ParseFormat(query.Format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	report, err := s.Workload(ctx, query)
	if err != nil {
		return nil, err
	}

	data, err := s.renderers.Render(format, WorkloadDataset(report, format != export.FormatPDF))
	if err != nil {
		s.logger.Error("failed to render workload export", zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render workload export")
	}
	return &WorkloadExport{
		Filename:    fmt.Sprintf("workload_%s_%s.%s", report.From, report.To, format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

// WorkloadDataset turns a report into export rows. Names are left out for fonts without Thai glyphs.
func WorkloadDataset(report *WorkloadReport, withNames bool) export.Dataset {
	headers := []string{"teacher_id", "substitutions"}
	if withNames {
		headers = []string{"teacher_id", "name", "substitutions"}
	}
	rows := make([]map[string]string, 0, len(report.Counts))
	for _, count := range report.Counts {
		rows = append(rows, map[string]string{
			"teacher_id":    count.TeacherID,
			"name":          count.Name,
			"substitutions": strconv.Itoa(count.Substitutions),
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Substitution workload %s to %s", report.From, report.To),
		Headers: headers,
		Rows:    rows,
	}
}

// FormatWorkload renders the table as chat text.
func FormatWorkload(report *WorkloadReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 ภาระงานสอนแทน %s ถึง %s\n", report.From, report.To)
	if len(report.Counts) == 0 {
		b.WriteString("ไม่มีข้อมูล")
		return b.String()
	}
	for _, count := range report.Counts {
		fmt.Fprintf(&b, "• %s (%s): %d คาบ\n", count.Name, count.TeacherID, count.Substitutions)
	}
	return strings.TrimRight(b.String(), "\n")
}
