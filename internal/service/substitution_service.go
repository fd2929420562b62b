package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type absenceStore interface {
	Create(ctx context.Context, req *models.AbsenceRequest) error
	ListByDate(ctx context.Context, date string) ([]models.AbsenceRequest, error)
	ListLeaveDays(ctx context.Context, through string) (map[string]map[string]struct{}, error)
}

type historySource interface {
	ListHistory(ctx context.Context, through string) ([]models.SubstitutionHistoryEntry, error)
	CountByDate(ctx context.Context, date string) (int, error)
}

type assignmentLifecycle interface {
	Create(ctx context.Context, records []models.PendingAssignment) ([]models.PendingAssignment, error)
	ListPending(ctx context.Context, date string) ([]models.PendingAssignment, error)
	ListExpired(ctx context.Context) ([]models.PendingAssignment, error)
	UpdateSubstitute(ctx context.Context, key models.CompositeKey, substituteID *string) error
	Finalize(ctx context.Context, date, verifiedBy string) (*models.FinalizeResult, error)
	Expire(ctx context.Context) (int64, error)
	ExpireAfter() time.Duration
}

// Notifier delivers rendered messages to the admin chat.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// SubstitutionConfig holds orchestration settings.
type SubstitutionConfig struct {
	Location *time.Location
}

// DailyRun is the outcome of processing one date.
type DailyRun struct {
	Date        string                     `json:"date"`
	Day         string                     `json:"day"`
	Assignments []models.PendingAssignment `json:"assignments"`
	Summary     models.CoverageSummary     `json:"summary"`
	Report      string                     `json:"report"`
}

// ReconcileResult is the outcome of diffing (and optionally applying) an edited report.
type ReconcileResult struct {
	Date        string            `json:"date"`
	Changes     *models.ChangeSet `json:"changes"`
	Applied     int               `json:"applied"`
	ApplyErrors []string          `json:"apply_errors,omitempty"`
	DryRun      bool              `json:"dry_run"`
	Message     string            `json:"message"`
}

// ConfirmResult is the outcome of reconciling and finalizing a report in one step.
type ConfirmResult struct {
	Reconcile *ReconcileResult       `json:"reconcile"`
	Finalize  *models.FinalizeResult `json:"finalize"`
	Message   string                 `json:"message"`
}

// SubstitutionService runs the daily pipeline: score absences, publish the report,
// reconcile the admin's edits and finalize verified rows.
type SubstitutionService struct {
	roster    *models.Roster
	absences  absenceStore
	history   historySource
	lifecycle assignmentLifecycle
	scorer    *SubstituteScorer
	detector  *ChangeDetector
	renderer  *ReportRenderer
	notifier  Notifier
	validator *validator.Validate
	cfg       SubstitutionConfig
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubstitutionService wires the orchestrator. notifier may be nil.
func NewSubstitutionService(
	roster *models.Roster,
	absences absenceStore,
	history historySource,
	lifecycle assignmentLifecycle,
	scorer *SubstituteScorer,
	detector *ChangeDetector,
	renderer *ReportRenderer,
	notifier Notifier,
	validate *validator.Validate,
	cfg SubstitutionConfig,
	metrics *MetricsService,
	logger *zap.Logger,
) *SubstitutionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &SubstitutionService{
		roster:    roster,
		absences:  absences,
		history:   history,
		lifecycle: lifecycle,
		scorer:    scorer,
		detector:  detector,
		renderer:  renderer,
		notifier:  notifier,
		validator: validate,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// RecordAbsence validates and stores a leave request.
func (s *SubstitutionService) RecordAbsence(ctx context.Context, req dto.CreateAbsenceRequest) (*models.AbsenceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}
	day, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if _, known := s.roster.Profiles[req.TeacherID]; !known {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown teacher %s", req.TeacherID))
	}
	absence := &models.AbsenceRequest{
		TeacherID: req.TeacherID,
		Date:      req.Date,
		Day:       weekdayCode(day),
		Periods:   req.Periods,
		Reason:    strings.TrimSpace(req.Reason),
	}
	if len(models.ExpandAbsence(*absence, s.roster.Schedule)) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s teaches none of periods %v on %s", req.TeacherID, req.Periods, absence.Day))
	}
	if err := s.absences.Create(ctx, absence); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store absence")
	}
	return absence, nil
}

// ListAbsences returns the leave requests of a date.
func (s *SubstitutionService) ListAbsences(ctx context.Context, date string) ([]models.AbsenceRequest, error) {
	if _, err := s.parseDate(date); err != nil {
		return nil, err
	}
	absences, err := s.absences.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absences")
	}
	return absences, nil
}

// ProcessDate scores every absence period of the date, stores the proposals as
// pending rows and publishes the daily report.
func (s *SubstitutionService) ProcessDate(ctx context.Context, date string) (*DailyRun, error) {
	day, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	existing, err := s.lifecycle.ListPending(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%d pending assignments already exist for %s", len(existing), date))
	}
	finalized, err := s.history.CountByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check finalized assignments")
	}
	if finalized > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s is already finalized", date))
	}

	requests, err := s.absences.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absences")
	}
	loadStart := time.Now()
	history, err := s.history.ListHistory(ctx, date)
	s.metrics.ObserveDBQuery("list_history", time.Since(loadStart))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load substitution history")
	}
	leaveDays, err := s.absences.ListLeaveDays(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave days")
	}

	dayCode := weekdayCode(day)
	periods, absent := s.expandRequests(date, dayCode, requests)
	sc := &ScoringContext{Roster: s.roster, History: history, Absent: absent, LeaveDays: leaveDays}

	records, err := s.scorer.AssignDay(dayCode, periods, sc)
	if err != nil {
		return nil, err
	}
	created, err := s.lifecycle.Create(ctx, records)
	if err != nil {
		return nil, err
	}

	run := &DailyRun{
		Date:        date,
		Day:         dayCode,
		Assignments: created,
		Summary:     models.SummarizeCoverage(created),
		Report:      s.renderer.DailyReport(date, created),
	}
	s.metrics.RecordAssignments(run.Summary)
	s.logger.Info("absences processed",
		zap.String("date", date),
		zap.Int("absent_teachers", run.Summary.AbsentTeachers),
		zap.Int("periods", run.Summary.TotalPeriods),
		zap.Int("covered", run.Summary.Covered),
	)
	s.notify(ctx, run.Report)
	return run, nil
}

// Reconcile parses an edited report, diffs it against the pending rows of its date
// and, unless dryRun is set, applies the updates.
func (s *SubstitutionService) Reconcile(ctx context.Context, report string, dryRun bool) (*ReconcileResult, error) {
	date, err := s.acceptReport(report)
	if err != nil {
		return nil, err
	}
	pending, err := s.lifecycle.ListPending(ctx, date)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseReport(report)
	if err != nil {
		return nil, err
	}
	changes := s.detector.DetectChanges(ctx, date, parsed, pending)
	result := &ReconcileResult{Date: date, Changes: changes, DryRun: dryRun}
	if !dryRun {
		for _, change := range changes.Updated {
			if err := s.lifecycle.UpdateSubstitute(ctx, change.Key, change.NewSubstitute); err != nil {
				s.logger.Warn("apply change failed", zap.String("key", change.Key.String()), zap.Error(err))
				result.ApplyErrors = append(result.ApplyErrors, fmt.Sprintf("%s: %v", change.Key, err))
				continue
			}
			result.Applied++
		}
	}
	result.Message = s.renderer.ChangeConfirmation(date, changes)
	s.metrics.RecordReconciliation(changes)
	return result, nil
}

// Confirm applies an edited report and finalizes the date in one step.
func (s *SubstitutionService) Confirm(ctx context.Context, report, verifiedBy string) (*ConfirmResult, error) {
	reconciled, err := s.Reconcile(ctx, report, false)
	if err != nil {
		return nil, err
	}
	finalized, err := s.lifecycle.Finalize(ctx, reconciled.Date, verifiedBy)
	if err != nil {
		return nil, err
	}
	result := &ConfirmResult{
		Reconcile: reconciled,
		Finalize:  finalized,
		Message:   s.renderer.FinalizationConfirmation(reconciled.Date, finalized, reconciled.Changes),
	}
	s.notify(ctx, result.Message)
	return result, nil
}

// Finalize moves the pending rows of a date to the ledger without a report.
func (s *SubstitutionService) Finalize(ctx context.Context, date, verifiedBy string) (*models.FinalizeResult, string, error) {
	if _, err := s.parseDate(date); err != nil {
		return nil, "", err
	}
	result, err := s.lifecycle.Finalize(ctx, date, verifiedBy)
	if err != nil {
		return nil, "", err
	}
	message := s.renderer.FinalizationConfirmation(date, result, nil)
	s.notify(ctx, message)
	return result, message, nil
}

// ListPending returns the pending rows of a date.
func (s *SubstitutionService) ListPending(ctx context.Context, date string) ([]models.PendingAssignment, error) {
	if _, err := s.parseDate(date); err != nil {
		return nil, err
	}
	return s.lifecycle.ListPending(ctx, date)
}

// ListExpired returns the rows that expired without verification.
func (s *SubstitutionService) ListExpired(ctx context.Context) ([]models.PendingAssignment, error) {
	return s.lifecycle.ListExpired(ctx)
}

// ExpireStale runs the expiration sweep.
func (s *SubstitutionService) ExpireStale(ctx context.Context) (int64, error) {
	count, err := s.lifecycle.Expire(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.notify(ctx, s.renderer.Expiry(count))
	}
	return count, nil
}

// DescribeError renders a chat reply for a failed report submission.
func (s *SubstitutionService) DescribeError(err error, report string) string {
	date, _ := ParseReportHeader(report)
	return s.renderer.Rejection(err, date, int(s.lifecycle.ExpireAfter().Hours()/24))
}

// Today returns the current date in the school's time zone.
func (s *SubstitutionService) Today() string {
	return s.now().In(s.cfg.Location).Format(dateLayout)
}

func (s *SubstitutionService) acceptReport(report string) (string, error) {
	date, err := ParseReportHeader(report)
	if err != nil {
		return "", err
	}
	if err := ValidateReportDate(date, s.now(), s.lifecycle.ExpireAfter(), s.cfg.Location); err != nil {
		return "", err
	}
	return date, nil
}

func (s *SubstitutionService) expandRequests(date, day string, requests []models.AbsenceRequest) ([]models.AbsencePeriod, map[string]struct{}) {
	absent := make(map[string]struct{}, len(requests))
	seen := make(map[models.CompositeKey]struct{})
	periods := make([]models.AbsencePeriod, 0)
	for _, req := range requests {
		absent[req.TeacherID] = struct{}{}
		req.Date = date
		req.Day = day
		for _, period := range models.ExpandAbsence(req, s.roster.Schedule) {
			if _, dup := seen[period.Key()]; dup {
				continue
			}
			seen[period.Key()] = struct{}{}
			periods = append(periods, period)
		}
	}
	sort.SliceStable(periods, func(i, j int) bool {
		if periods[i].Period != periods[j].Period {
			return periods[i].Period < periods[j].Period
		}
		return periods[i].TeacherID < periods[j].TeacherID
	})
	return periods, absent
}

func (s *SubstitutionService) parseDate(date string) (time.Time, error) {
	if date == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	parsed, err := time.ParseInLocation(dateLayout, date, s.cfg.Location)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date))
	}
	return parsed, nil
}

type replyOnlyKey struct{}

// WithReplyOnly marks ctx as coming from a chat that already receives the
// result as a direct reply, so the admin notification is skipped.
func WithReplyOnly(ctx context.Context) context.Context {
	return context.WithValue(ctx, replyOnlyKey{}, true)
}

// IsReplyOnly reports whether ctx was marked by WithReplyOnly.
func IsReplyOnly(ctx context.Context) bool {
	replyOnly, _ := ctx.Value(replyOnlyKey{}).(bool)
	return replyOnly
}

func (s *SubstitutionService) notify(ctx context.Context, message string) {
	if s.notifier == nil || message == "" || IsReplyOnly(ctx) {
		return
	}
	if err := s.notifier.Notify(ctx, message); err != nil {
		s.logger.Warn("notify admin failed", zap.Error(err))
	}
}
