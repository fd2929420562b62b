package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/response"
)

type substitutionService interface {
	RecordAbsence(ctx context.Context, req dto.CreateAbsenceRequest) (*models.AbsenceRequest, error)
	ListAbsences(ctx context.Context, date string) ([]models.AbsenceRequest, error)
	ProcessDate(ctx context.Context, date string) (*service.DailyRun, error)
	ListPending(ctx context.Context, date string) ([]models.PendingAssignment, error)
	ListExpired(ctx context.Context) ([]models.PendingAssignment, error)
	Reconcile(ctx context.Context, report string, dryRun bool) (*service.ReconcileResult, error)
	Confirm(ctx context.Context, report, verifiedBy string) (*service.ConfirmResult, error)
	Finalize(ctx context.Context, date, verifiedBy string) (*models.FinalizeResult, string, error)
	ExpireStale(ctx context.Context) (int64, error)
	DescribeError(err error, report string) string
	Today() string
}

// SubstitutionHandler exposes the absence and assignment pipeline.
type SubstitutionHandler struct {
	service substitutionService
}

// NewSubstitutionHandler builds a new handler.
func NewSubstitutionHandler(service substitutionService) *SubstitutionHandler {
	return &SubstitutionHandler{service: service}
}

// CreateAbsence godoc
// @Summary Record a teacher absence
// @Tags Absences
// @Accept json
// @Produce json
// @Param payload body dto.CreateAbsenceRequest true "Absence payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /absences [post]
func (h *SubstitutionHandler) CreateAbsence(c *gin.Context) {
	var req dto.CreateAbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid absence payload"))
		return
	}
	absence, err := h.service.RecordAbsence(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, absence)
}

// ListAbsences godoc
// @Summary List absences of a date
// @Tags Absences
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /absences [get]
func (h *SubstitutionHandler) ListAbsences(c *gin.Context) {
	date := h.dateQuery(c)
	absences, err := h.service.ListAbsences(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, absences, map[string]interface{}{"date": date, "count": len(absences)})
}

// Process godoc
// @Summary Assign substitutes for a date
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.ProcessDateRequest false "Date to process, defaults to today"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /substitutions/process [post]
func (h *SubstitutionHandler) Process(c *gin.Context) {
	var req dto.ProcessDateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid process payload"))
			return
		}
	}
	if req.Date == "" {
		req.Date = h.service.Today()
	}
	run, err := h.service.ProcessDate(c.Request.Context(), req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, run)
}

// ListPending godoc
// @Summary List pending assignments of a date
// @Tags Substitutions
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /substitutions/pending [get]
func (h *SubstitutionHandler) ListPending(c *gin.Context) {
	date := h.dateQuery(c)
	rows, err := h.service.ListPending(c.Request.Context(), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary := models.SummarizeCoverage(rows)
	response.JSON(c, http.StatusOK, rows, map[string]interface{}{"date": date, "coverage": summary.String()})
}

// ListExpired godoc
// @Summary List assignments that expired without verification
// @Tags Substitutions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /substitutions/expired [get]
func (h *SubstitutionHandler) ListExpired(c *gin.Context) {
	rows, err := h.service.ListExpired(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, map[string]interface{}{"count": len(rows)})
}

// Reconcile godoc
// @Summary Diff an edited report against pending assignments
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.ReconcileRequest true "Edited report"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /substitutions/reconcile [post]
func (h *SubstitutionHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reconcile payload"))
		return
	}
	result, err := h.service.Reconcile(c.Request.Context(), req.Report, req.DryRun)
	if err != nil {
		h.reportError(c, err, req.Report)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Confirm godoc
// @Summary Apply an edited report and finalize its date
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.ConfirmReportRequest true "Edited report and verifier"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /substitutions/confirm [post]
func (h *SubstitutionHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid confirm payload"))
		return
	}
	result, err := h.service.Confirm(c.Request.Context(), req.Report, req.VerifiedBy)
	if err != nil {
		h.reportError(c, err, req.Report)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Finalize godoc
// @Summary Finalize the pending assignments of a date
// @Tags Substitutions
// @Accept json
// @Produce json
// @Param payload body dto.FinalizeRequest true "Date and verifier"
// @Success 200 {object} response.Envelope
// @Router /substitutions/finalize [post]
func (h *SubstitutionHandler) Finalize(c *gin.Context) {
	var req dto.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid finalize payload"))
		return
	}
	result, message, err := h.service.Finalize(c.Request.Context(), req.Date, req.VerifiedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{"message": message})
}

// Expire godoc
// @Summary Expire stale pending assignments now
// @Tags Substitutions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /substitutions/expire [post]
func (h *SubstitutionHandler) Expire(c *gin.Context) {
	count, err := h.service.ExpireStale(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ExpireResponse{Expired: count})
}

func (h *SubstitutionHandler) dateQuery(c *gin.Context) string {
	if date := c.Query("date"); date != "" {
		return date
	}
	return h.service.Today()
}

func (h *SubstitutionHandler) reportError(c *gin.Context, err error, report string) {
	response.ErrorWithMeta(c, err, map[string]interface{}{"message": h.service.DescribeError(err, report)})
}
