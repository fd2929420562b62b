package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/response"
)

type workloadService interface {
	Workload(ctx context.Context, query dto.WorkloadQuery) (*service.WorkloadReport, error)
	Export(ctx context.Context, query dto.WorkloadQuery) (*service.WorkloadExport, error)
}

// WorkloadHandler serves substitution counters.
type WorkloadHandler struct {
	service workloadService
}

// NewWorkloadHandler builds a new handler.
func NewWorkloadHandler(service workloadService) *WorkloadHandler {
	return &WorkloadHandler{service: service}
}

// Get godoc
// @Summary Substitution workload per teacher
// @Tags Workload
// @Produce json,text/csv,application/pdf,application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param from query string true "From date (YYYY-MM-DD)"
// @Param to query string true "To date (YYYY-MM-DD)"
// @Param format query string false "json, csv, xlsx or pdf"
// @Success 200 {object} response.Envelope
// @Router /workload [get]
func (h *WorkloadHandler) Get(c *gin.Context) {
	var query dto.WorkloadQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid workload query"))
		return
	}

	if query.Format == "" || query.Format == "json" {
		report, err := h.service.Workload(c.Request.Context(), query)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, report)
		return
	}

	file, err := h.service.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Data)
}
