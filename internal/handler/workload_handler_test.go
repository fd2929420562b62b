package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type workloadServiceMock struct {
	query    dto.WorkloadQuery
	exported bool
	err      error
}

func (m *workloadServiceMock) Workload(ctx context.Context, query dto.WorkloadQuery) (*service.WorkloadReport, error) {
	m.query = query
	if m.err != nil {
		return nil, m.err
	}
	return &service.WorkloadReport{From: query.From, To: query.To}, nil
}

func (m *workloadServiceMock) Export(ctx context.Context, query dto.WorkloadQuery) (*service.WorkloadExport, error) {
	m.query = query
	m.exported = true
	return &service.WorkloadExport{Filename: "workload.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("teacher_id\n")}, nil
}

func TestWorkloadHandlerJSON(t *testing.T) {
	mock := &workloadServiceMock{}
	handler := NewWorkloadHandler(mock)

	c, w := newJSONContext(t, http.MethodGet, "/workload?from=2025-11-01&to=2025-11-30", nil)
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, mock.exported)
	require.Equal(t, "2025-11-01", mock.query.From)
}

func TestWorkloadHandlerExport(t *testing.T) {
	mock := &workloadServiceMock{}
	handler := NewWorkloadHandler(mock)

	c, w := newJSONContext(t, http.MethodGet, "/workload?from=2025-11-01&to=2025-11-30&format=csv", nil)
	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, mock.exported)
	require.Equal(t, `attachment; filename="workload.csv"`, w.Header().Get("Content-Disposition"))
	require.Equal(t, "teacher_id\n", w.Body.String())
}

func TestWorkloadHandlerValidationError(t *testing.T) {
	handler := NewWorkloadHandler(&workloadServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "from must not be after to")})

	c, w := newJSONContext(t, http.MethodGet, "/workload?from=2025-12-01&to=2025-11-01", nil)
	handler.Get(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
