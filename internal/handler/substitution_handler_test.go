package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/service"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type substitutionServiceMock struct {
	absence     *models.AbsenceRequest
	run         *service.DailyRun
	reconcile   *service.ReconcileResult
	confirm     *service.ConfirmResult
	pending     []models.PendingAssignment
	expired     int64
	expiredRows []models.PendingAssignment
	err         error
	processDate string
	pendingDate string
	dryRun      bool
	verifiedBy  string
}

func (m *substitutionServiceMock) RecordAbsence(ctx context.Context, req dto.CreateAbsenceRequest) (*models.AbsenceRequest, error) {
	return m.absence, m.err
}

func (m *substitutionServiceMock) ListAbsences(ctx context.Context, date string) ([]models.AbsenceRequest, error) {
	return []models.AbsenceRequest{}, m.err
}

func (m *substitutionServiceMock) ProcessDate(ctx context.Context, date string) (*service.DailyRun, error) {
	m.processDate = date
	return m.run, m.err
}

func (m *substitutionServiceMock) ListPending(ctx context.Context, date string) ([]models.PendingAssignment, error) {
	m.pendingDate = date
	return m.pending, m.err
}

func (m *substitutionServiceMock) ListExpired(ctx context.Context) ([]models.PendingAssignment, error) {
	return m.expiredRows, m.err
}

func (m *substitutionServiceMock) Reconcile(ctx context.Context, report string, dryRun bool) (*service.ReconcileResult, error) {
	m.dryRun = dryRun
	return m.reconcile, m.err
}

func (m *substitutionServiceMock) Confirm(ctx context.Context, report, verifiedBy string) (*service.ConfirmResult, error) {
	m.verifiedBy = verifiedBy
	return m.confirm, m.err
}

func (m *substitutionServiceMock) Finalize(ctx context.Context, date, verifiedBy string) (*models.FinalizeResult, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return &models.FinalizeResult{Date: date, VerifiedBy: verifiedBy, FinalizedCount: 3}, "📌 บันทึกลงทะเบียนแล้ว: 3 คาบ", nil
}

func (m *substitutionServiceMock) ExpireStale(ctx context.Context) (int64, error) {
	return m.expired, m.err
}

func (m *substitutionServiceMock) DescribeError(err error, report string) string {
	return "rejected: " + appErrors.FromError(err).Code
}

func (m *substitutionServiceMock) Today() string { return "2025-11-28" }

func newJSONContext(t *testing.T, method, target string, payload interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var body []byte
	switch p := payload.(type) {
	case nil:
	case string:
		body = []byte(p)
	default:
		var err error
		body, err = json.Marshal(p)
		require.NoError(t, err)
	}
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSubstitutionHandlerCreateAbsence(t *testing.T) {
	mock := &substitutionServiceMock{absence: &models.AbsenceRequest{ID: "abs-1", TeacherID: "T017"}}
	handler := NewSubstitutionHandler(mock)

	c, w := newJSONContext(t, http.MethodPost, "/absences", dto.CreateAbsenceRequest{TeacherID: "T017", Date: "2025-11-28", Periods: []int{1}})
	handler.CreateAbsence(c)
	require.Equal(t, http.StatusCreated, w.Code)

	c, w = newJSONContext(t, http.MethodPost, "/absences", "not json")
	handler.CreateAbsence(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubstitutionHandlerProcessDefaultsToToday(t *testing.T) {
	mock := &substitutionServiceMock{run: &service.DailyRun{Date: "2025-11-28"}}
	handler := NewSubstitutionHandler(mock)

	c, w := newJSONContext(t, http.MethodPost, "/substitutions/process", nil)
	handler.Process(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "2025-11-28", mock.processDate)

	mock.err = appErrors.Clone(appErrors.ErrConflict, "already processed")
	c, w = newJSONContext(t, http.MethodPost, "/substitutions/process", dto.ProcessDateRequest{Date: "2025-11-27"})
	handler.Process(c)
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "2025-11-27", mock.processDate)
}

func TestSubstitutionHandlerListPending(t *testing.T) {
	sub := "T005"
	mock := &substitutionServiceMock{pending: []models.PendingAssignment{
		{AbsentTeacherID: "T017", Period: 1, SubstituteTeacherID: &sub},
		{AbsentTeacherID: "T017", Period: 2},
	}}
	handler := NewSubstitutionHandler(mock)

	c, w := newJSONContext(t, http.MethodGet, "/substitutions/pending?date=2025-11-27", nil)
	handler.ListPending(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "2025-11-27", mock.pendingDate)
	meta := decodeEnvelope(t, w)["meta"].(map[string]interface{})
	require.Equal(t, "1/2 (50.0%)", meta["coverage"])
}

func TestSubstitutionHandlerListExpired(t *testing.T) {
	mock := &substitutionServiceMock{expiredRows: []models.PendingAssignment{
		{AbsentTeacherID: "T003", Date: "2025-11-20", Period: 4, Status: models.AssignmentStatusExpired},
	}}
	handler := NewSubstitutionHandler(mock)

	c, w := newJSONContext(t, http.MethodGet, "/substitutions/expired", nil)
	handler.ListExpired(c)
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	require.Len(t, envelope["data"].([]interface{}), 1)
	require.Equal(t, float64(1), envelope["meta"].(map[string]interface{})["count"])
}

func TestSubstitutionHandlerReconcileRejectionCarriesMessage(t *testing.T) {
	mock := &substitutionServiceMock{err: appErrors.Clone(appErrors.ErrReportFuture, "")}
	handler := NewSubstitutionHandler(mock)

	c, w := newJSONContext(t, http.MethodPost, "/substitutions/reconcile", dto.ReconcileRequest{Report: "[REPORT] 2099-01-01", DryRun: true})
	handler.Reconcile(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.True(t, mock.dryRun)
	envelope := decodeEnvelope(t, w)
	require.Equal(t, "rejected: REPORT_FUTURE_DATE", envelope["meta"].(map[string]interface{})["message"])
	require.Equal(t, "REPORT_FUTURE_DATE", envelope["error"].(map[string]interface{})["code"])
}

func TestSubstitutionHandlerConfirm(t *testing.T) {
	mock := &substitutionServiceMock{confirm: &service.ConfirmResult{Message: "ok"}}
	handler := NewSubstitutionHandler(mock)

	c, w := newJSONContext(t, http.MethodPost, "/substitutions/confirm", dto.ConfirmReportRequest{Report: "[REPORT] 2025-11-28", VerifiedBy: "admin"})
	handler.Confirm(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "admin", mock.verifiedBy)

	c, w = newJSONContext(t, http.MethodPost, "/substitutions/confirm", "{")
	handler.Confirm(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubstitutionHandlerFinalizeAndExpire(t *testing.T) {
	mock := &substitutionServiceMock{expired: 4}
	handler := NewSubstitutionHandler(mock)

	c, w := newJSONContext(t, http.MethodPost, "/substitutions/finalize", dto.FinalizeRequest{Date: "2025-11-28", VerifiedBy: "admin"})
	handler.Finalize(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "บันทึกลงทะเบียนแล้ว")

	c, w = newJSONContext(t, http.MethodPost, "/substitutions/expire", nil)
	handler.Expire(c)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	require.EqualValues(t, 4, data["expired"])
}
