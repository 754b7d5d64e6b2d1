package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/dto"
	"github.com/noah-isme/sma-billing-api/internal/middleware"
	"github.com/noah-isme/sma-billing-api/internal/models"
	appErrors "github.com/noah-isme/sma-billing-api/pkg/errors"
)

type termServiceMock struct {
	lastReq     dto.GenerateTermsRequest
	generateErr error
	listAccount string
	listResp    []models.InstallmentTermView
}

func (m *termServiceMock) GenerateTerms(ctx context.Context, req dto.GenerateTermsRequest) (*dto.GenerateTermsResult, error) {
	m.lastReq = req
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return &dto.GenerateTermsResult{Assessment: models.Assessment{AccountID: req.AccountID, TotalAmount: req.TotalAmount}}, nil
}

func (m *termServiceMock) ListTerms(ctx context.Context, accountID string) ([]models.InstallmentTermView, error) {
	m.listAccount = accountID
	return m.listResp, nil
}

type paymentServiceMock struct {
	lastReq dto.AllocatePaymentRequest
	err     error
}

func (m *paymentServiceMock) AllocatePayment(ctx context.Context, req dto.AllocatePaymentRequest) (*dto.AllocationResult, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &dto.AllocationResult{AccountID: req.AccountID, AppliedAmount: req.Amount, RemainderAmount: decimal.Zero}, nil
}

type accountServiceMock struct {
	err error
}

func (m accountServiceMock) Summary(ctx context.Context, accountID string) (*models.AccountSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.AccountSummary{AccountID: accountID, Balance: decimal.RequireFromString("150.00")}, nil
}

type sweepServiceMock struct {
	called bool
	now    time.Time
}

func (m *sweepServiceMock) Run(ctx context.Context, now time.Time) (*dto.SweepOverdueResult, error) {
	m.called = true
	m.now = now
	return &dto.SweepOverdueResult{Transitioned: 2, AccountsSwept: 1}, nil
}

func newTestContext(method, target, body string, params gin.Params, role models.UserRole) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = params
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role})
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTermHandlerGenerate(t *testing.T) {
	svc := &termServiceMock{}
	handler := NewTermHandler(svc)

	c, w := newTestContext(http.MethodPost, "/accounts/acc-1/terms",
		`{"total_amount":"10000.00","schedule_start":"2025-08-01","policy":"UNIFORM"}`,
		gin.Params{{Key: "accountId", Value: "acc-1"}}, models.RoleBursar)
	handler.Generate(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "acc-1", svc.lastReq.AccountID)
	assert.True(t, decimal.RequireFromString("10000").Equal(svc.lastReq.TotalAmount))
	assert.Equal(t, models.SplitPolicyUniform, svc.lastReq.Policy)
	assert.Equal(t, "2025-08-01", svc.lastReq.ScheduleStart)
}

func TestTermHandlerGenerateAcceptsNumericAmount(t *testing.T) {
	svc := &termServiceMock{}
	handler := NewTermHandler(svc)

	c, w := newTestContext(http.MethodPost, "/accounts/acc-1/terms", `{"total_amount":2500.5,"schedule_start":"2025-08-01"}`,
		gin.Params{{Key: "accountId", Value: "acc-1"}}, models.RoleAdmin)
	handler.Generate(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, decimal.RequireFromString("2500.50").Equal(svc.lastReq.TotalAmount))
}

func TestTermHandlerGenerateInvalidBody(t *testing.T) {
	svc := &termServiceMock{}
	handler := NewTermHandler(svc)

	c, w := newTestContext(http.MethodPost, "/accounts/acc-1/terms", `{"total_amount":`, gin.Params{{Key: "accountId", Value: "acc-1"}}, models.RoleAdmin)
	handler.Generate(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.lastReq.AccountID)
}

func TestTermHandlerGenerateMapsDomainErrors(t *testing.T) {
	svc := &termServiceMock{generateErr: appErrors.Clone(appErrors.ErrInsufficientTermData, "schedule_start is required")}
	handler := NewTermHandler(svc)

	c, w := newTestContext(http.MethodPost, "/accounts/acc-1/terms", `{"total_amount":"100"}`, gin.Params{{Key: "accountId", Value: "acc-1"}}, models.RoleAdmin)
	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeEnvelope(t, w)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "INSUFFICIENT_TERM_DATA", errBody["code"])
}

func TestTermHandlerList(t *testing.T) {
	svc := &termServiceMock{listResp: []models.InstallmentTermView{{}, {}}}
	handler := NewTermHandler(svc)

	c, w := newTestContext(http.MethodGet, "/accounts/acc-7/terms", "", gin.Params{{Key: "accountId", Value: "acc-7"}}, models.RoleSystem)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acc-7", svc.listAccount)
	body := decodeEnvelope(t, w)
	assert.Equal(t, float64(2), body["meta"].(map[string]interface{})["count"])
}

func TestPaymentHandlerAllocate(t *testing.T) {
	svc := &paymentServiceMock{}
	handler := NewPaymentHandler(svc)

	c, w := newTestContext(http.MethodPost, "/accounts/acc-1/payments", `{"amount":"150.00","term_id":"t-2","payment_id":"pay-1"}`,
		gin.Params{{Key: "accountId", Value: "acc-1"}}, models.RoleSystem)
	handler.Allocate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "acc-1", svc.lastReq.AccountID)
	assert.Equal(t, "t-2", svc.lastReq.TermID)
	assert.Equal(t, "pay-1", svc.lastReq.PaymentID)
}

func TestPaymentHandlerConcurrentModificationSetsRetryAfter(t *testing.T) {
	svc := &paymentServiceMock{err: appErrors.WrapAs(errors.New("lock timeout"), appErrors.ErrConcurrentModification, "")}
	handler := NewPaymentHandler(svc)

	c, w := newTestContext(http.MethodPost, "/accounts/acc-1/payments", `{"amount":"10"}`, gin.Params{{Key: "accountId", Value: "acc-1"}}, models.RoleBursar)
	handler.Allocate(c)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "CONCURRENT_MODIFICATION", errBody["code"])
	assert.Equal(t, true, errBody["retryable"])
}

func TestPaymentHandlerOwnershipMismatch(t *testing.T) {
	svc := &paymentServiceMock{err: appErrors.Clone(appErrors.ErrTermOwnershipMismatch, "")}
	handler := NewPaymentHandler(svc)

	c, w := newTestContext(http.MethodPost, "/accounts/acc-1/payments", `{"amount":"10","term_id":"x"}`, gin.Params{{Key: "accountId", Value: "acc-1"}}, models.RoleBursar)
	handler.Allocate(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAccountHandlerSummary(t *testing.T) {
	handler := NewAccountHandler(accountServiceMock{})
	c, w := newTestContext(http.MethodGet, "/accounts/acc-1/summary", "", gin.Params{{Key: "accountId", Value: "acc-1"}}, models.RoleAdmin)
	handler.Summary(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "acc-1", data["account_id"])
	assert.Equal(t, "150", data["balance"])

	missing := NewAccountHandler(accountServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "account not found")})
	c, w = newTestContext(http.MethodGet, "/accounts/nope/summary", "", gin.Params{{Key: "accountId", Value: "nope"}}, models.RoleAdmin)
	missing.Summary(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSweepHandlerTrigger(t *testing.T) {
	svc := &sweepServiceMock{}
	handler := NewSweepHandler(svc)

	c, w := newTestContext(http.MethodPost, "/billing/overdue-sweep", "", nil, models.RoleAdmin)
	handler.Trigger(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.called)
	assert.True(t, svc.now.IsZero())
}

func TestSweepHandlerClockOverride(t *testing.T) {
	svc := &sweepServiceMock{}
	handler := NewSweepHandler(svc)

	c, w := newTestContext(http.MethodPost, "/billing/overdue-sweep", `{"now":"2025-09-13T00:00:00Z"}`, nil, models.RoleAdmin)
	handler.Trigger(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, svc.called)

	c, w = newTestContext(http.MethodPost, "/billing/overdue-sweep", `{"now":"2025-09-13T00:00:00Z"}`, nil, models.RoleSystem)
	handler.Trigger(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, time.Date(2025, 9, 13, 0, 0, 0, 0, time.UTC).Equal(svc.now))
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(ctx context.Context) error { return nil }),
		"redis":    PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/ready", nil)
	handler.Ready(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["postgres"])
	assert.Equal(t, "connection refused", checks["redis"])
}
