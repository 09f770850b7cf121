package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/gradpath/gradpath/internal/catalog"
	"github.com/gradpath/gradpath/internal/config"
	entitlementdomain "github.com/gradpath/gradpath/internal/entitlement/domain"
)

type stubEntitlementService struct {
	decision entitlementdomain.Decision
	accepted bool
	record   *entitlementdomain.UsageRecord
	err      error
}

func (s *stubEntitlementService) Evaluate(context.Context, string, string) (entitlementdomain.Decision, error) {
	return s.decision, s.err
}

func (s *stubEntitlementService) Consume(context.Context, string, string) (bool, error) {
	return s.accepted, s.err
}

func (s *stubEntitlementService) GetUsage(context.Context, string, string) (*entitlementdomain.UsageRecord, error) {
	return s.record, s.err
}

func newTestServer(t *testing.T, svc entitlementdomain.Service, cfg config.Config) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	return NewServer(ServerParams{
		Gin:            engine,
		Cfg:            cfg,
		EntitlementSvc: svc,
	})
}

func TestEvaluate_RequiresUserHeader(t *testing.T) {
	srv := newTestServer(t, &stubEntitlementService{}, config.Config{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/entitlements/essay_assistance", nil)
	srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

func TestEvaluate_ReturnsDecision(t *testing.T) {
	srv := newTestServer(t, &stubEntitlementService{
		decision: entitlementdomain.Decision{Allowed: true, Limit: 3, Remaining: 2},
	}, config.Config{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/entitlements/essay_assistance", nil)
	req.Header.Set("X-User-ID", "user-1")
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"allowed":true`)
	assert.Contains(t, rec.Body.String(), `"remaining":2`)
}

func TestEvaluate_UnknownFeatureIsConfigurationError(t *testing.T) {
	srv := newTestServer(t, &stubEntitlementService{err: catalog.ErrUnknownFeature}, config.Config{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/entitlements/time_travel", nil)
	req.Header.Set("X-User-ID", "user-1")
	srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "configuration_error")
}

func TestConsume_Accepted(t *testing.T) {
	srv := newTestServer(t, &stubEntitlementService{accepted: true}, config.Config{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/entitlements/essay_assistance/consume", nil)
	req.Header.Set("X-User-ID", "user-1")
	srv.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"accepted":true`)
}

func TestConsume_StoreDownIs503(t *testing.T) {
	srv := newTestServer(t, &stubEntitlementService{err: entitlementdomain.ErrStoreUnavailable}, config.Config{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/entitlements/essay_assistance/consume", nil)
	req.Header.Set("X-User-ID", "user-1")
	srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetUsage_RequiresAdminKey(t *testing.T) {
	record := &entitlementdomain.UsageRecord{
		UserID:      "user-1",
		FeatureID:   "essay_assistance",
		Count:       2,
		WindowStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		ResetPeriod: catalog.ResetMonthly,
	}
	srv := newTestServer(t, &stubEntitlementService{record: record}, config.Config{AdminAPIKey: "sekrit"})

	// Missing key.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/usage/essay_assistance", nil)
	req.Header.Set("X-User-ID", "user-1")
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong key.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/usage/essay_assistance", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Authorization", "Bearer wrong")
	srv.Engine().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct key.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/usage/essay_assistance", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Authorization", "Bearer sekrit")
	srv.Engine().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
}

func TestGetUsage_DisabledWithoutConfiguredKey(t *testing.T) {
	srv := newTestServer(t, &stubEntitlementService{}, config.Config{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/usage/essay_assistance", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Authorization", "Bearer anything")
	srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetUsage_AbsentRecordIs404(t *testing.T) {
	srv := newTestServer(t, &stubEntitlementService{}, config.Config{AdminAPIKey: "sekrit"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/usage/essay_assistance", nil)
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Authorization", "Bearer sekrit")
	srv.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type stubShutdowner struct {
	calls int
}

func (s *stubShutdowner) Shutdown(...fx.ShutdownOption) error {
	s.calls++
	return nil
}

func TestServe_ListenerFailureRequestsShutdown(t *testing.T) {
	sd := &stubShutdowner{}
	srv := &http.Server{Addr: "127.0.0.1:-1"}

	serve(srv, sd, zap.NewNop())

	assert.Equal(t, 1, sd.calls)
}

func TestServe_ClosedServerExitsQuietly(t *testing.T) {
	sd := &stubShutdowner{}
	srv := &http.Server{Addr: "127.0.0.1:0"}
	require.NoError(t, srv.Close())

	serve(srv, sd, zap.NewNop())

	assert.Equal(t, 0, sd.calls)
}
