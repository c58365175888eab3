package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/backend"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/config"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/models"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/monitor"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/ratelimit"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/session"
)

type harness struct {
	router  http.Handler
	backend *backend.Fake
	mon     *monitor.Monitor
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	codec, err := session.NewCodec(&config.Config{}, nil)
	require.NoError(t, err)

	fake := backend.NewFake()
	fake.AddAdmin("direction@school.test", "correct-horse-battery", backend.Identity{
		AdminID:     "adm-1001",
		DisplayName: "Direction",
		Email:       "direction@school.test",
	})

	mon := monitor.NewMonitor(fake, time.Hour)
	vault := session.NewMemoryVault()
	store := session.NewStore(vault, codec, fake,
		ratelimit.NewSlidingWindow(3, 15*time.Minute),
		8*time.Hour,
		session.WithReporter(mon),
	)
	antiForgery := session.NewAntiForgery(vault, 30*time.Minute)

	logger := zap.NewNop()
	authHandler := NewAuthHandler(store, mon, logger)
	formsHandler := NewFormsHandler(monitor.NewContentGuard(mon), mon, antiForgery,
		ratelimit.NewSlidingWindow(10, time.Minute), logger)

	return &harness{
		router:  NewRouter(authHandler, formsHandler, mon, logger, false),
		backend: fake,
		mon:     mon,
	}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}, header map[string]string) (*httptest.ResponseRecorder, Response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)

	var resp Response
	if rr.Body.Len() > 0 {
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	}
	return rr, resp
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	rr, _ := h.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{
		"email":    "direction@school.test",
		"password": "correct-horse-battery",
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthEndpoint(t *testing.T) {
	h := newHarness(t)
	rr, _ := h.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	rr, resp := h.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{
		"email":    "direction@school.test",
		"password": "correct-horse-battery",
	}, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, resp.Success)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "adm-1001", data["admin_id"])
	assert.Equal(t, "active", data["state"])
}

func TestLogin_WrongPassword(t *testing.T) {
	h := newHarness(t)

	rr, resp := h.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{
		"email":    "direction@school.test",
		"password": "definitely-wrong",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "incorrect credentials", resp.Error, "wrong email and wrong password read identically")
}

func TestLogin_UnknownEmailReadsTheSame(t *testing.T) {
	h := newHarness(t)

	rr, resp := h.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{
		"email":    "nobody@school.test",
		"password": "irrelevant-secret",
	}, nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "incorrect credentials", resp.Error)
}

func TestLogin_RateLimited(t *testing.T) {
	h := newHarness(t)

	body := map[string]string{
		"email":    "direction@school.test",
		"password": "definitely-wrong",
	}
	for i := 0; i < 3; i++ {
		rr, _ := h.do(t, http.MethodPost, "/api/v1/admin/login", body, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	rr, resp := h.do(t, http.MethodPost, "/api/v1/admin/login", body, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Contains(t, resp.Message, "try again in")
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t)

	_, resp := h.do(t, http.MethodGet, "/api/v1/admin/session", nil, nil)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "logged_out", data["state"])

	h.login(t)

	_, resp = h.do(t, http.MethodGet, "/api/v1/admin/session", nil, nil)
	data = resp.Data.(map[string]interface{})
	assert.Equal(t, "active", data["state"])

	rr, _ := h.do(t, http.MethodPost, "/api/v1/admin/renew", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = h.do(t, http.MethodPost, "/api/v1/admin/logout", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	_, resp = h.do(t, http.MethodGet, "/api/v1/admin/session", nil, nil)
	data = resp.Data.(map[string]interface{})
	assert.Equal(t, "logged_out", data["state"])
}

func TestRenew_WithoutSession(t *testing.T) {
	h := newHarness(t)
	rr, _ := h.do(t, http.MethodPost, "/api/v1/admin/renew", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAlerts_RequiresSession(t *testing.T) {
	h := newHarness(t)
	rr, _ := h.do(t, http.MethodGet, "/api/v1/admin/alerts", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAlerts_ListsRecent(t *testing.T) {
	h := newHarness(t)

	// A failed login leaves an alert behind.
	h.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{
		"email":    "direction@school.test",
		"password": "definitely-wrong",
	}, nil)

	h.login(t)

	rr, resp := h.do(t, http.MethodGet, "/api/v1/admin/alerts", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	alerts, ok := resp.Data.([]interface{})
	require.True(t, ok)
	require.NotEmpty(t, alerts)
	first := alerts[0].(map[string]interface{})
	assert.Equal(t, models.AlertFailedLogin, first["type"])
}

func formToken(t *testing.T, h *harness) string {
	t.Helper()
	rr, resp := h.do(t, http.MethodGet, "/api/v1/forms/token", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	data := resp.Data.(map[string]interface{})
	token, _ := data["csrf_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func validLead() map[string]string {
	return map[string]string{
		"parent_name": "Leila Benali",
		"email":       "leila@parents.test",
		"phone":       "+212612345678",
		"message":     "We would like to visit the school next week.",
	}
}

func TestLeadForm_Accepted(t *testing.T) {
	h := newHarness(t)
	token := formToken(t, h)

	rr, resp := h.do(t, http.MethodPost, "/api/v1/forms/lead", validLead(),
		map[string]string{"X-CSRF-Token": token})

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.True(t, resp.Success)
}

func TestLeadForm_MissingToken(t *testing.T) {
	h := newHarness(t)

	rr, _ := h.do(t, http.MethodPost, "/api/v1/forms/lead", validLead(), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestLeadForm_InjectionRefused(t *testing.T) {
	h := newHarness(t)
	token := formToken(t, h)

	lead := validLead()
	lead["message"] = "<script>document.location='https://evil.test'</script>"

	rr, resp := h.do(t, http.MethodPost, "/api/v1/forms/lead", lead,
		map[string]string{"X-CSRF-Token": token})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.NotContains(t, resp.Message, "script", "refusal must not echo the heuristic")
	assert.Contains(t, h.backend.AlertTypes(), models.AlertInjectionAttempt)
}

func TestLeadForm_ValidationErrors(t *testing.T) {
	h := newHarness(t)
	token := formToken(t, h)

	lead := validLead()
	lead["parent_name"] = ""
	lead["message"] = "short"

	rr, resp := h.do(t, http.MethodPost, "/api/v1/forms/lead", lead,
		map[string]string{"X-CSRF-Token": token})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, resp.Message, "parent_name")
	assert.Contains(t, resp.Message, "message")
}

func TestLeadForm_RateLimited(t *testing.T) {
	h := newHarness(t)
	token := formToken(t, h)

	for i := 0; i < 10; i++ {
		rr, _ := h.do(t, http.MethodPost, "/api/v1/forms/lead", validLead(),
			map[string]string{"X-CSRF-Token": token})
		require.Equal(t, http.StatusAccepted, rr.Code)
	}

	rr, resp := h.do(t, http.MethodPost, "/api/v1/forms/lead", validLead(),
		map[string]string{"X-CSRF-Token": token})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Contains(t, resp.Message, "try again in")
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)
	rr, _ := h.do(t, http.MethodGet, "/api/v1/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
