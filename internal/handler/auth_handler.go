package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/monitor"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/session"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/util"
)

var errIncorrectCredentials = errors.New("incorrect credentials")

// AuthHandler handles HTTP requests for the admin session lifecycle
type AuthHandler struct {
	store    *session.Store
	monitor  *monitor.Monitor
	logger   *zap.Logger
	validate *validator.Validate
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(store *session.Store, mon *monitor.Monitor, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		store:    store,
		monitor:  mon,
		logger:   logger,
		validate: validator.New(),
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type sessionResponse struct {
	AdminID     string `json:"admin_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	ExpiresAt   string `json:"expires_at"`
	State       string `json:"state"`
}

// RegisterRoutes registers all admin session routes
func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/admin", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Post("/renew", h.Renew)
		r.Get("/session", h.Session)
		r.Get("/alerts", h.Alerts)
	})
}

// Login authenticates an admin and installs a session. Credential
// failures and malformed input share one generic message so the
// response never reveals which field was wrong.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, errIncorrectCredentials, "Login failed")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondWithError(w, h.logger, http.StatusUnauthorized, errIncorrectCredentials, "Login failed")
		return
	}

	rec, err := h.store.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		var limited *session.ErrRateLimited
		switch {
		case errors.As(err, &limited):
			w.Header().Set("Retry-After", strconv.Itoa(int(limited.RetryAfter.Seconds())))
			respondWithError(w, h.logger, http.StatusTooManyRequests, err,
				fmt.Sprintf("Too many login attempts, try again in %s", limited.RetryAfter.Round(time.Second)))
		case errors.Is(err, session.ErrInvalidCredentials),
			errors.Is(err, session.ErrInvalidInput):
			respondWithError(w, h.logger, http.StatusUnauthorized, errIncorrectCredentials, "Login failed")
		default:
			respondWithError(w, h.logger, http.StatusServiceUnavailable, errors.New("service unavailable"), "Login failed")
		}
		return
	}

	util.Info("Admin logged in", util.String("admin_id", rec.AdminID))
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(sessionResponse{
		AdminID:     rec.AdminID,
		DisplayName: rec.DisplayName,
		Email:       rec.Email,
		ExpiresAt:   rec.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		State:       session.StateActive.String(),
	}, "Login successful"))
}

// Logout clears the session; safe to call when none is active
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.store.Logout(r.Context())
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(nil, "Logged out"))
}

// Renew extends the active session by the full lifetime.
func (h *AuthHandler) Renew(w http.ResponseWriter, r *http.Request) {
	renewed, err := h.store.Renew(r.Context())
	if err != nil {
		respondWithError(w, h.logger, http.StatusServiceUnavailable, errors.New("service unavailable"), "Renewal failed")
		return
	}
	if !renewed {
		respondWithError(w, h.logger, http.StatusUnauthorized, errors.New("no active session"), "Renewal failed")
		return
	}

	state, rec := h.store.Check(r.Context())
	if state != session.StateActive || rec == nil {
		respondWithError(w, h.logger, http.StatusUnauthorized, errors.New("no active session"), "Renewal failed")
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(sessionResponse{
		AdminID:     rec.AdminID,
		DisplayName: rec.DisplayName,
		Email:       rec.Email,
		ExpiresAt:   rec.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		State:       state.String(),
	}, "Session renewed"))
}

// Session reports the current session state.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	state, rec := h.store.Check(r.Context())
	if state != session.StateActive || rec == nil {
		respondWithJSON(w, h.logger, http.StatusOK, successResponse(sessionResponse{
			State: session.StateLoggedOut.String(),
		}, "No active session"))
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, successResponse(sessionResponse{
		AdminID:     rec.AdminID,
		DisplayName: rec.DisplayName,
		Email:       rec.Email,
		ExpiresAt:   rec.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		State:       state.String(),
	}, "Session active"))
}

// Alerts returns recent security alerts for an active admin session.
func (h *AuthHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	state, _ := h.store.Check(r.Context())
	if state != session.StateActive {
		respondWithError(w, h.logger, http.StatusUnauthorized, errors.New("no active session"), "Authentication required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	alerts := h.monitor.RecentAlerts(limit)
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(alerts, "Recent security alerts"))
}
