package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MenaSaas/casa-hills-web-sub000/internal/backend"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/models"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/monitor"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/ratelimit"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/sanitize"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/session"
	"github.com/MenaSaas/casa-hills-web-sub000/internal/util"
)

const csrfHeader = "X-CSRF-Token"

// FormsHandler handles public enrollment lead form submissions
type FormsHandler struct {
	guard       *monitor.ContentGuard
	monitor     *monitor.Monitor
	antiForgery *session.AntiForgery
	limiter     ratelimit.Limiter
	logger      *zap.Logger
}

// NewFormsHandler creates a new forms handler
func NewFormsHandler(guard *monitor.ContentGuard, mon *monitor.Monitor, af *session.AntiForgery, limiter ratelimit.Limiter, logger *zap.Logger) *FormsHandler {
	return &FormsHandler{
		guard:       guard,
		monitor:     mon,
		antiForgery: af,
		limiter:     limiter,
		logger:      logger,
	}
}

type leadRequest struct {
	ParentName string `json:"parent_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Message    string `json:"message"`
}

// RegisterRoutes registers public form routes
func (h *FormsHandler) RegisterRoutes(router chi.Router) {
	router.Route("/forms", func(r chi.Router) {
		r.Get("/token", h.Token)
		r.Post("/lead", h.SubmitLead)
	})
}

// Token hands out the anti-forgery token a lead submission must echo.
func (h *FormsHandler) Token(w http.ResponseWriter, r *http.Request) {
	token, err := h.antiForgery.Token(r.Context())
	if err != nil {
		respondWithError(w, h.logger, http.StatusServiceUnavailable, errors.New("service unavailable"), "Token unavailable")
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, successResponse(map[string]string{
		"csrf_token": token,
	}, "Token issued"))
}

// SubmitLead validates and accepts one enrollment enquiry. Submissions
// are throttled per client address, checked against the anti-forgery
// token, field-validated after cleaning, and refused outright when any
// field carries active markup. Refusals stay deliberately vague.
func (h *FormsHandler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	addr := backend.ClientAddressFrom(ctx)
	if addr == "" {
		addr = r.RemoteAddr
	}
	if !h.limiter.Allow("form:" + addr) {
		wait := h.limiter.RemainingTime("form:" + addr)
		h.monitor.Report(ctx, models.AlertRateLimitExceeded, models.SeverityMedium,
			"form submission rate limit exceeded", map[string]interface{}{
				"retry_after_seconds": int(wait.Seconds()),
			})
		w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())))
		respondWithError(w, h.logger, http.StatusTooManyRequests,
			errors.New("too many submissions"),
			fmt.Sprintf("Too many submissions, try again in %s", wait.Round(time.Second)))
		return
	}

	if !h.antiForgery.Validate(ctx, r.Header.Get(csrfHeader)) {
		respondWithError(w, h.logger, http.StatusForbidden, errors.New("invalid form token"), "Submission rejected")
		return
	}

	var req leadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, http.StatusBadRequest, errors.New("invalid request body"), "Submission rejected")
		return
	}

	for field, content := range map[string]string{
		"parent_name": req.ParentName,
		"email":       req.Email,
		"phone":       req.Phone,
		"message":     req.Message,
	} {
		if !h.guard.ScanContent(ctx, "lead_form."+field, content) {
			respondWithError(w, h.logger, http.StatusBadRequest, errors.New("invalid submission"), "Submission rejected")
			return
		}
		if sanitize.LooksInjected(content) {
			h.monitor.Report(ctx, models.AlertInjectionAttempt, models.SeverityHigh,
				"injection pattern in form submission", map[string]interface{}{
					"field": field,
				})
			respondWithError(w, h.logger, http.StatusBadRequest, errors.New("invalid submission"), "Submission rejected")
			return
		}
	}

	cleaned := leadRequest{
		ParentName: sanitize.Clean(req.ParentName),
		Email:      sanitize.Clean(req.Email),
		Phone:      sanitize.Clean(req.Phone),
		Message:    sanitize.Clean(req.Message),
	}

	fieldErrors := h.validateLead(cleaned)
	if len(fieldErrors) > 0 {
		respondWithJSON(w, h.logger, http.StatusBadRequest, Response{
			Success: false,
			Error:   "validation failed",
			Message: strings.Join(fieldErrors, "; "),
		})
		return
	}

	util.Info("Lead form accepted",
		util.String("email", cleaned.Email),
		util.Int("message_length", len(cleaned.Message)))
	respondWithJSON(w, h.logger, http.StatusAccepted, successResponse(nil, "Thank you, we will be in touch shortly"))
}

func (h *FormsHandler) validateLead(req leadRequest) []string {
	checks := []struct {
		field string
		value string
		rules sanitize.Rules
	}{
		{"parent_name", req.ParentName, sanitize.Rules{Required: true, MinLength: 2, MaxLength: 100}},
		{"email", req.Email, sanitize.Rules{Required: true, Custom: sanitize.ValidEmail}},
		{"message", req.Message, sanitize.Rules{Required: true, MinLength: 10, MaxLength: 2000}},
	}
	if req.Phone != "" {
		checks = append(checks, struct {
			field string
			value string
			rules sanitize.Rules
		}{"phone", req.Phone, sanitize.Rules{Custom: sanitize.ValidPhone}})
	}

	var fieldErrors []string
	for _, check := range checks {
		result := sanitize.CheckField(check.value, check.rules)
		for _, msg := range result.Errors {
			fieldErrors = append(fieldErrors, check.field+": "+msg)
		}
	}
	return fieldErrors
}
