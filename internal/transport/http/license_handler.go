package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"vyaparcli/internal/audit"
	apperrors "vyaparcli/internal/errors"
	"vyaparcli/internal/license"
)

var validate = validator.New()

// LicenseHandler exposes the entitlement engine to the desktop shell
type LicenseHandler struct {
	manager *license.Manager
	trail   *audit.Trail
	logger  *slog.Logger
}

// NewLicenseHandler creates a license handler
func NewLicenseHandler(manager *license.Manager, trail *audit.Trail, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		manager: manager,
		trail:   trail,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// ActivationRequest is the activation payload
type ActivationRequest struct {
	LicenseKey string `json:"license_key" validate:"required"`
}

// Bind implements render.Binder: shape validation happens here so the
// manager only ever sees well-formed requests
func (a *ActivationRequest) Bind(r *http.Request) error {
	if err := validate.Struct(a); err != nil {
		return errors.New("license_key is required")
	}
	return license.ValidateKeyFormat(a.LicenseKey)
}

// StatusResponse wraps the entitlement snapshot
type StatusResponse struct {
	Success bool            `json:"success"`
	Status  *license.Status `json:"status"`
}

// Render implements render.Renderer
func (s *StatusResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// Routes returns the chi router for license endpoints
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/status", h.GetStatus)
	r.Post("/activate", h.Activate)
	r.Post("/trial", h.StartTrial)

	return r
}

// GetStatus returns the current entitlement snapshot
func (h *LicenseHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.manager.Status(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "status lookup failed", slog.String("error", err.Error()))
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.ErrInternalServer))
		return
	}
	render.Render(w, r, &StatusResponse{Success: true, Status: status})
}

// Activate activates a license key on this machine
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ActivationRequest
	if err := render.Bind(r, &req); err != nil {
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.APIErrorFor(apperrors.ErrInvalidLicenseFormat)))
		return
	}

	status, err := h.manager.Activate(ctx, req.LicenseKey)
	if err != nil {
		// Expected license outcomes log at warn; anything else is an
		// internal failure worth a louder signal.
		level := slog.LevelError
		if apperrors.IsLicenseError(err) {
			level = slog.LevelWarn
		}
		h.logger.Log(ctx, level, "activation failed",
			slog.String("key_masked", license.MaskKey(req.LicenseKey)),
			slog.String("error", err.Error()))
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.APIErrorFor(err)))
		return
	}

	_ = h.trail.Record(ctx, audit.Entry{
		Action: audit.ActionLicenseActivate,
		Module: "settings",
		NewValues: map[string]string{
			"plan":       string(status.Plan),
			"key_masked": license.MaskKey(req.LicenseKey),
		},
	})

	render.Status(r, http.StatusCreated)
	render.Render(w, r, &StatusResponse{Success: true, Status: status})
}

// StartTrial mints and activates a trial license
func (h *LicenseHandler) StartTrial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := h.manager.StartTrial(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "trial activation failed", slog.String("error", err.Error()))
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.APIErrorFor(err)))
		return
	}

	_ = h.trail.Record(ctx, audit.Entry{
		Action:    audit.ActionLicenseActivate,
		Module:    "settings",
		NewValues: map[string]string{"plan": string(license.PlanTrial)},
	})

	render.Status(r, http.StatusCreated)
	render.Render(w, r, &StatusResponse{Success: true, Status: status})
}
