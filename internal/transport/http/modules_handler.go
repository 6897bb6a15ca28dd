package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"vyaparcli/internal/audit"
	"vyaparcli/internal/authz"
	apperrors "vyaparcli/internal/errors"
	"vyaparcli/internal/exporter"
	"vyaparcli/internal/license"
)

// ModulesHandler answers which modules the shell should render, and serves
// the reports module's export action. A module shows up only when the
// license covers it AND the signed-in role can view it.
type ModulesHandler struct {
	manager  *license.Manager
	gate     *authz.Gate
	trail    *audit.Trail
	exporter *exporter.Exporter
	logger   *slog.Logger
}

// NewModulesHandler creates a modules handler
func NewModulesHandler(manager *license.Manager, gate *authz.Gate, trail *audit.Trail, exp *exporter.Exporter, logger *slog.Logger) *ModulesHandler {
	return &ModulesHandler{
		manager:  manager,
		gate:     gate,
		trail:    trail,
		exporter: exp,
		logger:   logger.With(slog.String("handler", "modules")),
	}
}

// ModuleInfo describes one module's availability
type ModuleInfo struct {
	Module     string `json:"module"`
	Licensed   bool   `json:"licensed"`
	Accessible bool   `json:"accessible"`
}

// Routes returns the chi router for module endpoints
func (h *ModulesHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListModules)
	r.Post("/reports/export/audit", h.ExportAudit)
	r.Post("/reports/export/license", h.ExportLicense)

	return r
}

// ListModules reports availability for all 9 modules
func (h *ModulesHandler) ListModules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	accessible := make(map[string]bool)
	for _, m := range h.gate.AccessibleModules(ctx) {
		accessible[m] = true
	}

	infos := make([]ModuleInfo, 0, len(license.AllModules))
	for _, module := range license.AllModules {
		infos = append(infos, ModuleInfo{
			Module:     module,
			Licensed:   h.manager.IsModuleEnabled(ctx, module),
			Accessible: accessible[module],
		})
	}
	render.JSON(w, r, map[string]interface{}{"success": true, "modules": infos})
}

// ExportAudit writes the audit trail to a workbook. Both gates apply: the
// license must cover reports and the role must hold can_export on it.
func (h *ModulesHandler) ExportAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.assertExportAllowed(w, r); err != nil {
		return
	}

	entries, err := h.trail.List(ctx, audit.Filter{})
	if err != nil {
		h.logger.ErrorContext(ctx, "audit listing failed", slog.String("error", err.Error()))
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.ErrInternalServer))
		return
	}

	path, err := h.exporter.ExportAuditTrail(ctx, entries)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit export failed", slog.String("error", err.Error()))
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.ErrInternalServer))
		return
	}

	h.recordExport(ctx, "audit_trail", path)
	render.JSON(w, r, map[string]interface{}{"success": true, "path": path})
}

// ExportLicense writes the entitlement snapshot to a workbook
func (h *ModulesHandler) ExportLicense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.assertExportAllowed(w, r); err != nil {
		return
	}

	status, err := h.manager.Status(ctx)
	if err != nil {
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.ErrInternalServer))
		return
	}

	path, err := h.exporter.ExportLicenseStatus(ctx, status)
	if err != nil {
		h.logger.ErrorContext(ctx, "license export failed", slog.String("error", err.Error()))
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.ErrInternalServer))
		return
	}

	h.recordExport(ctx, "license_status", path)
	render.JSON(w, r, map[string]interface{}{"success": true, "path": path})
}

// assertExportAllowed runs the license guard then the permission guard,
// rendering the first failure. A nil return means the caller may proceed.
func (h *ModulesHandler) assertExportAllowed(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	if err := h.manager.AssertModuleLicensed(ctx, license.ModuleReports); err != nil {
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.APIErrorFor(err)))
		return err
	}
	if err := h.gate.AssertPermission(ctx, license.ModuleReports, authz.ActionExport); err != nil {
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.APIErrorFor(err)))
		return err
	}
	return nil
}

// recordExport audits a completed export
func (h *ModulesHandler) recordExport(ctx context.Context, kind, path string) {
	entry := audit.Entry{
		Action: audit.ActionExport,
		Module: license.ModuleReports,
		NewValues: map[string]string{
			"kind": kind,
			"path": path,
		},
	}
	if session := h.gate.Session().Get(); session != nil {
		entry.UserID = session.UserID
	}
	if err := h.trail.Record(ctx, entry); err != nil {
		h.logger.WarnContext(ctx, "export audit failed", slog.String("error", err.Error()))
	}
}
