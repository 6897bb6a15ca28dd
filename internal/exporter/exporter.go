// Package exporter writes audit-trail and license reports to .xlsx
// workbooks for the reports module's export action. Small Indian businesses
// hand these files to their accountants, so Excel is the target format.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"vyaparcli/internal/audit"
	"vyaparcli/internal/license"
)

// Exporter writes workbooks into the configured export directory
type Exporter struct {
	exportDir string
	logger    *slog.Logger
}

// New creates an exporter
func New(exportDir string, logger *slog.Logger) *Exporter {
	return &Exporter{
		exportDir: exportDir,
		logger:    logger.With(slog.String("component", "exporter")),
	}
}

// ExportAuditTrail writes the given audit entries to an .xlsx workbook and
// returns the written file path
func (e *Exporter) ExportAuditTrail(ctx context.Context, entries []audit.Entry) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Audit Trail"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", fmt.Errorf("failed to rename sheet: %w", err)
	}

	headers := []string{"ID", "User ID", "Action", "Module", "Record ID", "Old Values", "New Values", "Timestamp"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, entry := range entries {
		values := []interface{}{
			entry.ID,
			strconv.FormatUint(entry.UserID, 10),
			entry.Action,
			entry.Module,
			entry.RecordID,
			flattenValues(entry.OldValues),
			flattenValues(entry.NewValues),
			entry.Timestamp.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return "", fmt.Errorf("failed to write row %d: %w", row+1, err)
			}
		}
	}

	path := e.outputPath("audit_trail")
	if err := e.save(f, path); err != nil {
		return "", err
	}

	e.logger.InfoContext(ctx, "audit trail exported",
		slog.String("path", path),
		slog.Int("entries", len(entries)))
	return path, nil
}

// ExportLicenseStatus writes the entitlement snapshot to an .xlsx workbook
func (e *Exporter) ExportLicenseStatus(ctx context.Context, status *license.Status) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "License"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return "", fmt.Errorf("failed to rename sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Plan", status.PlanName},
		{"State", string(status.State)},
		{"Valid", status.Valid},
		{"Max Users", status.MaxUsers},
		{"Activation Date", formatDate(status.ActivationDate)},
		{"Expiry Date", formatDate(status.ExpiryDate)},
		{"Days Remaining", status.DaysRemaining},
		{"Machine Bound", status.MachineBound},
	}
	for i, row := range rows {
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+1)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return "", fmt.Errorf("failed to write status row: %w", err)
			}
		}
	}

	moduleRow := len(rows) + 2
	if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", moduleRow), "Modules"); err != nil {
		return "", err
	}
	for i, module := range status.Modules {
		cell, _ := excelize.CoordinatesToCellName(2, moduleRow+i)
		if err := f.SetCellValue(sheet, cell, module); err != nil {
			return "", err
		}
	}

	path := e.outputPath("license_status")
	if err := e.save(f, path); err != nil {
		return "", err
	}

	e.logger.InfoContext(ctx, "license status exported", slog.String("path", path))
	return path, nil
}

// outputPath builds a timestamped file name inside the export directory
func (e *Exporter) outputPath(prefix string) string {
	name := fmt.Sprintf("%s_%s.xlsx", prefix, time.Now().Format("20060102_150405"))
	return filepath.Join(e.exportDir, name)
}

// save ensures the export directory exists and writes the workbook
func (e *Exporter) save(f *excelize.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// flattenValues renders a value map as "k=v; k=v" for a single cell
func flattenValues(values map[string]string) string {
	if len(values) == 0 {
		return ""
	}
	out := ""
	for k, v := range values {
		if out != "" {
			out += "; "
		}
		out += k + "=" + v
	}
	return out
}

// formatDate renders a date cell, empty for the zero time
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
