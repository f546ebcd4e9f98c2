package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"leakage-dashboard/internal/errors"
	"leakage-dashboard/internal/leakage"
	"leakage-dashboard/internal/observability"
	"leakage-dashboard/internal/services"
)

const (
	flaggedSheet = "Flagged"
	ruleSheet    = "Rule"
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ExportHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewExportHandlers(analytics *services.Analytics, logger *slog.Logger) *ExportHandlers {
	return &ExportHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// HandleExport downloads every flagged row of the filtered view in the
// page's table columns, as xlsx or csv.
func (h *ExportHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromPath(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	format := r.PathValue("format")
	if format != "xlsx" && format != "csv" {
		writeError(w, r, h.logger, errors.NotFound(fmt.Sprintf("unsupported export format %q", format)))
		return
	}

	query, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	flagged, err := h.analytics.Flagged(r.Context(), page.Rule, query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	logger := observability.RequestLogger(r.Context(), h.logger)
	filename := fmt.Sprintf("%s_%s.%s", flagged.FlagName(), time.Now().Format("20060102"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-store")

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		if err := writeCSV(w, page, flagged); err != nil {
			logger.Error("write csv export", "error", err, "domain", page.Slug())
		}
		return
	}

	f, err := buildWorkbook(page, flagged)
	if err != nil {
		writeError(w, r, h.logger, errors.InternalWrap(err, "Failed to build export"))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxMIME)
	if err := f.Write(w); err != nil {
		logger.Error("write xlsx export", "error", err, "domain", page.Slug())
	}
}

func writeCSV(w io.Writer, page services.Page, flagged *leakage.Table) error {
	// UTF-8 BOM so spreadsheet tools pick the right encoding
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(page.ColumnNames()); err != nil {
		return err
	}
	record := make([]string, len(page.TableColumns))
	for i := range flagged.Len() {
		tx := flagged.Row(i)
		for j, c := range page.TableColumns {
			record[j] = c.Text(&tx)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellValue(c leakage.Column, t *leakage.Table, i int) any {
	row := t.Row(i)
	switch c.Kind() {
	case leakage.KindIdentifier:
		return c.Text(&row)
	case leakage.KindInteger:
		return int64(c.Float(&row))
	default:
		return c.Float(&row)
	}
}

// buildWorkbook returns the flagged rows as a two-sheet workbook. The caller
// closes the file on success.
func buildWorkbook(page services.Page, flagged *leakage.Table) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := fillWorkbook(f, page, flagged); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func fillWorkbook(f *excelize.File, page services.Page, flagged *leakage.Table) error {
	if err := f.SetSheetName(f.GetSheetName(0), flaggedSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(page.TableColumns))
	for i, c := range page.TableColumns {
		header[i] = c.String()
	}
	if err := f.SetSheetRow(flaggedSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(page.TableColumns))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(flaggedSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(flaggedSheet, "A", lastCol, 20); err != nil {
		return fmt.Errorf("set width: %w", err)
	}

	for i := range flagged.Len() {
		row := make([]any, len(page.TableColumns))
		for j, c := range page.TableColumns {
			row[j] = cellValue(c, flagged, i)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(flaggedSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.NewSheet(ruleSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	meta := [][]any{
		{"Module", page.Title},
		{"Flag", flagged.FlagName()},
		{"Rule", page.Rule.Describe()},
		{"Flagged rows", flagged.Len()},
		{"Exported", time.Now().UTC().Format(time.RFC3339)},
	}
	for i, line := range meta {
		if err := f.SetSheetRow(ruleSheet, "A"+strconv.Itoa(i+1), &line); err != nil {
			return fmt.Errorf("write rule sheet: %w", err)
		}
	}
	if err := f.SetColWidth(ruleSheet, "A", "A", 16); err != nil {
		return err
	}
	if err := f.SetColWidth(ruleSheet, "B", "B", 90); err != nil {
		return err
	}

	return nil
}
