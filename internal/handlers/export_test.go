package handlers

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"leakage-dashboard/internal/leakage"
	"leakage-dashboard/internal/services"
)

func export(t *testing.T, domain, format, rawQuery string) *httptest.ResponseRecorder {
	t.Helper()
	handlers := NewExportHandlers(createTestAnalytics(), testLogger())

	target := "/api/leakage/" + domain + "/export/" + format
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.SetPathValue("domain", domain)
	req.SetPathValue("format", format)
	w := httptest.NewRecorder()

	handlers.HandleExport(w, req)
	return w
}

func TestExportHandlers_CSV(t *testing.T) {
	w := export(t, "revenue", "csv", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content-type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "profit_leakage_flag_") || !strings.HasSuffix(cd, `.csv"`) {
		t.Errorf("content-disposition = %q", cd)
	}

	body := w.Body.Bytes()
	if !bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}) {
		t.Fatal("expected a UTF-8 BOM")
	}

	records, err := csv.NewReader(bytes.NewReader(body[3:])).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	want := [][]string{
		{"order_id", "revenue", "cost", "discount_percent", "profit_margin_percent"},
		{"O1", "100", "98", "35", "2"},
		{"O3", "300", "295", "40", "1"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestExportHandlers_CSV_Filtered(t *testing.T) {
	w := export(t, "returns", "csv", "quantity_sold_max=2")

	records, err := csv.NewReader(bytes.NewReader(w.Body.Bytes()[3:])).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	// cut-offs follow the view: Q75(refund_amount) = 37.5, Q75(quantity_sold) = 1.75
	var ids []string
	for _, r := range records[1:] {
		ids = append(ids, r[0])
	}
	if diff := cmp.Diff([]string{"O1", "O2"}, ids); diff != "" {
		t.Errorf("exported orders mismatch (-want +got):\n%s", diff)
	}
}

func TestExportHandlers_XLSX(t *testing.T) {
	w := export(t, "inventory", "xlsx", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxMIME {
		t.Errorf("content-type = %q", ct)
	}

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	if diff := cmp.Diff([]string{flaggedSheet, ruleSheet}, f.GetSheetList()); diff != "" {
		t.Errorf("sheets mismatch (-want +got):\n%s", diff)
	}

	rows, err := f.GetRows(flaggedSheet)
	if err != nil {
		t.Fatalf("read rows: %v", err)
	}
	want := [][]string{
		{"product_id", "inventory_level", "reorder_level", "holding_cost", "supplier_delay_days"},
		{"P1", "50", "10", "5", "2"},
		{"P1", "15", "10", "20", "5"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("flagged rows mismatch (-want +got):\n%s", diff)
	}

	flag, err := f.GetCellValue(ruleSheet, "B2")
	if err != nil {
		t.Fatalf("read rule sheet: %v", err)
	}
	if flag != "inventory_leakage_flag" {
		t.Errorf("flag = %q", flag)
	}
}

func TestExportHandlers_Errors(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		format string
		query  string
		status int
	}{
		{"unsupported format", "revenue", "pdf", "", http.StatusNotFound},
		{"unknown domain", "shipping", "csv", "", http.StatusNotFound},
		{"inverted range", "revenue", "xlsx", "revenue_min=9&revenue_max=1", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := export(t, tt.domain, tt.format, tt.query)
			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			if cd := w.Header().Get("Content-Disposition"); cd != "" {
				t.Errorf("error response should not be an attachment, got %q", cd)
			}
		})
	}
}

func TestBuildWorkbook_NoColumns(t *testing.T) {
	flagged := leakage.FlagRisk(leakage.NewTable(nil), leakage.RuleRevenue)

	f, err := buildWorkbook(services.Page{Rule: leakage.RuleRevenue}, flagged)
	if err == nil {
		t.Fatal("expected an error for a page without table columns")
	}
	if f != nil {
		t.Error("failed workbook should not be returned")
	}
}
