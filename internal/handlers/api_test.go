package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"leakage-dashboard/internal/models"
	"leakage-dashboard/internal/services"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestAnalytics() *services.Analytics {
	a := services.NewAnalytics(services.WithLogger(testLogger()))
	a.SetData([]models.Transaction{
		{
			OrderID: "O1", CustomerID: "C1", ProductID: "P1", QuantitySold: 2,
			Revenue: 100, Cost: 98, ProfitMarginPercent: 2, DiscountPercent: 35, DiscountAmount: 35,
			RefundAmount: 0, InventoryLevel: 50, ReorderLevel: 10, HoldingCost: 5, SupplierDelayDays: 2,
			PaymentDelayDays: 10, OutstandingAmount: 0,
		},
		{
			OrderID: "O2", CustomerID: "C2", ProductID: "P1", QuantitySold: 1,
			Revenue: 200, Cost: 150, ProfitMarginPercent: 25, DiscountPercent: 10, DiscountAmount: 20,
			RefundAmount: 50, InventoryLevel: 15, ReorderLevel: 10, HoldingCost: 20, SupplierDelayDays: 5,
			PaymentDelayDays: 40, OutstandingAmount: 300,
		},
		{
			OrderID: "O3", CustomerID: "C1", ProductID: "P2", QuantitySold: 5,
			Revenue: 300, Cost: 295, ProfitMarginPercent: 1, DiscountPercent: 40, DiscountAmount: 120,
			RefundAmount: 0, InventoryLevel: 12, ReorderLevel: 10, HoldingCost: 8, SupplierDelayDays: 1,
			PaymentDelayDays: 5, OutstandingAmount: 50,
		},
		{
			OrderID: "O4", CustomerID: "C3", ProductID: "P3", QuantitySold: 3,
			Revenue: 400, Cost: 300, ProfitMarginPercent: 24, DiscountPercent: 5, DiscountAmount: 20,
			RefundAmount: 10, InventoryLevel: 30, ReorderLevel: 20, HoldingCost: 10, SupplierDelayDays: 4,
			PaymentDelayDays: 0, OutstandingAmount: 0,
		},
	})
	return a
}

type reportResponse struct {
	Success bool           `json:"success"`
	Data    models.Report  `json:"data"`
	Error   map[string]any `json:"error"`
}

func getReport(t *testing.T, h *APIHandlers, domain, rawQuery string) (*httptest.ResponseRecorder, reportResponse) {
	t.Helper()
	target := "/api/leakage/" + domain
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.SetPathValue("domain", domain)
	w := httptest.NewRecorder()

	h.HandleReport(w, req)

	var resp reportResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return w, resp
}

func orderIDs(rows []models.Transaction) []string {
	out := make([]string, len(rows))
	for i, tx := range rows {
		out[i] = tx.OrderID
	}
	return out
}

func TestNewAPIHandlers(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewAPIHandlers(analytics, testLogger())

	if handlers == nil {
		t.Fatal("NewAPIHandlers() returned nil")
	}
	if handlers.analytics != analytics {
		t.Error("NewAPIHandlers() should set analytics field")
	}
}

func TestAPIHandlers_HandleDomains(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/domains", nil)
	w := httptest.NewRecorder()
	handlers.HandleDomains(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("expected cache-control 'public, max-age=300', got %q", cc)
	}

	var response struct {
		Success bool         `json:"success"`
		Data    []DomainInfo `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if !response.Success {
		t.Error("expected success=true in response")
	}

	var slugs []string
	for _, d := range response.Data {
		slugs = append(slugs, d.Domain)
	}
	if diff := cmp.Diff([]string{"revenue", "discount", "inventory", "payment", "returns"}, slugs); diff != "" {
		t.Errorf("domains mismatch (-want +got):\n%s", diff)
	}

	payment := response.Data[3]
	if payment.FlagName != "payment_risk_flag" {
		t.Errorf("payment flag name = %q", payment.FlagName)
	}
	if diff := cmp.Diff([]string{"customer_id"}, payment.SetFilters); diff != "" {
		t.Errorf("payment set filters mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIHandlers_HandleOverview(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/overview", nil)
	w := httptest.NewRecorder()
	handlers.HandleOverview(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		Data []models.DomainSummary `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	got := make(map[string]int)
	for _, s := range response.Data {
		got[s.Domain] = s.FlaggedCount
	}
	want := map[string]int{"revenue": 2, "discount": 2, "inventory": 2, "payment": 1, "returns": 2}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("flagged counts mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIHandlers_HandleReport(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	tests := []struct {
		name     string
		domain   string
		query    string
		rows     int
		flagged  []string
		displays []string
	}{
		{
			name:     "revenue unfiltered",
			domain:   "revenue",
			rows:     4,
			flagged:  []string{"O1", "O3"},
			displays: []string{"4", "₹ 1,000", "₹ 843", "13.00"},
		},
		{
			name:    "revenue range",
			domain:  "revenue",
			query:   "revenue_min=150&revenue_max=400",
			rows:    3,
			flagged: []string{"O3"},
		},
		{
			name:    "open upper bound",
			domain:  "revenue",
			query:   "revenue_min=150",
			rows:    3,
			flagged: []string{"O3"},
		},
		{
			name:     "payment customer set",
			domain:   "payment",
			query:    "customer_id=C1",
			rows:     2,
			flagged:  []string{"O1", "O3"},
			displays: []string{"1", "₹ 50", "7.5 days", "10 days"},
		},
		{
			name:     "empty customer set",
			domain:   "payment",
			query:    "customer_id=",
			rows:     0,
			flagged:  []string{},
			displays: []string{"0", "₹ 0", "N/A", "N/A"},
		},
		{
			name:    "unknown keys ignored",
			domain:  "returns",
			query:   "colour=red&page=2",
			rows:    4,
			flagged: []string{"O2", "O3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := getReport(t, handlers, tt.domain, tt.query)

			if w.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d (%v)", http.StatusOK, w.Code, resp.Error)
			}
			if !resp.Success {
				t.Error("expected success=true in response")
			}
			if resp.Data.Domain != tt.domain {
				t.Errorf("domain = %q, want %q", resp.Data.Domain, tt.domain)
			}
			if resp.Data.RowCount != tt.rows {
				t.Errorf("row_count = %d, want %d", resp.Data.RowCount, tt.rows)
			}
			if diff := cmp.Diff(tt.flagged, orderIDs(resp.Data.Flagged)); diff != "" {
				t.Errorf("flagged mismatch (-want +got):\n%s", diff)
			}
			if tt.displays != nil {
				got := make([]string, len(resp.Data.Metrics))
				for i, m := range resp.Data.Metrics {
					got[i] = m.Display
				}
				if diff := cmp.Diff(tt.displays, got); diff != "" {
					t.Errorf("metrics mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestAPIHandlers_HandleReport_Errors(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	tests := []struct {
		name   string
		domain string
		query  string
		status int
		code   string
	}{
		{"inverted range", "revenue", "revenue_min=500&revenue_max=100", http.StatusBadRequest, "INVALID_FILTER_RANGE"},
		{"non-numeric bound", "revenue", "revenue_min=lots", http.StatusBadRequest, "BAD_REQUEST"},
		{"set on numeric column", "revenue", "revenue=100", http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown domain", "shipping", "", http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := getReport(t, handlers, tt.domain, tt.query)

			if w.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, w.Code)
			}
			if resp.Success {
				t.Error("expected success=false in response")
			}
			if code, _ := resp.Error["code"].(string); code != tt.code {
				t.Errorf("error code = %q, want %q", code, tt.code)
			}
		})
	}
}

func TestAPIHandlers_NotLoaded(t *testing.T) {
	handlers := NewAPIHandlers(services.NewAnalytics(services.WithLogger(testLogger())), testLogger())

	w, resp := getReport(t, handlers, "revenue", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("report: expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
	if code, _ := resp.Error["code"].(string); code != "SERVICE_UNAVAILABLE" {
		t.Errorf("report: error code = %q", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handlers.HandleHealth(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health: expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestAPIHandlers_HandleBounds(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/leakage/payment/bounds", nil)
	req.SetPathValue("domain", "payment")
	w := httptest.NewRecorder()
	handlers.HandleBounds(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		Data []models.FilterBound `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	byColumn := make(map[string]models.FilterBound)
	for _, b := range response.Data {
		byColumn[b.Column] = b
	}

	delay, ok := byColumn["payment_delay_days"]
	if !ok {
		t.Fatal("missing payment_delay_days bound")
	}
	if delay.Min != 0 || delay.Max != 40 || delay.Step != 1 {
		t.Errorf("payment_delay_days bound = %+v", delay)
	}
	if diff := cmp.Diff([]string{"C1", "C2", "C3"}, byColumn["customer_id"].Values); diff != "" {
		t.Errorf("customer values mismatch (-want +got):\n%s", diff)
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	handlers.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if response.Data["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %q", response.Data["status"])
	}
	if response.Data["timestamp"] == "" {
		t.Error("expected timestamp to be set")
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	analytics := createTestAnalytics()
	handlers := NewAPIHandlers(analytics, testLogger())

	getReport(t, handlers, "revenue", "")

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	w := httptest.NewRecorder()
	handlers.HandleStats(w, req)

	var response struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	if loaded, _ := response.Data["loaded"].(bool); !loaded {
		t.Error("expected loaded=true")
	}
	if n, _ := response.Data["record_count"].(float64); n != 4 {
		t.Errorf("record_count = %v, want 4", response.Data["record_count"])
	}
	if n, _ := response.Data["reports_served"].(float64); n != 1 {
		t.Errorf("reports_served = %v, want 1", response.Data["reports_served"])
	}
}
