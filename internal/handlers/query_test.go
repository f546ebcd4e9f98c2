package handlers

import (
	"bytes"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"leakage-dashboard/internal/leakage"
	"leakage-dashboard/internal/services"
)

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name   string
		params map[string][]string
		want   services.Query
	}{
		{
			name:   "empty",
			params: map[string][]string{},
			want:   services.Query{Ranges: map[leakage.Column]services.Range{}, Sets: map[leakage.Column][]string{}},
		},
		{
			name:   "closed range",
			params: map[string][]string{"revenue_min": {"10"}, "revenue_max": {"20.5"}},
			want: services.Query{
				Ranges: map[leakage.Column]services.Range{leakage.Revenue: {Low: 10, High: 20.5}},
				Sets:   map[leakage.Column][]string{},
			},
		},
		{
			name:   "open sides",
			params: map[string][]string{"cost_min": {"5"}, "payment_delay_days_max": {"30"}},
			want: services.Query{
				Ranges: map[leakage.Column]services.Range{
					leakage.Cost:             {Low: 5, High: math.MaxFloat64},
					leakage.PaymentDelayDays: {Low: -math.MaxFloat64, High: 30},
				},
				Sets: map[leakage.Column][]string{},
			},
		},
		{
			name:   "blank bound ignored",
			params: map[string][]string{"revenue_min": {" "}},
			want:   services.Query{Ranges: map[leakage.Column]services.Range{}, Sets: map[leakage.Column][]string{}},
		},
		{
			name:   "comma separated set",
			params: map[string][]string{"customer_id": {"C1, C2", "C3"}},
			want: services.Query{
				Ranges: map[leakage.Column]services.Range{},
				Sets:   map[leakage.Column][]string{leakage.CustomerID: {"C1", "C2", "C3"}},
			},
		},
		{
			name:   "empty set kept",
			params: map[string][]string{"product_id": {""}},
			want: services.Query{
				Ranges: map[leakage.Column]services.Range{},
				Sets:   map[leakage.Column][]string{leakage.ProductID: {}},
			},
		},
		{
			name:   "unknown keys ignored",
			params: map[string][]string{"datastar": {"{}"}, "colour_min": {"1"}},
			want:   services.Query{Ranges: map[leakage.Column]services.Range{}, Sets: map[leakage.Column][]string{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFilters(tt.params)
			if err != nil {
				t.Fatalf("parseFilters() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseFilters() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseFilters_InvalidNumber(t *testing.T) {
	for _, raw := range []string{"abc", "NaN", "1e"} {
		if _, err := parseFilters(map[string][]string{"revenue_max": {raw}}); err == nil {
			t.Errorf("parseFilters(%q) expected error", raw)
		}
	}
}

func TestSignalParams(t *testing.T) {
	got := signalParams(map[string]any{
		"revenue_min": 12.5,
		"revenue_max": "",
		"cost_max":    "99",
		"customer_id": []any{"C1", "C2"},
		"product_id":  []any{},
		"ignored":     true,
	})

	want := map[string][]string{
		"revenue_min": {"12.5"},
		"cost_max":    {"99"},
		"customer_id": {"C1", "C2"},
		"product_id":  {},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("signalParams() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadQuery(t *testing.T) {
	t.Run("query string", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/leakage/payment?customer_id=C1&outstanding_amount_min=10", nil)
		q, err := readQuery(req)
		if err != nil {
			t.Fatalf("readQuery() error = %v", err)
		}
		if diff := cmp.Diff([]string{"C1"}, q.Sets[leakage.CustomerID]); diff != "" {
			t.Errorf("set mismatch (-want +got):\n%s", diff)
		}
		if r := q.Ranges[leakage.OutstandingAmount]; r.Low != 10 || r.High != math.MaxFloat64 {
			t.Errorf("range = %+v", r)
		}
	})

	t.Run("signals body", func(t *testing.T) {
		body := []byte(`{"filters":{"discount_percent_min":30,"discount_percent_max":60,"customer_id":[]}}`)
		req := httptest.NewRequest(http.MethodPost, "/sse/leakage/discount", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		q, err := readQuery(req)
		if err != nil {
			t.Fatalf("readQuery() error = %v", err)
		}
		if r := q.Ranges[leakage.DiscountPercent]; r.Low != 30 || r.High != 60 {
			t.Errorf("range = %+v", r)
		}
		if set, ok := q.Sets[leakage.CustomerID]; !ok || len(set) != 0 {
			t.Errorf("expected an empty customer set, got %v (present %v)", set, ok)
		}
	})

	t.Run("malformed signals", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sse/leakage/discount", bytes.NewReader([]byte("{")))
		if _, err := readQuery(req); err == nil {
			t.Error("expected error for malformed signals")
		}
	})
}
