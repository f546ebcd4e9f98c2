package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"leakage-dashboard/internal/config"
	"leakage-dashboard/internal/models"
	"leakage-dashboard/internal/services"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	analytics := services.NewAnalytics(services.WithLogger(logger))
	analytics.SetData([]models.Transaction{
		{OrderID: "O1", CustomerID: "C1", ProductID: "P1", QuantitySold: 2, Revenue: 100, Cost: 98, ProfitMarginPercent: 2, PaymentDelayDays: 10},
		{OrderID: "O2", CustomerID: "C2", ProductID: "P2", QuantitySold: 1, Revenue: 200, Cost: 150, ProfitMarginPercent: 25, PaymentDelayDays: 40, OutstandingAmount: 300},
	})

	page := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			io.WriteString(w, name+":"+r.PathValue("domain"))
		}
	}
	return NewServer(analytics, logger, &TemplateHandlers{Dashboard: page("dashboard"), Leakage: page("leakage")})
}

func TestServer_Routes(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		method string
		path   string
		status int
		body   string
	}{
		{http.MethodGet, "/", http.StatusOK, "dashboard:"},
		{http.MethodGet, "/leakage/payment", http.StatusOK, "leakage:payment"},
		{http.MethodGet, "/api/domains", http.StatusOK, `"success":true`},
		{http.MethodGet, "/api/overview", http.StatusOK, `"domain":"returns"`},
		{http.MethodGet, "/api/leakage/revenue", http.StatusOK, `"flag_name":"profit_leakage_flag"`},
		{http.MethodGet, "/api/leakage/payment/bounds", http.StatusOK, `"column":"customer_id"`},
		{http.MethodGet, "/api/leakage/revenue/export/csv", http.StatusOK, "order_id,revenue"},
		{http.MethodGet, "/sse/overview", http.StatusOK, "overview-content"},
		{http.MethodGet, "/sse/leakage/revenue", http.StatusOK, "kpi-content"},
		{http.MethodPost, "/sse/leakage/revenue", http.StatusOK, "kpi-content"},
		{http.MethodGet, "/health", http.StatusOK, "healthy"},
		{http.MethodGet, "/admin/stats", http.StatusOK, `"record_count":2`},
		{http.MethodGet, "/api/leakage/shipping", http.StatusNotFound, "NOT_FOUND"},
		{http.MethodGet, "/missing", http.StatusNotFound, ""},
		{http.MethodPut, "/", http.StatusMethodNotAllowed, ""},
		{http.MethodDelete, "/health", http.StatusMethodNotAllowed, ""},
		{http.MethodPost, "/api/leakage/revenue", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var body io.Reader
			if tt.method == http.MethodPost {
				body = strings.NewReader(`{"filters":{}}`)
			}
			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, tt.path, body)

			srv.ServeHTTP(w, r)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.body != "" && !strings.Contains(w.Body.String(), tt.body) {
				t.Errorf("body should contain %q, got %q", tt.body, w.Body.String())
			}
		})
	}
}

func testGracefulServer() *GracefulServer {
	cfg := &config.Config{Server: config.ServerConfig{ShutdownTimeout: time.Second}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGracefulServer(&http.Server{Addr: "127.0.0.1:0"}, logger, cfg)
}

func TestGracefulServer_ShutdownRunsHooks(t *testing.T) {
	gs := testGracefulServer()

	var ran atomic.Int32
	for _, name := range []string{"analytics", "metrics"} {
		gs.RegisterShutdownHook(name, func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}

	if err := gs.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if ran.Load() != 2 {
		t.Errorf("hooks run = %d, want 2", ran.Load())
	}
}

func TestGracefulServer_ShutdownJoinsErrors(t *testing.T) {
	gs := testGracefulServer()

	errA := errors.New("flush failed")
	errB := errors.New("close failed")
	gs.RegisterShutdownHook("a", func(context.Context) error { return errA })
	gs.RegisterShutdownHook("b", func(context.Context) error { return errB })
	gs.RegisterShutdownHook("ok", func(context.Context) error { return nil })

	err := gs.Shutdown(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("Shutdown() error = %v, want both hook errors", err)
	}
	if !strings.Contains(err.Error(), "shutdown hook a") {
		t.Errorf("error should name the hook, got %q", err)
	}
}

func TestGracefulServer_ShutdownTimeout(t *testing.T) {
	gs := testGracefulServer()
	gs.RegisterShutdownHook("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := gs.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() error = %v, want deadline exceeded", err)
	}
}
