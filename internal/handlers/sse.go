package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"leakage-dashboard/internal/errors"
	"leakage-dashboard/internal/models"
	"leakage-dashboard/internal/observability"
	"leakage-dashboard/internal/services"
)

var overviewTemplate = template.Must(template.New("overview").Funcs(template.FuncMap{"percent": percent}).Parse(`
<div id="overview-content">
<table class="modern-table">
<thead><tr><th>Module</th><th>Flagged</th><th>Share of orders</th></tr></thead>
<tbody>
{{range .}}<tr>
<td><a href="/leakage/{{.Domain}}">{{.Title}}</a></td>
<td><strong>{{.FlaggedCount}}</strong> / {{.RowCount}}</td>
<td>{{printf "%.1f" (percent .FlaggedShare)}}%</td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var kpiTemplate = template.Must(template.New("kpis").Parse(`
<div id="kpi-content" class="kpi-grid">
{{range .}}<div class="kpi-card">
<span class="kpi-label">{{.Label}}</span>
<span class="kpi-value">{{.Display}}</span>
</div>{{end}}
</div>`))

var flaggedTemplate = template.Must(template.New("flagged").Parse(`
<div id="flagged-content">
<p class="flag-summary">{{.Label}}: <strong>{{.Count}}</strong> of {{.Rows}} orders</p>
<p class="flag-rule"><code>{{.Rule}}</code></p>
{{if .Thresholds}}<ul class="thresholds">{{range .Thresholds}}<li>{{.Label}} {{printf "%.2f" .Value}}</li>{{end}}</ul>{{end}}
<table class="modern-table">
<thead><tr>{{range .Columns}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Cells}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}
</tbody>
</table>
</div>`))

var errorTemplate = template.Must(template.New("error").Parse(`<div id="leakage-error" class="alert alert-error">{{.}}</div>`))

const clearedError = `<div id="leakage-error"></div>`

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

type flaggedView struct {
	Label      string
	Rule       string
	Count      int
	Rows       int
	Thresholds []models.Threshold
	Columns    []string
	Cells      [][]string
}

func render(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := t.Execute(&buf, data)
	return buf.String(), err
}

func (h *SSEHandlers) renderOverview(data []models.DomainSummary) (string, error) {
	return render(overviewTemplate, data)
}

func (h *SSEHandlers) renderKPIs(metrics []models.Metric) (string, error) {
	return render(kpiTemplate, metrics)
}

func (h *SSEHandlers) renderFlagged(page services.Page, report *models.Report) (string, error) {
	view := flaggedView{
		Label:      page.FlagLabel,
		Rule:       report.RuleText,
		Count:      report.FlaggedCount,
		Rows:       report.RowCount,
		Thresholds: report.Thresholds,
		Columns:    report.Columns,
		Cells:      make([][]string, len(report.Flagged)),
	}
	for i := range report.Flagged {
		row := make([]string, len(page.TableColumns))
		for j, c := range page.TableColumns {
			row[j] = c.Text(&report.Flagged[i])
		}
		view.Cells[i] = row
	}
	return render(flaggedTemplate, view)
}

func (h *SSEHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	data, err := h.analytics.Overview(r.Context())
	if err != nil {
		h.logger.Error("compute overview", "error", err)
		h.patchError(sse, errors.FromEngine(err).Message)
		return
	}

	html, err := h.renderOverview(data)
	if err != nil {
		h.logger.Error("render overview", "error", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		h.logger.Warn("patch overview", "error", err)
		return
	}

	if err := sse.MarshalAndPatchSignals(map[string]any{"overview": data}); err != nil {
		h.logger.Warn("patch overview signals", "error", err)
	}
}

// HandleLeakage recomputes a page from the filter signals and patches its
// KPI tiles, flagged table and chart data.
func (h *SSEHandlers) HandleLeakage(w http.ResponseWriter, r *http.Request) {
	page, pageErr := pageFromPath(r)
	query, queryErr := readQuery(r)

	logger := observability.RequestLogger(r.Context(), h.logger)
	sse := datastar.NewSSE(w, r)

	if pageErr != nil {
		h.patchError(sse, "Unknown leakage module")
		return
	}
	if queryErr != nil {
		h.patchError(sse, errors.FromEngine(queryErr).Message)
		return
	}

	report, err := h.analytics.Report(r.Context(), page.Rule, query)
	if err != nil {
		appErr := errors.FromEngine(err)
		logger.Warn("compute report", "error", err, "domain", page.Slug(), "code", appErr.Code)
		msg := appErr.Message
		if appErr.Details != "" {
			msg += ": " + appErr.Details
		}
		h.patchError(sse, msg)
		return
	}

	kpis, err := h.renderKPIs(report.Metrics)
	if err != nil {
		logger.Error("render kpis", "error", err)
		return
	}
	table, err := h.renderFlagged(page, report)
	if err != nil {
		logger.Error("render flagged table", "error", err)
		return
	}

	for _, fragment := range []string{clearedError, kpis, table} {
		if err := sse.PatchElements(fragment); err != nil {
			logger.Warn("patch leakage fragment", "error", err, "domain", page.Slug())
			return
		}
	}

	signals := map[string]any{
		"charts":       report.Charts,
		"thresholds":   report.Thresholds,
		"rowCount":     report.RowCount,
		"flaggedCount": report.FlaggedCount,
	}
	if err := sse.MarshalAndPatchSignals(signals); err != nil {
		logger.Warn("patch leakage signals", "error", err, "domain", page.Slug())
	}
}

func (h *SSEHandlers) patchError(sse *datastar.ServerSentEventGenerator, msg string) {
	html, err := render(errorTemplate, msg)
	if err != nil {
		h.logger.Error("render error fragment", "error", err)
		return
	}
	if err := sse.PatchElements(html); err != nil {
		h.logger.Warn("patch error fragment", "error", err)
	}
}

func percent(share float64) float64 {
	return share * 100
}
