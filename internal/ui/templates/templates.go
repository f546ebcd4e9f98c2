package templates

import (
	"encoding/json"
	"strconv"

	"github.com/a-h/templ"

	"leakage-dashboard/internal/models"
	"leakage-dashboard/internal/services"
)

const (
	AppTitle    = "Profit Leakage Detection System"
	AppSubtitle = "Analytics Dashboard (EDA • Statistics • Visualization)"
)

// LeakagePage renders one module page with filter controls built from the
// full-dataset bounds. Every filter signal starts blank, so the first report
// is unfiltered.
func LeakagePage(page services.Page, bounds []models.FilterBound) (templ.Component, error) {
	signals, err := initialSignals(page)
	if err != nil {
		return nil, err
	}
	return leakagePage(page, bounds, signals), nil
}

func pagePath(p services.Page) string {
	return "/leakage/" + p.Slug()
}

func sseGet(p services.Page) string {
	return "@get('/sse/leakage/" + p.Slug() + "')"
}

func exportPath(p services.Page, format string) string {
	return "/api/leakage/" + p.Slug() + "/export/" + format
}

// exportExpr keeps the export link in step with the current filter signals.
func exportExpr(p services.Page, format string) string {
	return "window.exportURL('" + exportPath(p, format) + "', $filters)"
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func initialSignals(page services.Page) (string, error) {
	keys := filterKeys(page)
	filters := make(map[string]string, len(keys))
	for _, k := range keys {
		filters[k] = ""
	}

	b, err := json.Marshal(map[string]any{
		"filters":      filters,
		"charts":       []models.Chart{},
		"thresholds":   []models.Threshold{},
		"rowCount":     0,
		"flaggedCount": 0,
	})
	return string(b), err
}

// filterKeys lists the query and signal keys a page accepts.
func filterKeys(page services.Page) []string {
	keys := make([]string, 0, 2*len(page.Ranges)+len(page.Sets))
	for _, c := range page.Ranges {
		keys = append(keys, c.String()+"_min", c.String()+"_max")
	}
	for _, c := range page.Sets {
		keys = append(keys, c.String())
	}
	return keys
}
