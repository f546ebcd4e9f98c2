package handlers

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"leakage-dashboard/internal/errors"
	"leakage-dashboard/internal/observability"
	"leakage-dashboard/internal/services"
)

const cacheMaxAge = "public, max-age=300"

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
	}
}

// DomainInfo describes one leakage module for API clients.
type DomainInfo struct {
	Domain       string   `json:"domain"`
	Title        string   `json:"title"`
	Label        string   `json:"label"`
	Summary      string   `json:"summary"`
	FlagName     string   `json:"flag_name"`
	Rule         string   `json:"rule"`
	RangeFilters []string `json:"range_filters"`
	SetFilters   []string `json:"set_filters"`
}

func domainInfo(p services.Page) DomainInfo {
	info := DomainInfo{
		Domain:       p.Slug(),
		Title:        p.Title,
		Label:        p.NavLabel,
		Summary:      p.Summary,
		FlagName:     p.Rule.FlagName(),
		Rule:         p.Rule.Describe(),
		RangeFilters: make([]string, len(p.Ranges)),
		SetFilters:   make([]string, len(p.Sets)),
	}
	for i, c := range p.Ranges {
		info.RangeFilters[i] = c.String()
	}
	for i, c := range p.Sets {
		info.SetFilters[i] = c.String()
	}
	return info
}

// writeError maps service errors onto API errors before writing them.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case stderrors.Is(err, services.ErrUnknownDomain):
		err = errors.Wrap(err, errors.CodeNotFound, "Unknown leakage domain")
	case stderrors.Is(err, services.ErrNotLoaded):
		err = errors.ServiceUnavailable("Dataset is not loaded")
	}
	errors.WriteError(w, logger, err, observability.GetRequestID(r.Context()))
}

func pageFromPath(r *http.Request) (services.Page, error) {
	return services.PageBySlug(r.PathValue("domain"))
}

func (h *APIHandlers) HandleDomains(w http.ResponseWriter, r *http.Request) {
	pages := services.Pages()
	data := make([]DomainInfo, len(pages))
	for i, p := range pages {
		data[i] = domainInfo(p)
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	data, err := h.analytics.Overview(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromPath(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	query, err := parseFilters(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	report, err := h.analytics.Report(r.Context(), page.Rule, query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, report, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleBounds(w http.ResponseWriter, r *http.Request) {
	page, err := pageFromPath(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	bounds, err := h.analytics.Bounds(page.Rule)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, bounds, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !h.analytics.Loaded() {
		writeError(w, r, h.logger, services.ErrNotLoaded)
		return
	}

	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}
