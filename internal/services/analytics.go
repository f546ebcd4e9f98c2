package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"leakage-dashboard/internal/config"
	"leakage-dashboard/internal/leakage"
	"leakage-dashboard/internal/models"
	"leakage-dashboard/internal/observability"
)

var (
	ErrNotLoaded     = errors.New("dataset not loaded")
	ErrUnknownDomain = errors.New("unknown leakage domain")
)

// Range is an inclusive numeric filter.
type Range struct {
	Low  float64
	High float64
}

// Query is the filter state of one page. A set filter is applied only when
// its column is present in Sets; a present but empty list matches nothing.
type Query struct {
	Ranges map[leakage.Column]Range
	Sets   map[leakage.Column][]string
}

func (q Query) IsZero() bool {
	return len(q.Ranges) == 0 && len(q.Sets) == 0
}

type dataset struct {
	table    *leakage.Table
	source   string
	loadedAt time.Time
	bounds   map[leakage.Rule][]models.FilterBound
}

type Analytics struct {
	mu            sync.RWMutex
	data          *dataset
	limits        config.DashboardConfig
	loader        *leakage.Loader
	reportsServed atomic.Int64
	recordsLoaded atomic.Int64
	logger        *slog.Logger
}

type Option func(*Analytics)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithDashboardConfig overrides the view limits. Non-positive values keep the
// defaults.
func WithDashboardConfig(cfg config.DashboardConfig) Option {
	return func(a *Analytics) {
		if cfg.TableRows > 0 {
			a.limits.TableRows = cfg.TableRows
		}
		if cfg.HistogramBins > 0 {
			a.limits.HistogramBins = cfg.HistogramBins
		}
		if cfg.ScatterLimit > 0 {
			a.limits.ScatterLimit = cfg.ScatterLimit
		}
		if cfg.SetValuesLimit > 0 {
			a.limits.SetValuesLimit = cfg.SetValuesLimit
		}
	}
}

// WithLoader uses a dedicated loader instead of the process-wide one.
func WithLoader(loader *leakage.Loader) Option {
	return func(a *Analytics) {
		a.loader = loader
	}
}

func NewAnalytics(opts ...Option) *Analytics {
	a := &Analytics{
		logger: slog.Default(),
		limits: config.DashboardConfig{
			TableRows:      10,
			HistogramBins:  30,
			ScatterLimit:   2000,
			SetValuesLimit: 500,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetData replaces the dataset with rows held in memory.
func (a *Analytics) SetData(data []models.Transaction) {
	a.install(leakage.NewTable(data), "memory")
}

func (a *Analytics) LoadFromCSV(ctx context.Context, filename string) error {
	start := time.Now()
	a.logger.Info("loading dataset", "filename", filename)

	var (
		table *leakage.Table
		err   error
	)
	if a.loader != nil {
		table, err = a.loader.Load(ctx, filename)
	} else {
		table, err = leakage.LoadDataset(ctx, filename)
	}
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	a.install(table, filename)

	duration := time.Since(start)
	count := table.Len()
	a.logger.Info("dataset loaded",
		"records", count,
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(count)/max(duration.Seconds(), 1e-9)))

	return nil
}

func (a *Analytics) install(table *leakage.Table, source string) {
	bounds := make(map[leakage.Rule][]models.FilterBound, len(pages))
	for _, p := range pages {
		bounds[p.Rule] = computeBounds(table, p, a.limits.SetValuesLimit)
	}

	a.mu.Lock()
	a.data = &dataset{
		table:    table,
		source:   source,
		loadedAt: time.Now(),
		bounds:   bounds,
	}
	a.mu.Unlock()

	a.recordsLoaded.Store(int64(table.Len()))
}

func (a *Analytics) snapshot() (*dataset, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.data == nil {
		return nil, ErrNotLoaded
	}
	return a.data, nil
}

// Loaded reports whether a dataset has been installed.
func (a *Analytics) Loaded() bool {
	_, err := a.snapshot()
	return err == nil
}

// computeBounds derives slider limits from the full dataset, so they do not
// move as filters narrow the view.
func computeBounds(table *leakage.Table, p Page, valuesLimit int) []models.FilterBound {
	out := make([]models.FilterBound, 0, len(p.Ranges)+len(p.Sets))
	for _, c := range p.Ranges {
		b := models.FilterBound{Column: c.String(), Label: c.Label(), Step: 0.01}
		if c.Kind() == leakage.KindInteger {
			b.Step = 1
		}
		if lo, err := leakage.ComputeSummary(table, c, leakage.OpMin); err == nil {
			b.Min = lo
		}
		if hi, err := leakage.ComputeSummary(table, c, leakage.OpMax); err == nil {
			b.Max = hi
		}
		out = append(out, b)
	}
	for _, c := range p.Sets {
		values := distinct(table.Strings(c))
		if valuesLimit > 0 && len(values) > valuesLimit {
			values = values[:valuesLimit]
		}
		out = append(out, models.FilterBound{Column: c.String(), Label: c.Label(), Values: values})
	}
	return out
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Bounds returns the filter controls for a page computed on the full dataset.
func (a *Analytics) Bounds(rule leakage.Rule) ([]models.FilterBound, error) {
	data, err := a.snapshot()
	if err != nil {
		return nil, err
	}
	b, ok := data.bounds[rule]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, rule)
	}
	return slices.Clone(b), nil
}

// filter narrows the full table by q. Filters are intersections, so the order
// only affects the listing in the returned AppliedFilter slice, which follows
// schema order.
func filter(table *leakage.Table, q Query) (*leakage.Table, []models.AppliedFilter, error) {
	view := table
	applied := make([]models.AppliedFilter, 0, len(q.Ranges)+len(q.Sets))

	for _, c := range slices.Sorted(maps.Keys(q.Ranges)) {
		r := q.Ranges[c]
		next, err := leakage.ApplyRangeFilter(view, c, r.Low, r.High)
		if err != nil {
			return nil, nil, err
		}
		view = next
		applied = append(applied, models.AppliedFilter{Column: c.String(), Low: &r.Low, High: &r.High})
	}

	for _, c := range slices.Sorted(maps.Keys(q.Sets)) {
		values := q.Sets[c]
		next, err := leakage.ApplySetFilter(view, c, values)
		if err != nil {
			return nil, nil, err
		}
		view = next
		applied = append(applied, models.AppliedFilter{Column: c.String(), Values: slices.Clone(values)})
	}

	return view, applied, nil
}

func (a *Analytics) view(rule leakage.Rule, q Query) (Page, *leakage.Table, []models.AppliedFilter, error) {
	page, ok := PageFor(rule)
	if !ok {
		return Page{}, nil, nil, fmt.Errorf("%w: %s", ErrUnknownDomain, rule)
	}
	data, err := a.snapshot()
	if err != nil {
		return Page{}, nil, nil, err
	}
	view, applied, err := filter(data.table, q)
	if err != nil {
		return Page{}, nil, nil, err
	}
	return page, view, applied, nil
}

// Report filters the dataset, aggregates the page KPIs, flags the view with
// the page rule and builds chart series, all on the same filtered view.
func (a *Analytics) Report(ctx context.Context, rule leakage.Rule, q Query) (*models.Report, error) {
	ctx, span := observability.StartSpan(ctx, "analytics.report")
	defer span.FinishAndLog(ctx, a.logger)
	span.SetTag("domain", rule.String())

	if err := ctx.Err(); err != nil {
		span.SetError(err)
		return nil, err
	}

	page, view, applied, err := a.view(rule, q)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	metrics, err := computeMetrics(view, page.KPIs)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	charts, err := a.computeCharts(view, page.Charts)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	risky := leakage.FlagRisk(view, rule).Flagged()

	report := &models.Report{
		Domain:       page.Slug(),
		Title:        page.Title,
		FlagName:     rule.FlagName(),
		RuleText:     rule.Describe(),
		Filters:      applied,
		RowCount:     view.Len(),
		Metrics:      metrics,
		Charts:       charts,
		Thresholds:   rule.Thresholds(view),
		FlaggedCount: risky.Len(),
		Columns:      page.ColumnNames(),
		Flagged:      risky.Head(a.limits.TableRows),
	}
	if report.Thresholds == nil {
		report.Thresholds = []models.Threshold{}
	}

	span.SetTag("rows", strconv.Itoa(report.RowCount))
	span.SetTag("flagged", strconv.Itoa(report.FlaggedCount))
	a.reportsServed.Add(1)

	return report, nil
}

// Flagged returns every flagged row of the filtered view, for export.
func (a *Analytics) Flagged(ctx context.Context, rule leakage.Rule, q Query) (*leakage.Table, error) {
	ctx, span := observability.StartSpan(ctx, "analytics.flagged")
	defer span.FinishAndLog(ctx, a.logger)
	span.SetTag("domain", rule.String())

	_, view, _, err := a.view(rule, q)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return leakage.FlagRisk(view, rule).Flagged(), nil
}

func computeMetrics(view *leakage.Table, kpis []KPI) ([]models.Metric, error) {
	out := make([]models.Metric, 0, len(kpis))
	for _, k := range kpis {
		m := models.Metric{Label: k.Label}
		v, err := leakage.ComputeSummary(view, k.Column, k.Op)
		var empty *leakage.EmptyAggregateError
		switch {
		case errors.As(err, &empty):
			m.Display = "N/A"
		case err != nil:
			return nil, fmt.Errorf("metric %q: %w", k.Label, err)
		default:
			m.Value = &v
			m.Display = k.Format.Render(v)
		}
		out = append(out, m)
	}
	return out, nil
}

func (a *Analytics) computeCharts(view *leakage.Table, specs []ChartSpec) ([]models.Chart, error) {
	out := make([]models.Chart, 0, len(specs))
	for _, s := range specs {
		chart := models.Chart{
			ID:     s.ID,
			Title:  s.Title,
			Kind:   string(s.Kind),
			XLabel: s.X.Label(),
		}
		var err error
		switch s.Kind {
		case ChartScatter:
			chart.YLabel = s.Y.Label()
			chart.Points, err = leakage.Scatter(view, s.X, s.Y, a.limits.ScatterLimit)
		case ChartHistogram:
			chart.YLabel = "Count"
			chart.Histogram, err = leakage.Histogram(view, s.X, a.limits.HistogramBins)
		default:
			err = fmt.Errorf("unknown chart kind %q", s.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("chart %s: %w", s.ID, err)
		}
		out = append(out, chart)
	}
	return out, nil
}

// Overview flags the full dataset with every rule concurrently.
func (a *Analytics) Overview(ctx context.Context) ([]models.DomainSummary, error) {
	ctx, span := observability.StartSpan(ctx, "analytics.overview")
	defer span.FinishAndLog(ctx, a.logger)

	data, err := a.snapshot()
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	out := make([]models.DomainSummary, len(pages))
	g, ctx := errgroup.WithContext(ctx)
	for i, p := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			flagged := leakage.FlagRisk(data.table, p.Rule).FlaggedCount()
			summary := models.DomainSummary{
				Domain:       p.Slug(),
				Title:        p.Title,
				RowCount:     data.table.Len(),
				FlaggedCount: flagged,
			}
			if summary.RowCount > 0 {
				summary.FlaggedShare = float64(flagged) / float64(summary.RowCount)
			}
			out[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}
	return out, nil
}

// Stats is used for monitoring.
func (a *Analytics) Stats() map[string]any {
	stats := map[string]any{
		"loaded":         false,
		"record_count":   a.recordsLoaded.Load(),
		"reports_served": a.reportsServed.Load(),
	}

	data, err := a.snapshot()
	if err != nil {
		return stats
	}

	customers, _ := leakage.ComputeSummary(data.table, leakage.CustomerID, leakage.OpNUnique)
	products, _ := leakage.ComputeSummary(data.table, leakage.ProductID, leakage.OpNUnique)

	stats["loaded"] = true
	stats["source"] = data.source
	stats["last_processed"] = data.loadedAt
	stats["customers"] = int(customers)
	stats["products"] = int(products)
	stats["domains"] = len(pages)
	return stats
}
