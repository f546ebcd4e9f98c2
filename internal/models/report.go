package models

// Metric is a KPI tile. Value is nil when the aggregate is undefined for the
// current view and Display then reads "N/A".
type Metric struct {
	Label   string   `json:"label"`
	Value   *float64 `json:"value"`
	Display string   `json:"display"`
}

type Chart struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Kind      string         `json:"kind"`
	XLabel    string         `json:"x_label"`
	YLabel    string         `json:"y_label,omitempty"`
	Points    []ScatterPoint `json:"points,omitempty"`
	Histogram []HistogramBin `json:"histogram,omitempty"`
}

type Threshold struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type AppliedFilter struct {
	Column string   `json:"column"`
	Low    *float64 `json:"low,omitempty"`
	High   *float64 `json:"high,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Report is everything one leakage page shows for a single filter state.
type Report struct {
	Domain       string          `json:"domain"`
	Title        string          `json:"title"`
	FlagName     string          `json:"flag_name"`
	RuleText     string          `json:"rule"`
	Filters      []AppliedFilter `json:"filters"`
	RowCount     int             `json:"row_count"`
	Metrics      []Metric        `json:"metrics"`
	Charts       []Chart         `json:"charts"`
	Thresholds   []Threshold     `json:"thresholds"`
	FlaggedCount int             `json:"flagged_count"`
	Columns      []string        `json:"columns"`
	Flagged      []Transaction   `json:"flagged"`
}

type FilterBound struct {
	Column string   `json:"column"`
	Label  string   `json:"label"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
	Step   float64  `json:"step"`
	Values []string `json:"values,omitempty"`
}

type DomainSummary struct {
	Domain       string  `json:"domain"`
	Title        string  `json:"title"`
	RowCount     int     `json:"row_count"`
	FlaggedCount int     `json:"flagged_count"`
	FlaggedShare float64 `json:"flagged_share"`
}
