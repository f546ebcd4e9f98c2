package handlers

import (
	"fmt"
	"maps"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"leakage-dashboard/internal/errors"
	"leakage-dashboard/internal/leakage"
	"leakage-dashboard/internal/services"
)

const (
	minSuffix = "_min"
	maxSuffix = "_max"
)

// filterSignals is the Datastar signal payload sent by leakage pages.
type filterSignals struct {
	Filters map[string]any `json:"filters"`
}

// parseFilters builds a query from flat filter parameters:
// "<column>_min" and "<column>_max" bound a numeric column, a missing side
// being open, and "<column>=a,b" restricts an identifier column to a set.
// Keys naming no column are ignored.
func parseFilters(params map[string][]string) (services.Query, error) {
	q := services.Query{
		Ranges: make(map[leakage.Column]services.Range),
		Sets:   make(map[leakage.Column][]string),
	}

	type bounds struct{ low, high *float64 }
	ranges := make(map[leakage.Column]*bounds)

	for _, key := range slices.Sorted(maps.Keys(params)) {
		values := params[key]
		name, side := key, ""
		switch {
		case strings.HasSuffix(key, minSuffix):
			name, side = strings.TrimSuffix(key, minSuffix), minSuffix
		case strings.HasSuffix(key, maxSuffix):
			name, side = strings.TrimSuffix(key, maxSuffix), maxSuffix
		}

		col, err := leakage.ParseColumn(name)
		if err != nil {
			continue
		}

		if side == "" {
			set := []string{}
			for _, v := range values {
				for _, part := range strings.Split(v, ",") {
					if part = strings.TrimSpace(part); part != "" {
						set = append(set, part)
					}
				}
			}
			q.Sets[col] = set
			continue
		}

		raw := ""
		if len(values) > 0 {
			raw = strings.TrimSpace(values[len(values)-1])
		}
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) {
			return services.Query{}, errors.BadRequest(fmt.Sprintf("invalid value %q for %s", raw, key))
		}

		b := ranges[col]
		if b == nil {
			b = &bounds{}
			ranges[col] = b
		}
		if side == minSuffix {
			b.low = &v
		} else {
			b.high = &v
		}
	}

	for col, b := range ranges {
		r := services.Range{Low: -math.MaxFloat64, High: math.MaxFloat64}
		if b.low != nil {
			r.Low = *b.low
		}
		if b.high != nil {
			r.High = *b.high
		}
		q.Ranges[col] = r
	}

	return q, nil
}

// signalParams flattens signal values into the same shape as a query
// string. Blank strings count as not supplied; an empty list is an empty set.
func signalParams(filters map[string]any) map[string][]string {
	params := make(map[string][]string, len(filters))
	for key, raw := range filters {
		switch v := raw.(type) {
		case float64:
			params[key] = []string{strconv.FormatFloat(v, 'f', -1, 64)}
		case string:
			if strings.TrimSpace(v) != "" {
				params[key] = []string{v}
			}
		case []any:
			list := make([]string, 0, len(v))
			for _, item := range v {
				list = append(list, fmt.Sprint(item))
			}
			params[key] = list
		}
	}
	return params
}

// readQuery reads filters from Datastar signals when the request carries
// them, and from the URL query string otherwise.
func readQuery(r *http.Request) (services.Query, error) {
	if r.Method != http.MethodGet || r.URL.Query().Has("datastar") {
		var signals filterSignals
		if err := datastar.ReadSignals(r, &signals); err != nil {
			return services.Query{}, errors.BadRequestWrap(err, "Invalid signals")
		}
		return parseFilters(signalParams(signals.Filters))
	}
	return parseFilters(r.URL.Query())
}
