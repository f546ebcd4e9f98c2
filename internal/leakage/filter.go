package leakage

import (
	"math"

	"leakage-dashboard/internal/models"
)

// ApplyRangeFilter keeps rows with low <= value <= high. Bounds are applied
// as given, so bounds outside the data simply match nothing.
func ApplyRangeFilter(t *Table, c Column, low, high float64) (*Table, error) {
	if err := c.checkNumeric(); err != nil {
		return nil, err
	}
	if math.IsNaN(low) || math.IsNaN(high) || low > high {
		return nil, &InvalidFilterRangeError{Column: c, Low: low, High: high}
	}
	return t.where(func(tx *models.Transaction) bool {
		v := c.Float(tx)
		return v >= low && v <= high
	}), nil
}

// ApplySetFilter keeps rows whose identifier is in allowed. An empty allowed
// set keeps nothing.
func ApplySetFilter(t *Table, c Column, allowed []string) (*Table, error) {
	if err := c.checkIdentifier(); err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[v] = struct{}{}
	}
	return t.where(func(tx *models.Transaction) bool {
		_, ok := set[c.Text(tx)]
		return ok
	}), nil
}
