package leakage

import (
	"fmt"
	"slices"

	"leakage-dashboard/internal/models"
)

// Histogram splits the range of c into equal-width bins. Every bin is
// half-open except the last, which includes the maximum. A column holding a
// single distinct value gets one bin of width 1 centred on it.
func Histogram(t *Table, c Column, bins int) ([]models.HistogramBin, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("histogram needs at least one bin, got %d", bins)
	}
	values, err := t.Floats(c)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return []models.HistogramBin{}, nil
	}

	lo, hi := slices.Min(values), slices.Max(values)
	if lo == hi {
		return []models.HistogramBin{{Lower: lo - 0.5, Upper: hi + 0.5, Count: len(values)}}, nil
	}

	width := (hi - lo) / float64(bins)
	out := make([]models.HistogramBin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, v := range values {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out, nil
}

// Scatter pairs x and y per row. When the table has more than limit rows an
// evenly strided sample is returned; limit <= 0 means no limit.
func Scatter(t *Table, x, y Column, limit int) ([]models.ScatterPoint, error) {
	xs, err := t.Floats(x)
	if err != nil {
		return nil, err
	}
	ys, err := t.Floats(y)
	if err != nil {
		return nil, err
	}

	n := len(xs)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.ScatterPoint, 0, limit)
	for k := range limit {
		i := k * n / limit
		out = append(out, models.ScatterPoint{X: xs[i], Y: ys[i]})
	}
	return out, nil
}
