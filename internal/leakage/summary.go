package leakage

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

type Op string

const (
	OpSum     Op = "sum"
	OpMean    Op = "mean"
	OpMin     Op = "min"
	OpMax     Op = "max"
	OpCount   Op = "count"
	OpNUnique Op = "nunique"
)

func ParseOp(s string) (Op, error) {
	switch op := Op(strings.ToLower(strings.TrimSpace(s))); op {
	case OpSum, OpMean, OpMin, OpMax, OpCount, OpNUnique:
		return op, nil
	default:
		return "", fmt.Errorf("unknown aggregate %q", s)
	}
}

// ComputeSummary aggregates column c over t. On an empty table sum, count and
// nunique are 0 while mean, min and max return *EmptyAggregateError.
func ComputeSummary(t *Table, c Column, op Op) (float64, error) {
	if !c.valid() {
		return 0, fmt.Errorf("%w: %s", ErrUnknownColumn, c)
	}

	switch op {
	case OpCount:
		return float64(t.Len()), nil
	case OpNUnique:
		seen := make(map[string]struct{})
		for _, v := range t.Strings(c) {
			seen[v] = struct{}{}
		}
		return float64(len(seen)), nil
	case OpSum, OpMean, OpMin, OpMax:
	default:
		return 0, fmt.Errorf("unknown aggregate %q", op)
	}

	values, err := t.Floats(c)
	if err != nil {
		return 0, err
	}

	if op == OpSum {
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum, nil
	}

	if len(values) == 0 {
		return 0, &EmptyAggregateError{Column: c, Op: op}
	}

	switch op {
	case OpMean:
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), nil
	case OpMin:
		return slices.Min(values), nil
	default:
		return slices.Max(values), nil
	}
}

// Quantile returns the q-th quantile of c over t using linear interpolation
// between the closest ranks, so any non-empty table has a defined value.
func Quantile(t *Table, c Column, q float64) (float64, error) {
	if math.IsNaN(q) || q < 0 || q > 1 {
		return 0, fmt.Errorf("quantile %g outside [0, 1]", q)
	}
	values, err := t.Floats(c)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, &EmptyAggregateError{Column: c, Op: Op(fmt.Sprintf("q%g", q*100))}
	}
	slices.Sort(values)
	return quantileSorted(values, q), nil
}

func quantileSorted(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
