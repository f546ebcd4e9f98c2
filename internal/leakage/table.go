package leakage

import (
	"slices"

	"leakage-dashboard/internal/models"
)

// Table is an immutable view over transaction rows. Filters and FlagRisk
// return new tables; nothing writes back into a table once built.
type Table struct {
	rows     []models.Transaction
	flags    []bool
	flagName string
}

// NewTable copies rows into a new table.
func NewTable(rows []models.Transaction) *Table {
	return &Table{rows: slices.Clone(rows)}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

func (t *Table) Row(i int) models.Transaction {
	return t.rows[i]
}

// Rows returns a copy of the rows.
func (t *Table) Rows() []models.Transaction {
	if t == nil {
		return nil
	}
	return slices.Clone(t.rows)
}

// Head returns at most n rows from the start of the table.
func (t *Table) Head(n int) []models.Transaction {
	if n > t.Len() {
		n = t.Len()
	}
	if n <= 0 {
		return []models.Transaction{}
	}
	return slices.Clone(t.rows[:n])
}

// Floats returns the values of a numeric column in row order.
func (t *Table) Floats(c Column) ([]float64, error) {
	if err := c.checkNumeric(); err != nil {
		return nil, err
	}
	out := make([]float64, t.Len())
	for i := range out {
		out[i] = c.Float(&t.rows[i])
	}
	return out, nil
}

// Strings returns the values of any column rendered as text.
func (t *Table) Strings(c Column) []string {
	out := make([]string, t.Len())
	for i := range out {
		out[i] = c.Text(&t.rows[i])
	}
	return out
}

// HasFlags reports whether the table carries a risk flag column.
func (t *Table) HasFlags() bool {
	return t != nil && t.flags != nil
}

// FlagName is the name of the flag column, empty when there is none.
func (t *Table) FlagName() string {
	if t == nil {
		return ""
	}
	return t.flagName
}

func (t *Table) Flag(i int) bool {
	if t.flags == nil {
		return false
	}
	return t.flags[i]
}

func (t *Table) FlaggedCount() int {
	n := 0
	for _, f := range t.flagsOrNil() {
		if f {
			n++
		}
	}
	return n
}

// Flagged returns the flagged rows as a new table that keeps the flag column.
func (t *Table) Flagged() *Table {
	out := &Table{flagName: t.FlagName(), flags: []bool{}, rows: []models.Transaction{}}
	for i, f := range t.flagsOrNil() {
		if f {
			out.rows = append(out.rows, t.rows[i])
			out.flags = append(out.flags, true)
		}
	}
	return out
}

func (t *Table) flagsOrNil() []bool {
	if t == nil {
		return nil
	}
	return t.flags
}

// where keeps the rows for which keep returns true, preserving any flags.
func (t *Table) where(keep func(*models.Transaction) bool) *Table {
	out := &Table{flagName: t.FlagName(), rows: make([]models.Transaction, 0, t.Len())}
	if t.HasFlags() {
		out.flags = make([]bool, 0, t.Len())
	}
	for i := range t.Len() {
		if !keep(&t.rows[i]) {
			continue
		}
		out.rows = append(out.rows, t.rows[i])
		if out.flags != nil {
			out.flags = append(out.flags, t.flags[i])
		}
	}
	return out
}
