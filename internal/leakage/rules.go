package leakage

import (
	"fmt"
	"slices"
	"strings"

	"leakage-dashboard/internal/models"
)

const (
	LowMarginPercent    = 5.0
	HighDiscountPercent = 30.0
	OverstockFactor     = 2
	RiskQuantile        = 0.75
)

// RowTest reports whether a single row is at risk.
type RowTest func(tx *models.Transaction) bool

// Predicate builds a RowTest for a particular view. Prepare sees the view
// being flagged so any quantile thresholds follow the current filters.
type Predicate interface {
	FlagName() string
	Prepare(view *Table) RowTest
}

// PredicateFunc adapts a row-local test that needs no view statistics.
type PredicateFunc struct {
	Name string
	Test RowTest
}

func (p PredicateFunc) FlagName() string { return p.Name }
func (p PredicateFunc) Prepare(*Table) RowTest { return p.Test }

// FlagRisk evaluates p on every row of t and returns a new table carrying the
// resulting flag column. t itself is not modified.
func FlagRisk(t *Table, p Predicate) *Table {
	out := &Table{
		rows:     t.Rows(),
		flags:    make([]bool, t.Len()),
		flagName: p.FlagName(),
	}
	if out.rows == nil {
		out.rows = []models.Transaction{}
	}
	if t.Len() == 0 {
		return out
	}
	test := p.Prepare(t)
	for i := range out.rows {
		out.flags[i] = test(&out.rows[i])
	}
	return out
}

// Rule is one of the fixed leakage domains.
type Rule int

const (
	RuleRevenue Rule = iota
	RuleDiscount
	RuleInventory
	RulePayment
	RuleReturns
)

var ruleNames = [...]string{
	RuleRevenue:   "revenue",
	RuleDiscount:  "discount",
	RuleInventory: "inventory",
	RulePayment:   "payment",
	RuleReturns:   "returns",
}

var flagNames = [...]string{
	RuleRevenue:   "profit_leakage_flag",
	RuleDiscount:  "discount_leakage_flag",
	RuleInventory: "inventory_leakage_flag",
	RulePayment:   "payment_risk_flag",
	RuleReturns:   "return_risk_flag",
}

func Rules() []Rule {
	return []Rule{RuleRevenue, RuleDiscount, RuleInventory, RulePayment, RuleReturns}
}

func ParseRule(s string) (Rule, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := slices.Index(ruleNames[:], s); i >= 0 {
		return Rule(i), nil
	}
	return 0, fmt.Errorf("unknown leakage domain %q", s)
}

func (r Rule) valid() bool {
	return r >= 0 && int(r) < len(ruleNames)
}

func (r Rule) String() string {
	if !r.valid() {
		return fmt.Sprintf("rule(%d)", int(r))
	}
	return ruleNames[r]
}

func (r Rule) FlagName() string {
	if !r.valid() {
		return "risk_flag"
	}
	return flagNames[r]
}

// Describe renders the rule as a readable condition.
func (r Rule) Describe() string {
	switch r {
	case RuleRevenue:
		return fmt.Sprintf("profit_margin_percent < %g", LowMarginPercent)
	case RuleDiscount:
		return fmt.Sprintf("discount_percent > %g AND profit_margin_percent < %g", HighDiscountPercent, LowMarginPercent)
	case RuleInventory:
		return fmt.Sprintf("inventory_level > %d × reorder_level OR holding_cost > Q75(holding_cost)", OverstockFactor)
	case RulePayment:
		return "payment_delay_days > Q75(payment_delay_days) OR outstanding_amount > Q75(outstanding_amount)"
	case RuleReturns:
		return "refund_amount > Q75(refund_amount) OR quantity_sold > Q75(quantity_sold)"
	default:
		return "never"
	}
}

// Thresholds lists the numeric cut-offs r applies to view. Quantile cut-offs
// are omitted for an empty view.
func (r Rule) Thresholds(view *Table) []models.Threshold {
	switch r {
	case RuleRevenue:
		return []models.Threshold{{Label: "profit_margin_percent <", Value: LowMarginPercent}}
	case RuleDiscount:
		return []models.Threshold{
			{Label: "discount_percent >", Value: HighDiscountPercent},
			{Label: "profit_margin_percent <", Value: LowMarginPercent},
		}
	case RuleInventory:
		out := []models.Threshold{{Label: "inventory_level > reorder_level ×", Value: OverstockFactor}}
		return appendQ75(out, view, HoldingCost)
	case RulePayment:
		return appendQ75(nil, view, PaymentDelayDays, OutstandingAmount)
	case RuleReturns:
		return appendQ75(nil, view, RefundAmount, QuantitySold)
	default:
		return nil
	}
}

func appendQ75(out []models.Threshold, view *Table, cols ...Column) []models.Threshold {
	for _, c := range cols {
		q, err := Quantile(view, c, RiskQuantile)
		if err != nil {
			continue
		}
		out = append(out, models.Threshold{Label: c.String() + " > Q75", Value: q})
	}
	return out
}

// q75 is only called on non-empty views, where Quantile cannot fail for the
// numeric columns used below.
func q75(view *Table, c Column) float64 {
	q, _ := Quantile(view, c, RiskQuantile)
	return q
}

func (r Rule) Prepare(view *Table) RowTest {
	switch r {
	case RuleRevenue:
		return func(tx *models.Transaction) bool {
			return tx.ProfitMarginPercent < LowMarginPercent
		}
	case RuleDiscount:
		return func(tx *models.Transaction) bool {
			return tx.DiscountPercent > HighDiscountPercent && tx.ProfitMarginPercent < LowMarginPercent
		}
	case RuleInventory:
		holding := q75(view, HoldingCost)
		return func(tx *models.Transaction) bool {
			return float64(tx.InventoryLevel) > OverstockFactor*float64(tx.ReorderLevel) || tx.HoldingCost > holding
		}
	case RulePayment:
		delay := q75(view, PaymentDelayDays)
		outstanding := q75(view, OutstandingAmount)
		return func(tx *models.Transaction) bool {
			return float64(tx.PaymentDelayDays) > delay || tx.OutstandingAmount > outstanding
		}
	case RuleReturns:
		refund := q75(view, RefundAmount)
		qty := q75(view, QuantitySold)
		return func(tx *models.Transaction) bool {
			return tx.RefundAmount > refund || float64(tx.QuantitySold) > qty
		}
	default:
		return func(*models.Transaction) bool { return false }
	}
}
