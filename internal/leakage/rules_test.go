package leakage

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"leakage-dashboard/internal/models"
)

func flagsOf(t *Table) []bool {
	out := make([]bool, t.Len())
	for i := range out {
		out[i] = t.Flag(i)
	}
	return out
}

func TestRuleRevenue_FlagsLowMargins(t *testing.T) {
	table := marginTable(1, 4, 6, 10)

	got := FlagRisk(table, RuleRevenue)

	if diff := cmp.Diff([]bool{true, true, false, false}, flagsOf(got)); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
	if got.FlagName() != "profit_leakage_flag" {
		t.Errorf("FlagName() = %q", got.FlagName())
	}
}

func TestRuleDiscount_RequiresBothConditions(t *testing.T) {
	table := NewTable([]models.Transaction{
		{OrderID: "high-discount", DiscountPercent: 40, ProfitMarginPercent: 3},
		{OrderID: "low-discount", DiscountPercent: 20, ProfitMarginPercent: 2},
		{OrderID: "healthy-margin", DiscountPercent: 45, ProfitMarginPercent: 12},
	})

	got := FlagRisk(table, RuleDiscount)
	if diff := cmp.Diff([]bool{true, false, false}, flagsOf(got)); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
}

func TestRuleDiscount_WithPageFilters(t *testing.T) {
	table := NewTable([]models.Transaction{
		{OrderID: "a", DiscountPercent: 40, ProfitMarginPercent: 3},
		{OrderID: "b", DiscountPercent: 20, ProfitMarginPercent: 2},
	})

	view, err := ApplyRangeFilter(table, DiscountPercent, 35, 50)
	if err != nil {
		t.Fatal(err)
	}
	view, err = ApplyRangeFilter(view, ProfitMarginPercent, 0, 4)
	if err != nil {
		t.Fatal(err)
	}

	flagged := FlagRisk(view, RuleDiscount).Flagged()
	if diff := cmp.Diff([]string{"a"}, orderIDs(flagged)); diff != "" {
		t.Errorf("flagged ids mismatch (-want +got):\n%s", diff)
	}
}

func TestRuleInventory_OverstockAndHoldingCostIndependently(t *testing.T) {
	tests := []struct {
		name string
		rows []models.Transaction
		want []bool
	}{
		{
			name: "overstock flags, holding cost at Q75 does not",
			rows: []models.Transaction{
				{OrderID: "over", ReorderLevel: 10, InventoryLevel: 25, HoldingCost: 100},
				{OrderID: "ok", ReorderLevel: 10, InventoryLevel: 15, HoldingCost: 100},
			},
			want: []bool{true, false},
		},
		{
			name: "holding cost above Q75 flags without overstock",
			rows: []models.Transaction{
				{OrderID: "over", ReorderLevel: 10, InventoryLevel: 25, HoldingCost: 100},
				{OrderID: "ok", ReorderLevel: 10, InventoryLevel: 15, HoldingCost: 100},
				{OrderID: "costly", ReorderLevel: 10, InventoryLevel: 15, HoldingCost: 500},
			},
			want: []bool{true, false, true},
		},
		{
			name: "exactly twice the reorder level is not overstock",
			rows: []models.Transaction{
				{OrderID: "edge", ReorderLevel: 10, InventoryLevel: 20, HoldingCost: 1},
			},
			want: []bool{false},
		},
		{
			name: "huge reorder level does not wrap into overstock",
			rows: []models.Transaction{
				{OrderID: "huge", ReorderLevel: math.MaxInt, InventoryLevel: 10, HoldingCost: 1},
			},
			want: []bool{false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlagRisk(NewTable(tt.rows), RuleInventory)
			if diff := cmp.Diff(tt.want, flagsOf(got)); diff != "" {
				t.Errorf("flags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRulePayment_UsesViewQuantiles(t *testing.T) {
	table := NewTable([]models.Transaction{
		{OrderID: "1", PaymentDelayDays: 1, OutstandingAmount: 10},
		{OrderID: "2", PaymentDelayDays: 2, OutstandingAmount: 10},
		{OrderID: "3", PaymentDelayDays: 3, OutstandingAmount: 10},
		{OrderID: "4", PaymentDelayDays: 4, OutstandingAmount: 10},
	})

	// Q75(delay) = 3.25, Q75(outstanding) = 10
	got := FlagRisk(table, RulePayment)
	if diff := cmp.Diff([]bool{false, false, false, true}, flagsOf(got)); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}

	// narrowing to delays 1..3 moves Q75 to 2.5 so row 3 is now flagged
	narrow, err := ApplyRangeFilter(table, PaymentDelayDays, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	got = FlagRisk(narrow, RulePayment)
	if diff := cmp.Diff([]bool{false, false, true}, flagsOf(got)); diff != "" {
		t.Errorf("narrowed flags mismatch (-want +got):\n%s", diff)
	}
}

func TestRuleReturns(t *testing.T) {
	table := NewTable([]models.Transaction{
		{OrderID: "1", RefundAmount: 0, QuantitySold: 1},
		{OrderID: "2", RefundAmount: 0, QuantitySold: 1},
		{OrderID: "3", RefundAmount: 0, QuantitySold: 1},
		{OrderID: "4", RefundAmount: 100, QuantitySold: 1},
	})

	// Q75(refund) = 25, Q75(quantity) = 1
	got := FlagRisk(table, RuleReturns)
	if diff := cmp.Diff([]bool{false, false, false, true}, flagsOf(got)); diff != "" {
		t.Errorf("flags mismatch (-want +got):\n%s", diff)
	}
}

func TestQuantileRules_SingleRow(t *testing.T) {
	row := models.Transaction{
		OrderID: "only", PaymentDelayDays: 40, OutstandingAmount: 900,
		RefundAmount: 50, QuantitySold: 9, HoldingCost: 70, ReorderLevel: 10, InventoryLevel: 5,
	}

	for _, rule := range []Rule{RuleInventory, RulePayment, RuleReturns} {
		t.Run(rule.String(), func(t *testing.T) {
			got := FlagRisk(NewTable([]models.Transaction{row}), rule)
			// Q75 of a single value is the value itself, and nothing is
			// strictly greater than itself
			if got.Len() != 1 || got.Flag(0) {
				t.Errorf("single row should be evaluated and not flagged, got len=%d flag=%v", got.Len(), got.Flag(0))
			}
		})
	}
}

func TestFlagRisk_EmptyView(t *testing.T) {
	empty, err := ApplyRangeFilter(sampleTable(), Revenue, 7, 7)
	if err != nil {
		t.Fatal(err)
	}

	for _, rule := range Rules() {
		got := FlagRisk(empty, rule)
		if got.Len() != 0 || got.FlaggedCount() != 0 {
			t.Errorf("%s: flagged empty view has len=%d flagged=%d", rule, got.Len(), got.FlaggedCount())
		}
		if rule.Thresholds(empty) == nil && rule != RulePayment && rule != RuleReturns {
			t.Errorf("%s: fixed thresholds should still be reported", rule)
		}
	}
}

func TestFlagRisk_DoesNotMutateInput(t *testing.T) {
	table := sampleTable()
	before := table.Rows()

	flagged := FlagRisk(table, RulePayment)

	if table.HasFlags() {
		t.Error("input table should not gain a flag column")
	}
	if !flagged.HasFlags() {
		t.Error("result should carry a flag column")
	}
	if diff := cmp.Diff(before, table.Rows()); diff != "" {
		t.Errorf("input rows changed (-before +after):\n%s", diff)
	}
}

func TestFlagRisk_NarrowingIsMonotonic(t *testing.T) {
	table := sampleTable()

	for _, rule := range Rules() {
		wide := FlagRisk(table, rule)
		for _, hi := range []float64{180, 150, 120} {
			view, err := ApplyRangeFilter(table, OutstandingAmount, 0, hi)
			if err != nil {
				t.Fatal(err)
			}
			narrow := FlagRisk(view, rule)
			removed := table.Len() - view.Len()
			if narrow.FlaggedCount()-wide.FlaggedCount() > removed {
				t.Errorf("%s hi=%g: flagged grew from %d to %d with only %d rows removed",
					rule, hi, wide.FlaggedCount(), narrow.FlaggedCount(), removed)
			}
		}
	}
}

func TestRowLocalRules_NarrowingNeverAddsFlags(t *testing.T) {
	table := sampleTable()

	for _, rule := range []Rule{RuleRevenue, RuleDiscount} {
		wide := FlagRisk(table, rule).FlaggedCount()
		view, err := ApplyRangeFilter(table, Revenue, 120, 250)
		if err != nil {
			t.Fatal(err)
		}
		if narrow := FlagRisk(view, rule).FlaggedCount(); narrow > wide {
			t.Errorf("%s: narrowing raised flagged count from %d to %d", rule, wide, narrow)
		}
	}
}

func TestEmptyFilteredView_EndToEnd(t *testing.T) {
	// lo == hi on a value no row has
	view, err := ApplyRangeFilter(sampleTable(), Revenue, 101, 101)
	if err != nil {
		t.Fatal(err)
	}

	if v, err := ComputeSummary(view, Revenue, OpSum); err != nil || v != 0 {
		t.Errorf("sum = %g, %v; want 0, nil", v, err)
	}
	if v, err := ComputeSummary(view, Revenue, OpCount); err != nil || v != 0 {
		t.Errorf("count = %g, %v; want 0, nil", v, err)
	}
	for _, op := range []Op{OpMean, OpMin, OpMax} {
		if _, err := ComputeSummary(view, Revenue, op); err == nil {
			t.Errorf("%s should fail on empty view", op)
		}
	}
	if got := FlagRisk(view, RuleReturns); got.Len() != 0 {
		t.Errorf("flagged view Len() = %d, want 0", got.Len())
	}
}

func TestPredicateFunc(t *testing.T) {
	big := PredicateFunc{
		Name: "big_order",
		Test: func(tx *models.Transaction) bool { return tx.QuantitySold >= 7 },
	}
	got := FlagRisk(sampleTable(), big)
	if got.FlagName() != "big_order" {
		t.Errorf("FlagName() = %q", got.FlagName())
	}
	// quantities cycle 1..7 over 20 rows: i = 6 and 13
	if got.FlaggedCount() != 2 {
		t.Errorf("FlaggedCount() = %d, want 2", got.FlaggedCount())
	}
}

func TestParseRule(t *testing.T) {
	for _, rule := range Rules() {
		got, err := ParseRule(rule.String())
		if err != nil || got != rule {
			t.Errorf("ParseRule(%q) = %v, %v", rule.String(), got, err)
		}
	}
	if _, err := ParseRule("shipping"); err == nil {
		t.Error("expected error for unknown domain")
	}
}
