package leakage

import (
	"fmt"
	"strconv"
	"strings"

	"leakage-dashboard/internal/models"
)

type Kind int

const (
	KindIdentifier Kind = iota
	KindInteger
	KindDecimal
)

func (k Kind) Numeric() bool {
	return k != KindIdentifier
}

// Column names one field of models.Transaction.
type Column int

const (
	OrderID Column = iota
	CustomerID
	ProductID
	QuantitySold
	Revenue
	Cost
	ProfitMarginPercent
	DiscountPercent
	DiscountAmount
	RefundAmount
	InventoryLevel
	ReorderLevel
	HoldingCost
	SupplierDelayDays
	PaymentDelayDays
	OutstandingAmount

	numColumns
)

type columnInfo struct {
	name  string
	label string
	kind  Kind
	num   func(*models.Transaction) float64
	str   func(*models.Transaction) string
}

var columns = [numColumns]columnInfo{
	OrderID:             {name: "order_id", label: "Order ID", kind: KindIdentifier, str: func(t *models.Transaction) string { return t.OrderID }},
	CustomerID:          {name: "customer_id", label: "Customer ID", kind: KindIdentifier, str: func(t *models.Transaction) string { return t.CustomerID }},
	ProductID:           {name: "product_id", label: "Product ID", kind: KindIdentifier, str: func(t *models.Transaction) string { return t.ProductID }},
	QuantitySold:        {name: "quantity_sold", label: "Quantity Sold", kind: KindInteger, num: func(t *models.Transaction) float64 { return float64(t.QuantitySold) }},
	Revenue:             {name: "revenue", label: "Revenue", kind: KindDecimal, num: func(t *models.Transaction) float64 { return t.Revenue }},
	Cost:                {name: "cost", label: "Cost", kind: KindDecimal, num: func(t *models.Transaction) float64 { return t.Cost }},
	ProfitMarginPercent: {name: "profit_margin_percent", label: "Profit Margin (%)", kind: KindDecimal, num: func(t *models.Transaction) float64 { return t.ProfitMarginPercent }},
	DiscountPercent:     {name: "discount_percent", label: "Discount (%)", kind: KindDecimal, num: func(t *models.Transaction) float64 { return t.DiscountPercent }},
	DiscountAmount:      {name: "discount_amount", label: "Discount Amount", kind: KindDecimal, num: func(t *models.Transaction) float64 { return t.DiscountAmount }},
	RefundAmount:        {name: "refund_amount", label: "Refund Amount", kind: KindDecimal, num: func(t *models.Transaction) float64 { return t.RefundAmount }},
	InventoryLevel:      {name: "inventory_level", label: "Inventory Level", kind: KindInteger, num: func(t *models.Transaction) float64 { return float64(t.InventoryLevel) }},
	ReorderLevel:        {name: "reorder_level", label: "Reorder Level", kind: KindInteger, num: func(t *models.Transaction) float64 { return float64(t.ReorderLevel) }},
	HoldingCost:         {name: "holding_cost", label: "Holding Cost", kind: KindDecimal, num: func(t *models.Transaction) float64 { return t.HoldingCost }},
	SupplierDelayDays:   {name: "supplier_delay_days", label: "Supplier Delay (Days)", kind: KindInteger, num: func(t *models.Transaction) float64 { return float64(t.SupplierDelayDays) }},
	PaymentDelayDays:    {name: "payment_delay_days", label: "Payment Delay (Days)", kind: KindInteger, num: func(t *models.Transaction) float64 { return float64(t.PaymentDelayDays) }},
	OutstandingAmount:   {name: "outstanding_amount", label: "Outstanding Amount", kind: KindDecimal, num: func(t *models.Transaction) float64 { return t.OutstandingAmount }},
}

// Columns returns every column in schema order.
func Columns() []Column {
	out := make([]Column, numColumns)
	for i := range out {
		out[i] = Column(i)
	}
	return out
}

func ParseColumn(name string) (Column, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, c := range columns {
		if c.name == name {
			return Column(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
}

func (c Column) valid() bool {
	return c >= 0 && c < numColumns
}

func (c Column) String() string {
	if !c.valid() {
		return "column(" + strconv.Itoa(int(c)) + ")"
	}
	return columns[c].name
}

func (c Column) Label() string {
	if !c.valid() {
		return c.String()
	}
	return columns[c].label
}

func (c Column) Kind() Kind {
	if !c.valid() {
		return KindIdentifier
	}
	return columns[c].kind
}

// Float returns the numeric value of c for tx. It panics for identifier
// columns; check Kind first.
func (c Column) Float(tx *models.Transaction) float64 {
	return columns[c].num(tx)
}

// Text returns the value of c for tx as it would appear in the source file.
func (c Column) Text(tx *models.Transaction) string {
	info := columns[c]
	if info.kind == KindIdentifier {
		return info.str(tx)
	}
	v := info.num(tx)
	if info.kind == KindInteger {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (c Column) checkNumeric() error {
	if !c.valid() {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, c)
	}
	if !c.Kind().Numeric() {
		return fmt.Errorf("%w: %s is not numeric", ErrColumnKind, c)
	}
	return nil
}

func (c Column) checkIdentifier() error {
	if !c.valid() {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, c)
	}
	if c.Kind() != KindIdentifier {
		return fmt.Errorf("%w: %s is not an identifier", ErrColumnKind, c)
	}
	return nil
}
