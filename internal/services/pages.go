package services

import (
	"fmt"
	"math"
	"slices"

	"github.com/dustin/go-humanize"

	"leakage-dashboard/internal/leakage"
)

// Format controls how a KPI value is displayed.
type Format int

const (
	FormatCount Format = iota
	FormatCurrency
	FormatPercent
	FormatWhole
	FormatDays
	FormatWholeDays
)

const currencySymbol = "₹"

func (f Format) Render(v float64) string {
	switch f {
	case FormatCount, FormatWhole:
		return humanize.Comma(int64(v))
	case FormatCurrency:
		return currencySymbol + " " + humanize.Comma(int64(math.Round(v)))
	case FormatPercent:
		return fmt.Sprintf("%.2f", v)
	case FormatDays:
		return fmt.Sprintf("%.1f days", v)
	case FormatWholeDays:
		return fmt.Sprintf("%d days", int64(v))
	default:
		return humanize.Ftoa(v)
	}
}

type KPI struct {
	Label  string
	Column leakage.Column
	Op     leakage.Op
	Format Format
}

type ChartKind string

const (
	ChartScatter   ChartKind = "scatter"
	ChartHistogram ChartKind = "histogram"
)

type ChartSpec struct {
	ID    string
	Title string
	Kind  ChartKind
	X     leakage.Column
	// Y is ignored for histograms.
	Y leakage.Column
}

// Page describes one leakage module: which filters it offers, what it
// summarises and which columns of the flagged rows it shows.
type Page struct {
	Rule            leakage.Rule
	Title           string
	NavLabel        string
	Summary         string
	Ranges          []leakage.Column
	Sets            []leakage.Column
	KPIs            []KPI
	Charts          []ChartSpec
	FlagLabel       string
	TableColumns    []leakage.Column
	Insights        []string
	Recommendations []string
}

func (p Page) Slug() string {
	return p.Rule.String()
}

// ColumnNames returns the table column names in display order.
func (p Page) ColumnNames() []string {
	out := make([]string, len(p.TableColumns))
	for i, c := range p.TableColumns {
		out[i] = c.String()
	}
	return out
}

var pages = []Page{
	{
		Rule:     leakage.RuleRevenue,
		Title:    "Revenue & Profit Leakage Analysis",
		NavLabel: "Revenue & Profit",
		Summary:  "Revenue, cost and profit margin patterns that reveal hidden profit leakage caused by pricing gaps, discounts and cost inefficiencies.",
		Ranges:   []leakage.Column{leakage.QuantitySold, leakage.ProfitMarginPercent, leakage.DiscountPercent, leakage.Revenue},
		KPIs: []KPI{
			{"Total Orders", leakage.OrderID, leakage.OpCount, FormatCount},
			{"Total Revenue", leakage.Revenue, leakage.OpSum, FormatCurrency},
			{"Total Cost", leakage.Cost, leakage.OpSum, FormatCurrency},
			{"Avg Profit Margin (%)", leakage.ProfitMarginPercent, leakage.OpMean, FormatPercent},
		},
		Charts: []ChartSpec{
			{ID: "revenue-cost", Title: "Revenue vs Cost", Kind: ChartScatter, X: leakage.Revenue, Y: leakage.Cost},
			{ID: "margin-distribution", Title: "Profit Margin Distribution", Kind: ChartHistogram, X: leakage.ProfitMarginPercent},
		},
		FlagLabel:    "Orders with profit margin < 5%",
		TableColumns: []leakage.Column{leakage.OrderID, leakage.Revenue, leakage.Cost, leakage.DiscountPercent, leakage.ProfitMarginPercent},
		Insights: []string{
			"High revenue does not guarantee profitability",
			"Excessive discounts significantly erode margins",
			"Cost-heavy orders contribute to hidden losses",
			"Low-margin transactions are prime leakage sources",
		},
		Recommendations: []string{
			"Review pricing strategy for low-margin orders",
			"Set discount thresholds based on margin impact",
			"Optimize cost structure for bulk orders",
		},
	},
	{
		Rule:     leakage.RuleDiscount,
		Title:    "Discount Leakage Analysis",
		NavLabel: "Discounts",
		Summary:  "How discount strategies affect revenue and profit. Excessive or poorly controlled discounts are a primary cause of leakage.",
		Ranges:   []leakage.Column{leakage.DiscountPercent, leakage.QuantitySold, leakage.ProfitMarginPercent},
		KPIs: []KPI{
			{"Total Orders", leakage.OrderID, leakage.OpCount, FormatCount},
			{"Avg Discount (%)", leakage.DiscountPercent, leakage.OpMean, FormatPercent},
			{"Avg Profit Margin (%)", leakage.ProfitMarginPercent, leakage.OpMean, FormatPercent},
			{"Total Discount Amount", leakage.DiscountAmount, leakage.OpSum, FormatCurrency},
		},
		Charts: []ChartSpec{
			{ID: "discount-quantity", Title: "Discount vs Quantity Sold", Kind: ChartScatter, X: leakage.DiscountPercent, Y: leakage.QuantitySold},
			{ID: "discount-margin", Title: "Discount vs Profit Margin", Kind: ChartScatter, X: leakage.DiscountPercent, Y: leakage.ProfitMarginPercent},
		},
		FlagLabel:    "Orders with high discount (>30%) & low profit (<5%)",
		TableColumns: []leakage.Column{leakage.OrderID, leakage.DiscountPercent, leakage.DiscountAmount, leakage.Revenue, leakage.ProfitMarginPercent},
		Insights: []string{
			"Higher discounts do not always result in higher quantity sold",
			"Profit margins decline sharply beyond certain discount thresholds",
			"Many transactions operate at near-zero margin due to aggressive discounting",
		},
		Recommendations: []string{
			"Introduce discount caps based on margin sensitivity",
			"Monitor discount effectiveness by product category",
			"Replace flat discounts with volume-based pricing",
		},
	},
	{
		Rule:     leakage.RuleInventory,
		Title:    "Inventory Leakage Analysis",
		NavLabel: "Inventory",
		Summary:  "Inventory inefficiencies that cause leakage, including overstocking, holding cost and supplier delays.",
		Ranges:   []leakage.Column{leakage.InventoryLevel, leakage.HoldingCost, leakage.SupplierDelayDays},
		KPIs: []KPI{
			{"Total Products", leakage.ProductID, leakage.OpNUnique, FormatCount},
			{"Avg Inventory Level", leakage.InventoryLevel, leakage.OpMean, FormatWhole},
			{"Avg Holding Cost", leakage.HoldingCost, leakage.OpMean, FormatCurrency},
			{"Avg Supplier Delay", leakage.SupplierDelayDays, leakage.OpMean, FormatDays},
		},
		Charts: []ChartSpec{
			{ID: "inventory-holding", Title: "Inventory Level vs Holding Cost", Kind: ChartScatter, X: leakage.InventoryLevel, Y: leakage.HoldingCost},
			{ID: "supplier-inventory", Title: "Supplier Delay vs Inventory Level", Kind: ChartScatter, X: leakage.SupplierDelayDays, Y: leakage.InventoryLevel},
		},
		FlagLabel:    "Potential inventory leakage records",
		TableColumns: []leakage.Column{leakage.ProductID, leakage.InventoryLevel, leakage.ReorderLevel, leakage.HoldingCost, leakage.SupplierDelayDays},
		Insights: []string{
			"Overstocking significantly increases holding cost",
			"Supplier delays force excess buffer inventory",
			"Poor reorder thresholds amplify leakage risk",
		},
		Recommendations: []string{
			"Optimize reorder levels using demand trends",
			"Penalize chronic supplier delays",
			"Introduce inventory aging analysis",
		},
	},
	{
		Rule:     leakage.RulePayment,
		Title:    "Payment Delay Analysis",
		NavLabel: "Payments",
		Summary:  "Delayed payments and their impact on leakage: customers and orders with high outstanding amounts and late payments.",
		Ranges:   []leakage.Column{leakage.PaymentDelayDays, leakage.OutstandingAmount},
		Sets:     []leakage.Column{leakage.CustomerID},
		KPIs: []KPI{
			{"Total Customers", leakage.CustomerID, leakage.OpNUnique, FormatCount},
			{"Total Outstanding", leakage.OutstandingAmount, leakage.OpSum, FormatCurrency},
			{"Avg Payment Delay", leakage.PaymentDelayDays, leakage.OpMean, FormatDays},
			{"Max Payment Delay", leakage.PaymentDelayDays, leakage.OpMax, FormatWholeDays},
		},
		Charts: []ChartSpec{
			{ID: "delay-outstanding", Title: "Payment Delay vs Outstanding Amount", Kind: ChartScatter, X: leakage.PaymentDelayDays, Y: leakage.OutstandingAmount},
			{ID: "delay-distribution", Title: "Payment Delay Distribution", Kind: ChartHistogram, X: leakage.PaymentDelayDays},
		},
		FlagLabel:    "Potential payment delay risk records",
		TableColumns: []leakage.Column{leakage.OrderID, leakage.CustomerID, leakage.OutstandingAmount, leakage.PaymentDelayDays},
		Insights: []string{
			"High payment delays impact cash flow and increase leakage risk",
			"Certain customers or orders consistently delay payments",
			"Large outstanding amounts amplify financial risk",
		},
		Recommendations: []string{
			"Set automated alerts for overdue payments",
			"Implement early payment incentives",
			"Review credit terms for high-risk customers",
			"Monitor the top 25% of delayed payments regularly",
		},
	},
	{
		Rule:     leakage.RuleReturns,
		Title:    "Returns & Refunds Analysis",
		NavLabel: "Returns",
		Summary:  "Returned orders and refund amounts that point to leakage from product returns or incorrect transactions.",
		Ranges:   []leakage.Column{leakage.RefundAmount, leakage.QuantitySold},
		Sets:     []leakage.Column{leakage.CustomerID, leakage.ProductID},
		KPIs: []KPI{
			{"Total Orders Returned", leakage.OrderID, leakage.OpCount, FormatCount},
			{"Total Refund Amount", leakage.RefundAmount, leakage.OpSum, FormatCurrency},
			{"Avg Refund Amount", leakage.RefundAmount, leakage.OpMean, FormatCurrency},
			{"Max Refund Amount", leakage.RefundAmount, leakage.OpMax, FormatCurrency},
		},
		Charts: []ChartSpec{
			{ID: "quantity-refund", Title: "Quantity Returned vs Refund Amount", Kind: ChartScatter, X: leakage.QuantitySold, Y: leakage.RefundAmount},
			{ID: "refund-distribution", Title: "Refund Amount Distribution", Kind: ChartHistogram, X: leakage.RefundAmount},
		},
		FlagLabel:    "Potential return & refund risk records",
		TableColumns: []leakage.Column{leakage.OrderID, leakage.CustomerID, leakage.ProductID, leakage.QuantitySold, leakage.RefundAmount},
		Insights: []string{
			"High refund amounts or return quantities indicate potential leakage",
			"Certain products or customers contribute disproportionately to losses",
			"Frequent returns increase operational cost and inventory risk",
		},
		Recommendations: []string{
			"Review refund and return policies for high-risk products",
			"Track customers with repeated high-value returns",
			"Introduce quality checks and better order verification",
			"Monitor the top 25% of refund amounts regularly",
		},
	},
}

// clone copies the slice fields so callers cannot edit the shared definitions.
func (p Page) clone() Page {
	p.Ranges = slices.Clone(p.Ranges)
	p.Sets = slices.Clone(p.Sets)
	p.KPIs = slices.Clone(p.KPIs)
	p.Charts = slices.Clone(p.Charts)
	p.TableColumns = slices.Clone(p.TableColumns)
	p.Insights = slices.Clone(p.Insights)
	p.Recommendations = slices.Clone(p.Recommendations)
	return p
}

// Pages returns the leakage modules in navigation order.
func Pages() []Page {
	out := make([]Page, len(pages))
	for i, p := range pages {
		out[i] = p.clone()
	}
	return out
}

func PageFor(rule leakage.Rule) (Page, bool) {
	for _, p := range pages {
		if p.Rule == rule {
			return p.clone(), true
		}
	}
	return Page{}, false
}

// PageBySlug resolves a URL path segment such as "payment".
func PageBySlug(slug string) (Page, error) {
	rule, err := leakage.ParseRule(slug)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %s", ErrUnknownDomain, slug)
	}
	p, _ := PageFor(rule)
	return p, nil
}
