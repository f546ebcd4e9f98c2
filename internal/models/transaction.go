package models

// Transaction is one order line from the cleaned leakage dataset.
type Transaction struct {
	OrderID             string  `json:"order_id"`
	CustomerID          string  `json:"customer_id"`
	ProductID           string  `json:"product_id"`
	QuantitySold        int     `json:"quantity_sold"`
	Revenue             float64 `json:"revenue"`
	Cost                float64 `json:"cost"`
	ProfitMarginPercent float64 `json:"profit_margin_percent"`
	DiscountPercent     float64 `json:"discount_percent"`
	DiscountAmount      float64 `json:"discount_amount"`
	RefundAmount        float64 `json:"refund_amount"`
	InventoryLevel      int     `json:"inventory_level"`
	ReorderLevel        int     `json:"reorder_level"`
	HoldingCost         float64 `json:"holding_cost"`
	SupplierDelayDays   int     `json:"supplier_delay_days"`
	PaymentDelayDays    int     `json:"payment_delay_days"`
	OutstandingAmount   float64 `json:"outstanding_amount"`
}

type ScatterPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}
