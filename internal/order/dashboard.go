package order

import "github.com/shopspring/decimal"

// Dashboard summarizes the synchronized orders for the admin view.
type Dashboard struct {
	Revenue      decimal.Decimal `json:"revenue"`
	PendingCount int             `json:"pendingCount"`
	OrderCount   int             `json:"orderCount"`
}

// ComputeDashboard sums every order total regardless of status and counts
// the orders still Processing.
func ComputeDashboard(orders []Order) Dashboard {
	d := Dashboard{Revenue: decimal.Zero, OrderCount: len(orders)}
	for _, o := range orders {
		d.Revenue = d.Revenue.Add(o.Total)
		if o.Status == StatusProcessing {
			d.PendingCount++
		}
	}
	return d
}
