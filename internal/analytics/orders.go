// пакет analytics считает описательные метрики по выгрузке LoadOrders

package analytics

import (
	"time"

	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/shopspring/decimal"
)

// Order is one order collapsed from its (item, modifier) rows. Money is in
// major units.
type Order struct {
	ID              int64
	PlacedAt        time.Time
	UpdatedAt       *time.Time
	PrepareForAt    *time.Time
	StartPreppingAt *time.Time
	Lines           []Line
	Revenue         decimal.Decimal
	Cost            decimal.Decimal
}

// Line is one ordered item. Revenue is quantity times the stored price, the
// same figure the menu matrix uses; ModifierRevenue adds its modifiers.
type Line struct {
	ItemID          int64
	Name            string
	Quantity        int64
	Revenue         decimal.Decimal
	Cost            decimal.Decimal
	ModifierRevenue decimal.Decimal
}

// major converts fractional*qty to major units; a missing factor counts as zero.
func major(fractional, qty *int64) decimal.Decimal {
	if fractional == nil || qty == nil {
		return decimal.Zero
	}
	return decimal.New((*fractional)*(*qty), -2)
}

// Collapse groups bulk-load rows by order, keeping the first-seen order.
// Item columns repeat once per modifier row, so each (order, item) pair is
// counted once and each modifier row adds its own price. Timestamps are
// moved into loc (UTC when nil).
func Collapse(rows []entity.OrderRow, loc *time.Location) []Order {
	if loc == nil {
		loc = time.UTC
	}
	in := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := t.In(loc)
		return &v
	}

	var orders []Order
	byID := make(map[int64]int)
	lineIdx := make(map[[2]int64]int)

	for i := range rows {
		r := &rows[i]
		oi, ok := byID[r.OrderID]
		if !ok {
			oi = len(orders)
			byID[r.OrderID] = oi
			orders = append(orders, Order{
				ID:              r.OrderID,
				PlacedAt:        r.OrderPlacedAt.In(loc),
				UpdatedAt:       in(r.OrderUpdatedAt),
				PrepareForAt:    in(r.OrderPrepareForAt),
				StartPreppingAt: in(r.OrderStartPreppingAt),
			})
		}
		o := &orders[oi]
		if r.ItemID == nil {
			continue
		}

		key := [2]int64{r.OrderID, *r.ItemID}
		li, ok := lineIdx[key]
		if !ok {
			li = len(o.Lines)
			lineIdx[key] = li
			line := Line{ItemID: *r.ItemID, Revenue: major(r.ItemFractionalPrice, r.ItemQuantity),
				Cost: major(r.ItemFractionalCost, r.ItemQuantity)}
			if r.ItemName != nil {
				line.Name = *r.ItemName
			}
			if r.ItemQuantity != nil {
				line.Quantity = *r.ItemQuantity
			}
			o.Lines = append(o.Lines, line)
			o.Revenue = o.Revenue.Add(line.Revenue)
			o.Cost = o.Cost.Add(line.Cost)
		}
		if r.ModifierID != nil {
			m := major(r.ModifierFractionalPrice, r.ModifierQuantity)
			o.Lines[li].ModifierRevenue = o.Lines[li].ModifierRevenue.Add(m)
			o.Revenue = o.Revenue.Add(m)
		}
	}
	return orders
}

// Profit is revenue minus item cost.
func (o Order) Profit() decimal.Decimal {
	return o.Revenue.Sub(o.Cost)
}

// SplitWeekdays separates orders placed Monday to Friday from weekend orders.
func SplitWeekdays(orders []Order) (weekdays, weekend []Order) {
	for _, o := range orders {
		switch o.PlacedAt.Weekday() {
		case time.Saturday, time.Sunday:
			weekend = append(weekend, o)
		default:
			weekdays = append(weekdays, o)
		}
	}
	return weekdays, weekend
}
