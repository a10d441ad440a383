package analytics

import (
	"sort"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryStar    Category = "Star"
	CategoryPuzzle  Category = "Puzzle"
	CategoryCashCow Category = "Cash Cow"
	CategoryDud     Category = "Dud"
)

type MenuItem struct {
	Name          string
	Popularity    int64 // units sold
	Revenue       decimal.Decimal
	Cost          decimal.Decimal
	Profitability decimal.Decimal // (revenue - cost) / revenue
	Category      Category
}

type menuAcc struct {
	qty     int64
	revenue decimal.Decimal
	cost    decimal.Decimal
}

func aggregateItems(orders []Order) (map[string]*menuAcc, []string) {
	acc := make(map[string]*menuAcc)
	var names []string
	for _, o := range orders {
		for _, l := range o.Lines {
			a, ok := acc[l.Name]
			if !ok {
				a = &menuAcc{revenue: decimal.Zero, cost: decimal.Zero}
				acc[l.Name] = a
				names = append(names, l.Name)
			}
			a.qty += l.Quantity
			a.revenue = a.revenue.Add(l.Revenue)
			a.cost = a.cost.Add(l.Cost)
		}
	}
	return acc, names
}

// MenuMatrix places every item by popularity and profit margin against the
// medians of both: Star is high/high, Puzzle low popularity with high margin,
// Cash Cow high popularity with low margin, Dud low/low. Items are keyed by
// name; modifiers are not part of the matrix.
func MenuMatrix(orders []Order) []MenuItem {
	acc, names := aggregateItems(orders)
	if len(names) == 0 {
		return nil
	}

	items := make([]MenuItem, 0, len(names))
	pops := make([]decimal.Decimal, 0, len(names))
	margins := make([]decimal.Decimal, 0, len(names))
	for _, name := range names {
		a := acc[name]
		margin := decimal.Zero
		if !a.revenue.IsZero() {
			margin = a.revenue.Sub(a.cost).Div(a.revenue)
		}
		items = append(items, MenuItem{
			Name:          name,
			Popularity:    a.qty,
			Revenue:       a.revenue,
			Cost:          a.cost,
			Profitability: margin,
		})
		pops = append(pops, decimal.NewFromInt(a.qty))
		margins = append(margins, margin)
	}

	popThreshold, marginThreshold := median(pops), median(margins)
	for i := range items {
		popular := decimal.NewFromInt(items[i].Popularity).GreaterThanOrEqual(popThreshold)
		profitable := items[i].Profitability.GreaterThanOrEqual(marginThreshold)
		switch {
		case popular && profitable:
			items[i].Category = CategoryStar
		case profitable:
			items[i].Category = CategoryPuzzle
		case popular:
			items[i].Category = CategoryCashCow
		default:
			items[i].Category = CategoryDud
		}
	}
	return items
}

type ItemSales struct {
	Name     string
	Quantity int64
}

// ItemsSold lists units sold per item, best sellers first.
func ItemsSold(orders []Order) []ItemSales {
	acc, names := aggregateItems(orders)
	out := make([]ItemSales, 0, len(names))
	for _, name := range names {
		out = append(out, ItemSales{Name: name, Quantity: acc[name].qty})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Quantity > out[j].Quantity })
	return out
}
