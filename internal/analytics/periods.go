package analytics

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DayPeriod is a half-open [From, To) slice of the day, in seconds since midnight.
type DayPeriod struct {
	From  int
	To    int
	Label string
}

// ParsePeriods turns ascending cut points ("00:00", "14:00", "23:59:59") into
// consecutive periods.
func ParsePeriods(cuts []string) ([]DayPeriod, error) {
	if len(cuts) < 2 {
		return nil, errors.New("at least two cut points are needed")
	}
	secs := make([]int, len(cuts))
	for i, c := range cuts {
		s, err := parseClock(c)
		if err != nil {
			return nil, err
		}
		if i > 0 && s <= secs[i-1] {
			return nil, fmt.Errorf("cut point %q is not after %q", c, cuts[i-1])
		}
		secs[i] = s
	}

	periods := make([]DayPeriod, 0, len(cuts)-1)
	for i := 0; i+1 < len(secs); i++ {
		periods = append(periods, DayPeriod{
			From:  secs[i],
			To:    secs[i+1],
			Label: clock(secs[i]) + " to " + clock(secs[i+1]),
		})
	}
	return periods, nil
}

func parseClock(s string) (int, error) {
	for _, layout := range []string{time.TimeOnly, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*3600 + t.Minute()*60 + t.Second(), nil
		}
	}
	return 0, fmt.Errorf("bad time of day %q, want HH:MM or HH:MM:SS", s)
}

func clock(secs int) string {
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

func secondOfDay(t time.Time) int {
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}

// PeriodTotals are summed over every day in the data set.
type PeriodTotals struct {
	Period  DayPeriod
	Orders  int
	Revenue decimal.Decimal
	Profit  decimal.Decimal
}

// ByDayPeriod totals orders, revenue and profit for each period. Every period
// is reported, empty ones with zeros; orders outside all periods are dropped.
func ByDayPeriod(orders []Order, periods []DayPeriod) []PeriodTotals {
	out := make([]PeriodTotals, len(periods))
	for i, p := range periods {
		out[i] = PeriodTotals{Period: p, Revenue: decimal.Zero, Profit: decimal.Zero}
	}
	for _, o := range orders {
		s := secondOfDay(o.PlacedAt)
		for i, p := range periods {
			if s >= p.From && s < p.To {
				out[i].Orders++
				out[i].Revenue = out[i].Revenue.Add(o.Revenue)
				out[i].Profit = out[i].Profit.Add(o.Profit())
				break
			}
		}
	}
	return out
}

const (
	profitWindow      = 21 * 24 * time.Hour
	minDaysWithOrders = 5
)

// WindowProfit is the per-period profit of one three-week window.
type WindowProfit struct {
	Window int
	Start  time.Time
	Days   int
	Totals []PeriodTotals
}

// ProfitOverWindows splits the data into consecutive three-week windows
// starting at the first order and reports ByDayPeriod for each. Windows with
// orders on fewer than five distinct days are skipped and returned separately.
func ProfitOverWindows(orders []Order, periods []DayPeriod) (kept, skipped []WindowProfit) {
	if len(orders) == 0 {
		return nil, nil
	}
	first, last := orders[0].PlacedAt, orders[0].PlacedAt
	for _, o := range orders[1:] {
		if o.PlacedAt.Before(first) {
			first = o.PlacedAt
		}
		if o.PlacedAt.After(last) {
			last = o.PlacedAt
		}
	}

	windows := int(last.Sub(first)/profitWindow) + 1
	for w := 0; w < windows; w++ {
		start := first.Add(time.Duration(w) * profitWindow)
		end := start.Add(profitWindow)

		var in []Order
		days := make(map[string]struct{})
		for _, o := range orders {
			if !o.PlacedAt.Before(start) && o.PlacedAt.Before(end) {
				in = append(in, o)
				days[o.PlacedAt.Format(time.DateOnly)] = struct{}{}
			}
		}

		wp := WindowProfit{Window: w + 1, Start: start, Days: len(days)}
		if len(days) < minDaysWithOrders {
			skipped = append(skipped, wp)
			continue
		}
		wp.Totals = ByDayPeriod(in, periods)
		kept = append(kept, wp)
	}
	return kept, skipped
}
