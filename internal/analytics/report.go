package analytics

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Sree5835/dynamic-pricing/internal/entity"
)

type Options struct {
	IntervalMinutes int
	// Periods are cut points of the day, e.g. "00:00", "14:00", "18:45", "23:59:59".
	Periods  []string
	Location *time.Location
	// Days is "weekdays", "weekend" or empty for every day.
	Days string
}

// Report is every metric for one partner's bulk load.
type Report struct {
	Orders            int
	RevenuePerOrder   []Order
	OrdersPerInterval []IntervalStat
	RevenuePerIntvl   []IntervalStat
	AcceptanceLatency []IntervalStat
	PrepTime          []IntervalStat
	OrdersByWeekday   []WeekdayStat
	RevenueByWeekday  []WeekdayStat
	DayPeriods        []PeriodTotals
	ProfitWindows     []WindowProfit
	SkippedWindows    []WindowProfit
	Menu              []MenuItem
	ItemsSold         []ItemSales
}

func Build(rows []entity.OrderRow, opts Options) (*Report, error) {
	periods, err := ParsePeriods(opts.Periods)
	if err != nil {
		return nil, err
	}
	orders := Collapse(rows, opts.Location)
	switch opts.Days {
	case "", "all":
	case "weekdays":
		orders, _ = SplitWeekdays(orders)
	case "weekend":
		_, orders = SplitWeekdays(orders)
	default:
		return nil, fmt.Errorf("unknown day filter %q", opts.Days)
	}

	r := &Report{Orders: len(orders), RevenuePerOrder: orders}
	if r.OrdersPerInterval, err = OrdersPerInterval(orders, opts.IntervalMinutes); err != nil {
		return nil, err
	}
	if r.RevenuePerIntvl, err = RevenuePerInterval(orders, opts.IntervalMinutes); err != nil {
		return nil, err
	}
	if r.AcceptanceLatency, err = AcceptanceLatencyPerInterval(orders, opts.IntervalMinutes); err != nil {
		return nil, err
	}
	if r.PrepTime, err = PrepTimePerInterval(orders, opts.IntervalMinutes); err != nil {
		return nil, err
	}
	r.OrdersByWeekday = OrdersByWeekday(orders)
	r.RevenueByWeekday = RevenueByWeekday(orders)
	r.DayPeriods = ByDayPeriod(orders, periods)
	r.ProfitWindows, r.SkippedWindows = ProfitOverWindows(orders, periods)
	r.Menu = MenuMatrix(orders)
	r.ItemsSold = ItemsSold(orders)
	return r, nil
}

// WriteText prints the report as aligned plain-text tables.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	p := func(format string, args ...any) { fmt.Fprintf(tw, format, args...) }

	p("orders\t%d\n\n", r.Orders)

	intervals := func(title string, stats []IntervalStat) {
		p("%s\nfrom\tmean\tmedian\tdays\n", title)
		for _, s := range stats {
			p("%s\t%s\t%s\t%d\n", s.Start, s.Mean.StringFixed(2), s.Median.StringFixed(2), s.Days)
		}
		p("\n")
	}
	intervals("Orders per interval", r.OrdersPerInterval)
	intervals("Revenue per interval", r.RevenuePerIntvl)
	intervals("Acceptance latency per interval (min)", r.AcceptanceLatency)
	intervals("Prep time per interval (min)", r.PrepTime)

	weekdays := func(title string, stats []WeekdayStat) {
		p("%s\nday\tmean\tmedian\tdays\n", title)
		for _, s := range stats {
			p("%s\t%s\t%s\t%d\n", s.Day, s.Mean.StringFixed(2), s.Median.StringFixed(2), s.Days)
		}
		p("\n")
	}
	weekdays("Orders by day of week", r.OrdersByWeekday)
	weekdays("Revenue by day of week", r.RevenueByWeekday)

	p("Day periods\nperiod\torders\trevenue\tprofit\n")
	for _, t := range r.DayPeriods {
		p("%s\t%d\t%s\t%s\n", t.Period.Label, t.Orders, t.Revenue.StringFixed(2), t.Profit.StringFixed(2))
	}
	p("\n")

	p("Profit by three-week window\nwindow\tstart\tdays\tperiod\tprofit\n")
	for _, wp := range r.ProfitWindows {
		for _, t := range wp.Totals {
			p("%d\t%s\t%d\t%s\t%s\n", wp.Window, wp.Start.Format(time.DateOnly), wp.Days, t.Period.Label, t.Profit.StringFixed(2))
		}
	}
	for _, wp := range r.SkippedWindows {
		p("%d\t%s\t%d\tskipped: too few days with orders\t\n", wp.Window, wp.Start.Format(time.DateOnly), wp.Days)
	}
	p("\n")

	p("Items sold\nitem\tunits\n")
	for _, s := range r.ItemsSold {
		p("%s\t%d\n", s.Name, s.Quantity)
	}
	p("\n")

	p("Menu matrix\nitem\tsold\trevenue\tmargin\tcategory\n")
	for _, m := range r.Menu {
		p("%s\t%d\t%s\t%s\t%s\n", m.Name, m.Popularity, m.Revenue.StringFixed(2), m.Profitability.StringFixed(3), m.Category)
	}
	return tw.Flush()
}
