package analytics

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Stat summarises one bucket across the days it was observed.
type Stat struct {
	Mean   decimal.Decimal
	Median decimal.Decimal
	Days   int
}

type IntervalStat struct {
	Index int
	Start string // "HH:MM"
	Stat
}

type WeekdayStat struct {
	Day time.Weekday
	Stat
}

func mean(vs []decimal.Decimal) decimal.Decimal {
	if len(vs) == 0 {
		return decimal.Zero
	}
	return sum(vs).Div(decimal.NewFromInt(int64(len(vs))))
}

func sum(vs []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range vs {
		total = total.Add(v)
	}
	return total
}

func median(vs []decimal.Decimal) decimal.Decimal {
	if len(vs) == 0 {
		return decimal.Zero
	}
	s := slices.Clone(vs)
	slices.SortFunc(s, func(a, b decimal.Decimal) int { return a.Cmp(b) })
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return s[mid-1].Add(s[mid]).Div(decimal.NewFromInt(2))
}

type sample struct {
	at time.Time
	v  decimal.Decimal
}

// reduce collapses the samples of one (bucket, day) cell.
type reduce func([]decimal.Decimal) decimal.Decimal

func count(vs []decimal.Decimal) decimal.Decimal { return decimal.NewFromInt(int64(len(vs))) }

// summarize groups samples into (bucket, calendar day) cells. The mean of a
// bucket is the mean over days of forMean(cell); the median is the median over
// days of forMedian(cell). Days without samples in a bucket are not counted.
func summarize(samples []sample, bucket func(time.Time) int, forMean, forMedian reduce) map[int]Stat {
	cells := make(map[int]map[string][]decimal.Decimal)
	for _, s := range samples {
		b := bucket(s.at)
		if cells[b] == nil {
			cells[b] = make(map[string][]decimal.Decimal)
		}
		day := s.at.Format(time.DateOnly)
		cells[b][day] = append(cells[b][day], s.v)
	}

	out := make(map[int]Stat, len(cells))
	for b, days := range cells {
		means := make([]decimal.Decimal, 0, len(days))
		medians := make([]decimal.Decimal, 0, len(days))
		for _, vs := range days {
			means = append(means, forMean(vs))
			medians = append(medians, forMedian(vs))
		}
		out[b] = Stat{Mean: mean(means), Median: median(medians), Days: len(days)}
	}
	return out
}

func intervalBucket(minutes int) func(time.Time) int {
	return func(t time.Time) int {
		return (t.Hour()*60 + t.Minute()) / minutes
	}
}

func checkInterval(minutes int) error {
	if minutes <= 0 || minutes > 24*60 {
		return fmt.Errorf("interval must be between 1 and 1440 minutes, got %d", minutes)
	}
	return nil
}

func toIntervals(stats map[int]Stat, minutes int) []IntervalStat {
	out := make([]IntervalStat, 0, len(stats))
	for idx, st := range stats {
		start := idx * minutes
		out = append(out, IntervalStat{Index: idx, Start: fmt.Sprintf("%02d:%02d", start/60, start%60), Stat: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// OrdersPerInterval: how many orders an average day sees in each interval of the given length.
func OrdersPerInterval(orders []Order, minutes int) ([]IntervalStat, error) {
	if err := checkInterval(minutes); err != nil {
		return nil, err
	}
	samples := make([]sample, 0, len(orders))
	for _, o := range orders {
		samples = append(samples, sample{at: o.PlacedAt, v: decimal.NewFromInt(1)})
	}
	return toIntervals(summarize(samples, intervalBucket(minutes), count, count), minutes), nil
}

// RevenuePerInterval: revenue an average day takes in each interval.
func RevenuePerInterval(orders []Order, minutes int) ([]IntervalStat, error) {
	if err := checkInterval(minutes); err != nil {
		return nil, err
	}
	samples := make([]sample, 0, len(orders))
	for _, o := range orders {
		samples = append(samples, sample{at: o.PlacedAt, v: o.Revenue})
	}
	return toIntervals(summarize(samples, intervalBucket(minutes), sum, sum), minutes), nil
}

func minutesBetween(from, to time.Time) decimal.Decimal {
	ms := int64(to.Sub(from) / time.Millisecond)
	return decimal.New(ms, -3).Div(decimal.NewFromInt(60))
}

// AcceptanceLatencyPerInterval measures minutes from placement to the first
// status update, bucketed by placement time. Orders never updated are ignored.
func AcceptanceLatencyPerInterval(orders []Order, minutes int) ([]IntervalStat, error) {
	if err := checkInterval(minutes); err != nil {
		return nil, err
	}
	var samples []sample
	for _, o := range orders {
		if o.UpdatedAt == nil {
			continue
		}
		samples = append(samples, sample{at: o.PlacedAt, v: minutesBetween(o.PlacedAt, *o.UpdatedAt)})
	}
	return toIntervals(summarize(samples, intervalBucket(minutes), mean, median), minutes), nil
}

// PrepTimePerInterval measures minutes from start of prepping to the
// prepare-for deadline, bucketed by start of prepping.
func PrepTimePerInterval(orders []Order, minutes int) ([]IntervalStat, error) {
	if err := checkInterval(minutes); err != nil {
		return nil, err
	}
	var samples []sample
	for _, o := range orders {
		if o.StartPreppingAt == nil || o.PrepareForAt == nil {
			continue
		}
		samples = append(samples, sample{at: *o.StartPreppingAt, v: minutesBetween(*o.StartPreppingAt, *o.PrepareForAt)})
	}
	return toIntervals(summarize(samples, intervalBucket(minutes), mean, median), minutes), nil
}

func weekdayBucket(t time.Time) int { return int(t.Weekday()) }

// toWeekdays orders days Monday first.
func toWeekdays(stats map[int]Stat) []WeekdayStat {
	out := make([]WeekdayStat, 0, len(stats))
	for d, st := range stats {
		out = append(out, WeekdayStat{Day: time.Weekday(d), Stat: st})
	}
	sort.Slice(out, func(i, j int) bool { return (out[i].Day+6)%7 < (out[j].Day+6)%7 })
	return out
}

func OrdersByWeekday(orders []Order) []WeekdayStat {
	samples := make([]sample, 0, len(orders))
	for _, o := range orders {
		samples = append(samples, sample{at: o.PlacedAt, v: decimal.NewFromInt(1)})
	}
	return toWeekdays(summarize(samples, weekdayBucket, count, count))
}

func RevenueByWeekday(orders []Order) []WeekdayStat {
	samples := make([]sample, 0, len(orders))
	for _, o := range orders {
		samples = append(samples, sample{at: o.PlacedAt, v: o.Revenue})
	}
	return toWeekdays(summarize(samples, weekdayBucket, sum, sum))
}
