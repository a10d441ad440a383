package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Sree5835/dynamic-pricing/internal/analytics"
	"github.com/spf13/cobra"
)

var (
	metricsPartner  string
	metricsInterval int
	metricsPeriods  []string
	metricsTZ       string
	metricsDays     string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print descriptive metrics for a partner's orders",
	Long: `Load every stored order of a partner and print orders, revenue, acceptance
latency and prep time per interval of the day, by day of week and by day
period, plus the menu matrix.`,
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)

	metricsCmd.Flags().StringVar(&metricsPartner, "partner", "", "partner (restaurant) name")
	metricsCmd.Flags().IntVar(&metricsInterval, "interval", 30, "interval length in minutes")
	metricsCmd.Flags().StringSliceVar(&metricsPeriods, "periods", []string{"00:00", "11:00", "14:00", "17:00", "21:00", "23:59:59"},
		"ascending cut points of the day")
	metricsCmd.Flags().StringVar(&metricsTZ, "tz", "UTC", "IANA time zone the restaurant works in")
	metricsCmd.Flags().StringVar(&metricsDays, "days", "all", "all, weekdays or weekend")
	_ = metricsCmd.MarkFlagRequired("partner")
}

func runMetrics(cmd *cobra.Command, args []string) error {
	loc, err := time.LoadLocation(metricsTZ)
	if err != nil {
		return fmt.Errorf("bad --tz: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stor, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	rows, err := stor.LoadOrders(cmd.Context(), metricsPartner)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Printf("No orders stored for %s\n", metricsPartner)
		return nil
	}

	report, err := analytics.Build(rows, analytics.Options{
		IntervalMinutes: metricsInterval,
		Periods:         metricsPeriods,
		Location:        loc,
		Days:            metricsDays,
	})
	if err != nil {
		return err
	}
	return report.WriteText(os.Stdout)
}
