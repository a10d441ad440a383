package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dynamic-pricing",
	Short: "Order ingestion and menu analytics for delivery-platform restaurants",
	Long: `dynamic-pricing ingests delivery-platform orders into a normalized Postgres
schema, either live (webhook or Kafka relay) or from historical exports, and
reports descriptive metrics over the stored orders.

Configuration comes from config/config.json (CONFIG_PATH), .env and DP_* overrides;
DB_USER, DB_PASSWORD and DB_NAME are always read from the environment.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
