package cmd

import (
	"fmt"

	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create the order schema and seed partners",
	Long: `Create the seven order tables and the ingest cursor table if they do not
exist, add the unique index for the configured catalog key and insert the
partners listed in the config. Safe to run repeatedly.`,
	RunE: runInitDB,
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stor, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	if err := stor.InitSchema(cmd.Context(), entity.CatalogKey(cfg.Ingest.CatalogKey), cfg.Partners); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}

	partners, err := stor.ListPartners(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Schema ready, %d partner(s): %v\n", len(partners), partners)
	return nil
}
