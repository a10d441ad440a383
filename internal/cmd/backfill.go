package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Sree5835/dynamic-pricing/internal/service"
	"github.com/spf13/cobra"
)

var (
	backfillPartner string
	backfillFile    string
	backfillOffset  int64
	backfillCursor  string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Import a partner's historical orders",
	Long: `Import a JSON array of historical order payloads for one partner.

Orders are ingested one at a time, each in its own transaction. A failing
order is logged and skipped. Progress is saved in a named cursor, so a rerun
continues after the last processed order; --offset overrides the cursor.`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.Flags().StringVar(&backfillPartner, "partner", "", "partner (restaurant) name as stored in partners")
	backfillCmd.Flags().StringVar(&backfillFile, "file", "", "JSON file with an array of historical orders")
	backfillCmd.Flags().Int64Var(&backfillOffset, "offset", 0, "start at this position instead of the saved cursor")
	backfillCmd.Flags().StringVar(&backfillCursor, "cursor", "", `cursor name (default "backfill:<partner>")`)
	_ = backfillCmd.MarkFlagRequired("partner")
	_ = backfillCmd.MarkFlagRequired("file")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(backfillFile)
	if err != nil {
		return fmt.Errorf("failed to read orders file: %w", err)
	}
	// элементы декодируются по одному в Backfill, чтобы один битый заказ не ронял весь файл
	var orders []json.RawMessage
	if err := json.Unmarshal(data, &orders); err != nil {
		return fmt.Errorf("failed to parse orders file: %w", err)
	}

	stor, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	opts := service.BackfillOptions{CursorName: backfillCursor}
	if cmd.Flags().Changed("offset") {
		opts.Offset = &backfillOffset
	}

	res, err := newIngester(cfg, stor).Backfill(cmd.Context(), backfillPartner, orders, opts)
	fmt.Printf("Backfill of %s: started at %d, ingested %d, failed %d, next position %d of %d\n",
		backfillPartner, res.Start, res.Ingested, len(res.Failures), res.Next, len(orders))
	for _, f := range res.Failures {
		fmt.Printf("  #%d %s: %v\n", f.Position, f.OrderID, f.Err)
	}
	if err != nil {
		return fmt.Errorf("backfill stopped: %w", err)
	}
	return nil
}
