package cmd

import (
	"fmt"

	"github.com/Sree5835/dynamic-pricing/internal/export"
	"github.com/spf13/cobra"
)

var exportPartner string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Upload a partner's orders as CSV to object storage",
	Long: `Write the partner's bulk-load rows as CSV and upload them to
<export.prefix>/<partner>/<UTC timestamp>.csv in export.bucket. Set
export.endpoint for R2, MinIO or another S3-compatible store.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportPartner, "partner", "", "partner (restaurant) name")
	_ = exportCmd.MarkFlagRequired("partner")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stor, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	client, err := export.NewS3Client(cmd.Context(), cfg.Export)
	if err != nil {
		return err
	}

	key, rows, err := export.NewExporter(stor, client, cfg.Export).Export(cmd.Context(), exportPartner)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d row(s) to s3://%s/%s\n", rows, cfg.Export.Bucket, key)
	return nil
}
