package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Sree5835/dynamic-pricing/internal/broker"
	"github.com/spf13/cobra"
)

var publishFile string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish webhook events from a JSON file to Kafka",
	Long: `Publish one webhook envelope, or a JSON array of envelopes, to the
configured topic. Messages are keyed by order id.`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&publishFile, "file", "", "JSON file with a webhook event or an array of events")
	_ = publishCmd.MarkFlagRequired("file")
}

// splitEvents accepts either one JSON object or an array of them.
func splitEvents(data []byte) ([][]byte, error) {
	var many []json.RawMessage
	if err := json.Unmarshal(data, &many); err == nil {
		events := make([][]byte, 0, len(many))
		for _, m := range many {
			events = append(events, m)
		}
		return events, nil
	}
	var one json.RawMessage
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("file is not JSON: %w", err)
	}
	return [][]byte{one}, nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(publishFile)
	if err != nil {
		return fmt.Errorf("failed to read json: %w", err)
	}
	events, err := splitEvents(data)
	if err != nil {
		return err
	}

	p := broker.NewProducer(cfg.Kafka)
	defer p.Close()
	if err := p.Publish(cmd.Context(), events...); err != nil {
		return err
	}
	fmt.Printf("Published %d message(s) to %s\n", len(events), cfg.Kafka.Topic)
	return nil
}
