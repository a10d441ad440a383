package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sree5835/dynamic-pricing/internal/broker"
	"github.com/Sree5835/dynamic-pricing/internal/server"
	"github.com/spf13/cobra"
)

var serveWithConsumer bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook HTTP server",
	Long: `Start the HTTP server with the platform webhook endpoints
(POST /dev-webhook, POST /prod-webhook) and GET /health.

With --consume the Kafka consumer runs in the same process.`,
	RunE: runServe,
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Ingest webhook events relayed through Kafka",
	Long: `Run kafka.consumer_number readers in the configured consumer group.
Each message is a webhook envelope and goes through the same rules as the
HTTP endpoint. The command exits with an error when an event keeps failing;
its offset is left uncommitted so it is redelivered on restart.`,
	RunE: runConsume,
}

func init() {
	rootCmd.AddCommand(serveCmd, consumeCmd)
	serveCmd.Flags().BoolVar(&serveWithConsumer, "consume", false, "also run the Kafka consumer")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stor, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	ingester := newIngester(cfg, stor)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	if serveWithConsumer {
		consumer := broker.NewKafkaConsumer(cfg.Kafka, ingester)
		defer consumer.Close()
		slog.Info("Kafka consumer initialized", "topic", cfg.Kafka.Topic, "workers", cfg.Kafka.ConsumerNumber)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				errCh <- fmt.Errorf("consumer error: %w", err)
			}
		}()
	}

	srv := server.NewServer(cfg.Server.Addr, ingester, stor)
	slog.Info("HTTP server initialized", "address", cfg.Server.Addr)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server stopped")
	return runErr
}

func runConsume(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stor, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := broker.NewKafkaConsumer(cfg.Kafka, newIngester(cfg, stor))
	defer consumer.Close()
	slog.Info("Kafka consumer initialized", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID, "workers", cfg.Kafka.ConsumerNumber)

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consumer error: %w", err)
	}
	return nil
}
