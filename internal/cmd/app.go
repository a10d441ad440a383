package cmd

import (
	"fmt"
	"log/slog"

	"github.com/Sree5835/dynamic-pricing/config"
	"github.com/Sree5835/dynamic-pricing/internal/entity"
	"github.com/Sree5835/dynamic-pricing/internal/logger"
	"github.com/Sree5835/dynamic-pricing/internal/service"
	"github.com/Sree5835/dynamic-pricing/internal/storage"
)

// loadConfig reads the configuration and installs the logger every command logs through.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.Setup(cfg.Env, cfg.LogLevel)
	slog.Info("Configuration loaded successfully")
	return cfg, nil
}

func openStorage(cfg *config.Config) (*storage.Storage, error) {
	stor, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}
	slog.Info("Successfully connected to DB", "host", cfg.Storage.Host, "port", cfg.Storage.Port, "dbname", cfg.Storage.DBName)
	return stor, nil
}

func newIngester(cfg *config.Config, stor *storage.Storage) *service.Ingester {
	partners := service.NewPartnerCache(stor, cfg.Ingest.PartnerCacheCap)
	normalizer := service.NewNormalizer(stor, partners, entity.CatalogKey(cfg.Ingest.CatalogKey))
	return service.NewIngester(stor, normalizer, cfg.Ingest.OrderTimeout)
}
