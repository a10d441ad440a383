package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defoltCfgPath = "config/config.json"
	envPrefix     = "DP"
)

type Config struct {
	Env      string   `mapstructure:"env"`
	LogLevel string   `mapstructure:"log_level"`
	Storage  Storage  `mapstructure:"storage"`
	Kafka    Kafka    `mapstructure:"kafka"`
	Server   Server   `mapstructure:"server"`
	Ingest   Ingest   `mapstructure:"ingest"`
	Export   Export   `mapstructure:"export"`
	Partners []string `mapstructure:"partners"`
}

// Storage: креды БД приходят только из окружения, в файле их нет
type Storage struct {
	Host       string `mapstructure:"db_host"`
	Port       string `mapstructure:"db_port"`
	SSLMode    string `mapstructure:"sslmode"`
	MaxConns   int32  `mapstructure:"max_conns"`
	DBUser     string `mapstructure:"-"`
	DBName     string `mapstructure:"-"`
	DBPassword string `mapstructure:"-"`
}

type Kafka struct {
	Brokers        []string      `mapstructure:"brokers"`
	Topic          string        `mapstructure:"topic"`
	GroupID        string        `mapstructure:"group_id"`
	ConsumerNumber int           `mapstructure:"consumer_number"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

type Server struct {
	Addr string `mapstructure:"addr"`
}

type Ingest struct {
	// CatalogKey is "platform_id" or "name", see entity.CatalogKey.
	CatalogKey      string        `mapstructure:"catalog_key"`
	OrderTimeout    time.Duration `mapstructure:"order_timeout"`
	PartnerCacheCap int           `mapstructure:"partner_cache_cap"`
}

// Export targets any S3-compatible bucket; Endpoint is empty for AWS itself.
type Export struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("log_level", "info")
	v.SetDefault("storage.db_host", "localhost")
	v.SetDefault("storage.db_port", "5432")
	v.SetDefault("storage.sslmode", "disable")
	v.SetDefault("storage.max_conns", 4)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "orders")
	v.SetDefault("kafka.group_id", "order-ingest-group")
	v.SetDefault("kafka.consumer_number", 1)
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", "2s")
	v.SetDefault("server.addr", "localhost:8080")
	v.SetDefault("ingest.catalog_key", "platform_id")
	v.SetDefault("ingest.order_timeout", "30s")
	v.SetDefault("ingest.partner_cache_cap", 64)
	v.SetDefault("export.region", "auto")
	v.SetDefault("export.prefix", "orders")
	v.SetDefault("export.endpoint", "")
	v.SetDefault("export.bucket", "")
	v.SetDefault("export.access_key", "")
	v.SetDefault("export.secret_key", "")
	v.SetDefault("partners", []string{})
}

// Load reads .env, the JSON config file at CONFIG_PATH and DP_* overrides.
func Load() (*Config, error) {
	// .env может отсутствовать, тогда переменные берём из окружения
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("can`t load .env file: %w", err)
	}

	cfgPath, ok := os.LookupEnv("CONFIG_PATH")
	if !ok {
		cfgPath = defoltCfgPath
	}
	if _, err := os.Stat(cfgPath); err != nil {
		return nil, fmt.Errorf("config file by way %s is not readable: %w", cfgPath, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(cfgPath)
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, secret := range []struct {
		env string
		dst *string
	}{
		{"DB_USER", &cfg.Storage.DBUser},
		{"DB_PASSWORD", &cfg.Storage.DBPassword},
		{"DB_NAME", &cfg.Storage.DBName},
	} {
		val, ok := os.LookupEnv(secret.env)
		if !ok {
			return nil, fmt.Errorf("%s environment variable is not set", secret.env)
		}
		*secret.dst = val
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Ingest.CatalogKey {
	case "platform_id", "name":
	default:
		return fmt.Errorf("ingest.catalog_key must be platform_id or name, got %q", c.Ingest.CatalogKey)
	}
	if c.Kafka.ConsumerNumber < 1 {
		return fmt.Errorf("kafka.consumer_number must be at least 1, got %d", c.Kafka.ConsumerNumber)
	}
	if c.Ingest.OrderTimeout <= 0 {
		return fmt.Errorf("ingest.order_timeout must be positive, got %s", c.Ingest.OrderTimeout)
	}
	return nil
}
