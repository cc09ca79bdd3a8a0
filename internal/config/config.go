package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds NIDS configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Model  ModelConfig  `yaml:"model"`
	Store  StoreConfig  `yaml:"store"`
	Alerts AlertsConfig `yaml:"alerts"`
}

type ServerConfig struct {
	Addr                string        `yaml:"addr"`       // HTTP listen address, e.g. ":8000"
	StaticDir           string        `yaml:"static_dir"` // built frontend assets; empty disables static serving
	MaxRequestBodyBytes int64         `yaml:"max_request_body_bytes"`
	ReadHeaderTimeout   time.Duration `yaml:"read_header_timeout"`
	ReadTimeout         time.Duration `yaml:"read_timeout"`
	WriteTimeout        time.Duration `yaml:"write_timeout"`
	IdleTimeout         time.Duration `yaml:"idle_timeout"`
}

type ModelConfig struct {
	BundleDir string `yaml:"bundle_dir"` // directory holding nids_rf.onnx and its sidecar metadata
}

type StoreConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RedisURL    string `yaml:"redis_url"`
	RecentLimit int    `yaml:"recent_limit"`
}

type AlertsConfig struct {
	Enabled         bool          `yaml:"enabled"`
	QueueSize       int           `yaml:"queue_size"`
	Workers         int           `yaml:"workers"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	File    FileSinkConfig    `yaml:"file"`
	Webhook WebhookSinkConfig `yaml:"webhook"`
	Kafka   KafkaSinkConfig   `yaml:"kafka"`
}

type FileSinkConfig struct {
	Path string `yaml:"path"` // JSONL output; empty disables the sink
}

type WebhookSinkConfig struct {
	URL     string            `yaml:"url"` // empty disables the sink
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

type KafkaSinkConfig struct {
	Brokers []string `yaml:"brokers"` // empty disables the sink
	Topic   string   `yaml:"topic"`
}

// Load reads configuration from a YAML file. If the file doesn't exist, it
// returns a default config and no error. A .env file next to the process is
// honored, and NIDS_* environment variables override the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8000",
		},
		Model: ModelConfig{
			BundleDir: "models/improved_model",
		},
		Store: StoreConfig{
			Enabled:  true,
			RedisURL: "redis://localhost:6379",
		},
		Alerts: AlertsConfig{
			Enabled: false,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("NIDS_ADDR")); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("NIDS_MODEL_DIR")); v != "" {
		cfg.Model.BundleDir = v
	}
	if v := strings.TrimSpace(os.Getenv("NIDS_REDIS_URL")); v != "" {
		cfg.Store.RedisURL = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.MaxRequestBodyBytes <= 0 {
		cfg.Server.MaxRequestBodyBytes = 16 << 20
	}
	if cfg.Server.ReadHeaderTimeout <= 0 {
		cfg.Server.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.IdleTimeout <= 0 {
		cfg.Server.IdleTimeout = 90 * time.Second
	}

	if cfg.Model.BundleDir == "" {
		cfg.Model.BundleDir = "models/improved_model"
	}

	if cfg.Store.RedisURL == "" {
		cfg.Store.RedisURL = "redis://localhost:6379"
	}
	if cfg.Store.RecentLimit <= 0 {
		cfg.Store.RecentLimit = 1000
	}

	if cfg.Alerts.QueueSize <= 0 {
		cfg.Alerts.QueueSize = 1000
	}
	if cfg.Alerts.Workers <= 0 {
		cfg.Alerts.Workers = 1
	}
	if cfg.Alerts.ShutdownTimeout <= 0 {
		cfg.Alerts.ShutdownTimeout = 2 * time.Second
	}
	if cfg.Alerts.Webhook.Timeout <= 0 {
		cfg.Alerts.Webhook.Timeout = 2 * time.Second
	}
}
