package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if cfg.Server.MaxRequestBodyBytes <= 0 {
		return errors.New("server.max_request_body_bytes must be positive")
	}

	if strings.TrimSpace(cfg.Model.BundleDir) == "" {
		return errors.New("model.bundle_dir must be set")
	}

	if cfg.Store.Enabled {
		if err := validateRedisURL(cfg.Store.RedisURL); err != nil {
			return err
		}
		if cfg.Store.RecentLimit <= 0 {
			return errors.New("store.recent_limit must be positive")
		}
	}

	return validateAlertsConfig(cfg.Alerts)
}

func validateRedisURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("store.redis_url must be set when the store is enabled")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("store.redis_url %q is not a valid URL", raw)
	}
	switch u.Scheme {
	case "redis", "rediss":
		return nil
	default:
		return fmt.Errorf("store.redis_url scheme must be redis or rediss, got %q", u.Scheme)
	}
}

func validateAlertsConfig(a AlertsConfig) error {
	if !a.Enabled {
		return nil
	}

	if a.QueueSize <= 0 {
		return errors.New("alerts.queue_size must be positive")
	}
	if a.Workers <= 0 {
		return errors.New("alerts.workers must be positive")
	}

	if a.Webhook.URL != "" {
		u, err := url.Parse(a.Webhook.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("alerts.webhook.url is not a valid URL")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("alerts.webhook.url must be http or https, got %q", u.Scheme)
		}
	}

	if len(a.Kafka.Brokers) > 0 {
		if strings.TrimSpace(a.Kafka.Topic) == "" {
			return errors.New("alerts.kafka.topic must be set when brokers are configured")
		}
		for i, b := range a.Kafka.Brokers {
			if strings.TrimSpace(b) == "" {
				return fmt.Errorf("alerts.kafka.brokers[%d] is empty", i)
			}
		}
	}

	if a.File.Path == "" && a.Webhook.URL == "" && len(a.Kafka.Brokers) == 0 {
		return errors.New("alerts enabled but no sink is configured")
	}

	return nil
}
