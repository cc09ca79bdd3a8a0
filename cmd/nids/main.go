package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/alert"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/batch"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/config"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/engine"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/oracle"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/server"
	"github.com/Venkatesh-Arikatla/Network-Intrusion-Detection-System/internal/store"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "nids",
		Short:         "Network intrusion detection service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "nids.yaml", "path to config file")

	root.AddCommand(serveCmd(), classifyCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("nids: %v", err)
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detection API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if err := config.Validate(cfg); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			orc, err := oracle.LoadONNX(cfg.Model.BundleDir)
			if err != nil {
				return fmt.Errorf("load model bundle %s: %w", cfg.Model.BundleDir, err)
			}
			defer orc.Close()
			log.Printf("model bundle loaded from %s (%d features)", cfg.Model.BundleDir, len(orc.Features()))

			st, backend := openStore(cfg)
			alerts := buildAlerts(cfg)

			srv := server.New(cfg, engine.New(orc), st, alerts, backend)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(cfg.Server.Addr) }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Printf("received %s, shutting down", sig)
				ctx, cancel := context.WithTimeout(context.Background(), cfg.Alerts.ShutdownTimeout)
				defer cancel()
				srv.Shutdown(ctx)
				return nil
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

// openStore connects to Redis when persistence is enabled. A connection
// failure degrades to in-memory-less operation rather than refusing to start.
func openStore(cfg *config.Config) (store.Store, string) {
	if !cfg.Store.Enabled {
		log.Printf("persistence disabled by config")
		return store.NewNoop(), "disabled"
	}
	st, err := store.NewRedisStore(store.RedisOptions{
		URL:         cfg.Store.RedisURL,
		RecentLimit: cfg.Store.RecentLimit,
	})
	if err != nil {
		log.Printf("WARNING: redis unavailable (%v), continuing without persistence", err)
		return store.NewNoop(), "disabled"
	}
	log.Printf("redis store connected at %s", cfg.Store.RedisURL)
	return st, "redis"
}

func buildAlerts(cfg *config.Config) *alert.Emitter {
	if !cfg.Alerts.Enabled {
		return nil
	}

	var sinks []alert.Sink
	if cfg.Alerts.File.Path != "" {
		s, err := alert.NewFileSink(cfg.Alerts.File.Path)
		if err != nil {
			log.Printf("WARNING: file alert sink disabled: %v", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	if cfg.Alerts.Webhook.URL != "" {
		s, err := alert.NewWebhookSink(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Headers, cfg.Alerts.Webhook.Timeout)
		if err != nil {
			log.Printf("WARNING: webhook alert sink disabled: %v", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	if len(cfg.Alerts.Kafka.Brokers) > 0 {
		s, err := alert.NewKafkaSink(cfg.Alerts.Kafka.Brokers, cfg.Alerts.Kafka.Topic)
		if err != nil {
			log.Printf("WARNING: kafka alert sink disabled: %v", err)
		} else {
			sinks = append(sinks, s)
		}
	}
	if len(sinks) == 0 {
		log.Printf("alerts enabled but no sinks configured")
		return nil
	}

	return alert.NewEmitter(alert.EmitterConfig{
		QueueSize:       cfg.Alerts.QueueSize,
		Workers:         cfg.Alerts.Workers,
		ShutdownTimeout: cfg.Alerts.ShutdownTimeout,
	}, sinks)
}

func classifyCmd() *cobra.Command {
	var (
		inputPath  string
		outputPath string
	)
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a CSV of traffic records offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			orc, err := oracle.LoadONNX(cfg.Model.BundleDir)
			if err != nil {
				return fmt.Errorf("load model bundle %s: %w", cfg.Model.BundleDir, err)
			}
			defer orc.Close()

			in, err := os.Open(inputPath)
			if err != nil {
				return err
			}
			defer in.Close()

			proc := &batch.Processor{
				Engine: engine.New(orc),
				Store:  store.NewNoop(),
				Source: "cli",
			}
			res, err := proc.ProcessCSV(cmd.Context(), in)
			if err != nil {
				return err
			}

			out := os.Stdout
			if outputPath != "" && outputPath != "-" {
				f, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}

			log.Printf("classified %d records: %d normal, %d attacks, %d errors",
				res.Summary.TotalRecords, res.Summary.NormalCount,
				res.Summary.AttackCount, res.Summary.ErrorCount)
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "input CSV file")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write JSON results to file instead of stdout")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
