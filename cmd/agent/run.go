package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maheshbhatiya73/secrds/internal/config"
	"github.com/maheshbhatiya73/secrds/internal/detector"
	"github.com/maheshbhatiya73/secrds/internal/firewall"
	"github.com/maheshbhatiya73/secrds/internal/live"
	"github.com/maheshbhatiya73/secrds/internal/metrics"
	"github.com/maheshbhatiya73/secrds/internal/notify"
	"github.com/maheshbhatiya73/secrds/internal/pipeline"
	"github.com/maheshbhatiya73/secrds/internal/probeloader"
	"github.com/maheshbhatiya73/secrds/internal/reactor"
	"github.com/maheshbhatiya73/secrds/internal/storage"
	"github.com/maheshbhatiya73/secrds/internal/supervisor"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Attach the kernel probes and run the detection pipeline",
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	store, err := storage.FromConfig(
		cfg.Storage.Backend,
		cfg.Storage.PostgresDSN,
		cfg.Storage.SpannerProject,
		cfg.Storage.SpannerInstance,
		cfg.Storage.SpannerDatabase,
	)
	if err != nil {
		return fmt.Errorf("storage backend: %w", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		return fmt.Errorf("notify channels: %w", err)
	}

	var pubsubNotifier notify.Notifier
	if cfg.Notify.PubSubEnabled {
		ps, err := notify.NewPubSubNotifier(ctx, cfg.Notify.PubSubProject, cfg.Notify.PubSubTopic)
		if err != nil {
			slog.Warn("pubsub notifier disabled", "error", err)
		} else {
			pubsubNotifier = ps
		}
	}
	if pubsubNotifier != nil {
		notifier = notify.NewChain(notifier, pubsubNotifier)
	}

	fw := firewall.New(cfg.Firewall.Binary)
	det := detector.New(cfg.Detection)
	hub := live.NewHub()
	met := metrics.New()

	rctr := reactor.New(reactor.Config{
		Store:            store,
		Notifier:         notifier,
		Firewall:         fw,
		Blocker:          det,
		Live:             hub,
		Metrics:          met,
		EnableIPBlocking: cfg.Detection.EnableIPBlocking,
	})

	pl := pipeline.New(det, rctr, met)

	sup := supervisor.New(supervisor.Config{
		Loader:      probeloader.New(),
		Detector:    det,
		Live:        hub,
		Metrics:     met,
		AdminAddr:   cfg.Admin.ListenAddr,
		LiveAddr:    cfg.Admin.LiveAddr,
		MetricsPath: cfg.Admin.MetricsPath,
	})

	slog.Info("agent starting",
		"ssh_window_seconds", cfg.Detection.SSHWindowSeconds,
		"ssh_threshold", cfg.Detection.SSHThreshold,
		"tcp_window_seconds", cfg.Detection.TCPWindowSeconds,
		"tcp_threshold", cfg.Detection.TCPThreshold,
		"ip_blocking", cfg.Detection.EnableIPBlocking,
	)

	return sup.Run(ctx, pl)
}

func buildNotifier(ctx context.Context, cfg *config.Config) (notify.Notifier, error) {
	webhook := notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret)
	if !cfg.Notify.CloudTasksEnabled {
		return webhook, nil
	}
	return notify.NewCloudTasksNotifier(
		ctx,
		cfg.Notify.CloudTasksProject,
		cfg.Notify.CloudTasksLocation,
		cfg.Notify.CloudTasksQueue,
		cfg.Notify.WebhookURL,
		cfg.Notify.WebhookSecret,
		webhook,
	)
}
