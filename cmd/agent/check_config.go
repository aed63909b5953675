package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maheshbhatiya73/secrds/internal/config"
)

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Load and print the resolved configuration without attaching probes",
	RunE:  runCheckConfig,
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	fmt.Printf("detection: ssh_window=%ds ssh_threshold=%d tcp_window=%ds tcp_threshold=%d ip_blocking=%t\n",
		cfg.Detection.SSHWindowSeconds, cfg.Detection.SSHThreshold,
		cfg.Detection.TCPWindowSeconds, cfg.Detection.TCPThreshold,
		cfg.Detection.EnableIPBlocking)
	fmt.Printf("storage: backend=%s\n", cfg.Storage.Backend)
	fmt.Printf("notify: webhook=%q cloud_tasks=%t pubsub=%t\n",
		cfg.Notify.WebhookURL, cfg.Notify.CloudTasksEnabled, cfg.Notify.PubSubEnabled)
	fmt.Printf("firewall: binary=%s\n", cfg.Firewall.Binary)
	fmt.Printf("admin: listen=%s live=%s metrics=%s\n",
		cfg.Admin.ListenAddr, cfg.Admin.LiveAddr, cfg.Admin.MetricsPath)
	return nil
}
