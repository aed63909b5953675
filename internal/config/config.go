// Package config loads the agent's runtime configuration from a YAML file,
// with environment variables layered on top, the way internal/config did in
// the OCX backend.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the full set of values the agent needs at startup. Detector
// parameters come straight from spec §6; the rest are ambient collaborator
// settings SPEC_FULL.md adds.
type Config struct {
	Detection DetectionConfig `yaml:"detection"`
	Storage   StorageConfig   `yaml:"storage"`
	Notify    NotifyConfig    `yaml:"notify"`
	Firewall  FirewallConfig  `yaml:"firewall"`
	Admin     AdminConfig     `yaml:"admin"`
}

// DetectionConfig mirrors spec §6's configuration table exactly.
type DetectionConfig struct {
	SSHWindowSeconds  uint64 `yaml:"ssh_window_seconds"`
	SSHThreshold      uint64 `yaml:"ssh_threshold"`
	TCPWindowSeconds  uint64 `yaml:"tcp_window_seconds"`
	TCPThreshold      uint64 `yaml:"tcp_threshold"`
	EnableIPBlocking  bool   `yaml:"enable_ip_blocking"`
}

// StorageConfig selects and configures the alert-persistence backend.
type StorageConfig struct {
	Backend       string `yaml:"backend"` // "postgres" (default) or "spanner"
	PostgresDSN   string `yaml:"postgres_dsn"`
	SpannerProject  string `yaml:"spanner_project"`
	SpannerInstance string `yaml:"spanner_instance"`
	SpannerDatabase string `yaml:"spanner_database"`
}

// NotifyConfig configures both Notification channels (webhook + Pub/Sub).
type NotifyConfig struct {
	WebhookURL        string `yaml:"webhook_url"`
	WebhookSecret     string `yaml:"webhook_secret"`
	CloudTasksEnabled bool   `yaml:"cloud_tasks_enabled"`
	CloudTasksProject string `yaml:"cloud_tasks_project"`
	CloudTasksLocation string `yaml:"cloud_tasks_location"`
	CloudTasksQueue   string `yaml:"cloud_tasks_queue"`
	PubSubEnabled     bool   `yaml:"pubsub_enabled"`
	PubSubProject     string `yaml:"pubsub_project"`
	PubSubTopic       string `yaml:"pubsub_topic"`
}

// FirewallConfig configures the packet-filter CLI invocation.
type FirewallConfig struct {
	Binary string `yaml:"binary"` // defaults to "iptables"
}

// AdminConfig configures the supervisor's observability surface.
type AdminConfig struct {
	ListenAddr  string `yaml:"listen_addr"`  // HTTP admin API, default ":9090"
	LiveAddr    string `yaml:"live_addr"`    // WebSocket live feed, default ":9091"
	MetricsPath string `yaml:"metrics_path"` // default "/metrics"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide config singleton, loading it on first use.
func Get() *Config {
	once.Do(func() {
		_ = godotenv.Load() // optional local .env, silently ignored if absent

		cfg, err := Load(getEnv("AGENT_CONFIG_PATH", "config.yaml"))
		if err != nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		cfg.applyDefaults()
		instance = cfg
	})
	return instance
}

// Load reads and decodes a YAML config file. A missing file is not fatal —
// the caller is expected to fall back to defaults and env overrides.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return &Config{}, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return &Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := getEnvUint("SSH_WINDOW_SECONDS", 0); v > 0 {
		c.Detection.SSHWindowSeconds = v
	}
	if v := getEnvUint("SSH_THRESHOLD", 0); v > 0 {
		c.Detection.SSHThreshold = v
	}
	if v := getEnvUint("TCP_WINDOW_SECONDS", 0); v > 0 {
		c.Detection.TCPWindowSeconds = v
	}
	if v := getEnvUint("TCP_THRESHOLD", 0); v > 0 {
		c.Detection.TCPThreshold = v
	}
	if val := os.Getenv("ENABLE_IP_BLOCKING"); val != "" {
		c.Detection.EnableIPBlocking = val == "true" || val == "1"
	}

	c.Storage.Backend = getEnv("STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.PostgresDSN = getEnv("STORAGE_POSTGRES_DSN", c.Storage.PostgresDSN)
	c.Storage.SpannerProject = getEnv("SPANNER_PROJECT_ID", c.Storage.SpannerProject)
	c.Storage.SpannerInstance = getEnv("SPANNER_INSTANCE_ID", c.Storage.SpannerInstance)
	c.Storage.SpannerDatabase = getEnv("SPANNER_DATABASE_ID", c.Storage.SpannerDatabase)

	c.Notify.WebhookURL = getEnv("NOTIFY_WEBHOOK_URL", c.Notify.WebhookURL)
	c.Notify.WebhookSecret = getEnv("NOTIFY_WEBHOOK_SECRET", c.Notify.WebhookSecret)
	c.Notify.PubSubProject = getEnv("GCP_PROJECT_ID", c.Notify.PubSubProject)
	c.Notify.PubSubTopic = getEnv("PUBSUB_TOPIC_ID", c.Notify.PubSubTopic)
	c.Notify.CloudTasksProject = getEnv("CLOUD_TASKS_PROJECT", c.Notify.CloudTasksProject)
	c.Notify.CloudTasksLocation = getEnv("CLOUD_TASKS_LOCATION", c.Notify.CloudTasksLocation)
	c.Notify.CloudTasksQueue = getEnv("CLOUD_TASKS_QUEUE", c.Notify.CloudTasksQueue)

	c.Firewall.Binary = getEnv("FIREWALL_BINARY", c.Firewall.Binary)
	c.Admin.ListenAddr = getEnv("ADMIN_LISTEN_ADDR", c.Admin.ListenAddr)
	c.Admin.LiveAddr = getEnv("ADMIN_LIVE_ADDR", c.Admin.LiveAddr)
}

func (c *Config) applyDefaults() {
	if c.Detection.SSHWindowSeconds == 0 {
		c.Detection.SSHWindowSeconds = 60
	}
	if c.Detection.SSHThreshold == 0 {
		c.Detection.SSHThreshold = 5
	}
	if c.Detection.TCPWindowSeconds == 0 {
		c.Detection.TCPWindowSeconds = 10
	}
	if c.Detection.TCPThreshold == 0 {
		c.Detection.TCPThreshold = 100
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "postgres"
	}
	if c.Firewall.Binary == "" {
		c.Firewall.Binary = "iptables"
	}
	if c.Admin.ListenAddr == "" {
		c.Admin.ListenAddr = ":9090"
	}
	if c.Admin.LiveAddr == "" {
		c.Admin.LiveAddr = ":9091"
	}
	if c.Admin.MetricsPath == "" {
		c.Admin.MetricsPath = "/metrics"
	}
	if c.Notify.CloudTasksLocation == "" {
		c.Notify.CloudTasksLocation = "us-central1"
	}
	if c.Notify.CloudTasksQueue == "" {
		c.Notify.CloudTasksQueue = "threat-alerts"
	}
	if c.Notify.PubSubTopic == "" {
		c.Notify.PubSubTopic = "threat-alerts"
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvUint(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if v, err := strconv.ParseUint(val, 10, 64); err == nil {
			return v
		}
	}
	return defaultVal
}
