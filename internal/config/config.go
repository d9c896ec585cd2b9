package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Operator OperatorConfig `yaml:"operator"`
	Telegram TelegramConfig `yaml:"telegram"`
	NATS     NATSConfig     `yaml:"nats,omitempty"`
	Pool     PoolConfig     `yaml:"pool"`
	Detector DetectorConfig `yaml:"detector"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig represents the HTTP listener configuration
type ServerConfig struct {
	Addr     string `yaml:"addr"`
	MaxConns int    `yaml:"max_conns,omitempty"`
}

// StoreConfig represents the durable store configuration
type StoreConfig struct {
	Path string `yaml:"path"`
}

// OperatorConfig identifies the single chat allowed to issue admin commands
type OperatorConfig struct {
	ChatID string `yaml:"chat_id"`
}

// TelegramConfig represents the Telegram notification channel
type TelegramConfig struct {
	Token      string `yaml:"token"`
	ChatID     string `yaml:"chat_id"`
	APIBaseURL string `yaml:"api_base_url,omitempty"`
}

// NATSConfig represents the optional JetStream notification mirror
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// PoolConfig represents counter behavior
type PoolConfig struct {
	DefaultTarget int64 `yaml:"default_target,omitempty"`
}

// DetectorConfig represents the idle-stall detector schedule
type DetectorConfig struct {
	Period string `yaml:"period,omitempty"`
}

// PeriodDuration returns the parsed detector period. Call Validate first.
func (d DetectorConfig) PeriodDuration() time.Duration {
	dur, err := time.ParseDuration(d.Period)
	if err != nil {
		return 3 * time.Hour
	}
	return dur
}

// LoggingConfig represents log output configuration
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if present; existing process env always wins.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Note: .env file couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.MaxConns <= 0 {
		c.Server.MaxConns = 256
	}
	if c.Store.Path == "" {
		c.Store.Path = "tidepool.db"
	}
	if c.Pool.DefaultTarget <= 0 {
		c.Pool.DefaultTarget = 100
	}
	if c.Detector.Period == "" {
		c.Detector.Period = "3h"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if c.NATS.Enabled && c.NATS.Subject == "" {
		c.NATS.Subject = "tidepool.notifications"
	}
}

// Validate checks that the configuration is complete enough to run the daemon
func (c *Config) Validate() error {
	if c.Operator.ChatID == "" {
		return fmt.Errorf("operator.chat_id is required")
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.enabled is true")
	}
	if _, err := time.ParseDuration(c.Detector.Period); err != nil {
		return fmt.Errorf("invalid detector.period %q: %w", c.Detector.Period, err)
	}
	return nil
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := `# Tide pool daemon configuration
server:
  addr: ":8080"

store:
  path: "tidepool.db"

operator:
  # Chat allowed to issue admin commands.
  chat_id: "${OPERATOR_CHAT_ID}"

telegram:
  token: "${TELEGRAM_TOKEN}"
  chat_id: "${TELEGRAM_CHAT_ID}"

# Optional JetStream mirror for notifications.
nats:
  enabled: false
  # url: "nats://localhost:4222"
  # subject: "tidepool.notifications"

pool:
  default_target: 100

detector:
  period: 3h

logging:
  level: "info"
`

	if err := os.WriteFile(configPath, []byte(example), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
