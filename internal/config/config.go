package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Carrier endpoints
	VMGURL      string `mapstructure:"vmg-url"`
	DeviceModel string `mapstructure:"device-model"`

	// Timeouts
	RequestTimeout      time.Duration `mapstructure:"request-timeout"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation-timeout"`

	// Inbound SMS spool
	SMSSpoolDir      string        `mapstructure:"sms-spool-dir"`
	SMSSpoolInterval time.Duration `mapstructure:"sms-spool-interval"`

	// Database paths
	SQLitePath string `mapstructure:"sqlite-path"`
	FSMDBPath  string `mapstructure:"fsm-db-path"`

	// Allow plain-HTTP gateway endpoints (lab setups only)
	AllowInsecure bool `mapstructure:"allow-insecure"`
}

// Load reads configuration from environment, config file, and defaults.
// The VMG URL carries no default on purpose: a subscription attempt started
// without one must abort before any network call.
func Load() (*Config, error) {
	viper.SetDefault("device-model", "DROID_4G")
	viper.SetDefault("request-timeout", 30*time.Second)
	viper.SetDefault("confirmation-timeout", 60*time.Second)
	viper.SetDefault("sms-spool-dir", ".artifacts/sms-spool")
	viper.SetDefault("sms-spool-interval", time.Second)
	viper.SetDefault("sqlite-path", ".artifacts/attempts.db")
	viper.SetDefault("fsm-db-path", ".artifacts/fsm.db")
	viper.SetDefault("allow-insecure", false)

	// Environment variables (will be VVM3_VMG_URL, etc.)
	viper.SetEnvPrefix("VVM3")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.vvm3")

	// Read config file (ignore if not found)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors. An absent VMG URL is legal here;
// the state machine reports it as a configuration_missing failure instead.
func (c *Config) Validate() error {
	if c.SQLitePath == "" {
		return fmt.Errorf("sqlite-path cannot be empty")
	}
	if c.FSMDBPath == "" {
		return fmt.Errorf("fsm-db-path cannot be empty")
	}
	if c.SMSSpoolDir == "" {
		return fmt.Errorf("sms-spool-dir cannot be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request-timeout must be positive")
	}
	if c.ConfirmationTimeout <= 0 {
		return fmt.Errorf("confirmation-timeout must be positive")
	}
	if c.SMSSpoolInterval <= 0 {
		return fmt.Errorf("sms-spool-interval must be positive")
	}
	return nil
}
