// Package config defines all configuration the core consumes. Config is
// loaded from a YAML file (default: configs/config.yaml) with sensitive
// fields overridable via HYPERTRADER_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// secretPlaceholder replaces SecretKey wherever a Config is logged or
// serialized for a caller that shouldn't see the raw signing key.
const secretPlaceholder = "[REDACTED]"

// Config is the top-level configuration. Maps directly to the YAML file
// structure; the core reads every section: Pairs, Exchange, Store and
// Logging.
type Config struct {
	Pairs    []string       `mapstructure:"pairs"` // venue symbols to trade/subscribe, e.g. ["BTC", "ETH"]
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Store    StoreConfig    `mapstructure:"store"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ExchangeConfig selects the venue and carries its connection/auth
// parameters.
type ExchangeConfig struct {
	Name      string `mapstructure:"name"` // selects the registered connector, e.g. "hyperliquid"
	Testnet   bool   `mapstructure:"testnet"`
	APIKey    string `mapstructure:"api_key"`    // master wallet address, 0x-prefixed 40-hex
	SecretKey string `mapstructure:"secret_key"` // API wallet private key, 64-hex, no 0x prefix

	HTTP      HTTPConfig      `mapstructure:"http"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// HTTPConfig tunes the REST transport.
type HTTPConfig struct {
	TimeoutMS    int     `mapstructure:"timeout_ms"`
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`
}

// Timeout returns TimeoutMS as a time.Duration, defaulting to 5s.
func (c HTTPConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// WebSocketConfig tunes the WS feed's reconnect and keepalive behavior.
type WebSocketConfig struct {
	URL                       string `mapstructure:"url"`
	PingIntervalMS            int    `mapstructure:"ping_interval_ms"`
	ReconnectMaxAttempts      int    `mapstructure:"reconnect_max_attempts"`
	ReconnectInitialBackoffMS int    `mapstructure:"reconnect_initial_backoff_ms"`
}

// PingInterval returns PingIntervalMS as a time.Duration, defaulting to 30s.
func (c WebSocketConfig) PingInterval() time.Duration {
	if c.PingIntervalMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.PingIntervalMS) * time.Millisecond
}

// ReconnectInitialBackoff returns ReconnectInitialBackoffMS as a
// time.Duration, defaulting to 1s.
func (c WebSocketConfig) ReconnectInitialBackoff() time.Duration {
	if c.ReconnectInitialBackoffMS <= 0 {
		return time.Second
	}
	return time.Duration(c.ReconnectInitialBackoffMS) * time.Millisecond
}

// MaxAttempts returns ReconnectMaxAttempts, defaulting to 10.
func (c WebSocketConfig) MaxAttempts() int {
	if c.ReconnectMaxAttempts <= 0 {
		return 10
	}
	return c.ReconnectMaxAttempts
}

// StoreConfig sets the directory where the account snapshot (account.json,
// positions included) is persisted.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides. Sensitive
// fields use env vars: HYPERTRADER_API_KEY, HYPERTRADER_SECRET_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("HYPERTRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("HYPERTRADER_API_KEY"); key != "" {
		cfg.Exchange.APIKey = key
	}
	if secret := os.Getenv("HYPERTRADER_SECRET_KEY"); secret != "" {
		cfg.Exchange.SecretKey = secret
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Exchange.Name == "" {
		return fmt.Errorf("exchange.name is required")
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("pairs must list at least one trading pair symbol")
	}
	if c.Exchange.APIKey == "" {
		return fmt.Errorf("exchange.api_key is required (set HYPERTRADER_API_KEY)")
	}
	if !isHexAddress(c.Exchange.APIKey) {
		return fmt.Errorf("exchange.api_key must be a 0x-prefixed 40-hex address")
	}
	if c.Exchange.SecretKey != "" && !isHexPrivateKey(c.Exchange.SecretKey) {
		return fmt.Errorf("exchange.secret_key must be 64 hex characters with no 0x prefix")
	}
	if c.Exchange.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("exchange.http.rate_limit_rps must be >= 0")
	}
	return nil
}

// Sanitize returns a copy of c with SecretKey replaced by a fixed
// placeholder, safe to pass to a logger or any error serialization. The
// original Config is never mutated.
func (c Config) Sanitize() Config {
	if c.Exchange.SecretKey != "" {
		c.Exchange.SecretKey = secretPlaceholder
	}
	return c
}

func isHexAddress(s string) bool {
	if len(s) != 42 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return false
	}
	return isHex(s[2:])
}

func isHexPrivateKey(s string) bool {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return false
	}
	return len(s) == 64 && isHex(s)
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
