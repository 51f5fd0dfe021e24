package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testYAML = `
pairs:
  - BTC
  - ETH
exchange:
  name: hyperliquid
  testnet: true
  api_key: "0x1234567890123456789012345678901234567890"
  secret_key: "1111111111111111111111111111111111111111111111111111111111111111"
  http:
    timeout_ms: 3000
    rate_limit_rps: 10
  websocket:
    url: wss://api.hyperliquid-testnet.xyz/ws
    ping_interval_ms: 20000
    reconnect_max_attempts: 5
    reconnect_initial_backoff_ms: 500
store:
  data_dir: /tmp/hypertrader-test
logging:
  level: debug
  format: json
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(testYAML), 0o600); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return path
}

func TestLoadParsesAllFields(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeTestConfig(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Exchange.Name != "hyperliquid" {
		t.Errorf("Exchange.Name = %q, want hyperliquid", cfg.Exchange.Name)
	}
	if !cfg.Exchange.Testnet {
		t.Error("Exchange.Testnet = false, want true")
	}
	if len(cfg.Pairs) != 2 || cfg.Pairs[0] != "BTC" {
		t.Errorf("Pairs = %v, want [BTC ETH]", cfg.Pairs)
	}
	if cfg.Exchange.HTTP.Timeout().Milliseconds() != 3000 {
		t.Errorf("HTTP timeout = %v, want 3000ms", cfg.Exchange.HTTP.Timeout())
	}
	if cfg.Exchange.WebSocket.MaxAttempts() != 5 {
		t.Errorf("WS max attempts = %d, want 5", cfg.Exchange.WebSocket.MaxAttempts())
	}
}

func TestHTTPConfigDefaults(t *testing.T) {
	t.Parallel()
	var c HTTPConfig
	if got := c.Timeout(); got.Milliseconds() != 5000 {
		t.Errorf("zero-value Timeout() = %v, want 5000ms", got)
	}
}

func TestWebSocketConfigDefaults(t *testing.T) {
	t.Parallel()
	var c WebSocketConfig
	if got := c.PingInterval(); got.Seconds() != 30 {
		t.Errorf("zero-value PingInterval() = %v, want 30s", got)
	}
	if got := c.MaxAttempts(); got != 10 {
		t.Errorf("zero-value MaxAttempts() = %d, want 10", got)
	}
	if got := c.ReconnectInitialBackoff(); got.Seconds() != 1 {
		t.Errorf("zero-value ReconnectInitialBackoff() = %v, want 1s", got)
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	t.Parallel()
	cfg := Config{Pairs: []string{"BTC"}, Exchange: ExchangeConfig{Name: "hyperliquid"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing api_key")
	}
}

func TestValidateRejectsMalformedAPIKey(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Pairs:    []string{"BTC"},
		Exchange: ExchangeConfig{Name: "hyperliquid", APIKey: "not-an-address"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for malformed api_key")
	}
}

func TestValidateRejectsPrefixedSecretKey(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Pairs: []string{"BTC"},
		Exchange: ExchangeConfig{
			Name:      "hyperliquid",
			APIKey:    "0x1234567890123456789012345678901234567890",
			SecretKey: "0x1111111111111111111111111111111111111111111111111111111111111111",
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for 0x-prefixed secret_key")
	}
}

func TestValidateRequiresPairs(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Exchange: ExchangeConfig{Name: "hyperliquid", APIKey: "0x1234567890123456789012345678901234567890"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty pairs")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Pairs: []string{"BTC"},
		Exchange: ExchangeConfig{
			Name:      "hyperliquid",
			APIKey:    "0x1234567890123456789012345678901234567890",
			SecretKey: "1111111111111111111111111111111111111111111111111111111111111111",
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestSanitizeRedactsSecretKey(t *testing.T) {
	t.Parallel()
	cfg := Config{Exchange: ExchangeConfig{SecretKey: "deadbeef"}}
	sanitized := cfg.Sanitize()

	if sanitized.Exchange.SecretKey == cfg.Exchange.SecretKey {
		t.Error("Sanitize() did not redact SecretKey")
	}
	if sanitized.Exchange.SecretKey != secretPlaceholder {
		t.Errorf("Sanitize().Exchange.SecretKey = %q, want %q", sanitized.Exchange.SecretKey, secretPlaceholder)
	}
	if cfg.Exchange.SecretKey != "deadbeef" {
		t.Error("Sanitize() mutated the original Config")
	}
}

func TestSanitizeLeavesEmptySecretKeyAlone(t *testing.T) {
	t.Parallel()
	cfg := Config{Exchange: ExchangeConfig{SecretKey: ""}}
	if sanitized := cfg.Sanitize(); sanitized.Exchange.SecretKey != "" {
		t.Errorf("Sanitize() on empty secret_key = %q, want empty", sanitized.Exchange.SecretKey)
	}
}
