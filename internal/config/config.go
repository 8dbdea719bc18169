package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"solanafetcher/internal/ratelimit"
)

// Config holds all configuration for the Solana fetcher service.
type Config struct {
	// Upstream endpoints (configurable for testing)
	SolanaRPCURL        string `mapstructure:"solana_rpc_url"`
	DexScreenerBaseURL  string `mapstructure:"dexscreener_base_url"`
	JupiterTokenListURL string `mapstructure:"jupiter_token_list_url"`
	JupiterPriceBaseURL string `mapstructure:"jupiter_price_base_url"`
	SolscanBaseURL      string `mapstructure:"solscan_base_url"`

	// HTTP server
	ListenAddr     string        `mapstructure:"listen_addr"`
	LogLevel       string        `mapstructure:"log_level"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`

	// Fetch engine
	BatchSize  int           `mapstructure:"batch_size"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// Requests per second per upstream; 0 disables the limit.
	RPCRPS         float64 `mapstructure:"rpc_rps"`
	DexScreenerRPS float64 `mapstructure:"dexscreener_rps"`
	JupiterRPS     float64 `mapstructure:"jupiter_rps"`
	SolscanRPS     float64 `mapstructure:"solscan_rps"`

	// Telemetry; an empty endpoint disables metric export.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// keys maps every configuration key to its environment variable.
var keys = map[string]string{
	"solana_rpc_url":         "SOLANA_RPC_URL",
	"dexscreener_base_url":   "DEXSCREENER_BASE_URL",
	"jupiter_token_list_url": "JUPITER_TOKEN_LIST_URL",
	"jupiter_price_base_url": "JUPITER_PRICE_BASE_URL",
	"solscan_base_url":       "SOLSCAN_BASE_URL",
	"listen_addr":            "LISTEN_ADDR",
	"log_level":              "LOG_LEVEL",
	"request_timeout":        "REQUEST_TIMEOUT",
	"http_timeout":           "HTTP_TIMEOUT",
	"batch_size":             "BATCH_SIZE",
	"batch_delay":            "BATCH_DELAY",
	"max_retries":            "MAX_RETRIES",
	"retry_delay":            "RETRY_DELAY",
	"rpc_rps":                "RPC_RPS",
	"dexscreener_rps":        "DEXSCREENER_RPS",
	"jupiter_rps":            "JUPITER_RPS",
	"solscan_rps":            "SOLSCAN_RPS",
	"otlp_endpoint":          "OTEL_EXPORTER_OTLP_ENDPOINT",
	"service_name":           "OTEL_SERVICE_NAME",
}

// Load reads configuration from environment variables and an optional
// config.yaml. Environment variables take precedence over file values.
//
// Every setting has a production default, so Load succeeds with an empty
// environment. Durations use Go syntax (e.g. "1s", "250ms").
func Load() (*Config, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.SetDefault("solana_rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("dexscreener_base_url", "https://api.dexscreener.com/latest/dex/tokens")
	v.SetDefault("jupiter_token_list_url", "https://token.jup.ag/all")
	v.SetDefault("jupiter_price_base_url", "https://price.jup.ag/v4")
	v.SetDefault("solscan_base_url", "https://api.solscan.io")

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("request_timeout", "2m")
	v.SetDefault("http_timeout", "10s")

	v.SetDefault("batch_size", 5)
	v.SetDefault("batch_delay", "1s")
	v.SetDefault("max_retries", 2)
	v.SetDefault("retry_delay", "1s")

	v.SetDefault("rpc_rps", 10)
	v.SetDefault("dexscreener_rps", 5)
	v.SetDefault("jupiter_rps", 10)
	v.SetDefault("solscan_rps", 2)

	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("service_name", "solanafetcher")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.solanafetcher")

	// Read config file (ignore if not found)
	_ = v.ReadInConfig()

	for key, env := range keys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate reports every setting that cannot be used.
func (c *Config) Validate() error {
	var invalid []string
	if strings.TrimSpace(c.SolanaRPCURL) == "" {
		invalid = append(invalid, "SOLANA_RPC_URL must be set")
	}
	if c.BatchSize < 1 {
		invalid = append(invalid, "BATCH_SIZE must be at least 1")
	}
	if c.MaxRetries < 0 {
		invalid = append(invalid, "MAX_RETRIES must not be negative")
	}
	if c.BatchDelay < 0 || c.RetryDelay < 0 {
		invalid = append(invalid, "BATCH_DELAY and RETRY_DELAY must not be negative")
	}
	if c.RPCRPS < 0 || c.DexScreenerRPS < 0 || c.JupiterRPS < 0 || c.SolscanRPS < 0 {
		invalid = append(invalid, "rate limits must not be negative")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, fmt.Sprintf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, "; "))
	}
	return nil
}

// RateLimits returns the per-upstream request rates.
func (c *Config) RateLimits() map[ratelimit.API]float64 {
	return map[ratelimit.API]float64{
		ratelimit.APIRPC:         c.RPCRPS,
		ratelimit.APIDexScreener: c.DexScreenerRPS,
		ratelimit.APIJupiter:     c.JupiterRPS,
		ratelimit.APISolscan:     c.SolscanRPS,
	}
}
