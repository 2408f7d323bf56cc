package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration. Values are read from a YAML
// file first and may be overridden by environment variables, so the service
// can run from the same config files as the rest of the bridge stack while
// still being deployable with env-only settings.
type Config struct {
	Canton  CantonConfig  `yaml:"canton"`
	Service ServiceConfig `yaml:"service"`
	Flowctl FlowctlConfig `yaml:"flowctl"`
}

// CantonConfig holds the ledger connection and identity settings.
type CantonConfig struct {
	RPCURL       string     `yaml:"rpc_url"`
	RelayerParty string     `yaml:"relayer_party"`
	TLS          TLSConfig  `yaml:"tls"`
	Auth         AuthConfig `yaml:"auth"`
}

// TLSConfig controls transport security on the ledger connection.
type TLSConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AuthConfig holds credential settings. When the OAuth2 fields are set the
// service uses the client-credentials flow; otherwise TokenFile, when set,
// supplies a static bearer token.
type AuthConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Audience     string `yaml:"audience"`
	TokenURL     string `yaml:"token_url"`
	TokenFile    string `yaml:"token_file"`
}

// ServiceConfig holds the HTTP API settings and reconciliation defaults.
type ServiceConfig struct {
	Port                  int `yaml:"port"`
	ReadTimeoutSeconds    int `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds   int `yaml:"write_timeout_seconds"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`

	DefaultLookback int64 `yaml:"default_lookback"`
	DefaultLimit    int   `yaml:"default_limit"`
	MaxLimit        int   `yaml:"max_limit"`
}

// FlowctlConfig controls the optional control-plane registration.
type FlowctlConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Endpoint          string `yaml:"endpoint"`
	HeartbeatInterval string `yaml:"heartbeat_interval"`
	Network           string `yaml:"network"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// fills in defaults. Pass an empty path to configure from environment only.
func LoadConfig(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.applyEnv()
	config.applyDefaults()

	return &config, nil
}

// Validate reports the first missing required setting. It runs before any
// network activity so misconfiguration never reaches the ledger.
func (c *Config) Validate() error {
	if c.Canton.RPCURL == "" {
		return fmt.Errorf("canton.rpc_url is required")
	}
	if c.Canton.RelayerParty == "" {
		return fmt.Errorf("canton.relayer_party is required")
	}
	if c.Service.DefaultLookback <= 0 {
		return fmt.Errorf("service.default_lookback must be positive")
	}
	if c.Service.DefaultLimit <= 0 {
		return fmt.Errorf("service.default_limit must be positive")
	}
	return nil
}

// HeartbeatIntervalDuration parses the configured interval, defaulting to 10s.
func (f *FlowctlConfig) HeartbeatIntervalDuration() time.Duration {
	if f.HeartbeatInterval != "" {
		if d, err := time.ParseDuration(f.HeartbeatInterval); err == nil {
			return d
		}
	}
	return 10 * time.Second
}

func (c *Config) applyEnv() {
	c.Canton.RPCURL = getEnvOrDefault("CANTON_RPC_URL", c.Canton.RPCURL)
	c.Canton.RelayerParty = getEnvOrDefault("CANTON_RELAYER_PARTY", c.Canton.RelayerParty)
	if v := os.Getenv("CANTON_TLS_ENABLED"); v != "" {
		c.Canton.TLS.Enabled = parseBool(v)
	}

	c.Canton.Auth.ClientID = getEnvOrDefault("CANTON_CLIENT_ID", c.Canton.Auth.ClientID)
	c.Canton.Auth.ClientSecret = getEnvOrDefault("CANTON_CLIENT_SECRET", c.Canton.Auth.ClientSecret)
	c.Canton.Auth.Audience = getEnvOrDefault("CANTON_AUDIENCE", c.Canton.Auth.Audience)
	c.Canton.Auth.TokenURL = getEnvOrDefault("CANTON_TOKEN_URL", c.Canton.Auth.TokenURL)
	c.Canton.Auth.TokenFile = getEnvOrDefault("CANTON_TOKEN_FILE", c.Canton.Auth.TokenFile)

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(strings.TrimPrefix(v, ":")); err == nil {
			c.Service.Port = port
		}
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Service.RequestTimeoutSeconds = secs
		}
	}
	if v := os.Getenv("DEFAULT_LOOKBACK"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Service.DefaultLookback = n
		}
	}
	if v := os.Getenv("DEFAULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Service.DefaultLimit = n
		}
	}

	if v := os.Getenv("ENABLE_FLOWCTL"); v != "" {
		c.Flowctl.Enabled = parseBool(v)
	}
	c.Flowctl.Endpoint = getEnvOrDefault("FLOWCTL_ENDPOINT", c.Flowctl.Endpoint)
	c.Flowctl.HeartbeatInterval = getEnvOrDefault("FLOWCTL_HEARTBEAT_INTERVAL", c.Flowctl.HeartbeatInterval)
	c.Flowctl.Network = getEnvOrDefault("CANTON_NETWORK", c.Flowctl.Network)
}

func (c *Config) applyDefaults() {
	if c.Service.Port == 0 {
		c.Service.Port = 8090
	}
	if c.Service.ReadTimeoutSeconds == 0 {
		c.Service.ReadTimeoutSeconds = 30
	}
	if c.Service.WriteTimeoutSeconds == 0 {
		c.Service.WriteTimeoutSeconds = 150
	}
	if c.Service.RequestTimeoutSeconds == 0 {
		c.Service.RequestTimeoutSeconds = 120
	}
	if c.Service.DefaultLookback == 0 {
		c.Service.DefaultLookback = 1000
	}
	if c.Service.DefaultLimit == 0 {
		c.Service.DefaultLimit = 20
	}
	if c.Service.MaxLimit == 0 {
		c.Service.MaxLimit = 500
	}
	if c.Flowctl.Endpoint == "" {
		c.Flowctl.Endpoint = "localhost:8080"
	}
	if c.Flowctl.Network == "" {
		c.Flowctl.Network = "devnet"
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}
