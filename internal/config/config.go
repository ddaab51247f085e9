// Package config loads the gateway's configuration from a TOML file with
// an environment-variable overlay, following the precedence env > file >
// default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the gateway server.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Tenant    TenantConfig    `toml:"tenant"`
	Mutation  MutationConfig  `toml:"mutation"`
	Transport TransportConfig `toml:"transport"`
	Log       LogConfig       `toml:"log"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Events    EventsConfig    `toml:"events"`
	CORS      CORSConfig      `toml:"cors"`
	Cache     CacheConfig     `toml:"cache"`
	Upstream  UpstreamConfig  `toml:"upstream"`
}

// ServerConfig holds gateway identity metadata surfaced in the envelope's
// "api" block and the MCP serverInfo.
type ServerConfig struct {
	Name    string `toml:"name"`
	Type    string `toml:"type"` // "crud", "proxy", "events", etc — spec.md §4.11
	Version string `toml:"version"`
	Host    string `toml:"host"`
	Port    string `toml:"port"`
}

// TenantConfig configures tenant resolution (spec.md §4.5).
type TenantConfig struct {
	Default           string   `toml:"default"`
	KnownTenants      []string `toml:"known_tenants"`
	SystemSubdomains  []string `toml:"system_subdomains"`
	DomainSuffix      string   `toml:"domain_suffix"`
	HeaderName        string   `toml:"header_name"`
}

// MutationConfig configures the GET-mutation confirmation protocol
// (spec.md §4.8, §3 ConfirmParams).
type MutationConfig struct {
	Secret  string   `toml:"secret"`
	TTLMs   int      `toml:"ttl_ms"`
	Actions []string `toml:"actions"` // explicit override of the default heuristic
}

func (m MutationConfig) TTL() time.Duration {
	if m.TTLMs <= 0 {
		return 300 * time.Second
	}
	return time.Duration(m.TTLMs) * time.Millisecond
}

// TransportConfig holds HTTP listen and CORS-adjacent settings.
type TransportConfig struct {
	Mode string `toml:"mode"` // "http" is the only supported mode for the gateway
}

// LogConfig holds structured-logging configuration (internal/obs).
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
	JSON  bool   `toml:"json"`
}

// RateLimitConfig configures the token-bucket limiter (internal/ratelimit).
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// EventsConfig configures the events convention (spec.md §4.13).
type EventsConfig struct {
	Categories    []string `toml:"categories"` // e.g. commits, errors, traces, webhooks, ai, cdc, tail
	RequireAuth   bool     `toml:"require_auth"`
	DiscoveryTTLS int      `toml:"discovery_ttl_seconds"`
}

func (e EventsConfig) DiscoveryTTL() time.Duration {
	if e.DiscoveryTTLS <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(e.DiscoveryTTLS) * time.Second
}

// CORSConfig configures github.com/rs/cors.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// CacheConfig configures internal/cache's discovery cache backing store.
type CacheConfig struct {
	RedisAddr string `toml:"redis_addr"` // empty selects the in-process LRU
	ShardN    int    `toml:"shards"`
}

// UpstreamConfig configures internal/upstream's reference binding and the
// proxy convention (spec.md §4.16).
type UpstreamConfig struct {
	BaseURL    string `toml:"base_url"`
	Token      string `toml:"token"`
	TimeoutMs  int    `toml:"timeout_ms"`
	AllowPaths []string `toml:"allow_paths"` // proxy allow-list; empty means no restriction beyond traversal checks
}

func (u UpstreamConfig) Timeout() time.Duration {
	if u.TimeoutMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(u.TimeoutMs) * time.Millisecond
}

// Load builds a Config from defaults, an optional TOML file, and an
// environment-variable overlay (which always wins). Config file search
// order when configPath is empty: GATEWAY_CONFIG env var, ./gateway.toml,
// ~/.config/gateway/gateway.toml.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Name:    "gateway",
			Type:    "crud",
			Version: "0.1.0",
			Host:    "0.0.0.0",
			Port:    "8080",
		},
		Tenant: TenantConfig{
			Default:    "default",
			HeaderName: "x-tenant",
		},
		Mutation: MutationConfig{
			TTLMs: 300000,
		},
		Transport: TransportConfig{Mode: "http"},
		Log:       LogConfig{Level: "info", JSON: true},
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerSecond: 20, Burst: 40},
		Events:    EventsConfig{DiscoveryTTLS: 300},
		CORS:      CORSConfig{AllowedOrigins: []string{"*"}},
		Cache:     CacheConfig{ShardN: 16},
		Upstream:  UpstreamConfig{TimeoutMs: 5000},
	}

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("GATEWAY_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("gateway.toml"); err == nil {
		return "gateway.toml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/gateway/gateway.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) applyEnv() {
	envOverride("GATEWAY_SERVER_NAME", &c.Server.Name)
	envOverride("GATEWAY_SERVER_TYPE", &c.Server.Type)
	envOverride("GATEWAY_HOST", &c.Server.Host)
	envOverride("GATEWAY_PORT", &c.Server.Port)

	envOverride("GATEWAY_TENANT_DEFAULT", &c.Tenant.Default)
	envOverride("GATEWAY_TENANT_HEADER", &c.Tenant.HeaderName)
	envOverride("GATEWAY_TENANT_DOMAIN_SUFFIX", &c.Tenant.DomainSuffix)
	envOverrideList("GATEWAY_TENANT_KNOWN", &c.Tenant.KnownTenants)
	envOverrideList("GATEWAY_TENANT_SYSTEM_SUBDOMAINS", &c.Tenant.SystemSubdomains)

	envOverride("GATEWAY_MUTATION_SECRET", &c.Mutation.Secret)
	envOverrideInt("GATEWAY_MUTATION_TTL_MS", &c.Mutation.TTLMs)
	envOverrideList("GATEWAY_MUTATION_ACTIONS", &c.Mutation.Actions)

	envOverride("GATEWAY_LOG_LEVEL", &c.Log.Level)
	envOverrideBool("GATEWAY_LOG_JSON", &c.Log.JSON)

	envOverrideBool("GATEWAY_RATE_LIMIT_ENABLED", &c.RateLimit.Enabled)
	envOverrideFloat("GATEWAY_RATE_LIMIT_RPS", &c.RateLimit.RequestsPerSecond)
	envOverrideInt("GATEWAY_RATE_LIMIT_BURST", &c.RateLimit.Burst)

	envOverrideList("GATEWAY_EVENTS_CATEGORIES", &c.Events.Categories)
	envOverrideBool("GATEWAY_EVENTS_REQUIRE_AUTH", &c.Events.RequireAuth)
	envOverrideInt("GATEWAY_EVENTS_DISCOVERY_TTL_SECONDS", &c.Events.DiscoveryTTLS)

	envOverrideList("GATEWAY_CORS_ALLOWED_ORIGINS", &c.CORS.AllowedOrigins)

	envOverride("GATEWAY_CACHE_REDIS_ADDR", &c.Cache.RedisAddr)
	envOverrideInt("GATEWAY_CACHE_SHARDS", &c.Cache.ShardN)

	envOverride("GATEWAY_UPSTREAM_BASE_URL", &c.Upstream.BaseURL)
	envOverride("GATEWAY_UPSTREAM_TOKEN", &c.Upstream.Token)
	envOverrideInt("GATEWAY_UPSTREAM_TIMEOUT_MS", &c.Upstream.TimeoutMs)
	envOverrideList("GATEWAY_UPSTREAM_ALLOW_PATHS", &c.Upstream.AllowPaths)
}

// Validate checks that required fields are present for the configured mode.
func (c *Config) Validate() error {
	if c.Transport.Mode != "http" {
		return fmt.Errorf("invalid transport mode: %q (only \"http\" is supported)", c.Transport.Mode)
	}
	if c.Mutation.Secret == "" {
		return fmt.Errorf("mutation.secret is required: set GATEWAY_MUTATION_SECRET or mutation.secret in the config file")
	}
	if c.Tenant.Default == "" {
		return fmt.Errorf("tenant.default must not be empty")
	}
	return nil
}

func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envOverrideList(key string, dst *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func envOverrideBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func envOverrideInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envOverrideFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
