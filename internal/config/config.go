// ABOUTME: Configuration loading and parsing for ally-gateway
// ABOUTME: Supports YAML or TOML files with environment variable expansion, defaults and duration parsing

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete ally-gateway configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Tailscale  TailscaleConfig  `yaml:"tailscale" toml:"tailscale"`
	Redis      RedisConfig      `yaml:"redis" toml:"redis"`
	Database   DatabaseConfig   `yaml:"database" toml:"database"`
	Session    SessionConfig    `yaml:"session" toml:"session"`
	RateLimits RateLimitsConfig `yaml:"rate_limits" toml:"rate_limits"`
	OTP        OTPConfig        `yaml:"otp" toml:"otp"`
	Google     GoogleConfig     `yaml:"google" toml:"google"`
	Matrix     MatrixConfig     `yaml:"matrix" toml:"matrix"`
	Agent      AgentConfig      `yaml:"agent" toml:"agent"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// PublicURL is the externally reachable base URL, used to derive the OAuth redirect.
	PublicURL string `yaml:"public_url" toml:"public_url"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // public Funnel, implies HTTPS on 443
}

// RedisConfig selects the session backend. An empty Addr uses the in-memory store.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	DB       int    `yaml:"db" toml:"db"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// SessionConfig holds session timing
type SessionConfig struct {
	TTL               time.Duration `yaml:"-" toml:"-"`
	InactivityTimeout time.Duration `yaml:"-" toml:"-"`
	StaleAfter        time.Duration `yaml:"-" toml:"-"`
	BusyTimeout       time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	TTLRaw               string `yaml:"ttl" toml:"ttl"`
	InactivityTimeoutRaw string `yaml:"inactivity_timeout" toml:"inactivity_timeout"`
	StaleAfterRaw        string `yaml:"stale_after" toml:"stale_after"`
	BusyTimeoutRaw       string `yaml:"busy_timeout" toml:"busy_timeout"`
}

// RateLimitsConfig holds both limiter configurations
type RateLimitsConfig struct {
	Auth    RateLimitConfig `yaml:"auth" toml:"auth"`
	Message RateLimitConfig `yaml:"message" toml:"message"`
}

// RateLimitConfig is one fixed window
type RateLimitConfig struct {
	MaxAttempts int64         `yaml:"max_attempts" toml:"max_attempts"`
	Window      time.Duration `yaml:"-" toml:"-"`
	WindowRaw   string        `yaml:"window" toml:"window"`
}

// OTPConfig holds passcode and mail delivery settings
type OTPConfig struct {
	TTL         time.Duration `yaml:"-" toml:"-"`
	TTLRaw      string        `yaml:"ttl" toml:"ttl"`
	MaxAttempts int           `yaml:"max_attempts" toml:"max_attempts"`
	From        string        `yaml:"from" toml:"from"`
	SMTP        SMTPConfig    `yaml:"smtp" toml:"smtp"`
}

// SMTPConfig holds the outbound relay. An empty Host logs codes instead of mailing them.
type SMTPConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

// GoogleConfig holds the OAuth client for calendar access
type GoogleConfig struct {
	ClientID     string   `yaml:"client_id" toml:"client_id"`
	ClientSecret string   `yaml:"client_secret" toml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url" toml:"redirect_url"`
	Scopes       []string `yaml:"scopes" toml:"scopes"`
	StateSecret  string   `yaml:"state_secret" toml:"state_secret"`
}

// MatrixConfig holds Matrix transport configuration
type MatrixConfig struct {
	Homeserver      string   `yaml:"homeserver" toml:"homeserver"`
	UserID          string   `yaml:"user_id" toml:"user_id"`
	AccessToken     string   `yaml:"access_token" toml:"access_token"`
	DeviceID        string   `yaml:"device_id" toml:"device_id"`
	Encryption      bool     `yaml:"encryption" toml:"encryption"`
	RecoveryKey     string   `yaml:"recovery_key" toml:"recovery_key"`
	DataDir         string   `yaml:"data_dir" toml:"data_dir"`
	AllowedRooms    []string `yaml:"allowed_rooms" toml:"allowed_rooms"`
	TypingIndicator bool     `yaml:"typing_indicator" toml:"typing_indicator"`
	// Language is the reply language for users; Matrix events carry no locale.
	Language string `yaml:"language" toml:"language"`
}

// AgentConfig points at the assistant backend
type AgentConfig struct {
	URL        string        `yaml:"url" toml:"url"`
	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes raw configuration bytes, applies defaults and validates the result.
func Parse(data []byte, isTOML bool) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if isTOML {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 30 * 24 * time.Hour
	}
	if c.Session.InactivityTimeout == 0 {
		c.Session.InactivityTimeout = 24 * time.Hour
	}
	if c.Session.StaleAfter == 0 {
		c.Session.StaleAfter = 60 * time.Second
	}
	if c.Session.BusyTimeout == 0 {
		c.Session.BusyTimeout = 5 * time.Minute
	}
	if c.RateLimits.Auth.MaxAttempts == 0 {
		c.RateLimits.Auth.MaxAttempts = 5
	}
	if c.RateLimits.Auth.Window == 0 {
		c.RateLimits.Auth.Window = 15 * time.Minute
	}
	if c.RateLimits.Message.MaxAttempts == 0 {
		c.RateLimits.Message.MaxAttempts = 30
	}
	if c.RateLimits.Message.Window == 0 {
		c.RateLimits.Message.Window = 60 * time.Second
	}
	if c.OTP.TTL == 0 {
		c.OTP.TTL = 10 * time.Minute
	}
	if c.OTP.MaxAttempts == 0 {
		c.OTP.MaxAttempts = 5
	}
	if c.OTP.SMTP.Port == 0 {
		c.OTP.SMTP.Port = 587
	}
	if c.Google.RedirectURL == "" && c.Server.PublicURL != "" {
		c.Google.RedirectURL = strings.TrimRight(c.Server.PublicURL, "/") + "/oauth/google/callback"
	}
	if c.Matrix.DataDir == "" {
		c.Matrix.DataDir = filepath.Join(filepath.Dir(c.Database.Path), "matrix")
	}
	if c.Matrix.Language == "" {
		c.Matrix.Language = "en"
	}
	if c.Agent.Timeout == 0 {
		c.Agent.Timeout = 2 * time.Minute
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Session.TTL <= c.Session.InactivityTimeout {
		return fmt.Errorf("session.ttl (%s) must be longer than session.inactivity_timeout (%s)", c.Session.TTL, c.Session.InactivityTimeout)
	}
	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		return fmt.Errorf("google.client_id and google.client_secret are required")
	}
	if c.Google.RedirectURL == "" {
		return fmt.Errorf("google.redirect_url is required (or set server.public_url)")
	}
	if len(c.Google.StateSecret) < 32 {
		return fmt.Errorf("google.state_secret must be at least 32 bytes")
	}
	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required")
	}
	if c.Matrix.UserID == "" {
		return fmt.Errorf("matrix.user_id is required")
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix.access_token is required")
	}
	if c.Agent.URL == "" {
		return fmt.Errorf("agent.url is required")
	}
	if c.OTP.SMTP.Host != "" && c.OTP.From == "" {
		return fmt.Errorf("otp.from is required when otp.smtp.host is set")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"session.ttl", cfg.Session.TTLRaw, &cfg.Session.TTL},
		{"session.inactivity_timeout", cfg.Session.InactivityTimeoutRaw, &cfg.Session.InactivityTimeout},
		{"session.stale_after", cfg.Session.StaleAfterRaw, &cfg.Session.StaleAfter},
		{"session.busy_timeout", cfg.Session.BusyTimeoutRaw, &cfg.Session.BusyTimeout},
		{"rate_limits.auth.window", cfg.RateLimits.Auth.WindowRaw, &cfg.RateLimits.Auth.Window},
		{"rate_limits.message.window", cfg.RateLimits.Message.WindowRaw, &cfg.RateLimits.Message.Window},
		{"otp.ttl", cfg.OTP.TTLRaw, &cfg.OTP.TTL},
		{"agent.timeout", cfg.Agent.TimeoutRaw, &cfg.Agent.Timeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %q", f.name, f.raw)
		}
		*f.dst = d
	}
	return nil
}
