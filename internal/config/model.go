package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/visarisk/agent/internal/auth"
	"github.com/visarisk/agent/internal/common"
	"github.com/visarisk/agent/internal/gate"
	"github.com/visarisk/agent/internal/identity"
	"github.com/visarisk/agent/internal/models"
	"github.com/visarisk/agent/internal/sessions"
)

// Config represents the application configuration structure
type Config struct {
	Login    LoginConfig    `mapstructure:"login"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Identity IdentityConfig `mapstructure:"identity"`
	Gate     GateConfig     `mapstructure:"gate"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Secret   string         `mapstructure:"secret"` // Secret used for signing the local cookie session

	file       string
	loggerOnce sync.Once
	logger     *LogBuffer
}

type LoginConfig struct {
	Endpoint     string        `mapstructure:"endpoint"` // e.g. http://127.0.0.1:8000
	Base         string        `mapstructure:"base"`     // API root below the endpoint e.g. /api
	TokenPath    string        `mapstructure:"token_path"`
	RegisterPath string        `mapstructure:"register_path"`
	ProfilePath  string        `mapstructure:"profile_path"`
	LogoutPath   string        `mapstructure:"logout_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type SessionsConfig struct {
	Path string `mapstructure:"path"`
	// Ephemeral keeps the session in memory only
	Ephemeral bool `mapstructure:"ephemeral"`
}

type IdentityConfig struct {
	RoleClaim     string `mapstructure:"role_claim"`
	EmailClaim    string `mapstructure:"email_claim"`
	RejectExpired bool   `mapstructure:"reject_expired"`
}

type GateConfig struct {
	LoginPath        string `mapstructure:"login_path"`
	DefaultPath      string `mapstructure:"default_path"`
	RequireRoleClaim bool   `mapstructure:"require_role_claim"`
}

type ServerConfig struct {
	Host     string             `mapstructure:"host"`
	Port     int                `mapstructure:"port"`
	Limits   ServerLimitsConfig `mapstructure:"limits"`
	Metrics  MetricsConfig      `mapstructure:"metrics"`
	Health   HealthConfig       `mapstructure:"health"`
	Ready    ReadyConfig        `mapstructure:"ready"`
	Security SecurityConfig     `mapstructure:"security"`
}

type ServerLimitsConfig struct {
	ReadTimeout            time.Duration `mapstructure:"read_timeout"`
	WriteTimeout           time.Duration `mapstructure:"write_timeout"`
	IdleTimeout            time.Duration `mapstructure:"idle_timeout"`
	LoginRequestsPerMinute int           `mapstructure:"login_requests_per_minute"`
	LoginBurst             int           `mapstructure:"login_burst"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

type HealthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type ReadyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// Validate rejects configurations the agent cannot start with.
func (c *Config) Validate() error {
	var problems []error

	if !common.IsValidLoginServer(c.Login.Endpoint) {
		problems = append(problems, fmt.Errorf("login.endpoint must be an http(s) URL, got %q", c.Login.Endpoint))
	}
	if c.Login.Timeout <= 0 {
		problems = append(problems, fmt.Errorf("login.timeout must be positive"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.Limits.LoginRequestsPerMinute <= 0 {
		problems = append(problems, fmt.Errorf("server.limits.login_requests_per_minute must be positive, got %d", c.Server.Limits.LoginRequestsPerMinute))
	}
	if c.Server.Limits.LoginBurst <= 0 {
		problems = append(problems, fmt.Errorf("server.limits.login_burst must be positive, got %d", c.Server.Limits.LoginBurst))
	}
	if len(c.Gate.LoginPath) > 0 && len(gate.SafeReturnTo(c.Gate.LoginPath)) == 0 {
		problems = append(problems, fmt.Errorf("gate.login_path must be a local path"))
	}
	if len(c.Gate.DefaultPath) > 0 && len(gate.SafeReturnTo(c.Gate.DefaultPath)) == 0 {
		problems = append(problems, fmt.Errorf("gate.default_path must be a local path"))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
	}
	return nil
}

// ConfigFile is the file the configuration was read from, if any.
func (c *Config) ConfigFile() string {
	return c.file
}

func (c *Config) GetSecret() string {
	return c.Secret
}

func (c *Config) HasCustomSecret() bool {
	return len(c.Secret) > 0 && c.Secret != common.DefaultServerSecret
}

// GetServerAddress returns the server bind address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) GetLocalServerUrl() string {
	hostname := c.Server.Host
	if hostname == "0.0.0.0" || len(hostname) == 0 {
		hostname = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", hostname, c.Server.Port)
}

// GetLoginServerUrl joins the endpoint and the API base.
func (c *Config) GetLoginServerUrl() string {
	return strings.TrimSuffix(fmt.Sprintf(
		"%s/%s",
		strings.TrimSuffix(c.Login.Endpoint, "/"),
		strings.Trim(c.Login.Base, "/")),
		"/")
}

func (c *Config) GetLoginServerHostname() string {
	parsed, err := url.Parse(c.Login.Endpoint)
	if err != nil || len(parsed.Hostname()) == 0 {
		return "localhost"
	}
	return parsed.Hostname()
}

// SetLoginServer overrides the endpoint, e.g. from the --backend flag.
func (c *Config) SetLoginServer(loginServer string) error {
	if !common.IsValidLoginServer(loginServer) {
		return fmt.Errorf("invalid login server URL: %s", loginServer)
	}
	c.Login.Endpoint = strings.TrimSpace(loginServer)
	return nil
}

func (c *Config) GetBackendConfig() auth.BackendConfig {
	return auth.BackendConfig{
		BaseURL:      c.GetLoginServerUrl(),
		TokenPath:    c.Login.TokenPath,
		RegisterPath: c.Login.RegisterPath,
		ProfilePath:  c.Login.ProfilePath,
		LogoutPath:   c.Login.LogoutPath,
		Timeout:      c.Login.Timeout,
	}
}

// NewSessionStore opens the store for the configured backend host.
func (c *Config) NewSessionStore() (sessions.TrackedStore, error) {
	if c.Sessions.Ephemeral {
		return sessions.NewMemoryStore(), nil
	}
	return sessions.NewFileStore(c.Sessions.Path, c.Login.Endpoint)
}

func (c *Config) NewResolver() *identity.ClaimsResolver {
	return identity.NewClaimsResolver(
		c.Identity.RoleClaim,
		c.Identity.EmailClaim,
		c.Identity.RejectExpired,
	)
}

func (c *Config) NewGate() *gate.Gate {
	return gate.New(c.Gate.LoginPath, c.Gate.DefaultPath, c.Gate.RequireRoleClaim)
}

// Logger is the ring buffer hook that keeps recent log entries.
func (c *Config) Logger() *LogBuffer {
	c.loggerOnce.Do(func() {
		c.logger = NewLogBuffer(defaultRingSize)
	})
	return c.logger
}

func (c *Config) GetEventsWithFilter(filter LogFilter) []*models.LogEntry {
	return c.Logger().GetEventsWithFilter(filter)
}
