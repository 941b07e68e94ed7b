package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/visarisk/agent/internal/auth"
	"github.com/visarisk/agent/internal/common"
	"github.com/visarisk/agent/internal/gate"
	"github.com/visarisk/agent/internal/identity"
	"github.com/visarisk/agent/internal/sessions"
)

const EnvPrefix = "VISARISK"

func DefaultConfig() *Config {

	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		log.Fatalf("error unmarshaling default config: %v", err)
	}

	return &config
}

// Load reads the configuration from defaults, the config file, a .env
// file and the environment, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	loadEnvFile()

	v := viper.New()

	setupViperConfig(v, configFile)
	bindEnvironmentVariables(v)

	config, err := readAndUnmarshalConfig(v)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := setupLogging(config, v); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}
}

func setupViperConfig(v *viper.Viper, configFile string) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/visarisk")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "visarisk"))
	}

	if len(configFile) > 0 {
		v.SetConfigFile(configFile)
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// bindEnvironmentVariables binds the documented variables. Nested keys
// are not picked up by AutomaticEnv on Unmarshal without an explicit bind.
func bindEnvironmentVariables(v *viper.Viper) {

	v.BindEnv("login.endpoint", "VISARISK_LOGIN_ENDPOINT", "VISARISK_BACKEND")
	v.BindEnv("login.base", "VISARISK_LOGIN_BASE")
	v.BindEnv("login.token_path", "VISARISK_LOGIN_TOKEN_PATH")
	v.BindEnv("login.register_path", "VISARISK_LOGIN_REGISTER_PATH")
	v.BindEnv("login.profile_path", "VISARISK_LOGIN_PROFILE_PATH")
	v.BindEnv("login.logout_path", "VISARISK_LOGIN_LOGOUT_PATH")
	v.BindEnv("login.timeout", "VISARISK_LOGIN_TIMEOUT")

	v.BindEnv("sessions.path", "VISARISK_SESSIONS_PATH")
	v.BindEnv("sessions.ephemeral", "VISARISK_SESSIONS_EPHEMERAL")

	v.BindEnv("identity.role_claim", "VISARISK_IDENTITY_ROLE_CLAIM")
	v.BindEnv("identity.email_claim", "VISARISK_IDENTITY_EMAIL_CLAIM")
	v.BindEnv("identity.reject_expired", "VISARISK_IDENTITY_REJECT_EXPIRED")

	v.BindEnv("gate.login_path", "VISARISK_GATE_LOGIN_PATH")
	v.BindEnv("gate.default_path", "VISARISK_GATE_DEFAULT_PATH")
	v.BindEnv("gate.require_role_claim", "VISARISK_GATE_REQUIRE_ROLE_CLAIM")

	v.BindEnv("server.host", "VISARISK_SERVER_HOST")
	v.BindEnv("server.port", "VISARISK_SERVER_PORT")
	v.BindEnv("secret", "VISARISK_SECRET")

	v.BindEnv("logging.level", "VISARISK_LOGGING_LEVEL")
	v.BindEnv("logging.format", "VISARISK_LOGGING_FORMAT")
	v.BindEnv("logging.output", "VISARISK_LOGGING_OUTPUT")
}

func readAndUnmarshalConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	config.file = v.ConfigFileUsed()

	return &config, nil
}

// setupLogging configures logrus from the config and installs the ring
// buffer that backs /logs.
func setupLogging(config *Config, v *viper.Viper) error {

	logrusLevel, err := logrus.ParseLevel(config.Logging.Level)
	if err != nil {
		return fmt.Errorf("error parsing log level: %w", err)
	}

	logrus.SetLevel(logrusLevel)
	logrus.AddHook(config.Logger())

	switch strings.ToLower(config.Logging.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		logrus.WithFields(logrus.Fields{
			"format": config.Logging.Format,
		}).Warn("Unknown log format")
	}

	output, err := openLogOutput(config.Logging.Output)
	if err != nil {
		return err
	}
	logrus.SetOutput(output)

	if logrusLevel >= logrus.DebugLevel {
		for key, value := range v.AllSettings() {
			if key == "secret" {
				continue
			}
			logrus.Debugf("Config '%s': %v\n", key, value)
		}
	}

	return nil
}

func openLogOutput(output string) (io.Writer, error) {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "", "stderr":
		return os.Stderr, nil
	case "stdout":
		return os.Stdout, nil
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log output %s: %w", output, err)
		}
		return file, nil
	}
}

func setDefaults(v *viper.Viper) {

	// Backend defaults
	v.SetDefault("login.endpoint", common.DefaultLoginServerEndpoint)
	v.SetDefault("login.base", common.DefaultLoginServerBase)
	v.SetDefault("login.token_path", auth.DefaultTokenPath)
	v.SetDefault("login.register_path", auth.DefaultRegisterPath)
	v.SetDefault("login.profile_path", "")
	v.SetDefault("login.logout_path", "")
	v.SetDefault("login.timeout", auth.DefaultTimeout)

	// Session persistence
	v.SetDefault("sessions.path", sessions.DefaultSessionPath)
	v.SetDefault("sessions.ephemeral", false)

	// Identity derivation
	v.SetDefault("identity.role_claim", identity.DefaultRoleClaim)
	v.SetDefault("identity.email_claim", identity.DefaultEmailClaim)
	v.SetDefault("identity.reject_expired", false)

	// Access decisions
	v.SetDefault("gate.login_path", gate.DefaultLoginPath)
	v.SetDefault("gate.default_path", gate.DefaultDefaultPath)
	v.SetDefault("gate.require_role_claim", false)

	// Local web application
	v.SetDefault("server.host", common.DefaultServerHost)
	v.SetDefault("server.port", common.DefaultServerPort)

	v.SetDefault("server.limits.read_timeout", "30s")
	v.SetDefault("server.limits.write_timeout", "30s")
	v.SetDefault("server.limits.idle_timeout", "120s")
	v.SetDefault("server.limits.login_requests_per_minute", 10)
	v.SetDefault("server.limits.login_burst", 5)

	v.SetDefault("server.metrics.enabled", true)
	v.SetDefault("server.metrics.path", "/metrics")
	v.SetDefault("server.metrics.namespace", "visarisk")

	v.SetDefault("server.health.enabled", true)
	v.SetDefault("server.health.path", "/health")

	v.SetDefault("server.ready.enabled", true)
	v.SetDefault("server.ready.path", "/ready")

	v.SetDefault("server.security.cors.allowed_origins", []string{})
	v.SetDefault("server.security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("server.security.cors.allowed_headers", []string{"Content-Type", "X-Requested-With", "X-Correlation-ID"})
	v.SetDefault("server.security.cors.max_age", 86400)

	// Cookie session secret
	v.SetDefault("secret", common.DefaultServerSecret)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
}
