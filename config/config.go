// Package config builds the process configuration of the usage API from defaults,
// an optional TOML file, a .env file and the environment.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

const (
	defaultDBPath           = "/etc/x-ui/x-ui.db"
	defaultHost             = "0.0.0.0"
	defaultPort             = 8000
	defaultRateLimit        = "60/minute"
	defaultFrontendDir      = "frontend"
	defaultSpeedTestTimeout = 60 * time.Second
	defaultDBCheckCron      = "@every 1m"
)

// Config is constructed once at startup and handed to the components that need it.
type Config struct {
	DBPath            string        `toml:"db_path"`
	Host              string        `toml:"host"`
	Port              int           `toml:"port"`
	RateLimit         string        `toml:"rate_limit"`
	TelegramAdminURL  string        `toml:"telegram_admin_url"`
	FrontendDir       string        `toml:"frontend_dir"`
	LogLevel          LogLevel      `toml:"log_level"`
	LogFolder         string        `toml:"log_folder"`
	Debug             bool          `toml:"debug"`
	CORSOrigins       []string      `toml:"cors_origins"`
	TrustedProxies    []string      `toml:"trusted_proxies"`
	SpeedTestTimeout  time.Duration `toml:"-"`
	SpeedTestFallback bool          `toml:"speed_test_fallback"`
	DBCheckCron       string        `toml:"db_check_cron"`

	// SpeedTestTimeoutRaw is the TOML form of SpeedTestTimeout, e.g. "60s".
	SpeedTestTimeoutRaw string `toml:"speed_test_timeout"`
}

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		DBPath:            defaultDBPath,
		Host:              defaultHost,
		Port:              defaultPort,
		RateLimit:         defaultRateLimit,
		FrontendDir:       defaultFrontendDir,
		LogLevel:          Info,
		CORSOrigins:       []string{"*"},
		SpeedTestTimeout:  defaultSpeedTestTimeout,
		SpeedTestFallback: true,
		DBCheckCron:       defaultDBCheckCron,
	}
}

// Load reads the configuration. tomlPath may be empty; a missing .env file is ignored.
func Load(tomlPath string) (*Config, error) {
	c := Default()

	if tomlPath != "" {
		if err := c.loadTOML(tomlPath); err != nil {
			return nil, err
		}
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	if err := c.loadEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.CheckValid(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadTOML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if c.SpeedTestTimeoutRaw != "" {
		d, err := time.ParseDuration(c.SpeedTestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("invalid speed_test_timeout %q: %w", c.SpeedTestTimeoutRaw, err)
		}
		c.SpeedTestTimeout = d
	}
	return nil
}

func (c *Config) loadEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DB_PATH"); ok && v != "" {
		c.DBPath = v
	}
	if v, ok := lookup("HOST"); ok && v != "" {
		c.Host = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Port = port
	}
	if v, ok := lookup("RATE_LIMIT"); ok && v != "" {
		c.RateLimit = v
	}
	if v, ok := lookup("TELEGRAM_ADMIN_URL"); ok {
		c.TelegramAdminURL = v
	}
	if v, ok := lookup("FRONTEND_DIR"); ok && v != "" {
		c.FrontendDir = v
	}
	if v, ok := lookup("XUI_LOG_LEVEL"); ok && v != "" {
		c.LogLevel = LogLevel(strings.ToLower(v))
	}
	if v, ok := lookup("XUI_LOG_FOLDER"); ok {
		c.LogFolder = v
	}
	if v, ok := lookup("XUI_DEBUG"); ok {
		c.Debug = v == "true"
	}
	if v, ok := lookup("CORS_ORIGINS"); ok && v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v, ok := lookup("TRUSTED_PROXIES"); ok {
		c.TrustedProxies = splitList(v)
	}
	if v, ok := lookup("SPEED_TEST_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SPEED_TEST_TIMEOUT %q: %w", v, err)
		}
		c.SpeedTestTimeout = d
	}
	if v, ok := lookup("SPEED_TEST_FALLBACK"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid SPEED_TEST_FALLBACK %q: %w", v, err)
		}
		c.SpeedTestFallback = b
	}
	if v, ok := lookup("DB_CHECK_CRON"); ok {
		c.DBCheckCron = v
	}
	return nil
}

func splitList(v string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// CheckValid validates the configuration.
func (c *Config) CheckValid() error {
	if c.DBPath == "" {
		return errors.New("database path cannot be empty")
	}
	if c.Port <= 0 || c.Port > math.MaxUint16 {
		return fmt.Errorf("port is not a valid port: %d", c.Port)
	}
	if _, err := ParseRateLimit(c.RateLimit); err != nil {
		return err
	}
	switch c.LogLevel {
	case Debug, Info, Notice, Warn, Error:
	default:
		return fmt.Errorf("unknown log level: %s", c.LogLevel)
	}
	if c.SpeedTestTimeout <= 0 {
		return fmt.Errorf("speed test timeout must be positive, got %s", c.SpeedTestTimeout)
	}
	if c.Debug {
		c.LogLevel = Debug
	}
	return nil
}

// ListenAddr returns host:port for the HTTP listener.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
