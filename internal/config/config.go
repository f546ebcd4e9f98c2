package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Logger    LoggerConfig    `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatasetConfig struct {
	Path        string        `mapstructure:"path"`
	LoadTimeout time.Duration `mapstructure:"load_timeout"`
	Workers     int           `mapstructure:"workers"`
}

// DashboardConfig bounds how much of a view each page sends to the browser.
type DashboardConfig struct {
	TableRows      int `mapstructure:"table_rows"`
	HistogramBins  int `mapstructure:"histogram_bins"`
	ScatterLimit   int `mapstructure:"scatter_limit"`
	SetValuesLimit int `mapstructure:"set_values_limit"`
}

type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `mapstructure:"rate_limit_enabled"`
	RateLimitRPS    int      `mapstructure:"rate_limit_rps"`
	RateLimitBurst  int      `mapstructure:"rate_limit_burst"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	TrustedProxies  []string `mapstructure:"trusted_proxies"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8084)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("dataset.path", "data/processed/profit_leakage_cleaned.csv")
	v.SetDefault("dataset.load_timeout", 2*time.Minute)
	v.SetDefault("dataset.workers", 10)

	v.SetDefault("dashboard.table_rows", 10)
	v.SetDefault("dashboard.histogram_bins", 30)
	v.SetDefault("dashboard.scatter_limit", 2000)
	v.SetDefault("dashboard.set_values_limit", 500)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("security.rate_limit_enabled", true)
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 10)
	v.SetDefault("security.allowed_origins", "http://localhost:8084")
	v.SetDefault("security.trusted_proxies", "127.0.0.1")
}

// Load reads defaults, then the file named by CONFIG_FILE if set, then the
// environment. Keys map to variables with dots replaced by underscores, e.g.
// SERVER_PORT or DATASET_PATH.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config_file"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Dataset: DatasetConfig{
			Path:        strings.TrimSpace(v.GetString("dataset.path")),
			LoadTimeout: v.GetDuration("dataset.load_timeout"),
			Workers:     v.GetInt("dataset.workers"),
		},
		Dashboard: DashboardConfig{
			TableRows:      v.GetInt("dashboard.table_rows"),
			HistogramBins:  v.GetInt("dashboard.histogram_bins"),
			ScatterLimit:   v.GetInt("dashboard.scatter_limit"),
			SetValuesLimit: v.GetInt("dashboard.set_values_limit"),
		},
		Logger: LoggerConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Security: SecurityConfig{
			EnableRateLimit: v.GetBool("security.rate_limit_enabled"),
			RateLimitRPS:    v.GetInt("security.rate_limit_rps"),
			RateLimitBurst:  v.GetInt("security.rate_limit_burst"),
			AllowedOrigins:  stringList(v.Get("security.allowed_origins")),
			TrustedProxies:  stringList(v.Get("security.trusted_proxies")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// stringList accepts either a YAML list or a comma separated string, which is
// what environment variables provide.
func stringList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case []string:
		parts = val
	case []any:
		for _, p := range val {
			parts = append(parts, fmt.Sprint(p))
		}
	case string:
		parts = strings.Split(val, ",")
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset path cannot be empty")
	}

	if c.Dataset.Workers <= 0 {
		return fmt.Errorf("dataset workers must be positive")
	}

	if c.Dataset.LoadTimeout <= 0 {
		return fmt.Errorf("dataset load timeout must be positive")
	}

	if c.Dashboard.TableRows <= 0 || c.Dashboard.HistogramBins <= 0 {
		return fmt.Errorf("dashboard table rows and histogram bins must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
