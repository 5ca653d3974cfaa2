package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration loaded from the environment,
// an optional .env file and an optional newhome.yaml config file.
type Config struct {
	DBDriver         string `validate:"oneof=postgres sqlite"`
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string

	HarvestInterval time.Duration `validate:"gt=0"`
	FetchTimeout    time.Duration `validate:"gt=0"`
	BrowserTimeout  time.Duration `validate:"gt=0"`
	MaxRetries      int           `validate:"min=0"`
	MaxConcurrency  int           `validate:"min=1"`
	RateLimitMs     int           `validate:"min=0"`
	ChangeWindow    time.Duration `validate:"gt=0"`

	EnabledExtractors []string

	APIAddr        string `validate:"required"`
	StaticRoot     string
	FrontendOrigin string
	RedisAddr      string
	PlansCacheTTL  time.Duration

	ChromeBin string
	LogLevel  string `validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `validate:"omitempty,oneof=console json"`

	// EnvFileLoaded reports whether a .env file was found.
	EnvFileLoaded bool
	// ConfigFileUsed is the config file viper read, if any.
	ConfigFileUsed string
}

// SetDefaults registers every key with its default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", "5432")
	v.SetDefault("postgres_user", "newhome")
	v.SetDefault("postgres_password", "newhome")
	v.SetDefault("postgres_db", "newhome")
	v.SetDefault("postgres_sslmode", "disable")
	v.SetDefault("sqlite_path", "./data/newhome.db")

	v.SetDefault("harvest_interval", time.Hour)
	v.SetDefault("fetch_timeout", 15*time.Second)
	v.SetDefault("browser_timeout", 60*time.Second)
	v.SetDefault("max_retries", 2)
	v.SetDefault("max_concurrency", 3)
	v.SetDefault("rate_limit_ms", 500)
	v.SetDefault("change_window", 24*time.Hour)
	v.SetDefault("enabled_extractors", "")

	v.SetDefault("api_addr", ":8000")
	v.SetDefault("static_root", "./frontend/dist")
	v.SetDefault("frontend_origin", "http://localhost:5173")
	v.SetDefault("redis_addr", "")
	v.SetDefault("plans_cache_ttl", time.Minute)

	v.SetDefault("chrome_bin", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// Load reads the .env file and config file into v and returns a validated Config.
// cfgFile may be empty, in which case ./newhome.yaml is used when present.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	envLoaded := godotenv.Load() == nil

	SetDefaults(v)
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("newhome")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", cfgFile, err)
		}
	}

	cfg := &Config{
		DBDriver:         strings.ToLower(v.GetString("db_driver")),
		PostgresHost:     v.GetString("postgres_host"),
		PostgresPort:     v.GetString("postgres_port"),
		PostgresUser:     v.GetString("postgres_user"),
		PostgresPassword: v.GetString("postgres_password"),
		PostgresDB:       v.GetString("postgres_db"),
		PostgresSSLMode:  v.GetString("postgres_sslmode"),
		SQLitePath:       v.GetString("sqlite_path"),

		HarvestInterval: v.GetDuration("harvest_interval"),
		FetchTimeout:    v.GetDuration("fetch_timeout"),
		BrowserTimeout:  v.GetDuration("browser_timeout"),
		MaxRetries:      v.GetInt("max_retries"),
		MaxConcurrency:  v.GetInt("max_concurrency"),
		RateLimitMs:     v.GetInt("rate_limit_ms"),
		ChangeWindow:    v.GetDuration("change_window"),

		EnabledExtractors: splitList(v.GetString("enabled_extractors")),

		APIAddr:        v.GetString("api_addr"),
		StaticRoot:     v.GetString("static_root"),
		FrontendOrigin: v.GetString("frontend_origin"),
		RedisAddr:      v.GetString("redis_addr"),
		PlansCacheTTL:  v.GetDuration("plans_cache_ttl"),

		ChromeBin: v.GetString("chrome_bin"),
		LogLevel:  strings.ToLower(v.GetString("log_level")),
		LogFormat: strings.ToLower(v.GetString("log_format")),

		EnvFileLoaded:  envLoaded,
		ConfigFileUsed: v.ConfigFileUsed(),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_time_format=sqlite"
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// RedactedDSN is DSN with the password masked, safe to log.
func (c *Config) RedactedDSN() string {
	if c.DBDriver == "sqlite" {
		return c.DSN()
	}
	u := url.URL{Scheme: "postgres", User: url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host: c.PostgresHost + ":" + c.PostgresPort, Path: c.PostgresDB}
	return u.Redacted()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
