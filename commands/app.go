package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"newhome-tracker/config"
	"newhome-tracker/scraper"
	"newhome-tracker/scraper/catalog"
	"newhome-tracker/storage"
	"newhome-tracker/utils"
)

// app is the wiring shared by every command.
type app struct {
	cfg    *config.Config
	logger *utils.Logger
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return nil, err
	}
	logger := utils.NewLoggerWithOptions(utils.LoggerOptions{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if cfg.ConfigFileUsed != "" {
		logger.Debug("[config] Using %s", cfg.ConfigFileUsed)
	}
	if !cfg.EnvFileLoaded {
		logger.Debug("[config] No .env file, using environment and defaults")
	}
	return &app{cfg: cfg, logger: logger}, nil
}

// openStore connects to the configured database and ensures the schema.
func (a *app) openStore(ctx context.Context) (*storage.SQLStore, error) {
	if a.cfg.DBDriver == storage.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(a.cfg.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	a.logger.Info("[storage] Connecting to %s", a.cfg.RedactedDSN())
	store, err := storage.Open(ctx, a.cfg.DBDriver, a.cfg.DSN())
	if err != nil {
		return nil, err
	}
	return store, nil
}

// openCache returns the Redis plans cache, or nil when none is configured or
// Redis is unreachable.
func (a *app) openCache(ctx context.Context) *storage.RedisPlansCache {
	if a.cfg.RedisAddr == "" {
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	cache, err := storage.NewRedisPlansCache(pingCtx, a.cfg.RedisAddr, a.cfg.PlansCacheTTL)
	if err != nil {
		a.logger.Warn("[cache] Plans cache disabled: %v", err)
		return nil
	}
	a.logger.Info("[cache] Plans cache on %s (ttl %v)", a.cfg.RedisAddr, a.cfg.PlansCacheTTL)
	return cache
}

// registry builds the extractor table filtered by ENABLED_EXTRACTORS. The
// returned browser must be closed by the caller.
func (a *app) registry() (*scraper.Registry, *scraper.Browser, error) {
	fetcher := scraper.NewPageFetcher(scraper.FetchConfig{
		Timeout:    a.cfg.FetchTimeout,
		MaxRetries: a.cfg.MaxRetries,
		Logger:     a.logger,
	})
	browser := scraper.NewBrowser(scraper.BrowserConfig{
		ChromeBin:  a.cfg.ChromeBin,
		Timeout:    a.cfg.BrowserTimeout,
		MaxRetries: a.cfg.MaxRetries,
		Logger:     a.logger,
	})

	reg, err := catalog.Build(catalog.Deps{
		Fetcher:        fetcher,
		Browser:        browser,
		Logger:         a.logger,
		MaxConcurrency: a.cfg.MaxConcurrency,
		RateLimitMs:    a.cfg.RateLimitMs,
	})
	if err != nil {
		browser.Close()
		return nil, nil, err
	}
	filtered := reg.Filter(a.cfg.EnabledExtractors)
	if filtered.Len() == 0 {
		browser.Close()
		return nil, nil, fmt.Errorf("no extractors match ENABLED_EXTRACTORS=%v", a.cfg.EnabledExtractors)
	}
	return filtered, browser, nil
}
