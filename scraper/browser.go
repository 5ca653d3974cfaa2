package scraper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"newhome-tracker/utils"
)

// BrowserConfig configures the shared headless browser.
type BrowserConfig struct {
	ChromeBin  string
	Timeout    time.Duration
	MaxRetries int
	Logger     *utils.Logger
}

// Browser renders client-side pages in one lazily started headless Chrome.
// Each call opens its own tab, so it is safe for concurrent use.
type Browser struct {
	cfg   BrowserConfig
	retry *utils.RetryConfig

	mu            sync.Mutex
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

// NewBrowser prepares a Browser. Chrome is not launched until first use.
func NewBrowser(cfg BrowserConfig) *Browser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = utils.NewNopLogger()
	}
	return &Browser{
		cfg: cfg,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries + 1,
			BaseDelay:   2 * time.Second,
			Logger:      cfg.Logger,
		},
	}
}

func (b *Browser) start() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	chromeBin := findChromeBinary(b.cfg.ChromeBin)
	b.cfg.Logger.Info("[browser] Using browser binary: %q", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "en-US"),
		chromedp.UserAgent(DefaultUserAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	b.browserCtx, b.cancelAlloc, b.cancelBrowser = browserCtx, cancelAlloc, cancelBrowser
	return browserCtx, nil
}

// Evaluate loads target in a new tab, waits for waitSelector to be visible,
// runs script and decodes its result into out.
func (b *Browser) Evaluate(ctx context.Context, target, waitSelector, script string, out any) error {
	browserCtx, err := b.start()
	if err != nil {
		return err
	}

	return b.retry.Do(ctx, "render "+target, func() error {
		tabCtx, cancelTab := chromedp.NewContext(browserCtx)
		defer cancelTab()
		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.cfg.Timeout)
		defer cancelTimeout()
		stop := context.AfterFunc(ctx, cancelTimeout)
		defer stop()

		actions := []chromedp.Action{
			network.Enable(),
			network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": AcceptLanguage}),
			chromedp.Navigate(target),
		}
		if waitSelector != "" {
			actions = append(actions, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
		}
		actions = append(actions,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(time.Second),
			chromedp.Evaluate(script, out),
		)
		if err := chromedp.Run(tabCtx, actions...); err != nil {
			if ctx.Err() != nil {
				return utils.Permanent(ctx.Err())
			}
			return fmt.Errorf("chromedp %s: %w", target, err)
		}
		return nil
	})
}

// Close shuts Chrome down if it was started.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browserCtx == nil {
		return
	}
	b.cancelBrowser()
	b.cancelAlloc()
	b.browserCtx = nil
}

// findChromeBinary locates Chrome/Chromium. An explicit path wins.
func findChromeBinary(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
