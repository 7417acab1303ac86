package driver

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/hellopet-e2e/internal/config"
	"github.com/kuitang/hellopet-e2e/internal/obs"
)

// Session is one Playwright driver process and one Chromium instance.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	cfg     config.Config
	log     *slog.Logger
}

// InstallBrowsers downloads the Playwright driver and Chromium.
func InstallBrowsers() error {
	return playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}})
}

// LaunchOptions maps a run configuration to Chromium launch options.
func LaunchOptions(cfg config.Config) playwright.BrowserTypeLaunchOptions {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	}
	if cfg.SlowMo > 0 {
		opts.SlowMo = playwright.Float(float64(cfg.SlowMo.Milliseconds()))
	}
	if len(cfg.LaunchArgs) > 0 {
		opts.Args = append([]string(nil), cfg.LaunchArgs...)
	}
	return opts
}

// Launch starts Playwright and Chromium for cfg.
func Launch(cfg config.Config) (*Session, error) {
	log := obs.Pkg("driver")

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(LaunchOptions(cfg))
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	log.Info("browser_launched",
		"config", cfg.Name,
		"headless", cfg.Headless,
		"slow_mo_ms", cfg.SlowMo.Milliseconds(),
		"args", len(cfg.LaunchArgs),
	)
	return &Session{pw: pw, browser: browser, cfg: cfg, log: log}, nil
}

// ContextOptions adjusts one browser context.
type ContextOptions struct {
	// VideoDir enables recording into the directory when non-empty.
	VideoDir string
}

// ContextOptionsFor maps a run configuration to context options.
func ContextOptionsFor(cfg config.Config, opts ContextOptions) playwright.BrowserNewContextOptions {
	o := playwright.BrowserNewContextOptions{
		BaseURL:    playwright.String(cfg.BaseURL),
		Locale:     playwright.String(cfg.Locale),
		TimezoneId: playwright.String(cfg.TimezoneID),
		Viewport:   &playwright.Size{Width: 1280, Height: 720},
	}
	if opts.VideoDir != "" {
		o.RecordVideo = &playwright.RecordVideo{Dir: opts.VideoDir}
	}
	return o
}

// NewContext opens an isolated browser context with the configuration's
// locale, timezone and default timeouts applied.
func (s *Session) NewContext(opts ContextOptions) (playwright.BrowserContext, error) {
	if opts.VideoDir != "" {
		if err := os.MkdirAll(opts.VideoDir, 0o755); err != nil {
			return nil, fmt.Errorf("create video dir: %w", err)
		}
	}
	ctx, err := s.browser.NewContext(ContextOptionsFor(s.cfg, opts))
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	if s.cfg.ActionTimeout > 0 {
		ctx.SetDefaultTimeout(float64(s.cfg.ActionTimeout.Milliseconds()))
	}
	if s.cfg.NavigationTimeout > 0 {
		ctx.SetDefaultNavigationTimeout(float64(s.cfg.NavigationTimeout.Milliseconds()))
	}
	return ctx, nil
}

// NewPage opens a page in bctx wrapped for the session's configuration.
func (s *Session) NewPage(bctx playwright.BrowserContext) (*PlaywrightPage, error) {
	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	return Wrap(page, s.cfg.BaseURL, Timeouts{
		Action:     s.cfg.ActionTimeout,
		Navigation: s.cfg.NavigationTimeout,
	}), nil
}

// StartTrace begins recording a trace with screenshots and DOM snapshots.
func StartTrace(bctx playwright.BrowserContext) error {
	return bctx.Tracing().Start(playwright.TracingStartOptions{
		Screenshots: playwright.Bool(true),
		Snapshots:   playwright.Bool(true),
	})
}

// StopTrace ends the trace, writing it to path when path is non-empty.
func StopTrace(bctx playwright.BrowserContext, path string) error {
	if path == "" {
		return bctx.Tracing().Stop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create trace dir: %w", err)
	}
	return bctx.Tracing().Stop(path)
}

// Config returns the configuration the session was launched with.
func (s *Session) Config() config.Config {
	return s.cfg
}

// Close shuts down the browser and the driver process.
func (s *Session) Close() error {
	var firstErr error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			firstErr = err
		}
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
