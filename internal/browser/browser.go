package browser

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

const captureBuffer = 256

// Browser is one browser process with a single context and page. It serves
// as the page adapter the scraper drives.
type Browser struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	context  playwright.BrowserContext
	page     playwright.Page
	opts     *Options
	captures chan models.CapturedPayload
	logger   *slog.Logger
}

type Options struct {
	Engine         string
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Engine:         "firefox",
		Headless:       false,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:128.0) Gecko/20100101 Firefox/128.0",
		ViewportWidth:  1366,
		ViewportHeight: 768,
		AcceptLanguage: "id-ID,id;q=0.9,en;q=0.8",
		TimezoneID:     "Asia/Jakarta",
		Locale:         "id-ID",
		ExtraHeaders: map[string]string{
			"Accept-Language": "id-ID,id;q=0.9,en;q=0.8",
			"DNT":             "1",
		},
	}
}

// WithUserAgent returns a copy of the options using ua, or the current
// agent when ua is empty.
func (o *Options) WithUserAgent(ua string) *Options {
	cp := *o
	if ua != "" {
		cp.UserAgent = ua
	}
	return &cp
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	}
	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browserType := pw.Firefox
	if opts.Engine == "chromium" {
		browserType = pw.Chromium
		launchOpts.Args = []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
		}
	}

	browser, err := browserType.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: opts.ExtraHeaders,
	}

	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	b := &Browser{
		pw:       pw,
		browser:  browser,
		context:  context,
		page:     page,
		opts:     opts,
		captures: make(chan models.CapturedPayload, captureBuffer),
		logger:   slog.Default().With("component", "browser", "engine", opts.Engine),
	}
	page.OnResponse(b.onResponse)

	return b, nil
}

// UserAgent is the agent string the context was created with.
func (b *Browser) UserAgent() string {
	return b.opts.UserAgent
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}
