package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

const (
	DefaultTypingDelay    = 100 * time.Millisecond
	DefaultElementTimeout = 10 * time.Second
)

type Options struct {
	Headless bool
	// Install downloads the browser binaries before the first launch.
	Install        bool
	TypingDelay    time.Duration
	ElementTimeout time.Duration
}

// Launcher starts one isolated Chromium browser per lease. Playwright itself
// is started lazily so commands that never launch a driver do not pay for it.
type Launcher struct {
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	stopped bool
}

var _ ports.DriverLauncher = (*Launcher)(nil)

func NewLauncher(opts Options, logger zerolog.Logger) *Launcher {
	if opts.TypingDelay < 0 {
		opts.TypingDelay = 0
	}
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = DefaultElementTimeout
	}

	return &Launcher{
		opts:   opts,
		logger: logger.With().Str("component", "browser").Logger(),
	}
}

func (l *Launcher) Launch(ctx context.Context, cfg domain.LaunchConfig) (ports.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := l.runtime()
	if err != nil {
		return nil, err
	}

	launchOpts, err := launchOptions(cfg, l.opts.Headless)
	if err != nil {
		return nil, err
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	bctx, err := browser.NewContext(contextOptions(cfg))
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	l.logger.Debug().
		Bool("proxy", cfg.ProxyEndpoint != "").
		Int("viewport_width", cfg.Viewport.Width).
		Int("viewport_height", cfg.Viewport.Height).
		Msg("browser launched")

	return &Driver{
		browser:        browser,
		context:        bctx,
		page:           page,
		typingDelay:    l.opts.TypingDelay,
		elementTimeout: l.opts.ElementTimeout,
	}, nil
}

// Shutdown stops the playwright runtime. Drivers still open are closed with it.
func (l *Launcher) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopped = true
	if l.pw == nil {
		return nil
	}
	pw := l.pw
	l.pw = nil
	if err := pw.Stop(); err != nil {
		return fmt.Errorf("stop playwright: %w", err)
	}
	return nil
}

func (l *Launcher) runtime() (*playwright.Playwright, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return nil, errors.New("browser launcher is shut down")
	}
	if l.pw != nil {
		return l.pw, nil
	}

	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if l.opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	l.pw = pw

	return pw, nil
}

func launchOptions(cfg domain.LaunchConfig, headless bool) (playwright.BrowserTypeLaunchOptions, error) {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	}
	if cfg.ProxyEndpoint == "" {
		return opts, nil
	}

	proxy, err := proxySettings(cfg.ProxyEndpoint)
	if err != nil {
		return opts, err
	}
	opts.Proxy = proxy

	return opts, nil
}

// proxySettings splits credentials out of the endpoint because the engine
// expects them separately from the server address.
func proxySettings(endpoint string) (*playwright.Proxy, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid proxy endpoint %q", endpoint)
	}

	proxy := &playwright.Proxy{Server: parsed.Scheme + "://" + parsed.Host}
	if parsed.User != nil {
		proxy.Username = playwright.String(parsed.User.Username())
		if password, ok := parsed.User.Password(); ok {
			proxy.Password = playwright.String(password)
		}
	}

	return proxy, nil
}

func contextOptions(cfg domain.LaunchConfig) playwright.BrowserNewContextOptions {
	viewport := cfg.Viewport.WithDefaults()
	opts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: viewport.Width, Height: viewport.Height},
	}
	if cfg.UserAgent != "" {
		opts.UserAgent = playwright.String(cfg.UserAgent)
	}
	return opts
}
