package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
	"github.com/playwright-community/playwright-go"
)

// Driver wraps a single page in its own browser. Playwright calls are not
// context aware, so every call is bounded by the earlier of its own timeout
// and the deadline of ctx.
type Driver struct {
	browser        playwright.Browser
	context        playwright.BrowserContext
	page           playwright.Page
	typingDelay    time.Duration
	elementTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

var _ ports.Driver = (*Driver)(nil)

func (d *Driver) Navigate(ctx context.Context, target string, timeout time.Duration) error {
	ms, err := boundedTimeout(ctx, timeout)
	if err != nil {
		return err
	}

	if _, err := d.page.Goto(target, playwright.PageGotoOptions{
		Timeout:   playwright.Float(ms),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return mapError(ctx, fmt.Errorf("navigate to %s: %w", target, err))
	}
	return nil
}

func (d *Driver) WaitFor(ctx context.Context, marker string, timeout time.Duration) error {
	ms, err := boundedTimeout(ctx, timeout)
	if err != nil {
		return err
	}

	if _, err := d.page.WaitForSelector(marker, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(ms),
	}); err != nil {
		return mapError(ctx, fmt.Errorf("wait for %s: %w", marker, err))
	}
	return nil
}

func (d *Driver) Exists(ctx context.Context, marker string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	handle, err := d.page.QuerySelector(marker)
	if err != nil {
		return false, mapError(ctx, fmt.Errorf("query %s: %w", marker, err))
	}
	return handle != nil, nil
}

func (d *Driver) Type(ctx context.Context, field, text string) error {
	ms, err := boundedTimeout(ctx, d.elementTimeout)
	if err != nil {
		return err
	}

	err = d.page.Locator(field).First().PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay:   playwright.Float(float64(d.typingDelay.Milliseconds())),
		Timeout: playwright.Float(ms),
	})
	if err != nil {
		return mapElementError(ctx, fmt.Errorf("type into %s: %w", field, err))
	}
	return nil
}

func (d *Driver) Click(ctx context.Context, control string) error {
	ms, err := boundedTimeout(ctx, d.elementTimeout)
	if err != nil {
		return err
	}

	if err := d.page.Locator(control).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(ms),
	}); err != nil {
		return mapElementError(ctx, fmt.Errorf("click %s: %w", control, err))
	}
	return nil
}

func (d *Driver) Upload(ctx context.Context, field, path string) error {
	ms, err := boundedTimeout(ctx, d.elementTimeout)
	if err != nil {
		return err
	}

	if err := d.page.Locator(field).First().SetInputFiles([]string{path}, playwright.LocatorSetInputFilesOptions{
		Timeout: playwright.Float(ms),
	}); err != nil {
		return mapElementError(ctx, fmt.Errorf("upload %s: %w", field, err))
	}
	return nil
}

func (d *Driver) ReadCookies(ctx context.Context) ([]domain.Cookie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cookies, err := d.context.Cookies()
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return fromPlaywrightCookies(cookies), nil
}

func (d *Driver) RestoreCookies(ctx context.Context, cookies []domain.Cookie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(cookies) == 0 {
		return nil
	}

	if err := d.context.AddCookies(toPlaywrightCookies(cookies)); err != nil {
		return fmt.Errorf("restore cookies: %w", err)
	}
	return nil
}

// Close tears down the page, its context and the browser process. It is
// safe to call more than once.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		if err := d.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
		if err := d.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close context: %w", err))
		}
		if err := d.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		d.closeErr = errors.Join(errs...)
	})
	return d.closeErr
}

// boundedTimeout returns the timeout in milliseconds, capped by the
// deadline of ctx.
func boundedTimeout(ctx context.Context, timeout time.Duration) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout || timeout <= 0 {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return 0, context.DeadlineExceeded
	}
	// Zero means no timeout to the engine.
	return max(float64(timeout.Milliseconds()), 1), nil
}

func mapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", ports.ErrWaitTimeout, err)
	}
	return err
}

func mapElementError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", ports.ErrElementMissing, err)
	}
	return err
}

func fromPlaywrightCookies(cookies []playwright.Cookie) []domain.Cookie {
	if len(cookies) == 0 {
		return nil
	}

	out := make([]domain.Cookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := domain.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != nil {
			cookie.SameSite = string(*c.SameSite)
		}
		out = append(out, cookie)
	}
	return out
}

func toPlaywrightCookies(cookies []domain.Cookie) []playwright.OptionalCookie {
	out := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := playwright.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   playwright.String(c.Domain),
			Path:     playwright.String(c.Path),
			HttpOnly: playwright.Bool(c.HTTPOnly),
			Secure:   playwright.Bool(c.Secure),
		}
		if c.Path == "" {
			cookie.Path = playwright.String("/")
		}
		if c.Expires > 0 {
			cookie.Expires = playwright.Float(c.Expires)
		}
		if sameSite := sameSiteAttribute(c.SameSite); sameSite != nil {
			cookie.SameSite = sameSite
		}
		out = append(out, cookie)
	}
	return out
}

func sameSiteAttribute(raw string) *playwright.SameSiteAttribute {
	switch strings.ToLower(raw) {
	case "strict":
		return playwright.SameSiteAttributeStrict
	case "lax":
		return playwright.SameSiteAttributeLax
	case "none":
		return playwright.SameSiteAttributeNone
	default:
		return nil
	}
}
