package ports

import (
	"context"
	"errors"
	"time"

	"github.com/bnema/tenantctl/internal/domain"
)

var (
	ErrWaitTimeout    = errors.New("driver wait timed out")
	ErrElementMissing = errors.New("element missing")
)

// Driver is a live remote UI automation handle owned by a single action.
// Markers, fields and controls are engine selectors.
type Driver interface {
	Navigate(ctx context.Context, target string, timeout time.Duration) error
	WaitFor(ctx context.Context, marker string, timeout time.Duration) error
	Exists(ctx context.Context, marker string) (bool, error)
	Type(ctx context.Context, field, text string) error
	Click(ctx context.Context, control string) error
	Upload(ctx context.Context, field, path string) error
	ReadCookies(ctx context.Context) ([]domain.Cookie, error)
	RestoreCookies(ctx context.Context, cookies []domain.Cookie) error
	Close() error
}

type DriverLauncher interface {
	Launch(ctx context.Context, cfg domain.LaunchConfig) (Driver, error)
}
