package application

import (
	"context"
	"errors"
	"time"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
)

// steps wraps driver primitives and classifies their failures.
type steps struct {
	driver   ports.Driver
	timeouts ScriptTimeouts
}

func (s steps) navigate(ctx context.Context, step, target string) error {
	if err := s.driver.Navigate(ctx, target, s.timeouts.Navigate); err != nil {
		return classify(ctx, step, err, domain.FailureActionTimeout, domain.FailureResource)
	}
	return nil
}

// locate waits for a control the script needs to interact with. Absence is
// reported with the given kind.
func (s steps) locate(ctx context.Context, step, marker string, timeout time.Duration, missing domain.FailureKind) error {
	if err := s.driver.WaitFor(ctx, marker, timeout); err != nil {
		return classify(ctx, step, err, missing, domain.FailureResource)
	}
	return nil
}

// confirm waits for a marker signalling that the remote side finished.
func (s steps) confirm(ctx context.Context, step, marker string, timeout time.Duration) error {
	if err := s.driver.WaitFor(ctx, marker, timeout); err != nil {
		return classify(ctx, step, err, domain.FailureActionTimeout, domain.FailureResource)
	}
	return nil
}

func (s steps) typeText(ctx context.Context, step, field, text string, missing domain.FailureKind) error {
	if err := s.driver.Type(ctx, field, text); err != nil {
		return classify(ctx, step, err, missing, domain.FailureResource)
	}
	return nil
}

func (s steps) click(ctx context.Context, step, control string, missing domain.FailureKind) error {
	if err := s.driver.Click(ctx, control); err != nil {
		return classify(ctx, step, err, missing, domain.FailureResource)
	}
	return nil
}

func (s steps) upload(ctx context.Context, step, field, path string) error {
	if err := s.driver.Upload(ctx, field, path); err != nil {
		return classify(ctx, step, err, domain.FailureElementNotFound, domain.FailureResource)
	}
	return nil
}

func (s steps) settle(ctx context.Context) error {
	if s.timeouts.Settle <= 0 {
		return nil
	}

	timer := time.NewTimer(s.timeouts.Settle)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return domain.NewActionError(domain.FailureActionTimeout, "settle", ctx.Err())
	}
}

// classify maps a driver error to a failure kind. An expired action
// deadline always wins; otherwise a wait timeout or missing element maps to
// onMissing and anything else to onOther.
func classify(ctx context.Context, step string, err error, onMissing, onOther domain.FailureKind) error {
	var actionErr *domain.ActionError
	if errors.As(err, &actionErr) {
		return err
	}

	switch {
	case ctx.Err() != nil:
		return domain.NewActionError(domain.FailureActionTimeout, step, err)
	case isWaitTimeout(err), errors.Is(err, ports.ErrElementMissing):
		return domain.NewActionError(onMissing, step, err)
	default:
		return domain.NewActionError(onOther, step, err)
	}
}

func isWaitTimeout(err error) bool {
	return errors.Is(err, ports.ErrWaitTimeout) || errors.Is(err, context.DeadlineExceeded)
}
