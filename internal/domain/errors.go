package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTenantNotFound    = errors.New("tenant not found")
	ErrTenantExists      = errors.New("tenant already exists")
	ErrTenantSuspended   = errors.New("tenant suspended")
	ErrInvalidTenant     = errors.New("invalid tenant")
	ErrSecretNotFound    = errors.New("secret not found")
	ErrInvalidParams     = errors.New("invalid action params")
	ErrUnsupportedAction = errors.New("unsupported action")
)

type FailureKind string

const (
	FailureConfig             FailureKind = "ConfigError"
	FailureUnsupportedAction  FailureKind = "UnsupportedAction"
	FailureInvalidParams      FailureKind = "InvalidParams"
	FailureResource           FailureKind = "ResourceError"
	FailureLogin              FailureKind = "LoginFailure"
	FailureElementNotFound    FailureKind = "ElementNotFound"
	FailureActionTimeout      FailureKind = "ActionTimeout"
	FailureSubmit             FailureKind = "SubmitFailure"
	FailurePersistenceWarning FailureKind = "PersistenceWarning"
	FailureInternal           FailureKind = "InternalError"
)

// ActionError is a classified failure raised while running an action.
type ActionError struct {
	Kind FailureKind
	Step string
	Err  error
}

func NewActionError(kind FailureKind, step string, err error) *ActionError {
	return &ActionError{Kind: kind, Step: step, Err: err}
}

func (e *ActionError) Error() string {
	switch {
	case e.Step != "" && e.Err != nil:
		return fmt.Sprintf("%s at %s: %v", e.Kind, e.Step, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Step != "":
		return fmt.Sprintf("%s at %s", e.Kind, e.Step)
	default:
		return string(e.Kind)
	}
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind carried by err, falling back to a
// classification of the well-known sentinels.
func KindOf(err error) FailureKind {
	if err == nil {
		return ""
	}

	var actionErr *ActionError
	if errors.As(err, &actionErr) {
		return actionErr.Kind
	}

	switch {
	case errors.Is(err, ErrTenantNotFound), errors.Is(err, ErrTenantSuspended), errors.Is(err, ErrSecretNotFound):
		return FailureConfig
	case errors.Is(err, ErrUnsupportedAction):
		return FailureUnsupportedAction
	case errors.Is(err, ErrInvalidParams):
		return FailureInvalidParams
	default:
		return FailureInternal
	}
}
