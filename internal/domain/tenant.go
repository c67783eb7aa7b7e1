package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080

	MaskedCredential = "***"
)

type TenantID string

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

func (s TenantStatus) Valid() bool {
	switch s {
	case TenantStatusActive, TenantStatusSuspended:
		return true
	default:
		return false
	}
}

type Viewport struct {
	Width  int
	Height int
}

func (v Viewport) WithDefaults() Viewport {
	if v.Width <= 0 {
		v.Width = DefaultViewportWidth
	}
	if v.Height <= 0 {
		v.Height = DefaultViewportHeight
	}
	return v
}

// LaunchConfig is applied once when a driver is started for a tenant.
type LaunchConfig struct {
	ProxyEndpoint string
	UserAgent     string
	Viewport      Viewport
}

type Tenant struct {
	ID            TenantID
	Username      string
	CredentialRef string
	Launch        LaunchConfig
	Session       SessionState
	Status        TenantStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (t Tenant) Validate() error {
	if strings.TrimSpace(string(t.ID)) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTenant)
	}
	if strings.ContainsAny(string(t.ID), " \t\n/") {
		return fmt.Errorf("%w: id %q contains whitespace or slash", ErrInvalidTenant, t.ID)
	}
	if strings.TrimSpace(t.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidTenant)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidTenant, t.Status)
	}
	if t.Launch.Viewport.Width < 0 || t.Launch.Viewport.Height < 0 {
		return fmt.Errorf("%w: viewport must not be negative", ErrInvalidTenant)
	}

	return nil
}

// Runnable reports whether actions may be executed for the tenant.
func (t Tenant) Runnable() error {
	if t.Status == TenantStatusSuspended {
		return fmt.Errorf("tenant %q: %w", t.ID, ErrTenantSuspended)
	}
	return nil
}

func (t Tenant) Masked() Tenant {
	if t.CredentialRef != "" {
		t.CredentialRef = MaskedCredential
	}
	return t
}

func (t Tenant) EffectiveLaunch() LaunchConfig {
	launch := t.Launch
	launch.Viewport = launch.Viewport.WithDefaults()
	return launch
}
