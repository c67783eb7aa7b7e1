package application

import (
	"fmt"

	"github.com/bnema/tenantctl/internal/domain"
)

type AddTenantCommand struct {
	ID             domain.TenantID
	Username       string
	Password       string
	CredentialRef  string
	ProxyEndpoint  string
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Suspended      bool
}

// UpdateTenantCommand changes only the fields that are set.
type UpdateTenantCommand struct {
	ID             domain.TenantID
	Username       *string
	ProxyEndpoint  *string
	UserAgent      *string
	ViewportWidth  *int
	ViewportHeight *int
	Status         *domain.TenantStatus
}

func (c UpdateTenantCommand) empty() bool {
	return c.Username == nil &&
		c.ProxyEndpoint == nil &&
		c.UserAgent == nil &&
		c.ViewportWidth == nil &&
		c.ViewportHeight == nil &&
		c.Status == nil
}

func (c UpdateTenantCommand) apply(tenant *domain.Tenant) {
	if c.Username != nil {
		tenant.Username = *c.Username
	}
	if c.ProxyEndpoint != nil {
		tenant.Launch.ProxyEndpoint = *c.ProxyEndpoint
	}
	if c.UserAgent != nil {
		tenant.Launch.UserAgent = *c.UserAgent
	}
	if c.ViewportWidth != nil {
		tenant.Launch.Viewport.Width = *c.ViewportWidth
	}
	if c.ViewportHeight != nil {
		tenant.Launch.Viewport.Height = *c.ViewportHeight
	}
	if c.Status != nil {
		tenant.Status = *c.Status
	}
}

// DefaultCredentialRef is the secret key used when a tenant is added
// without an explicit credential reference.
func DefaultCredentialRef(id domain.TenantID) string {
	return fmt.Sprintf("tenantctl/tenants/%s/password", id)
}
