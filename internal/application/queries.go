package application

import (
	"time"

	"github.com/bnema/tenantctl/internal/domain"
)

// TenantView is the administrative read model. The credential reference is
// always masked.
type TenantView struct {
	ID                domain.TenantID     `json:"id"`
	Username          string              `json:"username"`
	CredentialRef     string              `json:"credentialRef"`
	ProxyEndpoint     string              `json:"proxyEndpoint,omitempty"`
	UserAgent         string              `json:"userAgent,omitempty"`
	ViewportWidth     int                 `json:"viewportWidth"`
	ViewportHeight    int                 `json:"viewportHeight"`
	Status            domain.TenantStatus `json:"status"`
	SessionCookies    int                 `json:"sessionCookies"`
	SessionCapturedAt time.Time           `json:"sessionCapturedAt,omitempty"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

func (v TenantView) HasSession() bool {
	return v.SessionCookies > 0
}

func viewFromTenant(tenant domain.Tenant) TenantView {
	masked := tenant.Masked()
	viewport := masked.Launch.Viewport.WithDefaults()

	return TenantView{
		ID:                masked.ID,
		Username:          masked.Username,
		CredentialRef:     masked.CredentialRef,
		ProxyEndpoint:     masked.Launch.ProxyEndpoint,
		UserAgent:         masked.Launch.UserAgent,
		ViewportWidth:     viewport.Width,
		ViewportHeight:    viewport.Height,
		Status:            masked.Status,
		SessionCookies:    len(masked.Session.Cookies),
		SessionCapturedAt: masked.Session.CapturedAt,
		CreatedAt:         masked.CreatedAt,
		UpdatedAt:         masked.UpdatedAt,
	}
}
