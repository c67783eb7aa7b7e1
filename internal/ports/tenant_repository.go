package ports

import (
	"context"
	"time"

	"github.com/bnema/tenantctl/internal/domain"
)

type TenantRepository interface {
	GetByID(ctx context.Context, id domain.TenantID) (domain.Tenant, error)
	List(ctx context.Context) ([]domain.Tenant, error)
	Create(ctx context.Context, tenant domain.Tenant) error
	// Update writes configuration fields only; stored session state is kept.
	Update(ctx context.Context, tenant domain.Tenant) error
	Delete(ctx context.Context, id domain.TenantID) error
	// UpsertSession replaces the session fields of an existing tenant and
	// leaves every other field untouched.
	UpsertSession(ctx context.Context, id domain.TenantID, session domain.SessionState, updatedAt time.Time) error
}
