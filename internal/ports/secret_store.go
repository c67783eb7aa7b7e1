package ports

import "context"

// SecretStore resolves credential references such as
// "pass://tenantctl/tenants/t1/password".
type SecretStore interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
