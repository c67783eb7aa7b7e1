package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tenantColumns = `id, username, credential_ref, status, proxy_endpoint, user_agent,
	viewport_width, viewport_height, session_cookies, session_captured_at, created_at, updated_at`

// Repository is a PostgreSQL-backed tenant store for deployments where
// several orchestrator processes share one registry.
type Repository struct {
	pool *pgxpool.Pool
}

var _ ports.TenantRepository = (*Repository)(nil)

// Open connects to dsn and makes sure the tenants table exists.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	repo := NewRepository(pool)
	if err := repo.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return repo, nil
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Close() {
	r.pool.Close()
}

// EnsureTable creates the tenants table if it doesn't exist.
func (r *Repository) EnsureTable(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tenants (
			id                  TEXT PRIMARY KEY,
			username            TEXT NOT NULL,
			credential_ref      TEXT NOT NULL DEFAULT '',
			status              TEXT NOT NULL DEFAULT 'active',
			proxy_endpoint      TEXT NOT NULL DEFAULT '',
			user_agent          TEXT NOT NULL DEFAULT '',
			viewport_width      INTEGER NOT NULL DEFAULT 0,
			viewport_height     INTEGER NOT NULL DEFAULT 0,
			session_cookies     JSONB,
			session_captured_at TIMESTAMPTZ,
			created_at          TIMESTAMPTZ,
			updated_at          TIMESTAMPTZ
		)`)
	if err != nil {
		return fmt.Errorf("create tenants table: %w", err)
	}
	_, err = r.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tenants_status ON tenants(status)`)
	if err != nil {
		return fmt.Errorf("create tenants status index: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id domain.TenantID) (domain.Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, string(id))

	tenant, err := scanTenant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("get tenant %s: %w", id, err)
	}
	return tenant, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []domain.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

func (r *Repository) Create(ctx context.Context, tenant domain.Tenant) error {
	cookies, err := cookiesParam(tenant.Session.Cookies)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING`,
		string(tenant.ID), tenant.Username, tenant.CredentialRef, string(tenant.Status),
		tenant.Launch.ProxyEndpoint, tenant.Launch.UserAgent,
		tenant.Launch.Viewport.Width, tenant.Launch.Viewport.Height,
		cookies, nullTime(tenant.Session.CapturedAt),
		nullTime(tenant.CreatedAt), nullTime(tenant.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	return expectAffected(tag, domain.ErrTenantExists)
}

func (r *Repository) Update(ctx context.Context, tenant domain.Tenant) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tenants SET
			username = $2, credential_ref = $3, status = $4, proxy_endpoint = $5, user_agent = $6,
			viewport_width = $7, viewport_height = $8, updated_at = $9
		WHERE id = $1`,
		string(tenant.ID), tenant.Username, tenant.CredentialRef, string(tenant.Status),
		tenant.Launch.ProxyEndpoint, tenant.Launch.UserAgent,
		tenant.Launch.Viewport.Width, tenant.Launch.Viewport.Height,
		nullTime(tenant.UpdatedAt))
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	return expectAffected(tag, domain.ErrTenantNotFound)
}

func (r *Repository) Delete(ctx context.Context, id domain.TenantID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	return expectAffected(tag, domain.ErrTenantNotFound)
}

func (r *Repository) UpsertSession(ctx context.Context, id domain.TenantID, session domain.SessionState, updatedAt time.Time) error {
	cookies, err := cookiesParam(session.Cookies)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE tenants SET session_cookies = $2::jsonb, session_captured_at = $3, updated_at = $4
		WHERE id = $1`,
		string(id), cookies, nullTime(session.CapturedAt), nullTime(updatedAt))
	if err != nil {
		return fmt.Errorf("upsert tenant session: %w", err)
	}
	return expectAffected(tag, domain.ErrTenantNotFound)
}

func scanTenant(row pgx.Row) (domain.Tenant, error) {
	var (
		t                                domain.Tenant
		id, status                       string
		cookiesRaw                       []byte
		capturedAt, createdAt, updatedAt *time.Time
	)
	err := row.Scan(&id, &t.Username, &t.CredentialRef, &status,
		&t.Launch.ProxyEndpoint, &t.Launch.UserAgent,
		&t.Launch.Viewport.Width, &t.Launch.Viewport.Height,
		&cookiesRaw, &capturedAt, &createdAt, &updatedAt)
	if err != nil {
		return domain.Tenant{}, err
	}

	cookies, err := domain.DecodeCookies(string(cookiesRaw))
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("tenant %s: %w", id, err)
	}

	t.ID = domain.TenantID(id)
	t.Status = domain.TenantStatus(status)
	t.Session = domain.SessionState{Cookies: cookies, CapturedAt: fromNullTime(capturedAt)}
	t.CreatedAt = fromNullTime(createdAt)
	t.UpdatedAt = fromNullTime(updatedAt)
	return t, nil
}

func cookiesParam(cookies []domain.Cookie) (*string, error) {
	encoded, err := domain.EncodeCookies(cookies)
	if err != nil || encoded == "" {
		return nil, err
	}
	return &encoded, nil
}

func expectAffected(tag pgconn.CommandTag, none error) error {
	if tag.RowsAffected() == 0 {
		return none
	}
	return nil
}

func nullTime(value time.Time) *time.Time {
	if value.IsZero() {
		return nil
	}
	value = value.UTC()
	return &value
}

func fromNullTime(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return value.UTC()
}
