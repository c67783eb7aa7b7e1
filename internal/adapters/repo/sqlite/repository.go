package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const tenantColumns = `id, username, credential_ref, status, proxy_endpoint, user_agent,
	viewport_width, viewport_height, session_cookies, session_captured_at, created_at, updated_at`

// Repository keeps tenants in a SQLite database. Config and session columns
// are written by separate statements so neither path can clobber the other.
type Repository struct {
	db *sql.DB
}

var _ ports.TenantRepository = (*Repository)(nil)

func NewRepository(path string) (*Repository, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		if err := ensurePrivateFile(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply tenants schema: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) GetByID(ctx context.Context, id domain.TenantID) (domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, string(id))

	tenant, err := scanTenant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("get tenant %q: %w", id, err)
	}

	return tenant, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY id`)
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
	cookies, err := domain.EncodeCookies(tenant.Session.Cookies)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tenants (`+tenantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		string(tenant.ID), tenant.Username, tenant.CredentialRef, string(tenant.Status),
		tenant.Launch.ProxyEndpoint, tenant.Launch.UserAgent,
		tenant.Launch.Viewport.Width, tenant.Launch.Viewport.Height,
		cookies, formatTime(tenant.Session.CapturedAt),
		formatTime(tenant.CreatedAt), formatTime(tenant.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}

	return expectAffected(res, domain.ErrTenantExists)
}

func (r *Repository) Update(ctx context.Context, tenant domain.Tenant) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tenants SET
			username = ?, credential_ref = ?, status = ?, proxy_endpoint = ?, user_agent = ?,
			viewport_width = ?, viewport_height = ?, updated_at = ?
		WHERE id = ?`,
		tenant.Username, tenant.CredentialRef, string(tenant.Status),
		tenant.Launch.ProxyEndpoint, tenant.Launch.UserAgent,
		tenant.Launch.Viewport.Width, tenant.Launch.Viewport.Height,
		formatTime(tenant.UpdatedAt), string(tenant.ID))
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}

	return expectAffected(res, domain.ErrTenantNotFound)
}

func (r *Repository) Delete(ctx context.Context, id domain.TenantID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}

	return expectAffected(res, domain.ErrTenantNotFound)
}

func (r *Repository) UpsertSession(ctx context.Context, id domain.TenantID, session domain.SessionState, updatedAt time.Time) error {
	cookies, err := domain.EncodeCookies(session.Cookies)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE tenants SET session_cookies = ?, session_captured_at = ?, updated_at = ?
		WHERE id = ?`,
		cookies, formatTime(session.CapturedAt), formatTime(updatedAt), string(id))
	if err != nil {
		return fmt.Errorf("upsert tenant session: %w", err)
	}

	return expectAffected(res, domain.ErrTenantNotFound)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(row scanner) (domain.Tenant, error) {
	var (
		id, username, credentialRef, status string
		proxy, userAgent                    string
		width, height                       int
		cookiesRaw, capturedAt              string
		createdAt, updatedAt                string
	)
	if err := row.Scan(&id, &username, &credentialRef, &status, &proxy, &userAgent,
		&width, &height, &cookiesRaw, &capturedAt, &createdAt, &updatedAt); err != nil {
		return domain.Tenant{}, err
	}

	cookies, err := domain.DecodeCookies(cookiesRaw)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("tenant %q: %w", id, err)
	}

	return domain.Tenant{
		ID:            domain.TenantID(id),
		Username:      username,
		CredentialRef: credentialRef,
		Launch: domain.LaunchConfig{
			ProxyEndpoint: proxy,
			UserAgent:     userAgent,
			Viewport:      domain.Viewport{Width: width, Height: height},
		},
		Session:   domain.SessionState{Cookies: cookies, CapturedAt: parseTime(capturedAt)},
		Status:    domain.TenantStatus(status),
		CreatedAt: parseTime(createdAt),
		UpdatedAt: parseTime(updatedAt),
	}, nil
}

func expectAffected(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return none
	}
	return nil
}

func ensurePrivateFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("create db file: %w", err)
	}
	return f.Close()
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339Nano)
}
