package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	storePathKey      = "store.path"
	tenantsFileMode   = 0o600
	tenantsDirMode    = 0o700
	tenantsConfigDir  = ".tenantctl"
	tenantsConfigFile = "tenants.toml"
	tempFilePattern   = ".tenants-*.toml.tmp"
)

// Repository stores every tenant in a single TOML document. Writes replace
// the file atomically; readers and writers of the same path share one lock.
type Repository struct {
	tenantsPath string
	mu          *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.TenantRepository = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	cfg.SetDefault(storePathKey, filepath.Join(homeDir, tenantsConfigDir, tenantsConfigFile))

	tenantsPath := cfg.GetString(storePathKey)
	if tenantsPath == "" {
		return nil, errors.New("tenants path is empty")
	}
	tenantsPath, err = normalizeTenantsPath(tenantsPath)
	if err != nil {
		return nil, err
	}

	return &Repository{tenantsPath: tenantsPath, mu: lockForPath(tenantsPath)}, nil
}

func (r *Repository) Path() string {
	return r.tenantsPath
}

func (r *Repository) GetByID(ctx context.Context, id domain.TenantID) (domain.Tenant, error) {
	if err := ctx.Err(); err != nil {
		return domain.Tenant{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Tenant{}, err
	}

	i := file.indexOf(string(id))
	if i < 0 {
		return domain.Tenant{}, domain.ErrTenantNotFound
	}

	return fromSchema(file.Tenants[i])
}

func (r *Repository) List(ctx context.Context) ([]domain.Tenant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	tenants := make([]domain.Tenant, 0, len(file.Tenants))
	for _, entry := range file.Tenants {
		tenant, err := fromSchema(entry)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}

	return tenants, nil
}

func (r *Repository) Create(ctx context.Context, tenant domain.Tenant) error {
	encoded, err := toSchema(tenant)
	if err != nil {
		return err
	}

	return r.mutate(ctx, func(file *fileSchema) error {
		if file.indexOf(encoded.ID) >= 0 {
			return domain.ErrTenantExists
		}
		file.Tenants = append(file.Tenants, encoded)
		return nil
	})
}

func (r *Repository) Update(ctx context.Context, tenant domain.Tenant) error {
	encoded, err := toSchema(tenant)
	if err != nil {
		return err
	}

	return r.mutate(ctx, func(file *fileSchema) error {
		i := file.indexOf(encoded.ID)
		if i < 0 {
			return domain.ErrTenantNotFound
		}
		encoded.Session = file.Tenants[i].Session
		file.Tenants[i] = encoded
		return nil
	})
}

func (r *Repository) Delete(ctx context.Context, id domain.TenantID) error {
	return r.mutate(ctx, func(file *fileSchema) error {
		i := file.indexOf(string(id))
		if i < 0 {
			return domain.ErrTenantNotFound
		}
		file.Tenants = append(file.Tenants[:i], file.Tenants[i+1:]...)
		return nil
	})
}

func (r *Repository) UpsertSession(ctx context.Context, id domain.TenantID, session domain.SessionState, updatedAt time.Time) error {
	cookies, err := domain.EncodeCookies(session.Cookies)
	if err != nil {
		return err
	}

	return r.mutate(ctx, func(file *fileSchema) error {
		i := file.indexOf(string(id))
		if i < 0 {
			return domain.ErrTenantNotFound
		}
		file.Tenants[i].Session = sessionSchema{Cookies: cookies, CapturedAt: formatTime(session.CapturedAt)}
		file.Tenants[i].UpdatedAt = formatTime(updatedAt)
		return nil
	})
}

// mutate runs fn against the current document under the write lock and
// persists the result when fn succeeds.
func (r *Repository) mutate(ctx context.Context, fn func(file *fileSchema) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	if err := fn(&file); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.tenantsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read tenants file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode tenants file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeTenantsPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve tenants path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	dir := filepath.Dir(r.tenantsPath)
	if err := os.MkdirAll(dir, tenantsDirMode); err != nil {
		return fmt.Errorf("create tenants directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode tenants file: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp tenants file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp tenants file: %w", err)
	}
	if err := tempFile.Chmod(tenantsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp tenants file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("sync temp tenants file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp tenants file: %w", err)
	}

	if err := os.Rename(tempName, r.tenantsPath); err != nil {
		return fmt.Errorf("replace tenants file: %w", err)
	}
	cleanup = false

	return nil
}

func toSchema(tenant domain.Tenant) (tenantSchema, error) {
	cookies, err := domain.EncodeCookies(tenant.Session.Cookies)
	if err != nil {
		return tenantSchema{}, err
	}

	return tenantSchema{
		ID:            string(tenant.ID),
		Username:      tenant.Username,
		CredentialRef: tenant.CredentialRef,
		Status:        string(tenant.Status),
		Launch: launchSchema{
			ProxyEndpoint:  tenant.Launch.ProxyEndpoint,
			UserAgent:      tenant.Launch.UserAgent,
			ViewportWidth:  tenant.Launch.Viewport.Width,
			ViewportHeight: tenant.Launch.Viewport.Height,
		},
		Session: sessionSchema{
			Cookies:    cookies,
			CapturedAt: formatTime(tenant.Session.CapturedAt),
		},
		CreatedAt: formatTime(tenant.CreatedAt),
		UpdatedAt: formatTime(tenant.UpdatedAt),
	}, nil
}

func fromSchema(entry tenantSchema) (domain.Tenant, error) {
	cookies, err := domain.DecodeCookies(entry.Session.Cookies)
	if err != nil {
		return domain.Tenant{}, fmt.Errorf("tenant %q: %w", entry.ID, err)
	}

	status := domain.TenantStatus(entry.Status)
	if status == "" {
		status = domain.TenantStatusActive
	}

	return domain.Tenant{
		ID:            domain.TenantID(entry.ID),
		Username:      entry.Username,
		CredentialRef: entry.CredentialRef,
		Launch: domain.LaunchConfig{
			ProxyEndpoint: entry.Launch.ProxyEndpoint,
			UserAgent:     entry.Launch.UserAgent,
			Viewport: domain.Viewport{
				Width:  entry.Launch.ViewportWidth,
				Height: entry.Launch.ViewportHeight,
			},
		},
		Session: domain.SessionState{
			Cookies:    cookies,
			CapturedAt: parseTime(entry.Session.CapturedAt),
		},
		Status:    status,
		CreatedAt: parseTime(entry.CreatedAt),
		UpdatedAt: parseTime(entry.UpdatedAt),
	}, nil
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
