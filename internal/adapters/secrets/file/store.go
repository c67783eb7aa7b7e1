package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
)

// Scheme marks credential references that live only in the file store.
const Scheme = "file://"

const (
	storeDirMode      = 0o700
	secretFileMod     = 0o600
	tenantsSegment    = "tenants"
	secretTempPattern = ".secret-*.tmp"
)

// Store keeps one secret per file under root. Tenant passwords live at
// <root>/tenantctl/tenants/<id>/password.
type Store struct {
	root string
	mu   sync.RWMutex
}

var _ ports.SecretStore = (*Store)(nil)

func NewStore(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

func (s *Store) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), storeDirMode); err != nil {
		return fmt.Errorf("create file secret directory: %w", err)
	}

	if err := writeFileAtomically(path, []byte(value)); err != nil {
		return fmt.Errorf("write file secret %q: %w", key, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := s.pathForKey(key)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file secret %q: %w", key, domain.ErrSecretNotFound)
		}
		return "", fmt.Errorf("read file secret %q: %w", key, err)
	}

	return string(data), nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.pathForKey(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file secret %q: %w", key, err)
	}
	s.pruneEmptyDirs(filepath.Dir(path))

	return nil
}

func (s *Store) pathForKey(key string) (string, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(key), Scheme)
	if trimmed == "" {
		return "", errors.New("secret key is empty")
	}

	cleaned := filepath.Clean(trimmed)
	if filepath.IsAbs(cleaned) || strings.HasPrefix(cleaned, "..") || cleaned == "." {
		return "", fmt.Errorf("invalid secret key %q", key)
	}
	if err := validateTenantSegment(cleaned); err != nil {
		return "", fmt.Errorf("invalid secret key %q: %w", key, err)
	}

	return filepath.Join(s.root, cleaned), nil
}

// validateTenantSegment checks the id in keys shaped like tenants/<id>/...
func validateTenantSegment(key string) error {
	parts := strings.Split(filepath.ToSlash(key), "/")
	for i := 0; i < len(parts)-2; i++ {
		if parts[i] != tenantsSegment {
			continue
		}
		id := parts[i+1]
		if strings.ContainsAny(id, " \t\n") {
			return fmt.Errorf("%w: id %q contains whitespace", domain.ErrInvalidTenant, id)
		}
	}
	return nil
}

// pruneEmptyDirs removes directories left empty by a delete, stopping at root.
func (s *Store) pruneEmptyDirs(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root+string(filepath.Separator)) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func writeFileAtomically(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), secretTempPattern)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(secretFileMod); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}
