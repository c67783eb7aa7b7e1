package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
)

var ErrNothingToUpdate = errors.New("no tenant fields to update")

type Service struct {
	repo  ports.TenantRepository
	store ports.SecretStore
	clock ports.Clock
}

func NewService(repo ports.TenantRepository, store ports.SecretStore, clock ports.Clock) *Service {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &Service{
		repo:  repo,
		store: store,
		clock: clock,
	}
}

func (s *Service) AddTenant(ctx context.Context, cmd AddTenantCommand) (TenantView, error) {
	status := domain.TenantStatusActive
	if cmd.Suspended {
		status = domain.TenantStatusSuspended
	}

	credentialRef := strings.TrimSpace(cmd.CredentialRef)
	if credentialRef == "" && cmd.Password != "" {
		credentialRef = DefaultCredentialRef(cmd.ID)
	}

	now := s.clock.Now()
	tenant := domain.Tenant{
		ID:            domain.TenantID(strings.TrimSpace(string(cmd.ID))),
		Username:      strings.TrimSpace(cmd.Username),
		CredentialRef: credentialRef,
		Launch: domain.LaunchConfig{
			ProxyEndpoint: strings.TrimSpace(cmd.ProxyEndpoint),
			UserAgent:     strings.TrimSpace(cmd.UserAgent),
			Viewport:      domain.Viewport{Width: cmd.ViewportWidth, Height: cmd.ViewportHeight},
		},
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tenant.Validate(); err != nil {
		return TenantView{}, err
	}

	if _, err := s.repo.GetByID(ctx, tenant.ID); err == nil {
		return TenantView{}, fmt.Errorf("add tenant %q: %w", tenant.ID, domain.ErrTenantExists)
	} else if !errors.Is(err, domain.ErrTenantNotFound) {
		return TenantView{}, fmt.Errorf("get tenant by id: %w", err)
	}

	storedSecret := false
	if cmd.Password != "" {
		if err := s.store.Put(ctx, credentialRef, cmd.Password); err != nil {
			return TenantView{}, fmt.Errorf("store tenant credential: %w", err)
		}
		storedSecret = true
	}

	if err := s.repo.Create(ctx, tenant); err != nil {
		if storedSecret {
			if rollbackErr := s.store.Delete(ctx, credentialRef); rollbackErr != nil {
				return TenantView{}, fmt.Errorf("create tenant and rollback stored credential: %w", errors.Join(err, rollbackErr))
			}
		}
		return TenantView{}, fmt.Errorf("create tenant: %w", err)
	}

	return viewFromTenant(tenant), nil
}

func (s *Service) UpdateTenant(ctx context.Context, cmd UpdateTenantCommand) (TenantView, error) {
	if cmd.empty() {
		return TenantView{}, ErrNothingToUpdate
	}

	tenant, err := s.repo.GetByID(ctx, cmd.ID)
	if err != nil {
		return TenantView{}, fmt.Errorf("get tenant by id: %w", err)
	}

	cmd.apply(&tenant)
	if err := tenant.Validate(); err != nil {
		return TenantView{}, err
	}
	tenant.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, tenant); err != nil {
		return TenantView{}, fmt.Errorf("update tenant: %w", err)
	}

	return viewFromTenant(tenant), nil
}

func (s *Service) SetStatus(ctx context.Context, id domain.TenantID, status domain.TenantStatus) (TenantView, error) {
	return s.UpdateTenant(ctx, UpdateTenantCommand{ID: id, Status: &status})
}

func (s *Service) DeleteTenant(ctx context.Context, id domain.TenantID) error {
	tenant, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get tenant by id: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}

	if tenant.CredentialRef == "" {
		return nil
	}
	if err := s.store.Delete(ctx, tenant.CredentialRef); err != nil {
		return fmt.Errorf("delete tenant credential: %w", err)
	}

	return nil
}

// SetPassword stores a new credential under secretKey and points the tenant
// at it. A previous secret under a different key is removed afterwards; any
// failure restores the previous reference.
func (s *Service) SetPassword(ctx context.Context, id domain.TenantID, secretKey, password string) error {
	tenant, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get tenant by id: %w", err)
	}
	original := tenant

	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		secretKey = DefaultCredentialRef(id)
	}

	if err := s.store.Put(ctx, secretKey, password); err != nil {
		return fmt.Errorf("store tenant credential: %w", err)
	}

	tenant.CredentialRef = secretKey
	tenant.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, tenant); err != nil {
		if rollbackErr := s.store.Delete(ctx, secretKey); rollbackErr != nil {
			return fmt.Errorf("save tenant credential and rollback stored secret: %w", errors.Join(err, rollbackErr))
		}

		return fmt.Errorf("save tenant credential: %w", err)
	}

	previous := original.CredentialRef
	if previous == "" || previous == secretKey {
		return nil
	}

	if err := s.store.Delete(ctx, previous); err != nil {
		var rollbackErr error
		if restoreErr := s.repo.Update(ctx, original); restoreErr != nil {
			rollbackErr = errors.Join(rollbackErr, restoreErr)
		}
		if newSecretDeleteErr := s.store.Delete(ctx, secretKey); newSecretDeleteErr != nil {
			rollbackErr = errors.Join(rollbackErr, newSecretDeleteErr)
		}
		if rollbackErr != nil {
			return fmt.Errorf("delete previous tenant credential and rollback update: %w", errors.Join(err, rollbackErr))
		}
		return fmt.Errorf("delete previous tenant credential: %w", err)
	}

	return nil
}

// ClearSession is the only administrative path that writes session state.
func (s *Service) ClearSession(ctx context.Context, id domain.TenantID) error {
	if err := s.repo.UpsertSession(ctx, id, domain.SessionState{}, s.clock.Now()); err != nil {
		return fmt.Errorf("clear tenant session: %w", err)
	}

	return nil
}

func (s *Service) GetTenant(ctx context.Context, id domain.TenantID) (TenantView, error) {
	tenant, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return TenantView{}, fmt.Errorf("get tenant by id: %w", err)
	}

	return viewFromTenant(tenant), nil
}

func (s *Service) ListTenants(ctx context.Context) ([]TenantView, error) {
	tenants, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	sort.Slice(tenants, func(i, j int) bool {
		return tenants[i].ID < tenants[j].ID
	})

	views := make([]TenantView, 0, len(tenants))
	for _, tenant := range tenants {
		views = append(views, viewFromTenant(tenant))
	}

	return views, nil
}
