package application

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tomlrepo "github.com/bnema/tenantctl/internal/adapters/repo/toml"
	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
	"github.com/bnema/tenantctl/internal/ports/mocks"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type orchestratorFixture struct {
	repo     *inMemoryTenantRepo
	secrets  *inMemorySecretStore
	launcher *fakeLauncher
	pool     *ResourcePool
	spans    *tracetest.SpanRecorder
	orch     *Orchestrator
}

func newOrchestratorFixture(t *testing.T, capacity int, opts OrchestratorOptions, newDriver func(domain.LaunchConfig) *fakeDriver, tenants ...domain.Tenant) *orchestratorFixture {
	t.Helper()

	repo := newInMemoryTenantRepo(tenants...)
	secrets := newInMemorySecretStore("tenantctl/tenants/t1/password", "hunter2")
	launcher := &fakeLauncher{newDriver: newDriver}
	pool, err := NewResourcePool(launcher, PoolOptions{Capacity: capacity}, zerolog.Nop(), nil, fixedClock{now: testNow})
	require.NoError(t, err)

	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	orch := NewOrchestrator(OrchestratorDeps{
		Tenants: repo,
		Secrets: secrets,
		Pool:    pool,
		Catalog: testCatalog(),
		Logger:  zerolog.Nop(),
		Clock:   fixedClock{now: testNow},
		Tracer:  provider.Tracer("test"),
	}, opts)

	return &orchestratorFixture{repo: repo, secrets: secrets, launcher: launcher, pool: pool, spans: spans, orch: orch}
}

func (f *orchestratorFixture) assertNoResourceUse(t *testing.T) {
	t.Helper()

	launches, _, _ := f.launcher.stats()
	assert.Zero(t, launches)
	assert.Zero(t, f.pool.Stats().Acquired)
	_, writes := f.repo.counts()
	assert.Zero(t, writes)
}

func (f *orchestratorFixture) assertReleased(t *testing.T) {
	t.Helper()

	stats := f.pool.Stats()
	assert.Equal(t, stats.Acquired, stats.Released)
	assert.Zero(t, stats.InUse)
	_, live, _ := f.launcher.stats()
	assert.Zero(t, live)
}

func activeTenant(id domain.TenantID) domain.Tenant {
	return domain.Tenant{
		ID:            id,
		Username:      "user-" + string(id),
		CredentialRef: DefaultCredentialRef(id),
		Status:        domain.TenantStatusActive,
		CreatedAt:     testNow.Add(-time.Hour),
		UpdatedAt:     testNow.Add(-time.Hour),
	}
}

func followPage(domain.LaunchConfig) *fakeDriver {
	return newFakeDriver(DefaultSurface().Markers.FollowButton)
}

func followRequest(id domain.TenantID) domain.ActionRequest {
	return domain.ActionRequest{
		TenantID: id,
		Action:   string(domain.ActionFollowTarget),
		Params:   domain.Params{domain.ParamTargetUsername: "someone"},
	}
}

func TestOrchestratorUnknownTenantFailsWithoutAcquiring(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 2, OrchestratorOptions{}, followPage)

	for _, id := range []domain.TenantID{"ghost", "", "t9"} {
		result := f.orch.Run(context.Background(), followRequest(id))

		assert.Equal(t, domain.ResultFailed, result.Status)
		assert.Equal(t, domain.FailureConfig, result.Kind)
		assert.Contains(t, result.Message, "tenant not found")
		assert.Equal(t, testNow, result.Timestamp)
	}
	f.assertNoResourceUse(t)
}

func TestOrchestratorSuspendedTenantFailsWithoutAcquiring(t *testing.T) {
	t.Parallel()

	suspended := activeTenant("t2")
	suspended.Status = domain.TenantStatusSuspended
	f := newOrchestratorFixture(t, 2, OrchestratorOptions{}, followPage, suspended)

	for _, kind := range domain.ActionKinds() {
		params := domain.Params{}
		switch kind {
		case domain.ActionFollowTarget:
			params[domain.ParamTargetUsername] = "someone"
		case domain.ActionEndorseContent:
			params[domain.ParamContentURL] = "https://example.com/v/1"
		case domain.ActionCommentContent:
			params[domain.ParamContentURL] = "https://example.com/v/1"
			params[domain.ParamText] = "hi"
		case domain.ActionPublish:
			continue
		}

		result := f.orch.Run(context.Background(), domain.ActionRequest{TenantID: "t2", Action: string(kind), Params: params})
		assert.Equal(t, domain.FailureConfig, result.Kind, "action %s", kind)
		assert.Contains(t, result.Message, "tenant suspended")
	}
	f.assertNoResourceUse(t)
}

func TestOrchestratorUnsupportedActionFailsBeforeResolution(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 2, OrchestratorOptions{}, followPage, activeTenant("t1"))

	result := f.orch.Run(context.Background(), domain.ActionRequest{TenantID: "t1", Action: "share"})

	assert.Equal(t, domain.ResultFailed, result.Status)
	assert.Equal(t, domain.FailureUnsupportedAction, result.Kind)
	reads, _ := f.repo.counts()
	assert.Zero(t, reads)
	f.assertNoResourceUse(t)
}

func TestOrchestratorInvalidParamsFailBeforeResolution(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 2, OrchestratorOptions{}, followPage, activeTenant("t1"))

	result := f.orch.Run(context.Background(), domain.ActionRequest{
		TenantID: "t1",
		Action:   string(domain.ActionCommentContent),
		Params:   domain.Params{domain.ParamContentURL: "https://example.com/v/1"},
	})

	assert.Equal(t, domain.FailureInvalidParams, result.Kind)
	assert.Contains(t, result.Message, "missing text")
	reads, _ := f.repo.counts()
	assert.Zero(t, reads)
	f.assertNoResourceUse(t)
}

func TestOrchestratorAuthenticatePersistsSession(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 1, OrchestratorOptions{DefaultUserAgent: "tenantctl-test"}, func(domain.LaunchConfig) *fakeDriver {
		return loginPage()
	}, activeTenant("t1"))

	result := f.orch.Run(context.Background(), domain.ActionRequest{TenantID: "t1", Action: string(domain.ActionAuthenticate)})

	require.Equal(t, domain.ResultSuccess, result.Status, result.Message)
	assert.Empty(t, result.Kind)
	assert.Equal(t, false, result.Payload["restored"])
	assert.NotEmpty(t, result.RunID)
	assert.Empty(t, result.Warnings)

	stored := f.repo.snapshot("t1")
	require.False(t, stored.Session.Empty())
	assert.Equal(t, "fresh", stored.Session.Cookies[0].Value)
	assert.Equal(t, testNow, stored.Session.CapturedAt)
	assert.Equal(t, testNow, stored.UpdatedAt)

	_, writes := f.repo.counts()
	assert.Equal(t, 1, writes)
	f.assertReleased(t)

	require.Len(t, f.launcher.configs, 1)
	assert.Equal(t, "tenantctl-test", f.launcher.configs[0].UserAgent)
	assert.Equal(t, domain.Viewport{Width: domain.DefaultViewportWidth, Height: domain.DefaultViewportHeight}, f.launcher.configs[0].Viewport)
	assert.Equal(t, "hunter2", f.launcher.lastDriver().typed[DefaultSurface().Markers.PasswordField])
}

func TestOrchestratorRestoresSavedCookiesAtLaunch(t *testing.T) {
	t.Parallel()

	tenant := activeTenant("t1")
	tenant.CredentialRef = ""
	tenant.Session = domain.SessionState{Cookies: []domain.Cookie{{Name: "sessionid", Value: "saved"}}}

	f := newOrchestratorFixture(t, 1, OrchestratorOptions{}, func(domain.LaunchConfig) *fakeDriver {
		return newFakeDriver(DefaultSurface().Markers.AuthenticatedMarker)
	}, tenant)

	result := f.orch.Run(context.Background(), domain.ActionRequest{TenantID: "t1", Action: string(domain.ActionAuthenticate)})

	require.Equal(t, domain.ResultSuccess, result.Status, result.Message)
	assert.Equal(t, true, result.Payload["restored"])
	assert.Equal(t, tenant.Session.Cookies, f.launcher.lastDriver().restored)
}

func TestOrchestratorMissingCredentialIsConfigError(t *testing.T) {
	t.Parallel()

	tenant := activeTenant("t3")
	f := newOrchestratorFixture(t, 1, OrchestratorOptions{}, func(domain.LaunchConfig) *fakeDriver {
		return loginPage()
	}, tenant)

	result := f.orch.Run(context.Background(), domain.ActionRequest{TenantID: "t3", Action: string(domain.ActionAuthenticate)})

	assert.Equal(t, domain.FailureConfig, result.Kind)
	assert.Contains(t, result.Message, "secret not found")
	f.assertNoResourceUse(t)
}

func TestOrchestratorPasswordParamOverridesStoredCredential(t *testing.T) {
	t.Parallel()

	tenant := activeTenant("t3")
	f := newOrchestratorFixture(t, 1, OrchestratorOptions{}, func(domain.LaunchConfig) *fakeDriver {
		return loginPage()
	}, tenant)

	result := f.orch.Run(context.Background(), domain.ActionRequest{
		TenantID: "t3",
		Action:   string(domain.ActionAuthenticate),
		Params:   domain.Params{domain.ParamUsername: "other", domain.ParamPassword: "override"},
	})

	require.Equal(t, domain.ResultSuccess, result.Status, result.Message)
	assert.Equal(t, "other", result.Payload["username"])
	assert.Equal(t, "override", f.launcher.lastDriver().typed[DefaultSurface().Markers.PasswordField])
}

func TestOrchestratorPublishWithoutConfirmationTimesOutAndReleases(t *testing.T) {
	t.Parallel()

	m := DefaultSurface().Markers
	media := t.TempDir() + "/clip.mp4"
	require.NoError(t, os.WriteFile(media, []byte("data"), 0o600))

	f := newOrchestratorFixture(t, 1, OrchestratorOptions{}, func(domain.LaunchConfig) *fakeDriver {
		return newFakeDriver(m.UploadInput, m.UploadComplete, m.PublishButton)
	}, activeTenant("t1"))

	result := f.orch.Run(context.Background(), domain.ActionRequest{
		TenantID: "t1",
		Action:   string(domain.ActionPublish),
		Params:   domain.Params{domain.ParamMediaPath: media},
	})

	assert.Equal(t, domain.ResultFailed, result.Status)
	assert.Equal(t, domain.FailureActionTimeout, result.Kind)
	assert.Nil(t, result.Payload)
	assert.Equal(t, 1, f.launcher.lastDriver().closeCount())
	f.assertReleased(t)

	_, writes := f.repo.counts()
	assert.Equal(t, 1, writes)
}

func TestOrchestratorSkipsPersistOnFailureWhenDisabled(t *testing.T) {
	t.Parallel()

	opts := DefaultOrchestratorOptions()
	opts.SkipPersistOnFailure = true
	f := newOrchestratorFixture(t, 1, opts, func(domain.LaunchConfig) *fakeDriver {
		return newFakeDriver()
	}, activeTenant("t1"))

	result := f.orch.Run(context.Background(), followRequest("t1"))

	assert.Equal(t, domain.FailureElementNotFound, result.Kind)
	_, writes := f.repo.counts()
	assert.Zero(t, writes)
	f.assertReleased(t)
}

func TestOrchestratorZeroOptionsPersistAfterFailedScript(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 1, OrchestratorOptions{}, func(domain.LaunchConfig) *fakeDriver {
		return newFakeDriver()
	}, activeTenant("t1"))

	result := f.orch.Run(context.Background(), followRequest("t1"))

	assert.Equal(t, domain.FailureElementNotFound, result.Kind)
	_, writes := f.repo.counts()
	assert.Equal(t, 1, writes)
	f.assertReleased(t)
}

func TestOrchestratorRecoversCookieCapturePanic(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 1, OrchestratorOptions{}, func(cfg domain.LaunchConfig) *fakeDriver {
		d := followPage(cfg)
		d.readPanic = "cookie jar exploded"
		return d
	}, activeTenant("t1"))

	var result domain.ActionResult
	require.NotPanics(t, func() {
		result = f.orch.Run(context.Background(), followRequest("t1"))
	})

	assert.Equal(t, domain.ResultSuccess, result.Status)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, domain.FailurePersistenceWarning, result.Warnings[0].Kind)
	assert.Contains(t, result.Warnings[0].Message, "cookie jar exploded")
	_, writes := f.repo.counts()
	assert.Zero(t, writes)
	f.assertReleased(t)
}

func TestOrchestratorRecoversDriverClosePanic(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 1, OrchestratorOptions{}, func(cfg domain.LaunchConfig) *fakeDriver {
		d := followPage(cfg)
		d.closePanic = "close exploded"
		return d
	}, activeTenant("t1"))

	var result domain.ActionResult
	require.NotPanics(t, func() {
		result = f.orch.Run(context.Background(), followRequest("t1"))
	})

	assert.Equal(t, domain.ResultSuccess, result.Status)
	assert.NotEmpty(t, result.RunID)
	f.assertReleased(t)

	// The tenant lock was returned, so the next run is not blocked.
	next := f.orch.Run(context.Background(), followRequest("t1"))
	assert.Equal(t, domain.ResultSuccess, next.Status)
}

func TestOrchestratorPersistenceFailureIsWarningOnly(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 1, OrchestratorOptions{}, followPage, activeTenant("t1"))
	f.repo.upsertErr = errors.New("disk full")

	result := f.orch.Run(context.Background(), followRequest("t1"))

	assert.Equal(t, domain.ResultSuccess, result.Status)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, domain.FailurePersistenceWarning, result.Warnings[0].Kind)
	assert.Contains(t, result.Warnings[0].Message, "disk full")
	f.assertReleased(t)
}

func TestOrchestratorCookieCaptureFailureSkipsWrite(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 1, OrchestratorOptions{}, func(cfg domain.LaunchConfig) *fakeDriver {
		d := followPage(cfg)
		d.readErr = errBoom
		return d
	}, activeTenant("t1"))

	result := f.orch.Run(context.Background(), followRequest("t1"))

	assert.Equal(t, domain.ResultSuccess, result.Status)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "capture session cookies")
	_, writes := f.repo.counts()
	assert.Zero(t, writes)
}

func TestOrchestratorAcquireTimeoutIsResourceError(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 1, OrchestratorOptions{AcquireTimeout: 20 * time.Millisecond}, followPage, activeTenant("t1"))

	held, err := f.pool.Acquire(context.Background(), "t1", LaunchSpec{})
	require.NoError(t, err)

	result := f.orch.Run(context.Background(), followRequest("t1"))
	held.Release()

	assert.Equal(t, domain.FailureResource, result.Kind)
	assert.Contains(t, result.Message, ErrAcquireTimeout.Error())
	_, writes := f.repo.counts()
	assert.Zero(t, writes)
	f.assertReleased(t)
}

func TestOrchestratorLaunchFailureIsResourceError(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 1, OrchestratorOptions{}, followPage, activeTenant("t1"))
	f.launcher.launchErr = errBoom

	result := f.orch.Run(context.Background(), followRequest("t1"))

	assert.Equal(t, domain.FailureResource, result.Kind)
	assert.Contains(t, result.Message, ErrLaunchFailed.Error())
	_, writes := f.repo.counts()
	assert.Zero(t, writes)
	f.assertReleased(t)
}

func TestOrchestratorRecoversScriptPanic(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 1, OrchestratorOptions{}, func(domain.LaunchConfig) *fakeDriver {
		d := newFakeDriver()
		d.panicOn = DefaultSurface().Markers.FollowButton
		return d
	}, activeTenant("t1"))

	result := f.orch.Run(context.Background(), followRequest("t1"))

	assert.Equal(t, domain.FailureInternal, result.Kind)
	assert.Contains(t, result.Message, "driver exploded")
	f.assertReleased(t)
}

func TestOrchestratorActionDeadlineTimesOutAndStillPersists(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 1, OrchestratorOptions{ActionTimeout: 20 * time.Millisecond}, func(domain.LaunchConfig) *fakeDriver {
		d := newFakeDriver()
		d.hang[DefaultSurface().Markers.FollowButton] = true
		return d
	}, activeTenant("t1"))

	result := f.orch.Run(context.Background(), followRequest("t1"))

	assert.Equal(t, domain.FailureActionTimeout, result.Kind)
	_, writes := f.repo.counts()
	assert.Equal(t, 1, writes)
	f.assertReleased(t)
}

func TestOrchestratorGlobalCapacityBound(t *testing.T) {
	t.Parallel()

	const capacity = 2
	var tenants []domain.Tenant
	for i := 0; i < capacity+4; i++ {
		tenants = append(tenants, activeTenant(domain.TenantID(fmt.Sprintf("t%d", i))))
	}
	f := newOrchestratorFixture(t, capacity, OrchestratorOptions{}, func(cfg domain.LaunchConfig) *fakeDriver {
		d := followPage(cfg)
		d.navDelay = 10 * time.Millisecond
		return d
	}, tenants...)

	var wg sync.WaitGroup
	results := make([]domain.ActionResult, len(tenants))
	for i, tenant := range tenants {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.orch.Run(context.Background(), followRequest(tenant.ID))
		}()
	}
	wg.Wait()

	for _, result := range results {
		assert.Equal(t, domain.ResultSuccess, result.Status, result.Message)
	}
	_, _, maxLive := f.launcher.stats()
	assert.LessOrEqual(t, maxLive, capacity)
	_, writes := f.repo.counts()
	assert.Equal(t, len(tenants), writes)
	f.assertReleased(t)
}

func TestOrchestratorSerializesSameTenant(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 4, OrchestratorOptions{}, func(cfg domain.LaunchConfig) *fakeDriver {
		d := followPage(cfg)
		d.navDelay = 10 * time.Millisecond
		return d
	}, activeTenant("t1"))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := f.orch.Run(context.Background(), followRequest("t1"))
			assert.Equal(t, domain.ResultSuccess, result.Status, result.Message)
		}()
	}
	wg.Wait()

	launches, _, maxLive := f.launcher.stats()
	assert.Equal(t, 3, launches)
	assert.Equal(t, 1, maxLive)
	f.assertReleased(t)
}

func TestOrchestratorTracesPhases(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture(t, 1, OrchestratorOptions{}, followPage, activeTenant("t1"))

	result := f.orch.Run(context.Background(), followRequest("t1"))
	require.Equal(t, domain.ResultSuccess, result.Status)

	var names []string
	for _, span := range f.spans.Ended() {
		names = append(names, span.Name())
	}
	assert.ElementsMatch(t, []string{
		"orchestrator.validating",
		"orchestrator.resolving",
		"orchestrator.acquiring",
		"orchestrator.executing",
		"orchestrator.persisting",
		"orchestrator.releasing",
		"orchestrator.run",
	}, names)
}

func newOrchestratorWithRepo(t *testing.T, repo ports.TenantRepository) (*Orchestrator, *fakeLauncher) {
	t.Helper()

	launcher := &fakeLauncher{newDriver: followPage}
	pool, err := NewResourcePool(launcher, PoolOptions{Capacity: 1}, zerolog.Nop(), nil, fixedClock{now: testNow})
	require.NoError(t, err)

	return NewOrchestrator(OrchestratorDeps{
		Tenants: repo,
		Secrets: newInMemorySecretStore(),
		Pool:    pool,
		Catalog: testCatalog(),
		Logger:  zerolog.Nop(),
		Clock:   fixedClock{now: testNow},
	}, OrchestratorOptions{}), launcher
}

func TestOrchestratorExpiredCallerIsTimeoutNotConfigError(t *testing.T) {
	t.Parallel()

	config := viper.New()
	config.Set("store.path", filepath.Join(t.TempDir(), "tenants.toml"))
	repo, err := tomlrepo.NewRepository(config)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), activeTenant("t1")))

	orch, launcher := newOrchestratorWithRepo(t, repo)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	result := orch.Run(ctx, followRequest("t1"))

	assert.Equal(t, domain.ResultFailed, result.Status)
	assert.Equal(t, domain.FailureActionTimeout, result.Kind)
	assert.Contains(t, result.Message, context.DeadlineExceeded.Error())
	launches, _, _ := launcher.stats()
	assert.Zero(t, launches)
}

func TestOrchestratorTenantLookupFailureKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantKind domain.FailureKind
	}{
		{name: "missing tenant", err: domain.ErrTenantNotFound, wantKind: domain.FailureConfig},
		{name: "store unreadable", err: errors.New("decode tenants file: unexpected EOF"), wantKind: domain.FailureResource},
		{name: "store deadline", err: fmt.Errorf("query tenant: %w", context.DeadlineExceeded), wantKind: domain.FailureActionTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := mocks.NewMockTenantRepository(t)
			repo.EXPECT().GetByID(mock.Anything, domain.TenantID("t1")).Return(domain.Tenant{}, tt.err).Once()

			orch, launcher := newOrchestratorWithRepo(t, repo)
			result := orch.Run(context.Background(), followRequest("t1"))

			assert.Equal(t, domain.ResultFailed, result.Status)
			assert.Equal(t, tt.wantKind, result.Kind)
			launches, _, _ := launcher.stats()
			assert.Zero(t, launches)
		})
	}
}
