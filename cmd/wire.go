package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bnema/tenantctl/internal/adapters/browser"
	"github.com/bnema/tenantctl/internal/adapters/logging"
	"github.com/bnema/tenantctl/internal/adapters/metrics"
	tenantsrender "github.com/bnema/tenantctl/internal/adapters/render/tenants"
	pgrepo "github.com/bnema/tenantctl/internal/adapters/repo/postgres"
	sqliterepo "github.com/bnema/tenantctl/internal/adapters/repo/sqlite"
	tomlrepo "github.com/bnema/tenantctl/internal/adapters/repo/toml"
	chainstore "github.com/bnema/tenantctl/internal/adapters/secrets/chain"
	filestore "github.com/bnema/tenantctl/internal/adapters/secrets/file"
	passstore "github.com/bnema/tenantctl/internal/adapters/secrets/pass"
	"github.com/bnema/tenantctl/internal/adapters/tracing"
	"github.com/bnema/tenantctl/internal/application"
	"github.com/bnema/tenantctl/internal/config"
	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
	"github.com/bnema/tenantctl/internal/version"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const shutdownTimeout = 30 * time.Second

type app struct {
	settings     config.Settings
	logger       zerolog.Logger
	service      *application.Service
	orchestrator *application.Orchestrator
	catalog      *application.Catalog
	pool         *application.ResourcePool
	render       renderers
	now          func() time.Time

	closers  []namedCloser
	closeLog func() error
}

type renderers struct {
	tenants func([]application.TenantView, tenantsrender.RenderOptions) (string, error)
	results func([]domain.ActionResult) (string, error)
	catalog func([]application.Script) (string, error)
}

type namedCloser struct {
	name string
	fn   func(context.Context) error
}

type wireOptions struct {
	configFile string
	logLevel   string
	stderr     io.Writer
}

func wireApp(ctx context.Context, opts wireOptions) (_ *app, err error) {
	v, err := config.NewViper(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		v.Set("log.level", opts.logLevel)
	}

	settings, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	logger, closeLog := logging.New(logging.Options{
		Level:  settings.Log.Level,
		Format: settings.Log.Format,
		File:   settings.LogFile(),
		Stderr: opts.stderr,
	})

	a := &app{
		settings: settings,
		logger:   logger,
		render: renderers{
			tenants: tenantsrender.RenderTenants,
			results: tenantsrender.RenderResults,
			catalog: tenantsrender.RenderCatalog,
		},
		now:      time.Now,
		closeLog: closeLog,
	}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	repo, err := wireTenantRepository(ctx, a, settings.Store)
	if err != nil {
		return nil, fmt.Errorf("wire tenant repository: %w", err)
	}

	secrets, err := wireSecretStore(settings.Secrets)
	if err != nil {
		return nil, fmt.Errorf("wire secret store: %w", err)
	}

	recorder := metrics.NewRecorder()
	if settings.MetricsFile != "" {
		path := settings.MetricsFile
		a.onClose("metrics textfile", func(context.Context) error { return recorder.WriteTextfile(path) })
	}

	tracer, err := tracing.NewProvider(tracing.Options{
		Stdout:  settings.TracingStdout,
		Writer:  opts.stderr,
		Version: version.Version,
	})
	if err != nil {
		return nil, err
	}
	a.onClose("tracer", tracer.Shutdown)

	launcher := browser.NewLauncher(browser.Options{
		Headless:    settings.Driver.Headless,
		Install:     settings.Driver.Install,
		TypingDelay: settings.Driver.TypingDelay,
	}, logger)
	a.onClose("browser runtime", func(context.Context) error { return launcher.Shutdown() })

	clock := ports.SystemClock{}
	pool, err := application.NewResourcePool(launcher, application.PoolOptions{
		Capacity:    settings.Pool.Capacity,
		LaunchRate:  settings.Pool.LaunchRate,
		LaunchBurst: settings.Pool.LaunchBurst,
	}, logger, recorder, clock)
	if err != nil {
		return nil, fmt.Errorf("wire resource pool: %w", err)
	}
	a.onClose("resource pool", pool.Drain)

	surface := application.DefaultSurface()
	if settings.SurfaceBaseURL != "" {
		surface.BaseURL = settings.SurfaceBaseURL
	}
	catalog := application.DefaultCatalog(surface, application.DefaultScriptTimeouts())

	a.service = application.NewService(repo, secrets, clock)
	a.catalog = catalog
	a.pool = pool
	a.orchestrator = application.NewOrchestrator(application.OrchestratorDeps{
		Tenants: repo,
		Secrets: secrets,
		Pool:    pool,
		Catalog: catalog,
		Logger:  logger,
		Metrics: recorder,
		Clock:   clock,
		Tracer:  tracer.Tracer("tenantctl"),
	}, application.OrchestratorOptions{
		AcquireTimeout:       settings.Pool.AcquireTimeout,
		ActionTimeout:        settings.Orchestrator.ActionTimeout,
		PersistTimeout:       settings.Orchestrator.PersistTimeout,
		SkipPersistOnFailure: !settings.Orchestrator.PersistOnFailure,
		DefaultUserAgent:     settings.Driver.UserAgent,
	})

	return a, nil
}

func wireTenantRepository(ctx context.Context, a *app, store config.Store) (ports.TenantRepository, error) {
	switch store.Backend {
	case config.StoreSQLite:
		repo, err := sqliterepo.NewRepository(store.Path)
		if err != nil {
			return nil, err
		}
		a.onClose("sqlite store", func(context.Context) error { return repo.Close() })
		return repo, nil
	case config.StorePostgres:
		repo, err := pgrepo.Open(ctx, store.DSN)
		if err != nil {
			return nil, err
		}
		a.onClose("postgres store", func(context.Context) error {
			repo.Close()
			return nil
		})
		return repo, nil
	default:
		cfg := viper.New()
		cfg.Set("store.path", store.Path)
		return tomlrepo.NewRepository(cfg)
	}
}

func wireSecretStore(secrets config.Secrets) (ports.SecretStore, error) {
	switch secrets.Backend {
	case config.SecretsFile:
		return filestore.NewStore(secrets.Root), nil
	case config.SecretsPass:
		return passstore.NewStore(), nil
	default:
		return chainstore.NewPassFirstWithFileFallback(secrets.Root)
	}
}

func (a *app) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, namedCloser{name: name, fn: fn})
}

// close runs closers in reverse registration order so the pool drains
// before the browser runtime stops and metrics are written after both.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		closer := a.closers[i]
		if err := closer.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", closer.name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn().Err(err).Msg("shutdown incomplete")
	}
	_ = a.closeLog()
}
