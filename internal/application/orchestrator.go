package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/bnema/tenantctl/internal/application"

type Phase string

const (
	PhaseValidating Phase = "validating"
	PhaseResolving  Phase = "resolving"
	PhaseAcquiring  Phase = "acquiring"
	PhaseExecuting  Phase = "executing"
	PhasePersisting Phase = "persisting"
	PhaseReleasing  Phase = "releasing"
)

const (
	persistOutcomeSaved         = "saved"
	persistOutcomeCaptureFailed = "capture_failed"
	persistOutcomeWriteFailed   = "write_failed"
	persistOutcomeSkipped       = "skipped"
)

// Acquirer hands out exclusive driver leases.
type Acquirer interface {
	Acquire(ctx context.Context, tenantID domain.TenantID, spec LaunchSpec) (*Lease, error)
}

type OrchestratorOptions struct {
	AcquireTimeout time.Duration
	ActionTimeout  time.Duration
	PersistTimeout time.Duration
	// SkipPersistOnFailure keeps the stored session untouched when the
	// script fails.
	SkipPersistOnFailure bool
	DefaultUserAgent     string
}

func DefaultOrchestratorOptions() OrchestratorOptions {
	return OrchestratorOptions{
		AcquireTimeout: 2 * time.Minute,
		ActionTimeout:  5 * time.Minute,
		PersistTimeout: 15 * time.Second,
	}
}

type OrchestratorDeps struct {
	Tenants ports.TenantRepository
	Secrets ports.SecretStore
	Pool    Acquirer
	Catalog *Catalog
	Logger  zerolog.Logger
	Metrics ports.Metrics
	Clock   ports.Clock
	Tracer  trace.Tracer
}

// Orchestrator runs one action for one tenant: resolve the tenant, acquire
// a driver, execute the script, persist the session and release the driver.
type Orchestrator struct {
	tenants ports.TenantRepository
	secrets ports.SecretStore
	pool    Acquirer
	catalog *Catalog
	logger  zerolog.Logger
	metrics ports.Metrics
	clock   ports.Clock
	tracer  trace.Tracer
	opts    OrchestratorOptions
}

func NewOrchestrator(deps OrchestratorDeps, opts OrchestratorOptions) *Orchestrator {
	if deps.Metrics == nil {
		deps.Metrics = ports.NopMetrics{}
	}
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}

	defaults := DefaultOrchestratorOptions()
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = defaults.AcquireTimeout
	}
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = defaults.ActionTimeout
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaults.PersistTimeout
	}

	return &Orchestrator{
		tenants: deps.Tenants,
		secrets: deps.Secrets,
		pool:    deps.Pool,
		catalog: deps.Catalog,
		logger:  deps.Logger.With().Str("component", "orchestrator").Logger(),
		metrics: deps.Metrics,
		clock:   deps.Clock,
		tracer:  deps.Tracer,
		opts:    opts,
	}
}

// Run never returns an error: every failure is reported in the result, and
// an acquired driver is always released before Run returns.
func (o *Orchestrator) Run(ctx context.Context, req domain.ActionRequest) (result domain.ActionResult) {
	started := o.clock.Now()
	result = domain.ActionResult{
		RunID:    uuid.NewString(),
		TenantID: req.TenantID,
		Action:   req.Action,
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.run", trace.WithAttributes(
		attribute.String("run.id", result.RunID),
		attribute.String("tenant.id", string(req.TenantID)),
		attribute.String("action", req.Action),
	))
	defer span.End()

	logger := o.logger.With().
		Str("run_id", result.RunID).
		Str("tenant_id", string(req.TenantID)).
		Str("action", req.Action).
		Logger()

	defer func() {
		result.Timestamp = o.clock.Now()
		elapsed := result.Timestamp.Sub(started)
		result.DurationMS = elapsed.Milliseconds()
		o.metrics.ObserveAction(req.Action, result.Status, result.Kind, elapsed)

		span.SetAttributes(attribute.String("result.status", string(result.Status)))
		if result.Status == domain.ResultFailed {
			span.SetAttributes(attribute.String("result.kind", string(result.Kind)))
			span.SetStatus(codes.Error, result.Message)
			logger.Warn().Str("kind", string(result.Kind)).Dur("elapsed", elapsed).Msg(result.Message)
			return
		}
		logger.Info().Dur("elapsed", elapsed).Int("warnings", len(result.Warnings)).Msg(result.Message)
	}()

	script, err := o.validate(ctx, logger, req)
	if err != nil {
		return failed(result, err)
	}

	tenant, creds, err := o.resolve(ctx, logger, req, script)
	if err != nil {
		return failed(result, err)
	}

	lease, err := o.acquire(ctx, logger, tenant)
	if err != nil {
		return failed(result, err)
	}
	defer o.release(ctx, logger, lease)

	payload, runErr := o.execute(ctx, logger, script, lease.Driver, ScriptInput{
		Tenant:          tenant,
		Params:          req.Params,
		Credentials:     creds,
		RestoredSession: !tenant.Session.Empty(),
	})
	if runErr != nil {
		result = failed(result, runErr)
	} else {
		result.Status = domain.ResultSuccess
		result.Message = fmt.Sprintf("%s completed for tenant %s", script.Kind(), tenant.ID)
		result.Payload = payload
	}

	if runErr != nil && o.opts.SkipPersistOnFailure {
		o.metrics.ObservePersist(persistOutcomeSkipped)
		return result
	}
	if warning := o.persist(ctx, logger, tenant.ID, lease.Driver); warning != nil {
		result.Warnings = append(result.Warnings, *warning)
	}

	return result
}

func (o *Orchestrator) validate(ctx context.Context, logger zerolog.Logger, req domain.ActionRequest) (Script, error) {
	_, end := o.phase(ctx, logger, PhaseValidating)

	script, err := o.catalog.Lookup(req.Action)
	if err != nil {
		err = domain.NewActionError(domain.FailureUnsupportedAction, "", err)
		end(err)
		return nil, err
	}
	if err := script.Validate(req.Params); err != nil {
		err = domain.NewActionError(domain.FailureInvalidParams, "", err)
		end(err)
		return nil, err
	}

	end(nil)
	return script, nil
}

func (o *Orchestrator) resolve(ctx context.Context, logger zerolog.Logger, req domain.ActionRequest, script Script) (domain.Tenant, Credentials, error) {
	ctx, end := o.phase(ctx, logger, PhaseResolving)

	tenant, err := o.tenants.GetByID(ctx, req.TenantID)
	if err != nil {
		err = domain.NewActionError(lookupFailureKind(ctx, err), "", fmt.Errorf("get tenant by id: %w", err))
		end(err)
		return domain.Tenant{}, Credentials{}, err
	}
	if err := tenant.Runnable(); err != nil {
		err = domain.NewActionError(domain.FailureConfig, "", err)
		end(err)
		return domain.Tenant{}, Credentials{}, err
	}

	var creds Credentials
	if script.Requirements().Credentials {
		creds, err = o.credentials(ctx, tenant, req.Params)
		if err != nil {
			if tenant.Session.Empty() || ctx.Err() != nil {
				err = domain.NewActionError(credentialFailureKind(ctx), "", err)
				end(err)
				return domain.Tenant{}, Credentials{}, err
			}
			logger.Warn().Err(err).Msg("credentials unavailable, relying on saved session")
		}
	}

	end(nil)
	return tenant, creds, nil
}

func (o *Orchestrator) credentials(ctx context.Context, tenant domain.Tenant, params domain.Params) (Credentials, error) {
	creds := Credentials{
		Username: params.Get(domain.ParamUsername),
		Password: params[domain.ParamPassword],
	}
	if creds.Username == "" {
		creds.Username = tenant.Username
	}
	if creds.Password != "" {
		return creds, nil
	}

	if tenant.CredentialRef == "" {
		return creds, fmt.Errorf("tenant %q has no credential reference: %w", tenant.ID, domain.ErrSecretNotFound)
	}
	if o.secrets == nil {
		return creds, errors.New("secret store is not configured")
	}

	password, err := o.secrets.Get(ctx, tenant.CredentialRef)
	if err != nil {
		return creds, fmt.Errorf("resolve tenant credential: %w", err)
	}
	creds.Password = password

	return creds, nil
}

func (o *Orchestrator) acquire(ctx context.Context, logger zerolog.Logger, tenant domain.Tenant) (*Lease, error) {
	ctx, end := o.phase(ctx, logger, PhaseAcquiring)

	acquireCtx, cancel := context.WithTimeout(ctx, o.opts.AcquireTimeout)
	defer cancel()

	launch := tenant.EffectiveLaunch()
	if launch.UserAgent == "" {
		launch.UserAgent = o.opts.DefaultUserAgent
	}

	lease, err := o.pool.Acquire(acquireCtx, tenant.ID, LaunchSpec{Config: launch, Cookies: tenant.Session.Cookies})
	if err != nil {
		err = domain.NewActionError(domain.FailureResource, "acquire driver", err)
		end(err)
		return nil, err
	}

	end(nil)
	return lease, nil
}

func (o *Orchestrator) execute(ctx context.Context, logger zerolog.Logger, script Script, driver ports.Driver, in ScriptInput) (payload map[string]any, err error) {
	ctx, end := o.phase(ctx, logger, PhaseExecuting)

	ctx, cancel := context.WithTimeout(ctx, o.opts.ActionTimeout)
	defer cancel()

	defer func() {
		if recovered := recover(); recovered != nil {
			payload = nil
			err = domain.NewActionError(domain.FailureInternal, "run script", fmt.Errorf("panic: %v", recovered))
		}
		if err != nil && domain.KindOf(err) == domain.FailureInternal && ctx.Err() != nil {
			err = domain.NewActionError(domain.FailureActionTimeout, "run script", err)
		}
		end(err)
	}()

	return script.Run(ctx, driver, in)
}

// persist captures cookies from the driver and writes them in a single
// session update. It runs on a fresh deadline so an expired action does not
// prevent the capture.
func (o *Orchestrator) persist(ctx context.Context, logger zerolog.Logger, tenantID domain.TenantID, driver ports.Driver) (warning *domain.Diagnostic) {
	ctx, end := o.phase(context.WithoutCancel(ctx), logger, PhasePersisting)

	ctx, cancel := context.WithTimeout(ctx, o.opts.PersistTimeout)
	defer cancel()

	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("panic: %v", recovered)
			end(err)
			o.metrics.ObservePersist(persistOutcomeCaptureFailed)
			warning = &domain.Diagnostic{
				Kind:    domain.FailurePersistenceWarning,
				Message: fmt.Sprintf("persist session: %v", err),
			}
		}
	}()

	cookies, err := driver.ReadCookies(ctx)
	if err != nil {
		end(err)
		o.metrics.ObservePersist(persistOutcomeCaptureFailed)
		return &domain.Diagnostic{
			Kind:    domain.FailurePersistenceWarning,
			Message: fmt.Sprintf("capture session cookies: %v", err),
		}
	}

	now := o.clock.Now()
	if err := o.tenants.UpsertSession(ctx, tenantID, domain.SessionState{Cookies: cookies, CapturedAt: now}, now); err != nil {
		end(err)
		o.metrics.ObservePersist(persistOutcomeWriteFailed)
		return &domain.Diagnostic{
			Kind:    domain.FailurePersistenceWarning,
			Message: fmt.Sprintf("save session cookies: %v", err),
		}
	}

	end(nil)
	o.metrics.ObservePersist(persistOutcomeSaved)
	logger.Debug().Int("cookies", len(cookies)).Msg("session persisted")
	return nil
}

func (o *Orchestrator) release(ctx context.Context, logger zerolog.Logger, lease *Lease) {
	_, end := o.phase(context.WithoutCancel(ctx), logger, PhaseReleasing)
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("panic: %v", recovered)
			logger.Error().Err(err).Msg("release driver")
			end(err)
		}
	}()

	lease.Release()
	end(nil)
}

func (o *Orchestrator) phase(ctx context.Context, logger zerolog.Logger, phase Phase) (context.Context, func(error)) {
	ctx, span := o.tracer.Start(ctx, "orchestrator."+string(phase))
	logger.Debug().Str("phase", string(phase)).Msg("phase started")

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Debug().Str("phase", string(phase)).Err(err).Msg("phase failed")
		}
		span.End()
	}
}

// lookupFailureKind reports a missing tenant as a configuration problem, an
// expired or cancelled caller as a timeout, and anything else from the store
// as a resource failure.
func lookupFailureKind(ctx context.Context, err error) domain.FailureKind {
	switch {
	case errors.Is(err, domain.ErrTenantNotFound):
		return domain.FailureConfig
	case ctx.Err() != nil, errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.FailureActionTimeout
	default:
		return domain.FailureResource
	}
}

func credentialFailureKind(ctx context.Context) domain.FailureKind {
	if ctx.Err() != nil {
		return domain.FailureActionTimeout
	}
	return domain.FailureConfig
}

func failed(result domain.ActionResult, err error) domain.ActionResult {
	result.Status = domain.ResultFailed
	result.Kind = domain.KindOf(err)
	result.Message = err.Error()
	result.Payload = nil
	return result
}
