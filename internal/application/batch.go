package application

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/bnema/tenantctl/internal/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var ErrEmptyBatch = errors.New("batch contains no requests")

type ActionRunner interface {
	Run(ctx context.Context, req domain.ActionRequest) domain.ActionResult
}

// BatchRunner feeds a sequence of requests through an ActionRunner with
// bounded parallelism. Concurrency between tenants is still governed by the
// resource pool; per-tenant order follows lock acquisition.
type BatchRunner struct {
	runner      ActionRunner
	parallelism int
	logger      zerolog.Logger
	clock       ports.Clock
}

func NewBatchRunner(runner ActionRunner, parallelism int, logger zerolog.Logger, clock ports.Clock) *BatchRunner {
	if parallelism <= 0 {
		parallelism = 1
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &BatchRunner{
		runner:      runner,
		parallelism: parallelism,
		logger:      logger.With().Str("component", "batch").Logger(),
		clock:       clock,
	}
}

// Run returns one result per request, in request order. A failing request
// never stops its siblings; requests not started before ctx ends are
// reported as timed out.
func (b *BatchRunner) Run(ctx context.Context, reqs []domain.ActionRequest) []domain.ActionResult {
	results := make([]domain.ActionResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(b.parallelism)

	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			results[i] = domain.ActionResult{
				RunID:     uuid.NewString(),
				TenantID:  req.TenantID,
				Action:    req.Action,
				Status:    domain.ResultFailed,
				Kind:      domain.FailureActionTimeout,
				Message:   fmt.Sprintf("batch cancelled before start: %v", err),
				Timestamp: b.clock.Now(),
			}
			continue
		}

		g.Go(func() error {
			results[i] = b.runner.Run(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, result := range results {
		if result.Succeeded() {
			succeeded++
		}
	}
	b.logger.Info().Int("requests", len(reqs)).Int("succeeded", succeeded).Msg("batch finished")

	return results
}

type batchDocument struct {
	Requests []domain.ActionRequest `yaml:"requests"`
}

// DecodeBatch reads requests from YAML or JSON, either as a top-level list
// or under a "requests" key.
func DecodeBatch(r io.Reader) ([]domain.ActionRequest, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyBatch
		}
		return nil, fmt.Errorf("decode batch: %w", err)
	}

	node := &root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}

	var reqs []domain.ActionRequest
	switch node.Kind {
	case yaml.SequenceNode:
		if err := node.Decode(&reqs); err != nil {
			return nil, fmt.Errorf("decode batch requests: %w", err)
		}
	case yaml.MappingNode:
		var doc batchDocument
		if err := node.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode batch document: %w", err)
		}
		reqs = doc.Requests
	default:
		return nil, fmt.Errorf("decode batch: unexpected yaml node kind %d", node.Kind)
	}

	if len(reqs) == 0 {
		return nil, ErrEmptyBatch
	}
	for i, req := range reqs {
		if req.TenantID == "" || req.Action == "" {
			return nil, fmt.Errorf("decode batch: request %d needs tenantId and action", i)
		}
	}

	return reqs, nil
}
