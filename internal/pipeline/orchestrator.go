package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/gatherhub/eventdir/config"
	apperrors "github.com/gatherhub/eventdir/internal/errors"
	"github.com/gatherhub/eventdir/internal/logger"
	"github.com/gatherhub/eventdir/internal/metrics"
	"github.com/gatherhub/eventdir/internal/models"
	"github.com/gatherhub/eventdir/internal/platform"
)

// Orchestrator fans one fetch per configured group out to the platform
// adapters under bounded concurrency. One group's failure never affects
// another group's result; the output always has one entry per input.
type Orchestrator struct {
	registry platform.Registry
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	cfg      config.PipelineConfig
}

// NewOrchestrator creates an orchestrator over the given adapter registry.
func NewOrchestrator(registry platform.Registry, cfg config.PipelineConfig) *Orchestrator {
	limit := rate.Inf
	burst := 1
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		burst = int(cfg.RateLimit)
	}
	return &Orchestrator{
		registry: registry,
		sem:      semaphore.NewWeighted(int64(cfg.WorkerCount)),
		limiter:  rate.NewLimiter(limit, burst),
		cfg:      cfg,
	}
}

// FetchAll issues one fetch per group and collects every result. The
// returned slice length always equals len(groups).
func (o *Orchestrator) FetchAll(ctx context.Context, groups []config.GroupRef) []models.FetchResult {
	results := make([]models.FetchResult, len(groups))

	var wg sync.WaitGroup
	for i, ref := range groups {
		i, ref := i, ref
		wg.Add(1)

		go func() {
			defer wg.Done()
			results[i] = o.fetchOne(ctx, ref)
		}()
	}
	wg.Wait()

	return results
}

// fetchOne performs the bounded, rate-limited, retried fetch for a single
// group and converts any error into a failure result.
func (o *Orchestrator) fetchOne(ctx context.Context, ref config.GroupRef) models.FetchResult {
	result := models.FetchResult{Platform: ref.Platform, Urlname: ref.Identifier}

	adapter, err := o.registry.Lookup(ref.Platform)
	if err != nil {
		result.Error = err.Error()
		metrics.RecordGroupFetch(string(ref.Platform), "error")
		return result
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		result.Error = fmt.Sprintf("%s: acquire worker: %v", ref.Identifier, err)
		metrics.RecordGroupFetch(string(ref.Platform), "error")
		return result
	}
	defer o.sem.Release(1)

	group, err := o.fetchWithRetry(ctx, adapter, ref)
	if err != nil {
		result.Error = err.Error()
		metrics.RecordGroupFetch(string(ref.Platform), "error")
		logger.Warn("Group fetch failed",
			"platform", ref.Platform,
			"identifier", ref.Identifier,
			"error", err,
		)
		return result
	}

	result.Group = group
	result.Urlname = group.Urlname
	metrics.RecordGroupFetch(string(ref.Platform), "success")
	return result
}

// fetchWithRetry runs the adapter call under a per-call timeout, retrying
// transient failures up to the configured attempt count.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, adapter platform.Adapter, ref config.GroupRef) (*models.Group, error) {
	var lastErr error

	for attempt := 0; attempt <= o.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * o.cfg.RetryDelay
			logger.Debug("Retrying fetch",
				"platform", ref.Platform,
				"identifier", ref.Identifier,
				"attempt", attempt,
				"delay", delay,
			)

			select {
			case <-ctx.Done():
				return nil, wrapFetchError(ref, ctx.Err())
			case <-time.After(delay):
			}
		}

		if err := o.limiter.Wait(ctx); err != nil {
			return nil, wrapFetchError(ref, err)
		}

		callCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
		group, err := adapter.FetchGroup(callCtx, ref.Identifier)
		cancel()

		if err == nil {
			return group, nil
		}
		lastErr = err

		// Not-found and malformed payloads will not heal within a run.
		if errors.Is(err, apperrors.ErrGroupNotFound) || errors.Is(err, apperrors.ErrUnexpectedPayload) {
			break
		}
	}

	return nil, wrapFetchError(ref, lastErr)
}

func wrapFetchError(ref config.GroupRef, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.ErrTimeout
	}
	return apperrors.FetchError{
		Platform: string(ref.Platform),
		Urlname:  ref.Identifier,
		Stage:    "fetch",
		Err:      err,
	}
}
