package service

import (
	"context"
	"fmt"
	"time"

	"github.com/driss-b/infercore/internal/backend"
	"github.com/driss-b/infercore/internal/domain"
	"github.com/driss-b/infercore/internal/logger"
)

// GenerationProvider is the model-backend contract consumed by the router.
// backend.GenerationClient is the production implementation; tests inject
// fakes with scripted failures.
type GenerationProvider interface {
	Generate(ctx context.Context, target *domain.ModelTarget, prompt string, maxTokens int) (*backend.Completion, error)
}

// RouterConfig holds the routing and circuit-breaking knobs.
type RouterConfig struct {
	ScoreThreshold   int
	FailureThreshold int
	CooldownPeriod   time.Duration
}

// Router classifies requests onto a model target and dispatches with
// fallback escalation. Classification is deterministic; dispatch never
// retries a failed target within a request, it escalates to the next one.
type Router struct {
	targets   map[domain.TargetName]*domain.ModelTarget
	gen       GenerationProvider
	score     ScoreFunc
	threshold int
	health    *healthTracker
	logger    *logger.Logger
}

// NewRouter creates a router over the configured targets. A nil score
// function falls back to DefaultScore.
func NewRouter(targets []*domain.ModelTarget, gen GenerationProvider, score ScoreFunc, log *logger.Logger, cfg *RouterConfig) *Router {
	if score == nil {
		score = DefaultScore
	}
	if cfg == nil {
		cfg = &RouterConfig{}
	}
	threshold := cfg.ScoreThreshold
	if threshold <= 0 {
		threshold = 50
	}

	byName := make(map[domain.TargetName]*domain.ModelTarget, len(targets))
	for _, t := range targets {
		byName[t.Name] = t
	}

	return &Router{
		targets:   byName,
		gen:       gen,
		score:     score,
		threshold: threshold,
		health:    newHealthTracker(cfg.FailureThreshold, cfg.CooldownPeriod),
		logger:    log,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (r *Router) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return r.logger
}

// Route returns the target classification picks for a request. Pure: no
// health state is consulted, so the result is stable for identical input.
func (r *Router) Route(req *domain.Request) domain.TargetName {
	return classify(r.score(req.Text, req.MaxTokens), r.threshold)
}

// Target returns the configured target for a name, or nil.
func (r *Router) Target(name domain.TargetName) *domain.ModelTarget {
	return r.targets[name]
}

// Dispatch classifies the request, then walks the fallback chain starting at
// the chosen target. A target is skipped when its circuit is open; a failed
// call opens or advances its circuit and escalates to the next target. When
// the whole chain fails the request ends with ErrBackendUnavailable.
func (r *Router) Dispatch(ctx context.Context, req *domain.Request, prompt string) (*backend.Completion, domain.TargetName, error) {
	primary := r.Route(req)

	start := 0
	for i, name := range domain.FallbackOrder {
		if name == primary {
			start = i
			break
		}
	}

	var lastErr error
	for _, name := range domain.FallbackOrder[start:] {
		target, ok := r.targets[name]
		if !ok {
			continue
		}
		if !r.health.Allow(name) {
			r.log(ctx).WithField(logger.FieldTarget, string(name)).Debug("Skipping target, circuit open")
			continue
		}

		completion, err := r.gen.Generate(ctx, target, prompt, req.MaxTokens)
		if err == nil {
			r.health.ReportSuccess(name)
			return completion, name, nil
		}

		r.health.ReportFailure(name)
		r.log(ctx).WithField(logger.FieldTarget, string(name)).WithError(err).Warn("Target failed, escalating")
		lastErr = err
	}

	if lastErr != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, lastErr)
	}
	return nil, "", domain.ErrBackendUnavailable
}

// Health reports the circuit state of every configured target.
func (r *Router) Health() map[domain.TargetName]TargetHealth {
	configured := make([]domain.TargetName, 0, len(r.targets))
	for _, name := range domain.FallbackOrder {
		if _, ok := r.targets[name]; ok {
			configured = append(configured, name)
		}
	}
	return r.health.Snapshot(configured)
}
