// Package recipegen generates meal plan drafts. It prefers a two-round LLM
// flow anchored by the ingredient resolver, falls back to a single
// structured call with retries, and finally to a deterministic catalogue
// generator that always succeeds. A bounded repair loop patches meals that
// violate the user's constraints.
package recipegen

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nutriplan/internal/intake"
	"nutriplan/internal/llm"
	"nutriplan/internal/plan"
	"nutriplan/internal/resolver"
	"nutriplan/internal/shared"
)

const (
	defaultRound1Timeout = 30 * time.Second
	defaultRound2Timeout = 120 * time.Second

	singleRoundRetries = 3
	retryBaseDelay     = 2 * time.Second
)

// IngredientResolver is the slice of the resolver the agent needs.
type IngredientResolver interface {
	Resolve(ctx context.Context, items []resolver.Item) []resolver.Resolved
}

// Agent runs one generation attempt as a tiered state machine.
type Agent struct {
	planGen   llm.TextGenerator // full-plan rounds
	round1Gen llm.TextGenerator // ingredient round, with model substitution
	repairGen llm.TextGenerator // repair call, with model substitution
	res       IngredientResolver
	catalogue *Catalogue
	logger    *zap.Logger

	round1Timeout time.Duration
	round2Timeout time.Duration
}

// Option tweaks Agent construction.
type Option func(*Agent)

// WithTimeouts overrides the per-call deadlines of the two-round flow.
func WithTimeouts(round1, round2 time.Duration) Option {
	return func(a *Agent) {
		if round1 > 0 {
			a.round1Timeout = round1
		}
		if round2 > 0 {
			a.round2Timeout = round2
		}
	}
}

// New builds an Agent. primary may be nil when no LLM credential is
// configured; the agent then always uses the deterministic tier. secondary
// is the optional substitution model for Round 1 and the repair call. res
// may be nil, which disables the resolved two-round flow.
func New(primary, secondary llm.TextGenerator, res IngredientResolver, logger *zap.Logger, opts ...Option) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Agent{
		res:           res,
		catalogue:     NewCatalogue(),
		logger:        logger,
		round1Timeout: defaultRound1Timeout,
		round2Timeout: defaultRound2Timeout,
	}
	if primary != nil {
		a.planGen = primary
		a.round1Gen = llm.WithModelFallback(primary, secondary, nil)
		a.repairGen = llm.WithModelFallback(primary, secondary, nil)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generate produces a draft for the given profile. It never fails: each
// tier's failure selects the next one, and the final tier is pure.
func (a *Agent) Generate(ctx context.Context, ci *intake.ClientIntake, mp *intake.MetabolicProfile) (*plan.MealPlanDraft, []shared.AgentMeta) {
	var metas []shared.AgentMeta

	if a.planGen != nil && a.res != nil {
		draft, roundMetas, err := a.runResolvedFlow(ctx, ci, mp)
		metas = append(metas, roundMetas...)
		if err == nil {
			return draft, metas
		}
		a.logger.Warn("resolved two-round flow failed, falling back to single round", zap.Error(err))
	}

	if a.planGen != nil {
		draft, meta, err := a.runSingleRound(ctx, ci, mp)
		metas = append(metas, meta)
		if err == nil {
			return draft, metas
		}
		a.logger.Warn("single-round generation failed, falling back to catalogue", zap.Error(err))
	}

	draft := a.catalogue.Generate(ci, mp)
	metas = append(metas, shared.AgentMeta{AgentName: "CatalogueGenerator"})
	return draft, metas
}
