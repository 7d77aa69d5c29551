package decision

import (
	"context"
	"time"
)

// WithTimeout bounds every provider call with its own deadline so one stuck
// call cannot hold a whole round fan-out open.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return &timeoutProvider{inner: p, timeout: timeout}
}

type timeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

func (t *timeoutProvider) GenerateIntention(ctx context.Context, in IntentionContext) (IntentionDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.GenerateIntention(ctx, in)
}

func (t *timeoutProvider) GenerateStrategy(ctx context.Context, in StrategyContext) (StrategyDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.GenerateStrategy(ctx, in)
}

func (t *timeoutProvider) EvaluateRenewal(ctx context.Context, in RenewalContext) (RenewalDecision, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.EvaluateRenewal(ctx, in)
}

func (t *timeoutProvider) EvaluateTeamMarket(ctx context.Context, in TeamMarketContext) (*OfferProposal, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.EvaluateTeamMarket(ctx, in)
}

func (t *timeoutProvider) EvaluatePlayerOffers(ctx context.Context, in PlayerOffersContext) (OfferChoice, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.EvaluatePlayerOffers(ctx, in)
}
