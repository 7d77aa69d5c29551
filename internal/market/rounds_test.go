package market

import (
	"context"
	"errors"
	"sync"
	"testing"

	"transfermarket/internal/decision"
)

// stubProvider is a test-only decision.Provider with per-method hooks and a
// thread-safe call counter.
type stubProvider struct {
	mu        sync.Mutex
	teamCalls map[string]int

	teamMarket   func(in decision.TeamMarketContext) (*decision.OfferProposal, error)
	playerOffers func(in decision.PlayerOffersContext) (decision.OfferChoice, error)
}

func newStubProvider() *stubProvider {
	return &stubProvider{teamCalls: map[string]int{}}
}

func (s *stubProvider) GenerateIntention(context.Context, decision.IntentionContext) (decision.IntentionDecision, error) {
	return decision.IntentionDecision{Intention: "stay"}, nil
}

func (s *stubProvider) GenerateStrategy(context.Context, decision.StrategyContext) (decision.StrategyDecision, error) {
	return decision.StrategyDecision{}, nil
}

func (s *stubProvider) EvaluateRenewal(context.Context, decision.RenewalContext) (decision.RenewalDecision, error) {
	return decision.RenewalDecision{}, nil
}

func (s *stubProvider) EvaluateTeamMarket(_ context.Context, in decision.TeamMarketContext) (*decision.OfferProposal, error) {
	s.mu.Lock()
	s.teamCalls[in.TeamID]++
	s.mu.Unlock()
	if s.teamMarket == nil {
		return nil, nil
	}
	return s.teamMarket(in)
}

func (s *stubProvider) EvaluatePlayerOffers(_ context.Context, in decision.PlayerOffersContext) (decision.OfferChoice, error) {
	if s.playerOffers == nil {
		return decision.OfferChoice{}, decision.ErrNoDecision
	}
	return s.playerOffers(in)
}

func (s *stubProvider) calls(teamID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teamCalls[teamID]
}

func freeMarketFixture() (*State, *Ledger, map[string][]decision.TargetView, map[string]*PlayerInfo) {
	st := NewState("s1")
	st.Phase = PhaseFreeMarket
	st.Teams = map[string]*TeamState{
		"t1": {TeamID: "t1", RemainingBudget: dec(1000), RosterCount: 12, MinRosterSize: 12, StrategyGenerated: true},
		"t2": {TeamID: "t2", RemainingBudget: dec(800), RosterCount: 12, MinRosterSize: 12, StrategyGenerated: true},
	}
	st.AddFreeAgent("p1")
	st.AddFreeAgent("p2")

	players := map[string]*PlayerInfo{
		"p1": {ID: "p1", Name: "Ada", Position: "GK", Age: 26, Ability: 82, MarketValue: dec(200), MinSalary: dec(100), Salary: dec(0)},
		"p2": {ID: "p2", Name: "Bo", Position: "FW", Age: 30, Ability: 64, MarketValue: dec(80), MinSalary: dec(40), Salary: dec(0)},
	}
	strategies := map[string][]decision.TargetView{
		"t1": {{PlayerID: "p1", Priority: 1, MaxOffer: dec(300)}},
		"t2": {{PlayerID: "p1", Priority: 1, MaxOffer: dec(250)}},
	}
	return st, NewLedger(), strategies, players
}

func TestRunFreeMarketRoundSigning(t *testing.T) {
	st, ledger, strategies, players := freeMarketFixture()
	provider := newStubProvider()
	provider.teamMarket = func(in decision.TeamMarketContext) (*decision.OfferProposal, error) {
		salary := dec(150)
		if in.TeamID == "t2" {
			salary = dec(180)
		}
		return &decision.OfferProposal{PlayerID: "p1", Salary: salary, Years: 3}, nil
	}

	coord := &Coordinator{Provider: provider, MaxConcurrent: 4}
	report, err := coord.RunFreeMarketRound(context.Background(), st, ledger, strategies, players)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if !report.Complete {
		t.Fatalf("round incomplete: %+v", report)
	}
	if report.OffersPlaced != 2 {
		t.Fatalf("offers placed = %d, want 2", report.OffersPlaced)
	}
	if len(report.Signings) != 1 {
		t.Fatalf("signings = %d, want 1", len(report.Signings))
	}
	signing := report.Signings[0]
	if signing.TeamID != "t2" {
		t.Fatalf("fallback must pick the highest salary, got team %s", signing.TeamID)
	}
	if st.IsFreeAgent("p1") {
		t.Fatalf("signed player still a free agent")
	}
	if got := st.Team("t2").RemainingBudget; !got.Equal(dec(800 - 180)) {
		t.Fatalf("buyer budget = %s, want 620", got)
	}
	if st.Team("t2").RosterCount != 13 {
		t.Fatalf("buyer roster = %d, want 13", st.Team("t2").RosterCount)
	}
	if players["p1"].TeamID == nil || *players["p1"].TeamID != "t2" {
		t.Fatalf("player team not updated")
	}
	if st.Round != 1 {
		t.Fatalf("round counter = %d, want 1", st.Round)
	}
	if report.Stable {
		t.Fatalf("a round with a signing is not stable")
	}
	if st.EvaluatedCount() != 0 {
		t.Fatalf("evaluated set must reset after a complete round")
	}
}

func TestRunFreeMarketRoundPartialFailureAndRetry(t *testing.T) {
	st, ledger, strategies, players := freeMarketFixture()
	provider := newStubProvider()
	provider.teamMarket = func(in decision.TeamMarketContext) (*decision.OfferProposal, error) {
		if in.TeamID == "t2" {
			return nil, errors.New("upstream unavailable")
		}
		return &decision.OfferProposal{PlayerID: "p1", Salary: dec(150), Years: 3}, nil
	}

	coord := &Coordinator{Provider: provider, MaxConcurrent: 4}
	report, err := coord.RunFreeMarketRound(context.Background(), st, ledger, strategies, players)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if report.Complete {
		t.Fatalf("round with a failed team must be incomplete")
	}
	if len(report.FailedTeams) != 1 || report.FailedTeams[0] != "t2" {
		t.Fatalf("failed teams = %v, want [t2]", report.FailedTeams)
	}
	if st.Round != 0 {
		t.Fatalf("failed round must not advance the counter, got %d", st.Round)
	}
	if len(report.Signings) != 0 {
		t.Fatalf("player decisions must not run after team failures")
	}
	// t1's offer merged and is kept for the retry.
	if neg := ledger.OpenForPlayer("p1"); neg == nil || !neg.HasOfferFrom("t1") {
		t.Fatalf("merged offer from the successful team lost")
	}

	// Retry: only the failed team is re-evaluated.
	provider.teamMarket = func(in decision.TeamMarketContext) (*decision.OfferProposal, error) {
		return &decision.OfferProposal{PlayerID: "p1", Salary: dec(180), Years: 2}, nil
	}
	report, err = coord.RunFreeMarketRound(context.Background(), st, ledger, strategies, players)
	if err != nil {
		t.Fatalf("retry round: %v", err)
	}
	if !report.Complete {
		t.Fatalf("retry incomplete: %+v", report)
	}
	if provider.calls("t1") != 1 {
		t.Fatalf("already-evaluated team called again: %d calls", provider.calls("t1"))
	}
	if provider.calls("t2") != 2 {
		t.Fatalf("failed team calls = %d, want 2", provider.calls("t2"))
	}
	if st.Round != 1 {
		t.Fatalf("retry must complete round 1, got %d", st.Round)
	}
	if len(report.Signings) != 1 {
		t.Fatalf("signings = %d, want 1", len(report.Signings))
	}
}

func TestRunFreeMarketRoundInvalidChoiceFallsBack(t *testing.T) {
	st, ledger, strategies, players := freeMarketFixture()
	provider := newStubProvider()
	provider.teamMarket = func(in decision.TeamMarketContext) (*decision.OfferProposal, error) {
		return &decision.OfferProposal{PlayerID: "p1", Salary: dec(150), Years: 3}, nil
	}
	provider.playerOffers = func(in decision.PlayerOffersContext) (decision.OfferChoice, error) {
		return decision.OfferChoice{OfferID: 424242}, nil
	}

	coord := &Coordinator{Provider: provider, MaxConcurrent: 4}
	report, err := coord.RunFreeMarketRound(context.Background(), st, ledger, strategies, players)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if len(report.Signings) != 1 {
		t.Fatalf("invalid offer id must fall back to a signing, got %d", len(report.Signings))
	}
}

func TestRunFreeMarketRoundRejectsMalformedContractTerms(t *testing.T) {
	st, ledger, strategies, players := freeMarketFixture()
	provider := newStubProvider()
	provider.teamMarket = func(in decision.TeamMarketContext) (*decision.OfferProposal, error) {
		if in.TeamID == "t1" {
			// In-bounds salary but a zero-length contract.
			return &decision.OfferProposal{PlayerID: "p1", Salary: dec(150), Years: 0}, nil
		}
		return &decision.OfferProposal{PlayerID: "p1", Salary: dec(180), Years: 2, SigningBonus: dec(-5)}, nil
	}

	coord := &Coordinator{Provider: provider, MaxConcurrent: 4}
	report, err := coord.RunFreeMarketRound(context.Background(), st, ledger, strategies, players)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if report.OffersPlaced != 0 || len(report.Signings) != 0 {
		t.Fatalf("malformed terms must not become offers: %+v", report)
	}
	if !report.Complete || !report.Stable {
		t.Fatalf("report = %+v, want a complete stable round", report)
	}
	if len(ledger.All()) != 0 {
		t.Fatalf("negotiations = %d, want none", len(ledger.All()))
	}
}

func TestRunFreeMarketRoundPlayerFailureKeepsNegotiationOpen(t *testing.T) {
	st, ledger, strategies, players := freeMarketFixture()
	provider := newStubProvider()
	provider.teamMarket = func(in decision.TeamMarketContext) (*decision.OfferProposal, error) {
		return &decision.OfferProposal{PlayerID: "p1", Salary: dec(150), Years: 3}, nil
	}
	provider.playerOffers = func(in decision.PlayerOffersContext) (decision.OfferChoice, error) {
		return decision.OfferChoice{}, errors.New("timeout")
	}

	coord := &Coordinator{Provider: provider, MaxConcurrent: 4}
	report, err := coord.RunFreeMarketRound(context.Background(), st, ledger, strategies, players)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if report.Complete {
		t.Fatalf("player failure must leave the round incomplete")
	}
	if len(report.FailedPlayers) != 1 {
		t.Fatalf("failed players = %v", report.FailedPlayers)
	}
	if neg := ledger.OpenForPlayer("p1"); neg == nil || neg.Status != NegotiationOpen {
		t.Fatalf("failed player's negotiation must stay open")
	}
	if st.Round != 0 {
		t.Fatalf("incomplete round advanced the counter")
	}
}

func TestRunFreeMarketRoundStability(t *testing.T) {
	st, ledger, _, players := freeMarketFixture()
	provider := newStubProvider()

	// No strategies: nobody has eligible targets, no offers, no signings.
	coord := &Coordinator{Provider: provider, MaxConcurrent: 4}
	for want := uint(1); want <= 2; want++ {
		report, err := coord.RunFreeMarketRound(context.Background(), st, ledger, map[string][]decision.TargetView{}, players)
		if err != nil {
			t.Fatalf("round: %v", err)
		}
		if !report.Stable {
			t.Fatalf("empty round must be stable")
		}
		if st.StableRounds != want {
			t.Fatalf("stable rounds = %d, want %d", st.StableRounds, want)
		}
	}
	if provider.calls("t1")+provider.calls("t2") != 0 {
		t.Fatalf("teams without eligible targets must not hit the provider")
	}
}

func TestBuildTeamTaskSkipsUnaffordableAndDuplicate(t *testing.T) {
	st, ledger, strategies, players := freeMarketFixture()
	// t2 cannot afford p1's minimum.
	st.Team("t2").RemainingBudget = dec(50)

	provider := newStubProvider()
	provider.teamMarket = func(in decision.TeamMarketContext) (*decision.OfferProposal, error) {
		return &decision.OfferProposal{PlayerID: "p1", Salary: dec(150), Years: 3}, nil
	}
	provider.playerOffers = func(in decision.PlayerOffersContext) (decision.OfferChoice, error) {
		return decision.OfferChoice{}, errors.New("hold the round open")
	}

	coord := &Coordinator{Provider: provider, MaxConcurrent: 4}
	report, err := coord.RunFreeMarketRound(context.Background(), st, ledger, strategies, players)
	if err != nil {
		t.Fatalf("round: %v", err)
	}
	if provider.calls("t2") != 0 {
		t.Fatalf("team with no affordable target must not hit the provider")
	}
	if report.OffersPlaced != 1 {
		t.Fatalf("offers = %d, want 1", report.OffersPlaced)
	}

	// Next attempt: t1 already holds a live offer on p1, so the target is
	// filtered out before the provider is consulted.
	st.ResetEvaluated()
	report, err = coord.RunFreeMarketRound(context.Background(), st, ledger, strategies, players)
	if err != nil {
		t.Fatalf("second round: %v", err)
	}
	if provider.calls("t1") != 1 {
		t.Fatalf("team with only a live-offer target must not hit the provider again")
	}
	neg := ledger.OpenForPlayer("p1")
	if neg == nil || len(neg.Offers) != 1 {
		t.Fatalf("duplicate offer created: %+v", neg)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	st := NewState("s1")
	st.Teams["t1"] = &TeamState{TeamID: "t1", RemainingBudget: dec(100)}
	st.AddFreeAgent("p1")

	snap := st.Snapshot()
	st.Team("t1").RemainingBudget = dec(5)
	st.RemoveFreeAgent("p1")

	if !snap.Team("t1").RemainingBudget.Equal(dec(100)) {
		t.Fatalf("snapshot budget mutated")
	}
	if !snap.IsFreeAgent("p1") {
		t.Fatalf("snapshot free agents mutated")
	}
}
