package market

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"transfermarket/internal/decision"
)

// PlayerInfo is the engine's read view of one player during a round.
type PlayerInfo struct {
	ID       string
	Name     string
	Position string
	Age      int
	Ability  int

	MarketValue decimal.Decimal
	MinSalary   decimal.Decimal
	Salary      decimal.Decimal

	TeamID        *string
	ContractYears int
	Intention     string
}

func (p *PlayerInfo) view() decision.PlayerView {
	return decision.PlayerView{
		ID:            p.ID,
		Name:          p.Name,
		Position:      p.Position,
		Age:           p.Age,
		Ability:       p.Ability,
		MarketValue:   p.MarketValue,
		MinSalary:     p.MinSalary,
		CurrentSalary: p.Salary,
	}
}

type Signing struct {
	NegotiationID uint64
	PlayerID      string
	TeamID        string
	Salary        decimal.Decimal
	Years         int
	SigningBonus  decimal.Decimal
	Emergency     bool
}

type TransferDeal struct {
	NegotiationID uint64
	PlayerID      string
	FromTeamID    string
	ToTeamID      string
	Fee           decimal.Decimal
	Round         uint
}

// RoundReport is what one round execution produced. Complete is false when
// any unit failed its provider call; the caller retries the whole round and
// already-evaluated units are skipped.
type RoundReport struct {
	Phase Phase
	Round uint

	NewNegotiations     []uint64
	TouchedNegotiations []uint64
	OffersPlaced        int

	Signings  []Signing
	Transfers []TransferDeal

	FailedTeams   []string
	FailedPlayers []string

	Complete bool
	Stable   bool
}

func (r *RoundReport) touch(id uint64) {
	for _, existing := range r.TouchedNegotiations {
		if existing == id {
			return
		}
	}
	r.TouchedNegotiations = append(r.TouchedNegotiations, id)
}

// Longest contract a provider proposal may carry.
const maxContractYears = 5

// Coordinator runs one market round: team-offer fan-out over an immutable
// snapshot, single-writer merge, then player-decision fan-out and merge,
// strictly in that order.
type Coordinator struct {
	Provider      decision.Provider
	Logger        *zap.Logger
	MaxConcurrent int

	// TransferFeeFactor scales a poachable player's market value into the
	// mandatory fee of a transfer offer.
	TransferFeeFactor decimal.Decimal
}

func (c *Coordinator) concurrency() int {
	if c.MaxConcurrent > 0 {
		return c.MaxConcurrent
	}
	return 8
}

// RunFreeMarketRound executes one free-market round against st and ledger.
// The state is only written in the merge passes; provider calls see frozen
// snapshots.
func (c *Coordinator) RunFreeMarketRound(
	ctx context.Context,
	st *State,
	ledger *Ledger,
	strategies map[string][]decision.TargetView,
	players map[string]*PlayerInfo,
) (*RoundReport, error) {
	if st.Phase != PhaseFreeMarket {
		return nil, fmt.Errorf("free market round in phase %s", st.Phase)
	}
	report := &RoundReport{Phase: st.Phase, Round: st.Round + 1}

	c.runTeamOfferSubPhase(ctx, st, ledger, strategies, players, report, false)
	if len(report.FailedTeams) > 0 {
		// Teams that failed stay unevaluated; the round must be retried
		// before any player decision may run.
		return report, nil
	}

	c.runPlayerDecisionSubPhase(ctx, st, ledger, players, report, false)
	if len(report.FailedPlayers) > 0 {
		return report, nil
	}

	report.Complete = true
	report.Stable = len(report.NewNegotiations) == 0 && len(report.Signings) == 0
	if report.Stable {
		st.StableRounds++
	} else {
		st.StableRounds = 0
	}
	st.Round = report.Round
	st.ResetEvaluated()
	return report, nil
}

type teamTask struct {
	teamID string
	input  decision.TeamMarketContext
	// Per-target merge bound: the salary ceiling for free-market offers,
	// the fee floor for transfers. Membership doubles as the strategy
	// filter, so a proposal naming a player outside the team's strategy
	// never becomes an offer.
	bounds map[string]decimal.Decimal
}

type teamResult struct {
	teamID   string
	bounds   map[string]decimal.Decimal
	proposal *decision.OfferProposal
	err      error
}

func (c *Coordinator) runTeamOfferSubPhase(
	ctx context.Context,
	st *State,
	ledger *Ledger,
	strategies map[string][]decision.TargetView,
	players map[string]*PlayerInfo,
	report *RoundReport,
	transfer bool,
) {
	snap := st.Snapshot()

	var tasks []teamTask
	for _, teamID := range sortedTeamIDs(st.Teams) {
		team := st.Teams[teamID]
		if !team.StrategyGenerated || st.TeamEvaluated(teamID) {
			continue
		}
		task := c.buildTeamTask(snap, ledger, teamID, team, strategies[teamID], players, report.Round, transfer)
		if len(task.input.Targets) == 0 {
			// Nothing eligible: evaluated with no offer, no provider call.
			st.MarkTeamEvaluated(teamID)
			continue
		}
		tasks = append(tasks, task)
	}

	results := make([]teamResult, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency())
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			proposal, err := c.Provider.EvaluateTeamMarket(gctx, task.input)
			results[i] = teamResult{teamID: task.teamID, bounds: task.bounds, proposal: proposal, err: err}
			return nil
		})
	}
	_ = g.Wait()

	// Single-writer merge, in task order.
	for _, res := range results {
		if res.err != nil {
			if c.Logger != nil {
				c.Logger.Warn("team evaluation failed",
					zap.String("team_id", res.teamID),
					zap.Uint("round", report.Round),
					zap.Error(res.err),
				)
			}
			report.FailedTeams = append(report.FailedTeams, res.teamID)
			continue
		}
		c.mergeTeamProposal(st, ledger, res, players, report, transfer)
		st.MarkTeamEvaluated(res.teamID)
	}
}

func (c *Coordinator) buildTeamTask(
	snap *State,
	ledger *Ledger,
	teamID string,
	team *TeamState,
	targets []decision.TargetView,
	players map[string]*PlayerInfo,
	round uint,
	transfer bool,
) teamTask {
	task := teamTask{
		teamID: teamID,
		bounds: map[string]decimal.Decimal{},
		input: decision.TeamMarketContext{
			SeasonID:        snap.SeasonID,
			TeamID:          teamID,
			Round:           round,
			Transfer:        transfer,
			RemainingBudget: team.RemainingBudget,
		},
	}
	sorted := append([]decision.TargetView(nil), targets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	for _, target := range sorted {
		player := players[target.PlayerID]
		if player == nil {
			continue
		}
		if transfer {
			if !snap.IsPoachable(target.PlayerID) {
				continue
			}
			if player.TeamID != nil && *player.TeamID == teamID {
				continue
			}
		} else if !snap.IsFreeAgent(target.PlayerID) {
			continue
		}
		if neg := ledger.OpenForPlayer(target.PlayerID); neg != nil && neg.HasOfferFrom(teamID) {
			task.input.AlreadyOffered = append(task.input.AlreadyOffered, target.PlayerID)
			continue
		}
		if transfer {
			fee := c.transferFee(player)
			if fee.GreaterThan(team.RemainingBudget) {
				continue
			}
			task.bounds[target.PlayerID] = fee
		} else {
			ceiling := decimal.Min(target.MaxOffer, team.RemainingBudget)
			// Unaffordable targets are skipped silently, never errored.
			if ceiling.LessThan(player.MinSalary) {
				continue
			}
			task.bounds[target.PlayerID] = ceiling
		}
		task.input.Targets = append(task.input.Targets, target)
		task.input.Candidates = append(task.input.Candidates, player.view())
	}
	return task
}

func (c *Coordinator) mergeTeamProposal(
	st *State,
	ledger *Ledger,
	res teamResult,
	players map[string]*PlayerInfo,
	report *RoundReport,
	transfer bool,
) {
	if res.proposal == nil {
		return
	}
	proposal := res.proposal
	player := players[proposal.PlayerID]
	team := st.Team(res.teamID)
	if player == nil || team == nil {
		return
	}

	var terms OfferTerms
	if transfer {
		if !st.IsPoachable(player.ID) {
			return
		}
		fee, ok := res.bounds[player.ID]
		if !ok {
			// Not one of this team's strategy targets.
			return
		}
		if proposal.TransferFee != nil && proposal.TransferFee.GreaterThan(fee) {
			fee = *proposal.TransferFee
		}
		if fee.GreaterThan(team.RemainingBudget) {
			return
		}
		// Transfer offers pin the salary to the current contract; only the
		// destination and the fee are contested.
		terms = OfferTerms{
			FromTeamID:  res.teamID,
			Round:       report.Round,
			Salary:      player.Salary,
			Years:       player.ContractYears,
			TransferFee: &fee,
		}
	} else {
		if !st.IsFreeAgent(player.ID) {
			return
		}
		ceiling, ok := res.bounds[player.ID]
		if !ok {
			return
		}
		salary := proposal.Salary
		if salary.LessThan(player.MinSalary) || salary.GreaterThan(ceiling) ||
			proposal.Years < 1 || proposal.Years > maxContractYears ||
			proposal.SigningBonus.IsNegative() {
			if c.Logger != nil {
				c.Logger.Debug("proposal outside bounds, skipped",
					zap.String("team_id", res.teamID),
					zap.String("player_id", player.ID),
					zap.String("salary", salary.String()),
					zap.Int("years", proposal.Years),
				)
			}
			return
		}
		terms = OfferTerms{
			FromTeamID:       res.teamID,
			Round:            report.Round,
			Salary:           salary,
			Years:            proposal.Years,
			SigningBonus:     proposal.SigningBonus,
			StarterGuarantee: proposal.StarterGuarantee,
		}
	}

	existing := ledger.OpenForPlayer(player.ID)
	var fee *decimal.Decimal
	if transfer {
		fee = terms.TransferFee
	}
	neg := ledger.FindOrCreate(PlayerRef{
		ID:           player.ID,
		Name:         player.Name,
		Position:     player.Position,
		Ability:      player.Ability,
		OriginTeamID: player.TeamID,
	}, report.Round, transfer, fee)
	if existing == nil {
		report.NewNegotiations = append(report.NewNegotiations, neg.ID)
	}
	if _, err := ledger.AddOffer(neg.ID, terms); err != nil {
		if c.Logger != nil {
			c.Logger.Warn("add offer failed", zap.Uint64("negotiation_id", neg.ID), zap.Error(err))
		}
		return
	}
	st.AddActiveNegotiation(neg.ID)
	report.touch(neg.ID)
	report.OffersPlaced++
}

type playerTask struct {
	negotiationID uint64
	input         decision.PlayerOffersContext
}

type playerResult struct {
	negotiationID uint64
	choice        decision.OfferChoice
	err           error
}

func (c *Coordinator) runPlayerDecisionSubPhase(
	ctx context.Context,
	st *State,
	ledger *Ledger,
	players map[string]*PlayerInfo,
	report *RoundReport,
	transfer bool,
) {
	snap := st.Snapshot()

	var tasks []playerTask
	for _, neg := range ledger.OpenWithPending() {
		if transfer {
			if !snap.IsPoachable(neg.PlayerID) {
				continue
			}
		} else if !snap.IsFreeAgent(neg.PlayerID) {
			continue
		}
		player := players[neg.PlayerID]
		if player == nil {
			continue
		}
		input := decision.PlayerOffersContext{
			SeasonID:  snap.SeasonID,
			Round:     report.Round,
			Player:    player.view(),
			Intention: player.Intention,
		}
		for _, offer := range neg.PendingOffers() {
			input.Offers = append(input.Offers, decision.OfferView{
				OfferID:          offer.ID,
				FromTeamID:       offer.FromTeamID,
				Salary:           offer.Salary,
				Years:            offer.Years,
				SigningBonus:     offer.SigningBonus,
				StarterGuarantee: offer.StarterGuarantee,
				TransferFee:      offer.TransferFee,
			})
		}
		tasks = append(tasks, playerTask{negotiationID: neg.ID, input: input})
	}

	results := make([]playerResult, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency())
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			choice, err := c.Provider.EvaluatePlayerOffers(gctx, task.input)
			results[i] = playerResult{negotiationID: task.negotiationID, choice: choice, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		neg := ledger.Get(res.negotiationID)
		if neg == nil || neg.Status != NegotiationOpen {
			continue
		}
		offerID := res.choice.OfferID
		reasoning := res.choice.Reasoning
		switch {
		case res.err == nil:
			// Forced choice: an id the provider invented falls back too.
			if offer := neg.OfferByID(offerID); offer == nil || offer.Status != OfferPending {
				offerID = ledger.FallbackChoice(neg.ID)
				reasoning = "fallback: highest offer"
			}
		case errors.Is(res.err, decision.ErrNoDecision):
			offerID = ledger.FallbackChoice(neg.ID)
			reasoning = "fallback: highest offer"
		default:
			if c.Logger != nil {
				c.Logger.Warn("player evaluation failed",
					zap.String("player_id", neg.PlayerID),
					zap.Uint64("negotiation_id", neg.ID),
					zap.Error(res.err),
				)
			}
			report.FailedPlayers = append(report.FailedPlayers, neg.PlayerID)
			continue
		}
		if offerID == 0 {
			continue
		}
		resolution, err := ledger.ResolveByAcceptance(neg.ID, offerID, report.Round, reasoning)
		if err != nil {
			if c.Logger != nil {
				c.Logger.Warn("resolve failed", zap.Uint64("negotiation_id", neg.ID), zap.Error(err))
			}
			continue
		}
		report.touch(neg.ID)
		if transfer {
			c.applyTransfer(st, resolution, players, report)
		} else {
			c.applySigning(st, resolution, players, report)
		}
	}
}

// applySigning is part of the single-writer merge: budgets and rosters move
// here and nowhere else during a free-market round.
func (c *Coordinator) applySigning(st *State, res *Resolution, players map[string]*PlayerInfo, report *RoundReport) {
	neg := res.Negotiation
	final := neg.Final
	st.RemoveFreeAgent(neg.PlayerID)
	st.RemoveActiveNegotiation(neg.ID)
	if team := st.Team(final.TeamID); team != nil {
		team.RemainingBudget = team.RemainingBudget.Sub(final.Salary).Sub(final.SigningBonus)
		team.RosterCount++
	}
	if player := players[neg.PlayerID]; player != nil {
		teamID := final.TeamID
		player.TeamID = &teamID
		player.Salary = final.Salary
		player.ContractYears = final.Years
	}
	report.Signings = append(report.Signings, Signing{
		NegotiationID: neg.ID,
		PlayerID:      neg.PlayerID,
		TeamID:        final.TeamID,
		Salary:        final.Salary,
		Years:         final.Years,
		SigningBonus:  final.SigningBonus,
	})
	if c.Logger != nil {
		c.Logger.Info("player signed",
			zap.String("player_id", neg.PlayerID),
			zap.String("team_id", final.TeamID),
			zap.String("salary", final.Salary.String()),
			zap.Int("years", final.Years),
		)
	}
}

func (c *Coordinator) transferFee(player *PlayerInfo) decimal.Decimal {
	factor := c.TransferFeeFactor
	if factor.IsZero() {
		factor = decimal.NewFromInt(1)
	}
	return player.MarketValue.Mul(factor)
}

func sortedTeamIDs(teams map[string]*TeamState) []string {
	ids := make([]string, 0, len(teams))
	for id := range teams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
