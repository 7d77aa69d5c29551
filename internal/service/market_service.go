package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"transfermarket/internal/config"
	"transfermarket/internal/decision"
	"transfermarket/internal/feed"
	"transfermarket/internal/market"
	"transfermarket/internal/models"
	"transfermarket/internal/repository"
)

// MarketService drives one transfer window: bootstrap, phase ticks and the
// final sweep. Every Tick loads the checkpoint, runs at most one unit of
// work for the current phase and persists the result, so a crashed or
// restarted process resumes by just calling Tick again.
type MarketService struct {
	Store    repository.Repository
	Provider decision.Provider
	Feed     *feed.Hub
	Logger   *zap.Logger
	Market   config.MarketConfig
	Decision config.DecisionConfig
}

type BootstrapResult struct {
	SeasonID   string `json:"season_id"`
	Created    bool   `json:"created"`
	Phase      string `json:"phase"`
	Teams      int    `json:"teams"`
	FreeAgents int    `json:"free_agents"`
	Poachable  int    `json:"poachable"`
}

type TickResult struct {
	SeasonID  string `json:"season_id"`
	PhaseFrom string `json:"phase_from"`
	PhaseTo   string `json:"phase_to"`
	Round     uint   `json:"round,omitempty"`
	Evaluated int    `json:"evaluated"`
	Failed    int    `json:"failed"`
	Offers    int    `json:"offers,omitempty"`
	Signings  int    `json:"signings,omitempty"`
	Transfers int    `json:"transfers,omitempty"`
	Complete  bool   `json:"complete"`
	Stable    bool   `json:"stable,omitempty"`
	Finished  bool   `json:"finished"`
}

// Bootstrap creates the window checkpoint for a season. Calling it again
// for an existing season is a no-op that reports the current state.
func (s *MarketService) Bootstrap(ctx context.Context, seasonID string) (BootstrapResult, error) {
	existing, err := s.Store.GetMarketState(ctx, seasonID)
	if err != nil {
		return BootstrapResult{}, err
	}
	if existing != nil {
		teams, err := s.Store.ListTeamMarketStates(ctx, seasonID)
		if err != nil {
			return BootstrapResult{}, err
		}
		return BootstrapResult{
			SeasonID: seasonID,
			Created:  false,
			Phase:    existing.Phase,
			Teams:    len(teams),
		}, nil
	}

	teams, err := s.Store.ListTeams(ctx)
	if err != nil {
		return BootstrapResult{}, err
	}
	if len(teams) == 0 {
		return BootstrapResult{}, fmt.Errorf("no teams to bootstrap season %s", seasonID)
	}
	active := models.PlayerStatusActive
	players, err := s.Store.ListPlayers(ctx, repository.ListPlayersParams{Status: &active})
	if err != nil {
		return BootstrapResult{}, err
	}

	st := market.NewState(seasonID)
	rosters := map[string]int{}
	for _, player := range players {
		if player.TeamID == nil {
			st.AddFreeAgent(player.ID)
			continue
		}
		rosters[*player.TeamID]++
		if player.Ability >= s.Market.PoachAbilityThreshold {
			st.AddPoachable(player.ID)
		}
	}
	for _, team := range teams {
		minRoster := team.MinRosterSize
		if minRoster <= 0 {
			minRoster = s.Market.MinRosterSize
		}
		st.Teams[team.ID] = &market.TeamState{
			TeamID:          team.ID,
			RemainingBudget: team.Budget,
			RosterCount:     rosters[team.ID],
			MinRosterSize:   minRoster,
		}
	}

	if err := s.persistState(ctx, st); err != nil {
		return BootstrapResult{}, err
	}
	if s.Logger != nil {
		s.Logger.Info("season bootstrapped",
			zap.String("season_id", seasonID),
			zap.Int("teams", len(teams)),
			zap.Int("free_agents", len(st.FreeAgents)),
			zap.Int("poachable", len(st.Poachable)),
		)
	}
	s.publish(feed.EventPhaseChanged, seasonID, map[string]string{"phase": st.Phase.String()})
	return BootstrapResult{
		SeasonID:   seasonID,
		Created:    true,
		Phase:      st.Phase.String(),
		Teams:      len(teams),
		FreeAgents: len(st.FreeAgents),
		Poachable:  len(st.Poachable),
	}, nil
}

// Tick advances the window by one step of its current phase. It is safe to
// call on a schedule: a completed window returns immediately and a failed
// step leaves a checkpoint the next call retries from.
func (s *MarketService) Tick(ctx context.Context, seasonID string) (TickResult, error) {
	st, err := s.loadState(ctx, seasonID)
	if err != nil {
		return TickResult{}, err
	}
	result := TickResult{SeasonID: seasonID, PhaseFrom: st.Phase.String()}
	if st.Phase.Terminal() {
		result.PhaseTo = result.PhaseFrom
		result.Finished = true
		result.Complete = true
		return result, nil
	}

	switch st.Phase {
	case market.PhaseIntentionGeneration:
		err = s.runIntentionPhase(ctx, st, &result)
	case market.PhaseStrategyGeneration:
		err = s.runStrategyPhase(ctx, st, &result)
	case market.PhaseRenewalProcessing:
		err = s.runRenewalPhase(ctx, st, &result)
	case market.PhaseFreeMarket:
		err = s.runMarketRound(ctx, st, &result, false)
	case market.PhaseTransferRounds:
		err = s.runMarketRound(ctx, st, &result, true)
	default:
		err = fmt.Errorf("tick in unexpected phase %s", st.Phase)
	}
	if err != nil {
		return result, err
	}
	result.PhaseTo = st.Phase.String()
	result.Finished = st.Phase.Terminal()
	return result, nil
}

func (s *MarketService) policy() market.TransitionPolicy {
	return market.TransitionPolicy{
		MaxFreeMarketRounds:     s.Market.MaxFreeMarketRounds,
		MaxTransferRounds:       s.Market.MaxTransferRounds,
		StableRoundsThreshold:   s.Market.StableRoundsThreshold,
		TransferStableThreshold: s.Market.TransferStableRounds,
	}
}

func (s *MarketService) coordinator() *market.Coordinator {
	return &market.Coordinator{
		Provider:          s.Provider,
		Logger:            s.Logger,
		MaxConcurrent:     s.Decision.MaxConcurrent,
		TransferFeeFactor: decimal.NewFromFloat(s.Market.TransferFeeFactor),
	}
}

func (s *MarketService) loadState(ctx context.Context, seasonID string) (*market.State, error) {
	row, err := s.Store.GetMarketState(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("season %s not bootstrapped", seasonID)
	}
	teams, err := s.Store.ListTeamMarketStates(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	return market.StateFromModels(row, teams)
}

func (s *MarketService) loadLedger(ctx context.Context, seasonID string) (*market.Ledger, error) {
	negs, err := s.Store.ListNegotiations(ctx, repository.ListNegotiationsParams{SeasonID: seasonID})
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(negs))
	for _, neg := range negs {
		ids = append(ids, neg.ID)
	}
	offers, err := s.Store.ListOffersByNegotiationIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	responses, err := s.Store.ListOfferResponsesByNegotiationIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return market.LedgerFromModels(negs, offers, responses)
}

// loadPlayers builds the round's player view keyed by id, with each
// player's recorded intention attached.
func (s *MarketService) loadPlayers(ctx context.Context, seasonID string) (map[string]*market.PlayerInfo, error) {
	active := models.PlayerStatusActive
	players, err := s.Store.ListPlayers(ctx, repository.ListPlayersParams{Status: &active})
	if err != nil {
		return nil, err
	}
	intentions, err := s.Store.ListPlayerIntentions(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	byPlayer := make(map[string]string, len(intentions))
	for _, row := range intentions {
		byPlayer[row.PlayerID] = row.Intention
	}

	out := make(map[string]*market.PlayerInfo, len(players))
	for _, player := range players {
		player := player
		out[player.ID] = &market.PlayerInfo{
			ID:            player.ID,
			Name:          player.Name,
			Position:      player.Position,
			Age:           player.Age,
			Ability:       player.Ability,
			MarketValue:   player.MarketValue,
			MinSalary:     player.MinSalary,
			Salary:        player.Salary,
			TeamID:        player.TeamID,
			ContractYears: player.ContractYears,
			Intention:     byPlayer[player.ID],
		}
	}
	return out, nil
}

func (s *MarketService) loadStrategies(ctx context.Context, seasonID string) (map[string][]decision.TargetView, error) {
	rows, err := s.Store.ListTeamStrategies(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]decision.TargetView, len(rows))
	for _, row := range rows {
		var targets []decision.TargetView
		if len(row.Targets) > 0 {
			if err := json.Unmarshal(row.Targets, &targets); err != nil {
				return nil, fmt.Errorf("strategy targets for team %s: %w", row.TeamID, err)
			}
		}
		out[row.TeamID] = targets
	}
	return out, nil
}

func (s *MarketService) persistState(ctx context.Context, st *market.State) error {
	stateRow, teamRows, err := market.StateToModels(st)
	if err != nil {
		return err
	}
	return s.Store.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Store.UpsertMarketStateTx(ctx, tx, stateRow); err != nil {
			return err
		}
		for i := range teamRows {
			if err := s.Store.UpsertTeamMarketStateTx(ctx, tx, &teamRows[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *MarketService) publish(eventType, seasonID string, payload any) {
	if s.Feed != nil {
		s.Feed.Publish(eventType, seasonID, payload)
	}
}

func playerView(p *models.Player) decision.PlayerView {
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
