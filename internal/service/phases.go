package service

import (
	"context"
	"encoding/json"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"transfermarket/internal/decision"
	"transfermarket/internal/feed"
	"transfermarket/internal/market"
	"transfermarket/internal/models"
	"transfermarket/internal/repository"
)

// The pre-market phases share one shape: enumerate the phase's units, skip
// the ones that already have a persisted record, fan the rest out to the
// provider, persist each success on its own, and advance the phase only
// when every unit has a record. A failed unit just stays pending for the
// next tick.

func (s *MarketService) runIntentionPhase(ctx context.Context, st *market.State, result *TickResult) error {
	active := models.PlayerStatusActive
	players, err := s.Store.ListPlayers(ctx, repository.ListPlayersParams{Status: &active})
	if err != nil {
		return err
	}
	existing, err := s.Store.ListPlayerIntentions(ctx, st.SeasonID)
	if err != nil {
		return err
	}
	done := make(map[string]struct{}, len(existing))
	for _, row := range existing {
		done[row.PlayerID] = struct{}{}
	}

	var pending []models.Player
	for _, player := range players {
		if player.TeamID == nil {
			continue
		}
		if _, ok := done[player.ID]; ok {
			continue
		}
		pending = append(pending, player)
	}
	result.Evaluated = len(done)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	type outcome struct {
		playerID string
		failed   bool
	}
	outcomes := make([]outcome, len(pending))
	for i, player := range pending {
		i, player := i, player
		g.Go(func() error {
			dec, err := s.Provider.GenerateIntention(gctx, decision.IntentionContext{
				SeasonID:      st.SeasonID,
				Player:        playerView(&player),
				TeamID:        *player.TeamID,
				ContractYears: player.ContractYears,
				RetirementAge: s.Market.RetirementAge,
			})
			if err != nil {
				s.warnUnit("intention generation failed", "player_id", player.ID, err)
				outcomes[i] = outcome{playerID: player.ID, failed: true}
				return nil
			}
			err = s.Store.UpsertPlayerIntention(gctx, &models.PlayerIntention{
				SeasonID:      st.SeasonID,
				PlayerID:      player.ID,
				Intention:     dec.Intention,
				DesiredSalary: dec.DesiredSalary,
				DesiredYears:  dec.DesiredYears,
				Reasoning:     dec.Reasoning,
			})
			outcomes[i] = outcome{playerID: player.ID, failed: err != nil}
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		if out.failed {
			result.Failed++
		} else {
			result.Evaluated++
		}
	}
	if result.Failed > 0 {
		return nil
	}
	return s.advancePhase(ctx, st, result)
}

func (s *MarketService) runStrategyPhase(ctx context.Context, st *market.State, result *TickResult) error {
	players, err := s.loadPlayers(ctx, st.SeasonID)
	if err != nil {
		return err
	}
	existing, err := s.Store.ListTeamStrategies(ctx, st.SeasonID)
	if err != nil {
		return err
	}
	done := make(map[string]struct{}, len(existing))
	for _, row := range existing {
		done[row.TeamID] = struct{}{}
	}

	// Candidate pool: everyone a strategy may target later, free agents
	// and poachable players alike.
	var candidates []decision.PlayerView
	for _, id := range append(append([]string(nil), st.FreeAgents...), st.Poachable...) {
		if player := players[id]; player != nil {
			candidates = append(candidates, decision.PlayerView{
				ID:            player.ID,
				Name:          player.Name,
				Position:      player.Position,
				Age:           player.Age,
				Ability:       player.Ability,
				MarketValue:   player.MarketValue,
				MinSalary:     player.MinSalary,
				CurrentSalary: player.Salary,
			})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	var pending []string
	for _, teamID := range sortedStateTeamIDs(st) {
		if _, ok := done[teamID]; ok {
			continue
		}
		pending = append(pending, teamID)
	}
	result.Evaluated = len(done)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	failures := make([]bool, len(pending))
	for i, teamID := range pending {
		i, teamID := i, teamID
		team := st.Teams[teamID]
		g.Go(func() error {
			dec, err := s.Provider.GenerateStrategy(gctx, decision.StrategyContext{
				SeasonID:        st.SeasonID,
				TeamID:          teamID,
				RemainingBudget: team.RemainingBudget,
				RosterCount:     team.RosterCount,
				MinRosterSize:   team.MinRosterSize,
				Candidates:      candidates,
				MaxTargets:      5,
			})
			if err != nil {
				s.warnUnit("strategy generation failed", "team_id", teamID, err)
				failures[i] = true
				return nil
			}
			targets, err := json.Marshal(dec.Targets)
			if err != nil {
				failures[i] = true
				return nil
			}
			err = s.Store.UpsertTeamStrategy(gctx, &models.TeamStrategy{
				SeasonID:  st.SeasonID,
				TeamID:    teamID,
				Targets:   datatypes.JSON(targets),
				Reasoning: dec.Reasoning,
			})
			failures[i] = err != nil
			return nil
		})
	}
	_ = g.Wait()

	for _, failed := range failures {
		if failed {
			result.Failed++
		} else {
			result.Evaluated++
		}
	}
	if result.Failed > 0 {
		return nil
	}
	for _, team := range st.Teams {
		team.StrategyGenerated = true
	}
	return s.advancePhase(ctx, st, result)
}

func (s *MarketService) runRenewalPhase(ctx context.Context, st *market.State, result *TickResult) error {
	players, err := s.loadPlayers(ctx, st.SeasonID)
	if err != nil {
		return err
	}
	existing, err := s.Store.ListRenewals(ctx, st.SeasonID)
	if err != nil {
		return err
	}
	done := make(map[string]struct{}, len(existing))
	for _, row := range existing {
		done[row.PlayerID] = struct{}{}
	}

	var pending []*market.PlayerInfo
	for _, id := range sortedPlayerIDs(players) {
		player := players[id]
		if player.TeamID == nil || player.ContractYears > 0 {
			continue
		}
		if _, ok := done[player.ID]; ok {
			continue
		}
		pending = append(pending, player)
	}
	result.Evaluated = len(done)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency())
	failures := make([]bool, len(pending))
	for i, player := range pending {
		i, player := i, player
		g.Go(func() error {
			dec, err := s.Provider.EvaluateRenewal(gctx, decision.RenewalContext{
				SeasonID: st.SeasonID,
				TeamID:   *player.TeamID,
				Player: decision.PlayerView{
					ID:            player.ID,
					Name:          player.Name,
					Position:      player.Position,
					Age:           player.Age,
					Ability:       player.Ability,
					MarketValue:   player.MarketValue,
					MinSalary:     player.MinSalary,
					CurrentSalary: player.Salary,
				},
				Intention:     player.Intention,
				ContractYears: player.ContractYears,
			})
			if err != nil {
				s.warnUnit("renewal evaluation failed", "player_id", player.ID, err)
				failures[i] = true
				return nil
			}
			err = s.Store.UpsertRenewal(gctx, &models.Renewal{
				SeasonID:         st.SeasonID,
				PlayerID:         player.ID,
				TeamID:           *player.TeamID,
				TeamWantsRenewal: dec.TeamWantsRenewal,
				PlayerAccepts:    dec.PlayerAccepts,
				FinalSalary:      dec.FinalSalary,
				FinalYears:       dec.FinalYears,
				Reasoning:        dec.Reasoning,
			})
			failures[i] = err != nil
			return nil
		})
	}
	_ = g.Wait()

	for _, failed := range failures {
		if failed {
			result.Failed++
		} else {
			result.Evaluated++
		}
	}
	if result.Failed > 0 {
		return nil
	}
	return s.applyRenewals(ctx, st, result)
}

// applyRenewals turns the complete renewal record set into roster changes
// and advances the phase, atomically. Replaying it after a crash lands on
// the same rows.
func (s *MarketService) applyRenewals(ctx context.Context, st *market.State, result *TickResult) error {
	rows, err := s.Store.ListRenewals(ctx, st.SeasonID)
	if err != nil {
		return err
	}
	var updated []*models.Player
	for _, row := range rows {
		player, err := s.Store.GetPlayerByID(ctx, row.PlayerID)
		if err != nil {
			return err
		}
		if player == nil || player.TeamID == nil {
			continue
		}
		if row.TeamWantsRenewal && row.PlayerAccepts {
			if row.FinalSalary != nil {
				player.Salary = *row.FinalSalary
			}
			if row.FinalYears != nil {
				player.ContractYears = *row.FinalYears
			}
		} else {
			// Not renewed: onto the open market.
			if team := st.Team(*player.TeamID); team != nil {
				team.RosterCount--
			}
			player.TeamID = nil
			player.Salary = player.MinSalary
			player.ContractYears = 0
			st.AddFreeAgent(player.ID)
		}
		updated = append(updated, player)
	}

	next, ok := st.Phase.Next()
	if !ok {
		return nil
	}
	if err := st.AdvancePhase(next); err != nil {
		return err
	}
	stateRow, teamRows, err := market.StateToModels(st)
	if err != nil {
		return err
	}
	err = s.Store.InTx(ctx, func(tx *gorm.DB) error {
		for _, player := range updated {
			if err := s.Store.SavePlayerTx(ctx, tx, player); err != nil {
				return err
			}
		}
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
	if err != nil {
		return err
	}
	result.Complete = true
	s.publish(feed.EventPhaseChanged, st.SeasonID, map[string]string{"phase": st.Phase.String()})
	if s.Logger != nil {
		s.Logger.Info("renewals applied",
			zap.String("season_id", st.SeasonID),
			zap.Int("players", len(updated)),
			zap.String("phase", st.Phase.String()),
		)
	}
	return nil
}

func (s *MarketService) advancePhase(ctx context.Context, st *market.State, result *TickResult) error {
	next, ok := st.Phase.Next()
	if !ok {
		return nil
	}
	if err := st.AdvancePhase(next); err != nil {
		return err
	}
	if err := s.persistState(ctx, st); err != nil {
		return err
	}
	result.Complete = true
	s.publish(feed.EventPhaseChanged, st.SeasonID, map[string]string{"phase": st.Phase.String()})
	if s.Logger != nil {
		s.Logger.Info("phase advanced",
			zap.String("season_id", st.SeasonID),
			zap.String("phase", st.Phase.String()),
		)
	}
	return nil
}

func (s *MarketService) concurrency() int {
	if s.Decision.MaxConcurrent > 0 {
		return s.Decision.MaxConcurrent
	}
	return 8
}

func (s *MarketService) warnUnit(msg, key, id string, err error) {
	if s.Logger != nil {
		s.Logger.Warn(msg, zap.String(key, id), zap.Error(err))
	}
}

func sortedStateTeamIDs(st *market.State) []string {
	ids := make([]string, 0, len(st.Teams))
	for id := range st.Teams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortedPlayerIDs(players map[string]*market.PlayerInfo) []string {
	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
