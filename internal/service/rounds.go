package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"transfermarket/internal/decision"
	"transfermarket/internal/feed"
	"transfermarket/internal/market"
	"transfermarket/internal/models"
)

type roundWindow struct {
	state      *market.State
	ledger     *market.Ledger
	players    map[string]*market.PlayerInfo
	strategies map[string][]decision.TargetView

	// Set by the finalize sweep so the persist pass can flip statuses.
	retired []string
}

func (s *MarketService) loadWindow(ctx context.Context, st *market.State) (*roundWindow, error) {
	ledger, err := s.loadLedger(ctx, st.SeasonID)
	if err != nil {
		return nil, err
	}
	players, err := s.loadPlayers(ctx, st.SeasonID)
	if err != nil {
		return nil, err
	}
	strategies, err := s.loadStrategies(ctx, st.SeasonID)
	if err != nil {
		return nil, err
	}
	return &roundWindow{state: st, ledger: ledger, players: players, strategies: strategies}, nil
}

// runMarketRound executes one free-market or transfer round and persists
// its merge result in a single transaction. An incomplete round (provider
// failures) still persists whatever merged cleanly; the next tick retries
// the same round number and the evaluated-team skip keeps it idempotent at
// the storage layer.
func (s *MarketService) runMarketRound(ctx context.Context, st *market.State, result *TickResult, transfer bool) error {
	w, err := s.loadWindow(ctx, st)
	if err != nil {
		return err
	}

	// A pool already exhausted at phase entry (or a resumed window past its
	// stability cap) advances on the policy check alone; no vacuous round
	// runs and the round counter stays put.
	report := &market.RoundReport{Phase: st.Phase, Round: st.Round, Complete: true}
	if transfer {
		report.Round = st.TransferRound
	}
	if !s.policy().ShouldAdvance(st) {
		coord := s.coordinator()
		if transfer {
			report, err = coord.RunTransferRound(ctx, st, w.ledger, w.strategies, w.players)
		} else {
			report, err = coord.RunFreeMarketRound(ctx, st, w.ledger, w.strategies, w.players)
		}
		if err != nil {
			return err
		}
	}

	result.Round = report.Round
	result.Offers = report.OffersPlaced
	result.Signings = len(report.Signings)
	result.Transfers = len(report.Transfers)
	result.Failed = len(report.FailedTeams) + len(report.FailedPlayers)
	result.Evaluated = st.EvaluatedCount()
	result.Complete = report.Complete
	result.Stable = report.Stable

	advanced := false
	if report.Complete && s.policy().ShouldAdvance(st) {
		if transfer {
			if err := s.finalize(ctx, st, w, report); err != nil {
				return err
			}
			advanced = true
		} else {
			next, _ := st.Phase.Next()
			if err := st.AdvancePhase(next); err != nil {
				return err
			}
			advanced = true
		}
	}

	if err := s.persistRound(ctx, st, w, report); err != nil {
		return err
	}

	s.publish(feed.EventRoundCompleted, st.SeasonID, result)
	for _, signing := range report.Signings {
		s.publish(feed.EventPlayerSigned, st.SeasonID, signing)
	}
	for _, deal := range report.Transfers {
		s.publish(feed.EventTransferDone, st.SeasonID, deal)
	}
	if advanced {
		s.publish(feed.EventPhaseChanged, st.SeasonID, map[string]string{"phase": st.Phase.String()})
	}
	if st.Phase.Terminal() {
		s.publish(feed.EventMarketFinished, st.SeasonID, nil)
	}
	if s.Logger != nil {
		s.Logger.Info("market round done",
			zap.String("season_id", st.SeasonID),
			zap.String("phase", result.PhaseFrom),
			zap.Uint("round", report.Round),
			zap.Int("offers", report.OffersPlaced),
			zap.Int("signings", len(report.Signings)),
			zap.Int("transfers", len(report.Transfers)),
			zap.Bool("complete", report.Complete),
			zap.Bool("stable", report.Stable),
		)
	}
	return nil
}

// finalize runs the end-of-window sweep on the already-loaded window. The
// ledger and player mutations it makes ride along in the round's persist.
func (s *MarketService) finalize(ctx context.Context, st *market.State, w *roundWindow, report *market.RoundReport) error {
	finalizer := &market.Finalizer{
		RetirementAge:         s.Market.RetirementAge,
		EmergencySalaryFactor: decimal.NewFromFloat(s.Market.EmergencySalaryFactor),
		Logger:                s.Logger,
	}
	sweep, err := finalizer.Run(st, w.ledger, w.players)
	if err != nil {
		return err
	}
	for _, id := range sweep.ExpiredNegotiations {
		report.TouchedNegotiations = append(report.TouchedNegotiations, id)
	}
	for _, signing := range sweep.EmergencySignings {
		report.TouchedNegotiations = append(report.TouchedNegotiations, signing.NegotiationID)
		report.Signings = append(report.Signings, signing)
	}
	w.retired = sweep.Retired
	if s.Logger != nil {
		s.Logger.Info("window finalized",
			zap.String("season_id", st.SeasonID),
			zap.Int("emergency_signings", len(sweep.EmergencySignings)),
			zap.Int("retired", len(sweep.Retired)),
			zap.Int("carried_over", len(sweep.CarriedOver)),
		)
	}
	return nil
}

// persistRound writes everything one round touched in a single transaction:
// negotiations and their offers/responses, mutated players, team budgets
// and the window checkpoint.
func (s *MarketService) persistRound(ctx context.Context, st *market.State, w *roundWindow, report *market.RoundReport) error {
	stateRow, teamRows, err := market.StateToModels(st)
	if err != nil {
		return err
	}

	touched := map[uint64]struct{}{}
	for _, id := range report.TouchedNegotiations {
		touched[id] = struct{}{}
	}

	changedPlayers := map[string]struct{}{}
	for _, signing := range report.Signings {
		changedPlayers[signing.PlayerID] = struct{}{}
	}
	for _, deal := range report.Transfers {
		changedPlayers[deal.PlayerID] = struct{}{}
	}
	for _, playerID := range w.retired {
		changedPlayers[playerID] = struct{}{}
	}

	return s.Store.InTx(ctx, func(tx *gorm.DB) error {
		for id := range touched {
			neg := w.ledger.Get(id)
			if neg == nil {
				continue
			}
			row, err := market.NegotiationToModel(st.SeasonID, neg)
			if err != nil {
				return err
			}
			if err := s.Store.UpsertNegotiationTx(ctx, tx, row); err != nil {
				return err
			}
			for _, offer := range neg.Offers {
				if err := s.Store.UpsertOfferTx(ctx, tx, market.OfferToModel(offer)); err != nil {
					return err
				}
			}
			for _, resp := range neg.Responses {
				if err := s.Store.InsertOfferResponseTx(ctx, tx, market.ResponseToModel(resp)); err != nil {
					return err
				}
			}
		}

		for playerID := range changedPlayers {
			info := w.players[playerID]
			if info == nil {
				continue
			}
			row, err := s.Store.GetPlayerByID(ctx, playerID)
			if err != nil {
				return err
			}
			if row == nil {
				continue
			}
			row.TeamID = info.TeamID
			row.Salary = info.Salary
			row.ContractYears = info.ContractYears
			if isRetired(w.retired, playerID) {
				row.Status = models.PlayerStatusRetired
			}
			if err := s.Store.SavePlayerTx(ctx, tx, row); err != nil {
				return err
			}
		}

		for _, deal := range report.Transfers {
			if err := s.Store.UpsertTransferTx(ctx, tx, &models.Transfer{
				SeasonID:      st.SeasonID,
				NegotiationID: deal.NegotiationID,
				PlayerID:      deal.PlayerID,
				FromTeamID:    deal.FromTeamID,
				ToTeamID:      deal.ToTeamID,
				Fee:           deal.Fee,
				Round:         deal.Round,
			}); err != nil {
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
}

func isRetired(retired []string, playerID string) bool {
	for _, id := range retired {
		if id == playerID {
			return true
		}
	}
	return false
}
