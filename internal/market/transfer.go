package market

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"transfermarket/internal/decision"
)

// RunTransferRound executes one poaching round. Structurally identical to
// the free-market round, but the candidate pool is the poachable set, every
// offer carries a mandatory fee derived from market value, and a completed
// deal moves money between the two teams instead of only debiting one.
func (c *Coordinator) RunTransferRound(
	ctx context.Context,
	st *State,
	ledger *Ledger,
	strategies map[string][]decision.TargetView,
	players map[string]*PlayerInfo,
) (*RoundReport, error) {
	if st.Phase != PhaseTransferRounds {
		return nil, fmt.Errorf("transfer round in phase %s", st.Phase)
	}
	report := &RoundReport{Phase: st.Phase, Round: st.TransferRound + 1}

	c.runTeamOfferSubPhase(ctx, st, ledger, strategies, players, report, true)
	if len(report.FailedTeams) > 0 {
		return report, nil
	}

	c.runPlayerDecisionSubPhase(ctx, st, ledger, players, report, true)
	if len(report.FailedPlayers) > 0 {
		return report, nil
	}

	report.Complete = true
	report.Stable = len(report.NewNegotiations) == 0 && len(report.Transfers) == 0
	if report.Stable {
		st.TransferStableRounds++
	} else {
		st.TransferStableRounds = 0
	}
	st.TransferRound = report.Round
	st.ResetEvaluated()
	return report, nil
}

// applyTransfer moves the fee buyer -> seller, shifts the rosters and
// retires the player id from the poachable pool, all in the merge pass.
func (c *Coordinator) applyTransfer(st *State, res *Resolution, players map[string]*PlayerInfo, report *RoundReport) {
	neg := res.Negotiation
	final := neg.Final
	if final.TransferFee == nil {
		if c.Logger != nil {
			c.Logger.Error("transfer resolution missing fee", zap.Uint64("negotiation_id", neg.ID))
		}
		return
	}
	fee := *final.TransferFee

	player := players[neg.PlayerID]
	var fromTeamID string
	if player != nil && player.TeamID != nil {
		fromTeamID = *player.TeamID
	} else if neg.OriginTeamID != nil {
		fromTeamID = *neg.OriginTeamID
	}

	st.RemovePoachable(neg.PlayerID)
	st.RemoveActiveNegotiation(neg.ID)
	st.AddCompletedTransfer(neg.ID)

	if buyer := st.Team(final.TeamID); buyer != nil {
		buyer.RemainingBudget = buyer.RemainingBudget.Sub(fee)
		buyer.RosterCount++
	}
	if seller := st.Team(fromTeamID); seller != nil {
		seller.RemainingBudget = seller.RemainingBudget.Add(fee)
		seller.RosterCount--
	}
	if player != nil {
		teamID := final.TeamID
		player.TeamID = &teamID
	}

	report.Transfers = append(report.Transfers, TransferDeal{
		NegotiationID: neg.ID,
		PlayerID:      neg.PlayerID,
		FromTeamID:    fromTeamID,
		ToTeamID:      final.TeamID,
		Fee:           fee,
		Round:         report.Round,
	})
	if c.Logger != nil {
		c.Logger.Info("transfer completed",
			zap.String("player_id", neg.PlayerID),
			zap.String("from_team", fromTeamID),
			zap.String("to_team", final.TeamID),
			zap.String("fee", fee.String()),
		)
	}
}
