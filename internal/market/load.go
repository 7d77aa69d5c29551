package market

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"transfermarket/internal/models"
)

// StateFromModels reconstructs the in-memory window state from its
// persisted checkpoint. The evaluated-team set starts empty on purpose: a
// resumed process re-evaluates the current round from scratch and the
// storage-level upserts absorb the replay.
func StateFromModels(m *models.MarketState, teams []models.TeamMarketState) (*State, error) {
	phase, err := ParsePhase(m.Phase)
	if err != nil {
		return nil, err
	}
	st := NewState(m.SeasonID)
	st.Phase = phase
	st.Round = m.Round
	st.TransferRound = m.TransferRound
	st.StableRounds = m.StableRounds
	st.TransferStableRounds = m.TransferStableRounds

	if err := decodeIDs(m.FreeAgentIDs, &st.FreeAgents); err != nil {
		return nil, fmt.Errorf("free_agent_ids: %w", err)
	}
	if err := decodeIDs(m.PoachablePlayerIDs, &st.Poachable); err != nil {
		return nil, fmt.Errorf("poachable_player_ids: %w", err)
	}
	if err := decodeIDs(m.ActiveNegotiationIDs, &st.ActiveNegotiations); err != nil {
		return nil, fmt.Errorf("active_negotiation_ids: %w", err)
	}
	if err := decodeIDs(m.CompletedTransferIDs, &st.CompletedTransfers); err != nil {
		return nil, fmt.Errorf("completed_transfer_ids: %w", err)
	}

	for _, team := range teams {
		st.Teams[team.TeamID] = &TeamState{
			TeamID:                team.TeamID,
			RemainingBudget:       team.RemainingBudget,
			RosterCount:           team.RosterCount,
			MinRosterSize:         team.MinRosterSize,
			NeedsEmergencySigning: team.NeedsEmergencySigning,
			StrategyGenerated:     team.StrategyGenerated,
		}
	}
	return st, nil
}

// StateToModels renders the state back into its checkpoint rows.
func StateToModels(st *State) (*models.MarketState, []models.TeamMarketState, error) {
	m := &models.MarketState{
		SeasonID:             st.SeasonID,
		Phase:                st.Phase.String(),
		Round:                st.Round,
		TransferRound:        st.TransferRound,
		StableRounds:         st.StableRounds,
		TransferStableRounds: st.TransferStableRounds,
	}
	var err error
	if m.FreeAgentIDs, err = encodeIDs(st.FreeAgents); err != nil {
		return nil, nil, err
	}
	if m.PoachablePlayerIDs, err = encodeIDs(st.Poachable); err != nil {
		return nil, nil, err
	}
	if m.ActiveNegotiationIDs, err = encodeIDs(st.ActiveNegotiations); err != nil {
		return nil, nil, err
	}
	if m.CompletedTransferIDs, err = encodeIDs(st.CompletedTransfers); err != nil {
		return nil, nil, err
	}

	teams := make([]models.TeamMarketState, 0, len(st.Teams))
	for _, teamID := range sortedTeamIDs(st.Teams) {
		team := st.Teams[teamID]
		teams = append(teams, models.TeamMarketState{
			SeasonID:              st.SeasonID,
			TeamID:                team.TeamID,
			RemainingBudget:       team.RemainingBudget,
			RosterCount:           team.RosterCount,
			MinRosterSize:         team.MinRosterSize,
			NeedsEmergencySigning: team.NeedsEmergencySigning,
			StrategyGenerated:     team.StrategyGenerated,
		})
	}
	return m, teams, nil
}

// LedgerFromModels rebuilds the negotiation ledger from its rows. Id
// assignment resumes past the highest persisted id so ids are never reused.
func LedgerFromModels(negs []models.Negotiation, offers []models.Offer, responses []models.OfferResponse) (*Ledger, error) {
	ledger := NewLedger()
	for _, row := range negs {
		neg := &Negotiation{
			ID:           row.ID,
			PlayerID:     row.PlayerID,
			PlayerName:   row.PlayerName,
			Position:     row.Position,
			Ability:      row.Ability,
			OriginTeamID: row.OriginTeamID,
			Status:       NegotiationStatus(row.Status),
			CurrentRound: row.CurrentRound,
			IsTransfer:   row.IsTransfer,
			TransferFee:  row.TransferFee,
		}
		if len(row.CompetingTeamIDs) > 0 {
			if err := json.Unmarshal(row.CompetingTeamIDs, &neg.CompetingTeams); err != nil {
				return nil, fmt.Errorf("negotiation %d competing teams: %w", row.ID, err)
			}
		}
		if row.Status == string(NegotiationAccepted) {
			if row.FinalTeamID == nil || row.FinalSalary == nil || row.FinalYears == nil {
				return nil, fmt.Errorf("negotiation %d accepted without final terms", row.ID)
			}
			neg.Final = &SigningTerms{
				TeamID:      *row.FinalTeamID,
				Salary:      *row.FinalSalary,
				Years:       *row.FinalYears,
				TransferFee: row.TransferFee,
			}
			if row.FinalSigningBonus != nil {
				neg.Final.SigningBonus = *row.FinalSigningBonus
			}
		}
		ledger.byID[neg.ID] = neg
		if neg.Status == NegotiationOpen {
			ledger.openByPlayer[neg.PlayerID] = neg.ID
		}
		if neg.ID >= ledger.nextNegID {
			ledger.nextNegID = neg.ID + 1
		}
	}
	for _, row := range offers {
		neg := ledger.byID[row.NegotiationID]
		if neg == nil {
			return nil, fmt.Errorf("offer %d references unknown negotiation %d", row.ID, row.NegotiationID)
		}
		neg.Offers = append(neg.Offers, &Offer{
			ID:               row.ID,
			NegotiationID:    row.NegotiationID,
			FromTeamID:       row.FromTeamID,
			Round:            row.Round,
			Salary:           row.Salary,
			Years:            row.Years,
			SigningBonus:     row.SigningBonus,
			TransferFee:      row.TransferFee,
			StarterGuarantee: row.StarterGuarantee,
			Status:           OfferStatus(row.Status),
		})
		if row.ID >= ledger.nextOfferID {
			ledger.nextOfferID = row.ID + 1
		}
	}
	for _, row := range responses {
		neg := ledger.byID[row.NegotiationID]
		if neg == nil {
			continue
		}
		neg.Responses = append(neg.Responses, OfferResponse{
			NegotiationID: row.NegotiationID,
			OfferID:       row.OfferID,
			Round:         row.Round,
			Accepted:      row.Accepted,
			Reasoning:     row.Reasoning,
		})
	}
	return ledger, nil
}

func NegotiationToModel(seasonID string, neg *Negotiation) (*models.Negotiation, error) {
	row := &models.Negotiation{
		ID:           neg.ID,
		SeasonID:     seasonID,
		PlayerID:     neg.PlayerID,
		PlayerName:   neg.PlayerName,
		Position:     neg.Position,
		Ability:      neg.Ability,
		OriginTeamID: neg.OriginTeamID,
		Status:       string(neg.Status),
		CurrentRound: neg.CurrentRound,
		IsTransfer:   neg.IsTransfer,
		TransferFee:  neg.TransferFee,
	}
	if len(neg.CompetingTeams) > 0 {
		raw, err := json.Marshal(neg.CompetingTeams)
		if err != nil {
			return nil, err
		}
		row.CompetingTeamIDs = datatypes.JSON(raw)
	}
	if neg.Final != nil {
		teamID := neg.Final.TeamID
		salary := neg.Final.Salary
		years := neg.Final.Years
		bonus := neg.Final.SigningBonus
		row.FinalTeamID = &teamID
		row.FinalSalary = &salary
		row.FinalYears = &years
		row.FinalSigningBonus = &bonus
	}
	return row, nil
}

func OfferToModel(offer *Offer) *models.Offer {
	return &models.Offer{
		ID:               offer.ID,
		NegotiationID:    offer.NegotiationID,
		FromTeamID:       offer.FromTeamID,
		Round:            offer.Round,
		Salary:           offer.Salary,
		Years:            offer.Years,
		SigningBonus:     offer.SigningBonus,
		TransferFee:      offer.TransferFee,
		StarterGuarantee: offer.StarterGuarantee,
		Status:           string(offer.Status),
	}
}

func ResponseToModel(resp OfferResponse) *models.OfferResponse {
	return &models.OfferResponse{
		NegotiationID: resp.NegotiationID,
		OfferID:       resp.OfferID,
		Round:         resp.Round,
		Accepted:      resp.Accepted,
		Reasoning:     resp.Reasoning,
	}
}

func decodeIDs[T any](raw datatypes.JSON, out *[]T) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func encodeIDs[T any](ids []T) (datatypes.JSON, error) {
	if ids == nil {
		ids = []T{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
