package market

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Finalizer is the end-of-window sweep: it tops up undersized rosters with
// forced signings, retires aged-out free agents and carries the rest over.
// Run is the only path into the Completed phase.
type Finalizer struct {
	RetirementAge         int
	EmergencySalaryFactor decimal.Decimal
	Logger                *zap.Logger
}

type FinalizeReport struct {
	EmergencySignings   []Signing
	Retired             []string
	CarriedOver         []string
	ExpiredNegotiations []uint64
}

func (f *Finalizer) Run(st *State, ledger *Ledger, players map[string]*PlayerInfo) (*FinalizeReport, error) {
	if st.Phase.Terminal() {
		return nil, fmt.Errorf("window already completed")
	}
	report := &FinalizeReport{}

	// Leftover open negotiations expire before the sweep so every free
	// agent is actually free to be emergency-signed.
	for _, neg := range ledger.All() {
		if neg.Status == NegotiationOpen {
			if err := ledger.Expire(neg.ID); err != nil {
				return nil, err
			}
			st.RemoveActiveNegotiation(neg.ID)
			report.ExpiredNegotiations = append(report.ExpiredNegotiations, neg.ID)
		}
	}

	for _, teamID := range sortedTeamIDs(st.Teams) {
		team := st.Teams[teamID]
		for team.RosterCount < team.MinRosterSize {
			pick := f.bestFreeAgent(st, players)
			if pick == nil {
				team.NeedsEmergencySigning = true
				break
			}
			signing, err := f.emergencySign(st, ledger, team, pick)
			if err != nil {
				return nil, err
			}
			report.EmergencySignings = append(report.EmergencySignings, *signing)
		}
		if team.RosterCount >= team.MinRosterSize {
			team.NeedsEmergencySigning = false
		}
	}

	for _, playerID := range append([]string(nil), st.FreeAgents...) {
		player := players[playerID]
		if player != nil && player.Age >= f.RetirementAge {
			st.RemoveFreeAgent(playerID)
			report.Retired = append(report.Retired, playerID)
			if f.Logger != nil {
				f.Logger.Info("player retired", zap.String("player_id", playerID), zap.Int("age", player.Age))
			}
			continue
		}
		report.CarriedOver = append(report.CarriedOver, playerID)
	}

	if err := st.AdvancePhase(PhaseCompleted); err != nil {
		return nil, err
	}
	return report, nil
}

func (f *Finalizer) bestFreeAgent(st *State, players map[string]*PlayerInfo) *PlayerInfo {
	var candidates []*PlayerInfo
	for _, id := range st.FreeAgents {
		if player := players[id]; player != nil {
			candidates = append(candidates, player)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Ability != candidates[j].Ability {
			return candidates[i].Ability > candidates[j].Ability
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0]
}

// emergencySign forces a 1-year below-market deal through the ledger's
// normal resolution path so the single-closing-point invariant holds even
// here.
func (f *Finalizer) emergencySign(st *State, ledger *Ledger, team *TeamState, player *PlayerInfo) (*Signing, error) {
	factor := f.EmergencySalaryFactor
	if factor.IsZero() {
		factor = decimal.NewFromFloat(0.6)
	}
	salary := player.MinSalary.Mul(factor)

	neg := ledger.FindOrCreate(PlayerRef{
		ID:       player.ID,
		Name:     player.Name,
		Position: player.Position,
		Ability:  player.Ability,
	}, st.Round, false, nil)
	offer, err := ledger.AddOffer(neg.ID, OfferTerms{
		FromTeamID: team.TeamID,
		Round:      st.Round,
		Salary:     salary,
		Years:      1,
	})
	if err != nil {
		return nil, err
	}
	if _, err := ledger.ResolveByAcceptance(neg.ID, offer.ID, st.Round, "emergency signing"); err != nil {
		return nil, err
	}

	st.RemoveFreeAgent(player.ID)
	team.RemainingBudget = team.RemainingBudget.Sub(salary)
	team.RosterCount++
	teamID := team.TeamID
	player.TeamID = &teamID
	player.Salary = salary
	player.ContractYears = 1

	if f.Logger != nil {
		f.Logger.Info("emergency signing",
			zap.String("team_id", team.TeamID),
			zap.String("player_id", player.ID),
			zap.String("salary", salary.String()),
		)
	}
	return &Signing{
		NegotiationID: neg.ID,
		PlayerID:      player.ID,
		TeamID:        team.TeamID,
		Salary:        salary,
		Years:         1,
		Emergency:     true,
	}, nil
}
