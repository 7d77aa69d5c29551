package decision

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

// Heuristic is the deterministic rule-backed provider. Same inputs, same
// outputs, no I/O; it doubles as the reference policy in tests.
type Heuristic struct {
	// AbilityKeepThreshold is the rating at or above which a team always
	// wants to renew an expiring contract.
	AbilityKeepThreshold int
}

var _ Provider = (*Heuristic)(nil)

func NewHeuristic() *Heuristic {
	return &Heuristic{AbilityKeepThreshold: 70}
}

func (h *Heuristic) GenerateIntention(_ context.Context, in IntentionContext) (IntentionDecision, error) {
	player := in.Player
	if in.RetirementAge > 0 && player.Age >= in.RetirementAge {
		return IntentionDecision{
			Intention: "retire",
			Reasoning: "age at or past the retirement threshold",
		}, nil
	}
	fair := player.MarketValue
	underpaid := player.CurrentSalary.LessThan(fair.Mul(decimal.NewFromFloat(0.8)))
	if in.ContractYears <= 1 && underpaid {
		return IntentionDecision{
			Intention:     "leave",
			DesiredSalary: decimal.Max(player.MinSalary, fair),
			DesiredYears:  3,
			Reasoning:     "expiring deal well below market value",
		}, nil
	}
	if underpaid {
		return IntentionDecision{
			Intention:     "seek_raise",
			DesiredSalary: fair,
			DesiredYears:  in.ContractYears,
			Reasoning:     "salary below market value",
		}, nil
	}
	return IntentionDecision{
		Intention:     "stay",
		DesiredSalary: player.CurrentSalary,
		DesiredYears:  in.ContractYears,
		Reasoning:     "content with current terms",
	}, nil
}

func (h *Heuristic) GenerateStrategy(_ context.Context, in StrategyContext) (StrategyDecision, error) {
	candidates := append([]PlayerView(nil), in.Candidates...)
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Ability != candidates[j].Ability {
			return candidates[i].Ability > candidates[j].Ability
		}
		return candidates[i].ID < candidates[j].ID
	})

	maxTargets := in.MaxTargets
	if maxTargets <= 0 {
		maxTargets = 5
	}
	deficit := in.MinRosterSize - in.RosterCount
	if deficit > maxTargets {
		maxTargets = deficit
	}

	var out StrategyDecision
	for _, candidate := range candidates {
		if len(out.Targets) >= maxTargets {
			break
		}
		ceiling := decimal.Min(
			candidate.MarketValue.Mul(decimal.NewFromFloat(1.1)),
			in.RemainingBudget,
		)
		if ceiling.LessThan(candidate.MinSalary) {
			continue
		}
		out.Targets = append(out.Targets, TargetView{
			PlayerID: candidate.ID,
			Priority: len(out.Targets) + 1,
			MaxOffer: ceiling,
		})
	}
	out.Reasoning = "best available ability within budget"
	return out, nil
}

func (h *Heuristic) EvaluateRenewal(_ context.Context, in RenewalContext) (RenewalDecision, error) {
	player := in.Player
	keep := h.AbilityKeepThreshold
	if keep <= 0 {
		keep = 70
	}
	if player.Ability < keep {
		return RenewalDecision{
			TeamWantsRenewal: false,
			Reasoning:        "below the keep threshold, released to the market",
		}, nil
	}
	if in.Intention == "retire" || in.Intention == "leave" {
		return RenewalDecision{
			TeamWantsRenewal: true,
			PlayerAccepts:    false,
			Reasoning:        "player intends to move on",
		}, nil
	}
	salary := decimal.Max(player.MinSalary, decimal.Max(player.CurrentSalary, player.MarketValue))
	years := 2
	return RenewalDecision{
		TeamWantsRenewal: true,
		PlayerAccepts:    true,
		FinalSalary:      &salary,
		FinalYears:       &years,
		Reasoning:        "renewed at market value",
	}, nil
}

func (h *Heuristic) EvaluateTeamMarket(_ context.Context, in TeamMarketContext) (*OfferProposal, error) {
	if len(in.Targets) == 0 {
		return nil, nil
	}
	// Targets arrive in priority order; take the first one bid-able.
	target := in.Targets[0]
	var player *PlayerView
	for i := range in.Candidates {
		if in.Candidates[i].ID == target.PlayerID {
			player = &in.Candidates[i]
			break
		}
	}
	if player == nil {
		return nil, nil
	}
	if in.Transfer {
		fee := player.MarketValue
		return &OfferProposal{
			PlayerID:    player.ID,
			Salary:      player.CurrentSalary,
			TransferFee: &fee,
		}, nil
	}
	salary := player.MarketValue
	if salary.LessThan(player.MinSalary) {
		salary = player.MinSalary
	}
	if salary.GreaterThan(target.MaxOffer) {
		salary = target.MaxOffer
	}
	years := 3
	if player.Age >= 32 {
		years = 1
	} else if player.Age >= 28 {
		years = 2
	}
	return &OfferProposal{
		PlayerID:         player.ID,
		Salary:           salary,
		Years:            years,
		StarterGuarantee: player.Ability >= 85,
	}, nil
}

func (h *Heuristic) EvaluatePlayerOffers(_ context.Context, in PlayerOffersContext) (OfferChoice, error) {
	if len(in.Offers) == 0 {
		return OfferChoice{}, ErrNoDecision
	}
	best := in.Offers[0]
	for _, offer := range in.Offers[1:] {
		if cmp := offer.Salary.Cmp(best.Salary); cmp > 0 {
			best = offer
			continue
		} else if cmp < 0 {
			continue
		}
		if offer.SigningBonus.GreaterThan(best.SigningBonus) {
			best = offer
			continue
		}
		if offer.SigningBonus.Equal(best.SigningBonus) && offer.OfferID < best.OfferID {
			best = offer
		}
	}
	return OfferChoice{
		OfferID:   best.OfferID,
		Reasoning: "best total package",
	}, nil
}
