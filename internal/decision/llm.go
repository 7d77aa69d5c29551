package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LLM is the generative-model-backed provider. Every method renders its
// context into a prompt, demands a strict JSON reply and refuses to invent
// values on parse failure: a malformed reply is a call failure the engine
// retries, never a silent guess.
type LLM struct {
	Client *Client
}

var _ Provider = (*LLM)(nil)

func NewLLM(client *Client) *LLM {
	return &LLM{Client: client}
}

const marketSystemPrompt = `You are the front office of a competitive-team
management game, negotiating contracts in a seasonal transfer market.
Respond ONLY with the JSON object requested, no prose.`

func (p *LLM) GenerateIntention(ctx context.Context, in IntentionContext) (IntentionDecision, error) {
	user := fmt.Sprintf(`Player %s (%s), age %d, ability %d, salary %s, market value %s, contract years left %d.
Decide the player's wish for the coming transfer window.
Reply JSON: {"intention":"stay|seek_raise|leave|retire","desired_salary":number,"desired_years":number,"reasoning":"one sentence"}`,
		in.Player.Name, in.Player.Position, in.Player.Age, in.Player.Ability,
		in.Player.CurrentSalary.String(), in.Player.MarketValue.String(), in.ContractYears)

	text, err := p.Client.Complete(ctx, marketSystemPrompt, user)
	if err != nil {
		return IntentionDecision{}, err
	}
	var parsed struct {
		Intention     string  `json:"intention"`
		DesiredSalary float64 `json:"desired_salary"`
		DesiredYears  int     `json:"desired_years"`
		Reasoning     string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return IntentionDecision{}, fmt.Errorf("parse intention reply: %w", err)
	}
	intention := strings.ToLower(strings.TrimSpace(parsed.Intention))
	switch intention {
	case "stay", "seek_raise", "leave", "retire":
	default:
		return IntentionDecision{}, fmt.Errorf("invalid intention %q", parsed.Intention)
	}
	return IntentionDecision{
		Intention:     intention,
		DesiredSalary: decimal.NewFromFloat(parsed.DesiredSalary),
		DesiredYears:  parsed.DesiredYears,
		Reasoning:     parsed.Reasoning,
	}, nil
}

func (p *LLM) GenerateStrategy(ctx context.Context, in StrategyContext) (StrategyDecision, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Team %s: budget %s, roster %d (minimum %d).\nAvailable players:\n",
		in.TeamID, in.RemainingBudget.String(), in.RosterCount, in.MinRosterSize)
	for _, candidate := range in.Candidates {
		fmt.Fprintf(&sb, "- %s %s (%s) ability %d, min salary %s, market value %s\n",
			candidate.ID, candidate.Name, candidate.Position, candidate.Ability,
			candidate.MinSalary.String(), candidate.MarketValue.String())
	}
	maxTargets := in.MaxTargets
	if maxTargets <= 0 {
		maxTargets = 5
	}
	fmt.Fprintf(&sb, `Pick up to %d targets in priority order with a max-offer ceiling each.
Reply JSON: {"targets":[{"player_id":"...","priority":1,"max_offer":number}],"reasoning":"one sentence"}`, maxTargets)

	text, err := p.Client.Complete(ctx, marketSystemPrompt, sb.String())
	if err != nil {
		return StrategyDecision{}, err
	}
	var parsed struct {
		Targets []struct {
			PlayerID string  `json:"player_id"`
			Priority int     `json:"priority"`
			MaxOffer float64 `json:"max_offer"`
		} `json:"targets"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return StrategyDecision{}, fmt.Errorf("parse strategy reply: %w", err)
	}
	known := map[string]bool{}
	for _, candidate := range in.Candidates {
		known[candidate.ID] = true
	}
	var out StrategyDecision
	out.Reasoning = parsed.Reasoning
	for _, target := range parsed.Targets {
		if !known[target.PlayerID] || len(out.Targets) >= maxTargets {
			continue
		}
		out.Targets = append(out.Targets, TargetView{
			PlayerID: target.PlayerID,
			Priority: target.Priority,
			MaxOffer: decimal.NewFromFloat(target.MaxOffer),
		})
	}
	return out, nil
}

func (p *LLM) EvaluateRenewal(ctx context.Context, in RenewalContext) (RenewalDecision, error) {
	user := fmt.Sprintf(`Team %s holds the expiring contract of %s (%s), age %d, ability %d, salary %s, market value %s, minimum acceptable %s. Player intention: %s.
Decide whether the team offers a renewal and whether the player accepts.
Reply JSON: {"team_wants_renewal":bool,"player_accepts":bool,"final_salary":number,"final_years":number,"reasoning":"one sentence"}`,
		in.TeamID, in.Player.Name, in.Player.Position, in.Player.Age, in.Player.Ability,
		in.Player.CurrentSalary.String(), in.Player.MarketValue.String(), in.Player.MinSalary.String(), in.Intention)

	text, err := p.Client.Complete(ctx, marketSystemPrompt, user)
	if err != nil {
		return RenewalDecision{}, err
	}
	var parsed struct {
		TeamWantsRenewal bool    `json:"team_wants_renewal"`
		PlayerAccepts    bool    `json:"player_accepts"`
		FinalSalary      float64 `json:"final_salary"`
		FinalYears       int     `json:"final_years"`
		Reasoning        string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return RenewalDecision{}, fmt.Errorf("parse renewal reply: %w", err)
	}
	out := RenewalDecision{
		TeamWantsRenewal: parsed.TeamWantsRenewal,
		PlayerAccepts:    parsed.PlayerAccepts,
		Reasoning:        parsed.Reasoning,
	}
	if parsed.TeamWantsRenewal && parsed.PlayerAccepts {
		if parsed.FinalSalary <= 0 || parsed.FinalYears <= 0 {
			return RenewalDecision{}, fmt.Errorf("accepted renewal without final terms")
		}
		salary := decimal.NewFromFloat(parsed.FinalSalary)
		years := parsed.FinalYears
		out.FinalSalary = &salary
		out.FinalYears = &years
	}
	return out, nil
}

func (p *LLM) EvaluateTeamMarket(ctx context.Context, in TeamMarketContext) (*OfferProposal, error) {
	var sb strings.Builder
	kind := "free-agent signing"
	if in.Transfer {
		kind = "paid transfer (salary is fixed to the current contract; you bid the fee)"
	}
	fmt.Fprintf(&sb, "Team %s, round %d, %s. Remaining budget %s.\nTargets in priority order:\n",
		in.TeamID, in.Round, kind, in.RemainingBudget.String())
	for _, target := range in.Targets {
		for _, candidate := range in.Candidates {
			if candidate.ID != target.PlayerID {
				continue
			}
			fmt.Fprintf(&sb, "- %s %s (%s) ability %d, min salary %s, market value %s, ceiling %s\n",
				candidate.ID, candidate.Name, candidate.Position, candidate.Ability,
				candidate.MinSalary.String(), candidate.MarketValue.String(), target.MaxOffer.String())
		}
	}
	sb.WriteString(`Pick at most ONE target and concrete terms, or pass.
Reply JSON: {"player_id":"... or empty to pass","salary":number,"years":number,"signing_bonus":number,"starter_guarantee":bool,"transfer_fee":number}`)

	text, err := p.Client.Complete(ctx, marketSystemPrompt, sb.String())
	if err != nil {
		return nil, err
	}
	var parsed struct {
		PlayerID         string  `json:"player_id"`
		Salary           float64 `json:"salary"`
		Years            int     `json:"years"`
		SigningBonus     float64 `json:"signing_bonus"`
		StarterGuarantee bool    `json:"starter_guarantee"`
		TransferFee      float64 `json:"transfer_fee"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return nil, fmt.Errorf("parse team market reply: %w", err)
	}
	if strings.TrimSpace(parsed.PlayerID) == "" {
		return nil, nil
	}
	proposal := &OfferProposal{
		PlayerID:         parsed.PlayerID,
		Salary:           decimal.NewFromFloat(parsed.Salary),
		Years:            parsed.Years,
		SigningBonus:     decimal.NewFromFloat(parsed.SigningBonus),
		StarterGuarantee: parsed.StarterGuarantee,
	}
	if in.Transfer {
		fee := decimal.NewFromFloat(parsed.TransferFee)
		proposal.TransferFee = &fee
	}
	return proposal, nil
}

func (p *LLM) EvaluatePlayerOffers(ctx context.Context, in PlayerOffersContext) (OfferChoice, error) {
	if len(in.Offers) == 0 {
		return OfferChoice{}, ErrNoDecision
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Player %s (%s), ability %d, intention %q, must choose one offer:\n",
		in.Player.Name, in.Player.Position, in.Player.Ability, in.Intention)
	for _, offer := range in.Offers {
		fee := "-"
		if offer.TransferFee != nil {
			fee = offer.TransferFee.String()
		}
		fmt.Fprintf(&sb, "- offer %d from %s: salary %s, years %d, bonus %s, starter %v, fee %s\n",
			offer.OfferID, offer.FromTeamID, offer.Salary.String(), offer.Years,
			offer.SigningBonus.String(), offer.StarterGuarantee, fee)
	}
	sb.WriteString(`Declining is not an option.
Reply JSON: {"offer_id":number,"reasoning":"one sentence"}`)

	text, err := p.Client.Complete(ctx, marketSystemPrompt, sb.String())
	if err != nil {
		return OfferChoice{}, err
	}
	var parsed struct {
		OfferID   uint64 `json:"offer_id"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &parsed); err != nil {
		return OfferChoice{}, fmt.Errorf("parse offer choice reply: %w", err)
	}
	if parsed.OfferID == 0 {
		return OfferChoice{}, ErrNoDecision
	}
	return OfferChoice{OfferID: parsed.OfferID, Reasoning: parsed.Reasoning}, nil
}
