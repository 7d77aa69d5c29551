// Package decision defines the capability that chooses offers, acceptances
// and plans on behalf of teams and players. The market engine depends on
// this interface only; whether the policy behind it is a generative model
// or a rule table is invisible to the protocol.
package decision

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoDecision signals that the provider declined to choose. Callers with
// a forced-choice contract substitute their deterministic fallback; it is
// distinct from a transport failure, which leaves the unit unevaluated.
var ErrNoDecision = errors.New("decision: provider declined to choose")

type PlayerView struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Position      string          `json:"position"`
	Age           int             `json:"age"`
	Ability       int             `json:"ability"`
	MarketValue   decimal.Decimal `json:"market_value"`
	MinSalary     decimal.Decimal `json:"min_salary"`
	CurrentSalary decimal.Decimal `json:"current_salary"`
}

type TargetView struct {
	PlayerID string          `json:"player_id"`
	Priority int             `json:"priority"`
	MaxOffer decimal.Decimal `json:"max_offer"`
}

type IntentionContext struct {
	SeasonID      string
	Player        PlayerView
	TeamID        string
	ContractYears int
	RetirementAge int
}

type IntentionDecision struct {
	Intention     string
	DesiredSalary decimal.Decimal
	DesiredYears  int
	Reasoning     string
}

type StrategyContext struct {
	SeasonID        string
	TeamID          string
	RemainingBudget decimal.Decimal
	RosterCount     int
	MinRosterSize   int
	Candidates      []PlayerView
	MaxTargets      int
}

type StrategyDecision struct {
	Targets   []TargetView
	Reasoning string
}

type RenewalContext struct {
	SeasonID      string
	TeamID        string
	Player        PlayerView
	Intention     string
	ContractYears int
}

type RenewalDecision struct {
	TeamWantsRenewal bool
	PlayerAccepts    bool
	FinalSalary      *decimal.Decimal
	FinalYears       *int
	Reasoning        string
}

// TeamMarketContext carries everything a team needs to place (at most) one
// offer this round. Targets are pre-filtered to eligible candidates in
// priority order; AlreadyOffered lists players this team has live offers on.
type TeamMarketContext struct {
	SeasonID        string
	TeamID          string
	Round           uint
	Transfer        bool
	RemainingBudget decimal.Decimal
	Targets         []TargetView
	Candidates      []PlayerView
	AlreadyOffered  []string
}

type OfferProposal struct {
	PlayerID         string
	Salary           decimal.Decimal
	Years            int
	SigningBonus     decimal.Decimal
	StarterGuarantee bool
	TransferFee      *decimal.Decimal
}

type OfferView struct {
	OfferID          uint64
	FromTeamID       string
	Salary           decimal.Decimal
	Years            int
	SigningBonus     decimal.Decimal
	StarterGuarantee bool
	TransferFee      *decimal.Decimal
}

type PlayerOffersContext struct {
	SeasonID  string
	Round     uint
	Player    PlayerView
	Intention string
	Offers    []OfferView
}

type OfferChoice struct {
	OfferID   uint64
	Reasoning string
}

// Provider is consumed, never implemented, by the market engine. Every call
// is fallible; the engine records a failed unit as not-yet-evaluated and
// retries it on the next invocation.
type Provider interface {
	GenerateIntention(ctx context.Context, in IntentionContext) (IntentionDecision, error)
	GenerateStrategy(ctx context.Context, in StrategyContext) (StrategyDecision, error)
	EvaluateRenewal(ctx context.Context, in RenewalContext) (RenewalDecision, error)

	// EvaluateTeamMarket returns nil when the team makes no offer this round.
	EvaluateTeamMarket(ctx context.Context, in TeamMarketContext) (*OfferProposal, error)

	// EvaluatePlayerOffers must choose exactly one of the pending offers.
	// ErrNoDecision triggers the engine's highest-salary fallback.
	EvaluatePlayerOffers(ctx context.Context, in PlayerOffersContext) (OfferChoice, error)
}
