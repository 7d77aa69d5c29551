package market

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

type NegotiationStatus string

const (
	NegotiationOpen      NegotiationStatus = "open"
	NegotiationAccepted  NegotiationStatus = "accepted"
	NegotiationRejected  NegotiationStatus = "rejected"
	NegotiationExpired   NegotiationStatus = "expired"
	NegotiationWithdrawn NegotiationStatus = "withdrawn"
)

func (s NegotiationStatus) Terminal() bool {
	return s != NegotiationOpen
}

type OfferStatus string

const (
	OfferPending   OfferStatus = "pending"
	OfferAccepted  OfferStatus = "accepted"
	OfferRejected  OfferStatus = "rejected"
	OfferCountered OfferStatus = "countered"
	OfferWithdrawn OfferStatus = "withdrawn"
	OfferExpired   OfferStatus = "expired"
)

type Offer struct {
	ID            uint64
	NegotiationID uint64
	FromTeamID    string
	Round         uint

	Salary           decimal.Decimal
	Years            int
	SigningBonus     decimal.Decimal
	TransferFee      *decimal.Decimal
	StarterGuarantee bool

	Status OfferStatus
}

type OfferResponse struct {
	NegotiationID uint64
	OfferID       uint64
	Round         uint
	Accepted      bool
	Reasoning     string
}

// SigningTerms are the final terms of an accepted negotiation.
type SigningTerms struct {
	TeamID       string
	Salary       decimal.Decimal
	Years        int
	SigningBonus decimal.Decimal
	TransferFee  *decimal.Decimal
}

// Negotiation is one player's contract process: an append-only offer and
// response history plus a status that flips exactly once into a terminal
// value.
type Negotiation struct {
	ID           uint64
	PlayerID     string
	PlayerName   string
	Position     string
	Ability      int
	OriginTeamID *string

	Status       NegotiationStatus
	CurrentRound uint

	IsTransfer  bool
	TransferFee *decimal.Decimal

	Offers    []*Offer
	Responses []OfferResponse

	// Reporting only.
	CompetingTeams []string

	Final *SigningTerms
}

func (n *Negotiation) PendingOffers() []*Offer {
	var pending []*Offer
	for _, offer := range n.Offers {
		if offer.Status == OfferPending {
			pending = append(pending, offer)
		}
	}
	return pending
}

func (n *Negotiation) OfferByID(id uint64) *Offer {
	for _, offer := range n.Offers {
		if offer.ID == id {
			return offer
		}
	}
	return nil
}

// HasOfferFrom reports whether the team already has any offer in this
// negotiation, regardless of round or status.
func (n *Negotiation) HasOfferFrom(teamID string) bool {
	for _, offer := range n.Offers {
		if offer.FromTeamID == teamID {
			return true
		}
	}
	return false
}

// Ledger owns every negotiation of one season's window. Ids are assigned
// monotonically and never reused; negotiations are never deleted, only
// moved to a terminal status.
type Ledger struct {
	byID         map[uint64]*Negotiation
	openByPlayer map[string]uint64
	nextNegID    uint64
	nextOfferID  uint64
}

func NewLedger() *Ledger {
	return &Ledger{
		byID:         map[uint64]*Negotiation{},
		openByPlayer: map[string]uint64{},
		nextNegID:    1,
		nextOfferID:  1,
	}
}

func (l *Ledger) Get(id uint64) *Negotiation {
	return l.byID[id]
}

func (l *Ledger) OpenForPlayer(playerID string) *Negotiation {
	if id, ok := l.openByPlayer[playerID]; ok {
		return l.byID[id]
	}
	return nil
}

func (l *Ledger) All() []*Negotiation {
	out := make([]*Negotiation, 0, len(l.byID))
	for _, neg := range l.byID {
		out = append(out, neg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OpenWithPending returns open negotiations that have at least one pending
// offer, in id order.
func (l *Ledger) OpenWithPending() []*Negotiation {
	var out []*Negotiation
	for _, neg := range l.All() {
		if neg.Status == NegotiationOpen && len(neg.PendingOffers()) > 0 {
			out = append(out, neg)
		}
	}
	return out
}

// PlayerRef identifies the player a negotiation is being opened for.
type PlayerRef struct {
	ID           string
	Name         string
	Position     string
	Ability      int
	OriginTeamID *string
}

// FindOrCreate returns the player's open negotiation, creating one if none
// exists.
func (l *Ledger) FindOrCreate(player PlayerRef, round uint, transfer bool, fee *decimal.Decimal) *Negotiation {
	if existing := l.OpenForPlayer(player.ID); existing != nil {
		return existing
	}
	neg := &Negotiation{
		ID:           l.nextNegID,
		PlayerID:     player.ID,
		PlayerName:   player.Name,
		Position:     player.Position,
		Ability:      player.Ability,
		OriginTeamID: player.OriginTeamID,
		Status:       NegotiationOpen,
		CurrentRound: round,
		IsTransfer:   transfer,
		TransferFee:  fee,
	}
	l.nextNegID++
	l.byID[neg.ID] = neg
	l.openByPlayer[player.ID] = neg.ID
	return neg
}

// OfferTerms are the inputs of AddOffer; ids and status are ledger-owned.
type OfferTerms struct {
	FromTeamID       string
	Round            uint
	Salary           decimal.Decimal
	Years            int
	SigningBonus     decimal.Decimal
	TransferFee      *decimal.Decimal
	StarterGuarantee bool
}

// AddOffer appends a pending offer and registers the offering team in the
// competing-team set. A second offer from the same team in the same round
// returns the existing offer unchanged, which is what makes a retried round
// merge idempotent.
func (l *Ledger) AddOffer(negotiationID uint64, terms OfferTerms) (*Offer, error) {
	neg := l.byID[negotiationID]
	if neg == nil {
		return nil, fmt.Errorf("negotiation %d not found", negotiationID)
	}
	if neg.Status != NegotiationOpen {
		return nil, fmt.Errorf("negotiation %d is %s, cannot add offer", negotiationID, neg.Status)
	}
	for _, offer := range neg.Offers {
		if offer.FromTeamID == terms.FromTeamID && offer.Round == terms.Round {
			return offer, nil
		}
	}
	offer := &Offer{
		ID:               l.nextOfferID,
		NegotiationID:    negotiationID,
		FromTeamID:       terms.FromTeamID,
		Round:            terms.Round,
		Salary:           terms.Salary,
		Years:            terms.Years,
		SigningBonus:     terms.SigningBonus,
		TransferFee:      terms.TransferFee,
		StarterGuarantee: terms.StarterGuarantee,
		Status:           OfferPending,
	}
	l.nextOfferID++
	neg.Offers = append(neg.Offers, offer)
	neg.CurrentRound = terms.Round
	if !contains(neg.CompetingTeams, terms.FromTeamID) {
		neg.CompetingTeams = append(neg.CompetingTeams, terms.FromTeamID)
	}
	return offer, nil
}

// FallbackChoice is the deterministic forced-choice resolution: highest
// salary, then highest transfer fee, then highest signing bonus, then lowest
// offer id. It never returns 0 while pending offers exist.
func (l *Ledger) FallbackChoice(negotiationID uint64) uint64 {
	neg := l.byID[negotiationID]
	if neg == nil {
		return 0
	}
	var best *Offer
	for _, offer := range neg.PendingOffers() {
		if best == nil {
			best = offer
			continue
		}
		if cmp := offer.Salary.Cmp(best.Salary); cmp != 0 {
			if cmp > 0 {
				best = offer
			}
			continue
		}
		if cmp := cmpFee(offer.TransferFee, best.TransferFee); cmp != 0 {
			if cmp > 0 {
				best = offer
			}
			continue
		}
		if cmp := offer.SigningBonus.Cmp(best.SigningBonus); cmp != 0 {
			if cmp > 0 {
				best = offer
			}
			continue
		}
		if offer.ID < best.ID {
			best = offer
		}
	}
	if best == nil {
		return 0
	}
	return best.ID
}

// Resolution is what a closed negotiation produced.
type Resolution struct {
	Negotiation *Negotiation
	Accepted    *Offer
	Rejected    []*Offer
}

// ResolveByAcceptance is the single mutation point that can close a
// negotiation: it marks the chosen offer accepted, rejects every other
// pending sibling in the same step, appends the matching responses and sets
// the final signing terms. No other path may flip status to accepted.
func (l *Ledger) ResolveByAcceptance(negotiationID, offerID uint64, round uint, reasoning string) (*Resolution, error) {
	neg := l.byID[negotiationID]
	if neg == nil {
		return nil, fmt.Errorf("negotiation %d not found", negotiationID)
	}
	if neg.Status != NegotiationOpen {
		return nil, fmt.Errorf("negotiation %d already %s", negotiationID, neg.Status)
	}
	chosen := neg.OfferByID(offerID)
	if chosen == nil {
		return nil, fmt.Errorf("offer %d not found in negotiation %d", offerID, negotiationID)
	}
	if chosen.Status != OfferPending {
		return nil, fmt.Errorf("offer %d is %s, not pending", offerID, chosen.Status)
	}

	res := &Resolution{Negotiation: neg, Accepted: chosen}
	chosen.Status = OfferAccepted
	neg.Responses = append(neg.Responses, OfferResponse{
		NegotiationID: neg.ID,
		OfferID:       chosen.ID,
		Round:         round,
		Accepted:      true,
		Reasoning:     reasoning,
	})
	for _, offer := range neg.Offers {
		if offer.ID == chosen.ID || offer.Status != OfferPending {
			continue
		}
		offer.Status = OfferRejected
		neg.Responses = append(neg.Responses, OfferResponse{
			NegotiationID: neg.ID,
			OfferID:       offer.ID,
			Round:         round,
			Accepted:      false,
			Reasoning:     "another offer was accepted",
		})
		res.Rejected = append(res.Rejected, offer)
	}

	neg.Status = NegotiationAccepted
	neg.CurrentRound = round
	neg.Final = &SigningTerms{
		TeamID:       chosen.FromTeamID,
		Salary:       chosen.Salary,
		Years:        chosen.Years,
		SigningBonus: chosen.SigningBonus,
		TransferFee:  chosen.TransferFee,
	}
	delete(l.openByPlayer, neg.PlayerID)
	return res, nil
}

// Expire closes a still-open negotiation without a signing; pending offers
// expire with it.
func (l *Ledger) Expire(negotiationID uint64) error {
	neg := l.byID[negotiationID]
	if neg == nil {
		return fmt.Errorf("negotiation %d not found", negotiationID)
	}
	if neg.Status != NegotiationOpen {
		return nil
	}
	for _, offer := range neg.Offers {
		if offer.Status == OfferPending {
			offer.Status = OfferExpired
		}
	}
	neg.Status = NegotiationExpired
	delete(l.openByPlayer, neg.PlayerID)
	return nil
}

func cmpFee(a, b *decimal.Decimal) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Cmp(*b)
	}
}
