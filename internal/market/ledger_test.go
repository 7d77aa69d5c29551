package market

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestAddOfferIdempotentPerTeamAndRound(t *testing.T) {
	ledger := NewLedger()
	neg := ledger.FindOrCreate(PlayerRef{ID: "p1", Name: "Ada"}, 1, false, nil)

	first, err := ledger.AddOffer(neg.ID, OfferTerms{FromTeamID: "t1", Round: 1, Salary: dec(100), Years: 2})
	if err != nil {
		t.Fatalf("add offer: %v", err)
	}
	again, err := ledger.AddOffer(neg.ID, OfferTerms{FromTeamID: "t1", Round: 1, Salary: dec(999), Years: 9})
	if err != nil {
		t.Fatalf("replayed add offer: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("replay created a new offer: %d vs %d", again.ID, first.ID)
	}
	if !again.Salary.Equal(dec(100)) {
		t.Fatalf("replay mutated the stored offer: %s", again.Salary)
	}
	if len(neg.Offers) != 1 {
		t.Fatalf("offers = %d, want 1", len(neg.Offers))
	}

	// Same team, later round: a new offer.
	later, err := ledger.AddOffer(neg.ID, OfferTerms{FromTeamID: "t1", Round: 2, Salary: dec(110), Years: 2})
	if err != nil {
		t.Fatalf("add offer round 2: %v", err)
	}
	if later.ID == first.ID {
		t.Fatalf("new round reused the old offer id")
	}
	if len(neg.CompetingTeams) != 1 {
		t.Fatalf("competing teams = %v, want just t1", neg.CompetingTeams)
	}
}

func TestFindOrCreateReturnsOpenNegotiation(t *testing.T) {
	ledger := NewLedger()
	a := ledger.FindOrCreate(PlayerRef{ID: "p1"}, 1, false, nil)
	b := ledger.FindOrCreate(PlayerRef{ID: "p1"}, 2, false, nil)
	if a.ID != b.ID {
		t.Fatalf("second FindOrCreate created a new negotiation: %d vs %d", b.ID, a.ID)
	}
	if a.ID == 0 {
		t.Fatalf("ids must start at 1")
	}
}

func TestResolveByAcceptance(t *testing.T) {
	ledger := NewLedger()
	neg := ledger.FindOrCreate(PlayerRef{ID: "p1"}, 1, false, nil)
	chosen, _ := ledger.AddOffer(neg.ID, OfferTerms{FromTeamID: "t1", Round: 1, Salary: dec(100), Years: 3, SigningBonus: dec(5)})
	other, _ := ledger.AddOffer(neg.ID, OfferTerms{FromTeamID: "t2", Round: 1, Salary: dec(90), Years: 2})

	res, err := ledger.ResolveByAcceptance(neg.ID, chosen.ID, 1, "best package")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Accepted.ID != chosen.ID {
		t.Fatalf("accepted %d, want %d", res.Accepted.ID, chosen.ID)
	}
	if neg.Status != NegotiationAccepted {
		t.Fatalf("status = %s, want accepted", neg.Status)
	}
	if other.Status != OfferRejected {
		t.Fatalf("sibling offer = %s, want rejected", other.Status)
	}
	if len(neg.Responses) != 2 {
		t.Fatalf("responses = %d, want 2 (accept + reject)", len(neg.Responses))
	}
	if neg.Final == nil || neg.Final.TeamID != "t1" || !neg.Final.Salary.Equal(dec(100)) {
		t.Fatalf("final terms %+v not taken from the accepted offer", neg.Final)
	}

	// Terminal is terminal.
	if _, err := ledger.ResolveByAcceptance(neg.ID, other.ID, 2, ""); err == nil {
		t.Fatalf("resolving a closed negotiation must fail")
	}
	if _, err := ledger.AddOffer(neg.ID, OfferTerms{FromTeamID: "t3", Round: 2, Salary: dec(500)}); err == nil {
		t.Fatalf("adding an offer to a closed negotiation must fail")
	}
	if ledger.OpenForPlayer("p1") != nil {
		t.Fatalf("player must have no open negotiation after acceptance")
	}

	// A new negotiation for the same player gets a fresh id.
	next := ledger.FindOrCreate(PlayerRef{ID: "p1"}, 3, false, nil)
	if next.ID == neg.ID {
		t.Fatalf("negotiation id reused")
	}
}

func TestFallbackChoiceOrdering(t *testing.T) {
	fee5, fee9 := dec(5), dec(9)
	cases := []struct {
		name   string
		offers []OfferTerms
		want   int // index into offers
	}{
		{
			name: "highest salary wins",
			offers: []OfferTerms{
				{FromTeamID: "t1", Round: 1, Salary: dec(90)},
				{FromTeamID: "t2", Round: 1, Salary: dec(120)},
			},
			want: 1,
		},
		{
			name: "salary tie broken by fee",
			offers: []OfferTerms{
				{FromTeamID: "t1", Round: 1, Salary: dec(100), TransferFee: &fee5},
				{FromTeamID: "t2", Round: 1, Salary: dec(100), TransferFee: &fee9},
			},
			want: 1,
		},
		{
			name: "fee tie broken by bonus",
			offers: []OfferTerms{
				{FromTeamID: "t1", Round: 1, Salary: dec(100), SigningBonus: dec(10)},
				{FromTeamID: "t2", Round: 1, Salary: dec(100), SigningBonus: dec(2)},
			},
			want: 0,
		},
		{
			name: "full tie broken by lowest id",
			offers: []OfferTerms{
				{FromTeamID: "t1", Round: 1, Salary: dec(100)},
				{FromTeamID: "t2", Round: 1, Salary: dec(100)},
			},
			want: 0,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger := NewLedger()
			neg := ledger.FindOrCreate(PlayerRef{ID: "p1"}, 1, false, nil)
			ids := make([]uint64, len(tc.offers))
			for i, terms := range tc.offers {
				offer, err := ledger.AddOffer(neg.ID, terms)
				if err != nil {
					t.Fatalf("add offer %d: %v", i, err)
				}
				ids[i] = offer.ID
			}
			got := ledger.FallbackChoice(neg.ID)
			if got != ids[tc.want] {
				t.Fatalf("fallback chose %d, want offer %d", got, ids[tc.want])
			}
		})
	}
}

func TestExpireClosesPendingOffers(t *testing.T) {
	ledger := NewLedger()
	neg := ledger.FindOrCreate(PlayerRef{ID: "p1"}, 1, false, nil)
	offer, _ := ledger.AddOffer(neg.ID, OfferTerms{FromTeamID: "t1", Round: 1, Salary: dec(100)})

	if err := ledger.Expire(neg.ID); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if neg.Status != NegotiationExpired {
		t.Fatalf("status = %s, want expired", neg.Status)
	}
	if offer.Status != OfferExpired {
		t.Fatalf("offer status = %s, want expired", offer.Status)
	}
	if ledger.OpenForPlayer("p1") != nil {
		t.Fatalf("expired negotiation must not stay open for the player")
	}
	// Expiring again is a no-op.
	if err := ledger.Expire(neg.ID); err != nil {
		t.Fatalf("re-expire: %v", err)
	}
}

func TestFreeAgentPoachableMutualExclusion(t *testing.T) {
	st := NewState("s1")
	st.AddPoachable("p1")
	st.AddFreeAgent("p1")
	if st.IsPoachable("p1") {
		t.Fatalf("player in both pools")
	}
	if !st.IsFreeAgent("p1") {
		t.Fatalf("player lost from free agents")
	}
	st.AddPoachable("p1")
	if st.IsFreeAgent("p1") {
		t.Fatalf("player in both pools after move back")
	}
}
