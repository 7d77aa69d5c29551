package market

import (
	"testing"

	"transfermarket/internal/models"
)

func TestStateRoundTrip(t *testing.T) {
	st := NewState("s1")
	st.Phase = PhaseTransferRounds
	st.Round = 4
	st.TransferRound = 2
	st.StableRounds = 1
	st.AddFreeAgent("p1")
	st.AddPoachable("p2")
	st.AddActiveNegotiation(7)
	st.AddCompletedTransfer(3)
	st.Teams["t1"] = &TeamState{
		TeamID: "t1", RemainingBudget: dec(250), RosterCount: 11,
		MinRosterSize: 12, NeedsEmergencySigning: true, StrategyGenerated: true,
	}
	st.MarkTeamEvaluated("t1")

	row, teamRows, err := StateToModels(st)
	if err != nil {
		t.Fatalf("to models: %v", err)
	}
	if row.SeasonID != "s1" || row.Phase != "transfer_rounds" {
		t.Fatalf("row = %+v", row)
	}
	if len(teamRows) != 1 || teamRows[0].SeasonID != "s1" {
		t.Fatalf("team rows = %+v", teamRows)
	}

	loaded, err := StateFromModels(row, teamRows)
	if err != nil {
		t.Fatalf("from models: %v", err)
	}
	if loaded.Phase != PhaseTransferRounds || loaded.Round != 4 || loaded.TransferRound != 2 {
		t.Fatalf("loaded = %+v", loaded)
	}
	if !loaded.IsFreeAgent("p1") || !loaded.IsPoachable("p2") {
		t.Fatalf("pools lost: %+v", loaded)
	}
	if len(loaded.ActiveNegotiations) != 1 || loaded.ActiveNegotiations[0] != 7 {
		t.Fatalf("active negotiations = %v", loaded.ActiveNegotiations)
	}
	team := loaded.Team("t1")
	if team == nil || !team.RemainingBudget.Equal(dec(250)) || !team.NeedsEmergencySigning {
		t.Fatalf("team state = %+v", team)
	}
	// The dedupe set is per-process and never rides the checkpoint.
	if loaded.TeamEvaluated("t1") {
		t.Fatalf("evaluated set must start empty after a reload")
	}
}

func TestStateFromModelsRejectsUnknownPhase(t *testing.T) {
	_, err := StateFromModels(&models.MarketState{SeasonID: "s1", Phase: "preseason"}, nil)
	if err == nil {
		t.Fatalf("unknown phase must be rejected")
	}
}

func TestLedgerRoundTripResumesIDs(t *testing.T) {
	src := NewLedger()
	neg := src.FindOrCreate(PlayerRef{ID: "p1", Name: "Ada", Position: "GK", Ability: 80}, 1, false, nil)
	offerA, err := src.AddOffer(neg.ID, OfferTerms{FromTeamID: "t1", Round: 1, Salary: dec(120), Years: 2})
	if err != nil {
		t.Fatalf("add offer: %v", err)
	}
	if _, err := src.AddOffer(neg.ID, OfferTerms{FromTeamID: "t2", Round: 1, Salary: dec(140), Years: 3, SigningBonus: dec(10)}); err != nil {
		t.Fatalf("add offer: %v", err)
	}
	if _, err := src.ResolveByAcceptance(neg.ID, offerA.ID, 1, "loyalty"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	open := src.FindOrCreate(PlayerRef{ID: "p2", Name: "Bo"}, 2, false, nil)
	if _, err := src.AddOffer(open.ID, OfferTerms{FromTeamID: "t1", Round: 2, Salary: dec(90), Years: 1}); err != nil {
		t.Fatalf("add offer: %v", err)
	}

	var negRows []models.Negotiation
	var offerRows []models.Offer
	var respRows []models.OfferResponse
	for _, n := range src.All() {
		row, err := NegotiationToModel("s1", n)
		if err != nil {
			t.Fatalf("negotiation to model: %v", err)
		}
		negRows = append(negRows, *row)
		for _, o := range n.Offers {
			offerRows = append(offerRows, *OfferToModel(o))
		}
		for _, r := range n.Responses {
			respRows = append(respRows, *ResponseToModel(r))
		}
	}

	loaded, err := LedgerFromModels(negRows, offerRows, respRows)
	if err != nil {
		t.Fatalf("from models: %v", err)
	}

	got := loaded.Get(neg.ID)
	if got == nil || got.Status != NegotiationAccepted {
		t.Fatalf("accepted negotiation lost: %+v", got)
	}
	if got.Final == nil || got.Final.TeamID != "t1" || !got.Final.Salary.Equal(dec(120)) {
		t.Fatalf("final terms = %+v", got.Final)
	}
	if len(got.Offers) != 2 || len(got.Responses) != 2 {
		t.Fatalf("offers/responses = %d/%d, want 2/2", len(got.Offers), len(got.Responses))
	}
	if len(got.CompetingTeams) != 2 {
		t.Fatalf("competing teams = %v", got.CompetingTeams)
	}
	if loaded.OpenForPlayer("p2") == nil {
		t.Fatalf("open negotiation index lost")
	}
	if loaded.OpenForPlayer("p1") != nil {
		t.Fatalf("closed negotiation indexed as open")
	}

	// Ids must continue past everything persisted.
	fresh := loaded.FindOrCreate(PlayerRef{ID: "p3", Name: "Cy"}, 3, false, nil)
	if fresh.ID <= open.ID {
		t.Fatalf("negotiation id %d not past persisted max %d", fresh.ID, open.ID)
	}
	offer, err := loaded.AddOffer(fresh.ID, OfferTerms{FromTeamID: "t2", Round: 3, Salary: dec(80), Years: 1})
	if err != nil {
		t.Fatalf("add offer: %v", err)
	}
	for _, row := range offerRows {
		if offer.ID == row.ID {
			t.Fatalf("offer id %d reused", offer.ID)
		}
	}
}

func TestLedgerFromModelsRejectsBrokenRows(t *testing.T) {
	_, err := LedgerFromModels([]models.Negotiation{
		{ID: 1, SeasonID: "s1", PlayerID: "p1", Status: string(NegotiationAccepted)},
	}, nil, nil)
	if err == nil {
		t.Fatalf("accepted row without final terms must be rejected")
	}

	_, err = LedgerFromModels(nil, []models.Offer{{ID: 1, NegotiationID: 99}}, nil)
	if err == nil {
		t.Fatalf("offer pointing at a missing negotiation must be rejected")
	}
}
