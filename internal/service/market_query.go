package service

import (
	"context"
	"fmt"

	"transfermarket/internal/models"
	"transfermarket/internal/repository"
)

// MarketQueryService serves the read side of the HTTP API straight from
// the persisted rows; it never touches the in-memory engine.
type MarketQueryService struct {
	Store repository.Repository
}

type MarketStatus struct {
	State      *models.MarketState      `json:"state"`
	TeamStates []models.TeamMarketState `json:"team_states"`
}

func (s *MarketQueryService) Status(ctx context.Context, seasonID string) (*MarketStatus, error) {
	state, err := s.Store.GetMarketState(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("season %s not found", seasonID)
	}
	teams, err := s.Store.ListTeamMarketStates(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	return &MarketStatus{State: state, TeamStates: teams}, nil
}

type NegotiationDetail struct {
	Negotiation models.Negotiation     `json:"negotiation"`
	Offers      []models.Offer         `json:"offers"`
	Responses   []models.OfferResponse `json:"responses"`
}

type ListNegotiationsQuery struct {
	SeasonID string
	Status   string
	PlayerID string
	Limit    int
	Offset   int
}

func (s *MarketQueryService) ListNegotiations(ctx context.Context, q ListNegotiationsQuery) ([]NegotiationDetail, error) {
	params := repository.ListNegotiationsParams{
		SeasonID: q.SeasonID,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if q.Status != "" {
		params.Status = &q.Status
	}
	if q.PlayerID != "" {
		params.PlayerID = &q.PlayerID
	}
	negs, err := s.Store.ListNegotiations(ctx, params)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(negs))
	for _, neg := range negs {
		ids = append(ids, neg.ID)
	}
	offers, err := s.Store.ListOffersByNegotiationIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	responses, err := s.Store.ListOfferResponsesByNegotiationIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	offersByNeg := map[uint64][]models.Offer{}
	for _, offer := range offers {
		offersByNeg[offer.NegotiationID] = append(offersByNeg[offer.NegotiationID], offer)
	}
	responsesByNeg := map[uint64][]models.OfferResponse{}
	for _, resp := range responses {
		responsesByNeg[resp.NegotiationID] = append(responsesByNeg[resp.NegotiationID], resp)
	}

	out := make([]NegotiationDetail, 0, len(negs))
	for _, neg := range negs {
		out = append(out, NegotiationDetail{
			Negotiation: neg,
			Offers:      offersByNeg[neg.ID],
			Responses:   responsesByNeg[neg.ID],
		})
	}
	return out, nil
}

func (s *MarketQueryService) ListTransfers(ctx context.Context, seasonID string) ([]models.Transfer, error) {
	return s.Store.ListTransfers(ctx, seasonID)
}

type ListPlayersQuery struct {
	TeamID   string
	FreeOnly bool
	Limit    int
	Offset   int
}

func (s *MarketQueryService) ListPlayers(ctx context.Context, q ListPlayersQuery) ([]models.Player, error) {
	params := repository.ListPlayersParams{
		FreeOnly: q.FreeOnly,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if q.TeamID != "" {
		params.TeamID = &q.TeamID
	}
	return s.Store.ListPlayers(ctx, params)
}

func (s *MarketQueryService) ListTeams(ctx context.Context) ([]models.Team, error) {
	return s.Store.ListTeams(ctx)
}
