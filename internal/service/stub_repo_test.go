package service

import (
	"context"
	"sort"
	"sync"

	"gorm.io/gorm"

	"transfermarket/internal/models"
	"transfermarket/internal/repository"
)

// stubRepo is an in-memory repository.Repository. Tx variants ignore the
// nil *gorm.DB; InTx just runs the function, so "transactions" are not
// atomic here, which is fine for exercising the service logic.
type stubRepo struct {
	mu sync.Mutex

	teams      []models.Team
	players    map[string]*models.Player
	states     map[string]*models.MarketState
	teamStates map[string]map[string]*models.TeamMarketState

	intentions map[string]*models.PlayerIntention // seasonID+"/"+playerID
	strategies map[string]*models.TeamStrategy    // seasonID+"/"+teamID
	renewals   map[string]*models.Renewal         // seasonID+"/"+playerID

	negotiations map[uint64]*models.Negotiation
	offers       map[uint64]*models.Offer
	responses    []models.OfferResponse
	transfers    map[uint64]*models.Transfer // keyed by negotiation id

	nextRowID uint64
}

var _ repository.Repository = (*stubRepo)(nil)

func newStubRepo() *stubRepo {
	return &stubRepo{
		players:      map[string]*models.Player{},
		states:       map[string]*models.MarketState{},
		teamStates:   map[string]map[string]*models.TeamMarketState{},
		intentions:   map[string]*models.PlayerIntention{},
		strategies:   map[string]*models.TeamStrategy{},
		renewals:     map[string]*models.Renewal{},
		negotiations: map[uint64]*models.Negotiation{},
		offers:       map[uint64]*models.Offer{},
		transfers:    map[uint64]*models.Transfer{},
	}
}

func (s *stubRepo) addTeam(t models.Team) {
	s.teams = append(s.teams, t)
}

func (s *stubRepo) addPlayer(p models.Player) {
	if p.Status == "" {
		p.Status = models.PlayerStatusActive
	}
	copied := p
	s.players[p.ID] = &copied
}

func (s *stubRepo) InTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (s *stubRepo) ListTeams(context.Context) ([]models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Team(nil), s.teams...), nil
}

func (s *stubRepo) ListPlayers(_ context.Context, params repository.ListPlayersParams) ([]models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Player
	for _, p := range s.players {
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		if params.FreeOnly && p.TeamID != nil {
			continue
		}
		if params.TeamID != nil && (p.TeamID == nil || *p.TeamID != *params.TeamID) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) GetPlayerByID(_ context.Context, id string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (s *stubRepo) SavePlayerTx(_ context.Context, _ *gorm.DB, item *models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.players[item.ID] = &copied
	return nil
}

func (s *stubRepo) GetMarketState(_ context.Context, seasonID string) (*models.MarketState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.states[seasonID]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (s *stubRepo) UpsertMarketStateTx(_ context.Context, _ *gorm.DB, item *models.MarketState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.states[item.SeasonID] = &copied
	return nil
}

func (s *stubRepo) ListTeamMarketStates(_ context.Context, seasonID string) ([]models.TeamMarketState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TeamMarketState
	for _, row := range s.teamStates[seasonID] {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out, nil
}

func (s *stubRepo) UpsertTeamMarketStateTx(_ context.Context, _ *gorm.DB, item *models.TeamMarketState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.teamStates[item.SeasonID] == nil {
		s.teamStates[item.SeasonID] = map[string]*models.TeamMarketState{}
	}
	copied := *item
	s.teamStates[item.SeasonID][item.TeamID] = &copied
	return nil
}

func (s *stubRepo) UpsertPlayerIntention(_ context.Context, item *models.PlayerIntention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.intentions[item.SeasonID+"/"+item.PlayerID] = &copied
	return nil
}

func (s *stubRepo) ListPlayerIntentions(_ context.Context, seasonID string) ([]models.PlayerIntention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PlayerIntention
	for _, row := range s.intentions {
		if row.SeasonID == seasonID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (s *stubRepo) UpsertTeamStrategy(_ context.Context, item *models.TeamStrategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.strategies[item.SeasonID+"/"+item.TeamID] = &copied
	return nil
}

func (s *stubRepo) ListTeamStrategies(_ context.Context, seasonID string) ([]models.TeamStrategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TeamStrategy
	for _, row := range s.strategies {
		if row.SeasonID == seasonID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out, nil
}

func (s *stubRepo) UpsertRenewal(_ context.Context, item *models.Renewal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.renewals[item.SeasonID+"/"+item.PlayerID] = &copied
	return nil
}

func (s *stubRepo) ListRenewals(_ context.Context, seasonID string) ([]models.Renewal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Renewal
	for _, row := range s.renewals {
		if row.SeasonID == seasonID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

func (s *stubRepo) UpsertNegotiationTx(_ context.Context, _ *gorm.DB, item *models.Negotiation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.negotiations[item.ID] = &copied
	return nil
}

func (s *stubRepo) ListNegotiations(_ context.Context, params repository.ListNegotiationsParams) ([]models.Negotiation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Negotiation
	for _, row := range s.negotiations {
		if row.SeasonID != params.SeasonID {
			continue
		}
		if params.Status != nil && row.Status != *params.Status {
			continue
		}
		if params.PlayerID != nil && row.PlayerID != *params.PlayerID {
			continue
		}
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) UpsertOfferTx(_ context.Context, _ *gorm.DB, item *models.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	s.offers[item.ID] = &copied
	return nil
}

func (s *stubRepo) ListOffersByNegotiationIDs(_ context.Context, ids []uint64) ([]models.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[uint64]struct{}{}
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []models.Offer
	for _, row := range s.offers {
		if _, ok := wanted[row.NegotiationID]; ok {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *stubRepo) InsertOfferResponseTx(_ context.Context, _ *gorm.DB, item *models.OfferResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Re-persisting a negotiation replays its responses; keep one row per
	// offer like the unique index does.
	for _, existing := range s.responses {
		if existing.OfferID == item.OfferID {
			return nil
		}
	}
	s.nextRowID++
	copied := *item
	copied.ID = s.nextRowID
	s.responses = append(s.responses, copied)
	return nil
}

func (s *stubRepo) ListOfferResponsesByNegotiationIDs(_ context.Context, ids []uint64) ([]models.OfferResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[uint64]struct{}{}
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []models.OfferResponse
	for _, row := range s.responses {
		if _, ok := wanted[row.NegotiationID]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *stubRepo) UpsertTransferTx(_ context.Context, _ *gorm.DB, item *models.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *item
	if existing, ok := s.transfers[item.NegotiationID]; ok {
		copied.ID = existing.ID
	} else {
		s.nextRowID++
		copied.ID = s.nextRowID
	}
	s.transfers[item.NegotiationID] = &copied
	return nil
}

func (s *stubRepo) ListTransfers(_ context.Context, seasonID string) ([]models.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transfer
	for _, row := range s.transfers {
		if row.SeasonID == seasonID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NegotiationID < out[j].NegotiationID })
	return out, nil
}
