package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"transfermarket/internal/models"
	"transfermarket/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- League catalog ---------------------------------------------------------

func (s *Store) ListTeams(ctx context.Context) ([]models.Team, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Team
	if err := s.db.WithContext(ctx).
		Model(&models.Team{}).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPlayers(ctx context.Context, params repository.ListPlayersParams) ([]models.Player, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Player{})
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.TeamID != nil && strings.TrimSpace(*params.TeamID) != "" {
		query = query.Where("team_id = ?", strings.TrimSpace(*params.TeamID))
	}
	if params.FreeOnly {
		query = query.Where("team_id IS NULL")
	}
	query = query.Order("id asc")
	if params.Limit > 0 {
		query = query.Limit(normalizeLimit(params.Limit, 500)).Offset(normalizeOffset(params.Offset))
	}
	var items []models.Player
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetPlayerByID(ctx context.Context, id string) (*models.Player, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Player
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SavePlayerTx(ctx context.Context, tx *gorm.DB, item *models.Player) error {
	if item == nil {
		return nil
	}
	return s.conn(ctx, tx).Save(item).Error
}

// --- Market state -----------------------------------------------------------

func (s *Store) GetMarketState(ctx context.Context, seasonID string) (*models.MarketState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.MarketState
	err := s.db.WithContext(ctx).First(&item, "season_id = ?", seasonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertMarketStateTx(ctx context.Context, tx *gorm.DB, item *models.MarketState) error {
	if item == nil {
		return nil
	}
	return s.conn(ctx, tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "season_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"phase",
			"round",
			"transfer_round",
			"stable_rounds",
			"transfer_stable_rounds",
			"free_agent_ids",
			"poachable_player_ids",
			"active_negotiation_ids",
			"completed_transfer_ids",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListTeamMarketStates(ctx context.Context, seasonID string) ([]models.TeamMarketState, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.TeamMarketState
	if err := s.db.WithContext(ctx).
		Model(&models.TeamMarketState{}).
		Where("season_id = ?", seasonID).
		Order("team_id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertTeamMarketStateTx(ctx context.Context, tx *gorm.DB, item *models.TeamMarketState) error {
	if item == nil {
		return nil
	}
	return s.conn(ctx, tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "season_id"}, {Name: "team_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"remaining_budget",
			"roster_count",
			"min_roster_size",
			"needs_emergency_signing",
			"strategy_generated",
			"updated_at",
		}),
	}).Create(item).Error
}

// --- Pre-market phase records -----------------------------------------------

func (s *Store) UpsertPlayerIntention(ctx context.Context, item *models.PlayerIntention) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "season_id"}, {Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"intention",
			"desired_salary",
			"desired_years",
			"reasoning",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListPlayerIntentions(ctx context.Context, seasonID string) ([]models.PlayerIntention, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PlayerIntention
	if err := s.db.WithContext(ctx).
		Model(&models.PlayerIntention{}).
		Where("season_id = ?", seasonID).
		Order("player_id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertTeamStrategy(ctx context.Context, item *models.TeamStrategy) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "season_id"}, {Name: "team_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"targets",
			"reasoning",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListTeamStrategies(ctx context.Context, seasonID string) ([]models.TeamStrategy, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.TeamStrategy
	if err := s.db.WithContext(ctx).
		Model(&models.TeamStrategy{}).
		Where("season_id = ?", seasonID).
		Order("team_id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertRenewal(ctx context.Context, item *models.Renewal) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "season_id"}, {Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"team_id",
			"team_wants_renewal",
			"player_accepts",
			"final_salary",
			"final_years",
			"reasoning",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListRenewals(ctx context.Context, seasonID string) ([]models.Renewal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Renewal
	if err := s.db.WithContext(ctx).
		Model(&models.Renewal{}).
		Where("season_id = ?", seasonID).
		Order("player_id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Negotiation ledger -----------------------------------------------------

func (s *Store) UpsertNegotiationTx(ctx context.Context, tx *gorm.DB, item *models.Negotiation) error {
	if item == nil {
		return nil
	}
	return s.conn(ctx, tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"current_round",
			"is_transfer",
			"transfer_fee",
			"competing_team_ids",
			"final_team_id",
			"final_salary",
			"final_years",
			"final_signing_bonus",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListNegotiations(ctx context.Context, params repository.ListNegotiationsParams) ([]models.Negotiation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.Negotiation{}).
		Where("season_id = ?", params.SeasonID)
	if params.Status != nil && strings.TrimSpace(*params.Status) != "" {
		query = query.Where("status = ?", strings.TrimSpace(*params.Status))
	}
	if params.PlayerID != nil && strings.TrimSpace(*params.PlayerID) != "" {
		query = query.Where("player_id = ?", strings.TrimSpace(*params.PlayerID))
	}
	query = query.Order("id asc")
	if params.Limit > 0 {
		query = query.Limit(normalizeLimit(params.Limit, 500)).Offset(normalizeOffset(params.Offset))
	}
	var items []models.Negotiation
	if err := query.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpsertOfferTx(ctx context.Context, tx *gorm.DB, item *models.Offer) error {
	if item == nil {
		return nil
	}
	return s.conn(ctx, tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "negotiation_id"}, {Name: "from_team_id"}, {Name: "round"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"salary",
			"years",
			"signing_bonus",
			"transfer_fee",
			"starter_guarantee",
			"status",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListOffersByNegotiationIDs(ctx context.Context, ids []uint64) ([]models.Offer, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var items []models.Offer
	if err := s.db.WithContext(ctx).
		Model(&models.Offer{}).
		Where("negotiation_id IN ?", ids).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertOfferResponseTx(ctx context.Context, tx *gorm.DB, item *models.OfferResponse) error {
	if item == nil {
		return nil
	}
	// One response per offer; replays land on the unique index and no-op.
	return s.conn(ctx, tx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "offer_id"}},
		DoNothing: true,
	}).Create(item).Error
}

func (s *Store) ListOfferResponsesByNegotiationIDs(ctx context.Context, ids []uint64) ([]models.OfferResponse, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var items []models.OfferResponse
	if err := s.db.WithContext(ctx).
		Model(&models.OfferResponse{}).
		Where("negotiation_id IN ?", ids).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- Transfers --------------------------------------------------------------

func (s *Store) UpsertTransferTx(ctx context.Context, tx *gorm.DB, item *models.Transfer) error {
	if item == nil {
		return nil
	}
	return s.conn(ctx, tx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "negotiation_id"}},
		DoNothing: true,
	}).Create(item).Error
}

func (s *Store) ListTransfers(ctx context.Context, seasonID string) ([]models.Transfer, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.Transfer
	if err := s.db.WithContext(ctx).
		Model(&models.Transfer{}).
		Where("season_id = ?", seasonID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func (s *Store) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}

func normalizeLimit(limit int, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
