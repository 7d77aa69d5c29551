package repository

import (
	"context"

	"gorm.io/gorm"

	"transfermarket/internal/models"
)

// Repository is the persistence surface of the transfer market engine.
// Writes that belong to one round merge go through the Tx variants inside
// InTx; reads used to build snapshots are plain calls.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// League catalog.
	ListTeams(ctx context.Context) ([]models.Team, error)
	ListPlayers(ctx context.Context, params ListPlayersParams) ([]models.Player, error)
	GetPlayerByID(ctx context.Context, id string) (*models.Player, error)
	SavePlayerTx(ctx context.Context, tx *gorm.DB, item *models.Player) error

	// Market state checkpoint.
	GetMarketState(ctx context.Context, seasonID string) (*models.MarketState, error)
	UpsertMarketStateTx(ctx context.Context, tx *gorm.DB, item *models.MarketState) error
	ListTeamMarketStates(ctx context.Context, seasonID string) ([]models.TeamMarketState, error)
	UpsertTeamMarketStateTx(ctx context.Context, tx *gorm.DB, item *models.TeamMarketState) error

	// Pre-market phase records. Upserts are keyed by natural identity so
	// retried phase runs skip already-completed units.
	UpsertPlayerIntention(ctx context.Context, item *models.PlayerIntention) error
	ListPlayerIntentions(ctx context.Context, seasonID string) ([]models.PlayerIntention, error)
	UpsertTeamStrategy(ctx context.Context, item *models.TeamStrategy) error
	ListTeamStrategies(ctx context.Context, seasonID string) ([]models.TeamStrategy, error)
	UpsertRenewal(ctx context.Context, item *models.Renewal) error
	ListRenewals(ctx context.Context, seasonID string) ([]models.Renewal, error)

	// Negotiation ledger.
	UpsertNegotiationTx(ctx context.Context, tx *gorm.DB, item *models.Negotiation) error
	ListNegotiations(ctx context.Context, params ListNegotiationsParams) ([]models.Negotiation, error)
	UpsertOfferTx(ctx context.Context, tx *gorm.DB, item *models.Offer) error
	ListOffersByNegotiationIDs(ctx context.Context, ids []uint64) ([]models.Offer, error)
	InsertOfferResponseTx(ctx context.Context, tx *gorm.DB, item *models.OfferResponse) error
	ListOfferResponsesByNegotiationIDs(ctx context.Context, ids []uint64) ([]models.OfferResponse, error)

	// Completed transfers.
	UpsertTransferTx(ctx context.Context, tx *gorm.DB, item *models.Transfer) error
	ListTransfers(ctx context.Context, seasonID string) ([]models.Transfer, error)
}

type ListPlayersParams struct {
	Status   *string
	TeamID   *string
	FreeOnly bool
	Limit    int
	Offset   int
}

type ListNegotiationsParams struct {
	SeasonID string
	Status   *string
	PlayerID *string
	Limit    int
	Offset   int
}
