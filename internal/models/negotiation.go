package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Negotiation is one player's contract process within a season. Rows are
// keyed (season_id, player_id, id) so re-running a round upserts instead of
// duplicating. Offers and responses live in their own tables.
type Negotiation struct {
	ID       uint64 `gorm:"primaryKey"`
	SeasonID string `gorm:"type:varchar(64);not null;index:idx_negotiations_season_player,priority:1"`
	PlayerID string `gorm:"type:varchar(64);not null;index:idx_negotiations_season_player,priority:2"`

	PlayerName   string  `gorm:"type:varchar(100);not null"`
	Position     string  `gorm:"type:varchar(20);not null"`
	Ability      int     `gorm:"not null"`
	OriginTeamID *string `gorm:"type:varchar(64)"`

	Status       string `gorm:"type:varchar(20);not null;index"`
	CurrentRound uint   `gorm:"not null;default:0"`

	IsTransfer  bool             `gorm:"not null;default:false"`
	TransferFee *decimal.Decimal `gorm:"type:numeric(20,4)"`

	// Reporting only; correctness never depends on this set.
	CompetingTeamIDs datatypes.JSON `gorm:"type:jsonb"`

	FinalTeamID       *string          `gorm:"type:varchar(64)"`
	FinalSalary       *decimal.Decimal `gorm:"type:numeric(20,4)"`
	FinalYears        *int
	FinalSigningBonus *decimal.Decimal `gorm:"type:numeric(20,4)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Negotiation) TableName() string {
	return "negotiations"
}

// Offer is one team's proposed terms within a negotiation. The unique index
// on (negotiation_id, from_team_id, round) is what makes round re-runs
// idempotent at the storage layer.
type Offer struct {
	ID            uint64 `gorm:"primaryKey"`
	NegotiationID uint64 `gorm:"not null;uniqueIndex:idx_offers_negotiation_team_round,priority:1"`
	FromTeamID    string `gorm:"type:varchar(64);not null;uniqueIndex:idx_offers_negotiation_team_round,priority:2"`
	Round         uint   `gorm:"not null;uniqueIndex:idx_offers_negotiation_team_round,priority:3"`

	Salary           decimal.Decimal  `gorm:"type:numeric(20,4);not null"`
	Years            int              `gorm:"not null"`
	SigningBonus     decimal.Decimal  `gorm:"type:numeric(20,4);not null;default:0"`
	TransferFee      *decimal.Decimal `gorm:"type:numeric(20,4)"`
	StarterGuarantee bool             `gorm:"not null;default:false"`

	Status string `gorm:"type:varchar(20);not null;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Offer) TableName() string {
	return "offers"
}

type OfferResponse struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	NegotiationID uint64 `gorm:"not null;index"`
	OfferID       uint64 `gorm:"not null;uniqueIndex"`
	Round         uint   `gorm:"not null"`
	Accepted      bool   `gorm:"not null"`
	Reasoning     string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (OfferResponse) TableName() string {
	return "offer_responses"
}
