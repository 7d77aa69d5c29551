package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MarketState is the per-season checkpoint of the transfer window engine.
// The per-round team dedupe set is deliberately absent: a resumed process
// always re-evaluates the current round from scratch.
type MarketState struct {
	SeasonID string `gorm:"primaryKey;type:varchar(64)"`

	Phase         string `gorm:"type:varchar(30);not null"`
	Round         uint   `gorm:"not null;default:0"`
	TransferRound uint   `gorm:"not null;default:0"`

	StableRounds         uint `gorm:"not null;default:0"`
	TransferStableRounds uint `gorm:"not null;default:0"`

	// Ordered id lists, stored as JSON arrays.
	FreeAgentIDs         datatypes.JSON `gorm:"type:jsonb;not null"`
	PoachablePlayerIDs   datatypes.JSON `gorm:"type:jsonb;not null"`
	ActiveNegotiationIDs datatypes.JSON `gorm:"type:jsonb;not null"`
	CompletedTransferIDs datatypes.JSON `gorm:"type:jsonb;not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (MarketState) TableName() string {
	return "market_states"
}

// TeamMarketState is one team's budget/roster view inside a season's window.
type TeamMarketState struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	SeasonID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_team_market_state_season_team,priority:1"`
	TeamID   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_team_market_state_season_team,priority:2"`

	RemainingBudget decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	RosterCount     int             `gorm:"not null;default:0"`
	MinRosterSize   int             `gorm:"not null;default:12"`

	NeedsEmergencySigning bool `gorm:"not null;default:false"`
	StrategyGenerated     bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TeamMarketState) TableName() string {
	return "team_market_states"
}
