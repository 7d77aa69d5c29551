package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlayerIntention records what a rostered player wants from the coming
// window. One row per (season, player); its existence is the completeness
// signal for the intention-generation phase.
type PlayerIntention struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	SeasonID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_player_intentions_season_player,priority:1"`
	PlayerID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_player_intentions_season_player,priority:2"`

	Intention     string          `gorm:"type:varchar(20);not null"`
	DesiredSalary decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	DesiredYears  int             `gorm:"not null;default:0"`
	Reasoning     string          `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (PlayerIntention) TableName() string {
	return "player_intentions"
}

const (
	IntentionStay      = "stay"
	IntentionSeekRaise = "seek_raise"
	IntentionLeave     = "leave"
	IntentionRetire    = "retire"
)
