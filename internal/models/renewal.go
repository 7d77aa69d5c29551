package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Renewal is the outcome of one expiring contract's renewal talk. One row
// per (season, player); rows double as the resume checkpoint for the
// renewal-processing phase.
type Renewal struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	SeasonID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_renewals_season_player,priority:1"`
	PlayerID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_renewals_season_player,priority:2"`
	TeamID   string `gorm:"type:varchar(64);not null;index"`

	TeamWantsRenewal bool `gorm:"not null"`
	PlayerAccepts    bool `gorm:"not null"`

	FinalSalary *decimal.Decimal `gorm:"type:numeric(20,4)"`
	FinalYears  *int

	Reasoning string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Renewal) TableName() string {
	return "renewals"
}
