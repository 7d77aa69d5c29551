package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer is a completed paid move of a contracted player.
type Transfer struct {
	ID            uint64 `gorm:"primaryKey"`
	SeasonID      string `gorm:"type:varchar(64);not null;index"`
	NegotiationID uint64 `gorm:"not null;uniqueIndex"`
	PlayerID      string `gorm:"type:varchar(64);not null;index"`

	FromTeamID string `gorm:"type:varchar(64);not null"`
	ToTeamID   string `gorm:"type:varchar(64);not null"`

	Fee   decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Round uint            `gorm:"not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Transfer) TableName() string {
	return "transfers"
}
