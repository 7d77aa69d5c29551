package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Player is one player in the league, contracted or free.
type Player struct {
	ID       string `gorm:"primaryKey;type:varchar(64)"`
	Name     string `gorm:"type:varchar(100);not null"`
	Position string `gorm:"type:varchar(20);not null;index"`
	Age      int    `gorm:"not null"`
	Ability  int    `gorm:"not null;index"`

	// MarketValue and MinSalary feed the negotiation protocol; how they are
	// computed is upstream of this service.
	MarketValue decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	MinSalary   decimal.Decimal `gorm:"type:numeric(20,4);not null"`

	TeamID        *string         `gorm:"type:varchar(64);index"`
	Salary        decimal.Decimal `gorm:"type:numeric(20,4);not null;default:0"`
	ContractYears int             `gorm:"not null;default:0"`

	Status string `gorm:"type:varchar(20);not null;default:'active';index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Player) TableName() string {
	return "players"
}

const (
	PlayerStatusActive  = "active"
	PlayerStatusRetired = "retired"
)
