package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Team struct {
	ID   string `gorm:"primaryKey;type:varchar(64)"`
	Name string `gorm:"type:varchar(100);not null"`

	Budget        decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	MinRosterSize int             `gorm:"not null;default:12"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Team) TableName() string {
	return "teams"
}
