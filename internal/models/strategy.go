package models

import (
	"time"

	"gorm.io/datatypes"
)

// TeamStrategy is the market plan generated for one team ahead of the free
// market: an ordered target list with per-target offer ceilings. Consumed,
// never mutated, by the round coordinator.
type TeamStrategy struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	SeasonID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_team_strategies_season_team,priority:1"`
	TeamID   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_team_strategies_season_team,priority:2"`

	// Targets is a JSON array of {player_id, priority, max_offer}.
	Targets   datatypes.JSON `gorm:"type:jsonb;not null"`
	Reasoning string         `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TeamStrategy) TableName() string {
	return "team_strategies"
}
