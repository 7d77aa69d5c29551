package db

import (
	"transfermarket/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Team{},
		&models.Player{},
		&models.MarketState{},
		&models.TeamMarketState{},
		&models.PlayerIntention{},
		&models.TeamStrategy{},
		&models.Renewal{},
		&models.Negotiation{},
		&models.Offer{},
		&models.OfferResponse{},
		&models.Transfer{},
	)
}
