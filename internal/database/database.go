package database

import (
	"fmt"

	"github.com/tastyrock/marketplace-api/internal/accounts"
	"github.com/tastyrock/marketplace-api/internal/database/migrations"
	"github.com/tastyrock/marketplace-api/internal/offers"
	"github.com/tastyrock/marketplace-api/internal/payments"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddOfferRounds(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := migrations.AddTradeDrafts(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Auto-migrate other schemas
	err = db.AutoMigrate(
		&accounts.SteamAccount{},
		&offers.Offer{},
		&payments.Invoice{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
