package migrations

import (
	"github.com/tastyrock/marketplace-api/internal/offers"
	"gorm.io/gorm"
)

// AddOfferRounds creates the offer round ledger and its indexes
func AddOfferRounds(db *gorm.DB) error {
	if err := db.AutoMigrate(&offers.OfferRound{}); err != nil {
		return err
	}

	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Composite index for round snapshot reads, the hot query path
		`CREATE INDEX IF NOT EXISTS idx_offer_log_offer_round
		 ON offer_log(offer_id, round)`,

		// Index for per-item history lookups
		`CREATE INDEX IF NOT EXISTS idx_offer_log_asset
		 ON offer_log(item_asset_id)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
