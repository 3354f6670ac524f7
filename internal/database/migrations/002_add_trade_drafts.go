package migrations

import (
	"github.com/tastyrock/marketplace-api/internal/drafts"
	"gorm.io/gorm"
)

// AddTradeDrafts creates the trade offer draft tables and their indexes
func AddTradeDrafts(db *gorm.DB) error {
	if err := db.AutoMigrate(&drafts.Draft{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&drafts.DraftItem{}); err != nil {
		return err
	}

	indexes := []string{
		// Drafts are fetched by the trading extension through the offer id
		`CREATE INDEX IF NOT EXISTS idx_trade_offer_drafts_offer
		 ON trade_offer_drafts(offer_id)`,

		// Items are always loaded as a full draft side
		`CREATE INDEX IF NOT EXISTS idx_trade_offer_draft_items_side
		 ON trade_offer_draft_items(draft_id, side)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
