package offers

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateOfferWithSentinel creates the offer header and its empty round 0 in
// one transaction. The sentinel row keeps the first real round's diff from
// reporting phantom removals.
func (d *Database) CreateOfferWithSentinel(offer *Offer) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(offer).Error; err != nil {
		tx.Rollback()
		return err
	}

	sentinel := OfferRound{
		OfferID: offer.OfferID,
		Round:   0,
		Price:   PriceSentinel,
		Time:    time.Now(),
	}

	if err := tx.Create(&sentinel).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

func (d *Database) GetOffer(offerID string) (*Offer, error) {
	var offer Offer
	if err := d.db.Where("offer_id = ?", offerID).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// MaxRound returns the highest round number recorded for an offer, 0 when
// only the sentinel round (or nothing) exists
func (d *Database) MaxRound(offerID string) (int, error) {
	var round int
	err := d.db.Model(&OfferRound{}).
		Where("offer_id = ?", offerID).
		Select("COALESCE(MAX(round), 0)").
		Scan(&round).Error
	return round, err
}

// GetRoundItems returns all ledger rows of one round
func (d *Database) GetRoundItems(offerID string, round int) ([]OfferRound, error) {
	var rows []OfferRound
	err := d.db.Where("offer_id = ? AND round = ?", offerID, round).
		Order("id").
		Find(&rows).Error
	return rows, err
}

// AppendRound persists a full round snapshot and the recomputed offer
// aggregates as one transaction, so a crash cannot leave a partial round
func (d *Database) AppendRound(offer *Offer, rows []OfferRound) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for i := range rows {
		if err := tx.Create(&rows[i]).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Save(offer).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// UpdateOfferFlags persists a status transition
func (d *Database) UpdateOfferFlags(offerID, status string, accepted, paid bool) error {
	result := d.db.Model(&Offer{}).
		Where("offer_id = ?", offerID).
		Updates(map[string]interface{}{
			"status":      status,
			"accepted":    accepted,
			"paid":        paid,
			"last_update": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// GetOfferPrice returns the current aggregate price of an offer
func (d *Database) GetOfferPrice(offerID string) (float64, error) {
	offer, err := d.GetOffer(offerID)
	if err != nil {
		return 0, err
	}
	if offer == nil {
		return 0, gorm.ErrRecordNotFound
	}
	return offer.Price, nil
}
