package drafts

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateDraft writes the draft header and all of its items in one
// transaction; any failure leaves no rows behind. Items are validated inside
// the transaction so a bad item aborts the header as well.
func (d *Database) CreateDraft(draft *Draft, items []DraftItem) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(draft).Error; err != nil {
		tx.Rollback()
		return err
	}

	for i := range items {
		if items[i].AssetID == "" {
			tx.Rollback()
			return fmt.Errorf("draft item %d has empty asset id", i)
		}

		items[i].DraftID = draft.DraftID
		if err := tx.Create(&items[i]).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit().Error
}

func (d *Database) GetDraft(draftID string) (*Draft, error) {
	var draft Draft
	if err := d.db.Where("draft_id = ?", draftID).First(&draft).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &draft, nil
}

func (d *Database) GetDraftItems(draftID string) ([]DraftItem, error) {
	var items []DraftItem
	err := d.db.Where("draft_id = ?", draftID).
		Order("id").
		Find(&items).Error
	return items, err
}
