package accounts

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// UpsertAccount inserts the account or refreshes its profile fields on
// conflict. The trade URL is never touched here so a re-login cannot wipe it.
func (d *Database) UpsertAccount(account *SteamAccount) error {
	return d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "steam_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"nickname", "avatar_small", "avatar_full", "online", "updated_at",
		}),
	}).Create(account).Error
}

func (d *Database) GetAccount(steamID string) (*SteamAccount, error) {
	var account SteamAccount
	if err := d.db.Where("steam_id = ?", steamID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (d *Database) SetTradeURL(steamID, tradeURL string) error {
	result := d.db.Model(&SteamAccount{}).
		Where("steam_id = ?", steamID).
		Updates(map[string]interface{}{
			"trade_url":  tradeURL,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	// First trade URL post can arrive before the profile row exists
	if result.RowsAffected == 0 {
		return d.db.Create(&SteamAccount{
			SteamID:   steamID,
			TradeURL:  tradeURL,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}).Error
	}

	return nil
}

// ClearTradeURL wipes the stored trade URL; unknown accounts are a no-op
func (d *Database) ClearTradeURL(steamID string) error {
	return d.db.Model(&SteamAccount{}).
		Where("steam_id = ?", steamID).
		Updates(map[string]interface{}{
			"trade_url":  "",
			"updated_at": time.Now(),
		}).Error
}

func (d *Database) SetOnline(steamID string, online bool) error {
	return d.db.Model(&SteamAccount{}).
		Where("steam_id = ?", steamID).
		Updates(map[string]interface{}{
			"online":     online,
			"updated_at": time.Now(),
		}).Error
}

// GetTradeURL returns the stored trade URL for a steam id, or "" when the
// account is unknown or has not posted one yet
func (d *Database) GetTradeURL(steamID string) (string, error) {
	account, err := d.GetAccount(steamID)
	if err != nil {
		return "", err
	}
	if account == nil {
		return "", nil
	}
	return account.TradeURL, nil
}
