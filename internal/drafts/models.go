package drafts

import (
	"time"

	"gorm.io/gorm"
)

// Item sides. Only "give" is produced today; the column exists so a future
// two-sided trade can reuse the table.
const (
	SideGive    = "give"
	SideReceive = "receive"
)

// Draft is the immutable handoff record linking an authorized offer to the
// exact item set to transfer. Created once, read by the client trade flow.
type Draft struct {
	gorm.Model      `json:"-"`
	DraftID         string    `gorm:"uniqueIndex" json:"draft_id"`
	OfferID         string    `json:"offer_id"`
	PartnerTradeURL string    `json:"partner_trade_url"`
	Autosend        bool      `json:"autosend"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName keeps the historical table name
func (Draft) TableName() string {
	return "trade_offer_drafts"
}

// DraftItem is one asset the trade flow must include
type DraftItem struct {
	gorm.Model `json:"-"`
	DraftID    string `gorm:"index" json:"-"`
	AppID      uint32 `gorm:"column:appid" json:"appid"`
	ContextID  string `gorm:"column:contextid" json:"contextid"`
	AssetID    string `gorm:"column:assetid" json:"assetid"`
	Amount     int    `json:"amount"`
	Side       string `json:"side"` // give or receive
}

// TableName keeps the historical table name
func (DraftItem) TableName() string {
	return "trade_offer_draft_items"
}

// DraftContent is what the client trade flow fetches by draft id
type DraftContent struct {
	DraftID  string      `json:"draft_id"`
	OfferID  string      `json:"offer_id"`
	Autosend bool        `json:"autosend"`
	Give     []DraftItem `json:"items_to_give"`
}
