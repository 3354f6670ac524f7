package offers

import (
	"time"

	"gorm.io/gorm"
)

// Offer statuses. Stored verbatim, matching what the negotiation client
// submits on status updates.
const (
	StatusInProcess  = "IN PROCESS"
	StatusAccepted   = "ACCEPTED"
	StatusPayProcess = "PAY PROCESS"
	StatusSuccess    = "SUCCESS"
)

// PriceSentinel marks the placeholder row of the empty round 0 written at
// offer creation. Rows carrying it never count as removed items in a diff.
const PriceSentinel = "EMPTY"

// Offer is the persistent negotiation header. Never deleted; terminal states
// are SUCCESS or an abandoned IN PROCESS.
type Offer struct {
	gorm.Model    `json:"-"`
	OfferID       string    `gorm:"uniqueIndex" json:"offer_id"`
	BuyerSteamID  string    `json:"buyer_steamid"`
	TraderSteamID string    `json:"trader_steamid"`
	ItemCount     int       `gorm:"column:count" json:"count"`
	Price         float64   `json:"price"`
	Accepted      bool      `json:"accepted"`
	Paid          bool      `json:"paid"`
	Status        string    `json:"status"` // IN PROCESS, ACCEPTED, PAY PROCESS, SUCCESS
	CreatedAt     time.Time `json:"created"`
	LastUpdate    time.Time `json:"last_update"`
}

// OfferRound is one item row of one round snapshot in the offer_log ledger.
// Rounds are append-only; the current proposal is the maximum round.
type OfferRound struct {
	gorm.Model `json:"-"`
	OfferID    string    `gorm:"index" json:"offer_id"`
	Round      int       `json:"round"`
	AssetID    string    `gorm:"column:item_asset_id" json:"item_asset_id"`
	ContextID  string    `gorm:"column:item_contextid" json:"item_contextid"`
	AppID      string    `gorm:"column:item_appid" json:"item_appid"`
	Name       string    `gorm:"column:item_name" json:"item_name"`
	Price      string    `gorm:"column:items_price" json:"items_price"`
	Link       string    `gorm:"column:item_link" json:"item_link"`
	Image      string    `gorm:"column:item_image" json:"item_image"`
	Time       time.Time `json:"time"`
}

// TableName keeps the ledger under its historical table name
func (OfferRound) TableName() string {
	return "offer_log"
}

// OfferItem is one proposed item as submitted by the negotiation client.
// Identity for diffing is AssetID alone; a price or name change on the same
// asset is an update, not a new item.
type OfferItem struct {
	AssetID   string `json:"item_asset_id"`
	ContextID string `json:"item_contextid"`
	AppID     string `json:"item_appid"`
	Name      string `json:"item_name"`
	Price     string `json:"item_price"`
	Link      string `json:"item_link"`
	Image     string `json:"item_image"`
}

// OfferUpdateResult is the diff computed by a round append
type OfferUpdateResult struct {
	OfferID      string      `json:"offer_id"`
	TotalPrice   float64     `json:"total_price"`
	TotalCount   int         `json:"total_count"`
	NewItems     []OfferItem `json:"new_items"`
	AddedItems   []OfferItem `json:"added_items"`
	RemovedItems []OfferItem `json:"removed_items"`
	UpdatedItems []OfferItem `json:"updated_items"`
}

// CheckResult is the outcome of the check-to-pay verification. A false
// CheckResult is a normal negative, not an error.
type CheckResult struct {
	OfferID         string      `json:"offer_id"`
	CheckResult     bool        `json:"check_result"`
	Items           []OfferItem `json:"items"`
	PartnerTradeURL string      `json:"partner_trade_url"`
}
