package payments

import (
	"time"
)

// Invoice statuses mirror the BTCPay Greenfield invoice lifecycle
const (
	InvoiceStatusNew        = "New"
	InvoiceStatusProcessing = "Processing"
	InvoiceStatusSettled    = "Settled"
	InvoiceStatusExpired    = "Expired"
	InvoiceStatusInvalid    = "Invalid"
)

// Invoice tracks one payment attempt against an offer. The external invoice
// id is the join key for webhook deliveries and the settlement sweep.
type Invoice struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	InvoiceID     string    `gorm:"uniqueIndex" json:"invoice_id"`
	OfferID       string    `gorm:"index" json:"offer_id"`
	BuyerSteamID  string    `json:"buyer_steam_id"`
	TraderSteamID string    `json:"trader_steam_id"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	CheckoutLink  string    `json:"checkout_link"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func terminalStatus(status string) bool {
	switch status {
	case InvoiceStatusSettled, InvoiceStatusExpired, InvoiceStatusInvalid:
		return true
	}
	return false
}
