package accounts

import (
	"time"

	"gorm.io/gorm"
)

// SteamAccount is one known marketplace user. Rows are created on first
// login and updated in place; the trade URL is what the buyer side needs to
// hand an authorized offer to the native trade flow.
type SteamAccount struct {
	gorm.Model  `json:"-"`
	SteamID     string    `gorm:"uniqueIndex" json:"steam_id"`
	Nickname    string    `json:"nickname"`
	AvatarSmall string    `json:"avatar_url_small"`
	AvatarFull  string    `json:"avatar_url_full"`
	TradeURL    string    `json:"trade_url"`
	Online      bool      `json:"online"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
