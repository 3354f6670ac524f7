package accounts

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tastyrock/marketplace-api/pkg/response"
)

var ErrInvalidTradeURL = errors.New("trade url must be a steamcommunity tradeoffer link")

// Service handles profile and trade-URL operations
type Service struct {
	db *Database
}

// NewService creates an accounts service with the given database connection
func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// RegisterLogin records a fresh login. Existing rows keep their trade URL.
func (s *Service) RegisterLogin(account *SteamAccount) error {
	account.Online = true
	return s.db.UpsertAccount(account)
}

// RegisterLogout flips the account offline; unknown accounts are a no-op
func (s *Service) RegisterLogout(steamID string) error {
	return s.db.SetOnline(steamID, false)
}

// SetTradeURL stores the partner trade URL used at offer handoff
func (s *Service) SetTradeURL(steamID, tradeURL string) error {
	tradeURL = strings.TrimSpace(tradeURL)
	if !strings.HasPrefix(tradeURL, "https://steamcommunity.com/tradeoffer/") {
		return ErrInvalidTradeURL
	}

	log.Debug().
		Str("steam_id", steamID).
		Str("service", "accounts").
		Msg("storing trade url")

	return s.db.SetTradeURL(steamID, tradeURL)
}

// ResetTradeURL drops the stored trade URL so the profile has to post a new
// one before the next handoff
func (s *Service) ResetTradeURL(steamID string) error {
	log.Debug().
		Str("steam_id", steamID).
		Str("service", "accounts").
		Msg("resetting trade url")

	return s.db.ClearTradeURL(steamID)
}

// GetTradeURL returns the stored trade URL, "" when none is known
func (s *Service) GetTradeURL(steamID string) (string, error) {
	return s.db.GetTradeURL(steamID)
}

// GinHandlers contains HTTP handlers for account endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates the HTTP handlers for account endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

type tradeURLRequest struct {
	SteamID  string `json:"steam_id"`
	TradeURL string `json:"trade_url"`
}

// SetTradeURLHandler handles POST requests to store a profile trade URL
func (h *GinHandlers) SetTradeURLHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tradeURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if req.SteamID == "" {
			response.BadRequest(c, "steam_id is required")
			return
		}

		if err := h.service.SetTradeURL(req.SteamID, req.TradeURL); err != nil {
			if errors.Is(err, ErrInvalidTradeURL) {
				response.BadRequest(c, err.Error())
				return
			}
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{"steam_id": req.SteamID})
	}
}

type resetTradeURLRequest struct {
	SteamID string `json:"steam_id"`
}

// ResetTradeURLHandler handles POST requests to clear a profile trade URL
func (h *GinHandlers) ResetTradeURLHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resetTradeURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if req.SteamID == "" {
			response.BadRequest(c, "steam_id is required")
			return
		}

		if err := h.service.ResetTradeURL(req.SteamID); err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{"steam_id": req.SteamID})
	}
}
