package offers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tastyrock/marketplace-api/internal/drafts"
	"github.com/tastyrock/marketplace-api/pkg/response"
)

// GinHandlers contains HTTP handlers for offer endpoints. The check-to-pay
// handler also owns draft creation, since a draft must only ever exist for a
// verified offer.
type GinHandlers struct {
	service *Service
	drafts  *drafts.Service
}

// NewGinHandlers creates the HTTP handlers for offer endpoints
func NewGinHandlers(service *Service, draftsService *drafts.Service) *GinHandlers {
	return &GinHandlers{
		service: service,
		drafts:  draftsService,
	}
}

type makeOfferRequest struct {
	BuyerID  string `json:"buyer_id"`
	TraderID string `json:"trader_id"`
}

// MakeOfferHandler handles POST requests to open a negotiation
func (h *GinHandlers) MakeOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req makeOfferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if req.BuyerID == "" || req.TraderID == "" {
			response.BadRequest(c, "buyer_id and trader_id are required")
			return
		}

		offerID, err := h.service.MakeOffer(req.BuyerID, req.TraderID)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}

		response.Success(c, gin.H{"offer_id": offerID})
	}
}

type updateOfferRequest struct {
	OfferID string      `json:"offer_id"`
	Items   []OfferItem `json:"special_for_update_offer"`
}

// UpdateOfferHandler handles POST requests appending an item snapshot as the
// next negotiation round; the response carries the computed diff
func (h *GinHandlers) UpdateOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateOfferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if req.OfferID == "" {
			response.BadRequest(c, "offer_id is required")
			return
		}

		result, err := h.service.UpdateOffer(req.OfferID, req.Items)
		switch {
		case errors.Is(err, ErrOfferNotFound):
			response.NotFound(c, "Offer not found")
		case errors.Is(err, ErrInvalidPrice):
			response.BadRequest(c, err.Error())
		default:
			response.Handle(c, result, err)
		}
	}
}

type updateStatusRequest struct {
	OfferID string `json:"offer_id"`
	Status  string `json:"status"`
}

// UpdateStatusHandler handles POST requests reporting an offer status change
func (h *GinHandlers) UpdateStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if req.OfferID == "" {
			response.BadRequest(c, "offer_id is required")
			return
		}

		err := h.service.UpdateStatus(req.OfferID, req.Status)
		if errors.Is(err, ErrOfferNotFound) {
			response.NotFound(c, "Offer not found")
			return
		}
		response.Handle(c, gin.H{"offer_id": req.OfferID}, err)
	}
}

type checkToPayRequest struct {
	OfferID        string      `json:"offer_id"`
	Items          []OfferItem `json:"special_for_save_offer"`
	PartnerSteamID string      `json:"partner_steam_id"`
}

// CheckToPayHandler verifies the claimed final item list against the ledger
// and, when it matches, creates the handoff draft and returns the trade link.
// A mismatch is a normal negative result and blocks the payment step until
// the client resubmits a round matching the server's ledger.
func (h *GinHandlers) CheckToPayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req checkToPayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if req.OfferID == "" || req.PartnerSteamID == "" {
			response.BadRequest(c, "offer_id and partner_steam_id are required")
			return
		}

		result, err := h.service.CheckToPay(req.OfferID, req.Items, req.PartnerSteamID)
		switch {
		case errors.Is(err, ErrOfferNotFound):
			response.NotFound(c, "Offer not found")
			return
		case errors.Is(err, ErrNoTradeURL):
			response.BadRequest(c, err.Error())
			return
		case err != nil:
			response.InternalError(c, err.Error())
			return
		}

		if !result.CheckResult {
			c.JSON(http.StatusBadRequest, gin.H{
				"ok":       false,
				"offer_id": result.OfferID,
				"error":    "validation_failed",
			})
			return
		}

		give := make([]drafts.DraftItem, 0, len(result.Items))
		for _, item := range result.Items {
			appID, err := parseAppID(item.AppID)
			if err != nil {
				log.Error().Err(err).
					Str("offer_id", result.OfferID).
					Str("asset_id", item.AssetID).
					Msg("ledger item carries a malformed app id")
				response.InternalError(c, "offer item has a malformed app id")
				return
			}
			give = append(give, drafts.DraftItem{
				AppID:     appID,
				ContextID: item.ContextID,
				AssetID:   item.AssetID,
				Amount:    1,
			})
		}

		draftID, err := h.drafts.CreateDraft(result.OfferID, result.PartnerTradeURL, false, give)
		if err != nil {
			log.Error().Err(err).
				Str("offer_id", result.OfferID).
				Msg("draft creation failed after successful check")
			response.InternalError(c, "draft creation failed: "+err.Error())
			return
		}

		steamURL := result.PartnerTradeURL + "&draft_id=" + draftID

		response.Success(c, gin.H{
			"ok":        true,
			"offer_id":  result.OfferID,
			"draft_id":  draftID,
			"steam_url": steamURL,
		})
	}
}

func parseAppID(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
