package storequeue

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/tastyrock/marketplace-api/pkg/response"
)

// GinHandlers contains the store queue HTTP handlers
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates store queue handlers
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// JoinHandler puts the caller in line for a trader's storefront
func (h *GinHandlers) JoinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			TraderID string `json:"trader_id" binding:"required"`
			BuyerID  string `json:"buyer_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "trader_id and buyer_id are required")
			return
		}

		if err := h.service.Join(c.Request.Context(), req.TraderID, req.BuyerID); err != nil {
			response.InternalError(c, "failed to join store queue")
			return
		}

		length, err := h.service.Length(c.Request.Context(), req.TraderID)
		if err != nil {
			response.InternalError(c, "failed to read store queue")
			return
		}

		response.Success(c, gin.H{
			"trader_id": req.TraderID,
			"waiting":   length,
		})
	}
}

// NextHandler pops the next waiting buyer for a trader
func (h *GinHandlers) NextHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			TraderID string `json:"trader_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "trader_id is required")
			return
		}

		buyerID, err := h.service.Next(c.Request.Context(), req.TraderID)
		if errors.Is(err, ErrQueueEmpty) {
			response.NotFound(c, "no buyers waiting")
			return
		}
		if err != nil {
			response.InternalError(c, "failed to pop store queue")
			return
		}

		response.Success(c, gin.H{
			"trader_id": req.TraderID,
			"buyer_id":  buyerID,
		})
	}
}
