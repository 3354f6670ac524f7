package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tastyrock/marketplace-api/pkg/response"
)

// GinHandlers contains the payment HTTP handlers
type GinHandlers struct {
	service       *Service
	webhookSecret string
}

// NewGinHandlers creates payment handlers
func NewGinHandlers(service *Service, webhookSecret string) *GinHandlers {
	return &GinHandlers{service: service, webhookSecret: webhookSecret}
}

// CreateInvoiceHandler opens an invoice for an accepted offer
func (h *GinHandlers) CreateInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			OfferID string `json:"offer_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "offer_id is required")
			return
		}

		invoice, err := h.service.CreateInvoice(c.Request.Context(), req.OfferID)
		if errors.Is(err, ErrOfferNotFound) {
			response.NotFound(c, "offer not found")
			return
		}
		if errors.Is(err, ErrOfferNotPayable) {
			response.BadRequest(c, "offer is not ready for payment")
			return
		}
		if err != nil {
			response.InternalError(c, "failed to create invoice")
			return
		}

		response.Success(c, gin.H{
			"invoice_id":    invoice.InvoiceID,
			"offer_id":      invoice.OfferID,
			"amount":        invoice.Amount,
			"currency":      invoice.Currency,
			"checkout_link": invoice.CheckoutLink,
		})
	}
}

type webhookEvent struct {
	Type      string `json:"type"`
	InvoiceID string `json:"invoiceId"`
}

// WebhookHandler ingests BTCPay webhook deliveries. The signature is checked
// before the body is trusted; unknown invoices and event types are
// acknowledged without action so BTCPay stops redelivering them.
func (h *GinHandlers) WebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64*1024))
		if err != nil {
			response.BadRequest(c, "failed to read webhook body")
			return
		}

		if !h.verifySignature(c.GetHeader("BTCPay-Sig"), body) {
			response.Unauthorized(c, "invalid webhook signature")
			return
		}

		var event webhookEvent
		if err := json.Unmarshal(body, &event); err != nil {
			response.BadRequest(c, "malformed webhook payload")
			return
		}

		logger := log.With().
			Str("component", "payments_webhook").
			Str("invoice_id", event.InvoiceID).
			Str("event_type", event.Type).
			Logger()

		switch event.Type {
		case "InvoiceSettled":
			err = h.service.Settle(event.InvoiceID)
		case "InvoiceProcessing":
			err = h.service.MarkStatus(event.InvoiceID, InvoiceStatusProcessing)
		case "InvoiceExpired":
			err = h.service.MarkStatus(event.InvoiceID, InvoiceStatusExpired)
		case "InvoiceInvalid":
			err = h.service.MarkStatus(event.InvoiceID, InvoiceStatusInvalid)
		default:
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}

		if errors.Is(err, ErrInvoiceNotFound) {
			logger.Warn().Msg("webhook for unknown invoice")
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to process webhook")
			response.InternalError(c, "failed to process webhook")
			return
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func (h *GinHandlers) verifySignature(header string, body []byte) bool {
	expected := strings.TrimPrefix(header, "sha256=")
	if expected == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(computed), []byte(expected))
}
