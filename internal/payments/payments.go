package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tastyrock/marketplace-api/internal/chat"
	"github.com/tastyrock/marketplace-api/internal/offers"
)

// Payment service errors
var (
	ErrOfferNotFound   = errors.New("offer not found")
	ErrOfferNotPayable = errors.New("offer is not ready for payment")
	ErrInvoiceNotFound = errors.New("invoice not found")
)

// Service coordinates invoice creation and settlement. On settlement it
// advances the offer to its final status and notifies the negotiation room.
type Service struct {
	db     *Database
	btcpay *BTCPayClient
	offers *offers.Service
	hub    *chat.Hub
}

// NewService creates a new payment service
func NewService(db *Database, btcpay *BTCPayClient, offersService *offers.Service, hub *chat.Hub) *Service {
	return &Service{
		db:     db,
		btcpay: btcpay,
		offers: offersService,
		hub:    hub,
	}
}

// CreateInvoice opens a payment invoice for an accepted offer and moves the
// offer into PAY PROCESS
func (s *Service) CreateInvoice(ctx context.Context, offerID string) (*Invoice, error) {
	offer, err := s.offers.GetOffer(offerID)
	if errors.Is(err, offers.ErrOfferNotFound) {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, err
	}
	if !offer.Accepted || offer.Paid {
		return nil, ErrOfferNotPayable
	}

	external, err := s.btcpay.CreateInvoice(ctx, offerID, offer.Price, "USD")
	if err != nil {
		return nil, fmt.Errorf("failed to create btcpay invoice: %w", err)
	}

	invoice := &Invoice{
		InvoiceID:     external.ID,
		OfferID:       offerID,
		BuyerSteamID:  offer.BuyerSteamID,
		TraderSteamID: offer.TraderSteamID,
		Amount:        offer.Price,
		Currency:      "USD",
		Status:        external.Status,
		CheckoutLink:  external.CheckoutLink,
	}
	if err := s.db.CreateInvoice(invoice); err != nil {
		return nil, err
	}

	if err := s.offers.UpdateStatus(offerID, offers.StatusPayProcess); err != nil {
		return nil, err
	}

	log.Info().
		Str("component", "payments").
		Str("offer_id", offerID).
		Str("invoice_id", invoice.InvoiceID).
		Float64("amount", invoice.Amount).
		Msg("created payment invoice")

	return invoice, nil
}

// Settle finalizes a paid invoice. The offer transitions to SUCCESS and the
// negotiation room is told the payment went through. Settling an already
// settled invoice is a no-op.
func (s *Service) Settle(invoiceID string) error {
	invoice, err := s.db.GetInvoice(invoiceID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return ErrInvoiceNotFound
	}
	if invoice.Status == InvoiceStatusSettled {
		return nil
	}

	if err := s.db.UpdateInvoiceStatus(invoiceID, InvoiceStatusSettled); err != nil {
		return err
	}

	if err := s.offers.UpdateStatus(invoice.OfferID, offers.StatusSuccess); err != nil {
		return err
	}

	s.hub.PaymentSucceeded(chat.RoomID{
		BuyerID:  invoice.BuyerSteamID,
		TraderID: invoice.TraderSteamID,
	}, invoice.OfferID)

	log.Info().
		Str("component", "payments").
		Str("offer_id", invoice.OfferID).
		Str("invoice_id", invoiceID).
		Msg("invoice settled")

	return nil
}

// MarkStatus records a non-settlement status transition from BTCPay
func (s *Service) MarkStatus(invoiceID, status string) error {
	if err := s.db.UpdateInvoiceStatus(invoiceID, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvoiceNotFound
		}
		return err
	}
	return nil
}
