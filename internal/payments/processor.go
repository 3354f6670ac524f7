package payments

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Processor sweeps open invoices against BTCPay. Webhooks are the fast path;
// the sweep catches deliveries that were lost or arrived while the API was
// down.
type Processor struct {
	service       *Service
	sweepInterval time.Duration
}

// NewProcessor creates a settlement sweep over the payment service
func NewProcessor(service *Service) *Processor {
	return &Processor{
		service:       service,
		sweepInterval: 2 * time.Minute,
	}
}

// Start begins the settlement sweep loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "payments_processor").Logger()
	logger.Info().Msg("starting settlement sweep")

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down settlement sweep")
			return
		case <-ticker.C:
			if err := p.sweepOpenInvoices(ctx); err != nil {
				logger.Error().Err(err).Msg("settlement sweep failed")
			}
		}
	}
}

func (p *Processor) sweepOpenInvoices(ctx context.Context) error {
	logger := log.With().Str("component", "payments_processor").Logger()

	invoices, err := p.service.db.GetOpenInvoices()
	if err != nil {
		return err
	}

	for _, invoice := range invoices {
		external, err := p.service.btcpay.GetInvoice(ctx, invoice.InvoiceID)
		if err != nil {
			logger.Error().
				Err(err).
				Str("invoice_id", invoice.InvoiceID).
				Msg("failed to poll invoice")
			continue
		}

		if external.Status == invoice.Status {
			continue
		}

		logger.Info().
			Str("invoice_id", invoice.InvoiceID).
			Str("from", invoice.Status).
			Str("to", external.Status).
			Msg("invoice status changed outside webhook delivery")

		if external.Status == InvoiceStatusSettled {
			if err := p.service.Settle(invoice.InvoiceID); err != nil {
				logger.Error().
					Err(err).
					Str("invoice_id", invoice.InvoiceID).
					Msg("failed to settle invoice")
			}
			continue
		}

		if err := p.service.MarkStatus(invoice.InvoiceID, external.Status); err != nil {
			logger.Error().
				Err(err).
				Str("invoice_id", invoice.InvoiceID).
				Msg("failed to record invoice status")
		}
	}

	return nil
}
