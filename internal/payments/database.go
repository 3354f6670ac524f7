package payments

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Database handles payment database operations
type Database struct {
	db *gorm.DB
}

// NewDatabase creates a new payments database handler
func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// CreateInvoice persists a new invoice record
func (d *Database) CreateInvoice(invoice *Invoice) error {
	if err := d.db.Create(invoice).Error; err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetInvoice retrieves an invoice by its external id
func (d *Database) GetInvoice(invoiceID string) (*Invoice, error) {
	var invoice Invoice
	if err := d.db.Where("invoice_id = ?", invoiceID).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &invoice, nil
}

// GetOpenInvoices lists invoices that have not reached a terminal status
func (d *Database) GetOpenInvoices() ([]Invoice, error) {
	var invoices []Invoice
	err := d.db.
		Where("status NOT IN ?", []string{InvoiceStatusSettled, InvoiceStatusExpired, InvoiceStatusInvalid}).
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list open invoices: %w", err)
	}
	return invoices, nil
}

// UpdateInvoiceStatus records a status transition
func (d *Database) UpdateInvoiceStatus(invoiceID, status string) error {
	result := d.db.Model(&Invoice{}).
		Where("invoice_id = ?", invoiceID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update invoice status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
