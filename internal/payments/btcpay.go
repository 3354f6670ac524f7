package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BTCPayClient is a minimal Greenfield API client covering invoice creation
// and polling. It only talks to one store.
type BTCPayClient struct {
	baseURL    string
	storeID    string
	apiKey     string
	httpClient *http.Client
}

// NewBTCPayClient creates a client for a single BTCPay store
func NewBTCPayClient(baseURL, storeID, apiKey string) *BTCPayClient {
	return &BTCPayClient{
		baseURL: baseURL,
		storeID: storeID,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type createInvoiceRequest struct {
	Amount   string                `json:"amount"`
	Currency string                `json:"currency"`
	Metadata createInvoiceMetadata `json:"metadata"`
}

type createInvoiceMetadata struct {
	OrderID string `json:"orderId"`
}

// BTCPayInvoice is the subset of the Greenfield invoice payload we consume
type BTCPayInvoice struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	CheckoutLink string `json:"checkoutLink"`
}

// CreateInvoice opens an invoice for an offer; the offer id travels in the
// invoice metadata so webhook deliveries can be traced back
func (c *BTCPayClient) CreateInvoice(ctx context.Context, offerID string, amount float64, currency string) (*BTCPayInvoice, error) {
	body, err := json.Marshal(createInvoiceRequest{
		Amount:   fmt.Sprintf("%.2f", amount),
		Currency: currency,
		Metadata: createInvoiceMetadata{OrderID: offerID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode invoice request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/stores/%s/invoices", c.baseURL, c.storeID)
	return c.do(ctx, http.MethodPost, url, bytes.NewReader(body))
}

// GetInvoice fetches the current status of an invoice
func (c *BTCPayClient) GetInvoice(ctx context.Context, invoiceID string) (*BTCPayInvoice, error) {
	url := fmt.Sprintf("%s/api/v1/stores/%s/invoices/%s", c.baseURL, c.storeID, invoiceID)
	return c.do(ctx, http.MethodGet, url, nil)
}

func (c *BTCPayClient) do(ctx context.Context, method, url string, body io.Reader) (*BTCPayInvoice, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("btcpay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("btcpay returned status %d: %s", resp.StatusCode, payload)
	}

	var invoice BTCPayInvoice
	if err := json.NewDecoder(resp.Body).Decode(&invoice); err != nil {
		return nil, fmt.Errorf("failed to decode invoice response: %w", err)
	}

	return &invoice, nil
}
