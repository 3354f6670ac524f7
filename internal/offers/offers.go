package offers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tastyrock/marketplace-api/internal/accounts"
)

var (
	ErrOfferNotFound = errors.New("offer not found")
	ErrInvalidPrice  = errors.New("item price is not a valid amount")
	ErrNoTradeURL    = errors.New("counterpart has no trade url on file")
)

// Service implements the offer negotiation engine: the round-numbered
// proposal ledger, the diff between successive rounds, and the check-to-pay
// verification that gates the payment handoff.
type Service struct {
	db       *Database
	accounts *accounts.Service
}

// NewService creates an offers service with the given database connection
func NewService(gormDB *gorm.DB, accountsService *accounts.Service) *Service {
	return &Service{
		db:       NewDatabase(gormDB),
		accounts: accountsService,
	}
}

// MakeOffer opens a negotiation between a buyer and a trader and returns the
// new offer id. The id loop retries on the (unlikely) uuid collision so the
// unique index can never fail the insert.
func (s *Service) MakeOffer(buyerSteamID, traderSteamID string) (string, error) {
	logger := log.With().
		Str("buyer_steamid", buyerSteamID).
		Str("trader_steamid", traderSteamID).
		Str("service", "offers").
		Logger()

	var offerID string
	for {
		offerID = uuid.New().String()
		existing, err := s.db.GetOffer(offerID)
		if err != nil {
			return "", err
		}
		if existing == nil {
			break
		}
	}

	offer := &Offer{
		OfferID:       offerID,
		BuyerSteamID:  buyerSteamID,
		TraderSteamID: traderSteamID,
		Status:        StatusInProcess,
		CreatedAt:     time.Now(),
		LastUpdate:    time.Now(),
	}

	if err := s.db.CreateOfferWithSentinel(offer); err != nil {
		logger.Error().Err(err).Msg("failed to create offer")
		return "", err
	}

	logger.Info().Str("offer_id", offerID).Msg("offer created")
	return offerID, nil
}

// GetOffer returns the offer header, ErrOfferNotFound when unknown
func (s *Service) GetOffer(offerID string) (*Offer, error) {
	offer, err := s.db.GetOffer(offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}
	return offer, nil
}

// GetOfferPrice returns the current aggregate price of an offer
func (s *Service) GetOfferPrice(offerID string) (float64, error) {
	return s.db.GetOfferPrice(offerID)
}

// UpdateOffer appends a full item snapshot as the next round and returns the
// diff against the previous round. Classification is by asset id: unknown
// asset = added, same asset with a different price = updated, everything
// else unchanged. Items dropped since the previous round count as removed
// unless their previous price was the empty-round sentinel.
func (s *Service) UpdateOffer(offerID string, items []OfferItem) (*OfferUpdateResult, error) {
	logger := log.With().
		Str("offer_id", offerID).
		Str("service", "offers").
		Logger()

	offer, err := s.db.GetOffer(offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}

	totalPrice, err := sumPrices(items)
	if err != nil {
		return nil, err
	}

	prevRound, err := s.db.MaxRound(offerID)
	if err != nil {
		return nil, err
	}

	prevRows, err := s.db.GetRoundItems(offerID, prevRound)
	if err != nil {
		return nil, err
	}

	prevByAsset := make(map[string]OfferRound, len(prevRows))
	for _, row := range prevRows {
		prevByAsset[row.AssetID] = row
	}

	inNewList := make(map[string]bool, len(items))
	for _, item := range items {
		inNewList[item.AssetID] = true
	}

	result := &OfferUpdateResult{
		OfferID:      offerID,
		TotalPrice:   totalPrice,
		TotalCount:   len(items),
		NewItems:     items,
		AddedItems:   []OfferItem{},
		RemovedItems: []OfferItem{},
		UpdatedItems: []OfferItem{},
	}

	for _, row := range prevRows {
		if !inNewList[row.AssetID] && row.Price != PriceSentinel {
			result.RemovedItems = append(result.RemovedItems, rowToItem(row))
		}
	}

	now := time.Now()
	rows := make([]OfferRound, 0, len(items))
	for _, item := range items {
		prev, seen := prevByAsset[item.AssetID]
		switch {
		case !seen:
			result.AddedItems = append(result.AddedItems, item)
		case prev.Price != item.Price:
			result.UpdatedItems = append(result.UpdatedItems, item)
		}

		rows = append(rows, OfferRound{
			OfferID:   offerID,
			Round:     prevRound + 1,
			AssetID:   item.AssetID,
			ContextID: item.ContextID,
			AppID:     item.AppID,
			Name:      item.Name,
			Price:     item.Price,
			Link:      item.Link,
			Image:     item.Image,
			Time:      now,
		})
	}

	offer.Price = totalPrice
	offer.ItemCount = len(items)
	offer.LastUpdate = now

	if err := s.db.AppendRound(offer, rows); err != nil {
		logger.Error().Err(err).Int("round", prevRound+1).Msg("failed to append round")
		return nil, err
	}

	logger.Info().
		Int("round", prevRound+1).
		Int("count", result.TotalCount).
		Float64("price", result.TotalPrice).
		Int("added", len(result.AddedItems)).
		Int("removed", len(result.RemovedItems)).
		Int("updated", len(result.UpdatedItems)).
		Msg("round appended")

	return result, nil
}

// UpdateStatus applies a client-reported status transition to the offer
// flags. Anything outside the known statuses leaves the offer untouched.
func (s *Service) UpdateStatus(offerID, status string) error {
	var accepted, paid bool

	switch status {
	case StatusAccepted:
		accepted, paid = true, false
	case StatusInProcess:
		accepted, paid = false, false
	case StatusPayProcess, StatusSuccess:
		accepted, paid = true, true
	default:
		log.Warn().
			Str("offer_id", offerID).
			Str("status", status).
			Str("service", "offers").
			Msg("ignoring unknown offer status")
		return nil
	}

	err := s.db.UpdateOfferFlags(offerID, status, accepted, paid)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOfferNotFound
	}
	return err
}

// CheckToPay verifies a client's claimed final item list against the current
// ledger round before any money moves. The lists must be set-equal on every
// field; ordering does not matter. On a match the counterpart's trade URL is
// resolved so the caller can build the handoff link.
func (s *Service) CheckToPay(offerID string, claimed []OfferItem, partnerSteamID string) (*CheckResult, error) {
	logger := log.With().
		Str("offer_id", offerID).
		Str("service", "offers").
		Logger()

	offer, err := s.db.GetOffer(offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}

	round, err := s.db.MaxRound(offerID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.GetRoundItems(offerID, round)
	if err != nil {
		return nil, err
	}

	ledger := make([]OfferItem, 0, len(rows))
	for _, row := range rows {
		if row.Price == PriceSentinel {
			continue
		}
		ledger = append(ledger, rowToItem(row))
	}

	if !itemSetsEqual(ledger, claimed) {
		logger.Warn().
			Int("ledger_count", len(ledger)).
			Int("claimed_count", len(claimed)).
			Msg("check-to-pay mismatch, blocking payment")

		return &CheckResult{
			OfferID:         offerID,
			CheckResult:     false,
			Items:           []OfferItem{},
			PartnerTradeURL: "",
		}, nil
	}

	tradeURL, err := s.accounts.GetTradeURL(partnerSteamID)
	if err != nil {
		return nil, err
	}
	if tradeURL == "" {
		return nil, ErrNoTradeURL
	}

	logger.Info().Int("count", len(ledger)).Msg("check-to-pay authorized")

	return &CheckResult{
		OfferID:         offerID,
		CheckResult:     true,
		Items:           ledger,
		PartnerTradeURL: tradeURL,
	}, nil
}

// itemSetsEqual compares two item lists as multisets of full item values.
// Every claimed item must consume exactly one matching ledger item, so a
// duplicated claim can never pass against distinct ledger entries.
func itemSetsEqual(a, b []OfferItem) bool {
	if len(a) != len(b) {
		return false
	}

	counts := make(map[OfferItem]int, len(a))
	for _, item := range a {
		counts[item]++
	}

	for _, item := range b {
		if counts[item] == 0 {
			return false
		}
		counts[item]--
	}

	return true
}

func rowToItem(row OfferRound) OfferItem {
	return OfferItem{
		AssetID:   row.AssetID,
		ContextID: row.ContextID,
		AppID:     row.AppID,
		Name:      row.Name,
		Price:     row.Price,
		Link:      row.Link,
		Image:     row.Image,
	}
}

func sumPrices(items []OfferItem) (float64, error) {
	var total float64
	for _, item := range items {
		price, err := strconv.ParseFloat(strings.TrimSpace(item.Price), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: asset %s: %q", ErrInvalidPrice, item.AssetID, item.Price)
		}
		total += price
	}
	return total, nil
}
