package offers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tastyrock/marketplace-api/internal/accounts"
)

func setupTestService(t *testing.T) (*Service, *accounts.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&Offer{}, &OfferRound{}, &accounts.SteamAccount{}))

	accountsService := accounts.NewService(db)
	return NewService(db, accountsService), accountsService
}

func item(assetID, name, price string) OfferItem {
	return OfferItem{
		AssetID:   assetID,
		ContextID: "2",
		AppID:     "730",
		Name:      name,
		Price:     price,
		Link:      "https://steamcommunity.com/market/listings/730/" + name,
		Image:     "https://cdn.example.com/" + assetID + ".png",
	}
}

func TestMakeOffer(t *testing.T) {
	service, _ := setupTestService(t)

	offerID, err := service.MakeOffer("buyer-1", "trader-1")
	require.NoError(t, err)
	require.NotEmpty(t, offerID)

	offer, err := service.GetOffer(offerID)
	require.NoError(t, err)
	require.Equal(t, "buyer-1", offer.BuyerSteamID)
	require.Equal(t, "trader-1", offer.TraderSteamID)
	require.Equal(t, StatusInProcess, offer.Status)
	require.False(t, offer.Accepted)
	require.False(t, offer.Paid)

	// creation writes the empty round 0 sentinel
	rows, err := service.db.GetRoundItems(offerID, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, PriceSentinel, rows[0].Price)
	require.Empty(t, rows[0].AssetID)
}

func TestGetOfferUnknown(t *testing.T) {
	service, _ := setupTestService(t)

	_, err := service.GetOffer("no-such-offer")
	require.ErrorIs(t, err, ErrOfferNotFound)
}

func TestUpdateOfferFirstRound(t *testing.T) {
	service, _ := setupTestService(t)

	offerID, err := service.MakeOffer("buyer-1", "trader-1")
	require.NoError(t, err)

	result, err := service.UpdateOffer(offerID, []OfferItem{
		item("asset-x", "AK-47 Redline", "5.00"),
	})
	require.NoError(t, err)

	// the sentinel never counts as removed
	require.Len(t, result.AddedItems, 1)
	require.Empty(t, result.RemovedItems)
	require.Empty(t, result.UpdatedItems)
	require.Equal(t, 1, result.TotalCount)
	require.InDelta(t, 5.00, result.TotalPrice, 0.001)

	offer, err := service.GetOffer(offerID)
	require.NoError(t, err)
	require.Equal(t, 1, offer.ItemCount)
	require.InDelta(t, 5.00, offer.Price, 0.001)
}

func TestUpdateOfferDiff(t *testing.T) {
	service, _ := setupTestService(t)

	offerID, err := service.MakeOffer("buyer-1", "trader-1")
	require.NoError(t, err)

	_, err = service.UpdateOffer(offerID, []OfferItem{
		item("asset-x", "AK-47 Redline", "5.00"),
	})
	require.NoError(t, err)

	// same asset at a new price plus a new asset
	result, err := service.UpdateOffer(offerID, []OfferItem{
		item("asset-x", "AK-47 Redline", "6.00"),
		item("asset-y", "AWP Asiimov", "3.00"),
	})
	require.NoError(t, err)

	require.Len(t, result.UpdatedItems, 1)
	require.Equal(t, "asset-x", result.UpdatedItems[0].AssetID)
	require.Len(t, result.AddedItems, 1)
	require.Equal(t, "asset-y", result.AddedItems[0].AssetID)
	require.Empty(t, result.RemovedItems)
	require.Equal(t, 2, result.TotalCount)
	require.InDelta(t, 9.00, result.TotalPrice, 0.001)
}

func TestUpdateOfferRemoval(t *testing.T) {
	service, _ := setupTestService(t)

	offerID, err := service.MakeOffer("buyer-1", "trader-1")
	require.NoError(t, err)

	_, err = service.UpdateOffer(offerID, []OfferItem{
		item("asset-x", "AK-47 Redline", "5.00"),
		item("asset-y", "AWP Asiimov", "3.00"),
	})
	require.NoError(t, err)

	result, err := service.UpdateOffer(offerID, []OfferItem{
		item("asset-y", "AWP Asiimov", "3.00"),
	})
	require.NoError(t, err)

	require.Len(t, result.RemovedItems, 1)
	require.Equal(t, "asset-x", result.RemovedItems[0].AssetID)
	require.Empty(t, result.AddedItems)
	require.Empty(t, result.UpdatedItems)
	require.Equal(t, 1, result.TotalCount)
}

func TestUpdateOfferMonotonicRounds(t *testing.T) {
	service, _ := setupTestService(t)

	offerID, err := service.MakeOffer("buyer-1", "trader-1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = service.UpdateOffer(offerID, []OfferItem{
			item("asset-x", "AK-47 Redline", "5.00"),
		})
		require.NoError(t, err)
	}

	round, err := service.db.MaxRound(offerID)
	require.NoError(t, err)
	require.Equal(t, 3, round)
}

func TestUpdateOfferInvalidPrice(t *testing.T) {
	service, _ := setupTestService(t)

	offerID, err := service.MakeOffer("buyer-1", "trader-1")
	require.NoError(t, err)

	_, err = service.UpdateOffer(offerID, []OfferItem{
		item("asset-x", "AK-47 Redline", "not-a-number"),
	})
	require.ErrorIs(t, err, ErrInvalidPrice)

	// the failed update must not have consumed a round
	round, err := service.db.MaxRound(offerID)
	require.NoError(t, err)
	require.Equal(t, 0, round)
}

func TestUpdateOfferUnknownOffer(t *testing.T) {
	service, _ := setupTestService(t)

	_, err := service.UpdateOffer("no-such-offer", []OfferItem{
		item("asset-x", "AK-47 Redline", "5.00"),
	})
	require.ErrorIs(t, err, ErrOfferNotFound)
}

func TestUpdateStatusTransitions(t *testing.T) {
	service, _ := setupTestService(t)

	offerID, err := service.MakeOffer("buyer-1", "trader-1")
	require.NoError(t, err)

	require.NoError(t, service.UpdateStatus(offerID, StatusAccepted))
	offer, err := service.GetOffer(offerID)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, offer.Status)
	require.True(t, offer.Accepted)
	require.False(t, offer.Paid)

	require.NoError(t, service.UpdateStatus(offerID, StatusSuccess))
	offer, err = service.GetOffer(offerID)
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, offer.Status)
	require.True(t, offer.Accepted)
	require.True(t, offer.Paid)

	// back to negotiation clears both flags
	require.NoError(t, service.UpdateStatus(offerID, StatusInProcess))
	offer, err = service.GetOffer(offerID)
	require.NoError(t, err)
	require.False(t, offer.Accepted)
	require.False(t, offer.Paid)
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	service, _ := setupTestService(t)

	offerID, err := service.MakeOffer("buyer-1", "trader-1")
	require.NoError(t, err)

	// unknown statuses are ignored without touching the offer
	require.NoError(t, service.UpdateStatus(offerID, "EXPLODED"))
	offer, err := service.GetOffer(offerID)
	require.NoError(t, err)
	require.Equal(t, StatusInProcess, offer.Status)
}

func TestUpdateStatusUnknownOffer(t *testing.T) {
	service, _ := setupTestService(t)

	err := service.UpdateStatus("no-such-offer", StatusAccepted)
	require.ErrorIs(t, err, ErrOfferNotFound)
}

func TestCheckToPayMatch(t *testing.T) {
	service, accountsService := setupTestService(t)

	require.NoError(t, accountsService.RegisterLogin(&accounts.SteamAccount{SteamID: "trader-1", Nickname: "Trader"}))
	require.NoError(t, accountsService.SetTradeURL("trader-1", "https://steamcommunity.com/tradeoffer/new/?partner=1&token=abc"))

	offerID, err := service.MakeOffer("buyer-1", "trader-1")
	require.NoError(t, err)

	items := []OfferItem{
		item("asset-x", "AK-47 Redline", "5.00"),
		item("asset-y", "AWP Asiimov", "3.00"),
	}
	_, err = service.UpdateOffer(offerID, items)
	require.NoError(t, err)

	// claimed list in reverse order still matches
	claimed := []OfferItem{items[1], items[0]}
	result, err := service.CheckToPay(offerID, claimed, "trader-1")
	require.NoError(t, err)
	require.True(t, result.CheckResult)
	require.Len(t, result.Items, 2)
	require.Equal(t, "https://steamcommunity.com/tradeoffer/new/?partner=1&token=abc", result.PartnerTradeURL)
}

func TestCheckToPayMismatch(t *testing.T) {
	service, _ := setupTestService(t)

	offerID, err := service.MakeOffer("buyer-1", "trader-1")
	require.NoError(t, err)

	_, err = service.UpdateOffer(offerID, []OfferItem{
		item("asset-x", "AK-47 Redline", "5.00"),
	})
	require.NoError(t, err)

	// a doctored price fails the set comparison without an error
	result, err := service.CheckToPay(offerID, []OfferItem{
		item("asset-x", "AK-47 Redline", "0.01"),
	}, "trader-1")
	require.NoError(t, err)
	require.False(t, result.CheckResult)
	require.Empty(t, result.Items)
	require.Empty(t, result.PartnerTradeURL)
}

func TestCheckToPayCountMismatch(t *testing.T) {
	service, _ := setupTestService(t)

	offerID, err := service.MakeOffer("buyer-1", "trader-1")
	require.NoError(t, err)

	_, err = service.UpdateOffer(offerID, []OfferItem{
		item("asset-x", "AK-47 Redline", "5.00"),
		item("asset-y", "AWP Asiimov", "3.00"),
	})
	require.NoError(t, err)

	result, err := service.CheckToPay(offerID, []OfferItem{
		item("asset-x", "AK-47 Redline", "5.00"),
	}, "trader-1")
	require.NoError(t, err)
	require.False(t, result.CheckResult)
}

func TestCheckToPayNoTradeURL(t *testing.T) {
	service, _ := setupTestService(t)

	offerID, err := service.MakeOffer("buyer-1", "trader-1")
	require.NoError(t, err)

	items := []OfferItem{item("asset-x", "AK-47 Redline", "5.00")}
	_, err = service.UpdateOffer(offerID, items)
	require.NoError(t, err)

	_, err = service.CheckToPay(offerID, items, "trader-1")
	require.ErrorIs(t, err, ErrNoTradeURL)
}

func TestItemSetsEqual(t *testing.T) {
	a := item("asset-x", "AK-47 Redline", "5.00")
	b := item("asset-y", "AWP Asiimov", "3.00")

	require.True(t, itemSetsEqual([]OfferItem{a, b}, []OfferItem{b, a}))
	require.False(t, itemSetsEqual([]OfferItem{a}, []OfferItem{a, b}))

	// any field difference on the same asset fails the comparison
	c := a
	c.Name = "AK-47 Case Hardened"
	require.False(t, itemSetsEqual([]OfferItem{a}, []OfferItem{c}))

	// a duplicated claim cannot stand in for a distinct ledger item
	require.False(t, itemSetsEqual([]OfferItem{a, b}, []OfferItem{a, a}))
	require.True(t, itemSetsEqual([]OfferItem{a, a}, []OfferItem{a, a}))
}

func TestCheckToPayDuplicateClaim(t *testing.T) {
	service, _ := setupTestService(t)

	offerID, err := service.MakeOffer("buyer-1", "trader-1")
	require.NoError(t, err)

	_, err = service.UpdateOffer(offerID, []OfferItem{
		item("asset-x", "AK-47 Redline", "5.00"),
		item("asset-y", "AWP Asiimov", "3.00"),
	})
	require.NoError(t, err)

	// same element count, but one ledger item claimed twice
	result, err := service.CheckToPay(offerID, []OfferItem{
		item("asset-x", "AK-47 Redline", "5.00"),
		item("asset-x", "AK-47 Redline", "5.00"),
	}, "trader-1")
	require.NoError(t, err)
	require.False(t, result.CheckResult)
	require.Empty(t, result.Items)
}

func TestParseAppID(t *testing.T) {
	appID, err := parseAppID(" 730 ")
	require.NoError(t, err)
	require.Equal(t, uint32(730), appID)

	_, err = parseAppID("not-a-number")
	require.Error(t, err)

	_, err = parseAppID("")
	require.Error(t, err)
}
