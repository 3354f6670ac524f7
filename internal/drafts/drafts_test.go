package drafts

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&Draft{}, &DraftItem{}))
	return NewService(db)
}

func draftItem(assetID string) DraftItem {
	return DraftItem{
		AppID:     730,
		ContextID: "2",
		AssetID:   assetID,
		Amount:    1,
	}
}

func TestCreateAndGetDraft(t *testing.T) {
	service := setupTestService(t)

	draftID, err := service.CreateDraft(
		"offer-1",
		"https://steamcommunity.com/tradeoffer/new/?partner=1&token=abc",
		false,
		[]DraftItem{draftItem("asset-x"), draftItem("asset-y")},
	)
	require.NoError(t, err)
	require.NotEmpty(t, draftID)

	content, err := service.GetDraft(draftID)
	require.NoError(t, err)
	require.Equal(t, draftID, content.DraftID)
	require.Equal(t, "offer-1", content.OfferID)
	require.False(t, content.Autosend)
	require.Len(t, content.Give, 2)
	for _, item := range content.Give {
		require.Equal(t, SideGive, item.Side)
		require.Equal(t, uint32(730), item.AppID)
		require.Equal(t, 1, item.Amount)
	}
}

func TestGetDraftIdempotent(t *testing.T) {
	service := setupTestService(t)

	draftID, err := service.CreateDraft(
		"offer-1",
		"https://steamcommunity.com/tradeoffer/new/?partner=1&token=abc",
		true,
		[]DraftItem{draftItem("asset-x")},
	)
	require.NoError(t, err)

	first, err := service.GetDraft(draftID)
	require.NoError(t, err)

	// drafts are immutable, repeated reads must match
	second, err := service.GetDraft(draftID)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGetDraftUnknown(t *testing.T) {
	service := setupTestService(t)

	_, err := service.GetDraft("no-such-draft")
	require.ErrorIs(t, err, ErrDraftNotFound)
}

func TestCreateDraftAtomicity(t *testing.T) {
	service := setupTestService(t)

	// an item without an asset id aborts the whole draft
	_, err := service.CreateDraft(
		"offer-1",
		"https://steamcommunity.com/tradeoffer/new/?partner=1&token=abc",
		false,
		[]DraftItem{draftItem("asset-x"), draftItem("")},
	)
	require.Error(t, err)

	var headers int64
	require.NoError(t, service.db.db.Model(&Draft{}).Count(&headers).Error)
	require.Zero(t, headers)

	var items int64
	require.NoError(t, service.db.db.Model(&DraftItem{}).Count(&items).Error)
	require.Zero(t, items)
}
