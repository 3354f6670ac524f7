package accounts

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

	require.NoError(t, db.AutoMigrate(&SteamAccount{}))
	return NewService(db)
}

func TestRegisterLoginKeepsTradeURL(t *testing.T) {
	service := setupTestService(t)

	require.NoError(t, service.RegisterLogin(&SteamAccount{
		SteamID:  "steam-1",
		Nickname: "Trader",
	}))
	require.NoError(t, service.SetTradeURL("steam-1", "https://steamcommunity.com/tradeoffer/new/?partner=1&token=abc"))

	// a re-login refreshes the profile but never the trade url
	require.NoError(t, service.RegisterLogin(&SteamAccount{
		SteamID:  "steam-1",
		Nickname: "Trader Renamed",
	}))

	url, err := service.GetTradeURL("steam-1")
	require.NoError(t, err)
	require.Equal(t, "https://steamcommunity.com/tradeoffer/new/?partner=1&token=abc", url)

	account, err := service.db.GetAccount("steam-1")
	require.NoError(t, err)
	require.Equal(t, "Trader Renamed", account.Nickname)
	require.True(t, account.Online)
}

func TestSetTradeURLValidation(t *testing.T) {
	service := setupTestService(t)

	err := service.SetTradeURL("steam-1", "https://example.com/steal-your-items")
	require.ErrorIs(t, err, ErrInvalidTradeURL)

	err = service.SetTradeURL("steam-1", "")
	require.ErrorIs(t, err, ErrInvalidTradeURL)
}

func TestSetTradeURLBeforeLogin(t *testing.T) {
	service := setupTestService(t)

	// storing a trade url for an account we have never seen creates the row
	require.NoError(t, service.SetTradeURL("steam-2", "https://steamcommunity.com/tradeoffer/new/?partner=2&token=xyz"))

	url, err := service.GetTradeURL("steam-2")
	require.NoError(t, err)
	require.Equal(t, "https://steamcommunity.com/tradeoffer/new/?partner=2&token=xyz", url)
}

func TestResetTradeURL(t *testing.T) {
	service := setupTestService(t)

	require.NoError(t, service.SetTradeURL("steam-1", "https://steamcommunity.com/tradeoffer/new/?partner=1&token=abc"))
	require.NoError(t, service.ResetTradeURL("steam-1"))

	url, err := service.GetTradeURL("steam-1")
	require.NoError(t, err)
	require.Empty(t, url)

	// resetting an unknown account is a no-op
	require.NoError(t, service.ResetTradeURL("ghost"))
}

func TestGetTradeURLUnknownAccount(t *testing.T) {
	service := setupTestService(t)

	url, err := service.GetTradeURL("nobody")
	require.NoError(t, err)
	require.Empty(t, url)
}

func TestRegisterLogout(t *testing.T) {
	service := setupTestService(t)

	require.NoError(t, service.RegisterLogin(&SteamAccount{SteamID: "steam-1"}))
	require.NoError(t, service.RegisterLogout("steam-1"))

	account, err := service.db.GetAccount("steam-1")
	require.NoError(t, err)
	require.False(t, account.Online)

	// logging out an unknown account is a no-op
	require.NoError(t, service.RegisterLogout("ghost"))
}
