package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"bitget-pnl-tracker-go/internal/config"
	"bitget-pnl-tracker-go/internal/database"
	"bitget-pnl-tracker-go/internal/fills"
	"bitget-pnl-tracker-go/internal/models"
	"bitget-pnl-tracker-go/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		History: config.History{
			LookbackDays: 7,
			PageSize:     100,
			StrictCutoff: true,
			QuoteAssets:  []string{"USDT"},
		},
	}
}

// setupEngine creates an engine with a mock client, an in-memory DB and a fixed clock.
func setupEngine(t *testing.T) (*Engine, *MockRestClient, *gorm.DB) {
	db := testutil.SetupDB(t)
	client := new(MockRestClient)
	e := NewEngine(zap.NewNop(), testConfig(), client, db)
	e.now = func() time.Time { return testNow }
	return e, client, db
}

func historyPage() []fills.RawFill {
	buy := raw(1, "buy", "100", testNow.Add(-2*time.Hour))
	buy.FeeDetail.TotalFee = "0.1"
	sell := raw(2, "sell", "110", testNow.Add(-time.Hour))
	sell.FeeDetail.TotalFee = "0.11"
	broken := raw(3, "buy", "NaN", testNow.Add(-30*time.Minute))
	// newest first, as the backend serves it
	return []fills.RawFill{broken, sell, buy}
}

func TestEngine_Refresh(t *testing.T) {
	// Arrange
	e, client, db := setupEngine(t)
	client.On("GetTradeFills", mock.Anything, mock.Anything).Return(historyPage(), nil)

	// Act
	snap, err := e.Refresh(context.Background())

	// Assert
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.Run.Pages)
	assert.Equal(t, 3, snap.Run.Fetched)
	assert.Equal(t, 1, snap.Run.Rejected)
	assert.Equal(t, int64(2), snap.Run.Stored)
	require.Len(t, snap.Rejected, 1)
	assert.Contains(t, snap.Rejected[0], "price")

	require.Len(t, snap.Groups, 1)
	group := snap.Groups[0]
	assert.Equal(t, "BTCUSDT", group.Symbol)
	require.Len(t, group.Pairs, 1)
	require.NotNil(t, group.Pairs[0].PnL)
	assert.Equal(t, "9.79", group.Pairs[0].PnL.String())
	assert.Equal(t, "9.79", snap.Statistics.AllTime.TotalPnL.String())
	assert.Same(t, snap, e.Snapshot())

	cached, err := database.LoadFills(db, database.FillFilter{})
	require.NoError(t, err)
	assert.Len(t, cached, 2)

	run, err := database.LatestRun(db)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, snap.Run.ID, run.ID)
	assert.Empty(t, run.Error)
}

func TestEngine_Refresh_IsIncremental(t *testing.T) {
	e, client, db := setupEngine(t)
	client.On("GetTradeFills", mock.Anything, mock.Anything).Return(historyPage(), nil)

	_, err := e.Refresh(context.Background())
	require.NoError(t, err)
	snap, err := e.Refresh(context.Background())
	require.NoError(t, err)

	assert.Zero(t, snap.Run.Stored)
	var runs int64
	require.NoError(t, db.Model(&models.RefreshRun{}).Count(&runs).Error)
	assert.Equal(t, int64(2), runs)
}

func TestEngine_Refresh_FetchError(t *testing.T) {
	e, client, db := setupEngine(t)
	client.On("GetTradeFills", mock.Anything, mock.Anything).Return([]fills.RawFill(nil), errors.New("API down"))

	snap, err := e.Refresh(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.Contains(t, err.Error(), "API down")
	assert.Nil(t, e.Snapshot())

	run, err := database.LatestRun(db)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Contains(t, run.Error, "API down")
}

func TestEngine_Run_SingleRefresh(t *testing.T) {
	e, client, _ := setupEngine(t)
	client.On("GetTradeFills", mock.Anything, mock.Anything).Return([]fills.RawFill{}, nil).Once()

	// RefreshInterval is zero, so Run returns after one refresh.
	e.Run(context.Background())

	client.AssertExpectations(t)
	require.NotNil(t, e.Snapshot())
	assert.Empty(t, e.Snapshot().Groups)
}
