package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradevault/backend/src/database"
	"github.com/username/tradevault/backend/src/model"
	"github.com/username/tradevault/backend/src/parsers/schwabapi"
	"golang.org/x/oauth2"
)

// newTestSyncService points the sync pipeline at a fake broker API and
// stores a token for user 1 so clientFor finds a connection.
func newTestSyncService(t *testing.T, broker http.Handler) (SyncService, ImportService) {
	t.Helper()

	importService := newTestImportService(t)

	server := httptest.NewServer(broker)
	t.Cleanup(server.Close)

	require.NoError(t, model.UpsertBrokerConnection(database.DB, 1, &oauth2.Token{
		AccessToken: "test-token",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}))

	return &syncServiceImpl{
		importService: importService,
		normalizer:    schwabapi.NewNormalizer(),
		baseURL:       server.URL,
		windowDays:    60,
		httpTimeout:   5 * time.Second,
	}, importService
}

func optionActivity(activityID int64, timeStr string, amount, price float64, effect string) schwabapi.Activity {
	return schwabapi.Activity{
		ActivityID: activityID,
		Time:       timeStr,
		Type:       "TRADE",
		TransferItems: []schwabapi.TransferItem{{
			Instrument: schwabapi.Instrument{
				AssetType:        "OPTION",
				UnderlyingSymbol: "SPY",
				StrikePrice:      550,
				ExpirationDate:   "2025-08-15T00:00:00Z",
				PutCall:          "CALL",
			},
			Amount:         amount,
			Price:          price,
			PositionEffect: effect,
		}},
	}
}

func TestSyncTransactionsEndToEnd(t *testing.T) {
	broker := http.NewServeMux()
	broker.HandleFunc("/accounts/accountNumbers", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]BrokerAccount{{AccountNumber: "12345678", HashValue: "HASH1"}})
	})
	broker.HandleFunc("/accounts/HASH1/transactions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TRADE", r.URL.Query().Get("types"))
		assert.NotEmpty(t, r.URL.Query().Get("startDate"))
		json.NewEncoder(w).Encode([]schwabapi.Activity{
			optionActivity(1, "2025-07-21T10:00:00Z", 10, 2.00, "OPENING"),
			optionActivity(2, "2025-07-21T11:00:00Z", -10, 3.00, "CLOSING"),
		})
	})

	svc, importService := newTestSyncService(t, broker)

	result, err := svc.SyncTransactions(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, result.AccountsTotal)
	assert.Equal(t, 1, result.AccountsSynced)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.Imported)
	assert.Empty(t, result.AccountErrors)

	trades, err := importService.GetClosedTrades(1)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, 1000.00, trades[0].ProfitLoss)

	// A second sync of the same window imports nothing new.
	again, err := svc.SyncTransactions(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Imported)
}

func TestSyncContinuesPastFailingAccount(t *testing.T) {
	broker := http.NewServeMux()
	broker.HandleFunc("/accounts/accountNumbers", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]BrokerAccount{
			{AccountNumber: "11111111", HashValue: "BAD"},
			{AccountNumber: "22222222", HashValue: "GOOD"},
		})
	})
	broker.HandleFunc("/accounts/BAD/transactions", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	})
	broker.HandleFunc("/accounts/GOOD/transactions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]schwabapi.Activity{
			optionActivity(3, "2025-07-21T10:00:00Z", 10, 2.00, "OPENING"),
		})
	})

	svc, _ := newTestSyncService(t, broker)

	result, err := svc.SyncTransactions(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 2, result.AccountsTotal)
	assert.Equal(t, 1, result.AccountsSynced)
	assert.Equal(t, 1, result.Imported)
	require.Contains(t, result.AccountErrors, "11111111")
	assert.True(t, strings.Contains(result.AccountErrors["11111111"], "502"))
}

func TestSyncWithoutConnectionFails(t *testing.T) {
	importService := newTestImportService(t)
	svc := &syncServiceImpl{
		importService: importService,
		normalizer:    schwabapi.NewNormalizer(),
		baseURL:       "http://127.0.0.1:0",
		windowDays:    60,
		httpTimeout:   time.Second,
	}

	_, err := svc.SyncTransactions(context.Background(), 1)
	assert.ErrorIs(t, err, model.ErrNoBrokerConnection)
}

func TestListAccounts(t *testing.T) {
	broker := http.NewServeMux()
	broker.HandleFunc("/accounts/accountNumbers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]BrokerAccount{{AccountNumber: "12345678", HashValue: "HASH1"}})
	})

	svc, _ := newTestSyncService(t, broker)

	accounts, err := svc.ListAccounts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "12345678", accounts[0].AccountNumber)
	assert.Equal(t, "HASH1", accounts[0].HashValue)
}
