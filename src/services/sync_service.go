// backend/src/services/sync_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/username/tradevault/backend/src/config"
	"github.com/username/tradevault/backend/src/database"
	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/model"
	"github.com/username/tradevault/backend/src/models"
	"github.com/username/tradevault/backend/src/parsers/schwabapi"
	"golang.org/x/oauth2"
)

type syncServiceImpl struct {
	importService ImportService
	normalizer    *schwabapi.Normalizer
	baseURL       string
	windowDays    int
	httpTimeout   time.Duration
}

func NewSyncService(importService ImportService) SyncService {
	return &syncServiceImpl{
		importService: importService,
		normalizer:    schwabapi.NewNormalizer(),
		baseURL:       config.Cfg.BrokerAPIBaseURL,
		windowDays:    config.Cfg.SyncWindowDays,
		httpTimeout:   30 * time.Second,
	}
}

func (s *syncServiceImpl) clientFor(ctx context.Context, userID int64) (*http.Client, error) {
	conn, err := model.GetBrokerConnection(database.DB, userID)
	if err != nil {
		return nil, err
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(conn.Token()))
	client.Timeout = s.httpTimeout
	return client, nil
}

func (s *syncServiceImpl) ListAccounts(ctx context.Context, userID int64) ([]BrokerAccount, error) {
	client, err := s.clientFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	endpoint := s.baseURL + "/accounts/accountNumbers"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: listing accounts: %v", ErrSyncFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: account listing returned %d: %s", ErrSyncFailed, resp.StatusCode, body)
	}

	var accounts []BrokerAccount
	if err := json.NewDecoder(resp.Body).Decode(&accounts); err != nil {
		return nil, fmt.Errorf("%w: decoding account list: %v", ErrSyncFailed, err)
	}
	return accounts, nil
}

// SyncTransactions pulls each linked account's trade activity over the
// bounded date window, normalizes it, and merges the whole batch through
// the import pipeline in one write. One account's failure is recorded and
// skipped; the remaining accounts still import.
func (s *syncServiceImpl) SyncTransactions(ctx context.Context, userID int64) (*SyncResult, error) {
	accounts, err := s.ListAccounts(ctx, userID)
	if err != nil {
		return nil, err
	}

	client, err := s.clientFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{
		AccountsTotal: len(accounts),
		AccountErrors: make(map[string]string),
	}

	endDate := time.Now().UTC()
	startDate := endDate.AddDate(0, 0, -s.windowDays)

	var allTxs []models.Transaction
	for _, account := range accounts {
		activities, err := s.fetchAccountActivities(ctx, client, account, startDate, endDate)
		if err != nil {
			logger.L.Warn("Sync: account fetch failed, continuing with remaining accounts",
				"userID", userID, "account", account.AccountNumber, "error", err)
			result.AccountErrors[account.AccountNumber] = err.Error()
			continue
		}

		txs, report := s.normalizer.Normalize(activities)
		allTxs = append(allTxs, txs...)
		result.Processed += report.Processed
		result.SkippedCurrency += report.SkippedCurrency
		result.AccountsSynced++
	}

	if len(result.AccountErrors) == 0 {
		result.AccountErrors = nil
	}

	if len(allTxs) == 0 {
		return result, nil
	}

	importResult, err := s.importService.ImportTransactions(userID, allTxs)
	if err != nil {
		return nil, err
	}
	result.Imported = importResult.Imported

	logger.L.Info("Broker sync complete", "userID", userID,
		"accounts", result.AccountsSynced, "imported", result.Imported,
		"skippedCurrency", result.SkippedCurrency)
	return result, nil
}

func (s *syncServiceImpl) fetchAccountActivities(ctx context.Context, client *http.Client, account BrokerAccount, startDate, endDate time.Time) ([]schwabapi.Activity, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/transactions", s.baseURL, url.PathEscape(account.HashValue))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("startDate", startDate.Format("2006-01-02T15:04:05.000Z"))
	q.Set("endDate", endDate.Format("2006-01-02T15:04:05.000Z"))
	q.Set("types", "TRADE")
	req.URL.RawQuery = q.Encode()

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("transactions endpoint returned %d: %s", resp.StatusCode, body)
	}

	var activities []schwabapi.Activity
	if err := json.NewDecoder(resp.Body).Decode(&activities); err != nil {
		return nil, fmt.Errorf("decoding transactions: %w", err)
	}
	return activities, nil
}
