package services

import (
	"context"
	"errors"
	"io"

	"github.com/username/tradevault/backend/src/models"
)

var (
	ErrParsingFailed    = errors.New("parsing failed")
	ErrProcessingFailed = errors.New("processing failed")
	ErrSyncFailed       = errors.New("broker sync failed")
)

// ImportResult reports what an import did. Partial row failures show up as
// a reduced Processed count, not as an error.
type ImportResult struct {
	ImportID   string `json:"import_id"`
	Processed  int    `json:"processed"`
	Imported   int    `json:"imported"`
	Duplicates int    `json:"duplicates"`
}

// ImportService is the orchestration layer around the pure core: it loads
// the persisted trade groups, runs normalize/merge/match, and writes the
// whole updated set back.
type ImportService interface {
	ProcessUpload(fileReader io.Reader, userID int64, filename string) (*ImportResult, error)
	ProcessGrid(grid [][]string, userID int64, filename string) (*ImportResult, error)
	ImportTransactions(userID int64, txs []models.Transaction) (*ImportResult, error)
	DeleteUpload(userID int64, filename string) error

	GetTradeGroups(userID int64) ([]models.TradeGroup, error)
	GetClosedTrades(userID int64) ([]models.ClosedTrade, error)
	GetDailyStats(userID int64) ([]models.DailyStats, error)
	GetSummary(userID int64) (models.SummaryStats, error)
	GetCumulativeProfitLoss(userID int64) ([]models.CumulativePoint, error)

	InvalidateUserCache(userID int64)
}

// BrokerAccount is one linked brokerage account as the broker's account
// listing endpoint reports it.
type BrokerAccount struct {
	AccountNumber string `json:"accountNumber"`
	HashValue     string `json:"hashValue"`
}

// SyncResult reports a broker sync. One failed account never blocks the
// others; its error is recorded here instead.
type SyncResult struct {
	AccountsTotal   int               `json:"accounts_total"`
	AccountsSynced  int               `json:"accounts_synced"`
	Processed       int               `json:"processed"`
	Imported        int               `json:"imported"`
	SkippedCurrency int               `json:"skipped_currency"`
	AccountErrors   map[string]string `json:"account_errors,omitempty"`
}

// SyncService pulls transactions from the broker API for every linked
// account and feeds them through the import pipeline.
type SyncService interface {
	ListAccounts(ctx context.Context, userID int64) ([]BrokerAccount, error)
	SyncTransactions(ctx context.Context, userID int64) (*SyncResult, error)
}
