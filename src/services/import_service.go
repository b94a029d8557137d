// backend/src/services/import_service.go
package services

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/models"
	"github.com/username/tradevault/backend/src/parsers"
	"github.com/username/tradevault/backend/src/processors"
)

const (
	ckClosedTrades = "res_closed_trades_user_%d"
	ckDailyStats   = "agg_daily_stats_user_%d"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type importServiceImpl struct {
	mergeProcessor     processors.MergeProcessor
	roundTripProcessor processors.RoundTripProcessor
	statsProcessor     processors.StatsProcessor
	reportCache        *cache.Cache

	// Imports are read-modify-write over a user's whole dataset; two
	// concurrent imports for the same user would silently drop one
	// merge result without this serialization.
	userLocks sync.Map // userID -> *sync.Mutex
}

func NewImportService(
	mergeProcessor processors.MergeProcessor,
	roundTripProcessor processors.RoundTripProcessor,
	statsProcessor processors.StatsProcessor,
	reportCache *cache.Cache,
) ImportService {
	return &importServiceImpl{
		mergeProcessor:     mergeProcessor,
		roundTripProcessor: roundTripProcessor,
		statsProcessor:     statsProcessor,
		reportCache:        reportCache,
	}
}

func (s *importServiceImpl) lockUser(userID int64) func() {
	v, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *importServiceImpl) ProcessUpload(fileReader io.Reader, userID int64, filename string) (*ImportResult, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessUpload START", "userID", userID, "filename", filename)

	parser, err := parsers.GetParser("sheet")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	txs, err := parser.Parse(fileReader, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	result, err := s.ImportTransactions(userID, txs)
	if err != nil {
		return nil, err
	}
	logger.L.Info("ProcessUpload END", "userID", userID, "imported", result.Imported,
		"duration", time.Since(overallStartTime))
	return result, nil
}

func (s *importServiceImpl) ProcessGrid(grid [][]string, userID int64, filename string) (*ImportResult, error) {
	parser, err := parsers.GetParser("sheet")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	txs, err := parser.ParseGrid(grid, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return s.ImportTransactions(userID, txs)
}

// ImportTransactions merges already-normalized transactions into the
// user's persisted groups. Also used by the broker sync path.
func (s *importServiceImpl) ImportTransactions(userID int64, txs []models.Transaction) (*ImportResult, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	groups, err := loadTradeGroups(userID)
	if err != nil {
		return nil, err
	}

	before := countTransactions(groups)
	merged := s.mergeProcessor.Merge(groups, rebaseSeq(groups, txs))
	after := countTransactions(merged)

	if err := saveTradeGroups(userID, merged); err != nil {
		return nil, err
	}
	s.InvalidateUserCache(userID)

	imported := after - before
	if imported < 0 {
		// A blocklist repair can shrink the set below its prior size.
		imported = 0
	}
	result := &ImportResult{
		ImportID:   uuid.NewString(),
		Processed:  len(txs),
		Imported:   imported,
		Duplicates: len(txs) - imported,
	}
	if result.Duplicates < 0 {
		result.Duplicates = 0
	}
	return result, nil
}

// DeleteUpload removes exactly the transactions attributable to one
// uploaded file, preserving transactions shared with other sources at the
// same trade-group key.
func (s *importServiceImpl) DeleteUpload(userID int64, filename string) error {
	unlock := s.lockUser(userID)
	defer unlock()

	groups, err := loadTradeGroups(userID)
	if err != nil {
		return err
	}
	remaining := s.mergeProcessor.RemoveUpload(groups, filename)
	if err := saveTradeGroups(userID, remaining); err != nil {
		return err
	}
	s.InvalidateUserCache(userID)
	logger.L.Info("Deleted upload", "userID", userID, "filename", filename)
	return nil
}

// InvalidateUserCache clears all cached analytics for a user, forcing a
// recompute on the next request.
func (s *importServiceImpl) InvalidateUserCache(userID int64) {
	keysToDelete := []string{
		fmt.Sprintf(ckClosedTrades, userID),
		fmt.Sprintf(ckDailyStats, userID),
	}
	for _, key := range keysToDelete {
		s.reportCache.Delete(key)
	}
	logger.L.Debug("Invalidated all caches for user", "userID", userID)
}

func (s *importServiceImpl) GetTradeGroups(userID int64) ([]models.TradeGroup, error) {
	return loadTradeGroups(userID)
}

// GetClosedTrades recomputes the round-trip matching pass over the user's
// full groups. The matcher is rebuilt from scratch every time; the cache
// exists for performance only, never for correctness.
func (s *importServiceImpl) GetClosedTrades(userID int64) ([]models.ClosedTrade, error) {
	cacheKey := fmt.Sprintf(ckClosedTrades, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for closed trades", "userID", userID)
		return cached.([]models.ClosedTrade), nil
	}

	groups, err := loadTradeGroups(userID)
	if err != nil {
		return nil, err
	}
	closed := s.roundTripProcessor.Process(groups)
	s.reportCache.Set(cacheKey, closed, DefaultCacheExpiration)
	return closed, nil
}

func (s *importServiceImpl) GetDailyStats(userID int64) ([]models.DailyStats, error) {
	cacheKey := fmt.Sprintf(ckDailyStats, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]models.DailyStats), nil
	}
	closed, err := s.GetClosedTrades(userID)
	if err != nil {
		return nil, err
	}
	daily := s.statsProcessor.Daily(closed)
	s.reportCache.Set(cacheKey, daily, DefaultCacheExpiration)
	return daily, nil
}

func (s *importServiceImpl) GetSummary(userID int64) (models.SummaryStats, error) {
	closed, err := s.GetClosedTrades(userID)
	if err != nil {
		return models.SummaryStats{}, err
	}
	return s.statsProcessor.Summary(closed), nil
}

func (s *importServiceImpl) GetCumulativeProfitLoss(userID int64) ([]models.CumulativePoint, error) {
	closed, err := s.GetClosedTrades(userID)
	if err != nil {
		return nil, err
	}
	return s.statsProcessor.Cumulative(closed), nil
}

func countTransactions(groups []models.TradeGroup) int {
	total := 0
	for _, g := range groups {
		total += len(g.Transactions)
	}
	return total
}

// rebaseSeq shifts the incoming batch's sequence numbers past the user's
// current maximum. Parsers number from zero per file, so without this two
// imports could collide on (ExecTime, Seq) and leave the matcher's
// tie-break ambiguous. Relative order within the batch is preserved.
func rebaseSeq(existing []models.TradeGroup, txs []models.Transaction) []models.Transaction {
	var base int64
	for _, g := range existing {
		for _, tx := range g.Transactions {
			if tx.Seq >= base {
				base = tx.Seq + 1
			}
		}
	}
	rebased := make([]models.Transaction, len(txs))
	copy(rebased, txs)
	sort.SliceStable(rebased, func(i, j int) bool { return rebased[i].Seq < rebased[j].Seq })
	for i := range rebased {
		rebased[i].Seq = base + int64(i)
	}
	return rebased
}
