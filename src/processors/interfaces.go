package processors

import (
	"github.com/username/tradevault/backend/src/models"
)

// MergeProcessor folds newly normalized transactions into the persisted
// trade-group set without duplication.
type MergeProcessor interface {
	Merge(existing []models.TradeGroup, incoming []models.Transaction) []models.TradeGroup
	RemoveUpload(groups []models.TradeGroup, filename string) []models.TradeGroup
}

// RoundTripProcessor reconstructs closed round-trip trades from trade
// groups.
type RoundTripProcessor interface {
	Process(groups []models.TradeGroup) []models.ClosedTrade
}

// StatsProcessor computes aggregate statistics over closed trades.
type StatsProcessor interface {
	Daily(trades []models.ClosedTrade) []models.DailyStats
	Summary(trades []models.ClosedTrade) models.SummaryStats
	Cumulative(trades []models.ClosedTrade) []models.CumulativePoint
}
