package processors

import (
	"strings"

	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/models"
)

// mergeProcessorImpl implements the MergeProcessor interface. The merge is
// a pure set union keyed by SourceID: it returns new collections and never
// mutates its inputs, which is what makes repeated merges of the same batch
// provably idempotent.
type mergeProcessorImpl struct {
	blockedSymbols map[string]bool
}

// NewMergeProcessor creates a merger. blockedSymbols are grouping keys that
// must not survive a merge; existing groups carrying one are dropped as
// legacy data repair.
func NewMergeProcessor(blockedSymbols []string) MergeProcessor {
	blocked := make(map[string]bool, len(blockedSymbols))
	for _, s := range blockedSymbols {
		if s = strings.TrimSpace(s); s != "" {
			blocked[s] = true
		}
	}
	return &mergeProcessorImpl{blockedSymbols: blocked}
}

// Merge folds incoming transactions into the existing trade groups.
// Existing transactions are always preserved (first-seen wins, since a
// SourceID maps to immutable field values); only genuinely new SourceIDs
// are appended. Groups are created on first sight of their key.
func (m *mergeProcessorImpl) Merge(existing []models.TradeGroup, incoming []models.Transaction) []models.TradeGroup {
	merged := make([]models.TradeGroup, 0, len(existing))
	indexByKey := make(map[models.GroupKey]int, len(existing))
	knownIDs := make(map[models.GroupKey]map[string]bool, len(existing))

	for _, g := range existing {
		if m.blockedSymbols[g.Symbol] {
			logger.L.Info("Merge: dropping blocked legacy trade group",
				"symbol", g.Symbol, "strike", g.Strike, "expiration", g.Expiration)
			continue
		}
		cp := models.TradeGroup{
			Symbol:       g.Symbol,
			Strike:       g.Strike,
			Expiration:   g.Expiration,
			Transactions: append([]models.Transaction(nil), g.Transactions...),
		}
		key := cp.Key()
		indexByKey[key] = len(merged)
		ids := make(map[string]bool, len(cp.Transactions))
		for _, tx := range cp.Transactions {
			ids[tx.SourceID] = true
		}
		knownIDs[key] = ids
		merged = append(merged, cp)
	}

	var added, duplicates int
	for _, tx := range incoming {
		if m.blockedSymbols[tx.Symbol] {
			continue
		}
		key := models.GroupKeyOf(tx)
		idx, ok := indexByKey[key]
		if !ok {
			idx = len(merged)
			indexByKey[key] = idx
			knownIDs[key] = make(map[string]bool, 4)
			merged = append(merged, models.TradeGroup{
				Symbol:     tx.Symbol,
				Strike:     tx.Strike,
				Expiration: tx.Expiration,
			})
		}
		if knownIDs[key][tx.SourceID] {
			duplicates++
			continue
		}
		knownIDs[key][tx.SourceID] = true
		merged[idx].Transactions = append(merged[idx].Transactions, tx)
		added++
	}

	logger.L.Debug("Merge complete", "groups", len(merged), "added", added, "duplicates", duplicates)
	return merged
}

// RemoveUpload strips every transaction attributable to the named upload
// file and drops groups left empty. Transactions from other sources sharing
// a group key are preserved.
func (m *mergeProcessorImpl) RemoveUpload(groups []models.TradeGroup, filename string) []models.TradeGroup {
	var result []models.TradeGroup
	for _, g := range groups {
		var kept []models.Transaction
		for _, tx := range g.Transactions {
			if tx.UploadFilename != filename {
				kept = append(kept, tx)
			}
		}
		if len(kept) == 0 {
			continue
		}
		result = append(result, models.TradeGroup{
			Symbol:       g.Symbol,
			Strike:       g.Strike,
			Expiration:   g.Expiration,
			Transactions: kept,
		})
	}
	return result
}
