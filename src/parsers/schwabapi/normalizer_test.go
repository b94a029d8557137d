package schwabapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/models"
)

func init() {
	logger.InitLogger("error")
}

func optionLeg(amount, price float64, effect string) TransferItem {
	return TransferItem{
		Instrument: Instrument{
			AssetType:        "OPTION",
			Symbol:           "SPY   250815C00550000",
			UnderlyingSymbol: "SPY",
			StrikePrice:      550,
			ExpirationDate:   "2025-08-15T00:00:00+00:00",
			PutCall:          "CALL",
		},
		Amount:         amount,
		Price:          price,
		PositionEffect: effect,
	}
}

func currencyLeg(amount float64) TransferItem {
	return TransferItem{
		Instrument: Instrument{AssetType: "CURRENCY", Symbol: "CURRENCY_USD"},
		Amount:     amount,
	}
}

func TestNormalizeSkipsCurrencyLegs(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	activities := []Activity{{
		ActivityID:    91000001,
		Time:          "2025-07-21T10:15:30+0000",
		Type:          "TRADE",
		TransferItems: []TransferItem{currencyLeg(-1250), optionLeg(10, 1.25, "OPENING")},
	}}

	txs, report := n.Normalize(activities)

	require.Len(t, txs, 1)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.SkippedCurrency)
	assert.Equal(t, "SPY", txs[0].Symbol)
	assert.Equal(t, models.InstrumentCall, txs[0].Type)
}

func TestNormalizeSideAndQuantityFromSignedAmount(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	activities := []Activity{
		{ActivityID: 1, Time: "2025-07-21T10:15:30Z", Type: "TRADE",
			TransferItems: []TransferItem{optionLeg(10, 1.25, "OPENING")}},
		{ActivityID: 2, Time: "2025-07-21T11:30:00Z", Type: "TRADE",
			TransferItems: []TransferItem{optionLeg(-10, 2.10, "CLOSING")}},
	}

	txs, report := n.Normalize(activities)
	require.Len(t, txs, 2)
	assert.Equal(t, 2, report.Processed)

	assert.Equal(t, models.SideBuy, txs[0].Side)
	assert.Equal(t, 10, txs[0].Quantity)
	assert.Equal(t, models.PosEffectOpen, txs[0].PosEffect)

	assert.Equal(t, models.SideSell, txs[1].Side)
	assert.Equal(t, 10, txs[1].Quantity)
	assert.Equal(t, models.PosEffectClose, txs[1].PosEffect)
}

func TestNormalizePriceFallsBackToCostOverAmount(t *testing.T) {
	t.Parallel()

	leg := optionLeg(10, 0, "OPENING")
	leg.Cost = -1250

	n := NewNormalizer()
	txs, _ := n.Normalize([]Activity{{
		ActivityID: 3, Time: "2025-07-21T10:15:30Z", Type: "TRADE",
		TransferItems: []TransferItem{leg},
	}})

	require.Len(t, txs, 1)
	assert.InDelta(t, 125.0, txs[0].Price, 1e-9)
}

func TestNormalizeGroupingFields(t *testing.T) {
	t.Parallel()

	equityLeg := TransferItem{
		Instrument:     Instrument{AssetType: "EQUITY", Symbol: "AAPL"},
		Amount:         100,
		Price:          210.50,
		PositionEffect: "OPENING",
	}
	blankLeg := TransferItem{
		Instrument: Instrument{AssetType: "EQUITY"},
		Amount:     1,
		Price:      5,
	}

	n := NewNormalizer()
	txs, _ := n.Normalize([]Activity{
		{ActivityID: 4, Time: "2025-07-21T10:15:30Z", TransferItems: []TransferItem{optionLeg(10, 1.25, "OPENING")}},
		{ActivityID: 5, Time: "2025-07-22T09:45:00Z", TransferItems: []TransferItem{equityLeg}},
		{ActivityID: 6, Time: "2025-07-22T09:46:00Z", TransferItems: []TransferItem{blankLeg}},
	})
	require.Len(t, txs, 3)

	// Option legs group under the underlying at (symbol, strike, expiration).
	assert.Equal(t, "SPY", txs[0].Symbol)
	assert.Equal(t, 550.0, txs[0].Strike)
	assert.Equal(t, "8/15/25", txs[0].Expiration)

	assert.Equal(t, "AAPL", txs[1].Symbol)
	assert.Equal(t, models.NoExpiration, txs[1].Expiration)
	assert.Equal(t, models.InstrumentEquity, txs[1].Type)

	assert.Equal(t, "UNKNOWN", txs[2].Symbol)
}

func TestNormalizeSourceIDs(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()

	// Multi-leg activity: the broker id anchors every leg, with an ordinal
	// suffix keeping the later legs distinct.
	txs, _ := n.Normalize([]Activity{{
		ActivityID: 91000007,
		Time:       "2025-07-21T10:15:30Z",
		TransferItems: []TransferItem{
			optionLeg(10, 1.25, "OPENING"),
			optionLeg(-10, 0.80, "OPENING"),
		},
	}})
	require.Len(t, txs, 2)
	assert.Equal(t, "91000007", txs[0].SourceID)
	assert.Equal(t, "91000007-1", txs[1].SourceID)

	// Without an activity id, the composite key is stable across runs.
	noID := []Activity{{
		Time:          "2025-07-21T10:15:30Z",
		TransferItems: []TransferItem{optionLeg(10, 1.25, "OPENING")},
	}}
	first, _ := n.Normalize(noID)
	second, _ := n.Normalize(noID)
	require.Len(t, first, 1)
	assert.NotEmpty(t, first[0].SourceID)
	assert.Equal(t, first[0].SourceID, second[0].SourceID)
}

func TestNormalizeSkipsUnparseableActivityTime(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()
	txs, report := n.Normalize([]Activity{
		{ActivityID: 8, Time: "yesterday", TransferItems: []TransferItem{optionLeg(10, 1.25, "OPENING")}},
		{ActivityID: 9, Time: "2025-07-21T10:15:30+0000", TransferItems: []TransferItem{optionLeg(10, 1.25, "OPENING")}},
	})

	require.Len(t, txs, 1)
	assert.Equal(t, 1, report.Processed)
	want := time.Date(2025, 7, 21, 10, 15, 30, 0, time.UTC)
	assert.True(t, txs[0].ExecTime.Equal(want))
}
