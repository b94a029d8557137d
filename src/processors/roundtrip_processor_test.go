package processors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradevault/backend/src/models"
)

func callGroup(txs ...models.Transaction) []models.TradeGroup {
	return []models.TradeGroup{{
		Symbol:       "SPY",
		Strike:       550,
		Expiration:   "8/15/25",
		Transactions: txs,
	}}
}

func TestProcessOptionRoundTrip(t *testing.T) {
	t.Parallel()

	p := NewRoundTripProcessor()
	t0 := time.Date(2025, 7, 21, 10, 0, 0, 0, time.UTC)

	trades := p.Process(callGroup(
		optionTx("a", models.SideBuy, models.PosEffectOpen, 10, 2.00, t0, 0),
		optionTx("b", models.SideSell, models.PosEffectClose, 10, 3.00, t0.Add(time.Hour), 1),
	))

	require.Len(t, trades, 1)
	trade := trades[0]
	// Cost 10 * 2.00 * 100 = 2000, proceeds 10 * 3.00 * 100 = 3000.
	assert.Equal(t, 1000.00, trade.ProfitLoss)
	assert.Equal(t, 50.00, trade.NetROI)
	assert.Equal(t, 10, trade.OpenQuantity)
	assert.Equal(t, models.InstrumentCall, trade.Type)
	assert.Equal(t, "7/21/25", trade.TradeDate)
	assert.True(t, trade.FirstBuyExecTime.Equal(t0))
	assert.True(t, trade.LastSellExecTime.Equal(t0.Add(time.Hour)))
}

func TestProcessPartialClosesAggregateIntoOneTrade(t *testing.T) {
	t.Parallel()

	p := NewRoundTripProcessor()
	t0 := time.Date(2025, 7, 21, 10, 0, 0, 0, time.UTC)

	trades := p.Process(callGroup(
		optionTx("a", models.SideBuy, models.PosEffectOpen, 10, 2.00, t0, 0),
		optionTx("b", models.SideSell, models.PosEffectClose, 5, 2.50, t0.Add(time.Hour), 1),
		optionTx("c", models.SideSell, models.PosEffectClose, 5, 3.00, t0.Add(2*time.Hour), 2),
	))

	// The cycle closes only when the position is exactly flat; both sells
	// belong to one round trip.
	require.Len(t, trades, 1)
	// Cost 2000, proceeds 5*2.50*100 + 5*3.00*100 = 2750.
	assert.Equal(t, 750.00, trades[0].ProfitLoss)
	assert.Equal(t, 37.50, trades[0].NetROI)
}

func TestProcessDrainsMultipleBuyLotsAgainstOneClose(t *testing.T) {
	t.Parallel()

	p := NewRoundTripProcessor()
	t0 := time.Date(2025, 7, 21, 10, 0, 0, 0, time.UTC)

	trades := p.Process(callGroup(
		optionTx("a", models.SideBuy, models.PosEffectOpen, 5, 2.00, t0, 0),
		optionTx("b", models.SideBuy, models.PosEffectOpen, 5, 2.50, t0.Add(time.Hour), 1),
		optionTx("c", models.SideSell, models.PosEffectClose, 10, 3.00, t0.Add(2*time.Hour), 2),
	))

	// Both buy lots drain first-in first-out into the single close.
	// Cost 5*2.00*100 + 5*2.50*100 = 2250, proceeds 10*3.00*100 = 3000.
	require.Len(t, trades, 1)
	assert.Equal(t, 750.00, trades[0].ProfitLoss)
	assert.Equal(t, 33.33, trades[0].NetROI)
	assert.Equal(t, 10, trades[0].OpenQuantity)
	assert.True(t, trades[0].FirstBuyExecTime.Equal(t0))
}

func TestProcessResidualOpenPositionEmitsNothing(t *testing.T) {
	t.Parallel()

	p := NewRoundTripProcessor()
	t0 := time.Date(2025, 7, 21, 10, 0, 0, 0, time.UTC)

	trades := p.Process(callGroup(
		optionTx("a", models.SideBuy, models.PosEffectOpen, 10, 2.00, t0, 0),
		optionTx("b", models.SideSell, models.PosEffectClose, 5, 2.50, t0.Add(time.Hour), 1),
	))

	assert.Empty(t, trades)
}

func TestProcessEquityUsesRawShares(t *testing.T) {
	t.Parallel()

	p := NewRoundTripProcessor()
	t0 := time.Date(2025, 7, 22, 9, 45, 0, 0, time.UTC)

	buy := models.Transaction{
		ExecTime: t0, TradeDate: "7/22/25", Symbol: "AAPL",
		Expiration: models.NoExpiration, Side: models.SideBuy, Quantity: 100,
		Price: 10.00, PosEffect: models.PosEffectOpen, Type: models.InstrumentEquity,
		SourceID: "a", Seq: 0,
	}
	sell := buy
	sell.ExecTime = t0.Add(time.Hour)
	sell.Side = models.SideSell
	sell.Price = 11.00
	sell.PosEffect = models.PosEffectClose
	sell.SourceID = "b"
	sell.Seq = 1

	trades := p.Process([]models.TradeGroup{{
		Symbol: "AAPL", Expiration: models.NoExpiration,
		Transactions: []models.Transaction{buy, sell},
	}})

	require.Len(t, trades, 1)
	// No contract multiplier for shares: cost 1000, proceeds 1100.
	assert.Equal(t, 100.00, trades[0].ProfitLoss)
	assert.Equal(t, 10.00, trades[0].NetROI)
}

func TestProcessMultipleCycles(t *testing.T) {
	t.Parallel()

	p := NewRoundTripProcessor()
	t0 := time.Date(2025, 7, 21, 10, 0, 0, 0, time.UTC)

	trades := p.Process(callGroup(
		optionTx("a", models.SideBuy, models.PosEffectOpen, 10, 2.00, t0, 0),
		optionTx("b", models.SideSell, models.PosEffectClose, 10, 3.00, t0.Add(time.Hour), 1),
		optionTx("c", models.SideBuy, models.PosEffectOpen, 5, 1.00, t0.Add(2*time.Hour), 2),
		optionTx("d", models.SideSell, models.PosEffectClose, 5, 0.50, t0.Add(3*time.Hour), 3),
	))

	require.Len(t, trades, 2)
	assert.Equal(t, 1000.00, trades[0].ProfitLoss)
	assert.Equal(t, -250.00, trades[1].ProfitLoss)
	assert.Equal(t, -50.00, trades[1].NetROI)
}

func TestProcessTieBreaksEqualExecTimesBySeq(t *testing.T) {
	t.Parallel()

	p := NewRoundTripProcessor()
	t0 := time.Date(2025, 7, 21, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	// The closing sell and a re-opening buy share an exec time. Sequence
	// order puts the sell first, so the position goes flat and the first
	// cycle closes before the new buy opens the next one.
	reopen := optionTx("c", models.SideBuy, models.PosEffectOpen, 5, 2.00, t1, 2)
	closing := optionTx("b", models.SideSell, models.PosEffectClose, 5, 2.00, t1, 1)

	trades := p.Process(callGroup(
		optionTx("a", models.SideBuy, models.PosEffectOpen, 5, 1.00, t0, 0),
		reopen,
		closing,
	))

	require.Len(t, trades, 1)
	// Cost 5*1.00*100 = 500, proceeds 5*2.00*100 = 1000.
	assert.Equal(t, 500.00, trades[0].ProfitLoss)
}

func TestProcessIsRepeatable(t *testing.T) {
	t.Parallel()

	p := NewRoundTripProcessor()
	t0 := time.Date(2025, 7, 21, 10, 0, 0, 0, time.UTC)

	groups := callGroup(
		optionTx("a", models.SideBuy, models.PosEffectOpen, 10, 2.00, t0, 0),
		optionTx("b", models.SideSell, models.PosEffectClose, 10, 3.00, t0.Add(time.Hour), 1),
	)

	first := p.Process(groups)
	second := p.Process(groups)
	assert.Equal(t, first, second)
}
