package processors

import (
	"sort"
	"time"

	"github.com/username/tradevault/backend/src/models"
	"github.com/username/tradevault/backend/src/utils"
)

// roundTripProcessorImpl implements the RoundTripProcessor interface.
//
// Each trade group is matched independently against a single running
// position rebuilt from scratch on every pass. Recomputing rather than
// incrementally maintaining the position is what makes the matcher
// idempotent and tolerant of out-of-order re-imports.
type roundTripProcessorImpl struct{}

func NewRoundTripProcessor() RoundTripProcessor {
	return &roundTripProcessorImpl{}
}

// buyLot is one unconsumed opening fill.
type buyLot struct {
	quantity  int
	price     float64
	tradeDate string
	execTime  time.Time
}

// sellLot is one unconsumed closing fill.
type sellLot struct {
	quantity int
	price    float64
	execTime time.Time
}

// The queues are explicit FIFOs. Drain order determines P&L attribution
// under partial fills and must stay first-in first-out.
type buyQueue struct{ lots []buyLot }

func (q *buyQueue) push(l buyLot) { q.lots = append(q.lots, l) }
func (q *buyQueue) pop() buyLot   { l := q.lots[0]; q.lots = q.lots[1:]; return l }
func (q *buyQueue) empty() bool   { return len(q.lots) == 0 }

type sellQueue struct{ lots []sellLot }

func (q *sellQueue) push(l sellLot) { q.lots = append(q.lots, l) }
func (q *sellQueue) pop() sellLot   { l := q.lots[0]; q.lots = q.lots[1:]; return l }
func (q *sellQueue) empty() bool    { return len(q.lots) == 0 }

// position is the per-group running state for one matching pass. It is
// never persisted.
type position struct {
	totalQuantityOpened int
	currentOpenQuantity int
	buys                buyQueue
	sells               sellQueue
}

// Process reconstructs closed round trips for every trade group. Residual
// open positions at end of stream emit nothing; unrealized P&L is not
// reported.
func (p *roundTripProcessorImpl) Process(groups []models.TradeGroup) []models.ClosedTrade {
	var closed []models.ClosedTrade
	for i := range groups {
		closed = append(closed, p.processGroup(&groups[i])...)
	}
	return closed
}

func (p *roundTripProcessorImpl) processGroup(group *models.TradeGroup) []models.ClosedTrade {
	txs := make([]models.Transaction, len(group.Transactions))
	copy(txs, group.Transactions)

	// Equal exec times are ordered by ingestion sequence; attribution
	// order must not depend on sort stability.
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].ExecTime.Equal(txs[j].ExecTime) {
			return txs[i].Seq < txs[j].Seq
		}
		return txs[i].ExecTime.Before(txs[j].ExecTime)
	})

	var closed []models.ClosedTrade
	var pos position

	for _, tx := range txs {
		switch {
		case tx.PosEffect == models.PosEffectOpen && tx.Side == models.SideBuy:
			qty := utils.AbsInt(tx.Quantity)
			if qty == 0 {
				continue
			}
			pos.buys.push(buyLot{
				quantity:  qty,
				price:     tx.Price,
				tradeDate: tx.TradeDate,
				execTime:  tx.ExecTime,
			})
			pos.totalQuantityOpened += qty
			pos.currentOpenQuantity += qty

		case tx.PosEffect == models.PosEffectClose && tx.Side == models.SideSell:
			qty := utils.AbsInt(tx.Quantity)
			if qty == 0 {
				continue
			}
			pos.sells.push(sellLot{quantity: qty, price: tx.Price, execTime: tx.ExecTime})
			pos.currentOpenQuantity -= qty

			// Only an exactly flat position triggers a closing cycle;
			// partial closes keep accumulating sell lots.
			if pos.currentOpenQuantity == 0 {
				if trade, ok := closeCycle(&pos, group); ok {
					closed = append(closed, trade)
				}
				pos.totalQuantityOpened = 0
				pos.currentOpenQuantity = 0
			}
		}
	}

	return closed
}

// closeCycle drains both FIFO queues, pairing everything opened so far with
// everything sold, and emits one closed trade for the round trip.
func closeCycle(pos *position, group *models.TradeGroup) (models.ClosedTrade, bool) {
	multiplier := contractMultiplier(groupInstrumentType(group))

	var totalBuyQuantity int
	var totalBuyCost float64
	var firstBuy buyLot
	haveFirstBuy := false

	for totalBuyQuantity < pos.totalQuantityOpened && !pos.buys.empty() {
		lot := pos.buys.pop()
		if !haveFirstBuy {
			firstBuy = lot
			haveFirstBuy = true
		}
		totalBuyQuantity += lot.quantity
		totalBuyCost += float64(lot.quantity) * lot.price * multiplier
	}
	if !haveFirstBuy {
		return models.ClosedTrade{}, false
	}

	var totalSellQuantity int
	var totalSellProceeds float64
	var lastSell sellLot

	for totalSellQuantity < totalBuyQuantity && !pos.sells.empty() {
		lot := pos.sells.pop()
		lastSell = lot
		totalSellQuantity += lot.quantity
		totalSellProceeds += float64(lot.quantity) * lot.price * multiplier
	}

	profitLoss := totalSellProceeds - totalBuyCost
	netROI := 0.0
	if totalBuyCost > 0 {
		netROI = profitLoss / totalBuyCost * 100
	}

	return models.ClosedTrade{
		Symbol:           group.Symbol,
		Strike:           group.Strike,
		Expiration:       group.Expiration,
		TradeDate:        firstBuy.tradeDate,
		FirstBuyExecTime: firstBuy.execTime,
		LastSellExecTime: lastSell.execTime,
		Type:             groupInstrumentType(group),
		OpenQuantity:     totalBuyQuantity,
		ProfitLoss:       utils.RoundFloat(profitLoss, 2),
		NetROI:           utils.RoundFloat(netROI, 2),
	}, true
}

// groupInstrumentType takes the first classified transaction's type as the
// group's instrument kind; all transactions at one (symbol, strike,
// expiration) key describe the same instrument.
func groupInstrumentType(group *models.TradeGroup) models.InstrumentType {
	for _, tx := range group.Transactions {
		if tx.Type != "" && tx.Type != models.InstrumentUnknown {
			return tx.Type
		}
	}
	return models.InstrumentUnknown
}

// contractMultiplier converts per-unit price to notional. Options carry the
// standard 100-share contract size; equity quantities are already raw
// shares.
func contractMultiplier(t models.InstrumentType) float64 {
	switch t {
	case models.InstrumentCall, models.InstrumentPut:
		return 100
	default:
		return 1
	}
}
