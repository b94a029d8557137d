package processors

import (
	"math"
	"sort"

	"github.com/username/tradevault/backend/src/models"
	"github.com/username/tradevault/backend/src/utils"
)

// statsProcessorImpl implements the StatsProcessor interface. All methods
// are pure reducers over the closed-trade list; nothing is cached or
// mutated in place.
type statsProcessorImpl struct{}

func NewStatsProcessor() StatsProcessor {
	return &statsProcessorImpl{}
}

// Daily groups closed trades by their open date and aggregates per-day
// performance, sorted by date ascending.
func (p *statsProcessorImpl) Daily(trades []models.ClosedTrade) []models.DailyStats {
	byDate := make(map[string]*models.DailyStats)
	var order []string

	for _, trade := range trades {
		day, ok := byDate[trade.TradeDate]
		if !ok {
			day = &models.DailyStats{Date: trade.TradeDate}
			byDate[trade.TradeDate] = day
			order = append(order, trade.TradeDate)
		}
		day.TradeCount++
		day.ProfitLoss += trade.ProfitLoss
		day.Volume += trade.OpenQuantity
		switch {
		case trade.ProfitLoss > 0:
			day.Wins++
			day.GrossProfit += trade.ProfitLoss
		case trade.ProfitLoss < 0:
			day.Losses++
			day.GrossLoss += -trade.ProfitLoss
		default:
			day.Neutrals++
		}
	}

	sort.Slice(order, func(i, j int) bool {
		return utils.ParseDate(order[i]).Before(utils.ParseDate(order[j]))
	})

	result := make([]models.DailyStats, 0, len(order))
	for _, date := range order {
		day := byDate[date]
		if day.GrossLoss > 0 {
			day.ProfitFactor = day.GrossProfit / day.GrossLoss
			day.ProfitFactorDefined = true
		} else {
			// No losing trades: the ratio is undefined, reported as the
			// +Inf sentinel rather than a division by zero.
			day.ProfitFactor = math.Inf(1)
			day.ProfitFactorDefined = false
		}
		day.ProfitLoss = utils.RoundFloat(day.ProfitLoss, 2)
		result = append(result, *day)
	}
	return result
}

// Summary computes portfolio-level metrics over the whole trade list.
func (p *statsProcessorImpl) Summary(trades []models.ClosedTrade) models.SummaryStats {
	var s models.SummaryStats
	var grossProfit, grossLoss float64

	for _, trade := range trades {
		s.TotalTrades++
		s.TotalProfitLoss += trade.ProfitLoss
		switch {
		case trade.ProfitLoss > 0:
			s.Wins++
			grossProfit += trade.ProfitLoss
		case trade.ProfitLoss < 0:
			s.Losses++
			grossLoss += -trade.ProfitLoss
		default:
			s.Neutrals++
		}
	}

	if s.TotalTrades > 0 {
		s.WinRate = utils.RoundFloat(float64(s.Wins)/float64(s.TotalTrades)*100, 2)
		s.Expectancy = utils.RoundFloat(s.TotalProfitLoss/float64(s.TotalTrades), 2)
	}
	if s.Wins > 0 {
		s.AverageWin = utils.RoundFloat(grossProfit/float64(s.Wins), 2)
	}
	if s.Losses > 0 {
		s.AverageLoss = utils.RoundFloat(grossLoss/float64(s.Losses), 2)
	}
	if s.AverageLoss > 0 {
		s.WinLossRatio = utils.RoundFloat(s.AverageWin/s.AverageLoss, 2)
	}
	s.TotalProfitLoss = utils.RoundFloat(s.TotalProfitLoss, 2)
	return s
}

// Cumulative returns the running P&L sequence across trades ordered by open
// time, seeded with a zero point one day before the first trade so charts
// start at the origin.
func (p *statsProcessorImpl) Cumulative(trades []models.ClosedTrade) []models.CumulativePoint {
	if len(trades) == 0 {
		return nil
	}

	ordered := make([]models.ClosedTrade, len(trades))
	copy(ordered, trades)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].FirstBuyExecTime.Before(ordered[j].FirstBuyExecTime)
	})

	points := make([]models.CumulativePoint, 0, len(ordered)+1)
	seedDate := ordered[0].FirstBuyExecTime.AddDate(0, 0, -1)
	points = append(points, models.CumulativePoint{
		Date:       utils.FormatTradeDate(seedDate),
		ProfitLoss: 0,
	})

	var running float64
	for _, trade := range ordered {
		running += trade.ProfitLoss
		points = append(points, models.CumulativePoint{
			Date:       trade.TradeDate,
			ProfitLoss: utils.RoundFloat(running, 2),
		})
	}
	return points
}
