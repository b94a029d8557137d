package models

import "encoding/json"

// DailyStats aggregates the closed trades that opened on one calendar date.
type DailyStats struct {
	Date        string  `json:"date"` // TradeDateFormat
	TradeCount  int     `json:"trade_count"`
	ProfitLoss  float64 `json:"profit_loss"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Neutrals    int     `json:"neutrals"`
	GrossProfit float64 `json:"gross_profit"`
	GrossLoss   float64 `json:"gross_loss"` // absolute value

	// ProfitFactor is GrossProfit / GrossLoss. When GrossLoss is zero the
	// ratio is undefined; ProfitFactorDefined is false and ProfitFactor
	// carries +Inf as a sentinel.
	ProfitFactor        float64 `json:"profit_factor"`
	ProfitFactorDefined bool    `json:"profit_factor_defined"`

	Volume int `json:"volume"` // sum of opened quantity
}

// MarshalJSON reports an undefined profit factor as null; the in-memory
// +Inf sentinel has no JSON representation.
func (d DailyStats) MarshalJSON() ([]byte, error) {
	type alias DailyStats
	out := struct {
		alias
		ProfitFactor interface{} `json:"profit_factor"`
	}{alias: alias(d)}
	if d.ProfitFactorDefined {
		out.ProfitFactor = d.ProfitFactor
	}
	return json.Marshal(out)
}

// SummaryStats are portfolio-level metrics over a set of closed trades.
type SummaryStats struct {
	TotalTrades     int     `json:"total_trades"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	Neutrals        int     `json:"neutrals"`
	WinRate         float64 `json:"win_rate"` // percent
	TotalProfitLoss float64 `json:"total_profit_loss"`
	Expectancy      float64 `json:"expectancy"` // mean P&L per trade
	AverageWin      float64 `json:"average_win"`
	AverageLoss     float64 `json:"average_loss"` // absolute value
	WinLossRatio    float64 `json:"win_loss_ratio"`
}

// CumulativePoint is one step of the running P&L sequence. The sequence is
// seeded with a zero point one day before the first trade so charts start
// at the origin.
type CumulativePoint struct {
	Date       string  `json:"date"`
	ProfitLoss float64 `json:"profit_loss"`
}
