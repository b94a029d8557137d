// backend/src/parsers/schwabapi/normalizer.go
package schwabapi

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/models"
)

// --- API payload structures ---

// Activity is one transaction record from the broker's transactions
// endpoint. A single activity can carry several transfer-item legs (a
// multi-leg option order plus its cash settlement legs).
type Activity struct {
	ActivityID    int64          `json:"activityId"`
	Time          string         `json:"time"`
	Type          string         `json:"type"`
	Status        string         `json:"status"`
	Description   string         `json:"description"`
	NetAmount     float64        `json:"netAmount"`
	TransferItems []TransferItem `json:"transferItems"`
}

// TransferItem is one economic leg within an activity.
type TransferItem struct {
	Instrument     Instrument `json:"instrument"`
	Amount         float64    `json:"amount"` // signed quantity: + buy, - sell
	Cost           float64    `json:"cost"`
	Price          float64    `json:"price"`
	FeeType        string     `json:"feeType,omitempty"`
	PositionEffect string     `json:"positionEffect"`
}

type Instrument struct {
	AssetType        string  `json:"assetType"`
	Symbol           string  `json:"symbol"`
	UnderlyingSymbol string  `json:"underlyingSymbol"`
	StrikePrice      float64 `json:"strikePrice"`
	ExpirationDate   string  `json:"expirationDate"`
	PutCall          string  `json:"putCall"`
	Description      string  `json:"description"`
}

// Report counts what the normalizer did with a batch; surfaced on sync
// results so skipped currency legs stay observable.
type Report struct {
	Processed       int `json:"processed"`
	SkippedCurrency int `json:"skipped_currency"`
}

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize converts broker activities into canonical transactions.
// A malformed leg is skipped, never fatal.
func (n *Normalizer) Normalize(activities []Activity) ([]models.Transaction, Report) {
	var txs []models.Transaction
	var report Report
	var seq int64

	for _, activity := range activities {
		execTime, err := parseActivityTime(activity.Time)
		if err != nil {
			logger.L.Warn("schwabapi: skipping activity with unparseable time",
				"activityID", activity.ActivityID, "time", activity.Time, "error", err)
			continue
		}

		legOrdinal := 0
		for _, item := range activity.TransferItems {
			assetType := strings.ToUpper(strings.TrimSpace(item.Instrument.AssetType))

			// Cash settlement legs are not trades.
			if assetType == "" || assetType == "CURRENCY" {
				report.SkippedCurrency++
				continue
			}

			tx := models.Transaction{
				ExecTime:   execTime,
				TradeDate:  execTime.Format(models.TradeDateFormat),
				Symbol:     groupingSymbol(item.Instrument),
				Strike:     item.Instrument.StrikePrice,
				Expiration: expirationOf(item.Instrument),
				Side:       sideFromAmount(item.Amount),
				Quantity:   int(math.Abs(math.Round(item.Amount))),
				Price:      legPrice(item),
				PosEffect:  posEffectOf(item.PositionEffect),
				OrderType:  activity.Type,
				Type:       instrumentTypeOf(item.Instrument, assetType),
				Seq:        seq,
			}
			tx.SourceID = sourceIDFor(activity, tx, legOrdinal)

			txs = append(txs, tx)
			report.Processed++
			seq++
			legOrdinal++
		}
	}

	return txs, report
}

// groupingSymbol prefers the underlying so option legs land in the same
// trade group as their underlying's other contracts at that strike.
func groupingSymbol(inst Instrument) string {
	if s := strings.TrimSpace(inst.UnderlyingSymbol); s != "" {
		return s
	}
	if s := strings.TrimSpace(inst.Symbol); s != "" {
		return s
	}
	return "UNKNOWN"
}

func expirationOf(inst Instrument) string {
	exp := strings.TrimSpace(inst.ExpirationDate)
	if exp == "" {
		return models.NoExpiration
	}
	// The API sends a full timestamp; only the date part groups trades.
	if t, err := time.Parse(time.RFC3339, exp); err == nil {
		return t.Format(models.TradeDateFormat)
	}
	return exp
}

// sideFromAmount derives direction from the signed leg quantity.
func sideFromAmount(amount float64) models.Side {
	switch {
	case amount > 0:
		return models.SideBuy
	case amount < 0:
		return models.SideSell
	default:
		return models.SideNA
	}
}

// legPrice uses the explicit per-unit price when present, otherwise
// derives it from |cost / amount|.
func legPrice(item TransferItem) float64 {
	if item.Price != 0 {
		return item.Price
	}
	if item.Cost != 0 && item.Amount != 0 {
		return math.Abs(item.Cost / item.Amount)
	}
	return 0
}

// posEffectOf accepts both the "TO OPEN"/"TO CLOSE" wording and the API's
// "OPENING"/"CLOSING" enum.
func posEffectOf(s string) models.PosEffect {
	upper := strings.ToUpper(s)
	if strings.Contains(upper, "OPEN") {
		return models.PosEffectOpen
	}
	if strings.Contains(upper, "CLOS") {
		return models.PosEffectClose
	}
	return models.PosEffectUnknown
}

func instrumentTypeOf(inst Instrument, assetType string) models.InstrumentType {
	if assetType == "EQUITY" {
		return models.InstrumentEquity
	}
	switch strings.ToUpper(inst.PutCall) {
	case "CALL", "C":
		return models.InstrumentCall
	case "PUT", "P":
		return models.InstrumentPut
	}
	if assetType != "" {
		return models.InstrumentType(assetType)
	}
	return models.InstrumentUnknown
}

// sourceIDFor prefers the broker-provided activity id; legs beyond the
// first get an ordinal suffix so they stay distinct. Without an activity
// id, a time+symbol+side composite is the best-effort stable key.
func sourceIDFor(activity Activity, tx models.Transaction, legOrdinal int) string {
	if activity.ActivityID != 0 {
		id := strconv.FormatInt(activity.ActivityID, 10)
		if legOrdinal > 0 {
			id = fmt.Sprintf("%s-%d", id, legOrdinal)
		}
		return id
	}
	return fmt.Sprintf("%s|%s|%s",
		tx.ExecTime.UTC().Format(time.RFC3339), tx.Symbol, tx.Side)
}

// parseActivityTime handles both RFC3339 and the legacy +0000 zone form
// the transactions endpoint emits.
func parseActivityTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02T15:04:05-0700", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse activity time %q: %w", s, err)
	}
	return t.UTC(), nil
}
