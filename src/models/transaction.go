package models

import (
	"fmt"
	"time"
)

// Side is the direction of a transaction leg.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideNA   Side = "N/A"
)

// PosEffect says whether a leg opens or closes a position.
type PosEffect string

const (
	PosEffectOpen    PosEffect = "OPEN"
	PosEffectClose   PosEffect = "CLOSE"
	PosEffectUnknown PosEffect = "UNKNOWN"
)

// InstrumentType is the kind of instrument a transaction refers to.
type InstrumentType string

const (
	InstrumentEquity  InstrumentType = "EQUITY"
	InstrumentCall    InstrumentType = "CALL"
	InstrumentPut     InstrumentType = "PUT"
	InstrumentUnknown InstrumentType = "UNKNOWN"
)

// NoExpiration is the expiration sentinel for non-option instruments.
const NoExpiration = "-"

// TradeDateFormat is the display format used for TradeDate fields.
const TradeDateFormat = "1/2/06"

// Transaction is the canonical shape every source normalizes into. It is
// immutable once created; in particular SourceID is never recomputed.
type Transaction struct {
	ExecTime   time.Time      `json:"exec_time"`
	TradeDate  string         `json:"trade_date"` // display date derived from ExecTime
	Symbol     string         `json:"symbol"`
	Strike     float64        `json:"strike"`     // 0 for equities
	Expiration string         `json:"expiration"` // NoExpiration for equities
	Side       Side           `json:"side"`
	Quantity   int            `json:"quantity"` // magnitude only
	Price      float64        `json:"price"`    // per unit
	PosEffect  PosEffect      `json:"pos_effect"`
	OrderType  string         `json:"order_type"`
	Type       InstrumentType `json:"type"`

	// SourceID is the stable identity of the originating broker event,
	// used exclusively for deduplication across repeated imports.
	SourceID string `json:"source_id"`

	// Seq is the ingestion sequence number, the secondary sort key when
	// two transactions in a group share an ExecTime. Parsers number from
	// zero per batch; the import path rebases each batch past the user's
	// current maximum so the key stays unique across imports.
	Seq int64 `json:"seq"`

	// UploadFilename tags transactions that came from a file upload so a
	// file delete removes exactly its transactions. Empty for API syncs.
	UploadFilename string `json:"upload_filename,omitempty"`
}

// GroupKey identifies the trade group a transaction belongs to.
type GroupKey struct {
	Symbol     string
	Strike     float64
	Expiration string
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s|%g|%s", k.Symbol, k.Strike, k.Expiration)
}

// GroupKeyOf returns the grouping key for a transaction.
func GroupKeyOf(tx Transaction) GroupKey {
	return GroupKey{Symbol: tx.Symbol, Strike: tx.Strike, Expiration: tx.Expiration}
}

// TradeGroup holds every transaction sharing (symbol, strike, expiration).
// Insertion order is preserved but irrelevant to matching, which re-sorts
// by execution time on every pass.
type TradeGroup struct {
	Symbol       string        `json:"symbol"`
	Strike       float64       `json:"strike"`
	Expiration   string        `json:"expiration"`
	Transactions []Transaction `json:"transactions"`
}

func (g *TradeGroup) Key() GroupKey {
	return GroupKey{Symbol: g.Symbol, Strike: g.Strike, Expiration: g.Expiration}
}

// ClosedTrade is one fully matched round trip. It is derived on demand from
// a trade group's transactions and never persisted.
type ClosedTrade struct {
	Symbol           string         `json:"symbol"`
	Strike           float64        `json:"strike"`
	Expiration       string         `json:"expiration"`
	TradeDate        string         `json:"trade_date"` // open date
	FirstBuyExecTime time.Time      `json:"first_buy_exec_time"`
	LastSellExecTime time.Time      `json:"last_sell_exec_time"`
	Type             InstrumentType `json:"type"`
	OpenQuantity     int            `json:"open_quantity"`
	ProfitLoss       float64        `json:"profit_loss"`
	NetROI           float64        `json:"net_roi"` // percent
}
