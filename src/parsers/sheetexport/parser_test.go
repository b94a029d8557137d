package sheetexport

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/tradevault/backend/src/models"
)

func tradeHistoryGrid(rows ...[]string) [][]string {
	grid := [][]string{
		{"Account Statement for 123456"},
		{""},
		{"Account Trade History"},
		{"Exec Time", "Side", "Qty", "Pos Effect", "Symbol", "Exp", "Strike", "Type", "Price", "Order Type"},
	}
	return append(grid, rows...)
}

func TestParseGridSerialAndTextDatesAgree(t *testing.T) {
	t.Parallel()

	p := NewParser()

	// 45859.4274305556 is the spreadsheet serial for 7/21/25 10:15:30.
	serialGrid := tradeHistoryGrid(
		[]string{"45859.4274305556", "BUY", "+10", "TO OPEN", "SPY", "8/15/25", "550", "CALL", "1.25", "LMT"},
	)
	textGrid := tradeHistoryGrid(
		[]string{"7/21/25 10:15:30", "BUY", "+10", "TO OPEN", "SPY", "8/15/25", "550", "CALL", "1.25", "LMT"},
	)

	fromSerial, err := p.ParseGrid(serialGrid, "a.csv")
	require.NoError(t, err)
	fromText, err := p.ParseGrid(textGrid, "a.csv")
	require.NoError(t, err)

	require.Len(t, fromSerial, 1)
	require.Len(t, fromText, 1)

	want := time.Date(2025, 7, 21, 10, 15, 30, 0, time.UTC)
	assert.True(t, fromSerial[0].ExecTime.Equal(want), "serial exec time: got %v", fromSerial[0].ExecTime)
	assert.True(t, fromText[0].ExecTime.Equal(want), "text exec time: got %v", fromText[0].ExecTime)
	assert.Equal(t, "7/21/25", fromSerial[0].TradeDate)
	assert.Equal(t, fromText[0].TradeDate, fromSerial[0].TradeDate)
}

func TestParseGridFieldNormalization(t *testing.T) {
	t.Parallel()

	p := NewParser()
	grid := tradeHistoryGrid(
		[]string{"7/21/25 10:15:30", "BUY", "+10", "TO OPEN", "SPY", "8/15/25", "550", "CALL", "1.25", "LMT"},
		[]string{"7/21/25 11:30:00", "SELL", "-10", "TO CLOSE", "SPY", "8/15/25", "550", "CALL", "2.10", "MKT"},
		[]string{"7/22/25 09:45:00", "BUY", "+100", "TO OPEN", "AAPL", "", "", "STOCK", "210.50", "LMT"},
	)

	txs, err := p.ParseGrid(grid, "a.csv")
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, models.SideBuy, txs[0].Side)
	assert.Equal(t, models.PosEffectOpen, txs[0].PosEffect)
	assert.Equal(t, 10, txs[0].Quantity)
	assert.Equal(t, models.InstrumentCall, txs[0].Type)
	assert.Equal(t, 550.0, txs[0].Strike)

	// Sell quantities arrive negative and normalize to magnitude.
	assert.Equal(t, models.SideSell, txs[1].Side)
	assert.Equal(t, models.PosEffectClose, txs[1].PosEffect)
	assert.Equal(t, 10, txs[1].Quantity)

	// Equities carry the no-expiration sentinel and a zero strike.
	assert.Equal(t, models.InstrumentEquity, txs[2].Type)
	assert.Equal(t, models.NoExpiration, txs[2].Expiration)
	assert.Equal(t, 0.0, txs[2].Strike)
	assert.Equal(t, "a.csv", txs[2].UploadFilename)
}

func TestParseGridSourceIDsStableAndDistinct(t *testing.T) {
	t.Parallel()

	p := NewParser()
	// Two textually identical fills must keep distinct identities.
	grid := tradeHistoryGrid(
		[]string{"7/21/25 10:15:30", "BUY", "+5", "TO OPEN", "SPY", "8/15/25", "550", "CALL", "1.25", "LMT"},
		[]string{"7/21/25 10:15:30", "BUY", "+5", "TO OPEN", "SPY", "8/15/25", "550", "CALL", "1.25", "LMT"},
	)

	first, err := p.ParseGrid(grid, "a.csv")
	require.NoError(t, err)
	second, err := p.ParseGrid(grid, "a.csv")
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.NotEqual(t, first[0].SourceID, first[1].SourceID)

	// Re-parsing the same file reproduces the same ids.
	require.Len(t, second, 2)
	assert.Equal(t, first[0].SourceID, second[0].SourceID)
	assert.Equal(t, first[1].SourceID, second[1].SourceID)
}

func TestParseGridSkipsUnusableRows(t *testing.T) {
	t.Parallel()

	p := NewParser()
	grid := tradeHistoryGrid(
		[]string{"", "", "", "", "", "", "", "", "", ""},
		[]string{"not a date", "BUY", "+10", "TO OPEN", "SPY", "8/15/25", "550", "CALL", "1.25", "LMT"},
		[]string{"7/21/25 10:15:30", "BUY", "garbage", "TO OPEN", "SPY", "8/15/25", "550", "CALL", "1.25", "LMT"},
	)

	txs, err := p.ParseGrid(grid, "a.csv")
	require.NoError(t, err)

	// Blank and unparseable exec times are dropped; a bad quantity only
	// zeroes that field.
	require.Len(t, txs, 1)
	assert.Equal(t, 0, txs[0].Quantity)
}

func TestParseGridMissingColumnsZeroDefault(t *testing.T) {
	t.Parallel()

	p := NewParser()
	// No Symbol, Qty, or Pos Effect headers: those fields must
	// zero-default, never read a neighboring column's cells.
	grid := [][]string{
		{"Account Trade History"},
		{"Exec Time", "Side", "Exp", "Strike", "Type", "Price", "Order Type"},
		{"7/21/25 10:15:30", "BUY", "8/15/25", "550", "CALL", "1.25", "LMT"},
	}

	txs, err := p.ParseGrid(grid, "a.csv")
	require.NoError(t, err)
	require.Len(t, txs, 1)

	assert.Equal(t, "", txs[0].Symbol)
	assert.Equal(t, 0, txs[0].Quantity)
	assert.Equal(t, models.PosEffectUnknown, txs[0].PosEffect)
	assert.Equal(t, models.SideBuy, txs[0].Side)
	assert.Equal(t, 550.0, txs[0].Strike)
}

func TestParseMissingSection(t *testing.T) {
	t.Parallel()

	p := NewParser()

	_, err := p.ParseGrid([][]string{{"Cash Balance"}, {"Date", "Amount"}}, "a.csv")
	assert.ErrorIs(t, err, ErrSectionNotFound)

	_, err = p.Parse(strings.NewReader("Cash Balance\nDate,Amount\n"), "a.csv")
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestParseCSVStatement(t *testing.T) {
	t.Parallel()

	csvData := strings.Join([]string{
		"Account Statement for 123456",
		"",
		"Account Trade History",
		"Exec Time,Side,Qty,Pos Effect,Symbol,Exp,Strike,Type,Price,Order Type",
		"7/21/25 10:15:30,BUY,+10,TO OPEN,SPY,8/15/25,550,CALL,1.25,LMT",
		"7/21/25 11:30:00,SELL,-10,TO CLOSE,SPY,8/15/25,550,CALL,2.10,MKT",
	}, "\n")

	p := NewParser()
	txs, err := p.Parse(strings.NewReader(csvData), "statement.csv")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "SPY", txs[0].Symbol)
	assert.Equal(t, "statement.csv", txs[0].UploadFilename)
	assert.Less(t, txs[0].Seq, txs[1].Seq)
}
