// backend/src/parsers/sheetexport/parser.go
package sheetexport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/username/tradevault/backend/src/models"
)

// sectionMarker precedes the trade-history table inside an account
// statement export.
const sectionMarker = "Account Trade History"

// ErrSectionNotFound is returned when the export contains no trade-history
// section at all. Individual bad rows never produce an error.
var ErrSectionNotFound = errors.New("sheetexport parser: no trade history section found")

// serialEpoch is day zero of spreadsheet date serials.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

type SheetExportParser struct{}

func NewParser() *SheetExportParser {
	return &SheetExportParser{}
}

// Parse reads a CSV account-statement export and converts its trade-history
// rows into canonical transactions.
func (p *SheetExportParser) Parse(file io.Reader, filename string) ([]models.Transaction, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	grid, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("sheetexport parser: failed to read CSV records: %w", err)
	}
	return p.ParseGrid(grid, filename)
}

// ParseGrid converts an already-parsed cell grid (the shape the spreadsheet
// import collaborator supplies for .xlsx uploads) into canonical
// transactions. The filename is carried as provenance on every transaction
// so a later file delete can remove exactly this upload's rows.
func (p *SheetExportParser) ParseGrid(grid [][]string, filename string) ([]models.Transaction, error) {
	headerIdx := -1
	for i, row := range grid {
		for _, cell := range row {
			if strings.Contains(cell, sectionMarker) {
				headerIdx = i + 1
				break
			}
		}
		if headerIdx >= 0 {
			break
		}
	}
	if headerIdx < 0 || headerIdx >= len(grid) {
		return nil, ErrSectionNotFound
	}

	cols := mapColumns(grid[headerIdx])
	execCol, ok := cols["exec time"]
	if !ok {
		return nil, ErrSectionNotFound
	}
	// Absent headers resolve to -1 so cellAt yields empty and the field
	// zero-defaults instead of reading a neighboring column.
	col := func(name string) int {
		if idx, ok := cols[name]; ok {
			return idx
		}
		return -1
	}

	var txs []models.Transaction
	for rowIdx := headerIdx + 1; rowIdx < len(grid); rowIdx++ {
		row := grid[rowIdx]

		// Rows without a usable exec time are filtered before mapping;
		// the section ends at the first blank stretch anyway.
		execStr := strings.TrimSpace(cellAt(row, execCol))
		if execStr == "" {
			continue
		}
		execTime, ok := parseExecTime(execStr)
		if !ok {
			log.Printf("Skipping trade history row %d: unparseable exec time %q", rowIdx, execStr)
			continue
		}

		symbol := strings.TrimSpace(cellAt(row, col("symbol")))
		strike := parseDecimal(cellAt(row, col("strike")))
		expiration := strings.TrimSpace(cellAt(row, col("exp")))
		if expiration == "" {
			expiration = models.NoExpiration
		}
		side := parseSide(cellAt(row, col("side")))
		quantity := parseQuantity(cellAt(row, col("qty")))
		price := parseDecimal(cellAt(row, col("price")))
		posEffect := parsePosEffect(cellAt(row, col("pos effect")))
		orderType := strings.TrimSpace(cellAt(row, col("order type")))
		instrument := parseInstrumentType(cellAt(row, col("type")))

		tx := models.Transaction{
			ExecTime:       execTime,
			TradeDate:      execTime.Format(models.TradeDateFormat),
			Symbol:         symbol,
			Strike:         strike,
			Expiration:     expiration,
			Side:           side,
			Quantity:       quantity,
			Price:          price,
			PosEffect:      posEffect,
			OrderType:      orderType,
			Type:           instrument,
			Seq:            int64(rowIdx),
			UploadFilename: filename,
		}
		// The composite includes the row ordinal so two textually identical
		// legs in one file keep distinct identities, while re-parsing the
		// same file reproduces the same ids.
		tx.SourceID = fmt.Sprintf("%s|%g|%s|%s|%s|%d|%g|%s|%s|%d",
			symbol, strike, expiration,
			execTime.UTC().Truncate(time.Second).Format(time.RFC3339),
			side, quantity, price, posEffect, orderType, rowIdx)

		txs = append(txs, tx)
	}

	return txs, nil
}

// mapColumns builds a lowercase header-name to column-index map.
func mapColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			cols[name] = i
		}
	}
	return cols
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// parseExecTime accepts either a numeric spreadsheet date serial or the
// "M/D/YY H:MM:SS" text form. Both resolve to the same instant for
// equivalent inputs.
func parseExecTime(s string) (time.Time, bool) {
	if serial, err := strconv.ParseFloat(s, 64); err == nil && !strings.Contains(s, "/") {
		days := int(serial)
		frac := serial - float64(days)
		seconds := int(math.Round(frac * 86400))
		return serialEpoch.AddDate(0, 0, days).Add(time.Duration(seconds) * time.Second), true
	}
	if t, err := time.Parse("1/2/06 15:04:05", s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// parseQuantity strips a leading '+' and coerces to a non-negative integer,
// defaulting to 0 on failure. Sell quantities may arrive negative.
func parseQuantity(s string) int {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	qty, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	if qty < 0 {
		qty = -qty
	}
	return qty
}

func parseDecimal(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseSide(s string) models.Side {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return models.SideBuy
	case "SELL":
		return models.SideSell
	default:
		return models.SideNA
	}
}

func parsePosEffect(s string) models.PosEffect {
	upper := strings.ToUpper(s)
	if strings.Contains(upper, "OPEN") {
		return models.PosEffectOpen
	}
	if strings.Contains(upper, "CLOSE") {
		return models.PosEffectClose
	}
	return models.PosEffectUnknown
}

func parseInstrumentType(s string) models.InstrumentType {
	upper := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case strings.Contains(upper, "CALL"):
		return models.InstrumentCall
	case strings.Contains(upper, "PUT"):
		return models.InstrumentPut
	case upper == "STOCK" || upper == "ETF" || upper == "EQUITY":
		return models.InstrumentEquity
	default:
		return models.InstrumentUnknown
	}
}
