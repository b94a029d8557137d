// backend/src/services/trade_store.go
package services

import (
	"fmt"
	"time"

	"github.com/username/tradevault/backend/src/database"
	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/models"
)

// execTimeStorageFormat keeps execution times lossless and sortable as
// sqlite TEXT.
const execTimeStorageFormat = time.RFC3339Nano

// loadTradeGroups fetches a user's full transaction set and reassembles the
// trade groups in first-seen insertion order.
func loadTradeGroups(userID int64) ([]models.TradeGroup, error) {
	logger.L.Debug("Fetching transactions from DB", "userID", userID)
	rows, err := database.DB.Query(`
		SELECT symbol, strike, expiration, exec_time, trade_date, side, quantity, price,
		       pos_effect, order_type, instrument_type, source_id, seq, upload_filename
		FROM transactions
		WHERE user_id = ?
		ORDER BY id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions for userID %d: %w", userID, err)
	}
	defer rows.Close()

	var groups []models.TradeGroup
	indexByKey := make(map[models.GroupKey]int)

	for rows.Next() {
		var tx models.Transaction
		var execTimeStr string
		scanErr := rows.Scan(&tx.Symbol, &tx.Strike, &tx.Expiration, &execTimeStr,
			&tx.TradeDate, &tx.Side, &tx.Quantity, &tx.Price, &tx.PosEffect,
			&tx.OrderType, &tx.Type, &tx.SourceID, &tx.Seq, &tx.UploadFilename)
		if scanErr != nil {
			return nil, fmt.Errorf("error scanning transaction row for userID %d: %w", userID, scanErr)
		}
		execTime, parseErr := time.Parse(execTimeStorageFormat, execTimeStr)
		if parseErr != nil {
			logger.L.Warn("Stored exec time unparseable, keeping zero time",
				"userID", userID, "sourceID", tx.SourceID, "value", execTimeStr)
		}
		tx.ExecTime = execTime

		key := models.GroupKeyOf(tx)
		idx, ok := indexByKey[key]
		if !ok {
			idx = len(groups)
			indexByKey[key] = idx
			groups = append(groups, models.TradeGroup{
				Symbol:     tx.Symbol,
				Strike:     tx.Strike,
				Expiration: tx.Expiration,
			})
		}
		groups[idx].Transactions = append(groups[idx].Transactions, tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transaction rows for userID %d: %w", userID, err)
	}
	logger.L.Debug("DB fetch complete", "userID", userID, "groupCount", len(groups))
	return groups, nil
}

// saveTradeGroups replaces a user's whole transaction set atomically. The
// import pipeline is read-modify-write at the granularity of one user's
// full dataset; callers serialize per user before invoking this.
func saveTradeGroups(userID int64, groups []models.TradeGroup) error {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.Exec(`DELETE FROM transactions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("error clearing transactions for userID %d: %w", userID, err)
	}

	stmt, err := dbTx.Prepare(`
		INSERT INTO transactions (user_id, symbol, strike, expiration, exec_time, trade_date,
			side, quantity, price, pos_effect, order_type, instrument_type, source_id, seq, upload_filename)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, g := range groups {
		for _, tx := range g.Transactions {
			_, err := stmt.Exec(userID, g.Symbol, g.Strike, g.Expiration,
				tx.ExecTime.UTC().Format(execTimeStorageFormat), tx.TradeDate,
				tx.Side, tx.Quantity, tx.Price, tx.PosEffect, tx.OrderType,
				tx.Type, tx.SourceID, tx.Seq, tx.UploadFilename)
			if err != nil {
				return fmt.Errorf("error inserting transaction (sourceID: %s): %w", tx.SourceID, err)
			}
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("error committing transactions: %w", err)
	}
	return nil
}
