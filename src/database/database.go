package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/tradevault/backend/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateTransactionsTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS broker_connections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL UNIQUE,
		access_token TEXT NOT NULL,
		refresh_token TEXT,
		token_type TEXT,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		strike REAL NOT NULL,
		expiration TEXT NOT NULL,
		exec_time TIMESTAMP NOT NULL,
		trade_date TEXT NOT NULL,
		side TEXT,
		quantity INTEGER,
		price REAL,
		pos_effect TEXT,
		order_type TEXT,
		instrument_type TEXT,
		source_id TEXT NOT NULL,
		seq INTEGER,
		upload_filename TEXT,
		FOREIGN KEY(user_id) REFERENCES users(id),
		UNIQUE(user_id, source_id)
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_group
		ON transactions(user_id, symbol, strike, expiration);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateTransactionsTable adds columns introduced after the first release
// to an existing transactions table.
func migrateTransactionsTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='transactions'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("transactions table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("transactions table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for transactions table", "error", err)
		} else {
			stdlog.Printf("Error checking for transactions table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(transactions)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for transactions", "error", err)
		} else {
			stdlog.Printf("Error querying table schema: %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info", "error", err)
			} else {
				stdlog.Printf("Error scanning column info: %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info: %v", err)
		}
		return
	}

	if _, ok := columnExists["seq"]; !ok {
		if _, err := DB.Exec("ALTER TABLE transactions ADD COLUMN seq INTEGER"); err != nil {
			logger.L.Error("Error adding seq column", "error", err)
		} else {
			logger.L.Info("Added seq column to transactions table")
			if _, errUpdate := DB.Exec("UPDATE transactions SET seq = id WHERE seq IS NULL"); errUpdate != nil {
				logger.L.Error("Error backfilling seq values for existing rows", "error", errUpdate)
			}
		}
	}

	if _, ok := columnExists["upload_filename"]; !ok {
		if _, err := DB.Exec("ALTER TABLE transactions ADD COLUMN upload_filename TEXT"); err != nil {
			logger.L.Error("Error adding upload_filename column", "error", err)
		} else {
			logger.L.Info("Added upload_filename column to transactions table")
		}
	}
}
