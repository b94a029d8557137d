package model

import (
	"database/sql"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoBrokerConnection is returned when a user has not linked a brokerage
// account yet.
var ErrNoBrokerConnection = errors.New("no broker connection for user")

// BrokerConnection stores the OAuth token material for a user's linked
// brokerage account. The token exchange itself happens in the handler
// layer; the sync service only consumes the stored token.
type BrokerConnection struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Token converts the stored material back into an oauth2 token.
func (c *BrokerConnection) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.ExpiresAt,
	}
}

// UpsertBrokerConnection stores or replaces a user's broker token.
func UpsertBrokerConnection(db *sql.DB, userID int64, token *oauth2.Token) error {
	_, err := db.Exec(`
	INSERT INTO broker_connections (user_id, access_token, refresh_token, token_type, expires_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		access_token = excluded.access_token,
		refresh_token = excluded.refresh_token,
		token_type = excluded.token_type,
		expires_at = excluded.expires_at,
		updated_at = excluded.updated_at`,
		userID, token.AccessToken, token.RefreshToken, token.TokenType, token.Expiry, time.Now())
	return err
}

// GetBrokerConnection loads a user's broker token material.
func GetBrokerConnection(db *sql.DB, userID int64) (*BrokerConnection, error) {
	row := db.QueryRow(`
	SELECT id, user_id, access_token, refresh_token, token_type, expires_at, created_at, updated_at
	FROM broker_connections WHERE user_id = ?`, userID)

	var c BrokerConnection
	err := row.Scan(&c.ID, &c.UserID, &c.AccessToken, &c.RefreshToken, &c.TokenType,
		&c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoBrokerConnection
		}
		return nil, err
	}
	return &c, nil
}

// DeleteBrokerConnection unlinks a user's brokerage account.
func DeleteBrokerConnection(db *sql.DB, userID int64) error {
	_, err := db.Exec(`DELETE FROM broker_connections WHERE user_id = ?`, userID)
	return err
}
