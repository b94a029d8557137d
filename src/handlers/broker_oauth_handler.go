package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/username/tradevault/backend/src/config"
	"github.com/username/tradevault/backend/src/database"
	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/model"
	"github.com/username/tradevault/backend/src/utils"
)

var brokerOAuthConfig *oauth2.Config

func InitializeBrokerOAuthConfig() {
	brokerOAuthConfig = &oauth2.Config{
		RedirectURL:  config.Cfg.BrokerRedirectURL,
		ClientID:     config.Cfg.BrokerClientID,
		ClientSecret: config.Cfg.BrokerClientSecret,
		Scopes:       []string{"readonly"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  config.Cfg.BrokerAuthURL,
			TokenURL: config.Cfg.BrokerTokenURL,
		},
	}
}

const oauthStateTTL = 10 * time.Minute

type pendingState struct {
	userID    int64
	expiresAt time.Time
}

// BrokerOAuthHandler links a brokerage account to a user via the broker's
// OAuth flow and stores the resulting token for background syncs.
type BrokerOAuthHandler struct {
	mu     sync.Mutex
	states map[string]pendingState
}

func NewBrokerOAuthHandler() *BrokerOAuthHandler {
	return &BrokerOAuthHandler{
		states: make(map[string]pendingState),
	}
}

// newState issues a single-use state value bound to the initiating user.
// The callback arrives on a redirect without our auth header, so the state
// is the only link back to the user.
func (h *BrokerOAuthHandler) newState(userID int64) (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)

	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	for s, p := range h.states {
		if now.After(p.expiresAt) {
			delete(h.states, s)
		}
	}
	h.states[state] = pendingState{userID: userID, expiresAt: now.Add(oauthStateTTL)}
	return state, nil
}

func (h *BrokerOAuthHandler) consumeState(state string) (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.states[state]
	if !ok {
		return 0, false
	}
	delete(h.states, state)
	if time.Now().After(p.expiresAt) {
		return 0, false
	}
	return p.userID, true
}

func (h *BrokerOAuthHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	state, err := h.newState(userID)
	if err != nil {
		logger.L.Error("Failed to generate OAuth state", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to start broker connection", http.StatusInternalServerError)
		return
	}

	url := brokerOAuthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"authorization_url": url})
}

func (h *BrokerOAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.FormValue("state")
	userID, ok := h.consumeState(state)
	if !ok {
		logger.L.Warn("Invalid or expired OAuth state on broker callback")
		utils.SendJSONError(w, "Invalid or expired OAuth state", http.StatusBadRequest)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		utils.SendJSONError(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	token, err := brokerOAuthConfig.Exchange(r.Context(), code)
	if err != nil {
		logger.L.Error("Failed to exchange code for broker token", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to exchange authorization code", http.StatusBadGateway)
		return
	}

	if err := model.UpsertBrokerConnection(database.DB, userID, token); err != nil {
		logger.L.Error("Failed to store broker connection", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to store broker connection", http.StatusInternalServerError)
		return
	}

	logger.L.Info("Broker account linked", "userID", userID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "connected"})
}

func (h *BrokerOAuthHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	if err := model.DeleteBrokerConnection(database.DB, userID); err != nil {
		logger.L.Error("Failed to delete broker connection", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to disconnect broker account", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
