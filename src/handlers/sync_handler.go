package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/model"
	"github.com/username/tradevault/backend/src/services"
	"github.com/username/tradevault/backend/src/utils"
)

type SyncHandler struct {
	syncService services.SyncService
}

func NewSyncHandler(service services.SyncService) *SyncHandler {
	return &SyncHandler{
		syncService: service,
	}
}

func (h *SyncHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	accounts, err := h.syncService.ListAccounts(r.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrNoBrokerConnection) {
			utils.SendJSONError(w, "No brokerage account linked", http.StatusPreconditionFailed)
			return
		}
		logger.L.Error("Failed to list broker accounts", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to list broker accounts", http.StatusBadGateway)
		return
	}
	if accounts == nil {
		accounts = []services.BrokerAccount{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accounts)
}

func (h *SyncHandler) HandleSyncTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	result, err := h.syncService.SyncTransactions(r.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrNoBrokerConnection) {
			utils.SendJSONError(w, "No brokerage account linked", http.StatusPreconditionFailed)
			return
		}
		logger.L.Error("Broker sync failed", "userID", userID, "error", err)
		utils.SendJSONError(w, "Broker sync failed", http.StatusBadGateway)
		return
	}

	logger.L.Info("Broker sync finished", "userID", userID,
		"accounts", result.AccountsTotal, "synced", result.AccountsSynced,
		"processed", result.Processed, "imported", result.Imported)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
