package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/models"
	"github.com/username/tradevault/backend/src/services"
	"github.com/username/tradevault/backend/src/utils"
)

type TradesHandler struct {
	importService services.ImportService
}

func NewTradesHandler(service services.ImportService) *TradesHandler {
	return &TradesHandler{
		importService: service,
	}
}

// writeWithETag writes payload as JSON unless the client's If-None-Match
// already names the current ETag, in which case it answers 304.
func writeWithETag(w http.ResponseWriter, r *http.Request, userID int64, payload interface{}) {
	currentETag, etagErr := utils.GenerateETag(payload)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag", "userID", userID, "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.L.Error("Error encoding JSON response", "userID", userID, "error", err)
	}
}

func (h *TradesHandler) HandleGetTradeGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	groups, err := h.importService.GetTradeGroups(userID)
	if err != nil {
		logger.L.Error("Error retrieving trade groups", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error retrieving trade groups", http.StatusInternalServerError)
		return
	}
	if groups == nil {
		groups = []models.TradeGroup{}
	}
	writeWithETag(w, r, userID, groups)
}

func (h *TradesHandler) HandleGetClosedTrades(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	trades, err := h.importService.GetClosedTrades(userID)
	if err != nil {
		logger.L.Error("Error retrieving closed trades", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error retrieving closed trades", http.StatusInternalServerError)
		return
	}
	if trades == nil {
		trades = []models.ClosedTrade{}
	}
	writeWithETag(w, r, userID, trades)
}

func (h *TradesHandler) HandleGetDailyStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	stats, err := h.importService.GetDailyStats(userID)
	if err != nil {
		logger.L.Error("Error retrieving daily stats", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error retrieving daily stats", http.StatusInternalServerError)
		return
	}
	if stats == nil {
		stats = []models.DailyStats{}
	}
	writeWithETag(w, r, userID, stats)
}

func (h *TradesHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	summary, err := h.importService.GetSummary(userID)
	if err != nil {
		logger.L.Error("Error retrieving summary stats", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error retrieving summary stats", http.StatusInternalServerError)
		return
	}
	writeWithETag(w, r, userID, summary)
}

func (h *TradesHandler) HandleGetCumulativeProfitLoss(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	points, err := h.importService.GetCumulativeProfitLoss(userID)
	if err != nil {
		logger.L.Error("Error retrieving cumulative profit/loss", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error retrieving cumulative profit/loss", http.StatusInternalServerError)
		return
	}
	if points == nil {
		points = []models.CumulativePoint{}
	}
	writeWithETag(w, r, userID, points)
}
