package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/tradevault/backend/src/config"
	"github.com/username/tradevault/backend/src/database"
	"github.com/username/tradevault/backend/src/handlers"
	"github.com/username/tradevault/backend/src/logger"
	"github.com/username/tradevault/backend/src/processors"
	"github.com/username/tradevault/backend/src/security"
	"github.com/username/tradevault/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded",
				"method", r.Method,
				"path", r.URL.Path,
				"remoteAddr", r.RemoteAddr)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowedOrigins := map[string]bool{
			"http://localhost:3000": true,
		}

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Requested-With, Cookie, If-None-Match")
			w.Header().Set("Access-Control-Expose-Headers", "X-CSRF-Token, ETag")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	logger.L.Info("Tradevault backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid. Must be at least 32 bytes.")
		os.Exit(1)
	}
	if len(config.Cfg.CSRFAuthKey) < 32 {
		logger.L.Error("CSRF_AUTH_KEY must be at least 32 bytes long.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	logger.L.Info("Database initialized successfully.")

	reportCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	logger.L.Info("Initializing services and handlers...")
	authService := security.NewAuthService(config.Cfg.JWTSecret)
	userHandler := handlers.NewUserHandler(authService)

	mergeProcessor := processors.NewMergeProcessor(config.Cfg.BlockedGroupSymbols)
	roundTripProcessor := processors.NewRoundTripProcessor()
	statsProcessor := processors.NewStatsProcessor()

	importService := services.NewImportService(
		mergeProcessor, roundTripProcessor, statsProcessor, reportCache,
	)
	syncService := services.NewSyncService(importService)

	uploadHandler := handlers.NewUploadHandler(importService)
	tradesHandler := handlers.NewTradesHandler(importService)
	syncHandler := handlers.NewSyncHandler(syncService)

	handlers.InitializeBrokerOAuthConfig()
	brokerHandler := handlers.NewBrokerOAuthHandler()

	logger.L.Info("Configuring routes...")
	rootMux := http.NewServeMux()
	apiRouter := http.NewServeMux()

	apiRouter.Handle("GET /api/auth/csrf", handlers.GetCSRFToken(config.Cfg.CSRFAuthKey))

	authActionRouter := http.NewServeMux()
	authActionRouter.HandleFunc("POST /login", userHandler.LoginUserHandler)
	authActionRouter.HandleFunc("POST /register", userHandler.RegisterUserHandler)
	authActionRouter.HandleFunc("POST /refresh", userHandler.RefreshTokenHandler)
	authActionRouter.HandleFunc("POST /logout", userHandler.AuthMiddleware(userHandler.LogoutUserHandler))

	apiRouter.Handle("/api/auth/", http.StripPrefix("/api/auth", handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey)(authActionRouter)))

	csrfProtection := handlers.CSRFMiddleware(config.Cfg.CSRFAuthKey)
	applyCsrfAndAuth := func(handler http.HandlerFunc) http.Handler {
		return csrfProtection(http.HandlerFunc(userHandler.AuthMiddleware(handler)))
	}

	apiRouter.Handle("POST /api/upload", applyCsrfAndAuth(uploadHandler.HandleUpload))
	apiRouter.Handle("DELETE /api/upload/{filename}", applyCsrfAndAuth(uploadHandler.HandleDeleteUpload))
	apiRouter.Handle("GET /api/trades/groups", applyCsrfAndAuth(tradesHandler.HandleGetTradeGroups))
	apiRouter.Handle("GET /api/trades/closed", applyCsrfAndAuth(tradesHandler.HandleGetClosedTrades))
	apiRouter.Handle("GET /api/stats/daily", applyCsrfAndAuth(tradesHandler.HandleGetDailyStats))
	apiRouter.Handle("GET /api/stats/summary", applyCsrfAndAuth(tradesHandler.HandleGetSummary))
	apiRouter.Handle("GET /api/stats/cumulative-pnl", applyCsrfAndAuth(tradesHandler.HandleGetCumulativeProfitLoss))
	apiRouter.Handle("POST /api/broker/connect", applyCsrfAndAuth(brokerHandler.HandleConnect))
	apiRouter.HandleFunc("GET /api/broker/callback", brokerHandler.HandleCallback)
	apiRouter.Handle("DELETE /api/broker/connection", applyCsrfAndAuth(brokerHandler.HandleDisconnect))
	apiRouter.Handle("GET /api/broker/accounts", applyCsrfAndAuth(syncHandler.HandleListAccounts))
	apiRouter.Handle("POST /api/broker/sync", applyCsrfAndAuth(syncHandler.HandleSyncTransactions))
	apiRouter.Handle("GET /api/user/has-data", applyCsrfAndAuth(userHandler.HandleCheckUserData))

	rootMux.Handle("/api/", apiRouter)

	rootMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" && r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"message": "TRADEVAULT Backend is running"})
		} else {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				logger.L.Warn("Root level path not found", "method", r.Method, "path", r.URL.Path)
				http.NotFound(w, r)
			}
		}
	})

	logger.L.Info("Applying global middleware...")
	finalHandler := enableCORS(rateLimitMiddleware(rootMux))

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      finalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.L.Error("Failed to start server", "error", err)
		stdlog.Fatalf("Failed to start server: %v", err)
	} else if err == http.ErrServerClosed {
		logger.L.Info("Server stopped gracefully.")
	}
}
