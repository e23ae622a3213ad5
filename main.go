package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"bitstore/internal/accounts"
	"bitstore/internal/api"
	"bitstore/internal/auth"
	"bitstore/internal/blob"
	commitStorage "bitstore/internal/commit/storage"
	"bitstore/internal/config"
	"bitstore/internal/logging"
	"bitstore/internal/middleware"
	repositoryStorage "bitstore/internal/repository/storage"
	sharelinkStorage "bitstore/internal/sharelink/storage"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfgPath := config.DefaultPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal("failed to load config:", err)
	}

	// Initialize logger
	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	// Follow config edits so verbosity can be retuned without a restart
	stopWatch, err := config.Watch(cfgPath, func(fresh *config.Config) {
		if err := logger.SetLevel(fresh.LogLevel); err != nil {
			logger.Warn("ignoring invalid log level", zap.String("log_level", fresh.LogLevel))
			return
		}
		logger.Info("log level updated", zap.String("log_level", fresh.LogLevel))
	})
	if err != nil {
		logger.Warn("config watcher unavailable", zap.Error(err))
	} else {
		defer stopWatch()
	}

	if cfg.Auth.Secret == "" {
		logger.Fatal("auth secret is not configured")
	}

	// Initialize BadgerDB
	db, err := badger.Open(badger.DefaultOptions(cfg.Database.Path))
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	// Initialize stores
	blobs, err := blob.NewDedupStore(db, cfg.Content.CacheSize)
	if err != nil {
		logger.Fatal("failed to initialize blob store", zap.Error(err))
	}
	commits := commitStorage.NewStore(db, blobs)
	repos := repositoryStorage.NewStore(db, commits, blobs)
	links := sharelinkStorage.NewStore(db, time.Duration(cfg.ShareLinks.TTLDays)*24*time.Hour)
	users := accounts.NewStore(db)
	tokens := auth.NewManager(
		cfg.Auth.Secret,
		time.Duration(cfg.Auth.AccessTTLMinutes)*time.Minute,
		time.Duration(cfg.Auth.RefreshTTLHours)*time.Hour,
	)

	// Set up router
	mux := api.NewRouter(
		api.NewRepositoryHandler(repos, commits, blobs, links, users),
		api.NewCommitHandler(commits, repos, blobs, links),
		api.NewShareLinkHandler(links, repos, blobs),
		api.NewAuthHandler(users, tokens),
		tokens,
	)

	// Health checks
	mux.HandleFunc("/health", healthCheck)

	// Apply middleware
	handler := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recover(logger),
	)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("starting server", zap.String("address", addr), zap.String("environment", cfg.Environment))

	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy"}`))
}
