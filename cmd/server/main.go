package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/echosage/microlog/internal/api"
	"github.com/echosage/microlog/internal/config"
	"github.com/echosage/microlog/internal/middleware"
	"github.com/echosage/microlog/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	var persister store.Persister
	if cfg.SQLitePath != "" {
		sp, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Fatal("open sqlite", zap.String("path", cfg.SQLitePath), zap.Error(err))
		}
		defer sp.Close()
		persister = sp
		logger.Info("using sqlite storage", zap.String("path", cfg.SQLitePath))
	} else {
		persister = store.NewFilePersister(cfg.DataPath)
		logger.Info("using file storage", zap.String("path", cfg.DataPath))
	}

	st, err := store.Open(persister)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}

	mux := http.NewServeMux()
	api.NewRouter(st, logger).Register(mux)

	// PWA shell, when bundled alongside the server.
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
		logger.Info("serving static files", zap.String("dir", cfg.StaticDir))
	}

	handler := middleware.RequestLog(logger,
		middleware.SecureHeaders(middleware.CORS(middleware.NoStore(mux))))

	logger.Info("microlog server listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
