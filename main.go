package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/sarvottam-bhagat/docu-ai-processor/features/extraction"
	"github.com/sarvottam-bhagat/docu-ai-processor/features/session"
	"github.com/sarvottam-bhagat/docu-ai-processor/internal/adapter/abbyy"
	"github.com/sarvottam-bhagat/docu-ai-processor/internal/app"
	"github.com/sarvottam-bhagat/docu-ai-processor/internal/config"
	"github.com/sarvottam-bhagat/docu-ai-processor/internal/logger"
	"github.com/sarvottam-bhagat/docu-ai-processor/internal/middleware"
)

func main() {
	slog.SetDefault(slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))))

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// 2. Infrastructure (db, migrations, nsq)
	deps, err := app.Bootstrap(cfg)
	if err != nil {
		slog.Error("failed to bootstrap", "error", err)
		os.Exit(1)
	}
	if deps.DB != nil {
		defer deps.DB.Close()
	}

	// 3. Session store
	var store session.Store
	if cfg.SessionStore == "postgres" {
		store = session.NewPostgresStore(deps.DB)
	} else {
		store = session.NewMemoryStore()
	}

	// Feature: Session (rendezvous relay)
	sessionHandler := session.NewHandler(store, cfg.PublicOrigin, cfg.MaxUploadSizeMB)
	poller := session.NewPoller(store)

	// Feature: Extraction
	engine := abbyy.NewClient(cfg.AbbyyAPIKey)
	engine.SetBaseURL(cfg.AbbyyBaseURL)
	extractionService := extraction.NewService(engine, deps.NSQProducer)
	extractionHandler := extraction.NewHandler(extractionService, poller)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	http.Handle("POST /sessions", middleware.CorrelationID(enableCORS(sessionHandler.Create)))
	http.Handle("GET /sessions/{id}/qr", middleware.CorrelationID(enableCORS(sessionHandler.QR)))
	http.Handle("POST /sessions/{id}/process", middleware.CorrelationID(enableCORS(extractionHandler.ProcessSession)))

	http.Handle("POST /mobile-upload/{sessionId}", middleware.CorrelationID(enableCORS(sessionHandler.Upload)))
	http.Handle("GET /mobile-upload-status/{sessionId}", middleware.CorrelationID(enableCORS(sessionHandler.Status)))

	http.Handle("POST /process-document", middleware.CorrelationID(enableCORS(extractionHandler.ProcessDocument)))
	http.Handle("GET /models", middleware.CorrelationID(enableCORS(extractionHandler.ListModels)))

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	slog.Info("server starting", "port", cfg.ServerPort)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.ServerPort), nil); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
