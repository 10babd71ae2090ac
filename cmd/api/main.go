package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/andresuchdata/warenbestand/internal/app"
	"github.com/andresuchdata/warenbestand/internal/config"
	"github.com/andresuchdata/warenbestand/internal/drive"
	"github.com/andresuchdata/warenbestand/pkg/logger"
	"github.com/gorilla/mux"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Setup(os.Stdout, cfg.Server.LogLevel, cfg.Server.LogFormat)

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	if application.Drive == nil {
		logger.Log.Fatal().Msg("Google Drive credentials are required (GOOGLE_DRIVE_CREDENTIALS or GOOGLE_DRIVE_CREDENTIALS_FILE)")
	}

	// Create router
	r := mux.NewRouter()

	// Register routes
	driveHandler := drive.NewHandler(application.Drive, application.Service)
	driveHandler.RegisterRoutes(r)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.DrivePort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Log.Info().Str("addr", addr).Msg("Drive API starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Log.Fatal().Err(err).Msg("Drive API stopped")
	}
}
