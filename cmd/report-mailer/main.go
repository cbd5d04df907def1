package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/ncmcompliance/internal/config"
	"github.com/Lllllllleong/ncmcompliance/internal/gcp"
	"github.com/Lllllllleong/ncmcompliance/internal/mail"
	"github.com/Lllllllleong/ncmcompliance/internal/models"
	"github.com/Lllllllleong/ncmcompliance/internal/services"
)

var (
	mailerInstance *services.MailerFunction
	once           sync.Once
	initErr        error
)

func init() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	functions.HTTP("HandleSendReport", handleSendReport)
}

// main is required by the Go Functions Framework.
func main() {}

func handleSendReport(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var cfg *config.Config
		if cfg, initErr = config.Load(""); initErr != nil {
			return
		}
		mailerInstance, initErr = services.NewReportMailer(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("CRITICAL: Mailer initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.MailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	if req.DatasetID == "" {
		http.Error(w, "Bad Request: datasetId is required", http.StatusBadRequest)
		return
	}

	res, err := mailerInstance.Process(r.Context(), &req)
	switch {
	case errors.Is(err, mail.ErrNoRecipients):
		http.Error(w, "Bad Request: at least one recipient is required", http.StatusBadRequest)
		return
	case errors.Is(err, gcp.ErrNotFound):
		http.Error(w, "Not Found: report has not been generated", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
