package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/ncmcompliance/internal/config"
	"github.com/Lllllllleong/ncmcompliance/internal/models"
	"github.com/Lllllllleong/ncmcompliance/internal/services"
)

var (
	reporterInstance *services.ReporterFunction
	once             sync.Once
	initErr          error
)

func init() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	functions.HTTP("HandleGenerateReport", handleGenerateReport)
}

// main is required by the Go Functions Framework.
func main() {}

// handleGenerateReport is the HTTP handler for the final reporting step.
func handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var cfg *config.Config
		if cfg, initErr = config.Load(""); initErr != nil {
			return
		}
		reporterInstance, initErr = services.NewReporter(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("CRITICAL: Reporter initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	if req.DatasetID == "" {
		http.Error(w, "Bad Request: datasetId is required", http.StatusBadRequest)
		return
	}

	res, err := reporterInstance.Process(r.Context(), &req)
	if err != nil {
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
