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
	"github.com/Lllllllleong/ncmcompliance/internal/llm"
	"github.com/Lllllllleong/ncmcompliance/internal/models"
	"github.com/Lllllllleong/ncmcompliance/internal/services"
)

var (
	analystInstance *services.AnalystFunction
	once            sync.Once
	initErr         error
)

func init() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	// Called by the workflow with persist=true and by the chat frontend without it.
	functions.HTTP("HandleAnalyse", handleAnalyse)
}

// main is required by the Go Functions Framework.
func main() {}

func handleAnalyse(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var cfg *config.Config
		if cfg, initErr = config.Load(""); initErr != nil {
			return
		}
		analystInstance, initErr = services.NewAnalyst(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("CRITICAL: Analyst initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.AnalystRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	if req.DatasetID == "" {
		http.Error(w, "Bad Request: datasetId is required", http.StatusBadRequest)
		return
	}

	res, err := analystInstance.Process(r.Context(), &req)
	switch {
	case errors.Is(err, gcp.ErrNotFound):
		http.Error(w, "Not Found: dataset has not been validated", http.StatusNotFound)
		return
	case errors.Is(err, llm.ErrRefusal):
		http.Error(w, "Unprocessable Entity: model refused to answer", http.StatusUnprocessableEntity)
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
