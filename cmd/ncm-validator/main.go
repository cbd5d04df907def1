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
	validatorInstance *services.ValidatorFunction
	once              sync.Once
	initErr           error
)

func init() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	// "HandleValidate" is the entry point name configured in GCP.
	functions.HTTP("HandleValidate", handleValidate)
}

// main is required by the Go Functions Framework.
func main() {}

func handleValidate(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var cfg *config.Config
		if cfg, initErr = config.Load(""); initErr != nil {
			return
		}
		validatorInstance, initErr = services.NewValidator(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("CRITICAL: Validator initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	if req.DatasetID == "" {
		http.Error(w, "Bad Request: datasetId is required", http.StatusBadRequest)
		return
	}

	res, err := validatorInstance.Process(r.Context(), &req)
	if err != nil {
		// Already logged inside Process.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
