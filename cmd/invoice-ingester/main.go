package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/ncmcompliance/internal/config"
	"github.com/Lllllllleong/ncmcompliance/internal/services"
)

var (
	ingesterInstance *services.IngesterFunction
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Triggered by object-finalized events on the uploads bucket.
	functions.CloudEvent("IngestInvoices", ingestInvoices)
}

// main is required by the Go Functions Framework.
func main() {}

func ingestInvoices(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		var cfg *config.Config
		if cfg, initErr = config.Load(""); initErr != nil {
			return
		}
		ingesterInstance, initErr = services.NewIngester(context.Background(), cfg)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Errors are logged with context inside Process.
	return ingesterInstance.Process(ctx, gcsEvent)
}
