package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lllllllleong/ncmcompliance/internal/config"
	"github.com/Lllllllleong/ncmcompliance/internal/dataset"
	"github.com/Lllllllleong/ncmcompliance/internal/gcp"
	"github.com/Lllllllleong/ncmcompliance/internal/models"
)

// GCSEvent is the payload of a storage object-finalized CloudEvent.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// IngesterFunction turns an uploaded zip into a stored dataset and starts the workflow.
type IngesterFunction struct {
	blobs     BlobStore
	records   DatasetRecords
	workflows WorkflowTrigger
	config    *config.Config
	now       func() time.Time
}

// NewIngester creates the GCP clients for the invoice-ingester function.
func NewIngester(ctx context.Context, cfg *config.Config) (*IngesterFunction, error) {
	if err := cfg.Require(config.KeyProjectID, config.KeyDatasetsBucket); err != nil {
		return nil, err
	}

	store, err := gcp.NewDatasetStore(ctx, cfg.ProjectID, cfg.CollectionName)
	if err != nil {
		return nil, err
	}
	blobs, err := gcp.NewStorage(ctx, cfg.UploadAttempts)
	if err != nil {
		return nil, err
	}
	workflows, err := gcp.NewWorkflowStarter(ctx, cfg.ProjectID, cfg.WorkflowLocation, cfg.WorkflowID)
	if err != nil {
		return nil, err
	}

	slog.Info("Invoice ingester initialized.", "workflowId", cfg.WorkflowID)
	return NewIngesterFunction(blobs, store, workflows, cfg), nil
}

// NewIngesterFunction wires an ingester from existing dependencies.
func NewIngesterFunction(blobs BlobStore, records DatasetRecords, workflows WorkflowTrigger, cfg *config.Config) *IngesterFunction {
	return &IngesterFunction{blobs: blobs, records: records, workflows: workflows, config: cfg, now: time.Now}
}

// Process ingests one uploaded object. Non-zip objects and files already ingested are
// skipped without error. A record left in INGESTING for longer than IngestStaleAfter is
// taken over and ingested again under the same ID.
func (f *IngesterFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.EqualFold(path.Ext(e.Name), ".zip") {
		logCtx.Info("Ignoring object that is not a zip archive.")
		return nil
	}
	logCtx.Info("Processing new upload.")

	tempDir, err := os.MkdirTemp("", "invoice-ingester-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	zipPath := filepath.Join(tempDir, "upload.zip")
	if err := f.blobs.Download(ctx, e.Bucket, e.Name, zipPath); err != nil {
		logCtx.Error("Failed to download upload", "error", err)
		return err
	}

	fileHash, err := calculateFileHash(zipPath)
	if err != nil {
		logCtx.Error("Failed to calculate file hash", "error", err)
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("fileHash", fileHash)

	existingID, isDuplicate, err := f.records.FindByHash(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	var id string
	if isDuplicate {
		existing, err := f.records.Get(ctx, existingID)
		if err != nil {
			logCtx.Error("Failed to load existing dataset record", "error", err, "existingDatasetId", existingID)
			return err
		}
		if !staleIngest(existing, f.now(), f.config.IngestStaleAfter) {
			logCtx.Info("Duplicate file detected. Skipping.", "existingDatasetId", existingID, "status", existing.Status)
			return nil
		}
		id = existingID
		logCtx = logCtx.With("datasetId", id)
		logCtx.Warn("Taking over stale ingest.", "lastUpdate", existing.UpdatedAt)
	} else {
		id, err = f.records.Create(ctx, models.DatasetRecord{
			FileHash:         fileHash,
			OriginalFilename: path.Base(e.Name),
			SourceURI:        gcp.URI(e.Bucket, e.Name),
			Status:           models.StatusIngesting,
		})
		if err != nil {
			logCtx.Error("Failed to create dataset record", "error", err)
			return err
		}
		logCtx = logCtx.With("datasetId", id)
		logCtx.Info("Created dataset record in Firestore.")
	}

	ds, err := parseUpload(zipPath)
	if err != nil {
		return handleError(ctx, logCtx, f.records, id, "failed to parse upload", err)
	}
	if ds.Name == "" {
		ds.Name = path.Base(e.Name)
	}

	payload, err := json.Marshal(ds)
	if err != nil {
		return handleError(ctx, logCtx, f.records, id, "failed to marshal dataset", err)
	}
	if err := f.blobs.WriteOnce(ctx, f.config.DatasetsBucket, models.DatasetObject(id), "application/json", payload); err != nil {
		return handleError(ctx, logCtx, f.records, id, "failed to store dataset", err)
	}

	codeColumn, _ := ds.CodeColumn()
	updates := map[string]any{
		"status":      models.StatusIngested,
		"csvName":     ds.Name,
		"encoding":    ds.Encoding,
		"delimiter":   ds.Delimiter,
		"rowCount":    len(ds.Rows),
		"columnCount": len(ds.Columns),
		"codeColumn":  codeColumn,
	}
	if err := f.records.Update(ctx, id, updates); err != nil {
		return handleError(ctx, logCtx, f.records, id, "failed to update status to INGESTED", err)
	}
	logCtx.Info("Dataset stored.", "rows", len(ds.Rows), "columns", len(ds.Columns), "encoding", ds.Encoding, "delimiter", ds.Delimiter)

	execName, err := f.workflows.Start(ctx, models.WorkflowArgument{DatasetID: id, RowCount: len(ds.Rows)})
	if err != nil {
		return handleError(ctx, logCtx, f.records, id, "failed to trigger workflow execution", err)
	}
	if err := f.records.Update(ctx, id, map[string]any{"workflowExecutionId": execName}); err != nil {
		logCtx.Warn("Failed to record workflow execution.", "error", err)
	}

	logCtx.Info("Hand-off to workflow complete.", "execution", execName)
	return nil
}

// staleIngest reports whether rec is an ingest that stopped before leaving INGESTING.
func staleIngest(rec *models.DatasetRecord, now time.Time, after time.Duration) bool {
	if rec.Status != models.StatusIngesting || after <= 0 {
		return false
	}
	last := rec.UpdatedAt
	if last.IsZero() {
		last = rec.CreatedAt
	}
	return now.Sub(last) >= after
}

func parseUpload(zipPath string) (*dataset.Dataset, error) {
	file, err := os.Open(zipPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	return dataset.FromZip(file, info.Size())
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
