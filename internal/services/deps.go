package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/ncmcompliance/internal/analysis"
	"github.com/Lllllllleong/ncmcompliance/internal/dataset"
	"github.com/Lllllllleong/ncmcompliance/internal/gcp"
	"github.com/Lllllllleong/ncmcompliance/internal/mail"
	"github.com/Lllllllleong/ncmcompliance/internal/models"
)

// BlobStore is the object storage the functions read and write. *gcp.Storage implements it.
type BlobStore interface {
	Read(ctx context.Context, bucket, object string) ([]byte, error)
	Write(ctx context.Context, bucket, object, contentType string, data []byte) error
	WriteOnce(ctx context.Context, bucket, object, contentType string, data []byte) error
	Download(ctx context.Context, bucket, object, destPath string) error
	UploadFile(ctx context.Context, localPath, bucket, object, contentType string) error
}

// DatasetRecords tracks pipeline status. *gcp.DatasetStore implements it.
type DatasetRecords interface {
	FindByHash(ctx context.Context, fileHash string) (string, bool, error)
	Create(ctx context.Context, rec models.DatasetRecord) (string, error)
	Get(ctx context.Context, id string) (*models.DatasetRecord, error)
	Update(ctx context.Context, id string, fields map[string]any) error
}

// WorkflowTrigger starts the compliance workflow. *gcp.WorkflowStarter implements it.
type WorkflowTrigger interface {
	Start(ctx context.Context, payload any) (string, error)
}

// Sender delivers report emails. *mail.Mailer implements it.
type Sender interface {
	Send(ctx context.Context, msg mail.Message) error
}

var (
	_ BlobStore       = (*gcp.Storage)(nil)
	_ DatasetRecords  = (*gcp.DatasetStore)(nil)
	_ WorkflowTrigger = (*gcp.WorkflowStarter)(nil)
	_ Sender          = (*mail.Mailer)(nil)
)

// handleError logs, marks the dataset FAILED and returns the combined error.
func handleError(ctx context.Context, logCtx *slog.Logger, records DatasetRecords, id, message string, originalErr error) error {
	fullError := fmt.Errorf("%s: %w", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if id == "" {
		return fullError
	}
	fields := map[string]any{
		"status":       models.StatusFailed,
		"errorDetails": fullError.Error(),
	}
	if err := records.Update(ctx, id, fields); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fullError
}

func loadDataset(ctx context.Context, blobs BlobStore, bucket, id string) (*dataset.Dataset, error) {
	raw, err := blobs.Read(ctx, bucket, models.DatasetObject(id))
	if err != nil {
		return nil, err
	}
	var ds dataset.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return &ds, nil
}

func loadSummary(ctx context.Context, blobs BlobStore, bucket, id string) (analysis.Summary, error) {
	raw, err := blobs.Read(ctx, bucket, models.ValidationObject(id))
	if err != nil {
		return analysis.Summary{}, err
	}
	var s analysis.Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return analysis.Summary{}, fmt.Errorf("failed to decode validation summary: %w", err)
	}
	return s, nil
}
