package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/Lllllllleong/ncmcompliance/internal/analysis"
	"github.com/Lllllllleong/ncmcompliance/internal/config"
	"github.com/Lllllllleong/ncmcompliance/internal/gcp"
	"github.com/Lllllllleong/ncmcompliance/internal/models"
	"github.com/Lllllllleong/ncmcompliance/internal/ncm"
)

// ValidatorFunction checks every distinct NCM of a dataset against the reference table.
type ValidatorFunction struct {
	blobs     BlobStore
	records   DatasetRecords
	reference *ncm.Reference
	config    *config.Config
}

// NewValidator creates the clients and loads the reference table once per instance.
func NewValidator(ctx context.Context, cfg *config.Config) (*ValidatorFunction, error) {
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
	ref, err := LoadReference(ctx, blobs, cfg.ReferenceTable)
	if err != nil {
		return nil, err
	}
	return NewValidatorFunction(blobs, store, ref, cfg), nil
}

// NewValidatorFunction wires a validator from existing dependencies.
func NewValidatorFunction(blobs BlobStore, records DatasetRecords, ref *ncm.Reference, cfg *config.Config) *ValidatorFunction {
	return &ValidatorFunction{blobs: blobs, records: records, reference: ref, config: cfg}
}

// Process validates the dataset and stores the summary as validation.json.
func (f *ValidatorFunction) Process(ctx context.Context, req *models.ValidateRequest) (*models.ValidateResponse, error) {
	logCtx := slog.With("datasetId", req.DatasetID, "executionId", req.ExecutionID)
	logCtx.Info("Starting NCM validation.")

	ds, err := loadDataset(ctx, f.blobs, f.config.DatasetsBucket, req.DatasetID)
	if err != nil {
		return nil, handleError(ctx, logCtx, f.records, req.DatasetID, "failed to load dataset", err)
	}

	summary, err := analysis.Summarize(ds, f.reference)
	switch {
	case errors.Is(err, analysis.ErrNoCodeColumn):
		logCtx.Warn("No NCM column found. Validation skipped.", "columns", ds.Columns)
	case err != nil:
		return nil, handleError(ctx, logCtx, f.records, req.DatasetID, "failed to summarize dataset", err)
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return nil, handleError(ctx, logCtx, f.records, req.DatasetID, "failed to marshal validation summary", err)
	}
	object := models.ValidationObject(req.DatasetID)
	if err := f.blobs.Write(ctx, f.config.DatasetsBucket, object, "application/json", payload); err != nil {
		return nil, handleError(ctx, logCtx, f.records, req.DatasetID, "failed to store validation summary", err)
	}

	updates := map[string]any{
		"status":      models.StatusValidated,
		"codeColumn":  summary.CodeColumn,
		"uniqueCodes": summary.UniqueCodes,
		"invalidRows": summary.InvalidRows,
	}
	if err := f.records.Update(ctx, req.DatasetID, updates); err != nil {
		return nil, handleError(ctx, logCtx, f.records, req.DatasetID, "failed to update status to VALIDATED", err)
	}

	uri := gcp.URI(f.config.DatasetsBucket, object)
	logCtx.Info("NCM validation complete.", "uniqueCodes", summary.UniqueCodes, "invalidRows", summary.InvalidRows, "outputGcsUri", uri)
	return &models.ValidateResponse{
		Status:           "success",
		CodeColumn:       summary.CodeColumn,
		UniqueCodes:      summary.UniqueCodes,
		InvalidRows:      summary.InvalidRows,
		ValidationGCSUri: uri,
	}, nil
}
