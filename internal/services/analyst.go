package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/ncmcompliance/internal/analysis"
	"github.com/Lllllllleong/ncmcompliance/internal/config"
	"github.com/Lllllllleong/ncmcompliance/internal/gcp"
	"github.com/Lllllllleong/ncmcompliance/internal/llm"
	"github.com/Lllllllleong/ncmcompliance/internal/models"
)

// AnalystFunction answers questions about a validated dataset through the LLM.
type AnalystFunction struct {
	blobs   BlobStore
	records DatasetRecords
	client  llm.Client
	config  *config.Config
}

// NewAnalyst creates the clients for the compliance-analyst function.
func NewAnalyst(ctx context.Context, cfg *config.Config) (*AnalystFunction, error) {
	if err := cfg.Require(config.KeyProjectID, config.KeyDatasetsBucket); err != nil {
		return nil, err
	}
	if cfg.LLMProvider == llm.ProviderOpenAI {
		if err := cfg.Require(config.KeyOpenAIAPIKey); err != nil {
			return nil, err
		}
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

	client, err := llm.New(ctx, llm.Options{
		Provider:     cfg.LLMProvider,
		Model:        cfg.LLMModel,
		SystemPrompt: llm.SystemPrompt(ref),
		Timeout:      cfg.LLMTimeout,
		ProjectID:    cfg.ProjectID,
		Region:       cfg.VertexAIRegion,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	slog.Info("Compliance analyst initialized.", "llm", client.Name())
	return NewAnalystFunction(blobs, store, client, cfg), nil
}

// NewAnalystFunction wires an analyst from existing dependencies.
func NewAnalystFunction(blobs BlobStore, records DatasetRecords, client llm.Client, cfg *config.Config) *AnalystFunction {
	return &AnalystFunction{blobs: blobs, records: records, client: client, config: cfg}
}

// Process asks one question. An empty question runs the full validation query. With
// Persist set the answer is stored as the dataset's analysis and failures mark the
// dataset FAILED; chat questions leave the record alone.
func (f *AnalystFunction) Process(ctx context.Context, req *models.AnalystRequest) (*models.AnalystResponse, error) {
	logCtx := slog.With("datasetId", req.DatasetID, "executionId", req.ExecutionID, "llm", f.client.Name())
	logCtx.Info("Starting compliance analysis.", "historyTurns", len(req.History))

	fail := func(message string, err error) error {
		if req.Persist {
			return handleError(ctx, logCtx, f.records, req.DatasetID, message, err)
		}
		logCtx.Error(message, "error", err)
		return fmt.Errorf("%s: %w", message, err)
	}

	summary, err := loadSummary(ctx, f.blobs, f.config.DatasetsBucket, req.DatasetID)
	if err != nil {
		return nil, fail("failed to load validation summary", err)
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = llm.ValidationQuery()
	}

	raw, err := f.client.Generate(ctx, req.History, llm.Question(summary, question))
	if err != nil {
		return nil, fail("call to LLM failed", err)
	}

	answer := llm.CleanResponse(raw)
	if err := llm.DetectRefusal(answer); err != nil {
		logCtx.Error("LLM refusal detected", "error", err, "response", answer)
		return nil, fail("LLM refused to analyse dataset", err)
	}
	if answer == "" {
		logCtx.Warn("LLM returned an empty answer.")
	}

	resp := &models.AnalystResponse{
		Status:   "success",
		Answer:   answer,
		History:  req.History.Exchange(question, answer),
		Severity: analysis.DetectSeverity(answer),
	}

	if req.Persist {
		object := models.AnalysisObject(req.DatasetID)
		if err := f.blobs.Write(ctx, f.config.DatasetsBucket, object, "text/markdown; charset=utf-8", []byte(answer)); err != nil {
			return nil, fail("failed to store analysis", err)
		}
		resp.AnalysisGCSUri = gcp.URI(f.config.DatasetsBucket, object)
	}

	logCtx.Info("Compliance analysis complete.", "severity", resp.Severity, "answerLength", len(answer))
	return resp, nil
}
