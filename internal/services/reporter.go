package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/ncmcompliance/internal/analysis"
	"github.com/Lllllllleong/ncmcompliance/internal/config"
	"github.com/Lllllllleong/ncmcompliance/internal/gcp"
	"github.com/Lllllllleong/ncmcompliance/internal/models"
	"github.com/Lllllllleong/ncmcompliance/internal/pdfreport"
	"github.com/Lllllllleong/ncmcompliance/internal/tables"
)

// maxProblems caps the problem list carried into the report artifact.
const maxProblems = 20

// ReporterFunction turns the validation summary and the LLM analysis into the PDF report.
type ReporterFunction struct {
	blobs   BlobStore
	records DatasetRecords
	config  *config.Config
	now     func() time.Time
	render  func(ctx context.Context, l *pdfreport.Layout, w io.Writer) error
}

// NewReporter creates the clients for the report-generator function.
func NewReporter(ctx context.Context, cfg *config.Config) (*ReporterFunction, error) {
	if err := cfg.Require(config.KeyProjectID, config.KeyDatasetsBucket, config.KeyReportsBucket); err != nil {
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
	return NewReporterFunction(blobs, store, cfg), nil
}

// NewReporterFunction wires a reporter from existing dependencies.
func NewReporterFunction(blobs BlobStore, records DatasetRecords, cfg *config.Config) *ReporterFunction {
	return &ReporterFunction{blobs: blobs, records: records, config: cfg, now: time.Now, render: pdfreport.Render}
}

// Process renders report.pdf and report.json for the dataset.
func (f *ReporterFunction) Process(ctx context.Context, req *models.ReportRequest) (*models.ReportResponse, error) {
	logCtx := slog.With("datasetId", req.DatasetID, "executionId", req.ExecutionID)
	logCtx.Info("Starting report generation.")

	rec, err := f.records.Get(ctx, req.DatasetID)
	if err != nil {
		return nil, handleError(ctx, logCtx, f.records, req.DatasetID, "failed to load dataset record", err)
	}
	summary, err := loadSummary(ctx, f.blobs, f.config.DatasetsBucket, req.DatasetID)
	if err != nil {
		return nil, handleError(ctx, logCtx, f.records, req.DatasetID, "failed to load validation summary", err)
	}

	var analysisText string
	raw, err := f.blobs.Read(ctx, f.config.DatasetsBucket, models.AnalysisObject(req.DatasetID))
	switch {
	case errors.Is(err, gcp.ErrNotFound):
		logCtx.Warn("No stored analysis. Report will use validator results only.")
	case err != nil:
		return nil, handleError(ctx, logCtx, f.records, req.DatasetID, "failed to load analysis", err)
	default:
		analysisText = string(raw)
	}

	findings, hasFindings := tables.Extract(analysisText)
	metrics := analysis.ComputeMetrics(summary, findings, hasFindings, analysisText)
	logCtx.Info("Metrics computed.", "problemSource", metrics.ProblemSource, "conformity", metrics.ConformityPercent, "status", metrics.Status)

	artifact := models.ReportArtifact{
		DatasetID:   req.DatasetID,
		DatasetName: rec.OriginalFilename,
		GeneratedAt: f.now(),
		Metrics:     metrics,
		Severity:    analysis.DetectSeverity(analysisText),
		Findings:    findings,
		HasFindings: hasFindings,
		Problems:    ProblemList(summary, maxProblems),
	}

	tempDir, err := os.MkdirTemp("", "report-generator-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	pdfPath := filepath.Join(tempDir, "report.pdf")
	layout := pdfreport.Build(pdfreport.Report{
		DatasetName: artifact.DatasetName,
		GeneratedAt: artifact.GeneratedAt,
		Metrics:     metrics,
		Findings:    findings,
		HasFindings: hasFindings,
		Analysis:    analysisText,
		MaxRows:     f.config.MaxReportRows,
	})
	if err := f.renderToFile(ctx, layout, pdfPath); err != nil {
		return nil, handleError(ctx, logCtx, f.records, req.DatasetID, "failed to render PDF", err)
	}

	reportJSON, err := json.Marshal(artifact)
	if err != nil {
		return nil, handleError(ctx, logCtx, f.records, req.DatasetID, "failed to marshal report", err)
	}

	bucket := f.config.ReportsBucket
	pdfObject, jsonObject := models.ReportPDFObject(req.DatasetID), models.ReportJSONObject(req.DatasetID)

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return f.blobs.UploadFile(gctx, pdfPath, bucket, pdfObject, "application/pdf")
	})
	eg.Go(func() error {
		return f.blobs.Write(gctx, bucket, jsonObject, "application/json", reportJSON)
	})
	if err := eg.Wait(); err != nil {
		return nil, handleError(ctx, logCtx, f.records, req.DatasetID, "one or more report artifacts failed to upload", err)
	}

	updates := map[string]any{
		"status":  models.StatusReported,
		"metrics": metrics,
	}
	if err := f.records.Update(ctx, req.DatasetID, updates); err != nil {
		return nil, handleError(ctx, logCtx, f.records, req.DatasetID, "failed to update status to REPORTED", err)
	}

	logCtx.Info("Report generation complete.", "pages", layout.PageCount())
	return &models.ReportResponse{
		Status:       "success",
		PdfGCSUri:    gcp.URI(bucket, pdfObject),
		ReportGCSUri: gcp.URI(bucket, jsonObject),
		Metrics:      metrics,
	}, nil
}

func (f *ReporterFunction) renderToFile(ctx context.Context, layout *pdfreport.Layout, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.render(ctx, layout, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ProblemList describes the codes the validator rejected, most frequent first.
func ProblemList(s analysis.Summary, max int) []string {
	var out []string
	for _, f := range s.Unknown() {
		if len(out) == max {
			break
		}
		line := fmt.Sprintf("%s (%d ocorrência(s)): %s", f.Code, f.Count, f.Result.Reason)
		if f.ExampleDescription != "" {
			line += " - " + f.ExampleDescription
		}
		out = append(out, line)
	}
	return out
}
