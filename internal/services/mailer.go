package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/ncmcompliance/internal/config"
	"github.com/Lllllllleong/ncmcompliance/internal/gcp"
	"github.com/Lllllllleong/ncmcompliance/internal/mail"
	"github.com/Lllllllleong/ncmcompliance/internal/models"
)

// MailerFunction emails a generated report with the PDF attached.
type MailerFunction struct {
	blobs   BlobStore
	records DatasetRecords
	sender  Sender
	config  *config.Config
}

// NewReportMailer creates the clients for the report-mailer function.
func NewReportMailer(ctx context.Context, cfg *config.Config) (*MailerFunction, error) {
	if err := cfg.Require(config.KeyProjectID, config.KeyReportsBucket, config.KeySMTPUsername, config.KeySMTPPassword); err != nil {
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
	sender, err := mail.NewMailer(mail.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		Attempts: cfg.SMTPAttempts,
	})
	if err != nil {
		return nil, err
	}
	return NewMailerFunction(blobs, store, sender, cfg), nil
}

// NewMailerFunction wires a mailer from existing dependencies.
func NewMailerFunction(blobs BlobStore, records DatasetRecords, sender Sender, cfg *config.Config) *MailerFunction {
	return &MailerFunction{blobs: blobs, records: records, sender: sender, config: cfg}
}

// Process sends the stored report to the requested recipients. A failed delivery is
// returned to the caller but does not mark the dataset FAILED; the report itself is fine.
func (f *MailerFunction) Process(ctx context.Context, req *models.MailRequest) (*models.MailResponse, error) {
	logCtx := slog.With("datasetId", req.DatasetID, "executionId", req.ExecutionID)

	var to []string
	for _, addr := range req.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return nil, mail.ErrNoRecipients
	}
	logCtx.Info("Starting report delivery.", "recipients", len(to))

	raw, err := f.blobs.Read(ctx, f.config.ReportsBucket, models.ReportJSONObject(req.DatasetID))
	if err != nil {
		logCtx.Error("Failed to load report artifact", "error", err)
		return nil, fmt.Errorf("failed to load report artifact: %w", err)
	}
	var artifact models.ReportArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, fmt.Errorf("failed to decode report artifact: %w", err)
	}

	tempDir, err := os.MkdirTemp("", "report-mailer-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	pdfPath := filepath.Join(tempDir, mail.DefaultAttachmentName)
	if err := f.blobs.Download(ctx, f.config.ReportsBucket, models.ReportPDFObject(req.DatasetID), pdfPath); err != nil {
		logCtx.Error("Failed to download report PDF", "error", err)
		return nil, err
	}

	html, err := mail.RenderHTML(mail.Summary{
		DatasetName: artifact.DatasetName,
		GeneratedAt: artifact.GeneratedAt,
		Metrics:     artifact.Metrics,
		Severity:    artifact.Severity,
		Findings:    artifact.Findings,
		HasFindings: artifact.HasFindings,
		Problems:    artifact.Problems,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render email: %w", err)
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = f.config.MailSubject
	}

	err = f.sender.Send(ctx, mail.Message{
		To:             to,
		Subject:        subject,
		HTML:           html,
		AttachmentPath: pdfPath,
		AttachmentName: mail.DefaultAttachmentName,
	})
	if err != nil {
		logCtx.Error("Failed to send report email", "error", err)
		return nil, fmt.Errorf("failed to send report email: %w", err)
	}

	if err := f.records.Update(ctx, req.DatasetID, map[string]any{"mailedTo": to}); err != nil {
		logCtx.Warn("Failed to record delivery.", "error", err)
	}
	logCtx.Info("Report delivered.", "recipients", len(to))
	return &models.MailResponse{Status: "success", Recipients: len(to)}, nil
}
