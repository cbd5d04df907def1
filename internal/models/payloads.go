package models

import (
	"time"

	"github.com/Lllllllleong/ncmcompliance/internal/analysis"
	"github.com/Lllllllleong/ncmcompliance/internal/llm"
	"github.com/Lllllllleong/ncmcompliance/internal/tables"
)

// These structs define the JSON payloads for HTTP requests and responses
// between the Cloud Workflow and the worker Cloud Functions.

// WorkflowArgument is passed to the compliance workflow by the ingester.
type WorkflowArgument struct {
	DatasetID string `json:"datasetId"`
	RowCount  int    `json:"rowCount"`
}

// ValidateRequest is the input for the ncm-validator function.
type ValidateRequest struct {
	DatasetID   string `json:"datasetId"`
	ExecutionID string `json:"executionId"`
}

// ValidateResponse is the output of the ncm-validator function.
type ValidateResponse struct {
	Status           string `json:"status"`
	CodeColumn       string `json:"codeColumn"`
	UniqueCodes      int    `json:"uniqueCodes"`
	InvalidRows      int    `json:"invalidRows"`
	ValidationGCSUri string `json:"validationGcsUri"`
}

// AnalystRequest is the input for the compliance-analyst function. History is owned by
// the caller and sent back updated in the response.
type AnalystRequest struct {
	DatasetID   string           `json:"datasetId"`
	ExecutionID string           `json:"executionId"`
	Question    string           `json:"question,omitempty"`
	History     llm.Conversation `json:"history,omitempty"`
	Persist     bool             `json:"persist,omitempty"`
}

// AnalystResponse is the output of the compliance-analyst function.
type AnalystResponse struct {
	Status         string            `json:"status"`
	Answer         string            `json:"answer"`
	History        llm.Conversation  `json:"history"`
	Severity       analysis.Severity `json:"severity"`
	AnalysisGCSUri string            `json:"analysisGcsUri,omitempty"`
}

// ReportRequest is the input for the report-generator function.
type ReportRequest struct {
	DatasetID   string `json:"datasetId"`
	ExecutionID string `json:"executionId"`
}

// ReportResponse is the output of the report-generator function.
type ReportResponse struct {
	Status       string           `json:"status"`
	PdfGCSUri    string           `json:"pdfGcsUri"`
	ReportGCSUri string           `json:"reportGcsUri"`
	Metrics      analysis.Metrics `json:"metrics"`
}

// MailRequest is the input for the report-mailer function.
type MailRequest struct {
	DatasetID   string   `json:"datasetId"`
	ExecutionID string   `json:"executionId"`
	To          []string `json:"to"`
	Subject     string   `json:"subject,omitempty"`
}

// MailResponse is the output of the report-mailer function.
type MailResponse struct {
	Status     string `json:"status"`
	Recipients int    `json:"recipients"`
}

// ReportArtifact is stored next to the PDF so the mailer can render the email
// without recomputing anything.
type ReportArtifact struct {
	DatasetID   string            `json:"datasetId"`
	DatasetName string            `json:"datasetName"`
	GeneratedAt time.Time         `json:"generatedAt"`
	Metrics     analysis.Metrics  `json:"metrics"`
	Severity    analysis.Severity `json:"severity"`
	Findings    tables.Table      `json:"findings"`
	HasFindings bool              `json:"hasFindings"`
	Problems    []string          `json:"problems,omitempty"`
}
