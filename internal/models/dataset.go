package models

import (
	"time"

	"github.com/Lllllllleong/ncmcompliance/internal/analysis"
)

// Dataset lifecycle states stored in DatasetRecord.Status.
const (
	StatusIngesting = "INGESTING"
	StatusIngested  = "INGESTED"
	StatusValidated = "VALIDATED"
	StatusReported  = "REPORTED"
	StatusFailed    = "FAILED"
)

// DatasetRecord is the Firestore document tracking one uploaded invoice export
// through the pipeline.
type DatasetRecord struct {
	ID                  string            `firestore:"-" json:"id"`
	FileHash            string            `firestore:"fileHash,omitempty" json:"fileHash,omitempty"`
	OriginalFilename    string            `firestore:"originalFilename,omitempty" json:"originalFilename,omitempty"`
	SourceURI           string            `firestore:"sourceUri,omitempty" json:"sourceUri,omitempty"`
	Status              string            `firestore:"status,omitempty" json:"status,omitempty"`
	ErrorDetails        string            `firestore:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	CSVName             string            `firestore:"csvName,omitempty" json:"csvName,omitempty"`
	Encoding            string            `firestore:"encoding,omitempty" json:"encoding,omitempty"`
	Delimiter           string            `firestore:"delimiter,omitempty" json:"delimiter,omitempty"`
	RowCount            int               `firestore:"rowCount,omitempty" json:"rowCount,omitempty"`
	ColumnCount         int               `firestore:"columnCount,omitempty" json:"columnCount,omitempty"`
	CodeColumn          string            `firestore:"codeColumn,omitempty" json:"codeColumn,omitempty"`
	UniqueCodes         int               `firestore:"uniqueCodes,omitempty" json:"uniqueCodes,omitempty"`
	InvalidRows         int               `firestore:"invalidRows,omitempty" json:"invalidRows,omitempty"`
	Metrics             *analysis.Metrics `firestore:"metrics,omitempty" json:"metrics,omitempty"`
	WorkflowExecutionID string            `firestore:"workflowExecutionId,omitempty" json:"workflowExecutionId,omitempty"`
	MailedTo            []string          `firestore:"mailedTo,omitempty" json:"mailedTo,omitempty"`
	CreatedAt           time.Time         `firestore:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt           time.Time         `firestore:"updatedAt,omitempty" json:"updatedAt"`
}

// Object names inside the datasets and reports buckets.
func DatasetObject(id string) string    { return id + "/dataset.json" }
func ValidationObject(id string) string { return id + "/validation.json" }
func AnalysisObject(id string) string   { return id + "/analysis.md" }
func ReportPDFObject(id string) string  { return id + "/report.pdf" }
func ReportJSONObject(id string) string { return id + "/report.json" }
