package analysis

import (
	"strings"

	"github.com/Lllllllleong/ncmcompliance/internal/tables"
)

// Status is the conformity band shown on reports.
type Status string

const (
	StatusExcellent Status = "EXCELENTE"
	StatusGood      Status = "BOM"
	StatusAttention Status = "REQUER ATENÇÃO"
)

// ProblemSource records where the problem count came from.
type ProblemSource string

const (
	SourceTable     ProblemSource = "table"
	SourceValidator ProblemSource = "validator"
	SourceKeywords  ProblemSource = "keywords"
)

// Metrics are the headline numbers of a compliance report.
type Metrics struct {
	TotalProducts     int           `json:"totalProducts" firestore:"totalProducts" yaml:"totalProducts"`
	UniqueCodes       int           `json:"uniqueCodes" firestore:"uniqueCodes" yaml:"uniqueCodes"`
	ProblemProducts   int           `json:"problemProducts" firestore:"problemProducts" yaml:"problemProducts"`
	CompliantProducts int           `json:"compliantProducts" firestore:"compliantProducts" yaml:"compliantProducts"`
	ConformityPercent float64       `json:"conformityPercent" firestore:"conformityPercent" yaml:"conformityPercent"`
	Status            Status        `json:"status" firestore:"status" yaml:"status"`
	ProblemSource     ProblemSource `json:"problemSource" firestore:"problemSource" yaml:"problemSource"`
}

// ComputeMetrics derives report metrics. The problem count comes from the extracted
// findings table when there is one, otherwise from the validator; keyword counting over
// the analysis text is used only when the dataset had no code column to validate.
func ComputeMetrics(s Summary, table tables.Table, hasTable bool, analysisText string) Metrics {
	m := Metrics{
		TotalProducts: s.TotalRows,
		UniqueCodes:   s.UniqueCodes,
	}
	switch {
	case hasTable:
		m.ProblemProducts = table.Len()
		m.ProblemSource = SourceTable
	case s.CodeColumn != "":
		m.ProblemProducts = s.InvalidRows
		m.ProblemSource = SourceValidator
	default:
		m.ProblemProducts = EstimateProblemsFromText(analysisText)
		m.ProblemSource = SourceKeywords
	}
	if m.ProblemProducts > m.TotalProducts {
		m.ProblemProducts = m.TotalProducts
	}
	m.CompliantProducts = m.TotalProducts - m.ProblemProducts
	if m.TotalProducts > 0 {
		m.ConformityPercent = float64(m.CompliantProducts) / float64(m.TotalProducts) * 100
	}
	m.Status = StatusFor(m.ConformityPercent)
	return m
}

// StatusFor maps a conformity percentage to its band.
func StatusFor(percent float64) Status {
	switch {
	case percent >= 95:
		return StatusExcellent
	case percent >= 80:
		return StatusGood
	default:
		return StatusAttention
	}
}

// Message is the one-line explanation printed under the status.
func (s Status) Message() string {
	switch s {
	case StatusExcellent:
		return "As notas fiscais estão em excelente conformidade."
	case StatusGood:
		return "Algumas correções menores são necessárias."
	default:
		return "Múltiplos problemas foram identificados e requerem correção imediata."
	}
}

// Severity is the worst severity mentioned in a free-text analysis.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityHigh
)

var (
	highSeverityWords = []string{"CRÍTICA", "ALTA"}
	lowSeverityWords  = []string{"MÉDIA", "BAIXA"}
)

// DetectSeverity scans text for the uppercase severity labels the analyst prompt asks for.
func DetectSeverity(text string) Severity {
	for _, w := range highSeverityWords {
		if strings.Contains(text, w) {
			return SeverityHigh
		}
	}
	for _, w := range lowSeverityWords {
		if strings.Contains(text, w) {
			return SeverityLow
		}
	}
	return SeverityNone
}

// EstimateProblemsFromText counts severity labels in text.
//
// Deprecated: labels repeated in prose are double counted. Use the findings table or the
// validator; this remains only for datasets without a code column.
func EstimateProblemsFromText(text string) int {
	n := 0
	for _, w := range append(append([]string(nil), highSeverityWords...), lowSeverityWords...) {
		n += strings.Count(text, w)
	}
	return n
}
