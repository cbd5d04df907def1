package analysis

import (
	"errors"
	"sort"

	"github.com/Lllllllleong/ncmcompliance/internal/dataset"
	"github.com/Lllllllleong/ncmcompliance/internal/ncm"
)

// ErrNoCodeColumn is returned when no column name mentions NCM.
var ErrNoCodeColumn = errors.New("no NCM column found in dataset")

// CodeFinding is the validation outcome for one distinct normalized code.
type CodeFinding struct {
	Code               string               `json:"code" firestore:"code"`
	Count              int                  `json:"count" firestore:"count"`
	ExampleDescription string               `json:"exampleDescription,omitempty" firestore:"exampleDescription,omitempty"`
	Result             ncm.ValidationResult `json:"result" firestore:"result"`
}

// Summary aggregates a dataset's codes. Findings are ordered by count, then code.
type Summary struct {
	DatasetName       string        `json:"datasetName"`
	Columns           []string      `json:"columns"`
	CodeColumn        string        `json:"codeColumn"`
	DescriptionColumn string        `json:"descriptionColumn,omitempty"`
	TotalRows         int           `json:"totalRows"`
	UniqueCodes       int           `json:"uniqueCodes"`
	WellFormedRows    int           `json:"wellFormedRows"`
	InvalidRows       int           `json:"invalidRows"`
	Findings          []CodeFinding `json:"findings"`
}

// Summarize validates each distinct code of ds once against ref.
func Summarize(ds *dataset.Dataset, ref *ncm.Reference) (Summary, error) {
	codeCol, ok := ds.CodeColumn()
	if !ok {
		return Summary{DatasetName: ds.Name, Columns: ds.Columns, TotalRows: len(ds.Rows)}, ErrNoCodeColumn
	}
	descCol, _ := ds.DescriptionColumn()

	s := Summary{
		DatasetName:       ds.Name,
		Columns:           ds.Columns,
		CodeColumn:        codeCol,
		DescriptionColumn: descCol,
		TotalRows:         len(ds.Rows),
	}

	counts := make(map[string]int)
	for _, row := range ds.Rows {
		counts[ncm.Normalize(row[codeCol])]++
	}

	examples := ncm.UniqueCodes(ds.Rows, codeCol)
	for code, row := range examples {
		res := ncm.Validate(row[codeCol], ref)
		f := CodeFinding{
			Code:   code,
			Count:  counts[code],
			Result: res,
		}
		if descCol != "" {
			f.ExampleDescription = row[descCol]
		}
		if res.Failure != ncm.FailureInvalidFormat {
			s.WellFormedRows += f.Count
		}
		if !res.IsValid {
			s.InvalidRows += f.Count
		}
		s.Findings = append(s.Findings, f)
	}
	// Blank code cells never reach UniqueCodes but are still problem rows.
	if blank := counts[""]; blank > 0 {
		s.InvalidRows += blank
	}

	sort.Slice(s.Findings, func(i, j int) bool {
		if s.Findings[i].Count != s.Findings[j].Count {
			return s.Findings[i].Count > s.Findings[j].Count
		}
		return s.Findings[i].Code < s.Findings[j].Code
	})
	s.UniqueCodes = len(s.Findings)
	return s, nil
}

// Known returns findings present in the reference table.
func (s Summary) Known() []CodeFinding {
	return s.filter(func(f CodeFinding) bool { return f.Result.IsValid })
}

// Unknown returns findings that need manual review.
func (s Summary) Unknown() []CodeFinding {
	return s.filter(func(f CodeFinding) bool { return !f.Result.IsValid })
}

// WellFormedPercent is the share of rows whose code has eight digits.
func (s Summary) WellFormedPercent() float64 {
	if s.TotalRows == 0 {
		return 0
	}
	return float64(s.WellFormedRows) / float64(s.TotalRows) * 100
}

func (s Summary) filter(keep func(CodeFinding) bool) []CodeFinding {
	var out []CodeFinding
	for _, f := range s.Findings {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}
