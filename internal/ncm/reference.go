package ncm

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ReferenceEntry is one known-good code for the target sector.
type ReferenceEntry struct {
	Code               string `json:"code" yaml:"code"`
	DisplayForm        string `json:"displayForm" yaml:"displayForm"`
	Category           string `json:"category" yaml:"category"`
	ExampleDescription string `json:"exampleDescription" yaml:"exampleDescription"`
	Notes              string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Reference maps normalized codes to their entries. It is built once and must not be
// mutated afterwards, so a single value can be shared by every request.
type Reference struct {
	entries    map[string]ReferenceEntry
	order      []string
	categories []string
}

// ErrMissingCodeColumn is returned when a reference table has no code column.
var ErrMissingCodeColumn = errors.New("reference table has no NCM code column")

// NewReference builds a Reference from entries. Entries whose display form does not
// normalize to a well-formed code are skipped; the first entry for a code wins.
func NewReference(entries []ReferenceEntry) *Reference {
	ref := &Reference{entries: make(map[string]ReferenceEntry, len(entries))}
	seenCategory := make(map[string]bool)
	for _, e := range entries {
		code := Normalize(e.Code)
		if code == "" {
			code = Normalize(e.DisplayForm)
		}
		if !IsWellFormed(code) {
			continue
		}
		if _, dup := ref.entries[code]; dup {
			continue
		}
		e.Code = code
		if e.DisplayForm == "" {
			e.DisplayForm = code
		}
		ref.entries[code] = e
		ref.order = append(ref.order, code)
		if !seenCategory[e.Category] {
			seenCategory[e.Category] = true
			ref.categories = append(ref.categories, e.Category)
		}
	}
	return ref
}

// LoadReference reads a CSV reference table. The header must contain a code column
// ("Código NCM" or anything containing "ncm"); category, example description and notes
// columns are optional.
func LoadReference(r io.Reader) (*Reference, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read reference header: %w", err)
	}
	cols := mapReferenceColumns(header)
	if cols.code < 0 {
		return nil, ErrMissingCodeColumn
	}

	var entries []ReferenceEntry
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read reference row: %w", err)
		}
		entries = append(entries, ReferenceEntry{
			Code:               field(record, cols.code),
			DisplayForm:        field(record, cols.code),
			Category:           field(record, cols.category),
			ExampleDescription: field(record, cols.description),
			Notes:              field(record, cols.notes),
		})
	}
	return NewReference(entries), nil
}

// Lookup returns the entry for an already normalized code. A nil Reference finds nothing.
func (r *Reference) Lookup(normalized string) (ReferenceEntry, bool) {
	if r == nil {
		return ReferenceEntry{}, false
	}
	e, ok := r.entries[normalized]
	return e, ok
}

// Len returns the number of entries.
func (r *Reference) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Entries returns every entry in load order.
func (r *Reference) Entries() []ReferenceEntry {
	if r == nil {
		return nil
	}
	out := make([]ReferenceEntry, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.entries[code])
	}
	return out
}

// Categories returns the distinct categories in first-seen order.
func (r *Reference) Categories() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.categories...)
}

// ByCategory returns the entries of one category, compared case-insensitively.
func (r *Reference) ByCategory(category string) []ReferenceEntry {
	var out []ReferenceEntry
	for _, e := range r.Entries() {
		if strings.EqualFold(e.Category, category) {
			out = append(out, e)
		}
	}
	return out
}

// SearchByDescription returns entries whose description or category contains keyword.
func (r *Reference) SearchByDescription(keyword string) []ReferenceEntry {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return nil
	}
	var out []ReferenceEntry
	for _, e := range r.Entries() {
		if strings.Contains(strings.ToLower(e.ExampleDescription), needle) ||
			strings.Contains(strings.ToLower(e.Category), needle) {
			out = append(out, e)
		}
	}
	return out
}

// PromptText renders the table grouped by category for inclusion in an LLM prompt.
func (r *Reference) PromptText() string {
	if r.Len() == 0 {
		return "Tabela de referência não carregada"
	}
	var b strings.Builder
	b.WriteString("=== TABELA DE REFERÊNCIA DE NCMs VÁLIDOS PARA O SETOR ===\n\n")
	for _, cat := range r.categories {
		b.WriteString(strings.ToUpper(cat))
		b.WriteString(":\n")
		for _, e := range r.ByCategory(cat) {
			fmt.Fprintf(&b, "  - %s (%s): %s\n", e.Code, e.DisplayForm, truncateRunes(e.ExampleDescription, 60))
		}
		b.WriteString("\n")
	}
	return b.String()
}

type referenceColumns struct {
	code, category, description, notes int
}

func mapReferenceColumns(header []string) referenceColumns {
	cols := referenceColumns{code: -1, category: -1, description: -1, notes: -1}
	for i, h := range header {
		key := foldHeader(h)
		switch {
		case cols.code < 0 && (strings.Contains(key, "ncm") || key == "codigo"):
			cols.code = i
		case cols.category < 0 && strings.Contains(key, "categoria"):
			cols.category = i
		case cols.description < 0 && (strings.Contains(key, "descricao") || strings.Contains(key, "produto")):
			cols.description = i
		case cols.notes < 0 && strings.Contains(key, "observa"):
			cols.notes = i
		}
	}
	return cols
}

// foldHeader lowercases s and strips diacritics so "Código NCM" matches "codigo ncm".
func foldHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(folded, "\ufeff")))
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	v := strings.TrimSpace(record[i])
	if v == "N/A" {
		return ""
	}
	return v
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
