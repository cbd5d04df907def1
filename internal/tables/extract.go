// Package tables recovers a pipe-delimited table from free-form LLM output.
//
// The upstream model is asked, not guaranteed, to answer with a markdown table, so the
// extractor is deliberately tolerant: it never fails, it pads or truncates ragged rows,
// and it reports "no table" instead of an empty one.
package tables

import (
	"strings"
	"unicode"
)

// Separator is the column separator of a markdown table.
const Separator = "|"

// HeaderKeywords mark a line as the header row of a findings table. Matching is a
// case-insensitive substring test.
var HeaderKeywords = []string{
	"ncm", "código", "codigo", "code",
	"produto", "product",
	"problema", "issue",
	"severidade", "severity",
}

// Table is a parsed table. Every row has exactly len(Columns) cells.
type Table struct {
	Columns []string   `json:"columns" yaml:"columns"`
	Rows    [][]string `json:"rows" yaml:"rows"`
}

// Extract finds the first findings table in text. The boolean is false when no header is
// found or the header is followed by no data rows.
func Extract(text string) (Table, bool) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	headerAt := -1
	for i, line := range lines {
		if isHeader(line) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return Table{}, false
	}

	columns := splitRow(lines[headerAt])
	var rows [][]string

	i := headerAt + 1
	// The markdown alignment row sits directly under the header.
	for i < len(lines) && isDecoration(lines[i]) && strings.Contains(lines[i], Separator) {
		i++
	}
	for ; i < len(lines); i++ {
		line := lines[i]
		if !strings.Contains(line, Separator) || isDecoration(line) {
			break
		}
		rows = append(rows, reconcile(splitRow(line), len(columns)))
	}

	if len(rows) == 0 {
		return Table{}, false
	}
	return Table{Columns: columns, Rows: rows}, true
}

// Column returns the index of the first column whose name contains any of keywords,
// case-insensitively, or -1.
func (t Table) Column(keywords ...string) int {
	for i, c := range t.Columns {
		lc := strings.ToLower(c)
		for _, k := range keywords {
			if strings.Contains(lc, strings.ToLower(k)) {
				return i
			}
		}
	}
	return -1
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

func isHeader(line string) bool {
	if !strings.Contains(line, Separator) || isDecoration(line) {
		return false
	}
	lower := strings.ToLower(line)
	for _, k := range HeaderKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// isDecoration reports whether line holds only separator, dash, colon and whitespace
// characters. Blank lines count as decoration.
func isDecoration(line string) bool {
	for _, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		switch r {
		case '|', '-', ':':
		default:
			return false
		}
	}
	return true
}

func splitRow(line string) []string {
	fields := strings.Split(line, Separator)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if len(fields) > 0 && fields[0] == "" {
		fields = fields[1:]
	}
	if len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

func reconcile(fields []string, width int) []string {
	if len(fields) >= width {
		return fields[:width:width]
	}
	row := make([]string, width)
	copy(row, fields)
	return row
}
