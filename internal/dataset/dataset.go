// Package dataset turns an uploaded invoice export into rows keyed by column name.
package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
)

var (
	ErrEmptyArchive     = errors.New("zip archive is empty")
	ErrNoCSV            = errors.New("no CSV file found in zip archive")
	ErrUndetectedFormat = errors.New("could not determine CSV delimiter")
)

// Delimiters are tried in order; the first one producing more than one column wins.
var Delimiters = []rune{',', ';', '\t', '|'}

// Row is one invoice line keyed by column name.
type Row map[string]string

// Dataset is a parsed invoice table.
type Dataset struct {
	Name      string   `json:"name"`
	Encoding  string   `json:"encoding"`
	Delimiter string   `json:"delimiter"`
	Columns   []string `json:"columns"`
	Rows      []Row    `json:"rows"`
}

// FromZip reads the first CSV entry of a zip archive.
func FromZip(r io.ReaderAt, size int64) (*Dataset, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip archive: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, ErrEmptyArchive
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(path.Ext(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		ds, err := FromCSV(f.Name, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		return ds, nil
	}
	return nil, ErrNoCSV
}

// FromCSV decodes raw to UTF-8 and parses it with the first delimiter that yields a
// multi-column table.
func FromCSV(name string, raw []byte) (*Dataset, error) {
	text, enc, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	logCtx := slog.With("file", name, "encoding", enc)

	for _, delim := range Delimiters {
		header, rows, err := parse(text, delim)
		if err != nil || len(header) <= 1 {
			continue
		}
		logCtx.Info("Parsed CSV.", "delimiter", string(delim), "rows", len(rows), "columns", len(header))
		return &Dataset{
			Name:      name,
			Encoding:  enc,
			Delimiter: string(delim),
			Columns:   header,
			Rows:      rows,
		}, nil
	}
	return nil, ErrUndetectedFormat
}

func parse(text string, delim rune) ([]string, []Row, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, nil, err
		}
		// Lines with more fields than the header are skipped; short lines keep
		// their cells and the missing trailing columns are left empty.
		if len(record) > len(header) {
			continue
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

// FindColumn returns the first column whose lowercase name contains any keyword.
func (d *Dataset) FindColumn(keywords ...string) (string, bool) {
	for _, col := range d.Columns {
		lc := strings.ToLower(col)
		for _, k := range keywords {
			if strings.Contains(lc, k) {
				return col, true
			}
		}
	}
	return "", false
}

// CodeColumn finds the NCM column.
func (d *Dataset) CodeColumn() (string, bool) {
	return d.FindColumn("ncm")
}

// DescriptionColumn finds the product description column.
func (d *Dataset) DescriptionColumn() (string, bool) {
	return d.FindColumn("descri", "produto", "desc")
}

// ValueColumn finds the monetary value column.
func (d *Dataset) ValueColumn() (string, bool) {
	return d.FindColumn("valor", "total")
}

// Head returns at most n rows.
func (d *Dataset) Head(n int) []Row {
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	return d.Rows[:n]
}

// ToCSV writes the dataset back out as comma-separated UTF-8.
func (d *Dataset) ToCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(d.Columns); err != nil {
		return nil, err
	}
	record := make([]string, len(d.Columns))
	for _, row := range d.Rows {
		for i, col := range d.Columns {
			record[i] = row[col]
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
