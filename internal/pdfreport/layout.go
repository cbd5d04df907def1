// Package pdfreport renders the compliance report through pdfcpu's JSON page layout.
package pdfreport

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Lllllllleong/ncmcompliance/internal/analysis"
	"github.com/Lllllllleong/ncmcompliance/internal/tables"
)

const (
	// MaxFindingRows is the default number of findings rows printed.
	MaxFindingRows = 20
	// MaxCellRunes is the cell length past which findings cells are cut with "...".
	MaxCellRunes = 60

	pageHeight   = 842.0
	marginX      = 50.0
	marginTop    = 60.0
	marginBottom = 60.0
	contentWidth = 495.0
	wrapRunes    = 95
)

var (
	fontTitle   = Font{Name: "Helvetica-Bold", Size: 20}
	fontHeading = Font{Name: "Helvetica-Bold", Size: 14}
	fontBody    = Font{Name: "Helvetica", Size: 10}
	fontTable   = Font{Name: "Helvetica", Size: 8}
	fontHeader  = Font{Name: "Helvetica-Bold", Size: 9}
)

// RecommendedActions are printed on every report.
var RecommendedActions = []string{
	"1. Imediato: Corrija os NCMs críticos antes de emitir novas notas fiscais.",
	"2. Curto Prazo (7 dias): Revise e corrija NCMs com problemas de alta severidade.",
	"3. Médio Prazo (30 dias): Implemente processo de validação preventiva.",
	"4. Consultoria: Entre em contato com contador para casos complexos.",
	"5. Treinamento: Capacite equipe sobre classificação fiscal de produtos pet.",
}

// Report is everything printed on the PDF.
type Report struct {
	DatasetName string
	GeneratedAt time.Time
	Metrics     analysis.Metrics
	Findings    tables.Table
	HasFindings bool
	Analysis    string
	// MaxRows overrides MaxFindingRows when positive.
	MaxRows int
}

// Layout mirrors the JSON accepted by pdfcpu's create command.
type Layout struct {
	Paper  string           `json:"paper"`
	Origin string           `json:"origin"`
	Pages  map[string]*Page `json:"pages"`
}

type Page struct {
	Content Content `json:"content"`
}

type Content struct {
	Text  []Text  `json:"text,omitempty"`
	Table []Table `json:"table,omitempty"`
}

type Font struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type Text struct {
	Value string     `json:"value"`
	Pos   [2]float64 `json:"pos"`
	Font  Font       `json:"font"`
}

// Table rows count the header row.
type Table struct {
	Pos        [2]float64   `json:"pos"`
	Width      float64      `json:"width"`
	Rows       int          `json:"rows"`
	Cols       int          `json:"cols"`
	LineHeight int          `json:"lheight"`
	Font       Font         `json:"font"`
	Header     *TableHeader `json:"header,omitempty"`
	Values     [][]string   `json:"values"`
}

type TableHeader struct {
	Values []string `json:"values"`
	BgCol  string   `json:"bgCol,omitempty"`
	Font   Font     `json:"font"`
}

// PageCount returns the number of pages in l.
func (l *Layout) PageCount() int {
	return len(l.Pages)
}

// Texts returns every text value in page order.
func (l *Layout) Texts() []string {
	var out []string
	for i := 1; i <= len(l.Pages); i++ {
		for _, t := range l.Pages[strconv.Itoa(i)].Content.Text {
			out = append(out, t.Value)
		}
	}
	return out
}

// Tables returns every table in page order.
func (l *Layout) Tables() []Table {
	var out []Table
	for i := 1; i <= len(l.Pages); i++ {
		out = append(out, l.Pages[strconv.Itoa(i)].Content.Table...)
	}
	return out
}

// builder places blocks top-down and opens a new page when one would overflow.
type builder struct {
	layout *Layout
	page   *Page
	y      float64
}

func newBuilder() *builder {
	b := &builder{layout: &Layout{Paper: "A4P", Origin: "UpperLeft", Pages: map[string]*Page{}}}
	b.newPage()
	return b
}

func (b *builder) newPage() {
	b.page = &Page{}
	b.layout.Pages[strconv.Itoa(len(b.layout.Pages)+1)] = b.page
	b.y = marginTop
}

func (b *builder) ensure(height float64) {
	if b.y+height > pageHeight-marginBottom && b.y > marginTop {
		b.newPage()
	}
}

func (b *builder) text(value string, font Font) {
	lh := float64(font.Size) * 1.4
	for _, line := range wrap(value, wrapRunes*10/font.Size) {
		b.ensure(lh)
		b.page.Content.Text = append(b.page.Content.Text, Text{Value: line, Pos: [2]float64{marginX, b.y}, Font: font})
		b.y += lh
	}
}

func (b *builder) space(h float64) {
	b.y += h
}

func (b *builder) table(t Table) {
	lh := float64(t.LineHeight)
	height := float64(t.Rows) * lh
	b.ensure(height)
	t.Pos = [2]float64{marginX, b.y}
	t.Width = contentWidth
	b.page.Content.Table = append(b.page.Content.Table, t)
	b.y += height
}

// Build lays out r across as many A4 pages as it needs.
func Build(r Report) *Layout {
	b := newBuilder()

	b.text("Relatório de Conformidade Fiscal NCM", fontTitle)
	b.text("Setor Pet - Validação de Notas Fiscais", fontHeading)
	b.space(8)
	b.text("Data de Geração: "+r.GeneratedAt.Format("02/01/2006 15:04:05"), fontBody)
	if r.DatasetName != "" {
		b.text("Arquivo: "+r.DatasetName, fontBody)
	}
	b.space(16)

	b.text("RESUMO EXECUTIVO", fontHeading)
	b.space(4)
	b.table(metricsTable(r.Metrics))
	b.space(16)

	b.text("Status: "+string(r.Metrics.Status), fontHeading)
	b.text(r.Metrics.Status.Message(), fontBody)
	b.space(16)

	b.newPage()
	b.text("DETALHAMENTO DOS PROBLEMAS", fontHeading)
	b.space(8)
	switch {
	case r.HasFindings && len(r.Findings.Columns) > 1:
		maxRows := r.MaxRows
		if maxRows <= 0 {
			maxRows = MaxFindingRows
		}
		b.table(findingsTable(r.Findings, maxRows))
		if n := r.Findings.Len(); n > maxRows {
			b.space(8)
			b.text(fmt.Sprintf("Nota: Mostrando %d de %d problemas identificados. Consulte a análise completa abaixo para todos os detalhes.", maxRows, n), fontBody)
		}
	case r.Metrics.ProblemProducts > 0:
		b.text(fmt.Sprintf("%d problema(s) identificado(s) na análise.", r.Metrics.ProblemProducts), fontBody)
		b.text("Consulte a seção 'Análise Detalhada' abaixo para descrição completa dos problemas encontrados.", fontBody)
	default:
		b.text("Nenhum problema encontrado! Todas as notas fiscais estão em conformidade.", fontBody)
	}
	b.space(16)

	b.newPage()
	b.text("AÇÕES RECOMENDADAS", fontHeading)
	for _, a := range RecommendedActions {
		b.text(a, fontBody)
	}
	b.space(16)

	if paras := Paragraphs(r.Analysis); len(paras) > 0 {
		b.text("ANÁLISE DETALHADA", fontHeading)
		b.space(4)
		for _, p := range paras {
			b.text(p, fontBody)
			b.space(4)
		}
	}

	b.space(24)
	b.text("Este relatório foi gerado automaticamente pelo Sistema de Conformidade Fiscal NCM. Consulte um profissional contábil para orientações específicas.", fontTable)
	return b.layout
}

func metricsTable(m analysis.Metrics) Table {
	values := [][]string{
		{"Total de Produtos Analisados", strconv.Itoa(m.TotalProducts)},
		{"NCMs Únicos", strconv.Itoa(m.UniqueCodes)},
		{"Produtos com Problemas", strconv.Itoa(m.ProblemProducts)},
		{"Produtos em Conformidade", strconv.Itoa(m.CompliantProducts)},
		{"Percentual de Conformidade", fmt.Sprintf("%.1f%%", m.ConformityPercent)},
	}
	return Table{
		Rows:       len(values) + 1,
		Cols:       2,
		LineHeight: 18,
		Font:       fontBody,
		Header:     &TableHeader{Values: []string{"Métrica", "Valor"}, BgCol: "#4CAF50", Font: fontHeader},
		Values:     values,
	}
}

func findingsTable(t tables.Table, maxRows int) Table {
	rows := t.Rows
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	values := make([][]string, len(rows))
	for i, row := range rows {
		values[i] = make([]string, len(row))
		for j, cell := range row {
			values[i][j] = Truncate(cell, MaxCellRunes)
		}
	}
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = Truncate(c, MaxCellRunes)
	}
	return Table{
		Rows:       len(values) + 1,
		Cols:       len(header),
		LineHeight: 16,
		Font:       fontTable,
		Header:     &TableHeader{Values: header, BgCol: "#f44336", Font: fontHeader},
		Values:     values,
	}
}

// Truncate cuts s to max runes, ending in "..." when cut.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}

// Paragraphs splits analysis text on blank lines with table pipes and code fences removed.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.ReplaceAll(para, "```", "")
		para = strings.ReplaceAll(para, "|", " ")
		para = strings.Join(strings.Fields(para), " ")
		if para != "" {
			out = append(out, para)
		}
	}
	return out
}

func wrap(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	var cur strings.Builder
	n := 0
	for _, w := range words {
		wl := utf8.RuneCountInString(w)
		if n > 0 && n+1+wl > width {
			lines = append(lines, cur.String())
			cur.Reset()
			n = 0
		}
		if n > 0 {
			cur.WriteByte(' ')
			n++
		}
		cur.WriteString(w)
		n += wl
	}
	return append(lines, cur.String())
}
