// Package mail renders the compliance summary as HTML and delivers it over SMTP.
package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/Lllllllleong/ncmcompliance/internal/analysis"
	"github.com/Lllllllleong/ncmcompliance/internal/tables"
)

// Summary is the content of the report email.
type Summary struct {
	DatasetName string
	GeneratedAt time.Time
	Metrics     analysis.Metrics
	Severity    analysis.Severity
	Findings    tables.Table
	HasFindings bool
	// Problems is shown as a list when there is no findings table.
	Problems []string
}

// ConformityColor is green from 80% up, red below.
func (s Summary) ConformityColor() string {
	if s.Metrics.ConformityPercent >= 80 {
		return "#4CAF50"
	}
	return "#f44336"
}

// ProblemsColor follows the worst severity in the analysis.
func (s Summary) ProblemsColor() string {
	if s.Severity == analysis.SeverityHigh {
		return "#f44336"
	}
	return "#ffc107"
}

var actions = []string{
	"Revise os NCMs com problemas identificados",
	"Corrija as notas fiscais antes de emitir novas",
	"Consulte a tabela de referência para NCMs corretos",
	"Entre em contato com seu contador se necessário",
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"percent": func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"date":    func(t time.Time) string { return t.Format("02/01/2006 15:04") },
	"actions": func() []string { return actions },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.header { background-color: #4CAF50; color: white; padding: 20px; text-align: center; }
.content { padding: 20px; }
.metric { text-align: center; padding: 15px; margin-bottom: 10px; background-color: #f5f5f5; border-radius: 5px; }
.metric-value { font-size: 24px; font-weight: bold; }
.metric-label { font-size: 14px; color: #666; }
.problems { margin-top: 20px; padding: 15px; background-color: #fff3cd; }
.footer { margin-top: 30px; padding: 15px; background-color: #f5f5f5; text-align: center; font-size: 12px; color: #666; }
table { width: 100%; border-collapse: collapse; margin-top: 15px; }
th, td { padding: 10px; text-align: left; border-bottom: 1px solid #ddd; }
th { background-color: #4CAF50; color: white; }
</style>
</head>
<body>
<div class="header"><h1>Relatório de Conformidade NCM - Setor Pet</h1></div>
<div class="content">
<h2>Resumo da Validação</h2>
{{- if .DatasetName}}
<p>Arquivo: {{.DatasetName}}</p>
{{- end}}
<div class="metric"><div class="metric-label">Total de Produtos</div><div class="metric-value">{{.Metrics.TotalProducts}}</div></div>
<div class="metric"><div class="metric-label">Produtos com Problemas</div><div class="metric-value" style="color: #f44336;">{{.Metrics.ProblemProducts}}</div></div>
<div class="metric"><div class="metric-label">Conformidade</div><div class="metric-value" style="color: {{.ConformityColor}};">{{percent .Metrics.ConformityPercent}}</div></div>
<p><strong>Status:</strong> {{.Metrics.Status}}</p>
{{- if gt .Metrics.ProblemProducts 0}}
<div class="problems" style="border-left: 4px solid {{.ProblemsColor}};">
<h3>Problemas Encontrados</h3>
{{- if .HasFindings}}
<table>
<tr>{{range .Findings.Columns}}<th>{{.}}</th>{{end}}</tr>
{{- range .Findings.Rows}}
<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{- end}}
</table>
{{- else if .Problems}}
<ul>
{{- range .Problems}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- else}}
<p>{{.Metrics.ProblemProducts}} problema(s) identificado(s). Consulte o relatório em anexo.</p>
{{- end}}
</div>
{{- else}}
<p style="color: #4CAF50; font-weight: bold;">Nenhum problema encontrado! Todas as notas fiscais estão em conformidade.</p>
{{- end}}
<p style="margin-top: 20px;"><strong>Ações Recomendadas:</strong></p>
<ul>
{{- range actions}}
<li>{{.}}</li>
{{- end}}
</ul>
</div>
<div class="footer">
<p>Relatório gerado automaticamente pelo Sistema de Conformidade Fiscal NCM</p>
<p>Data: {{date .GeneratedAt}}</p>
</div>
</body>
</html>
`))

// RenderHTML renders the email body for s.
func RenderHTML(s Summary) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("failed to render email template: %w", err)
	}
	return buf.String(), nil
}
