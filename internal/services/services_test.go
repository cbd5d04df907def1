package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/ncmcompliance/internal/analysis"
	"github.com/Lllllllleong/ncmcompliance/internal/dataset"
	"github.com/Lllllllleong/ncmcompliance/internal/llm"
	"github.com/Lllllllleong/ncmcompliance/internal/mail"
	"github.com/Lllllllleong/ncmcompliance/internal/models"
	"github.com/Lllllllleong/ncmcompliance/internal/ncm"
)

const analystAnswer = "```markdown\n" +
	"Foram encontrados problemas de severidade ALTA.\n\n" +
	"| NCM | Produto | Problema | Severidade |\n" +
	"|---|---|---|---|\n" +
	"| 9503.00.10 | Brinquedo mordedor | Brinquedo infantil, usar 3926.90.90 | ALTA |\n" +
	"| 6802.93.90 | Areia granulada | Usar 2505.10.00 | MÉDIA |\n" +
	"\nRevise os cadastros.\n```"

type pipeline struct {
	blobs     *memBlobs
	records   *memRecords
	workflows *fakeWorkflows
	llm       *fakeLLM
	sender    *fakeSender
}

func newPipeline() *pipeline {
	return &pipeline{
		blobs:     newMemBlobs(),
		records:   newMemRecords(),
		workflows: &fakeWorkflows{},
		llm:       &fakeLLM{answer: analystAnswer},
		sender:    &fakeSender{},
	}
}

func (p *pipeline) ingest(t *testing.T, name, csvText string) string {
	t.Helper()
	p.blobs.put("uploads", name, zipBytes(t, map[string]string{"notas.csv": csvText}))
	f := NewIngesterFunction(p.blobs, p.records, p.workflows, testConfig())
	require.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: name}))
	require.NotEmpty(t, p.workflows.payloads)
	return p.workflows.payloads[len(p.workflows.payloads)-1].(models.WorkflowArgument).DatasetID
}

func TestIngesterStoresDatasetAndStartsWorkflow(t *testing.T) {
	p := newPipeline()
	id := p.ingest(t, "entrada/notas.zip", invoiceCSV)

	assert.Equal(t, models.StatusIngested, p.records.status(id))
	assert.Equal(t, "executions/1", p.records.field(id, "workflowExecutionId"))
	assert.Equal(t, 5, p.records.field(id, "rowCount"))
	assert.Equal(t, "NCM", p.records.field(id, "codeColumn"))
	assert.Equal(t, models.WorkflowArgument{DatasetID: id, RowCount: 5}, p.workflows.payloads[0])

	rec, err := p.records.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "notas.zip", rec.OriginalFilename)
	assert.Equal(t, "gs://uploads/entrada/notas.zip", rec.SourceURI)
	assert.Len(t, rec.FileHash, 64)

	raw, ok := p.blobs.get("datasets", models.DatasetObject(id))
	require.True(t, ok)
	var ds dataset.Dataset
	require.NoError(t, json.Unmarshal(raw, &ds))
	assert.Equal(t, ";", ds.Delimiter)
	assert.Len(t, ds.Rows, 5)
}

func TestIngesterSkipsDuplicatesAndNonZip(t *testing.T) {
	p := newPipeline()
	p.ingest(t, "notas.zip", invoiceCSV)

	f := NewIngesterFunction(p.blobs, p.records, p.workflows, testConfig())
	require.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "notas.zip"}))
	assert.Len(t, p.workflows.payloads, 1)

	p.blobs.put("uploads", "leiame.txt", []byte("hello"))
	require.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "leiame.txt"}))
	assert.Len(t, p.workflows.payloads, 1)
	assert.Len(t, p.records.records, 1)
}

func TestIngesterTakesOverStaleIngest(t *testing.T) {
	cases := map[string]struct {
		lastUpdate time.Duration
		status     string
		resumed    bool
	}{
		"stale ingesting":  {lastUpdate: -time.Hour, status: models.StatusIngesting, resumed: true},
		"recent ingesting": {lastUpdate: -time.Minute, status: models.StatusIngesting},
		"old but ingested": {lastUpdate: -time.Hour, status: models.StatusIngested},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := newPipeline()
			upload := zipBytes(t, map[string]string{"notas.csv": invoiceCSV})
			p.blobs.put("uploads", "notas.zip", upload)
			sum := sha256.Sum256(upload)
			p.records.seed("ds-old", models.DatasetRecord{
				FileHash:  hex.EncodeToString(sum[:]),
				Status:    tc.status,
				UpdatedAt: time.Now().Add(tc.lastUpdate),
			})

			f := NewIngesterFunction(p.blobs, p.records, p.workflows, testConfig())
			require.NoError(t, f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "notas.zip"}))
			assert.Len(t, p.records.records, 1)

			if !tc.resumed {
				assert.Empty(t, p.workflows.payloads)
				assert.Equal(t, tc.status, p.records.status("ds-old"))
				return
			}
			assert.Equal(t, models.StatusIngested, p.records.status("ds-old"))
			assert.Equal(t, []any{models.WorkflowArgument{DatasetID: "ds-old", RowCount: 5}}, p.workflows.payloads)
			_, ok := p.blobs.get("datasets", models.DatasetObject("ds-old"))
			assert.True(t, ok)
		})
	}
}

func TestStaleIngest(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	rec := &models.DatasetRecord{Status: models.StatusIngesting, CreatedAt: now.Add(-20 * time.Minute)}
	assert.True(t, staleIngest(rec, now, 15*time.Minute))
	assert.False(t, staleIngest(rec, now, 0))

	rec.UpdatedAt = now.Add(-5 * time.Minute)
	assert.False(t, staleIngest(rec, now, 15*time.Minute))

	rec.Status = models.StatusFailed
	rec.UpdatedAt = time.Time{}
	assert.False(t, staleIngest(rec, now, 15*time.Minute))
}

func TestIngesterMarksFailedOnBadArchive(t *testing.T) {
	p := newPipeline()
	p.blobs.put("uploads", "vazio.zip", zipBytes(t, map[string]string{"leiame.txt": "sem csv"}))

	f := NewIngesterFunction(p.blobs, p.records, p.workflows, testConfig())
	err := f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "vazio.zip"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrNoCSV)

	assert.Equal(t, models.StatusFailed, p.records.status("ds-1"))
	assert.Contains(t, p.records.field("ds-1", "errorDetails"), "failed to parse upload")
	assert.Empty(t, p.workflows.payloads)

	// A failed upload may be retried with the same file.
	_, dup, err := p.records.FindByHash(context.Background(), p.records.records["ds-1"].FileHash)
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestIngesterWorkflowFailure(t *testing.T) {
	p := newPipeline()
	p.workflows.err = errors.New("permission denied")
	p.blobs.put("uploads", "notas.zip", zipBytes(t, map[string]string{"notas.csv": invoiceCSV}))

	f := NewIngesterFunction(p.blobs, p.records, p.workflows, testConfig())
	err := f.Process(context.Background(), GCSEvent{Bucket: "uploads", Name: "notas.zip"})
	require.Error(t, err)
	assert.Equal(t, models.StatusFailed, p.records.status("ds-1"))
}

func TestValidatorSummarizesDataset(t *testing.T) {
	p := newPipeline()
	id := p.ingest(t, "notas.zip", invoiceCSV)

	v := NewValidatorFunction(p.blobs, p.records, ncm.DefaultReference(), testConfig())
	resp, err := v.Process(context.Background(), &models.ValidateRequest{DatasetID: id, ExecutionID: "exec-1"})
	require.NoError(t, err)

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "NCM", resp.CodeColumn)
	assert.Equal(t, 4, resp.UniqueCodes)
	assert.Equal(t, 3, resp.InvalidRows)
	assert.Equal(t, "gs://datasets/"+id+"/validation.json", resp.ValidationGCSUri)
	assert.Equal(t, models.StatusValidated, p.records.status(id))

	summary, err := loadSummary(context.Background(), p.blobs, "datasets", id)
	require.NoError(t, err)
	require.NotEmpty(t, summary.Findings)
	assert.Equal(t, "23099010", summary.Findings[0].Code)
	assert.Equal(t, 2, summary.Findings[0].Count)
	assert.True(t, summary.Findings[0].Result.IsValid)
	assert.Len(t, summary.Unknown(), 3)
}

func TestValidatorWithoutCodeColumn(t *testing.T) {
	p := newPipeline()
	id := p.ingest(t, "notas.zip", "Produto;Valor\nRação;10,00\nCama;20,00\n")

	v := NewValidatorFunction(p.blobs, p.records, ncm.DefaultReference(), testConfig())
	resp, err := v.Process(context.Background(), &models.ValidateRequest{DatasetID: id})
	require.NoError(t, err)
	assert.Empty(t, resp.CodeColumn)
	assert.Zero(t, resp.UniqueCodes)
	assert.Equal(t, models.StatusValidated, p.records.status(id))
}

func TestValidatorMissingDataset(t *testing.T) {
	p := newPipeline()
	p.records.seed("ds-9", models.DatasetRecord{Status: models.StatusIngested})

	v := NewValidatorFunction(p.blobs, p.records, ncm.DefaultReference(), testConfig())
	_, err := v.Process(context.Background(), &models.ValidateRequest{DatasetID: "ds-9"})
	require.Error(t, err)
	assert.Equal(t, models.StatusFailed, p.records.status("ds-9"))
}

func validated(t *testing.T, p *pipeline) string {
	t.Helper()
	id := p.ingest(t, "notas.zip", invoiceCSV)
	v := NewValidatorFunction(p.blobs, p.records, ncm.DefaultReference(), testConfig())
	_, err := v.Process(context.Background(), &models.ValidateRequest{DatasetID: id})
	require.NoError(t, err)
	return id
}

func TestAnalystPersistsAnalysis(t *testing.T) {
	p := newPipeline()
	id := validated(t, p)

	a := NewAnalystFunction(p.blobs, p.records, p.llm, testConfig())
	resp, err := a.Process(context.Background(), &models.AnalystRequest{DatasetID: id, Persist: true})
	require.NoError(t, err)

	assert.False(t, strings.HasPrefix(resp.Answer, "```"))
	assert.Equal(t, analysis.SeverityHigh, resp.Severity)
	assert.Equal(t, "gs://datasets/"+id+"/analysis.md", resp.AnalysisGCSUri)
	require.Len(t, resp.History, 2)
	assert.Equal(t, llm.ValidationQuery(), resp.History[0].Content)
	assert.Equal(t, resp.Answer, resp.History[1].Content)

	require.Len(t, p.llm.prompts, 1)
	assert.Contains(t, p.llm.prompts[0], "DADOS:")
	assert.Contains(t, p.llm.prompts[0], "95030010")

	stored, ok := p.blobs.get("datasets", models.AnalysisObject(id))
	require.True(t, ok)
	assert.Equal(t, resp.Answer, string(stored))
}

func TestAnalystChatKeepsCallerHistory(t *testing.T) {
	p := newPipeline()
	id := validated(t, p)
	p.llm.answer = "A ração usa 2309.90.10."

	history := llm.Conversation{}.Exchange("Quais NCMs estão errados?", "9503.00.10 e 6802.93.90.")
	a := NewAnalystFunction(p.blobs, p.records, p.llm, testConfig())
	resp, err := a.Process(context.Background(), &models.AnalystRequest{
		DatasetID: id,
		Question:  "  E a ração?  ",
		History:   history,
	})
	require.NoError(t, err)

	assert.Len(t, history, 2)
	require.Len(t, resp.History, 4)
	assert.Equal(t, "E a ração?", resp.History[2].Content)
	assert.Equal(t, llm.RoleAssistant, resp.History[3].Role)
	assert.Equal(t, history, p.llm.received[0])
	assert.Empty(t, resp.AnalysisGCSUri)

	_, stored := p.blobs.get("datasets", models.AnalysisObject(id))
	assert.False(t, stored)
}

func TestAnalystRefusal(t *testing.T) {
	p := newPipeline()
	id := validated(t, p)
	p.llm.answer = "I am unable to help with that request."

	a := NewAnalystFunction(p.blobs, p.records, p.llm, testConfig())
	_, err := a.Process(context.Background(), &models.AnalystRequest{DatasetID: id})
	require.ErrorIs(t, err, llm.ErrRefusal)
	assert.Equal(t, models.StatusValidated, p.records.status(id))

	_, err = a.Process(context.Background(), &models.AnalystRequest{DatasetID: id, Persist: true})
	require.ErrorIs(t, err, llm.ErrRefusal)
	assert.Equal(t, models.StatusFailed, p.records.status(id))
}

func reported(t *testing.T, p *pipeline, withAnalysis bool) (string, *models.ReportResponse) {
	t.Helper()
	id := validated(t, p)
	if withAnalysis {
		a := NewAnalystFunction(p.blobs, p.records, p.llm, testConfig())
		_, err := a.Process(context.Background(), &models.AnalystRequest{DatasetID: id, Persist: true})
		require.NoError(t, err)
	}
	r := NewReporterFunction(p.blobs, p.records, testConfig())
	r.render = fakePDF
	resp, err := r.Process(context.Background(), &models.ReportRequest{DatasetID: id})
	require.NoError(t, err)
	return id, resp
}

func TestReporterUsesFindingsTable(t *testing.T) {
	p := newPipeline()
	id, resp := reported(t, p, true)

	m := resp.Metrics
	assert.Equal(t, analysis.SourceTable, m.ProblemSource)
	assert.Equal(t, 5, m.TotalProducts)
	assert.Equal(t, 2, m.ProblemProducts)
	assert.Equal(t, 3, m.CompliantProducts)
	assert.InDelta(t, 60.0, m.ConformityPercent, 0.001)
	assert.Equal(t, analysis.StatusAttention, m.Status)

	assert.Equal(t, "gs://reports/"+id+"/report.pdf", resp.PdfGCSUri)
	pdf, ok := p.blobs.get("reports", models.ReportPDFObject(id))
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF"))
	assert.Equal(t, "application/pdf", p.blobs.types["reports/"+models.ReportPDFObject(id)])

	raw, ok := p.blobs.get("reports", models.ReportJSONObject(id))
	require.True(t, ok)
	var artifact models.ReportArtifact
	require.NoError(t, json.Unmarshal(raw, &artifact))
	assert.Equal(t, "notas.zip", artifact.DatasetName)
	assert.True(t, artifact.HasFindings)
	assert.Equal(t, 2, artifact.Findings.Len())
	assert.Len(t, artifact.Problems, 3)

	assert.Equal(t, models.StatusReported, p.records.status(id))
	assert.Equal(t, m, p.records.field(id, "metrics"))
}

func TestReporterFallsBackToValidator(t *testing.T) {
	p := newPipeline()
	_, resp := reported(t, p, false)

	assert.Equal(t, analysis.SourceValidator, resp.Metrics.ProblemSource)
	assert.Equal(t, 3, resp.Metrics.ProblemProducts)
	assert.InDelta(t, 40.0, resp.Metrics.ConformityPercent, 0.001)
}

func TestReporterUploadFailure(t *testing.T) {
	p := newPipeline()
	id := validated(t, p)
	p.blobs.writeErr = errors.New("bucket unavailable")

	r := NewReporterFunction(p.blobs, p.records, testConfig())
	r.render = fakePDF
	_, err := r.Process(context.Background(), &models.ReportRequest{DatasetID: id})
	require.Error(t, err)
	assert.Equal(t, models.StatusFailed, p.records.status(id))
}

func TestProblemListCaps(t *testing.T) {
	s := analysis.Summary{Findings: []analysis.CodeFinding{
		{Code: "95030010", Count: 3, ExampleDescription: "Brinquedo", Result: ncm.ValidationResult{Reason: ncm.ReasonNotInReference}},
		{Code: "23099010", Count: 2, Result: ncm.ValidationResult{IsValid: true}},
		{Code: "123", Count: 1, Result: ncm.ValidationResult{Reason: "invalid format"}},
	}}
	assert.Equal(t, []string{
		"95030010 (3 ocorrência(s)): not found in sector reference table - Brinquedo",
		"123 (1 ocorrência(s)): invalid format",
	}, ProblemList(s, 10))
	assert.Len(t, ProblemList(s, 1), 1)
}

func TestMailerSendsReport(t *testing.T) {
	p := newPipeline()
	id, _ := reported(t, p, true)

	m := NewMailerFunction(p.blobs, p.records, p.sender, testConfig())
	resp, err := m.Process(context.Background(), &models.MailRequest{
		DatasetID: id,
		To:        []string{" fiscal@example.com ", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Recipients)

	require.Len(t, p.sender.sent, 1)
	msg := p.sender.sent[0]
	assert.Equal(t, []string{"fiscal@example.com"}, msg.To)
	assert.Equal(t, "Relatório de Conformidade NCM", msg.Subject)
	assert.Equal(t, mail.DefaultAttachmentName, msg.AttachmentName)
	assert.Contains(t, msg.HTML, "notas.zip")
	assert.True(t, strings.HasPrefix(string(p.sender.attachment), "%PDF"))
	assert.Equal(t, []string{"fiscal@example.com"}, p.records.field(id, "mailedTo"))
}

func TestMailerErrors(t *testing.T) {
	p := newPipeline()
	m := NewMailerFunction(p.blobs, p.records, p.sender, testConfig())

	_, err := m.Process(context.Background(), &models.MailRequest{DatasetID: "ds-1", To: []string{" "}})
	assert.ErrorIs(t, err, mail.ErrNoRecipients)

	_, err = m.Process(context.Background(), &models.MailRequest{DatasetID: "ds-1", To: []string{"a@example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report artifact")

	id, _ := reported(t, p, false)
	p.sender.err = errors.New("smtp: 535 authentication failed")
	_, err = m.Process(context.Background(), &models.MailRequest{DatasetID: id, To: []string{"a@example.com"}, Subject: "Teste"})
	require.Error(t, err)
	assert.Equal(t, models.StatusReported, p.records.status(id))
}
