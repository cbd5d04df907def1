package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/ncmcompliance/internal/config"
	"github.com/Lllllllleong/ncmcompliance/internal/gcp"
	"github.com/Lllllllleong/ncmcompliance/internal/llm"
	"github.com/Lllllllleong/ncmcompliance/internal/mail"
	"github.com/Lllllllleong/ncmcompliance/internal/models"
	"github.com/Lllllllleong/ncmcompliance/internal/pdfreport"
)

type memBlobs struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	writeErr error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memBlobs) key(bucket, object string) string { return bucket + "/" + object }

func (m *memBlobs) put(bucket, object string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[m.key(bucket, object)] = data
}

func (m *memBlobs) get(bucket, object string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[m.key(bucket, object)]
	return data, ok
}

func (m *memBlobs) Read(_ context.Context, bucket, object string) ([]byte, error) {
	data, ok := m.get(bucket, object)
	if !ok {
		return nil, fmt.Errorf("%w: gs://%s/%s", gcp.ErrNotFound, bucket, object)
	}
	return data, nil
}

func (m *memBlobs) Write(_ context.Context, bucket, object, contentType string, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[m.key(bucket, object)] = append([]byte(nil), data...)
	m.types[m.key(bucket, object)] = contentType
	return nil
}

func (m *memBlobs) WriteOnce(ctx context.Context, bucket, object, contentType string, data []byte) error {
	if _, ok := m.get(bucket, object); ok {
		return nil
	}
	return m.Write(ctx, bucket, object, contentType, data)
}

func (m *memBlobs) Download(ctx context.Context, bucket, object, destPath string) error {
	data, err := m.Read(ctx, bucket, object)
	if err != nil {
		return err
	}
	return os.WriteFile(destPath, data, 0o600)
}

func (m *memBlobs) UploadFile(ctx context.Context, localPath, bucket, object, contentType string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	return m.Write(ctx, bucket, object, contentType, data)
}

type memRecords struct {
	mu      sync.Mutex
	next    int
	records map[string]*models.DatasetRecord
	fields  map[string]map[string]any
}

func newMemRecords() *memRecords {
	return &memRecords{records: map[string]*models.DatasetRecord{}, fields: map[string]map[string]any{}}
}

func (m *memRecords) FindByHash(_ context.Context, fileHash string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.records {
		if rec.FileHash == fileHash && rec.Status != models.StatusFailed {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (m *memRecords) Create(_ context.Context, rec models.DatasetRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("ds-%d", m.next)
	rec.ID = id
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	m.records[id] = &rec
	m.fields[id] = map[string]any{}
	return id, nil
}

func (m *memRecords) Get(_ context.Context, id string) (*models.DatasetRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("dataset %s not found", id)
	}
	cp := *rec
	return &cp, nil
}

func (m *memRecords) Update(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return fmt.Errorf("dataset %s not found", id)
	}
	for k, v := range fields {
		m.fields[id][k] = v
	}
	if status, ok := fields["status"].(string); ok {
		rec.Status = status
	}
	rec.UpdatedAt = time.Now()
	return nil
}

func (m *memRecords) seed(id string, rec models.DatasetRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = id
	m.records[id] = &rec
	m.fields[id] = map[string]any{}
}

func (m *memRecords) status(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id].Status
}

func (m *memRecords) field(id, name string) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fields[id][name]
}

type fakeWorkflows struct {
	payloads []any
	err      error
}

func (f *fakeWorkflows) Start(_ context.Context, payload any) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.payloads = append(f.payloads, payload)
	return fmt.Sprintf("executions/%d", len(f.payloads)), nil
}

type fakeLLM struct {
	answer   string
	err      error
	prompts  []string
	received []llm.Conversation
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Generate(_ context.Context, history llm.Conversation, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.received = append(f.received, history)
	return f.answer, f.err
}

type fakeSender struct {
	sent       []mail.Message
	attachment []byte
	err        error
}

func (f *fakeSender) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	data, err := os.ReadFile(msg.AttachmentPath)
	if err != nil {
		return err
	}
	f.attachment = data
	f.sent = append(f.sent, msg)
	return nil
}

func fakePDF(_ context.Context, l *pdfreport.Layout, w io.Writer) error {
	_, err := fmt.Fprintf(w, "%%PDF-1.7 pages=%d", l.PageCount())
	return err
}

func testConfig() *config.Config {
	return &config.Config{
		ProjectID:      "test-project",
		DatasetsBucket: "datasets",
		ReportsBucket:  "reports",
		MailSubject:    "Relatório de Conformidade NCM",
		MaxReportRows:  pdfreport.MaxFindingRows,

		IngestStaleAfter: 15 * time.Minute,
	}
}

const invoiceCSV = "NCM;Descrição do Produto;Valor Total\n" +
	"2309.90.10;Ração cães adultos;100,00\n" +
	"2309.90.10;Ração filhotes;80,00\n" +
	"9503.00.10;Brinquedo mordedor;19,90\n" +
	"6802.93.90;Areia granulada;35,00\n" +
	"123;Coleira;50,00\n"

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func putJSON(t *testing.T, blobs *memBlobs, bucket, object string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	blobs.put(bucket, object, data)
}
