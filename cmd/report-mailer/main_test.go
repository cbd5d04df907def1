package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRejectsMissingDatasetID(t *testing.T) {
	// Skip client initialization; requests must be rejected before reaching the instance.
	once.Do(func() {})

	bodies := map[string]string{
		"missing":  `{"executionId":"e1","to":["fiscal@example.com"]}`,
		"empty":    `{"datasetId":"","to":["fiscal@example.com"]}`,
		"bad json": `{"datasetId":`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleSendReport(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
