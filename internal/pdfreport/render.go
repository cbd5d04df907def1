package pdfreport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Render creates the PDF described by l, validates it and writes the optimized file to w.
func Render(ctx context.Context, l *Layout, w io.Writer) error {
	js, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to marshal layout: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var created bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(js), &created, conf); err != nil {
		return fmt.Errorf("failed to create PDF: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := api.Validate(bytes.NewReader(created.Bytes()), conf); err != nil {
		return fmt.Errorf("generated PDF failed validation: %w", err)
	}
	if err := api.Optimize(bytes.NewReader(created.Bytes()), w, conf); err != nil {
		return fmt.Errorf("failed to optimize PDF: %w", err)
	}
	return nil
}
