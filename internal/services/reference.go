package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Lllllllleong/ncmcompliance/internal/gcp"
	"github.com/Lllllllleong/ncmcompliance/internal/ncm"
)

// LoadReference reads the sector table from a gs:// URI or a local path. An empty
// location selects the built-in table.
func LoadReference(ctx context.Context, blobs BlobStore, location string) (*ncm.Reference, error) {
	if location == "" {
		ref := ncm.DefaultReference()
		slog.Info("Using built-in NCM reference table.", "entries", ref.Len())
		return ref, nil
	}

	var raw []byte
	if strings.HasPrefix(location, "gs://") {
		bucket, object, err := gcp.ParseURI(location)
		if err != nil {
			return nil, err
		}
		if raw, err = blobs.Read(ctx, bucket, object); err != nil {
			return nil, fmt.Errorf("failed to read reference table: %w", err)
		}
	} else {
		var err error
		if raw, err = os.ReadFile(location); err != nil {
			return nil, fmt.Errorf("failed to read reference table: %w", err)
		}
	}

	ref, err := ncm.LoadReference(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse reference table %s: %w", location, err)
	}
	slog.Info("Loaded NCM reference table.", "location", location, "entries", ref.Len())
	return ref, nil
}
