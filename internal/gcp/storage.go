package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/avast/retry-go/v4"
	"google.golang.org/api/googleapi"
)

// ErrNotFound is returned by Read when the object does not exist.
var ErrNotFound = errors.New("object not found")

const writeTimeout = 50 * time.Second

// Storage wraps a GCS client with the read/write helpers shared by all functions.
type Storage struct {
	client   *storage.Client
	attempts uint
}

// NewStorage creates a GCS client. attempts bounds upload retries.
func NewStorage(ctx context.Context, attempts uint) (*Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	if attempts == 0 {
		attempts = 4
	}
	return &Storage{client: client, attempts: attempts}, nil
}

// Read returns the full content of gs://bucket/object.
func (s *Storage) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", URI(bucket, object), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get GCS object reader for %s: %w", URI(bucket, object), err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", URI(bucket, object), err)
	}
	return data, nil
}

// Download streams gs://bucket/object into destPath.
func (s *Storage) Download(ctx context.Context, bucket, object, destPath string) error {
	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for %s: %w", URI(bucket, object), err)
	}
	defer r.Close()
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	return nil
}

// Write stores data at gs://bucket/object, replacing any existing object.
func (s *Storage) Write(ctx context.Context, bucket, object, contentType string, data []byte) error {
	return s.upload(ctx, bucket, object, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, contentType, false)
}

// WriteOnce stores data only if the object does not exist yet. An existing object is
// not an error.
func (s *Storage) WriteOnce(ctx context.Context, bucket, object, contentType string, data []byte) error {
	return s.upload(ctx, bucket, object, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, contentType, true)
}

// UploadFile copies a local file to gs://bucket/object.
func (s *Storage) UploadFile(ctx context.Context, localPath, bucket, object, contentType string) error {
	return s.upload(ctx, bucket, object, func() (io.ReadCloser, error) {
		f, err := os.Open(localPath)
		if err != nil {
			return nil, fmt.Errorf("could not open local file %s: %w", localPath, err)
		}
		return f, nil
	}, contentType, false)
}

func (s *Storage) upload(ctx context.Context, bucket, object string, open func() (io.ReadCloser, error), contentType string, once bool) error {
	logCtx := slog.With("gcsBucket", bucket, "gcsObject", object)
	err := retry.Do(
		func() error {
			src, err := open()
			if err != nil {
				return retry.Unrecoverable(err)
			}
			defer src.Close()

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			defer cancel()

			obj := s.client.Bucket(bucket).Object(object)
			if once {
				obj = obj.If(storage.Conditions{DoesNotExist: true})
			}
			w := obj.NewWriter(writeCtx)
			w.ContentType = contentType

			if _, err := io.Copy(w, src); err != nil {
				_ = w.Close()
				return fmt.Errorf("io.Copy to GCS failed: %w", err)
			}
			if err := w.Close(); err != nil {
				if once && isPreconditionFailed(err) {
					logCtx.Info("Object already exists. Skipping.")
					return nil
				}
				return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logCtx.Warn("Upload failed, will retry.", "attempt", n+1, "maxRetries", s.attempts, "error", err)
		}),
	)
	if err != nil {
		logCtx.Error("Upload failed after all retries.", "error", err)
		return fmt.Errorf("upload for %s failed: %w", URI(bucket, object), err)
	}
	return nil
}

// Close releases the client.
func (s *Storage) Close() error {
	return s.client.Close()
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// URI formats a gs:// URI.
func URI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}

// ParseURI splits a gs://bucket/object URI.
func ParseURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URI: %q", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("gs:// URI must name a bucket and an object: %q", uri)
	}
	return bucket, object, nil
}
