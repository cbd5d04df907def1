package gcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/ncmcompliance/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// DatasetStore keeps one Firestore document per ingested upload.
type DatasetStore struct {
	client     *firestore.Client
	collection string
}

// NewDatasetStore opens the dataset collection.
func NewDatasetStore(ctx context.Context, projectID, collection string) (*DatasetStore, error) {
	client, err := NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &DatasetStore{client: client, collection: collection}, nil
}

// FindByHash returns the ID of a dataset already ingested from a file with this hash.
func (s *DatasetStore) FindByHash(ctx context.Context, fileHash string) (string, bool, error) {
	iter := s.client.Collection(s.collection).Where("fileHash", "==", fileHash).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return "", false, nil
		}
		if err != nil {
			return "", false, fmt.Errorf("failed to query for duplicates: %w", err)
		}
		var rec models.DatasetRecord
		if err := doc.DataTo(&rec); err != nil {
			return "", false, fmt.Errorf("failed to decode dataset %s: %w", doc.Ref.ID, err)
		}
		// A failed ingest may be retried with the same file.
		if rec.Status == models.StatusFailed {
			continue
		}
		return doc.Ref.ID, true, nil
	}
}

// Create adds rec and returns its generated ID.
func (s *DatasetStore) Create(ctx context.Context, rec models.DatasetRecord) (string, error) {
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	docRef, _, err := s.client.Collection(s.collection).Add(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("failed to create dataset document: %w", err)
	}
	return docRef.ID, nil
}

// Get loads one dataset record.
func (s *DatasetStore) Get(ctx context.Context, id string) (*models.DatasetRecord, error) {
	snap, err := s.client.Collection(s.collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset %s: %w", id, err)
	}
	var rec models.DatasetRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode dataset %s: %w", id, err)
	}
	rec.ID = snap.Ref.ID
	return &rec, nil
}

// Update sets the given top-level fields and bumps updatedAt.
func (s *DatasetStore) Update(ctx context.Context, id string, fields map[string]any) error {
	updates := make([]firestore.Update, 0, len(fields)+1)
	for path, value := range fields {
		updates = append(updates, firestore.Update{Path: path, Value: value})
	}
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})
	if _, err := s.client.Collection(s.collection).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update dataset %s: %w", id, err)
	}
	return nil
}

// Close releases the client.
func (s *DatasetStore) Close() error {
	return s.client.Close()
}
