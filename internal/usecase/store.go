package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"journal-service/internal/repository"
)

// ObjectStore defines the object storage operations the journal consumes.
// *repository.Store is the production implementation.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, opts repository.PutOptions) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix, delimiter string, maxKeys int32) (repository.ListResult, error)
}

const contentTypeJSON = "application/json"

// getJSON fetches and decodes a JSON object. A missing key returns (nil, nil)
// so callers can lazily initialize manifests.
func getJSON[T any](ctx context.Context, store ObjectStore, key string) (*T, error) {
	body, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

// putJSON writes a JSON object in full; manifests have no patch semantics.
func putJSON(ctx context.Context, store ObjectStore, key string, v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Put(ctx, key, body, repository.PutOptions{ContentType: contentTypeJSON})
}
