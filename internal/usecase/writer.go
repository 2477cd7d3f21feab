package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"journal-service/internal/domain"
	"journal-service/internal/repository"
)

const (
	defaultWriteAttempts   = 3
	defaultWriteRetryDelay = 2 * time.Second

	// Entry objects are write-once; tell every cache in the path so.
	immutableCacheControl = "public, max-age=31536000, immutable"
)

// Writer persists single entries as immutable objects at deterministic keys.
type Writer struct {
	store      ObjectStore
	log        *slog.Logger
	attempts   uint
	retryDelay time.Duration
}

// NewWriter creates a Writer. Zero attempts/delay select the defaults
// (3 attempts, 2s fixed delay).
func NewWriter(store ObjectStore, log *slog.Logger, attempts uint, retryDelay time.Duration) (*Writer, error) {
	if store == nil {
		return nil, errors.New("usecase: object store must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if attempts == 0 {
		attempts = defaultWriteAttempts
	}
	if retryDelay <= 0 {
		retryDelay = defaultWriteRetryDelay
	}
	return &Writer{
		store:      store,
		log:        log.With("component", "writer"),
		attempts:   attempts,
		retryDelay: retryDelay,
	}, nil
}

// Persist validates the entry, stamps its checksum, and writes it once at
// its deterministic key. Transient storage failures are retried with a fixed
// delay up to the attempt bound; validation failures are rejected
// immediately and never retried. A write-once rejection where the stored
// object carries the same checksum counts as success, so re-persisting an
// entry whose earlier write landed converges on one object. Returns the
// storage key on success.
func (w *Writer) Persist(ctx context.Context, e domain.Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", newError(ErrorValidation, "invalid_entry", err)
	}

	e.Checksum = domain.ComputeChecksum(e)
	key := entryKey(e)

	body, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", newError(ErrorInternal, "encode_entry", err)
	}
	opts := repository.PutOptions{
		ContentType:  contentTypeJSON,
		CacheControl: immutableCacheControl,
		Metadata:     objectMetadata(e),
		IfNoneMatch:  true,
	}

	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		putErr := w.store.Put(ctx, key, body, opts)
		if putErr == nil {
			return struct{}{}, nil
		}
		if errors.Is(putErr, repository.ErrKeyExists) {
			// The key is deterministic, so an existing object is either this
			// same entry landed by an earlier attempt (possibly from a prior
			// Persist call whose response was lost) or a genuine conflict.
			// The stored checksum decides which.
			if w.alreadyDurable(ctx, key, e.Checksum) {
				w.log.Info("entry already durable", "key", key)
				return struct{}{}, nil
			}
			return struct{}{}, backoff.Permanent(newError(ErrorConflict, "write_once_violation", putErr))
		}
		if !repository.IsTransient(putErr) {
			return struct{}{}, backoff.Permanent(newError(ErrorInternal, "storage_put_failed", putErr))
		}
		w.log.Warn("transient put failure", "key", key, "attempt", attempt, "err", putErr)
		return struct{}{}, putErr
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(w.retryDelay)),
		backoff.WithMaxTries(w.attempts),
	)
	if err != nil {
		var typed *Error
		if errors.As(err, &typed) {
			return "", typed
		}
		return "", newError(ErrorStorage, "retries_exhausted", fmt.Errorf("put %s after %d attempts: %w", key, attempt, err))
	}

	w.log.Debug("entry persisted", "key", key, "tier", e.Tier().String())
	return key, nil
}

// alreadyDurable reports whether the object at key already holds an entry
// with this checksum, which resolves a rejected write-once put into a
// success instead of a conflict.
func (w *Writer) alreadyDurable(ctx context.Context, key, checksum string) bool {
	stored, err := getJSON[domain.Entry](ctx, w.store, key)
	if err != nil || stored == nil {
		return false
	}
	return stored.Checksum == checksum
}

// objectMetadata builds the queryable object metadata attached to an entry.
func objectMetadata(e domain.Entry) map[string]string {
	meta := map[string]string{
		"checksum":    e.Checksum,
		"turn-number": strconv.Itoa(e.TurnNumber),
	}
	if e.ConversationID != "" {
		meta["conversation-id"] = e.ConversationID
	}
	if e.Metadata.SessionID != "" {
		meta["session-id"] = e.Metadata.SessionID
	}
	if e.Tier() == domain.TierTrim {
		meta["priority"] = string(e.Metadata.Priority)
		meta["has-decisions"] = strconv.FormatBool(e.Metadata.HasDecisions)
		meta["is-inferable"] = strconv.FormatBool(e.Metadata.IsInferable)
	}
	return meta
}
