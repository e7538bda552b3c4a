package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/boogiefi/marketd/internal/domain"
)

// ArchiveImpl implements domain.Archiver by querying the event store for old
// ledger events, serializing them to JSONL, and uploading the result to S3.
//
// Deletion of the archived events from the primary store is intentionally a
// separate step (PruneEvents) so an archive can be verified first.
type ArchiveImpl struct {
	writer domain.BlobWriter
	events domain.EventStore
	log    *slog.Logger
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, events domain.EventStore, log *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		events: events,
		log:    log.With("component", "archiver"),
	}
}

// ArchiveEvents queries all ledger events before the cutoff, serializes them
// to JSONL, and uploads the file to S3 at archive/events/YYYY-MM.jsonl. The
// count of archived events is returned.
func (a *ArchiveImpl) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.events.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events marshal: %w", err)
	}

	path := archivePath("events", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive events upload: %w", err)
	}

	count := int64(len(events))
	a.log.InfoContext(ctx, "archived ledger events",
		"path", path,
		"count", count,
		"before", before.Format(time.RFC3339),
	)
	return count, nil
}

// PruneEvents deletes events before the cutoff from the primary store.
// Returns the number deleted. Callers run this only after ArchiveEvents
// succeeded for the same cutoff.
func (a *ArchiveImpl) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	deleted, err := a.events.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: prune events: %w", err)
	}
	if deleted > 0 {
		a.log.InfoContext(ctx, "pruned archived ledger events",
			"count", deleted,
			"before", before.Format(time.RFC3339),
		)
	}
	return deleted, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/events/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
