package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/boogiefi/marketd/internal/domain"
)

func assetID(n uint64) *uint64 {
	return &n
}

type fakeWriter struct {
	path        string
	contentType string
	data        []byte
}

func (w *fakeWriter) Put(_ context.Context, path string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	w.path, w.contentType, w.data = path, contentType, data
	return nil
}

func (w *fakeWriter) PutMultipart(ctx context.Context, path string, r io.Reader, _ int64) error {
	return w.Put(ctx, path, r, "")
}

type fakeEvents struct {
	evs     []domain.LedgerEvent
	deleted int64
}

func (s *fakeEvents) Insert(context.Context, domain.LedgerEvent) error { return nil }

func (s *fakeEvents) ListRecent(context.Context, int) ([]domain.LedgerEvent, error) {
	return nil, nil
}

func (s *fakeEvents) ListBefore(_ context.Context, before time.Time) ([]domain.LedgerEvent, error) {
	var out []domain.LedgerEvent
	for _, ev := range s.evs {
		if ev.At.Before(before) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *fakeEvents) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []domain.LedgerEvent
	for _, ev := range s.evs {
		if ev.At.Before(before) {
			s.deleted++
			continue
		}
		kept = append(kept, ev)
	}
	s.evs = kept
	return s.deleted, nil
}

func TestArchiveEvents_UploadsJSONL(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	events := &fakeEvents{evs: []domain.LedgerEvent{
		{ID: "a", Kind: domain.EventItemBought, AssetID: assetID(0), Price: big.NewInt(100), At: cutoff.Add(-48 * time.Hour)},
		{ID: "b", Kind: domain.EventItemRelisted, AssetID: assetID(1), Price: big.NewInt(200), At: cutoff.Add(-24 * time.Hour)},
		{ID: "c", Kind: domain.EventItemBought, AssetID: assetID(1), Price: big.NewInt(200), At: cutoff.Add(time.Hour)},
	}}
	writer := &fakeWriter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	arch := NewArchiver(writer, events, logger)

	n, err := arch.ArchiveEvents(t.Context(), cutoff)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if n != 2 {
		t.Fatalf("archived = %d, want 2", n)
	}

	if writer.path != "archive/events/2026-08.jsonl" {
		t.Fatalf("path = %q", writer.path)
	}
	if writer.contentType != "application/x-ndjson" {
		t.Fatalf("content type = %q", writer.contentType)
	}

	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(writer.data))
	for sc.Scan() {
		var ev domain.LedgerEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("decode line %q: %v", sc.Text(), err)
		}
		ids = append(ids, ev.ID)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("archived ids = %v", ids)
	}
}

func TestArchiveEvents_NoopWhenNothingOld(t *testing.T) {
	writer := &fakeWriter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	arch := NewArchiver(writer, &fakeEvents{}, logger)

	n, err := arch.ArchiveEvents(t.Context(), time.Now())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if n != 0 {
		t.Fatalf("archived = %d, want 0", n)
	}
	if writer.path != "" {
		t.Fatal("upload happened for empty window")
	}
}

func TestPruneEvents(t *testing.T) {
	cutoff := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	events := &fakeEvents{evs: []domain.LedgerEvent{
		{ID: "a", At: cutoff.Add(-time.Hour)},
		{ID: "b", At: cutoff.Add(time.Hour)},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	arch := NewArchiver(&fakeWriter{}, events, logger)

	n, err := arch.PruneEvents(t.Context(), cutoff)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned = %d, want 1", n)
	}
	if len(events.evs) != 1 || events.evs[0].ID != "b" {
		t.Fatalf("remaining = %v", events.evs)
	}
}
