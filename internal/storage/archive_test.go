package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethiomart/telepipe/internal/storage"
)

func openArchive(t *testing.T) *storage.Archive {
	t.Helper()
	a, err := storage.OpenArchive(filepath.Join(t.TempDir(), "runs.db"), nil)
	if err != nil {
		t.Fatalf("OpenArchive failed: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestRecordAndLastRun(t *testing.T) {
	t.Parallel()

	a := openArchive(t)
	ctx := context.Background()

	started := time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC)
	run := storage.RunSummary{
		ID:              storage.NewRunID(),
		StartedAt:       started,
		FinishedAt:      started.Add(2 * time.Minute),
		Channels:        2,
		ChannelsPartial: 1,
		Messages:        150,
		MediaFailures:   3,
	}
	outcomes := []storage.ChannelOutcome{
		{Ref: "@shop", Title: "Shop", State: "complete", Messages: 100},
		{Ref: "@flaky", Title: "Flaky", State: "partial", Messages: 50, Error: "connection reset"},
	}

	if err := a.RecordRun(ctx, run, outcomes); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	got, err := a.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("LastRun returned nil after RecordRun")
	}
	if got.ID != run.ID {
		t.Errorf("ID = %q, want %q", got.ID, run.ID)
	}
	if got.Messages != 150 || got.ChannelsPartial != 1 || got.MediaFailures != 3 {
		t.Errorf("counters = %+v, want messages 150, partial 1, media failures 3", got)
	}
}

func TestLastRunReturnsNewest(t *testing.T) {
	t.Parallel()

	a := openArchive(t)
	ctx := context.Background()

	older := storage.RunSummary{
		ID:        storage.NewRunID(),
		StartedAt: time.Date(2026, 8, 1, 6, 0, 0, 0, time.UTC),
	}
	newer := storage.RunSummary{
		ID:        storage.NewRunID(),
		StartedAt: time.Date(2026, 8, 2, 6, 0, 0, 0, time.UTC),
		Messages:  7,
	}
	if err := a.RecordRun(ctx, older, nil); err != nil {
		t.Fatalf("RecordRun(older) failed: %v", err)
	}
	if err := a.RecordRun(ctx, newer, nil); err != nil {
		t.Fatalf("RecordRun(newer) failed: %v", err)
	}

	got, err := a.LastRun(ctx)
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if got == nil || got.ID != newer.ID {
		t.Errorf("LastRun = %v, want run %q", got, newer.ID)
	}
}

func TestLastRunEmptyArchive(t *testing.T) {
	t.Parallel()

	a := openArchive(t)
	got, err := a.LastRun(context.Background())
	if err != nil {
		t.Fatalf("LastRun failed: %v", err)
	}
	if got != nil {
		t.Errorf("LastRun = %+v, want nil for empty archive", got)
	}
}
