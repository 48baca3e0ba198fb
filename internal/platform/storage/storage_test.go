package storage

import (
	"context"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPreferenceStoreDefaults(t *testing.T) {
	store := NewPreferenceStore(newTestDB(t))
	ctx := context.Background()

	enabled, err := store.WakeDetectionEnabled(ctx)
	if err != nil {
		t.Fatalf("read default: %v", err)
	}
	if !enabled {
		t.Fatal("wake detection must default to enabled")
	}
}

func TestPreferenceStoreRoundTrip(t *testing.T) {
	store := NewPreferenceStore(newTestDB(t))
	ctx := context.Background()

	if err := store.SetWakeDetectionEnabled(ctx, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	enabled, err := store.WakeDetectionEnabled(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if enabled {
		t.Fatal("expected persisted false")
	}

	// Overwrite must update in place, not duplicate the key.
	if err := store.SetWakeDetectionEnabled(ctx, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	enabled, err = store.WakeDetectionEnabled(ctx)
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if !enabled {
		t.Fatal("expected persisted true after overwrite")
	}
}

func TestPreferenceStoreUnknownKeyFallback(t *testing.T) {
	store := NewPreferenceStore(newTestDB(t))

	v, err := store.Get(context.Background(), "no_such_key", "fallback")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "fallback" {
		t.Fatalf("got %q, want fallback", v)
	}
}

func TestConversationStoreLifecycle(t *testing.T) {
	store := NewConversationStore(newTestDB(t))
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	if err := store.Begin(ctx, "conv-1", "hey cipher", started); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := store.Begin(ctx, "conv-2", "okay cipher", started.Add(30*time.Second)); err != nil {
		t.Fatalf("begin second: %v", err)
	}

	if err := store.Finish(ctx, "conv-1", "end_phrase", time.Now()); err != nil {
		t.Fatalf("finish: %v", err)
	}

	records, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("recent returned %d records, want 2", len(records))
	}
	if records[0].ConversationID != "conv-2" {
		t.Fatalf("expected newest first, got %q", records[0].ConversationID)
	}
	if records[1].EndReason != "end_phrase" {
		t.Fatalf("end reason = %q", records[1].EndReason)
	}
	if records[1].EndedAt == nil {
		t.Fatal("finished conversation missing end time")
	}

	total, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 {
		t.Fatalf("count = %d, want 2", total)
	}
}
