package state

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "state.json"))

	cursor, err := s.LoadCursor(context.Background(), "primary")
	if err != nil {
		t.Fatalf("LoadCursor error: %v", err)
	}
	if cursor != "" {
		t.Fatalf("cursor = %q, want empty", cursor)
	}
	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if len(snap.CalendarSyncTokens) != 0 || snap.LastSyncDate != nil {
		t.Fatalf("snapshot = %+v, want empty", snap)
	}
}

func TestFileStore_CursorLifecycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewFileStore(path)

	if err := s.SaveCursor(ctx, "work", "tok-1"); err != nil {
		t.Fatalf("SaveCursor error: %v", err)
	}
	if err := s.SaveCursor(ctx, "home", "tok-2"); err != nil {
		t.Fatalf("SaveCursor error: %v", err)
	}
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := s.MarkRun(ctx, at); err != nil {
		t.Fatalf("MarkRun error: %v", err)
	}

	reopened := NewFileStore(path)
	cursor, err := reopened.LoadCursor(ctx, "work")
	if err != nil {
		t.Fatalf("LoadCursor error: %v", err)
	}
	if cursor != "tok-1" {
		t.Fatalf("cursor = %q, want %q", cursor, "tok-1")
	}

	if err := reopened.ClearCursor(ctx, "work"); err != nil {
		t.Fatalf("ClearCursor error: %v", err)
	}
	snap, err := reopened.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if _, ok := snap.CalendarSyncTokens["work"]; ok {
		t.Fatalf("cleared cursor still present: %+v", snap.CalendarSyncTokens)
	}
	if snap.CalendarSyncTokens["home"] != "tok-2" {
		t.Fatalf("home cursor = %q, want %q", snap.CalendarSyncTokens["home"], "tok-2")
	}
	if snap.LastSyncDate == nil || !snap.LastSyncDate.Equal(at) {
		t.Fatalf("last sync = %v, want %v", snap.LastSyncDate, at)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error: %v", err)
	}
	if !strings.Contains(string(b), `"calendarSyncTokens"`) || !strings.Contains(string(b), `"lastSyncDate"`) {
		t.Fatalf("unexpected state document: %s", b)
	}
}

func TestFileStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "state.json"))

	if err := s.SaveCursor(ctx, "work", "tok"); err != nil {
		t.Fatalf("SaveCursor error: %v", err)
	}
	if err := s.MarkRun(ctx, time.Now()); err != nil {
		t.Fatalf("MarkRun error: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset error: %v", err)
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot error: %v", err)
	}
	if len(snap.CalendarSyncTokens) != 0 || snap.LastSyncDate != nil {
		t.Fatalf("snapshot after reset = %+v, want empty", snap)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	if _, err := NewFileStore(path).LoadCursor(context.Background(), "work"); err == nil {
		t.Fatalf("expected parse error")
	}
}
