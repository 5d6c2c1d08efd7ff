package persistence

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gridrealm/server/config"
)

func sampleEntries() []Entry {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []Entry{
		{Time: base, Kind: KindJoin, PlayerID: 1, Actor: "Alice", Detail: "Warrior"},
		{Time: base.Add(time.Second), Kind: KindChat, PlayerID: 1, Actor: "Alice", Detail: "hello"},
		{Time: base.Add(2 * time.Second), Kind: KindEnemyDefeated, PlayerID: 1, Actor: "Alice", Detail: "Goblin"},
		{Time: base.Add(3 * time.Second), Kind: KindLeave, PlayerID: 1, Actor: "Alice"},
	}
}

// exerciseJournal checks the behavior every store shares
func exerciseJournal(t *testing.T, j Journal) {
	t.Helper()
	ctx := context.Background()

	for _, e := range sampleEntries() {
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s) failed: %v", e.Kind, err)
		}
	}

	recent, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].Kind != KindEnemyDefeated || recent[1].Kind != KindLeave {
		t.Errorf("expected oldest-first tail, got %s, %s", recent[0].Kind, recent[1].Kind)
	}
	if recent[0].ID >= recent[1].ID {
		t.Errorf("expected increasing IDs, got %d then %d", recent[0].ID, recent[1].ID)
	}
	if !recent[0].Time.Equal(sampleEntries()[2].Time) {
		t.Errorf("time not preserved: %v", recent[0].Time)
	}
	if recent[0].Actor != "Alice" || recent[0].Detail != "Goblin" || recent[0].PlayerID != 1 {
		t.Errorf("fields not preserved: %+v", recent[0])
	}

	all, err := j.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 entries, got %d", len(all))
	}
}

func TestJSONStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "journal.jsonl")
	store, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore failed: %v", err)
	}
	exerciseJournal(t, store)
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopening continues the ID sequence
	reopened, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Record(context.Background(), Entry{Kind: KindJoin, Actor: "Bob"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	recent, _ := reopened.Recent(context.Background(), 1)
	if len(recent) != 1 || recent[0].ID != 5 {
		t.Errorf("expected ID 5 after reopen, got %+v", recent)
	}
}

func TestJSONStore_SkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	if err := os.WriteFile(path, []byte("{\"id\":1,\"kind\":\"join\"}\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}
	store, err := NewJSONStore(path)
	if err != nil {
		t.Fatalf("NewJSONStore failed: %v", err)
	}
	defer store.Close()

	entries, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 readable entry, got %d", len(entries))
	}
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()
	exerciseJournal(t, store)

	var mode string
	if err := store.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("failed to read journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("expected WAL mode, got %s", mode)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	store, err := NewPostgresStore(dsn)
	if err != nil {
		t.Fatalf("NewPostgresStore failed: %v", err)
	}
	defer store.Close()
	if _, err := store.db.Exec("TRUNCATE journal RESTART IDENTITY"); err != nil {
		t.Fatalf("failed to reset journal: %v", err)
	}
	exerciseJournal(t, store)
}

type memoryJournal struct {
	mu      sync.Mutex
	entries []Entry
	closed  bool
	block   chan struct{}
}

func (m *memoryJournal) Record(_ context.Context, e Entry) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memoryJournal) Recent(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...), nil
}

func (m *memoryJournal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestAsyncJournal_CloseDrains(t *testing.T) {
	inner := &memoryJournal{}
	aj := NewAsyncJournal(inner, 16)

	for _, e := range sampleEntries() {
		if err := aj.Record(context.Background(), e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	if err := aj.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if len(inner.entries) != 4 {
		t.Errorf("expected 4 entries written, got %d", len(inner.entries))
	}
	if !inner.closed {
		t.Error("expected inner journal closed")
	}
	if err := aj.Record(context.Background(), Entry{Kind: KindChat}); err != ErrJournalClosed {
		t.Errorf("expected ErrJournalClosed, got %v", err)
	}
	if err := aj.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestAsyncJournal_DropsWhenFull(t *testing.T) {
	inner := &memoryJournal{block: make(chan struct{})}
	aj := NewAsyncJournal(inner, 1)

	// One entry is held by the blocked writer, one fills the queue, the
	// rest are dropped.
	for i := 0; i < 10; i++ {
		aj.Record(context.Background(), Entry{Kind: KindChat})
	}
	if aj.Dropped() == 0 {
		t.Error("expected entries to be dropped")
	}

	close(inner.block)
	aj.Close()
	if got := int64(len(inner.entries)) + aj.Dropped(); got != 10 {
		t.Errorf("expected written + dropped = 10, got %d", got)
	}
}

func TestOpen(t *testing.T) {
	j, err := Open(config.JournalConfig{Driver: "none"})
	if err != nil {
		t.Fatalf("Open(none) failed: %v", err)
	}
	if _, ok := j.(NopJournal); !ok {
		t.Errorf("expected NopJournal, got %T", j)
	}

	j, err = Open(config.JournalConfig{Driver: "file", Path: filepath.Join(t.TempDir(), "j.jsonl"), BufferSize: 8})
	if err != nil {
		t.Fatalf("Open(file) failed: %v", err)
	}
	if _, ok := j.(*AsyncJournal); !ok {
		t.Errorf("expected AsyncJournal, got %T", j)
	}
	j.Close()

	if _, err := Open(config.JournalConfig{Driver: "redis"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
