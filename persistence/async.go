package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"gridrealm/server/config"
	"gridrealm/server/logger"
)

// ErrJournalClosed is returned by Record after Close
var ErrJournalClosed = errors.New("journal closed")

// AsyncJournal writes entries on a background goroutine so callers never
// wait on storage. Entries are dropped when the queue is full.
type AsyncJournal struct {
	inner   Journal
	queue   chan Entry
	done    chan struct{}
	mutex   sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewAsyncJournal starts a writer for inner with room for bufferSize
// queued entries
func NewAsyncJournal(inner Journal, bufferSize int) *AsyncJournal {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	aj := &AsyncJournal{
		inner: inner,
		queue: make(chan Entry, bufferSize),
		done:  make(chan struct{}),
	}
	go aj.run()
	return aj
}

func (aj *AsyncJournal) run() {
	defer close(aj.done)
	for entry := range aj.queue {
		if err := aj.inner.Record(context.Background(), entry); err != nil {
			logger.Warning("Failed to write journal entry", "kind", entry.Kind, "error", err)
		}
	}
}

// Record queues entry without blocking
func (aj *AsyncJournal) Record(_ context.Context, entry Entry) error {
	aj.mutex.RLock()
	defer aj.mutex.RUnlock()

	if aj.closed {
		return ErrJournalClosed
	}
	select {
	case aj.queue <- entry:
	default:
		aj.dropped.Add(1)
		logger.Warning("Journal queue full, dropping entry", "kind", entry.Kind)
	}
	return nil
}

// Dropped returns the number of entries discarded because the queue was full
func (aj *AsyncJournal) Dropped() int64 {
	return aj.dropped.Load()
}

// Recent reads from the underlying store
func (aj *AsyncJournal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return aj.inner.Recent(ctx, limit)
}

// Close writes out queued entries and closes the underlying store
func (aj *AsyncJournal) Close() error {
	aj.mutex.Lock()
	if aj.closed {
		aj.mutex.Unlock()
		return nil
	}
	aj.closed = true
	close(aj.queue)
	aj.mutex.Unlock()

	<-aj.done
	return aj.inner.Close()
}

// Open creates the journal selected by cfg. Durable stores are wrapped in
// an AsyncJournal.
func Open(cfg config.JournalConfig) (Journal, error) {
	var (
		store Journal
		err   error
	)
	switch cfg.Driver {
	case "", "none":
		return NopJournal{}, nil
	case "file":
		store, err = NewJSONStore(cfg.Path)
	case "sqlite":
		store, err = NewSQLiteStore(cfg.Path)
	case "postgres":
		store, err = NewPostgresStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown journal driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("Journal opened", "driver", cfg.Driver)
	return NewAsyncJournal(store, cfg.BufferSize), nil
}
