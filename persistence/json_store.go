package persistence

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore appends journal entries to a local file, one JSON object per line
type JSONStore struct {
	filePath string
	mutex    sync.Mutex
	file     *os.File
	nextID   int64
}

// NewJSONStore opens or creates the journal file at filePath
func NewJSONStore(filePath string) (*JSONStore, error) {
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	store := &JSONStore{filePath: filePath}

	// Continue numbering after existing entries
	entries, err := store.readAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load JSON journal: %w", err)
	}
	if n := len(entries); n > 0 {
		store.nextID = entries[n-1].ID
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create JSON journal file: %w", err)
	}
	store.file = file
	return store, nil
}

// Record appends an entry to the file
func (js *JSONStore) Record(_ context.Context, entry Entry) error {
	js.mutex.Lock()
	defer js.mutex.Unlock()

	if js.file == nil {
		return os.ErrClosed
	}
	js.nextID++
	entry.ID = js.nextID

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = js.file.Write(append(data, '\n'))
	return err
}

// Recent returns up to limit of the latest entries, oldest first
func (js *JSONStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	js.mutex.Lock()
	defer js.mutex.Unlock()

	entries, err := js.readAll()
	if err != nil {
		return nil, err
	}
	if limit >= 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// readAll loads every entry. Lines that do not decode are skipped.
func (js *JSONStore) readAll() ([]Entry, error) {
	file, err := os.Open(js.filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}

// Close closes the journal file
func (js *JSONStore) Close() error {
	js.mutex.Lock()
	defer js.mutex.Unlock()

	if js.file == nil {
		return nil
	}
	err := js.file.Close()
	js.file = nil
	return err
}
