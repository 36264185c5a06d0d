package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// File keeps documents in memory and rewrites a JSON file after each change.
type File struct {
	path string
	mem  *Memory
	mu   sync.Mutex // serializes writes to path
}

// OpenFile loads path if it exists and returns a File backend.
func OpenFile(path string) (*File, error) {
	f := &File{path: path, mem: NewMemory()}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("reading store file: %w", err)
	}

	var snap map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing store file %s: %w", path, err)
	}
	for coll, docs := range snap {
		for id, doc := range docs {
			f.mem.data[coll] = ensure(f.mem.data[coll])
			f.mem.data[coll][id] = []byte(doc)
		}
	}
	return f, nil
}

func ensure(m map[string][]byte) map[string][]byte {
	if m == nil {
		return make(map[string][]byte)
	}
	return m
}

// Path returns the file backing the store.
func (f *File) Path() string { return f.path }

func (f *File) Get(ctx context.Context, collection, id string) ([]byte, error) {
	return f.mem.Get(ctx, collection, id)
}

func (f *File) List(ctx context.Context, collection string) ([][]byte, error) {
	return f.mem.List(ctx, collection)
}

func (f *File) Collections(ctx context.Context) ([]string, error) {
	return f.mem.Collections(ctx)
}

func (f *File) Put(ctx context.Context, collection, id string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("%s %s: invalid JSON document", collection, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mem.Put(ctx, collection, id, data); err != nil {
		return err
	}
	return f.flush()
}

func (f *File) Delete(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.mem.Delete(ctx, collection, id); err != nil {
		return err
	}
	return f.flush()
}

func (f *File) Close() error { return nil }

// flush writes the whole snapshot to a temp file and renames it over path.
func (f *File) flush() error {
	f.mem.mu.RLock()
	snap := make(map[string]map[string]json.RawMessage, len(f.mem.data))
	for coll, docs := range f.mem.data {
		if len(docs) == 0 {
			continue
		}
		m := make(map[string]json.RawMessage, len(docs))
		for id, doc := range docs {
			m[id] = json.RawMessage(doc)
		}
		snap[coll] = m
	}
	f.mem.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".store-*.json")
	if err != nil {
		return fmt.Errorf("creating temp store file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing store file: %w", err)
	}
	return nil
}
