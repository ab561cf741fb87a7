package storage

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/securestore"
)

// FileTier keeps all slots in a single JSON document on disk. Concurrent
// writers from different processes race with last-write-wins semantics.
type FileTier struct {
	mu   sync.Mutex
	path string
}

func NewFileTier(path string) *FileTier {
	return &FileTier{path: path}
}

func (f *FileTier) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slots, err := f.loadLocked()
	if err != nil {
		return "", false, err
	}
	v, ok := slots[key]
	return v, ok, nil
}

func (f *FileTier) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	slots, err := f.loadLocked()
	if err != nil {
		return err
	}
	next := cloneSlots(slots)
	next[key] = value
	return f.persistLocked(next)
}

func (f *FileTier) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	slots, err := f.loadLocked()
	if err != nil {
		return err
	}
	if _, ok := slots[key]; !ok {
		return nil
	}
	next := cloneSlots(slots)
	delete(next, key)
	return f.persistLocked(next)
}

func (f *FileTier) loadLocked() (map[string]string, error) {
	raw, err := securestore.ReadFileIfExists(f.path)
	if err != nil {
		return nil, err
	}
	slots := make(map[string]string)
	if len(raw) == 0 {
		return slots, nil
	}
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, ErrSlotCorrupted
	}
	return slots, nil
}

func (f *FileTier) persistLocked(slots map[string]string) error {
	raw, err := json.MarshalIndent(slots, "", "  ")
	if err != nil {
		return err
	}
	return securestore.WriteFileAtomic(f.path, raw)
}

func cloneSlots(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
