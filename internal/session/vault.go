package session

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Storage keys live under one namespace so teardown can sweep every
// auth-related entry by prefix without touching unrelated state.
const (
	Namespace      = "auth:"
	KeySession     = Namespace + "session"
	KeyAntiForgery = Namespace + "antiforgery"
)

// ErrNotFound signals an absent key; callers treat it as "no session"
var ErrNotFound = errors.New("vault: key not found")

// Vault is the namespaced key-value store holding the encoded session
// and related short-lived entries.
type Vault interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes every key under prefix, returning how many
	// were removed. Removing zero keys is not an error.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}

// MemoryVault is the in-process implementation used by tests and
// single-node development runs.
type MemoryVault struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{entries: make(map[string]string)}
}

func (v *MemoryVault) Get(ctx context.Context, key string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	value, ok := v.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (v *MemoryVault) Set(ctx context.Context, key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.entries[key] = value
	return nil
}

func (v *MemoryVault) Delete(ctx context.Context, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	delete(v.entries, key)
	return nil
}

func (v *MemoryVault) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	removed := 0
	for key := range v.entries {
		if strings.HasPrefix(key, prefix) {
			delete(v.entries, key)
			removed++
		}
	}
	return removed, nil
}
