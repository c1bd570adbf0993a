package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryTarget keeps objects in process memory. Used for single-instance
// deployments and tests.
type MemoryTarget struct {
	name    string
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemoryTarget creates an empty MemoryTarget.
func NewMemoryTarget(name string) *MemoryTarget {
	if name == "" {
		name = "memory"
	}
	return &MemoryTarget{
		name:    name,
		objects: make(map[string]memoryObject),
	}
}

func (m *MemoryTarget) Name() string {
	return m.name
}

func (m *MemoryTarget) Put(_ context.Context, key string, body io.Reader, opts PutOptions) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, contentType: opts.ContentType}
	return nil
}

func (m *MemoryTarget) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryTarget) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryTarget) Ping(context.Context) error {
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryTarget) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
