package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/eventsnap/internal/common"
)

// MemoryStore keeps objects in a map. It backs local runs without MinIO and
// the package tests of the pipeline.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	baseURL string
}

type memObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore returns an empty store whose signed links are rooted at baseURL.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{objects: make(map[string]memObject), baseURL: baseURL}
}

// Put stores data at key, replacing any previous object.
func (m *MemoryStore) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: append([]byte(nil), data...)}
}

// Get returns a copy of the object and whether it exists.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), o.data...), true
}

// Keys lists stored keys in lexical order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MemoryStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.Get(key)
	if !ok {
		return nil, fmt.Errorf("get object %q: %w", key, common.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemoryStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put object %q: %w: %w", key, common.ErrStorage, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (m *MemoryStore) SignedURL(ctx context.Context, key string, ttl time.Duration, downloadName string) (string, time.Time, error) {
	if _, ok := m.Get(key); !ok {
		return "", time.Time{}, fmt.Errorf("presign get %q: %w", key, common.ErrNotFound)
	}
	expires := now().Add(ttl)
	q := url.Values{}
	q.Set("expires", fmt.Sprint(expires.Unix()))
	if downloadName != "" {
		q.Set("filename", downloadName)
	}
	return m.baseURL + key + "?" + q.Encode(), expires, nil
}

func (m *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.objects, k)
	}
	return nil
}

func (m *MemoryStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Size(ctx context.Context, key string) (int64, error) {
	data, ok := m.Get(key)
	if !ok {
		return 0, fmt.Errorf("head object %q: %w", key, common.ErrNotFound)
	}
	return int64(len(data)), nil
}
