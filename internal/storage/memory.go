package storage

import (
	"context"
	"sync"
)

// Object is a blob held by Memory
type Object struct {
	Data        []byte
	ContentType string
}

// Memory is an in-process Uploader for tests and local runs
type Memory struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object
}

// NewMemory creates an empty store whose URLs start with baseURL
func NewMemory(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "memory://"
	}
	return &Memory{baseURL: baseURL, objects: make(map[string]Object)}
}

// Upload stores a copy of blob
func (m *Memory) Upload(ctx context.Context, bucket, objectPath string, blob []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateObject(bucket, objectPath, blob); err != nil {
		return "", err
	}

	data := make([]byte, len(blob))
	copy(data, blob)

	m.mu.Lock()
	m.objects[bucket+"/"+objectPath] = Object{Data: data, ContentType: contentType}
	m.mu.Unlock()

	return m.baseURL + bucket + "/" + objectPath, nil
}

// Get returns a stored object
func (m *Memory) Get(bucket, objectPath string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket+"/"+objectPath]
	return obj, ok
}

// Len returns the number of stored objects
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
