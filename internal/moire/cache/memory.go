package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Memory struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemory keeps up to entries renders in process. ttl<=0 disables expiry.
func NewMemory(entries int, ttl time.Duration) (*Memory, error) {
	if entries <= 0 {
		return nil, fmt.Errorf("memory cache needs a positive size, got %d", entries)
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](entries, nil, ttl)}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte) error {
	m.lru.Add(key, val)
	return nil
}

func (m *Memory) Len() int { return m.lru.Len() }

func (m *Memory) Backend() string { return "memory" }

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}
