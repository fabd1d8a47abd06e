package keeper_test

import (
	"bytes"
	"sync"
)

// memStore is a minimal in-memory keeper.Store for tests, standing in for
// a real cosmossdk.io/store/types.KVStore backed by IAVL.
type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (s *memStore) Get(key []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (s *memStore) Set(key, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[string(key)] = bytes.Clone(value)
}

func (s *memStore) Delete(key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, string(key))
}

func (s *memStore) Has(key []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[string(key)]
	return ok
}
