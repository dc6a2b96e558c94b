package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/logflow/pmdiscover/pkg/interfaces"
)

// MemoryObject is an object held by MemoryStorage.
type MemoryObject struct {
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

// MemoryStorage keeps objects in memory. It backs tests and dry runs.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string]MemoryObject

	// FailPut, when set, is returned by Put for matching paths.
	FailPut func(path string) error
	// FailExists, when set, is returned by Exists for matching paths.
	FailExists func(path string) error
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]MemoryObject)}
}

func (s *MemoryStorage) Scheme() string {
	return "mem"
}

func (s *MemoryStorage) Put(ctx context.Context, path string, data io.Reader, opts interfaces.PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.FailPut != nil {
		if err := s.FailPut(path); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; ok && opts.IfNotExists {
		return fmt.Errorf("%w: %s", interfaces.ErrObjectExists, path)
	}
	md := make(map[string]string, len(opts.Metadata))
	for k, v := range opts.Metadata {
		md[k] = v
	}
	s.objects[path] = MemoryObject{Data: buf.Bytes(), ContentType: opts.ContentType, Metadata: md}
	return nil
}

func (s *MemoryStorage) Exists(ctx context.Context, path string) (bool, error) {
	if s.FailExists != nil {
		if err := s.FailExists(path); err != nil {
			return false, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok, nil
}

// Get returns a stored object.
func (s *MemoryStorage) Get(path string) (MemoryObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[path]
	return o, ok
}

// Keys returns the stored paths in sorted order.
func (s *MemoryStorage) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ interfaces.ObjectStorage = (*MemoryStorage)(nil)
