// Package deps stores values produced by completed calls that later calls
// depend on.
package deps

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-openapi/jsonpointer"

	"apidash/internal/model"
)

type Store struct {
	mu     sync.RWMutex
	values map[model.DependencyKey]any
}

func NewStore() *Store {
	return &Store{values: map[model.DependencyKey]any{}}
}

// Get returns the value for key. An unset key reports false; there is no
// default value.
func (s *Store) Get(key model.DependencyKey) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Store) Set(key model.DependencyKey, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Reset forgets every value.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = map[model.DependencyKey]any{}
}

// Keys returns the keys that currently hold a value.
func (s *Store) Keys() []model.DependencyKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.DependencyKey, 0, len(s.values))
	for k := range s.values {
		out = append(out, k)
	}
	return out
}

// Decode copies the value for key into out, which must be a pointer.
func (s *Store) Decode(key model.DependencyKey, out any) (bool, error) {
	v, ok := s.Get(key)
	if !ok {
		return false, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return true, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Extract resolves each output against a decoded response payload. It
// either resolves every output or returns an error.
func Extract(payload any, outputs []model.Output) (map[model.DependencyKey]any, error) {
	out := make(map[model.DependencyKey]any, len(outputs))
	for _, o := range outputs {
		ptr, err := jsonpointer.New(o.Pointer)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", o.Key, err)
		}
		v, _, err := ptr.Get(payload)
		if err != nil {
			return nil, fmt.Errorf("output %s: %w", o.Key, err)
		}
		if v == nil {
			return nil, fmt.Errorf("output %s: %q is null", o.Key, o.Pointer)
		}
		out[o.Key] = v
	}
	return out, nil
}

// Format renders a dependency value for use in a URL.
func Format(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
