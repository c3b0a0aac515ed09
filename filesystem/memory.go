package filesystem

import (
	"context"
	"sort"
	"sync"
)

// Memory holds templates in a map. It is safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewMemory creates a Memory file system holding a copy of templates.
func NewMemory(templates map[string]string) *Memory {
	m := &Memory{templates: make(map[string]string, len(templates))}
	for k, v := range templates {
		m.templates[k] = v
	}
	return m
}

func (m *Memory) ReadTemplate(_ context.Context, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.templates[name]
	if !ok {
		return "", notFound(name)
	}
	return s, nil
}

func (m *Memory) WriteTemplate(_ context.Context, name, source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[name] = source
	return nil
}

// Names returns the stored template names in order.
func (m *Memory) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.templates))
	for k := range m.templates {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
