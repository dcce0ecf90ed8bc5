package utility

import (
	"fmt"
	"sync"

	"github.com/levenlabs/go-lflag"
)

// Configured sets up the utility providers based on flags and returns a Map
// whose Current provider is the one selected by --utility-provider.
func Configured() *Map {
	m := NewMap()
	name := lflag.String("utility-provider", "comed", "Price source to use (available: comed, mock)")

	comed := configuredComEd()
	mock := configuredMock()

	lflag.Do(func() {
		m.SetProvider("comed", comed)
		m.SetProvider("mock", mock)
		if err := comed.Validate(); err != nil && *name == "comed" {
			panic(fmt.Sprintf("comed validation failed: %v", err))
		}
		m.current = *name
		if _, err := m.Provider(*name); err != nil {
			panic(err.Error())
		}
	})
	return m
}

// Map manages utility providers.
type Map struct {
	mu        sync.Mutex
	current   string
	providers map[string]Provider
}

// NewMap creates a new Utility Map.
func NewMap() *Map {
	return &Map{
		providers: make(map[string]Provider),
	}
}

// Provider returns the provider for the given name.
func (m *Map) Provider(name string) (Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prov, ok := m.providers[name]; ok {
		return prov, nil
	}
	return nil, fmt.Errorf("unknown utility provider: %s", name)
}

// Current returns the configured provider.
func (m *Map) Current() (Provider, error) {
	m.mu.Lock()
	name := m.current
	m.mu.Unlock()
	return m.Provider(name)
}

// SetProvider sets the provider for the given name. This is primarily used for testing.
func (m *Map) SetProvider(name string, provider Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = provider
	if m.current == "" {
		m.current = name
	}
}

// SetCurrent selects which provider Current returns.
func (m *Map) SetCurrent(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = name
}
