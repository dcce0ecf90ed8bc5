package storage

import (
	"context"
	"sync"

	"github.com/raterudder/pricewatch/pkg/types"
)

// Memory implements Database in process memory. Records are kept serialized
// so callers never share slices with the store.
type Memory struct {
	mu       sync.Mutex
	state    []byte
	settings []byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// GetState returns the stored state.
func (m *Memory) GetState(ctx context.Context) (types.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return types.State{}, nil
	}
	return unmarshalState(m.state)
}

// SetState replaces the stored state.
func (m *Memory) SetState(ctx context.Context, state types.State) error {
	b, err := marshalState(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = b
	return nil
}

// GetSettings returns the stored settings.
func (m *Memory) GetSettings(ctx context.Context) (types.Settings, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return types.Settings{}, 0, nil
	}
	return unmarshalSettings(m.settings)
}

// SetSettings replaces the stored settings.
func (m *Memory) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	b, err := marshalSettings(settings, version)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = b
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
