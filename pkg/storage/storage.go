package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/pricewatch/pkg/types"
)

// Database persists the singleton State and Settings records. Missing records
// are not an error: GetState returns the zero State and GetSettings returns
// zero Settings with version 0. There is a single writer, so no method does
// any locking across processes.
type Database interface {
	// State
	GetState(ctx context.Context) (types.State, error)
	SetState(ctx context.Context, state types.State) error

	// Settings
	GetSettings(ctx context.Context) (types.Settings, int, error)
	SetSettings(ctx context.Context, settings types.Settings, version int) error

	// Lifecycle
	Close() error
}

// ErrCorrupt is wrapped by reads of a record that exists but cannot be
// decoded.
var ErrCorrupt = errors.New("corrupt record")

// Configured sets up the Storage provider based on flags.
func Configured() Database {
	provider := lflag.String("storage-provider", "file", "Storage provider to use (available: file, firestore, redis, postgres, memory)")

	var p struct{ Database }

	file := configuredFile()
	fs := configuredFirestore()
	rd := configuredRedis()
	pg := configuredPostgres()

	lflag.Do(func() {
		switch *provider {
		case "file":
			if err := file.Validate(); err != nil {
				panic(fmt.Sprintf("file storage validation failed: %v", err))
			}
			p.Database = file
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "redis":
			if err := rd.Validate(); err != nil {
				panic(fmt.Sprintf("redis validation failed: %v", err))
			}
			p.Database = rd
			if err := rd.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("redis init failed: %v", err))
			}
		case "postgres":
			if err := pg.Validate(); err != nil {
				panic(fmt.Sprintf("postgres validation failed: %v", err))
			}
			p.Database = pg
			if err := pg.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("postgres init failed: %v", err))
			}
		case "memory":
			p.Database = NewMemory()
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}

// settingsRecord is how settings are serialized by providers that store a
// single blob per record.
type settingsRecord struct {
	Version  int            `json:"version"`
	Settings types.Settings `json:"settings"`
}

func marshalSettingsBody(settings types.Settings) ([]byte, error) {
	b, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return b, nil
}

func unmarshalSettingsBody(b []byte) (types.Settings, error) {
	var s types.Settings
	if err := json.Unmarshal(b, &s); err != nil {
		return types.Settings{}, fmt.Errorf("%w: failed to unmarshal settings: %w", ErrCorrupt, err)
	}
	return s, nil
}

func marshalState(state types.State) ([]byte, error) {
	b, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return b, nil
}

// the file provider keeps its records human readable
func marshalStateIndent(state types.State) ([]byte, error) {
	b, err := json.MarshalIndent(state, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return b, nil
}

func marshalSettingsIndent(settings types.Settings, version int) ([]byte, error) {
	b, err := json.MarshalIndent(settingsRecord{Version: version, Settings: settings}, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return b, nil
}

func unmarshalState(b []byte) (types.State, error) {
	var s types.State
	if err := json.Unmarshal(b, &s); err != nil {
		return types.State{}, fmt.Errorf("%w: failed to unmarshal state: %w", ErrCorrupt, err)
	}
	return s, nil
}

func marshalSettings(settings types.Settings, version int) ([]byte, error) {
	b, err := json.Marshal(settingsRecord{Version: version, Settings: settings})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return b, nil
}

func unmarshalSettings(b []byte) (types.Settings, int, error) {
	var r settingsRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return types.Settings{}, 0, fmt.Errorf("%w: failed to unmarshal settings: %w", ErrCorrupt, err)
	}
	return r.Settings, r.Version, nil
}
