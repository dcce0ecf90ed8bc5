package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/pricewatch/pkg/types"
)

// FileProvider implements Database with two JSON files on local disk. Writes
// go to a temporary file that is renamed over the target so a crash never
// leaves a half-written record.
type FileProvider struct {
	statePath    string
	settingsPath string

	mu sync.Mutex
}

// NewFileProvider returns a FileProvider for the given paths.
func NewFileProvider(statePath, settingsPath string) *FileProvider {
	return &FileProvider{
		statePath:    statePath,
		settingsPath: settingsPath,
	}
}

func configuredFile() *FileProvider {
	statePath := lflag.String("state-file", "state.json", "Path of the state file (file storage)")
	settingsPath := lflag.String("settings-file", "settings.json", "Path of the settings file (file storage)")

	f := &FileProvider{}
	lflag.Do(func() {
		f.statePath = *statePath
		f.settingsPath = *settingsPath
	})
	return f
}

// Validate checks if the provider is properly configured.
func (f *FileProvider) Validate() error {
	if f.statePath == "" {
		return errors.New("state-file is required")
	}
	if f.settingsPath == "" {
		return errors.New("settings-file is required")
	}
	if filepath.Clean(f.statePath) == filepath.Clean(f.settingsPath) {
		return errors.New("state-file and settings-file must differ")
	}
	return nil
}

func (f *FileProvider) read(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return b, nil
}

func (f *FileProvider) write(path string, b []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// GetState reads the state file.
func (f *FileProvider) GetState(ctx context.Context) (types.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := f.read(f.statePath)
	if err != nil || b == nil {
		return types.State{}, err
	}
	return unmarshalState(b)
}

// SetState replaces the state file.
func (f *FileProvider) SetState(ctx context.Context, state types.State) error {
	b, err := marshalStateIndent(state)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(f.statePath, b)
}

// GetSettings reads the settings file.
func (f *FileProvider) GetSettings(ctx context.Context) (types.Settings, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := f.read(f.settingsPath)
	if err != nil || b == nil {
		return types.Settings{}, 0, err
	}
	return unmarshalSettings(b)
}

// SetSettings replaces the settings file.
func (f *FileProvider) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	b, err := marshalSettingsIndent(settings, version)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write(f.settingsPath, b)
}

// Close is a no-op.
func (f *FileProvider) Close() error {
	return nil
}
