package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raterudder/pricewatch/pkg/log"
	"github.com/raterudder/pricewatch/pkg/storage"
	"github.com/raterudder/pricewatch/pkg/types"
)

// UpdateSettings applies fn to the current settings, validates and persists
// the result and records the changes in the state's config history. It
// returns the list of changes, which is empty when fn changed nothing.
func (m *Monitor) UpdateSettings(ctx context.Context, updatedBy string, fn func(*types.Settings) error) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.loadSettings(ctx)
	if err != nil {
		return nil, err
	}

	next := current
	next.Recipients = types.Recipients{
		Test:   append([]string(nil), current.Recipients.Test...),
		Prod:   append([]string(nil), current.Recipients.Prod...),
		Charge: append([]string(nil), current.Recipients.Charge...),
	}
	if err := fn(&next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	changes := types.DiffSettings(current, next)
	if len(changes) == 0 {
		return nil, nil
	}

	if err := m.storage.SetSettings(ctx, next, types.CurrentSettingsVersion); err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	// unlike a run, a failed read must not fall back to the zero state here
	// since writing that back would wipe the history and charging flag
	state, err := m.storage.GetState(ctx)
	if errors.Is(err, storage.ErrCorrupt) {
		log.Ctx(ctx).WarnContext(ctx, "state is corrupt, starting config history over", slog.Any("error", err))
		state = types.State{}
	} else if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to read state for config history", slog.Any("error", err))
		return changes, fmt.Errorf("failed to read state for config history: %w", err)
	}
	state.AppendConfigHistory(types.ConfigChange{
		Timestamp: m.now(),
		UpdatedBy: updatedBy,
		Changes:   changes,
	})
	if err := m.storage.SetState(ctx, state); err != nil {
		// the settings are already saved so only the audit entry is lost
		log.Ctx(ctx).ErrorContext(ctx, "failed to save config history", slog.Any("error", err))
		return changes, fmt.Errorf("failed to save config history: %w", err)
	}

	log.Ctx(ctx).InfoContext(ctx, "updated settings", slog.String("updatedBy", updatedBy), slog.Any("changes", changes))
	return changes, nil
}
