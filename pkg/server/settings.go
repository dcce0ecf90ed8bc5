package server

import (
	"log/slog"
	"net/http"

	"github.com/raterudder/pricewatch/pkg/common"
	"github.com/raterudder/pricewatch/pkg/log"
	"github.com/raterudder/pricewatch/pkg/types"
)

// StatusRes is the response type for GET /api/status.
type StatusRes struct {
	State    types.State    `json:"state"`
	Settings types.Settings `json:"settings"`
	Version  string         `json:"version"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state, settings, err := s.monitor.Status(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get status", slog.Any("error", err))
		writeJSONError(w, "failed to get status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, StatusRes{
		State:    state,
		Settings: settings,
		Version:  common.Version(),
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings, err := s.monitor.Settings(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettingsRes is the response type for POST /api/settings.
type UpdateSettingsRes struct {
	Changes  []string       `json:"changes"`
	Settings types.Settings `json:"settings"`
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Limit body size to 1MB to prevent DoS
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	var patch types.SettingsPatch
	if err := decodeJSON(r, &patch); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode settings", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if patch.Empty() {
		writeJSONError(w, "no changes requested", http.StatusBadRequest)
		return
	}

	updatedBy := s.getEmail(r)
	if updatedBy == "" {
		updatedBy = "api"
	}

	var applyErr error
	changes, err := s.monitor.UpdateSettings(ctx, updatedBy, func(settings *types.Settings) error {
		applyErr = patch.Apply(settings)
		if applyErr != nil {
			return applyErr
		}
		applyErr = settings.Validate()
		return applyErr
	})
	if applyErr != nil {
		writeJSONError(w, applyErr.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to update settings", slog.Any("error", err))
		writeJSONError(w, "failed to update settings", http.StatusInternalServerError)
		return
	}

	settings, err := s.monitor.Settings(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}
	if changes == nil {
		changes = []string{}
	}
	writeJSON(w, http.StatusOK, UpdateSettingsRes{
		Changes:  changes,
		Settings: settings,
	})
}
