package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/raterudder/pricewatch/pkg/log"
	"github.com/raterudder/pricewatch/pkg/monitor"
	"github.com/raterudder/pricewatch/pkg/types"
	"github.com/raterudder/pricewatch/pkg/utility"
)

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := s.monitor.RunOnce(ctx)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "update failed", slog.Any("error", err))
		if errors.Is(err, utility.ErrPriceUnavailable) {
			writeJSONError(w, "price unavailable", http.StatusBadGateway)
			return
		}
		writeJSONError(w, "update failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// SendTestReq is the request type for POST /api/test.
type SendTestReq struct {
	Channel types.Channel `json:"channel"`
	// Price is shown in the message. The current price is used when empty.
	Price string `json:"price"`
}

// SendTestRes is the response type for POST /api/test.
type SendTestRes struct {
	Attempted int      `json:"attempted"`
	Delivered int      `json:"delivered"`
	Errors    []string `json:"errors,omitempty"`
}

func (s *Server) handleSendTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	var req SendTestReq
	if err := decodeJSON(r, &req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode test request", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	channel := types.ChannelCharge
	if req.Channel != "" {
		var err error
		channel, err = types.ParseChannel(string(req.Channel))
		if err != nil {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	res, err := s.monitor.SendTest(ctx, channel, req.Price)
	if errors.Is(err, monitor.ErrNoRecipients) {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := SendTestRes{
		Attempted: res.Attempted,
		Delivered: res.Delivered,
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to send test message", slog.Any("error", err))
		if res.Attempted == 0 {
			writeJSONError(w, "failed to send test message", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
