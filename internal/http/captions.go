package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/notify"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/logging"
)

const captionReadLimit = 16 << 10

// captions accepts a websocket from the in-page caption observer. Each text
// message is one JSON fragment. Invalid messages are answered with an error
// object and otherwise ignored; the connection stays open.
func (h *handler) captions(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithComponent("http.captions")

	conn, err := notify.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("Caption websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(captionReadLimit)

	logger.Info().Str("remote", r.RemoteAddr).Msg("Caption observer connected")
	received := 0
	defer func() {
		logger.Info().Int("fragments", received).Msg("Caption observer disconnected")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("Caption websocket read failed")
			}
			return
		}
		var f models.Fragment
		if err := json.Unmarshal(data, &f); err != nil {
			if werr := conn.WriteJSON(errorResponse{Error: err.Error()}); werr != nil {
				return
			}
			continue
		}
		if err := h.validator.ValidateFragment(f); err != nil {
			if werr := conn.WriteJSON(errorResponse{Error: err.Error()}); werr != nil {
				return
			}
			continue
		}
		if f.ArrivalTime.IsZero() {
			f.ArrivalTime = time.Now()
		}
		received++
		h.ctrl.Ingest(f)
	}
}
