package notify

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
)

const writeWait = 10 * time.Second

// Upgrader is shared by the websocket endpoints. Origins are not checked:
// the observer runs inside the meeting page, whose origin varies.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams notifications to a websocket client. The client
// first receives the current state, then every notification as it happens.
func WebSocketHandler(b *Broadcaster, state func() models.State) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		defer conn.Close()

		sub := b.Subscribe()
		defer sub.Close()

		b.metrics.WebSocketClients.Inc()
		defer b.metrics.WebSocketClients.Dec()

		current := state()
		initial := models.Notification{
			EventType:   models.EventTranscriptUpdated,
			MeetingID:   current.MeetingID,
			Timestamp:   time.Now().UnixMilli(),
			Transcript:  current.Transcript,
			IsRecording: &current.IsRecording,
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(initial); err != nil {
			return
		}

		// Reads only detect the client going away.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-gone:
				return
			case <-r.Context().Done():
				return
			case n, ok := <-sub.C:
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(n); err != nil {
					b.logger.Debug().Err(err).Msg("WebSocket write failed")
					return
				}
			}
		}
	}
}
