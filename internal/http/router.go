package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pedrobernardi/sonara-meet-transcriber/internal/models"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/notify"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/observability/logging"
	"github.com/pedrobernardi/sonara-meet-transcriber/internal/schema"
)

// maxBodyBytes bounds fragment request bodies.
const maxBodyBytes = 64 << 10

// Controller is the engine surface exposed over HTTP.
type Controller interface {
	Ingest(f models.Fragment)
	StartRecording()
	StopRecording()
	ClearTranscript()
	State() models.State
}

type handler struct {
	ctrl      Controller
	validator *schema.Validator
}

// NewRouter constructs the HTTP router for the service. hub may be nil, in
// which case the notification websocket is not mounted.
func NewRouter(ctrl Controller, hub *notify.Broadcaster, validator *schema.Validator) http.Handler {
	if validator == nil {
		validator = schema.New()
	}
	h := &handler{ctrl: ctrl, validator: validator}

	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Post("/recording/start", h.startRecording)
		r.Post("/recording/stop", h.stopRecording)
		r.Post("/transcript/clear", h.clearTranscript)
		r.With(middleware.AllowContentType("application/json")).Post("/fragments", h.ingest)

		r.Get("/ws/captions", h.captions)
		if hub != nil {
			r.Get("/ws", notify.WebSocketHandler(hub, ctrl.State))
		}
	})

	return r
}

func (h *handler) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

func (h *handler) startRecording(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.StartRecording()
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

func (h *handler) stopRecording(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.StopRecording()
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

func (h *handler) clearTranscript(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.ClearTranscript()
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

type ingestResponse struct {
	Accepted  int  `json:"accepted"`
	Recording bool `json:"recording"`
}

// ingest accepts one fragment object or an array of them. The whole batch is
// validated before anything reaches the engine.
func (h *handler) ingest(w http.ResponseWriter, r *http.Request) {
	fragments, err := decodeFragments(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	now := time.Now()
	for i := range fragments {
		if err := h.validator.ValidateFragment(fragments[i]); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		if fragments[i].ArrivalTime.IsZero() {
			fragments[i].ArrivalTime = now
		}
	}
	for _, f := range fragments {
		h.ctrl.Ingest(f)
	}
	writeJSON(w, http.StatusAccepted, ingestResponse{
		Accepted:  len(fragments),
		Recording: h.ctrl.State().IsRecording,
	})
}

func decodeFragments(body io.Reader) ([]models.Fragment, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		return nil, err
	}
	if len(raw) > 0 && raw[0] == '[' {
		var batch []models.Fragment
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return nil, errors.New("empty fragment batch")
		}
		return batch, nil
	}
	var f models.Fragment
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return []models.Fragment{f}, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := logging.WithComponent("http")
		logger.Debug().Err(err).Msg("Failed to write response")
	}
}
