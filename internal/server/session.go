package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/pomokey/pomokey/internal/models"
	"github.com/pomokey/pomokey/internal/selector"
	"github.com/pomokey/pomokey/internal/shared"
	"github.com/pomokey/pomokey/internal/tasks"
)

// Message is one inbound client message posted to the session endpoint.
//
// Type selects the pipeline operation: "authenticate", "load_tracks", or
// "generate". The remaining fields parameterize the selected operation.
type Message struct {
	Type string `json:"type"`

	// authenticate
	Code string `json:"code,omitempty"`

	// generate
	Name             string  `json:"name,omitempty"`
	Key              *int    `json:"key,omitempty"`  // nil means any
	Mode             *int    `json:"mode,omitempty"` // nil means any
	Strategy         string  `json:"strategy,omitempty"`
	ToggleMajorMinor bool    `json:"toggle_major_minor,omitempty"`
	TargetDurationMS int     `json:"target_duration_ms,omitempty"`
	MinTrackMS       int     `json:"min_track_ms,omitempty"`
	MaxTrackMS       int     `json:"max_track_ms,omitempty"`
	MinEnergy        float64 `json:"min_energy,omitempty"`
	MaxEnergy        float64 `json:"max_energy,omitempty"`
	Seed             int64   `json:"seed,omitempty"`
}

// Event is one outbound event on the session's SSE stream.
type Event struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ClientID string `json:"client_id,omitempty"`
	Data     any    `json:"data,omitempty"`
}

// SessionHandler exposes the generation pipeline to a browser client.
//
// Clients POST [Message] values to /api and consume [Event] values from the
// /api/events SSE stream. A single worker goroutine drains the inbox, so
// messages are processed strictly in arrival order and pipeline operations
// never overlap. Implements the [Handler] interface.
type SessionHandler struct {
	engine      *tasks.Engine
	clientID    string
	redirectURI string
	logger      *log.Logger

	inbox       chan Message
	events      chan Event
	startWorker sync.Once

	// session is owned by the worker goroutine after the first message.
	session *tasks.Session
}

// NewSessionHandler creates a session handler backed by the given engine.
//
// clientID is surfaced in authenticate events so the web client can start the
// authorization flow; redirectURI is where the resulting code lands.
func NewSessionHandler(engine *tasks.Engine, clientID, redirectURI string, logger *log.Logger) *SessionHandler {
	return &SessionHandler{
		engine:      engine,
		clientID:    clientID,
		redirectURI: redirectURI,
		logger:      logger,
		inbox:       make(chan Message, 16),
		events:      make(chan Event, 256),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *SessionHandler) Routes() []string {
	return []string{"/api", "/api/events"}
}

// ServeHTTP dispatches to the message endpoint or the event stream.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleMessage(w, r)
	case "/api/events":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleEvents(w, r)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleMessage validates and enqueues an inbound message.
func (h *SessionHandler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "Invalid message", http.StatusBadRequest)
		return
	}

	switch msg.Type {
	case "authenticate", "load_tracks", "generate":
	default:
		http.Error(w, fmt.Sprintf("Unknown message type %q", msg.Type), http.StatusBadRequest)
		return
	}

	h.startWorker.Do(func() { go h.worker() })

	select {
	case h.inbox <- msg:
	default:
		http.Error(w, "Session busy", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// handleEvents streams session events as server-sent events until the client
// disconnects. A session assumes a single stream consumer.
func (h *SessionHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-h.events:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// emit queues an event for the stream without blocking the worker.
func (h *SessionHandler) emit(event Event) {
	select {
	case h.events <- event:
	default:
		// No consumer keeping up, drop the event.
	}
}

// worker drains the inbox one message at a time.
func (h *SessionHandler) worker() {
	for msg := range h.inbox {
		h.dispatch(context.Background(), msg)
	}
}

// dispatch runs one pipeline operation, bridging its progress channel onto
// the event stream.
func (h *SessionHandler) dispatch(ctx context.Context, msg Message) {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			h.emit(Event{Type: "message", Text: update.Message})
		}
	}()

	err := h.run(ctx, progress, msg)

	close(progress)
	<-done

	switch {
	case err == nil:
	case errors.Is(err, shared.ErrMissingCredentials), errors.Is(err, shared.ErrTokenExpired):
		// The client must (re)authorize before anything else can proceed.
		h.session = nil
		h.emit(Event{Type: "authenticate", ClientID: h.clientID})
	default:
		if h.logger != nil {
			h.logger.Error("session operation failed", "type", msg.Type, "error", err)
		}
		h.emit(Event{Type: "message", Text: fmt.Sprintf("Error: %v", err)})
	}
}

func (h *SessionHandler) run(ctx context.Context, progress chan<- tasks.ProgressUpdate, msg Message) error {
	switch msg.Type {
	case "authenticate":
		session, err := h.engine.Authenticate(ctx, progress, tasks.AuthRequest{Code: msg.Code, RedirectURI: h.redirectURI})
		if err != nil {
			return err
		}
		h.session = session
		return nil

	case "load_tracks":
		if h.session == nil {
			return shared.ErrMissingCredentials
		}
		_, err := h.session.LoadTracks(ctx, progress)
		return err

	case "generate":
		if h.session == nil {
			return shared.ErrMissingCredentials
		}
		req, err := buildGenerateRequest(msg)
		if err != nil {
			return err
		}
		result, err := h.session.Generate(ctx, progress, req)
		if err != nil {
			return err
		}
		h.emit(Event{Type: "result", Data: result})
		return nil
	}

	return fmt.Errorf("%w: unknown message type %q", shared.ErrInvalidArgument, msg.Type)
}

// buildGenerateRequest maps a generate message onto the pipeline request,
// filling unconstrained defaults for omitted bounds.
func buildGenerateRequest(msg Message) (tasks.GenerateRequest, error) {
	strategy := models.StrategyNone
	if msg.Strategy != "" {
		parsed, err := models.ParseStrategy(msg.Strategy)
		if err != nil {
			return tasks.GenerateRequest{}, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
		}
		strategy = parsed
	}

	selection := selector.Request{
		Key:              models.Any,
		Mode:             models.Any,
		Strategy:         strategy,
		ToggleMajorMinor: msg.ToggleMajorMinor,
		TargetDurationMS: msg.TargetDurationMS,
		MinTrackMS:       msg.MinTrackMS,
		MaxTrackMS:       msg.MaxTrackMS,
		MinEnergy:        msg.MinEnergy,
		MaxEnergy:        msg.MaxEnergy,
	}
	if msg.Key != nil {
		selection.Key = *msg.Key
	}
	if msg.Mode != nil {
		selection.Mode = *msg.Mode
	}
	if selection.MaxTrackMS <= 0 {
		selection.MaxTrackMS = 1 << 30
	}
	if selection.MaxEnergy <= 0 {
		selection.MaxEnergy = models.EnergyUnknown
	}

	return tasks.GenerateRequest{
		Name:      msg.Name,
		Seed:      msg.Seed,
		Selection: selection,
	}, nil
}
