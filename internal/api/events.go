package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Event types published after mutations.
const (
	EventChargesAssigned       = "charges_assigned"
	EventChargeUpdated         = "charge_updated"
	EventStatementUploaded     = "statement_uploaded"
	EventStatementParsed       = "statement_parsed"
	EventStatementDeleted      = "statement_deleted"
	EventAutoAssociations      = "auto_associations_refreshed"
	EventAutoAssociationSet    = "auto_association_set"
	EventMerchantsRenormalized = "merchants_renormalized"
)

// Event records one mutation.
type Event struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	User      string         `json:"user,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publish appends an event to the ring buffer and fans it out to stream
// subscribers. Subscribers that are behind miss the event.
func (s *Server) Publish(typ, user string, data map[string]any) Event {
	s.mu.Lock()
	s.nextEventID++
	ev := Event{
		ID:        s.nextEventID,
		Type:      typ,
		Timestamp: s.cfg.Now(),
		User:      user,
		Data:      data,
	}
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"event": typ, "event_id": ev.ID}).Debug("event published")
	return ev
}

// Events returns a copy of the buffered events, oldest first.
func (s *Server) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Events())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	writeSSE(w, "status", s.snapshotStatus())
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.quit:
			return
		case ev := <-ch:
			writeSSE(w, ev.Type, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, typ string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", typ)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Server) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Server) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
