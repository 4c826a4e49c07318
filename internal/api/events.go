package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/akshayreddy1906/gemini-resume/internal/history"
	"github.com/akshayreddy1906/gemini-resume/internal/pipeline"
)

const (
	eventBuffer       = 32
	keepAliveInterval = 15 * time.Second
)

type event struct {
	name string
	data any
}

// handleEvents streams state changes and new history entries as
// server-sent events. The current state is sent first. Events are dropped
// for a client that falls more than eventBuffer behind.
func handleEvents(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		events := make(chan event, eventBuffer)
		send := func(ev event) {
			select {
			case events <- ev:
			default:
				deps.Logger.Debug("dropping event for slow client", "event", ev.name)
			}
		}

		cancelState := deps.Orchestrator.Subscribe(func(st pipeline.State) {
			send(event{name: "state", data: st})
		})
		defer cancelState()
		cancelHistory := deps.Orchestrator.History().Subscribe(func(e history.Entry) {
			send(event{name: "history", data: e})
		})
		defer cancelHistory()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		if err := writeEvent(w, event{name: "state", data: deps.Orchestrator.State()}); err != nil {
			return
		}
		flusher.Flush()

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev := <-events:
				if err := writeEvent(w, ev); err != nil {
					deps.Logger.Debug("event stream closed", "error", err)
					return
				}
				flusher.Flush()
			case <-ticker.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, ev event) error {
	payload, err := json.Marshal(ev.data)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", ev.name, err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, payload)
	return err
}
