package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/irbridge"
	"github.com/nerrad567/gray-logic-irbridge/internal/entity"
	"github.com/nerrad567/gray-logic-irbridge/internal/history"
)

// SendCommandRequest is the body of POST /entities/{id}/send_command.
type SendCommandRequest struct {
	Commands    []string `json:"commands"`
	RepeatCount int      `json:"repeat_count,omitempty"`
}

// handleListEntities returns every entity in registration order.
func (s *Server) handleListEntities(w http.ResponseWriter, _ *http.Request) {
	snaps := s.bridge.Platform().Snapshots()
	writeJSON(w, http.StatusOK, map[string]any{"entities": snaps, "count": len(snaps)})
}

// handleGetEntity returns one entity's snapshot.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	e, ok := s.bridge.Platform().Entity(id)
	if !ok {
		writeNotFound(w, "unknown entity: "+id)
		return
	}
	writeJSON(w, http.StatusOK, e.Snapshot())
}

func (s *Server) handleTurnOn(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, irbridge.Request{Command: irbridge.CommandTurnOn})
}

func (s *Server) handleTurnOff(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, irbridge.Request{Command: irbridge.CommandTurnOff})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.execute(w, r, irbridge.Request{Command: irbridge.CommandUpdate})
}

// handleSendCommand replays named commands on a remote.
func (s *Server) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	var body SendCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			writeBadRequest(w, "request body is required")
			return
		}
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(body.Commands) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "commands is required")
		return
	}

	s.execute(w, r, irbridge.Request{
		Command:     irbridge.CommandSendCommand,
		Commands:    body.Commands,
		RepeatCount: body.RepeatCount,
	})
}

// execute runs req against the entity named in the URL and answers with
// the entity's snapshot after the action.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, req irbridge.Request) {
	req.EntityID = chi.URLParam(r, "id")
	req.Source = "api"

	ctx, cancel := context.WithTimeout(r.Context(), req.Timeout())
	defer cancel()

	snap, err := s.runCommand(ctx, req)
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// runCommand executes req and returns the entity's snapshot afterwards.
// It backs both the REST action routes and WebSocket command messages.
func (s *Server) runCommand(ctx context.Context, req irbridge.Request) (entity.Snapshot, error) {
	if err := s.bridge.Execute(ctx, req); err != nil {
		return entity.Snapshot{}, err
	}
	e, ok := s.bridge.Platform().Entity(req.EntityID)
	if !ok {
		return entity.Snapshot{}, fmt.Errorf("%w: %s", irbridge.ErrUnknownEntity, req.EntityID)
	}
	return e.Snapshot(), nil
}

// handleEntityHistory returns the most recent command log entries of one
// entity, newest first.
//
// Query parameters:
//   - limit: page size, 1-500 (default 50)
func (s *Server) handleEntityHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "history is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if _, ok := s.bridge.Platform().Entity(id); !ok {
		writeNotFound(w, "unknown entity: "+id)
		return
	}

	limit := history.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, history.MaxLimit)
	}

	entries, err := s.history.List(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("failed to list history", "entity_id", id, "error", err)
		writeInternalError(w, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries, "count": len(entries)})
}

// handleResolve resolves an ad-hoc list of command names into an on/off
// pair. Names may be repeated (?command=a&command=b) or comma separated.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var names []string
	for _, v := range r.URL.Query()["command"] {
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}
	if len(names) == 0 {
		writeBadRequest(w, "at least one command query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, irbridge.ResolveNames(names))
}
