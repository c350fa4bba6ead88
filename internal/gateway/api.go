// ABOUTME: HTTP API handlers for agents, rooms, messages, and SSE streaming.
// ABOUTME: JSON in, JSON out, except the stream endpoint which speaks SSE.

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agoradev/agora/internal/chat"
)

type createAgentRequest struct {
	Name string `json:"name"`
}

type agentListResponse struct {
	Agents []string `json:"agents"`
}

type promptRequest struct {
	Prompt string `json:"prompt"`
	Agent  string `json:"agent"`
}

type promptResponse struct {
	Agent    string `json:"agent"`
	Response string `json:"response"`
}

type createRoomRequest struct {
	Agents []string `json:"agents"`
}

type createRoomResponse struct {
	RoomID string   `json:"room_id"`
	Agents []string `json:"agents"`
}

type roomListResponse struct {
	Rooms []string `json:"rooms"`
}

type sendMessageRequest struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

type historyResponse struct {
	RoomID   string          `json:"room_id"`
	Messages []*chat.Message `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// handleAgents serves the agent collection: GET lists, POST creates.
func (g *Gateway) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, agentListResponse{Agents: g.agents.Names()})
	case http.MethodPost:
		var req createAgentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "agent name is required")
			return
		}
		if !g.agents.Create(name) {
			writeError(w, http.StatusConflict, "agent %q already exists", name)
			return
		}
		g.logger.Info("agent created", "agent", name)
		writeJSON(w, http.StatusCreated, createAgentRequest{Name: name})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleAgentRoutes serves /api/agents/{name}.
func (g *Gateway) handleAgentRoutes(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/agents/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !g.agents.Remove(name) {
		writeError(w, http.StatusNotFound, "no agent named %q", name)
		return
	}
	g.logger.Info("agent removed", "agent", name)
	w.WriteHeader(http.StatusNoContent)
}

// handleDirectPrompt sends a one-off prompt to a single agent outside any
// room. Soft failures come back as plain text in the response field.
func (g *Gateway) handleDirectPrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" || strings.TrimSpace(req.Agent) == "" {
		writeError(w, http.StatusBadRequest, "prompt and agent are required")
		return
	}

	reply := g.orch.PostDirect(r.Context(), req.Prompt, req.Agent)
	writeJSON(w, http.StatusOK, promptResponse{Agent: req.Agent, Response: reply})
}

// handleRooms serves the room collection: GET lists, POST creates.
func (g *Gateway) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, roomListResponse{Rooms: g.orch.ListRooms()})
	case http.MethodPost:
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if len(req.Agents) == 0 {
			writeError(w, http.StatusBadRequest, "at least one agent is required")
			return
		}

		roomID := g.orch.CreateRoom(req.Agents)
		participants, _ := g.orch.Participants(roomID)
		writeJSON(w, http.StatusCreated, createRoomResponse{RoomID: roomID, Agents: participants})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRoomRoutes dispatches /api/rooms/{id} and its subresources.
func (g *Gateway) handleRoomRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		g.handleRoom(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "messages":
		g.handleRoomMessages(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "stream":
		g.handleRoomStream(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (g *Gateway) handleRoom(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !g.orch.DeleteRoom(roomID) {
		writeError(w, http.StatusNotFound, "no room %q", roomID)
		return
	}
	g.logger.Info("room deleted", "room_id", roomID)
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleRoomMessages(w http.ResponseWriter, r *http.Request, roomID string) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, historyResponse{RoomID: roomID, Messages: g.orch.GetHistory(roomID)})
	case http.MethodPost:
		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			writeError(w, http.StatusBadRequest, "content is required")
			return
		}
		sender := strings.TrimSpace(req.Sender)
		if sender == "" {
			sender = "operator"
		}

		msg, err := g.orch.SendMessage(r.Context(), roomID, sender, req.Content)
		if err != nil {
			if errors.Is(err, chat.ErrRoomNotFound) {
				writeError(w, http.StatusNotFound, "no room %q", roomID)
				return
			}
			writeError(w, http.StatusInternalServerError, "sending message: %v", err)
			return
		}
		writeJSON(w, http.StatusAccepted, msg)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRoomStream streams room messages as Server-Sent Events. The
// subscription rides the request context, so a dropped client cleans
// itself up.
func (g *Gateway) handleRoomStream(w http.ResponseWriter, r *http.Request, roomID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := g.orch.Participants(roomID); !ok {
		writeError(w, http.StatusNotFound, "no room %q", roomID)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	events, subID := g.viewers.Subscribe(r.Context(), roomID)
	g.logger.Debug("viewer connected", "room_id", roomID, "subscription", subID)

	fmt.Fprintf(w, "event: connected\ndata: {\"room_id\":%q}\n\n", roomID)
	flusher.Flush()

	heartbeat := time.NewTicker(g.keepAlive)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case msg, ok := <-events:
			if !ok {
				// Room deleted out from under the viewer.
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				g.logger.Warn("failed to encode stream message", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
