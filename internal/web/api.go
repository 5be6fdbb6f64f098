package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/leandrotocalini/boardroom/internal/advisor"
	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/render"
)

// turnJSON is a turn as sent to the browser. Agent replies carry rendered
// HTML next to the raw markdown.
type turnJSON struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	HTML      string         `json:"html,omitempty"`
	Sender    agent.Sender   `json:"sender"`
	Agent     agent.Identity `json:"agent,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func toTurnJSON(t agent.Turn) turnJSON {
	out := turnJSON{
		ID:        t.ID,
		Content:   t.Content,
		Sender:    t.Sender,
		Agent:     t.Agent,
		Timestamp: t.Timestamp,
	}
	if t.Sender == agent.SenderAgent {
		if html, err := render.HTML(t.Content); err == nil {
			out.HTML = html
		}
	}
	return out
}

type replyJSON struct {
	Agent      agent.Identity `json:"agent"`
	Turn       turnJSON       `json:"turn"`
	Failed     bool           `json:"failed,omitempty"`
	DurationMS int64          `json:"durationMs"`
}

func toReplyJSON(r advisor.Reply) replyJSON {
	return replyJSON{
		Agent:      r.Agent,
		Turn:       toTurnJSON(r.Turn),
		Failed:     r.Failed,
		DurationMS: r.Duration.Milliseconds(),
	}
}

type ideaJSON struct {
	Idea string `json:"idea"`
}

type messageJSON struct {
	Message string `json:"message"`
}

type agentJSON struct {
	agent.Profile
	Model string `json:"model"`
}

// maxBodyBytes caps request bodies and websocket frames.
const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func (s *Server) handleGetIdea(w http.ResponseWriter, r *http.Request) {
	idea, err := s.svc.Idea(r.Context(), sessionID(w, r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ideaJSON{Idea: idea})
}

func (s *Server) handlePutIdea(w http.ResponseWriter, r *http.Request) {
	session := sessionID(w, r)
	var body ideaJSON
	if err := decodeBody(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err := s.svc.SetIdea(r.Context(), session, body.Idea); err != nil {
		s.writeError(w, err)
		return
	}
	idea, err := s.svc.Idea(r.Context(), session)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ideaJSON{Idea: idea})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reset(r.Context(), sessionID(w, r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	out := make([]agentJSON, 0, len(agent.All()))
	for _, id := range agent.All() {
		out = append(out, agentJSON{Profile: agent.ProfileOf(id), Model: s.svc.Model(id)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := agent.Parse(r.PathValue("agent"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	turns, err := s.svc.History(r.Context(), sessionID(w, r), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]turnJSON, len(turns))
	for i, t := range turns {
		out[i] = toTurnJSON(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	session := sessionID(w, r)
	id, err := agent.Parse(r.PathValue("agent"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var body messageJSON
	if err := decodeBody(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	reply, err := s.svc.Ask(r.Context(), session, id, body.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReplyJSON(reply))
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	session := sessionID(w, r)
	var body messageJSON
	if err := decodeBody(w, r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	replies, err := s.svc.Board(r.Context(), session, body.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]replyJSON, len(replies))
	for i, rep := range replies {
		out[i] = toReplyJSON(rep)
	}
	writeJSON(w, http.StatusOK, out)
}
