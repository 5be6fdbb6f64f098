package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

// wsRequest is a frame sent by the browser.
//
//	{"type":"ask","agent":"cto","message":"..."}
//	{"type":"board","message":"..."}
//	{"type":"idea","idea":"..."}
type wsRequest struct {
	Type    string `json:"type"`
	Agent   string `json:"agent,omitempty"`
	Message string `json:"message,omitempty"`
	Idea    string `json:"idea,omitempty"`
}

// wsFrame is a frame sent to the browser. Every question produces a
// "thinking" frame per advisor followed by one "reply" frame per advisor.
type wsFrame struct {
	Type  string         `json:"type"` // thinking, reply, idea, error
	Agent agent.Identity `json:"agent,omitempty"`
	Reply *replyJSON     `json:"reply,omitempty"`
	Idea  string         `json:"idea,omitempty"`
	Error string         `json:"error,omitempty"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	session, header := wsSession(r)
	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	s.logger.Debug("websocket connected", "session", session)
	ctx := r.Context()
	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read", "session", session, "error", err)
			}
			return
		}
		frames, err := s.serveWS(ctx, conn, session, req)
		if err != nil {
			s.logger.Debug("websocket write", "session", session, "error", err)
			return
		}
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				s.logger.Debug("websocket write", "session", session, "error", err)
				return
			}
		}
	}
}

// wsSession reads the session cookie of an upgrade request. A client
// without one gets a fresh session and the cookie in the upgrade response.
func wsSession(r *http.Request) (string, http.Header) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			return "web:" + c.Value, nil
		}
	}
	id := uuid.NewString()
	h := http.Header{}
	h.Add("Set-Cookie", newSessionCookie(id).String())
	return "web:" + id, h
}

// frameWriter is the part of *websocket.Conn used while a request runs.
type frameWriter interface {
	WriteJSON(v any) error
}

// serveWS handles one browser frame. Thinking frames are written right away;
// the returned frames are written by the caller. An error means the
// connection can no longer be written to.
func (s *Server) serveWS(ctx context.Context, conn frameWriter, session string, req wsRequest) ([]wsFrame, error) {
	switch strings.ToLower(req.Type) {
	case "idea":
		if err := s.svc.SetIdea(ctx, session, req.Idea); err != nil {
			return errorFrame("", err), nil
		}
		idea, err := s.svc.Idea(ctx, session)
		if err != nil {
			return errorFrame("", err), nil
		}
		return []wsFrame{{Type: "idea", Idea: idea}}, nil

	case "ask":
		id, err := agent.Parse(req.Agent)
		if err != nil {
			return errorFrame("", err), nil
		}
		if err := conn.WriteJSON(wsFrame{Type: "thinking", Agent: id}); err != nil {
			return nil, err
		}
		reply, err := s.svc.Ask(ctx, session, id, req.Message)
		if err != nil {
			return errorFrame(id, err), nil
		}
		rj := toReplyJSON(reply)
		return []wsFrame{{Type: "reply", Agent: id, Reply: &rj}}, nil

	case "board":
		for _, id := range agent.All() {
			if err := conn.WriteJSON(wsFrame{Type: "thinking", Agent: id}); err != nil {
				return nil, err
			}
		}
		replies, err := s.svc.Board(ctx, session, req.Message)
		if err != nil {
			return errorFrame("", err), nil
		}
		frames := make([]wsFrame, len(replies))
		for i, r := range replies {
			rj := toReplyJSON(r)
			frames[i] = wsFrame{Type: "reply", Agent: r.Agent, Reply: &rj}
		}
		return frames, nil

	default:
		return []wsFrame{{Type: "error", Error: "unknown frame type " + req.Type}}, nil
	}
}

func errorFrame(id agent.Identity, err error) []wsFrame {
	return []wsFrame{{Type: "error", Agent: id, Error: err.Error()}}
}
