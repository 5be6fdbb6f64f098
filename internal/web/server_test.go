package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/leandrotocalini/boardroom/internal/advisor"
	"github.com/leandrotocalini/boardroom/internal/agent"
	"github.com/leandrotocalini/boardroom/internal/conversation"
	"github.com/leandrotocalini/boardroom/internal/logging"
)

type stubGenerator struct{}

func (stubGenerator) Generate(_ context.Context, p, _ string) (string, error) {
	if strings.Contains(p, "(CMO)") {
		return "", &agent.ProviderError{Provider: "test", Model: "m", Err: errors.New("down")}
	}
	return "## Plan\n- Build the MVP", nil
}

type testEnv struct {
	srv    *httptest.Server
	client *http.Client
	logs   *logging.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logs := logging.New(100, logging.WithWriter(io.Discard))
	svc := advisor.New(stubGenerator{}, conversation.NewFileStore(t.TempDir()),
		advisor.WithLogger(slog.New(logs)))
	s := New(svc,
		WithLogSource(logs),
		WithProvider("gemini"),
		WithStatus(func() map[string]string { return map[string]string{"slack": "connected"} }),
		WithStatus(func() map[string]string { return map[string]string{"budget": "$0.0000 today"} }),
		WithLogger(slog.New(logs)),
	)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &testEnv{srv: srv, client: &http.Client{Jar: jar}, logs: logs}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestPage_SetsSessionCookie(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookie && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Error("session cookie not set")
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "Boardroom") {
		t.Error("page body missing title")
	}
}

func TestIdea_RoundTrip(t *testing.T) {
	e := newTestEnv(t)

	if got := decode[ideaJSON](t, e.do(t, http.MethodGet, "/api/idea", "")); got.Idea != "" {
		t.Errorf("fresh session idea = %q", got.Idea)
	}

	resp := e.do(t, http.MethodPut, "/api/idea", `{"idea":"  Drone delivery  "}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}
	if got := decode[ideaJSON](t, e.do(t, http.MethodGet, "/api/idea", "")); got.Idea != "Drone delivery" {
		t.Errorf("idea = %q", got.Idea)
	}

	if resp := e.do(t, http.MethodPut, "/api/idea", `{"idea":"  "}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank idea status = %d", resp.StatusCode)
	}
}

func TestAsk_FlowAndErrors(t *testing.T) {
	e := newTestEnv(t)

	if resp := e.do(t, http.MethodPost, "/api/agents/cto/messages", `{"message":"Stack?"}`); resp.StatusCode != http.StatusConflict {
		t.Errorf("ask without idea status = %d, want 409", resp.StatusCode)
	}
	e.do(t, http.MethodPut, "/api/idea", `{"idea":"Drone delivery"}`)

	if resp := e.do(t, http.MethodPost, "/api/agents/ceo/messages", `{"message":"Hi"}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown agent status = %d, want 404", resp.StatusCode)
	}

	resp := e.do(t, http.MethodPost, "/api/agents/cto/messages", `{"message":"Stack?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ask status = %d", resp.StatusCode)
	}
	r := decode[replyJSON](t, resp)
	if r.Failed || r.Agent != agent.CTO {
		t.Fatalf("reply = %+v", r)
	}
	if !strings.Contains(r.Turn.Content, "🔥 **Plan**") || !strings.Contains(r.Turn.HTML, "<strong>Plan</strong>") {
		t.Errorf("turn = %+v", r.Turn)
	}

	history := decode[[]turnJSON](t, e.do(t, http.MethodGet, "/api/agents/CTO/messages", ""))
	if len(history) != 2 || history[0].Sender != agent.SenderUser || history[1].HTML == "" {
		t.Errorf("history = %+v", history)
	}
}

func TestBoard(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPut, "/api/idea", `{"idea":"Drone delivery"}`)

	replies := decode[[]replyJSON](t, e.do(t, http.MethodPost, "/api/board", `{"message":"First step?"}`))
	if len(replies) != 4 {
		t.Fatalf("expected 4 replies, got %d", len(replies))
	}
	for i, id := range agent.All() {
		if replies[i].Agent != id {
			t.Errorf("reply %d agent = %s, want %s", i, replies[i].Agent, id)
		}
		if wantFailed := id == agent.CMO; replies[i].Failed != wantFailed {
			t.Errorf("%s failed = %v", id, replies[i].Failed)
		}
	}
	if replies[1].Turn.Content != advisor.Apology {
		t.Errorf("CMO content = %q", replies[1].Turn.Content)
	}
}

func TestReset(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodPut, "/api/idea", `{"idea":"Drone delivery"}`)
	if resp := e.do(t, http.MethodDelete, "/api/session", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}
	if got := decode[ideaJSON](t, e.do(t, http.MethodGet, "/api/idea", "")); got.Idea != "" {
		t.Errorf("idea after reset = %q", got.Idea)
	}
}

func TestAgents(t *testing.T) {
	e := newTestEnv(t)
	list := decode[[]agentJSON](t, e.do(t, http.MethodGet, "/api/agents", ""))
	if len(list) != 4 || list[0].Name != "CTO Bot" || list[0].Model != "gemini-2.5-pro" {
		t.Errorf("agents = %+v", list)
	}
}

func TestStatusAndLogs(t *testing.T) {
	e := newTestEnv(t)
	slog.New(e.logs).Info("hello from test")

	status := decode[map[string]string](t, e.do(t, http.MethodGet, "/api/status", ""))
	if status["provider"] != "gemini" || status["slack"] != "connected" || status["budget"] == "" || status["uptime"] == "" {
		t.Errorf("status = %v", status)
	}

	logs := decode[[]logJSON](t, e.do(t, http.MethodGet, "/api/logs", ""))
	if len(logs) == 0 || logs[len(logs)-1].Message != "hello from test" {
		t.Errorf("logs = %+v", logs)
	}
}

func TestLogsStream(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, e.srv.URL+"/api/logs/stream", nil)
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// The handler subscribes after flushing headers; keep logging until a
	// line arrives.
	go func() {
		for ctx.Err() == nil {
			slog.New(e.logs).Info("streamed")
			time.Sleep(20 * time.Millisecond)
		}
	}()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "data: ") {
			if !strings.Contains(line, "streamed") {
				t.Errorf("unexpected event %q", line)
			}
			return
		}
	}
	t.Fatalf("no event received: %v", sc.Err())
}

func TestWebSocket_AskAndBoard(t *testing.T) {
	e := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if len(resp.Cookies()) == 0 {
		t.Error("expected session cookie on upgrade")
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	read := func() wsFrame {
		t.Helper()
		var f wsFrame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read: %v", err)
		}
		return f
	}

	conn.WriteJSON(wsRequest{Type: "ask", Agent: "cto", Message: "Stack?"})
	if f := read(); f.Type != "thinking" || f.Agent != agent.CTO {
		t.Fatalf("frame = %+v", f)
	}
	if f := read(); f.Type != "error" || !strings.Contains(f.Error, "no startup idea") {
		t.Fatalf("frame = %+v", f)
	}

	conn.WriteJSON(wsRequest{Type: "idea", Idea: "Drone delivery"})
	if f := read(); f.Type != "idea" || f.Idea != "Drone delivery" {
		t.Fatalf("frame = %+v", f)
	}

	conn.WriteJSON(wsRequest{Type: "board", Message: "First step?"})
	for range agent.All() {
		if f := read(); f.Type != "thinking" {
			t.Fatalf("frame = %+v", f)
		}
	}
	for _, id := range agent.All() {
		f := read()
		if f.Type != "reply" || f.Agent != id || f.Reply == nil {
			t.Fatalf("frame = %+v", f)
		}
	}

	conn.WriteJSON(wsRequest{Type: "dance"})
	if f := read(); f.Type != "error" {
		t.Fatalf("frame = %+v", f)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{agent.ErrUnknownAgent, http.StatusNotFound},
		{agent.ErrNoIdea, http.StatusConflict},
		{advisor.ErrResetUnsupported, http.StatusNotImplemented},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

// closedConn fails every write, like a socket the browser already closed.
type closedConn struct{ writes int }

func (c *closedConn) WriteJSON(any) error {
	c.writes++
	return websocket.ErrCloseSent
}

// countingGenerator counts model calls.
type countingGenerator struct{ calls int }

func (g *countingGenerator) Generate(context.Context, string, string) (string, error) {
	g.calls++
	return "ok", nil
}

func TestServeWS_ThinkingWriteFailureStopsRequest(t *testing.T) {
	gen := &countingGenerator{}
	svc := advisor.New(gen, conversation.NewFileStore(t.TempDir()))
	s := New(svc, WithLogger(slog.New(slog.DiscardHandler)))
	ctx := context.Background()
	if err := svc.SetIdea(ctx, "web:t", "Idea"); err != nil {
		t.Fatal(err)
	}

	for _, req := range []wsRequest{
		{Type: "ask", Agent: "cfo", Message: "Price?"},
		{Type: "board", Message: "Next?"},
	} {
		conn := &closedConn{}
		frames, err := s.serveWS(ctx, conn, "web:t", req)
		if !errors.Is(err, websocket.ErrCloseSent) {
			t.Errorf("%s: err = %v", req.Type, err)
		}
		if frames != nil || conn.writes != 1 {
			t.Errorf("%s: frames = %+v, writes = %d", req.Type, frames, conn.writes)
		}
	}
	if gen.calls != 0 {
		t.Errorf("model called %d times after the write failed", gen.calls)
	}
}

// unreadableIdeas stores ideas but fails to read them back.
type unreadableIdeas struct {
	*conversation.FileStore
}

func (unreadableIdeas) Idea(context.Context, string) (string, error) {
	return "", errors.New("disk unreadable")
}

func TestIdea_ReadErrorIsReported(t *testing.T) {
	svc := advisor.New(stubGenerator{}, unreadableIdeas{conversation.NewFileStore(t.TempDir())})
	s := New(svc, WithLogger(slog.New(slog.DiscardHandler)))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/idea", strings.NewReader(`{"idea":"Drone delivery"}`))
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("PUT /api/idea status = %d", resp.StatusCode)
	}

	frames, err := s.serveWS(context.Background(), &closedConn{}, "web:t", wsRequest{Type: "idea", Idea: "Drone delivery"})
	if err != nil {
		t.Fatalf("serveWS: %v", err)
	}
	if len(frames) != 1 || frames[0].Type != "error" || !strings.Contains(frames[0].Error, "disk unreadable") {
		t.Errorf("frames = %+v", frames)
	}
}

func TestWebSocket_OversizedFrameClosesConnection(t *testing.T) {
	e := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	big := `{"type":"idea","idea":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	conn.WriteMessage(websocket.TextMessage, []byte(big)) // may fail once the server hangs up

	var f wsFrame
	if err := conn.ReadJSON(&f); err == nil {
		t.Fatalf("expected the server to close the connection, got frame %+v", f)
	}
}
