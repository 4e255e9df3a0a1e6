package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/vital-labs/internal/identity"
	"github.com/ashureev/vital-labs/internal/orchestrator"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTurner struct {
	mu   sync.Mutex
	reqs []Request
	err  error
}

func (f *fakeTurner) Handle(_ context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return &Response{
		Message:        "Olá!",
		Persona:        "nutrition",
		PersonaName:    "Sofia 🥗",
		ProviderUsed:   "gateway",
		ConversationID: "unified_1",
		Success:        true,
	}, nil
}

func newRouter(svc Turner, limiter *RateLimiter, maxBody int64) http.Handler {
	r := chi.NewRouter()
	r.Use(identity.Middleware())
	NewHandler(svc, limiter, nil, HandlerConfig{MaxRequestBodySize: maxBody}, nil).RegisterRoutes(r)
	return r
}

func postChat(t *testing.T, h http.Handler, body string, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/assistant/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w, out
}

func TestHandleChatSuccess(t *testing.T) {
	t.Parallel()

	svc := &fakeTurner{}
	w, out := postChat(t, newRouter(svc, nil, 0), `{"message":"oi","userId":"u1","forcePersona":"sofia"}`, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Olá!", out["message"])
	assert.Equal(t, "Sofia 🥗", out["personaName"])
	assert.Equal(t, "unified_1", out["conversationId"])
	assert.Equal(t, true, out["success"])
	require.Len(t, svc.reqs, 1)
	assert.Equal(t, "chat_http", svc.reqs[0].Channel)
	assert.Equal(t, identity.DefaultSessionIDValue, svc.reqs[0].SessionID)
	assert.Equal(t, "sofia", svc.reqs[0].ForcePersona)
}

func TestHandleChatUserFromHeader(t *testing.T) {
	t.Parallel()

	svc := &fakeTurner{}
	w, _ := postChat(t, newRouter(svc, nil, 0), `{"message":"oi"}`, map[string]string{identity.UserHeaderName: "u-header"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-header", svc.reqs[0].UserID)
}

func TestHandleChatBadRequests(t *testing.T) {
	t.Parallel()

	svc := &fakeTurner{}
	h := newRouter(svc, nil, 64)

	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{"malformed", `{"message":`, http.StatusBadRequest, "invalid request body"},
		{"missing user", `{"message":"oi"}`, http.StatusBadRequest, ErrMissingUserID.Error()},
		{"missing message", `{"userId":"u1","message":"  "}`, http.StatusBadRequest, ErrEmptyMessage.Error()},
		{"too large", `{"userId":"u1","message":"` + strings.Repeat("a", 200) + `"}`, http.StatusRequestEntityTooLarge, "request body too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, out := postChat(t, h, tt.body, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, out["error"])
		})
	}
	assert.Empty(t, svc.reqs)
}

func TestHandleChatRateLimited(t *testing.T) {
	t.Parallel()

	limiter := newRateLimiter(1, 1)
	h := newRouter(&fakeTurner{}, limiter, 0)

	w, _ := postChat(t, h, `{"message":"oi","userId":"u1"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, out := postChat(t, h, `{"message":"oi de novo","userId":"u1"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate limit exceeded", out["error"])

	w, _ = postChat(t, h, `{"message":"oi","userId":"u2"}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleChatServiceErrors(t *testing.T) {
	t.Parallel()

	w, out := postChat(t, newRouter(&fakeTurner{err: orchestrator.ErrNoProviders}, nil, 0), `{"message":"oi","userId":"u1"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, orchestrator.ErrNoProviders.Error(), out["error"])

	w, out = postChat(t, newRouter(&fakeTurner{err: errors.New("boom: secret detail")}, nil, 0), `{"message":"oi","userId":"u1"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", out["error"])
}

func TestWebSocketTurns(t *testing.T) {
	t.Parallel()

	svc := &fakeTurner{}
	srv := httptest.NewServer(newRouter(svc, nil, 0))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set(identity.UserHeaderName, "ws-user")
	header.Set(identity.SessionHeaderName, "tab-7")
	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/assistant", &websocket.DialOptions{
		HTTPHeader: header,
	})
	require.NoError(t, err)
	defer func() { _ = ws.Close(websocket.StatusNormalClosure, "") }()

	require.NoError(t, wsjson.Write(ctx, ws, Request{Message: "oi"}))
	var resp Response
	require.NoError(t, wsjson.Read(ctx, ws, &resp))
	assert.Equal(t, "Olá!", resp.Message)
	assert.True(t, resp.Success)

	require.NoError(t, ws.Write(ctx, websocket.MessageText, []byte("not json")))
	var bad map[string]any
	require.NoError(t, wsjson.Read(ctx, ws, &bad))
	assert.Equal(t, "invalid request body", bad["error"])

	require.NoError(t, wsjson.Write(ctx, ws, Request{Message: " "}))
	require.NoError(t, wsjson.Read(ctx, ws, &bad))
	assert.Equal(t, ErrEmptyMessage.Error(), bad["error"])

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.reqs, 1)
	assert.Equal(t, "ws-user", svc.reqs[0].UserID)
	assert.Equal(t, "chat_ws", svc.reqs[0].Channel)
	assert.Equal(t, "tab-7", svc.reqs[0].SessionID)
}

func TestWebSocketRejectsOrigin(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	NewHandler(&fakeTurner{}, nil, nil, HandlerConfig{AllowedOrigins: []string{"https://app.example.com"}}, nil).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/ws/assistant", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSessionManagerReplacesAndCloses(t *testing.T) {
	t.Parallel()

	sm := NewSessionManager()
	a := &websocket.Conn{}
	sm.Register("u1", "tab", a)
	assert.Equal(t, 1, sm.Count())

	sm.Unregister("u1", "other-tab", a)
	assert.Equal(t, 1, sm.Count())

	sm.Unregister("u1", "tab", a)
	assert.Equal(t, 0, sm.Count())
}
