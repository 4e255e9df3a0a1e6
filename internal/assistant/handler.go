package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/vital-labs/internal/api"
	"github.com/ashureev/vital-labs/internal/identity"
	"github.com/ashureev/vital-labs/internal/orchestrator"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
)

const defaultMaxRequestBodySize = 64 << 10

var errRateLimited = errors.New("rate limit exceeded")

// Turner answers chat turns.
type Turner interface {
	Handle(ctx context.Context, req Request) (*Response, error)
}

// Handler serves the assistant over HTTP and websocket.
type Handler struct {
	svc      Turner
	limiter  *RateLimiter
	sessions *SessionManager
	maxBody  int64
	origins  []string
	logger   *slog.Logger
}

// HandlerConfig holds transport settings.
type HandlerConfig struct {
	MaxRequestBodySize int64
	AllowedOrigins     []string
}

// NewHandler creates the assistant handler. A nil limiter disables throttling.
func NewHandler(svc Turner, limiter *RateLimiter, sessions *SessionManager, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if sessions == nil {
		sessions = NewSessionManager()
	}
	if cfg.MaxRequestBodySize <= 0 {
		cfg.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Handler{
		svc:      svc,
		limiter:  limiter,
		sessions: sessions,
		maxBody:  cfg.MaxRequestBodySize,
		origins:  cfg.AllowedOrigins,
		logger:   logger,
	}
}

// RegisterRoutes registers the assistant routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/assistant/chat", h.HandleChat)
	r.Get("/ws/assistant", h.HandleWebSocket)
}

// HandleChat handles POST /api/assistant/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		req.UserID = identity.UserIDFromContext(r.Context())
	}
	req.Channel = "chat_http"
	req.SessionID = identity.SessionIDFromContext(r.Context())

	resp, err := h.turn(r.Context(), req)
	if err != nil {
		status, msg := h.classifyError(err)
		api.Error(w, status, msg)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

// HandleWebSocket serves GET /ws/assistant. Each text message is a Request
// and is answered with a Response or an error frame; the connection stays
// open across turns.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	if !h.checkOrigin(r) {
		api.Error(w, http.StatusForbidden, "origin not allowed")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()
	ws.SetReadLimit(h.maxBody)

	h.sessions.Register(userID, sessionID, ws)
	defer h.sessions.Unregister(userID, sessionID, ws)

	ctx := r.Context()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("Assistant websocket closed by client", "user_id", userID)
			} else if ctx.Err() == nil {
				h.logger.Warn("Assistant websocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			if werr := wsjson.Write(ctx, ws, errorResponse{Error: "invalid request body"}); werr != nil {
				return
			}
			continue
		}
		if req.UserID == "" {
			req.UserID = userID
		}
		req.Channel = "chat_ws"
		req.SessionID = sessionID

		var out any
		resp, err := h.turn(ctx, req)
		if err != nil {
			_, msg := h.classifyError(err)
			out = errorResponse{Error: msg}
		} else {
			out = resp
		}
		if err := wsjson.Write(ctx, ws, out); err != nil {
			h.logger.Debug("Failed to write assistant websocket frame", "error", err, "user_id", userID)
			return
		}
	}
}

// turn validates, throttles and runs one request.
func (h *Handler) turn(ctx context.Context, req Request) (*Response, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	// Throttle by user id only so rotating sessions does not bypass it.
	if h.limiter != nil && !h.limiter.Allow(userID) {
		return nil, errRateLimited
	}
	return h.svc.Handle(ctx, req)
}

func (h *Handler) classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingUserID), errors.Is(err, ErrEmptyMessage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, err.Error()
	case errors.Is(err, orchestrator.ErrNoProviders):
		h.logger.Error("Assistant misconfigured", "error", err)
		return http.StatusInternalServerError, orchestrator.ErrNoProviders.Error()
	default:
		h.logger.Error("Assistant turn failed", "error", err)
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin)
	return false
}
