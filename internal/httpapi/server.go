package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/mfalcone/duecall/internal/config"
	"github.com/mfalcone/duecall/internal/directory"
	"github.com/mfalcone/duecall/internal/observability"
	"github.com/mfalcone/duecall/internal/orchestrator"
	"github.com/mfalcone/duecall/internal/protocol"
	"github.com/mfalcone/duecall/internal/session"
)

// TurnHandler is the conversation core behind the HTTP surface.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req orchestrator.TurnRequest) (orchestrator.TurnResult, error)
}

type Server struct {
	cfg      config.Config
	sessions *session.Store
	turns    TurnHandler
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, sessions *session.Store, turns TurnHandler, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		sessions: sessions,
		turns:    turns,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin. The telephony gateway connects without an
				// Origin header and is always allowed.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/turns", s.handleTurn)
	r.Get("/v1/turns/ws", s.handleTurnWS)
	r.Get("/v1/sessions/{id}", s.handleGetSession)
	r.Post("/v1/sessions/{id}/end", s.handleEndSession)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ready",
		"active_sessions": s.sessions.ActiveCount(),
	})
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.TurnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing customer_id")
		return
	}

	res, err := s.turns.HandleTurn(r.Context(), req)
	if err != nil {
		s.respondTurnError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) respondTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrConflict):
		respondError(w, http.StatusConflict, "session_conflict", err.Error())
	case errors.Is(err, session.ErrBusy):
		respondError(w, http.StatusTooManyRequests, "session_busy", err.Error())
	case errors.Is(err, session.ErrNotFound), errors.Is(err, directory.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusRequestTimeout, "cancelled", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	if _, err := s.sessions.Get(id); err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.sessions.Terminate(id)
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ended").Inc()
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	}

	sess, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// handleTurnWS runs a persistent turn stream for the telephony gateway. All
// writes go through one outbound channel so the websocket has a single
// writer.
func (s *Server) handleTurnWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.queueOutbound(ctx, outbound, protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			})
			continue
		}

		turn, ok := parsed.(protocol.CustomerTurn)
		if !ok {
			continue
		}
		s.streamTurn(ctx, outbound, turn)
		if ctx.Err() != nil {
			break
		}
	}

	cancel()
	<-writerDone
	if s.metrics != nil {
		s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
	}
}

func (s *Server) streamTurn(ctx context.Context, outbound chan<- any, turn protocol.CustomerTurn) {
	res, err := s.turns.HandleTurn(ctx, orchestrator.TurnRequest{
		CustomerID:    turn.CustomerID,
		Utterance:     turn.Utterance,
		SessionIDHint: turn.SessionID,
	})
	if err != nil {
		s.queueOutbound(ctx, outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: turn.SessionID,
			Code:      wsErrorCode(err),
			Retryable: errors.Is(err, session.ErrBusy),
			Detail:    err.Error(),
		})
		return
	}

	s.queueOutbound(ctx, outbound, protocol.BotReply{
		Type:           protocol.TypeBotReply,
		SessionID:      res.SessionID,
		Reply:          res.Reply,
		Action:         string(res.Action),
		State:          string(res.State),
		Intent:         string(res.Intent),
		ReferenceID:    res.ReferenceID,
		DeliveryFailed: res.DeliveryFailed,
	})
	if res.State.Terminal() {
		s.queueOutbound(ctx, outbound, protocol.SessionEnded{
			Type:      protocol.TypeSessionEnded,
			SessionID: res.SessionID,
			Reason:    string(res.State),
		})
	}
}

func (s *Server) queueOutbound(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case <-ctx.Done():
	case outbound <- msg:
	}
}

func wsErrorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrConflict):
		return "session_conflict"
	case errors.Is(err, session.ErrBusy):
		return "session_busy"
	case errors.Is(err, session.ErrNotFound), errors.Is(err, directory.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
