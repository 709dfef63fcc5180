package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quizora/exam-agent/internal/session"
	ws "github.com/quizora/exam-agent/internal/websocket"
)

// WSHandler serves the browser event stream: DOM-level events in,
// suppression verdicts and controller notices out.
type WSHandler struct {
	ctrl     *session.Controller
	hub      *ws.Hub
	log      zerolog.Logger
	upgrader gorillaws.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(ctrl *session.Controller, hub *ws.Hub, allowedOrigins []string, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		ctrl:     ctrl,
		hub:      hub,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

func buildUpgrader(allowedOrigins []string) gorillaws.Upgrader {
	return gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients (the CLI, curl) send no Origin.
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Stream godoc
// GET /ws/v1/session/events
// Upgrades to WebSocket, registers the connection for notice broadcasts
// and loops over inbound event/answer/ping messages. Replies and hub
// broadcasts share the connection, so all writes go through the
// registered client.
func (h *WSHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := h.hub.Register(conn)
	defer func() {
		h.hub.Unregister(client)
		client.Close()
	}()

	h.log.Debug().Str("remote", client.RemoteAddr()).Msg("Event stream opened")

	for {
		var msg ws.RequestPayload
		if err := client.ReadJSON(&msg); err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseGoingAway, gorillaws.CloseNormalClosure) {
				h.log.Debug().Err(err).Msg("Event stream closed unexpectedly")
			}
			return
		}

		switch msg.Action {
		case ws.ActionEvent:
			h.handleEvent(client, msg)
		case ws.ActionAnswer:
			h.handleAnswer(client, msg)
		case ws.ActionPing:
			client.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			client.WriteError("unknown action")
		}
	}
}

func (h *WSHandler) handleEvent(client *ws.Client, msg ws.RequestPayload) {
	if msg.EventType == "" {
		client.WriteError("event type is required")
		return
	}

	verdict := h.ctrl.HandleEvent(session.IntegrityEvent{
		Type:  session.EventType(msg.EventType),
		Key:   msg.Key,
		Ctrl:  msg.Ctrl,
		Shift: msg.Shift,
		Alt:   msg.Alt,
	})

	client.WriteTyped(ws.VerdictResponse{
		Event:       ws.EventVerdict,
		Suppress:    verdict.Suppress,
		Counted:     verdict.Counted,
		Count:       verdict.Count,
		Warning:     verdict.Warning,
		ForceSubmit: verdict.ForceSubmit,
	})
}

func (h *WSHandler) handleAnswer(client *ws.Client, msg ws.RequestPayload) {
	if msg.QuestionIndex == nil {
		client.WriteError("question_index is required")
		return
	}
	index := *msg.QuestionIndex

	p := h.ctrl.Paper()
	if p == nil {
		client.WriteError("no active session")
		return
	}
	if index < 0 || index >= len(p.Questions) {
		client.WriteError("question index out of range")
		return
	}

	if err := h.ctrl.SetAnswer(index, msg.Answer); err != nil {
		client.WriteError("session is not accepting answers")
		return
	}

	client.WriteTyped(ws.SavedResponse{
		Event:         ws.EventSaved,
		QuestionIndex: index,
		Answered:      h.ctrl.AnsweredCount(),
	})
}
