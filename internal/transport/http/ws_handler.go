package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-pipeline-service/internal/domain"
	"quiz-pipeline-service/internal/logger"
)

// WSHandler runs one interactive quiz session per websocket connection.
type WSHandler struct {
	pipeline Pipeline
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(pipeline Pipeline, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WSHandler{
		pipeline: pipeline,
		log:      log.With("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type generatePayload struct {
	Topic string `json:"topic"`
}

type submitPayload struct {
	RequestID        string `json:"request_id"`
	Answers          []int  `json:"answers"`
	TimeTakenSeconds int    `json:"time_taken_seconds"`
}

type tracePayload struct {
	RequestID string `json:"request_id"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string      `json:"message"`
	Kind    domain.Kind `json:"kind,omitempty"`
}

// ServeWS upgrades the request and serves generate, submit, stats and
// trace messages for the user named by the userId query parameter.
// Leaderboard changes are pushed as they happen.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	updates, cancel := h.pipeline.Leaderboard().Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only this goroutine writes to conn.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn("ws write failed", "user_id", userID, "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.UpdatedAt.IsZero() {
					continue
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "connected", Payload: map[string]string{"user_id": userID}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		select {
		case send <- h.handle(ctx, userID, inbound):
		case <-writerDone:
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(ctx context.Context, userID string, in inboundMessage) outboundMessage[any] {
	switch in.Type {
	case "generate":
		var p generatePayload
		if !decodePayload(in.Payload, &p) {
			return errorMessage("invalid generate payload", domain.KindValidation)
		}
		return reply("quiz", h.pipeline.GenerateQuiz(ctx, userID, p.Topic))
	case "submit":
		var p submitPayload
		if !decodePayload(in.Payload, &p) || p.RequestID == "" {
			return errorMessage("invalid submit payload", domain.KindValidation)
		}
		return reply("evaluation", h.pipeline.EvaluateQuizByRequest(ctx, userID, p.RequestID, p.Answers, p.TimeTakenSeconds))
	case "stats":
		return reply("stats", h.pipeline.GetUserStats(ctx, userID))
	case "trace":
		var p tracePayload
		if !decodePayload(in.Payload, &p) || p.RequestID == "" {
			return errorMessage("invalid trace payload", domain.KindValidation)
		}
		return reply("trace", h.pipeline.GetTraceLogs(ctx, p.RequestID))
	default:
		return errorMessage("unsupported message type", domain.KindValidation)
	}
}

// decodePayload accepts an absent payload as the zero value.
func decodePayload(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	return json.Unmarshal(raw, dst) == nil
}

type result interface {
	OK() bool
}

func reply[R result](typ string, res R) outboundMessage[any] {
	if !res.OK() {
		typ = "error"
	}
	return outboundMessage[any]{Type: typ, Payload: res}
}

func errorMessage(msg string, kind domain.Kind) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg, Kind: kind}}
}
