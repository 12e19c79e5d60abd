package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"church-quiz-service/internal/app"
	"church-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSHandler pushes every game snapshot of a session to the browser and
// accepts game commands over the same socket.
type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
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

type answerPayload struct {
	Answer string `json:"answer"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades a logged-in request and wires it into the game use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		writeError(w, r, domain.ErrSessionNotFound)
		return
	}
	sessionID := cookie.Value
	if _, err := h.service.Session(r.Context(), sessionID); err != nil {
		writeError(w, r, err)
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// conn has a single writer; everything outbound goes through send.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Str("session", sessionID).Msg("ws write failed")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					// session closed elsewhere; unblock the reader
					_ = conn.Close()
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: view}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		// snapshots reach the client through the subscription; only failures are answered here
		if err := h.dispatch(r.Context(), sessionID, inbound); err != nil {
			select {
			case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: messageFor(err)}}:
			case <-writerDone:
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, sessionID string, msg inboundMessage) error {
	var err error
	switch msg.Type {
	case "start":
		_, err = h.service.Start(ctx, sessionID)
	case "restart":
		_, err = h.service.Restart(ctx, sessionID)
	case "next":
		_, err = h.service.Advance(ctx, sessionID)
	case "abandon":
		_, err = h.service.Abandon(ctx, sessionID)
	case "answer":
		var payload answerPayload
		if jsonErr := json.Unmarshal(msg.Payload, &payload); jsonErr != nil {
			return fmt.Errorf("%w: invalid answer payload", domain.ErrValidation)
		}
		_, err = h.service.Submit(ctx, sessionID, payload.Answer)
	default:
		return fmt.Errorf("%w: unsupported message type %q", domain.ErrValidation, msg.Type)
	}
	return err
}
