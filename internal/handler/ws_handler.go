package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/quiz"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	ws "github.com/stemsi/exstem-quiz/internal/websocket"
)

const outboundBuffer = 8

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a quiz session over a WebSocket: session events are
// pushed as they happen and player actions are applied as they arrive.
type WSHandler struct {
	quizService *service.QuizService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(quizService *service.QuizService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		quizService: quizService,
		log:         logger.Component(log, "ws_handler"),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// QuizStream godoc
// WS /ws/v1/quizzes/:id/stream?token=...
// Upgrades to WebSocket for live timer ticks and in-place quiz actions.
func (h *WSHandler) QuizStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	r, err := h.quizService.Runner(claims.PlayerID, id)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("player_id", claims.PlayerID.String()).
		Str("session_id", id.String()).
		Logger()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, unsubscribe, err := r.Subscribe(ctx)
	if err != nil {
		_ = ws.WriteError(conn, string(response.ErrNotFound), response.GetMessage(response.ErrNotFound))
		return
	}
	defer unsubscribe()

	wsLog.Info().Msg("Player connected")

	out := make(chan any, outboundBuffer)
	writerDone := make(chan struct{})
	go h.writeLoop(ctx, conn, events, out, writerDone)

	for {
		var req ws.ActionRequest
		if err := ws.ReadJSON(conn, &req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		reply := h.dispatch(ctx, r, req)
		if reply == nil {
			continue
		}
		select {
		case out <- reply:
		case <-writerDone:
			return
		}
	}

	cancel()
	<-writerDone
}

// writeLoop is the only goroutine writing to conn.
func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan quiz.Event, out <-chan any, done chan<- struct{}) {
	defer close(done)

	for {
		var msg any
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = ws.WriteClose(conn, "session closed")
				_ = conn.Close()
				return
			}
			msg = ev
		case msg = <-out:
		}

		if err := ws.WriteTyped(conn, msg); err != nil {
			h.log.Debug().Err(err).Msg("WebSocket write failed")
			_ = conn.Close()
			return
		}
	}
}

// dispatch applies one action. State changes reach the client through the
// event subscription, so only pongs and errors are returned here.
func (h *WSHandler) dispatch(ctx context.Context, r *quiz.Runner, req ws.ActionRequest) any {
	var err error

	switch req.Action {
	case ws.ActionPing:
		return ws.PongResponse{Event: ws.EventPong}

	case ws.ActionSelect:
		if req.ItemIndex == nil || req.OptionID == "" {
			return wsError(response.ErrValidation)
		}
		_, err = r.SelectAnswer(ctx, *req.ItemIndex, req.OptionID)

	case ws.ActionPrev:
		_, err = r.GoPrev(ctx)

	case ws.ActionNext:
		_, err = r.GoNext(ctx)

	case ws.ActionGoTo:
		if req.Index == nil {
			return wsError(response.ErrValidation)
		}
		_, err = r.GoTo(ctx, *req.Index)

	case ws.ActionSubmit:
		snap, accepted, serr := r.Submit(ctx)
		if serr == nil && !accepted && !snap.Finalized {
			return wsError(response.ErrQuizIncomplete)
		}
		err = serr

	case ws.ActionRestart:
		_, err = r.Restart(ctx)

	case ws.ActionAutoNext:
		if req.Enabled == nil {
			return wsError(response.ErrValidation)
		}
		_, err = r.SetAutoNext(ctx, *req.Enabled)

	default:
		return wsError(response.ErrInvalidPayload)
	}

	if err != nil {
		_, code := classify(err)
		return wsError(code)
	}
	return nil
}

func wsError(code response.ErrCode) ws.ErrorResponse {
	return ws.NewError(string(code), response.GetMessage(code))
}
