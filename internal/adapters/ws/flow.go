// Package ws drives the guided creation flow over a websocket: the
// server pushes prompts, the client answers with raw inputs, until the
// flow commits or cancels.
package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"roomdesk/internal/app"
	"roomdesk/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type FlowController struct {
	Svc *app.Service
}

func NewFlowController(svc *app.Service) *FlowController {
	return &FlowController{Svc: svc}
}

// clientMsg is what the browser sends.
type clientMsg struct {
	Action string `json:"action"` // start | start_edit | input | cancel
	Code   string `json:"code,omitempty"`
	Text   string `json:"text,omitempty"`
}

// serverMsg wraps the flow's Step for the wire.
type serverMsg struct {
	Type string    `json:"type"` // prompt | committed | cancelled | error
	Step *app.Step `json:"step,omitempty"`
	Err  string    `json:"error,omitempty"`
}

type flowConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *flowConn) trySend(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *flowConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

func (ctl *FlowController) HandleFlow(c *gin.Context) {
	caller := domain.OwnerID(c.GetString("client_token"))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Str("module", "adapters.ws").Err(err).Msg("ws upgrade")
		return
	}
	conn := &flowConn{conn: ws, send: make(chan []byte, 8)}

	go ctl.writePump(conn)
	ctl.readPump(caller, conn)
}

func (ctl *FlowController) writePump(c *flowConn) {
	for data := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			log.Error().Str("module", "adapters.ws").Err(err).Msg("writePump set deadline")
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Str("module", "adapters.ws").Err(err).Msg("writePump write error")
			return
		}
	}
}

func (ctl *FlowController) readPump(caller domain.OwnerID, c *flowConn) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Str("caller", string(caller)).Msg("readPump closing")
		c.close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			ctl.reply(c, serverMsg{Type: "error", Err: "bad message"})
			continue
		}

		var step app.Step
		switch msg.Action {
		case "start":
			step, err = ctl.Svc.StartCreate(caller)
		case "start_edit":
			step, err = ctl.Svc.StartEdit(caller, msg.Code)
		case "input":
			step, err = ctl.Svc.Advance(caller, msg.Text)
		case "cancel":
			ctl.Svc.CancelFlow(caller)
			ctl.reply(c, serverMsg{Type: "cancelled"})
			continue
		default:
			ctl.reply(c, serverMsg{Type: "error", Err: "unknown action"})
			continue
		}
		if err != nil {
			ctl.reply(c, serverMsg{Type: "error", Err: err.Error()})
			continue
		}

		switch {
		case step.Committed != nil:
			ctl.reply(c, serverMsg{Type: "committed", Step: &step})
		case step.Cancelled:
			ctl.reply(c, serverMsg{Type: "cancelled"})
		default:
			ctl.reply(c, serverMsg{Type: "prompt", Step: &step})
		}
	}
}

func (ctl *FlowController) reply(c *flowConn, msg serverMsg) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Str("module", "adapters.ws").Err(err).Msg("marshal reply")
		return
	}
	if err := c.trySend(data); err != nil {
		log.Warn().Str("module", "adapters.ws").Err(err).Msg("dropping reply")
	}
}
