package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/flathead/streamhub/internal/app/orch"
	"github.com/flathead/streamhub/internal/core"
	"github.com/flathead/streamhub/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

type StreamWSController struct {
	Orch *orch.Orchestrator

	// ReadLimit caps the size of one inbound WS message; zero means
	// the gorilla default. PingPeriod drives keepalive pings.
	ReadLimit  int64
	PingPeriod time.Duration

	limiter *CommandRateLimiter
}

func NewStreamWSController(o *orch.Orchestrator) *StreamWSController {
	return &StreamWSController{
		Orch:       o,
		PingPeriod: 54 * time.Second,
		limiter:    NewCommandRateLimiter(20, time.Second),
	}
}

type outMessage struct {
	binary bool
	data   []byte
}

type WsStreamConn struct {
	conn *websocket.Conn
	send chan outMessage

	mu     sync.RWMutex
	closed bool
}

func (c *WsStreamConn) trySend(m outMessage) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- m:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsStreamConn) TrySend(data []byte) error {
	return c.trySend(outMessage{data: data})
}

func (c *WsStreamConn) TrySendBinary(data []byte) error {
	return c.trySend(outMessage{binary: true, data: data})
}

func (c *WsStreamConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// wsSession is the ClientSession the registry and rooms hold.
type wsSession struct {
	conn *WsStreamConn
}

func (s *wsSession) Signal() core.SignalConnection { return s.conn }

// BroadcastRoom fans a JSON event to every member of a room.
func (ctl *StreamWSController) BroadcastRoom(name domain.RoomName, v any) {
	for _, m := range ctl.Orch.Registry.MembersOfRoom(name) {
		if m.Session != nil {
			ctl.sendJSON(m.Session.Signal(), v)
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *StreamWSController) HandleStream(ctx context.Context, c *gin.Context) {
	// One fresh id per socket. The cookie token is stable across
	// sockets (two tabs, a reconnect racing its old socket) and must
	// not key the registry, or siblings would clobber each other.
	sid := core.ConnID(uuid.NewString())
	log.Info().Str("module", "signal").Str("conn", string(sid)).Str("client", c.GetString("client_token")).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsStreamConn{
		conn: ws,
		send: make(chan outMessage, 64),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(sid, &wsSession{conn: conn}, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}
