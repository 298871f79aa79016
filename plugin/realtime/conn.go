package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	clienterrors "github.com/seatyyy/ExecuMate/internal/errors"
	"github.com/seatyyy/ExecuMate/internal/timeout"
)

// Conn is a websocket connection to the backend. Emit may be called
// concurrently with Listen.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

// Dial connects to the websocket endpoint at url.
func Dial(ctx context.Context, url string, header http.Header, logger *slog.Logger) (*Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout.HTTPTimeout,
	}

	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, clienterrors.Transport("websocket handshake failed", err).
				WithContext("status", resp.StatusCode)
		}
		return nil, clienterrors.Transport("websocket dial failed", err)
	}

	logger.Info("realtime channel connected", "url", url)
	return &Conn{ws: ws, logger: logger}, nil
}

// Emit sends a chat message.
func (c *Conn) Emit(ctx context.Context, ev MessageEvent) error {
	frame, err := Encode(EventMessage, ev)
	if err != nil {
		return clienterrors.InvalidArgument(err.Error())
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(timeout.EmitTimeout)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return clienterrors.Canceled("emit message", err)
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return clienterrors.Transport("emit message", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return clienterrors.Transport("emit message", err)
	}
	return nil
}

// Listen reads frames and passes decoded events to handler until ctx is
// done or the connection fails. Undecodable frames are logged and skipped.
// It returns nil when ctx ends or the peer closes normally.
func (c *Conn) Listen(ctx context.Context, handler func(Inbound)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return clienterrors.Transport("realtime read failed", err)
		}

		in, err := Decode(frame)
		if err != nil {
			var unknown *ErrUnknownEvent
			if errors.As(err, &unknown) {
				c.logger.Debug("ignoring realtime event", "event_type", unknown.Event)
			} else {
				c.logger.Warn("dropping malformed realtime frame", "error", err)
			}
			continue
		}
		handler(in)
	}
}

// Close sends a close frame and closes the connection.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
