package wschannel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AzielCF/az-collab/collab/domain/channel"
	"github.com/AzielCF/az-collab/collab/domain/envelope"
	pkgError "github.com/AzielCF/az-collab/pkg/error"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	pongWait                = 60 * time.Second
	pingPeriod              = (pongWait * 9) / 10
)

var ErrNotConnected = errors.New("websocket channel is not connected")

type Options struct {
	// BaseURL is the collab server, http(s) or ws(s).
	BaseURL          string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Header           http.Header
}

// Channel is a channel.Channel over a gorilla websocket. One Channel carries
// one room; Open after Close starts a fresh connection.
type Channel struct {
	opts   Options
	dialer *websocket.Dialer

	mu         sync.Mutex
	conn       *websocket.Conn
	generation uint64
	cancel     context.CancelFunc

	writeMu sync.Mutex
}

var _ channel.Channel = (*Channel)(nil)

func New(opts Options) *Channel {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	return &Channel{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
	}
}

// RoomURL builds ws(s)://host/ws/rooms/:resourceType/:resourceId?user_id=.
func RoomURL(base string, room envelope.Room, userID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = u.Path + "/ws/rooms/" + url.PathEscape(room.ResourceType) + "/" + url.PathEscape(room.ResourceID)
	q := u.Query()
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open dials in the background and reports the outcome through l.
func (c *Channel) Open(room envelope.Room, userID string, l channel.Listener) {
	target, err := RoomURL(c.opts.BaseURL, room, userID)
	if err != nil {
		go l.OnClose(pkgError.TransportError(err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	gen := c.generation
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx, gen, target, l)
}

func (c *Channel) run(ctx context.Context, gen uint64, target string, l channel.Listener) {
	conn, _, err := c.dialer.DialContext(ctx, target, c.opts.Header)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.OnClose(pkgError.TransportError(fmt.Sprintf("dial %s: %v", target, err)))
		return
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go c.keepAlive(ctx, conn)

	l.OnOpen()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !c.current(gen) {
				return
			}
			c.detach(gen)
			_ = conn.Close()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				l.OnClose(nil)
				return
			}
			l.OnClose(pkgError.TransportError(err.Error()))
			return
		}
		if !c.current(gen) {
			return
		}
		l.OnMessage(data)
	}
}

func (c *Channel) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				logrus.WithError(err).Debug("[WS_CLIENT] Ping failed")
				return
			}
		}
	}
}

func (c *Channel) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.generation
}

func (c *Channel) detach(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.generation {
		c.conn = nil
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
	}
}

func (c *Channel) Send(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return pkgError.TransportError(err.Error())
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return pkgError.TransportError(err.Error())
	}
	return nil
}

// Close sends a normal-closure frame and releases the connection. Callbacks of
// the closed connection stop.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.generation++
	conn := c.conn
	c.conn = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(c.opts.WriteTimeout))
	c.writeMu.Unlock()
	return conn.Close()
}
