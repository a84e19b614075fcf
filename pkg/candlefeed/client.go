package candlefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"
)

// ErrNotConnected is returned by requests made while no session is open.
var ErrNotConnected = errors.New("candlefeed: not connected")

// Config holds the feed endpoint and credentials.
type Config struct {
	// URL of the feed, e.g. "ws://localhost:9002/ws"
	URL string

	// Token is sent with the auth request. Auth is skipped when both Token
	// and TOTPSecret are empty.
	Token string

	// TOTPSecret, if set, adds a fresh one-time code to the auth request.
	TOTPSecret string

	// RequestTimeout bounds each request/response round trip. Defaults to 10s.
	RequestTimeout time.Duration
}

func (c *Config) defaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 10 * time.Second
	}
}

// Client keeps one WebSocket session to the feed. It is safe for concurrent
// use; a single read goroutine dispatches responses by request id.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	now    func() time.Time

	mu      sync.Mutex
	conn    *websocket.Conn
	done    chan struct{} // closed when the current session's read loop exits
	pending map[string]chan Response

	writeMu sync.Mutex
}

// New creates a client. No connection is made until Connect.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:     cfg,
		dialer:  websocket.DefaultDialer,
		now:     time.Now,
		pending: make(map[string]chan Response),
	}
}

// Connect opens a session and authenticates. It returns ok=false with the
// server's reason when authentication is rejected, and an error when the
// feed cannot be reached at all. An existing session is closed first.
func (c *Client) Connect(ctx context.Context) (bool, string, error) {
	c.Close()

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return false, "", fmt.Errorf("candlefeed: dial %s: %w", c.cfg.URL, err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.mu.Unlock()
	go c.readLoop(conn, done)

	if c.cfg.Token == "" && c.cfg.TOTPSecret == "" {
		log.Printf("[candlefeed] connected to %s", c.cfg.URL)
		return true, "", nil
	}

	req := Request{Action: ActionAuth, Token: c.cfg.Token}
	if c.cfg.TOTPSecret != "" {
		code, err := totp.GenerateCode(c.cfg.TOTPSecret, c.now())
		if err != nil {
			c.Close()
			return false, "", fmt.Errorf("candlefeed: totp: %w", err)
		}
		req.OTP = code
	}

	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		c.Close()
		return false, "", fmt.Errorf("candlefeed: auth: %w", err)
	}
	if !resp.OK {
		c.Close()
		return false, resp.Error, nil
	}
	log.Printf("[candlefeed] connected and authenticated to %s", c.cfg.URL)
	return true, "", nil
}

// IsConnected reports whether a session is open and answers a ping.
func (c *Client) IsConnected(ctx context.Context) bool {
	resp, err := c.roundTrip(ctx, Request{Action: ActionPing})
	return err == nil && resp.OK
}

// GetCandles asks for the bars of asset in the offset seconds before end.
// An empty slice means the feed has no data for that window.
func (c *Client) GetCandles(ctx context.Context, asset string, end time.Time, offset, period time.Duration) ([]Candle, error) {
	resp, err := c.roundTrip(ctx, Request{
		Action: ActionCandles,
		Asset:  asset,
		End:    end.Unix(),
		Offset: int64(offset / time.Second),
		Period: int64(period / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("candlefeed: candles %s: %w", asset, err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("candlefeed: candles %s: %s", asset, resp.Error)
	}
	return resp.Candles, nil
}

// Close ends the current session, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *Client) roundTrip(ctx context.Context, req Request) (Response, error) {
	c.mu.Lock()
	conn, done := c.conn, c.done
	if conn == nil {
		c.mu.Unlock()
		return Response{}, ErrNotConnected
	}
	req.ID = uuid.NewString()
	ch := make(chan Response, 1)
	c.pending[req.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.cfg.RequestTimeout))
	err := conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		return Response{}, fmt.Errorf("write %s: %w", req.Action, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-done:
		return Response{}, ErrNotConnected
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// readLoop delivers responses to their waiting requests until the session
// drops.
func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, websocket.ErrCloseSent) {
				log.Printf("[candlefeed] session closed: %v", err)
			}
			return
		}

		var resp Response
		if err := json.Unmarshal(raw, &resp); err != nil {
			log.Printf("[candlefeed] parse error: %v (raw: %s)", err, raw)
			continue
		}

		c.mu.Lock()
		ch := c.pending[resp.ID]
		c.mu.Unlock()
		if ch == nil {
			log.Printf("[candlefeed] dropping response for unknown id %q", resp.ID)
			continue
		}
		select {
		case ch <- resp:
		default:
		}
	}
}
