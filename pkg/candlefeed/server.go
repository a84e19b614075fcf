package candlefeed

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"
)

// Provider produces the candles a Server hands out. count bars of period
// seconds ending at or before end, oldest first.
type Provider interface {
	Candles(asset string, end int64, count int, period int64) []Candle
}

// ServerConfig sets the credentials a Server accepts. Empty Token and
// TOTPSecret mean no auth is required.
type ServerConfig struct {
	Token      string
	TOTPSecret string
}

// Server speaks the feed protocol over WebSocket. It is used by
// cmd/barserver and by tests.
type Server struct {
	cfg      ServerConfig
	provider Provider
	upgrader websocket.Upgrader
}

// NewServer creates a feed server backed by p.
func NewServer(p Provider, cfg ServerConfig) *Server {
	return &Server{
		cfg:      cfg,
		provider: p,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

func (s *Server) authRequired() bool {
	return s.cfg.Token != "" || s.cfg.TOTPSecret != ""
}

// ServeHTTP upgrades the request and answers frames until the client leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[candlefeed] upgrade error: %v", err)
		return
	}
	defer conn.Close()

	authed := !s.authRequired()
	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		resp := Response{ID: req.ID}
		switch {
		case req.Action == ActionAuth:
			if reason := s.checkAuth(req); reason != "" {
				resp.Error = reason
			} else {
				authed = true
				resp.OK = true
			}
		case !authed:
			resp.Error = "unauthorized"
		case req.Action == ActionPing:
			resp.OK = true
		case req.Action == ActionCandles:
			if req.Period <= 0 || req.Asset == "" {
				resp.Error = "asset and period are required"
				break
			}
			count := int(req.Offset / req.Period)
			resp.OK = true
			resp.Candles = s.provider.Candles(req.Asset, req.End, count, req.Period)
		default:
			resp.Error = "unknown action " + req.Action
		}

		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func (s *Server) checkAuth(req Request) string {
	if s.cfg.Token != "" && req.Token != s.cfg.Token {
		return "invalid token"
	}
	if s.cfg.TOTPSecret != "" && !totp.Validate(req.OTP, s.cfg.TOTPSecret) {
		return "invalid otp"
	}
	return ""
}
