package connectors

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/contestra/ai-ranker-sub003/internal/engine"
	"github.com/contestra/ai-ranker-sub003/internal/infra/auth"
)

const pathMonitorWS = "/crawler/v2/monitor/ws/"

// WSDialer открывает доменно-скоупленный WebSocket живого канала.
// Реализует engine.MonitorDialer; политика переподключений живет в
// ChannelManager, дайлер отвечает только за одно соединение.
type WSDialer struct {
	baseURL string
	token   *auth.BackendToken
	logger  *zap.Logger
}

func NewWSDialer(baseURL string, token *auth.BackendToken, logger *zap.Logger) *WSDialer {
	return &WSDialer{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		logger:  logger.Named("ws-dialer"),
	}
}

func (d *WSDialer) DialMonitor(ctx context.Context, domainName string) (engine.MessageConn, error) {
	u, err := url.Parse(d.baseURL + pathMonitorWS + url.PathEscape(domainName))
	if err != nil {
		return nil, fmt.Errorf("parse monitor url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	header := http.Header{}
	if !d.token.Empty() {
		header.Set("Authorization", d.token.Header())
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("monitor handshake failed (%d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("monitor dial failed: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

// wsConn адаптирует *websocket.Conn под engine.MessageConn.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
