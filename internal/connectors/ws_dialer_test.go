package connectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contestra/ai-ranker-sub003/internal/infra/auth"
)

func TestWSDialer_DialAndRead(t *testing.T) {
	upgrader := websocket.Upgrader{}

	var mu sync.Mutex
	var gotPath, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"initial","stats":{"total":1}}`)))
	}))
	defer srv.Close()

	dialer := NewWSDialer(srv.URL, auth.NewBackendToken("ws-token"), zap.NewNop())

	conn, err := dialer.DialMonitor(context.Background(), "brand.example")
	require.NoError(t, err)
	defer conn.Close()

	mu.Lock()
	assert.Equal(t, "/crawler/v2/monitor/ws/brand.example", gotPath)
	assert.Equal(t, "Bearer ws-token", gotAuth)
	mu.Unlock()

	data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"initial","stats":{"total":1}}`, string(data))
}

func TestWSDialer_HandshakeRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	dialer := NewWSDialer(srv.URL, auth.NewBackendToken(""), zap.NewNop())

	_, err := dialer.DialMonitor(context.Background(), "brand.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
