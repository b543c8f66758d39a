package handler

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillswap/internal/app/chat"
	"skillswap/internal/configs"
	"skillswap/internal/pkg/resp"
)

func testConfig() *configs.AppConfig {
	return &configs.AppConfig{
		Environment:    "development",
		Port:           8080,
		AllowedOrigins: []string{},
		AuthMode:       configs.AuthModeTrust,
		WSPath:         "/api/ws",
		SendBufferSize: 16,
		MaxFrameBytes:  8192,
		PongWait:       time.Minute,
		UpgradeRate:    100,
		UpgradeBurst:   100,
	}
}

type testEnv struct {
	srv      *httptest.Server
	registry *chat.Registry
	gateway  *Gateway
}

func newTestEnv(t *testing.T, cfg *configs.AppConfig) *testEnv {
	t.Helper()
	registry := chat.NewRegistry()
	gateway := NewGateway(registry, cfg)
	srv := httptest.NewServer(Router(&AppDeps{Config: cfg, Registry: registry, Gateway: gateway}))
	t.Cleanup(func() {
		gateway.Shutdown()
		srv.Close()
	})
	return &testEnv{srv: srv, registry: registry, gateway: gateway}
}

func (e *testEnv) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + path
}

func (e *testEnv) dial(t *testing.T, path string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	ws, res, err := websocket.DefaultDialer.Dial(e.wsURL(path), header)
	if ws != nil {
		t.Cleanup(func() { ws.Close() })
	}
	return ws, res, err
}

func readFrame(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := ws.ReadMessage()
	require.NoError(t, err)
	return string(frame)
}

func TestGatewayAcceptsRealtimeEndpoint(t *testing.T) {
	env := newTestEnv(t, testConfig())

	ws, _, err := env.dial(t, "/api/ws", nil)
	require.NoError(t, err)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.JSONEq(t, `{"type":"pong"}`, readFrame(t, ws))

	assert.Equal(t, int64(1), env.gateway.Accepted())
	assert.Equal(t, 1, env.gateway.ActiveConnections())

	users, _ := env.registry.Stats()
	assert.Zero(t, users, "an unauthenticated connection is not in the registry")
}

func TestGatewayTerminatesUpgradeToOtherPath(t *testing.T) {
	env := newTestEnv(t, testConfig())

	for _, path := range []string{"/", "/ws", "/api/ws/extra", "/health"} {
		ws, res, err := env.dial(t, path, nil)
		assert.Error(t, err, path)
		assert.Nil(t, ws, path)
		assert.Nil(t, res, "no handshake response may be written for %s", path)
	}

	assert.Zero(t, env.gateway.Accepted())
	assert.Zero(t, env.gateway.ActiveConnections())
}

func TestGatewayClosesRawTransportWithoutResponse(t *testing.T) {
	env := newTestEnv(t, testConfig())

	conn, err := net.Dial("tcp", env.srv.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	request := "GET /not-realtime HTTP/1.1\r\n" +
		"Host: example\r\n" +
		"Connection: Upgrade\r\n" +
		"Upgrade: websocket\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n"
	_, err = conn.Write([]byte(request))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := bufio.NewReader(conn).Read(make([]byte, 1))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, env.gateway.Accepted())
}

func TestGatewayPassesPlainRequests(t *testing.T) {
	env := newTestEnv(t, testConfig())

	res, err := http.Get(env.srv.URL + "/nowhere")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	var body resp.JSONResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.NotZero(t, body.Code)
}

func TestGatewayRateLimitsUpgrades(t *testing.T) {
	cfg := testConfig()
	cfg.UpgradeRate = 0.001
	cfg.UpgradeBurst = 1
	env := newTestEnv(t, cfg)

	_, _, err := env.dial(t, "/api/ws", nil)
	require.NoError(t, err)

	_, res, err := env.dial(t, "/api/ws", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Eventually(t, func() bool { return env.gateway.Accepted() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestGatewayChecksOriginOutsideDevelopment(t *testing.T) {
	cfg := testConfig()
	cfg.Environment = "production"
	cfg.AllowedOrigins = []string{"https://app.example"}
	env := newTestEnv(t, cfg)

	_, res, err := env.dial(t, "/api/ws", http.Header{"Origin": {"https://evil.example"}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	_, _, err = env.dial(t, "/api/ws", http.Header{"Origin": {"https://app.example"}})
	assert.NoError(t, err)
}

func TestGatewayShutdownDrainsConnections(t *testing.T) {
	env := newTestEnv(t, testConfig())

	authed, _, err := env.dial(t, "/api/ws", nil)
	require.NoError(t, err)
	require.NoError(t, authed.WriteMessage(websocket.TextMessage, []byte(`{"type":"auth","userId":"erin"}`)))
	readFrame(t, authed)

	anonymous, _, err := env.dial(t, "/api/ws", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return env.gateway.ActiveConnections() == 2 }, 2*time.Second, 10*time.Millisecond)

	env.gateway.Shutdown()

	assert.Zero(t, env.gateway.ActiveConnections())
	users, _ := env.registry.Stats()
	assert.Zero(t, users)

	for _, ws := range []*websocket.Conn{authed, anonymous} {
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := ws.ReadMessage()
		assert.Error(t, err)
	}

	_, res, err := env.dial(t, "/api/ws", nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestHealthReportsPresence(t *testing.T) {
	env := newTestEnv(t, testConfig())

	ws, _, err := env.dial(t, "/api/ws", nil)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"auth","userId":"frank"}`)))
	readFrame(t, ws)

	res, err := http.Get(env.srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Code int           `json:"code"`
		Data HealthPayload `json:"data"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Zero(t, body.Code)
	assert.Equal(t, "ok", body.Data.Status)
	assert.Equal(t, 1, body.Data.Users)
	assert.Equal(t, 1, body.Data.Connections)
	assert.Equal(t, 1, body.Data.ActiveConnections)
}
