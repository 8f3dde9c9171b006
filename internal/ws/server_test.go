package ws_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/homehive/chat-service/internal/apperr"
	"github.com/homehive/chat-service/internal/auth"
	"github.com/homehive/chat-service/internal/handlers"
	"github.com/homehive/chat-service/internal/property"
	"github.com/homehive/chat-service/internal/repository"
	"github.com/homehive/chat-service/internal/service"
	"github.com/homehive/chat-service/internal/ws"
)

type wsTestDirectory struct{}

func (wsTestDirectory) Lookup(_ context.Context, propertyID string) (*property.Summary, error) {
	if propertyID != "prop-1" {
		return nil, apperr.ErrNotFound
	}
	return &property.Summary{ID: "prop-1", Title: "Sunny Loft", LandlordID: "landlord-1", LandlordName: "Lena"}, nil
}

type gatewayEnv struct {
	baseURL   string
	svc       *service.Service
	hub       *ws.Hub
	validator *auth.Validator
	roomID    string
}

// startGateway boots the full fiber app on a loopback listener so tests can
// dial the live channel like a real client.
func startGateway(t *testing.T) *gatewayEnv {
	t.Helper()
	log := zap.NewNop().Sugar()
	validator := auth.NewValidator("test-secret")

	hub := ws.NewHub(log)
	svc := service.New(repository.NewMemoryRoomRepository(), repository.NewMemoryMessageRepository(), wsTestDirectory{}, hub, nil, log)
	wsSrv := ws.NewServer(hub, svc, validator, ws.Config{
		PingInterval:  30 * time.Second,
		WriteDeadline: 5 * time.Second,
		ReadDeadline:  30 * time.Second,
		MaxMsgSize:    4096,
	}, log)
	app := handlers.NewApp(handlers.NewChatHandler(svc, log), wsSrv, validator, nil, log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	tenant := &auth.Claims{UserID: "tenant-1", Name: "Tess", Role: auth.RoleTenant}
	room, _, err := svc.GetOrCreateRoom(context.Background(), tenant, "prop-1")
	require.NoError(t, err)

	return &gatewayEnv{
		baseURL:   "ws://" + ln.Addr().String(),
		svc:       svc,
		hub:       hub,
		validator: validator,
		roomID:    room.ID,
	}
}

func (e *gatewayEnv) sign(t *testing.T, userID, name, role string) string {
	t.Helper()
	token, err := e.validator.Sign(auth.Claims{UserID: userID, Name: name, Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *gatewayEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.baseURL+"/ws/chat/"+e.roomID+"?token="+token, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return conn
}

// waitForSubscribers blocks until the room's fan-out set reaches n, since
// registration happens on the server goroutine after the upgrade.
func (e *gatewayEnv) waitForSubscribers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.hub.Subscribers(e.roomID) == n
	}, 3*time.Second, 10*time.Millisecond)
}

func readFrame(t *testing.T, conn *websocket.Conn) ws.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f ws.Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestGatewayRejectsBadToken(t *testing.T) {
	env := startGateway(t)

	conn, resp, err := websocket.DefaultDialer.Dial(env.baseURL+"/ws/chat/"+env.roomID+"?token=not-a-jwt", nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	// the handshake fails after the upgrade; the server closes without
	// registering the connection
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, env.hub.Subscribers(env.roomID))
}

func TestGatewayRejectsNonMember(t *testing.T) {
	env := startGateway(t)

	stranger := env.sign(t, "stranger-1", "Sam", auth.RoleTenant)
	conn, resp, err := websocket.DefaultDialer.Dial(env.baseURL+"/ws/chat/"+env.roomID+"?token="+stranger, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, env.hub.Subscribers(env.roomID))
}

func TestGatewaySendAndEcho(t *testing.T) {
	env := startGateway(t)

	tenant := env.sign(t, "tenant-1", "Tess", auth.RoleTenant)
	conn := env.dial(t, tenant)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"message": "is it still available?"}))

	f := readFrame(t, conn)
	assert.Equal(t, ws.FrameMessage, f.Type)
	require.NotNil(t, f.Message)
	assert.Equal(t, int64(1), f.Message.Seq)
	assert.Equal(t, "tenant-1", f.Message.SenderID)
	assert.Equal(t, "is it still available?", f.Message.Content)
	assert.Equal(t, 1, env.hub.Subscribers(env.roomID))
}

func TestGatewayValidationFailureKeepsConnectionOpen(t *testing.T) {
	env := startGateway(t)

	tenant := env.sign(t, "tenant-1", "Tess", auth.RoleTenant)
	conn := env.dial(t, tenant)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"message": "   "}))
	f := readFrame(t, conn)
	assert.Equal(t, ws.FrameError, f.Type)
	assert.NotEmpty(t, f.Error)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f = readFrame(t, conn)
	assert.Equal(t, ws.FrameError, f.Type)

	// the connection survived both failures
	require.NoError(t, conn.WriteJSON(map[string]any{"message": "still here"}))
	f = readFrame(t, conn)
	assert.Equal(t, ws.FrameMessage, f.Type)
	assert.Equal(t, "still here", f.Message.Content)
}

func TestGatewayFacadeSendReachesLiveSocket(t *testing.T) {
	env := startGateway(t)

	tenant := env.sign(t, "tenant-1", "Tess", auth.RoleTenant)
	conn := env.dial(t, tenant)
	defer conn.Close()
	env.waitForSubscribers(t, 1)

	// the landlord posts through the facade path; the tenant's socket gets
	// the fan-out copy
	lord := &auth.Claims{UserID: "landlord-1", Name: "Lena", Role: auth.RoleLandlord}
	msg, err := env.svc.Send(context.Background(), lord, env.roomID, "yes, come by tomorrow", nil)
	require.NoError(t, err)

	f := readFrame(t, conn)
	assert.Equal(t, ws.FrameMessage, f.Type)
	require.NotNil(t, f.Message)
	assert.Equal(t, msg.Seq, f.Message.Seq)
	assert.Equal(t, "landlord-1", f.Message.SenderID)
}

func TestGatewayBroadcastsBetweenConnections(t *testing.T) {
	env := startGateway(t)

	tenantConn := env.dial(t, env.sign(t, "tenant-1", "Tess", auth.RoleTenant))
	defer tenantConn.Close()
	lordConn := env.dial(t, env.sign(t, "landlord-1", "Lena", auth.RoleLandlord))
	defer lordConn.Close()
	env.waitForSubscribers(t, 2)

	require.NoError(t, tenantConn.WriteJSON(map[string]any{"message": "hello"}))

	for _, conn := range []*websocket.Conn{tenantConn, lordConn} {
		f := readFrame(t, conn)
		assert.Equal(t, ws.FrameMessage, f.Type)
		assert.Equal(t, "hello", f.Message.Content)
	}
}
