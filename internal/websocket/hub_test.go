package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, sub uuid.UUID) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub.String(), "role": "staff"})
	s, err := tok.SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func startServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(hub, c, testSecret) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServeWsRejectsMissingToken(t *testing.T) {
	hub := NewHub(nil)
	srv := startServer(t, hub)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPublishReachesOnlyRecipient(t *testing.T) {
	hub := NewHub(nil)
	stop := make(chan struct{})
	defer close(stop)
	go hub.Run(stop)
	srv := startServer(t, hub)

	alice, bob := uuid.New(), uuid.New()
	aliceConn := dial(t, srv, signToken(t, alice))
	bobConn := dial(t, srv, signToken(t, bob))

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(Event{Type: "request.approved", Recipient: alice, Data: map[string]string{"request_no": "RF-1020260001"}}))

	_ = aliceConn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := aliceConn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "RF-1020260001")

	_ = bobConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = bobConn.ReadMessage()
	assert.Error(t, err)
}

func TestStoppedHubTurnsAwayNewClients(t *testing.T) {
	hub := NewHub(nil)
	stop := make(chan struct{})
	ran := make(chan struct{})
	go func() {
		hub.Run(stop)
		close(ran)
	}()
	close(stop)
	<-ran
	srv := startServer(t, hub)

	conn := dial(t, srv, signToken(t, uuid.New()))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseGoingAway), "got %v", err)
	assert.Zero(t, hub.ClientCount())
	assert.ErrorIs(t, hub.Publish(Event{Type: "request.approved"}), ErrHubClosed)
}

func TestStopDisconnectsClients(t *testing.T) {
	hub := NewHub(nil)
	stop := make(chan struct{})
	ran := make(chan struct{})
	go func() {
		hub.Run(stop)
		close(ran)
	}()
	srv := startServer(t, hub)

	conn := dial(t, srv, signToken(t, uuid.New()))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	close(stop)
	<-ran

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *gorilla.CloseError
	assert.ErrorAs(t, err, &closeErr)
	assert.Zero(t, hub.ClientCount())

	// a second client arriving after shutdown is refused rather than hanging
	late := dial(t, srv, signToken(t, uuid.New()))
	_ = late.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = late.ReadMessage()
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseGoingAway), "got %v", err)
}
