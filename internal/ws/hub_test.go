package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edt-scheduler/internal/events"
)

func TestHubStreamsFilteredEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws/events", EventsHandler(hub, nil))
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events?types=session:"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(events.Event{Type: events.ScheduleOptimized})
	hub.Publish(events.Event{Type: events.SessionMoved, Payload: map[string]int{"id": 7}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got events.Event
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, events.SessionMoved, got.Type)
}

func TestClientWants(t *testing.T) {
	all := newClient(nil, nil, "")
	assert.True(t, all.wants(events.ExamRoomConfigUpdated))

	some := newClient(nil, nil, "exam:, schedule:")
	assert.True(t, some.wants(events.ExamRoomConfigUpdated))
	assert.True(t, some.wants(events.ScheduleOptimized))
	assert.False(t, some.wants(events.SessionAdded))
}

func TestEventsHandlerChecksOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws/events", EventsHandler(hub, []string{"https://edt.example.org/"}))
	server := httptest.NewServer(router)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://edt.example.org"}})
	require.NoError(t, err)
	conn.Close()

	conn, _, err = websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	conn.Close()
}

func TestOriginChecker(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://api.local/ws/events", nil)

	req.Header.Set("Origin", "http://api.local")
	assert.True(t, originChecker([]string{"https://edt.example.org"})(req))

	req.Header.Set("Origin", "https://other.example.org")
	assert.False(t, originChecker([]string{"https://edt.example.org"})(req))
	assert.True(t, originChecker([]string{"*"})(req))
	assert.True(t, originChecker(nil)(req))
}
