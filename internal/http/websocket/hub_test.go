package websocket_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/localflix/localflix/internal/http/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frame is the client-side view of a SocketMessage as it crosses the wire.
type frame struct {
	Title string                 `json:"title"`
	Body  map[string]interface{} `json:"arguments"`
	Id    int                    `json:"id"`
	Type  int                    `json:"type"`
}

func startHub(t *testing.T, hub *websocket.SocketHub) *httptest.Server {
	ctx, ctxCancel := context.WithCancel(context.Background())
	t.Cleanup(ctxCancel)
	go hub.Start(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.UpgradeToSocket))
	t.Cleanup(server.Close)
	return server
}

// dialSocket retries until the hub accepts the upgrade; connections arriving
// before Start has opened the hub are refused rather than queued.
func dialSocket(t *testing.T, server *httptest.Server) *gorillaws.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	var conn *gorillaws.Conn
	require.Eventually(t, func() bool {
		dialed, _, err := gorillaws.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}

		conn = dialed
		return true
	}, time.Second*2, time.Millisecond*10, "hub never accepted the websocket upgrade")

	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *gorillaws.Conn) frame {
	require.Nil(t, conn.SetReadDeadline(time.Now().Add(time.Second*2)))

	received := frame{}
	require.Nil(t, conn.ReadJSON(&received))
	return received
}

func Test_SocketHub_WelcomesNewClients(t *testing.T) {
	hub := websocket.New()
	hub.WithConnectionCallback(func() map[string]interface{} {
		return map[string]interface{}{"library": "ready"}
	})

	conn := dialSocket(t, startHub(t, hub))

	welcome := readFrame(t, conn)
	assert.Equal(t, "CONNECTION_ESTABLISHED", welcome.Title)
	assert.EqualValues(t, websocket.Welcome, welcome.Type)
	assert.Equal(t, "ready", welcome.Body["library"])
	assert.NotEmpty(t, welcome.Body["client"], "welcome should carry the client's assigned ID")
}

func Test_SocketHub_RoutesCommandsToBoundHandler(t *testing.T) {
	hub := websocket.New()
	hub.BindCommand("LIBRARY_PING", func(hub *websocket.SocketHub, message *websocket.SocketMessage) error {
		hub.Send(message.FormReply("LIBRARY_PING", map[string]interface{}{"pong": true}, websocket.Response))
		return nil
	})

	conn := dialSocket(t, startHub(t, hub))
	readFrame(t, conn)

	require.Nil(t, conn.WriteJSON(&websocket.SocketMessage{
		Title: "LIBRARY_PING",
		Id:    42,
		Type:  websocket.Command,
		Body:  map[string]interface{}{"echo": "hello"},
	}))

	reply := readFrame(t, conn)
	assert.Equal(t, "LIBRARY_PING", reply.Title)
	assert.EqualValues(t, websocket.Response, reply.Type)
	assert.Equal(t, 42, reply.Id, "reply should carry the ID of the command it answers")
	assert.Equal(t, true, reply.Body["pong"])

	command, ok := reply.Body["command"].(map[string]interface{})
	require.True(t, ok, "reply should embed the arguments of the originating command")
	assert.Equal(t, "hello", command["echo"])
}

func Test_SocketHub_RejectsUnknownCommands(t *testing.T) {
	hub := websocket.New()
	conn := dialSocket(t, startHub(t, hub))
	readFrame(t, conn)

	require.Nil(t, conn.WriteJSON(&websocket.SocketMessage{
		Title: "NOT_A_COMMAND",
		Id:    7,
		Type:  websocket.Command,
	}))

	reply := readFrame(t, conn)
	assert.Equal(t, "COMMAND_FAILURE", reply.Title)
	assert.EqualValues(t, websocket.ErrorResponse, reply.Type)
	assert.Equal(t, 7, reply.Id)
	assert.Equal(t, "Unknown command", reply.Body["error"])
}

func Test_SocketHub_ReportsHandlerFailures(t *testing.T) {
	hub := websocket.New()
	hub.BindCommand("LIBRARY_PING", func(hub *websocket.SocketHub, message *websocket.SocketMessage) error {
		return errors.New("library offline")
	})

	conn := dialSocket(t, startHub(t, hub))
	readFrame(t, conn)

	require.Nil(t, conn.WriteJSON(&websocket.SocketMessage{Title: "LIBRARY_PING", Type: websocket.Command}))

	reply := readFrame(t, conn)
	assert.Equal(t, "COMMAND_FAILURE", reply.Title)
	assert.EqualValues(t, websocket.ErrorResponse, reply.Type)
	assert.Equal(t, "library offline", reply.Body["error"])
}

func Test_SocketHub_BroadcastsToAllClients(t *testing.T) {
	hub := websocket.New()
	server := startHub(t, hub)

	first := dialSocket(t, server)
	second := dialSocket(t, server)
	readFrame(t, first)
	readFrame(t, second)

	hub.Send(&websocket.SocketMessage{
		Title: "LIBRARY_EVENT",
		Body:  map[string]interface{}{"count": 3},
		Type:  websocket.Update,
	})

	for _, conn := range []*gorillaws.Conn{first, second} {
		update := readFrame(t, conn)
		assert.Equal(t, "LIBRARY_EVENT", update.Title)
		assert.EqualValues(t, websocket.Update, update.Type)
		assert.EqualValues(t, 3, update.Body["count"])
	}
}

// Send must return without blocking when the hub is offline; messages
// dispatched before Start are dropped, not queued.
func Test_SocketHub_DropsMessagesWhenOffline(t *testing.T) {
	hub := websocket.New()
	hub.Send(&websocket.SocketMessage{Title: "LIBRARY_EVENT", Type: websocket.Update})
}
