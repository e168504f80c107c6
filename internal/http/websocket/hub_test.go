package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/hbomb79/Curator/internal/http/websocket"
	"github.com/hbomb79/go-chanassert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	Title string         `json:"title"`
	Body  map[string]any `json:"body"`
	Type  int            `json:"type"`
}

func startHub(t *testing.T) (*websocket.SocketHub, string, context.CancelFunc) {
	hub := websocket.New()
	hub.WithConnectionCallback(func() map[string]any { return map[string]any{"runs": 2} })

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	go func() {
		close(started)
		hub.Start(ctx)
	}()
	<-started

	srv := httptest.NewServer(http.HandlerFunc(hub.UpgradeToSocket))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http"), cancel
}

func dial(t *testing.T, url string) *gorilla.Conn {
	var (
		conn *gorilla.Conn
		err  error
	)
	// The hub may not have marked itself running yet
	require.Eventually(t, func() bool {
		conn, _, err = gorilla.DefaultDialer.Dial(url, nil)
		return err == nil
	}, time.Second, 10*time.Millisecond)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readMessage(t *testing.T, conn *gorilla.Conn) received {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestSocketHub_WelcomesAndBroadcasts(t *testing.T) {
	hub, url, _ := startHub(t)

	first := dial(t, url)
	welcome := readMessage(t, first)
	assert.Equal(t, "CONNECTION_ESTABLISHED", welcome.Title)
	assert.Equal(t, int(websocket.Welcome), welcome.Type)
	assert.EqualValues(t, 2, welcome.Body["runs"])
	assert.NotEmpty(t, welcome.Body["client"])

	second := dial(t, url)
	readMessage(t, second)

	hub.Send(&websocket.SocketMessage{Title: "run:start", Body: map[string]any{"library_id": "4"}, Type: websocket.Update})

	for _, conn := range []*gorilla.Conn{first, second} {
		msg := readMessage(t, conn)
		assert.Equal(t, "run:start", msg.Title)
		assert.Equal(t, "4", msg.Body["library_id"])
	}
}

// messages relays every message read from the connection to the returned
// channel until the connection is closed.
func messages(conn *gorilla.Conn) chan received {
	out := make(chan received, 16)
	go func() {
		for {
			var msg received
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			out <- msg
		}
	}()

	return out
}

func matchTitle(title string) chanassert.Matcher[received] {
	return chanassert.MatchPredicate(func(msg received) bool { return msg.Title == title })
}

func TestSocketHub_RelaysEveryUpdate(t *testing.T) {
	hub, url, _ := startHub(t)
	conn := dial(t, url)
	readMessage(t, conn)
	require.NoError(t, conn.SetReadDeadline(time.Time{}))

	exp := chanassert.NewChannelExpecter(messages(conn)).Expect(
		chanassert.ExactlyNOf(3, matchTitle("run:batch:complete")),
		chanassert.ExactlyNOf(1, matchTitle("run:complete")),
	)
	exp.Listen()

	for range 3 {
		hub.Send(&websocket.SocketMessage{Title: "run:batch:complete", Type: websocket.Update})
	}
	hub.Send(&websocket.SocketMessage{Title: "run:complete", Type: websocket.Update})

	exp.AssertSatisfied(t, 2*time.Second)
}

func TestSocketHub_ClosesClientsOnShutdown(t *testing.T) {
	_, url, cancel := startHub(t)
	conn := dial(t, url)
	readMessage(t, conn)

	cancel()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestSocketHub_SendWhileStoppedIsDropped(t *testing.T) {
	hub := websocket.New()

	done := make(chan struct{})
	go func() {
		hub.Send(&websocket.SocketMessage{Title: "ignored"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send blocked on a hub which is not running")
	}
}
