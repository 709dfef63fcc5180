package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quizora/exam-agent/internal/session"
)

// dialHub stands up an upgrading server, registers the server side of
// the connection with the hub and returns the registered client plus
// the browser side of the stream.
func dialHub(t *testing.T, hub *Hub) (*Client, *gorillaws.Conn) {
	t.Helper()

	upgrader := gorillaws.Upgrader{}
	registered := make(chan *Client, 1)
	hold := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		registered <- hub.Register(conn)
		<-hold
		conn.Close()
	}))
	t.Cleanup(func() {
		close(hold)
		srv.Close()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	peer, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { peer.Close() })

	return <-registered, peer
}

// Timer notices arrive from the controller's goroutines while the read
// loop is answering events on the same connection; both must be able to
// write without stepping on each other.
func TestConcurrentNoticeAndReplyWrites(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client, peer := dialHub(t, hub)

	// Drain everything the agent writes so writes never block.
	go func() {
		for {
			if _, _, err := peer.ReadMessage(); err != nil {
				return
			}
		}
	}()

	const rounds = 500
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			hub.Notify(session.Notice{Kind: session.NoticeTimeWarning, Message: "1 minute remaining!"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if err := client.WriteTyped(VerdictResponse{Event: EventVerdict, Suppress: true}); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	wg.Wait()

	hub.Unregister(client)
}

func TestNotifyDeliversToPeer(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client, peer := dialHub(t, hub)

	hub.Notify(session.Notice{Kind: session.NoticeTimeUp, Message: "Time is up!"})

	var got NoticeResponse
	if err := peer.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Event != EventNotice {
		t.Errorf("event = %q, want %q", got.Event, EventNotice)
	}

	// After unregistering nothing else is pushed.
	hub.Unregister(client)
	hub.Notify(session.Notice{Kind: session.NoticeTimeUp, Message: "again"})
	// The hub holds no reference; a second read would block, which is
	// exactly the contract — nothing to assert beyond no panic.
}
