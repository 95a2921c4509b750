package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livepoll/backend/internal/apperr"
	"github.com/livepoll/backend/internal/feed"
	"github.com/livepoll/backend/internal/models"
	"github.com/livepoll/backend/internal/results"
)

type stubLoader struct {
	mu    sync.Mutex
	calls map[string]int
}

func (l *stubLoader) SessionResults(_ context.Context, id string) (*results.SessionResults, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = map[string]int{}
	}
	l.calls[id]++
	return &results.SessionResults{SessionID: id, Questions: []results.QuestionResult{{TotalVotes: l.calls[id]}}}, nil
}

func (l *stubLoader) count(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[id]
}

type stubSessions map[string]bool

func (s stubSessions) Session(_ context.Context, id string) (*models.Session, error) {
	if !s[id] {
		return nil, apperr.ErrNotFound
	}
	return &models.Session{ID: id, IsActive: true}, nil
}

func testClient(h *Hub, sessionID string) *Client {
	return newClient(h, sessionID, nil, nil)
}

func nextEvent(t *testing.T, c *Client, event string) WSMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-c.send:
			if msg.Event == event {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", event)
		}
	}
}

func TestHubMountsSubscriberPerSession(t *testing.T) {
	f := feed.NewMemoryFeed()
	h := NewHub(f, &stubLoader{}, nil)
	defer h.Close()

	a := testClient(h, "weekly-meeting")
	b := testClient(h, "weekly-meeting")
	require.NoError(t, h.Register(a))
	require.NoError(t, h.Register(b))
	assert.Equal(t, 2, h.ViewerCount("weekly-meeting"))
	assert.Equal(t, 1, f.Subscribers("weekly-meeting"))

	nextEvent(t, a, EventResults)

	h.Unregister(a)
	assert.Equal(t, 1, f.Subscribers("weekly-meeting"))
	h.Unregister(b)
	assert.Equal(t, 0, h.ViewerCount("weekly-meeting"))
	assert.Equal(t, 0, f.Subscribers("weekly-meeting"))

	h.Unregister(b)
}

func TestHubBroadcastsOnVote(t *testing.T) {
	f := feed.NewMemoryFeed()
	loader := &stubLoader{}
	h := NewHub(f, loader, nil)
	defer h.Close()

	c := testClient(h, "weekly-meeting")
	other := testClient(h, "other")
	require.NoError(t, h.Register(c))
	require.NoError(t, h.Register(other))
	nextEvent(t, c, EventResults)
	nextEvent(t, other, EventResults)

	require.NoError(t, f.Publish(context.Background(), feed.VoteInserted("weekly-meeting")))
	require.Eventually(t, func() bool { return loader.count("weekly-meeting") == 2 }, 2*time.Second, 5*time.Millisecond)
	for {
		msg := nextEvent(t, c, EventResults)
		var res results.SessionResults
		require.NoError(t, json.Unmarshal(msg.Data, &res))
		assert.Equal(t, "weekly-meeting", res.SessionID)
		if res.Questions[0].TotalVotes == 2 {
			break
		}
	}
	assert.Equal(t, 1, loader.count("other"))
}

func TestHubLateJoinerGetsLatest(t *testing.T) {
	h := NewHub(feed.NewMemoryFeed(), &stubLoader{}, nil)
	defer h.Close()

	first := testClient(h, "weekly-meeting")
	require.NoError(t, h.Register(first))
	nextEvent(t, first, EventResults)

	late := testClient(h, "weekly-meeting")
	require.NoError(t, h.Register(late))
	nextEvent(t, late, EventResults)
}

// gatedListener holds Subscribe for one session until release is closed.
type gatedListener struct {
	*feed.MemoryFeed
	session string
	entered chan struct{}
	release chan struct{}
}

func (l *gatedListener) Subscribe(sessionID string, handler func(feed.Event)) (func(), error) {
	if sessionID == l.session {
		close(l.entered)
		<-l.release
	}
	return l.MemoryFeed.Subscribe(sessionID, handler)
}

func TestHubSlowSubscribeDoesNotBlockOtherSessions(t *testing.T) {
	gate := &gatedListener{
		MemoryFeed: feed.NewMemoryFeed(),
		session:    "slow",
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	h := NewHub(gate, &stubLoader{}, nil)
	defer h.Close()

	slow := testClient(h, "slow")
	registered := make(chan error, 1)
	go func() { registered <- h.Register(slow) }()
	<-gate.entered

	fast := testClient(h, "weekly-meeting")
	done := make(chan error, 1)
	go func() { done <- h.Register(fast) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("register blocked behind another session's subscribe")
	}
	nextEvent(t, fast, EventResults)
	assert.Equal(t, 1, h.ViewerCount("slow"))

	close(gate.release)
	require.NoError(t, <-registered)
	nextEvent(t, slow, EventResults)
	assert.Equal(t, 1, gate.Subscribers("slow"))
}

func TestHubConcurrentViewerChurn(t *testing.T) {
	const (
		viewers = 20
		rounds  = 50
	)
	f := feed.NewMemoryFeed()
	h := NewHub(f, &stubLoader{}, nil)
	defer h.Close()

	var wg sync.WaitGroup
	for i := 0; i < viewers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				c := testClient(h, "weekly-meeting")
				if err := h.Register(c); err != nil {
					t.Error(err)
					return
				}
				_ = f.Publish(context.Background(), feed.VoteInserted("weekly-meeting"))
				h.Unregister(c)
			}
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("viewer churn did not finish")
	}

	assert.Equal(t, 0, h.ViewerCount("weekly-meeting"))
	assert.Equal(t, 0, f.Subscribers("weekly-meeting"))
	assert.Nil(t, h.Latest("weekly-meeting"))
}

func TestServeWs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := feed.NewMemoryFeed()
	h := NewHub(f, &stubLoader{}, nil)
	defer h.Close()

	r := gin.New()
	r.GET("/ws", ServeWs(h, stubSessions{"weekly-meeting": true}, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?session_id=missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 404, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?session_id=weekly-meeting", nil)
	require.NoError(t, err)
	defer conn.Close()

	readEvent := func(event string) WSMessage {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			var msg WSMessage
			require.NoError(t, conn.ReadJSON(&msg))
			if msg.Event == event {
				return msg
			}
		}
	}
	readEvent(EventResults)

	require.NoError(t, f.Publish(context.Background(), feed.VoteInserted("weekly-meeting")))
	for {
		msg := readEvent(EventResults)
		var res results.SessionResults
		require.NoError(t, json.Unmarshal(msg.Data, &res))
		if res.Questions[0].TotalVotes == 2 {
			break
		}
	}
	assert.Equal(t, 1, h.ViewerCount("weekly-meeting"))
}
