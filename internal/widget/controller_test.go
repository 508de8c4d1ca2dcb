package widget

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepgram/chatroom/internal/domain/chat/models"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestController(t *testing.T, setup func(o *Options)) (*Controller, *fakeClock, *fakeTransport) {
	t.Helper()

	clock := newFakeClock()
	transport := newFakeTransport(clock)
	opts := Options{
		WaitingTimeout:  5 * time.Second,
		PollingInterval: time.Second,
		RevealInterval:  800 * time.Millisecond,
		Clock:           clock,
	}
	if setup != nil {
		setup(&opts)
	}

	c := NewController("user-1", transport, opts)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Close)
	return c, clock, transport
}

// inLoop runs fn on the controller's loop goroutine.
func inLoop(t *testing.T, c *Controller, fn func()) {
	t.Helper()
	require.NoError(t, c.do(fn))
}

// settled reports whether at least n fetches went out and none is outstanding.
func settled(c *Controller, tr *fakeTransport, n int) bool {
	inFlight := -1
	if err := c.do(func() { inFlight = c.poller.InFlight() }); err != nil {
		return false
	}
	return tr.fetchCount() >= n && inFlight == 0
}

func queuedLen(c *Controller) int {
	n := -1
	_ = c.do(func() { n = c.state.pacer.Len() })
	return n
}

func TestControllerOpenFetchesImmediately(t *testing.T) {
	c, clock, tr := newTestController(t, nil)
	history := []models.Message{botMessage("b0", "welcome back", clock.Now().Add(-time.Hour))}
	tr.set(func(f *fakeTransport) { f.transcript = history })

	assert.Equal(t, 0, tr.fetchCount(), "closed widget does not poll")

	require.NoError(t, c.ToggleOpen())
	assert.True(t, c.View().IsOpen)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"b0"}, ids(c.View().Messages))
	}, waitFor, tick)
	assert.False(t, c.View().Waiting)
	assert.Equal(t, 1, tr.fetchCount())

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return tr.fetchCount() == 2 }, waitFor, tick)
}

func TestControllerSendEchoesImmediately(t *testing.T) {
	c, _, tr := newTestController(t, func(o *Options) {
		o.NewID = func() string { return "msg-1" }
	})

	require.NoError(t, c.SendMessage("hello", ""))

	v := c.View()
	require.Len(t, v.Messages, 1)
	assert.Equal(t, "msg-1", v.Messages[0].ID)
	assert.Equal(t, "hello", v.Messages[0].Content.Text)
	assert.Equal(t, models.AuthorUser, v.Messages[0].Author)
	assert.True(t, v.Waiting)

	require.Eventually(t, func() bool { return len(tr.sent()) == 1 }, waitFor, tick)
	assert.Equal(t, sentMessage{userID: "user-1", text: "hello", id: "msg-1"}, tr.sent()[0])
}

func TestControllerIgnoresEmptyText(t *testing.T) {
	c, _, tr := newTestController(t, nil)

	require.NoError(t, c.SendMessage("", ""))
	assert.Empty(t, c.View().Messages)
	assert.False(t, c.View().Waiting)
	assert.Empty(t, tr.sent())
}

func TestControllerPacesBotReplies(t *testing.T) {
	c, clock, tr := newTestController(t, nil)
	tr.set(func(f *fakeTransport) {
		f.transcript = []models.Message{botMessage("b0", "hi!", clock.Now().Add(-time.Minute))}
		f.reply = func(string) []string { return []string{"one", "two"} }
	})

	require.NoError(t, c.SetOpen(true))
	require.Eventually(t, func() bool { return len(c.View().Messages) == 1 }, waitFor, tick)

	require.NoError(t, c.SendMessage("hi", ""))

	require.Eventually(t, func() bool { return queuedLen(c) == 2 }, waitFor, tick)
	assert.Equal(t, []string{"hi!", "hi"}, texts(c.View().Messages))
	assert.True(t, c.View().Waiting)

	clock.Advance(800 * time.Millisecond)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"hi!", "hi", "one"}, texts(c.View().Messages))
	}, waitFor, tick)
	assert.True(t, c.View().Waiting)

	clock.Advance(800 * time.Millisecond)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"hi!", "hi", "one", "two"}, texts(c.View().Messages))
	}, waitFor, tick)
	assert.False(t, c.View().Waiting)
}

func TestControllerSendFlushesQueue(t *testing.T) {
	c, _, tr := newTestController(t, nil)
	tr.set(func(f *fakeTransport) {
		f.reply = func(string) []string { return []string{"X", "Y"} }
	})

	require.NoError(t, c.SetOpen(true))
	require.Eventually(t, func() bool { return settled(c, tr, 1) }, waitFor, tick)

	require.NoError(t, c.SendMessage("first", ""))
	require.Eventually(t, func() bool { return queuedLen(c) == 2 }, waitFor, tick)

	tr.set(func(f *fakeTransport) { f.reply = nil })
	require.NoError(t, c.SendMessage("Z", ""))

	assert.Equal(t, []string{"first", "X", "Y", "Z"}, texts(c.View().Messages))
}

func TestControllerWaitingTimesOut(t *testing.T) {
	c, clock, tr := newTestController(t, nil)
	tr.set(func(f *fakeTransport) { f.skipLog = true })

	require.NoError(t, c.SendMessage("anyone there?", ""))
	assert.True(t, c.View().Waiting)
	require.Eventually(t, func() bool { return settled(c, tr, 1) }, waitFor, tick)
	assert.True(t, c.View().Waiting)

	clock.Advance(4 * time.Second)
	inLoop(t, c, func() {})
	assert.True(t, c.View().Waiting)

	clock.Advance(time.Second + time.Millisecond)
	require.Eventually(t, func() bool { return !c.View().Waiting }, waitFor, tick)

	// the echo stays even though nobody confirmed it
	assert.Equal(t, []string{"anyone there?"}, texts(c.View().Messages))
}

func TestControllerBlacklist(t *testing.T) {
	c, _, tr := newTestController(t, nil)

	require.NoError(t, c.SendMessage("_restart", ""))
	assert.Empty(t, c.View().Messages)

	require.Eventually(t, func() bool { return len(tr.sent()) == 1 }, waitFor, tick)
	assert.Equal(t, "_restart", tr.sent()[0].text)
	assert.Empty(t, c.View().Messages)
}

func TestControllerButtonClick(t *testing.T) {
	c, _, tr := newTestController(t, nil)

	require.NoError(t, c.OnButtonClick("Yes please", "/affirm"))
	assert.Equal(t, []string{"Yes please"}, texts(c.View().Messages))

	require.Eventually(t, func() bool { return len(tr.sent()) == 1 }, waitFor, tick)
	assert.Equal(t, "/affirm", tr.sent()[0].payload)
	assert.Equal(t, "Yes please", tr.sent()[0].text)
}

func TestControllerSendFailureKeepsEcho(t *testing.T) {
	c, _, tr := newTestController(t, nil)
	tr.set(func(f *fakeTransport) { f.sendErr = errors.New("connection refused") })

	require.NoError(t, c.SendMessage("are you there", ""))
	require.Eventually(t, func() bool { return settled(c, tr, 1) }, waitFor, tick)

	assert.Equal(t, []string{"are you there"}, texts(c.View().Messages))
	assert.NoError(t, c.Err())
}

func TestControllerClosingStopsPollingButAppliesInFlight(t *testing.T) {
	c, clock, tr := newTestController(t, nil)
	gate := make(chan struct{})
	tr.set(func(f *fakeTransport) {
		f.gate = gate
		f.transcript = []models.Message{botMessage("b0", "late", clock.Now())}
	})

	require.NoError(t, c.SetOpen(true))
	require.Eventually(t, func() bool { return tr.fetchCount() == 1 }, waitFor, tick)
	require.NoError(t, c.SetOpen(false))

	close(gate)
	require.Eventually(t, func() bool { return len(c.View().Messages) == 1 }, waitFor, tick)
	assert.False(t, c.View().IsOpen)

	clock.Advance(5 * time.Second)
	inLoop(t, c, func() {})
	assert.Equal(t, 1, tr.fetchCount())
}

func TestControllerSkipsTickWhileFetchInFlight(t *testing.T) {
	c, clock, tr := newTestController(t, nil)
	gate := make(chan struct{})
	tr.set(func(f *fakeTransport) { f.gate = gate })

	require.NoError(t, c.SetOpen(true))
	require.Eventually(t, func() bool { return tr.fetchCount() == 1 }, waitFor, tick)

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		inLoop(t, c, func() {})
	}
	require.Never(t, func() bool { return tr.fetchCount() > 1 }, 50*time.Millisecond, tick)

	close(gate)
	require.Eventually(t, func() bool { return settled(c, tr, 1) }, waitFor, tick)
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return tr.fetchCount() >= 2 }, waitFor, tick)
}

func TestControllerDropsFetchThatCompletesLate(t *testing.T) {
	c, clock, tr := newTestController(t, func(o *Options) {
		o.NewID = func() string { return "msg-1" }
	})
	tr.set(func(f *fakeTransport) { f.reply = func(string) []string { return []string{"hello!"} } })

	require.NoError(t, c.SetOpen(true))
	require.Eventually(t, func() bool { return settled(c, tr, 1) }, waitFor, tick)

	poll, afterSend := make(chan struct{}), make(chan struct{})
	tr.set(func(f *fakeTransport) { f.gates = []chan struct{}{poll, afterSend} })

	// a poll goes out on an empty transcript and hangs
	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return tr.fetchCount() == 2 }, waitFor, tick)

	// the send is logged and answered, and its follow-up fetch overtakes the poll
	require.NoError(t, c.SendMessage("hi", ""))
	require.Eventually(t, func() bool { return tr.fetchCount() == 3 }, waitFor, tick)
	close(afterSend)
	require.Eventually(t, func() bool { return queuedLen(c) == 1 }, waitFor, tick)

	clock.Advance(800 * time.Millisecond)
	want := []string{"msg-1", "msg-1-r0"}
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(want, ids(c.View().Messages))
	}, waitFor, tick)

	close(poll)
	require.Eventually(t, func() bool { return settled(c, tr, 3) }, waitFor, tick)
	assert.Equal(t, want, ids(c.View().Messages), "late poll must not erase the sent message")

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return settled(c, tr, 4) }, waitFor, tick)
	assert.Equal(t, want, ids(c.View().Messages))
	assert.Equal(t, 0, queuedLen(c), "revealed reply is not paced again")
}

func TestControllerWaitingClearsWithinOneTimeout(t *testing.T) {
	c, clock, tr := newTestController(t, nil)
	tr.set(func(f *fakeTransport) { f.skipLog = true })

	require.NoError(t, c.SendMessage("anyone?", ""))
	require.Eventually(t, func() bool { return settled(c, tr, 1) }, waitFor, tick)
	require.True(t, c.View().Waiting)

	clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return !c.View().Waiting }, waitFor, tick)
	assert.Equal(t, 0, clock.activeTimers())
}

func TestControllerErrors(t *testing.T) {
	malformed := fmt.Errorf("entry 0: %w", models.ErrMalformedPayload)

	t.Run("malformed initial fetch is surfaced", func(t *testing.T) {
		c, clock, tr := newTestController(t, nil)
		tr.set(func(f *fakeTransport) { f.fetchErr = malformed })

		require.NoError(t, c.SetOpen(true))
		require.Eventually(t, func() bool { return c.Err() != nil }, waitFor, tick)
		assert.ErrorIs(t, c.Err(), models.ErrMalformedPayload)
		assert.ErrorIs(t, c.View().Err, models.ErrMalformedPayload)

		tr.set(func(f *fakeTransport) {
			f.fetchErr = nil
			f.transcript = []models.Message{botMessage("b0", "ok", clock.Now())}
		})
		clock.Advance(time.Second)
		require.Eventually(t, func() bool { return c.Err() == nil && len(c.View().Messages) == 1 }, waitFor, tick)

		tr.set(func(f *fakeTransport) { f.fetchErr = malformed })
		clock.Advance(time.Second)
		require.Eventually(t, func() bool { return settled(c, tr, 3) }, waitFor, tick)
		assert.NoError(t, c.Err(), "later malformed payloads are swallowed")
		assert.Len(t, c.View().Messages, 1)
	})

	t.Run("transient errors are swallowed and polling continues", func(t *testing.T) {
		c, clock, tr := newTestController(t, nil)
		tr.set(func(f *fakeTransport) { f.fetchErr = errors.New("connection reset") })

		require.NoError(t, c.SetOpen(true))
		require.Eventually(t, func() bool { return settled(c, tr, 1) }, waitFor, tick)
		assert.NoError(t, c.Err())

		clock.Advance(time.Second)
		require.Eventually(t, func() bool { return tr.fetchCount() == 2 }, waitFor, tick)
	})
}

func TestControllerTeardown(t *testing.T) {
	c, clock, tr := newTestController(t, nil)
	gate := make(chan struct{})
	tr.set(func(f *fakeTransport) {
		f.gate = gate
		f.skipLog = true
	})
	sub := c.Subscribe()

	require.NoError(t, c.SetOpen(true))
	require.NoError(t, c.SendMessage("bye", ""))
	require.Eventually(t, func() bool { return len(tr.sent()) == 1 }, waitFor, tick)
	require.Equal(t, 1, clock.activeTimers())

	before := c.View()
	c.Close()

	tr.set(func(f *fakeTransport) {
		f.transcript = []models.Message{botMessage("late", "too late", clock.Now())}
	})
	close(gate)
	clock.Advance(10 * time.Second)

	assert.Equal(t, before, c.View())
	assert.Equal(t, 0, clock.activeTimers())
	assert.Equal(t, 0, clock.activeTickers())
	assert.ErrorIs(t, c.SendMessage("hello?", ""), ErrClosed)
	assert.ErrorIs(t, c.ToggleOpen(), ErrClosed)

	for range sub {
	}
	_, open := <-c.Subscribe()
	assert.False(t, open)
}

func TestControllerSubscribe(t *testing.T) {
	c, _, _ := newTestController(t, nil)
	sub := c.Subscribe()

	first := <-sub
	assert.Empty(t, first.Messages)

	require.NoError(t, c.SendMessage("hi", ""))

	select {
	case v := <-sub:
		assert.Equal(t, []string{"hi"}, texts(v.Messages))
	case <-time.After(waitFor):
		t.Fatal("no view published after send")
	}
}

func TestControllerNotStarted(t *testing.T) {
	c := NewController("u", newFakeTransport(newFakeClock()), Options{})
	assert.ErrorIs(t, c.SendMessage("hi", ""), ErrNotStarted)

	c.Close()
	assert.ErrorIs(t, c.Start(context.Background()), ErrClosed)
}
