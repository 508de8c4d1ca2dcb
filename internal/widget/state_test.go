package widget

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepgram/chatroom/internal/domain/chat/models"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return t0.Add(time.Duration(sec) * time.Second)
}

func TestRenderable(t *testing.T) {
	welcome := &models.Message{ID: models.WelcomeMessageID, Author: models.AuthorBot, Timestamp: time.Unix(0, 0)}

	tests := []struct {
		name      string
		welcome   *models.Message
		confirmed []models.Message
		local     []models.Message
		want      []string
	}{
		{
			name:      "welcome first then merged by time",
			welcome:   welcome,
			confirmed: []models.Message{userMessage("a", "", at(1)), botMessage("b", "", at(3))},
			local:     []models.Message{userMessage("c", "", at(2))},
			want:      []string{models.WelcomeMessageID, "a", "c", "b"},
		},
		{
			name:      "equal timestamps keep insertion order",
			confirmed: []models.Message{userMessage("a", "", at(1)), botMessage("b", "", at(2))},
			local:     []models.Message{userMessage("c", "", at(1))},
			want:      []string{"a", "c", "b"},
		},
		{
			name:      "local already confirmed is not duplicated",
			confirmed: []models.Message{userMessage("a", "", at(1))},
			local:     []models.Message{userMessage("a", "", at(1)), userMessage("b", "", at(2))},
			want:      []string{"a", "b"},
		},
		{
			name: "empty",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Renderable(tt.welcome, tt.confirmed, tt.local)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestApplyFetchIsIdempotent(t *testing.T) {
	s := NewState("Hello!", nil)
	s.ApplySend("u1", "hi", at(1))
	s.ApplySend("u2", "there", at(2))

	transcript := []models.Message{userMessage("u1", "hi", at(1)), botMessage("b1", "hey", at(1))}

	s.ApplyFetch(transcript, s.BeginFetch())
	firstRender := s.Renderable()
	firstLocal := s.Local()

	changed := s.ApplyFetch(transcript, s.BeginFetch())

	assert.False(t, changed)
	assert.Equal(t, firstRender, s.Renderable())
	assert.Equal(t, firstLocal, s.Local())
	assert.Equal(t, []string{"u2"}, ids(s.Local()))
}

func TestDedupInvariant(t *testing.T) {
	s := NewState("", nil)
	s.ApplySend("u1", "one", at(1))
	s.ApplySend("u2", "two", at(2))

	s.ApplyFetch([]models.Message{userMessage("u1", "one", at(1))}, s.BeginFetch())
	assert.Equal(t, []string{"u2"}, ids(s.Local()))

	// a transcript that no longer carries u1 must not bring the echo back
	s.ApplyFetch(nil, s.BeginFetch())
	assert.Equal(t, []string{"u2"}, ids(s.Local()))

	s.ApplyFetch([]models.Message{userMessage("u1", "one", at(1)), userMessage("u2", "two", at(2))}, s.BeginFetch())
	assert.Empty(t, s.Local())

	for _, m := range s.Local() {
		for _, c := range s.Confirmed() {
			assert.NotEqual(t, c.ID, m.ID)
		}
	}
}

func TestOrderingStability(t *testing.T) {
	s := NewState("", nil)
	s.ApplyFetch([]models.Message{userMessage("A", "", at(1)), botMessage("B", "", at(2))}, s.BeginFetch())

	// the local clock lags behind the server's
	s.ApplySend("C", "later", at(1))

	assert.Equal(t, []string{"A", "B", "C"}, ids(s.Renderable()))
}

func TestWaitingTimeout(t *testing.T) {
	s := NewState("", nil)
	s.ApplyFetch(nil, s.BeginFetch())

	s.ApplySend("u1", "hello?", at(0))
	token, armed := s.WaitingTimer()
	require.True(t, armed)
	assert.True(t, s.View().Waiting)

	assert.True(t, s.WaitingTimeout(token))
	assert.False(t, s.View().Waiting)

	_, armed = s.WaitingTimer()
	assert.False(t, armed)
}

func TestWaitingTimeoutSuperseded(t *testing.T) {
	s := NewState("", nil)
	s.ApplySend("u1", "one", at(0))
	first, _ := s.WaitingTimer()
	s.ApplySend("u2", "two", at(1))
	second, _ := s.WaitingTimer()

	require.NotEqual(t, first, second)
	assert.False(t, s.WaitingTimeout(first), "stale timer must be ignored")
	assert.True(t, s.View().Waiting)

	assert.True(t, s.WaitingTimeout(second))
	assert.False(t, s.View().Waiting)
}

func TestWaitingTimeoutAfterTranscriptAdvanced(t *testing.T) {
	s := NewState("", nil)
	s.ApplyFetch(nil, s.BeginFetch())
	s.ApplySend("u1", "one", at(0))
	s.ApplySend("u2", "two", at(0))

	// u1 and an unrelated user message arrive; u2 is still pending and the
	// last message is not from the bot, so the timer restarts for the new turn
	s.ApplyFetch([]models.Message{userMessage("u1", "one", at(0)), userMessage("x", "", at(0))}, s.BeginFetch())
	token, armed := s.WaitingTimer()
	require.True(t, armed)
	assert.True(t, s.View().Waiting)

	assert.True(t, s.WaitingTimeout(token))
	assert.False(t, s.View().Waiting)
}

func TestTimedOutIndicatorStaysDown(t *testing.T) {
	s := NewState("", nil)
	s.ApplyFetch(nil, s.BeginFetch())
	s.ApplySend("u1", "anyone?", at(0))
	token, _ := s.WaitingTimer()
	require.True(t, s.WaitingTimeout(token))

	s.ApplyFetch(nil, s.BeginFetch())
	assert.False(t, s.View().Waiting)
	_, armed := s.WaitingTimer()
	assert.False(t, armed)
}

func TestFetchRecomputesWaiting(t *testing.T) {
	tests := []struct {
		name        string
		transcript  []models.Message
		wantWaiting bool
	}{
		{
			name:        "bot replied",
			transcript:  []models.Message{userMessage("u1", "hi", at(0)), botMessage("b1", "hey", at(1))},
			wantWaiting: true, // paced reply still queued
		},
		{
			name:        "echo not yet logged",
			transcript:  nil,
			wantWaiting: true,
		},
		{
			name:        "echo logged without reply",
			transcript:  []models.Message{userMessage("u1", "hi", at(0))},
			wantWaiting: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState("", nil)
			s.ApplyFetch(nil, s.BeginFetch())
			s.ApplySend("u1", "hi", at(0))

			s.ApplyFetch(tt.transcript, s.BeginFetch())
			assert.Equal(t, tt.wantWaiting, s.View().Waiting)
		})
	}
}

func TestStaleFetchKeepsWaiting(t *testing.T) {
	s := NewState("", nil)
	history := []models.Message{userMessage("u0", "hi", at(0)), botMessage("b0", "hey", at(0))}
	s.ApplyFetch(history, s.BeginFetch())

	dispatched := s.BeginFetch()
	s.ApplySend("u1", "question", at(1))

	// result of a poll that left before the send
	s.ApplyFetch(history, dispatched)
	assert.True(t, s.View().Waiting)

	s.ApplyFetch(history, s.BeginFetch())
	assert.False(t, s.View().Waiting)
}

func TestRevealPacing(t *testing.T) {
	s := NewState("", nil)
	history := []models.Message{botMessage("old", "earlier", at(0))}
	s.ApplyFetch(history, s.BeginFetch())

	assert.Equal(t, []string{"old"}, ids(s.Renderable()), "history is shown without pacing")
	assert.Empty(t, s.Queued())

	s.ApplySend("u1", "hi", at(1))
	s.ApplyFetch(append(history,
		userMessage("u1", "hi", at(1)),
		botMessage("X", "x", at(2)),
		botMessage("Y", "y", at(2)),
	), s.BeginFetch())

	assert.Equal(t, []string{"old", "u1"}, ids(s.Renderable()))
	assert.Equal(t, []string{"X", "Y"}, ids(s.Queued()))
	assert.True(t, s.View().Waiting)

	assert.True(t, s.Tick())
	assert.Equal(t, []string{"old", "u1", "X"}, ids(s.Renderable()))
	assert.True(t, s.View().Waiting)

	assert.True(t, s.Tick())
	assert.Equal(t, []string{"old", "u1", "X", "Y"}, ids(s.Renderable()))
	assert.False(t, s.View().Waiting)

	assert.False(t, s.Tick())
}

func TestQueueFlushOnNewInput(t *testing.T) {
	s := NewState("", nil)
	s.ApplyFetch(nil, s.BeginFetch())
	s.ApplySend("u1", "hi", at(1))
	s.ApplyFetch([]models.Message{
		userMessage("u1", "hi", at(1)),
		botMessage("X", "x", at(2)),
		botMessage("Y", "y", at(2)),
	}, s.BeginFetch())
	require.Len(t, s.Queued(), 2)

	s.ApplySend("Z", "next", at(2))

	got := ids(s.Renderable())
	assert.Equal(t, []string{"X", "Y", "Z"}, got[len(got)-3:])
	assert.Empty(t, s.Queued())
}

func TestRestartDropsQueuedMessages(t *testing.T) {
	s := NewState("", nil)
	s.ApplyFetch(nil, s.BeginFetch())
	s.ApplyFetch([]models.Message{botMessage("X", "x", at(1))}, s.BeginFetch())
	require.Len(t, s.Queued(), 1)

	s.ApplyFetch(nil, s.BeginFetch())
	assert.Empty(t, s.Queued())
	assert.Empty(t, s.Renderable())
}

func TestBlacklistSuppression(t *testing.T) {
	s := NewState("", []string{"_restart"})

	m, echoed := s.ApplySend("r", "_restart", at(0))
	assert.False(t, echoed)
	assert.Equal(t, "_restart", m.Content.Text)
	assert.Empty(t, s.Local())
	assert.Empty(t, s.Renderable())
	assert.Equal(t, uint64(1), s.Sends())

	_, echoed = s.ApplySend("n", "_restart please", at(0))
	assert.True(t, echoed, "only exact matches are suppressed")
}

func TestWelcomeMessage(t *testing.T) {
	s := NewState("Hi, how can I help?", nil)
	s.ApplyFetch([]models.Message{userMessage("u", "", at(5))}, s.BeginFetch())

	got := s.Renderable()
	require.Len(t, got, 2)
	assert.Equal(t, models.WelcomeMessageID, got[0].ID)
	assert.True(t, got[0].IsBot())
	assert.Equal(t, "Hi, how can I help?", got[0].Content.Text)
}

func TestTeardownFreezesState(t *testing.T) {
	s := NewState("", nil)
	s.ApplyFetch(nil, s.BeginFetch())
	s.SetOpen(true)
	s.ApplySend("u1", "hi", at(0))
	token, _ := s.WaitingTimer()
	s.ApplyFetch([]models.Message{userMessage("u1", "hi", at(0))}, s.BeginFetch())

	s.Teardown()
	before := s.View()

	assert.False(t, s.ApplyFetch([]models.Message{botMessage("late", "", at(9))}, s.BeginFetch()))
	assert.False(t, s.WaitingTimeout(token))
	assert.False(t, s.Tick())
	assert.False(t, s.SetOpen(false))
	_, echoed := s.ApplySend("u2", "ignored", at(10))
	assert.False(t, echoed)

	assert.Equal(t, before, s.View())
}

func TestOutOfOrderFetchIsDropped(t *testing.T) {
	s := NewState("", nil)
	s.ApplyFetch(nil, s.BeginFetch())

	poll := s.BeginFetch()
	s.ApplySend("u1", "hi", at(1))
	afterSend := s.BeginFetch()

	s.ApplyFetch([]models.Message{userMessage("u1", "hi", at(1)), botMessage("X", "x", at(2))}, afterSend)
	require.True(t, s.Tick())
	require.Equal(t, []string{"u1", "X"}, ids(s.Renderable()))

	// the poll that left before the send lands last
	assert.True(t, s.Superseded(poll))
	assert.False(t, s.ApplyFetch(nil, poll))
	assert.Equal(t, []string{"u1", "X"}, ids(s.Renderable()))
	assert.Equal(t, []string{"u1", "X"}, ids(s.Confirmed()))

	s.ApplyFetch([]models.Message{userMessage("u1", "hi", at(1)), botMessage("X", "x", at(2))}, s.BeginFetch())
	assert.Empty(t, s.Queued())
	assert.Equal(t, []string{"u1", "X"}, ids(s.Renderable()))
}

func TestRevealedMessageIsNotPacedAgain(t *testing.T) {
	s := NewState("", nil)
	s.ApplyFetch(nil, s.BeginFetch())
	s.ApplyFetch([]models.Message{botMessage("X", "x", at(1))}, s.BeginFetch())
	require.True(t, s.Tick())

	// the server briefly drops X, then serves it again
	s.ApplyFetch(nil, s.BeginFetch())
	s.ApplyFetch([]models.Message{botMessage("X", "x", at(1))}, s.BeginFetch())

	assert.Empty(t, s.Queued())
	assert.Equal(t, []string{"X"}, ids(s.Renderable()))
	assert.False(t, s.View().Waiting)
}

func TestWaitingBoundedByOneTimeout(t *testing.T) {
	s := NewState("", nil)
	s.ApplyFetch(nil, s.BeginFetch())

	early := s.BeginFetch()
	s.ApplySend("u1", "hi", at(1))
	token, armed := s.WaitingTimer()
	require.True(t, armed)

	// a fetch from before the send brings the end of the previous turn
	s.ApplyFetch([]models.Message{botMessage("X", "earlier reply", at(0))}, early)
	require.True(t, s.Tick())
	require.True(t, s.View().Waiting)

	assert.True(t, s.WaitingTimeout(token))
	assert.False(t, s.View().Waiting)
	_, armed = s.WaitingTimer()
	assert.False(t, armed, "no second timeout is scheduled")
}

func TestPacerPacesOnce(t *testing.T) {
	p := NewPacer()
	p.Enqueue(botMessage("X", "x", at(1)), botMessage("Y", "y", at(1)))

	_, ok := p.Tick()
	require.True(t, ok)
	require.Equal(t, 1, p.Flush())
	assert.True(t, p.Revealed("X"))
	assert.True(t, p.Revealed("Y"))

	p.Enqueue(botMessage("X", "x", at(1)), botMessage("Y", "y", at(1)), botMessage("Z", "z", at(2)))
	assert.Equal(t, []string{"Z"}, ids(p.Queued()))
}
