package widget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deepgram/chatroom/internal/domain/chat/models"
)

// fakeClock only moves when Advance is called. Timers and tickers due within
// the advanced span fire in time order.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	tickers []*fakeTicker
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

type fakeTicker struct {
	clock   *fakeClock
	period  time.Duration
	next    time.Time
	c       chan time.Time
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{clock: c, period: d, next: c.now.Add(d), c: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.c
}

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

// Advance moves time forward by d, firing everything that falls due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)

	for {
		var (
			at     time.Time
			timer  *fakeTimer
			ticker *fakeTicker
		)
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if timer == nil || t.at.Before(at) {
				at, timer = t.at, t
			}
		}
		for _, t := range c.tickers {
			if t.stopped || t.next.After(target) {
				continue
			}
			if (timer == nil && ticker == nil) || t.next.Before(at) {
				at, timer, ticker = t.next, nil, t
			}
		}
		if timer == nil && ticker == nil {
			break
		}

		c.now = at
		if ticker != nil {
			ticker.next = ticker.next.Add(ticker.period)
			select {
			case ticker.c <- at:
			default:
			}
			continue
		}

		timer.fired = true
		c.mu.Unlock()
		timer.f()
		c.mu.Lock()
	}

	c.now = target
	c.mu.Unlock()
}

func (c *fakeClock) activeTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *fakeClock) activeTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type sentMessage struct {
	userID, text, payload, id string
}

// fakeTransport is an in-memory bot server. By default every send is logged
// like the real server does; reply, when set, produces the bot's answer.
type fakeTransport struct {
	clock *fakeClock

	mu         sync.Mutex
	transcript []models.Message
	sends      []sentMessage
	fetches    int
	fetchErr   error
	sendErr    error
	skipLog    bool
	gate       chan struct{}
	gates      []chan struct{} // taken one per fetch, ahead of gate
	reply      func(text string) []string
}

func newFakeTransport(clock *fakeClock) *fakeTransport {
	return &fakeTransport{clock: clock}
}

func (f *fakeTransport) Send(ctx context.Context, userID, text, payload, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sends = append(f.sends, sentMessage{userID: userID, text: text, payload: payload, id: messageID})
	if f.sendErr != nil {
		return f.sendErr
	}
	if text == "_restart" {
		f.transcript = nil
		return nil
	}
	if f.skipLog {
		return nil
	}

	now := f.clock.Now()
	f.transcript = append(f.transcript, models.Message{
		ID:        messageID,
		Author:    models.AuthorUser,
		Content:   models.TextContent(text),
		Timestamp: now,
	})
	if f.reply != nil {
		input := text
		if payload != "" {
			input = payload
		}
		for i, r := range f.reply(input) {
			f.transcript = append(f.transcript, botMessage(fmt.Sprintf("%s-r%d", messageID, i), r, now))
		}
	}
	return nil
}

func (f *fakeTransport) FetchLog(ctx context.Context, userID string) ([]models.Message, error) {
	f.mu.Lock()
	f.fetches++
	gate := f.gate
	if len(f.gates) > 0 {
		gate, f.gates = f.gates[0], f.gates[1:]
	}
	err := f.fetchErr
	out := append([]models.Message(nil), f.transcript...)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeTransport) set(fn func(f *fakeTransport)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeTransport) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func (f *fakeTransport) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sends...)
}

func botMessage(id, text string, at time.Time) models.Message {
	return models.Message{ID: id, Author: models.AuthorBot, Content: models.TextContent(text), Timestamp: at}
}

func userMessage(id, text string, at time.Time) models.Message {
	return models.Message{ID: id, Author: models.AuthorUser, Content: models.TextContent(text), Timestamp: at}
}

func ids(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func texts(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content.Text
	}
	return out
}
