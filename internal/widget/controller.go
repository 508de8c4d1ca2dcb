package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/deepgram/chatroom/internal/domain/chat/models"
	"github.com/deepgram/chatroom/pkg/logger"
)

var (
	ErrNotStarted = errors.New("widget: controller not started")
	ErrClosed     = errors.New("widget: controller closed")
)

type fetchResult struct {
	messages []models.Message
	err      error
	ticket   FetchTicket
}

type sendResult struct {
	id  string
	err error
}

// Controller runs one widget session. A single goroutine owns the State, the
// poller, the reveal ticker and the waiting timer; user actions, ticks, timer
// fires and network results are all funnelled into it and handled one at a time.
type Controller struct {
	userID    string
	transport Transport
	opts      Options
	clock     Clock

	actions chan func()
	fetched chan fetchResult
	sent    chan sendResult
	expired chan uint64

	// owned by the loop goroutine
	state      *State
	poller     *Poller
	timer      Timer
	timerToken uint64

	ctx    context.Context
	done   chan struct{}
	cancel context.CancelFunc

	mu      sync.RWMutex
	running bool
	closed  bool
	view    View
	err     error
	subs    []chan View
}

func NewController(userID string, transport Transport, opts Options) *Controller {
	opts = opts.withDefaults()
	state := NewState(opts.WelcomeMessage, opts.MessageBlacklist)

	return &Controller{
		userID:    userID,
		transport: transport,
		opts:      opts,
		clock:     opts.Clock,
		actions:   make(chan func()),
		fetched:   make(chan fetchResult),
		sent:      make(chan sendResult),
		expired:   make(chan uint64),
		state:     state,
		poller:    NewPoller(opts.Clock, opts.PollingInterval),
		done:      make(chan struct{}),
		view:      state.View(),
	}
}

// Start launches the event loop. The session ends when ctx is cancelled or
// Close is called.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.running {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.running = true

	go c.run()
	logger.Info(logger.ENGINE, "Widget session started for user %s", c.userID)
	return nil
}

// Close tears the session down and waits for the loop to exit. After it
// returns no timer, tick or network result touches the state again.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	running, cancel := c.running, c.cancel
	c.mu.Unlock()

	if running {
		cancel()
		<-c.done
	}
}

// SendMessage echoes text locally and delivers it. Empty text is ignored.
func (c *Controller) SendMessage(text, payload string) error {
	if text == "" {
		return nil
	}
	return c.do(func() { c.sendMessage(text, payload) })
}

// OnButtonClick sends the button's title as the visible text and its payload
// for the bot to act on.
func (c *Controller) OnButtonClick(title, payload string) error {
	return c.SendMessage(title, payload)
}

func (c *Controller) ToggleOpen() error {
	return c.do(func() { c.setOpen(!c.state.IsOpen()) })
}

func (c *Controller) SetOpen(open bool) error {
	return c.do(func() { c.setOpen(open) })
}

// View returns the latest read model.
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// Err returns the failure of the first transcript fetch, if it was malformed.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Controller) UserID() string {
	return c.userID
}

// Subscribe returns a channel carrying the newest View after every change. A
// slow reader only misses intermediate views. The channel closes on teardown.
func (c *Controller) Subscribe() <-chan View {
	ch := make(chan View, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed && !c.running {
		close(ch)
		return ch
	}
	select {
	case <-c.done:
		close(ch)
		return ch
	default:
	}
	ch <- c.view
	c.subs = append(c.subs, ch)
	return ch
}

func (c *Controller) do(fn func()) error {
	c.mu.RLock()
	running, closed := c.running, c.closed
	c.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if !running {
		return ErrNotStarted
	}

	finished := make(chan struct{})
	select {
	case c.actions <- func() { fn(); close(finished) }:
	case <-c.done:
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) run() {
	reveal := c.clock.NewTicker(c.opts.RevealInterval)

	defer func() {
		reveal.Stop()
		c.teardown()
		close(c.done)
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case fn := <-c.actions:
			if c.ctx.Err() != nil {
				return
			}
			fn()
		case <-c.poller.C():
			if c.ctx.Err() != nil {
				return
			}
			c.fetch(true)
		case <-reveal.C():
			if c.ctx.Err() != nil {
				return
			}
			if c.state.Tick() {
				c.publish()
			}
		case token := <-c.expired:
			if c.ctx.Err() != nil {
				return
			}
			c.waitingExpired(token)
		case res := <-c.fetched:
			if c.ctx.Err() != nil {
				return
			}
			c.applyFetch(res)
		case res := <-c.sent:
			if c.ctx.Err() != nil {
				return
			}
			c.sendDone(res)
		}
	}
}

func (c *Controller) teardown() {
	c.poller.Stop()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state.Teardown()

	c.mu.Lock()
	c.running = false
	c.closed = true
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = nil
	c.mu.Unlock()

	logger.Info(logger.ENGINE, "Widget session for user %s torn down", c.userID)
}

func (c *Controller) sendMessage(text, payload string) {
	id := c.opts.NewID()
	_, echoed := c.state.ApplySend(id, text, c.clock.Now())
	c.syncWaitingTimer()
	c.publish()

	if !echoed {
		logger.Debug(logger.ENGINE, "Message %s is a control command, not echoed", id)
	}

	ctx := c.ctx
	go func() {
		err := c.transport.Send(ctx, c.userID, text, payload, id)
		select {
		case c.sent <- sendResult{id: id, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) sendDone(res sendResult) {
	if res.err != nil {
		// The echo stays; the user keeps seeing what they typed.
		c.opts.Metrics.SendCompleted("error")
		logger.Warn(logger.TRANSPORT, "Failed to send message %s: %v", res.id, res.err)
	} else {
		c.opts.Metrics.SendCompleted("ok")
	}
	c.fetch(false)
}

func (c *Controller) setOpen(open bool) {
	if !c.state.SetOpen(open) {
		return
	}
	if open {
		if c.poller.Open() {
			logger.Debug(logger.POLL, "Polling started every %s", c.opts.PollingInterval)
			c.fetch(false)
		}
	} else if c.poller.Close() {
		logger.Debug(logger.POLL, "Polling stopped")
	}
	c.publish()
}

// fetch issues a transcript fetch. Periodic fetches are skipped while another
// one is outstanding.
func (c *Controller) fetch(periodic bool) {
	if periodic {
		if !c.poller.TryBegin() {
			logger.Debug(logger.POLL, "Previous fetch still in flight, skipping tick")
			return
		}
	} else {
		c.poller.Begin()
	}

	ticket := c.state.BeginFetch()

	ctx := c.ctx
	go func() {
		msgs, err := c.transport.FetchLog(ctx, c.userID)
		select {
		case c.fetched <- fetchResult{messages: msgs, err: err, ticket: ticket}:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) applyFetch(res fetchResult) {
	c.poller.Done()

	if c.state.Superseded(res.ticket) {
		// A newer transcript is already on screen.
		c.opts.Metrics.FetchCompleted("stale")
		logger.Debug(logger.POLL, "Dropping result of fetch %d, a newer one was applied", res.ticket.Seq)
		return
	}

	if res.err != nil {
		if errors.Is(res.err, models.ErrMalformedPayload) {
			c.opts.Metrics.FetchCompleted("malformed")
			if res.ticket.Seq == 1 {
				logger.Error(logger.ENGINE, "Initial transcript fetch returned a malformed payload: %v", res.err)
				c.setErr(fmt.Errorf("initial transcript fetch: %w", res.err))
				c.publish()
				return
			}
		} else {
			c.opts.Metrics.FetchCompleted("error")
		}
		logger.Debug(logger.POLL, "Transcript fetch failed, retrying next tick: %v", res.err)
		return
	}

	c.opts.Metrics.FetchCompleted("ok")
	cleared := c.setErr(nil)
	changed := c.state.ApplyFetch(res.messages, res.ticket)
	c.syncWaitingTimer()
	if changed || cleared {
		c.publish()
	}
}

func (c *Controller) waitingExpired(token uint64) {
	if c.state.WaitingTimeout(token) {
		logger.Debug(logger.ENGINE, "Waiting indicator timed out")
		c.syncWaitingTimer()
		c.publish()
	}
}

// syncWaitingTimer makes the scheduled timer match the one the State expects.
func (c *Controller) syncWaitingTimer() {
	token, armed := c.state.WaitingTimer()
	if armed && c.timer != nil && token == c.timerToken {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if !armed {
		return
	}

	ctx := c.ctx
	c.timerToken = token
	c.timer = c.clock.AfterFunc(c.opts.WaitingTimeout, func() {
		select {
		case c.expired <- token:
		case <-ctx.Done():
		}
	})
}

func (c *Controller) setErr(err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := (c.err == nil) != (err == nil)
	c.err = err
	return changed
}

func (c *Controller) publish() {
	v := c.state.View()

	c.mu.Lock()
	v.Err = c.err
	c.view = v
	subs := c.subs
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
