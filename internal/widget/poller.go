package widget

import "time"

type PollState int

const (
	PollIdle PollState = iota
	PollPolling
)

func (s PollState) String() string {
	if s == PollPolling {
		return "polling"
	}
	return "idle"
}

// Poller schedules transcript fetches while the widget is open. It only
// schedules; fetches are issued and applied by the Controller loop.
type Poller struct {
	clock    Clock
	interval time.Duration
	state    PollState
	ticker   Ticker
	inFlight int
	stopped  bool
}

func NewPoller(clock Clock, interval time.Duration) *Poller {
	return &Poller{clock: clock, interval: interval}
}

// Open moves idle to polling and starts the ticker. It reports true on the
// transition, which is the caller's cue to fetch immediately.
func (p *Poller) Open() bool {
	if p.stopped || p.state == PollPolling {
		return false
	}
	p.state = PollPolling
	p.ticker = p.clock.NewTicker(p.interval)
	return true
}

// Close stops scheduling fetches. A fetch already in flight is left alone.
func (p *Poller) Close() bool {
	if p.state == PollIdle {
		return false
	}
	p.state = PollIdle
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	return true
}

// C returns the tick channel, or nil while idle so a select never fires on it.
func (p *Poller) C() <-chan time.Time {
	if p.ticker == nil {
		return nil
	}
	return p.ticker.C()
}

func (p *Poller) State() PollState {
	return p.state
}

// Begin records a fetch going out.
func (p *Poller) Begin() {
	p.inFlight++
}

// TryBegin is Begin for periodic ticks: a tick is skipped while an earlier
// fetch has not come back.
func (p *Poller) TryBegin() bool {
	if p.inFlight > 0 {
		return false
	}
	p.Begin()
	return true
}

func (p *Poller) Done() {
	if p.inFlight > 0 {
		p.inFlight--
	}
}

func (p *Poller) InFlight() int {
	return p.inFlight
}

// Stop is teardown: no further ticks and Open becomes a no-op.
func (p *Poller) Stop() {
	p.Close()
	p.stopped = true
}
