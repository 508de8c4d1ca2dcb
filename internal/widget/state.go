package widget

import (
	"time"

	"github.com/deepgram/chatroom/internal/domain/chat/models"
)

// View is the read model handed to the presentation layer.
type View struct {
	Messages []models.Message
	Waiting  bool
	IsOpen   bool
	// Err is set when the first transcript fetch came back malformed.
	Err error
}

// State is the conversation state container. Every method is a synchronous
// transition; nothing in here starts timers or does I/O. Once torn down, every
// transition is a no-op.
type State struct {
	welcome   *models.Message
	blacklist idSet

	confirmed []models.Message
	local     []models.Message
	pacer     *Pacer
	waiting   waitingIndicator
	isOpen    bool

	seen       idSet  // every id a fetch has ever confirmed
	primed     bool   // a transcript has been applied at least once
	revision   uint64 // bumped whenever a fetch brings new messages
	sends      uint64
	dispatched uint64 // fetch tickets handed out
	applied    uint64 // newest ticket applied
	closed     bool
}

// FetchTicket identifies one transcript fetch. Tickets are handed out in
// dispatch order by BeginFetch and presented back to ApplyFetch.
type FetchTicket struct {
	Seq   uint64
	Sends uint64 // Sends() when the fetch went out
}

// NewState creates an empty conversation, seeded with a welcome message when
// welcome is non-empty.
func NewState(welcome string, blacklist []string) *State {
	s := &State{
		blacklist: make(idSet, len(blacklist)),
		seen:      make(idSet),
		pacer:     NewPacer(),
	}
	for _, b := range blacklist {
		s.blacklist[b] = struct{}{}
	}
	if welcome != "" {
		s.welcome = &models.Message{
			ID:        models.WelcomeMessageID,
			Author:    models.AuthorBot,
			Content:   models.TextContent(welcome),
			Timestamp: time.Unix(0, 0).UTC(),
		}
	}
	return s
}

// BeginFetch hands out the ticket for a fetch about to be issued.
func (s *State) BeginFetch() FetchTicket {
	s.dispatched++
	return FetchTicket{Seq: s.dispatched, Sends: s.sends}
}

// Superseded reports whether a fetch issued after t has already been applied.
// Such a result describes an older transcript and must be dropped.
func (s *State) Superseded(t FetchTicket) bool {
	return t.Seq <= s.applied
}

// ApplyFetch replaces the confirmed transcript and prunes local echoes the
// server has now acknowledged. Results are applied in dispatch order: one that
// lands after a newer fetch was applied is ignored. A result issued before the
// latest send cannot lower the waiting indicator. It reports whether the state
// changed.
func (s *State) ApplyFetch(transcript []models.Message, t FetchTicket) bool {
	if s.closed || s.Superseded(t) {
		return false
	}
	s.applied = t.Seq

	before := s.View()
	present := idsOf(transcript)

	var fresh []models.Message
	for _, m := range transcript {
		if !s.seen.has(m.ID) {
			s.seen[m.ID] = struct{}{}
			fresh = append(fresh, m)
		}
	}

	s.confirmed = append([]models.Message(nil), transcript...)
	s.local = withoutIDs(s.local, present)
	s.pacer.Retain(present)

	// History that was already there when the widget came up is shown as is;
	// only replies arriving afterwards are paced.
	if s.primed {
		for _, m := range fresh {
			if m.IsBot() {
				s.pacer.Enqueue(m)
			}
		}
	}
	s.primed = true

	advanced := len(fresh) > 0
	if advanced {
		s.revision++
	}

	switch {
	case s.turnOpen():
		// Keep the pending timer, or its expiry, unless the transcript moved:
		// repeated polls must not lift an indicator that already timed out.
		if advanced {
			s.waiting.arm(s.revision)
		}
	case t.Sends < s.sends:
		// Issued before the latest send; it knows nothing about that turn.
	default:
		s.waiting.clear()
	}

	return !viewsEqual(before, s.View())
}

// turnOpen is true while there are unconfirmed local messages and the last
// confirmed message is not from the bot.
func (s *State) turnOpen() bool {
	if len(s.local) == 0 {
		return false
	}
	return len(s.confirmed) == 0 || !s.confirmed[len(s.confirmed)-1].IsBot()
}

// ApplySend records a user message. Anything still queued is revealed first so
// the new message lands after the whole previous bot turn. The message is
// echoed locally unless text is blacklisted; the returned bool says which.
func (s *State) ApplySend(id, text string, now time.Time) (models.Message, bool) {
	m := models.Message{
		ID:      id,
		Author:  models.AuthorUser,
		Content: models.TextContent(text),
	}
	if s.closed {
		return m, false
	}

	s.pacer.Flush()

	// Keep arrival order even when the server clock runs ahead of ours.
	m.Timestamp = now
	if latest := latestTimestamp(s.confirmed, s.local); latest.After(now) {
		m.Timestamp = latest
	}

	s.sends++
	s.ArmWaitingTimer()

	if s.blacklist.has(text) {
		return m, false
	}
	s.local = append(s.local, m)
	return m, true
}

// ArmWaitingTimer raises the waiting indicator and returns the token the new
// timeout must present to WaitingTimeout.
func (s *State) ArmWaitingTimer() uint64 {
	if s.closed {
		return 0
	}
	return s.waiting.arm(s.revision)
}

// WaitingTimer reports the token of the pending timeout, if any.
func (s *State) WaitingTimer() (uint64, bool) {
	return s.waiting.token, s.waiting.armed && !s.closed
}

// WaitingTimeout handles a fired timeout. Stale tokens are ignored.
func (s *State) WaitingTimeout(token uint64) bool {
	if s.closed {
		return false
	}
	return s.waiting.expire(token, s.revision, s.turnOpen())
}

// Tick reveals at most one paced message.
func (s *State) Tick() bool {
	if s.closed {
		return false
	}
	_, ok := s.pacer.Tick()
	return ok
}

func (s *State) SetOpen(open bool) bool {
	if s.closed || s.isOpen == open {
		return false
	}
	s.isOpen = open
	return true
}

func (s *State) IsOpen() bool {
	return s.isOpen
}

// Sends counts every send so far, blacklisted ones included.
func (s *State) Sends() uint64 {
	return s.sends
}

// Primed reports whether a transcript has been applied yet.
func (s *State) Primed() bool {
	return s.primed
}

// Renderable is the display sequence: confirmed messages the pacer still holds
// back are left out.
func (s *State) Renderable() []models.Message {
	visible := make([]models.Message, 0, len(s.confirmed))
	for _, m := range s.confirmed {
		if !s.pacer.Hidden(m.ID) {
			visible = append(visible, m)
		}
	}
	return Renderable(s.welcome, visible, s.local)
}

func (s *State) Confirmed() []models.Message {
	return append([]models.Message(nil), s.confirmed...)
}

func (s *State) Local() []models.Message {
	return append([]models.Message(nil), s.local...)
}

func (s *State) Queued() []models.Message {
	return s.pacer.Queued()
}

func (s *State) View() View {
	return View{
		Messages: s.Renderable(),
		Waiting:  s.waiting.on || s.pacer.Len() > 0,
		IsOpen:   s.isOpen,
	}
}

// Teardown freezes the state.
func (s *State) Teardown() {
	s.closed = true
	s.waiting.clear()
}

func (s *State) Closed() bool {
	return s.closed
}

func viewsEqual(a, b View) bool {
	if a.Waiting != b.Waiting || a.IsOpen != b.IsOpen || len(a.Messages) != len(b.Messages) {
		return false
	}
	for i := range a.Messages {
		if !messagesEqual(a.Messages[i], b.Messages[i]) {
			return false
		}
	}
	return true
}

func messagesEqual(a, b models.Message) bool {
	if a.ID != b.ID || a.Author != b.Author || !a.Timestamp.Equal(b.Timestamp) {
		return false
	}
	ca, cb := a.Content, b.Content
	if ca.Type != cb.Type || ca.Text != cb.Text || ca.Image != cb.Image || len(ca.Buttons) != len(cb.Buttons) {
		return false
	}
	for i := range ca.Buttons {
		if ca.Buttons[i] != cb.Buttons[i] {
			return false
		}
	}
	return true
}
