package widget

import "github.com/deepgram/chatroom/internal/domain/chat/models"

// Pacer holds bot messages that arrived together and releases them one per tick.
// A message is paced at most once.
type Pacer struct {
	queue    []models.Message
	hidden   idSet
	revealed idSet
}

func NewPacer() *Pacer {
	return &Pacer{hidden: make(idSet), revealed: make(idSet)}
}

// Enqueue appends messages behind anything already waiting, preserving order.
// Messages already queued or already revealed are skipped.
func (p *Pacer) Enqueue(msgs ...models.Message) {
	for _, m := range msgs {
		if p.hidden.has(m.ID) || p.revealed.has(m.ID) {
			continue
		}
		p.queue = append(p.queue, m)
		p.hidden[m.ID] = struct{}{}
	}
}

// Tick reveals the message at the front of the queue.
func (p *Pacer) Tick() (models.Message, bool) {
	if len(p.queue) == 0 {
		return models.Message{}, false
	}
	m := p.queue[0]
	p.queue = p.queue[1:]
	delete(p.hidden, m.ID)
	p.revealed[m.ID] = struct{}{}
	return m, true
}

// Flush reveals everything at once and returns how many messages were waiting.
func (p *Pacer) Flush() int {
	n := len(p.queue)
	for _, m := range p.queue {
		p.revealed[m.ID] = struct{}{}
	}
	p.queue = nil
	p.hidden = make(idSet)
	return n
}

// Retain drops queued messages that are no longer part of the transcript.
func (p *Pacer) Retain(present idSet) {
	kept := p.queue[:0]
	for _, m := range p.queue {
		if present.has(m.ID) {
			kept = append(kept, m)
		} else {
			delete(p.hidden, m.ID)
		}
	}
	p.queue = kept
}

// Revealed reports whether id has already been let out of the queue.
func (p *Pacer) Revealed(id string) bool {
	return p.revealed.has(id)
}

func (p *Pacer) Hidden(id string) bool {
	return p.hidden.has(id)
}

func (p *Pacer) Len() int {
	return len(p.queue)
}

// Queued returns a copy of the pending messages in reveal order.
func (p *Pacer) Queued() []models.Message {
	return append([]models.Message(nil), p.queue...)
}
