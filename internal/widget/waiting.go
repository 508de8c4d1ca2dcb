package widget

// waitingIndicator owns the single "bot is responding" timeout. Every arm or
// disarm bumps token so a timer scheduled for an older token is ignored.
type waitingIndicator struct {
	on     bool
	armed  bool
	token  uint64
	expect uint64 // transcript revision captured when armed
}

// arm raises the indicator and supersedes any pending timer.
func (w *waitingIndicator) arm(revision uint64) uint64 {
	w.on = true
	w.armed = true
	w.token++
	w.expect = revision
	return w.token
}

// clear lowers the indicator and cancels the pending timer.
func (w *waitingIndicator) clear() {
	w.on = false
	if w.armed {
		w.armed = false
		w.token++
	}
}

// expire handles a timer firing for token. turnOpen says whether the user is
// still owed a reply. It reports whether anything changed.
func (w *waitingIndicator) expire(token, revision uint64, turnOpen bool) bool {
	if !w.armed || token != w.token {
		return false
	}
	if revision != w.expect && turnOpen {
		// The transcript moved since this timer was armed and the user is
		// still waiting; give the new turn a full timeout of its own.
		w.arm(revision)
		return true
	}
	w.on = false
	w.armed = false
	return true
}
