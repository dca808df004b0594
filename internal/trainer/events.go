package trainer

import "github.com/zulandar/trainer/internal/dialogue"

// EventKind classifies controller events.
type EventKind string

const (
	EventPhase        EventKind = "phase"
	EventMessage      EventKind = "message"
	EventBusy         EventKind = "busy"
	EventAnalysisStep EventKind = "analysis_step"
	EventNavigate     EventKind = "navigate"
)

// Event is published to subscribers after the state change it describes.
type Event struct {
	Kind           EventKind         `json:"kind"`
	Phase          Phase             `json:"phase,omitempty"`
	BranchID       string            `json:"branchId,omitempty"`
	Busy           bool              `json:"busy,omitempty"`
	Step           Step              `json:"step,omitempty"`
	HistoryEntryID string            `json:"historyEntryId,omitempty"`
	Message        *dialogue.Message `json:"message,omitempty"`
}

// Subscribe registers fn for every future event and returns a func that
// removes it. fn runs synchronously on the goroutine that caused the event
// and must not block.
func (c *Controller) Subscribe(fn func(Event)) (cancel func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// emit delivers events in order. It must be called without c.mu held.
func (c *Controller) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	c.subMu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}
