package trainer

import (
	"context"
	"time"

	"github.com/zulandar/trainer/internal/branch"
	"github.com/zulandar/trainer/internal/dialogue"
	"github.com/zulandar/trainer/internal/history"
	"github.com/zulandar/trainer/internal/topic"
)

// BranchView is a session as listed next to the dialogue.
type BranchView struct {
	branch.Branch
	TopicName      string `json:"topicName"`
	StatusLabel    string `json:"statusLabel"`
	Current        bool   `json:"current"`
	HistoryEntryID string `json:"historyEntryId,omitempty"`
}

// Snapshot is a read-only view of the controller state.
type Snapshot struct {
	Phase          Phase              `json:"phase"`
	Busy           bool               `json:"busy"`
	Current        *branch.Branch     `json:"currentBranch,omitempty"`
	Topic          *topic.Topic       `json:"topic,omitempty"`
	Messages       []dialogue.Message `json:"messages"`
	Branches       []BranchView       `json:"branches"`
	CanFinish      bool               `json:"canFinish"`
	Elapsed        time.Duration      `json:"-"`
	ElapsedSeconds int64              `json:"elapsedSeconds"`
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Phase:    c.phase,
		Busy:     c.busy,
		Messages: []dialogue.Message{},
	}
	if b, ok := c.branches.Get(c.current); ok && c.current != "" {
		s.Current = &b
		if t, ok := c.catalog.Get(b.TopicID); ok {
			s.Topic = &t
		}
		s.Messages = c.branches.Messages(b.ID)
		s.CanFinish = c.canFinishLocked(b)
		s.Elapsed = c.elapsedLocked(b)
		s.ElapsedSeconds = int64(s.Elapsed / time.Second)
	}

	list := c.branches.List()
	s.Branches = make([]BranchView, 0, len(list))
	for _, b := range list {
		v := BranchView{
			Branch:         b,
			StatusLabel:    b.Status.Label(),
			Current:        b.ID == c.current,
			HistoryEntryID: c.results[b.ID],
		}
		if t, ok := c.catalog.Get(b.TopicID); ok {
			v.TopicName = t.Name
		}
		s.Branches = append(s.Branches, v)
	}
	return s
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Busy reports whether the analysis flow is running.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// CurrentBranchID returns the focused session id, or "" in welcome.
func (c *Controller) CurrentBranchID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// CanFinish reports whether the finish action should be offered: a current
// session that is not completed and has at least one exchange.
func (c *Controller) CanFinish() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.branches.Get(c.current)
	return ok && c.current != "" && c.canFinishLocked(b)
}

func (c *Controller) canFinishLocked(b branch.Branch) bool {
	return !c.busy && b.Status != branch.StatusCompleted && c.branches.CanFinish(b.ID)
}

// Elapsed is the wall time since the current session started, or zero when
// no open session is focused. Time spent paused is included.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.branches.Get(c.current)
	if !ok || c.current == "" {
		return 0
	}
	return c.elapsedLocked(b)
}

func (c *Controller) elapsedLocked(b branch.Branch) time.Duration {
	if b.Status == branch.StatusCompleted {
		return 0
	}
	d := c.clock.Now().Sub(b.CreatedAt)
	if d < 0 {
		return 0
	}
	return d
}

// ResultFor returns the history entry recorded when the session completed.
func (c *Controller) ResultFor(ctx context.Context, branchID string) (history.Entry, bool) {
	c.mu.Lock()
	id, ok := c.results[branchID]
	c.mu.Unlock()
	if !ok {
		return history.Entry{}, false
	}
	return c.history.Get(ctx, id)
}

// History returns every stored entry, most recent first.
func (c *Controller) History(ctx context.Context) []history.Entry {
	return c.history.LoadAll(ctx)
}

// HistoryEntry returns the stored entry with the given id.
func (c *Controller) HistoryEntry(ctx context.Context, id string) (history.Entry, bool) {
	return c.history.Get(ctx, id)
}

// Catalog returns the topic catalog.
func (c *Controller) Catalog() *topic.Catalog {
	return c.catalog
}
