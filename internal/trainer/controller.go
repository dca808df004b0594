// Package trainer implements the training session controller: the state
// machine that starts sessions, routes messages, pauses and resumes them,
// and runs the analysis flow that turns a finished session into a history
// entry.
package trainer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zulandar/trainer/internal/analysis"
	"github.com/zulandar/trainer/internal/branch"
	"github.com/zulandar/trainer/internal/clock"
	"github.com/zulandar/trainer/internal/dialogue"
	"github.com/zulandar/trainer/internal/history"
	"github.com/zulandar/trainer/internal/logging"
	"github.com/zulandar/trainer/internal/richtext"
	"github.com/zulandar/trainer/internal/topic"
)

// Phase is the controller's top-level state.
type Phase string

const (
	PhaseWelcome  Phase = "welcome"
	PhaseDialogue Phase = "dialogue"
	PhasePaused   Phase = "paused"
)

// Overall scores used by the finish actions when no scoring backend is
// configured.
const (
	DefaultFinishScore    = 85
	DefaultFinishNowScore = 70
)

// DefaultStepDelay separates the analysis flow steps.
const DefaultStepDelay = 180 * time.Millisecond

// FinishNowPrompt is shown before an early finish.
const FinishNowPrompt = "Завершить диалог сейчас? Результаты будут сохранены и вы перейдёте к анализу."

var (
	ErrBusy         = errors.New("trainer: analysis in progress")
	ErrInvalidPhase = errors.New("trainer: command not allowed in current phase")
	ErrUnknownTopic = errors.New("trainer: unknown topic")
	ErrNotConfirmed = errors.New("trainer: finish not confirmed")
)

// Confirmer asks the user to confirm prompt.
type Confirmer func(prompt string) bool

// ControllerOpts holds parameters for creating a Controller.
type ControllerOpts struct {
	Catalog  *topic.Catalog
	Branches *branch.Registry
	History  *history.Store
	Analyze  analysis.Func // defaults to analysis.Derive
	Clock    clock.Clock
	// StepDelay separates analysis steps. Zero uses DefaultStepDelay; a
	// negative value disables the pauses.
	StepDelay time.Duration
	Logger    *zap.Logger
}

// Controller is the trainer state machine. It is safe for concurrent use;
// while the analysis flow runs every command fails with ErrBusy.
type Controller struct {
	mu        sync.Mutex
	catalog   *topic.Catalog
	branches  *branch.Registry
	history   *history.Store
	analyze   analysis.Func
	clock     clock.Clock
	stepDelay time.Duration
	log       *zap.Logger

	phase   Phase
	current string
	busy    bool
	results map[string]string // branch id -> history entry id

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// NewController creates a Controller in the welcome phase.
func NewController(opts ControllerOpts) (*Controller, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("trainer: topic catalog is required")
	}
	if opts.Branches == nil {
		return nil, fmt.Errorf("trainer: branch registry is required")
	}
	if opts.History == nil {
		return nil, fmt.Errorf("trainer: history store is required")
	}
	if opts.Analyze == nil {
		opts.Analyze = analysis.Derive
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	switch {
	case opts.StepDelay == 0:
		opts.StepDelay = DefaultStepDelay
	case opts.StepDelay < 0:
		opts.StepDelay = 0
	}
	return &Controller{
		catalog:   opts.Catalog,
		branches:  opts.Branches,
		history:   opts.History,
		analyze:   opts.Analyze,
		clock:     opts.Clock,
		stepDelay: opts.StepDelay,
		log:       logging.OrNop(opts.Logger),
		phase:     PhaseWelcome,
		results:   make(map[string]string),
		subs:      make(map[int]func(Event)),
	}, nil
}

// Select starts a new session on topicID and makes it current.
func (c *Controller) Select(topicID string) (branch.Branch, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return branch.Branch{}, ErrBusy
	}
	if c.phase != PhaseWelcome {
		c.mu.Unlock()
		return branch.Branch{}, fmt.Errorf("trainer: select in %s: %w", c.phase, ErrInvalidPhase)
	}
	if _, ok := c.catalog.Get(topicID); !ok {
		c.mu.Unlock()
		return branch.Branch{}, fmt.Errorf("trainer: select %q: %w", topicID, ErrUnknownTopic)
	}
	b, err := c.branches.Create(topicID)
	if err != nil {
		c.mu.Unlock()
		return branch.Branch{}, fmt.Errorf("trainer: select %q: %w", topicID, err)
	}
	c.current = b.ID
	c.phase = PhaseDialogue
	c.mu.Unlock()

	c.log.Info("session started", zap.String("branch", b.ID), zap.String("topic", topicID))
	c.emit(Event{Kind: EventPhase, Phase: PhaseDialogue, BranchID: b.ID})
	return b, nil
}

// Send appends a specialist message to the current session.
func (c *Controller) Send(text string) (dialogue.Message, error) {
	c.mu.Lock()
	if err := c.requirePhase(PhaseDialogue); err != nil {
		c.mu.Unlock()
		return dialogue.Message{}, err
	}
	msg, err := c.branches.Send(c.current, text)
	c.mu.Unlock()
	if err != nil {
		return dialogue.Message{}, err
	}
	c.emit(Event{Kind: EventMessage, BranchID: msg.SessionID, Message: &msg})
	return msg, nil
}

// SendRich sends the editor's sanitized markup. Emptiness is judged on the
// editor's plain text.
func (c *Controller) SendRich(e richtext.Editor) (dialogue.Message, error) {
	if e == nil || strings.TrimSpace(e.PlainText()) == "" {
		return dialogue.Message{}, branch.ErrEmptyMessage
	}
	return c.Send(e.SanitizedMarkup())
}

// Pause suspends the current session.
func (c *Controller) Pause() error {
	return c.changeStatus(PhaseDialogue, PhasePaused, c.branches.Pause)
}

// Resume reactivates the paused current session.
func (c *Controller) Resume() error {
	return c.changeStatus(PhasePaused, PhaseDialogue, c.branches.Resume)
}

func (c *Controller) changeStatus(from, to Phase, apply func(string) error) error {
	c.mu.Lock()
	if err := c.requirePhase(from); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := apply(c.current); err != nil {
		c.mu.Unlock()
		return err
	}
	c.phase = to
	id := c.current
	c.mu.Unlock()

	c.emit(Event{Kind: EventPhase, Phase: to, BranchID: id})
	return nil
}

// Back returns to the welcome phase without touching the current session's
// status.
func (c *Controller) Back() error {
	c.mu.Lock()
	if err := c.requirePhase(PhaseDialogue, PhasePaused); err != nil {
		c.mu.Unlock()
		return err
	}
	c.current = ""
	c.phase = PhaseWelcome
	c.mu.Unlock()

	c.emit(Event{Kind: EventPhase, Phase: PhaseWelcome})
	return nil
}

// SelectBranch focuses an existing session. Active sessions open in the
// dialogue phase, paused ones in the paused phase. Completed sessions open
// in the dialogue phase and emit EventNavigate for their history entry.
func (c *Controller) SelectBranch(id string) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	b, ok := c.branches.Get(id)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("trainer: select branch %s: %w", id, branch.ErrNotFound)
	}
	events := c.focusLocked(b)
	c.mu.Unlock()

	c.emit(events...)
	return nil
}

// DeleteBranch removes a session. When it was current, focus moves to the
// first active or paused session, else to any remaining session, else back
// to welcome.
func (c *Controller) DeleteBranch(id string) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if err := c.branches.Delete(id); err != nil {
		c.mu.Unlock()
		return err
	}
	delete(c.results, id)

	var events []Event
	if c.current == id {
		remaining := c.branches.List()
		next, ok := pickReplacement(remaining)
		if ok {
			events = c.focusLocked(next)
		} else {
			c.current = ""
			c.phase = PhaseWelcome
			events = []Event{{Kind: EventPhase, Phase: PhaseWelcome}}
		}
	}
	c.mu.Unlock()

	c.log.Info("session deleted", zap.String("branch", id))
	c.emit(events...)
	return nil
}

func pickReplacement(bs []branch.Branch) (branch.Branch, bool) {
	for _, b := range bs {
		if b.Status == branch.StatusActive || b.Status == branch.StatusPaused {
			return b, true
		}
	}
	if len(bs) > 0 {
		return bs[0], true
	}
	return branch.Branch{}, false
}

// focusLocked makes b current and returns the events to emit once c.mu is
// released.
func (c *Controller) focusLocked(b branch.Branch) []Event {
	c.current = b.ID
	switch b.Status {
	case branch.StatusPaused:
		c.phase = PhasePaused
	default:
		c.phase = PhaseDialogue
	}
	events := []Event{{Kind: EventPhase, Phase: c.phase, BranchID: b.ID}}
	if b.Status == branch.StatusCompleted {
		events = append(events, Event{
			Kind:           EventNavigate,
			BranchID:       b.ID,
			HistoryEntryID: c.results[b.ID],
		})
	}
	return events
}

// requirePhase fails with ErrBusy or ErrInvalidPhase. Callers hold c.mu.
func (c *Controller) requirePhase(allowed ...Phase) error {
	if c.busy {
		return ErrBusy
	}
	for _, p := range allowed {
		if c.phase == p {
			return nil
		}
	}
	return fmt.Errorf("trainer: phase %s: %w", c.phase, ErrInvalidPhase)
}
