// Package branch tracks training sessions ("branches") and their lifecycle.
package branch

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zulandar/trainer/internal/clock"
	"github.com/zulandar/trainer/internal/dialogue"
)

// Status is the lifecycle state of a branch.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Label returns the Russian display label for the status.
func (s Status) Label() string {
	switch s {
	case StatusActive:
		return "Активная"
	case StatusPaused:
		return "В процессе"
	case StatusCompleted:
		return "Завершена"
	}
	return string(s)
}

// ValidTransitions maps each status to its valid next statuses.
// Completed is terminal.
var ValidTransitions = map[Status][]Status{
	StatusActive:    {StatusPaused, StatusCompleted},
	StatusPaused:    {StatusActive, StatusCompleted},
	StatusCompleted: {},
}

// DefaultOpener is the scripted client greeting that starts every session
// unless an Opener func overrides it.
const DefaultOpener = "Добрый день! Подскажите, пожалуйста, как заблокировать карту — потеряла её вчера."

var (
	ErrNotFound          = errors.New("branch: not found")
	ErrEmptyMessage      = errors.New("branch: message is empty")
	ErrInvalidTransition = errors.New("branch: invalid status transition")
	ErrInvalidScore      = errors.New("branch: score out of range 0-100")
)

// Branch is a single training session.
type Branch struct {
	ID         string    `json:"id"`
	TopicID    string    `json:"topicId"`
	CreatedAt  time.Time `json:"createdAt"`
	Status     Status    `json:"status"`
	Score      *int      `json:"score,omitempty"`
	MessageIDs []string  `json:"messageIds"`
}

func (b *Branch) clone() Branch {
	out := *b
	out.MessageIDs = append([]string(nil), b.MessageIDs...)
	if b.Score != nil {
		s := *b.Score
		out.Score = &s
	}
	return out
}

// RegistryOpts holds parameters for creating a Registry.
type RegistryOpts struct {
	Log   *dialogue.Log
	Clock clock.Clock
	// Opener returns the first client message for a topic. An empty result
	// falls back to DefaultOpener.
	Opener func(topicID string) string
}

// Registry owns every branch of the process. It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	log      *dialogue.Log
	clock    clock.Clock
	opener   func(string) string
	branches map[string]*Branch
	order    []string
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts RegistryOpts) (*Registry, error) {
	if opts.Log == nil {
		return nil, fmt.Errorf("branch: message log is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Registry{
		log:      opts.Log,
		clock:    opts.Clock,
		opener:   opts.Opener,
		branches: make(map[string]*Branch),
	}, nil
}

// GenerateID creates a branch ID in br-xxxxxxxx format (8-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("branch: generate ID: %w", err)
	}
	return "br-" + hex.EncodeToString(b), nil
}

// Create starts an active branch for topicID and seeds it with the client
// opener message.
func (r *Registry) Create(topicID string) (Branch, error) {
	if topicID == "" {
		return Branch{}, fmt.Errorf("branch: topic id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var id string
	for attempt := 0; ; attempt++ {
		candidate, err := GenerateID()
		if err != nil {
			return Branch{}, err
		}
		if _, taken := r.branches[candidate]; !taken {
			id = candidate
			break
		}
		if attempt == 4 {
			return Branch{}, fmt.Errorf("branch: could not allocate a unique id")
		}
	}

	text := ""
	if r.opener != nil {
		text = r.opener(topicID)
	}
	if text == "" {
		text = DefaultOpener
	}
	b := &Branch{
		ID:        id,
		TopicID:   topicID,
		CreatedAt: r.clock.Now(),
		Status:    StatusActive,
	}
	msg := r.log.Append(id, dialogue.RoleClient, text)
	b.MessageIDs = []string{msg.ID}

	r.branches[id] = b
	r.order = append(r.order, id)
	return b.clone(), nil
}

// Send appends a specialist message to an active branch. The text is
// trimmed; whitespace-only text is rejected.
func (r *Registry) Send(id, text string) (dialogue.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.branches[id]
	if !ok {
		return dialogue.Message{}, fmt.Errorf("branch: send to %s: %w", id, ErrNotFound)
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return dialogue.Message{}, ErrEmptyMessage
	}
	if b.Status != StatusActive {
		return dialogue.Message{}, fmt.Errorf("branch: send to %s branch %s: %w", b.Status, id, ErrInvalidTransition)
	}
	msg := r.log.Append(id, dialogue.RoleSpecialist, trimmed)
	b.MessageIDs = append(b.MessageIDs, msg.ID)
	return msg, nil
}

// Pause moves an active branch to paused.
func (r *Registry) Pause(id string) error {
	return r.transition(id, StatusPaused, nil)
}

// Resume moves a paused branch back to active.
func (r *Registry) Resume(id string) error {
	return r.transition(id, StatusActive, nil)
}

// Complete marks the branch completed with the given overall score.
func (r *Registry) Complete(id string, score int) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("branch: complete %s with %d: %w", id, score, ErrInvalidScore)
	}
	return r.transition(id, StatusCompleted, &score)
}

func (r *Registry) transition(id string, to Status, score *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.branches[id]
	if !ok {
		return fmt.Errorf("branch: %s: %w", id, ErrNotFound)
	}
	if !isValidTransition(b.Status, to) {
		return fmt.Errorf("branch: %s -> %s for %s: %w", b.Status, to, id, ErrInvalidTransition)
	}
	b.Status = to
	if score != nil {
		b.Score = score
	}
	return nil
}

func isValidTransition(from, to Status) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanFinish reports whether the branch has at least one exchange beyond
// the opener.
func (r *Registry) CanFinish(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.branches[id]
	return ok && len(b.MessageIDs) >= 2
}

// Delete removes the branch and its messages.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.branches[id]; !ok {
		return fmt.Errorf("branch: delete %s: %w", id, ErrNotFound)
	}
	delete(r.branches, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.log.Remove(id)
	return nil
}

// Get returns a copy of the branch.
func (r *Registry) Get(id string) (Branch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.branches[id]
	if !ok {
		return Branch{}, false
	}
	return b.clone(), true
}

// List returns copies of all branches in creation order.
func (r *Registry) List() []Branch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Branch, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.branches[id].clone())
	}
	return out
}

// Messages returns the branch's messages in send order.
func (r *Registry) Messages(id string) []dialogue.Message {
	return r.log.AllFor(id)
}
