// Package dialogue holds the in-memory message log of training sessions.
package dialogue

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/trainer/internal/clock"
)

// Role identifies who wrote a message.
type Role string

const (
	RoleClient     Role = "client"
	RoleSpecialist Role = "specialist"
)

// Message is one dialogue turn.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is an append-only store of messages grouped by session id. It is safe
// for concurrent use.
type Log struct {
	mu       sync.RWMutex
	clock    clock.Clock
	sessions map[string][]Message
}

// NewLog creates an empty Log. A nil clock uses the system clock.
func NewLog(c clock.Clock) *Log {
	if c == nil {
		c = clock.Real{}
	}
	return &Log{clock: c, sessions: make(map[string][]Message)}
}

// Append records a message for sessionID, stamped with the current instant.
func (l *Log) Append(sessionID string, role Role, content string) Message {
	msg := Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: l.clock.Now(),
	}
	l.mu.Lock()
	l.sessions[sessionID] = append(l.sessions[sessionID], msg)
	l.mu.Unlock()
	return msg
}

// AllFor returns a copy of the session's messages in send order.
func (l *Log) AllFor(sessionID string) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	msgs := l.sessions[sessionID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Len returns the number of messages in the session.
func (l *Log) Len(sessionID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sessions[sessionID])
}

// Remove drops every message of the session.
func (l *Log) Remove(sessionID string) {
	l.mu.Lock()
	delete(l.sessions, sessionID)
	l.mu.Unlock()
}
