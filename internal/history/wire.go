package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zulandar/trainer/internal/analysis"
	"github.com/zulandar/trainer/internal/dialogue"
)

// wireEntry is the persisted layout. Instants are ISO-8601 strings in UTC
// with millisecond precision or better.
type wireEntry struct {
	ID            string          `json:"id"`
	TopicID       string          `json:"topicId"`
	TopicName     string          `json:"topicNameRu"`
	CompletedAt   string          `json:"completedAt"`
	Transcription []wireMessage   `json:"transcription"`
	Result        analysis.Result `json:"result"`
}

type wireMessage struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	Role      dialogue.Role `json:"role"`
	Content   string        `json:"content"`
	Timestamp string        `json:"timestamp"`
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseInstant(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func toWire(e Entry) wireEntry {
	w := wireEntry{
		ID:            e.ID,
		TopicID:       e.TopicID,
		TopicName:     e.TopicName,
		CompletedAt:   formatInstant(e.CompletedAt),
		Transcription: make([]wireMessage, len(e.Transcription)),
		Result:        e.Result,
	}
	for i, m := range e.Transcription {
		w.Transcription[i] = wireMessage{
			ID:        m.ID,
			SessionID: m.SessionID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: formatInstant(m.Timestamp),
		}
	}
	return w
}

func decodeEntry(data json.RawMessage) (Entry, error) {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return Entry{}, fmt.Errorf("history: decode entry: %w", err)
	}
	completed, err := parseInstant(w.CompletedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("history: entry %s completedAt: %w", w.ID, err)
	}
	e := Entry{
		ID:            w.ID,
		TopicID:       w.TopicID,
		TopicName:     w.TopicName,
		CompletedAt:   completed,
		Transcription: make([]dialogue.Message, len(w.Transcription)),
		Result:        w.Result,
	}
	for i, m := range w.Transcription {
		ts, err := parseInstant(m.Timestamp)
		if err != nil {
			return Entry{}, fmt.Errorf("history: entry %s message %s timestamp: %w", w.ID, m.ID, err)
		}
		e.Transcription[i] = dialogue.Message{
			ID:        m.ID,
			SessionID: m.SessionID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: ts,
		}
	}
	return e, nil
}
