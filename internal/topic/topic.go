// Package topic holds the static catalog of practice topics and the
// recommendation rules that pick topics for a trainee.
package topic

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxRecommended caps the length of Recommended.
const MaxRecommended = 4

// moodThreshold is the average score below which a topic is shown as unhappy.
const moodThreshold = 8.5

// Topic is one practice subject.
type Topic struct {
	ID               string     `yaml:"id" json:"id"`
	Name             string     `yaml:"name" json:"name"`
	ShortDescription string     `yaml:"short_description" json:"shortDescription"`
	Progress         Progress   `yaml:"progress" json:"progress"`
	Relevance        *Relevance `yaml:"relevance,omitempty" json:"relevance,omitempty"`
	// Opener is the scripted first client message; empty uses the default.
	Opener string `yaml:"opener,omitempty" json:"opener,omitempty"`
}

// Progress is seed data shown next to a topic.
type Progress struct {
	SessionsPercent int      `yaml:"sessions_percent" json:"sessionsPercent"`
	AttemptsCount   int      `yaml:"attempts_count" json:"attemptsCount"`
	AverageScore    *float64 `yaml:"average_score,omitempty" json:"averageScore,omitempty"`
}

// Relevance restricts recommendation to certain roles and grades. An empty
// set matches everyone.
type Relevance struct {
	RoleIDs  []string `yaml:"role_ids,omitempty" json:"roleIds,omitempty"`
	GradeIDs []string `yaml:"grade_ids,omitempty" json:"gradeIds,omitempty"`
}

// UserContext describes the trainee asking for recommendations.
type UserContext struct {
	RoleID  string
	GradeID string
}

// Mood is the face shown for a topic's average score.
type Mood string

const (
	MoodHappy   Mood = "happy"
	MoodUnhappy Mood = "unhappy"
)

// Catalog is an immutable, ordered registry of topics.
type Catalog struct {
	topics []Topic
	byID   map[string]int
}

// New builds a Catalog from topics, validating ids and progress values.
func New(topics []Topic) (*Catalog, error) {
	c := &Catalog{
		topics: make([]Topic, len(topics)),
		byID:   make(map[string]int, len(topics)),
	}
	var errs []string
	for i, t := range topics {
		if t.ID == "" {
			errs = append(errs, fmt.Sprintf("topics[%d].id is required", i))
		} else if _, dup := c.byID[t.ID]; dup {
			errs = append(errs, fmt.Sprintf("topics[%d].id %q is duplicated", i, t.ID))
		}
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("topics[%d].name is required", i))
		}
		if t.Progress.SessionsPercent < 0 || t.Progress.SessionsPercent > 100 {
			errs = append(errs, fmt.Sprintf("topics[%d].progress.sessions_percent out of range 0-100", i))
		}
		if t.Progress.AttemptsCount < 0 {
			errs = append(errs, fmt.Sprintf("topics[%d].progress.attempts_count must be >= 0", i))
		}
		if avg := t.Progress.AverageScore; avg != nil && (*avg < 0 || *avg > 10) {
			errs = append(errs, fmt.Sprintf("topics[%d].progress.average_score out of range 0-10", i))
		}
		c.topics[i] = t
		c.byID[t.ID] = i
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("topic: invalid catalog: %s", strings.Join(errs, "; "))
	}
	return c, nil
}

// Load reads a YAML topic list from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topic: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Catalog from a YAML document of the form `topics: [...]`.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Topics []Topic `yaml:"topics"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("topic: parse: %w", err)
	}
	return New(doc.Topics)
}

// All returns every topic in catalog order.
func (c *Catalog) All() []Topic {
	out := make([]Topic, len(c.topics))
	copy(out, c.topics)
	return out
}

// Len returns the number of topics.
func (c *Catalog) Len() int { return len(c.topics) }

// Get returns the topic with the given id.
func (c *Catalog) Get(id string) (Topic, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Topic{}, false
	}
	return c.topics[i], true
}

// Recommended returns up to MaxRecommended topics relevant to u, in catalog
// order. Topics without a Relevance are never recommended.
func (c *Catalog) Recommended(u UserContext) []Topic {
	var out []Topic
	for _, t := range c.topics {
		if len(out) == MaxRecommended {
			break
		}
		if t.Relevance.Matches(u) {
			out = append(out, t)
		}
	}
	return out
}

// InProgress returns topics the trainee has already started.
func (c *Catalog) InProgress() []Topic {
	var out []Topic
	for _, t := range c.topics {
		if t.Progress.SessionsPercent > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Remaining returns topics that are neither in recommended nor in progress.
func (c *Catalog) Remaining(recommended []Topic) []Topic {
	skip := make(map[string]bool, len(recommended))
	for _, t := range recommended {
		skip[t.ID] = true
	}
	var out []Topic
	for _, t := range c.topics {
		if skip[t.ID] || t.Progress.SessionsPercent > 0 {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Matches reports whether u satisfies the relevance filter. A nil filter
// never matches.
func (r *Relevance) Matches(u UserContext) bool {
	if r == nil {
		return false
	}
	return containsOrEmpty(r.RoleIDs, u.RoleID) && containsOrEmpty(r.GradeIDs, u.GradeID)
}

func containsOrEmpty(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// MoodOf returns the face for a topic: unhappy when an average score exists
// and is below 8.5.
func MoodOf(t Topic) Mood {
	if avg := t.Progress.AverageScore; avg != nil && *avg < moodThreshold {
		return MoodUnhappy
	}
	return MoodHappy
}
