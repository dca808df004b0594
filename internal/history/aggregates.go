package history

import (
	"sort"
	"time"
)

// AverageScore is the rounded mean of the entry's three block levels.
func AverageScore(e Entry) int {
	return e.Result.Average()
}

// TopicProgress summarizes the attempts recorded for one topic.
type TopicProgress struct {
	TopicID          string `json:"topicId"`
	Attempts         int    `json:"attempts"`
	FirstScore       int    `json:"firstScore"`
	LatestScore      int    `json:"latestScore"`
	ImprovementDelta int    `json:"improvementDelta"`
}

// ProgressFor computes TopicProgress for topicID. It reports false when the
// topic has no entries.
func ProgressFor(entries []Entry, topicID string) (TopicProgress, bool) {
	var matched []Entry
	for _, e := range entries {
		if e.TopicID == topicID {
			matched = append(matched, e)
		}
	}
	if len(matched) == 0 {
		return TopicProgress{}, false
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CompletedAt.Before(matched[j].CompletedAt)
	})
	first := AverageScore(matched[0])
	latest := AverageScore(matched[len(matched)-1])
	return TopicProgress{
		TopicID:          topicID,
		Attempts:         len(matched),
		FirstScore:       first,
		LatestScore:      latest,
		ImprovementDelta: latest - first,
	}, true
}

// TotalCompleted is the number of completed sessions.
func TotalCompleted(entries []Entry) int {
	return len(entries)
}

// Digest is a periodic summary of recent practice.
type Digest struct {
	Since        time.Time       `json:"since"`
	Completed    int             `json:"completed"`
	TotalAllTime int             `json:"totalAllTime"`
	AverageScore float64         `json:"averageScore"`
	Topics       []TopicProgress `json:"topics"`
}

// Summarize builds a Digest of the entries completed at or after since.
// Topics are ordered by id.
func Summarize(entries []Entry, since time.Time) Digest {
	d := Digest{Since: since, TotalAllTime: TotalCompleted(entries)}
	var recent []Entry
	seen := make(map[string]bool)
	var topicIDs []string
	for _, e := range entries {
		if e.CompletedAt.Before(since) {
			continue
		}
		recent = append(recent, e)
		if !seen[e.TopicID] {
			seen[e.TopicID] = true
			topicIDs = append(topicIDs, e.TopicID)
		}
	}
	d.Completed = len(recent)
	if len(recent) == 0 {
		return d
	}
	var sum int
	for _, e := range recent {
		sum += AverageScore(e)
	}
	d.AverageScore = float64(sum) / float64(len(recent))

	sort.Strings(topicIDs)
	for _, id := range topicIDs {
		p, _ := ProgressFor(recent, id)
		d.Topics = append(d.Topics, p)
	}
	return d
}
