package trainer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zulandar/trainer/internal/branch"
	"github.com/zulandar/trainer/internal/history"
)

// Step is one stage of the analysis flow.
type Step string

const (
	StepAnalyze  Step = "analyze"
	StepSnapshot Step = "snapshot"
	StepPersist  Step = "persist"
	StepComplete Step = "complete"
)

// Finish runs the analysis flow for the current session with score and
// returns the new history entry id. Without a resolvable current session
// and topic it does nothing and returns an empty id.
func (c *Controller) Finish(ctx context.Context, score int) (string, error) {
	return c.runAnalysis(ctx, score)
}

// FinishNow asks confirm with FinishNowPrompt and, if confirmed, runs the
// analysis flow like Finish.
func (c *Controller) FinishNow(ctx context.Context, score int, confirm Confirmer) (string, error) {
	c.mu.Lock()
	busy := c.busy
	c.mu.Unlock()
	if busy {
		return "", ErrBusy
	}
	if confirm == nil || !confirm(FinishNowPrompt) {
		return "", ErrNotConfirmed
	}
	return c.runAnalysis(ctx, score)
}

func (c *Controller) runAnalysis(ctx context.Context, score int) (string, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return "", ErrBusy
	}
	b, ok := c.branches.Get(c.current)
	if c.current == "" || !ok {
		c.mu.Unlock()
		c.log.Warn("analysis skipped: no current session")
		return "", nil
	}
	t, ok := c.catalog.Get(b.TopicID)
	if !ok {
		c.mu.Unlock()
		c.log.Warn("analysis skipped: topic not in catalog",
			zap.String("branch", b.ID), zap.String("topic", b.TopicID))
		return "", nil
	}
	if b.Status == branch.StatusCompleted {
		c.mu.Unlock()
		return "", fmt.Errorf("trainer: finish %s: %w", b.ID, branch.ErrInvalidTransition)
	}
	if score < 0 || score > 100 {
		c.mu.Unlock()
		return "", fmt.Errorf("trainer: finish %s with %d: %w", b.ID, score, branch.ErrInvalidScore)
	}
	c.busy = true
	c.mu.Unlock()

	c.emit(Event{Kind: EventBusy, Busy: true, BranchID: b.ID})
	c.log.Info("analysis started", zap.String("branch", b.ID), zap.Int("score", score))

	c.step(StepAnalyze, b.ID)
	result := c.analyze(score)
	c.pause()

	c.step(StepSnapshot, b.ID)
	now := c.clock.Now()
	id, err := history.NewID(now)
	if err != nil {
		c.release(b.ID)
		return "", fmt.Errorf("trainer: finish %s: %w", b.ID, err)
	}
	entry := history.Entry{
		ID:            id,
		TopicID:       t.ID,
		TopicName:     t.Name,
		CompletedAt:   now,
		Transcription: c.branches.Messages(b.ID),
		Result:        result,
	}
	c.pause()

	c.step(StepPersist, b.ID)
	// The flow always runs to completion, so the write outlives the caller.
	c.history.Save(context.WithoutCancel(ctx), entry)
	c.pause()

	c.step(StepComplete, b.ID)
	if err := c.branches.Complete(b.ID, score); err != nil {
		c.release(b.ID)
		return "", fmt.Errorf("trainer: finish %s: %w", b.ID, err)
	}

	c.mu.Lock()
	c.results[b.ID] = id
	resumed := c.current == b.ID && c.phase == PhasePaused
	if resumed {
		c.phase = PhaseDialogue
	}
	c.mu.Unlock()
	c.release(b.ID)
	if resumed {
		c.emit(Event{Kind: EventPhase, Phase: PhaseDialogue, BranchID: b.ID})
	}

	c.log.Info("analysis finished", zap.String("branch", b.ID), zap.String("entry", id))
	c.emit(Event{Kind: EventNavigate, BranchID: b.ID, HistoryEntryID: id})
	return id, nil
}

func (c *Controller) step(s Step, branchID string) {
	c.emit(Event{Kind: EventAnalysisStep, Step: s, BranchID: branchID})
}

func (c *Controller) pause() {
	if c.stepDelay > 0 {
		c.clock.Sleep(c.stepDelay)
	}
}

func (c *Controller) release(branchID string) {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
	c.emit(Event{Kind: EventBusy, Busy: false, BranchID: branchID})
}
