package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zulandar/trainer/internal/branch"
	"github.com/zulandar/trainer/internal/history"
	"github.com/zulandar/trainer/internal/richtext"
	"github.com/zulandar/trainer/internal/topic"
	"github.com/zulandar/trainer/internal/trainer"
)

// registerRoutes sets up all API routes on the Gin router.
func (s *server) registerRoutes(router *gin.Engine) {
	api := router.Group("/api")

	api.GET("/topics", s.handleTopics)
	api.GET("/topics/recommended", s.handleRecommended)
	api.GET("/welcome", s.handleWelcome)

	api.GET("/trainer", s.handleSnapshot)
	api.POST("/trainer/select", s.handleSelect)
	api.POST("/trainer/messages", s.handleSend)
	api.POST("/trainer/pause", s.handleCommand(s.ctrl.Pause))
	api.POST("/trainer/resume", s.handleCommand(s.ctrl.Resume))
	api.POST("/trainer/back", s.handleCommand(s.ctrl.Back))
	api.POST("/trainer/finish", s.handleFinish)
	api.POST("/trainer/finish-now", s.handleFinishNow)
	api.POST("/trainer/branches/:id/select", s.handleSelectBranch)
	api.DELETE("/trainer/branches/:id", s.handleDeleteBranch)
	api.GET("/trainer/branches/:id/result", s.handleBranchResult)

	api.GET("/history", s.handleHistory)
	api.GET("/history/stats", s.handleHistoryStats)
	api.GET("/history/digest", s.handleDigest)
	api.GET("/history/:id", s.handleHistoryEntry)

	api.GET("/events", s.handleEvents)
}

// topicView is a topic with its display mood.
type topicView struct {
	topic.Topic
	Mood topic.Mood `json:"mood"`
}

func viewTopics(ts []topic.Topic) []topicView {
	out := make([]topicView, len(ts))
	for i, t := range ts {
		out[i] = topicView{Topic: t, Mood: topic.MoodOf(t)}
	}
	return out
}

func (s *server) userFrom(c *gin.Context) topic.UserContext {
	u := s.user
	if role := c.Query("role"); role != "" {
		u.RoleID = role
	}
	if grade := c.Query("grade"); grade != "" {
		u.GradeID = grade
	}
	return u
}

func (s *server) handleTopics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"topics": viewTopics(s.ctrl.Catalog().All())})
}

func (s *server) handleRecommended(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"topics": viewTopics(s.ctrl.Catalog().Recommended(s.userFrom(c)))})
}

func (s *server) handleWelcome(c *gin.Context) {
	cat := s.ctrl.Catalog()
	rec := cat.Recommended(s.userFrom(c))
	c.JSON(http.StatusOK, gin.H{
		"recommended": viewTopics(rec),
		"inProgress":  viewTopics(cat.InProgress()),
		"remaining":   viewTopics(cat.Remaining(rec)),
	})
}

func (s *server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Snapshot())
}

type selectRequest struct {
	TopicID string `json:"topicId" binding:"required"`
}

func (s *server) handleSelect(c *gin.Context) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := s.ctrl.Select(req.TopicID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"branch": b, "snapshot": s.ctrl.Snapshot()})
}

// sendRequest carries either plain text or editor HTML.
type sendRequest struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

func (s *server) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var editor richtext.Editor = richtext.Text(req.Text)
	if req.HTML != "" {
		editor = richtext.NewBuffer(req.HTML)
	}
	msg, err := s.ctrl.SendRich(editor)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg, "canFinish": s.ctrl.CanFinish()})
}

func (s *server) handleCommand(fn func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(); err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, s.ctrl.Snapshot())
	}
}

type finishRequest struct {
	Score   *int `json:"score"`
	Confirm bool `json:"confirm"`
}

func (s *server) bindFinish(c *gin.Context, fallback int) (finishRequest, int, bool) {
	var req finishRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return req, 0, false
		}
	}
	score := fallback
	if req.Score != nil {
		score = *req.Score
	}
	return req, score, true
}

func (s *server) handleFinish(c *gin.Context) {
	_, score, ok := s.bindFinish(c, s.scores.finish)
	if !ok {
		return
	}
	id, err := s.ctrl.Finish(c.Request.Context(), score)
	s.respondFinish(c, id, err)
}

func (s *server) handleFinishNow(c *gin.Context) {
	req, score, ok := s.bindFinish(c, s.scores.finishNow)
	if !ok {
		return
	}
	id, err := s.ctrl.FinishNow(c.Request.Context(), score, func(string) bool { return req.Confirm })
	s.respondFinish(c, id, err)
}

func (s *server) respondFinish(c *gin.Context, id string, err error) {
	if err != nil {
		if errors.Is(err, trainer.ErrNotConfirmed) {
			c.JSON(http.StatusPreconditionRequired, gin.H{"error": err.Error(), "prompt": trainer.FinishNowPrompt})
			return
		}
		s.fail(c, err)
		return
	}
	if id == "" {
		c.JSON(http.StatusOK, gin.H{"skipped": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"historyEntryId": id})
}

func (s *server) handleSelectBranch(c *gin.Context) {
	if err := s.ctrl.SelectBranch(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ctrl.Snapshot())
}

func (s *server) handleDeleteBranch(c *gin.Context) {
	if err := s.ctrl.DeleteBranch(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ctrl.Snapshot())
}

func (s *server) handleBranchResult(c *gin.Context) {
	entry, ok := s.ctrl.ResultFor(c.Request.Context(), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no stored result for branch"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *server) handleHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": s.ctrl.History(c.Request.Context())})
}

func (s *server) handleHistoryEntry(c *gin.Context) {
	e, ok := s.ctrl.HistoryEntry(c.Request.Context(), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "history entry not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": e, "averageScore": history.AverageScore(e)})
}

func (s *server) handleHistoryStats(c *gin.Context) {
	entries := s.ctrl.History(c.Request.Context())
	resp := gin.H{"totalCompleted": history.TotalCompleted(entries)}
	if id := c.Query("topic"); id != "" {
		if p, ok := history.ProgressFor(entries, id); ok {
			resp["topic"] = p
		} else {
			resp["topic"] = nil
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) handleDigest(c *gin.Context) {
	d, ok := s.digest.latest()
	if !ok {
		d = s.digest.build(c.Request.Context())
	}
	c.JSON(http.StatusOK, d)
}

// fail maps controller errors to HTTP statuses.
func (s *server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, trainer.ErrBusy),
		errors.Is(err, trainer.ErrInvalidPhase),
		errors.Is(err, branch.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, trainer.ErrUnknownTopic),
		errors.Is(err, branch.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, branch.ErrEmptyMessage),
		errors.Is(err, branch.ErrInvalidScore):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
