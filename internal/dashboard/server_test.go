package dashboard

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/trainer/internal/branch"
	"github.com/zulandar/trainer/internal/clock"
	"github.com/zulandar/trainer/internal/dialogue"
	"github.com/zulandar/trainer/internal/history"
	"github.com/zulandar/trainer/internal/kv"
	"github.com/zulandar/trainer/internal/topic"
	"github.com/zulandar/trainer/internal/trainer"
)

var t0 = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fc := clock.NewFake(t0)
	reg, err := branch.NewRegistry(branch.RegistryOpts{Log: dialogue.NewLog(fc), Clock: fc})
	require.NoError(t, err)
	hs, err := history.NewStore(history.StoreOpts{KV: kv.NewMemoryStore()})
	require.NoError(t, err)
	ctrl, err := trainer.NewController(trainer.ControllerOpts{
		Catalog:   topic.Default(),
		Branches:  reg,
		History:   hs,
		Clock:     fc,
		StepDelay: -1,
	})
	require.NoError(t, err)
	s, err := newServer(StartOpts{
		Controller: ctrl,
		User:       topic.UserContext{RoleID: topic.RoleSupportSpecialist, GradeID: topic.GradeJunior},
	})
	require.NoError(t, err)
	return s, s.router()
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func TestStart_NilController(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "controller is required")
}

func TestStart_InvalidDigestCron(t *testing.T) {
	s, _ := newTestServer(t)
	err := Start(context.Background(), StartOpts{Controller: s.ctrl, DigestCron: "not a cron expr"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest cron")
}

func TestTopics(t *testing.T) {
	_, r := newTestServer(t)

	w := do(t, r, http.MethodGet, "/api/topics", "")
	require.Equal(t, http.StatusOK, w.Code)
	topics := decode(t, w)["topics"].([]any)
	assert.Len(t, topics, 15)

	var cardBlock map[string]any
	for _, tp := range topics {
		if m := tp.(map[string]any); m["id"] == "card-block" {
			cardBlock = m
		}
	}
	require.NotNil(t, cardBlock)
	assert.Equal(t, "unhappy", cardBlock["mood"])
}

func TestRecommended(t *testing.T) {
	_, r := newTestServer(t)
	ids := func(w *httptest.ResponseRecorder) []string {
		var out []string
		for _, tp := range decode(t, w)["topics"].([]any) {
			out = append(out, tp.(map[string]any)["id"].(string))
		}
		return out
	}

	w := do(t, r, http.MethodGet, "/api/topics/recommended", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"fund-return", "card-block", "pin-change", "transfers"}, ids(w))

	w = do(t, r, http.MethodGet, "/api/topics/recommended?role=senior-specialist&grade=senior", "")
	assert.Equal(t, []string{"fund-return", "loans", "investments", "mobile-banking"}, ids(w))
}

func TestWelcome(t *testing.T) {
	_, r := newTestServer(t)
	w := do(t, r, http.MethodGet, "/api/welcome", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Len(t, body["recommended"], 4)
	assert.Len(t, body["inProgress"], 1)
	assert.Len(t, body["remaining"], 11)
}

func TestTrainerFlow(t *testing.T) {
	_, r := newTestServer(t)

	w := do(t, r, http.MethodGet, "/api/trainer", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "welcome", decode(t, w)["phase"])

	w = do(t, r, http.MethodPost, "/api/trainer/select", `{"topicId":"card-block"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	branchID := decode(t, w)["branch"].(map[string]any)["id"].(string)

	w = do(t, r, http.MethodPost, "/api/trainer/messages", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/trainer/messages", `{"html":"<strong>Сейчас</strong> заблокирую карту"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "<b>Сейчас</b> заблокирую карту", body["message"].(map[string]any)["content"])
	assert.Equal(t, true, body["canFinish"])

	w = do(t, r, http.MethodPost, "/api/trainer/pause", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paused", decode(t, w)["phase"])

	w = do(t, r, http.MethodPost, "/api/trainer/messages", `{"text":"привет"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, r, http.MethodPost, "/api/trainer/resume", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/api/trainer/finish-now", `{"confirm":false}`)
	assert.Equal(t, http.StatusPreconditionRequired, w.Code)
	assert.Equal(t, trainer.FinishNowPrompt, decode(t, w)["prompt"])

	w = do(t, r, http.MethodPost, "/api/trainer/finish", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	entryID := decode(t, w)["historyEntryId"].(string)
	require.NotEmpty(t, entryID)

	w = do(t, r, http.MethodGet, "/api/history/"+entryID, "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	entry := body["entry"].(map[string]any)
	assert.Equal(t, "Блокировка карты", entry["topicNameRu"])
	assert.Equal(t, float64(5), body["averageScore"])

	w = do(t, r, http.MethodGet, "/api/trainer/branches/"+branchID+"/result", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entryID, decode(t, w)["id"])

	w = do(t, r, http.MethodGet, "/api/history", "")
	assert.Len(t, decode(t, w)["entries"], 1)

	w = do(t, r, http.MethodGet, "/api/history/stats?topic=card-block", "")
	body = decode(t, w)
	assert.Equal(t, float64(1), body["totalCompleted"])
	assert.Equal(t, float64(1), body["topic"].(map[string]any)["attempts"])

	w = do(t, r, http.MethodPost, "/api/trainer/finish", `{"score":85}`)
	assert.Equal(t, http.StatusConflict, w.Code, "a completed session cannot finish again")

	w = do(t, r, http.MethodPost, "/api/trainer/back", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodDelete, "/api/trainer/branches/"+branchID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["branches"])

	w = do(t, r, http.MethodGet, "/api/history/"+entryID, "")
	assert.Equal(t, http.StatusOK, w.Code, "history outlives the session")
}

func TestFinishNow_Confirmed(t *testing.T) {
	s, r := newTestServer(t)
	do(t, r, http.MethodPost, "/api/trainer/select", `{"topicId":"loans"}`)

	w := do(t, r, http.MethodPost, "/api/trainer/finish-now", `{"confirm":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := decode(t, w)["historyEntryId"].(string)

	entry, ok := s.ctrl.HistoryEntry(context.Background(), id)
	require.True(t, ok)
	assert.Equal(t, 4, entry.Result.Block1.Score, "finish-now uses the early score 70")
}

func TestFinish_WithoutSessionIsSkipped(t *testing.T) {
	_, r := newTestServer(t)
	w := do(t, r, http.MethodPost, "/api/trainer/finish", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["skipped"])
}

func TestErrorStatuses(t *testing.T) {
	_, r := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown topic", http.MethodPost, "/api/trainer/select", `{"topicId":"nope"}`, http.StatusNotFound},
		{"missing topic id", http.MethodPost, "/api/trainer/select", `{}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/trainer/messages", `{`, http.StatusBadRequest},
		{"send in welcome", http.MethodPost, "/api/trainer/messages", `{"text":"hi"}`, http.StatusConflict},
		{"pause in welcome", http.MethodPost, "/api/trainer/pause", "", http.StatusConflict},
		{"select missing branch", http.MethodPost, "/api/trainer/branches/br-x/select", "", http.StatusNotFound},
		{"delete missing branch", http.MethodDelete, "/api/trainer/branches/br-x", "", http.StatusNotFound},
		{"missing result", http.MethodGet, "/api/trainer/branches/br-x/result", "", http.StatusNotFound},
		{"missing history entry", http.MethodGet, "/api/history/nope", "", http.StatusNotFound},
		{"unknown route", http.MethodGet, "/api/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestInvalidScore(t *testing.T) {
	_, r := newTestServer(t)
	do(t, r, http.MethodPost, "/api/trainer/select", `{"topicId":"card-block"}`)
	w := do(t, r, http.MethodPost, "/api/trainer/finish", `{"score":101}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvents_Stream(t *testing.T) {
	oldTick := tickInterval
	tickInterval = 20 * time.Millisecond
	t.Cleanup(func() { tickInterval = oldTick })

	s, r := newTestServer(t)
	ts := httptest.NewServer(r)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(event string) string {
		t.Helper()
		for lines.Scan() {
			if lines.Text() == "event: "+event {
				lines.Scan()
				return strings.TrimPrefix(lines.Text(), "data: ")
			}
		}
		t.Fatalf("stream ended before %q", event)
		return ""
	}

	assert.Contains(t, waitFor("connected"), `"phase":"welcome"`)

	_, err = s.ctrl.Select("card-block")
	require.NoError(t, err)
	assert.Contains(t, waitFor("phase"), `"phase":"dialogue"`)
	assert.Contains(t, waitFor("elapsed"), `"elapsedSeconds":0`)
}
