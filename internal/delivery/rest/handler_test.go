package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aliskhannn/ielts-mock-engine/internal/domain/entities"
	"github.com/aliskhannn/ielts-mock-engine/internal/infra/memory"
	"github.com/aliskhannn/ielts-mock-engine/internal/service"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newServer(t *testing.T) (*httptest.Server, *clock) {
	t.Helper()

	store := memory.NewStore()
	store.PutUser(entities.User{ID: "u1", Tier: entities.TierUnlimited})
	store.PutTest(entities.Test{
		ID:               "reading-1",
		Module:           entities.ModuleReading,
		Title:            "Reading 1",
		TimeLimitSeconds: 3600,
		IsActive:         true,
		Sections:         []entities.Section{{ID: "p1", Number: 1, Title: "Passage 1"}},
		Questions: []entities.Question{
			{ID: "r1", SectionID: "p1", QuestionNumber: 1, Type: entities.QuestionYesNoNotGiven, CorrectAnswer: "YES", Points: 1},
			{ID: "r2", SectionID: "p1", QuestionNumber: 2, Type: entities.QuestionShortAnswer, CorrectAnswer: "the harbour", Points: 1},
		},
	})
	store.PutTest(entities.Test{
		ID:               "writing-1",
		Module:           entities.ModuleWriting,
		TimeLimitSeconds: 3600,
		IsActive:         true,
		Questions:        []entities.Question{{ID: "w1", Type: entities.QuestionEssay}},
	})

	c := &clock{t: time.Now().UTC()}
	sessions := service.NewSessions(store, service.DefaultQuotaConfig(), zap.NewNop())
	sessions.SetClock(c.now)

	modules := map[entities.Module]SessionService{}
	for _, m := range entities.Modules {
		mgr, ok := sessions.Module(m)
		require.True(t, ok)
		modules[m] = mgr
	}

	h := NewHandler(modules, sessions, []string{"*"}, zap.NewNop())
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return srv, c
}

func call(t *testing.T, srv *httptest.Server, method, path, user, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(headerUserID, user)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestReadingFlow(t *testing.T) {
	srv, _ := newServer(t)

	resp, body := call(t, srv, http.MethodPost, "/api/v1/reading/tests/reading-1/start", "u1", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	attemptID := body["attemptId"].(string)
	require.NotEmpty(t, attemptID)
	assert.Equal(t, "IN_PROGRESS", body["status"])

	test := body["test"].(map[string]any)
	for _, q := range test["questions"].([]any) {
		assert.NotContains(t, q.(map[string]any), "correctAnswer")
	}

	base := "/api/v1/reading/attempts/" + attemptID

	resp, _ = call(t, srv, http.MethodPut, base+"/answers/r1", "u1", `{"answer":"yes","timeSpent":30}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = call(t, srv, http.MethodPatch, base+"/progress", "u1", `{"currentPassage":2,"timeSpent":120}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 120.0, body["timeSpent"])

	resp, body = call(t, srv, http.MethodGet, base+"/stats", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, body["answered"])
	assert.Equal(t, 2.0, body["total"])

	resp, body = call(t, srv, http.MethodGet, "/api/v1/sessions/active", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := body["session"].(map[string]any)
	assert.Equal(t, attemptID, session["attemptId"])
	assert.Equal(t, "READING", session["module"])

	resp, body = call(t, srv, http.MethodPost, base+"/submit", "u1",
		`{"answers":[{"questionId":"r2","userAnswer":"The Harbour."}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := body["result"].(map[string]any)
	assert.Equal(t, 2.0, result["correctAnswers"])
	assert.Equal(t, 100.0, result["percentage"])
	analytics := body["analytics"].(map[string]any)
	assert.Equal(t, 1.0, analytics["totalTests"])

	resp, body = call(t, srv, http.MethodPost, base+"/submit", "u1", `{}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, codeAlreadySubmitted, body["code"])

	resp, body = call(t, srv, http.MethodPost, base+"/abandon", "u1", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, codeAlreadySubmitted, body["code"])

	resp, _ = call(t, srv, http.MethodPut, base+"/feedback", "u1", `{"summary":"good scanning"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = call(t, srv, http.MethodGet, base+"/result", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"summary": "good scanning"}, body["aiFeedback"])

	resp, body = call(t, srv, http.MethodGet, "/api/v1/sessions/active", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, body["session"])

	resp, body = call(t, srv, http.MethodGet, "/api/v1/reading/analytics", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1.0, body["totalTests"])
}

func TestSessionConflictResponse(t *testing.T) {
	srv, _ := newServer(t)

	resp, body := call(t, srv, http.MethodPost, "/api/v1/reading/tests/reading-1/start", "u1", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	attemptID := body["attemptId"].(string)

	resp, body = call(t, srv, http.MethodPost, "/api/v1/writing/tests/writing-1/start", "u1", "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, codeSessionConflict, body["code"])
	details := body["details"].(map[string]any)
	assert.Equal(t, "READING", details["module"])
	assert.Equal(t, attemptID, details["attemptId"])

	resp, body = call(t, srv, http.MethodPost, "/api/v1/reading/attempts/"+attemptID+"/abandon", "u1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "EXPIRED", body["status"])

	resp, _ = call(t, srv, http.MethodPost, "/api/v1/writing/tests/writing-1/start", "u1", "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestQuotaResponse(t *testing.T) {
	srv, _ := newServer(t)

	resp, body := call(t, srv, http.MethodPost, "/api/v1/writing/tests/writing-1/start", "free", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	attemptID := body["attemptId"].(string)

	resp, _ = call(t, srv, http.MethodPost, "/api/v1/writing/attempts/"+attemptID+"/submit", "free",
		`{"answers":[{"questionId":"w1","userAnswer":"essay"}],"taskBands":{"1":5,"2":5.5}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = call(t, srv, http.MethodPost, "/api/v1/writing/tests/writing-1/start", "free", "")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, codeQuotaExceeded, body["code"])
}

func TestExpiredResponse(t *testing.T) {
	srv, c := newServer(t)

	resp, body := call(t, srv, http.MethodPost, "/api/v1/reading/tests/reading-1/start", "u1", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	attemptID := body["attemptId"].(string)

	c.advance(2 * time.Hour)

	resp, body = call(t, srv, http.MethodPut, "/api/v1/reading/attempts/"+attemptID+"/answers/r1", "u1", `{"answer":"YES"}`)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, codeExpired, body["code"])
}

func TestRequestValidation(t *testing.T) {
	srv, _ := newServer(t)

	resp, body := call(t, srv, http.MethodGet, "/api/v1/sessions/active", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, codeUnauthorized, body["code"])

	resp, _ = call(t, srv, http.MethodPost, "/api/v1/speaking/tests/x/start", "u1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = call(t, srv, http.MethodPost, "/api/v1/reading/tests/nope/start", "u1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, codeTestNotFound, body["code"])

	resp, body = call(t, srv, http.MethodPatch, "/api/v1/reading/attempts/nope/progress", "u1", `{"unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, codeInvalidInput, body["code"])

	resp, body = call(t, srv, http.MethodGet, "/api/v1/reading/attempts/nope/stats", "u1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, codeNotFound, body["code"])

	resp, body = call(t, srv, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
