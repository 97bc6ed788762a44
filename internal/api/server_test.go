// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/shotline/internal/api/problem"
	"github.com/ManuGH/shotline/internal/bus"
	"github.com/ManuGH/shotline/internal/generation"
	"github.com/ManuGH/shotline/internal/llm"
	"github.com/ManuGH/shotline/internal/runway"
	"github.com/ManuGH/shotline/internal/store"
	"github.com/ManuGH/shotline/internal/storyboard"
)

const boardReply = "Here is your storyboard:\n```json\n" +
	`{"title":"Beach","shots":[{"description":"A","duration":5},{"description":"B","duration":10}]}` +
	"\n```\nEnjoy!"

type fakeChat struct {
	mu       sync.Mutex
	deltas   []string
	err      error
	received []llm.Message
}

func (f *fakeChat) Stream(ctx context.Context, messages []llm.Message, fn func(string) error) (string, error) {
	f.mu.Lock()
	f.received = messages
	deltas, streamErr := f.deltas, f.err
	f.mu.Unlock()

	var sb strings.Builder
	for _, d := range deltas {
		if err := fn(d); err != nil {
			return sb.String(), err
		}
		sb.WriteString(d)
	}
	return sb.String(), streamErr
}

type fakeProvider struct {
	mu          sync.Mutex
	genErr      error
	statusErr   error
	statusCalls int
	statusGate  chan struct{}
	cancelled   []string
	requests    []runway.GenerateRequest
}

func (f *fakeProvider) Generate(_ context.Context, req runway.GenerateRequest) (runway.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.genErr != nil {
		return runway.GenerateResponse{}, f.genErr
	}
	return runway.GenerateResponse{TaskID: fmt.Sprintf("task-%d", len(f.requests)), Status: storyboard.StatusPending, CreatedAt: "2025-01-01T00:00:00Z"}, nil
}

func (f *fakeProvider) Status(_ context.Context, taskID string) (runway.TaskStatus, error) {
	f.mu.Lock()
	f.statusCalls++
	gate, err := f.statusGate, f.statusErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return runway.TaskStatus{}, err
	}
	return runway.TaskStatus{TaskID: taskID, Status: storyboard.StatusRunning, Progress: 0.4}, nil
}

func (f *fakeProvider) Cancel(_ context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, taskID)
	return nil
}

type harness struct {
	srv      *Server
	store    *store.Store
	chat     *fakeChat
	provider *fakeProvider
	bus      *bus.MemoryBus
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := bus.NewMemoryBus()
	st := store.New(store.WithBus(b))
	provider := &fakeProvider{}
	ctrl := generation.NewController(provider, st, generation.Options{PollInterval: time.Hour, Bus: b})
	t.Cleanup(ctrl.Close)
	chat := &fakeChat{}

	srv, err := New(Config{ServeMetrics: true}, Deps{
		Store:      st,
		Generation: ctrl,
		Provider:   provider,
		Chat:       chat,
		Bus:        b,
	})
	require.NoError(t, err)
	return &harness{srv: srv, store: st, chat: chat, provider: provider, bus: b}
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func (h *harness) loadBoard(t *testing.T) *storyboard.Storyboard {
	t.Helper()
	sb, err := h.store.ApplyAssistantMessage(context.Background(), boardReply)
	require.NoError(t, err)
	return sb
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireProblem(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) map[string]any {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, problem.ContentType, rec.Header().Get("Content-Type"))
	body := decodeBody[map[string]any](t, rec)
	assert.Equal(t, code, body["code"])
	assert.NotEmpty(t, body[problem.JSONKeyRequestID])
	return body
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)
}

func TestChat_StreamsAndProducesStoryboard(t *testing.T) {
	h := newHarness(t)
	h.chat.deltas = []string{"Here is your storyboard:\n```json\n", `{"title":"Beach","shots":[{"description":"A","duration":5},`, `{"description":"B","duration":10}]}`, "\n```\nEnjoy!"}

	rec := h.do(t, http.MethodPost, "/api/chat", `{"content":"a beach trailer"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	lines := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "0:Here is your storyboard:", lines[0])
	last := lines[len(lines)-1]
	require.True(t, strings.HasPrefix(last, "s:"), last)
	for _, l := range lines[:len(lines)-1] {
		assert.True(t, strings.HasPrefix(l, "0:"), l)
	}

	sb, ok := h.store.Storyboard()
	require.True(t, ok)
	assert.Equal(t, strings.TrimPrefix(last, "s:"), sb.ID)
	assert.Equal(t, 15.0, sb.TotalDuration)

	msgs := h.store.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, storyboard.RoleUser, msgs[0].Role)
	assert.Equal(t, storyboard.RoleAssistant, msgs[1].Role)
	assert.Equal(t, boardReply, msgs[1].Content)

	require.Len(t, h.chat.received, 1)
	assert.Equal(t, "a beach trailer", h.chat.received[0].Content)
}

func TestChat_NoStoryboardIsSilent(t *testing.T) {
	h := newHarness(t)
	h.chat.deltas = []string{"What mood ", "are you after?"}

	rec := h.do(t, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"make a video"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0:What mood \n0:are you after?\n", rec.Body.String())

	_, ok := h.store.Storyboard()
	assert.False(t, ok)
	assert.Len(t, h.store.Messages(), 2)
}

func TestChat_Errors(t *testing.T) {
	t.Run("empty content", func(t *testing.T) {
		h := newHarness(t)
		requireProblem(t, h.do(t, http.MethodPost, "/api/chat", `{"content":"  "}`), http.StatusBadRequest, "INVALID_INPUT")
	})
	t.Run("not configured before streaming", func(t *testing.T) {
		h := newHarness(t)
		h.chat.err = llm.ErrNotConfigured
		requireProblem(t, h.do(t, http.MethodPost, "/api/chat", `{"content":"hi"}`), http.StatusServiceUnavailable, "NOT_CONFIGURED")
	})
	t.Run("failure mid-stream", func(t *testing.T) {
		h := newHarness(t)
		h.chat.deltas = []string{"partial"}
		h.chat.err = &llm.APIError{Sentinel: llm.ErrUpstream, Status: 529}
		rec := h.do(t, http.MethodPost, "/api/chat", `{"content":"hi"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Body.String(), "0:partial\n3:"), rec.Body.String())
		msgs := h.store.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, "partial", msgs[1].Content)
	})
}

func TestMessages_ListAndClear(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.AddMessage(context.Background(), storyboard.RoleUser, "hello")
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/api/messages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody[struct {
		Messages []storyboard.Message `json:"messages"`
	}](t, rec)
	require.Len(t, body.Messages, 1)

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/api/messages", "").Code)
	assert.Empty(t, h.store.Messages())
}

func TestStoryboard_GetAndParse(t *testing.T) {
	h := newHarness(t)
	requireProblem(t, h.do(t, http.MethodGet, "/api/storyboard", ""), http.StatusNotFound, "NO_STORYBOARD")

	body := requireProblem(t, h.do(t, http.MethodPost, "/api/storyboard/parse", `{"content":"no json here"}`),
		http.StatusUnprocessableEntity, "NO_STORYBOARD_IN_CONTENT")
	assert.Equal(t, "not_found", body["outcome"])

	payload, _ := json.Marshal(map[string]string{"content": boardReply})
	rec := h.do(t, http.MethodPost, "/api/storyboard/parse", string(payload))
	require.Equal(t, http.StatusOK, rec.Code)
	sb := decodeBody[storyboard.Storyboard](t, rec)
	require.Len(t, sb.Shots, 2)
	assert.Equal(t, storyboard.Timing{Start: 5, End: 15}, sb.Shots[1].Timing)

	rec = h.do(t, http.MethodGet, "/api/storyboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, sb.ID, decodeBody[storyboard.Storyboard](t, rec).ID)
}

func TestStoryboard_PatchShot(t *testing.T) {
	h := newHarness(t)
	sb := h.loadBoard(t)
	first := sb.Shots[0].ID

	rec := h.do(t, http.MethodPatch, "/api/storyboard/shots/"+first, `{"duration":8,"mood":"tense"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	shot := decodeBody[storyboard.Shot](t, rec)
	assert.Equal(t, "tense", shot.Mood)
	assert.Equal(t, storyboard.Timing{Start: 0, End: 8}, shot.Timing)

	next, _ := h.store.Shot(sb.Shots[1].ID)
	assert.Equal(t, storyboard.Timing{Start: 8, End: 18}, next.Timing)

	requireProblem(t, h.do(t, http.MethodPatch, "/api/storyboard/shots/"+first, `{"duration":-1}`), http.StatusBadRequest, "INVALID_INPUT")
	requireProblem(t, h.do(t, http.MethodPatch, "/api/storyboard/shots/"+first, `{"timing":{"start":3}}`), http.StatusBadRequest, "INVALID_INPUT")
	requireProblem(t, h.do(t, http.MethodPatch, "/api/storyboard/shots/ghost", `{"mood":"x"}`), http.StatusNotFound, "SHOT_NOT_FOUND")
}

func TestStoryboard_ReorderAddRemoveSelect(t *testing.T) {
	h := newHarness(t)
	sb := h.loadBoard(t)
	a, b := sb.Shots[0].ID, sb.Shots[1].ID

	requireProblem(t, h.do(t, http.MethodPost, "/api/storyboard/reorder", `{"shotIds":["`+a+`"]}`), http.StatusBadRequest, "INVALID_ORDER")

	rec := h.do(t, http.MethodPost, "/api/storyboard/reorder", `{"shotIds":["`+b+`","`+a+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[storyboard.Storyboard](t, rec)
	assert.Equal(t, b, got.Shots[0].ID)
	assert.Equal(t, 1, got.Shots[0].Number)
	assert.Equal(t, storyboard.Timing{Start: 0, End: 10}, got.Shots[0].Timing)

	rec = h.do(t, http.MethodPost, "/api/storyboard/shots", `{"description":"C"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	added := decodeBody[storyboard.Shot](t, rec)
	assert.Equal(t, 3, added.Number)
	assert.Equal(t, storyboard.DefaultCameraAngle, added.CameraAngle)
	assert.Equal(t, storyboard.Timing{Start: 15, End: 20}, added.Timing)

	rec = h.do(t, http.MethodPut, "/api/storyboard/selection", `{"shotId":"`+added.ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, added.ID, h.store.Selected())

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/api/storyboard/shots/"+added.ID, "").Code)
	assert.Empty(t, h.store.Selected(), "removing the selected shot clears the selection")
	requireProblem(t, h.do(t, http.MethodDelete, "/api/storyboard/shots/"+added.ID, ""), http.StatusNotFound, "SHOT_NOT_FOUND")

	rec = h.do(t, http.MethodPut, "/api/storyboard/selection", `{"shotId":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	requireProblem(t, h.do(t, http.MethodPut, "/api/storyboard/selection", `{"shotId":"ghost"}`), http.StatusNotFound, "SHOT_NOT_FOUND")
}

func TestGeneration_StartViewCancel(t *testing.T) {
	h := newHarness(t)
	sb := h.loadBoard(t)
	id := sb.Shots[1].ID

	rec := h.do(t, http.MethodPost, "/api/storyboard/shots/"+id+"/generate", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	view := decodeBody[generation.View](t, rec)
	assert.True(t, view.Status.InFlight(), "status %s", view.Status)
	assert.Equal(t, "task-1", view.TaskID)
	assert.True(t, view.IsGenerating)
	assert.Equal(t, 8, h.provider.requests[0].Duration)
	assert.Equal(t, "B", h.provider.requests[0].Prompt)

	require.Eventually(t, func() bool {
		rec := h.do(t, http.MethodGet, "/api/storyboard/shots/"+id+"/generation", "")
		return rec.Code == http.StatusOK && decodeBody[generation.View](t, rec).Status == storyboard.StatusRunning
	}, 2*time.Second, 5*time.Millisecond, "first status query runs without waiting for the poll interval")

	rec = h.do(t, http.MethodDelete, "/api/storyboard/shots/"+id+"/generation?remote=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, storyboard.StatusCancelled, decodeBody[generation.View](t, rec).Status)
	assert.Equal(t, []string{"task-1"}, h.provider.cancelled)

	requireProblem(t, h.do(t, http.MethodDelete, "/api/storyboard/shots/"+id+"/generation?remote=maybe", ""), http.StatusBadRequest, "INVALID_INPUT")
	requireProblem(t, h.do(t, http.MethodGet, "/api/storyboard/shots/ghost/generation", ""), http.StatusNotFound, "SHOT_NOT_FOUND")
}

func TestGeneration_StartFailureReportsView(t *testing.T) {
	h := newHarness(t)
	sb := h.loadBoard(t)
	id := sb.Shots[0].ID
	h.provider.genErr = &runway.APIError{Sentinel: runway.ErrUpstream, Operation: "generate", Status: 500, Body: "boom"}

	body := requireProblem(t, h.do(t, http.MethodPost, "/api/storyboard/shots/"+id+"/generate", `{"prompt":"custom"}`),
		http.StatusBadGateway, "UPSTREAM_ERROR")
	assert.Equal(t, "Runway API error: 500 - boom", body["detail"])
	gen, ok := body["generation"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(storyboard.StatusFailed), gen["status"])

	shot, _ := h.store.Shot(id)
	assert.Equal(t, storyboard.StatusFailed, shot.Status)
}

func TestRunwayProxy(t *testing.T) {
	h := newHarness(t)

	requireProblem(t, h.do(t, http.MethodPost, "/api/runway/generate", `{"duration":4}`), http.StatusBadRequest, "INVALID_INPUT")

	rec := h.do(t, http.MethodPost, "/api/runway/generate", `{"prompt":"a fox","duration":6,"ratio":"16:9"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decodeBody[runway.GenerateResponse](t, rec)
	assert.Equal(t, "task-1", res.TaskID)
	assert.Equal(t, "16:9", h.provider.requests[0].Ratio)

	requireProblem(t, h.do(t, http.MethodGet, "/api/runway/status", ""), http.StatusBadRequest, "INVALID_INPUT")

	rec = h.do(t, http.MethodGet, "/api/runway/status?taskId=task-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeBody[runway.TaskStatus](t, rec)
	assert.Equal(t, storyboard.StatusRunning, st.Status)
	assert.Equal(t, 0.4, st.Progress)

	h.provider.statusErr = runway.ErrNotConfigured
	requireProblem(t, h.do(t, http.MethodGet, "/api/runway/status?taskId=task-1", ""), http.StatusServiceUnavailable, "NOT_CONFIGURED")
}

func TestRunwayStatus_DeduplicatesConcurrentQueries(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	h.provider.statusGate = gate

	var wg sync.WaitGroup
	codes := make([]int, 3)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = h.do(t, http.MethodGet, "/api/runway/status?taskId=shared", "").Code
		}(i)
	}
	require.Eventually(t, func() bool {
		h.provider.mu.Lock()
		defer h.provider.mu.Unlock()
		return h.provider.statusCalls == 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, []int{200, 200, 200}, codes)
	h.provider.mu.Lock()
	defer h.provider.mu.Unlock()
	assert.LessOrEqual(t, h.provider.statusCalls, 3)
	assert.GreaterOrEqual(t, h.provider.statusCalls, 1)
}

func TestRouting_ProblemsAndProbes(t *testing.T) {
	h := newHarness(t)

	requireProblem(t, h.do(t, http.MethodGet, "/api/nope", ""), http.StatusNotFound, "ROUTE_NOT_FOUND")
	requireProblem(t, h.do(t, http.MethodPut, "/api/messages", ""), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, h.do(t, http.MethodGet, "/readyz", "").Code, "gate closed until the daemon opens it")

	rec := h.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrNoStoryboard, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", store.ErrShotNotFound), http.StatusNotFound},
		{store.ErrInvalidOrder, http.StatusBadRequest},
		{&storyboard.ParseError{Sentinel: storyboard.ErrMalformedJSON, Stage: "decode"}, http.StatusUnprocessableEntity},
		{generation.ErrSuperseded, http.StatusConflict},
		{&generation.StartError{ShotID: "s", Err: &runway.APIError{Sentinel: runway.ErrRateLimited}}, http.StatusTooManyRequests},
		{runway.ErrNotConfigured, http.StatusServiceUnavailable},
		{&runway.APIError{Sentinel: runway.ErrNotFound, Status: 404}, http.StatusNotFound},
		{&runway.APIError{Sentinel: runway.ErrTimeout}, http.StatusGatewayTimeout},
		{&llm.APIError{Sentinel: llm.ErrUnauthorized, Status: 401}, http.StatusBadGateway},
		{errors.New("surprise"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(tt.err).status, tt.err.Error())
	}
}
