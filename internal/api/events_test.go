// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/shotline/internal/bus"
	"github.com/ManuGH/shotline/internal/storyboard"
)

type wireEvent struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	ShotID  string          `json:"shotId"`
	Payload json.RawMessage `json:"payload"`
}

func dialEvents(t *testing.T, h *harness) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(h.srv)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev wireEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestEvents_SnapshotThenChanges(t *testing.T) {
	h := newHarness(t)
	sb := h.loadBoard(t)
	_, err := h.store.AddMessage(context.Background(), storyboard.RoleUser, "hello")
	require.NoError(t, err)

	conn := dialEvents(t, h)

	first := readEvent(t, conn)
	require.Equal(t, EventSnapshot, first.Type)
	var snap struct {
		Storyboard storyboard.Storyboard `json:"storyboard"`
		Messages   []storyboard.Message  `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(first.Payload, &snap))
	assert.Equal(t, sb.ID, snap.Storyboard.ID)
	require.Len(t, snap.Messages, 1)

	target := sb.Shots[1].ID
	require.NoError(t, h.store.Select(context.Background(), target))

	ev := readEvent(t, conn)
	assert.Equal(t, bus.TopicStoryboard, ev.Topic)
	assert.Equal(t, bus.EventSelectionChanged, ev.Type)
	assert.Equal(t, target, ev.ShotID)

	rec := h.do(t, http.MethodPost, "/api/storyboard/shots/"+target+"/generate", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	// Store updates for the shot may arrive first.
	for i := 0; ; i++ {
		require.Less(t, i, 20, "no generation event")
		ev := readEvent(t, conn)
		if ev.Topic == bus.TopicGeneration {
			assert.Equal(t, target, ev.ShotID)
			break
		}
	}
}

func TestEvents_EmptySnapshot(t *testing.T) {
	h := newHarness(t)
	conn := dialEvents(t, h)

	ev := readEvent(t, conn)
	require.Equal(t, EventSnapshot, ev.Type)
	var snap map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(ev.Payload, &snap))
	assert.Equal(t, "null", string(snap["storyboard"]))
}

func TestEvents_RejectsForeignOrigin(t *testing.T) {
	h := newHarness(t)
	ts := httptest.NewServer(h.srv)
	defer ts.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/events", header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEvents_DisabledWithoutBus(t *testing.T) {
	h := newHarness(t)
	h.srv.bus = nil
	requireProblem(t, h.do(t, http.MethodGet, "/api/events", ""), http.StatusServiceUnavailable, "EVENTS_DISABLED")
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://api.local/api/events", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}
	assert.True(t, check(req("")))
	assert.True(t, check(req("http://localhost:5173")))
	assert.True(t, check(req("http://api.local")))
	assert.False(t, check(req("http://other.local")))
	assert.True(t, originChecker([]string{"*"})(req("http://other.local")))
}
