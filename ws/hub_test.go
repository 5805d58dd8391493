package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"clipforge/task"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeController records control calls and serves one canned snapshot.
type fakeController struct {
	mu       sync.Mutex
	cancels  []string
	pauses   []string
	resumes  []string
	snapshot task.Task
	hasTask  bool
}

func (f *fakeController) RequestCancel(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, id)
}

func (f *fakeController) RequestPause(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses = append(f.pauses, id)
}

func (f *fakeController) RequestResume(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes = append(f.resumes, id)
}

func (f *fakeController) Get(id string) (task.Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasTask || f.snapshot.ID != id {
		return task.Task{}, false
	}
	return f.snapshot, true
}

func (f *fakeController) calls(kind string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch kind {
	case ctrlCancel:
		return append([]string(nil), f.cancels...)
	case ctrlPause:
		return append([]string(nil), f.pauses...)
	default:
		return append([]string(nil), f.resumes...)
	}
}

func startHub(t *testing.T, ctrl Controller) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(ctrl)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return hub, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestHub_BroadcastsPublishedEvents(t *testing.T) {
	hub, conn := startHub(t, &fakeController{})

	hub.Publish(task.StatusEvent{
		Type:   task.EventStatus,
		TaskID: "t1",
		Status: task.StatusPaused,
	})

	event := readEvent(t, conn)
	assert.Equal(t, "task_status", event["type"])
	assert.Equal(t, "t1", event["task_id"])
	assert.Equal(t, "paused", event["status"])
}

func TestHub_DispatchesControlMessages(t *testing.T) {
	ctrl := &fakeController{}
	_, conn := startHub(t, ctrl)

	for _, msg := range []string{
		`{"type":"cancel_task","task_id":"a"}`,
		`{"type":"pause_task","task_id":"b"}`,
		`{"type":"resume_task","task_id":"c"}`,
	} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
	}

	assert.Eventually(t, func() bool {
		return len(ctrl.calls(ctrlCancel)) == 1 &&
			len(ctrl.calls(ctrlPause)) == 1 &&
			len(ctrl.calls(ctrlResume)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"a"}, ctrl.calls(ctrlCancel))
	assert.Equal(t, []string{"b"}, ctrl.calls(ctrlPause))
	assert.Equal(t, []string{"c"}, ctrl.calls(ctrlResume))
}

func TestHub_StatusQueryRepliesToRequester(t *testing.T) {
	ctrl := &fakeController{
		hasTask: true,
		snapshot: task.Task{
			ID:          "t9",
			Operation:   task.OpConcatenate,
			Status:      task.StatusRunning,
			TotalSteps:  33,
			CurrentStep: 8,
			Progress:    24,
		},
	}
	_, conn := startHub(t, ctrl)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"get_task_status","task_id":"t9"}`)))

	event := readEvent(t, conn)
	assert.Equal(t, "task_progress", event["type"])
	assert.Equal(t, "t9", event["task_id"])
	assert.Equal(t, float64(8), event["current_step"])
	assert.Equal(t, float64(33), event["total_steps"])
}

func TestHub_UnknownTaskAndTypeAreIgnored(t *testing.T) {
	ctrl := &fakeController{}
	hub, conn := startHub(t, ctrl)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"get_task_status","task_id":"ghost"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"self_destruct","task_id":"x"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`not json`)))

	// The connection must survive all of it and still deliver events.
	time.Sleep(50 * time.Millisecond)
	hub.Publish(task.StatusEvent{Type: task.EventStatus, TaskID: "t1", Status: task.StatusRunning})

	event := readEvent(t, conn)
	assert.Equal(t, "task_status", event["type"])
}
