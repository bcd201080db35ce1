package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alert-service/internal/logging"
	"alert-service/internal/models"
	"alert-service/internal/notification"
)

type memoryStore struct {
	mu      sync.Mutex
	nextID  int64
	events  map[int64]models.Event
	failAdd error
	pingErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{events: map[int64]models.Event{}}
}

func (m *memoryStore) CreateEvent(_ context.Context, ev models.Event) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdd != nil {
		return models.Event{}, m.failAdd
	}
	m.nextID++
	ev.ID = m.nextID
	ev.CreatedAt = time.Unix(1700000000+m.nextID, 0)
	m.events[ev.ID] = ev
	return ev, nil
}

func (m *memoryStore) ListEvents(_ context.Context, limit int) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]models.Event, 0, len(m.events))
	for _, ev := range m.events {
		list = append(list, ev)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *memoryStore) GetEvent(_ context.Context, id int64) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return models.Event{}, fmt.Errorf("event %d: %w", id, models.ErrNotFound)
	}
	return ev, nil
}

func (m *memoryStore) UpdateEventStatus(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return fmt.Errorf("event %d: %w", id, models.ErrNotFound)
	}
	ev.Status = status
	m.events[id] = ev
	return nil
}

func (m *memoryStore) Ping(context.Context) error {
	return m.pingErr
}

type notifierStub struct {
	triggers []notification.Trigger
	results  []models.DeliveryResult
}

func (n *notifierStub) Dispatch(_ context.Context, _ models.Event, trigger notification.Trigger) []models.DeliveryResult {
	n.triggers = append(n.triggers, trigger)
	return n.results
}

func floatPtr(f float64) *float64 { return &f }

func strPtr(s string) *string { return &s }

func TestCreateEvent_PersistsAndNotifies(t *testing.T) {
	store := newMemoryStore()
	notifier := &notifierStub{results: []models.DeliveryResult{{Channel: models.ChannelSMS, To: "+1", Skipped: true}}}
	svc := New(store, notifier, logging.NewNop(), nil)

	ev, results, err := svc.CreateEvent(context.Background(), models.EventCreate{
		Type:       "fall",
		Confidence: floatPtr(0.4),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), ev.ID)
	assert.Equal(t, models.UnknownUser, ev.UserID)
	assert.Equal(t, models.StatusSent, ev.Status)
	assert.NotNil(t, ev.Metadata)
	assert.Len(t, results, 1)
	assert.Equal(t, []notification.Trigger{notification.TriggerCreated}, notifier.triggers)

	list, err := svc.ListEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "fall", list[0].Type)
}

func TestCreateEvent_RejectsInvalidInput(t *testing.T) {
	store := newMemoryStore()
	notifier := &notifierStub{}
	svc := New(store, notifier, logging.NewNop(), nil)

	_, _, err := svc.CreateEvent(context.Background(), models.EventCreate{Type: "fall"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, _, err = svc.CreateEvent(context.Background(), models.EventCreate{Type: "  ", Confidence: floatPtr(1)})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	assert.Empty(t, store.events)
	assert.Empty(t, notifier.triggers)
}

func TestCreateEvent_StoreFailureSkipsNotification(t *testing.T) {
	store := newMemoryStore()
	store.failAdd = errors.New("connection refused")
	notifier := &notifierStub{}
	svc := New(store, notifier, logging.NewNop(), nil)

	_, _, err := svc.CreateEvent(context.Background(), models.EventCreate{Type: "fall", Confidence: floatPtr(0.99)})
	require.Error(t, err)
	assert.Empty(t, notifier.triggers)
}

func TestAcknowledge(t *testing.T) {
	store := newMemoryStore()
	svc := New(store, &notifierStub{}, logging.NewNop(), nil)
	ev, _, err := svc.CreateEvent(context.Background(), models.EventCreate{Type: "crash", Confidence: floatPtr(0.5)})
	require.NoError(t, err)

	acked, err := svc.Acknowledge(context.Background(), ev.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAcknowledged, acked.Status)

	acked, err = svc.Acknowledge(context.Background(), ev.ID, strPtr(models.StatusFalsePositive))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFalsePositive, acked.Status)

	_, err = svc.Acknowledge(context.Background(), 999, nil)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAcknowledge_StoresStatusVerbatim(t *testing.T) {
	store := newMemoryStore()
	svc := New(store, &notifierStub{}, logging.NewNop(), nil)
	ev, _, err := svc.CreateEvent(context.Background(), models.EventCreate{Type: "crash", Confidence: floatPtr(0.5)})
	require.NoError(t, err)

	for _, status := range []string{"  reviewed  ", ""} {
		acked, err := svc.Acknowledge(context.Background(), ev.ID, strPtr(status))
		require.NoError(t, err)
		assert.Equal(t, status, acked.Status)
		assert.Equal(t, status, store.events[ev.ID].Status)
	}
}

func TestNotify(t *testing.T) {
	store := newMemoryStore()
	notifier := &notifierStub{}
	svc := New(store, notifier, logging.NewNop(), nil)
	ev, _, err := svc.CreateEvent(context.Background(), models.EventCreate{Type: "fall", Confidence: floatPtr(0.5)})
	require.NoError(t, err)

	_, err = svc.Notify(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, []notification.Trigger{notification.TriggerCreated, notification.TriggerManual}, notifier.triggers)

	_, err = svc.Notify(context.Background(), 42)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestReady(t *testing.T) {
	store := newMemoryStore()
	svc := New(store, &notifierStub{}, logging.NewNop(), nil)
	assert.NoError(t, svc.Ready(context.Background()))

	store.pingErr = errors.New("down")
	assert.Error(t, svc.Ready(context.Background()))
}

func feedServer(t *testing.T, m *WebSocketManager) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if !m.AddConnection(conn) {
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				m.RemoveConnection(conn)
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialFeed(t *testing.T, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestCreateEvent_BroadcastsToLiveFeed(t *testing.T) {
	svc := New(newMemoryStore(), &notifierStub{}, logging.NewNop(), nil)
	srv := feedServer(t, svc.LiveFeed())
	client := dialFeed(t, srv)
	require.Eventually(t, func() bool { return svc.LiveFeed().Count() == 1 }, time.Second, 10*time.Millisecond)

	_, _, err := svc.CreateEvent(context.Background(), models.EventCreate{UserID: "u7", Type: "fall", Confidence: floatPtr(0.97)})
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)

	var msg FeedMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, EventCreated, msg.Type)
	assert.Equal(t, "u7", msg.Event.UserID)
	assert.Equal(t, 0.97, msg.Event.Confidence)
}

func TestWebSocketManager_DropsClosedConnections(t *testing.T) {
	m := NewWebSocketManager(logging.NewNop(), nil)
	srv := feedServer(t, m)
	client := dialFeed(t, srv)
	require.Eventually(t, func() bool { return m.Count() == 1 }, time.Second, 10*time.Millisecond)

	client.Close()
	require.Eventually(t, func() bool {
		m.Broadcast(EventUpdated, models.Event{ID: 1})
		return m.Count() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWebSocketManager_SlowSubscriberDoesNotBlockBroadcast(t *testing.T) {
	m := NewWebSocketManager(logging.NewNop(), nil)
	srv := feedServer(t, m)
	healthy := dialFeed(t, srv)
	require.Eventually(t, func() bool { return m.Count() == 1 }, time.Second, 10*time.Millisecond)

	// A subscriber whose writer never drains its queue.
	stalled := &feedClient{conn: new(websocket.Conn), send: make(chan []byte, 1)}
	stalled.send <- []byte("pending")
	m.mutex.Lock()
	m.connections[stalled.conn] = stalled
	m.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		m.Broadcast(EventCreated, models.Event{ID: 9, Type: "fall"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Broadcast blocked on a stalled subscriber")
	}
	assert.Equal(t, 1, m.Count())

	require.NoError(t, healthy.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := healthy.ReadMessage()
	require.NoError(t, err)
	var msg FeedMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, int64(9), msg.Event.ID)
}
