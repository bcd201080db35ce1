package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alert-service/internal/logging"
	"alert-service/internal/models"
)

type creatorStub struct {
	got      []models.EventCreate
	attempts int
	failures int
	err      error
}

func (s *creatorStub) CreateEvent(_ context.Context, in models.EventCreate) (models.Event, []models.DeliveryResult, error) {
	s.attempts++
	if err := in.Validate(); err != nil {
		return models.Event{}, nil, err
	}
	if s.attempts <= s.failures {
		return models.Event{}, nil, s.err
	}
	s.got = append(s.got, in)
	return models.Event{ID: int64(len(s.got))}, nil, nil
}

func newTestConsumer(svc EventCreator) *Consumer {
	return &Consumer{
		svc:            svc,
		logger:         logging.NewNop(),
		initialBackoff: time.Millisecond,
		maxBackoff:     4 * time.Millisecond,
	}
}

func TestHandleMessage(t *testing.T) {
	stub := &creatorStub{}
	c := newTestConsumer(stub)

	err := c.handleMessage(context.Background(), []byte(`{"userId":"u2","type":"fall","confidence":0.97,"metadata":{"trustedContacts":["+1"]}}`))
	require.NoError(t, err)
	require.Len(t, stub.got, 1)
	assert.Equal(t, "u2", stub.got[0].UserID)
	assert.Equal(t, 0.97, *stub.got[0].Confidence)
}

func TestHandleMessage_Rejects(t *testing.T) {
	stub := &creatorStub{}
	c := newTestConsumer(stub)

	assert.ErrorIs(t, c.handleMessage(context.Background(), []byte(`{broken`)), models.ErrInvalidInput)

	err := c.handleMessage(context.Background(), []byte(`{"type":"fall"}`))
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Empty(t, stub.got)
}

func TestDeliver_InvalidMessageIsSettled(t *testing.T) {
	stub := &creatorStub{}
	c := newTestConsumer(stub)

	assert.NoError(t, c.deliver(context.Background(), []byte(`{broken`), nil))
	assert.NoError(t, c.deliver(context.Background(), []byte(`{"type":"fall"}`), nil))
	assert.Equal(t, 1, stub.attempts)
	assert.Empty(t, stub.got)
}

func TestDeliver_RetriesStoreFailures(t *testing.T) {
	stub := &creatorStub{failures: 3, err: errors.New("failed to insert event: connection refused")}
	c := newTestConsumer(stub)

	err := c.deliver(context.Background(), []byte(`{"type":"fall","confidence":0.97}`), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, stub.attempts)
	require.Len(t, stub.got, 1)
}

func TestDeliver_StopsWithoutSettlingOnCancel(t *testing.T) {
	stub := &creatorStub{failures: 1 << 30, err: errors.New("failed to insert event: connection refused")}
	c := newTestConsumer(stub)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.deliver(ctx, []byte(`{"type":"fall","confidence":0.97}`), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, stub.got)
	assert.Greater(t, stub.attempts, 1)
}
