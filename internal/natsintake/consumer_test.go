package natsintake

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stocklog/internal/capture"
	"github.com/roach88/stocklog/internal/intake"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu           sync.Mutex
	handler      func(Message)
	early        []Message // delivered from inside Subscribe
	subscribed   chan string
	unsubscribed bool
	published    []published
	subErr       error
}

func newFakeConn() *fakeConn {
	return &fakeConn{subscribed: make(chan string, 1)}
}

func (c *fakeConn) Subscribe(subject string, handler func(Message)) (func() error, error) {
	if c.subErr != nil {
		return nil, c.subErr
	}
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()
	for _, m := range c.early {
		handler(m)
	}
	c.subscribed <- subject
	return func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.unsubscribed = true
		return nil
	}, nil
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{subject: subject, data: data})
	return nil
}

func (c *fakeConn) deliver(m Message) {
	c.mu.Lock()
	h := c.handler
	c.mu.Unlock()
	h(m)
}

type fakeApplier struct {
	mu      sync.Mutex
	batches []intake.Batch
	err     error
}

func (a *fakeApplier) Apply(ctx context.Context, b intake.Batch) (intake.Summary, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return intake.Summary{}, a.err
	}
	a.batches = append(a.batches, b)
	return intake.Summary{
		UnitID:  "unit-" + string(rune('0'+len(a.batches))),
		Events:  len(b.Events),
		Applied: len(b.Events),
		Stats:   capture.Stats{Seen: len(b.Events)},
	}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startConsumer runs c in the background and waits for its subscription.
func startConsumer(t *testing.T, ctx context.Context, c *Consumer, conn *fakeConn) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-conn.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not subscribe")
	}
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestConsumer_AppliesMessagesInOrder(t *testing.T) {
	conn := newFakeConn()
	applier := &fakeApplier{}
	c := New(conn, "", applier, quietLogger())

	done := startConsumer(t, context.Background(), c, conn)
	conn.deliver(Message{Subject: DefaultSubject, Data: []byte(`{"context":{"programmatic":true},"events":[{"type":"api.update","entity":{"id":1,"name":"A","quantity":2}}]}`)})
	conn.deliver(Message{Subject: DefaultSubject, Data: []byte(`{"events":[]}`)})
	c.Stop()

	require.NoError(t, waitRun(t, done))

	require.Len(t, applier.batches, 2)
	assert.True(t, applier.batches[0].Context.Programmatic)
	require.Len(t, applier.batches[0].Events, 1)
	assert.Equal(t, "api.update", applier.batches[0].Events[0].Type)
	assert.Empty(t, applier.batches[1].Events)
	assert.True(t, conn.unsubscribed)
}

func TestConsumer_DropsMalformedMessages(t *testing.T) {
	conn := newFakeConn()
	applier := &fakeApplier{}
	c := New(conn, "custom.subject", applier, quietLogger())

	done := startConsumer(t, context.Background(), c, conn)
	conn.deliver(Message{Subject: "custom.subject", Data: []byte(`{not json`)})
	conn.deliver(Message{Subject: "custom.subject", Data: []byte(`{"events":[]}`)})
	c.Stop()

	require.NoError(t, waitRun(t, done))
	assert.Len(t, applier.batches, 1)
}

func TestConsumer_RepliesWithSummary(t *testing.T) {
	conn := newFakeConn()
	applier := &fakeApplier{}
	c := New(conn, "", applier, quietLogger())

	done := startConsumer(t, context.Background(), c, conn)
	conn.deliver(Message{
		Subject: DefaultSubject,
		Reply:   "_INBOX.1",
		Data:    []byte(`{"events":[{"type":"entity.pre_save","entity":{"id":7,"name":"X","quantity":1}}]}`),
	})
	c.Stop()
	require.NoError(t, waitRun(t, done))

	require.Len(t, conn.published, 1)
	assert.Equal(t, "_INBOX.1", conn.published[0].subject)

	var sum intake.Summary
	require.NoError(t, json.Unmarshal(conn.published[0].data, &sum))
	assert.Equal(t, "unit-1", sum.UnitID)
	assert.Equal(t, 1, sum.Events)
}

func TestConsumer_ApplyErrorIsLoggedAndDropped(t *testing.T) {
	conn := newFakeConn()
	applier := &fakeApplier{err: errors.New("boom")}
	c := New(conn, "", applier, quietLogger())

	done := startConsumer(t, context.Background(), c, conn)
	conn.deliver(Message{Subject: DefaultSubject, Reply: "_INBOX.2", Data: []byte(`{"events":[]}`)})
	c.Stop()

	require.NoError(t, waitRun(t, done))
	assert.Empty(t, conn.published)
}

func TestConsumer_KeepsRunningAfterDrainingQueue(t *testing.T) {
	conn := newFakeConn()
	conn.early = []Message{{Subject: DefaultSubject, Data: []byte(`{"events":[]}`)}}
	applier := &fakeApplier{}
	c := New(conn, "", applier, quietLogger())

	done := startConsumer(t, context.Background(), c, conn)

	// The early message leaves a pending signal behind; Run must keep
	// waiting once it has been consumed.
	require.Eventually(t, func() bool {
		applier.mu.Lock()
		defer applier.mu.Unlock()
		return len(applier.batches) == 1
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	conn.deliver(Message{Subject: DefaultSubject, Data: []byte(`{"events":[]}`)})
	require.Eventually(t, func() bool {
		applier.mu.Lock()
		defer applier.mu.Unlock()
		return len(applier.batches) == 2
	}, 2*time.Second, 5*time.Millisecond)

	c.Stop()
	require.NoError(t, waitRun(t, done))
}

func TestConsumer_RunAfterStopReturns(t *testing.T) {
	conn := newFakeConn()
	applier := &fakeApplier{}
	c := New(conn, "", applier, quietLogger())

	conn.early = []Message{
		{Subject: DefaultSubject, Data: []byte(`{"events":[]}`)},
		{Subject: DefaultSubject, Data: []byte(`{"events":[]}`)},
	}
	c.Stop()
	require.NoError(t, c.Run(context.Background()))
	assert.Empty(t, applier.batches, "enqueue after Stop is refused")
}

func TestConsumer_ContextCancel(t *testing.T) {
	conn := newFakeConn()
	c := New(conn, "", &fakeApplier{}, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := startConsumer(t, ctx, c, conn)
	cancel()

	err := waitRun(t, done)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.queue.Enqueue(Message{}), "queue closed after cancellation")
}

func TestConsumer_SubscribeError(t *testing.T) {
	conn := newFakeConn()
	conn.subErr = errors.New("no route")
	c := New(conn, "", &fakeApplier{}, quietLogger())

	err := c.Run(context.Background())
	assert.EqualError(t, err, "no route")
}
