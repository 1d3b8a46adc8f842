// Townsquare - Social Network Real-time Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/townsquare

package eventbus

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/townsquare/internal/logging"
	"github.com/tomtom215/townsquare/internal/metrics"
	"github.com/tomtom215/townsquare/internal/models"
	"github.com/tomtom215/townsquare/internal/realtime"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type call struct {
	op     string
	target string
	event  string
	ctx    context.Context
}

// fakeGateway records calls. failures makes the next n calls fail with a
// persistence error.
type fakeGateway struct {
	mu       sync.Mutex
	calls    []call
	failures int
	partial  bool
	seen     chan call
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{seen: make(chan call, 64)}
}

func (g *fakeGateway) record(c call) error {
	g.mu.Lock()
	g.calls = append(g.calls, c)
	fail := g.failures > 0
	if fail {
		g.failures--
	}
	g.mu.Unlock()
	g.seen <- c
	if fail {
		return realtime.NewError(realtime.KindPersistence, "Failed to create notification", errors.New("connection refused"))
	}
	return nil
}

func (g *fakeGateway) EmitToUser(userID int64, req realtime.EmitRequest) (int, error) {
	if userID <= 0 {
		return 0, realtime.NewError(realtime.KindValidation, "userId must be greater than 0", nil)
	}
	return 1, g.record(call{op: "user", event: req.Event})
}

func (g *fakeGateway) EmitToRoom(room string, req realtime.EmitRequest) (int, error) {
	return 1, g.record(call{op: "room", target: room, event: req.Event})
}

func (g *fakeGateway) Notify(ctx context.Context, in models.NewNotification) (*models.Notification, error) {
	if err := g.record(call{op: "notify", event: in.Type, ctx: ctx}); err != nil {
		return nil, err
	}
	return &models.Notification{ID: 1, UserID: in.UserID, Type: in.Type}, nil
}

func (g *fakeGateway) NotifyKind(_ context.Context, kind string, _ []byte) (realtime.KindResult, error) {
	if kind == "dance" {
		return realtime.KindResult{}, realtime.NewError(realtime.KindNotFound, "Unknown notification kind", nil)
	}
	err := g.record(call{op: "kind", target: kind})
	if g.partial {
		return realtime.KindResult{Notifications: []*models.Notification{{ID: 1}}}, realtime.NewError(realtime.KindPersistence, "Failed", nil)
	}
	return realtime.KindResult{}, err
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) wait(t *testing.T) call {
	t.Helper()
	select {
	case c := <-g.seen:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for gateway call")
		return call{}
	}
}

// ackRecorder forwards deliveries from the wrapped subscriber and records
// whether the router acked or nacked each one. Deliveries are copies of the
// published message, so outcomes are keyed by UUID.
type ackRecorder struct {
	message.Subscriber

	mu       sync.Mutex
	outcomes map[string]chan bool
}

func newAckRecorder(sub message.Subscriber) *ackRecorder {
	return &ackRecorder{Subscriber: sub, outcomes: make(map[string]chan bool)}
}

func (r *ackRecorder) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	in, err := r.Subscriber.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	out := make(chan *message.Message)
	go func() {
		defer close(out)
		for msg := range in {
			go r.watch(ctx, msg)
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *ackRecorder) watch(ctx context.Context, msg *message.Message) {
	var acked bool
	select {
	case <-msg.Acked():
		acked = true
	case <-msg.Nacked():
	case <-ctx.Done():
		return
	}
	select {
	case r.outcome(msg.UUID) <- acked:
	default:
	}
}

func (r *ackRecorder) outcome(uuid string) chan bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.outcomes[uuid]
	if !ok {
		ch = make(chan bool, 1)
		r.outcomes[uuid] = ch
	}
	return ch
}

// waitAcked fails the test unless the first delivery of msg was acked.
func (r *ackRecorder) waitAcked(t *testing.T, msg *message.Message) {
	t.Helper()
	select {
	case acked := <-r.outcome(msg.UUID):
		if !acked {
			t.Fatalf("message %s was nacked, want ack", msg.UUID)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("message %s was neither acked nor nacked", msg.UUID)
	}
}

type harness struct {
	pubsub  *gochannel.GoChannel
	acks    *ackRecorder
	gateway *fakeGateway
}

func startConsumer(t *testing.T, gateway *fakeGateway) *harness {
	t.Helper()
	logger := watermill.NopLogger{}
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, logger)

	cfg := DefaultConsumerConfig("test")
	cfg.RetryMaxRetries = 1
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = time.Millisecond

	acks := newAckRecorder(pubsub)
	c, err := NewConsumer(cfg, acks, gateway, logger)
	if err != nil {
		t.Fatalf("NewConsumer() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = pubsub.Close()
	})

	select {
	case <-c.Running():
	case <-time.After(3 * time.Second):
		t.Fatal("consumer never started")
	}
	return &harness{pubsub: pubsub, acks: acks, gateway: gateway}
}

func (h *harness) publish(t *testing.T, suffix, payload string) *message.Message {
	t.Helper()
	msg := message.NewMessage(watermill.NewUUID(), []byte(payload))
	if err := h.pubsub.Publish(Subject("test", suffix), msg); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	return msg
}

func TestConsumer_RoutesCommands(t *testing.T) {
	h := startConsumer(t, newFakeGateway())

	tests := []struct {
		name    string
		subject string
		payload string
		want    call
	}{
		{"emit user", SubjectEmitUser, `{"userId":7,"event":"friend_request","data":{"id":1}}`, call{op: "user", event: "friend_request"}},
		{"emit room", SubjectEmitRoom, `{"room":"conversation:42","event":"conversation_updated"}`, call{op: "room", target: "conversation:42", event: "conversation_updated"}},
		{"notify kind", SubjectNotify, `{"kind":"follow","data":{"followerId":1,"followingId":2}}`, call{op: "kind", target: "follow"}},
		{"plain notification", SubjectNotify, `{"data":{"userId":2,"type":"post_like","message":"liked your post"}}`, call{op: "notify", event: "post_like"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject := Subject("test", tt.subject)
			before := testutil.ToFloat64(metrics.BusMessagesProcessed.WithLabelValues(subject, "ok"))

			h.publish(t, tt.subject, tt.payload)
			got := h.gateway.wait(t)
			if got.op != tt.want.op || got.target != tt.want.target || got.event != tt.want.event {
				t.Errorf("call = %+v, want %+v", got, tt.want)
			}

			waitForDelta(t, metrics.BusMessagesProcessed.WithLabelValues(subject, "ok"), before, 1)
		})
	}
}

func TestConsumer_AcksInvalidCommands(t *testing.T) {
	h := startConsumer(t, newFakeGateway())

	tests := []struct {
		name    string
		subject string
		payload string
	}{
		{"not json", SubjectEmitUser, `{"userId":`},
		{"bad user id", SubjectEmitUser, `{"userId":0,"event":"x"}`},
		{"unknown kind", SubjectNotify, `{"kind":"dance","data":{}}`},
		{"notification not an object", SubjectNotify, `{"data":"nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject := Subject("test", tt.subject)
			before := testutil.ToFloat64(metrics.BusMessagesProcessed.WithLabelValues(subject, "rejected"))

			msg := h.publish(t, tt.subject, tt.payload)
			h.acks.waitAcked(t, msg)
			waitForDelta(t, metrics.BusMessagesProcessed.WithLabelValues(subject, "rejected"), before, 1)
		})
	}
	if n := h.gateway.callCount(); n != 0 {
		t.Errorf("gateway reached %d times by invalid commands", n)
	}
}

func TestConsumer_RetriesThenRedelivers(t *testing.T) {
	gateway := newFakeGateway()
	gateway.failures = 3
	h := startConsumer(t, gateway)

	subject := Subject("test", SubjectNotify)
	before := testutil.ToFloat64(metrics.BusMessagesProcessed.WithLabelValues(subject, "ok"))

	// One retry per delivery: fail, fail, nack, redeliver, fail, succeed.
	h.publish(t, SubjectNotify, `{"data":{"userId":2,"type":"post_like","message":"liked your post"}}`)
	for i := 0; i < 4; i++ {
		gateway.wait(t)
	}
	waitForDelta(t, metrics.BusMessagesProcessed.WithLabelValues(subject, "ok"), before, 1)
}

func TestConsumer_PartialFanOutIsAcked(t *testing.T) {
	gateway := newFakeGateway()
	gateway.partial = true
	h := startConsumer(t, gateway)

	subject := Subject("test", SubjectNotify)
	before := testutil.ToFloat64(metrics.BusMessagesProcessed.WithLabelValues(subject, "partial"))

	msg := h.publish(t, SubjectNotify, `{"kind":"new_story","data":{"authorId":1,"storyId":2}}`)
	h.acks.waitAcked(t, msg)
	waitForDelta(t, metrics.BusMessagesProcessed.WithLabelValues(subject, "partial"), before, 1)
	if n := gateway.callCount(); n != 1 {
		t.Errorf("gateway calls = %d, want 1 (no redelivery)", n)
	}
}

func TestConsumer_PropagatesCorrelationID(t *testing.T) {
	h := startConsumer(t, newFakeGateway())

	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"data":{"userId":2,"type":"t","message":"m"}}`))
	msg.Metadata.Set(CorrelationIDMetadata, "corr-123")
	if err := h.pubsub.Publish(Subject("test", SubjectNotify), msg); err != nil {
		t.Fatal(err)
	}

	got := h.gateway.wait(t)
	if id := logging.CorrelationIDFromContext(got.ctx); id != "corr-123" {
		t.Errorf("correlation id = %q, want corr-123", id)
	}
}

func TestNewConsumer_RequiresDependencies(t *testing.T) {
	if _, err := NewConsumer(DefaultConsumerConfig("x"), nil, newFakeGateway(), watermill.NopLogger{}); err == nil {
		t.Error("NewConsumer() without subscriber succeeded")
	}
}

func TestSubject(t *testing.T) {
	if got := Subject("townsquare.realtime", SubjectEmitRoom); got != "townsquare.realtime.emit.room" {
		t.Errorf("Subject() = %q", got)
	}
	if got := Subject("", SubjectNotify); got != "notify" {
		t.Errorf("Subject() without prefix = %q", got)
	}
}

func waitForDelta(t *testing.T, c prometheus.Collector, before, want float64) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		if got := testutil.ToFloat64(c) - before; got >= want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("metric delta = %v, want %v", testutil.ToFloat64(c)-before, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
