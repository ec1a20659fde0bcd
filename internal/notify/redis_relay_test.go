package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejjahanieklu/ehn/internal/notify"
)

func startRelay(t *testing.T, server *miniredis.Miniredis, hub *notify.Hub) *notify.RedisRelay {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	relay := notify.NewRedisRelay(client, "", hub, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("relay did not stop")
		}
	})

	select {
	case <-relay.Ready():
	case err := <-done:
		t.Fatalf("relay stopped early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}
	return relay
}

func assertNoEvent(t *testing.T, sub *notify.Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %s for %s", ev.Type, ev.OrderID)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestRedisRelay_FansOutAcrossInstances(t *testing.T) {
	server := miniredis.RunT(t)

	hubA := notify.NewHub()
	hubB := notify.NewHub()
	relayA := startRelay(t, server, hubA)
	startRelay(t, server, hubB)

	subA := hubA.Subscribe(4)
	subB := hubB.Subscribe(4)
	defer subA.Close()
	defer subB.Close()

	d := notify.NewDispatcher([]notify.Hook{hubA, relayA})
	d.OrderOpened(context.Background(), sampleOrder())

	for _, sub := range []*notify.Subscription{subA, subB} {
		ev := receive(t, sub)
		assert.Equal(t, notify.EventOrderOpened, ev.Type)
		assert.Equal(t, "o-1", ev.OrderID)
		require.NotNil(t, ev.Order)
		assert.Equal(t, "Alice", ev.Order.Author)
	}

	// собственное событие, вернувшееся из Redis, не дублируется
	assertNoEvent(t, subA)
	assertNoEvent(t, subB)
}

func TestRedisRelay_LocalObserversSurviveRedisOutage(t *testing.T) {
	server := miniredis.RunT(t)
	hub := notify.NewHub()

	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	defer client.Close()
	relay := notify.NewRedisRelay(client, "", hub, nil)

	sub := hub.Subscribe(4)
	defer sub.Close()

	server.Close()

	d := notify.NewDispatcher([]notify.Hook{hub, relay}, notify.WithTimeout(200*time.Millisecond))
	d.OrderClosed(context.Background(), "order-1")

	ev := receive(t, sub)
	assert.Equal(t, notify.EventOrderClosed, ev.Type)
	assert.Equal(t, "order-1", ev.OrderID)
	assertNoEvent(t, sub)
}

func TestRedisRelay_SkipsMalformedPayload(t *testing.T) {
	server := miniredis.RunT(t)
	hub := notify.NewHub()
	startRelay(t, server, hub)

	sub := hub.Subscribe(4)
	defer sub.Close()

	server.Publish(notify.DefaultRedisChannel, "{not json")
	server.Publish(notify.DefaultRedisChannel, `{"type":"order-closed","order_id":"o-9"}`)

	ev := receive(t, sub)
	assert.Equal(t, notify.EventOrderClosed, ev.Type)
	assert.Equal(t, "o-9", ev.OrderID)
}

func TestRedisRelay_DeliverFailsWhenRedisIsDown(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	defer client.Close()
	server.Close()

	relay := notify.NewRedisRelay(client, "orders", notify.NewHub(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := relay.Deliver(ctx, notify.OrderClosedEvent("o-1"))
	assert.Error(t, err)
}
