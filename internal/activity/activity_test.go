package activity_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/skirmish/internal/activity"
	"github.com/cory-johannsen/skirmish/internal/pubsub"
)

func TestMemoryFeed_CapsPerGame(t *testing.T) {
	f := activity.NewMemoryFeed(3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, f.Append(ctx, activity.Item{GameID: "g1", Message: fmt.Sprint(i)}))
	}
	require.NoError(t, f.Append(ctx, activity.Item{GameID: "g2", Message: "other"}))

	got, err := f.Recent(ctx, "g1", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2", got[0].Message)
	assert.Equal(t, "4", got[2].Message)

	got, _ = f.Recent(ctx, "g1", 1)
	assert.Equal(t, "4", got[0].Message)
}

func TestSink_EmitFansOut(t *testing.T) {
	bus := pubsub.NewMemoryBus(zap.NewNop())
	t.Cleanup(func() { _ = bus.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan activity.Item, 1)
	require.NoError(t, bus.Subscribe(ctx, "g1", pubsub.On(activity.Event, func(_ context.Context, env pubsub.Envelope) {
		it, err := pubsub.Decode[activity.Item](env)
		if err == nil {
			seen <- it
		}
	})))

	sink := activity.NewSink(zap.NewNop(), bus, activity.NewMemoryFeed(10))
	sink.Emit(ctx, "g1", "Kara used Slash on Orc for 5 damage")

	select {
	case it := <-seen:
		assert.Equal(t, "Kara used Slash on Orc for 5 damage", it.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("activity not broadcast")
	}
	recent, err := sink.Recent(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}

func TestSink_NoFeed(t *testing.T) {
	sink := activity.NewSink(zap.NewNop(), nil, nil)
	sink.Emit(context.Background(), "g1", "quiet")
	got, err := sink.Recent(context.Background(), "g1", 5)
	assert.NoError(t, err)
	assert.Empty(t, got)
}
