package visualiser

import (
	"context"
	"testing"

	"github.com/banshee-data/gridsim/internal/controller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherFanOut(t *testing.T) {
	p := NewPublisher()
	a, unsubA := p.Subscribe(2)
	b, unsubB := p.Subscribe(2)
	defer unsubA()
	defer unsubB()

	require.NoError(t, p.HandleFrame(context.Background(), controller.Frame{Tick: 1}))
	assert.Equal(t, uint64(1), (<-a).Tick)
	assert.Equal(t, uint64(1), (<-b).Tick)
	assert.Equal(t, PublisherStats{Published: 1, Clients: 2}, p.Stats())
}

func TestPublisherDropsForSlowClient(t *testing.T) {
	p := NewPublisher()
	ch, unsub := p.Subscribe(1)
	defer unsub()

	ctx := context.Background()
	for tick := uint64(1); tick <= 3; tick++ {
		require.NoError(t, p.HandleFrame(ctx, controller.Frame{Tick: tick}))
	}
	assert.Equal(t, uint64(1), (<-ch).Tick, "the oldest frame is kept")
	st := p.Stats()
	assert.Equal(t, uint64(3), st.Published)
	assert.Equal(t, uint64(2), st.Dropped)
}

func TestPublisherUnsubscribe(t *testing.T) {
	p := NewPublisher()
	ch, unsub := p.Subscribe(0)
	assert.Equal(t, DefaultClientBuffer, cap(ch))

	unsub()
	unsub()
	_, ok := <-ch
	assert.False(t, ok, "channel closed on unsubscribe")
	assert.Equal(t, 0, p.Stats().Clients)

	require.NoError(t, p.HandleFrame(context.Background(), controller.Frame{Tick: 1}))
}

func TestPublisherClose(t *testing.T) {
	p := NewPublisher()
	ch, unsub := p.Subscribe(1)
	p.Close()
	p.Close()

	_, ok := <-ch
	assert.False(t, ok)
	unsub()

	require.NoError(t, p.HandleFrame(context.Background(), controller.Frame{Tick: 1}))
	assert.Equal(t, uint64(0), p.Stats().Published)

	late, _ := p.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok, "subscribing after close yields a closed channel")
}
