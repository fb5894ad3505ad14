package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type blockingService struct {
	name    string
	started atomic.Bool
	done    chan struct{}
	order   *[]string
	mu      *sync.Mutex
}

func newBlocking(name string, order *[]string, mu *sync.Mutex) *blockingService {
	return &blockingService{name: name, done: make(chan struct{}), order: order, mu: mu}
}

func (b *blockingService) Start() error {
	b.started.Store(true)
	<-b.done
	return nil
}

func (b *blockingService) Stop(context.Context) error {
	b.mu.Lock()
	*b.order = append(*b.order, b.name)
	b.mu.Unlock()
	close(b.done)
	return nil
}

func TestLifecycle_StopsInReverseOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	lc := NewLifecycle(zaptest.NewLogger(t), time.Second)
	first, second := newBlocking("first", &order, &mu), newBlocking("second", &order, &mu)
	lc.Add("first", first)
	lc.Add("second", second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	require.Eventually(t, func() bool { return first.started.Load() && second.started.Load() }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestLifecycle_ServiceFailureStopsTheRest(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	lc := NewLifecycle(zaptest.NewLogger(t), time.Second)
	ok := newBlocking("ok", &order, &mu)
	lc.Add("ok", ok)
	lc.Add("broken", &FuncService{
		StartFn: func() error { return errors.New("bind: address in use") },
		StopFn:  func(context.Context) error { return nil },
	})

	err := lc.Run(context.Background())
	assert.ErrorContains(t, err, "address in use")
	assert.Equal(t, []string{"ok"}, order)
}
