package goroutine

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	p, err := New(0)
	require.NoError(t, err)
	defer p.Release()
	assert.Equal(t, DefaultAntsPoolSize, p.Cap())

	var (
		wg  sync.WaitGroup
		ran int32
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			atomic.AddInt32(&ran, 1)
		}))
	}
	wg.Wait()
	assert.EqualValues(t, 100, atomic.LoadInt32(&ran))
}

func TestPoolOverload(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	defer p.Release()

	block, started := make(chan struct{}), make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-block
	}))
	<-started
	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolOverload)
	close(block)
}
