package httpd

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type job struct {
	id   int
	run  func(id int)
	done *sync.WaitGroup
}

func (j *job) Process() {
	j.run(j.id)
	if j.done != nil {
		j.done.Done()
	}
}

func TestWorkQueueInvalidSize(t *testing.T) {
	_, err := NewWorkQueue[*job](0, 4)
	assert.ErrorIs(t, err, ErrInvalidPoolSize)
	_, err = NewWorkQueue[*job](2, 0)
	assert.ErrorIs(t, err, ErrInvalidPoolSize)
}

func TestWorkQueueRejectsBeyondDepth(t *testing.T) {
	var q, err = NewWorkQueue[*job](1, 2)
	require.NoError(t, err)

	var started = make(chan struct{})
	var unblock = make(chan struct{})
	require.True(t, q.Submit(&job{run: func(int) {
		close(started)
		<-unblock
	}}))
	<-started

	var noop = func(int) {}
	// the queue refuses work only once it holds more than max items
	assert.True(t, q.Submit(&job{run: noop}))
	assert.True(t, q.Submit(&job{run: noop}))
	assert.True(t, q.Submit(&job{run: noop}))
	assert.Equal(t, 3, q.Len())
	assert.False(t, q.Submit(&job{run: noop}))

	close(unblock)
	q.Close()
	assert.False(t, q.Submit(&job{run: noop}), "closed queue accepts nothing")
}

func TestWorkQueueFIFO(t *testing.T) {
	var q, err = NewWorkQueue[*job](1, 100)
	require.NoError(t, err)
	defer q.Close()

	var lock sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		require.True(t, q.Submit(&job{id: i, done: &wg, run: func(id int) {
			lock.Lock()
			order = append(order, id)
			lock.Unlock()
		}}))
	}
	wg.Wait()

	require.Len(t, order, 50)
	for i, id := range order {
		assert.Equal(t, i, id)
	}
}

func TestWorkQueueCloseWakesIdleWorkers(t *testing.T) {
	var q, err = NewWorkQueue[*job](4, 8)
	require.NoError(t, err)

	var closed = make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}
