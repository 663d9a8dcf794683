package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type funcHandler func(ctx context.Context, taskUUID string) error

func (f funcHandler) Execute(ctx context.Context, taskUUID string) error {
	return f(ctx, taskUUID)
}

func TestSubmitRunsAllSubmissions(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}

	p := New(2, funcHandler(func(_ context.Context, uuid string) error {
		mu.Lock()
		seen[uuid] = true
		mu.Unlock()
		return nil
	}))

	uuids := []string{"a", "b", "c", "d", "e"}
	for _, u := range uuids {
		p.Submit(context.Background(), u)
	}
	p.Wait()

	for _, u := range uuids {
		assert.True(t, seen[u], "submission %s never ran", u)
	}
}

func TestConcurrencyBound(t *testing.T) {
	const size = 3

	var running, peak int64
	p := New(size, funcHandler(func(_ context.Context, _ string) error {
		n := atomic.AddInt64(&running, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&running, -1)
		return nil
	}))

	for i := 0; i < 20; i++ {
		p.Submit(context.Background(), "task")
	}
	p.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(size))
	assert.Positive(t, atomic.LoadInt64(&peak))
}

func TestSubmitDoesNotBlock(t *testing.T) {
	block := make(chan struct{})
	p := New(1, funcHandler(func(_ context.Context, _ string) error {
		<-block
		return nil
	}))

	done := make(chan struct{})
	go func() {
		// More submissions than slots; Submit must return immediately
		// even while every slot is occupied.
		for i := 0; i < 10; i++ {
			p.Submit(context.Background(), "task")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full pool")
	}

	close(block)
	p.Wait()
}

func TestHandlerErrorDoesNotAffectOtherSubmissions(t *testing.T) {
	var succeeded int64
	p := New(2, funcHandler(func(_ context.Context, uuid string) error {
		if uuid == "bad" {
			return errors.New("conversion failed")
		}
		atomic.AddInt64(&succeeded, 1)
		return nil
	}))

	p.Submit(context.Background(), "bad")
	p.Submit(context.Background(), "good-1")
	p.Submit(context.Background(), "good-2")
	p.Wait()

	assert.Equal(t, int64(2), atomic.LoadInt64(&succeeded))
}

func TestHandlerPanicIsContained(t *testing.T) {
	var ran int64
	p := New(1, funcHandler(func(_ context.Context, uuid string) error {
		if uuid == "panics" {
			panic("boom")
		}
		atomic.AddInt64(&ran, 1)
		return nil
	}))

	p.Submit(context.Background(), "panics")
	p.Submit(context.Background(), "survives")
	p.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&ran))
}

func TestCanceledContextDropsSubmission(t *testing.T) {
	block := make(chan struct{})
	var ran int64

	p := New(1, funcHandler(func(_ context.Context, _ string) error {
		atomic.AddInt64(&ran, 1)
		<-block
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	p.Submit(ctx, "occupies-slot")

	// Wait until the slot is taken, then cancel before the second
	// submission can acquire it.
	for atomic.LoadInt64(&ran) == 0 {
		time.Sleep(time.Millisecond)
	}
	p.Submit(ctx, "dropped")
	cancel()

	// Give the dropped submission time to observe cancellation before
	// the slot frees up.
	time.Sleep(20 * time.Millisecond)
	close(block)
	p.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&ran))
}

func TestNewDefaultSize(t *testing.T) {
	p := New(0, funcHandler(func(_ context.Context, _ string) error { return nil }))
	assert.Equal(t, defaultSize, cap(p.sem))

	p = New(-5, funcHandler(func(_ context.Context, _ string) error { return nil }))
	assert.Equal(t, defaultSize, cap(p.sem))
}
