package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_NewHandleSeesInitialValue(t *testing.T) {
	_, handle := New(42)
	assert.Equal(t, 42, handle.Borrow())
}

func TestBroadcaster_PublishWakesAllHandles(t *testing.T) {
	b, h1 := New("a")
	h2 := b.Subscribe()

	var wg sync.WaitGroup
	results := make([]string, 2)
	wg.Add(2)

	go func() {
		defer wg.Done()
		v, err := h1.Changed(context.Background())
		require.NoError(t, err)
		results[0] = v
	}()
	go func() {
		defer wg.Done()
		v, err := h2.Changed(context.Background())
		require.NoError(t, err)
		results[1] = v
	}()

	time.Sleep(10 * time.Millisecond)
	b.Publish("b")
	wg.Wait()

	assert.Equal(t, []string{"b", "b"}, results)
}

func TestBroadcaster_LaggingReaderSeesLatestNotBacklog(t *testing.T) {
	b, h := New(0)

	b.Publish(1)
	b.Publish(2)
	b.Publish(3)

	v, err := h.Changed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestBroadcaster_CloseUnblocksWaiters(t *testing.T) {
	b, h := New(0)

	done := make(chan error, 1)
	go func() {
		_, err := h.Changed(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Changed did not unblock on Close")
	}
}

func TestBroadcaster_ChangedRespectsContextCancellation(t *testing.T) {
	_, h := New(0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.Changed(ctx)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Changed did not unblock on context cancellation")
	}
}

func TestBroadcaster_EachHandleTracksItsOwnVersion(t *testing.T) {
	b, h1 := New(0)
	h2 := b.Subscribe()

	b.Publish(1)

	v1, err := h1.Changed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	// h2 hasn't observed the change yet; a second Publish must not cause
	// h1's consumption to steal h2's wakeup.
	b.Publish(2)

	v2, err := h2.Changed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v2)
}
