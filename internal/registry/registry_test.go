package registry

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davidpdrsn/console-web/internal/instrumentpb"
	"github.com/davidpdrsn/console-web/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func startFakeServer(t *testing.T, updates []*instrumentpb.Update) (addr string, stop func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	desc := grpc.ServiceDesc{
		ServiceName: "instrument.Instrument",
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{
			{
				StreamName: "WatchUpdates",
				Handler: func(_ interface{}, stream grpc.ServerStream) error {
					var req instrumentpb.InstrumentRequest
					if err := stream.RecvMsg(&req); err != nil {
						return err
					}
					for _, u := range updates {
						if err := stream.SendMsg(u); err != nil {
							return err
						}
					}
					return nil
				},
				ServerStreams: true,
			},
		},
	}
	srv.RegisterService(&desc, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = srv.Serve(lis)
	}()

	return lis.Addr().String(), func() {
		srv.Stop()
		wg.Wait()
	}
}

func mustTarget(t *testing.T, addr string) upstream.Target {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	tgt, err := upstream.ParseTarget(host, port)
	require.NoError(t, err)
	return tgt
}

// Scenario 1: cold subscribe against a server that accepts the RPC then
// closes immediately yields a handle, then Changed eventually errors once
// the reducer tears the broadcaster down, and the registry empties.
func TestRegistry_ColdSubscribeThenEmptyStream(t *testing.T) {
	addr, stop := startFakeServer(t, nil)
	defer stop()

	r := New()
	key := "127.0.0.1:" + portOf(t, addr)
	handle, err := r.Subscribe(context.Background(), key, mustTarget(t, addr))
	require.NoError(t, err)
	require.NotNil(t, handle)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && r.Len() != 0 {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, r.Len())
}

// P5/Scenario 4: concurrent subscribers for the same key share one handle
// and the registry never opens more than one upstream connection for it.
func TestRegistry_ConcurrentSubscribersShareOneConnection(t *testing.T) {
	var connects int64
	addr, stop := startCountingServer(t, &connects)
	defer stop()

	r := New()
	key := "127.0.0.1:" + portOf(t, addr)
	target := mustTarget(t, addr)

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := r.Subscribe(context.Background(), key, target)
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, int(atomic.LoadInt64(&connects)), 1)
	assert.Equal(t, 1, r.Len())
}

// P6: once the reducer exits the entry is gone and a fresh subscribe
// reconnects rather than reusing a dead handle.
func TestRegistry_ReconnectsAfterReducerExit(t *testing.T) {
	addr, stop := startFakeServer(t, nil)
	defer stop()

	r := New()
	key := "127.0.0.1:" + portOf(t, addr)
	target := mustTarget(t, addr)

	_, err := r.Subscribe(context.Background(), key, target)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && r.Len() != 0 {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 0, r.Len())

	_, err = r.Subscribe(context.Background(), key, target)
	assert.NoError(t, err)
}

func startCountingServer(t *testing.T, counter *int64) (addr string, stop func()) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	desc := grpc.ServiceDesc{
		ServiceName: "instrument.Instrument",
		HandlerType: (*any)(nil),
		Streams: []grpc.StreamDesc{
			{
				StreamName: "WatchUpdates",
				Handler: func(_ interface{}, stream grpc.ServerStream) error {
					atomic.AddInt64(counter, 1)
					var req instrumentpb.InstrumentRequest
					if err := stream.RecvMsg(&req); err != nil {
						return err
					}
					<-stream.Context().Done()
					return stream.Context().Err()
				},
				ServerStreams: true,
			},
		},
	}
	srv.RegisterService(&desc, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = srv.Serve(lis)
	}()

	return lis.Addr().String(), func() {
		srv.Stop()
		wg.Wait()
	}
}

func portOf(t *testing.T, addr string) string {
	t.Helper()
	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	return port
}
