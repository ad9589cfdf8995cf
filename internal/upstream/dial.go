// Package upstream establishes the gRPC channel to an instrumented
// process's Instrument/WatchUpdates endpoint. Dial is grounded on the
// connect() method of a production streaming SDK client: same dial-option
// shape (keepalive, connect backoff, window/buffer sizing), adapted from a
// single long-lived SaaS channel to a short-lived per-subscription dial
// against a plaintext loopback target (spec section 6).
package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/davidpdrsn/console-web/internal/instrumentpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// Target is an (ip, port) pair parsed from a registry key.
type Target struct {
	IP   string
	Port string
}

// Addr renders the target back into a dial string.
func (t Target) Addr() string { return t.IP + ":" + t.Port }

// ParseTarget builds a Target from the registry key's raw ip/port strings.
// Per B2, port is compared and carried as the literal string: "6669" and
// "06669" dial the same host but remain distinct registry keys upstream.
func ParseTarget(ip, port string) (Target, error) {
	if ip == "" {
		return Target{}, fmt.Errorf("upstream: empty ip")
	}
	if port == "" {
		return Target{}, fmt.Errorf("upstream: empty port")
	}
	return Target{IP: ip, Port: port}, nil
}

// Conn bundles the gRPC channel with the watch stream opened on it, so the
// reducer can close both together on exit.
type Conn struct {
	cc     *grpc.ClientConn
	Stream instrumentpb.Instrument_WatchUpdatesClient
}

// Close tears down the underlying channel. The stream itself has no
// separate Close: cancelling its context or closing the channel ends it.
func (c *Conn) Close() error {
	return c.cc.Close()
}

// Dial opens a plaintext gRPC channel to target and starts the
// WatchUpdates stream. It is synchronous and may block on the network;
// callers must not hold the registry lock across this call (spec section
// 4.1, "Contract").
func Dial(ctx context.Context, target Target) (*Conn, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			Timeout:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           backoff.DefaultConfig,
			MinConnectTimeout: 10 * time.Second,
		}),
		grpc.WithInitialWindowSize(4 * 1024 * 1024),
		grpc.WithInitialConnWindowSize(8 * 1024 * 1024),
		grpc.WithWriteBufferSize(64 * 1024),
	}

	cc, err := grpc.DialContext(ctx, target.Addr(), opts...)
	if err != nil {
		return nil, fmt.Errorf("upstream: dial %s: %w", target.Addr(), err)
	}

	client := instrumentpb.NewInstrumentClient(cc)
	stream, err := client.WatchUpdates(ctx, &instrumentpb.InstrumentRequest{})
	if err != nil {
		cc.Close()
		return nil, fmt.Errorf("upstream: open WatchUpdates on %s: %w", target.Addr(), err)
	}

	return &Conn{cc: cc, Stream: stream}, nil
}
