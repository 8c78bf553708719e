// Package grpc holds client-side helpers shared by forge commands and tests.
package grpc

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// DialStage describes where a dial attempt failed.
type DialStage string

const (
	// DialStageConnect indicates the client could not be created.
	DialStageConnect DialStage = "connect"
	// DialStageHealth indicates the health check never reported SERVING.
	DialStageHealth DialStage = "health"
)

// DialError wraps dial and health check failures with a stage indicator.
type DialError struct {
	Stage DialStage
	Err   error
}

// Error implements the error interface.
func (e *DialError) Error() string {
	if e == nil {
		return "gRPC dial error"
	}
	return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *DialError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DialOptions configures Dial.
type DialOptions struct {
	// Timeout bounds the health wait. Zero waits until ctx ends.
	Timeout time.Duration
	// HealthService is the service name to check; empty checks the server.
	HealthService string
	Logger        *zap.Logger
	// Extra options are appended to DefaultClientDialOptions.
	Extra []gogrpc.DialOption
}

// DefaultClientDialOptions returns plaintext transport with OTel client
// instrumentation, so outbound calls propagate trace context.
func DefaultClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Dial creates a client for addr and waits until its health check serves.
// The connection is closed when the health wait fails.
func Dial(ctx context.Context, addr string, opts DialOptions) (*gogrpc.ClientConn, error) {
	conn, err := gogrpc.NewClient(addr, append(DefaultClientDialOptions(), opts.Extra...)...)
	if err != nil {
		return nil, &DialError{Stage: DialStageConnect, Err: err}
	}

	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	if err := WaitForHealth(waitCtx, conn, opts.HealthService, opts.Logger); err != nil {
		_ = conn.Close()
		return nil, &DialError{Stage: DialStageHealth, Err: err}
	}
	return conn, nil
}
