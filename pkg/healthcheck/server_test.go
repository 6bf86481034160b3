package healthcheck

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func TestMain(m *testing.M) { goleak.VerifyTestMain(m) }

type flakyStore struct{ down atomic.Bool }

func (f *flakyStore) Ping(context.Context) error {
	if f.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func TestHealthReflectsStorePing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	probe := &flakyStore{}
	srv := New(slog.New(slog.NewJSONHandler(io.Discard, nil)), probe, 10*time.Millisecond, "storefront")

	lis := bufconn.Listen(1 << 20)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, lis) }()
	ran := make(chan struct{})
	go func() { srv.Run(ctx); close(ran) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	client := healthpb.NewHealthClient(conn)

	status := func(svc string) healthpb.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN
		}
		return resp.GetStatus()
	}

	require.Eventually(t, func() bool { return status("") == healthpb.HealthCheckResponse_SERVING }, time.Second, 5*time.Millisecond)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status("storefront"))

	probe.down.Store(true)
	require.Eventually(t, func() bool { return status("storefront") == healthpb.HealthCheckResponse_NOT_SERVING }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	cancel()
	<-ran
	assert.NoError(t, <-served)
}
