package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestWaitForHealthServing(t *testing.T) {
	addr, server, stop := startHealthServer(t, "parties")
	defer stop()
	server.SetServing(true, "parties")

	conn := dialHealthServer(t, addr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := WaitForHealth(ctx, conn, "parties", nil); err != nil {
		t.Fatalf("wait for health: %v", err)
	}
}

func TestWaitForHealthTransitionsToServing(t *testing.T) {
	addr, server, stop := startHealthServer(t)
	defer stop()

	conn := dialHealthServer(t, addr)
	defer conn.Close()

	go func() {
		time.Sleep(200 * time.Millisecond)
		server.SetServing(true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := WaitForHealth(ctx, conn, "", nil); err != nil {
		t.Fatalf("wait for health after transition: %v", err)
	}
}

func TestWaitForHealthRespectsContext(t *testing.T) {
	addr, _, stop := startHealthServer(t)
	defer stop()

	conn := dialHealthServer(t, addr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := WaitForHealth(ctx, conn, "", nil); err == nil {
		t.Fatal("expected context error, got nil")
	}
}

func TestWaitForHealthRequiresConn(t *testing.T) {
	if err := WaitForHealth(context.Background(), nil, "", nil); err == nil {
		t.Fatal("expected error for nil connection")
	}
}

func TestProbeServing(t *testing.T) {
	addr, server, stop := startHealthServer(t)
	defer stop()
	server.SetServing(true)

	var logged []string
	logf := func(format string, _ ...any) { logged = append(logged, format) }
	if err := Probe(context.Background(), addr, "", 2*time.Second, logf); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if len(logged) == 0 {
		t.Fatal("expected probe to log")
	}
}

func TestProbeTimesOutWhenNotServing(t *testing.T) {
	addr, _, stop := startHealthServer(t)
	defer stop()

	if err := Probe(context.Background(), addr, "", 300*time.Millisecond, nil); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestSetServingNilSafe(t *testing.T) {
	var server *HealthServer
	server.SetServing(true)
}

func startHealthServer(t *testing.T, services ...string) (string, *HealthServer, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	server := NewHealthServer(services...)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Server.Serve(listener)
	}()

	stop := func() {
		server.Server.GracefulStop()
		_ = listener.Close()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
		}
	}

	return listener.Addr().String(), server, stop
}

func dialHealthServer(t *testing.T, addr string) *gogrpc.ClientConn {
	t.Helper()

	conn, err := gogrpc.NewClient(
		addr,
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial health server: %v", err)
	}

	return conn
}
