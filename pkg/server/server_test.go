package server

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beryldb/beryldb/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Listen = "127.0.0.1:0"
	cfg.DataDir = t.TempDir()
	cfg.Workers = 2
	cfg.IterLimit = 100
	cfg.SweepInterval = 50 * time.Millisecond
	cfg.MetricsListen = ""
	return cfg
}

// startServer builds and runs a Server on an ephemeral port, returning its
// actual listen address and a stop func.
func startServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	cfg := testConfig(t)
	srv, err := New(cfg)
	require.NoError(t, err)

	boundAddr, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	return boundAddr.String(), func() {
		cancel()
		<-done
	}
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return line
}

func TestServerSetGetRoundTrip(t *testing.T) {
	addr, stop := startServer(t)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)

	_, err = conn.Write([]byte("SET greeting hello\n"))
	require.NoError(t, err)
	require.Contains(t, readLine(t, r), "901")

	_, err = conn.Write([]byte("GET greeting\n"))
	require.NoError(t, err)
	require.Contains(t, readLine(t, r), "hello")
}

func TestServerUseUsingCurrent(t *testing.T) {
	addr, stop := startServer(t)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)

	_, err = conn.Write([]byte("USING 7\n"))
	require.NoError(t, err)
	require.Contains(t, readLine(t, r), "901")

	_, err = conn.Write([]byte("CURRENT\n"))
	require.NoError(t, err)
	require.Contains(t, readLine(t, r), "7")
}

func TestServerUnknownCommand(t *testing.T) {
	addr, stop := startServer(t)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)

	_, err = conn.Write([]byte("BOGUS\n"))
	require.NoError(t, err)
	require.Contains(t, readLine(t, r), "950")
}
