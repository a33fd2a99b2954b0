package user

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func pipeConn(t *testing.T) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close() })
	go func() {
		buf := make([]byte, 1024)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() { server.Close() })
	return server
}

func TestValidSelect(t *testing.T) {
	require.True(t, ValidSelect("1"))
	require.True(t, ValidSelect("100"))
	require.False(t, ValidSelect("0"))
	require.False(t, ValidSelect("101"))
	require.False(t, ValidSelect("abc"))
	require.False(t, ValidSelect(""))
	require.False(t, ValidSelect("-1"))
}

func TestNewDefaultsToSelectOne(t *testing.T) {
	u := New(pipeConn(t), nil)
	require.Equal(t, "1", u.Select())
	require.NotEmpty(t, u.ID())
}

func TestSetSelectChangesSelect(t *testing.T) {
	u := New(pipeConn(t), nil)
	u.SetSelect("42")
	require.Equal(t, "42", u.Select())
}

func TestQuittingStartsFalse(t *testing.T) {
	u := New(pipeConn(t), nil)
	require.False(t, u.Quitting())
	u.SetQuitting()
	require.True(t, u.Quitting())
}

func TestMonitoringToggles(t *testing.T) {
	u := New(pipeConn(t), nil)
	require.False(t, u.Monitoring())
	u.SetMonitoring(true)
	require.True(t, u.Monitoring())
	u.SetMonitoring(false)
	require.False(t, u.Monitoring())
}

func TestEachUserGetsAUniqueID(t *testing.T) {
	a := New(pipeConn(t), nil)
	b := New(pipeConn(t), nil)
	require.NotEqual(t, a.ID(), b.ID())
}

func TestWriterSatisfiesDispatcherSink(t *testing.T) {
	u := New(pipeConn(t), nil)
	require.NotNil(t, u.Writer())
}
