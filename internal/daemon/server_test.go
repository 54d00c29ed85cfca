package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverTestSocketPath(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), fmt.Sprintf("amanmcp-server-test-%d.sock", time.Now().UnixNano()))
	return socketPath
}

func roundTripRaw(t *testing.T, socketPath string, req Request) Response {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	data, err := json.Marshal(req)
	require.NoError(t, err)
	data = append(data, '\n')
	_, err = conn.Write(data)
	require.NoError(t, err)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	return resp
}

func TestNewServer(t *testing.T) {
	socketPath := serverTestSocketPath(t)
	srv := NewServer(socketPath, testPool(t))
	assert.NotNil(t, srv)
	assert.Equal(t, socketPath, srv.socketPath)
}

func TestServer_ListenAndServe(t *testing.T) {
	socketPath := serverTestSocketPath(t)
	srv := NewServer(socketPath, testPool(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)

	_, err := os.Stat(socketPath)
	require.NoError(t, err)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_HandleStatus(t *testing.T) {
	socketPath := serverTestSocketPath(t)
	srv := NewServer(socketPath, testPool(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)

	resp := roundTripRaw(t, socketPath, Request{Cmd: CmdStatus})
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Projects)
}

func TestServer_HandleUnknownCmd(t *testing.T) {
	socketPath := serverTestSocketPath(t)
	srv := NewServer(socketPath, testPool(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)

	resp := roundTripRaw(t, socketPath, Request{Cmd: "search"})
	assert.Equal(t, "error", resp.Status)
}

func TestServer_CleansUpSocket(t *testing.T) {
	socketPath := serverTestSocketPath(t)
	srv := NewServer(socketPath, testPool(t))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)

	_, err := os.Stat(socketPath)
	require.NoError(t, err)

	cancel()
	<-errCh
	time.Sleep(50 * time.Millisecond)

	_, err = os.Stat(socketPath)
	assert.True(t, os.IsNotExist(err), "socket should be cleaned up")
}

func TestServer_ConcurrentConnections(t *testing.T) {
	socketPath := serverTestSocketPath(t)
	srv := NewServer(socketPath, testPool(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)

	const numClients = 5
	done := make(chan bool, numClients)
	for i := 0; i < numClients; i++ {
		go func() {
			resp := roundTripRaw(t, socketPath, Request{Cmd: CmdStatus})
			done <- resp.Status == "ok"
		}()
	}

	successCount := 0
	for i := 0; i < numClients; i++ {
		if <-done {
			successCount++
		}
	}
	assert.Equal(t, numClients, successCount, "all clients should succeed")
}

func TestServer_BindFailsCleanlyWhenAnotherInstanceListening(t *testing.T) {
	socketPath := serverTestSocketPath(t)
	first := NewServer(socketPath, testPool(t))
	require.NoError(t, first.Bind())
	defer first.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = first.ListenAndServe(ctx) }()
	time.Sleep(20 * time.Millisecond)

	second := NewServer(socketPath, testPool(t))
	err := second.Bind()
	assert.ErrorIs(t, err, ErrAnotherInstanceRunning)
}
