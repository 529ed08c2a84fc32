package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer records lifecycle calls into a shared journal.
type fakeServer struct {
	name     string
	startErr error
	stopErr  error
	errCh    chan error
	journal  *journal
}

type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(call string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, call)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

func newFakeServer(name string, j *journal) *fakeServer {
	return &fakeServer{name: name, errCh: make(chan error, 1), journal: j}
}

func (s *fakeServer) Name() string { return s.name }

func (s *fakeServer) Start(context.Context) error {
	s.journal.add("start " + s.name)
	return s.startErr
}

func (s *fakeServer) Stop(context.Context) error {
	s.journal.add("stop " + s.name)
	return s.stopErr
}

func (s *fakeServer) Err() <-chan error { return s.errCh }

func TestManagerStartStopOrder(t *testing.T) {
	j := &journal{}
	m := NewManager(time.Second, newFakeServer("http", j), newFakeServer("admin", j))

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))

	assert.Equal(t, []string{"start http", "start admin", "stop admin", "stop http"}, j.list())
}

func TestManagerStartTwice(t *testing.T) {
	m := NewManager(time.Second, newFakeServer("http", &journal{}))

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))
	require.NoError(t, m.Stop(context.Background()))
}

func TestManagerStartFailureStopsStarted(t *testing.T) {
	j := &journal{}
	broken := newFakeServer("admin", j)
	broken.startErr = errors.New("address in use")
	m := NewManager(time.Second, newFakeServer("http", j), broken, newFakeServer("grpc", j))

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, broken.startErr)
	assert.Contains(t, err.Error(), "admin")
	assert.Equal(t, []string{"start http", "start admin", "stop http"}, j.list())
}

func TestManagerStopJoinsErrors(t *testing.T) {
	j := &journal{}
	a := newFakeServer("http", j)
	a.stopErr = errors.New("drain timeout")
	m := NewManager(time.Second, a, newFakeServer("admin", j))

	require.NoError(t, m.Start(context.Background()))
	err := m.Stop(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, a.stopErr)
	assert.Equal(t, []string{"start http", "start admin", "stop admin", "stop http"}, j.list())
}

func TestManagerRunStopsOnCancel(t *testing.T) {
	j := &journal{}
	m := NewManager(time.Second, newFakeServer("http", j))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return len(j.list()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, []string{"start http", "stop http"}, j.list())
}

func TestManagerRunReturnsServerError(t *testing.T) {
	j := &journal{}
	s := newFakeServer("http", j)
	m := NewManager(time.Second, s)

	fatal := errors.New("listener closed")
	s.errCh <- fatal

	err := m.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fatal)
	assert.Contains(t, err.Error(), "server http failed")
	assert.Equal(t, []string{"start http", "stop http"}, j.list())
}

func TestNewManagerDefaultTimeout(t *testing.T) {
	m := NewManager(0)
	assert.Equal(t, 30*time.Second, m.shutdownTimeout)
}
