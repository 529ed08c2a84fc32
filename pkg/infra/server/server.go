// Package server manages the lifecycle of the network servers of a process.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// Runnable represents a server that can be started and stopped.
type Runnable interface {
	// Name returns the server name for identification.
	Name() string
	// Start begins serving without blocking.
	Start(ctx context.Context) error
	// Stop shuts the server down gracefully.
	Stop(ctx context.Context) error
	// Err reports a fatal serving error after Start returned.
	Err() <-chan error
}

// Manager starts a set of servers and stops them together.
type Manager struct {
	mu              sync.Mutex
	servers         []Runnable
	started         []Runnable
	shutdownTimeout time.Duration
}

// NewManager creates a new server manager.
func NewManager(shutdownTimeout time.Duration, servers ...Runnable) *Manager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &Manager{
		servers:         servers,
		shutdownTimeout: shutdownTimeout,
	}
}

// Start starts all servers. On failure the already started ones are stopped.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.started) > 0 {
		return fmt.Errorf("server manager already started")
	}
	for _, s := range m.servers {
		if err := s.Start(ctx); err != nil {
			_ = m.stopLocked(context.Background())
			return fmt.Errorf("failed to start server %s: %w", s.Name(), err)
		}
		m.started = append(m.started, s)
		logger.Infow("server started", "name", s.Name())
	}
	return nil
}

// Stop stops all started servers in reverse order.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		s := m.started[i]
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", s.Name(), err))
			continue
		}
		logger.Infow("server stopped", "name", s.Name())
	}
	m.started = nil
	return errors.Join(errs...)
}

// Run starts all servers, blocks until ctx is cancelled or a server fails,
// then shuts everything down within the shutdown timeout.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, len(m.servers))
	for _, s := range m.servers {
		go func(s Runnable) {
			if err, ok := <-s.Err(); ok && err != nil {
				errCh <- fmt.Errorf("server %s failed: %w", s.Name(), err)
			}
		}(s)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Server shutting down...")
	case runErr = <-errCh:
		logger.Errorw("server failed, shutting down", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()
	if err := m.Stop(shutdownCtx); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}
