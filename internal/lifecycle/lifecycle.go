// Package lifecycle coordinates graceful shutdown of the running output.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/pcmfeed/pkg/engine"
)

// Component needs cleanup on shutdown.
type Component interface {
	// Name returns the component name for logging
	Name() string

	// Shutdown performs graceful shutdown
	Shutdown(ctx context.Context) error

	// ForceStop performs immediate termination if graceful shutdown fails
	ForceStop() error
}

// Manager shuts registered components down in reverse order of
// registration, on a signal or when asked to.
type Manager struct {
	mu         sync.Mutex
	components []Component
	shutdownCh chan struct{}
	done       chan struct{}
	isShutdown bool
	timeout    time.Duration
	signals    []os.Signal
	err        error
}

// NewManager creates a manager that gives components timeout to stop.
func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
		timeout:    timeout,
		signals:    []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
}

// Register adds a component.
func (m *Manager) Register(c Component) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isShutdown {
		log.Warn("Cannot register component during shutdown", "component", c.Name())
		return
	}

	m.components = append(m.components, c)
	log.Debug("Registered lifecycle component", "name", c.Name())
}

// Start begins monitoring for shutdown signals.
func (m *Manager) Start() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, m.signals...)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			log.Info("Received shutdown signal", "signal", sig)
			_ = m.Shutdown()
		case <-m.shutdownCh:
			log.Debug("Shutdown initiated programmatically")
		}
	}()
}

// Shutdown stops every component. Later calls wait for the first one and
// return its result.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.isShutdown {
		m.mu.Unlock()
		<-m.done
		return m.err
	}
	m.isShutdown = true
	components := make([]Component, len(m.components))
	copy(components, m.components)
	m.mu.Unlock()

	log.Info("Starting graceful shutdown")
	close(m.shutdownCh)

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		log.Debug("Shutting down component", "name", c.Name())

		if err := c.Shutdown(ctx); err != nil {
			log.Warn("Component graceful shutdown failed",
				"name", c.Name(),
				"error", err)

			if forceErr := c.ForceStop(); forceErr != nil {
				log.Error("Component force stop failed",
					"name", c.Name(),
					"error", forceErr)
				errs = append(errs, fmt.Errorf("%s: %w", c.Name(), forceErr))
			}
		}
	}

	m.err = errors.Join(errs...)
	close(m.done)

	if m.err != nil {
		log.Warn("Shutdown completed with errors", "count", len(errs))
	} else {
		log.Info("Graceful shutdown complete")
	}
	return m.err
}

// Stopping is closed as soon as shutdown begins.
func (m *Manager) Stopping() <-chan struct{} {
	return m.shutdownCh
}

// Wait blocks until shutdown is complete.
func (m *Manager) Wait() {
	<-m.done
}

// funcComponent adapts plain functions to Component.
type funcComponent struct {
	name     string
	shutdown func(ctx context.Context) error
	force    func() error
}

// Func wraps shutdown as a component. A nil force reuses shutdown with a
// background context.
func Func(name string, shutdown func(ctx context.Context) error, force func() error) Component {
	return &funcComponent{name: name, shutdown: shutdown, force: force}
}

func (f *funcComponent) Name() string {
	return f.name
}

func (f *funcComponent) Shutdown(ctx context.Context) error {
	return f.shutdown(ctx)
}

func (f *funcComponent) ForceStop() error {
	if f.force == nil {
		return f.shutdown(context.Background())
	}
	return f.force()
}

// EngineComponent stops an engine's voices and shuts its stream down.
type EngineComponent struct {
	engine *engine.Engine
}

// NewEngineComponent creates a lifecycle wrapper for e.
func NewEngineComponent(e *engine.Engine) *EngineComponent {
	return &EngineComponent{engine: e}
}

// Name returns the component name.
func (ec *EngineComponent) Name() string {
	return "Audio Engine"
}

// Shutdown silences the engine and tears the stream down, giving up when
// ctx ends first.
func (ec *EngineComponent) Shutdown(ctx context.Context) error {
	ec.engine.StopAll()

	done := make(chan struct{})
	go func() {
		ec.engine.Deinit()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine shutdown timed out: %w", ctx.Err())
	}
}

// ForceStop drops every voice. The stream is left to the pending Deinit.
func (ec *EngineComponent) ForceStop() error {
	ec.engine.StopAll()
	return nil
}
