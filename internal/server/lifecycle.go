// Package server runs the process's long-lived services and shuts them down
// in reverse start order on SIGINT, SIGTERM or the first service failure.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component.
type Service interface {
	// Start runs the service and blocks until it stops or fails.
	Start() error
	// Stop shuts the service down, giving up when ctx ends.
	Stop(ctx context.Context) error
}

// FuncService adapts a start/stop function pair into the Service interface.
type FuncService struct {
	StartFn func() error
	StopFn  func(ctx context.Context) error
}

// Start calls the underlying start function.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls the underlying stop function.
func (f *FuncService) Stop(ctx context.Context) error { return f.StopFn(ctx) }

// Lifecycle owns the ordered set of services.
type Lifecycle struct {
	logger  *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	services []namedService
}

type namedService struct {
	name    string
	service Service
}

// NewLifecycle creates a Lifecycle whose shutdown is bounded by timeout. A
// zero timeout waits for every service to stop.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger, timeout time.Duration) *Lifecycle {
	return &Lifecycle{logger: logger, timeout: timeout}
}

// Add registers a named service. Services start in the order they are added.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run starts every service and blocks until a signal arrives, ctx is
// cancelled, or a service fails.
//
// Postcondition: every service has been asked to stop. Returns the first
// service failure, or nil on a clean shutdown.
func (l *Lifecycle) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	l.mu.Unlock()

	errCh := make(chan error, len(services))
	for _, ns := range services {
		go func() {
			l.logger.Info("starting service", zap.String("service", ns.name))
			if err := ns.service.Start(); err != nil {
				errCh <- fmt.Errorf("service %s: %w", ns.name, err)
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-errCh:
		l.logger.Error("service failed, shutting down", zap.Error(runErr))
	case <-ctx.Done():
		l.logger.Info("shutting down", zap.NamedError("cause", context.Cause(ctx)))
	}

	shutdownCtx := context.Background()
	if l.timeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, l.timeout)
		defer cancel()
	}
	var stopErrs []error
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		begin := time.Now()
		if err := ns.service.Stop(shutdownCtx); err != nil {
			l.logger.Warn("service stop failed", zap.String("service", ns.name), zap.Error(err))
			stopErrs = append(stopErrs, err)
			continue
		}
		l.logger.Info("service stopped", zap.String("service", ns.name), zap.Duration("elapsed", time.Since(begin)))
	}
	if runErr != nil {
		return runErr
	}
	return errors.Join(stopErrs...)
}
