package observability

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc is a function called during graceful shutdown
type ShutdownFunc func(ctx context.Context) error

// ShutdownManager coordinates graceful shutdown of the portal: HTTP servers
// drain first, then registered cleanup functions run in parallel under a
// shared deadline.
type ShutdownManager struct {
	logger  *Logger
	timeout time.Duration

	mu      sync.Mutex
	servers []*http.Server
	funcs   []namedShutdownFunc
}

type namedShutdownFunc struct {
	name string
	fn   ShutdownFunc
}

// NewShutdownManager creates a shutdown manager with the given timeout
func NewShutdownManager(logger *Logger, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		timeout: timeout,
	}
}

// RegisterServer registers an HTTP server for graceful drain
func (sm *ShutdownManager) RegisterServer(server *http.Server) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.servers = append(sm.servers, server)
}

// RegisterFunc registers a named cleanup function to run at shutdown
func (sm *ShutdownManager) RegisterFunc(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.funcs = append(sm.funcs, namedShutdownFunc{name: name, fn: fn})
}

// WaitForShutdown blocks until SIGINT or SIGTERM, then performs graceful
// shutdown. Returns when shutdown is complete or the timeout elapses.
func (sm *ShutdownManager) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	sm.logger.Infof("Received signal %s, starting graceful shutdown", sig)

	sm.Shutdown()
}

// Shutdown performs the graceful shutdown sequence immediately
func (sm *ShutdownManager) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	start := time.Now()

	sm.mu.Lock()
	servers := make([]*http.Server, len(sm.servers))
	copy(servers, sm.servers)
	funcs := make([]namedShutdownFunc, len(sm.funcs))
	copy(funcs, sm.funcs)
	sm.mu.Unlock()

	// Drain servers first so no new work arrives while cleanup runs.
	for _, server := range servers {
		sm.logger.Infof("Shutting down HTTP server %s", server.Addr)
		if err := server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Errorf("HTTP server %s shutdown error", server.Addr)
		}
	}

	var wg sync.WaitGroup
	for _, nf := range funcs {
		wg.Add(1)
		go func(nf namedShutdownFunc) {
			defer wg.Done()
			if err := nf.fn(ctx); err != nil {
				sm.logger.WithError(err).Errorf("Shutdown function %q failed", nf.name)
			} else {
				sm.logger.Debugf("Shutdown function %q complete", nf.name)
			}
		}(nf)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		sm.logger.Infof("Graceful shutdown complete in %s", time.Since(start).Round(time.Millisecond))
	case <-ctx.Done():
		sm.logger.Warn("Shutdown timeout reached, forcing shutdown")
	}
}
