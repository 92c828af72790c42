package audit

import (
	"context"
	"fmt"
	"sync"
)

// MultiLogger fans audit events out to multiple sinks. Writes are
// asynchronous by default so a slow sink never stalls a request; sink
// errors are collected and retrievable via Errors.
type MultiLogger struct {
	loggers []Logger
	async   bool
	wg      sync.WaitGroup
	errChan chan error
}

// NewMultiLogger creates a new multi-logger that writes to multiple destinations
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
		async:   true,
		errChan: make(chan error, 2*len(loggers)+1),
	}
}

// SetAsync sets whether logging should be asynchronous
func (m *MultiLogger) SetAsync(async bool) {
	m.async = async
}

// Log writes an audit event to all configured sinks
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	if len(m.loggers) == 0 {
		return nil
	}

	if m.async {
		return m.logAsync(ctx, event)
	}
	return m.logSync(ctx, event)
}

// logSync writes to every sink, returning the first error but never
// skipping the remaining sinks.
func (m *MultiLogger) logSync(ctx context.Context, event *Event) error {
	var firstErr error

	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (m *MultiLogger) logAsync(ctx context.Context, event *Event) error {
	for _, logger := range m.loggers {
		m.wg.Add(1)
		go func(l Logger) {
			defer m.wg.Done()
			if err := l.Log(ctx, event); err != nil {
				select {
				case m.errChan <- err:
				default:
					// Channel full, drop error
				}
			}
		}(logger)
	}

	return nil
}

// Wait blocks until all pending async writes have completed
func (m *MultiLogger) Wait() {
	m.wg.Wait()
}

// Errors drains and returns the errors collected from async writes
func (m *MultiLogger) Errors() []error {
	var errs []error
	for {
		select {
		case err, ok := <-m.errChan:
			if !ok {
				return errs
			}
			errs = append(errs, err)
		default:
			return errs
		}
	}
}

// Close waits for pending writes and closes all sinks
func (m *MultiLogger) Close() error {
	m.wg.Wait()

	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to close logger: %w", err)
			}
		}
	}

	close(m.errChan)
	return firstErr
}
