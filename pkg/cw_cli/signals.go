// pkg/cw_cli/signals.go
//
// Interrupt handling during destructive operations. A wipe cannot be
// cancelled mid-pass: the first Ctrl-C only warns, the second exits and
// leaves the journal entry active so the next run reports it.

package cw_cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// CleanupFunc runs before a forced exit.
type CleanupFunc func() error

// InterruptGuard intercepts SIGINT and SIGTERM while a wipe is running.
type InterruptGuard struct {
	ctx      context.Context
	what     string
	mu       sync.Mutex
	cleanups []CleanupFunc
	sigChan  chan os.Signal
	done     chan struct{}
	stopOnce sync.Once

	// exit is replaced in tests.
	exit func(code int)
}

// NewInterruptGuard starts watching for signals until Stop is called.
func NewInterruptGuard(ctx context.Context, what string) *InterruptGuard {
	g := &InterruptGuard{
		ctx:     ctx,
		what:    what,
		sigChan: make(chan os.Signal, 2),
		done:    make(chan struct{}),
		exit:    os.Exit,
	}
	signal.Notify(g.sigChan, os.Interrupt, syscall.SIGTERM)
	go g.watch()
	return g
}

// RegisterCleanup adds fn; cleanups run in reverse registration order.
func (g *InterruptGuard) RegisterCleanup(fn CleanupFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cleanups = append(g.cleanups, fn)
}

func (g *InterruptGuard) watch() {
	log := otelzap.Ctx(g.ctx)

	select {
	case sig := <-g.sigChan:
		log.Warn("Interrupt received during wipe; continuing",
			zap.String("signal", sig.String()), zap.String("operation", g.what))
		fmt.Fprintf(os.Stderr, "\nReceived %v while %s.\n"+
			"Interrupting now leaves the device partially wiped. Press Ctrl-C again to abort anyway.\n", sig, g.what)
	case <-g.done:
		return
	}

	select {
	case sig := <-g.sigChan:
		log.Error("Second interrupt received, aborting; device state is indeterminate",
			zap.String("signal", sig.String()), zap.String("operation", g.what))
		fmt.Fprintln(os.Stderr, "Aborting. The device is in an indeterminate state and no certificate was issued.")
		if err := g.runCleanup(); err != nil {
			fmt.Fprintf(os.Stderr, "Cleanup completed with errors: %v\n", err)
		}
		g.exit(130)
	case <-g.done:
	}
}

// runCleanup executes cleanups with a five second budget.
func (g *InterruptGuard) runCleanup() error {
	g.mu.Lock()
	cleanups := append([]CleanupFunc(nil), g.cleanups...)
	g.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		var errs *multierror.Error
		for i := len(cleanups) - 1; i >= 0; i-- {
			if err := cleanups[i](); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		done <- errs.ErrorOrNil()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("cleanup timed out")
	}
}

// Stop releases the signal handlers.
func (g *InterruptGuard) Stop() {
	g.stopOnce.Do(func() {
		signal.Stop(g.sigChan)
		close(g.done)
	})
}
