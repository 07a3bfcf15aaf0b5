// Package testutil provides testing utilities for certiwipe
package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"
)

// NewTestContext returns a RuntimeContext whose logs go to t and whose
// context is cancelled when the test ends.
func NewTestContext(t testing.TB) *cw_io.RuntimeContext {
	t.Helper()

	log := zaptest.NewLogger(t)
	logger.SetLogger(log)
	otelzap.ReplaceGlobals(otelzap.New(log))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	_, span := noop.NewTracerProvider().Tracer("test").Start(ctx, "test")
	return &cw_io.RuntimeContext{
		Ctx:        ctx,
		Log:        log,
		Span:       span,
		Timestamp:  time.Now(),
		Component:  "test",
		Command:    t.Name(),
		Attributes: make(map[string]string),
	}
}

// ErrInjected is returned by fault hooks in tests.
var ErrInjected = errors.New("injected fault")
