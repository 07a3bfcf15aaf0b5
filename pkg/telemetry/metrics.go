// pkg/telemetry/metrics.go
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruments are resolved lazily against the global meter provider, which is
// a noop unless an exporter has been installed.
type instruments struct {
	bytesWritten    metric.Int64Counter
	passesCompleted metric.Int64Counter
	outcomes        metric.Int64Counter
}

var (
	instOnce sync.Once
	inst     instruments
)

func meters() instruments {
	instOnce.Do(func() {
		m := otel.Meter("certiwipe")
		inst.bytesWritten, _ = m.Int64Counter("certiwipe.bytes_written",
			metric.WithDescription("Bytes written to devices by overwrite passes"),
			metric.WithUnit("By"))
		inst.passesCompleted, _ = m.Int64Counter("certiwipe.passes_completed",
			metric.WithDescription("Overwrite passes completed and flushed"))
		inst.outcomes, _ = m.Int64Counter("certiwipe.wipe_outcomes",
			metric.WithDescription("Wipe operations by method and status"))
	})
	return inst
}

func RecordBytesWritten(ctx context.Context, n int64, method string) {
	if c := meters().bytesWritten; c != nil {
		c.Add(ctx, n, metric.WithAttributes(attribute.String("method", method)))
	}
}

func RecordPassCompleted(ctx context.Context, method string, pass int) {
	if c := meters().passesCompleted; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.Int("pass", pass),
		))
	}
}

// RecordOutcome counts a finished operation. stage is empty on success.
func RecordOutcome(ctx context.Context, method, status, stage string) {
	if c := meters().outcomes; c != nil {
		c.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("status", status),
			attribute.String("stage", stage),
		))
	}
}
