// pkg/overwrite/overwrite.go
//
// Multi-pass overwrite (NIST 800-88 Clear) with sampled verification.

package overwrite

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Label is the verification method recorded for overwrite wipes.
const Label = "Overwrite and Verify"

const (
	DefaultBufferSize   = 1 << 20
	DefaultChiThreshold = 330.52
)

// Pattern selects what each pass writes.
type Pattern int

const (
	Zeros Pattern = iota
	Random
)

func (p Pattern) String() string {
	switch p {
	case Zeros:
		return "zeros"
	case Random:
		return "random"
	default:
		return fmt.Sprintf("pattern(%d)", int(p))
	}
}

// Options tunes an overwrite run. Zero values select the defaults.
type Options struct {
	BufferSize int
	// Random supplies the random pattern; crypto/rand.Reader when nil.
	Random   io.Reader
	Sampling Sampling
	// ChiThreshold is the chi-squared acceptance bound at 255 degrees of freedom.
	ChiThreshold     float64
	ProgressInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Random == nil {
		o.Random = rand.Reader
	}
	if o.ChiThreshold <= 0 {
		o.ChiThreshold = DefaultChiThreshold
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = 10 * time.Second
	}
	o.Sampling = o.Sampling.withDefaults()
	return o
}

// Result describes a completed and verified overwrite.
type Result struct {
	Label        string
	Verification string
	Passes       int
	BytesWritten uint64
	SampledBytes uint64
	// ChiSquared is set for the random pattern only.
	ChiSquared float64
}

// PassError records how far an aborted pass got.
type PassError struct {
	Pass    int
	Passes  int
	Offset  uint64
	Written uint64
	Err     error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("pass %d of %d aborted at offset %d after %d bytes written in this pass: %v",
		e.Pass, e.Passes, e.Offset, e.Written, e.Err)
}

func (e *PassError) Unwrap() error {
	return e.Err
}

// RunClear overwrites [0,size) of dev passes times with pattern, flushing
// after every pass, then verifies a sample of the final contents. An I/O
// failure aborts the run at once; no pass is retried.
func RunClear(rc *cw_io.RuntimeContext, dev device.Device, pattern Pattern, passes int, size uint64, opts Options) (*Result, error) {
	log := otelzap.Ctx(rc.Ctx)
	opts = opts.withDefaults()

	// ASSESS
	if passes < 1 {
		return nil, cw_err.Newf(cw_err.KindConfig, "passes must be at least 1, got %d", passes)
	}
	if size == 0 {
		return nil, cw_err.Newf(cw_err.KindConfig, "device %s reports zero size", dev.Path())
	}
	if pattern != Zeros && pattern != Random {
		return nil, cw_err.Newf(cw_err.KindConfig, "unknown overwrite pattern %v", pattern)
	}

	log.Info("Starting overwrite",
		zap.String("device", dev.Path()),
		zap.Stringer("pattern", pattern),
		zap.Int("passes", passes),
		zap.Uint64("size_bytes", size),
		zap.Int("buffer_size", opts.BufferSize))

	// INTERVENE
	var total uint64
	for pass := 1; pass <= passes; pass++ {
		ctx, span := telemetry.Start(rc.Ctx, "overwrite.pass",
			attribute.Int("pass", pass),
			attribute.String("pattern", pattern.String()))

		written, err := writePass(rc, dev, pattern, pass, passes, size, opts)
		total += written
		if err != nil {
			span.RecordError(err)
			span.End()
			log.Error("Overwrite pass failed, aborting without further passes",
				zap.Int("pass", pass), zap.Uint64("written", written), zap.Error(err))
			return nil, err
		}

		if err := dev.Sync(); err != nil {
			span.RecordError(err)
			span.End()
			return nil, cw_err.Wrapf(cw_err.KindIo, &PassError{Pass: pass, Passes: passes, Offset: size, Written: written, Err: err},
				"flush after pass %d", pass)
		}
		telemetry.RecordPassCompleted(ctx, pattern.String(), pass)
		span.End()

		log.Info("Overwrite pass complete", zap.Int("pass", pass), zap.Int("passes", passes), zap.Uint64("bytes", written))
	}

	// EVALUATE
	v, err := verify(rc, dev, pattern, size, opts)
	if err != nil {
		return nil, err
	}

	log.Info("Overwrite verified", zap.String("result", v.summary))
	return &Result{
		Label:        Label,
		Verification: v.summary,
		Passes:       passes,
		BytesWritten: total,
		SampledBytes: v.sampled,
		ChiSquared:   v.chi,
	}, nil
}

// writePass writes one full pass. It returns the bytes written even on failure.
func writePass(rc *cw_io.RuntimeContext, dev device.Device, pattern Pattern, pass, passes int, size uint64, opts Options) (uint64, error) {
	log := otelzap.Ctx(rc.Ctx)
	progress := rate.Sometimes{Interval: opts.ProgressInterval}

	done := make(chan struct{})
	defer close(done)

	var chunks <-chan chunk
	var free chan<- []byte
	if pattern == Random {
		chunks, free = randomChunks(opts.Random, size, opts.BufferSize, done)
	} else {
		chunks = zeroChunks(size, opts.BufferSize, done)
	}

	var off uint64
	for c := range chunks {
		if c.err != nil {
			return off, cw_err.New(cw_err.KindIo, &PassError{
				Pass: pass, Passes: passes, Offset: off, Written: off,
				Err: fmt.Errorf("random source failed: %w", c.err),
			})
		}

		n, err := dev.WriteAt(c.buf, int64(off))
		if err == nil && n < len(c.buf) {
			err = io.ErrShortWrite
		}
		if err != nil {
			return off + uint64(n), cw_err.New(cw_err.KindIo, &PassError{
				Pass: pass, Passes: passes, Offset: off + uint64(n), Written: off + uint64(n), Err: err,
			})
		}
		off += uint64(n)
		telemetry.RecordBytesWritten(rc.Ctx, int64(n), pattern.String())

		if free != nil {
			free <- c.buf[:cap(c.buf)]
		}
		progress.Do(func() {
			log.Info("Overwrite progress",
				zap.Int("pass", pass),
				zap.Uint64("offset", off),
				zap.String("percent", fmt.Sprintf("%.1f", 100*float64(off)/float64(size))))
		})
	}
	return off, nil
}

type chunk struct {
	buf []byte
	err error
}

// zeroChunks yields slices of one shared zero buffer; writes never modify it.
func zeroChunks(total uint64, bufSize int, done <-chan struct{}) <-chan chunk {
	out := make(chan chunk)
	zero := make([]byte, bufSize)
	go func() {
		defer close(out)
		for remaining := total; remaining > 0; {
			n := min(uint64(bufSize), remaining)
			select {
			case out <- chunk{buf: zero[:n]}:
			case <-done:
				return
			}
			remaining -= n
		}
	}()
	return out
}

// randomChunks fills buffers from src one chunk ahead of the writer. Two
// buffers circulate between the filler and the writer through free.
func randomChunks(src io.Reader, total uint64, bufSize int, done <-chan struct{}) (<-chan chunk, chan<- []byte) {
	ready := make(chan chunk, 1)
	free := make(chan []byte, 2)
	free <- make([]byte, bufSize)
	free <- make([]byte, bufSize)

	go func() {
		defer close(ready)
		for remaining := total; remaining > 0; {
			var buf []byte
			select {
			case buf = <-free:
			case <-done:
				return
			}
			n := min(uint64(bufSize), remaining)
			_, err := io.ReadFull(src, buf[:n])
			select {
			case ready <- chunk{buf: buf[:n], err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
			remaining -= n
		}
	}()
	return ready, free
}
