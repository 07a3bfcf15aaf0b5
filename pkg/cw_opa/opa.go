// pkg/cw_opa/opa.go
//
// Safety policy gate evaluated before any destructive step.

package cw_opa

import (
	"context"
	_ "embed"
	"sort"
	"strings"
	"sync"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	rego "github.com/open-policy-agent/opa/v1/rego"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

//go:embed policies/wipe.rego
var wipePolicy string

const denyQuery = "data.certiwipe.wipe.deny"

// Device is the policy view of the target.
type Device struct {
	Path      string `json:"path"`
	Mounted   bool   `json:"mounted"`
	System    bool   `json:"system"`
	SizeBytes uint64 `json:"size_bytes"`
}

// WipeInput is the document the wipe policy evaluates.
type WipeInput struct {
	Device      Device `json:"device"`
	Method      string `json:"method"`
	Force       bool   `json:"force"`
	Yes         bool   `json:"yes"`
	Interactive bool   `json:"interactive"`
}

var (
	prepareOnce sync.Once
	prepared    rego.PreparedEvalQuery
	prepareErr  error
)

// compiled prepares the embedded policy once per process.
func compiled(ctx context.Context) (rego.PreparedEvalQuery, error) {
	prepareOnce.Do(func() {
		prepared, prepareErr = rego.New(
			rego.Query(denyQuery),
			rego.Module("wipe.rego", wipePolicy),
		).PrepareForEval(ctx)
	})
	return prepared, prepareErr
}

// Evaluate returns the sorted deny messages for in. An empty result means
// the wipe may proceed.
func Evaluate(ctx context.Context, in WipeInput) ([]string, error) {
	ctx, span := telemetry.Start(ctx, "opa.evaluate",
		attribute.String("policy", denyQuery),
		attribute.String("device", in.Device.Path))
	defer span.End()

	pq, err := compiled(ctx)
	if err != nil {
		return nil, cerr.Wrap(err, "compile wipe policy")
	}

	// rego converts the struct through its json tags.
	rs, err := pq.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return nil, cerr.Wrap(err, "evaluate wipe policy")
	}

	var messages []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			values, ok := expr.Value.([]interface{})
			if !ok {
				return nil, cerr.Errorf("wipe policy returned %T, want a set", expr.Value)
			}
			for _, v := range values {
				if msg, ok := v.(string); ok {
					messages = append(messages, msg)
				}
			}
		}
	}
	sort.Strings(messages)
	span.SetAttributes(attribute.Int("denials", len(messages)))
	return messages, nil
}

// Enforce returns an expected user error listing every denial, or nil.
func Enforce(ctx context.Context, in WipeInput) error {
	log := otelzap.Ctx(ctx)

	messages, err := Evaluate(ctx, in)
	if err != nil {
		return cw_err.Wrapf(cw_err.KindConfig, err, "safety policy")
	}
	if len(messages) == 0 {
		log.Debug("Safety policy allowed wipe", zap.String("device", in.Device.Path))
		return nil
	}

	log.Warn("Safety policy denied wipe",
		zap.String("device", in.Device.Path),
		zap.Strings("reasons", messages))
	return cw_err.NewExpectedError(
		cw_err.Newf(cw_err.KindConfig, "safety policy refused wipe: %s", strings.Join(messages, "; ")))
}
