package cw_opa

import (
	"context"
	"testing"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func safeInput() WipeInput {
	return WipeInput{
		Device:      Device{Path: "/dev/sdz", SizeBytes: 1 << 30},
		Method:      "ClearZeros",
		Interactive: true,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*WipeInput)
		denied []string
	}{
		{"safe", func(*WipeInput) {}, nil},
		{"mounted", func(in *WipeInput) { in.Device.Mounted = true }, []string{"mounted filesystem"}},
		{"mounted forced", func(in *WipeInput) { in.Device.Mounted = true; in.Force = true }, nil},
		{"system", func(in *WipeInput) { in.Device.System = true }, []string{"running system"}},
		{"non-interactive", func(in *WipeInput) { in.Interactive = false }, []string{"requires --yes"}},
		{"non-interactive yes", func(in *WipeInput) { in.Interactive = false; in.Yes = true }, nil},
		{"zero size", func(in *WipeInput) { in.Device.SizeBytes = 0 }, []string{"zero size"}},
		{"bad method", func(in *WipeInput) { in.Method = "Gutmann" }, []string{"unknown wipe method"}},
		{"several", func(in *WipeInput) {
			in.Device.Mounted = true
			in.Device.System = true
			in.Interactive = false
		}, []string{"mounted filesystem", "running system", "requires --yes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := safeInput()
			tt.mutate(&in)

			got, err := Evaluate(context.Background(), in)
			require.NoError(t, err)
			require.Len(t, got, len(tt.denied))
			for i, want := range tt.denied {
				assert.Contains(t, got[i], want)
			}
		})
	}
}

func TestEnforce(t *testing.T) {
	require.NoError(t, Enforce(context.Background(), safeInput()))

	in := safeInput()
	in.Device.Mounted = true
	err := Enforce(context.Background(), in)
	require.Error(t, err)
	assert.True(t, cw_err.IsExpectedUserError(err))
	assert.True(t, cw_err.Is(err, cw_err.KindConfig))
	assert.Contains(t, err.Error(), "--force")
}
