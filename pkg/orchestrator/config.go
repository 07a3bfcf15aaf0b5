// pkg/orchestrator/config.go

package orchestrator

import (
	"time"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/device"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/hiddenarea"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/journal"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/overwrite"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/purge"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/wipe"
	"github.com/go-playground/validator/v10"
)

// MaxPasses bounds the configured pass count.
const MaxPasses = 35

// ConfirmFunc is asked once the target is known and the policy allowed the
// wipe. Returning false aborts before anything is written.
type ConfirmFunc func(info device.Info, method wipe.Method) (bool, error)

// Config is one wipe request.
type Config struct {
	DrivePath string      `validate:"required"`
	Method    wipe.Method `validate:"required"`
	Passes    int         `validate:"min=1,max=35"`
	KeyPath   string      `validate:"required"`

	Access  device.Access    `validate:"required"`
	Journal *journal.Storage `validate:"-"`

	HiddenArea hiddenarea.Options `validate:"-"`
	Overwrite  overwrite.Options  `validate:"-"`
	Purge      purge.Options      `validate:"-"`

	// EmitFailedCertificate makes a failed wipe still return a signed
	// certificate with status Failed alongside the error.
	EmitFailedCertificate bool

	Force       bool
	Yes         bool
	Interactive bool
	Confirm     ConfirmFunc `validate:"-"`

	Now func() time.Time `validate:"-"`
}

var validate = validator.New()

// Validate reports every invalid field as a single Config error.
func (c *Config) Validate() error {
	var ve ValidationErrors
	if err := validate.Struct(c); err != nil {
		ve.addValidatorErrors(err)
	}
	if c.Method != 0 && !c.Method.Valid() {
		ve.Add("Method", int(c.Method), "is not a supported wipe method")
	}
	if sampling := c.Overwrite.Sampling.Coverage; sampling < 0 || sampling > 1 {
		ve.Add("Overwrite.Sampling.Coverage", sampling, "must be between 0 and 1")
	}
	if c.Overwrite.ChiThreshold < 0 {
		ve.Add("Overwrite.ChiThreshold", c.Overwrite.ChiThreshold, "must not be negative")
	}
	if ve.HasErrors() {
		return cw_err.New(cw_err.KindConfig, &ve)
	}
	return nil
}

func (c *Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
