// pkg/cw_err/classification.go
//
// Exit code mapping for wipe failures.

package cw_err

import (
	"errors"

	cerr "github.com/cockroachdb/errors"
)

// Exit codes. A wipe that destroyed data but produced no certificate must
// never exit 0, so every Kind maps to a non-zero code.
const (
	ExitOK              = 0
	ExitGeneral         = 1
	ExitConfig          = 2
	ExitPermissions     = 3
	ExitDeviceNotFound  = 4
	ExitIo              = 5
	ExitPlatformCommand = 6
	ExitVerification    = 7
	ExitSigning         = 8
)

// ExitCode returns the process exit code for a kind.
func (k Kind) ExitCode() int {
	switch k {
	case KindConfig:
		return ExitConfig
	case KindPermissions:
		return ExitPermissions
	case KindDeviceNotFound:
		return ExitDeviceNotFound
	case KindIo:
		return ExitIo
	case KindPlatformCommand:
		return ExitPlatformCommand
	case KindVerification:
		return ExitVerification
	case KindSigning:
		return ExitSigning
	default:
		return ExitGeneral
	}
}

// GetExitCode extracts an exit code from any error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if kind, ok := KindOf(err); ok {
		return kind.ExitCode()
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ExitConfig
	}
	return ExitGeneral
}

// WithRemediation attaches operator hints to err.
func WithRemediation(err error, hints ...string) error {
	for _, h := range hints {
		err = cerr.WithHint(err, h)
	}
	return err
}

// Hints returns the operator hints attached anywhere in err's chain.
func Hints(err error) []string {
	return cerr.GetAllHints(err)
}
