// pkg/wipe/method.go

package wipe

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
)

// Method is the closed set of supported wipe methods.
type Method int

const (
	ClearZeros Method = iota + 1
	ClearRandom
	Purge
)

const (
	ComplianceClear = "NIST 800-88 Clear"
	CompliancePurge = "NIST 800-88 Purge"
)

var methodNames = map[Method]string{
	ClearZeros:  "ClearZeros",
	ClearRandom: "ClearRandom",
	Purge:       "Purge",
}

// Methods returns every supported method in declaration order.
func Methods() []Method {
	return []Method{ClearZeros, ClearRandom, Purge}
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return "Unknown"
}

func (m Method) Valid() bool {
	_, ok := methodNames[m]
	return ok
}

// ParseMethod accepts the exact method names only.
func ParseMethod(s string) (Method, error) {
	for m, name := range methodNames {
		if s == name {
			return m, nil
		}
	}
	return 0, cw_err.WithRemediation(
		cw_err.Newf(cw_err.KindConfig, "unknown wipe method %q", s),
		"Valid methods: "+strings.Join(MethodNames(), ", "))
}

func MethodNames() []string {
	names := make([]string, 0, len(methodNames))
	for _, m := range Methods() {
		names = append(names, m.String())
	}
	return names
}

func (m Method) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, cw_err.Newf(cw_err.KindConfig, "invalid wipe method %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(b []byte) error {
	parsed, err := ParseMethod(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Compliance is the NIST 800-88 category the method satisfies.
func (m Method) Compliance() string {
	if m == Purge {
		return CompliancePurge
	}
	return ComplianceClear
}

// IsPurge reports whether the method relies on drive firmware.
func (m Method) IsPurge() bool {
	return m == Purge
}

// EffectivePasses is the pass count recorded for the method. Firmware erase
// is a single operation regardless of the configured count.
func (m Method) EffectivePasses(configured int) int {
	if m == Purge {
		return 1
	}
	return configured
}
