package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bradleyjkemp/cupaloy/v2"
)

// GoldenFile provides snapshot testing for serialized artifacts such as the
// canonical certificate payload, where any byte change breaks verifiers.
//
// Snapshots live in testdata/golden/<test_name>. The first run records the
// snapshot; later runs compare against it. To re-record after an intended
// format change:
//
//	go test ./... -update
type GoldenFile struct {
	t           *testing.T
	snapshotter *cupaloy.Config
}

// NewGolden creates a new golden file tester
func NewGolden(t *testing.T) *GoldenFile {
	t.Helper()

	goldenDir := filepath.Join("testdata", "golden")
	if err := os.MkdirAll(goldenDir, 0755); err != nil {
		t.Fatalf("Failed to create golden directory: %v", err)
	}

	return &GoldenFile{
		t: t,
		snapshotter: cupaloy.New(
			cupaloy.SnapshotSubdirectory(goldenDir),
			cupaloy.FailOnUpdate(false),
			cupaloy.ShouldUpdate(updateRequested),
		),
	}
}

func updateRequested() bool {
	for _, arg := range os.Args {
		if arg == "-update" || arg == "-test.update" {
			return true
		}
	}
	return false
}

// AssertWithName compares got against the named snapshot.
func (g *GoldenFile) AssertWithName(name string, got interface{}) {
	g.t.Helper()

	if err := g.snapshotter.SnapshotWithName(name, got); err != nil {
		g.t.Fatalf("Golden file assertion failed for '%s': %v\n\nTo update golden files, run:\n  go test -update", name, err)
	}
}

// GoldenString compares a string against the snapshot named after the test.
func GoldenString(t *testing.T, got string) {
	t.Helper()
	NewGolden(t).AssertWithName(t.Name(), got)
}
