// pkg/overwrite/sampling.go

package overwrite

import "math/bits"

// Sampling controls how much of the device is read back after the final pass.
//
// Guarantee: devices smaller than ExhaustiveBelow are read completely.
// Otherwise the first and last EdgeBytes are always read, plus at least
// max(MinBlocks, Coverage*size/BlockSize) interior blocks spread evenly
// between them.
type Sampling struct {
	Coverage        float64
	EdgeBytes       uint64
	BlockSize       uint64
	MinBlocks       uint64
	ExhaustiveBelow uint64
}

const (
	DefaultCoverage        = 0.01
	MinCoverage            = 0.001
	DefaultEdgeBytes       = 1 << 20
	DefaultBlockSize       = 64 << 10
	DefaultMinBlocks       = 64
	DefaultExhaustiveBelow = 64 << 20
)

func DefaultSampling() Sampling {
	return Sampling{}.withDefaults()
}

func (s Sampling) withDefaults() Sampling {
	if s.Coverage <= 0 {
		s.Coverage = DefaultCoverage
	}
	if s.Coverage < MinCoverage {
		s.Coverage = MinCoverage
	}
	if s.Coverage > 1 {
		s.Coverage = 1
	}
	if s.EdgeBytes == 0 {
		s.EdgeBytes = DefaultEdgeBytes
	}
	if s.BlockSize == 0 {
		s.BlockSize = DefaultBlockSize
	}
	if s.MinBlocks == 0 {
		s.MinBlocks = DefaultMinBlocks
	}
	if s.ExhaustiveBelow == 0 {
		s.ExhaustiveBelow = DefaultExhaustiveBelow
	}
	return s
}

// Range is a half-open byte range [Offset, Offset+Length).
type Range struct {
	Offset uint64
	Length uint64
}

// Plan returns the byte ranges to read for a device of size bytes. Ranges are
// sorted and do not overlap.
func (s Sampling) Plan(size uint64) []Range {
	s = s.withDefaults()
	if size < s.ExhaustiveBelow || 2*s.EdgeBytes >= size {
		return []Range{{0, size}}
	}

	start, end := s.EdgeBytes, size-s.EdgeBytes
	interior := end - start

	want := uint64(s.Coverage * float64(size) / float64(s.BlockSize))
	if want < s.MinBlocks {
		want = s.MinBlocks
	}
	if want >= (interior+s.BlockSize-1)/s.BlockSize {
		return []Range{{0, size}}
	}

	plan := make([]Range, 0, want+2)
	plan = append(plan, Range{0, s.EdgeBytes})

	// Offsets are spread over [start, end-BlockSize] and aligned down to a sector.
	last := end - s.BlockSize
	prevEnd := start
	for i := uint64(0); i < want; i++ {
		var off uint64
		if want == 1 {
			off = start + (last-start)/2
		} else {
			off = start + spread(last-start, i, want-1)
		}
		off &^= 511
		if off < prevEnd {
			off = prevEnd
		}
		plan = append(plan, Range{off, s.BlockSize})
		prevEnd = off + s.BlockSize
	}

	plan = append(plan, Range{end, s.EdgeBytes})
	return plan
}

// spread returns span*i/n without overflowing. i <= n keeps the quotient
// within span, so Div64 cannot panic.
func spread(span, i, n uint64) uint64 {
	hi, lo := bits.Mul64(span, i)
	q, _ := bits.Div64(hi, lo, n)
	return q
}

func planBytes(plan []Range) uint64 {
	var n uint64
	for _, r := range plan {
		n += r.Length
	}
	return n
}
