package utils

import (
	"errors"
	"fmt"
	"math"
	"unsafe"
)

var ErrAllocation = errors.New("aligned allocation failed")

const float64Size = int(unsafe.Sizeof(float64(0)))

// AlignedFloat64s returns a zeroed slice of N float64 values whose first
// element sits on an alignment byte boundary. The backing array is slightly
// over-allocated and sliced at the first aligned offset; the Go collector does
// not move heap objects so the alignment holds for the life of the slice.
func AlignedFloat64s(name string, N, alignment int) (buf []float64, err error) {
	if N < 0 {
		err = fmt.Errorf("%w: %s: negative length %d", ErrAllocation, name, N)
		return
	}
	if alignment < float64Size {
		alignment = float64Size
	}
	if alignment&(alignment-1) != 0 {
		err = fmt.Errorf("%w: %s: alignment %d is not a power of two", ErrAllocation, name, alignment)
		return
	}
	pad := alignment / float64Size
	if N > math.MaxInt/float64Size-pad {
		err = fmt.Errorf("%w: %s: %d values (%d byte alignment) overflows the address space",
			ErrAllocation, name, N, alignment)
		return
	}
	if N == 0 {
		return []float64{}, nil
	}
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fmt.Errorf("%w: %s: %d values (%d bytes): %v",
				ErrAllocation, name, N, N*float64Size, r)
		}
	}()
	raw := make([]float64, N+pad)
	var (
		addr = uintptr(unsafe.Pointer(&raw[0]))
		off  int
	)
	if rem := int(addr % uintptr(alignment)); rem != 0 {
		off = (alignment - rem) / float64Size
	}
	buf = raw[off : off+N : off+N]
	return
}

// IsAligned reports whether the first element of buf sits on an alignment
// byte boundary
func IsAligned(buf []float64, alignment int) bool {
	if len(buf) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&buf[0]))%uintptr(alignment) == 0
}

// RoundUpToWidth returns the smallest multiple of width that holds N items,
// along with the number of width-sized chunks
func RoundUpToWidth(N, width int) (padded, chunks int) {
	if width <= 0 {
		width = 1
	}
	chunks = (N + width - 1) / width
	if chunks == 0 {
		chunks = 1
	}
	padded = chunks * width
	return
}
