package rangefile

import "fmt"

// Range is a closed interval of byte offsets, both ends included.
type Range struct {
	Start int64
	End   int64
}

// Len returns the number of bytes covered by r.
func (r Range) Len() int64 {
	return r.End - r.Start + 1
}

// Valid reports whether r describes at least one byte at a non-negative offset.
func (r Range) Valid() bool {
	return r.Start >= 0 && r.End >= r.Start
}

// Contains reports whether off lies within r.
func (r Range) Contains(off int64) bool {
	return off >= r.Start && off <= r.End
}

// Header returns the value for an HTTP Range header requesting r.
func (r Range) Header() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}
