package rangefile

import (
	"context"
	"fmt"
)

// BufferFile serves a byte slice already in memory.
type BufferFile struct {
	data []byte
}

func NewBufferFile(b []byte) *BufferFile {
	return &BufferFile{data: b}
}

// CanHandleBuffer reports whether src is a []byte.
func CanHandleBuffer(src any) bool {
	_, ok := src.([]byte)
	return ok
}

func (b *BufferFile) Initialize(ctx context.Context) error {
	return nil
}

// LoadRange has nothing to load, it only checks the range is in bounds.
func (b *BufferFile) LoadRange(ctx context.Context, start, end int64) error {
	r := Range{Start: start, End: end}
	if !r.Valid() || start >= int64(len(b.data)) {
		return fmt.Errorf("%w %s", ErrInvalidRange, r)
	}
	return nil
}

func (b *BufferFile) ByteAt(offset int64) (byte, error) {
	if !(Range{Start: 0, End: b.Size() - 1}).Contains(offset) {
		return 0, &RangeNotCachedError{Offset: offset}
	}
	return b.data[offset], nil
}

func (b *BufferFile) Size() int64 {
	return int64(len(b.data))
}

var _ MediaReader = (*BufferFile)(nil)
