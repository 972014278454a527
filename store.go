package rangefile

import (
	"math"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
)

type span struct {
	start int64
	data  []byte
}

func (s *span) end() int64 {
	return s.start + int64(len(s.data)) - 1
}

// RangeStore keeps the parts of a file that have been downloaded so far.
// Intervals are kept sorted and merged on insertion, so two stored intervals
// never overlap nor touch. Overlapping writes follow a last write wins policy.
type RangeStore struct {
	spans  []*span
	chunks *roaring.Bitmap // chunks fully covered (each bit is 1 chunk)

	blkSize int64

	lk sync.RWMutex
}

// NewRangeStore returns an empty store indexing coverage by blocks of
// blkSize bytes. A non-positive blkSize selects DefaultChunkSize.
func NewRangeStore(blkSize int64) *RangeStore {
	if blkSize <= 0 {
		blkSize = DefaultChunkSize
	}
	return &RangeStore{
		chunks:  roaring.New(),
		blkSize: blkSize,
	}
}

// search returns the index of the first span ending at or after off.
func (s *RangeStore) search(off int64) int {
	return sort.Search(len(s.spans), func(i int) bool {
		return s.spans[i].end() >= off
	})
}

// HasRange returns true if every byte in [start, end] is available.
func (s *RangeStore) HasRange(start, end int64) bool {
	if start < 0 || end < start {
		return false
	}

	s.lk.RLock()
	defer s.lk.RUnlock()

	if s.hasChunks(start, end) {
		return true
	}

	i := s.search(start)
	if i == len(s.spans) {
		return false
	}
	sp := s.spans[i]
	return sp.start <= start && sp.end() >= end
}

// hasChunks checks the bitmap for full coverage of all chunks touched by
// [start, end]. Must be called with lock acquired.
func (s *RangeStore) hasChunks(start, end int64) bool {
	first, last := start/s.blkSize, end/s.blkSize
	if last > math.MaxUint32 {
		return false
	}

	// Rank(x) counts set bits <= x
	n := s.chunks.Rank(uint32(last)) - s.chunks.Rank(uint32(first))
	if s.chunks.Contains(uint32(first)) {
		n++
	}
	return n == uint64(last-first+1)
}

// AddData stores b at offset start, merging it with any interval it touches.
func (s *RangeStore) AddData(start int64, b []byte) {
	if len(b) == 0 || start < 0 {
		return
	}
	end := start + int64(len(b)) - 1

	s.lk.Lock()
	defer s.lk.Unlock()

	// spans in [i, j) overlap or are adjacent to [start, end]
	i := s.search(start - 1)
	j := i
	for j < len(s.spans) && s.spans[j].start <= end+1 {
		j++
	}

	if j == i+1 {
		if sp := s.spans[i]; sp.start <= start && sp.end() >= end {
			// already inside a single span, overwrite in place
			copy(sp.data[start-sp.start:], b)
			return
		}
	}

	mStart, mEnd := start, end
	if i < j {
		mStart = min(mStart, s.spans[i].start)
		mEnd = max(mEnd, s.spans[j-1].end())
	}

	data := make([]byte, mEnd-mStart+1)
	for _, sp := range s.spans[i:j] {
		copy(data[sp.start-mStart:], sp.data)
	}
	copy(data[start-mStart:], b)

	merged := &span{start: mStart, data: data}
	s.spans = append(s.spans[:i], append([]*span{merged}, s.spans[j:]...)...)

	s.markChunks(mStart, mEnd)
}

// markChunks flags every chunk lying entirely within [start, end].
func (s *RangeStore) markChunks(start, end int64) {
	first := (start + s.blkSize - 1) / s.blkSize
	last := (end+1)/s.blkSize - 1
	if first > last || last > math.MaxUint32 {
		return
	}
	s.chunks.AddRange(uint64(first), uint64(last)+1)
}

// ByteAt returns the byte stored at off, or a *RangeNotCachedError.
func (s *RangeStore) ByteAt(off int64) (byte, error) {
	s.lk.RLock()
	defer s.lk.RUnlock()

	i := s.search(off)
	if off < 0 || i == len(s.spans) || s.spans[i].start > off {
		return 0, &RangeNotCachedError{Offset: off}
	}
	sp := s.spans[i]
	return sp.data[off-sp.start], nil
}

// BytesAt fills p with the bytes stored from off. The whole range must be
// cached, otherwise the first missing offset is reported.
func (s *RangeStore) BytesAt(p []byte, off int64) error {
	if len(p) == 0 {
		return nil
	}

	s.lk.RLock()
	defer s.lk.RUnlock()

	i := s.search(off)
	if off < 0 || i == len(s.spans) || s.spans[i].start > off {
		return &RangeNotCachedError{Offset: off}
	}
	sp := s.spans[i]
	n := copy(p, sp.data[off-sp.start:])
	if n < len(p) {
		return &RangeNotCachedError{Offset: off + int64(n)}
	}
	return nil
}

// Ranges returns the merged cached intervals in offset order.
func (s *RangeStore) Ranges() []Range {
	s.lk.RLock()
	defer s.lk.RUnlock()

	res := make([]Range, 0, len(s.spans))
	for _, sp := range s.spans {
		res = append(res, Range{Start: sp.start, End: sp.end()})
	}
	return res
}

// CachedBytes returns the total number of bytes held.
func (s *RangeStore) CachedBytes() int64 {
	s.lk.RLock()
	defer s.lk.RUnlock()

	var n int64
	for _, sp := range s.spans {
		n += int64(len(sp.data))
	}
	return n
}

// Reset drops all cached data.
func (s *RangeStore) Reset() {
	s.lk.Lock()
	defer s.lk.Unlock()

	s.spans = nil
	s.chunks.Clear()
}
