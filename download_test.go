package rangefile

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// fakeTransport serves data from memory and records every range request.
type fakeTransport struct {
	mu     sync.Mutex
	data   []byte
	calls  []Range
	probes int
	err    error         // returned by GetRange
	perr   error         // returned by ProbeSize
	short  bool          // GetRange returns only the first half of the range
	gate   chan struct{} // GetRange blocks until closed
}

func (ft *fakeTransport) ProbeSize(ctx context.Context) (int64, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	ft.probes++
	if ft.perr != nil {
		return 0, ft.perr
	}
	return int64(len(ft.data)), nil
}

func (ft *fakeTransport) GetRange(ctx context.Context, r Range) ([]byte, error) {
	if ft.gate != nil {
		<-ft.gate
	}

	ft.mu.Lock()
	defer ft.mu.Unlock()

	ft.calls = append(ft.calls, r)
	if ft.err != nil {
		return nil, ft.err
	}
	if r.Start >= int64(len(ft.data)) {
		return nil, nil
	}
	end := min(r.End+1, int64(len(ft.data)))
	if ft.short {
		end = r.Start + (end-r.Start)/2
	}
	return bytes.Clone(ft.data[r.Start:end]), nil
}

func (ft *fakeTransport) Calls() []Range {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	return append([]Range(nil), ft.calls...)
}

func newTestFetcher(ft *fakeTransport, blkSize, size int64) (*Fetcher, *RangeStore) {
	store := NewRangeStore(blkSize)
	f := NewFetcher(store, ft, blkSize, func() int64 { return size }, zerolog.Nop())
	return f, store
}

func TestAlign(t *testing.T) {
	for _, c := range []int64{1, 7, 512, 1024} {
		f, _ := newTestFetcher(&fakeTransport{}, c, UnknownSize)
		for l := int64(1); l <= 3000; l += 13 {
			r := f.Align(Range{Start: 100, End: 100 + l - 1}, UnknownSize)
			if r.Start != 100 {
				t.Fatalf("C=%d L=%d: start moved to %d", c, l, r.Start)
			}
			n := r.Len()
			if n%c != 0 || n < l || n-l >= c {
				t.Fatalf("C=%d L=%d: aligned length %d is not the smallest multiple", c, l, n)
			}
		}
	}

	f, _ := newTestFetcher(&fakeTransport{}, 1024, UnknownSize)
	if r := f.Align(Range{1400, 1410}, 1500); r != (Range{1400, 1499}) {
		t.Errorf("Align clipped to %s, want [1400,1499]", r)
	}
	if r := f.Align(Range{0, 9}, 1500); r != (Range{0, 1023}) {
		t.Errorf("Align = %s, want [0,1023]", r)
	}
}

func TestEnsureRangeScenario(t *testing.T) {
	ft := &fakeTransport{data: testData}
	f, store := newTestFetcher(ft, 1024, UnknownSize)
	ctx := context.Background()

	if err := <-f.EnsureRange(ctx, Range{0, 9}); err != nil {
		t.Fatalf("EnsureRange failed: %v", err)
	}
	calls := ft.Calls()
	if len(calls) != 1 || calls[0] != (Range{0, 1023}) {
		t.Fatalf("expected one fetch of [0,1023], got %v", calls)
	}

	c, err := store.ByteAt(5)
	if err != nil || c != testData[5] {
		t.Errorf("ByteAt(5) = %d, %v, want %d", c, err, testData[5])
	}
	var nc *RangeNotCachedError
	if _, err := store.ByteAt(2000); !errors.As(err, &nc) {
		t.Errorf("ByteAt(2000) error = %v, want RangeNotCachedError", err)
	}

	// second load of the same range is served from the store
	if err := <-f.EnsureRange(ctx, Range{0, 9}); err != nil {
		t.Fatalf("second EnsureRange failed: %v", err)
	}
	if n := len(ft.Calls()); n != 1 {
		t.Errorf("second EnsureRange issued %d fetches in total, want 1", n)
	}
	if f.Requests() != 1 {
		t.Errorf("Requests() = %d, want 1", f.Requests())
	}
}

func TestEnsureRangeOverlapping(t *testing.T) {
	ft := &fakeTransport{data: testData}
	f, store := newTestFetcher(ft, 1024, UnknownSize)
	ctx := context.Background()

	if err := <-f.EnsureRange(ctx, Range{0, 1023}); err != nil {
		t.Fatal(err)
	}
	if err := <-f.EnsureRange(ctx, Range{512, 1535}); err != nil {
		t.Fatal(err)
	}

	calls := ft.Calls()
	if len(calls) != 2 || calls[1] != (Range{512, 1535}) {
		t.Fatalf("unexpected fetches %v", calls)
	}
	rs := store.Ranges()
	if len(rs) != 1 || rs[0] != (Range{0, 1535}) {
		t.Fatalf("expected a single merged range [0,1535], got %v", rs)
	}

	buf := make([]byte, 1536)
	if err := store.BytesAt(buf, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, testData[:1536]) {
		t.Error("merged data does not match")
	}
}

func TestEnsureRangeFailure(t *testing.T) {
	fail := &TransportError{Op: OpGetRange, Locator: "mem", StatusCode: 500, Status: "500 Internal Server Error"}
	ft := &fakeTransport{data: testData, err: fail}
	f, store := newTestFetcher(ft, 1024, UnknownSize)
	store.AddData(5000, pattern(5000, 5009))

	ch := f.EnsureRange(context.Background(), Range{0, 9})
	err, ok := <-ch
	if !ok || err == nil {
		t.Fatalf("expected an error, got %v (ok=%v)", err, ok)
	}
	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != 500 {
		t.Fatalf("unexpected error %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("result channel delivered more than one value")
	}

	rs := store.Ranges()
	if len(rs) != 1 || rs[0] != (Range{5000, 5009}) {
		t.Errorf("failed fetch changed the store: %v", rs)
	}
	if store.HasRange(0, 9) {
		t.Error("failed range should stay uncached")
	}

	// a later attempt fetches again
	ft.mu.Lock()
	ft.err = nil
	ft.mu.Unlock()
	if err := <-f.EnsureRange(context.Background(), Range{0, 9}); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(ft.Calls()) != 2 {
		t.Errorf("expected 2 fetches, got %d", len(ft.Calls()))
	}
}

func TestEnsureRangeCompletesOnce(t *testing.T) {
	ft := &fakeTransport{data: testData}
	f, _ := newTestFetcher(ft, 1024, UnknownSize)
	ctx := context.Background()

	// first is a miss, second a hit
	for i := 0; i < 2; i++ {
		ch := f.EnsureRange(ctx, Range{100, 200})
		if err, ok := <-ch; !ok || err != nil {
			t.Fatalf("round %d: got %v (ok=%v)", i, err, ok)
		}
		if _, ok := <-ch; ok {
			t.Fatalf("round %d: channel delivered twice", i)
		}
	}
}

func TestEnsureRangeInvalid(t *testing.T) {
	ft := &fakeTransport{data: testData}
	f, _ := newTestFetcher(ft, 1024, 2048)

	for _, r := range []Range{{-1, 5}, {10, 9}, {2048, 2050}} {
		if err := <-f.EnsureRange(context.Background(), r); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("EnsureRange(%s) error = %v, want ErrInvalidRange", r, err)
		}
	}
	if len(ft.Calls()) != 0 {
		t.Errorf("invalid ranges issued fetches: %v", ft.Calls())
	}

	// clipped to the file size
	if err := <-f.EnsureRange(context.Background(), Range{2000, 2010}); err != nil {
		t.Fatal(err)
	}
	if calls := ft.Calls(); len(calls) != 1 || calls[0] != (Range{2000, 2047}) {
		t.Errorf("unexpected fetches %v", calls)
	}
}

func TestEnsureRangePastEndCached(t *testing.T) {
	ft := &fakeTransport{data: testData}
	f, _ := newTestFetcher(ft, 1024, 1500)

	for i := 0; i < 3; i++ {
		if err := <-f.EnsureRange(context.Background(), Range{1490, 1510}); err != nil {
			t.Fatal(err)
		}
	}
	if calls := ft.Calls(); len(calls) != 1 || calls[0] != (Range{1490, 1499}) {
		t.Errorf("unexpected fetches %v, want a single [1490,1499]", calls)
	}
	if f.Requests() != 1 {
		t.Errorf("Requests() = %d, want 1", f.Requests())
	}
}

func TestEnsureRangeShortResponse(t *testing.T) {
	ft := &fakeTransport{data: testData, short: true}
	f, store := newTestFetcher(ft, 1024, int64(len(testData)))
	f.Locator = "mem://short"

	err := <-f.EnsureRange(context.Background(), Range{0, 99})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}
	if te.Op != OpGetRange || te.Locator != "mem://short" || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("unexpected error %+v", te)
	}
	if n := store.CachedBytes(); n != 0 {
		t.Errorf("short response stored %d bytes", n)
	}

	// without a known size a short body is the end of the data
	f, store = newTestFetcher(ft, 1024, UnknownSize)
	if err := <-f.EnsureRange(context.Background(), Range{0, 99}); err != nil {
		t.Fatal(err)
	}
	if n := store.CachedBytes(); n != 512 {
		t.Errorf("cached %d bytes, want 512", n)
	}
}

func TestEnsureRangeClosedDuringFetch(t *testing.T) {
	ft := &fakeTransport{data: testData, gate: make(chan struct{})}
	f, store := newTestFetcher(ft, 1024, int64(len(testData)))

	var mu sync.Mutex
	closed := false
	f.Closed = func() bool {
		mu.Lock()
		defer mu.Unlock()
		return closed
	}

	ch := f.EnsureRange(context.Background(), Range{0, 99})

	mu.Lock()
	closed = true
	mu.Unlock()
	close(ft.gate)

	if err := <-ch; !errors.Is(err, ErrClosed) {
		t.Errorf("error = %v, want ErrClosed", err)
	}
	if n := store.CachedBytes(); n != 0 {
		t.Errorf("store holds %d bytes after close", n)
	}
}

func TestEnsureRangeConcurrent(t *testing.T) {
	ft := &fakeTransport{data: testData}
	f, store := newTestFetcher(ft, 1024, int64(len(testData)))
	ctx := context.Background()

	var chans []<-chan error
	for i := int64(0); i < 20; i++ {
		chans = append(chans, f.EnsureRange(ctx, Range{i * 3000, i*3000 + 99}))
	}
	for i, ch := range chans {
		if err := <-ch; err != nil {
			t.Fatalf("load %d failed: %v", i, err)
		}
	}

	if n := len(ft.Calls()); n == 0 || n > 20 {
		t.Errorf("unexpected number of fetches %d", n)
	}
	for i := int64(0); i < 20; i++ {
		buf := make([]byte, 100)
		if err := store.BytesAt(buf, i*3000); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(buf, testData[i*3000:i*3000+100]) {
			t.Fatalf("data mismatch at %d", i*3000)
		}
	}
}
