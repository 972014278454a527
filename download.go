package rangefile

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultChunkSize is the granularity of outbound fetches. Getting 10 bytes
// or 1kB costs about the same once the request is made, so reads are always
// rounded up to a multiple of it.
const DefaultChunkSize = 1024

// Transport performs the network exchanges for a single remote resource.
type Transport interface {
	// ProbeSize returns the total size of the resource.
	ProbeSize(ctx context.Context) (int64, error)
	// GetRange returns the bytes of r. Fewer bytes may be returned if r
	// extends past the end of the resource.
	GetRange(ctx context.Context, r Range) ([]byte, error)
}

// Fetcher turns requested ranges into chunk-aligned fetches and feeds the
// results into a RangeStore.
type Fetcher struct {
	store     *RangeStore
	transport Transport
	blkSize   int64
	size      func() int64 // known size or UnknownSize
	log       zerolog.Logger

	// Locator names the source in errors raised by the fetcher itself.
	Locator string
	// Closed, when set, reports that the owner is gone; fetches completing
	// after that point are not stored.
	Closed func() bool

	reqCnt uint64 // outbound fetches issued
}

// NewFetcher returns a Fetcher writing into store. size reports the known
// file size (or UnknownSize) and may be nil.
func NewFetcher(store *RangeStore, t Transport, blkSize int64, size func() int64, log zerolog.Logger) *Fetcher {
	if blkSize <= 0 {
		blkSize = DefaultChunkSize
	}
	if size == nil {
		size = func() int64 { return UnknownSize }
	}
	return &Fetcher{
		store:     store,
		transport: t,
		blkSize:   blkSize,
		size:      size,
		log:       log,
	}
}

// Align rounds the length of r up to a multiple of the chunk size, keeping
// its start. If size is known the result never extends past the last byte.
func (f *Fetcher) Align(r Range, size int64) Range {
	n := (r.Len() + f.blkSize - 1) / f.blkSize * f.blkSize
	res := Range{Start: r.Start, End: r.Start + n - 1}
	if size >= 0 && res.End >= size {
		res.End = size - 1
	}
	return res
}

// Requests returns the number of outbound fetches issued so far.
func (f *Fetcher) Requests() uint64 {
	return atomic.LoadUint64(&f.reqCnt)
}

// EnsureRange makes sure r is available in the store. The returned channel
// receives exactly one value (nil on success) and is then closed. A range
// already cached completes the same way without any network activity.
func (f *Fetcher) EnsureRange(ctx context.Context, r Range) <-chan error {
	if !r.Valid() {
		return done(fmt.Errorf("%w %s", ErrInvalidRange, r))
	}
	size := f.size()
	if size >= 0 && r.Start >= size {
		return done(fmt.Errorf("%w %s: file size is %d", ErrInvalidRange, r, size))
	}

	if size >= 0 && r.End >= size {
		r.End = size - 1
	}

	if f.store.HasRange(r.Start, r.End) {
		f.log.Debug().Str("range", r.String()).Msg("range already cached")
		return done(nil)
	}

	aligned := f.Align(r, size)
	id := uuid.NewString()
	atomic.AddUint64(&f.reqCnt, 1)

	return async(func() error {
		return f.fetch(withRequestID(ctx, id), aligned)
	})
}

func (f *Fetcher) fetch(ctx context.Context, r Range) error {
	log := f.log.With().Str("request", requestID(ctx)).Str("range", r.String()).Logger()
	log.Debug().Msg("fetching range")

	b, err := f.transport.GetRange(ctx, r)
	if err != nil {
		log.Error().Err(err).Msg("range fetch failed")
		return err
	}
	if int64(len(b)) > r.Len() {
		b = b[:r.Len()]
	}
	if size := f.size(); size >= 0 && int64(len(b)) < min(r.End, size-1)-r.Start+1 {
		err = &TransportError{Op: OpGetRange, Locator: f.Locator, Err: io.ErrUnexpectedEOF}
		log.Error().Err(err).Int("bytes", len(b)).Msg("short range response")
		return err
	}
	if f.Closed != nil && f.Closed() {
		log.Debug().Msg("owner closed, dropping fetched range")
		return ErrClosed
	}

	f.store.AddData(r.Start, b)
	if f.Closed != nil && f.Closed() {
		// Close ran while storing
		f.store.Reset()
		return ErrClosed
	}
	log.Debug().Int("bytes", len(b)).Msg("range stored")
	return nil
}

// done returns an already completed result channel.
func done(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}

// async runs fn in its own goroutine and delivers its result once.
func async(fn func() error) <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		ch <- fn()
	}()
	return ch
}

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
