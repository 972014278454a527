package rangefile

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// UnknownSize is reported by Size until the file has been initialized.
const UnknownSize int64 = -1

// State is the lifecycle stage of a File.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed // terminal
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MediaReader is the random access surface consumed by metadata parsers.
// Ranges must be loaded before their bytes are read.
type MediaReader interface {
	Initialize(ctx context.Context) error
	LoadRange(ctx context.Context, start, end int64) error
	ByteAt(offset int64) (byte, error)
	Size() int64
}

// File represents a remote file addressable as a byte array without
// downloading it in full. Ranges are fetched on demand in chunk multiples
// and kept in memory. It also implements io.Reader, io.ReaderAt, io.Seeker
// and io.Closer.
type File struct {
	locator string
	hash    [32]byte

	size    int64 // UnknownSize until probed
	state   State
	initErr error
	closed  bool

	transport Transport
	store     *RangeStore
	fetcher   *Fetcher
	probe     singleflight.Group
	log       zerolog.Logger

	lk sync.RWMutex

	pos   int64 // read position in file
	posLk sync.Mutex

	dlm *Manager
}

func newFile(dlm *Manager, locator string, t Transport) *File {
	f := &File{
		locator:   locator,
		size:      UnknownSize,
		transport: t,
		log:       dlm.logger("file").With().Str("locator", locator).Logger(),
		dlm:       dlm,
	}
	f.store = NewRangeStore(dlm.chunkSize())
	f.fetcher = NewFetcher(f.store, t, dlm.chunkSize(), f.Size, dlm.logger("fetcher").With().Str("locator", locator).Logger())
	f.fetcher.Locator = locator
	f.fetcher.Closed = f.isClosed
	return f
}

func (f *File) isClosed() bool {
	f.lk.RLock()
	defer f.lk.RUnlock()

	return f.closed
}

// Locator returns the source the file was opened from.
func (f *File) Locator() string {
	return f.locator
}

// State returns the current lifecycle state.
func (f *File) State() State {
	f.lk.RLock()
	defer f.lk.RUnlock()

	return f.state
}

// Store gives access to the cached data.
func (f *File) Store() *RangeStore {
	return f.store
}

// Requests returns the number of range fetches issued for this file.
func (f *File) Requests() uint64 {
	return f.fetcher.Requests()
}

var _ MediaReader = (*File)(nil)
