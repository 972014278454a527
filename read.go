package rangefile

import (
	"context"
	"errors"
	"io"
)

// Initialize discovers the file size. Concurrent calls share a single
// probe. Once it failed the file stays failed, and the same error is
// returned without further network activity.
func (f *File) Initialize(ctx context.Context) error {
	f.lk.Lock()
	switch {
	case f.closed:
		f.lk.Unlock()
		return ErrClosed
	case f.state == StateReady:
		f.lk.Unlock()
		return nil
	case f.state == StateFailed:
		err := f.initErr
		f.lk.Unlock()
		return err
	}
	f.state = StateInitializing
	f.lk.Unlock()

	_, err, _ := f.probe.Do("size", func() (any, error) {
		f.lk.RLock()
		state, size, initErr := f.state, f.size, f.initErr
		f.lk.RUnlock()

		// a previous probe may have completed in the meantime
		switch state {
		case StateReady:
			return size, nil
		case StateFailed:
			return nil, initErr
		}

		size, err := f.transport.ProbeSize(ctx)

		f.lk.Lock()
		defer f.lk.Unlock()

		if err != nil {
			f.log.Error().Err(err).Msg("failed to get file size")
			f.state = StateFailed
			f.initErr = err
			return nil, err
		}

		f.log.Debug().Int64("size", size).Msg("file ready")
		f.size = size
		f.state = StateReady
		return size, nil
	})
	return err
}

// InitializeAsync runs Initialize in the background. The channel receives
// exactly one value and is then closed.
func (f *File) InitializeAsync(ctx context.Context) <-chan error {
	return async(func() error {
		return f.Initialize(ctx)
	})
}

// Size returns the size found by Initialize, or UnknownSize.
func (f *File) Size() int64 {
	f.lk.RLock()
	defer f.lk.RUnlock()

	return f.size
}

// GetSize initializes the file if needed and returns its size.
func (f *File) GetSize(ctx context.Context) (int64, error) {
	if err := f.Initialize(ctx); err != nil {
		return 0, err
	}
	return f.Size(), nil
}

// LoadRange makes bytes [start, end] available to ByteAt.
func (f *File) LoadRange(ctx context.Context, start, end int64) error {
	return <-f.LoadRangeAsync(ctx, start, end)
}

// LoadRangeAsync is the non-blocking form of LoadRange. The channel
// receives exactly one value and is then closed. Several loads may be in
// flight at once; overlapping ones are not merged.
func (f *File) LoadRangeAsync(ctx context.Context, start, end int64) <-chan error {
	f.lk.RLock()
	closed := f.closed
	f.lk.RUnlock()

	if closed {
		return done(ErrClosed)
	}
	return f.fetcher.EnsureRange(ctx, Range{Start: start, End: end})
}

// ByteAt returns the byte at offset, which must have been loaded before.
func (f *File) ByteAt(offset int64) (byte, error) {
	return f.store.ByteAt(offset)
}

// ReadAt loads the range covered by p if needed and copies it.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.ReadAtContext(context.Background(), p, off)
}

// ReadAtContext is ReadAt with a context.
func (f *File) ReadAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrInvalidRange
	}

	size, err := f.GetSize(ctx)
	if err != nil {
		return 0, err
	}

	if off >= size {
		return 0, io.EOF
	}
	var eof error
	if off+int64(len(p)) > size {
		// reduce p to max len
		p = p[:size-off]
		eof = io.EOF
	}
	if len(p) == 0 {
		return 0, eof
	}

	err = f.LoadRange(ctx, off, off+int64(len(p))-1)
	if err != nil {
		return 0, err
	}

	err = f.store.BytesAt(p, off)
	if err != nil {
		return 0, err
	}
	return len(p), eof
}

// Seek in file for next Read() operation. io.SeekEnd requires the size and
// will initialize the file if needed.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.posLk.Lock()
	defer f.posLk.Unlock()

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.pos + offset
	case io.SeekEnd:
		size, err := f.GetSize(context.Background())
		if err != nil {
			return f.pos, err
		}
		pos = size + offset
	default:
		return f.pos, errors.New("invalid seek whence")
	}

	if pos < 0 {
		return f.pos, errors.New("invalid seek")
	}
	f.pos = pos
	return f.pos, nil
}

// Read reads from the current position and advances it.
func (f *File) Read(p []byte) (int, error) {
	f.posLk.Lock()
	defer f.posLk.Unlock()

	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}
