package rangefile

// Close drops the cached data and removes the file from its manager. New
// loads fail with ErrClosed, and loads already in flight complete with
// ErrClosed without storing their data.
func (f *File) Close() error {
	f.lk.Lock()
	if f.closed {
		f.lk.Unlock()
		return nil
	}
	f.closed = true
	f.lk.Unlock()

	f.dlm.openFilesLk.Lock()
	if f.dlm.openFiles[f.hash] == f {
		delete(f.dlm.openFiles, f.hash)
	}
	f.dlm.openFilesLk.Unlock()

	f.store.Reset()
	f.log.Debug().Msg("closed")

	return nil
}
