package rangefile

import (
	"context"
	"crypto/sha256"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Manager opens remote files and holds the settings shared by them.
type Manager struct {
	// Client is the http client used to access urls
	Client *http.Client

	// ChunkSize is the granularity of range fetches. Default is 1024
	ChunkSize int64

	// Logger receives debug and error output, nil disables logging
	Logger *zerolog.Logger

	// Limiter, if set, throttles every outbound request
	Limiter *rate.Limiter

	// UserAgent and Headers are added to every HTTP request
	UserAgent string
	Headers   map[string]string

	// S3 is the client used for s3:// locators. If nil, one is built from
	// S3Config on first use.
	S3       S3API
	S3Config S3Config

	// Variants are tried in order by Open
	Variants []Variant

	openFiles   map[[32]byte]*File
	openFilesLk sync.RWMutex
	s3Lk        sync.Mutex
}

// DefaultManager is used by the package level Open.
var DefaultManager = NewManager()

func NewManager() *Manager {
	return &Manager{
		Client:    http.DefaultClient,
		ChunkSize: DefaultChunkSize,
		Variants:  DefaultVariants(),
		openFiles: make(map[[32]byte]*File),
	}
}

func (m *Manager) chunkSize() int64 {
	if m.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return m.ChunkSize
}

func (m *Manager) logger(component string) zerolog.Logger {
	if m.Logger == nil {
		return zerolog.Nop()
	}
	return m.Logger.With().Str("component", component).Logger()
}

// NewFile returns a File reading through t. The file is not tracked by the
// manager, so opening the same locator twice gives two independent files.
func (m *Manager) NewFile(locator string, t Transport) *File {
	return newFile(m, locator, t)
}

// HTTPTransport returns the transport used for an http(s) URL.
func (m *Manager) HTTPTransport(u string) Transport {
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &httpTransport{
		client:    client,
		url:       u,
		limiter:   m.Limiter,
		userAgent: m.UserAgent,
		headers:   m.Headers,
		log:       m.logger("http"),
	}
}

// S3Transport returns the transport used for an s3://bucket/key locator.
func (m *Manager) S3Transport(ctx context.Context, u string) (Transport, error) {
	client, err := m.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	return newS3Transport(client, u, m.Limiter, m.logger("s3"))
}

func (m *Manager) s3Client(ctx context.Context) (S3API, error) {
	m.s3Lk.Lock()
	defer m.s3Lk.Unlock()

	if m.S3 != nil {
		return m.S3, nil
	}
	client, err := NewS3Client(ctx, m.S3Config)
	if err != nil {
		return nil, err
	}
	m.S3 = client
	return client, nil
}

// openRemote returns the already open File for locator, or creates one
// with a transport from mk. A File whose initialization failed is replaced
// so a transient error does not stick to the locator.
func (m *Manager) openRemote(locator string, mk func() (Transport, error)) (*File, error) {
	hash := sha256.Sum256([]byte(locator))

	m.openFilesLk.RLock()
	f, ok := m.openFiles[hash]
	m.openFilesLk.RUnlock()

	// if found, end there
	if ok && f.State() != StateFailed {
		return f, nil
	}

	m.openFilesLk.Lock()
	defer m.openFilesLk.Unlock()

	// retry (just in case)
	if f, ok = m.openFiles[hash]; ok && f.State() != StateFailed {
		return f, nil
	}
	if m.openFiles == nil {
		m.openFiles = make(map[[32]byte]*File)
	}

	t, err := mk()
	if err != nil {
		return nil, err
	}

	f = newFile(m, locator, t)
	f.hash = hash
	m.openFiles[hash] = f

	return f, nil
}

// OpenURL opens a remote locator and returns the File serving it.
func (m *Manager) OpenURL(u string) (*File, error) {
	r, err := m.Open(u)
	if err != nil {
		return nil, err
	}
	f, ok := r.(*File)
	if !ok {
		return nil, &UnsupportedLocatorError{Locator: u}
	}
	return f, nil
}

// Open opens src with DefaultManager.
func Open(src any) (MediaReader, error) {
	return DefaultManager.Open(src)
}
