package rangefile

import "context"

// Variant is one kind of reader. CanHandle must not perform any I/O.
type Variant interface {
	Name() string
	CanHandle(src any) bool
	Open(m *Manager, src any) (MediaReader, error)
}

// DefaultVariants returns the readers known to this package, in selection
// order.
func DefaultVariants() []Variant {
	return []Variant{bufferVariant{}, s3Variant{}, httpVariant{}}
}

// Open returns a reader for src from the first variant accepting it.
// Remote locators already open return the same File.
func (m *Manager) Open(src any) (MediaReader, error) {
	variants := m.Variants
	if variants == nil {
		variants = DefaultVariants()
	}
	for _, v := range variants {
		if v.CanHandle(src) {
			log := m.logger("manager")
			log.Debug().Str("variant", v.Name()).Msg("selected reader")
			return v.Open(m, src)
		}
	}
	return nil, &UnsupportedLocatorError{Locator: src}
}

type bufferVariant struct{}

func (bufferVariant) Name() string           { return "buffer" }
func (bufferVariant) CanHandle(src any) bool { return CanHandleBuffer(src) }

func (bufferVariant) Open(m *Manager, src any) (MediaReader, error) {
	return NewBufferFile(src.([]byte)), nil
}

type httpVariant struct{}

func (httpVariant) Name() string           { return "http" }
func (httpVariant) CanHandle(src any) bool { return CanHandleHTTP(src) }

func (httpVariant) Open(m *Manager, src any) (MediaReader, error) {
	u := src.(string)
	return m.openRemote(u, func() (Transport, error) {
		return m.HTTPTransport(u), nil
	})
}

type s3Variant struct{}

func (s3Variant) Name() string           { return "s3" }
func (s3Variant) CanHandle(src any) bool { return CanHandleS3(src) }

func (s3Variant) Open(m *Manager, src any) (MediaReader, error) {
	u := src.(string)
	return m.openRemote(u, func() (Transport, error) {
		return m.S3Transport(context.Background(), u)
	})
}
