package rangefile

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// epoch value sent as If-Modified-Since so no cache along the way answers
// from a stale copy
const bypassModifiedSince = "Sat, 01 Jan 1970 00:00:00 GMT"

// CanHandleHTTP reports whether src is an http or https URL.
func CanHandleHTTP(src any) bool {
	s, ok := src.(string)
	if !ok {
		return false
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return true
	}
	return false
}

// httpTransport fetches byte ranges of a single URL.
type httpTransport struct {
	client    *http.Client
	url       string
	limiter   *rate.Limiter
	userAgent string
	headers   map[string]string
	log       zerolog.Logger
}

func (t *httpTransport) newRequest(ctx context.Context, method string) (*http.Request, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, t.url, nil)
	if err != nil {
		return nil, err
	}

	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	req.Header.Set("If-Modified-Since", bypassModifiedSince)
	req.Header.Set("Cache-Control", "no-cache")
	if id := requestID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	return req, nil
}

func (t *httpTransport) fail(op string, resp *http.Response, err error) error {
	te := &TransportError{Op: op, Locator: t.url, Err: err}
	if resp != nil {
		te.StatusCode = resp.StatusCode
		te.Status = resp.Status
	}
	return te
}

// ProbeSize runs a HEAD request and returns the Content-Length.
func (t *httpTransport) ProbeSize(ctx context.Context) (int64, error) {
	req, err := t.newRequest(ctx, http.MethodHead)
	if err != nil {
		return 0, t.fail(OpProbeSize, nil, err)
	}

	t.log.Debug().Str("url", t.url).Msg("probing size")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, t.fail(OpProbeSize, nil, err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return 0, t.fail(OpProbeSize, resp, nil)
	}

	if resp.ContentLength >= 0 {
		return resp.ContentLength, nil
	}

	cl := resp.Header.Get("Content-Length")
	if cl == "" {
		return 0, t.fail(OpProbeSize, resp, errors.New("HTTP HEAD response has no Content-Length"))
	}
	size, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || size < 0 {
		return 0, t.fail(OpProbeSize, resp, errors.New("invalid Content-Length "+strconv.Quote(cl)))
	}
	return size, nil
}

// GetRange runs a GET restricted to r. Servers ignoring the Range header
// answer 200 with the whole body, in which case the leading bytes are
// dropped.
func (t *httpTransport) GetRange(ctx context.Context, r Range) ([]byte, error) {
	req, err := t.newRequest(ctx, http.MethodGet)
	if err != nil {
		return nil, t.fail(OpGetRange, nil, err)
	}
	req.Header.Set("Range", r.Header())

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, t.fail(OpGetRange, nil, err)
	}
	defer resp.Body.Close()

	want := resp.ContentLength
	switch resp.StatusCode {
	case http.StatusPartialContent:
	case http.StatusOK:
		t.log.Debug().Str("url", t.url).Msg("server ignored Range, skipping leading data")
		if err := dropDataCount(resp.Body, r.Start); err != nil {
			return nil, t.fail(OpGetRange, resp, err)
		}
		if want >= 0 {
			want = max(want-r.Start, 0)
		}
	default:
		return nil, t.fail(OpGetRange, resp, nil)
	}

	b, err := readRange(resp.Body, r, want)
	if err != nil {
		return nil, t.fail(OpGetRange, resp, err)
	}
	return b, nil
}

// dropDataCount reads and discards cnt bytes from body.
func dropDataCount(body io.Reader, cnt int64) error {
	if cnt <= 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, body, cnt)
	return err
}

// readRange reads up to r.Len() bytes. want is the body length announced
// by the response, or -1 when none was sent. A body ending before want
// bytes (or before r.Len() bytes, whichever is smaller) fails with
// io.ErrUnexpectedEOF; without an announced length a short body means end
// of file.
func readRange(body io.Reader, r Range, want int64) ([]byte, error) {
	buf := make([]byte, r.Len())
	n, err := io.ReadFull(body, buf)
	if want >= 0 && int64(n) < min(want, r.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
