package rangefile

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// S3API is the subset of *s3.Client used to read objects.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config selects how the default S3 client is built.
type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// NewS3Client builds an S3 client from the default AWS configuration chain.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, config.WithRegion(c.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.DisableLogOutputChecksumValidationSkipped = true
		o.UsePathStyle = c.PathStyle
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
	}), nil
}

// CanHandleS3 reports whether src is an s3://bucket/key locator.
func CanHandleS3(src any) bool {
	s, ok := src.(string)
	if !ok {
		return false
	}
	_, _, err := parseS3URL(s)
	return err == nil
}

func parseS3URL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if !strings.EqualFold(u.Scheme, "s3") {
		return "", "", fmt.Errorf("not an s3 URL: %s", raw)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("s3 URL needs a bucket and a key: %s", raw)
	}
	return u.Host, key, nil
}

// s3Transport fetches byte ranges of a single object.
type s3Transport struct {
	client  S3API
	locator string
	bucket  string
	key     string
	limiter *rate.Limiter
	log     zerolog.Logger
}

func newS3Transport(client S3API, locator string, limiter *rate.Limiter, log zerolog.Logger) (*s3Transport, error) {
	bucket, key, err := parseS3URL(locator)
	if err != nil {
		return nil, err
	}
	return &s3Transport{
		client:  client,
		locator: locator,
		bucket:  bucket,
		key:     key,
		limiter: limiter,
		log:     log,
	}, nil
}

func (t *s3Transport) wait(ctx context.Context) error {
	if t.limiter == nil {
		return nil
	}
	return t.limiter.Wait(ctx)
}

func (t *s3Transport) fail(op string, err error) error {
	te := &TransportError{Op: op, Locator: t.locator, Err: err}

	var sc interface{ HTTPStatusCode() int }
	if errors.As(err, &sc) {
		te.StatusCode = sc.HTTPStatusCode()
		te.Status = fmt.Sprintf("%d %s", te.StatusCode, http.StatusText(te.StatusCode))
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		te.Status = ae.ErrorCode()
	}
	return te
}

// ProbeSize returns the object's ContentLength.
func (t *s3Transport) ProbeSize(ctx context.Context) (int64, error) {
	if err := t.wait(ctx); err != nil {
		return 0, t.fail(OpProbeSize, err)
	}

	t.log.Debug().Str("bucket", t.bucket).Str("key", t.key).Msg("probing size")

	out, err := t.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key),
	})
	if err != nil {
		return 0, t.fail(OpProbeSize, err)
	}
	if out.ContentLength == nil {
		return 0, t.fail(OpProbeSize, errors.New("object size is nil"))
	}
	return *out.ContentLength, nil
}

// GetRange runs GetObject restricted to r.
func (t *s3Transport) GetRange(ctx context.Context, r Range) ([]byte, error) {
	if err := t.wait(ctx); err != nil {
		return nil, t.fail(OpGetRange, err)
	}

	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key),
		Range:  aws.String(r.Header()),
	})
	if err != nil {
		return nil, t.fail(OpGetRange, err)
	}
	defer out.Body.Close()

	want := int64(-1)
	if out.ContentLength != nil {
		want = *out.ContentLength
	}
	b, err := readRange(out.Body, r, want)
	if err != nil {
		return nil, t.fail(OpGetRange, err)
	}
	return b, nil
}
