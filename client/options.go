package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/spider/client/download"
	"github.com/adamwoolhether/spider/client/throttle"
)

// Option is a functional option for configuring a [Client] via [Build].
type Option func(*options) error
type options struct {
	cfg               Config
	userAgent         string
	throttle          func(c *Client) (throttle.Throttle, error)
	client            *http.Client
	rt                http.RoundTripper
	noFollowRedirects bool
	logger            *slog.Logger
	tracer            trace.Tracer
	requestID         bool
}

// WithConfig replaces the whole configuration. Zero-valued fields other
// than Session fall back to [DefaultConfig].
func WithConfig(cfg Config) Option {
	return func(o *options) error {
		o.cfg = cfg.withDefaults()
		return nil
	}
}

// WithSession toggles the persistent session. With a session every
// call shares one cookie jar and keep-alive connections; without one
// each call starts from a clean client and closes its connection.
func WithSession(enabled bool) Option {
	return func(o *options) error {
		o.cfg.Session = enabled
		return nil
	}
}

// WithHeaders replaces the default headers sent by calls that don't
// supply their own.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) error {
		if headers == nil {
			return errors.New("headers must not be nil")
		}
		o.cfg.Headers = maps.Clone(headers)
		return nil
	}
}

// WithUserAgent sets the User-Agent among the default headers.
func WithUserAgent(header string) Option {
	return func(o *options) error {
		if header == "" {
			return errors.New("user agent must not be empty")
		}
		o.userAgent = header
		return nil
	}
}

// WithEncodings sets the ordered candidate encodings tried when
// decoding text bodies.
func WithEncodings(encodings ...string) Option {
	return func(o *options) error {
		if len(encodings) == 0 {
			return errors.New("at least one encoding is required")
		}
		o.cfg.Encodings = append([]string(nil), encodings...)
		return nil
	}
}

// WithMaxRetries sets how many attempts a call makes, the first one
// included.
func WithMaxRetries(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("max retries[%d] %w", n, throttle.ErrMustNotBeZero)
		}
		o.cfg.MaxRetries = n
		return nil
	}
}

// WithTimeout sets the overall request timeout on the underlying [http.Client].
func WithTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return errors.New("timeout must not be negative")
		}
		o.cfg.Timeout = d
		return nil
	}
}

// WithThrottle installs a custom throttle, activated before every attempt.
func WithThrottle(t throttle.Throttle) Option {
	return func(o *options) error {
		if t == nil {
			return errors.New("throttle must not be nil")
		}
		o.throttle = func(*Client) (throttle.Throttle, error) { return t, nil }
		return nil
	}
}

// WithDelay pauses for pause on every step-th attempt across all calls.
func WithDelay(step int, pause time.Duration) Option {
	return func(o *options) error {
		d, err := throttle.NewDelay(step, pause)
		if err != nil {
			return err
		}
		o.throttle = func(*Client) (throttle.Throttle, error) { return d, nil }
		return nil
	}
}

// WithRateLimit enables token-bucket rate limiting with the given
// requests per second and burst capacity.
func WithRateLimit(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		o.throttle = func(c *Client) (throttle.Throttle, error) {
			return throttle.NewRate(rps, burst, func() *slog.Logger { return c.logger })
		}
		return nil
	}
}

// WithClient replaces the default [http.Client] used by the [Client].
func WithClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		o.client = hc
		return nil
	}
}

// WithTransport sets a custom [http.RoundTripper] as the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.rt = rt
		return nil
	}
}

// WithNoFollowRedirects prevents the [Client] from following HTTP redirects.
func WithNoFollowRedirects() Option {
	return func(o *options) error {
		o.noFollowRedirects = true
		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Client].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// WithTracer records one span per dispatched call.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		o.tracer = tracer
		return nil
	}
}

// WithRequestID stamps every call with a fresh X-Request-ID header,
// shared by all of its attempts.
func WithRequestID() Option {
	return func(o *options) error {
		o.requestID = true
		return nil
	}
}

// WithExtra attaches a free-form setting, readable via [Client.Extra].
func WithExtra(key, value string) Option {
	return func(o *options) error {
		if key == "" {
			return errors.New("extra key must not be empty")
		}
		if o.cfg.Extra == nil {
			o.cfg.Extra = make(map[string]string)
		}
		o.cfg.Extra[key] = value
		return nil
	}
}

// RequestOption is a functional option for [Client.Request] and every
// call built on it.
type RequestOption func(options *requestOpts) error

type requestOpts struct {
	body        []byte
	hasBody     bool
	contentType *string
	cookies     []*http.Cookie
	headers     map[string][]string
	query       map[string]string
}

// WithPayload sets the JSON-encoded request body.
func WithPayload(body any) RequestOption {
	return func(opts *requestOpts) error {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request payload: %w", err)
		}
		opts.body = b
		opts.hasBody = true
		if opts.contentType == nil {
			ct := "application/json"
			opts.contentType = &ct
		}

		return nil
	}
}

// WithForm sets a URL-encoded form body.
func WithForm(form url.Values) RequestOption {
	return func(opts *requestOpts) error {
		opts.body = []byte(form.Encode())
		opts.hasBody = true
		if opts.contentType == nil {
			ct := "application/x-www-form-urlencoded"
			opts.contentType = &ct
		}

		return nil
	}
}

// WithBody reads r fully and sends it as the request body. Buffering
// lets every retry replay the same bytes.
func WithBody(r io.Reader, contentType string) RequestOption {
	return func(opts *requestOpts) error {
		if r == nil {
			return errors.New("body must not be nil")
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("reading request body: %w", err)
		}
		opts.body = b
		opts.hasBody = true
		if contentType != "" {
			opts.contentType = &contentType
		}

		return nil
	}
}

// WithContentType overrides the Content-Type implied by the body option.
func WithContentType(contentType string) RequestOption {
	return func(opts *requestOpts) error {
		if contentType == "" {
			return errors.New("cannot use empty content type")
		}

		opts.contentType = &contentType

		return nil
	}
}

// WithRequestHeaders sends exactly these headers instead of the
// client's defaults.
func WithRequestHeaders(headers map[string][]string) RequestOption {
	return func(opts *requestOpts) error {
		if headers == nil {
			return errors.New("headers must not be nil")
		}
		opts.headers = headers

		return nil
	}
}

// WithCookies attaches the given cookies to the outgoing request.
func WithCookies(cookies ...*http.Cookie) RequestOption {
	return func(opts *requestOpts) error {
		opts.cookies = cookies

		return nil
	}
}

// WithQuery adds query parameters to the request URL.
func WithQuery(queryKV map[string]string) RequestOption {
	return func(opts *requestOpts) error {
		opts.query = queryKV

		return nil
	}
}

// FetchOption is a functional option for [Client.Text], [Client.JSON]
// and [Client.Download].
type FetchOption func(options *fetchOpts) error

type fetchOpts struct {
	method        Method
	encoding      string
	stripComments bool
	useJSONNum    bool
	requestOpts   []RequestOption
	downloadOpts  []download.Option
}

// WithMethod overrides the verb used by JSON (default POST) and
// Download (default GET). Text always uses GET.
func WithMethod(m Method) FetchOption {
	return func(opts *fetchOpts) error {
		if !m.valid() {
			return fmt.Errorf("%w: %s", ErrUnsupportedMethod, m)
		}
		opts.method = m
		return nil
	}
}

// WithEncoding decodes the body with this encoding only, ignoring the
// client's candidates.
func WithEncoding(name string) FetchOption {
	return func(opts *fetchOpts) error {
		if name == "" {
			return errors.New("encoding must not be empty")
		}
		opts.encoding = name
		return nil
	}
}

// WithStripComments removes every literal "<!--" and "-->" from
// decoded text. The markup between them is kept.
func WithStripComments() FetchOption {
	return func(opts *fetchOpts) error {
		opts.stripComments = true
		return nil
	}
}

// WithJSONNumber tells the JSON decoder to use [json.Decoder.UseNumber],
// preserving number precision as [json.Number] instead of float64.
func WithJSONNumber() FetchOption {
	return func(opts *fetchOpts) error {
		opts.useJSONNum = true
		return nil
	}
}

// WithRequestOptions shapes the request issued by a fetch.
func WithRequestOptions(reqOpts ...RequestOption) FetchOption {
	return func(opts *fetchOpts) error {
		opts.requestOpts = append(opts.requestOpts, reqOpts...)
		return nil
	}
}

func applyFetchOpts(defaultMethod Method, optFns []FetchOption) (fetchOpts, error) {
	settings := fetchOpts{method: defaultMethod}
	for _, opt := range optFns {
		if err := opt(&settings); err != nil {
			return fetchOpts{}, err
		}
	}

	return settings, nil
}
