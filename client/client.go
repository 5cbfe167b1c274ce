package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/net/publicsuffix"

	"github.com/adamwoolhether/spider/client/throttle"
)

// Client is the request dispatcher. Every call funnels through one
// retry loop that activates the throttle before each attempt and
// returns as soon as a 200 arrives.
//
// A Client is meant for use by one goroutine at a time: its throttle
// counter and session are not synchronised.
type Client struct {
	c         *http.Client
	logger    *slog.Logger
	tracer    trace.Tracer
	throttle  throttle.Throttle
	cfg       Config
	requestID bool
}

// Response is a fully read 200 response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
	Attempts   int
}

// Build constructs a Client from [DefaultConfig] and the given options.
func Build(optFns ...Option) (*Client, error) {
	opts := options{cfg: DefaultConfig()}
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	cfg := opts.cfg.clone()
	if opts.userAgent != "" {
		cfg.Headers["User-Agent"] = opts.userAgent
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	client := &Client{
		c:         &http.Client{},
		logger:    slog.Default(),
		tracer:    noop.NewTracerProvider().Tracer("no-op tracer"),
		throttle:  throttle.Noop{},
		cfg:       cfg,
		requestID: opts.requestID,
	}

	if opts.client != nil {
		client.c = opts.client
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.tracer != nil {
		client.tracer = opts.tracer
	}

	if cfg.Timeout > 0 {
		client.c.Timeout = cfg.Timeout
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	switch {
	case opts.rt != nil:
		client.c.Transport = opts.rt
	case client.c.Transport == nil:
		client.c.Transport = http.DefaultTransport
	}

	if cfg.Session && client.c.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
		client.c.Jar = jar
	}

	if opts.throttle != nil {
		t, err := opts.throttle(client)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		client.throttle = t
	}

	return client, nil
}

// Config returns a copy of the client's effective configuration.
func (c *Client) Config() Config {
	return c.cfg.clone()
}

// Extra returns a setting attached with [WithExtra] or Config.Extra.
func (c *Client) Extra(key string) (string, bool) {
	v, ok := c.cfg.Extra[key]
	return v, ok
}

// Throttle returns the throttle activated before every attempt.
func (c *Client) Throttle() throttle.Throttle {
	return c.throttle
}

// Request instantiates an *http.Request with the provided information.
// When no headers are supplied via WithRequestHeaders the client's
// default headers are sent.
func (c *Client) Request(ctx context.Context, rawURL string, method Method, opts ...RequestOption) (*http.Request, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url must not be empty", ErrInvalidArgument)
	}
	if !method.valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	var settings requestOpts
	for _, opt := range opts {
		err := opt(&settings)
		if err != nil {
			return nil, err
		}
	}

	var body io.Reader
	if settings.hasBody {
		body = bytes.NewReader(settings.body)
	}

	if settings.headers != nil {
		ctx = context.WithValue(ctx, callerHeadersKey{}, true)
	}

	req, err := http.NewRequestWithContext(ctx, method.String(), rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("instantiating request: %w", err)
	}

	if len(settings.query) > 0 {
		q := req.URL.Query()
		for k, v := range settings.query {
			q.Add(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	if settings.headers == nil {
		c.setDefaultHeaders(req.Header)
	}
	for k, v := range settings.headers {
		for _, element := range v {
			req.Header.Add(k, element)
		}
	}

	if settings.contentType != nil {
		req.Header.Set("Content-Type", *settings.contentType)
	}

	for _, cookie := range settings.cookies {
		req.AddCookie(cookie)
	}

	return req, nil
}

// Do runs req through the retry loop and returns the first 200
// response with its body read. A request without headers is sent with
// the client's default headers, unless it was built by Request with
// an explicit, possibly empty, WithRequestHeaders.
func (c *Client) Do(req *http.Request) (*Response, error) {
	resp, attempts, err := c.dispatch(req)
	if err != nil {
		return nil, err
	}
	defer c.closeBody(resp)

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       b,
		URL:        req.URL.String(),
		Attempts:   attempts,
	}, nil
}

// Dispatch validates a verb given by name and runs the call through
// the retry loop. Both rawURL and method must be non-empty.
func (c *Client) Dispatch(ctx context.Context, rawURL, method string, opts ...RequestOption) (*Response, error) {
	if rawURL == "" || method == "" {
		return nil, fmt.Errorf("%w: url and method are required", ErrInvalidArgument)
	}

	m, err := ParseMethod(method)
	if err != nil {
		return nil, err
	}

	return c.send(ctx, m, rawURL, opts...)
}

// Stream runs the call through the retry loop and returns the open
// 200 response. The caller must close its body.
func (c *Client) Stream(ctx context.Context, rawURL string, method Method, opts ...RequestOption) (*http.Response, error) {
	req, err := c.Request(ctx, rawURL, method, opts...)
	if err != nil {
		return nil, err
	}

	resp, _, err := c.dispatch(req)
	return resp, err
}

func (c *Client) Get(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, MethodGet, rawURL, opts...)
}

func (c *Client) Options(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, MethodOptions, rawURL, opts...)
}

func (c *Client) Head(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, MethodHead, rawURL, opts...)
}

func (c *Client) Post(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, MethodPost, rawURL, opts...)
}

func (c *Client) Put(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, MethodPut, rawURL, opts...)
}

func (c *Client) Patch(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, MethodPatch, rawURL, opts...)
}

func (c *Client) Delete(ctx context.Context, rawURL string, opts ...RequestOption) (*Response, error) {
	return c.send(ctx, MethodDelete, rawURL, opts...)
}

func (c *Client) send(ctx context.Context, method Method, rawURL string, opts ...RequestOption) (*Response, error) {
	req, err := c.Request(ctx, rawURL, method, opts...)
	if err != nil {
		return nil, err
	}

	return c.Do(req)
}

// dispatch is the retry loop. It makes at most MaxRetries attempts,
// activating the throttle before each one, and hands back the first
// 200 response unread. Non-200 responses are drained and closed.
// Transport errors end the loop immediately.
func (c *Client) dispatch(req *http.Request) (*http.Response, int, error) {
	if req == nil || req.URL == nil {
		return nil, 0, fmt.Errorf("%w: request must not be nil", ErrInvalidArgument)
	}

	if err := replayable(req); err != nil {
		return nil, 0, err
	}

	target := req.URL.String()
	ctx, span := c.tracer.Start(req.Context(), "spider.dispatch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", target),
			attribute.Int("spider.max_retries", c.cfg.MaxRetries),
		),
	)
	defer span.End()

	var requestID string
	if c.requestID {
		requestID = uuid.NewString()
		span.SetAttributes(attribute.String("spider.request_id", requestID))
	}

	hc := c.httpClient()

	var (
		lastStatus int
		lastBody   string
	)
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		c.throttle.Activate(ctx)

		out, err := c.prepare(ctx, req, requestID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, attempt, err
		}

		c.logger.Debug("dispatching request", "method", req.Method, "url", target, "attempt", attempt, "request_id", requestID)

		resp, err := hc.Do(out)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "transport failure")
			return nil, attempt, &TransportError{Method: req.Method, URL: target, Err: err}
		}

		span.AddEvent("attempt", trace.WithAttributes(
			attribute.Int("spider.attempt", attempt),
			attribute.Int("http.response.status_code", resp.StatusCode),
		))

		if resp.StatusCode == http.StatusOK {
			span.SetAttributes(
				attribute.Int("http.response.status_code", resp.StatusCode),
				attribute.Int("spider.attempts", attempt),
			)
			return resp, attempt, nil
		}

		lastStatus = resp.StatusCode
		lastBody = c.discard(resp)

		c.logger.Warn("unexpected status", "method", req.Method, "url", target, "status", lastStatus, "attempt", attempt, "max_retries", c.cfg.MaxRetries)
	}

	statusErr := &StatusError{
		StatusCode: lastStatus,
		URL:        target,
		Attempts:   c.cfg.MaxRetries,
		Body:       lastBody,
		Err:        ErrUnexpectedStatusCode,
	}
	if lastStatus == http.StatusUnauthorized || lastStatus == http.StatusForbidden {
		statusErr.Err = errors.Join(ErrUnexpectedStatusCode, ErrAuthFailure)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", lastStatus))
	span.SetStatus(codes.Error, statusErr.Error())

	return nil, c.cfg.MaxRetries, statusErr
}

// prepare returns the request to send for one attempt, with its own
// copy of the body.
func (c *Client) prepare(ctx context.Context, req *http.Request, requestID string) (*http.Request, error) {
	out := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		out.Body = body
	}

	if len(out.Header) == 0 && !callerHeaders(ctx) {
		c.setDefaultHeaders(out.Header)
	}
	if requestID != "" {
		out.Header.Set("X-Request-ID", requestID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out.Header))

	if !c.cfg.Session {
		out.Close = true
	}

	return out, nil
}

// callerHeadersKey marks a request whose headers were chosen by the
// caller, so an empty set stays empty.
type callerHeadersKey struct{}

func callerHeaders(ctx context.Context) bool {
	v, _ := ctx.Value(callerHeadersKey{}).(bool)
	return v
}

// httpClient returns the shared client for a session, or a fresh
// jar-less client per call otherwise.
func (c *Client) httpClient() *http.Client {
	if c.cfg.Session {
		return c.c
	}

	return &http.Client{
		Transport:     c.c.Transport,
		CheckRedirect: c.c.CheckRedirect,
		Timeout:       c.c.Timeout,
	}
}

func (c *Client) setDefaultHeaders(h http.Header) {
	for _, k := range slices.Sorted(maps.Keys(c.cfg.Headers)) {
		h.Set(k, c.cfg.Headers[k])
	}
}

// discard reads up to maxErrBodySize of an unwanted response for error
// reporting, then drains and closes it.
func (c *Client) discard(resp *http.Response) string {
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrBodySize))
	if err != nil {
		b = []byte("unable to read body")
	}
	c.closeBody(resp)

	return string(b)
}

func (c *Client) closeBody(resp *http.Response) {
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		c.logger.Error("failed to discard unused body", "error", err)
	}
	if err := resp.Body.Close(); err != nil {
		c.logger.Error("failed to close response body", "error", err)
	}
}

// replayable buffers a body that cannot be re-read so that retries
// send the same bytes.
func replayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}

	b, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("buffering request body: %w", err)
	}
	if err := req.Body.Close(); err != nil {
		return fmt.Errorf("closing request body: %w", err)
	}

	req.Body = io.NopCloser(bytes.NewReader(b))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	req.ContentLength = int64(len(b))

	return nil
}

// URL joins base with a path and optional query for use in Request.
func URL(base, path string, query map[string]string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}

	u = u.JoinPath(path)
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Add(k, v)
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}
