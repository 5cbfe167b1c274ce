package client_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/spider/client"
	"github.com/adamwoolhether/spider/client/throttle"
)

// roundTripperFunc adapts a func into an http.RoundTripper.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// statusTransport answers every request with the next status in the
// list, repeating the last one, and counts the calls.
func statusTransport(calls *int32, statuses ...int) http.RoundTripper {
	return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		n := int(atomic.AddInt32(calls, 1))
		status := statuses[len(statuses)-1]
		if n <= len(statuses) {
			status = statuses[n-1]
		}

		return &http.Response{
			StatusCode: status,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader(fmt.Sprintf("attempt %d", n))),
			Request:    r,
		}, nil
	})
}

// recordingThrottle counts activations.
type recordingThrottle struct {
	activations int
}

func (rt *recordingThrottle) Activate(context.Context) { rt.activations++ }

func TestClient_DefaultHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != client.DefaultUserAgent {
			t.Errorf("expected default User-Agent, got %q", ua)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := c.Get(t.Context(), ts.URL); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

func TestClient_WithUserAgent(t *testing.T) {
	expectedUA := "TestUserAgent/1.0"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.Header.Get("User-Agent")
		if ua != expectedUA {
			t.Errorf("expected User-Agent %q, got %q", expectedUA, ua)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c, err := client.Build(client.WithUserAgent(expectedUA), client.WithMaxRetries(1))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := c.Get(t.Context(), ts.URL); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

func TestClient_WithHeadersReplacesDefaults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Custom"); got != "yes" {
			t.Errorf("expected X-Custom header, got %q", got)
		}
		if ua := r.Header.Get("User-Agent"); ua == client.DefaultUserAgent {
			t.Error("default User-Agent should have been replaced")
		}
	}))
	defer ts.Close()

	c, err := client.Build(client.WithHeaders(map[string]string{"X-Custom": "yes"}))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := c.Get(t.Context(), ts.URL); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

func TestClient_RequestHeadersSkipDefaults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/plain" {
			t.Errorf("expected Accept header, got %q", got)
		}
		if ua := r.Header.Get("User-Agent"); ua == client.DefaultUserAgent {
			t.Error("caller headers should not be merged with defaults")
		}
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = c.Get(t.Context(), ts.URL, client.WithRequestHeaders(map[string][]string{"Accept": {"text/plain"}}))
	if err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

func TestClient_EmptyRequestHeadersSkipDefaults(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer ts.Close()

	c, err := client.Build(client.WithMaxRetries(2))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := c.Get(t.Context(), ts.URL, client.WithRequestHeaders(map[string][]string{})); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if gotUA == client.DefaultUserAgent {
		t.Error("an explicit empty header set should not pick up the default headers")
	}

	// A bare request that never went through Request still gets them.
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if _, err := c.Do(req); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if gotUA != client.DefaultUserAgent {
		t.Errorf("expected default user agent on a bare request, got %q", gotUA)
	}
}

func TestClient_RetryExhaustion(t *testing.T) {
	for _, retries := range []int{1, 2, 3, 5, 8} {
		t.Run(fmt.Sprintf("max retries %d", retries), func(t *testing.T) {
			var calls int32
			th := &recordingThrottle{}

			c, err := client.Build(
				client.WithTransport(statusTransport(&calls, http.StatusInternalServerError)),
				client.WithMaxRetries(retries),
				client.WithThrottle(th),
			)
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			_, err = c.Get(t.Context(), "http://spider.test/resource")

			var statusErr *client.StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected *StatusError, got %T: %v", err, err)
			}
			if !errors.Is(err, client.ErrUnexpectedStatusCode) {
				t.Errorf("expected ErrUnexpectedStatusCode, got %v", err)
			}
			if statusErr.StatusCode != http.StatusInternalServerError {
				t.Errorf("expected status 500, got %d", statusErr.StatusCode)
			}
			if statusErr.URL != "http://spider.test/resource" {
				t.Errorf("expected url in error, got %q", statusErr.URL)
			}
			if statusErr.Attempts != retries {
				t.Errorf("expected %d attempts in error, got %d", retries, statusErr.Attempts)
			}
			if want := fmt.Sprintf("attempt %d", retries); statusErr.Body != want {
				t.Errorf("expected last body %q, got %q", want, statusErr.Body)
			}
			if int(calls) != retries {
				t.Errorf("expected %d calls, got %d", retries, calls)
			}
			if th.activations != retries {
				t.Errorf("expected %d throttle activations, got %d", retries, th.activations)
			}
		})
	}
}

func TestClient_RetryThenSuccess(t *testing.T) {
	const retries = 5

	for k := range retries {
		t.Run(fmt.Sprintf("%d failures", k), func(t *testing.T) {
			statuses := make([]int, 0, k+1)
			for range k {
				statuses = append(statuses, http.StatusBadGateway)
			}
			statuses = append(statuses, http.StatusOK)

			var calls int32
			c, err := client.Build(
				client.WithTransport(statusTransport(&calls, statuses...)),
				client.WithMaxRetries(retries),
			)
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			resp, err := c.Get(t.Context(), "http://spider.test/")
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}

			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected 200, got %d", resp.StatusCode)
			}
			if int(calls) != k+1 || resp.Attempts != k+1 {
				t.Errorf("expected %d calls, got %d (attempts %d)", k+1, calls, resp.Attempts)
			}
			if want := fmt.Sprintf("attempt %d", k+1); string(resp.Body) != want {
				t.Errorf("expected body %q, got %q", want, resp.Body)
			}
		})
	}
}

func TestClient_NonOKSuccessCodesAreRetried(t *testing.T) {
	var calls int32
	c, err := client.Build(client.WithTransport(statusTransport(&calls, http.StatusNoContent, http.StatusOK)))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := c.Get(t.Context(), "http://spider.test/"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 204 to be retried, got %d calls", calls)
	}
}

func TestClient_Dispatch_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		url    string
		method string
		expErr error
	}{
		{name: "empty url", url: "", method: "get", expErr: client.ErrInvalidArgument},
		{name: "empty method", url: "http://spider.test", method: "", expErr: client.ErrInvalidArgument},
		{name: "unknown method", url: "http://spider.test", method: "unknown", expErr: client.ErrUnsupportedMethod},
		{name: "connect is not bound", url: "http://spider.test", method: "CONNECT", expErr: client.ErrUnsupportedMethod},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			th := &recordingThrottle{}
			c, err := client.Build(
				client.WithTransport(statusTransport(&calls, http.StatusOK)),
				client.WithThrottle(th),
			)
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			_, err = c.Dispatch(t.Context(), tc.url, tc.method)
			if !errors.Is(err, tc.expErr) {
				t.Errorf("expected %v, got %v", tc.expErr, err)
			}
			if calls != 0 || th.activations != 0 {
				t.Errorf("expected no network call, got %d calls and %d activations", calls, th.activations)
			}
		})
	}
}

func TestClient_Dispatch_CaseInsensitive(t *testing.T) {
	var got string
	c, err := client.Build(client.WithTransport(roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		got = r.Method
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: make(http.Header)}, nil
	})))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := c.Dispatch(t.Context(), "http://spider.test", "DeLeTe"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if got != http.MethodDelete {
		t.Errorf("expected DELETE, got %s", got)
	}
}

func TestClient_Verbs(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Method", r.Method)
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	type verbFn func(context.Context, string, ...client.RequestOption) (*client.Response, error)
	testCases := []struct {
		method string
		fn     verbFn
	}{
		{http.MethodGet, c.Get},
		{http.MethodOptions, c.Options},
		{http.MethodHead, c.Head},
		{http.MethodPost, c.Post},
		{http.MethodPut, c.Put},
		{http.MethodPatch, c.Patch},
		{http.MethodDelete, c.Delete},
	}

	for _, tc := range testCases {
		t.Run(tc.method, func(t *testing.T) {
			resp, err := tc.fn(t.Context(), ts.URL)
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if got := resp.Header.Get("X-Method"); got != tc.method {
				t.Errorf("expected server to see %s, got %s", tc.method, got)
			}
		})
	}
}

func TestClient_TransportErrorNotRetried(t *testing.T) {
	boom := errors.New("connection refused")
	var calls int32

	c, err := client.Build(client.WithTransport(roundTripperFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	})))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = c.Get(t.Context(), "http://spider.test/")

	if !errors.Is(err, client.ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected underlying error to be reachable, got %v", err)
	}
	if errors.Is(err, client.ErrUnexpectedStatusCode) {
		t.Error("transport failure must not look like a status error")
	}
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}

func TestClient_WithTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	c, err := client.Build(client.WithTimeout(50 * time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = c.Get(t.Context(), ts.URL)

	var transportErr *client.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if transportErr.Method != http.MethodGet {
		t.Errorf("expected GET in error, got %s", transportErr.Method)
	}
}

func TestClient_WithTimeoutNegative(t *testing.T) {
	if _, err := client.Build(client.WithTimeout(-time.Second)); err == nil {
		t.Error("expected error for negative timeout")
	}
}

func TestClient_BodyReplayedOnRetry(t *testing.T) {
	var bodies []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = c.Post(t.Context(), ts.URL, client.WithPayload(map[string]string{"k": "v"}))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	want := []string{`{"k":"v"}`, `{"k":"v"}`, `{"k":"v"}`}
	if diff := cmp.Diff(want, bodies); diff != "" {
		t.Errorf("bodies mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Do_RawRequestBodyReplayed(t *testing.T) {
	var bodies []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPut, ts.URL, io.NopCloser(strings.NewReader("raw")))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	if _, err := c.Do(req); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if diff := cmp.Diff([]string{"raw", "raw"}, bodies); diff != "" {
		t.Errorf("bodies mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Do_InjectsDefaultHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != client.DefaultUserAgent {
			t.Errorf("expected default User-Agent, got %q", ua)
		}
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	if _, err := c.Do(req); err != nil {
		t.Errorf("expected no error, got: %v", err)
	}
}

func TestClient_Session(t *testing.T) {
	testCases := []struct {
		name          string
		session       bool
		expCookie     bool
		expConnClosed bool
	}{
		{name: "shared session keeps cookies", session: true, expCookie: true},
		{name: "no session starts clean", session: false, expCookie: false, expConnClosed: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var sawCookie, sawClose bool
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, err := r.Cookie("sid"); err == nil {
					sawCookie = true
				}
				if r.Close {
					sawClose = true
				}
				http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
			}))
			defer ts.Close()

			c, err := client.Build(client.WithSession(tc.session))
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			for range 2 {
				if _, err := c.Get(t.Context(), ts.URL); err != nil {
					t.Fatalf("expected no error, got: %v", err)
				}
			}

			if sawCookie != tc.expCookie {
				t.Errorf("expected cookie replay %v, got %v", tc.expCookie, sawCookie)
			}
			if sawClose != tc.expConnClosed {
				t.Errorf("expected Connection: close %v, got %v", tc.expConnClosed, sawClose)
			}
		})
	}
}

func TestClient_WithRequestID(t *testing.T) {
	var ids []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get("X-Request-ID"))
		if len(ids)%2 == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer ts.Close()

	c, err := client.Build(client.WithRequestID())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	for range 2 {
		if _, err := c.Get(t.Context(), ts.URL); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
	}

	if len(ids) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(ids))
	}
	if ids[0] == "" || ids[0] != ids[1] {
		t.Errorf("expected attempts of one call to share an id, got %q and %q", ids[0], ids[1])
	}
	if ids[1] == ids[2] {
		t.Errorf("expected separate calls to get different ids, both %q", ids[1])
	}
}

func TestClient_AuthFailure(t *testing.T) {
	var calls int32
	c, err := client.Build(client.WithTransport(statusTransport(&calls, http.StatusUnauthorized)))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = c.Get(t.Context(), "http://spider.test/")
	if !errors.Is(err, client.ErrAuthFailure) || !errors.Is(err, client.ErrUnexpectedStatusCode) {
		t.Errorf("expected auth failure status error, got %v", err)
	}
	if calls != client.DefaultMaxRetries {
		t.Errorf("expected %d calls, got %d", client.DefaultMaxRetries, calls)
	}
}

func TestClient_WithDelay(t *testing.T) {
	var calls int32
	c, err := client.Build(
		client.WithTransport(statusTransport(&calls, http.StatusInternalServerError)),
		client.WithMaxRetries(4),
		client.WithDelay(2, 20*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	start := time.Now()
	_, err = c.Get(t.Context(), "http://spider.test/")
	elapsed := time.Since(start)

	if !errors.Is(err, client.ErrUnexpectedStatusCode) {
		t.Fatalf("expected status error, got %v", err)
	}

	// Attempts 2 and 4 pause.
	if elapsed < 40*time.Millisecond {
		t.Errorf("expected at least 40ms of pauses, took %v", elapsed)
	}

	d, ok := c.Throttle().(*throttle.Delay)
	if !ok {
		t.Fatalf("expected *throttle.Delay, got %T", c.Throttle())
	}
	if d.Count() != 4 {
		t.Errorf("expected 4 activations, got %d", d.Count())
	}
}

func TestClient_WithDelayValidation(t *testing.T) {
	if _, err := client.Build(client.WithDelay(0, time.Second)); !errors.Is(err, throttle.ErrMustNotBeZero) {
		t.Errorf("expected ErrMustNotBeZero, got %v", err)
	}
}

func TestClient_WithRateLimit(t *testing.T) {
	if _, err := client.Build(client.WithRateLimit(0, 1)); !errors.Is(err, throttle.ErrMustNotBeZero) {
		t.Errorf("expected ErrMustNotBeZero, got %v", err)
	}

	c, err := client.Build(client.WithRateLimit(100, 10))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, ok := c.Throttle().(*throttle.Rate); !ok {
		t.Errorf("expected *throttle.Rate, got %T", c.Throttle())
	}
}

func TestClient_DefaultThrottleIsNoop(t *testing.T) {
	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, ok := c.Throttle().(throttle.Noop); !ok {
		t.Errorf("expected throttle.Noop, got %T", c.Throttle())
	}
}

func TestClient_BuildValidation(t *testing.T) {
	testCases := []struct {
		name      string
		opts      []client.Option
		expFields []string
	}{
		{
			name:      "unknown encoding",
			opts:      []client.Option{client.WithEncodings("utf-8", "klingon")},
			expFields: []string{"encodings[1]"},
		},
		{
			name:      "negative retries via config",
			opts:      []client.Option{client.WithConfig(client.Config{MaxRetries: -1})},
			expFields: []string{"max_retries"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.Build(tc.opts...)

			var fields client.FieldErrors
			if !errors.As(err, &fields) {
				t.Fatalf("expected FieldErrors, got %T: %v", err, err)
			}
			if diff := cmp.Diff(tc.expFields, fields.Fields()); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClient_OptionErrors(t *testing.T) {
	testCases := []struct {
		name string
		opt  client.Option
	}{
		{"zero retries", client.WithMaxRetries(0)},
		{"no encodings", client.WithEncodings()},
		{"nil headers", client.WithHeaders(nil)},
		{"empty user agent", client.WithUserAgent("")},
		{"nil throttle", client.WithThrottle(nil)},
		{"nil client", client.WithClient(nil)},
		{"nil transport", client.WithTransport(nil)},
		{"nil tracer", client.WithTracer(nil)},
		{"empty extra key", client.WithExtra("", "v")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := client.Build(tc.opt); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestClient_Config(t *testing.T) {
	c, err := client.Build(
		client.WithConfig(client.Config{Session: false, Encodings: []string{"GBK"}}),
		client.WithExtra("crawler", "books"),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	want := client.Config{
		Session:    false,
		Headers:    client.DefaultHeaders(),
		Encodings:  []string{"GBK"},
		MaxRetries: client.DefaultMaxRetries,
		Extra:      map[string]string{"crawler": "books"},
	}
	if diff := cmp.Diff(want, c.Config()); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	if v, ok := c.Extra("crawler"); !ok || v != "books" {
		t.Errorf("expected extra crawler=books, got %q %v", v, ok)
	}
	if _, ok := c.Extra("missing"); ok {
		t.Error("expected missing extra to be absent")
	}

	// Mutating the returned copy must not leak into the client.
	got := c.Config()
	got.Headers["User-Agent"] = "changed"
	if c.Config().Headers["User-Agent"] != client.DefaultUserAgent {
		t.Error("config copy shares headers with the client")
	}
}

func TestClient_DefaultHeadersAreCopied(t *testing.T) {
	h := map[string]string{"X-A": "1"}
	c, err := client.Build(client.WithHeaders(h))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	h["X-A"] = "2"
	if got := c.Config().Headers["X-A"]; got != "1" {
		t.Errorf("expected headers to be copied at build time, got %q", got)
	}
}

func TestClient_WithNoFollowRedirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
	}))
	defer ts.Close()

	follow, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	if _, err := follow.Get(t.Context(), ts.URL+"/start"); err != nil {
		t.Errorf("expected redirect to be followed, got %v", err)
	}

	noFollow, err := client.Build(client.WithNoFollowRedirects(), client.WithMaxRetries(1))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = noFollow.Get(t.Context(), ts.URL+"/start")

	var statusErr *client.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusFound {
		t.Errorf("expected 302 status error, got %v", err)
	}
}

func TestClient_WithClient(t *testing.T) {
	var used bool
	hc := &http.Client{Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
		used = true
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: make(http.Header)}, nil
	})}

	c, err := client.Build(client.WithClient(hc))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := c.Get(t.Context(), "http://spider.test/"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !used {
		t.Error("expected custom client transport to be used")
	}
}

func TestClient_Request(t *testing.T) {
	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	t.Run("form body and query", func(t *testing.T) {
		req, err := c.Request(t.Context(), "http://spider.test/search?a=1", client.MethodPost,
			client.WithForm(map[string][]string{"q": {"go"}}),
			client.WithQuery(map[string]string{"page": "2"}),
			client.WithCookies(&http.Cookie{Name: "c", Value: "1"}),
		)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if got := req.Header.Get("Content-Type"); got != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", got)
		}
		if got := req.URL.Query().Get("page"); got != "2" {
			t.Errorf("expected page=2, got %q", got)
		}
		if got := req.URL.Query().Get("a"); got != "1" {
			t.Errorf("expected existing query kept, got %q", got)
		}
		if _, err := req.Cookie("c"); err != nil {
			t.Errorf("expected cookie, got %v", err)
		}
		if req.Header.Get("User-Agent") != client.DefaultUserAgent {
			t.Error("expected default headers")
		}
	})

	t.Run("raw body with explicit content type", func(t *testing.T) {
		req, err := c.Request(t.Context(), "http://spider.test/", client.MethodPut,
			client.WithBody(strings.NewReader("<x/>"), "application/xml"),
		)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := req.Header.Get("Content-Type"); got != "application/xml" {
			t.Errorf("unexpected content type %q", got)
		}
		if req.GetBody == nil {
			t.Error("expected a replayable body")
		}
	})

	t.Run("empty url", func(t *testing.T) {
		if _, err := c.Request(t.Context(), "", client.MethodGet); !errors.Is(err, client.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("invalid method", func(t *testing.T) {
		if _, err := c.Request(t.Context(), "http://spider.test/", client.Method(42)); !errors.Is(err, client.ErrUnsupportedMethod) {
			t.Errorf("expected ErrUnsupportedMethod, got %v", err)
		}
	})

	t.Run("empty content type", func(t *testing.T) {
		if _, err := c.Request(t.Context(), "http://spider.test/", client.MethodGet, client.WithContentType("")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestClient_Stream(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "streamed")
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	resp, err := c.Stream(t.Context(), ts.URL, client.MethodGet)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if string(b) != "streamed" {
		t.Errorf("expected streamed body, got %q", b)
	}
	if calls != 2 {
		t.Errorf("expected stream to go through the retry loop, got %d calls", calls)
	}
}

func TestParseMethod(t *testing.T) {
	for _, m := range client.Methods {
		got, err := client.ParseMethod(strings.ToLower(m.String()))
		if err != nil {
			t.Errorf("%s: unexpected err %v", m, err)
		}
		if got != m {
			t.Errorf("expected %s, got %s", m, got)
		}
	}

	if _, err := client.ParseMethod(""); !errors.Is(err, client.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := client.ParseMethod("trace"); !errors.Is(err, client.ErrUnsupportedMethod) {
		t.Errorf("expected ErrUnsupportedMethod, got %v", err)
	}

	var m client.Method
	if err := m.UnmarshalText([]byte("Head")); err != nil || m != client.MethodHead {
		t.Errorf("expected HEAD from text, got %s, %v", m, err)
	}
}
