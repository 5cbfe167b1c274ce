package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/adamwoolhether/spider/client/charset"
	"github.com/adamwoolhether/spider/client/download"
)

// Text issues a GET and decodes the body with the WithEncoding override
// or, failing that, each configured candidate encoding in order.
func (c *Client) Text(ctx context.Context, rawURL string, opts ...FetchOption) (string, error) {
	settings, err := applyFetchOpts(MethodGet, opts)
	if err != nil {
		return "", err
	}

	resp, err := c.send(ctx, MethodGet, rawURL, settings.requestOpts...)
	if err != nil {
		return "", err
	}

	return c.decode(resp, settings)
}

// JSON issues a request, POST unless WithMethod says otherwise, decodes
// the body like Text and unmarshals the result into dest, which must be
// a non-nil pointer.
func (c *Client) JSON(ctx context.Context, rawURL string, dest any, opts ...FetchOption) error {
	if v := reflect.ValueOf(dest); v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("%w: json destination must be a non-nil pointer, got %T", ErrInvalidArgument, dest)
	}

	settings, err := applyFetchOpts(MethodPost, opts)
	if err != nil {
		return err
	}

	resp, err := c.send(ctx, settings.method, rawURL, settings.requestOpts...)
	if err != nil {
		return err
	}

	text, err := c.decode(resp, settings)
	if err != nil {
		return err
	}

	d := json.NewDecoder(strings.NewReader(text))
	if settings.useJSONNum {
		d.UseNumber()
	}

	if err := d.Decode(dest); err != nil {
		return &ParseError{URL: resp.URL, Err: err}
	}
	if _, err := d.Token(); !errors.Is(err, io.EOF) {
		return &ParseError{URL: resp.URL, Err: errors.New("trailing data after json value")}
	}

	return nil
}

// FetchJSON is JSON returning the decoded value.
func FetchJSON[T any](ctx context.Context, c *Client, rawURL string, opts ...FetchOption) (T, error) {
	var v T
	if err := c.JSON(ctx, rawURL, &v, opts...); err != nil {
		return v, err
	}

	return v, nil
}

// Download streams the body of a request, GET unless WithMethod says
// otherwise, to savePath. The destination directory is created if it
// is missing. The body is copied in chunks until the declared
// Content-Length is reached, or written in one piece when no length
// was declared.
func (c *Client) Download(ctx context.Context, rawURL, savePath string, opts ...FetchOption) error {
	if savePath == "" {
		return fmt.Errorf("%w: save path must not be empty", ErrInvalidArgument)
	}

	settings, err := applyFetchOpts(MethodGet, opts)
	if err != nil {
		return err
	}

	if download.SkipsExisting(settings.downloadOpts...) {
		if _, err := os.Stat(savePath); err == nil {
			c.logger.Info("skipping existing file", "path", savePath, "url", rawURL)
			return nil
		}
	}

	if err := download.EnsureDir(filepath.Dir(savePath)); err != nil {
		return fmt.Errorf("download: %w", err)
	}

	req, err := c.Request(ctx, rawURL, settings.method, settings.requestOpts...)
	if err != nil {
		return err
	}

	resp, _, err := c.dispatch(req)
	if err != nil {
		return err
	}
	defer c.closeBody(resp)

	if err := download.Handle(ctx, resp.Body, resp.ContentLength, savePath, c.logger, settings.downloadOpts...); err != nil {
		return fmt.Errorf("download: %w", err)
	}

	return nil
}

func (c *Client) decode(resp *Response, settings fetchOpts) (string, error) {
	text, used, err := charset.Decode(resp.Body, c.cfg.Encodings, settings.encoding)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", resp.URL, err)
	}
	c.logger.Debug("decoded body", "url", resp.URL, "encoding", used, "bytes", len(resp.Body))

	if settings.stripComments {
		text = strings.ReplaceAll(text, "<!--", "")
		text = strings.ReplaceAll(text, "-->", "")
	}

	return text, nil
}
