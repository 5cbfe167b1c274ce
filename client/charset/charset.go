// Package charset decodes raw response bodies by trying an ordered list
// of candidate encodings until one decodes cleanly.
package charset

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
)

var (
	ErrDecode          = errors.New("no candidate encoding decodes the body")
	ErrNoCandidates    = errors.New("no candidate encodings")
	ErrUnknownEncoding = errors.New("unknown encoding")
	errInvalidSequence = errors.New("invalid byte sequence")
)

var replacementChar = []byte(string(utf8.RuneError))

// DecodeError is returned when every candidate encoding failed.
// Failures holds one entry per candidate, in the order tried.
type DecodeError struct {
	Candidates []string
	Failures   []error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: tried [%s]: %v", ErrDecode, strings.Join(e.Candidates, ", "), errors.Join(e.Failures...))
}

func (e *DecodeError) Unwrap() error {
	return ErrDecode
}

// Decode returns b decoded with the first encoding that succeeds. When
// override is non-empty it is the only candidate tried, otherwise the
// candidates are tried in order. The name of the encoding used is
// returned alongside the text.
func Decode(b []byte, candidates []string, override string) (string, string, error) {
	if override != "" {
		candidates = []string{override}
	}
	if len(candidates) == 0 {
		return "", "", ErrNoCandidates
	}

	failures := make([]error, 0, len(candidates))
	for _, name := range candidates {
		text, err := decodeAs(b, name)
		if err == nil {
			return text, name, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", name, err))
	}

	return "", "", &DecodeError{
		Candidates: candidates,
		Failures:   failures,
	}
}

// Valid reports whether name resolves to a supported encoding.
func Valid(name string) bool {
	switch normalize(name) {
	case "utf-8", "utf8", "ascii", "us-ascii":
		return true
	}

	_, err := lookup(name)
	return err == nil
}

func decodeAs(b []byte, name string) (string, error) {
	switch normalize(name) {
	case "utf-8", "utf8":
		if !utf8.Valid(b) {
			return "", errInvalidSequence
		}
		return string(b), nil
	case "ascii", "us-ascii":
		for i, c := range b {
			if c >= utf8.RuneSelf {
				return "", fmt.Errorf("%w: byte 0x%02x at offset %d", errInvalidSequence, c, i)
			}
		}
		return string(b), nil
	}

	enc, err := lookup(name)
	if err != nil {
		return "", err
	}

	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decoding: %w", err)
	}

	// x/text decoders substitute U+FFFD for sequences they cannot map.
	if bytes.Contains(out, replacementChar) && !bytes.Contains(b, replacementChar) {
		return "", errInvalidSequence
	}

	return string(out), nil
}

func lookup(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err == nil && enc != nil {
		return enc, nil
	}

	enc, err = htmlindex.Get(name)
	if err == nil && enc != nil {
		return enc, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
