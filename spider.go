// Package spider exposes the client builder.
//
// The dispatcher itself lives in [github.com/adamwoolhether/spider/client];
// throttles, charset decoding and the download loop live in its
// subpackages.
package spider

import (
	"github.com/adamwoolhether/spider/client"
)

// NewClient instantiates a new *client.Client with the provided options.
// Without options it keeps a cookie session, sends the default
// User-Agent, decodes text as UTF-8 and makes up to three attempts
// per call.
func NewClient(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}
