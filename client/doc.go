// Package client provides the request dispatcher: a thin layer over
// [net/http] that retries calls until a 200 arrives, throttles
// attempts, decodes text in a list of candidate encodings and streams
// downloads to disk.
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithMaxRetries(5),
//		client.WithEncodings("UTF-8", "GBK"),
//		client.WithDelay(10, time.Second),
//	)
//
// # Making Requests
//
// Every call goes through the same loop: the throttle is activated,
// the request is sent, and a 200 response ends the loop. Any other
// status is retried until MaxRetries attempts were made, after which a
// [StatusError] describes the last response. Transport failures are
// returned at once as a [TransportError].
//
//	resp, err := c.Get(ctx, "https://example.com/")
//	resp, err = c.Dispatch(ctx, "https://example.com/", "post",
//		client.WithPayload(body),
//	)
//
// # Text and JSON
//
//	html, err := c.Text(ctx, u, client.WithStripComments())
//	err = c.JSON(ctx, u, &dest, client.WithMethod(client.MethodGet))
//
// # Downloading Files
//
//	err = c.Download(ctx, u, "/tmp/out/file.bin",
//		client.WithChecksum(sha256.New(), expectedHex),
//		client.WithProgress(),
//	)
//
// For lower-level control see the
// [github.com/adamwoolhether/spider/client/download] package.
package client
