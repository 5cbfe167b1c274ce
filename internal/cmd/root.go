// Package cmd implements the spider command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/spider/client"
	"github.com/adamwoolhether/spider/internal/config"
)

type app struct {
	cfgFile   string
	headers   map[string]string
	userAgent string

	cfg    *config.Config
	logger *slog.Logger
	client *client.Client
}

// Execute runs the spider command line with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "spider",
		Short: "Fetch pages, JSON and files over HTTP with retries and throttling",
		Long: `spider issues HTTP requests through a retrying dispatcher. Non-200
responses are retried up to --retries attempts, an optional throttle pauses
between requests, and text bodies are decoded against an ordered list of
candidate encodings.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initialize,
	}

	defaults := client.DefaultConfig()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./spider.yaml or ~/.spider/spider.yaml)")
	flags.Int("retries", defaults.MaxRetries, "maximum attempts per request")
	flags.Bool("session", defaults.Session, "share cookies and connections between requests")
	flags.StringSlice("encodings", defaults.Encodings, "candidate text encodings, tried in order")
	flags.StringToStringVar(&a.headers, "header", nil, "default header as key=value (repeatable)")
	flags.StringVar(&a.userAgent, "user-agent", "", "override the User-Agent header")
	flags.Int("delay-step", 0, "pause after every N requests (0 disables)")
	flags.Duration("delay-pause", time.Second, "length of the delay pause")
	flags.Int("rps", 0, "requests per second limit (0 disables)")
	flags.Int("burst", 1, "burst size for --rps")
	flags.Duration("timeout", 30*time.Second, "per-request timeout (0 disables)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")

	for _, m := range client.Methods {
		rootCmd.AddCommand(a.newRequestCmd(m))
	}
	rootCmd.AddCommand(a.newTextCmd(), a.newJSONCmd(), a.newDownloadCmd())

	return rootCmd
}

// initialize loads the configuration and builds the shared client.
func (a *app) initialize(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if len(a.headers) > 0 {
		if cfg.Client.Headers == nil {
			cfg.Client.Headers = make(map[string]string, len(a.headers))
		}
		maps.Copy(cfg.Client.Headers, a.headers)
	}

	a.cfg = cfg
	a.logger = cfg.Logging.Logger(cmd.ErrOrStderr())

	opts := append(cfg.Options(), client.WithLogger(a.logger))
	if a.userAgent != "" {
		opts = append(opts, client.WithUserAgent(a.userAgent))
	}

	a.client, err = client.Build(opts...)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	a.logger.Debug("client ready",
		"session", cfg.Client.Session,
		"max_retries", cfg.Client.MaxRetries,
		"encodings", cfg.Client.Encodings)

	return nil
}

func writeBody(w io.Writer, body []byte) error {
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	if len(body) > 0 && body[len(body)-1] != '\n' {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}

	return nil
}

// Exit prints err to stderr and exits with status 1.
func Exit(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
