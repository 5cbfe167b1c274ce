package cmd

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/spider/client"
)

func (a *app) newTextCmd() *cobra.Command {
	var (
		rf            requestFlags
		encoding      string
		stripComments bool
	)

	cmd := &cobra.Command{
		Use:   "text URL",
		Short: "GET a page and print it decoded as text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqOpts, err := rf.options()
			if err != nil {
				return err
			}

			opts := []client.FetchOption{client.WithRequestOptions(reqOpts...)}
			if encoding != "" {
				opts = append(opts, client.WithEncoding(encoding))
			}
			if stripComments {
				opts = append(opts, client.WithStripComments())
			}

			text, err := a.client.Text(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}

			return writeBody(cmd.OutOrStdout(), []byte(text))
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVarP(&encoding, "encoding", "e", "", "decode with this encoding only")
	cmd.Flags().BoolVar(&stripComments, "strip-comments", false, "remove <!-- and --> markers")

	return cmd
}

func (a *app) newJSONCmd() *cobra.Command {
	var (
		rf       requestFlags
		method   client.Method
		encoding string
	)

	cmd := &cobra.Command{
		Use:   "json URL",
		Short: "Request a JSON document and pretty-print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqOpts, err := rf.options()
			if err != nil {
				return err
			}

			opts := []client.FetchOption{
				client.WithRequestOptions(reqOpts...),
				client.WithJSONNumber(),
			}
			if method != 0 {
				opts = append(opts, client.WithMethod(method))
			}
			if encoding != "" {
				opts = append(opts, client.WithEncoding(encoding))
			}

			var doc any
			if err := a.client.JSON(cmd.Context(), args[0], &doc, opts...); err != nil {
				return err
			}

			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting json: %w", err)
			}

			return writeBody(cmd.OutOrStdout(), out)
		},
	}

	rf.register(cmd)
	cmd.Flags().VarP(&methodValue{m: &method}, "method", "X", "request method (default POST)")
	cmd.Flags().StringVarP(&encoding, "encoding", "e", "", "decode with this encoding only")

	return cmd
}

func (a *app) newDownloadCmd() *cobra.Command {
	var (
		rf           requestFlags
		sum          string
		progress     bool
		skipExisting bool
	)

	cmd := &cobra.Command{
		Use:   "download URL PATH",
		Short: "Stream a response body into a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reqOpts, err := rf.options()
			if err != nil {
				return err
			}

			opts := []client.FetchOption{client.WithRequestOptions(reqOpts...)}
			if sum != "" {
				opts = append(opts, client.WithChecksum(sha256.New(), sum))
			}
			if progress {
				opts = append(opts, client.WithProgress())
			}
			if skipExisting {
				opts = append(opts, client.WithSkipExisting())
			}

			if err := a.client.Download(cmd.Context(), args[0], args[1], opts...); err != nil {
				return err
			}

			a.logger.Info("download complete", "url", args[0], "path", args[1])

			return nil
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVar(&sum, "sha256", "", "expected hex SHA-256 of the file")
	cmd.Flags().BoolVar(&progress, "progress", false, "log download progress")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "do nothing if PATH already exists")

	return cmd
}

// methodValue adapts client.Method to pflag.Value.
type methodValue struct {
	m *client.Method
}

func (v *methodValue) String() string {
	if v.m == nil || *v.m == 0 {
		return ""
	}
	return v.m.String()
}

func (v *methodValue) Set(s string) error {
	return v.m.UnmarshalText([]byte(s))
}

func (v *methodValue) Type() string { return "method" }
