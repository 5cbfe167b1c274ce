package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/spider/client"
)

type requestFlags struct {
	data        string
	contentType string
	form        map[string]string
	query       map[string]string
	include     bool
}

func (rf *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&rf.data, "data", "d", "", "request body")
	cmd.Flags().StringVar(&rf.contentType, "content-type", "application/json", "content type of --data")
	cmd.Flags().StringToStringVar(&rf.form, "form", nil, "form field as key=value, sent url-encoded (repeatable)")
	cmd.Flags().StringToStringVarP(&rf.query, "query", "q", nil, "query parameter as key=value (repeatable)")
}

func (rf *requestFlags) options() ([]client.RequestOption, error) {
	if rf.data != "" && len(rf.form) > 0 {
		return nil, errors.New("--data and --form are mutually exclusive")
	}

	var opts []client.RequestOption

	switch {
	case rf.data != "":
		opts = append(opts, client.WithBody(strings.NewReader(rf.data), rf.contentType))
	case len(rf.form) > 0:
		form := make(url.Values, len(rf.form))
		for k, v := range rf.form {
			form.Set(k, v)
		}
		opts = append(opts, client.WithForm(form))
	}

	if len(rf.query) > 0 {
		opts = append(opts, client.WithQuery(rf.query))
	}

	return opts, nil
}

func (a *app) newRequestCmd(m client.Method) *cobra.Command {
	var rf requestFlags

	verb := m.String()
	cmd := &cobra.Command{
		Use:   strings.ToLower(verb) + " URL",
		Short: fmt.Sprintf("Send a %s request and print the response body", verb),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := rf.options()
			if err != nil {
				return err
			}

			resp, err := a.client.Dispatch(cmd.Context(), args[0], verb, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rf.include || m == client.MethodHead || m == client.MethodOptions {
				if err := writeHead(out, resp); err != nil {
					return err
				}
			}

			return writeBody(out, resp.Body)
		},
	}

	rf.register(cmd)
	cmd.Flags().BoolVarP(&rf.include, "include", "i", false, "print the status line and response headers")

	return cmd
}

func writeHead(w io.Writer, resp *client.Response) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%d %s\n", resp.StatusCode, http.StatusText(resp.StatusCode))

	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		for _, v := range resp.Header[k] {
			fmt.Fprintf(&b, "%s: %s\n", k, v)
		}
	}
	b.WriteString("\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	return nil
}
