package main

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/caffeineduck/fnhost/adapter"
	"github.com/caffeineduck/fnhost/function"
	"github.com/caffeineduck/fnhost/host"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newInvokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoke <artifact> <entrypoint>",
		Short: "Specialize locally and send one request",
		Long: `Load an artifact in process, send it one request and print the response body.

Examples:
  fnhost invoke hello.jar io.fission.HelloWorld
  fnhost invoke fn.wasm fn -X POST -d '{"name":"x"}' -H 'Content-Type: application/json'`,
		Args: cobra.ExactArgs(2),
		RunE: runInvoke,
	}
	cmd.Flags().StringP("request", "X", "GET", "HTTP method")
	cmd.Flags().String("path", "/", "Request URI")
	cmd.Flags().StringP("data", "d", "", "Request body")
	cmd.Flags().StringArrayP("header", "H", nil, "Request header 'Name: value' (repeatable)")
	cmd.Flags().BoolP("include", "i", false, "Print the status line and headers")
	addRuntimeFlags(cmd)
	return cmd
}

func runInvoke(cmd *cobra.Command, args []string) error {
	method, _ := cmd.Flags().GetString("request")
	path, _ := cmd.Flags().GetString("path")
	data, _ := cmd.Flags().GetString("data")
	headers, _ := cmd.Flags().GetStringArray("header")
	include, _ := cmd.Flags().GetBool("include")

	req, err := buildRequest(method, path, data, headers)
	if err != nil {
		return err
	}

	h, cleanup, err := specializeLocal(cmd, args[0], args[1])
	if err != nil {
		return err
	}
	defer cleanup()

	return send(cmd, h, req, cmd.OutOrStdout(), include)
}

func buildRequest(method, path, body string, headers []string) (*function.Request, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req := &function.Request{
		Method: strings.ToUpper(method),
		URI:    path,
		Body:   []byte(body),
	}
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q (expected 'Name: value')", h)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return req, nil
}

// send invokes h and writes the response to out.
func send(cmd *cobra.Command, h *host.Host, req *function.Request, out io.Writer, include bool) error {
	ctx := function.WithInvocationID(cmd.Context(), uuid.NewString())
	resp, err := h.Invoke(ctx, req)
	if err != nil {
		return err
	}

	rec := &responseBuffer{header: http.Header{}}
	if err := adapter.WriteHTTP(rec, resp); err != nil {
		return err
	}

	if include {
		fmt.Fprintf(out, "%d %s\n", rec.status, http.StatusText(rec.status))
		names := make([]string, 0, len(rec.header))
		for name := range rec.header {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			for _, v := range rec.header[name] {
				fmt.Fprintf(out, "%s: %s\n", name, v)
			}
		}
		fmt.Fprintln(out)
	}
	_, err = out.Write(rec.body)
	return err
}

// responseBuffer collects what adapter.WriteHTTP would send to a client.
type responseBuffer struct {
	status int
	header http.Header
	body   []byte
}

func (r *responseBuffer) Header() http.Header { return r.header }

func (r *responseBuffer) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
}

func (r *responseBuffer) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body = append(r.body, b...)
	return len(b), nil
}
