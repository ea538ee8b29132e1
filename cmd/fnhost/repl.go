package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/fnhost/host"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func newReplCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl <artifact> <entrypoint>",
		Short: "Interactive request loop against a loaded function",
		Long: `Load an artifact in process and send it requests interactively.

Each line is a request: METHOD /path [body]. A line holding only a path is a
GET. The function keeps its state (instances and key-value store) between
requests.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
		Args: cobra.ExactArgs(2),
		RunE: runRepl,
	}
	cmd.Flags().String("history", "", "History file path (default: ~/.fnhost_history)")
	cmd.Flags().BoolP("include", "i", true, "Print the status line and headers")
	addRuntimeFlags(cmd)
	return cmd
}

func runRepl(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	include, _ := cmd.Flags().GetBool("include")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".fnhost_history")
	}

	h, cleanup, err := specializeLocal(cmd, args[0], args[1])
	if err != nil {
		return err
	}
	defer cleanup()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "fnhost %s (type 'exit' to quit, Ctrl+D to exit)\n", h.Status().EntryPoint)

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := evalLine(cmd, h, line, cmd.OutOrStdout(), include); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
	}
}

func evalLine(cmd *cobra.Command, h *host.Host, line string, out io.Writer, include bool) error {
	method, path, body, err := parseLine(line)
	if err != nil {
		return err
	}
	req, err := buildRequest(method, path, body, nil)
	if err != nil {
		return err
	}
	if err := send(cmd, h, req, out, include); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}

// parseLine splits "METHOD /path [body]". The body is the rest of the line
// verbatim.
func parseLine(line string) (method, path, body string, err error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "/") {
		path, body, _ = strings.Cut(line, " ")
		return "GET", path, body, nil
	}

	method, rest, _ := strings.Cut(line, " ")
	path, body, _ = strings.Cut(strings.TrimLeft(rest, " "), " ")
	if path == "" {
		return "", "", "", fmt.Errorf("expected METHOD /path [body], got %q", line)
	}
	if !strings.HasPrefix(path, "/") {
		return "", "", "", fmt.Errorf("path must start with /: %q", path)
	}
	return strings.ToUpper(method), path, body, nil
}
