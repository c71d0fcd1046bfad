// Package cli provides command-line interface handling for the key-value
// store: a set of scriptable one-shot subcommands plus the teacher's
// original interactive REPL, both driven against an *engine.Kv handle.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aether-kv/aetherkv/internal/engine"
)

// Handler dispatches subcommands against a single engine handle.
type Handler struct {
	kv *engine.Kv
}

// NewHandler creates a CLI handler bound to kv.
func NewHandler(kv *engine.Kv) *Handler {
	return &Handler{kv: kv}
}

// Set implements the "set <key> <value>" subcommand.
func (h *Handler) Set(key, value string) error {
	if err := h.kv.Set(key, []byte(value)); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	slog.Info("cli: set", "key", key, "value_size", len(value))
	return nil
}

// Get implements the "get <key>" subcommand, writing the raw value bytes
// to w with no trailing newline. It reports whether the key was found.
func (h *Handler) Get(w io.Writer, key string) (bool, error) {
	value, err := h.kv.Get(key)
	if err != nil {
		return false, fmt.Errorf("get %q: %w", key, err)
	}
	if value == nil {
		return false, nil
	}
	if _, err := w.Write(value); err != nil {
		return false, fmt.Errorf("get %q: write output: %w", key, err)
	}
	return true, nil
}

// Del implements the "del <key>" subcommand, reporting whether the key
// was present.
func (h *Handler) Del(key string) (bool, error) {
	existed, err := h.kv.Del(key)
	if err != nil {
		return false, fmt.Errorf("del %q: %w", key, err)
	}
	slog.Info("cli: del", "key", key, "existed", existed)
	return existed, nil
}

// Repl runs the teacher's original interactive command loop, reading
// lines from in and writing prompts/results to out, until an EXIT/QUIT
// command or EOF.
func (h *Handler) Repl(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "Aether KV - Simple Key-Value Store")
	fmt.Fprintln(out, "Commands: SET <key> <value>, GET <key>, DEL <key>, EXIT")
	fmt.Fprint(out, "> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}

		parts := strings.Fields(line)
		command := strings.ToUpper(parts[0])

		switch command {
		case "SET":
			h.replSet(out, parts)
		case "GET":
			h.replGet(out, parts)
		case "DEL", "DELETE":
			h.replDel(out, parts)
		case "EXIT", "QUIT":
			slog.Info("cli: shutdown requested by user")
			fmt.Fprintln(out, "Goodbye!")
			return nil
		default:
			slog.Warn("cli: unknown command received", "command", command)
			fmt.Fprintf(out, "Unknown command: %s\n", command)
			fmt.Fprintln(out, "Commands: SET <key> <value>, GET <key>, DEL <key>, EXIT")
		}

		fmt.Fprint(out, "> ")
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("cli: read input: %w", err)
	}
	return nil
}

func (h *Handler) replSet(out io.Writer, parts []string) {
	if len(parts) < 3 {
		fmt.Fprintln(out, "Usage: SET <key> <value>")
		return
	}
	key := parts[1]
	value := strings.Join(parts[2:], " ")
	if err := h.Set(key, value); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(out, "OK")
}

func (h *Handler) replGet(out io.Writer, parts []string) {
	if len(parts) < 2 {
		fmt.Fprintln(out, "Usage: GET <key>")
		return
	}
	key := parts[1]
	var buf strings.Builder
	found, err := h.Get(&buf, key)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if !found {
		fmt.Fprintln(out, "(not found)")
		return
	}
	fmt.Fprintln(out, buf.String())
}

func (h *Handler) replDel(out io.Writer, parts []string) {
	if len(parts) < 2 {
		fmt.Fprintln(out, "Usage: DEL <key>")
		return
	}
	key := parts[1]
	existed, err := h.Del(key)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if !existed {
		fmt.Fprintln(out, "(not found)")
		return
	}
	fmt.Fprintln(out, "OK")
}

// RunRepl is a convenience wrapper running Repl against os.Stdin/os.Stdout.
func (h *Handler) RunRepl() error {
	return h.Repl(os.Stdin, os.Stdout)
}
