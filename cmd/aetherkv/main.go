// Command aetherkv is the entry point for the Aether KV key-value store.
// It loads configuration, opens the storage engine, and dispatches to one
// of the set/get/del/server/repl subcommands.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/aether-kv/aetherkv/internal/cli"
	"github.com/aether-kv/aetherkv/internal/config"
	"github.com/aether-kv/aetherkv/internal/engine"
	"github.com/aether-kv/aetherkv/internal/httpapi"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("main: fatal error", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	slogHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(slogHandler))

	fs := flag.NewFlagSet("aetherkv", flag.ContinueOnError)
	dataDir := fs.String("data-dir", "", "data directory (overrides config/built-in default)")
	configPath := fs.String("config", "", "path to a YAML config file")
	port := fs.Uint16("port", 0, "HTTP port for the server subcommand (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: aetherkv [--data-dir DIR] [--config PATH] <set|get|del|server|repl> [args...]")
	}

	slog.Info("main: loading configuration", "config_path", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("main: load config: %w", err)
	}
	if *port != 0 {
		cfg.HTTPPort = *port
	}

	kv, err := engine.Open(*dataDir, cfg)
	if err != nil {
		return fmt.Errorf("main: open store: %w", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			slog.Error("main: error closing store", "error", err)
		}
	}()

	slog.Info("main: Aether KV started", "data_dir", *dataDir, "keys", kv.Len())

	command, commandArgs := rest[0], rest[1:]
	switch command {
	case "set":
		return runSet(kv, commandArgs)
	case "get":
		return runGet(kv, commandArgs)
	case "del":
		return runDel(kv, commandArgs)
	case "server":
		return runServer(kv, cfg)
	case "repl":
		return cli.NewHandler(kv).RunRepl()
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runSet(kv *engine.Kv, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: aetherkv set <key> <value>")
	}
	return cli.NewHandler(kv).Set(args[0], args[1])
}

func runGet(kv *engine.Kv, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: aetherkv get <key>")
	}
	found, err := cli.NewHandler(kv).Get(os.Stdout, args[0])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("key %q not found", args[0])
	}
	return nil
}

func runDel(kv *engine.Kv, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: aetherkv del <key>")
	}
	existed, err := cli.NewHandler(kv).Del(args[0])
	if err != nil {
		return err
	}
	if !existed {
		return fmt.Errorf("key %q not found", args[0])
	}
	return nil
}

func runServer(kv *engine.Kv, cfg *config.Config) error {
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	slog.Info("main: starting HTTP server", "addr", addr)
	server := httpapi.NewServer(kv)
	return http.ListenAndServe(addr, server)
}
