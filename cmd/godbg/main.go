// Command godbg is the CLI entry point: it forks, has the child call
// PTRACE_TRACEME and disable ASLR, execs the target binary, and drives the
// resulting engine.Engine from an interactive prompt (or, with --serve, an
// HTTP front end).
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/tracewell/godbg/internal/command"
	"github.com/tracewell/godbg/internal/config"
	"github.com/tracewell/godbg/internal/disasm"
	"github.com/tracewell/godbg/internal/engine"
	"github.com/tracewell/godbg/internal/httpapi"
)

var (
	configPath string
	serve      bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "godbg <binary>",
		Short: "A source-level debugger for native Linux executables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to an optional YAML config file")
	cmd.Flags().BoolVar(&serve, "serve", false, "serve the HTTP command surface instead of an interactive prompt")
	return cmd
}

func run(path string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	eng, err := engine.Launch(path, log)
	if err != nil {
		return fmt.Errorf("godbg: %w", err)
	}

	dispatcher := command.NewDispatcher(eng, disasm.ParseSyntax(cfg.DisasmSyntax))

	if serve {
		return serveHTTP(dispatcher, eng, cfg.HTTPAddr, log)
	}
	return runREPL(dispatcher, eng)
}

func serveHTTP(dispatcher *command.Dispatcher, eng *engine.Engine, addr string, log *slog.Logger) error {
	srv := httpapi.NewServer(dispatcher, eng)
	router := httpapi.NewRouter(srv)
	log.Info("serving HTTP command surface", "addr", addr)
	return http.ListenAndServe(addr, router)
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
