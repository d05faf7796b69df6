package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"tree-sitter-cerium/internal/core/config"
	"tree-sitter-cerium/internal/engine/registry"
)

// session carries what every command needs: the loaded config and the
// output streams.
type session struct {
	cfg     *config.Config
	cfgPath string
	stdout  io.Writer
	stderr  io.Writer
}

func Run(args []string) int {
	return run(context.Background(), args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "cerium v%s\n", versionString)
		return 0
	}
	if opts.command == "" {
		fmt.Fprintln(stderr, "missing command; run cerium -h for usage")
		return 2
	}

	configureLogging(stderr, opts.verbose)

	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "path", opts.configPath, "error", err)
		return 1
	}

	s := &session{cfg: cfg, cfgPath: opts.configPath, stdout: stdout, stderr: stderr}

	switch opts.command {
	case "list":
		return s.runList(ctx, opts.args)
	case "inspect":
		return s.runInspect(opts.args)
	case "verify":
		return s.runVerify(ctx, opts.args)
	case "parse":
		return s.runParse(ctx, opts.args)
	case "watch":
		return s.runWatch(ctx, opts.args)
	case "manifest":
		return s.runManifest(opts.args)
	default:
		fmt.Fprintf(stderr, "unknown command %q; run cerium -h for usage\n", opts.command)
		return 2
	}
}

func configureLogging(output io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}

func (s *session) languages() (map[string]registry.LanguageSpec, error) {
	return registry.BuildLanguageRegistry(s.cfg.LanguageOverrides())
}

// usageError prints a one-line usage hint and returns the usage exit code.
func (s *session) usageError(usage string) int {
	fmt.Fprintf(s.stderr, "Usage: cerium %s\n", usage)
	return 2
}

func (s *session) fail(msg string, err error, attrs ...any) int {
	slog.Error(msg, append(attrs, "error", err)...)
	return 1
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("cerium "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func shortFingerprint(h string) string {
	h = strings.TrimSpace(h)
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
