// Package cli implements the cerium command line.
package cli

import (
	"flag"
	"io"

	"tree-sitter-cerium/internal/core/config"
)

const versionString = "1.0.0"

type cliOptions struct {
	configPath string
	verbose    bool
	version    bool
	command    string
	args       []string
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("cerium", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr, fs) }

	fs.StringVar(&opts.configPath, "config", config.DefaultPath, "Path to config file")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	rest := fs.Args()
	if len(rest) > 0 {
		opts.command = rest[0]
		opts.args = rest[1:]
	}
	return opts, nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	io.WriteString(w, `Usage: cerium [flags] <command> [args]

Commands:
  list                       List grammars and their descriptor tables
  inspect [-ui] [-format f] <language>
                             Show the symbol, field and production tables of a grammar
  verify [-no-history]       Verify grammar artifacts, host ABI and fingerprint drift
  parse [-timeout d] <file>  Parse a source file with a compiled grammar
  watch                      Re-verify whenever the grammars directory changes
  manifest list|add|remove   Maintain grammars/manifest.toml

Flags:
`)
	fs.PrintDefaults()
}
