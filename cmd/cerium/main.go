package main

import (
	"os"

	"tree-sitter-cerium/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
