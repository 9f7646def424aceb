package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// run dispatches subcommands; a bare invocation or leading flags mean serve.
func run(args []string) error {
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		return runServe(args)
	case "analyze":
		return runAnalyze(args)
	case "migrate":
		return runMigrate(args)
	case "version":
		fmt.Println(version)
		return nil
	case "help", "--help", "-h":
		printHelp()
		return nil
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: deploypilot <command> [options]

Commands:
  serve      Run the HTTP API and MCP endpoint (default)
  analyze    Analyze one repository and print the platform ranking
  migrate    Apply or roll back history database migrations
  version    Print the version
  help       Show this help message

Examples:
  deploypilot serve --config deploypilot.yaml
  deploypilot analyze vercel/next.js
  deploypilot analyze acme/shop@develop --json
  deploypilot analyze --provider local --root ~/src acme/shop
  deploypilot migrate up
`)
}
