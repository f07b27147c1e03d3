package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"autocomplete/internal/config"
	"autocomplete/internal/server"
	"autocomplete/internal/version"
)

func main() {
	if err := config.LoadAndApply(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
	}
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 1
	}
	var err error
	switch args[0] {
	case "serve":
		fs := flag.NewFlagSet("serve", flag.ContinueOnError)
		fs.SetOutput(stderr)
		addr := fs.String("addr", ":8089", "listen address")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		err = server.Run(*addr)
	case "version":
		fmt.Fprintln(stdout, version.String())
	case "channels":
		err = channelsCmd(args[1:], stdout)
	case "search":
		err = searchCmd(args[1:], stdout)
	case "validate":
		var ok bool
		ok, err = validateCmd(args[1:], stdout)
		if err == nil && !ok {
			return 1
		}
	case "import":
		err = importCmd(args[1:], stdout)
	case "stats":
		err = statsCmd(args[1:], stdout)
	case "migrate":
		err = migrateCmd(args[1:], stdout)
	case "metrics":
		err = metricsCmd(stdout)
	case "help", "-h", "--help":
		usage(stdout)
	default:
		usage(stderr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "autocomplete - channel-backed autocomplete service")
	fmt.Fprintln(w, "usage:")
	fmt.Fprintln(w, "  autocomplete serve [--addr :8089]")
	fmt.Fprintln(w, "  autocomplete version")
	fmt.Fprintln(w, "  autocomplete channels")
	fmt.Fprintln(w, "  autocomplete search <channel> \"<query>\" [--html]")
	fmt.Fprintln(w, "  autocomplete validate <channel> <id>...")
	fmt.Fprintln(w, "  autocomplete import <file.yaml|file.json>")
	fmt.Fprintln(w, "  autocomplete stats")
	fmt.Fprintln(w, "  autocomplete migrate [up|down|status]")
	fmt.Fprintln(w, "  autocomplete metrics")
}
