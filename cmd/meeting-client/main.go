package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/qieqieplus/meeting-client/pkg/config"
	"github.com/qieqieplus/meeting-client/pkg/log"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "server":
		runServer(os.Args[2:])
	case "tui":
		runTUI(os.Args[2:])
	case "settings":
		runSettings(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <command> [options]

Commands:
  server    Run the call client headless with the HTTP/WebSocket control API
  tui       Run the call client in the terminal
  settings  Show or change stored settings (list, get <key>, set <key> <value>)

Run '%s <command> -h' for more information on a command.
`, os.Args[0], os.Args[0])
}

func loadConfig(name, summary string, args []string) (*config.Config, *flag.FlagSet) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s [options]\n\n%s\n\nOptions:\n", os.Args[0], name, summary)
		fs.PrintDefaults()
	}

	cfg, err := config.Load(fs, args)
	if err != nil {
		log.Fatalf("Failed to parse flags: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	return cfg, fs
}

func runServer(args []string) {
	cfg, _ := loadConfig("server", "Runs the call client with the HTTP/WebSocket control API.", args)
	startServer(cfg)
}

func runTUI(args []string) {
	cfg, _ := loadConfig("tui", "Runs the call client in the terminal.", args)
	startTUI(cfg)
}

func runSettings(args []string) {
	cfg, fs := loadConfig("settings", "Shows or changes stored settings.\n\n  list\n  get <key>\n  set <key> <value>", args)
	if err := settingsCommand(cfg, fs.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
