package main

import (
	"fmt"
	"os"
	"strings"
)

// BuildDate and Version can be set at build time via ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// AppName prefixes log, status and dump files.
const AppName = "tracksim"

const usageText = `usage:
  tracksim run [configDir]                          play the scenario and record it
  tracksim serve [configDir]                        run in real time as replication authority
  tracksim control <configDir> <throttle> <steer>   send one control state to the authority
  tracksim plot <export.json[.gz]> <out.png> [track.png]
  tracksim version`

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usageText)
		os.Exit(2)
	}

	var err error
	switch strings.ToLower(args[0]) {
	case "run":
		err = runCommand(args[1:])
	case "serve":
		err = serveCommand(args[1:])
	case "control":
		err = controlCommand(args[1:])
	case "plot":
		err = plotCommand(args[1:])
	case "version":
		fmt.Printf("%s %s (built %s)\n", AppName, Version, BuildDate)
	default:
		fmt.Fprintln(os.Stderr, usageText)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func configDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
