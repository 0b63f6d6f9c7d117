package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	envFile := flag.String("env", "", "Optional dotenv file to load")
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("pwauthctl %s (%s)\n", Version, BuildDate)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	app := &app{
		envFile: *envFile,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	ctx := context.Background()
	command, rest := args[0], args[1:]

	var err error
	switch command {
	case "hash":
		err = app.runHash(rest)
	case "verify":
		err = app.runVerify(rest)
	case "token":
		err = app.runToken(rest)
	case "inspect":
		err = app.runInspect(rest)
	case "useradd":
		err = app.runUserAdd(ctx, rest)
	case "enable":
		err = app.runSetActive(ctx, rest, true)
	case "disable":
		err = app.runSetActive(ctx, rest, false)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: pwauthctl [-env file] <command> [args]

Commands:
  hash                          read a password without echo and print its digest
  verify <digest>               read a password and check it against digest
  token [-ttl d] <subject> [scope...]
                                mint a token with the configured signing key
  inspect <token>               verify a token and print its claims
  useradd [-name n] [-email e] <identifier>
                                create or update a user in the configured directory
  enable <identifier>           mark a user active
  disable <identifier>          mark a user inactive
`)
}
