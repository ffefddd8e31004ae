package main

import (
	"fmt"
	"os"

	mcpserver "github.com/gnana997/dtsbundle/pkg/mcp"
	"github.com/gnana997/dtsbundle/pkg/mcplog"
	"github.com/gnana997/dtsbundle/pkg/util"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	switch command {
	case "generate":
		runGenerate(os.Args[2:], false)
	case "watch":
		runGenerate(os.Args[2:], true)
	case "serve":
		runServe(os.Args[2:])
	case "version":
		fmt.Printf("dtsbundle %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot determine working directory: %v\n", err)
		os.Exit(1)
	}
	logPath := mcplog.DefaultLogPath(cwd)
	for i, arg := range args {
		switch arg {
		case "--log":
			if i+1 < len(args) {
				logPath = args[i+1]
			}
		case "--no-log":
			logPath = ""
		}
	}

	logger, err := mcplog.NewLogger(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot open tool-call log: %v\n", err)
		os.Exit(1)
	}

	// stdio transport owns stdout; structured logs go to stderr
	slogger := util.NewLogger(util.LoggerConfig{
		Level:  util.LevelWarn,
		Format: util.FormatText,
		Output: os.Stderr,
	})

	srv := mcpserver.NewServer(cwd, logger, slogger)
	defer srv.Close()
	if err := srv.ServeStdio(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: dtsbundle <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  generate   Bundle type declarations for the configured entrypoints")
	fmt.Println("  watch      Regenerate bundles when source files change")
	fmt.Println("  serve      Start the MCP server on stdio")
	fmt.Println("  version    Print version")
	fmt.Println("  help       Show this help message")
}
