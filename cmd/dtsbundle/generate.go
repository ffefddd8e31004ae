package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gnana997/dtsbundle/pkg/generator"
	"github.com/gnana997/dtsbundle/pkg/resolver"
	"github.com/gnana997/dtsbundle/pkg/util"
	"github.com/gnana997/dtsbundle/pkg/watcher"
)

// generateFlags are the parsed command-line options of generate/watch,
// layered over the project config.
type generateFlags struct {
	entries  []string
	outDir   string
	opts     generator.Options
	asJSON   bool
	logLevel util.LogLevel
}

// parseGenerateFlags applies the flag > config > default fallback chain.
func parseGenerateFlags(args []string) (*generateFlags, error) {
	flags := &generateFlags{
		outDir:   "dist",
		logLevel: util.LevelInfo,
	}

	if cfg, err := loadProjectConfig(); err != nil {
		return nil, fmt.Errorf("invalid .dtsbundle/config.yaml: %w", err)
	} else if cfg != nil {
		flags.entries = cfg.Entries
		if cfg.OutDir != "" {
			flags.outDir = cfg.OutDir
		}
		flags.opts = generator.Options{
			PreferredTsconfig: cfg.Tsconfig,
			Resolve:           resolver.Policy{All: cfg.Resolve, Packages: cfg.ResolvePackages},
			InferTypes:        cfg.InferTypes,
			Tsgo:              cfg.Tsgo,
			Splitting:         cfg.Splitting,
			Minify:            cfg.Minify,
			Naming:            cfg.Naming,
		}
	}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--out":
			if i+1 < len(args) {
				i++
				flags.outDir = args[i]
			}
		case "--tsconfig":
			if i+1 < len(args) {
				i++
				flags.opts.PreferredTsconfig = args[i]
			}
		case "--resolve":
			flags.opts.Resolve.All = true
		case "--resolve-pkg":
			if i+1 < len(args) {
				i++
				flags.opts.Resolve.Packages = append(flags.opts.Resolve.Packages, args[i])
			}
		case "--infer-types":
			flags.opts.InferTypes = true
		case "--tsgo":
			flags.opts.Tsgo = true
		case "--splitting":
			flags.opts.Splitting = true
		case "--minify":
			flags.opts.Minify = true
		case "--naming":
			if i+1 < len(args) {
				i++
				flags.opts.Naming = args[i]
			}
		case "--json":
			flags.asJSON = true
		case "--verbose":
			flags.logLevel = util.LevelDebug
		default:
			if !strings.HasPrefix(args[i], "--") {
				flags.entries = append(flags.entries, args[i])
			}
		}
	}

	if len(flags.entries) == 0 {
		return nil, fmt.Errorf("no entrypoints: pass files or patterns, or set entries in .dtsbundle/config.yaml")
	}
	return flags, nil
}

func runGenerate(args []string, watch bool) {
	flags, err := parseGenerateFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := util.NewLogger(util.LoggerConfig{
		Level:  flags.logLevel,
		Format: util.FormatText,
		Output: os.Stderr,
	})
	flags.opts.Logger = logger

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot determine working directory: %v\n", err)
		os.Exit(1)
	}
	flags.opts.Cwd = cwd

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !watch {
		if ok := generateOnce(ctx, flags); !ok {
			os.Exit(1)
		}
		return
	}

	generateOnce(ctx, flags)
	w, err := watcher.New(watcher.DefaultOptions(), func(changed []string) {
		generateOnce(ctx, flags)
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot start watcher: %v\n", err)
		os.Exit(1)
	}
	if err := w.Start(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "cannot start watcher: %v\n", err)
		os.Exit(1)
	}
	defer w.Stop()

	<-ctx.Done()
}

// generateOnce runs one bundle and writes the outputs. Returns false on
// fatal failure.
func generateOnce(ctx context.Context, flags *generateFlags) bool {
	result, err := generator.GenerateDts(ctx, flags.entries, flags.opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate failed: %v\n", err)
		return false
	}

	if err := os.MkdirAll(flags.outDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "cannot create output directory: %v\n", err)
		return false
	}
	for _, file := range result.Files {
		outPath := filepath.Join(flags.outDir, file.Path)
		if err := os.WriteFile(outPath, []byte(file.Text), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "cannot write %s: %v\n", outPath, err)
			return false
		}
	}

	if flags.asJSON {
		payload := struct {
			Files  []string `json:"files"`
			Errors []string `json:"errors"`
		}{Files: []string{}, Errors: []string{}}
		for _, file := range result.Files {
			payload.Files = append(payload.Files, filepath.Join(flags.outDir, file.Path))
		}
		for _, diag := range result.Errors {
			payload.Errors = append(payload.Errors, diag.String())
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(payload)
		return true
	}

	for _, file := range result.Files {
		fmt.Printf("✓ %s (%s, %d bytes)\n",
			filepath.Join(flags.outDir, file.Path), file.Kind, len(file.Text))
	}
	for _, diag := range result.Errors {
		fmt.Fprintf(os.Stderr, "  warning: %s\n", diag.String())
	}
	return true
}
