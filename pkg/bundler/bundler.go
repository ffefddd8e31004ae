package bundler

import (
	"context"
	"fmt"
	"log/slog"
)

// Bundle links the fake-JS module graph reachable from opts.Entries into
// one output per entry, plus a shared chunk when splitting finds statements
// reachable from more than one entry.
//
// A bundle failure is fatal and surfaced verbatim; partial outputs are
// never returned.
func Bundle(ctx context.Context, opts Options) ([]OutputFile, error) {
	if len(opts.Entries) == 0 {
		return nil, fmt.Errorf("no entry modules to bundle")
	}
	if opts.Resolve == nil || opts.Load == nil {
		return nil, fmt.Errorf("bundle requires resolve and load hooks")
	}
	if opts.Parsers == nil {
		return nil, fmt.Errorf("bundle requires a parser manager")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	modules, err := scanGraph(ctx, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("module graph scanned", "modules", len(modules))

	l := newLinker(modules)
	if err := l.link(opts.Entries); err != nil {
		return nil, err
	}
	logger.Debug("linked",
		"symbols", len(l.order),
		"externals", len(l.externalOrder),
		"namespaces", len(l.nsOrder))

	plans := l.planOutputs(opts)

	chunkFile := ""
	for _, plan := range plans {
		if plan.kind == KindChunk {
			chunkFile = plan.fileName
		}
	}

	var outputs []OutputFile
	for _, plan := range plans {
		outputs = append(outputs, OutputFile{
			Kind:      plan.kind,
			Path:      plan.fileName,
			Text:      l.render(plan, chunkFile),
			EntryPath: plan.entry,
		})
	}
	return outputs, nil
}
