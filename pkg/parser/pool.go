package parser

import (
	"fmt"
	"log/slog"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// parserPool hands out tree-sitter parsers for one grammar.
//
// Two channels carry the whole state: idle holds parsers ready for reuse
// and permits holds the remaining creation budget. acquire prefers an idle
// parser, spends a permit to create one otherwise, and blocks on idle once
// the budget is gone. Channel operations order everything, so no mutex is
// needed.
//
// close may only run once every parser is back in the pool; the Manager
// guarantees that by closing after all transforms finished.
type parserPool struct {
	lang    Language
	isTSX   bool
	langPtr unsafe.Pointer
	size    int
	idle    chan *ts.Parser
	permits chan struct{}
	logger  *slog.Logger
}

func newParserPool(lang Language, langPtr unsafe.Pointer, isTSX bool, size int, logger *slog.Logger) *parserPool {
	p := &parserPool{
		lang:    lang,
		isTSX:   isTSX,
		langPtr: langPtr,
		size:    size,
		idle:    make(chan *ts.Parser, size),
		permits: make(chan struct{}, size),
		logger:  logger,
	}
	for i := 0; i < size; i++ {
		p.permits <- struct{}{}
	}
	return p
}

// acquire returns a parser: an idle one when available, a fresh one while
// the creation budget lasts, otherwise the next one released.
func (p *parserPool) acquire() (*ts.Parser, error) {
	select {
	case parser := <-p.idle:
		return parser, nil
	default:
	}

	select {
	case parser := <-p.idle:
		return parser, nil
	case <-p.permits:
		parser, err := p.newParser()
		if err != nil {
			// refund the permit so the pool never shrinks on a failed create
			p.permits <- struct{}{}
			return nil, err
		}
		return parser, nil
	}
}

// newParser creates and configures one parser for this pool's grammar.
func (p *parserPool) newParser() (*ts.Parser, error) {
	parser := ts.NewParser()
	if parser == nil {
		return nil, fmt.Errorf("failed to create parser")
	}
	if err := parser.SetLanguage(ts.NewLanguage(p.langPtr)); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	p.logger.Debug("created parser in pool",
		"language", p.lang.String(),
		"isTSX", p.isTSX,
		"created", p.size-len(p.permits))
	return parser, nil
}

// release returns a parser to the pool. Never blocks: at most size parsers
// exist, matching the idle channel's capacity.
func (p *parserPool) release(parser *ts.Parser) {
	if parser == nil {
		return
	}
	p.idle <- parser
}

// close drains the pool and frees every parser. The pool is unusable after.
func (p *parserPool) close() {
	close(p.idle)
	for parser := range p.idle {
		if parser != nil {
			parser.Close()
		}
	}
}
