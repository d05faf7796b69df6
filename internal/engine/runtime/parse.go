package runtime

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	domainerrors "tree-sitter-cerium/internal/core/errors"
	"tree-sitter-cerium/internal/shared/observability"
)

type ParseResult struct {
	Path     string
	Language string
	Sexp     string
	HasError bool
	Duration time.Duration
}

// Parser parses source files with the host languages attached to a loader.
type Parser struct {
	loader *GrammarLoader
}

func NewParser(loader *GrammarLoader) *Parser {
	return &Parser{loader: loader}
}

// ParseFile detects the language of path and parses its contents.
func (p *Parser) ParseFile(ctx context.Context, path string) (*ParseResult, error) {
	language, ok := p.loader.DetectLanguage(path)
	if !ok {
		de := &domainerrors.DomainError{Code: domainerrors.CodeNotSupported, Message: "unsupported language"}
		return nil, de.WithContext(domainerrors.CtxPath, path)
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, domainerrors.AddContext(err, domainerrors.CtxPath, path)
	}
	result, err := p.Parse(ctx, language, source)
	if err != nil {
		return nil, domainerrors.AddContext(err, domainerrors.CtxPath, path)
	}
	result.Path = path
	return result, nil
}

// Parse parses source as language. It fails with NOT_SUPPORTED when no
// compiled parser is attached to the language.
func (p *Parser) Parse(ctx context.Context, language string, source []byte) (*ParseResult, error) {
	pool, ok := p.loader.pool(language)
	if !ok {
		de := &domainerrors.DomainError{Code: domainerrors.CodeNotSupported, Message: "no compiled parser loaded"}
		return nil, de.WithContext(domainerrors.CtxLanguage, language)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := observability.StartParseSpan(ctx, language)
	defer span.End()

	sp, err := pool.Get()
	if err != nil {
		observability.RecordError(span, err)
		return nil, domainerrors.Wrap(err, domainerrors.CodeIncompatible, "host rejected language")
	}
	defer pool.Put(sp)

	start := time.Now()
	tree := parseWithContext(ctx, sp, source)
	elapsed := time.Since(start)
	observability.ParsingDuration.WithLabelValues(language).Observe(elapsed.Seconds())

	if tree == nil {
		err := ctx.Err()
		if err == nil {
			err = domainerrors.New(domainerrors.CodeInternal, "parser returned no tree")
		}
		observability.RecordError(span, err)
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	return &ParseResult{
		Language: language,
		Sexp:     root.ToSexp(),
		HasError: root.HasError(),
		Duration: elapsed,
	}, nil
}

// parseWithContext cancels the parse from the progress callback once ctx is done.
func parseWithContext(ctx context.Context, sp *sitter.Parser, source []byte) *sitter.Tree {
	var cancelled atomic.Bool
	stop := context.AfterFunc(ctx, func() { cancelled.Store(true) })
	defer stop()

	length := len(source)
	return sp.ParseWithOptions(func(i int, _ sitter.Point) []byte {
		if i < length {
			return source[i:]
		}
		return []byte{}
	}, nil, &sitter.ParseOptions{
		ProgressCallback: func(sitter.ParseState) bool { return cancelled.Load() },
	})
}
