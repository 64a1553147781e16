// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/php"
)

const phpLanguage = "php"

// PHPParserOption configures a PHPParser instance.
type PHPParserOption func(*PHPParser)

// WithPHPMaxFileSize sets the maximum file size the parser will accept.
//
// Parameters:
//   - bytes: Maximum file size in bytes. Non-positive values are ignored.
//
// Example:
//
//	parser := NewPHPParser(WithPHPMaxFileSize(2 * 1024 * 1024))
func WithPHPMaxFileSize(bytes int64) PHPParserOption {
	return func(p *PHPParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithPHPLogger sets the logger used for parse diagnostics.
func WithPHPLogger(logger *slog.Logger) PHPParserOption {
	return func(p *PHPParser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// PHPParser converts PHP source into the typed syntax model and extracts
// class, member and function symbols.
//
// Description:
//
//	PHPParser uses tree-sitter to parse PHP files (controllers, models and
//	templates alike; inline HTML is skipped). Each Parse call creates its own
//	tree-sitter parser, and the tree-sitter tree is released before Parse
//	returns, so the resulting File holds no native resources.
//
// Thread Safety:
//
//	PHPParser instances are safe for concurrent use.
//
// Example:
//
//	parser := NewPHPParser()
//	result, err := parser.Parse(ctx, src, "app/Controller/QuestController.php")
//	if err != nil {
//	    return err
//	}
//	for _, sym := range result.Symbols {
//	    fmt.Println(sym.Kind, sym.QualifiedName)
//	}
type PHPParser struct {
	maxFileSize int64
	logger      *slog.Logger
}

// NewPHPParser creates a new PHPParser with the given options.
func NewPHPParser(opts ...PHPParserOption) *PHPParser {
	p := &PHPParser{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse converts PHP source code into a File and its Symbols.
//
// Description:
//
//	The parser is error tolerant: syntactically broken code still yields a
//	partial tree, and ParseResult.Errors notes the syntax errors.
//
// Inputs:
//   - ctx: Context for cancellation. Checked before and after parsing.
//   - content: Raw PHP source bytes. Must be valid UTF-8.
//   - filePath: Path recorded on the File and every Symbol.
//
// Outputs:
//   - *ParseResult: File plus extracted symbols. Never nil on success.
//   - error: Non-nil for complete failures:
//   - ErrFileTooLarge: Content exceeds maxFileSize
//   - ErrInvalidContent: Content is not valid UTF-8
//   - Context errors: Context was canceled or timed out
//
// Thread Safety:
//
//	This method is safe for concurrent use.
func (p *PHPParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, phpLanguage, filePath, len(content))
	defer span.End()

	start := time.Now()
	fail := func(symbols int, err error) (*ParseResult, error) {
		recordParseMetrics(ctx, phpLanguage, time.Since(start), symbols, false)
		return nil, err
	}

	switch {
	case ctx.Err() != nil:
		return fail(0, fmt.Errorf("parse canceled before start: %w", ctx.Err()))
	case int64(len(content)) > p.maxFileSize:
		return fail(0, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize))
	case !utf8.Valid(content):
		return fail(0, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent))
	}
	if len(content) > WarnFileSize {
		p.logger.Warn("parsing large PHP file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}

	parser := sitter.NewParser()
	parser.SetLanguage(php.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return fail(0, fmt.Errorf("tree-sitter parse failed: %w", err))
	}
	defer tree.Close()
	if err := ctx.Err(); err != nil {
		return fail(0, fmt.Errorf("parse canceled after tree-sitter: %w", err))
	}

	sum := sha256.Sum256(content)
	result := &ParseResult{
		FilePath:      filePath,
		Language:      phpLanguage,
		Hash:          hex.EncodeToString(sum[:]),
		ParsedAtMilli: time.Now().UnixMilli(),
		Symbols:       []*Symbol{},
		Errors:        []string{},
	}

	root := tree.RootNode()
	if root == nil {
		result.Errors = append(result.Errors, "tree-sitter returned nil root node")
		result.File = &File{Path: filePath, Source: content, Uses: map[string]string{}, Root: &Block{}}
		return result, nil
	}
	if root.HasError() {
		result.Errors = append(result.Errors, "source contains syntax errors")
		p.logger.Debug("php source contains syntax errors", slog.String("file", filePath))
	}

	c := newConverter(content, filePath)
	c.scanImports(root)
	result.File = c.convertFile(root)
	result.Symbols = c.symbols

	if err := result.Validate(); err != nil {
		return fail(0, fmt.Errorf("result validation failed: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return fail(len(result.Symbols), fmt.Errorf("parse canceled after extraction: %w", err))
	}

	setParseSpanResult(span, len(result.Symbols), len(result.Errors))
	recordParseMetrics(ctx, phpLanguage, time.Since(start), len(result.Symbols), true)
	return result, nil
}

// Language returns "php".
func (p *PHPParser) Language() string {
	return phpLanguage
}

// Extensions returns the file extensions this parser handles.
func (p *PHPParser) Extensions() []string {
	return []string{".php", ".phtml"}
}
