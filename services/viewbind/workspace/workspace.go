// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workspace loads a PHP project through a virtual file system,
// parses it concurrently and hands out immutable snapshots of the parsed
// files and the symbol index.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/convention"
	"github.com/AleutianAI/viewbind/services/viewbind/index"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("viewbind.workspace")

// Defaults.
const (
	DefaultConcurrency = 8
)

// DefaultExcludeDirs are directory names never descended into.
var DefaultExcludeDirs = []string{"vendor", ".git", "node_modules"}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithFS replaces the file system service.
func WithFS(fs afs.Service) Option {
	return func(w *Workspace) {
		if fs != nil {
			w.fs = fs
		}
	}
}

// WithParser replaces the PHP parser.
func WithParser(p *ast.PHPParser) Option {
	return func(w *Workspace) {
		if p != nil {
			w.parser = p
		}
	}
}

// WithExtensions sets the file extensions that are parsed.
func WithExtensions(exts ...string) Option {
	return func(w *Workspace) {
		if len(exts) > 0 {
			w.extensions = append([]string(nil), exts...)
		}
	}
}

// WithExcludeDirs sets the directory names skipped while listing.
func WithExcludeDirs(dirs ...string) Option {
	return func(w *Workspace) {
		w.exclude = make(map[string]bool, len(dirs))
		for _, d := range dirs {
			w.exclude[d] = true
		}
	}
}

// WithConcurrency bounds the number of files parsed at once.
func WithConcurrency(n int) Option {
	return func(w *Workspace) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithIndexOptions passes options to every symbol index the workspace
// builds.
func WithIndexOptions(opts ...index.SymbolIndexOption) Option {
	return func(w *Workspace) {
		w.indexOpts = append(w.indexOpts, opts...)
	}
}

// Workspace owns the parsed files and the symbol index of one project.
//
// Description:
//
//	Files are keyed by their path relative to the root, with "/"
//	separators. Load replaces everything; Reload and Forget update a
//	single file. Readers never see the live state: Snapshot copies the
//	file map and clones the index.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Workspace struct {
	root        string
	fs          afs.Service
	parser      *ast.PHPParser
	extensions  []string
	exclude     map[string]bool
	concurrency int
	indexOpts   []index.SymbolIndexOption
	logger      *slog.Logger

	mu     sync.RWMutex
	files  map[string]*ast.File
	index  *index.SymbolIndex
	loaded bool
}

// New creates a Workspace rooted at root, a local directory or an afs URL
// such as "mem://localhost/project".
func New(root string, opts ...Option) (*Workspace, error) {
	if url.Scheme(root, "") == "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving root %q: %w", root, err)
		}
		root = file.Scheme + "://localhost" + filepath.ToSlash(abs)
	}
	w := &Workspace{
		root:        strings.TrimSuffix(root, "/"),
		fs:          afs.New(),
		parser:      ast.NewPHPParser(),
		extensions:  convention.DefaultViewExtensions,
		concurrency: DefaultConcurrency,
		logger:      slog.New(slog.DiscardHandler),
		files:       make(map[string]*ast.File),
	}
	WithExcludeDirs(DefaultExcludeDirs...)(w)
	for _, opt := range opts {
		opt(w)
	}
	w.index = index.NewSymbolIndex(w.indexOpts...)
	return w, nil
}

// Root returns the root URL.
func (w *Workspace) Root() string {
	return w.root
}

// Load lists the project, parses every matching file and replaces the
// workspace state.
//
// Description:
//
//	Files are parsed concurrently, at most the configured number at a
//	time. A file that cannot be read or parsed is logged and skipped; only
//	a failed listing or a canceled context fails the load.
//
// Outputs:
//
//	int - Number of files loaded.
//	error - Listing or context errors.
func (w *Workspace) Load(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "workspace.Load")
	defer span.End()
	start := time.Now()

	objects, err := w.fs.List(ctx, w.root, option.NewRecursive(true))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("listing %s: %w", w.root, err)
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*ast.ParseResult)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, obj := range objects {
		if obj.IsDir() {
			continue
		}
		rel, ok := w.relURL(obj.URL())
		if !ok || !w.wanted(rel) {
			continue
		}
		objURL := obj.URL()
		g.Go(func() error {
			result, err := w.parse(gctx, objURL, rel)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				w.logger.Warn("skipping file",
					slog.String("file", rel),
					slog.String("error", err.Error()))
				return nil
			}
			mu.Lock()
			results[rel] = result
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("loading %s: %w", w.root, err)
	}

	idx := index.NewSymbolIndex(w.indexOpts...)
	files := make(map[string]*ast.File, len(results))
	// Files are indexed in path order, which fixes the index order.
	for _, rel := range slices.Sorted(maps.Keys(results)) {
		result := results[rel]
		if err := idx.AddBatch(ast.Flatten(result.Symbols)); err != nil {
			w.logger.Warn("skipping file symbols",
				slog.String("file", rel),
				slog.String("error", err.Error()))
		}
		files[rel] = result.File
	}

	w.mu.Lock()
	w.files = files
	w.index = idx
	w.loaded = true
	w.mu.Unlock()

	stats := idx.Stats()
	span.SetAttributes(
		attribute.Int("workspace.files", len(files)),
		attribute.Int("workspace.symbols", stats.TotalSymbols),
	)
	w.logger.Info("workspace loaded",
		slog.String("root", w.root),
		slog.Int("files", len(files)),
		slog.Int("classes", stats.ClassCount),
		slog.Duration("duration", time.Since(start)))
	return len(files), nil
}

// Reload re-reads and re-parses one file. A file that no longer exists is
// forgotten.
func (w *Workspace) Reload(ctx context.Context, p string) error {
	rel, err := w.Rel(p)
	if err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "workspace.Reload",
		trace.WithAttributes(attribute.String("workspace.file", rel)))
	defer span.End()

	if !w.isLoaded() {
		return ErrNotLoaded
	}
	objURL := url.Join(w.root, rel)
	exists, err := w.fs.Exists(ctx, objURL)
	if err != nil {
		return fmt.Errorf("checking %s: %w", rel, err)
	}
	if !exists {
		w.Forget(rel)
		return nil
	}
	if !w.wanted(rel) {
		return nil
	}
	result, err := w.parse(ctx, objURL, rel)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.index.RemoveByFile(rel)
	if err := w.index.AddBatch(ast.Flatten(result.Symbols)); err != nil {
		delete(w.files, rel)
		return fmt.Errorf("indexing %s: %w", rel, err)
	}
	w.files[rel] = result.File
	w.logger.Debug("file reloaded", slog.String("file", rel))
	return nil
}

// Forget drops a file and its symbols. It reports whether the file was
// known.
func (w *Workspace) Forget(p string) bool {
	rel, err := w.Rel(p)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[rel]; !ok {
		return false
	}
	delete(w.files, rel)
	removed := w.index.RemoveByFile(rel)
	w.logger.Debug("file forgotten",
		slog.String("file", rel),
		slog.Int("symbols", removed))
	return true
}

// Snapshot returns an immutable copy of the current state.
func (w *Workspace) Snapshot() (*Snapshot, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.loaded {
		return nil, ErrNotLoaded
	}
	files := make(map[string]*ast.File, len(w.files))
	for k, v := range w.files {
		files[k] = v
	}
	return &Snapshot{files: files, index: w.index.Clone()}, nil
}

// Rel converts p to a root-relative "/" path. p may be relative to the
// root, an absolute local path or a URL under the root.
func (w *Workspace) Rel(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrOutsideRoot)
	}
	if url.Scheme(p, "") != "" {
		if rel, ok := w.relURL(p); ok {
			return rel, nil
		}
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	normalized := convention.NormalizePath(p)
	if strings.HasPrefix(normalized, "/") || filepath.IsAbs(p) {
		if rel, ok := w.relPath(normalized); ok {
			return rel, nil
		}
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	rel := path.Clean(normalized)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return rel, nil
}

func (w *Workspace) relURL(u string) (string, bool) {
	return w.relPath(url.Path(u))
}

func (w *Workspace) relPath(p string) (string, bool) {
	base := strings.TrimSuffix(url.Path(w.root), "/")
	p = path.Clean(p)
	if !strings.HasPrefix(p, base+"/") {
		return "", false
	}
	return p[len(base)+1:], true
}

// wanted reports whether rel has a parsed extension and lies outside the
// excluded directories.
func (w *Workspace) wanted(rel string) bool {
	if w.excluded(path.Dir(rel)) {
		return false
	}
	ext := path.Ext(rel)
	for _, e := range w.extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// excluded reports whether any segment of the directory dir is excluded.
func (w *Workspace) excluded(dir string) bool {
	for _, seg := range strings.Split(dir, "/") {
		if w.exclude[seg] {
			return true
		}
	}
	return false
}

func (w *Workspace) parse(ctx context.Context, objURL, rel string) (*ast.ParseResult, error) {
	data, err := w.fs.DownloadWithURL(ctx, objURL)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	result, err := w.parser.Parse(ctx, data, rel)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rel, err)
	}
	if len(result.Errors) > 0 {
		w.logger.Debug("parsed with errors",
			slog.String("file", rel),
			slog.Any("errors", result.Errors))
	}
	return result, nil
}

func (w *Workspace) isLoaded() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loaded
}
