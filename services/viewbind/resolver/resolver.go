// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolver answers questions about the variables a controller
// action hands to its view through setter calls:
//
//   - which controller file and action populate a view
//   - which bindings the action establishes
//   - what type a view variable has, following foreach loops, local
//     annotations and the controller binding in turn
//   - which fields and methods that type offers
//   - where a variable is declared and used, in both directions
//
// Every query is read-only and returns a fully materialized result. A
// missing file, class, method or binding yields an empty result, never an
// error.
package resolver

import (
	"log/slog"

	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/convention"
	"github.com/AleutianAI/viewbind/services/viewbind/typeterm"
	"go.opentelemetry.io/otel/trace"
)

// Defaults.
const (
	DefaultSetterName  = "setVar"
	DefaultMagicPrefix = "__"
	DefaultMaxDepth    = 16
)

// SyntaxSource hands out parsed files by path.
type SyntaxSource interface {
	File(path string) (*ast.File, bool)
}

// TypeOracle reports the statically inferred type of a node and resolves
// call targets. *typeinfo.Oracle satisfies it.
type TypeOracle interface {
	TypeOf(file *ast.File, node ast.Node) typeterm.Descriptor
	ResolveCall(file *ast.File, call *ast.CallExpr) (*ast.Symbol, bool)
}

// SymbolLookup finds class declarations and their members.
// *index.SymbolIndex satisfies it.
type SymbolLookup interface {
	ClassesByName(name string) []*ast.Symbol
	ClassesByFQN(fqn string) []*ast.Symbol
	Members(classFQN string) []*ast.Symbol
	FindMethod(classFQN, method string) (*ast.Symbol, bool)
	FindField(classFQN, field string) (*ast.Symbol, bool)
}

// FileLocator checks for files and searches them by base name.
type FileLocator interface {
	Exists(path string) bool
	FindByBaseName(name string) []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger for NotFound and tie-break diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMapper replaces the default naming convention.
func WithMapper(m *convention.Mapper) Option {
	return func(r *Resolver) {
		if m != nil {
			r.mapper = m
		}
	}
}

// WithSetterName sets the method name that binds view variables.
func WithSetterName(name string) Option {
	return func(r *Resolver) {
		if name != "" {
			r.setter = name
		}
	}
}

// WithMagicPrefix sets the method name prefix hidden from member lists.
func WithMagicPrefix(prefix string) Option {
	return func(r *Resolver) {
		if prefix != "" {
			r.magicPrefix = prefix
		}
	}
}

// WithMaxDepth bounds recursive inference. Non-positive values are ignored.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithTracer sets the tracer used for per-query spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Resolver) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// Resolver implements the binding queries over one consistent view of the
// project.
//
// Thread Safety:
//
//	Resolver holds only configuration fixed at construction; every query
//	keeps its state on the stack. It is safe for concurrent use provided
//	its collaborators are.
type Resolver struct {
	syntax  SyntaxSource
	types   TypeOracle
	symbols SymbolLookup
	files   FileLocator

	mapper      *convention.Mapper
	setter      string
	magicPrefix string
	maxDepth    int
	logger      *slog.Logger
	tracer      trace.Tracer
}

// New creates a Resolver.
//
// Example:
//
//	snap := ws.Snapshot()
//	r := resolver.New(snap, typeinfo.New(snap.Index()), snap.Index(), snap,
//	    resolver.WithLogger(logger))
//	bindings := r.ExtractBindings(ctx, convention.NewViewLocation("app/views/quest/show.php"))
func New(syntax SyntaxSource, types TypeOracle, symbols SymbolLookup, files FileLocator, opts ...Option) *Resolver {
	r := &Resolver{
		syntax:      syntax,
		types:       types,
		symbols:     symbols,
		files:       files,
		mapper:      convention.NewMapper(),
		setter:      DefaultSetterName,
		magicPrefix: DefaultMagicPrefix,
		maxDepth:    DefaultMaxDepth,
		logger:      slog.New(slog.DiscardHandler),
		tracer:      defaultTracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mapper returns the naming convention in use.
func (r *Resolver) Mapper() *convention.Mapper {
	return r.mapper
}

// ResolveController maps a view to its controller file and action name.
// The controller file is not required to exist.
func (r *Resolver) ResolveController(view convention.ViewLocation) (convention.ControllerLocation, bool) {
	loc, ok := r.mapper.ResolveController(view)
	if !ok {
		r.logger.Debug("not a view path", slog.String("view", view.Path))
	}
	return loc, ok
}
