// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package index provides an in-memory, concurrency-safe index of PHP class
// and member symbols with the lookups the binding resolver needs: classes
// by short or qualified name, members by owning class, and member lookup
// through the extends chain.
//
// Class names are matched case-insensitively, as PHP does. Property names
// stay case-sensitive.
package index

import (
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/typeterm"
)

// DefaultMaxSymbols bounds the index when no WithMaxSymbols is given.
const DefaultMaxSymbols = 1_000_000

// SymbolIndexOption configures a SymbolIndex.
type SymbolIndexOption func(*SymbolIndex)

// WithMaxSymbols caps the number of symbols the index accepts. Adds past
// the cap fail with ErrMaxSymbolsExceeded. Non-positive values are ignored.
func WithMaxSymbols(max int) SymbolIndexOption {
	return func(idx *SymbolIndex) {
		if max > 0 {
			idx.limit = max
		}
	}
}

// IndexStats summarizes the index contents.
type IndexStats struct {
	TotalSymbols int `json:"total_symbols"`
	FileCount    int `json:"file_count"`
	ClassCount   int `json:"class_count"`
	MethodCount  int `json:"method_count"`
	FieldCount   int `json:"field_count"`
	MaxSymbols   int `json:"max_symbols"`
}

// classEntry collects everything known under one qualified class name.
// Several files may declare the same name; decls keeps them all.
type classEntry struct {
	decls   []*ast.Symbol
	members []*ast.Symbol
}

func (e *classEntry) empty() bool {
	return len(e.decls) == 0 && len(e.members) == 0
}

// extends returns the parent of the first declaration that names one.
func (e *classEntry) extends() string {
	for _, d := range e.decls {
		if d.Extends != "" {
			return d.Extends
		}
	}
	return ""
}

// SymbolIndex answers class and member queries over parsed PHP files.
//
// Description:
//
//	Symbols are grouped by owning class: each qualified class name maps to
//	its declarations and the fields and methods declared in them. A second
//	map from short class name to declarations serves unqualified lookups,
//	and a per-file list makes re-indexing one file cheap.
//
//	All lists keep insertion order, and removal keeps the relative order of
//	what remains, so lookups returning several candidates are stable across
//	reloads.
//
// Thread Safety:
//
//	SymbolIndex is safe for concurrent use. Symbols are shared, not
//	copied, and must not be mutated once added.
type SymbolIndex struct {
	mu sync.RWMutex

	ids     map[string]*ast.Symbol
	classes map[string]*classEntry   // folded FQN
	short   map[string][]*ast.Symbol // folded short name, class-like only
	files   map[string][]*ast.Symbol

	limit int
}

// NewSymbolIndex creates an empty index.
//
// Example:
//
//	idx := NewSymbolIndex(WithMaxSymbols(100_000))
//	if err := idx.AddBatch(ast.Flatten(result.Symbols)); err != nil {
//	    return err
//	}
func NewSymbolIndex(opts ...SymbolIndexOption) *SymbolIndex {
	idx := &SymbolIndex{
		ids:     make(map[string]*ast.Symbol),
		classes: make(map[string]*classEntry),
		short:   make(map[string][]*ast.Symbol),
		files:   make(map[string][]*ast.Symbol),
		limit:   DefaultMaxSymbols,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// classKey normalizes a class name for map lookups.
func classKey(fqn string) string {
	return strings.ToLower(typeterm.StripQualifier(fqn))
}

// Add indexes one symbol.
//
// Errors:
//
//	ErrInvalidSymbol - Symbol is nil or failed validation
//	ErrDuplicateSymbol - A symbol with the same ID is indexed
//	ErrMaxSymbolsExceeded - Index is at capacity
func (idx *SymbolIndex) Add(symbol *ast.Symbol) error {
	if symbol == nil {
		return fmt.Errorf("%w: symbol is nil", ErrInvalidSymbol)
	}
	if err := symbol.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSymbol, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.ids) >= idx.limit {
		return ErrMaxSymbolsExceeded
	}
	if _, dup := idx.ids[symbol.ID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, symbol.ID)
	}
	idx.insertLocked(symbol)
	return nil
}

// AddBatch indexes every symbol of a file, or none of them.
//
// Description:
//
//	The whole batch is checked first: nil or invalid symbols and IDs
//	repeated inside the batch or already indexed are all reported together
//	in one *BatchError, and the index is left untouched.
//
// Errors:
//
//	*BatchError - Every invalid or duplicate symbol in the batch
//	ErrMaxSymbolsExceeded - The batch does not fit
func (idx *SymbolIndex) AddBatch(symbols []*ast.Symbol) error {
	if len(symbols) == 0 {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.ids)+len(symbols) > idx.limit {
		return ErrMaxSymbolsExceeded
	}
	if err := idx.checkBatchLocked(symbols); err != nil {
		return err
	}
	for _, sym := range symbols {
		idx.insertLocked(sym)
	}
	return nil
}

func (idx *SymbolIndex) checkBatchLocked(symbols []*ast.Symbol) error {
	var errs []error
	first := make(map[string]int, len(symbols))
	for i, sym := range symbols {
		if sym == nil {
			errs = append(errs, fmt.Errorf("symbol[%d]: %w: symbol is nil", i, ErrInvalidSymbol))
			continue
		}
		if err := sym.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("symbol[%d]: %w: %v", i, ErrInvalidSymbol, err))
			continue
		}
		if j, seen := first[sym.ID]; seen {
			errs = append(errs, fmt.Errorf("symbol[%d]: %w in batch (same as symbol[%d]): %s",
				i, ErrDuplicateSymbol, j, sym.ID))
			continue
		}
		first[sym.ID] = i
		if _, dup := idx.ids[sym.ID]; dup {
			errs = append(errs, fmt.Errorf("symbol[%d]: %w: %s", i, ErrDuplicateSymbol, sym.ID))
		}
	}
	if len(errs) > 0 {
		return &BatchError{Errors: errs}
	}
	return nil
}

func (idx *SymbolIndex) insertLocked(sym *ast.Symbol) {
	idx.ids[sym.ID] = sym
	idx.files[sym.FilePath] = append(idx.files[sym.FilePath], sym)

	switch {
	case sym.Kind.IsClassLike():
		e := idx.entryLocked(sym.QualifiedName)
		e.decls = append(e.decls, sym)
		key := strings.ToLower(sym.Name)
		idx.short[key] = append(idx.short[key], sym)
	case sym.Parent != "":
		e := idx.entryLocked(sym.Parent)
		e.members = append(e.members, sym)
	}
}

func (idx *SymbolIndex) entryLocked(fqn string) *classEntry {
	key := classKey(fqn)
	e, ok := idx.classes[key]
	if !ok {
		e = &classEntry{}
		idx.classes[key] = e
	}
	return e
}

// ClassesByName returns the class-like symbols whose short name is name,
// in insertion order.
func (idx *SymbolIndex) ClassesByName(name string) []*ast.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return clone(idx.short[strings.ToLower(name)])
}

// ClassesByFQN returns every declaration of the qualified class name. A
// leading namespace separator is ignored.
func (idx *SymbolIndex) ClassesByFQN(fqn string) []*ast.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if e, ok := idx.classes[classKey(fqn)]; ok {
		return clone(e.decls)
	}
	return nil
}

// Members returns the fields and methods declared directly in the class,
// in declaration order. Inherited members are not included.
func (idx *SymbolIndex) Members(classFQN string) []*ast.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if e, ok := idx.classes[classKey(classFQN)]; ok {
		return clone(e.members)
	}
	return nil
}

// FindMethod looks a method up on the class and then along its extends
// chain. Method names are case-insensitive.
func (idx *SymbolIndex) FindMethod(classFQN, method string) (*ast.Symbol, bool) {
	return idx.findMember(classFQN, ast.SymbolKindMethod, func(s *ast.Symbol) bool {
		return strings.EqualFold(s.Name, method)
	})
}

// FindField looks a property up on the class and then along its extends
// chain. The name is given with or without "$".
func (idx *SymbolIndex) FindField(classFQN, field string) (*ast.Symbol, bool) {
	field = strings.TrimPrefix(field, "$")
	return idx.findMember(classFQN, ast.SymbolKindField, func(s *ast.Symbol) bool {
		return s.Name == field
	})
}

func (idx *SymbolIndex) findMember(classFQN string, kind ast.SymbolKind, match func(*ast.Symbol) bool) (*ast.Symbol, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var found *ast.Symbol
	idx.walkChainLocked(classFQN, func(_ string, e *classEntry) bool {
		for _, m := range e.members {
			if m.Kind == kind && match(m) {
				found = m
				return false
			}
		}
		return true
	})
	return found, found != nil
}

// Ancestors returns classFQN followed by its parents, nearest first. The
// chain ends at the first class that is not indexed or repeats.
func (idx *SymbolIndex) Ancestors(classFQN string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var chain []string
	idx.walkChainLocked(classFQN, func(fqn string, _ *classEntry) bool {
		chain = append(chain, fqn)
		return true
	})
	return chain
}

// walkChainLocked visits classFQN and its parents until visit returns
// false, a class is missing, or the hierarchy cycles.
func (idx *SymbolIndex) walkChainLocked(classFQN string, visit func(fqn string, e *classEntry) bool) {
	seen := make(map[string]bool)
	current := typeterm.StripQualifier(classFQN)
	for current != "" {
		key := strings.ToLower(current)
		if seen[key] {
			return
		}
		seen[key] = true

		e, ok := idx.classes[key]
		if !ok {
			visit(current, &classEntry{})
			return
		}
		if !visit(current, e) {
			return
		}
		current = typeterm.StripQualifier(e.extends())
	}
}

// RemoveByFile drops every symbol that came from filePath and reports how
// many there were. Call it before AddBatch when re-indexing a file.
func (idx *SymbolIndex) RemoveByFile(filePath string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	symbols := idx.files[filePath]
	if len(symbols) == 0 {
		return 0
	}
	delete(idx.files, filePath)

	fromFile := func(s *ast.Symbol) bool { return s.FilePath == filePath }
	touched := make(map[string]bool)
	for _, sym := range symbols {
		delete(idx.ids, sym.ID)
		switch {
		case sym.Kind.IsClassLike():
			touched[classKey(sym.QualifiedName)] = true
			key := strings.ToLower(sym.Name)
			if rest := without(idx.short[key], fromFile); len(rest) > 0 {
				idx.short[key] = rest
			} else {
				delete(idx.short, key)
			}
		case sym.Parent != "":
			touched[classKey(sym.Parent)] = true
		}
	}
	for key := range touched {
		e, ok := idx.classes[key]
		if !ok {
			continue
		}
		e.decls = without(e.decls, fromFile)
		e.members = without(e.members, fromFile)
		if e.empty() {
			delete(idx.classes, key)
		}
	}
	return len(symbols)
}

// Stats counts the indexed symbols.
func (idx *SymbolIndex) Stats() IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	stats := IndexStats{
		TotalSymbols: len(idx.ids),
		FileCount:    len(idx.files),
		MaxSymbols:   idx.limit,
	}
	for _, e := range idx.classes {
		if len(e.decls) > 0 {
			stats.ClassCount++
		}
		for _, m := range e.members {
			switch m.Kind {
			case ast.SymbolKindMethod:
				stats.MethodCount++
			case ast.SymbolKindField:
				stats.FieldCount++
			}
		}
	}
	return stats
}

// Clone returns an independent copy. Workspace snapshots are built from
// clones so a running query never observes a half-applied reload. Symbol
// pointers are shared.
func (idx *SymbolIndex) Clone() *SymbolIndex {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := &SymbolIndex{
		ids:     maps.Clone(idx.ids),
		classes: make(map[string]*classEntry, len(idx.classes)),
		short:   make(map[string][]*ast.Symbol, len(idx.short)),
		files:   make(map[string][]*ast.Symbol, len(idx.files)),
		limit:   idx.limit,
	}
	for k, e := range idx.classes {
		out.classes[k] = &classEntry{decls: clone(e.decls), members: clone(e.members)}
	}
	for k, v := range idx.short {
		out.short[k] = clone(v)
	}
	for k, v := range idx.files {
		out.files[k] = clone(v)
	}
	return out
}

// clone copies src so callers and clones never share a backing array.
func clone(src []*ast.Symbol) []*ast.Symbol {
	if len(src) == 0 {
		return nil
	}
	out := make([]*ast.Symbol, len(src))
	copy(out, src)
	return out
}

// without returns a new slice of the symbols in src that drop rejects.
func without(src []*ast.Symbol, drop func(*ast.Symbol) bool) []*ast.Symbol {
	out := make([]*ast.Symbol, 0, len(src))
	for _, s := range src {
		if !drop(s) {
			out = append(out, s)
		}
	}
	return out
}
