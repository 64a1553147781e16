// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/typeterm"
	"go.opentelemetry.io/otel/attribute"
)

// Members are the visible fields and methods of the classes a type names.
type Members struct {
	Fields  []*ast.Symbol `json:"fields"`
	Methods []*ast.Symbol `json:"methods"`
}

// IsEmpty reports whether no member was found.
func (m Members) IsEmpty() bool {
	return len(m.Fields) == 0 && len(m.Methods) == 0
}

// ListMembers enumerates the non-private fields and the non-private,
// non-magic methods declared by each class the descriptor names.
//
// Description:
//
//	Each class term is looked up by its name; a qualified name that finds
//	nothing is retried with its last segment. A class whose qualified name
//	equals the term is listed alone; otherwise every matching class is
//	listed, in index order. Inherited members are not listed. Members keep
//	index order; a class named by several terms is listed once.
func (r *Resolver) ListMembers(ctx context.Context, desc typeterm.Descriptor) Members {
	ctx, done := r.observe(ctx, "list_members", attribute.String("type", desc.String()))
	var out Members
	defer func() { done(!out.IsEmpty()) }()

	seen := make(map[string]bool)
	for _, term := range r.cleanup(desc, newWalk(r.maxDepth)).Terms() {
		if ctx.Err() != nil {
			return Members{}
		}
		if !typeterm.IsClassName(term) {
			continue
		}
		for _, class := range r.classesFor(term) {
			if seen[class.QualifiedName] {
				continue
			}
			seen[class.QualifiedName] = true

			for _, m := range r.symbols.Members(class.QualifiedName) {
				if m.Visibility == ast.VisibilityPrivate {
					continue
				}
				switch m.Kind {
				case ast.SymbolKindField:
					out.Fields = append(out.Fields, m)
				case ast.SymbolKindMethod:
					if !strings.HasPrefix(m.Name, r.magicPrefix) {
						out.Methods = append(out.Methods, m)
					}
				}
			}
		}
	}
	return out
}

// classesFor returns the class symbols a cleaned class term refers to:
// the one whose qualified name equals the term, else every class with
// that short name in index order.
func (r *Resolver) classesFor(term string) []*ast.Symbol {
	term = typeterm.StripQualifier(term)
	candidates := r.symbols.ClassesByName(term)
	if len(candidates) == 0 {
		candidates = r.symbols.ClassesByName(typeterm.ShortName(term))
	}
	if len(candidates) == 0 {
		r.logger.Debug("class not found", slog.String("type", term))
		return nil
	}
	for _, c := range candidates {
		if c.QualifiedName == term {
			return []*ast.Symbol{c}
		}
	}
	if len(candidates) > 1 {
		r.logger.Debug("ambiguous class name, using every match",
			slog.String("type", term),
			slog.Int("candidates", len(candidates)))
	}
	return candidates
}
