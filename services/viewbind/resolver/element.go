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

// ElementType extracts the element type of a collection type.
//
// Description:
//
//	The extraction rules are tried in order; for each rule every term is
//	tried in order, and the first term a rule accepts decides the result:
//
//	  1. T[]                       -> T
//	  2. array<T>, list<T>, iterable<T>, array<K, V>, ... -> T or V
//	  3. a term that is itself a "A|B" union: rules 1 and 2 on its members
//	  4. #M#C\Class.method         -> element of the method's return type
//	  5. #π(R)                     -> element of R
//	  6. a class name              -> the class itself
//
//	Class names in the result carry no leading separator.
//
// Outputs:
//
//	typeterm.Descriptor - Unknown when no rule applies.
func (r *Resolver) ElementType(ctx context.Context, desc typeterm.Descriptor) typeterm.Descriptor {
	ctx, done := r.observe(ctx, "element_type", attribute.String("type", desc.String()))
	out := typeterm.Unknown
	if ctx.Err() == nil {
		out = r.elementOf(desc, newWalk(r.maxDepth))
	}
	done(!out.IsEmpty())
	return out
}

// walk bounds one recursive resolution: a depth budget plus the encoded
// terms already being expanded.
type walk struct {
	depth    int
	max      int
	expanded map[string]bool
}

func newWalk(max int) *walk {
	return &walk{max: max, expanded: make(map[string]bool)}
}

// enter reserves one level of recursion for term. It fails when the
// budget is spent or term is already being expanded.
func (w *walk) enter(term string) bool {
	if w.depth >= w.max {
		inferenceDepthExceededTotal.Inc()
		return false
	}
	if w.expanded[term] {
		return false
	}
	w.depth++
	w.expanded[term] = true
	return true
}

func (w *walk) leave(term string) {
	w.depth--
	delete(w.expanded, term)
}

func (r *Resolver) elementOf(desc typeterm.Descriptor, w *walk) typeterm.Descriptor {
	terms := desc.Terms()
	rules := []func(string, *walk) (typeterm.Descriptor, bool){
		r.arrayElement,
		r.genericElement,
		r.unionElement,
		r.methodRefElement,
		r.closureElement,
		r.classElement,
	}
	for _, rule := range rules {
		for _, t := range terms {
			if elem, ok := rule(strings.TrimPrefix(t, "?"), w); ok && !elem.IsEmpty() {
				return elem
			}
		}
	}
	return typeterm.Unknown
}

func (r *Resolver) arrayElement(t string, w *walk) (typeterm.Descriptor, bool) {
	elem, ok := typeterm.ArrayOf(t)
	if !ok {
		return typeterm.Unknown, false
	}
	return r.cleanup(typeterm.New(elem), w), true
}

func (r *Resolver) genericElement(t string, w *walk) (typeterm.Descriptor, bool) {
	elem, ok := typeterm.GenericElement(t)
	if !ok {
		return typeterm.Unknown, false
	}
	return r.cleanup(typeterm.Parse(elem), w), true
}

func (r *Resolver) unionElement(t string, w *walk) (typeterm.Descriptor, bool) {
	members := typeterm.SplitTopLevel(t, '|')
	if len(members) < 2 {
		return typeterm.Unknown, false
	}
	for _, rule := range []func(string, *walk) (typeterm.Descriptor, bool){r.arrayElement, r.genericElement} {
		for _, m := range members {
			if elem, ok := rule(m, w); ok && !elem.IsEmpty() {
				return elem, true
			}
		}
	}
	return typeterm.Unknown, false
}

func (r *Resolver) methodRefElement(t string, w *walk) (typeterm.Descriptor, bool) {
	class, method, ok := typeterm.MethodRef(t)
	if !ok {
		return typeterm.Unknown, false
	}
	ret, found := r.methodReturnType(class, method)
	if !found || !w.enter(t) {
		return typeterm.Unknown, false
	}
	defer w.leave(t)
	return r.elementOf(ret, w), true
}

func (r *Resolver) closureElement(t string, w *walk) (typeterm.Descriptor, bool) {
	inner, ok := typeterm.ClosureInner(t)
	if !ok || !w.enter(t) {
		return typeterm.Unknown, false
	}
	defer w.leave(t)
	return r.elementOf(typeterm.Parse(inner), w), true
}

func (r *Resolver) classElement(t string, _ *walk) (typeterm.Descriptor, bool) {
	if !typeterm.IsClassName(t) {
		return typeterm.Unknown, false
	}
	return typeterm.New(typeterm.StripQualifier(t)), true
}

// methodReturnType resolves the class of a method reference, preferring a
// class found by short name whose qualified name matches, then by
// qualified name, and returns the declared return type of the method
// along its extends chain.
func (r *Resolver) methodReturnType(class, method string) (typeterm.Descriptor, bool) {
	class = typeterm.StripQualifier(class)
	fqn := ""
	for _, c := range r.symbols.ClassesByName(typeterm.ShortName(class)) {
		if c.QualifiedName == class {
			fqn = c.QualifiedName
			break
		}
	}
	if fqn == "" {
		if byFQN := r.symbols.ClassesByFQN(class); len(byFQN) > 0 {
			fqn = byFQN[0].QualifiedName
		}
	}
	if fqn == "" {
		r.logger.Debug("method reference class not found",
			slog.String("class", class),
			slog.String("method", method))
		return typeterm.Unknown, false
	}
	sym, ok := r.symbols.FindMethod(fqn, method)
	if !ok {
		r.logger.Debug("method reference not found",
			slog.String("class", fqn),
			slog.String("method", method))
		return typeterm.Unknown, false
	}
	return returnType(sym), true
}

func returnType(sym *ast.Symbol) typeterm.Descriptor {
	return typeterm.Parse(sym.Type)
}

// cleanup turns oracle output into user-facing terms: lazy method
// references are replaced by the method's return type, closure types by
// their return type, other internal encodings are dropped and leading
// namespace separators are stripped.
func (r *Resolver) cleanup(desc typeterm.Descriptor, w *walk) typeterm.Descriptor {
	var out typeterm.Descriptor
	for _, t := range desc.Terms() {
		switch {
		case strings.HasPrefix(t, typeterm.MethodRefPrefix):
			class, method, ok := typeterm.MethodRef(t)
			if !ok {
				continue
			}
			ret, found := r.methodReturnType(class, method)
			if !found || !w.enter(t) {
				continue
			}
			out = out.Union(r.cleanup(ret, w))
			w.leave(t)
		case strings.HasPrefix(t, typeterm.ClosurePrefix):
			inner, ok := typeterm.ClosureInner(t)
			if !ok || !w.enter(t) {
				continue
			}
			out = out.Union(r.cleanup(typeterm.Parse(inner), w))
			w.leave(t)
		case typeterm.IsEncoded(t):
			continue
		default:
			out = out.Union(typeterm.New(t).Clean())
		}
	}
	return out
}
