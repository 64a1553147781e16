// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package typeinfo

import (
	"log/slog"

	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/typeterm"
)

// variableType infers the type of one variable occurrence.
//
// Sources, in order of authority:
//  1. $this is the enclosing class.
//  2. An inline "@var T $name" comment before the occurrence in the same
//     scope overrides everything else.
//  3. Otherwise the union of the typed parameter of the enclosing function
//     and every assignment to the variable that ends before the occurrence.
//
// Loop variables are not typed here; foreach propagation belongs to the
// caller, which knows how to extract element types.
func (q *query) variableType(v *ast.VarRef, depth int) typeterm.Descriptor {
	if v.Name == "this" {
		if cd, ok := ast.Enclosing[*ast.ClassDecl](q.file.Root, v.Pos.Start); ok {
			if cd.FQN == "" {
				return typeterm.New("object")
			}
			return typeterm.New(typeterm.Separator + cd.FQN)
		}
		return typeterm.Unknown
	}
	if q.visiting[v] {
		q.oracle.logger.Debug("variable alias cycle",
			slog.String("file", q.file.Path),
			slog.String("variable", v.Name))
		return typeterm.Unknown
	}
	q.visiting[v] = true
	defer delete(q.visiting, v)

	scope, params := enclosingScope(q.file, v.Pos.Start)

	if doc := q.annotatedType(scope, v); !doc.IsEmpty() {
		return doc
	}

	var out typeterm.Descriptor
	for _, p := range params {
		if p.Name == v.Name && p.Type != "" {
			out = out.Union(typeterm.Parse(p.Type))
		}
	}
	for _, a := range assignmentsTo(scope, v) {
		out = out.Union(q.typeOf(a.Value, depth+1))
	}
	return out
}

// annotatedType returns the last "@var T $name" annotation for v that
// precedes it in scope.
func (q *query) annotatedType(scope ast.Node, v *ast.VarRef) typeterm.Descriptor {
	var typ string
	at := -1
	inScope(scope, func(n ast.Node) {
		c, ok := n.(*ast.Comment)
		if !ok || !c.IsDoc() || c.Pos.Start >= v.Pos.Start {
			return
		}
		for _, tag := range ast.DocTags(c.Text, "var") {
			if tag[1] == v.Name && c.Pos.Start > at {
				typ, at = tag[0], c.Pos.Start
			}
		}
	})
	if typ == "" {
		return typeterm.Unknown
	}
	return typeterm.Parse(q.file.ResolveType(typ, v.Pos.Start))
}

// assignmentsTo lists the plain assignments to v's variable that complete
// before v, in source order.
func assignmentsTo(scope ast.Node, v *ast.VarRef) []*ast.Assign {
	var out []*ast.Assign
	inScope(scope, func(n ast.Node) {
		a, ok := n.(*ast.Assign)
		if !ok || a.Value == nil || a.Pos.End > v.Pos.Start {
			return
		}
		if target, ok := a.Target.(*ast.VarRef); ok && target.Name == v.Name {
			out = append(out, a)
		}
	})
	return out
}

// enclosingScope returns the innermost function-like node containing
// offset, with its parameters, or the file root. Arrow functions share
// their parent's scope and only add their own parameters.
func enclosingScope(file *ast.File, offset int) (ast.Node, []*ast.Param) {
	var scope ast.Node = file.Root
	var params []*ast.Param
	for _, n := range ast.PathTo(file.Root, offset) {
		switch s := n.(type) {
		case *ast.MethodDecl:
			scope, params = s, s.Params
		case *ast.FunctionDecl:
			scope, params = s, s.Params
		case *ast.Closure:
			if s.Arrow {
				params = append(append([]*ast.Param(nil), params...), s.Params...)
				continue
			}
			scope, params = s, s.Params
		}
	}
	return scope, params
}

// inScope visits the nodes of scope without descending into nested
// functions, classes or non-arrow closures.
func inScope(scope ast.Node, fn func(ast.Node)) {
	ast.Inspect(scope, func(n ast.Node) bool {
		if n != scope {
			switch s := n.(type) {
			case *ast.MethodDecl, *ast.FunctionDecl, *ast.ClassDecl:
				return false
			case *ast.Closure:
				if !s.Arrow {
					return false
				}
			}
		}
		fn(n)
		return true
	})
}
