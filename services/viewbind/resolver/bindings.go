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
	"sort"

	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/convention"
	"go.opentelemetry.io/otel/attribute"
)

// Binding is one setter call in a controller action: the literal key and
// the expression bound to it.
type Binding struct {
	Key string `json:"key"`

	// KeyLiteral is the first argument of the setter call.
	KeyLiteral *ast.StringLit `json:"-"`

	Call  *ast.CallExpr `json:"-"`
	Value ast.Node      `json:"-"`

	// File is the controller file; Method the action declaring the call.
	File   *ast.File       `json:"-"`
	Method *ast.MethodDecl `json:"-"`
}

// action is the controller method populating a view.
type action struct {
	loc    convention.ControllerLocation
	file   *ast.File
	method *ast.MethodDecl
}

// findAction resolves the view to its controller action. Each miss is a
// normal outcome and is only logged.
func (r *Resolver) findAction(view convention.ViewLocation) (action, bool) {
	loc, ok := r.ResolveController(view)
	if !ok {
		return action{}, false
	}
	file, ok := r.syntax.File(loc.Path)
	if !ok {
		r.logger.Debug("controller file not found",
			slog.String("view", view.Path),
			slog.String("controller", loc.Path))
		return action{}, false
	}
	method := findMethod(file, loc.ClassName, loc.ActionName)
	if method == nil || method.Body == nil {
		r.logger.Debug("action method not found",
			slog.String("controller", loc.Path),
			slog.String("action", loc.ActionName))
		return action{}, false
	}
	return action{loc: loc, file: file, method: method}, true
}

// findMethod returns the first method called name, looking at the class
// named className first and then at every other class in the file.
func findMethod(file *ast.File, className, name string) *ast.MethodDecl {
	if cd := file.Class(className); cd != nil {
		if m := cd.Method(name); m != nil {
			return m
		}
	}
	for _, cd := range file.Classes {
		if cd.Name == className {
			continue
		}
		if m := cd.Method(name); m != nil {
			return m
		}
	}
	return nil
}

// setterCalls lists the setter calls in the action body whose first
// argument is a constant string, in source order. Calls nested in closures
// defined by the action count; calls in other methods do not, including
// methods of anonymous classes and functions declared inside the action.
func (r *Resolver) setterCalls(method *ast.MethodDecl) []*ast.CallExpr {
	var out []*ast.CallExpr
	ast.Inspect(method.Body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.ClassDecl, *ast.FunctionDecl:
			return false
		case *ast.CallExpr:
			if r.isSetterCall(n) {
				out = append(out, n)
			}
		}
		return true
	})
	return out
}

func (r *Resolver) isSetterCall(call *ast.CallExpr) bool {
	if call.Style == ast.CallFunction || call.Name != r.setter {
		return false
	}
	_, ok := keyLiteral(call)
	return ok
}

// keyLiteral returns the first argument of call when it is a constant
// string.
func keyLiteral(call *ast.CallExpr) (*ast.StringLit, bool) {
	if len(call.Args) == 0 {
		return nil, false
	}
	lit, ok := call.Args[0].(*ast.StringLit)
	if !ok || lit.Interpolated {
		return nil, false
	}
	return lit, true
}

// ExtractBindings returns the bindings the view's controller action
// establishes, keyed by name.
//
// Description:
//
//	Only setter calls inside the action method's body are considered.
//	Calls with fewer than two arguments or a non-constant key are skipped.
//	When a key is set more than once the last call in source order wins.
//
// Outputs:
//
//	map[string]Binding - Never nil. Empty when the view does not map to a
//	controller, the controller file or action is missing, or the action
//	sets nothing.
func (r *Resolver) ExtractBindings(ctx context.Context, view convention.ViewLocation) map[string]Binding {
	ctx, done := r.observe(ctx, "extract_bindings", attribute.String("view", view.Path))
	out := r.extractBindings(ctx, view)
	done(len(out) > 0)
	return out
}

func (r *Resolver) extractBindings(ctx context.Context, view convention.ViewLocation) map[string]Binding {
	out := make(map[string]Binding)
	if ctx.Err() != nil {
		return out
	}
	act, ok := r.findAction(view)
	if !ok {
		return out
	}
	for _, call := range r.setterCalls(act.method) {
		if len(call.Args) < 2 {
			continue
		}
		lit, _ := keyLiteral(call)
		out[lit.Value] = Binding{
			Key:        lit.Value,
			KeyLiteral: lit,
			Call:       call,
			Value:      call.Args[1],
			File:       act.file,
			Method:     act.method,
		}
	}
	return out
}

// Variants returns the keys of every setter call with a constant key in
// the view's controller action, sorted and without duplicates. Calls that
// do not yet have a value argument count, so completion works while the
// call is being typed.
func (r *Resolver) Variants(ctx context.Context, view convention.ViewLocation) []string {
	ctx, done := r.observe(ctx, "variants", attribute.String("view", view.Path))
	var out []string
	defer func() { done(len(out) > 0) }()

	if ctx.Err() != nil {
		return out
	}
	act, ok := r.findAction(view)
	if !ok {
		return out
	}
	seen := make(map[string]bool)
	for _, call := range r.setterCalls(act.method) {
		lit, _ := keyLiteral(call)
		if !seen[lit.Value] {
			seen[lit.Value] = true
			out = append(out, lit.Value)
		}
	}
	sort.Strings(out)
	return out
}

// IsBindingWrite reports whether the string literal at offset in path is
// the key argument of a setter call, anywhere in the file.
func (r *Resolver) IsBindingWrite(ctx context.Context, path string, offset int) bool {
	if ctx.Err() != nil {
		return false
	}
	file, ok := r.syntax.File(convention.NormalizePath(path))
	if !ok {
		return false
	}
	_, ok = r.setterCallAt(file, offset)
	return ok
}

// setterCallAt returns the setter call whose constant key argument covers
// offset.
func (r *Resolver) setterCallAt(file *ast.File, offset int) (*ast.CallExpr, bool) {
	for _, n := range ast.PathTo(file.Root, offset) {
		call, ok := n.(*ast.CallExpr)
		if !ok || call.Style == ast.CallFunction || call.Name != r.setter {
			continue
		}
		if lit, ok := keyLiteral(call); ok && lit.Pos.Contains(offset) {
			return call, true
		}
	}
	return nil, false
}
