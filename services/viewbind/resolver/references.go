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
	"path"
	"sort"

	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/convention"
	"go.opentelemetry.io/otel/attribute"
)

// Strategy records how an occurrence was found.
type Strategy string

const (
	// StrategyConvention derived the view path from the controller path.
	StrategyConvention Strategy = "convention"
	// StrategyFileName searched the project for the view's base name.
	StrategyFileName Strategy = "filename"
	// StrategyBinding followed a view variable to its setter call.
	StrategyBinding Strategy = "binding"
	// StrategyLocal lists occurrences within one file.
	StrategyLocal Strategy = "local"
)

// Occurrence is a located name: a view variable or a binding key.
type Occurrence struct {
	Path     string   `json:"path"`
	Span     ast.Span `json:"span"`
	Name     string   `json:"name"`
	Strategy Strategy `json:"strategy"`
}

// LiteralRef points at a string literal in a controller file.
type LiteralRef struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
}

// BindingInfo is a bound view variable with its display type.
type BindingInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// MixedType is reported for bindings whose type is unknown.
const MixedType = "mixed"

// Declarations finds the view variables a controller binding key
// declares.
//
// Description:
//
//	The literal at offset must be the constant key of a setter call inside
//	a controller method. The view is located by convention from the
//	controller path and method name. Only when no conventional view file
//	exists does the search fall back to every project file named like the
//	view. Results of the two strategies are never merged.
//
// Outputs:
//
//	[]Occurrence - Occurrences of $key in the view(s), in source order.
//	Empty when offset is not on a binding key or no view is found.
func (r *Resolver) Declarations(ctx context.Context, controllerPath string, offset int) []Occurrence {
	ctx, done := r.observe(ctx, "declarations",
		attribute.String("controller", controllerPath),
		attribute.Int("offset", offset))
	var out []Occurrence
	defer func() { done(len(out) > 0) }()

	if ctx.Err() != nil {
		return out
	}
	controllerPath = convention.NormalizePath(controllerPath)
	file, ok := r.syntax.File(controllerPath)
	if !ok {
		return out
	}
	call, ok := r.setterCallAt(file, offset)
	if !ok {
		return out
	}
	method, ok := ast.Enclosing[*ast.MethodDecl](file.Root, call.Pos.Start)
	if !ok || method.Class == "" {
		return out
	}
	lit, _ := keyLiteral(call)

	candidates := r.mapper.ViewCandidates(controllerPath, method.Name)
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return nil
		}
		if !r.files.Exists(candidate) {
			continue
		}
		out = r.variableOccurrences(candidate, lit.Value, StrategyConvention)
		return out
	}

	r.logger.Debug("no conventional view, searching by file name",
		slog.String("controller", controllerPath),
		slog.String("method", method.Name),
		slog.Int("candidates", len(candidates)))
	for _, candidate := range r.baseNameCandidates(candidates, method.Name) {
		for _, p := range r.files.FindByBaseName(candidate) {
			if ctx.Err() != nil {
				return nil
			}
			out = append(out, r.variableOccurrences(p, lit.Value, StrategyFileName)...)
		}
		if len(out) > 0 {
			break
		}
	}
	return out
}

// baseNameCandidates lists the view file names to search for, most likely
// first.
func (r *Resolver) baseNameCandidates(candidates []string, method string) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, c := range candidates {
		add(path.Base(c))
	}
	if len(names) == 0 {
		// The controller path itself broke the convention; derive the
		// view name from the method alone.
		stem := convention.PascalToKebab(trimSuffix(method, r.mapper.ActionSuffix()))
		for _, ext := range r.mapper.Extensions() {
			add(stem + ext)
		}
	}
	return names
}

func trimSuffix(s, suffix string) string {
	if len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix {
		return s[:len(s)-len(suffix)]
	}
	return s
}

// variableOccurrences lists the references to $name in a file.
func (r *Resolver) variableOccurrences(p, name string, strategy Strategy) []Occurrence {
	file, ok := r.syntax.File(p)
	if !ok {
		return nil
	}
	var out []Occurrence
	for _, v := range ast.Collect[*ast.VarRef](file.Root) {
		if v.Name == name {
			out = append(out, Occurrence{Path: file.Path, Span: v.Pos, Name: name, Strategy: strategy})
		}
	}
	return out
}

// IsReferenceTo reports whether a view variable occurrence refers to the
// controller literal: the names match and the literal is the key of one
// of the setter calls of the view's controller action.
func (r *Resolver) IsReferenceTo(ctx context.Context, literal LiteralRef, candidate Occurrence) bool {
	ctx, done := r.observe(ctx, "is_reference_to",
		attribute.String("controller", literal.Path),
		attribute.String("view", candidate.Path))
	found := false
	defer func() { done(found) }()

	if ctx.Err() != nil {
		return false
	}
	act, ok := r.findAction(convention.NewViewLocation(candidate.Path))
	if !ok || act.file.Path != convention.NormalizePath(literal.Path) {
		return false
	}
	for _, call := range r.setterCalls(act.method) {
		lit, _ := keyLiteral(call)
		if lit.Pos.Contains(literal.Offset) && lit.Value == trimDollar(candidate.Name) {
			found = true
			return true
		}
	}
	return false
}

// Definition returns the key literal of the binding that defines a view
// variable.
func (r *Resolver) Definition(ctx context.Context, view convention.ViewLocation, name string) (Occurrence, bool) {
	ctx, done := r.observe(ctx, "definition",
		attribute.String("view", view.Path),
		attribute.String("variable", name))
	b, ok := r.extractBindings(ctx, view)[trimDollar(name)]
	done(ok)
	if !ok {
		return Occurrence{}, false
	}
	return Occurrence{
		Path:     b.File.Path,
		Span:     b.KeyLiteral.Pos,
		Name:     b.Key,
		Strategy: StrategyBinding,
	}, true
}

// Usages lists every occurrence of a variable in the view.
func (r *Resolver) Usages(ctx context.Context, view convention.ViewLocation, name string) []Occurrence {
	ctx, done := r.observe(ctx, "usages",
		attribute.String("view", view.Path),
		attribute.String("variable", name))
	var out []Occurrence
	if ctx.Err() == nil {
		out = r.variableOccurrences(view.Path, trimDollar(name), StrategyLocal)
	}
	done(len(out) > 0)
	return out
}

// DescribeBindings lists the view's bound variables with their types,
// sorted by name. Unknown types are reported as "mixed".
func (r *Resolver) DescribeBindings(ctx context.Context, view convention.ViewLocation) []BindingInfo {
	ctx, done := r.observe(ctx, "describe_bindings", attribute.String("view", view.Path))
	bindings := r.extractBindings(ctx, view)

	out := make([]BindingInfo, 0, len(bindings))
	for name, b := range bindings {
		if ctx.Err() != nil {
			break
		}
		info := BindingInfo{Name: name, Type: MixedType}
		if t := r.bindingType(b, newWalk(r.maxDepth)); !t.IsEmpty() {
			info.Type = t.String()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	done(len(out) > 0)
	return out
}
