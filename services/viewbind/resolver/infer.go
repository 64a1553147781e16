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

	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/convention"
	"github.com/AleutianAI/viewbind/services/viewbind/typeterm"
	"go.opentelemetry.io/otel/attribute"
)

// AnyOffset asks InferTypeAt to pick the occurrence itself.
const AnyOffset = -1

// InferType returns the type of a view variable. See InferTypeAt.
func (r *Resolver) InferType(ctx context.Context, view convention.ViewLocation, name string) typeterm.Descriptor {
	return r.InferTypeAt(ctx, view, name, AnyOffset)
}

// InferTypeAt returns the type of the view variable name as seen at
// offset in the view file.
//
// Description:
//
//	The strategies are tried in order and the first non-empty answer
//	wins:
//
//	  1. Foreach propagation: when name is the value variable of a foreach
//	     loop, the element type of the iterated expression. A variable
//	     being iterated is inferred with this same chain, as if queried
//	     on its own.
//	  2. The locally inferred type of the occurrence (assignments,
//	     annotations), cleaned of internal encodings.
//	  3. The type of the expression the controller action binds to name.
//	     Calls contribute their callee's declared return type and plain
//	     variables their own type.
//
//	Each variable is foreach-propagated at most once per query and the
//	whole chain is bounded by the configured depth, so mutually aliased
//	loops terminate with Unknown.
//
// Inputs:
//   - offset: A byte offset in the view. AnyOffset uses the innermost
//     foreach binding name, else the first such loop, and the last
//     occurrence of the variable for the local type.
//
// Outputs:
//
//	typeterm.Descriptor - Unknown when every strategy fails.
func (r *Resolver) InferTypeAt(ctx context.Context, view convention.ViewLocation, name string, offset int) typeterm.Descriptor {
	ctx, done := r.observe(ctx, "infer_type",
		attribute.String("view", view.Path),
		attribute.String("variable", name))
	inf := &inference{
		ctx:        ctx,
		r:          r,
		view:       view,
		propagated: make(map[string]bool),
		walk:       newWalk(r.maxDepth),
	}
	out := inf.infer(trimDollar(name), offset, 0)
	done(!out.IsEmpty())
	return out
}

// inference is the state of one InferTypeAt call.
type inference struct {
	ctx  context.Context
	r    *Resolver
	view convention.ViewLocation

	// propagated holds the variables already foreach-propagated.
	propagated map[string]bool
	walk       *walk

	file     *ast.File
	fileOK   bool
	fileRead bool

	bindings map[string]Binding
}

func (inf *inference) viewFile() (*ast.File, bool) {
	if !inf.fileRead {
		inf.fileRead = true
		inf.file, inf.fileOK = inf.r.syntax.File(inf.view.Path)
	}
	return inf.file, inf.fileOK
}

func (inf *inference) controllerBindings() map[string]Binding {
	if inf.bindings == nil {
		inf.bindings = inf.r.extractBindings(inf.ctx, inf.view)
	}
	return inf.bindings
}

func (inf *inference) infer(name string, offset, depth int) typeterm.Descriptor {
	if inf.ctx.Err() != nil {
		return typeterm.Unknown
	}
	if depth >= inf.r.maxDepth {
		inferenceDepthExceededTotal.Inc()
		inf.r.logger.Debug("inference depth exceeded",
			slog.String("view", inf.view.Path),
			slog.String("variable", name))
		return typeterm.Unknown
	}

	if t := inf.fromForeach(name, offset, depth); !t.IsEmpty() {
		return t
	}
	if t := inf.fromLocal(name, offset); !t.IsEmpty() {
		return t
	}
	if t := inf.fromBinding(name); !t.IsEmpty() {
		return t
	}

	inf.r.logger.Debug("type unresolved",
		slog.String("view", inf.view.Path),
		slog.String("variable", name))
	return typeterm.Unknown
}

// fromForeach implements step 1.
func (inf *inference) fromForeach(name string, offset, depth int) typeterm.Descriptor {
	if inf.propagated[name] {
		return typeterm.Unknown
	}
	file, ok := inf.viewFile()
	if !ok {
		return typeterm.Unknown
	}
	loop := foreachBinding(file, name, offset)
	if loop == nil || loop.Iterated == nil {
		return typeterm.Unknown
	}
	inf.propagated[name] = true

	var iterated typeterm.Descriptor
	switch it := loop.Iterated.(type) {
	case *ast.VarRef:
		// A fresh query for the iterated variable, sharing the guards.
		iterated = inf.infer(it.Name, AnyOffset, depth+1)
	case *ast.CallExpr, *ast.PropertyFetch:
		iterated = inf.memberType(it, depth)
	}
	if iterated.IsEmpty() {
		if _, isVar := loop.Iterated.(*ast.VarRef); !isVar {
			iterated = inf.r.cleanup(inf.r.types.TypeOf(file, loop.Iterated), inf.walk)
		}
	}
	if iterated.IsEmpty() {
		return typeterm.Unknown
	}
	return inf.r.elementOf(iterated, inf.walk)
}

// memberType types "$v->method()" or "$v->field" where $v is a view
// variable: $v goes through the whole inference chain, then the member's
// declared type is read from each class $v may hold.
func (inf *inference) memberType(n ast.Node, depth int) typeterm.Descriptor {
	var (
		receiver ast.Node
		member   string
		isCall   bool
	)
	switch m := n.(type) {
	case *ast.CallExpr:
		if m.Style != ast.CallMethod {
			return typeterm.Unknown
		}
		receiver, member, isCall = m.Receiver, m.Name, true
	case *ast.PropertyFetch:
		if m.Static {
			return typeterm.Unknown
		}
		receiver, member = m.Object, m.Name
	}
	v, ok := receiver.(*ast.VarRef)
	if !ok || v.Name == "this" || member == "" {
		return typeterm.Unknown
	}

	var out typeterm.Descriptor
	for _, term := range inf.infer(v.Name, v.Pos.Start, depth+1).Terms() {
		if !typeterm.IsClassName(term) {
			continue
		}
		for _, class := range inf.r.classesFor(term) {
			if isCall {
				if ret, found := inf.r.methodReturnType(class.QualifiedName, member); found {
					out = out.Union(inf.r.cleanup(ret, inf.walk))
				}
				continue
			}
			if field, found := inf.r.symbols.FindField(class.QualifiedName, member); found {
				out = out.Union(inf.r.cleanup(typeterm.Parse(field.Type), inf.walk))
			}
		}
	}
	return out
}

// foreachBinding finds the loop whose value variable is name: the
// innermost one around offset, or the first in the file for AnyOffset.
func foreachBinding(file *ast.File, name string, offset int) *ast.Foreach {
	if offset >= 0 {
		var found *ast.Foreach
		for _, n := range ast.PathTo(file.Root, offset) {
			if fe, ok := n.(*ast.Foreach); ok && fe.Value != nil && fe.Value.Name == name {
				found = fe
			}
		}
		if found != nil {
			return found
		}
	}
	for _, fe := range ast.Collect[*ast.Foreach](file.Root) {
		if fe.Value != nil && fe.Value.Name == name {
			if offset < 0 || fe.Value.Pos.Contains(offset) {
				return fe
			}
		}
	}
	return nil
}

// fromLocal implements step 2.
func (inf *inference) fromLocal(name string, offset int) typeterm.Descriptor {
	file, ok := inf.viewFile()
	if !ok {
		return typeterm.Unknown
	}
	ref := occurrence(file, name, offset)
	if ref == nil {
		return typeterm.Unknown
	}
	return inf.r.cleanup(inf.r.types.TypeOf(file, ref), inf.walk)
}

// occurrence returns the variable reference at offset, or the last one
// in the file for AnyOffset.
func occurrence(file *ast.File, name string, offset int) *ast.VarRef {
	var last *ast.VarRef
	for _, v := range ast.Collect[*ast.VarRef](file.Root) {
		if v.Name != name {
			continue
		}
		if offset >= 0 && v.Pos.Contains(offset) {
			return v
		}
		last = v
	}
	if offset >= 0 {
		return nil
	}
	return last
}

// fromBinding implements step 3.
func (inf *inference) fromBinding(name string) typeterm.Descriptor {
	b, ok := inf.controllerBindings()[name]
	if !ok {
		return typeterm.Unknown
	}
	return inf.r.bindingType(b, inf.walk)
}

// bindingType types the value of a binding. Calls are typed by their
// callee's declared return type when the call resolves.
func (r *Resolver) bindingType(b Binding, w *walk) typeterm.Descriptor {
	if call, ok := b.Value.(*ast.CallExpr); ok && call.Style != ast.CallFunction {
		if sym, found := r.types.ResolveCall(b.File, call); found {
			if t := r.cleanup(returnType(sym), w); !t.IsEmpty() {
				return t
			}
		}
	}
	return r.cleanup(r.types.TypeOf(b.File, b.Value), w)
}

func trimDollar(name string) string {
	if len(name) > 0 && name[0] == '$' {
		return name[1:]
	}
	return name
}
