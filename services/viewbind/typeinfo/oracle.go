// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package typeinfo statically infers the types of PHP expressions over the
// converted syntax model and the project symbol index.
//
// Types are reported as typeterm descriptors with class names fully
// qualified and prefixed with "\". Calls are not evaluated eagerly: a
// method or static call yields a lazy "#M#C\Class.method" term per
// receiver class, which consumers resolve against the index when they
// need the return type. Closures yield "#π(R)" with R the declared return
// type.
package typeinfo

import (
	"log/slog"
	"strings"

	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/typeterm"
)

// DefaultMaxDepth bounds the recursion through variable aliases and
// chained member lookups within one TypeOf call.
const DefaultMaxDepth = 16

// MemberLookup finds members along a class's extends chain.
//
// *index.SymbolIndex satisfies it.
type MemberLookup interface {
	FindMethod(classFQN, method string) (*ast.Symbol, bool)
	FindField(classFQN, field string) (*ast.Symbol, bool)
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithMaxDepth sets the recursion bound. Non-positive values are ignored.
func WithMaxDepth(depth int) Option {
	return func(o *Oracle) {
		if depth > 0 {
			o.maxDepth = depth
		}
	}
}

// WithLogger sets the logger used for debug diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Oracle) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Oracle answers "what is the static type of this node".
//
// Thread Safety:
//
//	Oracle holds no mutable state; all per-query state lives on the stack
//	of a single call. It is safe for concurrent use as long as the
//	MemberLookup is.
type Oracle struct {
	members  MemberLookup
	maxDepth int
	logger   *slog.Logger
}

// New creates an Oracle over the given member lookup.
func New(members MemberLookup, opts ...Option) *Oracle {
	o := &Oracle{
		members:  members,
		maxDepth: DefaultMaxDepth,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TypeOf returns the statically inferred type of node in file. The empty
// descriptor means the type is unknown.
func (o *Oracle) TypeOf(file *ast.File, node ast.Node) typeterm.Descriptor {
	if file == nil || node == nil {
		return typeterm.Unknown
	}
	q := &query{oracle: o, file: file, visiting: make(map[*ast.VarRef]bool)}
	return q.typeOf(node, 0)
}

// ResolveCall returns the method symbol a method or static call targets,
// searching each possible receiver class and its parents. Function calls
// and calls on receivers of unknown type do not resolve.
func (o *Oracle) ResolveCall(file *ast.File, call *ast.CallExpr) (*ast.Symbol, bool) {
	if file == nil || call == nil || call.Name == "" {
		return nil, false
	}
	q := &query{oracle: o, file: file, visiting: make(map[*ast.VarRef]bool)}
	for _, class := range q.receiverClasses(call, 0) {
		if sym, ok := o.members.FindMethod(class, call.Name); ok {
			return sym, true
		}
	}
	return nil, false
}

// ClassNames expands a descriptor into the class names it denotes, without
// leading separators. Lazy method terms are resolved through the index;
// primitives, arrays and closures are skipped.
func (o *Oracle) ClassNames(desc typeterm.Descriptor) []string {
	q := &query{oracle: o, visiting: make(map[*ast.VarRef]bool)}
	return q.classNames(desc, 0)
}

// query carries the state of one TypeOf or ResolveCall invocation.
type query struct {
	oracle   *Oracle
	file     *ast.File
	visiting map[*ast.VarRef]bool
}

func (q *query) typeOf(node ast.Node, depth int) typeterm.Descriptor {
	if depth > q.oracle.maxDepth {
		q.oracle.logger.Debug("type inference depth exceeded",
			slog.String("file", q.file.Path),
			slog.Int("offset", node.Span().Start))
		return typeterm.Unknown
	}

	switch n := node.(type) {
	case *ast.Literal:
		return typeterm.New(n.Type)
	case *ast.StringLit:
		return typeterm.New("string")
	case *ast.ArrayLit:
		return q.arrayType(n, depth)
	case *ast.NewExpr:
		if n.Class == "" {
			return typeterm.New("object")
		}
		return typeterm.New(n.Class)
	case *ast.VarRef:
		return q.variableType(n, depth)
	case *ast.Assign:
		if n.Value == nil {
			return typeterm.Unknown
		}
		return q.typeOf(n.Value, depth+1)
	case *ast.PropertyFetch:
		return q.propertyType(n, depth)
	case *ast.CallExpr:
		return q.callType(n, depth)
	case *ast.Closure:
		return q.closureType(n, depth)
	case *ast.BinaryExpr:
		return q.binaryType(n, depth)
	case *ast.Opaque:
		return q.opaqueType(n, depth)
	}
	return typeterm.Unknown
}

// arrayType types an array literal as T[] when every element has a known
// type, and as plain array otherwise.
func (q *query) arrayType(n *ast.ArrayLit, depth int) typeterm.Descriptor {
	if len(n.Elements) == 0 {
		return typeterm.New("array")
	}
	var elems typeterm.Descriptor
	for _, e := range n.Elements {
		t := q.typeOf(e, depth+1)
		if t.IsEmpty() {
			return typeterm.New("array")
		}
		elems = elems.Union(t)
	}
	out := elems.Map(func(t string) string {
		if typeterm.IsEncoded(t) {
			return ""
		}
		return t + "[]"
	})
	if out.IsEmpty() {
		return typeterm.New("array")
	}
	return out
}

func (q *query) closureType(n *ast.Closure, depth int) typeterm.Descriptor {
	ret := n.ReturnType
	if ret == "" && n.Arrow && n.Body != nil {
		ret = q.typeOf(n.Body, depth+1).String()
	}
	if ret == "" {
		return typeterm.New(`\Closure`)
	}
	return typeterm.New(typeterm.FormatClosure(ret))
}

func (q *query) callType(n *ast.CallExpr, depth int) typeterm.Descriptor {
	if n.Style == ast.CallFunction || n.Name == "" {
		return typeterm.Unknown
	}
	var out typeterm.Descriptor
	for _, class := range q.receiverClasses(n, depth) {
		out = out.Union(typeterm.New(typeterm.FormatMethodRef(class, n.Name)))
	}
	return out
}

// receiverClasses returns the classes a call may dispatch on.
func (q *query) receiverClasses(n *ast.CallExpr, depth int) []string {
	switch n.Style {
	case ast.CallStatic:
		if n.Scope != "" {
			return []string{typeterm.StripQualifier(n.Scope)}
		}
		if n.Receiver != nil {
			return q.classNames(q.typeOf(n.Receiver, depth+1), depth+1)
		}
	case ast.CallMethod:
		if n.Receiver != nil {
			return q.classNames(q.typeOf(n.Receiver, depth+1), depth+1)
		}
	}
	return nil
}

func (q *query) propertyType(n *ast.PropertyFetch, depth int) typeterm.Descriptor {
	var classes []string
	if n.Static {
		if n.Scope != "" {
			classes = []string{typeterm.StripQualifier(n.Scope)}
		}
	} else if n.Object != nil {
		classes = q.classNames(q.typeOf(n.Object, depth+1), depth+1)
	}

	var out typeterm.Descriptor
	for _, class := range classes {
		if f, ok := q.oracle.members.FindField(class, n.Name); ok {
			out = out.Union(typeterm.Parse(f.Type))
		}
	}
	return out
}

var arithmeticOps = map[string]bool{"+": true, "-": true, "*": true, "/": true, "%": true, "**": true}

var boolOps = map[string]bool{
	"==": true, "!=": true, "<>": true, "===": true, "!==": true,
	"<": true, ">": true, "<=": true, ">=": true,
	"&&": true, "||": true, "and": true, "or": true, "xor": true,
	"instanceof": true,
}

var intOps = map[string]bool{"<=>": true, "&": true, "|": true, "^": true, "<<": true, ">>": true}

func (q *query) binaryType(n *ast.BinaryExpr, depth int) typeterm.Descriptor {
	op := strings.ToLower(n.Op)
	switch {
	case op == ".":
		return typeterm.New("string")
	case boolOps[op]:
		return typeterm.New("bool")
	case intOps[op]:
		return typeterm.New("int")
	case op == "??":
		left := q.typeOf(n.Left, depth+1).Map(func(t string) string {
			if t == "null" {
				return ""
			}
			return t
		})
		return left.Union(q.typeOf(n.Right, depth+1))
	case arithmeticOps[op]:
		left := q.typeOf(n.Left, depth+1)
		right := q.typeOf(n.Right, depth+1)
		switch {
		case left.Contains("float") || right.Contains("float") || op == "/":
			return typeterm.New("float")
		case left.Equal(typeterm.New("int")) && right.Equal(typeterm.New("int")):
			return typeterm.New("int")
		case left.Contains("array") && right.Contains("array") && op == "+":
			return typeterm.New("array")
		}
		return typeterm.New("int", "float")
	}
	return typeterm.Unknown
}

var castTypes = map[string]string{
	"int": "int", "integer": "int", "float": "float", "double": "float",
	"string": "string", "bool": "bool", "boolean": "bool",
	"array": "array", "object": "object",
}

// opaqueType covers the few constructs without a dedicated node whose type
// is still obvious from their shape.
func (q *query) opaqueType(n *ast.Opaque, depth int) typeterm.Descriptor {
	switch n.Type {
	case "cast_expression":
		text := q.file.Text(n)
		if open, end := strings.IndexByte(text, '('), strings.IndexByte(text, ')'); open >= 0 && end > open {
			if t, ok := castTypes[strings.ToLower(strings.TrimSpace(text[open+1:end]))]; ok {
				return typeterm.New(t)
			}
		}
	case "unary_op_expression":
		text := strings.TrimSpace(q.file.Text(n))
		if strings.HasPrefix(text, "!") {
			return typeterm.New("bool")
		}
		if len(n.Kids) == 1 {
			return q.typeOf(n.Kids[0], depth+1)
		}
	case "conditional_expression":
		var out typeterm.Descriptor
		// condition ? a : b; the condition never contributes.
		for i, k := range n.Kids {
			if i == 0 && len(n.Kids) == 3 {
				continue
			}
			out = out.Union(q.typeOf(k, depth+1))
		}
		return out
	case "clone_expression":
		if len(n.Kids) == 1 {
			return q.typeOf(n.Kids[0], depth+1)
		}
	}
	return typeterm.Unknown
}

// classNames expands lazy method terms and keeps class names, without
// leading separators.
func (q *query) classNames(desc typeterm.Descriptor, depth int) []string {
	if depth > q.oracle.maxDepth {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, t := range desc.Terms() {
		if class, method, ok := typeterm.MethodRef(t); ok {
			if sym, found := q.oracle.members.FindMethod(class, method); found {
				for _, c := range q.classNames(typeterm.Parse(sym.Type), depth+1) {
					add(c)
				}
			}
			continue
		}
		t = strings.TrimPrefix(t, "?")
		if typeterm.IsClassName(t) {
			add(typeterm.StripQualifier(t))
		}
	}
	return out
}
