// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import "strings"

// Span locates a node in its file. Offsets are byte offsets, lines are
// 1-based and columns 0-based.
type Span struct {
	Start     int `json:"start"`
	End       int `json:"end"`
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// Contains reports whether offset falls inside the span. The end offset is
// included so a cursor placed right after an identifier still matches.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset <= s.End
}

// NodeKind tags a node variant.
type NodeKind int

const (
	KindBlock NodeKind = iota
	KindClass
	KindMethod
	KindFunction
	KindParam
	KindProperty
	KindCall
	KindString
	KindVariable
	KindForeach
	KindAssign
	KindNew
	KindLiteral
	KindArray
	KindPropertyFetch
	KindClosure
	KindBinary
	KindReturn
	KindComment
	KindOpaque
)

var nodeKindNames = [...]string{
	KindBlock:         "block",
	KindClass:         "class",
	KindMethod:        "method",
	KindFunction:      "function",
	KindParam:         "param",
	KindProperty:      "property",
	KindCall:          "call",
	KindString:        "string",
	KindVariable:      "variable",
	KindForeach:       "foreach",
	KindAssign:        "assign",
	KindNew:           "new",
	KindLiteral:       "literal",
	KindArray:         "array",
	KindPropertyFetch: "property_fetch",
	KindClosure:       "closure",
	KindBinary:        "binary",
	KindReturn:        "return",
	KindComment:       "comment",
	KindOpaque:        "opaque",
}

func (k NodeKind) String() string {
	if int(k) >= 0 && int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "unknown"
}

// Node is one syntax tree variant. The set of variants is closed: every
// implementation lives in this file and Accept dispatches to the matching
// Visitor method.
type Node interface {
	Kind() NodeKind
	Span() Span
	Children() []Node
	Accept(v Visitor) bool
}

// CallStyle distinguishes the three call shapes.
type CallStyle int

const (
	// CallMethod is $receiver->name(...).
	CallMethod CallStyle = iota
	// CallStatic is Scope::name(...).
	CallStatic
	// CallFunction is name(...).
	CallFunction
)

func (s CallStyle) String() string {
	switch s {
	case CallStatic:
		return "static"
	case CallFunction:
		return "function"
	default:
		return "method"
	}
}

// File is one converted source file.
type File struct {
	Path      string
	Source    []byte
	Namespace string

	// Uses maps import aliases to qualified names without a leading "\".
	Uses map[string]string

	Root      *Block
	Classes   []*ClassDecl
	Functions []*FunctionDecl
}

// Text returns the source text covered by n.
func (f *File) Text(n Node) string {
	if f == nil || n == nil {
		return ""
	}
	sp := n.Span()
	if sp.Start < 0 || sp.End > len(f.Source) || sp.Start > sp.End {
		return ""
	}
	return string(f.Source[sp.Start:sp.End])
}

// Class returns the first class declared in the file with the given simple name.
func (f *File) Class(name string) *ClassDecl {
	for _, c := range f.Classes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Block is a statement list: a file body, a method body or a loop body.
type Block struct {
	Pos   Span
	Stmts []Node
}

func (n *Block) Kind() NodeKind        { return KindBlock }
func (n *Block) Span() Span            { return n.Pos }
func (n *Block) Children() []Node      { return n.Stmts }
func (n *Block) Accept(v Visitor) bool { return v.VisitBlock(n) }

// ClassDecl is a class, interface or trait declaration.
type ClassDecl struct {
	Pos Span

	Name string
	// FQN is the qualified name without a leading "\".
	FQN string
	// Extends is the qualified parent name without a leading "\".
	Extends string
	Decl    SymbolKind
	Doc     string

	Properties []*PropertyDecl
	Methods    []*MethodDecl
}

func (n *ClassDecl) Kind() NodeKind { return KindClass }
func (n *ClassDecl) Span() Span     { return n.Pos }
func (n *ClassDecl) Children() []Node {
	out := make([]Node, 0, len(n.Properties)+len(n.Methods))
	for _, p := range n.Properties {
		out = append(out, p)
	}
	for _, m := range n.Methods {
		out = append(out, m)
	}
	return out
}
func (n *ClassDecl) Accept(v Visitor) bool { return v.VisitClass(n) }

// Method returns the first method with the given name.
func (n *ClassDecl) Method(name string) *MethodDecl {
	for _, m := range n.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// MethodDecl is a method declaration. Body is nil for abstract and
// interface methods.
type MethodDecl struct {
	Pos Span

	Name       string
	Visibility Visibility
	Static     bool
	Params     []*Param
	// ReturnType merges the declared return type and PHPDoc @return.
	ReturnType string
	Doc        string
	Body       *Block

	// Class is the owning class FQN.
	Class string
}

func (n *MethodDecl) Kind() NodeKind { return KindMethod }
func (n *MethodDecl) Span() Span     { return n.Pos }
func (n *MethodDecl) Children() []Node {
	out := make([]Node, 0, len(n.Params)+1)
	for _, p := range n.Params {
		out = append(out, p)
	}
	if n.Body != nil {
		out = append(out, n.Body)
	}
	return out
}
func (n *MethodDecl) Accept(v Visitor) bool { return v.VisitMethod(n) }

// FunctionDecl is a top-level function declaration.
type FunctionDecl struct {
	Pos Span

	Name       string
	FQN        string
	Params     []*Param
	ReturnType string
	Doc        string
	Body       *Block
}

func (n *FunctionDecl) Kind() NodeKind { return KindFunction }
func (n *FunctionDecl) Span() Span     { return n.Pos }
func (n *FunctionDecl) Children() []Node {
	out := make([]Node, 0, len(n.Params)+1)
	for _, p := range n.Params {
		out = append(out, p)
	}
	if n.Body != nil {
		out = append(out, n.Body)
	}
	return out
}
func (n *FunctionDecl) Accept(v Visitor) bool { return v.VisitFunction(n) }

// Param is a formal parameter. Name has no "$" prefix.
type Param struct {
	Pos  Span
	Name string
	Type string
}

func (n *Param) Kind() NodeKind        { return KindParam }
func (n *Param) Span() Span            { return n.Pos }
func (n *Param) Children() []Node      { return nil }
func (n *Param) Accept(v Visitor) bool { return v.VisitParam(n) }

// PropertyDecl is one property of a class.
type PropertyDecl struct {
	Pos Span

	Name       string
	Visibility Visibility
	Static     bool
	// Type merges the declared type and PHPDoc @var.
	Type    string
	Doc     string
	Default Node
}

func (n *PropertyDecl) Kind() NodeKind { return KindProperty }
func (n *PropertyDecl) Span() Span     { return n.Pos }
func (n *PropertyDecl) Children() []Node {
	if n.Default == nil {
		return nil
	}
	return []Node{n.Default}
}
func (n *PropertyDecl) Accept(v Visitor) bool { return v.VisitProperty(n) }

// CallExpr is a method, static or function call.
type CallExpr struct {
	Pos   Span
	Style CallStyle

	// Receiver is the object of a method call, the scope expression of a
	// static call on a variable, or the callee of a dynamic function call.
	Receiver Node

	// Scope is the resolved class of a static call, with a leading "\".
	Scope string

	Name     string
	NameSpan Span
	Args     []Node
}

func (n *CallExpr) Kind() NodeKind { return KindCall }
func (n *CallExpr) Span() Span     { return n.Pos }
func (n *CallExpr) Children() []Node {
	out := make([]Node, 0, len(n.Args)+1)
	if n.Receiver != nil {
		out = append(out, n.Receiver)
	}
	return append(out, n.Args...)
}
func (n *CallExpr) Accept(v Visitor) bool { return v.VisitCall(n) }

// StringLit is a quoted string. Interpolated strings are not constant and
// never count as literal keys.
type StringLit struct {
	Pos          Span
	Value        string
	Interpolated bool
}

func (n *StringLit) Kind() NodeKind        { return KindString }
func (n *StringLit) Span() Span            { return n.Pos }
func (n *StringLit) Children() []Node      { return nil }
func (n *StringLit) Accept(v Visitor) bool { return v.VisitString(n) }

// VarRef is a variable occurrence. Name has no "$" prefix.
type VarRef struct {
	Pos  Span
	Name string
}

func (n *VarRef) Kind() NodeKind        { return KindVariable }
func (n *VarRef) Span() Span            { return n.Pos }
func (n *VarRef) Children() []Node      { return nil }
func (n *VarRef) Accept(v Visitor) bool { return v.VisitVariable(n) }

// Foreach is a foreach loop. Key and Value are nil when the loop binds
// something other than a plain variable (e.g. list()).
type Foreach struct {
	Pos      Span
	Iterated Node
	Key      *VarRef
	Value    *VarRef
	ByRef    bool
	Body     *Block
}

func (n *Foreach) Kind() NodeKind { return KindForeach }
func (n *Foreach) Span() Span     { return n.Pos }
func (n *Foreach) Children() []Node {
	out := make([]Node, 0, 4)
	if n.Iterated != nil {
		out = append(out, n.Iterated)
	}
	if n.Key != nil {
		out = append(out, n.Key)
	}
	if n.Value != nil {
		out = append(out, n.Value)
	}
	if n.Body != nil {
		out = append(out, n.Body)
	}
	return out
}
func (n *Foreach) Accept(v Visitor) bool { return v.VisitForeach(n) }

// Assign is "target = value".
type Assign struct {
	Pos    Span
	Target Node
	Value  Node
}

func (n *Assign) Kind() NodeKind { return KindAssign }
func (n *Assign) Span() Span     { return n.Pos }
func (n *Assign) Children() []Node {
	return nonNil(n.Target, n.Value)
}
func (n *Assign) Accept(v Visitor) bool { return v.VisitAssign(n) }

// NewExpr is object creation. Class is resolved with a leading "\" and is
// empty for anonymous classes and dynamic class names.
type NewExpr struct {
	Pos   Span
	Class string
	Args  []Node

	// Anonymous is the body of "new class {...}". Its FQN is empty and it
	// is not listed in File.Classes.
	Anonymous *ClassDecl
}

func (n *NewExpr) Kind() NodeKind { return KindNew }
func (n *NewExpr) Span() Span     { return n.Pos }
func (n *NewExpr) Children() []Node {
	if n.Anonymous == nil {
		return n.Args
	}
	return append(append(make([]Node, 0, len(n.Args)+1), n.Args...), n.Anonymous)
}
func (n *NewExpr) Accept(v Visitor) bool { return v.VisitNew(n) }

// Literal is a scalar constant. Type is one of int, float, bool, null.
type Literal struct {
	Pos  Span
	Type string
}

func (n *Literal) Kind() NodeKind        { return KindLiteral }
func (n *Literal) Span() Span            { return n.Pos }
func (n *Literal) Children() []Node      { return nil }
func (n *Literal) Accept(v Visitor) bool { return v.VisitLiteral(n) }

// ArrayLit is an array literal; Elements are the element values.
type ArrayLit struct {
	Pos      Span
	Elements []Node
}

func (n *ArrayLit) Kind() NodeKind        { return KindArray }
func (n *ArrayLit) Span() Span            { return n.Pos }
func (n *ArrayLit) Children() []Node      { return n.Elements }
func (n *ArrayLit) Accept(v Visitor) bool { return v.VisitArray(n) }

// PropertyFetch is $object->name or Scope::$name.
type PropertyFetch struct {
	Pos    Span
	Object Node
	Static bool
	Scope  string
	Name   string
}

func (n *PropertyFetch) Kind() NodeKind        { return KindPropertyFetch }
func (n *PropertyFetch) Span() Span            { return n.Pos }
func (n *PropertyFetch) Children() []Node      { return nonNil(n.Object) }
func (n *PropertyFetch) Accept(v Visitor) bool { return v.VisitPropertyFetch(n) }

// Closure is an anonymous or arrow function. For arrow functions Body is
// the returned expression.
type Closure struct {
	Pos        Span
	Params     []*Param
	ReturnType string
	Arrow      bool
	Body       Node
}

func (n *Closure) Kind() NodeKind { return KindClosure }
func (n *Closure) Span() Span     { return n.Pos }
func (n *Closure) Children() []Node {
	out := make([]Node, 0, len(n.Params)+1)
	for _, p := range n.Params {
		out = append(out, p)
	}
	if n.Body != nil {
		out = append(out, n.Body)
	}
	return out
}
func (n *Closure) Accept(v Visitor) bool { return v.VisitClosure(n) }

// BinaryExpr is "left op right".
type BinaryExpr struct {
	Pos   Span
	Op    string
	Left  Node
	Right Node
}

func (n *BinaryExpr) Kind() NodeKind        { return KindBinary }
func (n *BinaryExpr) Span() Span            { return n.Pos }
func (n *BinaryExpr) Children() []Node      { return nonNil(n.Left, n.Right) }
func (n *BinaryExpr) Accept(v Visitor) bool { return v.VisitBinary(n) }

// Return is a return statement.
type Return struct {
	Pos   Span
	Value Node
}

func (n *Return) Kind() NodeKind        { return KindReturn }
func (n *Return) Span() Span            { return n.Pos }
func (n *Return) Children() []Node      { return nonNil(n.Value) }
func (n *Return) Accept(v Visitor) bool { return v.VisitReturn(n) }

// Comment is a line, block or PHPDoc comment.
type Comment struct {
	Pos  Span
	Text string
}

func (n *Comment) Kind() NodeKind        { return KindComment }
func (n *Comment) Span() Span            { return n.Pos }
func (n *Comment) Children() []Node      { return nil }
func (n *Comment) Accept(v Visitor) bool { return v.VisitComment(n) }

// IsDoc reports whether the comment is a PHPDoc block.
func (n *Comment) IsDoc() bool {
	return strings.HasPrefix(n.Text, "/**")
}

// Opaque is any construct without a dedicated variant (if, echo, match,
// casts, ...). Its converted children are kept so traversal reaches nested
// calls and loops.
type Opaque struct {
	Pos  Span
	Type string
	Kids []Node
}

func (n *Opaque) Kind() NodeKind        { return KindOpaque }
func (n *Opaque) Span() Span            { return n.Pos }
func (n *Opaque) Children() []Node      { return n.Kids }
func (n *Opaque) Accept(v Visitor) bool { return v.VisitOpaque(n) }

func nonNil(nodes ...Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}
