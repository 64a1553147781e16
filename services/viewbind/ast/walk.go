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

// Visitor has one method per node variant. Each method returns whether Walk
// should descend into the node's children.
//
// Adding a variant to node.go adds a method here, so every Visitor
// implementation fails to compile until it handles the new kind.
type Visitor interface {
	VisitBlock(*Block) bool
	VisitClass(*ClassDecl) bool
	VisitMethod(*MethodDecl) bool
	VisitFunction(*FunctionDecl) bool
	VisitParam(*Param) bool
	VisitProperty(*PropertyDecl) bool
	VisitCall(*CallExpr) bool
	VisitString(*StringLit) bool
	VisitVariable(*VarRef) bool
	VisitForeach(*Foreach) bool
	VisitAssign(*Assign) bool
	VisitNew(*NewExpr) bool
	VisitLiteral(*Literal) bool
	VisitArray(*ArrayLit) bool
	VisitPropertyFetch(*PropertyFetch) bool
	VisitClosure(*Closure) bool
	VisitBinary(*BinaryExpr) bool
	VisitReturn(*Return) bool
	VisitComment(*Comment) bool
	VisitOpaque(*Opaque) bool
}

// Walk traverses n depth-first in source order.
func Walk(v Visitor, n Node) {
	if n == nil {
		return
	}
	if !n.Accept(v) {
		return
	}
	for _, c := range n.Children() {
		Walk(v, c)
	}
}

// inspector adapts a single function to Visitor.
type inspector func(Node) bool

func (f inspector) VisitBlock(n *Block) bool                 { return f(n) }
func (f inspector) VisitClass(n *ClassDecl) bool             { return f(n) }
func (f inspector) VisitMethod(n *MethodDecl) bool           { return f(n) }
func (f inspector) VisitFunction(n *FunctionDecl) bool       { return f(n) }
func (f inspector) VisitParam(n *Param) bool                 { return f(n) }
func (f inspector) VisitProperty(n *PropertyDecl) bool       { return f(n) }
func (f inspector) VisitCall(n *CallExpr) bool               { return f(n) }
func (f inspector) VisitString(n *StringLit) bool            { return f(n) }
func (f inspector) VisitVariable(n *VarRef) bool             { return f(n) }
func (f inspector) VisitForeach(n *Foreach) bool             { return f(n) }
func (f inspector) VisitAssign(n *Assign) bool               { return f(n) }
func (f inspector) VisitNew(n *NewExpr) bool                 { return f(n) }
func (f inspector) VisitLiteral(n *Literal) bool             { return f(n) }
func (f inspector) VisitArray(n *ArrayLit) bool              { return f(n) }
func (f inspector) VisitPropertyFetch(n *PropertyFetch) bool { return f(n) }
func (f inspector) VisitClosure(n *Closure) bool             { return f(n) }
func (f inspector) VisitBinary(n *BinaryExpr) bool           { return f(n) }
func (f inspector) VisitReturn(n *Return) bool               { return f(n) }
func (f inspector) VisitComment(n *Comment) bool             { return f(n) }
func (f inspector) VisitOpaque(n *Opaque) bool               { return f(n) }

// Inspect calls f for every node under root in source order. Returning
// false from f skips that node's children.
func Inspect(root Node, f func(Node) bool) {
	Walk(inspector(f), root)
}

// Collect returns every node of type T under root, in source order.
//
// Example:
//
//	calls := ast.Collect[*ast.CallExpr](method.Body)
func Collect[T Node](root Node) []T {
	var out []T
	Inspect(root, func(n Node) bool {
		if t, ok := n.(T); ok {
			out = append(out, t)
		}
		return true
	})
	return out
}

// Enclosing returns the innermost node of type T whose span contains offset.
func Enclosing[T Node](root Node, offset int) (T, bool) {
	var found T
	ok := false
	Inspect(root, func(n Node) bool {
		if !n.Span().Contains(offset) {
			return false
		}
		if t, is := n.(T); is {
			found, ok = t, true
		}
		return true
	})
	return found, ok
}

// PathTo returns the chain of nodes from root down to the innermost node
// containing offset. The result is empty when root does not contain offset.
func PathTo(root Node, offset int) []Node {
	var path []Node
	Inspect(root, func(n Node) bool {
		if !n.Span().Contains(offset) {
			return false
		}
		path = append(path, n)
		return true
	})
	return path
}
