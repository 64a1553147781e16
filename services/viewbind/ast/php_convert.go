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

import (
	"strings"

	"github.com/AleutianAI/viewbind/services/viewbind/typeterm"
	sitter "github.com/smacker/go-tree-sitter"
)

// typeNodeTypes are the tree-sitter node types that spell a type.
var typeNodeTypes = map[string]bool{
	"named_type":        true,
	"optional_type":     true,
	"union_type":        true,
	"intersection_type": true,
	"primitive_type":    true,
	"nullable_type":     true,
	"type_list":         true,
	"bottom_type":       true,
}

// converter turns one tree-sitter tree into the typed syntax model.
// It is single-use and not safe for concurrent use.
type converter struct {
	src     []byte
	path    string
	scope   nameScope
	file    *File
	symbols []*Symbol
}

func newConverter(src []byte, path string) *converter {
	return &converter{
		src:   src,
		path:  path,
		scope: nameScope{uses: make(map[string]string)},
	}
}

func (c *converter) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(c.src)
}

func (c *converter) span(n *sitter.Node) Span {
	sp, ep := n.StartPoint(), n.EndPoint()
	return Span{
		Start:     int(n.StartByte()),
		End:       int(n.EndByte()),
		StartLine: int(sp.Row) + 1,
		StartCol:  int(sp.Column),
		EndLine:   int(ep.Row) + 1,
		EndCol:    int(ep.Column),
	}
}

// namedChildren returns the named children of n, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		out = append(out, child)
	}
	return out
}

// firstNamedOfType returns the first named child of n with one of the types.
func firstNamedOfType(n *sitter.Node, types ...string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil {
			continue
		}
		for _, t := range types {
			if child.Type() == t {
				return child
			}
		}
	}
	return nil
}

// =============================================================================
// Imports
// =============================================================================

// scanImports records the namespace and use imports before conversion so
// names can be resolved regardless of declaration order.
func (c *converter) scanImports(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "namespace_definition":
			name := child.ChildByFieldName("name")
			if name == nil {
				name = firstNamedOfType(child, "namespace_name")
			}
			if name != nil {
				c.scope.namespace = typeterm.StripQualifier(c.text(name))
			}
			if body := child.ChildByFieldName("body"); body != nil {
				c.scanImports(body)
			}
		case "namespace_use_declaration":
			c.addUses(child)
		}
	}
}

func (c *converter) addUses(decl *sitter.Node) {
	// use function / use const import non-class names.
	for i := 0; i < int(decl.ChildCount()); i++ {
		if t := decl.Child(i).Type(); t == "function" || t == "const" {
			return
		}
	}
	prefix := ""
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		child := decl.NamedChild(i)
		switch child.Type() {
		case "namespace_name", "namespace_name_as_prefix":
			prefix = strings.Trim(c.text(child), typeterm.Separator)
		case "namespace_use_clause":
			c.addUseClause(child, "")
		case "namespace_use_group":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				clause := child.NamedChild(j)
				if clause.Type() == "namespace_use_clause" || clause.Type() == "namespace_use_group_clause" {
					c.addUseClause(clause, prefix)
				}
			}
		}
	}
}

func (c *converter) addUseClause(clause *sitter.Node, prefix string) {
	var path, alias string
	if a := clause.ChildByFieldName("alias"); a != nil {
		alias = c.text(a)
	}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		part := clause.NamedChild(i)
		switch part.Type() {
		case "qualified_name", "namespace_name":
			if path == "" {
				path = c.text(part)
			}
		case "name":
			if path == "" {
				path = c.text(part)
			} else if alias == "" {
				alias = c.text(part)
			}
		case "namespace_aliasing_clause":
			if n := firstNamedOfType(part, "name"); n != nil {
				alias = c.text(n)
			}
		}
	}
	path = strings.Trim(path, typeterm.Separator)
	if prefix != "" {
		path = prefix + typeterm.Separator + path
	}
	if path == "" {
		return
	}
	if alias == "" {
		alias = typeterm.ShortName(path)
	}
	c.scope.uses[alias] = path
}

// =============================================================================
// Statements and expressions
// =============================================================================

func (c *converter) convertFile(root *sitter.Node) *File {
	c.file = &File{
		Path:      c.path,
		Source:    c.src,
		Namespace: c.scope.namespace,
		Uses:      c.scope.uses,
	}
	c.file.Root = c.block(root, 0)
	return c.file
}

func (c *converter) block(n *sitter.Node, depth int) *Block {
	b := &Block{Pos: c.span(n)}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		b.Stmts = c.appendNode(b.Stmts, n.NamedChild(i), depth+1)
	}
	return b
}

// appendNode converts n and appends the result. Namespace blocks are
// flattened into the enclosing list.
func (c *converter) appendNode(list []Node, n *sitter.Node, depth int) []Node {
	if n == nil {
		return list
	}
	if n.Type() == "namespace_definition" {
		if body := n.ChildByFieldName("body"); body != nil {
			for i := 0; i < int(body.NamedChildCount()); i++ {
				list = c.appendNode(list, body.NamedChild(i), depth+1)
			}
		}
		return list
	}
	if node := c.convert(n, depth); node != nil {
		list = append(list, node)
	}
	return list
}

// convert maps one tree-sitter node to a Node. It returns a nil interface
// for constructs that carry nothing (inline HTML, open tags, imports).
func (c *converter) convert(n *sitter.Node, depth int) Node {
	if n == nil {
		return nil
	}
	if depth > MaxNodeDepth {
		return &Opaque{Pos: c.span(n), Type: n.Type()}
	}

	switch n.Type() {
	case "text", "php_tag", "text_interpolation", "namespace_use_declaration", "namespace_definition":
		return nil

	case "program", "compound_statement", "colon_block":
		return c.block(n, depth)

	case "expression_statement", "parenthesized_expression":
		kids := namedChildren(n)
		if len(kids) == 0 {
			return nil
		}
		return c.convert(kids[0], depth+1)

	case "class_declaration":
		return c.classDecl(n, SymbolKindClass, depth)
	case "interface_declaration":
		return c.classDecl(n, SymbolKindInterface, depth)
	case "trait_declaration":
		return c.classDecl(n, SymbolKindTrait, depth)

	case "function_definition":
		return c.functionDecl(n, depth)

	case "assignment_expression", "reference_assignment_expression":
		return &Assign{
			Pos:    c.span(n),
			Target: c.convert(n.ChildByFieldName("left"), depth+1),
			Value:  c.convert(n.ChildByFieldName("right"), depth+1),
		}

	case "member_call_expression", "nullsafe_member_call_expression":
		return c.methodCall(n, depth)
	case "scoped_call_expression":
		return c.staticCall(n, depth)
	case "function_call_expression":
		return c.functionCall(n, depth)
	case "object_creation_expression":
		return c.newExpr(n, depth)

	case "string", "encapsed_string", "heredoc", "nowdoc":
		return c.stringLit(n)

	case "variable_name":
		return &VarRef{Pos: c.span(n), Name: strings.TrimPrefix(c.text(n), "$")}

	case "integer":
		return &Literal{Pos: c.span(n), Type: "int"}
	case "float":
		return &Literal{Pos: c.span(n), Type: "float"}
	case "boolean":
		return &Literal{Pos: c.span(n), Type: "bool"}
	case "null":
		return &Literal{Pos: c.span(n), Type: "null"}

	case "array_creation_expression":
		return c.arrayLit(n, depth)

	case "member_access_expression", "nullsafe_member_access_expression":
		return &PropertyFetch{
			Pos:    c.span(n),
			Object: c.convert(n.ChildByFieldName("object"), depth+1),
			Name:   c.memberName(n.ChildByFieldName("name")),
		}
	case "scoped_property_access_expression":
		return c.staticProperty(n, depth)

	case "anonymous_function_creation_expression", "anonymous_function", "arrow_function":
		return c.closure(n, depth)

	case "binary_expression":
		return c.binary(n, depth)

	case "return_statement":
		ret := &Return{Pos: c.span(n)}
		if kids := namedChildren(n); len(kids) > 0 {
			ret.Value = c.convert(kids[0], depth+1)
		}
		return ret

	case "comment":
		return &Comment{Pos: c.span(n), Text: c.text(n)}

	case "foreach_statement":
		return c.foreach(n, depth)
	}

	return c.opaque(n, depth)
}

func (c *converter) opaque(n *sitter.Node, depth int) Node {
	o := &Opaque{Pos: c.span(n), Type: n.Type()}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		o.Kids = c.appendNode(o.Kids, n.NamedChild(i), depth+1)
	}
	return o
}

// memberName returns the identifier of a member access. Dynamic names
// ($obj->$name) yield "".
func (c *converter) memberName(n *sitter.Node) string {
	if n == nil || n.Type() != "name" {
		return ""
	}
	return c.text(n)
}

func (c *converter) methodCall(n *sitter.Node, depth int) Node {
	call := &CallExpr{Pos: c.span(n), Style: CallMethod}
	call.Receiver = c.convert(n.ChildByFieldName("object"), depth+1)
	if name := n.ChildByFieldName("name"); name != nil {
		call.Name = c.memberName(name)
		call.NameSpan = c.span(name)
	}
	call.Args = c.arguments(n.ChildByFieldName("arguments"), depth)
	return call
}

func (c *converter) staticCall(n *sitter.Node, depth int) Node {
	call := &CallExpr{Pos: c.span(n), Style: CallStatic}
	if scope := n.ChildByFieldName("scope"); scope != nil {
		switch scope.Type() {
		case "name", "qualified_name", "relative_scope":
			call.Scope = c.scope.resolveClass(c.text(scope))
		default:
			call.Receiver = c.convert(scope, depth+1)
		}
	}
	if name := n.ChildByFieldName("name"); name != nil {
		call.Name = c.memberName(name)
		call.NameSpan = c.span(name)
	}
	call.Args = c.arguments(n.ChildByFieldName("arguments"), depth)
	return call
}

func (c *converter) functionCall(n *sitter.Node, depth int) Node {
	call := &CallExpr{Pos: c.span(n), Style: CallFunction}
	if fn := n.ChildByFieldName("function"); fn != nil {
		switch fn.Type() {
		case "name", "qualified_name":
			call.Name = typeterm.StripQualifier(c.text(fn))
			call.NameSpan = c.span(fn)
		default:
			call.Receiver = c.convert(fn, depth+1)
		}
	}
	call.Args = c.arguments(n.ChildByFieldName("arguments"), depth)
	return call
}

// arguments converts an argument list. Named arguments contribute their
// value; positions follow source order.
func (c *converter) arguments(args *sitter.Node, depth int) []Node {
	if args == nil {
		return nil
	}
	var out []Node
	for _, arg := range namedChildren(args) {
		value := arg
		if arg.Type() == "argument" {
			kids := namedChildren(arg)
			if len(kids) == 0 {
				continue
			}
			value = kids[len(kids)-1]
		}
		if value.Type() == "variadic_placeholder" {
			continue
		}
		if node := c.convert(value, depth+1); node != nil {
			out = append(out, node)
		}
	}
	return out
}

func (c *converter) newExpr(n *sitter.Node, depth int) Node {
	ne := &NewExpr{Pos: c.span(n)}
	for _, child := range namedChildren(n) {
		switch child.Type() {
		case "name", "qualified_name", "relative_scope":
			if ne.Class == "" {
				ne.Class = c.scope.resolveClass(c.text(child))
			}
		case "arguments":
			ne.Args = c.arguments(child, depth)
		case "declaration_list":
			ne.Anonymous = c.anonymousClass(n, child, depth)
		case "anonymous_class":
			if args := firstNamedOfType(child, "arguments"); args != nil {
				ne.Args = c.arguments(args, depth)
			}
			if body := firstNamedOfType(child, "declaration_list"); body != nil {
				ne.Anonymous = c.anonymousClass(child, body, depth)
			}
		}
	}
	return ne
}

// anonymousClass converts the body of "new class {...}". Its members are
// syntax only and never become index symbols.
func (c *converter) anonymousClass(n, body *sitter.Node, depth int) *ClassDecl {
	cd := &ClassDecl{Pos: c.span(n), Decl: SymbolKindClass}
	if base := firstNamedOfType(n, "base_clause"); base != nil {
		if parent := firstNamedOfType(base, "name", "qualified_name"); parent != nil {
			cd.Extends = typeterm.StripQualifier(c.scope.resolveClass(c.text(parent)))
		}
	}

	prevClass, prevParent := c.scope.class, c.scope.parent
	c.scope.class, c.scope.parent = "", cd.Extends
	defer func() { c.scope.class, c.scope.parent = prevClass, prevParent }()

	c.classBody(body, cd, &Symbol{}, depth+1)
	return cd
}

func (c *converter) staticProperty(n *sitter.Node, depth int) Node {
	pf := &PropertyFetch{Pos: c.span(n), Static: true}
	if scope := n.ChildByFieldName("scope"); scope != nil {
		switch scope.Type() {
		case "name", "qualified_name", "relative_scope":
			pf.Scope = c.scope.resolveClass(c.text(scope))
		default:
			pf.Object = c.convert(scope, depth+1)
		}
	}
	if name := n.ChildByFieldName("name"); name != nil {
		pf.Name = strings.TrimPrefix(c.text(name), "$")
	}
	return pf
}

func (c *converter) arrayLit(n *sitter.Node, depth int) Node {
	arr := &ArrayLit{Pos: c.span(n)}
	for _, elem := range namedChildren(n) {
		if elem.Type() != "array_element_initializer" {
			continue
		}
		kids := namedChildren(elem)
		if len(kids) == 0 {
			continue
		}
		// "key => value" keeps the value, the last named child.
		if node := c.convert(kids[len(kids)-1], depth+1); node != nil {
			arr.Elements = append(arr.Elements, node)
		}
	}
	return arr
}

func (c *converter) closure(n *sitter.Node, depth int) Node {
	cl := &Closure{Pos: c.span(n), Arrow: n.Type() == "arrow_function"}
	cl.Params = c.params(n.ChildByFieldName("parameters"))
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		cl.ReturnType = c.scope.resolveType(c.typeText(rt))
	}
	cl.Body = c.convert(n.ChildByFieldName("body"), depth+1)
	return cl
}

func (c *converter) binary(n *sitter.Node, depth int) Node {
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	be := &BinaryExpr{
		Pos:   c.span(n),
		Left:  c.convert(left, depth+1),
		Right: c.convert(right, depth+1),
	}
	if op := n.ChildByFieldName("operator"); op != nil {
		be.Op = c.text(op)
	} else {
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if !child.IsNamed() {
				be.Op = c.text(child)
				break
			}
		}
	}
	return be
}

// stringLit unquotes a string node. Double-quoted and heredoc strings that
// embed variables are flagged as interpolated.
func (c *converter) stringLit(n *sitter.Node) Node {
	raw := c.text(n)
	s := &StringLit{Pos: c.span(n)}
	switch n.Type() {
	case "nowdoc":
		s.Value = heredocBody(raw)
		return s
	case "heredoc":
		s.Value = heredocBody(raw)
		s.Interpolated = hasInterpolation(s.Value) || hasEmbeddedExpression(n)
		return s
	}
	switch {
	case strings.HasPrefix(raw, "'") && len(raw) >= 2:
		s.Value = unquoteSingle(raw[1 : len(raw)-1])
	case strings.HasPrefix(raw, `"`) && len(raw) >= 2:
		body := raw[1 : len(raw)-1]
		s.Interpolated = hasInterpolation(body) || hasEmbeddedExpression(n)
		s.Value = unquoteDouble(body)
	default:
		s.Value = raw
	}
	return s
}

// hasEmbeddedExpression reports whether a string node has children other
// than literal content.
func hasEmbeddedExpression(n *sitter.Node) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		switch n.NamedChild(i).Type() {
		case "string_content", "string_value", "escape_sequence", "heredoc_start", "heredoc_end", "heredoc_body", "nowdoc_body":
		default:
			return true
		}
	}
	return false
}

func hasInterpolation(body string) bool {
	for i := 0; i < len(body)-1; i++ {
		switch body[i] {
		case '\\':
			i++
		case '$':
			next := body[i+1]
			if next == '{' || next == '_' || next >= 'a' && next <= 'z' || next >= 'A' && next <= 'Z' || next >= 0x80 {
				return true
			}
		case '{':
			if body[i+1] == '$' {
				return true
			}
		}
	}
	return false
}

func unquoteSingle(body string) string {
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) && (body[i+1] == '\'' || body[i+1] == '\\') {
			i++
		}
		b.WriteByte(body[i])
	}
	return b.String()
}

var doubleEscapes = map[byte]byte{
	'n': '\n', 't': '\t', 'r': '\r', 'v': '\v', 'f': '\f', 'e': 0x1b,
	'"': '"', '\\': '\\', '$': '$',
}

func unquoteDouble(body string) string {
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			if r, ok := doubleEscapes[body[i+1]]; ok {
				b.WriteByte(r)
				i++
				continue
			}
		}
		b.WriteByte(body[i])
	}
	return b.String()
}

// heredocBody returns the text between the opening line and the closing
// identifier.
func heredocBody(raw string) string {
	nl := strings.IndexByte(raw, '\n')
	if nl < 0 {
		return raw
	}
	body := raw[nl+1:]
	if end := strings.LastIndexByte(body, '\n'); end >= 0 {
		body = body[:end]
	}
	return body
}

func (c *converter) foreach(n *sitter.Node, depth int) Node {
	kids := namedChildren(n)
	if len(kids) < 2 {
		return c.opaque(n, depth)
	}
	fe := &Foreach{Pos: c.span(n)}
	fe.Iterated = c.convert(kids[0], depth+1)

	binding := kids[1]
	if binding.Type() == "pair" {
		parts := namedChildren(binding)
		if len(parts) >= 2 {
			fe.Key, _ = c.loopVar(parts[0])
			fe.Value, fe.ByRef = c.loopVar(parts[len(parts)-1])
		}
	} else {
		fe.Value, fe.ByRef = c.loopVar(binding)
	}

	fe.Body = &Block{Pos: c.span(n)}
	for _, stmt := range kids[2:] {
		if stmt.Type() == "compound_statement" || stmt.Type() == "colon_block" {
			fe.Body.Pos = c.span(stmt)
			for i := 0; i < int(stmt.NamedChildCount()); i++ {
				fe.Body.Stmts = c.appendNode(fe.Body.Stmts, stmt.NamedChild(i), depth+2)
			}
			continue
		}
		fe.Body.Stmts = c.appendNode(fe.Body.Stmts, stmt, depth+1)
	}
	return fe
}

// loopVar returns the variable bound by a foreach key or value position.
func (c *converter) loopVar(n *sitter.Node) (*VarRef, bool) {
	switch n.Type() {
	case "variable_name":
		return &VarRef{Pos: c.span(n), Name: strings.TrimPrefix(c.text(n), "$")}, false
	case "by_ref":
		if v := firstNamedOfType(n, "variable_name"); v != nil {
			return &VarRef{Pos: c.span(v), Name: strings.TrimPrefix(c.text(v), "$")}, true
		}
	}
	return nil, false
}

// =============================================================================
// Declarations
// =============================================================================

// docFor returns the PHPDoc block directly preceding n, if any.
func (c *converter) docFor(n *sitter.Node) string {
	prev := n.PrevNamedSibling()
	if prev == nil || prev.Type() != "comment" {
		return ""
	}
	if text := c.text(prev); strings.HasPrefix(text, "/**") {
		return text
	}
	return ""
}

func (c *converter) typeText(n *sitter.Node) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(c.text(n)), ":"))
}

// modifiers reads the visibility and static modifiers of a declaration.
func (c *converter) modifiers(n *sitter.Node) (Visibility, bool) {
	vis := VisibilityPublic
	static := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "visibility_modifier":
			vis = ParseVisibility(c.text(child))
		case "static_modifier", "static":
			static = true
		}
	}
	return vis, static
}

func (c *converter) newSymbol(sp Span, name, qualified string, kind SymbolKind) *Symbol {
	return &Symbol{
		ID:            GenerateID(c.path, sp.StartLine, qualified),
		Name:          name,
		QualifiedName: qualified,
		Kind:          kind,
		FilePath:      c.path,
		Language:      phpLanguage,
		StartLine:     sp.StartLine,
		EndLine:       sp.EndLine,
		StartCol:      sp.StartCol,
		EndCol:        sp.EndCol,
	}
}

func (c *converter) classDecl(n *sitter.Node, kind SymbolKind, depth int) Node {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return c.opaque(n, depth)
	}
	name := c.text(nameNode)
	cd := &ClassDecl{
		Pos:  c.span(n),
		Name: name,
		FQN:  typeterm.StripQualifier(c.scope.qualify(name)),
		Decl: kind,
		Doc:  c.docFor(n),
	}
	if base := firstNamedOfType(n, "base_clause"); base != nil {
		if parent := firstNamedOfType(base, "name", "qualified_name"); parent != nil {
			cd.Extends = typeterm.StripQualifier(c.scope.resolveClass(c.text(parent)))
		}
	}

	prevClass, prevParent := c.scope.class, c.scope.parent
	c.scope.class, c.scope.parent = cd.FQN, cd.Extends
	defer func() { c.scope.class, c.scope.parent = prevClass, prevParent }()

	sym := c.newSymbol(cd.Pos, name, cd.FQN, kind)
	sym.Extends = cd.Extends
	sym.DocComment = cd.Doc
	sym.Children = make([]*Symbol, 0)

	if body := n.ChildByFieldName("body"); body != nil {
		c.classBody(body, cd, sym, depth+1)
	}

	c.file.Classes = append(c.file.Classes, cd)
	c.symbols = append(c.symbols, sym)
	return cd
}

func (c *converter) classBody(body *sitter.Node, cd *ClassDecl, sym *Symbol, depth int) {
	for _, member := range namedChildren(body) {
		switch member.Type() {
		case "method_declaration":
			md := c.methodDecl(member, cd, depth+1)
			if md.Name == "" {
				continue
			}
			cd.Methods = append(cd.Methods, md)
			ms := c.newSymbol(md.Pos, md.Name, cd.FQN+"::"+md.Name, SymbolKindMethod)
			ms.Visibility = md.Visibility
			ms.Static = md.Static
			ms.Type = md.ReturnType
			ms.Parent = cd.FQN
			ms.DocComment = md.Doc
			sym.Children = append(sym.Children, ms)

			if strings.EqualFold(md.Name, "__construct") {
				for _, pd := range c.promotedProperties(member.ChildByFieldName("parameters")) {
					cd.Properties = append(cd.Properties, pd)
					sym.Children = append(sym.Children, c.fieldSymbol(cd, pd))
				}
			}
		case "property_declaration":
			for _, pd := range c.propertyDecl(member, depth+1) {
				cd.Properties = append(cd.Properties, pd)
				sym.Children = append(sym.Children, c.fieldSymbol(cd, pd))
			}
		}
	}
}

func (c *converter) fieldSymbol(cd *ClassDecl, pd *PropertyDecl) *Symbol {
	fs := c.newSymbol(pd.Pos, pd.Name, cd.FQN+"::$"+pd.Name, SymbolKindField)
	fs.Visibility = pd.Visibility
	fs.Static = pd.Static
	fs.Type = pd.Type
	fs.Parent = cd.FQN
	fs.DocComment = pd.Doc
	return fs
}

func (c *converter) methodDecl(n *sitter.Node, cd *ClassDecl, depth int) *MethodDecl {
	md := &MethodDecl{
		Pos:   c.span(n),
		Name:  c.text(n.ChildByFieldName("name")),
		Class: cd.FQN,
		Doc:   c.docFor(n),
	}
	md.Visibility, md.Static = c.modifiers(n)
	md.Params = c.params(n.ChildByFieldName("parameters"))
	c.applyParamDocs(md.Params, md.Doc)

	declared := ""
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		declared = c.scope.resolveType(c.typeText(rt))
	}
	docType, _ := DocTag(md.Doc, "return")
	md.ReturnType = mergeTypes(declared, c.scope.resolveType(docType))

	if body := n.ChildByFieldName("body"); body != nil {
		md.Body = c.block(body, depth)
	}
	return md
}

func (c *converter) functionDecl(n *sitter.Node, depth int) Node {
	name := c.text(n.ChildByFieldName("name"))
	if name == "" {
		return c.opaque(n, depth)
	}
	fd := &FunctionDecl{
		Pos:  c.span(n),
		Name: name,
		FQN:  typeterm.StripQualifier(c.scope.qualify(name)),
		Doc:  c.docFor(n),
	}
	fd.Params = c.params(n.ChildByFieldName("parameters"))
	c.applyParamDocs(fd.Params, fd.Doc)

	declared := ""
	if rt := n.ChildByFieldName("return_type"); rt != nil {
		declared = c.scope.resolveType(c.typeText(rt))
	}
	docType, _ := DocTag(fd.Doc, "return")
	fd.ReturnType = mergeTypes(declared, c.scope.resolveType(docType))

	if body := n.ChildByFieldName("body"); body != nil {
		fd.Body = c.block(body, depth)
	}

	sym := c.newSymbol(fd.Pos, name, fd.FQN, SymbolKindFunction)
	sym.Type = fd.ReturnType
	sym.DocComment = fd.Doc
	c.symbols = append(c.symbols, sym)
	c.file.Functions = append(c.file.Functions, fd)
	return fd
}

func (c *converter) params(n *sitter.Node) []*Param {
	var out []*Param
	for _, pn := range namedChildren(n) {
		switch pn.Type() {
		case "simple_parameter", "variadic_parameter", "property_promotion_parameter":
		default:
			continue
		}
		p := &Param{Pos: c.span(pn)}
		name := pn.ChildByFieldName("name")
		if name == nil {
			name = firstNamedOfType(pn, "variable_name")
		}
		p.Name = strings.TrimPrefix(c.text(name), "$")
		if t := c.declaredType(pn); t != "" {
			p.Type = t
			if pn.Type() == "variadic_parameter" {
				p.Type = typeterm.Parse(t).Map(func(s string) string { return s + "[]" }).String()
			}
		}
		out = append(out, p)
	}
	return out
}

// applyParamDocs merges "@param Type $name" annotations into the params.
func (c *converter) applyParamDocs(params []*Param, doc string) {
	if doc == "" {
		return
	}
	for _, tag := range DocTags(doc, "param") {
		for _, p := range params {
			if p.Name == tag[1] {
				p.Type = mergeTypes(p.Type, c.scope.resolveType(tag[0]))
			}
		}
	}
}

// declaredType returns the resolved type annotation of a parameter or
// property declaration.
func (c *converter) declaredType(n *sitter.Node) string {
	t := n.ChildByFieldName("type")
	if t == nil {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if child := n.NamedChild(i); typeNodeTypes[child.Type()] {
				t = child
				break
			}
		}
	}
	if t == nil {
		return ""
	}
	return c.scope.resolveType(c.typeText(t))
}

func (c *converter) promotedProperties(n *sitter.Node) []*PropertyDecl {
	var out []*PropertyDecl
	for _, pn := range namedChildren(n) {
		if pn.Type() != "property_promotion_parameter" {
			continue
		}
		name := pn.ChildByFieldName("name")
		if name == nil {
			name = firstNamedOfType(pn, "variable_name")
		}
		if name == nil {
			continue
		}
		vis := VisibilityPublic
		if v := firstNamedOfType(pn, "visibility_modifier"); v != nil {
			vis = ParseVisibility(c.text(v))
		} else if v := pn.ChildByFieldName("visibility"); v != nil {
			vis = ParseVisibility(c.text(v))
		}
		out = append(out, &PropertyDecl{
			Pos:        c.span(pn),
			Name:       strings.TrimPrefix(c.text(name), "$"),
			Visibility: vis,
			Type:       c.declaredType(pn),
		})
	}
	return out
}

func (c *converter) propertyDecl(n *sitter.Node, depth int) []*PropertyDecl {
	vis, static := c.modifiers(n)
	doc := c.docFor(n)
	docType, _ := DocTag(doc, "var")
	typ := mergeTypes(c.declaredType(n), c.scope.resolveType(docType))

	var out []*PropertyDecl
	for _, elem := range namedChildren(n) {
		if elem.Type() != "property_element" {
			continue
		}
		vn := firstNamedOfType(elem, "variable_name")
		if vn == nil {
			continue
		}
		pd := &PropertyDecl{
			Pos:        c.span(elem),
			Name:       strings.TrimPrefix(c.text(vn), "$"),
			Visibility: vis,
			Static:     static,
			Type:       typ,
			Doc:        doc,
		}
		if def := elem.ChildByFieldName("default_value"); def != nil {
			pd.Default = c.convert(def, depth+1)
		} else if init := firstNamedOfType(elem, "property_initializer"); init != nil {
			if kids := namedChildren(init); len(kids) > 0 {
				pd.Default = c.convert(kids[0], depth+1)
			}
		}
		out = append(out, pd)
	}
	return out
}
