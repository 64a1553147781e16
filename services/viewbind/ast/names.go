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
)

// nameScope resolves class names the way PHP does at compile time: fully
// qualified names pass through, the first segment may be an imported
// alias, and anything else is relative to the current namespace.
type nameScope struct {
	namespace string
	uses      map[string]string
	class     string // current class FQN
	parent    string // current class parent FQN
}

// resolveClass returns name fully qualified with a leading "\". Primitives
// come back lowercase and unqualified.
func (s *nameScope) resolveClass(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, typeterm.Separator) {
		return name
	}
	lower := strings.ToLower(name)
	switch lower {
	case "self", "static", "$this":
		if s.class != "" {
			return typeterm.Separator + s.class
		}
		return lower
	case "parent":
		if s.parent != "" {
			return typeterm.Separator + s.parent
		}
		return lower
	}
	if typeterm.IsPrimitive(name) {
		return lower
	}
	if strings.HasPrefix(lower, "namespace"+typeterm.Separator) {
		return s.qualify(name[len("namespace")+1:])
	}
	first, rest := name, ""
	if i := strings.Index(name, typeterm.Separator); i >= 0 {
		first, rest = name[:i], name[i:]
	}
	if full, ok := s.uses[first]; ok {
		return typeterm.Separator + full + rest
	}
	return s.qualify(name)
}

func (s *nameScope) qualify(name string) string {
	if s.namespace == "" {
		return typeterm.Separator + name
	}
	return typeterm.Separator + s.namespace + typeterm.Separator + name
}

// resolveType resolves every class name inside a type expression:
// unions, nullable shorthand, T[] suffixes and generic arguments.
func (s *nameScope) resolveType(typ string) string {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return ""
	}
	parts := typeterm.SplitTopLevel(typ, '|')
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.HasPrefix(p, "?") {
			out = append(out, s.resolveTerm(p[1:]), "null")
			continue
		}
		if strings.HasPrefix(p, "(") && strings.HasSuffix(p, ")") {
			p = p[1 : len(p)-1]
		}
		for _, q := range typeterm.SplitTopLevel(p, '&') {
			out = append(out, s.resolveTerm(q))
		}
	}
	return joinUnique(out)
}

func (s *nameScope) resolveTerm(term string) string {
	term = strings.TrimSpace(term)
	if elem, ok := typeterm.ArrayOf(term); ok {
		return s.resolveTerm(elem) + "[]"
	}
	if i := strings.IndexByte(term, '<'); i > 0 && strings.HasSuffix(term, ">") {
		args := typeterm.SplitTopLevel(term[i+1:len(term)-1], ',')
		for j, a := range args {
			args[j] = s.resolveType(a)
		}
		return strings.ToLower(term[:i]) + "<" + strings.Join(args, ", ") + ">"
	}
	if !typeterm.IsWellFormed(term) {
		return term
	}
	return s.resolveClass(term)
}

// mergeTypes unions a declared type with a PHPDoc type, declared first.
func mergeTypes(declared, doc string) string {
	if doc == "" {
		return declared
	}
	if declared == "" {
		return doc
	}
	return joinUnique(append(typeterm.SplitTopLevel(declared, '|'), typeterm.SplitTopLevel(doc, '|')...))
}

func joinUnique(parts []string) string {
	return typeterm.New(parts...).String()
}

// DocTag returns the type following the first @tag in a PHPDoc comment and
// the variable name after it, if any. Generic types containing spaces
// ("array<int, Quest>") are read as one token.
//
// Example:
//
//	DocTag("/** @var Quest[] $quests */", "var") // "Quest[]", "quests"
func DocTag(doc, tag string) (typ, variable string) {
	marker := "@" + tag
	idx := 0
	for {
		i := strings.Index(doc[idx:], marker)
		if i < 0 {
			return "", ""
		}
		idx += i + len(marker)
		// "@var" must not match "@variable".
		if idx < len(doc) && !isSpace(doc[idx]) {
			continue
		}
		break
	}
	rest := strings.TrimLeft(doc[idx:], " \t")
	typ, rest = readTypeToken(rest)
	rest = strings.TrimLeft(rest, " \t")
	if strings.HasPrefix(rest, "$") {
		end := 1
		for end < len(rest) && isIdentByte(rest[end]) {
			end++
		}
		variable = rest[1:end]
	}
	return typ, variable
}

// DocTags returns every (type, variable) pair for @tag in a comment.
func DocTags(doc, tag string) [][2]string {
	var out [][2]string
	marker := "@" + tag
	for {
		i := strings.Index(doc, marker)
		if i < 0 {
			return out
		}
		next := i + len(marker)
		if next < len(doc) && isSpace(doc[next]) {
			if t, v := DocTag(doc[i:], tag); t != "" {
				out = append(out, [2]string{t, v})
			}
		}
		doc = doc[next:]
	}
}

func readTypeToken(s string) (token, rest string) {
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '<' || c == '(' || c == '{':
			depth++
		case c == '>' || c == ')' || c == '}':
			if depth > 0 {
				depth--
			}
		case isSpace(c) || c == '*' && depth == 0:
			if depth == 0 {
				return s[:i], s[i:]
			}
		}
	}
	return s, ""
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

// ResolveType qualifies the class names in typ the way the parser does for
// declarations at offset: through the file's namespace, its imports and the
// enclosing class for self, static and parent.
func (f *File) ResolveType(typ string, offset int) string {
	if f == nil {
		return typ
	}
	scope := &nameScope{namespace: f.Namespace, uses: f.Uses}
	if cd, ok := Enclosing[*ClassDecl](f.Root, offset); ok {
		scope.class, scope.parent = cd.FQN, cd.Extends
	}
	return scope.resolveType(typ)
}
