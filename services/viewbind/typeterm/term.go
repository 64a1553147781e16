// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package typeterm

import (
	"strings"
	"unicode"
)

// Encoding prefixes.
const (
	// MethodRefPrefix starts a lazy method return type reference.
	MethodRefPrefix = "#M#C"

	// ClosurePrefix starts a closure-bound type.
	ClosurePrefix = "#π("

	// Separator is the namespace separator.
	Separator = `\`
)

var primitives = map[string]bool{
	"int": true, "integer": true, "float": true, "double": true,
	"string": true, "bool": true, "boolean": true, "array": true,
	"mixed": true, "void": true, "null": true, "object": true,
	"callable": true, "iterable": true, "resource": true,
	"false": true, "true": true, "never": true, "scalar": true,
	"numeric": true,
}

var pseudoTypes = map[string]bool{
	"self": true, "static": true, "parent": true, "$this": true,
}

// IsPrimitive reports whether t is a builtin type name.
func IsPrimitive(t string) bool {
	return primitives[strings.ToLower(StripQualifier(strings.TrimSpace(t)))]
}

// IsPseudo reports whether t is self, static, parent or $this.
func IsPseudo(t string) bool {
	return pseudoTypes[strings.ToLower(strings.TrimSpace(t))]
}

// IsEncoded reports whether t is an internal "#..." encoding.
func IsEncoded(t string) bool {
	return strings.HasPrefix(t, "#")
}

// StripQualifier removes leading namespace separators.
func StripQualifier(t string) string {
	return strings.TrimLeft(t, Separator)
}

// ShortName returns the segment after the last namespace separator.
func ShortName(t string) string {
	t = StripQualifier(t)
	if i := strings.LastIndex(t, Separator); i >= 0 {
		return t[i+1:]
	}
	return t
}

// ArrayOf returns T for a "T[]" term.
func ArrayOf(t string) (string, bool) {
	if !strings.HasSuffix(t, "[]") || len(t) <= 2 {
		return "", false
	}
	return t[:len(t)-2], true
}

var genericCollections = []string{"array<", "list<", "non-empty-array<", "non-empty-list<", "iterable<"}

// GenericElement returns the value type of array<T>, array<K, V>, list<T>
// and iterable<T> style terms.
func GenericElement(t string) (string, bool) {
	lower := strings.ToLower(t)
	for _, prefix := range genericCollections {
		if !strings.HasPrefix(lower, prefix) || !strings.HasSuffix(t, ">") {
			continue
		}
		inner := t[len(prefix) : len(t)-1]
		parts := SplitTopLevel(inner, ',')
		if len(parts) == 0 {
			return "", false
		}
		elem := strings.TrimSpace(parts[len(parts)-1])
		return elem, elem != ""
	}
	return "", false
}

// MethodRef decodes "#M#C\App\Model\Episode.getQuests" into the class
// "App\Model\Episode" and the method "getQuests".
func MethodRef(t string) (class, method string, ok bool) {
	if !strings.HasPrefix(t, MethodRefPrefix) {
		return "", "", false
	}
	rest := t[len(MethodRefPrefix):]
	dot := strings.LastIndex(rest, ".")
	if dot <= 0 || dot == len(rest)-1 {
		return "", "", false
	}
	return StripQualifier(rest[:dot]), rest[dot+1:], true
}

// FormatMethodRef encodes a lazy method return type reference.
func FormatMethodRef(class, method string) string {
	return MethodRefPrefix + Separator + StripQualifier(class) + "." + method
}

// ClosureInner unwraps "#π(X)" to X.
func ClosureInner(t string) (string, bool) {
	if !strings.HasPrefix(t, ClosurePrefix) || !strings.HasSuffix(t, ")") {
		return "", false
	}
	return t[len(ClosurePrefix) : len(t)-1], true
}

// FormatClosure encodes a closure-bound type.
func FormatClosure(inner string) string {
	return ClosurePrefix + inner + ")"
}

// IsClassName reports whether t names a class: a plain or qualified
// identifier path that is neither a primitive nor a pseudo type.
func IsClassName(t string) bool {
	t = StripQualifier(t)
	if t == "" || IsPrimitive(t) || IsPseudo(t) {
		return false
	}
	for _, seg := range strings.Split(t, Separator) {
		if !isIdentifier(seg) {
			return false
		}
	}
	return true
}

// IsQualified reports whether t is a class name containing a namespace.
func IsQualified(t string) bool {
	return IsClassName(t) && strings.Contains(StripQualifier(t), Separator)
}

// IsWellFormed reports whether t is a plausible term: identifier paths,
// optionally with [] suffixes or a generic argument list.
func IsWellFormed(t string) bool {
	if t == "" {
		return false
	}
	if IsEncoded(t) {
		return true
	}
	base := t
	for {
		elem, ok := ArrayOf(base)
		if !ok {
			break
		}
		base = elem
	}
	if i := strings.IndexByte(base, '<'); i > 0 && strings.HasSuffix(base, ">") {
		base = base[:i]
	}
	base = StripQualifier(base)
	if base == "" {
		return false
	}
	for _, seg := range strings.Split(base, Separator) {
		if !isIdentifier(seg) && seg != "$this" {
			return false
		}
	}
	return true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || r >= 0x80 {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}

// SplitTopLevel splits s on sep, ignoring separators nested inside <>, ()
// or {}. Parts are trimmed; empty parts are dropped.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(', '{':
			depth++
		case '>', ')', '}':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				if p := strings.TrimSpace(s[start:i]); p != "" {
					parts = append(parts, p)
				}
				start = i + 1
			}
		}
	}
	if p := strings.TrimSpace(s[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}
