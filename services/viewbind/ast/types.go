// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast provides the typed PHP syntax model and symbol extraction used
// by the view binding resolver.
//
// Source files are parsed with tree-sitter and converted into a small set of
// tagged node variants (see node.go). Declarations found while converting are
// also reported as Symbols so they can be loaded into the project index.
package ast

import (
	"errors"
	"fmt"
	"strings"
)

// Parser limits.
const (
	// DefaultMaxFileSize is the largest source file the parser accepts (10MB).
	DefaultMaxFileSize int64 = 10 * 1024 * 1024

	// WarnFileSize is the size above which a warning is logged (1MB).
	WarnFileSize = 1024 * 1024

	// MaxNodeDepth bounds syntax tree conversion recursion.
	MaxNodeDepth = 512
)

// Sentinel errors returned by the parser.
var (
	// ErrFileTooLarge indicates the content exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrInvalidContent indicates the content is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrInvalidSymbol indicates a symbol failed validation.
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// SymbolKind classifies a declaration.
type SymbolKind int

const (
	SymbolKindUnknown SymbolKind = iota
	SymbolKindClass
	SymbolKindInterface
	SymbolKindTrait
	SymbolKindMethod
	SymbolKindField
	SymbolKindFunction
)

var symbolKindNames = map[SymbolKind]string{
	SymbolKindUnknown:   "unknown",
	SymbolKindClass:     "class",
	SymbolKindInterface: "interface",
	SymbolKindTrait:     "trait",
	SymbolKindMethod:    "method",
	SymbolKindField:     "field",
	SymbolKindFunction:  "function",
}

// String returns the lowercase kind name.
func (k SymbolKind) String() string {
	if name, ok := symbolKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the kind as its name.
func (k SymbolKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsClassLike reports whether members can be declared on the kind.
func (k SymbolKind) IsClassLike() bool {
	return k == SymbolKindClass || k == SymbolKindInterface || k == SymbolKindTrait
}

// Visibility is a member's access level. Members without a modifier are public.
type Visibility int

const (
	VisibilityPublic Visibility = iota
	VisibilityProtected
	VisibilityPrivate
)

// String returns the PHP keyword for the visibility.
func (v Visibility) String() string {
	switch v {
	case VisibilityProtected:
		return "protected"
	case VisibilityPrivate:
		return "private"
	default:
		return "public"
	}
}

// MarshalText encodes the visibility as its keyword.
func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// ParseVisibility maps a modifier keyword to a Visibility.
// Unrecognized input yields VisibilityPublic.
func ParseVisibility(s string) Visibility {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "protected":
		return VisibilityProtected
	case "private":
		return VisibilityPrivate
	default:
		return VisibilityPublic
	}
}

// Symbol is a declaration extracted from a PHP file.
//
// Description:
//
//	Classes, interfaces and traits carry their members in Children. Members
//	are also indexed individually; Parent links a member back to its owner.
//
// Type conventions:
//
//	Type holds the declared type (fields) or return type (methods and
//	functions) as a union string. Class names are fully qualified with a
//	leading "\", primitives are lowercase, and PHPDoc types are merged in as
//	additional union members, e.g. "array|\App\Model\Quest[]".
//
// Thread Safety: Symbols must not be mutated after being added to an index.
type Symbol struct {
	// ID is unique per project: "file_path:line:qualified_name".
	ID string `json:"id"`

	// Name is the simple name, e.g. "Quest" or "getTitle".
	Name string `json:"name"`

	// QualifiedName is "App\Model\Quest" for classes and
	// "App\Model\Quest::getTitle" for members. No leading separator.
	QualifiedName string `json:"qualified_name"`

	Kind       SymbolKind `json:"kind"`
	Visibility Visibility `json:"visibility"`
	Static     bool       `json:"static,omitempty"`

	FilePath string `json:"file_path"`
	Language string `json:"language"`

	// Type is the declared type or return type, see Type conventions.
	Type string `json:"type,omitempty"`

	// Parent is the qualified name of the owning class for members.
	Parent string `json:"parent,omitempty"`

	// Extends is the qualified name of the parent class, if any.
	Extends string `json:"extends,omitempty"`

	DocComment string `json:"doc_comment,omitempty"`

	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	StartCol  int `json:"start_col"`
	EndCol    int `json:"end_col"`

	Children []*Symbol `json:"children,omitempty"`
}

// Validate checks the invariants the index relies on.
func (s *Symbol) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: empty ID", ErrInvalidSymbol)
	}
	if s.Name == "" {
		return fmt.Errorf("%w: empty name (id %s)", ErrInvalidSymbol, s.ID)
	}
	if s.FilePath == "" {
		return fmt.Errorf("%w: empty file path (id %s)", ErrInvalidSymbol, s.ID)
	}
	if s.Kind == SymbolKindUnknown {
		return fmt.Errorf("%w: unknown kind (id %s)", ErrInvalidSymbol, s.ID)
	}
	if s.StartLine <= 0 || s.EndLine < s.StartLine {
		return fmt.Errorf("%w: invalid line range %d-%d (id %s)", ErrInvalidSymbol, s.StartLine, s.EndLine, s.ID)
	}
	if (s.Kind == SymbolKindMethod || s.Kind == SymbolKindField) && s.Parent == "" {
		return fmt.Errorf("%w: member without parent (id %s)", ErrInvalidSymbol, s.ID)
	}
	return nil
}

// Fields returns the field members of a class-like symbol.
func (s *Symbol) Fields() []*Symbol {
	return s.childrenOfKind(SymbolKindField)
}

// Methods returns the method members of a class-like symbol.
func (s *Symbol) Methods() []*Symbol {
	return s.childrenOfKind(SymbolKindMethod)
}

func (s *Symbol) childrenOfKind(kind SymbolKind) []*Symbol {
	var out []*Symbol
	for _, c := range s.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// GenerateID builds the project-unique symbol ID.
func GenerateID(filePath string, line int, qualifiedName string) string {
	return fmt.Sprintf("%s:%d:%s", filePath, line, qualifiedName)
}

// Flatten returns the symbols and all of their children, parents first.
func Flatten(symbols []*Symbol) []*Symbol {
	out := make([]*Symbol, 0, len(symbols))
	var walk func([]*Symbol)
	walk = func(list []*Symbol) {
		for _, s := range list {
			out = append(out, s)
			walk(s.Children)
		}
	}
	walk(symbols)
	return out
}

// ParseResult is the output of parsing one file.
type ParseResult struct {
	FilePath      string    `json:"file_path"`
	Language      string    `json:"language"`
	Hash          string    `json:"hash"`
	ParsedAtMilli int64     `json:"parsed_at_milli"`
	File          *File     `json:"-"`
	Symbols       []*Symbol `json:"symbols"`

	// Errors holds non-fatal problems, e.g. syntax errors tree-sitter recovered from.
	Errors []string `json:"errors,omitempty"`
}

// Validate checks every extracted symbol.
func (r *ParseResult) Validate() error {
	if r.FilePath == "" {
		return errors.New("empty file path")
	}
	for _, s := range Flatten(r.Symbols) {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}
