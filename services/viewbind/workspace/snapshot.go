// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"path"
	"sort"

	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/convention"
	"github.com/AleutianAI/viewbind/services/viewbind/index"
)

// Snapshot is an immutable view of a loaded workspace. It serves the
// parsed files, file lookups and class lookups of one consistent moment.
//
// Thread Safety:
//
//	Safe for concurrent use. Later workspace changes are not visible.
type Snapshot struct {
	files map[string]*ast.File
	index *index.SymbolIndex
}

// File returns the parsed file at a root-relative path.
func (s *Snapshot) File(p string) (*ast.File, bool) {
	f, ok := s.files[convention.NormalizePath(p)]
	return f, ok
}

// Exists reports whether a file is part of the snapshot.
func (s *Snapshot) Exists(p string) bool {
	_, ok := s.files[convention.NormalizePath(p)]
	return ok
}

// FindByBaseName lists the files named name, sorted.
func (s *Snapshot) FindByBaseName(name string) []string {
	var out []string
	for p := range s.files {
		if path.Base(p) == name {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Paths lists every file, sorted.
func (s *Snapshot) Paths() []string {
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Index returns the snapshot's private symbol index.
func (s *Snapshot) Index() *index.SymbolIndex {
	return s.index
}

func (s *Snapshot) ClassesByName(name string) []*ast.Symbol { return s.index.ClassesByName(name) }
func (s *Snapshot) ClassesByFQN(fqn string) []*ast.Symbol   { return s.index.ClassesByFQN(fqn) }
func (s *Snapshot) Members(classFQN string) []*ast.Symbol   { return s.index.Members(classFQN) }

func (s *Snapshot) FindMethod(classFQN, method string) (*ast.Symbol, bool) {
	return s.index.FindMethod(classFQN, method)
}

func (s *Snapshot) FindField(classFQN, field string) (*ast.Symbol, bool) {
	return s.index.FindField(classFQN, field)
}
