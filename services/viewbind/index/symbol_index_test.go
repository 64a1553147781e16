// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package index

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/AleutianAI/viewbind/services/viewbind/ast"
)

func classSym(file, fqn, extends string, line int) *ast.Symbol {
	name := fqn
	if i := lastSep(fqn); i >= 0 {
		name = fqn[i+1:]
	}
	return &ast.Symbol{
		ID:            ast.GenerateID(file, line, fqn),
		Name:          name,
		QualifiedName: fqn,
		Kind:          ast.SymbolKindClass,
		FilePath:      file,
		Language:      "php",
		Extends:       extends,
		StartLine:     line,
		EndLine:       line + 20,
	}
}

func memberSym(file, class, name string, kind ast.SymbolKind, vis ast.Visibility, line int) *ast.Symbol {
	qualified := class + "::" + name
	if kind == ast.SymbolKindField {
		qualified = class + "::$" + name
	}
	return &ast.Symbol{
		ID:            ast.GenerateID(file, line, qualified),
		Name:          name,
		QualifiedName: qualified,
		Kind:          kind,
		Visibility:    vis,
		FilePath:      file,
		Language:      "php",
		Parent:        class,
		StartLine:     line,
		EndLine:       line,
	}
}

func lastSep(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '\\' {
			return i
		}
	}
	return -1
}

func questFixture(t *testing.T) *SymbolIndex {
	t.Helper()
	idx := NewSymbolIndex()
	symbols := []*ast.Symbol{
		classSym("app/Model/Base.php", `App\Model\Base`, "", 3),
		memberSym("app/Model/Base.php", `App\Model\Base`, "getId", ast.SymbolKindMethod, ast.VisibilityPublic, 5),
		classSym("app/Model/Quest.php", `App\Model\Quest`, `App\Model\Base`, 5),
		memberSym("app/Model/Quest.php", `App\Model\Quest`, "title", ast.SymbolKindField, ast.VisibilityPublic, 7),
		memberSym("app/Model/Quest.php", `App\Model\Quest`, "getTitle", ast.SymbolKindMethod, ast.VisibilityPublic, 9),
		classSym("app/Legacy/Quest.php", `Legacy\Quest`, "", 2),
	}
	if err := idx.AddBatch(symbols); err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	return idx
}

func TestSymbolIndex_ClassLookups(t *testing.T) {
	idx := questFixture(t)

	byName := idx.ClassesByName("Quest")
	if len(byName) != 2 {
		t.Fatalf("ClassesByName(Quest) = %d symbols, want 2", len(byName))
	}
	if byName[0].QualifiedName != `App\Model\Quest` || byName[1].QualifiedName != `Legacy\Quest` {
		t.Errorf("insertion order not kept: %s, %s", byName[0].QualifiedName, byName[1].QualifiedName)
	}

	byFQN := idx.ClassesByFQN(`\App\Model\Quest`)
	if len(byFQN) != 1 || byFQN[0].FilePath != "app/Model/Quest.php" {
		t.Errorf("ClassesByFQN with leading separator = %v", byFQN)
	}

	if got := idx.ClassesByName("getTitle"); got != nil {
		t.Errorf("methods must not be returned as classes, got %v", got)
	}
}

func TestSymbolIndex_FindMethodThroughExtends(t *testing.T) {
	idx := questFixture(t)

	tests := []struct {
		class  string
		method string
		want   string
		found  bool
	}{
		{`App\Model\Quest`, "getTitle", `App\Model\Quest::getTitle`, true},
		{`App\Model\Quest`, "GETTITLE", `App\Model\Quest::getTitle`, true},
		{`App\Model\Quest`, "getId", `App\Model\Base::getId`, true},
		{`App\Model\Base`, "getTitle", "", false},
		{`Missing\Class`, "getId", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.class+"::"+tt.method, func(t *testing.T) {
			sym, ok := idx.FindMethod(tt.class, tt.method)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if ok && sym.QualifiedName != tt.want {
				t.Errorf("QualifiedName = %q, want %q", sym.QualifiedName, tt.want)
			}
		})
	}

	if f, ok := idx.FindField(`App\Model\Quest`, "$title"); !ok || f.Name != "title" {
		t.Errorf("FindField = %v, %v", f, ok)
	}
}

func TestSymbolIndex_CyclicExtendsTerminates(t *testing.T) {
	idx := NewSymbolIndex()
	err := idx.AddBatch([]*ast.Symbol{
		classSym("a.php", "A", "B", 1),
		classSym("b.php", "B", "A", 1),
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if _, ok := idx.FindMethod("A", "missing"); ok {
		t.Error("expected no method")
	}
	if chain := idx.Ancestors("A"); len(chain) != 2 {
		t.Errorf("Ancestors(A) = %v", chain)
	}
}

func TestSymbolIndex_Members(t *testing.T) {
	idx := questFixture(t)
	members := idx.Members(`App\Model\Quest`)
	if len(members) != 2 {
		t.Fatalf("Members = %d, want 2", len(members))
	}
	if members[0].Name != "title" || members[1].Name != "getTitle" {
		t.Errorf("declaration order lost: %s, %s", members[0].Name, members[1].Name)
	}
}

func TestSymbolIndex_RemoveByFilePreservesOrder(t *testing.T) {
	idx := NewSymbolIndex()
	for i, file := range []string{"a.php", "b.php", "c.php", "d.php"} {
		if err := idx.Add(classSym(file, fmt.Sprintf(`NS%d\Quest`, i), "", 1)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	if n := idx.RemoveByFile("b.php"); n != 1 {
		t.Fatalf("RemoveByFile = %d, want 1", n)
	}

	got := idx.ClassesByName("Quest")
	want := []string{`NS0\Quest`, `NS2\Quest`, `NS3\Quest`}
	if len(got) != len(want) {
		t.Fatalf("got %d classes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].QualifiedName != want[i] {
			t.Errorf("position %d = %s, want %s", i, got[i].QualifiedName, want[i])
		}
	}
	if idx.RemoveByFile("b.php") != 0 {
		t.Error("second removal should be a no-op")
	}
	if stats := idx.Stats(); stats.TotalSymbols != 3 || stats.FileCount != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSymbolIndex_AddBatchAtomic(t *testing.T) {
	idx := NewSymbolIndex()
	good := classSym("a.php", "A", "", 1)
	bad := &ast.Symbol{ID: "x", Name: "", FilePath: "a.php", Kind: ast.SymbolKindClass, StartLine: 1, EndLine: 1}

	err := idx.AddBatch([]*ast.Symbol{good, bad})
	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("expected BatchError, got %v", err)
	}
	if !errors.Is(err, ErrInvalidSymbol) {
		t.Errorf("expected ErrInvalidSymbol in chain: %v", err)
	}
	if idx.Stats().TotalSymbols != 0 {
		t.Error("no symbols should be added when the batch fails")
	}

	if err := idx.Add(good); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Add(good); !errors.Is(err, ErrDuplicateSymbol) {
		t.Errorf("expected ErrDuplicateSymbol, got %v", err)
	}
}

func TestSymbolIndex_MaxSymbols(t *testing.T) {
	idx := NewSymbolIndex(WithMaxSymbols(1))
	if err := idx.Add(classSym("a.php", "A", "", 1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := idx.Add(classSym("b.php", "B", "", 1)); !errors.Is(err, ErrMaxSymbolsExceeded) {
		t.Errorf("expected ErrMaxSymbolsExceeded, got %v", err)
	}
}

func TestSymbolIndex_CloneIsIndependent(t *testing.T) {
	idx := questFixture(t)
	clone := idx.Clone()

	clone.RemoveByFile("app/Model/Quest.php")

	if len(idx.ClassesByFQN(`App\Model\Quest`)) != 1 {
		t.Error("removing from the clone changed the original")
	}
	if len(clone.ClassesByFQN(`App\Model\Quest`)) != 0 {
		t.Error("clone still has the removed class")
	}
	if len(idx.Members(`App\Model\Quest`)) != 2 {
		t.Error("original members changed")
	}
}

func TestSymbolIndex_ConcurrentReads(t *testing.T) {
	idx := questFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if _, ok := idx.FindMethod(`App\Model\Quest`, "getId"); !ok {
					t.Error("FindMethod failed under concurrency")
					return
				}
				_ = idx.ClassesByName("Quest")
			}
		}()
	}
	wg.Wait()
}

func TestSymbolIndex_ClassNamesFoldCase(t *testing.T) {
	idx := questFixture(t)

	if got := idx.ClassesByFQN(`app\model\QUEST`); len(got) != 1 {
		t.Errorf("ClassesByFQN is case-sensitive: %v", got)
	}
	if got := idx.ClassesByName("quest"); len(got) != 2 {
		t.Errorf("ClassesByName(quest) = %d symbols, want 2", len(got))
	}
	if _, ok := idx.FindField(`App\Model\Quest`, "Title"); ok {
		t.Error("property names must stay case-sensitive")
	}

	stats := idx.Stats()
	if stats.ClassCount != 3 || stats.MethodCount != 2 || stats.FieldCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
