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
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

const controllerSource = `<?php
namespace App\Controller;

use App\Model\Episode;
use App\Model\Quest as QuestModel;
use Foundation\Controller;

/**
 * Quest pages.
 */
class QuestController extends Controller
{
    /** @var Episode */
    protected $episode;

    private string $secret = 'x';

    public static $count = 0;

    /**
     * @param Episode $episode
     */
    public function showAction($episode)
    {
        $this->setVar('quest', $episode->getQuest());
        $this->setVar("title", "Quest");
        $this->setVar("greeting", "Hello $name");
        foreach ($episode->getQuests() as $key => $quest) {
            $this->setVar('last', $quest);
        }
    }

    /**
     * @return QuestModel[]
     */
    protected function loadQuests(): array
    {
        return QuestModel::findByEpisodeId(1);
    }

    private function __helper() {}
}
`

func parseController(t *testing.T) *ParseResult {
	t.Helper()
	parser := NewPHPParser()
	result, err := parser.Parse(context.Background(), []byte(controllerSource), "app/Controller/QuestController.php")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return result
}

func findSymbol(symbols []*Symbol, qualified string) *Symbol {
	for _, s := range Flatten(symbols) {
		if s.QualifiedName == qualified {
			return s
		}
	}
	return nil
}

func TestPHPParser_Parse_EmptyFile(t *testing.T) {
	parser := NewPHPParser()
	result, err := parser.Parse(context.Background(), []byte(""), "empty.php")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.Symbols) != 0 {
		t.Errorf("expected no symbols, got %d", len(result.Symbols))
	}
	if result.File == nil || result.File.Root == nil {
		t.Fatal("expected a file with a root block")
	}
	if result.Language != "php" {
		t.Errorf("expected language php, got %q", result.Language)
	}
}

func TestPHPParser_Parse_FileTooLarge(t *testing.T) {
	parser := NewPHPParser(WithPHPMaxFileSize(10))
	_, err := parser.Parse(context.Background(), []byte("<?php echo 'hello world';"), "big.php")
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestPHPParser_Parse_InvalidUTF8(t *testing.T) {
	parser := NewPHPParser()
	_, err := parser.Parse(context.Background(), []byte{'<', '?', 0xff, 0xfe}, "bad.php")
	if !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
}

func TestPHPParser_Parse_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPHPParser().Parse(ctx, []byte("<?php"), "x.php")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPHPParser_Parse_NamespaceAndImports(t *testing.T) {
	result := parseController(t)
	file := result.File

	if file.Namespace != `App\Controller` {
		t.Errorf("namespace = %q", file.Namespace)
	}
	want := map[string]string{
		"Episode":    `App\Model\Episode`,
		"QuestModel": `App\Model\Quest`,
		"Controller": `Foundation\Controller`,
	}
	for alias, fqn := range want {
		if got := file.Uses[alias]; got != fqn {
			t.Errorf("use %s = %q, want %q", alias, got, fqn)
		}
	}
}

func TestPHPParser_Parse_ClassSymbols(t *testing.T) {
	result := parseController(t)

	class := findSymbol(result.Symbols, `App\Controller\QuestController`)
	if class == nil {
		t.Fatal("class symbol not found")
	}
	if class.Kind != SymbolKindClass {
		t.Errorf("kind = %v", class.Kind)
	}
	if class.Extends != `Foundation\Controller` {
		t.Errorf("extends = %q", class.Extends)
	}
	if !strings.Contains(class.DocComment, "Quest pages") {
		t.Errorf("doc comment not attached: %q", class.DocComment)
	}

	tests := []struct {
		qualified  string
		kind       SymbolKind
		visibility Visibility
		static     bool
		typ        string
	}{
		{`App\Controller\QuestController::$episode`, SymbolKindField, VisibilityProtected, false, `\App\Model\Episode`},
		{`App\Controller\QuestController::$secret`, SymbolKindField, VisibilityPrivate, false, "string"},
		{`App\Controller\QuestController::$count`, SymbolKindField, VisibilityPublic, true, ""},
		{`App\Controller\QuestController::showAction`, SymbolKindMethod, VisibilityPublic, false, ""},
		{`App\Controller\QuestController::loadQuests`, SymbolKindMethod, VisibilityProtected, false, `array|\App\Model\Quest[]`},
		{`App\Controller\QuestController::__helper`, SymbolKindMethod, VisibilityPrivate, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.qualified, func(t *testing.T) {
			sym := findSymbol(result.Symbols, tt.qualified)
			if sym == nil {
				t.Fatalf("symbol %s not found", tt.qualified)
			}
			if sym.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", sym.Kind, tt.kind)
			}
			if sym.Visibility != tt.visibility {
				t.Errorf("visibility = %v, want %v", sym.Visibility, tt.visibility)
			}
			if sym.Static != tt.static {
				t.Errorf("static = %v, want %v", sym.Static, tt.static)
			}
			if sym.Type != tt.typ {
				t.Errorf("type = %q, want %q", sym.Type, tt.typ)
			}
			if sym.Parent != `App\Controller\QuestController` {
				t.Errorf("parent = %q", sym.Parent)
			}
		})
	}
}

func TestPHPParser_Parse_SetterCalls(t *testing.T) {
	result := parseController(t)
	class := result.File.Class("QuestController")
	if class == nil {
		t.Fatal("class decl not found")
	}
	action := class.Method("showAction")
	if action == nil || action.Body == nil {
		t.Fatal("showAction body not found")
	}
	if len(action.Params) != 1 || action.Params[0].Type != `\App\Model\Episode` {
		t.Fatalf("@param type not applied: %+v", action.Params)
	}

	var keys []string
	var interpolated []bool
	for _, call := range Collect[*CallExpr](action.Body) {
		if call.Name != "setVar" {
			continue
		}
		if call.Style != CallMethod {
			t.Errorf("setVar style = %v", call.Style)
		}
		if len(call.Args) != 2 {
			t.Errorf("setVar args = %d", len(call.Args))
			continue
		}
		lit, ok := call.Args[0].(*StringLit)
		if !ok {
			t.Errorf("first arg is %T", call.Args[0])
			continue
		}
		keys = append(keys, lit.Value)
		if val, ok := call.Args[1].(*StringLit); ok {
			interpolated = append(interpolated, val.Interpolated)
		}
	}
	if got := strings.Join(keys, ","); got != "quest,title,greeting,last" {
		t.Errorf("keys = %s", got)
	}
	if len(interpolated) != 2 || interpolated[0] || !interpolated[1] {
		t.Errorf("interpolation flags = %v", interpolated)
	}
}

func TestPHPParser_Parse_Foreach(t *testing.T) {
	result := parseController(t)
	loops := Collect[*Foreach](result.File.Root)
	if len(loops) != 1 {
		t.Fatalf("expected 1 foreach, got %d", len(loops))
	}
	fe := loops[0]
	if fe.Key == nil || fe.Key.Name != "key" {
		t.Errorf("key = %+v", fe.Key)
	}
	if fe.Value == nil || fe.Value.Name != "quest" {
		t.Errorf("value = %+v", fe.Value)
	}
	call, ok := fe.Iterated.(*CallExpr)
	if !ok || call.Name != "getQuests" {
		t.Errorf("iterated = %#v", fe.Iterated)
	}
	if len(Collect[*CallExpr](fe.Body)) != 1 {
		t.Errorf("expected the setVar call inside the loop body")
	}
}

func TestPHPParser_Parse_StaticCallScope(t *testing.T) {
	result := parseController(t)
	method := result.File.Class("QuestController").Method("loadQuests")
	calls := Collect[*CallExpr](method.Body)
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].Style != CallStatic || calls[0].Scope != `\App\Model\Quest` {
		t.Errorf("static call = %+v", calls[0])
	}
}

func TestPHPParser_Parse_ViewTemplate(t *testing.T) {
	src := `<html><body>
<?php /** @var \App\Model\Quest[] $quests */ ?>
<?php foreach ($quests as $quest): ?>
  <h1><?= $quest->getTitle() ?></h1>
<?php endforeach; ?>
</body></html>`
	result, err := NewPHPParser().Parse(context.Background(), []byte(src), "app/views/quest/index.php")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	loops := Collect[*Foreach](result.File.Root)
	if len(loops) != 1 {
		t.Fatalf("expected 1 foreach, got %d", len(loops))
	}
	if v, ok := loops[0].Iterated.(*VarRef); !ok || v.Name != "quests" {
		t.Errorf("iterated = %#v", loops[0].Iterated)
	}
	if loops[0].Value == nil || loops[0].Value.Name != "quest" {
		t.Errorf("value = %+v", loops[0].Value)
	}

	var docs []string
	for _, c := range Collect[*Comment](result.File.Root) {
		if c.IsDoc() {
			docs = append(docs, c.Text)
		}
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc comment, got %d", len(docs))
	}
	typ, name := DocTag(docs[0], "var")
	if typ != `\App\Model\Quest[]` || name != "quests" {
		t.Errorf("DocTag = %q %q", typ, name)
	}
}

func TestPHPParser_Parse_Literals(t *testing.T) {
	src := `<?php
$a = 1;
$b = 2.5;
$c = true;
$d = null;
$e = [1, 'k' => 2];
$f = 'it\'s';
$g = new \DateTime();
$h = fn() => 1;
$i = $a + $b;`
	result, err := NewPHPParser().Parse(context.Background(), []byte(src), "lit.php")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	assigns := Collect[*Assign](result.File.Root)
	if len(assigns) != 9 {
		t.Fatalf("expected 9 assignments, got %d", len(assigns))
	}
	kinds := make([]NodeKind, len(assigns))
	for i, a := range assigns {
		kinds[i] = a.Value.Kind()
	}
	want := []NodeKind{KindLiteral, KindLiteral, KindLiteral, KindLiteral, KindArray, KindString, KindNew, KindClosure, KindBinary}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("assignment %d: kind %v, want %v", i, kinds[i], want[i])
		}
	}
	if lit := assigns[5].Value.(*StringLit); lit.Value != "it's" {
		t.Errorf("unquoted = %q", lit.Value)
	}
	if arr := assigns[4].Value.(*ArrayLit); len(arr.Elements) != 2 {
		t.Errorf("array elements = %d", len(arr.Elements))
	}
	if ne := assigns[6].Value.(*NewExpr); ne.Class != `\DateTime` {
		t.Errorf("new class = %q", ne.Class)
	}
	if be := assigns[8].Value.(*BinaryExpr); be.Op != "+" {
		t.Errorf("binary op = %q", be.Op)
	}
}

func TestPHPParser_Parse_AnonymousClass(t *testing.T) {
	src := `<?php
namespace App\Controller;

use Foundation\Controller;

class ArenaController extends Controller
{
    public function fightAction()
    {
        $helper = new class($this) extends Controller {
            public function prepare()
            {
                $this->setVar('leaked', true);
            }
        };
    }
}
`
	result, err := NewPHPParser().Parse(context.Background(), []byte(src), "app/Controller/ArenaController.php")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.File.Classes) != 1 {
		t.Fatalf("expected only the named class in File.Classes, got %d", len(result.File.Classes))
	}
	news := Collect[*NewExpr](result.File.Root)
	if len(news) != 1 || news[0].Anonymous == nil {
		t.Fatalf("expected one anonymous class, got %+v", news)
	}
	anon := news[0].Anonymous
	if anon.FQN != "" || anon.Extends != `Foundation\Controller` {
		t.Errorf("anonymous class = %+v", anon)
	}
	if len(news[0].Args) != 1 {
		t.Errorf("constructor args = %d", len(news[0].Args))
	}
	if m := anon.Method("prepare"); m == nil || m.Class != "" {
		t.Fatalf("prepare = %+v", m)
	}
	for _, sym := range Flatten(result.Symbols) {
		if sym.Name == "prepare" {
			t.Errorf("anonymous class method indexed as %s", sym.QualifiedName)
		}
	}
}

func TestPHPParser_ConcurrentParsing(t *testing.T) {
	parser := NewPHPParser()
	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := parser.Parse(context.Background(), []byte(controllerSource), "QuestController.php")
			if err != nil {
				errs <- err
				return
			}
			if findSymbol(result.Symbols, `App\Controller\QuestController`) == nil {
				errs <- errors.New("class symbol missing")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
