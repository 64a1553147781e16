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

import "testing"

func TestNameScope_ResolveType(t *testing.T) {
	scope := &nameScope{
		namespace: `App\Controller`,
		uses: map[string]string{
			"Quest": `App\Model\Quest`,
			"Model": `App\Model`,
		},
		class:  `App\Controller\QuestController`,
		parent: `Foundation\Controller`,
	}

	tests := []struct {
		in   string
		want string
	}{
		{"Quest", `\App\Model\Quest`},
		{`\Other\Quest`, `\Other\Quest`},
		{`Model\Episode`, `\App\Model\Episode`},
		{"Helper", `\App\Controller\Helper`},
		{"INT", "int"},
		{"?Quest", `\App\Model\Quest|null`},
		{"Quest[]|null", `\App\Model\Quest[]|null`},
		{"array<int, Quest>", `array<int, \App\Model\Quest>`},
		{"self", `\App\Controller\QuestController`},
		{"static[]", `\App\Controller\QuestController[]`},
		{"parent", `\Foundation\Controller`},
		{"Quest|Quest", `\App\Model\Quest`},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := scope.resolveType(tt.in); got != tt.want {
				t.Errorf("resolveType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDocTag(t *testing.T) {
	tests := []struct {
		doc      string
		tag      string
		wantType string
		wantVar  string
	}{
		{"/** @var Quest[] $quests */", "var", "Quest[]", "quests"},
		{"/** @return array<int, Quest> */", "return", "array<int, Quest>", ""},
		{"/**\n * @variable x\n * @var int\n */", "var", "int", ""},
		{"/** nothing here */", "return", "", ""},
	}
	for _, tt := range tests {
		typ, name := DocTag(tt.doc, tt.tag)
		if typ != tt.wantType || name != tt.wantVar {
			t.Errorf("DocTag(%q, %q) = %q, %q; want %q, %q", tt.doc, tt.tag, typ, name, tt.wantType, tt.wantVar)
		}
	}
}

func TestDocTags_Multiple(t *testing.T) {
	doc := "/**\n * @param Episode $episode\n * @param int $page\n */"
	tags := DocTags(doc, "param")
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(tags))
	}
	if tags[0] != [2]string{"Episode", "episode"} || tags[1] != [2]string{"int", "page"} {
		t.Errorf("tags = %v", tags)
	}
}

func TestEnclosingAndPathTo(t *testing.T) {
	result := parseController(t)
	method := result.File.Class("QuestController").Method("showAction")
	offset := method.Body.Span().Start + 5

	got, ok := Enclosing[*MethodDecl](result.File.Root, offset)
	if !ok || got != method {
		t.Fatalf("Enclosing returned %v, %v", got, ok)
	}
	if _, ok := Enclosing[*Foreach](result.File.Root, offset); ok {
		t.Error("offset at body start must not be inside the foreach")
	}
	path := PathTo(result.File.Root, offset)
	if len(path) < 3 || path[0] != Node(result.File.Root) {
		t.Fatalf("unexpected path %v", path)
	}
}
