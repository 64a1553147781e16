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
	"encoding/json"
	"testing"
)

func TestParse_SplitsTopLevelOnly(t *testing.T) {
	d := Parse(`array<int|string, \App\Model\Quest>|null| int `)
	want := []string{`array<int|string, \App\Model\Quest>`, "null", "int"}
	got := d.Terms()
	if len(got) != len(want) {
		t.Fatalf("Terms() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("term %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDescriptor_SetSemantics(t *testing.T) {
	a := New("int", "string", "int")
	if a.Len() != 2 {
		t.Fatalf("duplicates must collapse, got %v", a.Terms())
	}
	b := New("string", "int")
	if !a.Equal(b) {
		t.Error("equality must ignore order")
	}
	u := a.Union(New("float"))
	if u.String() != "int|string|float" {
		t.Errorf("Union = %q", u.String())
	}
	if a.Len() != 2 {
		t.Error("Union must not mutate the receiver")
	}
	if !Unknown.IsEmpty() || Unknown.String() != "" {
		t.Error("Unknown must be empty")
	}
	if Unknown.Equal(New("void")) {
		t.Error("unknown is distinct from void")
	}
}

func TestDescriptor_AllPrimitive(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		want bool
	}{
		{"empty", Unknown, false},
		{"scalars", New("int", "float"), true},
		{"mixed with class", New("int", `\App\Model\Quest`), false},
		{"array alone", New("array"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.AllPrimitive(); got != tt.want {
				t.Errorf("AllPrimitive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDescriptor_Clean(t *testing.T) {
	d := New(`\App\Model\Quest`, `?\App\Model\Episode`, "#M#C\\App\\Model\\Episode.getQuests", "not a type", `\App\Model\Quest[]`)
	got := d.Clean()
	want := New(`App\Model\Quest`, `App\Model\Episode`, "null", "#M#C\\App\\Model\\Episode.getQuests", `App\Model\Quest[]`)
	if !got.Equal(want) {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestDescriptor_JSON(t *testing.T) {
	data, err := json.Marshal(Unknown)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("unknown marshals as %s", data)
	}

	var d Descriptor
	if err := json.Unmarshal([]byte(`["int","int","App\\Model\\Quest"]`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.String() != `int|App\Model\Quest` {
		t.Errorf("unmarshal = %q", d.String())
	}
}

func TestGenericElement(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"array<Quest>", "Quest", true},
		{"list<Quest>", "Quest", true},
		{"iterable<Quest>", "Quest", true},
		{"array<int, Quest>", "Quest", true},
		{"array<string, array<int, Quest>>", "array<int, Quest>", true},
		{"Collection<Quest>", "", false},
		{"array", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := GenericElement(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("GenericElement(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMethodRef(t *testing.T) {
	enc := FormatMethodRef(`\App\Model\Episode`, "getQuests")
	if enc != "#M#C\\App\\Model\\Episode.getQuests" {
		t.Fatalf("FormatMethodRef = %q", enc)
	}
	class, method, ok := MethodRef(enc)
	if !ok || class != `App\Model\Episode` || method != "getQuests" {
		t.Errorf("MethodRef = %q, %q, %v", class, method, ok)
	}
	for _, bad := range []string{"#M#C", "#M#CEpisode.", "Episode.getQuests", "#M#C.getQuests"} {
		if _, _, ok := MethodRef(bad); ok {
			t.Errorf("MethodRef(%q) should fail", bad)
		}
	}
}

func TestClosure(t *testing.T) {
	enc := FormatClosure(`\App\Model\Quest`)
	inner, ok := ClosureInner(enc)
	if !ok || inner != `\App\Model\Quest` {
		t.Errorf("ClosureInner(%q) = %q, %v", enc, inner, ok)
	}
}

func TestIsClassName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Quest", true},
		{`\App\Model\Quest`, true},
		{"int", false},
		{"self", false},
		{"Quest[]", false},
		{"array<Quest>", false},
		{"#M#C\\A.b", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsClassName(tt.in); got != tt.want {
			t.Errorf("IsClassName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if !IsQualified(`App\Model\Quest`) || IsQualified("Quest") {
		t.Error("IsQualified mismatch")
	}
}

func TestShortName(t *testing.T) {
	if got := ShortName(`\App\Model\Quest`); got != "Quest" {
		t.Errorf("ShortName = %q", got)
	}
	if got := ShortName("Quest"); got != "Quest" {
		t.Errorf("ShortName = %q", got)
	}
}
