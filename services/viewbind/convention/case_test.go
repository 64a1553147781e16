// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package convention

import "testing"

func TestCaseConversions(t *testing.T) {
	tests := []struct {
		in     string
		pascal string
		camel  string
		kebab  string
	}{
		{"quest", "Quest", "quest", "quest"},
		{"quest-battle", "QuestBattle", "questBattle", "quest-battle"},
		{"QuestBattle", "QuestBattle", "questBattle", "quest-battle"},
		{"confirm_store", "ConfirmStore", "confirmStore", "confirm-store"},
		{"confirm-store", "ConfirmStore", "confirmStore", "confirm-store"},
		{"-quest-battle-", "QuestBattle", "questBattle", "-quest-battle-"},
		{"level2-boss", "Level2Boss", "level2Boss", "level2-boss"},
		{"", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := KebabToPascal(tt.in); got != tt.pascal {
				t.Errorf("KebabToPascal(%q) = %q, want %q", tt.in, got, tt.pascal)
			}
			if got := KebabToCamel(tt.in); got != tt.camel {
				t.Errorf("KebabToCamel(%q) = %q, want %q", tt.in, got, tt.camel)
			}
			if got := PascalToKebab(tt.in); got != tt.kebab {
				t.Errorf("PascalToKebab(%q) = %q, want %q", tt.in, got, tt.kebab)
			}
		})
	}
}

// A name without separators keeps its inner capitals; only hyphenated
// names are re-cased word by word.
func TestKebabToPascal_KeepsInnerCapitals(t *testing.T) {
	tests := map[string]string{
		"HTMLView":     "HTMLView",
		"questBattle":  "QuestBattle",
		"quest-Battle": "QuestBattle",
		"Quest-Battle": "QuestBattle",
		"QUEST-BATTLE": "QuestBattle",
	}
	for in, want := range tests {
		if got := KebabToPascal(in); got != want {
			t.Errorf("KebabToPascal(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUpperLowerFirst(t *testing.T) {
	if UpperFirst("élan") != "Élan" {
		t.Errorf("UpperFirst multibyte = %q", UpperFirst("élan"))
	}
	if LowerFirst("Quest") != "quest" || LowerFirst("") != "" {
		t.Error("LowerFirst mismatch")
	}
}
