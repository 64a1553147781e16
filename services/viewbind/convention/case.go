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

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/viant/tagly/format/text"
)

// UpperFirst upper-cases the first rune of s.
func UpperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// LowerFirst lower-cases the first rune of s.
func LowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// KebabToPascal converts "quest-battle" to "QuestBattle". Underscores
// separate words too. A segment without separators only has its first
// letter upper-cased, so "QuestBattle" and "questBattle" both map to
// "QuestBattle".
func KebabToPascal(s string) string {
	if !hasWordSeparator(s) {
		return UpperFirst(s)
	}
	return fromDashed(s, text.CaseFormatUpperCamel)
}

// KebabToCamel converts "confirm-store" to "confirmStore".
func KebabToCamel(s string) string {
	if !hasWordSeparator(s) {
		return LowerFirst(s)
	}
	return fromDashed(s, text.CaseFormatLowerCamel)
}

// PascalToKebab converts "QuestBattle" to "quest-battle". Words split
// where the letter case changes, and "_" becomes "-".
func PascalToKebab(s string) string {
	if s == "" {
		return ""
	}
	return text.CaseFormatUpperCamel.Format(s, text.CaseFormatLowerDash)
}

// fromDashed re-cases a separated name word by word. Words split on any
// separator or case change whatever the source format, so the source is
// always read as lower-dash; tagly has no formatter slot for upper-dash.
func fromDashed(s string, to text.CaseFormat) string {
	return text.CaseFormatLowerDash.Format(strings.Trim(s, "-_"), to)
}

func hasWordSeparator(s string) bool {
	return strings.ContainsAny(s, "-_")
}
