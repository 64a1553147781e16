// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package typeterm implements type descriptors: finite sets of textual type
// terms equivalent to a PHP union type.
//
// Terms follow the encodings produced by the type oracle:
//
//	int, string, array, ...     primitives (lowercase)
//	\App\Model\Quest            class names (leading "\" until cleaned)
//	\App\Model\Quest[]          array of T
//	array<Quest>, list<Quest>   generic collections
//	#M#C\App\Model\Episode.all  lazy reference to a method's return type
//	#π(\App\Model\Quest)        closure-bound type
package typeterm

import (
	"encoding/json"
	"strings"
)

// Descriptor is an immutable set of type terms. The empty descriptor means
// "unknown type", which is distinct from an explicit "void" or "null" term.
//
// Terms keep first-insertion order so output is deterministic; equality is
// set equality.
type Descriptor struct {
	terms []string
}

// Unknown is the empty descriptor.
var Unknown = Descriptor{}

// New builds a descriptor from terms, trimming whitespace and dropping
// empty strings and duplicates.
func New(terms ...string) Descriptor {
	var d Descriptor
	for _, t := range terms {
		d = d.with(t)
	}
	return d
}

// Parse splits a union string ("A|B[]|array<int, C>") into a descriptor.
// Separators nested inside <> or () are not split.
func Parse(s string) Descriptor {
	return New(SplitTopLevel(s, '|')...)
}

func (d Descriptor) with(term string) Descriptor {
	term = strings.TrimSpace(term)
	if term == "" || d.Contains(term) {
		return d
	}
	terms := make([]string, len(d.terms), len(d.terms)+1)
	copy(terms, d.terms)
	return Descriptor{terms: append(terms, term)}
}

// Terms returns a copy of the terms in insertion order.
func (d Descriptor) Terms() []string {
	if len(d.terms) == 0 {
		return nil
	}
	out := make([]string, len(d.terms))
	copy(out, d.terms)
	return out
}

// IsEmpty reports whether the type is unknown.
func (d Descriptor) IsEmpty() bool { return len(d.terms) == 0 }

// Len returns the number of terms.
func (d Descriptor) Len() int { return len(d.terms) }

// Contains reports whether term is a member.
func (d Descriptor) Contains(term string) bool {
	for _, t := range d.terms {
		if t == term {
			return true
		}
	}
	return false
}

// Union returns the set union, d's terms first.
func (d Descriptor) Union(o Descriptor) Descriptor {
	out := d
	for _, t := range o.terms {
		out = out.with(t)
	}
	return out
}

// Equal reports set equality.
func (d Descriptor) Equal(o Descriptor) bool {
	if len(d.terms) != len(o.terms) {
		return false
	}
	for _, t := range d.terms {
		if !o.Contains(t) {
			return false
		}
	}
	return true
}

// AllPrimitive reports whether the descriptor is non-empty and every term is
// a primitive.
func (d Descriptor) AllPrimitive() bool {
	if d.IsEmpty() {
		return false
	}
	for _, t := range d.terms {
		if !IsPrimitive(t) {
			return false
		}
	}
	return true
}

// Map applies f to every term and collects the non-empty results.
func (d Descriptor) Map(f func(string) string) Descriptor {
	var out Descriptor
	for _, t := range d.terms {
		out = out.with(f(t))
	}
	return out
}

// Clean strips leading namespace separators, expands nullable shorthand
// and drops terms that are not well formed. Encoded terms ("#...") are kept
// as is; resolving them needs the symbol index.
func (d Descriptor) Clean() Descriptor {
	var out Descriptor
	for _, t := range d.terms {
		if strings.HasPrefix(t, "?") {
			out = out.with(StripQualifier(t[1:])).with("null")
			continue
		}
		if IsEncoded(t) {
			out = out.with(t)
			continue
		}
		t = StripQualifier(t)
		if IsWellFormed(t) {
			out = out.with(t)
		}
	}
	return out
}

// String joins the terms with "|". The empty descriptor formats as "".
func (d Descriptor) String() string {
	return strings.Join(d.terms, "|")
}

// MarshalJSON encodes the descriptor as an array of terms.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	if d.terms == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(d.terms)
}

// UnmarshalJSON decodes an array of terms.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var terms []string
	if err := json.Unmarshal(data, &terms); err != nil {
		return err
	}
	*d = New(terms...)
	return nil
}
