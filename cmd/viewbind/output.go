// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AleutianAI/viewbind/services/viewbind"
	"github.com/AleutianAI/viewbind/services/viewbind/resolver"
	"github.com/AleutianAI/viewbind/services/viewbind/typeterm"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// printer renders command results as styled text or JSON. Styling is only
// applied when the output is a terminal.
type printer struct {
	w        io.Writer
	json     bool
	labelSt  lipgloss.Style
	headSt   lipgloss.Style
	mutedSt  lipgloss.Style
	accentSt lipgloss.Style
}

func newPrinter(w io.Writer, jsonOutput bool) *printer {
	r := lipgloss.NewRenderer(w)
	p := &printer{
		w:        w,
		json:     jsonOutput,
		labelSt:  r.NewStyle().Width(14),
		headSt:   r.NewStyle(),
		mutedSt:  r.NewStyle(),
		accentSt: r.NewStyle(),
	}
	if isTerminal(w) {
		p.labelSt = p.labelSt.Foreground(lipgloss.Color("12"))
		p.headSt = p.headSt.Bold(true).Underline(true)
		p.mutedSt = p.mutedSt.Foreground(lipgloss.Color("8"))
		p.accentSt = p.accentSt.Foreground(lipgloss.Color("10"))
	}
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// emit writes v as indented JSON in JSON mode, otherwise runs text.
func (p *printer) emit(v any, text func(*printer)) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(p)
	return nil
}

func (p *printer) emitType(t typeterm.Descriptor) error {
	resp := viewbind.TypeResponse{Types: t, Known: !t.IsEmpty()}
	return p.emit(resp, func(p *printer) {
		if !resp.Known {
			p.muted("unknown")
			return
		}
		p.line(p.accentSt.Render(t.String()))
	})
}

func (p *printer) emitOccurrences(occ []resolver.Occurrence) error {
	if occ == nil {
		occ = []resolver.Occurrence{}
	}
	return p.emit(viewbind.OccurrencesResponse{Occurrences: occ}, func(p *printer) {
		if len(occ) == 0 {
			p.muted("no occurrences")
			return
		}
		for _, o := range occ {
			p.occurrence(o)
		}
	})
}

func (p *printer) line(s string) {
	fmt.Fprintln(p.w, s)
}

func (p *printer) field(label, value string) {
	fmt.Fprintln(p.w, p.labelSt.Render(label)+" "+value)
}

func (p *printer) heading(s string) {
	fmt.Fprintln(p.w, p.headSt.Render(s))
}

func (p *printer) muted(format string, args ...any) {
	fmt.Fprintln(p.w, p.mutedSt.Render(fmt.Sprintf(format, args...)))
}

// occurrence prints "path:line:col  $name  (strategy)".
func (p *printer) occurrence(o resolver.Occurrence) {
	loc := fmt.Sprintf("%s:%d:%d", o.Path, o.Span.StartLine, o.Span.StartCol)
	fmt.Fprintf(p.w, "%s  %s  %s\n", loc, o.Name, p.mutedSt.Render("("+string(o.Strategy)+")"))
}

func (p *printer) member(m viewbind.MemberInfo, name string) {
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(p.labelSt.Render(m.Visibility))
	if m.Static {
		b.WriteString("static ")
	}
	b.WriteString(name)
	if m.Type != "" {
		b.WriteString(": ")
		b.WriteString(p.accentSt.Render(m.Type))
	}
	b.WriteString(p.mutedSt.Render(fmt.Sprintf("  %s:%d", m.File, m.Line)))
	fmt.Fprintln(p.w, b.String())
}
