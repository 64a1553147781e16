// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package viewbind

import (
	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/convention"
	"github.com/AleutianAI/viewbind/services/viewbind/resolver"
	"github.com/AleutianAI/viewbind/services/viewbind/typeterm"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeNotLoaded      = "NOT_LOADED"
	CodeOutsideRoot    = "OUTSIDE_ROOT"
	CodeRateLimited    = "RATE_LIMITED"
	CodeReloadFailed   = "RELOAD_FAILED"
	CodeInternal       = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ViewRequest names a view file.
type ViewRequest struct {
	View string `json:"view" binding:"required"`
}

// VariableRequest names a variable of a view.
type VariableRequest struct {
	View     string `json:"view" binding:"required"`
	Variable string `json:"variable" binding:"required"`

	// Offset selects one occurrence; omitted means any.
	Offset *int `json:"offset,omitempty" binding:"omitempty,min=0"`
}

// TypesRequest carries a type as its terms.
type TypesRequest struct {
	Types []string `json:"types" binding:"required,min=1"`
}

// DeclarationsRequest points at a binding key in a controller.
type DeclarationsRequest struct {
	Controller string `json:"controller" binding:"required"`
	Offset     *int   `json:"offset" binding:"required,min=0"`
}

// ReloadRequest names a file to re-parse.
type ReloadRequest struct {
	Path string `json:"path" binding:"required"`
}

// HealthResponse reports readiness.
type HealthResponse struct {
	Status string `json:"status"`
	Loaded bool   `json:"loaded"`
	Files  int    `json:"files"`
}

// ControllerResponse is the controller action populating a view.
type ControllerResponse struct {
	View       string                         `json:"view"`
	Found      bool                           `json:"found"`
	Controller *convention.ControllerLocation `json:"controller,omitempty"`
	Exists     bool                           `json:"exists"`
}

// BindingsResponse lists a view's bound variables.
type BindingsResponse struct {
	View     string                 `json:"view"`
	Bindings []resolver.BindingInfo `json:"bindings"`
}

// TypeResponse is an inferred or extracted type.
type TypeResponse struct {
	Types typeterm.Descriptor `json:"types"`
	Known bool                `json:"known"`
}

// MemberInfo describes a field or method.
type MemberInfo struct {
	Name       string `json:"name"`
	Class      string `json:"class"`
	Type       string `json:"type,omitempty"`
	Visibility string `json:"visibility"`
	Static     bool   `json:"static,omitempty"`
	File       string `json:"file"`
	Line       int    `json:"line"`
}

// MembersResponse lists the members of a type.
type MembersResponse struct {
	Fields  []MemberInfo `json:"fields"`
	Methods []MemberInfo `json:"methods"`
}

// OccurrencesResponse lists located names.
type OccurrencesResponse struct {
	Occurrences []resolver.Occurrence `json:"occurrences"`
}

// DefinitionResponse is the binding key defining a view variable.
type DefinitionResponse struct {
	Found      bool                 `json:"found"`
	Definition *resolver.Occurrence `json:"definition,omitempty"`
}

// VariantsResponse lists the binding keys available to a view.
type VariantsResponse struct {
	View     string   `json:"view"`
	Variants []string `json:"variants"`
}

// ReloadResponse reports a reloaded file.
type ReloadResponse struct {
	Path string `json:"path"`
}

// MemberInfoFromSymbol converts a member symbol for output.
func MemberInfoFromSymbol(sym *ast.Symbol) MemberInfo {
	return MemberInfo{
		Name:       sym.Name,
		Class:      sym.Parent,
		Type:       typeterm.Parse(sym.Type).Clean().String(),
		Visibility: sym.Visibility.String(),
		Static:     sym.Static,
		File:       sym.FilePath,
		Line:       sym.StartLine,
	}
}

func memberInfos(symbols []*ast.Symbol) []MemberInfo {
	out := make([]MemberInfo, 0, len(symbols))
	for _, sym := range symbols {
		out = append(out, MemberInfoFromSymbol(sym))
	}
	return out
}
