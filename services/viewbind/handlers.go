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
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/viewbind/services/viewbind/convention"
	"github.com/AleutianAI/viewbind/services/viewbind/resolver"
	"github.com/AleutianAI/viewbind/services/viewbind/typeterm"
	"github.com/AleutianAI/viewbind/services/viewbind/workspace"
	"github.com/gin-gonic/gin"
)

// Handlers serves the query API.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates handlers over svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc, logger: svc.logger}
}

// HandleHealth handles GET /v1/viewbind/health.
//
// Response:
//
//	200 OK: HealthResponse, Loaded false before the first load
func (h *Handlers) HandleHealth(c *gin.Context) {
	snap, err := h.svc.Workspace().Snapshot()
	if err != nil {
		c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Loaded: true, Files: len(snap.Paths())})
}

// HandleController handles POST /v1/viewbind/controller.
//
// Request Body: ViewRequest
//
// Response:
//
//	200 OK: ControllerResponse; Found is false for paths outside the
//	view convention
//	400 Bad Request: Missing view or path outside the root
//	503 Service Unavailable: Workspace not loaded
func (h *Handlers) HandleController(c *gin.Context) {
	var req ViewRequest
	q, ok := h.begin(c, &req)
	if !ok {
		return
	}
	view, ok := q.view(c, req.View)
	if !ok {
		return
	}
	resp := ControllerResponse{View: view.Path}
	if loc, found := q.r.ResolveController(view); found {
		resp.Found = true
		resp.Controller = &loc
		resp.Exists = q.snap.Exists(loc.Path)
	}
	c.JSON(http.StatusOK, resp)
}

// HandleBindings handles POST /v1/viewbind/bindings.
//
// Request Body: ViewRequest
//
// Response:
//
//	200 OK: BindingsResponse sorted by name, types "mixed" when unknown
func (h *Handlers) HandleBindings(c *gin.Context) {
	var req ViewRequest
	q, ok := h.begin(c, &req)
	if !ok {
		return
	}
	view, ok := q.view(c, req.View)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, BindingsResponse{
		View:     view.Path,
		Bindings: q.r.DescribeBindings(c.Request.Context(), view),
	})
}

// HandleType handles POST /v1/viewbind/type.
//
// Request Body: VariableRequest
//
// Response:
//
//	200 OK: TypeResponse, Known false when no strategy resolved a type
func (h *Handlers) HandleType(c *gin.Context) {
	var req VariableRequest
	q, ok := h.begin(c, &req)
	if !ok {
		return
	}
	view, ok := q.view(c, req.View)
	if !ok {
		return
	}
	offset := resolver.AnyOffset
	if req.Offset != nil {
		offset = *req.Offset
	}
	t := q.r.InferTypeAt(c.Request.Context(), view, req.Variable, offset)
	c.JSON(http.StatusOK, TypeResponse{Types: t, Known: !t.IsEmpty()})
}

// HandleElementType handles POST /v1/viewbind/element-type.
//
// Request Body: TypesRequest
//
// Response:
//
//	200 OK: TypeResponse
func (h *Handlers) HandleElementType(c *gin.Context) {
	var req TypesRequest
	q, ok := h.begin(c, &req)
	if !ok {
		return
	}
	t := q.r.ElementType(c.Request.Context(), typeterm.New(req.Types...))
	c.JSON(http.StatusOK, TypeResponse{Types: t, Known: !t.IsEmpty()})
}

// HandleMembers handles POST /v1/viewbind/members.
//
// Request Body: TypesRequest
//
// Response:
//
//	200 OK: MembersResponse with non-private fields and methods
func (h *Handlers) HandleMembers(c *gin.Context) {
	var req TypesRequest
	q, ok := h.begin(c, &req)
	if !ok {
		return
	}
	members := q.r.ListMembers(c.Request.Context(), typeterm.New(req.Types...))
	c.JSON(http.StatusOK, MembersResponse{
		Fields:  memberInfos(members.Fields),
		Methods: memberInfos(members.Methods),
	})
}

// HandleDefinition handles POST /v1/viewbind/definition.
func (h *Handlers) HandleDefinition(c *gin.Context) {
	var req VariableRequest
	q, ok := h.begin(c, &req)
	if !ok {
		return
	}
	view, ok := q.view(c, req.View)
	if !ok {
		return
	}
	resp := DefinitionResponse{}
	if def, found := q.r.Definition(c.Request.Context(), view, req.Variable); found {
		resp.Found = true
		resp.Definition = &def
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDeclarations handles POST /v1/viewbind/declarations.
//
// Request Body: DeclarationsRequest; offset is a byte offset inside the
// binding key literal.
func (h *Handlers) HandleDeclarations(c *gin.Context) {
	var req DeclarationsRequest
	q, ok := h.begin(c, &req)
	if !ok {
		return
	}
	controller, ok := q.rel(c, req.Controller)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, OccurrencesResponse{
		Occurrences: nonNil(q.r.Declarations(c.Request.Context(), controller, *req.Offset)),
	})
}

// HandleUsages handles POST /v1/viewbind/usages.
func (h *Handlers) HandleUsages(c *gin.Context) {
	var req VariableRequest
	q, ok := h.begin(c, &req)
	if !ok {
		return
	}
	view, ok := q.view(c, req.View)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, OccurrencesResponse{
		Occurrences: nonNil(q.r.Usages(c.Request.Context(), view, req.Variable)),
	})
}

// HandleVariants handles POST /v1/viewbind/variants.
func (h *Handlers) HandleVariants(c *gin.Context) {
	var req ViewRequest
	q, ok := h.begin(c, &req)
	if !ok {
		return
	}
	view, ok := q.view(c, req.View)
	if !ok {
		return
	}
	variants := q.r.Variants(c.Request.Context(), view)
	if variants == nil {
		variants = []string{}
	}
	c.JSON(http.StatusOK, VariantsResponse{View: view.Path, Variants: variants})
}

// HandleReload handles POST /v1/viewbind/reload.
//
// Response:
//
//	200 OK: ReloadResponse
//	400 Bad Request: Path outside the root
//	500 Internal Server Error: File could not be read or parsed
//	503 Service Unavailable: Workspace not loaded
func (h *Handlers) HandleReload(c *gin.Context) {
	logger := requestLogger(c, h.logger)
	var req ReloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}
	rel, err := h.svc.Reload(c.Request.Context(), req.Path)
	if err != nil {
		if !writeWorkspaceError(c, err) {
			logger.Warn("reload failed",
				slog.String("path", req.Path),
				slog.String("error", err.Error()))
			writeError(c, http.StatusInternalServerError, CodeReloadFailed, err)
		}
		return
	}
	c.JSON(http.StatusOK, ReloadResponse{Path: rel})
}

// query is the per-request state: one resolver over one snapshot.
type query struct {
	h    *Handlers
	r    *resolver.Resolver
	snap *workspace.Snapshot
}

// begin binds the JSON body into req and opens a query. On failure the
// error response has been written.
func (h *Handlers) begin(c *gin.Context, req any) (*query, bool) {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return nil, false
	}
	r, snap, err := h.svc.Query()
	if err != nil {
		if !writeWorkspaceError(c, err) {
			writeError(c, http.StatusInternalServerError, CodeInternal, err)
		}
		return nil, false
	}
	return &query{h: h, r: r, snap: snap}, true
}

func (q *query) rel(c *gin.Context, p string) (string, bool) {
	rel, err := q.h.svc.Workspace().Rel(p)
	if err != nil {
		writeWorkspaceError(c, err)
		return "", false
	}
	return rel, true
}

func (q *query) view(c *gin.Context, p string) (convention.ViewLocation, bool) {
	rel, ok := q.rel(c, p)
	if !ok {
		return convention.ViewLocation{}, false
	}
	return convention.NewViewLocation(rel), true
}

// writeWorkspaceError maps workspace sentinel errors to responses. It
// reports whether err was one of them.
func writeWorkspaceError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, workspace.ErrNotLoaded):
		writeError(c, http.StatusServiceUnavailable, CodeNotLoaded, err)
	case errors.Is(err, workspace.ErrOutsideRoot):
		writeError(c, http.StatusBadRequest, CodeOutsideRoot, err)
	default:
		return false
	}
	return true
}

func writeError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func nonNil(occ []resolver.Occurrence) []resolver.Occurrence {
	if occ == nil {
		return []resolver.Occurrence{}
	}
	return occ
}
