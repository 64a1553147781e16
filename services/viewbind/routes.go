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
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RegisterRoutes registers the /viewbind endpoints on rg.
//
// Description:
//
//	The router group should already carry any shared middleware.
//
// Endpoints:
//
//	GET  /v1/viewbind/health       - Readiness and file count
//	POST /v1/viewbind/controller   - Controller file and action of a view
//	POST /v1/viewbind/bindings     - Bound variables of a view with types
//	POST /v1/viewbind/type         - Inferred type of a view variable
//	POST /v1/viewbind/element-type - Element type of a collection type
//	POST /v1/viewbind/members      - Fields and methods of a type
//	POST /v1/viewbind/definition   - Binding key defining a view variable
//	POST /v1/viewbind/declarations - View variables a binding key declares
//	POST /v1/viewbind/usages       - Occurrences of a view variable
//	POST /v1/viewbind/variants     - Binding keys available to a view
//	POST /v1/viewbind/reload       - Re-parse one file
//
// Example:
//
//	handlers := viewbind.NewHandlers(viewbind.NewService(ws))
//	v1 := router.Group("/v1")
//	viewbind.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	vb := rg.Group("/viewbind")
	{
		vb.GET("/health", h.HandleHealth)

		vb.POST("/controller", h.HandleController)
		vb.POST("/bindings", h.HandleBindings)
		vb.POST("/type", h.HandleType)
		vb.POST("/element-type", h.HandleElementType)
		vb.POST("/members", h.HandleMembers)

		vb.POST("/definition", h.HandleDefinition)
		vb.POST("/declarations", h.HandleDeclarations)
		vb.POST("/usages", h.HandleUsages)
		vb.POST("/variants", h.HandleVariants)

		vb.POST("/reload", h.HandleReload)
	}
}

// NewRouter builds a gin engine with the standard middleware and the
// query routes under /v1.
func NewRouter(h *Handlers, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if opts.ServiceName != "" {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	router.Use(RequestID(), RequestLogger(h.logger), Metrics(), RateLimit(opts.RequestsPerSecond, opts.Burst))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, h)
	return router
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// ServiceName enables otelgin tracing under that name when set.
	ServiceName string

	// RequestsPerSecond and Burst configure rate limiting. Zero disables it.
	RequestsPerSecond float64
	Burst             int
}
