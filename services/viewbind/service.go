// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package viewbind serves the view binding queries over HTTP.
package viewbind

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/viewbind/services/viewbind/config"
	"github.com/AleutianAI/viewbind/services/viewbind/convention"
	"github.com/AleutianAI/viewbind/services/viewbind/resolver"
	"github.com/AleutianAI/viewbind/services/viewbind/typeinfo"
	"github.com/AleutianAI/viewbind/services/viewbind/workspace"
)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithResolverOptions passes options to every resolver the service
// builds.
func WithResolverOptions(opts ...resolver.Option) ServiceOption {
	return func(s *Service) {
		s.resolverOpts = append(s.resolverOpts, opts...)
	}
}

// WithOracleOptions passes options to every type oracle the service
// builds.
func WithOracleOptions(opts ...typeinfo.Option) ServiceOption {
	return func(s *Service) {
		s.oracleOpts = append(s.oracleOpts, opts...)
	}
}

// Service answers queries against the latest snapshot of a workspace.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	ws           *workspace.Workspace
	resolverOpts []resolver.Option
	oracleOpts   []typeinfo.Option
	logger       *slog.Logger
}

// NewService creates a Service over ws.
func NewService(ws *workspace.Workspace, opts ...ServiceOption) *Service {
	s := &Service{
		ws:     ws,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolverOpts = append([]resolver.Option{resolver.WithLogger(s.logger)}, s.resolverOpts...)
	s.oracleOpts = append([]typeinfo.Option{typeinfo.WithLogger(s.logger)}, s.oracleOpts...)
	return s
}

// ConfigOptions translates a configuration into service options.
func ConfigOptions(cfg *config.Config) []ServiceOption {
	mapper := convention.NewMapper(
		convention.WithViewMarker(cfg.ViewRootMarker),
		convention.WithControllerMarker(cfg.ControllerRootMarker),
		convention.WithControllerSuffix(cfg.ControllerSuffix),
		convention.WithActionSuffix(cfg.ActionSuffix),
		convention.WithDefaultAction(cfg.DefaultAction),
		convention.WithViewExtensions(cfg.Extensions...),
	)
	return []ServiceOption{
		WithResolverOptions(
			resolver.WithMapper(mapper),
			resolver.WithSetterName(cfg.SetterName),
			resolver.WithMagicPrefix(cfg.MagicMethodPrefix),
			resolver.WithMaxDepth(cfg.MaxInferenceDepth),
		),
		WithOracleOptions(typeinfo.WithMaxDepth(cfg.MaxInferenceDepth)),
	}
}

// Workspace returns the underlying workspace.
func (s *Service) Workspace() *workspace.Workspace {
	return s.ws
}

// Query returns a resolver over a fresh snapshot. Every call sees one
// consistent state of the workspace.
func (s *Service) Query() (*resolver.Resolver, *workspace.Snapshot, error) {
	snap, err := s.ws.Snapshot()
	if err != nil {
		return nil, nil, err
	}
	oracle := typeinfo.New(snap, s.oracleOpts...)
	return resolver.New(snap, oracle, snap, snap, s.resolverOpts...), snap, nil
}

// Reload re-parses one file.
func (s *Service) Reload(ctx context.Context, p string) (string, error) {
	rel, err := s.ws.Rel(p)
	if err != nil {
		return "", err
	}
	return rel, s.ws.Reload(ctx, rel)
}
