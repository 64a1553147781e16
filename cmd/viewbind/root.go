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
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"strings"

	"github.com/AleutianAI/viewbind/services/viewbind"
	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/config"
	"github.com/AleutianAI/viewbind/services/viewbind/convention"
	"github.com/AleutianAI/viewbind/services/viewbind/resolver"
	"github.com/AleutianAI/viewbind/services/viewbind/workspace"
	"github.com/spf13/cobra"
)

// options holds the persistent flag values shared by every subcommand.
type options struct {
	root       string
	configPath string
	logLevel   string
	logFormat  string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "viewbind",
		Short: "Resolve PHP view variables to their controller bindings",
		Long: `viewbind maps PHP view templates to the controller actions that render
them, lists the variables those actions bind, and infers the type of any
variable used in a view.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.root, "root", ".", "project root (local path or storage URL)")
	flags.StringVar(&opts.configPath, "config", "", "YAML config overriding the built-in defaults")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print results as JSON")

	cmd.AddCommand(
		newControllerCmd(opts),
		newBindingsCmd(opts),
		newTypeCmd(opts),
		newElementTypeCmd(opts),
		newMembersCmd(opts),
		newDefinitionCmd(opts),
		newDeclarationsCmd(opts),
		newUsagesCmd(opts),
		newVariantsCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// app is a configured, loaded project.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	ws     *workspace.Workspace
	svc    *viewbind.Service
	out    *printer
}

// open builds the workspace described by the flags and loads it.
func (o *options) open(ctx context.Context, cmd *cobra.Command) (*app, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), o.logLevel, o.logFormat)
	if err != nil {
		return nil, err
	}

	var cfg *config.Config
	if o.configPath != "" {
		cfg, err = config.LoadFile(ctx, o.configPath)
	} else {
		cfg, err = config.GetConfig(ctx)
	}
	if err != nil {
		return nil, err
	}

	parser := ast.NewPHPParser(
		ast.WithPHPMaxFileSize(cfg.MaxFileSize),
		ast.WithPHPLogger(logger),
	)
	ws, err := workspace.New(o.root,
		workspace.WithLogger(logger),
		workspace.WithParser(parser),
		workspace.WithExtensions(cfg.Extensions...),
		workspace.WithExcludeDirs(cfg.ExcludeDirs...),
		workspace.WithConcurrency(cfg.ParseConcurrency),
	)
	if err != nil {
		return nil, err
	}
	if _, err := ws.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading %s: %w", o.root, err)
	}

	svcOpts := append(viewbind.ConfigOptions(cfg), viewbind.WithLogger(logger))
	return &app{
		cfg:    cfg,
		logger: logger,
		ws:     ws,
		svc:    viewbind.NewService(ws, svcOpts...),
		out:    newPrinter(cmd.OutOrStdout(), o.jsonOutput),
	}, nil
}

// query opens the project and returns a resolver over its current state.
func (o *options) query(cmd *cobra.Command) (*app, *resolver.Resolver, error) {
	a, err := o.open(cmd.Context(), cmd)
	if err != nil {
		return nil, nil, err
	}
	r, _, err := a.svc.Query()
	if err != nil {
		return nil, nil, err
	}
	return a, r, nil
}

// view turns a path argument into a root-relative view location.
func (a *app) view(p string) (convention.ViewLocation, error) {
	rel, err := a.ws.Rel(p)
	if err != nil {
		return convention.ViewLocation{}, err
	}
	return convention.NewViewLocation(rel), nil
}

// isViewPath reports whether arg names a file the project parses, as
// opposed to a type name.
func (a *app) isViewPath(arg string) bool {
	ext := path.Ext(arg)
	return ext != "" && slices.Contains(a.cfg.Extensions, ext)
}

// newLogger builds the process logger. Logs go to w so command output
// stays clean for piping.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q: want text or json", format)
	}
}
