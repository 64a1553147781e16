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
	"fmt"
	"strconv"

	"github.com/AleutianAI/viewbind/services/viewbind"
	"github.com/AleutianAI/viewbind/services/viewbind/ast"
	"github.com/AleutianAI/viewbind/services/viewbind/resolver"
	"github.com/AleutianAI/viewbind/services/viewbind/typeterm"
	"github.com/spf13/cobra"
)

func newControllerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "controller <view>",
		Short: "Show the controller file and action that render a view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, r, err := opts.query(cmd)
			if err != nil {
				return err
			}
			view, err := a.view(args[0])
			if err != nil {
				return err
			}
			resp := viewbind.ControllerResponse{View: view.Path}
			if loc, ok := r.ResolveController(view); ok {
				snap, err := a.ws.Snapshot()
				if err != nil {
					return err
				}
				resp.Found, resp.Controller, resp.Exists = true, &loc, snap.Exists(loc.Path)
			}
			return a.out.emit(resp, func(p *printer) {
				if !resp.Found {
					p.muted("%s is not a view", view.Path)
					return
				}
				p.field("controller", resp.Controller.Path)
				p.field("class", resp.Controller.ClassName)
				p.field("action", resp.Controller.ActionName)
				if resp.Controller.Module != "" {
					p.field("module", resp.Controller.Module)
				}
				if !resp.Exists {
					p.muted("controller file not found in project")
				}
			})
		},
	}
}

func newBindingsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bindings <view>",
		Short: "List the variables a view's action binds, with their types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, r, err := opts.query(cmd)
			if err != nil {
				return err
			}
			view, err := a.view(args[0])
			if err != nil {
				return err
			}
			resp := viewbind.BindingsResponse{
				View:     view.Path,
				Bindings: r.DescribeBindings(cmd.Context(), view),
			}
			return a.out.emit(resp, func(p *printer) {
				if len(resp.Bindings) == 0 {
					p.muted("no bindings")
					return
				}
				for _, b := range resp.Bindings {
					p.field("$"+b.Name, b.Type)
				}
			})
		},
	}
}

func newTypeCmd(opts *options) *cobra.Command {
	offset := resolver.AnyOffset
	cmd := &cobra.Command{
		Use:   "type <view> <variable>",
		Short: "Infer the type of a variable used in a view",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, r, err := opts.query(cmd)
			if err != nil {
				return err
			}
			view, err := a.view(args[0])
			if err != nil {
				return err
			}
			t := r.InferTypeAt(cmd.Context(), view, args[1], offset)
			return a.out.emitType(t)
		},
	}
	cmd.Flags().IntVar(&offset, "offset", resolver.AnyOffset, "byte offset of the occurrence in the view")
	return cmd
}

func newElementTypeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "element-type <type>...",
		Short: "Show the element type of a collection type",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, r, err := opts.query(cmd)
			if err != nil {
				return err
			}
			return a.out.emitType(r.ElementType(cmd.Context(), parseTypes(args)))
		},
	}
}

func newMembersCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "members (<type>... | <view> <variable>)",
		Short: "List the fields and methods available on a type or view variable",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, r, err := opts.query(cmd)
			if err != nil {
				return err
			}
			desc := parseTypes(args)
			if len(args) == 2 && a.isViewPath(args[0]) {
				view, err := a.view(args[0])
				if err != nil {
					return err
				}
				desc = r.InferType(cmd.Context(), view, args[1])
			}
			members := r.ListMembers(cmd.Context(), desc)
			resp := viewbind.MembersResponse{
				Fields:  memberInfos(members.Fields),
				Methods: memberInfos(members.Methods),
			}
			return a.out.emit(resp, func(p *printer) {
				p.heading("Fields")
				for _, f := range resp.Fields {
					p.member(f, "$"+f.Name)
				}
				p.heading("Methods")
				for _, m := range resp.Methods {
					p.member(m, m.Name+"()")
				}
			})
		},
	}
}

func newDefinitionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "definition <view> <variable>",
		Short: "Show the binding key that defines a view variable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, r, err := opts.query(cmd)
			if err != nil {
				return err
			}
			view, err := a.view(args[0])
			if err != nil {
				return err
			}
			resp := viewbind.DefinitionResponse{}
			if def, ok := r.Definition(cmd.Context(), view, args[1]); ok {
				resp.Found, resp.Definition = true, &def
			}
			return a.out.emit(resp, func(p *printer) {
				if !resp.Found {
					p.muted("no binding for $%s", trimVar(args[1]))
					return
				}
				p.occurrence(*resp.Definition)
			})
		},
	}
}

func newDeclarationsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "declarations <controller> <offset>",
		Short: "List the view variables a binding key literal declares",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset, err := strconv.Atoi(args[1])
			if err != nil || offset < 0 {
				return fmt.Errorf("invalid offset %q", args[1])
			}
			a, r, err := opts.query(cmd)
			if err != nil {
				return err
			}
			controller, err := a.ws.Rel(args[0])
			if err != nil {
				return err
			}
			return a.out.emitOccurrences(r.Declarations(cmd.Context(), controller, offset))
		},
	}
}

func newUsagesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "usages <view> <variable>",
		Short: "List the occurrences of a variable in a view",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, r, err := opts.query(cmd)
			if err != nil {
				return err
			}
			view, err := a.view(args[0])
			if err != nil {
				return err
			}
			return a.out.emitOccurrences(r.Usages(cmd.Context(), view, args[1]))
		},
	}
}

func newVariantsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "variants <view>",
		Short: "List the variable names a view can use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, r, err := opts.query(cmd)
			if err != nil {
				return err
			}
			view, err := a.view(args[0])
			if err != nil {
				return err
			}
			variants := r.Variants(cmd.Context(), view)
			if variants == nil {
				variants = []string{}
			}
			resp := viewbind.VariantsResponse{View: view.Path, Variants: variants}
			return a.out.emit(resp, func(p *printer) {
				for _, v := range resp.Variants {
					p.line("$" + v)
				}
			})
		},
	}
}

// parseTypes reads each argument as a union type.
func parseTypes(args []string) typeterm.Descriptor {
	var d typeterm.Descriptor
	for _, a := range args {
		d = d.Union(typeterm.Parse(a))
	}
	return d
}

func memberInfos(syms []*ast.Symbol) []viewbind.MemberInfo {
	out := make([]viewbind.MemberInfo, 0, len(syms))
	for _, s := range syms {
		out = append(out, viewbind.MemberInfoFromSymbol(s))
	}
	return out
}

func trimVar(name string) string {
	if len(name) > 0 && name[0] == '$' {
		return name[1:]
	}
	return name
}
