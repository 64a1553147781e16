// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package convention maps view template paths to controller files and
// action methods, and back, following the directory naming convention:
//
//	<base>/views/<controller>/<action>.php          -> <base>/Controller/<Controller>Controller.php, <action>Action
//	<base>/views/<module>/<controller>/<action>.php -> <base>/Controller/<Module>/<Controller>Controller.php, <action>Action
//
// Directory segments are kebab-case and become PascalCase; file names are
// kebab-case and become lower-camel action names.
package convention

import (
	"path"
	"slices"
	"strings"
)

// Default markers and suffixes.
const (
	DefaultViewMarker       = "views"
	DefaultControllerMarker = "Controller"
	DefaultControllerSuffix = "Controller"
	DefaultActionSuffix     = "Action"
	DefaultAction           = "index"

	// ControllerExt is the extension of controller class files.
	ControllerExt = ".php"
)

// DefaultViewExtensions are tried in order when building view paths.
var DefaultViewExtensions = []string{".php", ".phtml"}

// ViewLocation identifies a view file.
type ViewLocation struct {
	Path     string `json:"path"`
	FileName string `json:"file_name"`
}

// NewViewLocation builds a ViewLocation with a normalized path.
func NewViewLocation(p string) ViewLocation {
	p = NormalizePath(p)
	return ViewLocation{Path: p, FileName: path.Base(p)}
}

// ControllerLocation is where a view's controller action is expected to
// live. It is computed from the path alone; the file may not exist.
type ControllerLocation struct {
	Path string `json:"path"`

	// Module is the controller sub-directory for three-segment views.
	Module string `json:"module,omitempty"`

	ClassName  string `json:"class_name"`
	ActionName string `json:"action_name"`
}

// NormalizePath converts separators to "/" and cleans the result:
// repeated separators collapse and "." and ".." segments are resolved
// lexically. Leading ".." segments of a relative path are kept.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(strings.ReplaceAll(p, `\`, "/"))
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithViewMarker sets the directory name that roots view templates.
func WithViewMarker(marker string) Option {
	return func(m *Mapper) {
		if marker != "" {
			m.viewMarker = marker
		}
	}
}

// WithControllerMarker sets the directory name that roots controllers.
func WithControllerMarker(marker string) Option {
	return func(m *Mapper) {
		if marker != "" {
			m.controllerMarker = marker
		}
	}
}

// WithControllerSuffix sets the controller class name suffix.
func WithControllerSuffix(suffix string) Option {
	return func(m *Mapper) {
		if suffix != "" {
			m.controllerSuffix = suffix
		}
	}
}

// WithActionSuffix sets the action method name suffix.
func WithActionSuffix(suffix string) Option {
	return func(m *Mapper) {
		if suffix != "" {
			m.actionSuffix = suffix
		}
	}
}

// WithDefaultAction sets the view name for a method named only by the
// action suffix.
func WithDefaultAction(action string) Option {
	return func(m *Mapper) {
		if action != "" {
			m.defaultAction = action
		}
	}
}

// WithViewExtensions sets the view file extensions, in preference order.
func WithViewExtensions(exts ...string) Option {
	return func(m *Mapper) {
		if len(exts) > 0 {
			m.extensions = append([]string(nil), exts...)
		}
	}
}

// Mapper applies the naming convention. It is immutable after
// construction and safe for concurrent use.
type Mapper struct {
	viewMarker       string
	controllerMarker string
	controllerSuffix string
	actionSuffix     string
	defaultAction    string
	extensions       []string
}

// NewMapper creates a Mapper with the default convention, adjusted by opts.
func NewMapper(opts ...Option) *Mapper {
	m := &Mapper{
		viewMarker:       DefaultViewMarker,
		controllerMarker: DefaultControllerMarker,
		controllerSuffix: DefaultControllerSuffix,
		actionSuffix:     DefaultActionSuffix,
		defaultAction:    DefaultAction,
		extensions:       DefaultViewExtensions,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ActionSuffix returns the configured action method suffix.
func (m *Mapper) ActionSuffix() string { return m.actionSuffix }

// Extensions returns the view file extensions in preference order.
func (m *Mapper) Extensions() []string { return slices.Clone(m.extensions) }

// ResolveController maps a view to its controller file and action.
//
// Description:
//
//	The path must contain the view marker as a whole segment; the first
//	occurrence is used. The remainder must have two segments
//	(controller/action) or three (module/controller/action). Anything
//	else does not follow the convention and reports false.
//
// Example:
//
//	loc, ok := NewMapper().ResolveController(NewViewLocation("app/views/quest-battle/confirm-store.php"))
//	// loc.Path == "app/Controller/QuestBattleController.php"
//	// loc.ActionName == "confirmStoreAction"
func (m *Mapper) ResolveController(view ViewLocation) (ControllerLocation, bool) {
	p := NormalizePath(view.Path)
	base, rest, ok := splitAtMarker(p, m.viewMarker)
	if !ok {
		return ControllerLocation{}, false
	}

	segments := strings.Split(rest, "/")
	name := strings.TrimSuffix(segments[len(segments)-1], path.Ext(segments[len(segments)-1]))
	if name == "" {
		return ControllerLocation{}, false
	}

	loc := ControllerLocation{ActionName: KebabToCamel(name) + m.actionSuffix}
	var dir string
	switch len(segments) {
	case 2:
		loc.ClassName = KebabToPascal(segments[0]) + m.controllerSuffix
	case 3:
		loc.Module = KebabToPascal(segments[0])
		loc.ClassName = KebabToPascal(segments[1]) + m.controllerSuffix
		dir = loc.Module + "/"
	default:
		return ControllerLocation{}, false
	}
	if loc.ClassName == m.controllerSuffix || (len(segments) == 3 && loc.Module == "") {
		return ControllerLocation{}, false
	}

	loc.Path = base + m.controllerMarker + "/" + dir + loc.ClassName + ControllerExt
	return loc, true
}

// IsView reports whether p lies under the view marker.
func (m *Mapper) IsView(p string) bool {
	_, _, ok := splitAtMarker(NormalizePath(p), m.viewMarker)
	return ok
}

// IsController reports whether p is a controller class file.
func (m *Mapper) IsController(p string) bool {
	_, rest, ok := splitAtMarker(NormalizePath(p), m.controllerMarker)
	return ok && strings.HasSuffix(rest, m.controllerSuffix+ControllerExt)
}

// ViewCandidates maps a controller method back to the view paths it may
// render, most likely first. It is the inverse of ResolveController:
// every returned path resolves to controllerPath and method.
//
// The action suffix is stripped from the method name; a method that is
// only the suffix maps to the default action. Directory and file names
// are offered in kebab-case first, then as written.
func (m *Mapper) ViewCandidates(controllerPath, method string) []string {
	p := NormalizePath(controllerPath)
	base, rest, ok := splitAtMarker(p, m.controllerMarker)
	if !ok {
		return nil
	}

	segments := strings.Split(rest, "/")
	file := segments[len(segments)-1]
	if !strings.HasSuffix(file, m.controllerSuffix+ControllerExt) {
		return nil
	}
	class := strings.TrimSuffix(file, ControllerExt)
	controller := strings.TrimSuffix(class, m.controllerSuffix)
	if controller == "" || len(segments) > 2 {
		return nil
	}

	action := strings.TrimSuffix(method, m.actionSuffix)
	if action == "" {
		action = m.defaultAction
	}

	var modules []string
	if len(segments) == 2 {
		modules = dirVariants(segments[0])
	} else {
		modules = []string{""}
	}
	controllers := dirVariants(controller)
	actions := actionVariants(action)

	var out []string
	for _, mod := range modules {
		prefix := base + m.viewMarker + "/"
		if mod != "" {
			prefix += mod + "/"
		}
		for _, c := range controllers {
			for _, a := range actions {
				for _, ext := range m.extensions {
					candidate := prefix + c + "/" + a + ext
					if loc, ok := m.ResolveController(NewViewLocation(candidate)); ok &&
						loc.Path == p && loc.ActionName == KebabToCamel(action)+m.actionSuffix {
						out = append(out, candidate)
					}
				}
			}
		}
	}
	return out
}

// dirVariants returns directory spellings that map back to a PascalCase
// name.
func dirVariants(pascal string) []string {
	return uniqueMatching([]string{PascalToKebab(pascal), LowerFirst(pascal), pascal},
		func(v string) bool { return KebabToPascal(v) == UpperFirst(pascal) })
}

func actionVariants(camel string) []string {
	return uniqueMatching([]string{PascalToKebab(camel), camel},
		func(v string) bool { return KebabToCamel(v) == LowerFirst(camel) })
}

func uniqueMatching(in []string, keep func(string) bool) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		if v == "" || seen[v] || !keep(v) {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// splitAtMarker splits p at the first whole segment equal to marker,
// returning everything before it (with trailing "/") and everything
// after it (without leading "/").
func splitAtMarker(p, marker string) (base, rest string, ok bool) {
	var idx int
	switch {
	case strings.HasPrefix(p, marker+"/"):
		idx = 0
	default:
		i := strings.Index(p, "/"+marker+"/")
		if i < 0 {
			return "", "", false
		}
		idx = i + 1
	}
	rest = p[idx+len(marker)+1:]
	if rest == "" {
		return "", "", false
	}
	return p[:idx], rest, true
}
