// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestGetConfig_EmbeddedDefaults(t *testing.T) {
	ResetConfig()
	defer ResetConfig()

	cfg, err := GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.ViewRootMarker != "views" || cfg.ControllerRootMarker != "Controller" {
		t.Errorf("markers = %q, %q", cfg.ViewRootMarker, cfg.ControllerRootMarker)
	}
	if cfg.SetterName != "setVar" || cfg.MagicMethodPrefix != "__" {
		t.Errorf("setter = %q, magic = %q", cfg.SetterName, cfg.MagicMethodPrefix)
	}
	if cfg.MaxInferenceDepth != 16 {
		t.Errorf("MaxInferenceDepth = %d, want 16", cfg.MaxInferenceDepth)
	}
	if len(cfg.Extensions) != 2 || cfg.Extensions[0] != ".php" {
		t.Errorf("Extensions = %v", cfg.Extensions)
	}
}

func TestGetConfig_Cached(t *testing.T) {
	ResetConfig()
	defer ResetConfig()

	var wg sync.WaitGroup
	results := make([]*Config, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = GetConfig(context.Background())
		}(i)
	}
	wg.Wait()
	for i, cfg := range results {
		if cfg == nil || cfg != results[0] {
			t.Fatalf("result %d is not the cached config", i)
		}
	}
}

func TestGetConfig_NilContext(t *testing.T) {
	//nolint:staticcheck
	if _, err := GetConfig(nil); err == nil {
		t.Error("expected error for nil context")
	}
}

func TestLoad_Overlay(t *testing.T) {
	cfg, err := Load(context.Background(), []byte("setter_name: assign\nextensions: [.tpl.php]\nserver:\n  burst: 7\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SetterName != "assign" {
		t.Errorf("SetterName = %q", cfg.SetterName)
	}
	if len(cfg.Extensions) != 1 || cfg.Extensions[0] != ".tpl.php" {
		t.Errorf("Extensions = %v", cfg.Extensions)
	}
	if cfg.Server.Burst != 7 || cfg.Server.Address != ":8090" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.DefaultAction != "index" {
		t.Errorf("DefaultAction = %q, default lost", cfg.DefaultAction)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"marker with separator", "view_root_marker: app/views"},
		{"same markers", "view_root_marker: Controller"},
		{"empty setter", "setter_name: \"\""},
		{"extension without dot", "extensions: [php]"},
		{"no extensions", "extensions: []"},
		{"zero depth", "max_inference_depth: 0"},
		{"negative rate", "server:\n  requests_per_second: -1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), []byte(tt.yaml))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Load(%q) error = %v, want ErrInvalidConfig", tt.yaml, err)
			}
		})
	}
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load(context.Background(), []byte("extensions: [unterminated"))
	if err == nil || errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "viewbind.yaml")
	if err := os.WriteFile(path, []byte("default_action: home\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.DefaultAction != "home" {
		t.Errorf("DefaultAction = %q", cfg.DefaultAction)
	}

	if _, err := LoadFile(context.Background(), filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	cfg, err = LoadFile(context.Background(), "")
	if err != nil || cfg.DefaultAction != "index" {
		t.Errorf("LoadFile(\"\") = %+v, %v", cfg, err)
	}
}
