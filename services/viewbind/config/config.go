// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the resolver configuration: an embedded YAML
// default, optionally overlaid by a user file.
package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"
)

//go:embed viewbind.yaml
var defaultYAML []byte

var tracer = otel.Tracer("viewbind.config")

// ErrInvalidConfig indicates a configuration that failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// MaxYAMLFileSize bounds configuration files.
const MaxYAMLFileSize = 1 << 20

// Config holds every tunable of the resolver, the workspace and the
// server.
//
// Thread Safety: Immutable after loading; safe for concurrent use.
type Config struct {
	ViewRootMarker       string `yaml:"view_root_marker" validate:"required"`
	ControllerRootMarker string `yaml:"controller_root_marker" validate:"required"`
	ControllerSuffix     string `yaml:"controller_suffix" validate:"required"`
	ActionSuffix         string `yaml:"action_suffix"`
	DefaultAction        string `yaml:"default_action" validate:"required"`

	// SetterName is the controller method that binds view variables.
	SetterName string `yaml:"setter_name" validate:"required"`

	// MagicMethodPrefix hides methods from member lists.
	MagicMethodPrefix string `yaml:"magic_method_prefix"`

	Extensions []string `yaml:"extensions" validate:"required,min=1,dive,required"`

	MaxFileSize       int64 `yaml:"max_file_size" validate:"gt=0"`
	MaxInferenceDepth int   `yaml:"max_inference_depth" validate:"gt=0,lte=256"`
	ParseConcurrency  int   `yaml:"parse_concurrency" validate:"gt=0,lte=256"`

	ExcludeDirs []string `yaml:"exclude_dirs"`

	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP query API.
type ServerConfig struct {
	Address           string  `yaml:"address" validate:"required"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
	Burst             int     `yaml:"burst" validate:"gt=0"`
}

// TelemetryConfig selects the trace exporters of the server.
type TelemetryConfig struct {
	StdoutTraces bool   `yaml:"stdout_traces"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

var (
	configMu      sync.RWMutex
	configOnce    sync.Once
	cachedConfig  *Config
	configLoadErr error

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// GetConfig returns the embedded default configuration, loading it on
// first use.
//
// Thread Safety: Safe for concurrent use via sync.Once.
func GetConfig(ctx context.Context) (*Config, error) {
	if ctx == nil {
		return nil, fmt.Errorf("GetConfig: ctx must not be nil")
	}

	configMu.RLock()
	if cachedConfig != nil || configLoadErr != nil {
		cfg, err := cachedConfig, configLoadErr
		configMu.RUnlock()
		return cfg, err
	}
	configMu.RUnlock()

	configMu.Lock()
	defer configMu.Unlock()
	configOnce.Do(func() {
		cachedConfig, configLoadErr = Load(ctx, defaultYAML)
	})
	return cachedConfig, configLoadErr
}

// ResetConfig clears the cached default for tests.
func ResetConfig() {
	configMu.Lock()
	defer configMu.Unlock()
	cachedConfig = nil
	configLoadErr = nil
	configOnce = sync.Once{}
}

// Load parses YAML over the embedded defaults and validates the result.
// Fields missing from data keep their default values.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - Parse errors, or ErrInvalidConfig wrapping the violations.
func Load(ctx context.Context, data []byte) (*Config, error) {
	_, span := tracer.Start(ctx, "config.Load")
	defer span.End()
	span.SetAttributes(attribute.Int("config.size_bytes", len(data)))

	if len(data) > MaxYAMLFileSize {
		return nil, fmt.Errorf("config exceeds maximum size (%d > %d)", len(data), MaxYAMLFileSize)
	}

	var cfg Config
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if len(data) > 0 {
		// yaml.v3 replaces slices wholesale, so a user list overrides the
		// default list instead of extending it.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads a user configuration file over the defaults. An empty
// path returns the defaults.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	if path == "" {
		return Load(ctx, nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if info.Size() > MaxYAMLFileSize {
		return nil, fmt.Errorf("config %s exceeds maximum size (%d > %d)", path, info.Size(), MaxYAMLFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Load(ctx, data)
}

// Validate checks struct constraints and the path conventions: markers
// are single path segments and extensions start with ".".
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for name, marker := range map[string]string{
		"view_root_marker":       c.ViewRootMarker,
		"controller_root_marker": c.ControllerRootMarker,
	} {
		if strings.ContainsAny(marker, `/\`) || marker == "." || marker == ".." {
			return fmt.Errorf("%w: %s %q must be a single path segment", ErrInvalidConfig, name, marker)
		}
	}
	if c.ViewRootMarker == c.ControllerRootMarker {
		return fmt.Errorf("%w: view and controller markers must differ", ErrInvalidConfig)
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("%w: extension %q must start with \".\"", ErrInvalidConfig, ext)
		}
	}
	return nil
}
