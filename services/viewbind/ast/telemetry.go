// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("viewbind.ast")
	meter  = otel.Meter("viewbind.ast")
)

var (
	metricsOnce sync.Once

	parseDuration    metric.Float64Histogram
	parseTotal       metric.Int64Counter
	symbolsExtracted metric.Int64Counter
)

// initMetrics creates the instruments lazily so a meter provider installed
// by main before the first parse is picked up.
func initMetrics() {
	metricsOnce.Do(func() {
		var err error
		parseDuration, err = meter.Float64Histogram("viewbind_parse_duration_seconds",
			metric.WithDescription("Duration of PHP file parsing"),
			metric.WithUnit("s"),
		)
		if err != nil {
			parseDuration = nil
		}
		parseTotal, err = meter.Int64Counter("viewbind_parse_total",
			metric.WithDescription("Total PHP files parsed"),
		)
		if err != nil {
			parseTotal = nil
		}
		symbolsExtracted, err = meter.Int64Counter("viewbind_parse_symbols_total",
			metric.WithDescription("Total symbols extracted from PHP files"),
		)
		if err != nil {
			symbolsExtracted = nil
		}
	})
}

func startParseSpan(ctx context.Context, language, filePath string, size int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ast.Parse",
		trace.WithAttributes(
			attribute.String("parse.language", language),
			attribute.String("parse.file", filePath),
			attribute.Int("parse.size_bytes", size),
		),
	)
}

func setParseSpanResult(span trace.Span, symbolCount, errorCount int) {
	span.SetAttributes(
		attribute.Int("parse.symbols", symbolCount),
		attribute.Int("parse.errors", errorCount),
	)
	if errorCount > 0 {
		span.SetStatus(codes.Error, "source contains syntax errors")
	}
}

func recordParseMetrics(ctx context.Context, language string, d time.Duration, symbols int, success bool) {
	initMetrics()
	attrs := metric.WithAttributes(
		attribute.String("language", language),
		attribute.Bool("success", success),
	)
	if parseDuration != nil {
		parseDuration.Record(ctx, d.Seconds(), attrs)
	}
	if parseTotal != nil {
		parseTotal.Add(ctx, 1, attrs)
	}
	if symbolsExtracted != nil && symbols > 0 {
		symbolsExtracted.Add(ctx, int64(symbols), metric.WithAttributes(attribute.String("language", language)))
	}
}
