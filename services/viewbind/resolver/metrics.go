// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolver

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// =============================================================================
// Prometheus Metrics for Binding Resolution
// =============================================================================

// Outcomes recorded per query.
const (
	outcomeFound    = "found"
	outcomeEmpty    = "empty"
	outcomeCanceled = "canceled"
)

var (
	// queriesTotal counts resolver queries by operation and outcome.
	// Labels: operation (extract_bindings, infer_type, ...), outcome (found, empty, canceled)
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viewbind",
		Subsystem: "resolver",
		Name:      "queries_total",
		Help:      "Total resolver queries by operation and outcome",
	}, []string{"operation", "outcome"})

	// queryDurationSeconds measures resolver query latency.
	// Labels: operation
	queryDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "viewbind",
		Subsystem: "resolver",
		Name:      "query_duration_seconds",
		Help:      "Resolver query latency",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	}, []string{"operation"})

	// inferenceDepthExceededTotal counts inference chains cut by the depth bound.
	inferenceDepthExceededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "viewbind",
		Subsystem: "resolver",
		Name:      "inference_depth_exceeded_total",
		Help:      "Inference chains stopped by the recursion bound",
	})
)

func defaultTracer() trace.Tracer {
	return otel.Tracer("viewbind.resolver")
}

// observe starts a span for one contract and returns a finisher that ends
// it and records metrics. found reports whether the query produced a
// non-empty result.
func (r *Resolver) observe(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(found bool)) {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "resolver."+operation, trace.WithAttributes(attrs...))
	return ctx, func(found bool) {
		outcome := outcomeEmpty
		switch {
		case ctx.Err() != nil:
			outcome = outcomeCanceled
		case found:
			outcome = outcomeFound
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		span.End()
		queriesTotal.WithLabelValues(operation, outcome).Inc()
		queryDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
