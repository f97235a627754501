// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package resolver

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	resolveCounter   metric.Int64Counter
	fallbackCounter  metric.Int64Counter
	cacheLookups     metric.Int64Counter
	storeErrors      metric.Int64Counter
	preferenceWrites metric.Int64Counter
	resolveDuration  metric.Float64Histogram
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/contextlayers/internal/resolver")

	var err error

	resolveCounter, err = meter.Int64Counter(
		"contextlayers.resolve.count",
		metric.WithDescription("Number of context resolutions"),
	)
	if err != nil {
		log.Fatalf("failed to create resolve.count counter: %v", err)
	}

	fallbackCounter, err = meter.Int64Counter(
		"contextlayers.resolve.fallbacks",
		metric.WithDescription("Number of resolutions that returned the fallback result"),
	)
	if err != nil {
		log.Fatalf("failed to create resolve.fallbacks counter: %v", err)
	}

	cacheLookups, err = meter.Int64Counter(
		"contextlayers.cache.lookups",
		metric.WithDescription("Number of cache lookups, by cache and result"),
	)
	if err != nil {
		log.Fatalf("failed to create cache.lookups counter: %v", err)
	}

	storeErrors, err = meter.Int64Counter(
		"contextlayers.store.errors",
		metric.WithDescription("Number of failed store operations"),
	)
	if err != nil {
		log.Fatalf("failed to create store.errors counter: %v", err)
	}

	preferenceWrites, err = meter.Int64Counter(
		"contextlayers.preference.writes",
		metric.WithDescription("Number of preference writes, by outcome"),
	)
	if err != nil {
		log.Fatalf("failed to create preference.writes counter: %v", err)
	}

	resolveDuration, err = meter.Float64Histogram(
		"contextlayers.resolve.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Time taken to resolve a user's context"),
	)
	if err != nil {
		log.Fatalf("failed to create resolve.duration histogram: %v", err)
	}
}

func recordCacheLookup(ctx context.Context, cache string, hit bool) {
	cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cache),
		attribute.Bool("hit", hit),
	))
}

func recordStoreError(ctx context.Context, operation string) {
	storeErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

func recordPreferenceWrite(ctx context.Context, outcome string) {
	preferenceWrites.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

func recordResolve(ctx context.Context, tenantKey string, seconds float64, fallback bool) {
	attrs := metric.WithAttributes(attribute.String("tenant_key", tenantKey))
	resolveCounter.Add(ctx, 1, attrs)
	resolveDuration.Record(ctx, seconds, attrs)
	if fallback {
		fallbackCounter.Add(ctx, 1, attrs)
	}
}
