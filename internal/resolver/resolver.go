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

// Package resolver computes the effective instruction set for a user in a
// tenant. It reads the tenant's context layers and the user's preferences
// (concurrently, through short-lived caches), drops the layers the user
// disabled, orders the rest from global to personal and merges them.
//
// Reads never fail: a store outage degrades to "every layer enabled" or
// to the fallback instruction. Preference writes go straight to the store
// and invalidate only the writer's cached preferences.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/contextlayers/internal/contextlayer"
	"github.com/cardinalhq/contextlayers/internal/contextstore"
	"github.com/cardinalhq/contextlayers/internal/logctx"
	"github.com/cardinalhq/contextlayers/internal/ownercache"
)

type Resolver struct {
	provider contextstore.Provider
	logger   *slog.Logger
	tracer   trace.Tracer

	contexts *ownercache.Cache[[]contextlayer.Context]
	prefs    *ownercache.Cache[[]contextlayer.Preference]

	// prefsMu orders cache fills against invalidations of the same key.
	prefsMu    sync.Mutex
	prefsSeq   uint64
	prefsEpoch uint64            // prefsSeq at the last InvalidateAll
	prefsGen   map[string]uint64 // prefs key -> prefsSeq at its last write
}

type Option func(*Resolver)

// WithLogger sets the logger used when the request context carries none.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a resolver with its own pair of caches. Call Close to stop
// their expiry loops.
func New(provider contextstore.Provider, cfg Config, opts ...Option) *Resolver {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultConfig().CacheTTL
	}
	r := &Resolver{
		provider: provider,
		tracer:   otel.Tracer("github.com/cardinalhq/contextlayers/internal/resolver"),
		contexts: ownercache.New[[]contextlayer.Context](ttl),
		prefs:    ownercache.New[[]contextlayer.Preference](ttl),
		prefsGen: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Close() {
	r.contexts.Close()
	r.prefs.Close()
}

func (r *Resolver) requestContext(ctx context.Context, userID, tenantKey string) context.Context {
	if r.logger != nil && logctx.FromContext(ctx) == slog.Default() {
		ctx = logctx.WithLogger(ctx, r.logger)
	}
	return logctx.With(ctx, slog.String("user_id", userID), slog.String("tenant_key", tenantKey))
}

// Resolve returns the merged context for the user. It never fails: any
// unexpected error produces contextlayer.Fallback().
func (r *Resolver) Resolve(ctx context.Context, userID, tenantKey string) (rc contextlayer.ResolvedContext) {
	ctx, span := r.tracer.Start(ctx, "contextlayers.resolve")
	defer span.End()
	span.SetAttributes(attribute.String("tenant_key", tenantKey))

	ctx = r.requestContext(ctx, userID, tenantKey)
	start := time.Now()

	defer func() {
		fallback := false
		if p := recover(); p != nil {
			logctx.FromContext(ctx).Error("Context resolution panicked, using fallback",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			span.SetStatus(codes.Error, "panic")
			rc = contextlayer.Fallback()
			fallback = true
		}
		span.SetAttributes(attribute.Int("applied_contexts", len(rc.AppliedContextIDs)))
		recordResolve(ctx, tenantKey, time.Since(start).Seconds(), fallback)
	}()

	var (
		contexts []contextlayer.Context
		prefs    []contextlayer.Preference
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(safely(func() { contexts = r.fetchContexts(gctx, tenantKey) }))
	g.Go(safely(func() { prefs = r.fetchAllPreferences(gctx, userID, tenantKey) }))
	if err := g.Wait(); err != nil {
		panic(err)
	}

	enabled := contextlayer.FilterEnabled(contexts, prefs)
	rc = contextlayer.Build(contextlayer.Order(enabled))

	logctx.FromContext(ctx).Debug("Resolved context",
		slog.Int("available", len(contexts)),
		slog.Int("applied", len(rc.AppliedContextIDs)))
	return rc
}

// safely turns a panic in an errgroup goroutine into an error so it can be
// handled on the calling goroutine.
func safely(fn func()) func() error {
	return func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		fn()
		return nil
	}
}

// InvalidateTenant drops the shared context entry for a tenant so the next
// resolution rereads it. Cached preferences are left alone. It is meant for
// code that changes contexts in the same process as the resolver; other
// processes see such changes once the entry expires.
func (r *Resolver) InvalidateTenant(tenantKey string) {
	r.contexts.Delete(contextsKey(tenantKey))
}

// InvalidateAll empties both caches. Preference reads already in flight
// will not repopulate the cache.
func (r *Resolver) InvalidateAll() {
	r.contexts.Clear()

	r.prefsMu.Lock()
	defer r.prefsMu.Unlock()
	r.prefsSeq++
	r.prefsEpoch = r.prefsSeq
	clear(r.prefsGen)
	r.prefs.Clear()
}
