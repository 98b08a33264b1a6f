// Package exec routes analysis operations to an execution venue (constrained
// local runtime vs server worker pool), enforces per-stage timeout budgets,
// and memoizes results in a dataset-versioned cache with single-flight
// semantics per fingerprint.
package exec

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"govigil/domain/core"
	"govigil/domain/signal"
	"govigil/internal/config"
	"govigil/ports"
)

// Router decides where each operation runs and serves cached results.
// Guarantees at most one concurrent computation per fingerprint: concurrent
// identical requests await the single in-flight computation.
type Router struct {
	cfg    config.ExecConfig
	cache  *Cache
	local  ports.Executor
	remote ports.RemoteExecutor

	flight        singleflight.Group
	computations  atomic.Int64
	sharedFlights atomic.Int64
	log           *logrus.Entry
}

// NewRouter creates a router. Either executor may be nil; an operation no
// venue can run fails with ErrExecutionUnavailable.
func NewRouter(cfg config.ExecConfig, cache *Cache, local ports.Executor, remote ports.RemoteExecutor) *Router {
	return &Router{
		cfg:    cfg,
		cache:  cache,
		local:  local,
		remote: remote,
		log:    logrus.WithField("component", "router"),
	}
}

// RouterStats exposes routing counters for the ops surface
type RouterStats struct {
	Computations  int64      `json:"computations"`
	SharedFlights int64      `json:"shared_flights"`
	Cache         CacheStats `json:"cache"`
}

// Stats returns a snapshot of router and cache counters
func (r *Router) Stats() RouterStats {
	return RouterStats{
		Computations:  r.computations.Load(),
		SharedFlights: r.sharedFlights.Load(),
		Cache:         r.cache.Stats(),
	}
}

// Execute routes one request. Result delivery order for a fingerprint always
// matches the single authoritative computation: no two callers can observe
// different results for the same fingerprint and dataset version.
func (r *Router) Execute(ctx context.Context, req ports.ExecRequest) (interface{}, error) {
	if req.Table == nil {
		return nil, core.NewInvalidTableError("request carries no case table")
	}

	r.cache.SetVersion(ctx, req.Table.Version)
	fp := core.ComputeFingerprint(string(req.Op), req.Params, req.Table.Version)

	if entry, ok := r.cache.Get(ctx, fp); ok {
		return entry.Result, nil
	}

	result, err, shared := r.flight.Do(fp.String(), func() (interface{}, error) {
		r.computations.Add(1)
		value, venue, err := r.run(ctx, req)
		if err != nil {
			return nil, err
		}
		r.cache.Put(ctx, &signal.CacheEntry{
			Fingerprint: fp,
			Version:     req.Table.Version,
			Result:      value,
			Venue:       venue,
			ComputedAt:  core.Now(),
		})
		return value, nil
	})
	if shared {
		r.sharedFlights.Add(1)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// run picks the venue and executes within the stage budget
func (r *Router) run(ctx context.Context, req ports.ExecRequest) (interface{}, signal.Venue, error) {
	budget := r.budgetFor(req.Op)
	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	venue := r.pickVenue(runCtx, req)
	switch venue {
	case signal.VenueRemote:
		value, err := r.remote.Execute(runCtx, req)
		if err == nil {
			return value, signal.VenueRemote, nil
		}
		if partial, ok := core.PartialResult(err); ok {
			return nil, signal.VenueRemote, core.NewTimeoutPartial(string(req.Op), budget, partial)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, signal.VenueRemote, core.NewTimeoutPartial(string(req.Op), budget, nil)
		}
		// Remote failed outright: fall back to local when supported
		if r.localSupports(req.Op) {
			r.log.WithError(err).WithField("op", req.Op).Warn("remote venue failed, falling back to local")
			return r.runLocal(runCtx, req, budget)
		}
		return nil, signal.VenueRemote, err

	case signal.VenueLocal:
		return r.runLocal(runCtx, req, budget)

	default:
		return nil, "", core.ErrExecutionUnavailable
	}
}

func (r *Router) runLocal(ctx context.Context, req ports.ExecRequest, budget time.Duration) (interface{}, signal.Venue, error) {
	value, err := r.local.Execute(ctx, req)
	if err == nil {
		return value, signal.VenueLocal, nil
	}
	if partial, ok := core.PartialResult(err); ok {
		return nil, signal.VenueLocal, core.NewTimeoutPartial(string(req.Op), budget, partial)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, signal.VenueLocal, core.NewTimeoutPartial(string(req.Op), budget, nil)
	}
	return nil, signal.VenueLocal, err
}

// pickVenue applies the routing policy: remote for large datasets or
// locally-unsupported operations when the remote is reachable; local
// otherwise; remote as last resort even for small datasets.
func (r *Router) pickVenue(ctx context.Context, req ports.ExecRequest) signal.Venue {
	localOK := r.localSupports(req.Op)
	remoteOK := r.remote != nil && r.remote.Supports(req.Op) && r.remote.Available(ctx)

	switch {
	case remoteOK && (!localOK || req.Table.Size() > r.cfg.LocalMaxCases):
		return signal.VenueRemote
	case localOK:
		return signal.VenueLocal
	case remoteOK:
		return signal.VenueRemote
	default:
		return ""
	}
}

func (r *Router) localSupports(op signal.Operation) bool {
	return r.local != nil && r.local.Supports(op)
}

func (r *Router) budgetFor(op signal.Operation) time.Duration {
	switch op {
	case signal.OpRankCandidates:
		return r.cfg.RankingBudget
	case signal.OpClusterSignal, signal.OpFindDuplicates:
		return r.cfg.FilteringBudget
	default:
		return r.cfg.StatisticsBudget
	}
}
