// Package app orchestrates the signal-detection engines: cheap ranking
// first, exact statistics lazily for only the top candidates, clustering and
// duplicate detection on demand.
package app

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"govigil/adapters/clustering"
	"govigil/adapters/dedupe"
	"govigil/adapters/ranking"
	"govigil/adapters/stats/contingency"
	"govigil/adapters/stats/disprop"
	"govigil/domain/core"
	"govigil/domain/signal"
	"govigil/internal/config"
	"govigil/ports"
)

// AnalysisService exposes the core operations over an in-memory case table
// snapshot. The table is never mutated; every output is newly allocated.
type AnalysisService struct {
	builder   *contingency.Builder
	calc      *disprop.Calculator
	ranker    *ranking.Engine
	clusterer *clustering.Engine
	deduper   *dedupe.Engine

	defaultTopK int
	workers     int
	log         *logrus.Entry
}

// NewAnalysisService wires the engines from configuration. The RNG port is
// only needed when the optional annealing refiner is enabled; pass nil to
// stay on the deterministic path.
func NewAnalysisService(cfg *config.Config, rng ports.RNG) *AnalysisService {
	ranker := ranking.NewEngine(ranking.NewWeightedScorer(ranking.DefaultWeights()))
	if cfg.Analysis.AnnealerEnabled && rng != nil {
		annealerCfg := ranking.DefaultAnnealerConfig()
		annealerCfg.Seed = cfg.Analysis.AnnealerSeed
		ranker = ranker.WithRefiner(ranking.NewAnnealer(annealerCfg, rng))
	}

	return &AnalysisService{
		builder: contingency.NewBuilder(),
		calc: disprop.NewCalculator(disprop.Options{
			Thresholds: cfg.Analysis.Thresholds,
			PriorAlpha: cfg.Analysis.PriorAlpha,
			PriorBeta:  cfg.Analysis.PriorBeta,
		}),
		ranker: ranker,
		clusterer: clustering.NewEngine(clustering.Config{
			K:        cfg.Analysis.ClusterK,
			MinCases: cfg.Analysis.ClusterMinCases,
		}),
		deduper: dedupe.NewEngine(dedupe.Config{
			Threshold: cfg.Analysis.DedupeThreshold,
			MaxCases:  cfg.Analysis.DedupeMaxCases,
		}),
		defaultTopK: cfg.Analysis.DefaultTopK,
		workers:     cfg.Exec.Workers,
		log:         logrus.WithField("component", "analysis"),
	}
}

// ComputeSignal builds the contingency table for one (drug, reaction) pair
// and derives the full metric set.
func (s *AnalysisService) ComputeSignal(ctx context.Context, table *signal.CaseTable, drug, reaction string, filters *signal.Filters) (*signal.SignalMetrics, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	cell, err := s.builder.Build(table, drug, reaction, filters)
	if err != nil {
		return nil, err
	}
	return s.calc.Compute(drug, reaction, cell)
}

// RankCandidates scores every (drug, reaction) pair cheaply; topK<=0 falls
// back to the configured default.
func (s *AnalysisService) RankCandidates(ctx context.Context, table *signal.CaseTable, topK int) ([]signal.RankedSignal, error) {
	if topK <= 0 {
		topK = s.defaultTopK
	}
	return s.ranker.RankCandidates(ctx, table, topK)
}

// ClusterSignal partitions one signal's case subset into patient subgroups
func (s *AnalysisService) ClusterSignal(ctx context.Context, table *signal.CaseTable, drug, reaction string, k int) ([]signal.ClusterSummary, error) {
	subset := s.builder.Subset(table, drug, reaction, nil)
	return s.clusterer.Cluster(ctx, subset, k)
}

// FindDuplicates detects duplicate case groups in the table
func (s *AnalysisService) FindDuplicates(ctx context.Context, table *signal.CaseTable, mode signal.DetectionMode, threshold float64) ([]signal.DuplicateGroup, error) {
	return s.deduper.FindDuplicates(ctx, table, mode, threshold)
}

// TopSignals is the lazy evaluation pipeline: rank all candidates, then
// compute exact metrics for only the top K. With parallel=true (server
// venue) candidates fan out across the worker pool; otherwise they run
// sequentially with cooperative cancellation checks (local venue).
//
// On budget overrun the metrics completed so far come back inside a
// TimeoutPartialError, never as a silently truncated complete result.
func (s *AnalysisService) TopSignals(ctx context.Context, table *signal.CaseTable, topK int, parallel bool) ([]*signal.SignalMetrics, error) {
	ranked, err := s.RankCandidates(ctx, table, topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, core.NewTimeoutPartial(string(signal.OpTopSignals), 0, nil)
		}
		return nil, err
	}

	if parallel {
		return s.topSignalsParallel(ctx, table, ranked)
	}
	return s.topSignalsSequential(ctx, table, ranked)
}

func (s *AnalysisService) topSignalsSequential(ctx context.Context, table *signal.CaseTable, ranked []signal.RankedSignal) ([]*signal.SignalMetrics, error) {
	results := make([]*signal.SignalMetrics, 0, len(ranked))
	for _, rs := range ranked {
		select {
		case <-ctx.Done():
			return nil, core.NewTimeoutPartial(string(signal.OpTopSignals), 0, results)
		default:
		}
		m, err := s.ComputeSignal(ctx, table, rs.Drug, rs.Reaction, nil)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, core.NewTimeoutPartial(string(signal.OpTopSignals), 0, results)
			}
			return nil, err
		}
		results = append(results, m)
	}
	return results, nil
}

func (s *AnalysisService) topSignalsParallel(ctx context.Context, table *signal.CaseTable, ranked []signal.RankedSignal) ([]*signal.SignalMetrics, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var mu sync.Mutex
	ordered := make([]*signal.SignalMetrics, len(ranked))

	for i, rs := range ranked {
		g.Go(func() error {
			m, err := s.ComputeSignal(gctx, table, rs.Drug, rs.Reaction, nil)
			if err != nil {
				return err
			}
			mu.Lock()
			ordered[i] = m
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			mu.Lock()
			partial := make([]*signal.SignalMetrics, 0, len(ordered))
			for _, m := range ordered {
				if m != nil {
					partial = append(partial, m)
				}
			}
			mu.Unlock()
			return nil, core.NewTimeoutPartial(string(signal.OpTopSignals), 0, partial)
		}
		return nil, err
	}
	return ordered, nil
}
