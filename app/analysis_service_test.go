package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govigil/domain/core"
	"govigil/domain/signal"
	"govigil/internal/config"
	"govigil/internal/testkit"
	"govigil/ports"
)

func testConfig() *config.Config {
	return &config.Config{
		Analysis: config.AnalysisConfig{
			Thresholds:      signal.DefaultThresholds(),
			PriorAlpha:      1.0,
			PriorBeta:       1.0,
			DefaultTopK:     25,
			ClusterK:        3,
			ClusterMinCases: 20,
			DedupeThreshold: 0.85,
			DedupeMaxCases:  5000,
		},
		Exec: config.ExecConfig{Workers: 4},
	}
}

func injectedTable(cases int, seed int64) *signal.CaseTable {
	return testkit.GenerateCaseTable(testkit.GeneratorConfig{
		Cases: cases,
		Seed:  seed,
		InjectedSignals: []testkit.InjectedSignal{
			{Drug: "nifedipine", Reaction: "gingival hyperplasia", Rate: 0.02, Serious: true},
		},
	})
}

func TestAnalysisService_ComputeSignalForInjectedPair(t *testing.T) {
	svc := NewAnalysisService(testConfig(), nil)
	table := injectedTable(5000, 7)

	m, err := svc.ComputeSignal(context.Background(), table, "nifedipine", "gingival hyperplasia", nil)
	require.NoError(t, err)

	require.True(t, m.PRR.Computable)
	assert.Greater(t, m.PRR.Value, 2.0, "an injected association must stand out against background")
	assert.True(t, m.SignalFlag)
	assert.Equal(t, table.Size(), m.Cell.Total())
}

func TestAnalysisService_TopSignalsSequentialMatchesParallel(t *testing.T) {
	svc := NewAnalysisService(testConfig(), nil)
	table := injectedTable(3000, 11)

	seq, err := svc.TopSignals(context.Background(), table, 10, false)
	require.NoError(t, err)
	par, err := svc.TopSignals(context.Background(), table, 10, true)
	require.NoError(t, err)

	require.Len(t, seq, 10)
	require.Len(t, par, 10)
	for i := range seq {
		assert.Equal(t, seq[i].Drug, par[i].Drug)
		assert.Equal(t, seq[i].Reaction, par[i].Reaction)
		assert.Equal(t, seq[i].Cell, par[i].Cell)
	}
}

func TestAnalysisService_TopSignalsCancellationYieldsPartial(t *testing.T) {
	svc := NewAnalysisService(testConfig(), nil)
	table := injectedTable(3000, 11)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	_, err := svc.TopSignals(ctx, table, 10, false)
	require.Error(t, err)
	assert.True(t, core.IsTimeoutPartial(err))
}

func TestLocalVenue_DispatchAllOperations(t *testing.T) {
	svc := NewAnalysisService(testConfig(), nil)
	venue := NewLocalVenue(svc)
	table := injectedTable(2000, 3)

	tests := []struct {
		name   string
		req    ports.ExecRequest
		verify func(t *testing.T, result interface{})
	}{
		{
			name: "compute signal",
			req: ports.ExecRequest{
				Op:     signal.OpComputeSignal,
				Params: map[string]interface{}{"drug": "nifedipine", "reaction": "gingival hyperplasia"},
				Table:  table,
			},
			verify: func(t *testing.T, result interface{}) {
				m, ok := result.(*signal.SignalMetrics)
				require.True(t, ok)
				assert.Equal(t, "nifedipine", m.Drug)
			},
		},
		{
			name: "rank candidates",
			req: ports.ExecRequest{
				Op:     signal.OpRankCandidates,
				Params: map[string]interface{}{"top_k": 5},
				Table:  table,
			},
			verify: func(t *testing.T, result interface{}) {
				ranked, ok := result.([]signal.RankedSignal)
				require.True(t, ok)
				assert.Len(t, ranked, 5)
			},
		},
		{
			name: "find duplicates",
			req: ports.ExecRequest{
				Op:     signal.OpFindDuplicates,
				Params: map[string]interface{}{"mode": "exact"},
				Table:  table,
			},
			verify: func(t *testing.T, result interface{}) {
				_, ok := result.([]signal.DuplicateGroup)
				require.True(t, ok)
			},
		},
		{
			name: "top signals",
			req: ports.ExecRequest{
				Op:     signal.OpTopSignals,
				Params: map[string]interface{}{"top_k": 3},
				Table:  table,
			},
			verify: func(t *testing.T, result interface{}) {
				metrics, ok := result.([]*signal.SignalMetrics)
				require.True(t, ok)
				assert.Len(t, metrics, 3)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := venue.Execute(context.Background(), tt.req)
			require.NoError(t, err)
			tt.verify(t, result)
		})
	}
}

func TestLocalVenue_DateFiltersRestrictUniverse(t *testing.T) {
	svc := NewAnalysisService(testConfig(), nil)
	venue := NewLocalVenue(svc)
	table := injectedTable(3000, 11)

	from := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	direct, err := svc.ComputeSignal(context.Background(), table, "nifedipine", "gingival hyperplasia",
		&signal.Filters{FromDate: from})
	require.NoError(t, err)
	require.Less(t, direct.Cell.Total(), table.Size(), "date filter must shrink the counting universe")

	result, err := venue.Execute(context.Background(), ports.ExecRequest{
		Op: signal.OpComputeSignal,
		Params: map[string]interface{}{
			"drug":      "nifedipine",
			"reaction":  "gingival hyperplasia",
			"from_date": "2025-10-01",
		},
		Table: table,
	})
	require.NoError(t, err)
	routed, ok := result.(*signal.SignalMetrics)
	require.True(t, ok)
	assert.Equal(t, direct.Cell, routed.Cell, "routed date filter must count the same universe as a direct call")
}

func TestLocalVenue_ToDateFilterApplies(t *testing.T) {
	svc := NewAnalysisService(testConfig(), nil)
	venue := NewLocalVenue(svc)
	table := injectedTable(3000, 11)

	result, err := venue.Execute(context.Background(), ports.ExecRequest{
		Op: signal.OpComputeSignal,
		Params: map[string]interface{}{
			"drug":      "nifedipine",
			"reaction":  "gingival hyperplasia",
			"to_date":   "2025-06-30",
			"from_date": "2025-02-01",
		},
		Table: table,
	})
	require.NoError(t, err)
	routed, ok := result.(*signal.SignalMetrics)
	require.True(t, ok)

	window := &signal.Filters{
		FromDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		ToDate:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	direct, err := svc.ComputeSignal(context.Background(), table, "nifedipine", "gingival hyperplasia", window)
	require.NoError(t, err)
	assert.Equal(t, direct.Cell, routed.Cell)
	assert.Less(t, routed.Cell.Total(), table.Size())
}

func TestLocalVenue_MalformedDateFilterFails(t *testing.T) {
	svc := NewAnalysisService(testConfig(), nil)
	venue := NewLocalVenue(svc)
	table := injectedTable(100, 1)

	_, err := venue.Execute(context.Background(), ports.ExecRequest{
		Op: signal.OpComputeSignal,
		Params: map[string]interface{}{
			"drug":      "nifedipine",
			"reaction":  "gingival hyperplasia",
			"from_date": "01/10/2025",
		},
		Table: table,
	})
	require.Error(t, err, "an unparseable date must fail, never silently widen the universe")
	assert.Contains(t, err.Error(), "from_date")
}

func TestLocalVenue_MissingPairParamsFail(t *testing.T) {
	svc := NewAnalysisService(testConfig(), nil)
	venue := NewLocalVenue(svc)
	table := injectedTable(100, 1)

	_, err := venue.Execute(context.Background(), ports.ExecRequest{
		Op:     signal.OpComputeSignal,
		Params: map[string]interface{}{"drug": "aspirin"},
		Table:  table,
	})
	require.Error(t, err)
}

func TestDispatch_UnknownOperation(t *testing.T) {
	svc := NewAnalysisService(testConfig(), nil)
	venue := NewLocalVenue(svc)
	table := injectedTable(100, 1)

	_, err := venue.Execute(context.Background(), ports.ExecRequest{Op: "explode", Table: table})
	require.ErrorIs(t, err, core.ErrUnknownOperation)
	assert.False(t, venue.Supports("explode"))
}
