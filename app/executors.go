package app

import (
	"context"
	"fmt"
	"time"

	"govigil/domain/core"
	"govigil/domain/signal"
	"govigil/ports"
)

// dateLayout is the wire format for date-valued params
const dateLayout = "2006-01-02"

// LocalVenue runs operations sequentially with cooperative cancellation,
// matching the constrained client-side runtime. It implements ports.Executor.
type LocalVenue struct {
	svc *AnalysisService
}

// NewLocalVenue wraps the service as the local executor
func NewLocalVenue(svc *AnalysisService) *LocalVenue {
	return &LocalVenue{svc: svc}
}

// Supports reports true for every operation: the local venue is the universal
// fallback.
func (v *LocalVenue) Supports(op signal.Operation) bool {
	switch op {
	case signal.OpComputeSignal, signal.OpRankCandidates, signal.OpClusterSignal,
		signal.OpFindDuplicates, signal.OpTopSignals:
		return true
	}
	return false
}

// Execute dispatches one request to the service on the sequential path
func (v *LocalVenue) Execute(ctx context.Context, req ports.ExecRequest) (interface{}, error) {
	return dispatch(ctx, v.svc, req, false)
}

// ServerVenue runs operations on the server worker pool, parallelizing the
// lazy top-K pipeline. It implements ports.RemoteExecutor; in-process
// deployments use it directly, split deployments put a transport behind the
// same interface.
type ServerVenue struct {
	svc *AnalysisService
}

// NewServerVenue wraps the service as the remote executor
func NewServerVenue(svc *AnalysisService) *ServerVenue {
	return &ServerVenue{svc: svc}
}

// Supports mirrors the local venue's operation set
func (v *ServerVenue) Supports(op signal.Operation) bool {
	return (&LocalVenue{}).Supports(op)
}

// Available reports whether the pool can take work; the in-process pool
// always can.
func (v *ServerVenue) Available(ctx context.Context) bool { return true }

// Execute dispatches one request to the service on the parallel path
func (v *ServerVenue) Execute(ctx context.Context, req ports.ExecRequest) (interface{}, error) {
	return dispatch(ctx, v.svc, req, true)
}

// dispatch maps the request's operation and params onto a service call
func dispatch(ctx context.Context, svc *AnalysisService, req ports.ExecRequest, parallel bool) (interface{}, error) {
	switch req.Op {
	case signal.OpComputeSignal:
		drug, reaction, err := pairParams(req.Params)
		if err != nil {
			return nil, err
		}
		filters, err := filtersParam(req.Params)
		if err != nil {
			return nil, err
		}
		return svc.ComputeSignal(ctx, req.Table, drug, reaction, filters)

	case signal.OpRankCandidates:
		return svc.RankCandidates(ctx, req.Table, intParam(req.Params, "top_k", 0))

	case signal.OpClusterSignal:
		drug, reaction, err := pairParams(req.Params)
		if err != nil {
			return nil, err
		}
		return svc.ClusterSignal(ctx, req.Table, drug, reaction, intParam(req.Params, "k", 0))

	case signal.OpFindDuplicates:
		mode := signal.DetectionMode(strParam(req.Params, "mode", string(signal.ModeExact)))
		return svc.FindDuplicates(ctx, req.Table, mode, floatParam(req.Params, "threshold", 0))

	case signal.OpTopSignals:
		return svc.TopSignals(ctx, req.Table, intParam(req.Params, "top_k", 0), parallel)

	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownOperation, req.Op)
	}
}

func pairParams(params map[string]interface{}) (string, string, error) {
	drug := strParam(params, "drug", "")
	reaction := strParam(params, "reaction", "")
	if drug == "" || reaction == "" {
		return "", "", fmt.Errorf("%w: drug and reaction are required", core.ErrInsufficientData)
	}
	return drug, reaction, nil
}

// filtersParam assembles the optional demographic and date filters. A present
// but unparseable filter is an error, never a silent fallback to the
// unfiltered universe.
func filtersParam(params map[string]interface{}) (*signal.Filters, error) {
	if params == nil {
		return nil, nil
	}
	from, err := dateParam(params, "from_date")
	if err != nil {
		return nil, err
	}
	to, err := dateParam(params, "to_date")
	if err != nil {
		return nil, err
	}
	f := &signal.Filters{
		MinAge:      floatParam(params, "min_age", 0),
		MaxAge:      floatParam(params, "max_age", 0),
		Sex:         signal.Sex(strParam(params, "sex", "")),
		Country:     strParam(params, "country", ""),
		FromDate:    from,
		ToDate:      to,
		OnlySerious: boolParam(params, "only_serious", false),
	}
	if *f == (signal.Filters{}) {
		return nil, nil
	}
	return f, nil
}

func dateParam(params map[string]interface{}, key string) (time.Time, error) {
	switch v := params[key].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid %s %q: want YYYY-MM-DD", key, v)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("invalid %s: want a YYYY-MM-DD string", key)
	}
}

func strParam(params map[string]interface{}, key, fallback string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intParam(params map[string]interface{}, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

func floatParam(params map[string]interface{}, key string, fallback float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

func boolParam(params map[string]interface{}, key string, fallback bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return fallback
}
