package ports

import (
	"context"

	"govigil/domain/signal"
)

// ExecRequest is one routable analysis request. The table is a read-only
// snapshot; its version feeds the fingerprint.
type ExecRequest struct {
	Op     signal.Operation
	Params map[string]interface{}
	Table  *signal.CaseTable
}

// Executor runs an operation on one venue. The local venue is a constrained
// cooperative runtime: long loops must yield by honoring ctx cancellation
// between chunks. The remote venue may parallelize across candidates.
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) (interface{}, error)
	Supports(op signal.Operation) bool
}

// RemoteExecutor additionally exposes an availability probe; an unavailable
// remote triggers local fallback.
type RemoteExecutor interface {
	Executor
	Available(ctx context.Context) bool
}
