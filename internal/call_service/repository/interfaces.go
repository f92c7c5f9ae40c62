package repository

import (
	"context"

	"github.com/carelinkhq/medcall/internal/call_service/domain"
)

// CallRepository persists call records. Upsert is the only write path: it
// merges the supplied fields into the record keyed by call SID, creating it
// if absent, in one atomic statement. The orchestrator is the sole writer.
type CallRepository interface {
	Upsert(ctx context.Context, callSID string, update domain.CallUpdate) (*domain.CallRecord, error)
	GetBySID(ctx context.Context, callSID string) (*domain.CallRecord, error)
	List(ctx context.Context) ([]domain.CallRecord, error)
}
