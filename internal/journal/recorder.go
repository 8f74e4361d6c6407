package journal

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"soulsdex/internal/dex"
	"soulsdex/internal/model"
	"soulsdex/internal/token"
)

type scopeKey struct{}

type opScope struct {
	mu       sync.Mutex
	sequence uint64
	opID     string
	ts       uint64
	records  []model.LogRecord
	errs     []error
}

// Recorder collects the events emitted while one operation runs. Events
// are attributed to the operation through the context.
type Recorder struct {
	chainID uint64
	enc     *Encoder
	logger  *zap.Logger
}

func NewRecorder(chainID uint64, logger *zap.Logger) (*Recorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	enc, err := NewEncoder()
	if err != nil {
		return nil, err
	}
	return &Recorder{chainID: chainID, enc: enc, logger: logger}, nil
}

// Begin opens a recording scope for one operation.
func (r *Recorder) Begin(ctx context.Context, sequence uint64, opID string, ts uint64) context.Context {
	return context.WithValue(ctx, scopeKey{}, &opScope{sequence: sequence, opID: opID, ts: ts})
}

// End closes the scope opened by Begin. Records of a failed operation are
// dropped, as a reverted transaction leaves no logs.
func (r *Recorder) End(ctx context.Context, keep bool) ([]model.LogRecord, error) {
	scope, ok := ctx.Value(scopeKey{}).(*opScope)
	if !ok {
		return nil, errors.New("no recording scope in context")
	}
	scope.mu.Lock()
	defer scope.mu.Unlock()
	if err := errors.Join(scope.errs...); err != nil {
		return nil, err
	}
	if !keep {
		return nil, nil
	}

	recordedAt := time.Now().UTC().Format(time.RFC3339Nano)
	out := make([]model.LogRecord, 0, len(scope.records))
	for i, rec := range scope.records {
		rec.ChainID = r.chainID
		rec.Sequence = scope.sequence
		rec.OpID = scope.opID
		rec.LogIndex = uint64(i)
		rec.Timestamp = scope.ts
		rec.RecordedAt = recordedAt
		out = append(out, rec)
	}
	return out, nil
}

// TokenListener returns a listener to subscribe on each ledger.
func (r *Recorder) TokenListener() token.Listener {
	return func(ctx context.Context, ev token.Event) {
		r.record(ctx, ev.Kind.String(), func() (model.LogRecord, error) { return r.enc.EncodeToken(ev) })
	}
}

// PoolListener returns a listener to subscribe on the pool.
func (r *Recorder) PoolListener() dex.Listener {
	return func(ctx context.Context, ev dex.Event) {
		r.record(ctx, ev.Kind.String(), func() (model.LogRecord, error) { return r.enc.EncodePool(ev) })
	}
}

func (r *Recorder) record(ctx context.Context, name string, encode func() (model.LogRecord, error)) {
	scope, ok := ctx.Value(scopeKey{}).(*opScope)
	if !ok {
		r.logger.Debug("event outside recording scope", zap.String("event", name))
		return
	}
	rec, err := encode()
	scope.mu.Lock()
	defer scope.mu.Unlock()
	if err != nil {
		scope.errs = append(scope.errs, err)
		return
	}
	scope.records = append(scope.records, rec)
}
