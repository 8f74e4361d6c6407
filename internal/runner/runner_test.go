package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"soulsdex/internal/config"
	"soulsdex/internal/engine"
	"soulsdex/internal/model"
)

const opsFixture = `# seed the pool
{"op":"approve","caller":"alice","token":"A","spender":"pool","amount":"100000"}
{"op":"approve","caller":"alice","token":"B","spender":"pool","amount":"100000"}
{not json
{"op":"addLiquidity","caller":"alice","amount_a":"5000","amount_b":"5000","ts":1000}
{"op":"swap","caller":"alice","token_in":"A","amount_in":"100","ts":1010}
{"op":"swap","caller":"alice","token_in":"0x0000000000000000000000000000000000000001","amount_in":"1"}
`

type memoryStorage struct {
	mu        sync.Mutex
	logs      []model.LogRecord
	results   []model.OpResult
	failFirst int
}

func (m *memoryStorage) PutLogBatch(_ context.Context, logs []model.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFirst > 0 {
		m.failFirst--
		return errors.New("sink unavailable")
	}
	m.logs = append(m.logs, logs...)
	return nil
}

func (m *memoryStorage) PutResultBatch(_ context.Context, results []model.OpResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, results...)
	return nil
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	g := config.DefaultGenesis()
	g.Aliases = map[string]string{"alice": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"}
	g.Mints = []config.GenesisMint{
		{Token: "A", To: "alice", Amount: "10000"},
		{Token: "B", To: "alice", Amount: "10000"},
	}
	e, err := engine.FromGenesis(context.Background(), g, nil, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return e
}

func writeOps(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "ops.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write ops: %v", err)
	}
	return path
}

func TestRunnerAppliesAll(t *testing.T) {
	dir := t.TempDir()
	cfg := RunConfig{
		OpsPath:           writeOps(t, dir, opsFixture),
		BatchSize:         2,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
	}
	store := &memoryStorage{}
	eng := newTestEngine(t)

	sum, err := NewRunner(cfg, eng, store, nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := Summary{Applied: 5, Failed: 1, Malformed: 1, Logs: 10}
	if sum != want {
		t.Fatalf("summary = %+v, want %+v", sum, want)
	}
	if len(store.results) != 5 || len(store.logs) != 10 {
		t.Fatalf("stored %d results, %d logs", len(store.results), len(store.logs))
	}
	for i, res := range store.results {
		if res.Sequence != uint64(i+1) {
			t.Fatalf("result %d has sequence %d", i, res.Sequence)
		}
	}
	if got := store.results[3].Outputs["amount_out"]; got != "98" {
		t.Fatalf("swap output = %q", got)
	}
	if store.results[4].ErrorKind != "InvalidToken" {
		t.Fatalf("last result = %+v", store.results[4])
	}

	cp, ok, err := NewCheckpointStore(cfg.CheckpointPath, true).Load()
	if err != nil || !ok || cp.LastSequence != 5 {
		t.Fatalf("checkpoint = %+v %v %v", cp, ok, err)
	}
	if err := eng.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cfg := RunConfig{
		OpsPath:           writeOps(t, dir, opsFixture),
		BatchSize:         10,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
	}
	if err := NewCheckpointStore(cfg.CheckpointPath, true).Save(3, cfg.OpsPath); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	store := &memoryStorage{}
	eng := newTestEngine(t)
	sum, err := NewRunner(cfg, eng, store, nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Replayed != 3 || sum.Applied != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(store.results) != 2 || store.results[0].Sequence != 4 {
		t.Fatalf("results = %+v", store.results)
	}
	reserveA, reserveB := eng.Pool().GetReserves()
	if reserveA.Uint64() != 5100 || reserveB.Uint64() != 4902 {
		t.Fatalf("reserves = %s/%s", reserveA.Dec(), reserveB.Dec())
	}

	// a finished run has nothing left to do
	again := &memoryStorage{}
	if _, err := NewRunner(cfg, newTestEngine(t), again, nil, nil).Run(context.Background()); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(again.results) != 0 {
		t.Fatalf("rerun wrote %d results", len(again.results))
	}
}

func TestRunnerStopOnError(t *testing.T) {
	dir := t.TempDir()
	content := strings.Replace(opsFixture, "{not json\n", "", 1)
	cfg := RunConfig{
		OpsPath:           writeOps(t, dir, content),
		BatchSize:         10,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
		StopOnError:       true,
	}
	store := &memoryStorage{}
	_, err := NewRunner(cfg, newTestEngine(t), store, nil, nil).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "operation 5") {
		t.Fatalf("expected failure at operation 5, got %v", err)
	}
	if len(store.results) != 5 {
		t.Fatalf("results up to the failure should be written, got %d", len(store.results))
	}
	cp, _, _ := NewCheckpointStore(cfg.CheckpointPath, true).Load()
	if cp.LastSequence != 5 {
		t.Fatalf("checkpoint = %d", cp.LastSequence)
	}
}

func TestRunnerStopsOnMalformedLine(t *testing.T) {
	dir := t.TempDir()
	cfg := RunConfig{OpsPath: writeOps(t, dir, opsFixture), BatchSize: 10, StopOnError: true}
	store := &memoryStorage{}
	_, err := NewRunner(cfg, newTestEngine(t), store, nil, nil).Run(context.Background())
	var lineErr LineError
	if !errors.As(err, &lineErr) || lineErr.Line != 4 {
		t.Fatalf("expected line 4 error, got %v", err)
	}
	if len(store.results) != 0 {
		t.Fatalf("nothing should be written")
	}
}

func TestRunnerRetriesSink(t *testing.T) {
	dir := t.TempDir()
	cfg := RunConfig{
		OpsPath:      writeOps(t, dir, opsFixture),
		BatchSize:    10,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}
	store := &memoryStorage{failFirst: 2}
	if _, err := NewRunner(cfg, newTestEngine(t), store, nil, nil).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.logs) != 10 {
		t.Fatalf("logs = %d", len(store.logs))
	}

	store = &memoryStorage{failFirst: 5}
	cfg.MaxRetries = 1
	if _, err := NewRunner(cfg, newTestEngine(t), store, nil, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected sink failure")
	}
}

func TestRunnerRejectsCheckpointBeyondOps(t *testing.T) {
	dir := t.TempDir()
	cfg := RunConfig{
		OpsPath:           writeOps(t, dir, opsFixture),
		BatchSize:         10,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
	}
	if err := NewCheckpointStore(cfg.CheckpointPath, true).Save(99, cfg.OpsPath); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := NewRunner(cfg, newTestEngine(t), &memoryStorage{}, nil, nil).Run(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunnerRejectsCheckpointForOtherOpsFile(t *testing.T) {
	dir := t.TempDir()
	cfg := RunConfig{
		OpsPath:           writeOps(t, dir, opsFixture),
		BatchSize:         10,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
	}
	if err := NewCheckpointStore(cfg.CheckpointPath, true).Save(3, filepath.Join(dir, "other.jsonl")); err != nil {
		t.Fatalf("save: %v", err)
	}

	store := &memoryStorage{}
	eng := newTestEngine(t)
	_, err := NewRunner(cfg, eng, store, nil, nil).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "other.jsonl") {
		t.Fatalf("expected checkpoint mismatch error, got %v", err)
	}
	if eng.Sequence() != 0 || len(store.results) != 0 {
		t.Fatalf("nothing should be applied, sequence %d results %d", eng.Sequence(), len(store.results))
	}

	cfg.ResetCheckpoint = true
	sum, err := NewRunner(cfg, newTestEngine(t), store, nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("run with reset: %v", err)
	}
	if sum.Replayed != 0 || sum.Applied != 5 {
		t.Fatalf("summary = %+v", sum)
	}
	cp, ok, err := NewCheckpointStore(cfg.CheckpointPath, true).Load()
	if err != nil || !ok {
		t.Fatalf("load checkpoint: ok=%v err=%v", ok, err)
	}
	if cp.OpsPath != cfg.OpsPath || cp.LastSequence != 5 {
		t.Fatalf("checkpoint = %+v", cp)
	}
}

func TestReadOperations(t *testing.T) {
	ops, bad, err := ReadOperations(strings.NewReader(opsFixture + "{}\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(ops) != 5 {
		t.Fatalf("ops = %d", len(ops))
	}
	if len(bad) != 2 || bad[0].Line != 4 || bad[1].Line != 8 {
		t.Fatalf("bad lines = %+v", bad)
	}
	want := model.Operation{Op: "addLiquidity", Caller: "alice", AmountA: "5000", AmountB: "5000", Timestamp: 1000}
	if !reflect.DeepEqual(ops[2], want) {
		t.Fatalf("op mismatch: %+v", ops[2])
	}
}

func TestWithRetryStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, 5, time.Hour, func(context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	}, nil)
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []OpRange{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := SplitRange(5, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []OpRange{{From: 5, To: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
