package aggregate

import (
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"soulsdex/internal/model"
)

const (
	testPool   = "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
	testTokenA = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
	testTokenB = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
)

type memoryStore struct {
	pools   []model.Pool
	windows []model.PoolWindowMetrics
}

func (m *memoryStore) UpsertPools(_ context.Context, pools []model.Pool) error {
	m.pools = append(m.pools, pools...)
	return nil
}

func (m *memoryStore) UpsertWindowMetrics(_ context.Context, metrics []model.PoolWindowMetrics) error {
	m.windows = append(m.windows, metrics...)
	return nil
}

func poolEvent(seq, ts uint64, name string, decoded interface{}) model.TypedEvent {
	return model.TypedEvent{
		ChainID:   31337,
		Sequence:  seq,
		Address:   testPool,
		EventName: name,
		Timestamp: ts,
		Decoded:   decoded,
		PoolMeta:  &model.PoolMeta{TokenA: testTokenA, TokenB: testTokenB},
	}
}

func writeEvents(t *testing.T, events []model.TypedEvent) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typed.jsonl")
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	return path
}

func TestAggregatorWindows(t *testing.T) {
	events := []model.TypedEvent{
		poolEvent(1, 1000, "LiquidityAdded", model.LiquidityEventData{Provider: "0x1", AmountA: "5000", AmountB: "5000", Liquidity: "10000"}),
		poolEvent(1, 1000, "Sync", model.SyncEventData{ReserveA: "5000", ReserveB: "5000"}),
		poolEvent(2, 1010, "Swap", model.SwapEventData{Trader: "0x2", TokenIn: testTokenA, AmountIn: "100", AmountOut: "98"}),
		poolEvent(2, 1010, "Sync", model.SyncEventData{ReserveA: "5100", ReserveB: "4902"}),
		{ChainID: 31337, Sequence: 2, Address: testTokenA, EventName: "Transfer", Timestamp: 1010,
			Decoded: model.TransferEventData{From: "0x2", To: testPool, Value: "100"}},
		poolEvent(3, 1300, "Swap", model.SwapEventData{Trader: "0x2", TokenIn: testTokenB, AmountIn: "50", AmountOut: "48"}),
	}
	input := writeEvents(t, events)

	decimals := NewTokenDecimalsCache()
	decimals.Seed([]model.TokenMeta{{Address: testTokenA}, {Address: testTokenB}})
	store := &memoryStore{}
	statePath := filepath.Join(t.TempDir(), "state.json")
	state := &FileStateStore{Path: statePath, WindowSeconds: 300}

	agg := NewAggregator(Config{WindowSeconds: 300, BatchSize: 10, StateStore: state}, store, decimals, nil)
	if err := agg.Run(context.Background(), input); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(store.windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(store.windows))
	}
	first, second := store.windows[0], store.windows[1]
	if first.WindowStart.Unix() != 900 || second.WindowStart.Unix() != 1200 {
		t.Fatalf("window starts: %d %d", first.WindowStart.Unix(), second.WindowStart.Unix())
	}
	if first.SwapCount != 1 || first.VolumeA != "100" || first.VolumeB != "0" || first.DepositCount != 1 {
		t.Fatalf("first window mismatch: %+v", first)
	}
	if first.LiquidityMinted != "10000" || first.FirstSequence != 1 || first.LastSequence != 2 {
		t.Fatalf("first window liquidity mismatch: %+v", first)
	}
	if first.ReserveA == nil || *first.ReserveA != "5100" || *first.ReserveB != "4902" {
		t.Fatalf("first window reserves mismatch: %+v", first)
	}
	if first.PriceAB == nil || *first.PriceAB != "0.961176470588235294" {
		t.Fatalf("price mismatch: %v", first.PriceAB)
	}
	if second.SwapCount != 1 || second.VolumeB != "50" {
		t.Fatalf("second window mismatch: %+v", second)
	}
	if second.ReserveA == nil || *second.ReserveA != "5100" {
		t.Fatalf("reserves should carry into the next window: %+v", second)
	}

	if len(store.pools) != 1 || store.pools[0].TokenA != testTokenA || store.pools[0].FirstSeenSeq != 1 {
		t.Fatalf("pools mismatch: %+v", store.pools)
	}

	last, ok, err := state.Load(context.Background())
	if err != nil || !ok || last != 1300 {
		t.Fatalf("state = %d %v %v", last, ok, err)
	}

	// a second run resumes after the saved timestamp
	again := &memoryStore{}
	agg = NewAggregator(Config{WindowSeconds: 300, StateStore: state}, again, decimals, nil)
	if err := agg.Run(context.Background(), input); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(again.windows) != 0 {
		t.Fatalf("expected nothing new, got %d windows", len(again.windows))
	}
}

func TestFileStateStoreIgnoresOtherWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()
	if err := (&FileStateStore{Path: path, WindowSeconds: 60}).Save(ctx, 42); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, err := (&FileStateStore{Path: path, WindowSeconds: 300}).Load(ctx); err != nil || ok {
		t.Fatalf("expected state for another window to be ignored: %v %v", ok, err)
	}
	last, ok, err := (&FileStateStore{Path: path, WindowSeconds: 60}).Load(ctx)
	if err != nil || !ok || last != 42 {
		t.Fatalf("load = %d %v %v", last, ok, err)
	}
}

func TestFormatTokenAmount(t *testing.T) {
	cases := map[string]struct {
		value    *big.Int
		decimals uint8
	}{
		"1.500000000000000000": {value: new(big.Int).Mul(big.NewInt(15), new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil)), decimals: 18},
		"12.34":                {value: big.NewInt(1234), decimals: 2},
		"-0.5":                 {value: big.NewInt(-5), decimals: 1},
		"77":                   {value: big.NewInt(77), decimals: 0},
	}
	for want, tc := range cases {
		if got := formatTokenAmount(tc.value, tc.decimals); got != want {
			t.Fatalf("format %s/%d = %s, want %s", tc.value, tc.decimals, got, want)
		}
	}
}

func TestComputeSpotPriceAdjustsDecimals(t *testing.T) {
	// 1 A (18 decimals) against 2 B (6 decimals)
	reserveA := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	reserveB := big.NewInt(2_000_000)
	if got := computeSpotPrice(reserveA, reserveB, 18, 6); got != "2.000000000000000000" {
		t.Fatalf("price = %s", got)
	}
	if got := computeSpotPrice(big.NewInt(0), reserveB, 18, 6); got != "" {
		t.Fatalf("empty pool should have no price, got %s", got)
	}
}
