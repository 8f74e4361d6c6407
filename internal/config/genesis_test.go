package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultGenesisAddresses(t *testing.T) {
	g := DefaultGenesis()
	if g.TokenA.Address != "0x5FbDB2315678afecb367f032d93F642f64180aa3" {
		t.Fatalf("token a = %s", g.TokenA.Address)
	}
	if g.TokenB.Address != "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512" {
		t.Fatalf("token b = %s", g.TokenB.Address)
	}
	if g.Pool != "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0" {
		t.Fatalf("pool = %s", g.Pool)
	}
	if g.TokenA.Symbol != "INT" || g.TokenB.Symbol != "FTH" || g.ChainID != DefaultChainID {
		t.Fatalf("unexpected defaults: %+v", g)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("default genesis invalid: %v", err)
	}
}

func TestLoadGenesisMergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	content := `
chain_id: 1337
token_b:
  symbol: GOLD
  decimals: 6
  initial_supply: "5000000"
mints:
  - token: A
    to: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
    amount: "100"
aliases:
  alice: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g, err := LoadGenesis(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if g.ChainID != 1337 || g.TokenB.Symbol != "GOLD" || g.TokenB.Decimals != 6 {
		t.Fatalf("file values not applied: %+v", g)
	}
	if g.TokenB.Name != "Faith" || g.TokenA.Symbol != "INT" {
		t.Fatalf("defaults lost: %+v", g)
	}
	if len(g.Mints) != 1 || g.Aliases["alice"] == "" {
		t.Fatalf("mints/aliases: %+v %+v", g.Mints, g.Aliases)
	}

	metas := g.TokenMetas()
	if len(metas) != 2 || metas[1].Decimals != 6 {
		t.Fatalf("metas = %+v", metas)
	}
	if meta := g.PoolMeta(); meta.SymbolB != "GOLD" || meta.TokenA != g.TokenA.Address {
		t.Fatalf("pool meta = %+v", meta)
	}
}

func TestLoadGenesisDeployerMovesAddresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	if err := os.WriteFile(path, []byte("deployer: \"0x70997970C51812dc3A010C7d01b50e0d17dc79C8\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	g, err := LoadGenesis(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if g.TokenA.Address == DefaultGenesis().TokenA.Address {
		t.Fatalf("token address should follow the deployer")
	}
}

func TestGenesisValidate(t *testing.T) {
	g := DefaultGenesis()
	g.TokenB.Address = g.TokenA.Address
	if err := g.Validate(); err == nil {
		t.Fatalf("expected duplicate token error")
	}

	g = DefaultGenesis()
	g.Mints = []GenesisMint{{Token: "A", To: "0x1", Amount: "-5"}}
	if err := g.Validate(); err == nil {
		t.Fatalf("expected bad mint amount error")
	}

	g = DefaultGenesis().WithAddresses("", "", "bogus")
	if err := g.Validate(); err == nil {
		t.Fatalf("expected bad pool address error")
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("1000000000000000000000")
	if err != nil || v.Dec() != "1000000000000000000000" {
		t.Fatalf("parse = %v %v", v, err)
	}
	if v, err := ParseAmount(""); err != nil || !v.IsZero() {
		t.Fatalf("empty should be zero")
	}
	if _, err := ParseAmount("12abc"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639936"); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestResolveGenesisAppliesDeployment(t *testing.T) {
	g, err := ResolveGenesis("", Deployment{PoolAddress: "0x00000000000000000000000000000000000000Cc"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if g.Pool != "0x00000000000000000000000000000000000000Cc" {
		t.Fatalf("pool = %s", g.Pool)
	}
	if g.TokenA.Address != DefaultGenesis().TokenA.Address {
		t.Fatalf("token a should keep its default")
	}
	if _, err := ResolveGenesis("", Deployment{TokenBAddress: "nope"}); err == nil {
		t.Fatalf("expected invalid override to fail")
	}
}
