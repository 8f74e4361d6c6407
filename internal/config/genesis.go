package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"soulsdex/internal/model"
)

const (
	DefaultChainID  = 31337
	DefaultDeployer = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	// 1000 tokens with 18 decimals
	defaultSupply = "1000000000000000000000"
)

// TokenGenesis describes one token ledger at deployment.
type TokenGenesis struct {
	Address       string `yaml:"address"`
	Name          string `yaml:"name"`
	Symbol        string `yaml:"symbol"`
	Decimals      uint8  `yaml:"decimals"`
	InitialSupply string `yaml:"initial_supply"`
}

// GenesisMint is an owner mint performed right after deployment.
type GenesisMint struct {
	Token  string `yaml:"token"`
	To     string `yaml:"to"`
	Amount string `yaml:"amount"`
}

// Genesis is the initial deployment: two tokens owned by the deployer and
// one pool over them.
type Genesis struct {
	ChainID  uint64            `yaml:"chain_id"`
	Deployer string            `yaml:"deployer"`
	Pool     string            `yaml:"pool"`
	TokenA   TokenGenesis      `yaml:"token_a"`
	TokenB   TokenGenesis      `yaml:"token_b"`
	Mints    []GenesisMint     `yaml:"mints"`
	Aliases  map[string]string `yaml:"aliases"`
}

// DefaultGenesis mirrors a fresh local deployment: token A, token B and the
// pool are the deployer's first three contract creations.
func DefaultGenesis() Genesis {
	deployer := common.HexToAddress(DefaultDeployer)
	return Genesis{
		ChainID:  DefaultChainID,
		Deployer: deployer.Hex(),
		Pool:     crypto.CreateAddress(deployer, 2).Hex(),
		TokenA: TokenGenesis{
			Address:       crypto.CreateAddress(deployer, 0).Hex(),
			Name:          "Intelligence",
			Symbol:        "INT",
			Decimals:      18,
			InitialSupply: defaultSupply,
		},
		TokenB: TokenGenesis{
			Address:       crypto.CreateAddress(deployer, 1).Hex(),
			Name:          "Faith",
			Symbol:        "FTH",
			Decimals:      18,
			InitialSupply: defaultSupply,
		},
		Aliases: map[string]string{},
	}
}

// LoadGenesis reads a YAML genesis file. Fields left empty keep their
// defaults; an empty path returns DefaultGenesis.
func LoadGenesis(path string) (Genesis, error) {
	g := DefaultGenesis()
	if path == "" {
		return g, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, fmt.Errorf("read genesis: %w", err)
	}

	var file Genesis
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Genesis{}, fmt.Errorf("parse genesis: %w", err)
	}
	g.merge(file)
	if err := g.Validate(); err != nil {
		return Genesis{}, err
	}
	return g, nil
}

func (g *Genesis) merge(o Genesis) {
	if o.ChainID != 0 {
		g.ChainID = o.ChainID
	}
	if o.Deployer != "" && !strings.EqualFold(o.Deployer, g.Deployer) {
		// contract addresses follow the deployer unless given explicitly
		g.Deployer = o.Deployer
		deployer := common.HexToAddress(o.Deployer)
		g.TokenA.Address = crypto.CreateAddress(deployer, 0).Hex()
		g.TokenB.Address = crypto.CreateAddress(deployer, 1).Hex()
		g.Pool = crypto.CreateAddress(deployer, 2).Hex()
	}
	if o.Pool != "" {
		g.Pool = o.Pool
	}
	g.TokenA.merge(o.TokenA)
	g.TokenB.merge(o.TokenB)
	g.Mints = append(g.Mints, o.Mints...)
	for k, v := range o.Aliases {
		g.Aliases[k] = v
	}
}

func (t *TokenGenesis) merge(o TokenGenesis) {
	if o.Address != "" {
		t.Address = o.Address
	}
	if o.Name != "" {
		t.Name = o.Name
	}
	if o.Symbol != "" {
		t.Symbol = o.Symbol
	}
	if o.Decimals != 0 {
		t.Decimals = o.Decimals
	}
	if o.InitialSupply != "" {
		t.InitialSupply = o.InitialSupply
	}
}

// ResolveGenesis loads path and applies the deployment overrides.
func ResolveGenesis(path string, d Deployment) (Genesis, error) {
	g, err := LoadGenesis(path)
	if err != nil {
		return Genesis{}, err
	}
	g = g.WithAddresses(d.TokenAAddress, d.TokenBAddress, d.PoolAddress)
	if err := g.Validate(); err != nil {
		return Genesis{}, err
	}
	return g, nil
}

// WithAddresses overrides deployed addresses; empty values are ignored.
func (g Genesis) WithAddresses(tokenA, tokenB, pool string) Genesis {
	if tokenA != "" {
		g.TokenA.Address = tokenA
	}
	if tokenB != "" {
		g.TokenB.Address = tokenB
	}
	if pool != "" {
		g.Pool = pool
	}
	return g
}

// Validate checks addresses and amounts.
func (g Genesis) Validate() error {
	for name, addr := range map[string]string{
		"deployer": g.Deployer,
		"pool":     g.Pool,
		"token_a":  g.TokenA.Address,
		"token_b":  g.TokenB.Address,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("genesis %s: invalid address %q", name, addr)
		}
	}
	if strings.EqualFold(g.TokenA.Address, g.TokenB.Address) {
		return fmt.Errorf("genesis: token_a and token_b must differ")
	}
	if strings.EqualFold(g.TokenA.Symbol, g.TokenB.Symbol) {
		return fmt.Errorf("genesis: token symbols must differ")
	}
	for _, tok := range []TokenGenesis{g.TokenA, g.TokenB} {
		if _, err := ParseAmount(tok.InitialSupply); err != nil {
			return fmt.Errorf("genesis %s initial_supply: %w", tok.Symbol, err)
		}
	}
	for i, m := range g.Mints {
		if m.Token == "" || m.To == "" {
			return fmt.Errorf("genesis mint %d: token and to are required", i)
		}
		if _, err := ParseAmount(m.Amount); err != nil {
			return fmt.Errorf("genesis mint %d: %w", i, err)
		}
	}
	return nil
}

// TokenMetas returns display metadata for both tokens.
func (g Genesis) TokenMetas() []model.TokenMeta {
	out := make([]model.TokenMeta, 0, 2)
	for _, tok := range []TokenGenesis{g.TokenA, g.TokenB} {
		out = append(out, model.TokenMeta{
			Address:  common.HexToAddress(tok.Address).Hex(),
			Decimals: tok.Decimals,
			Symbol:   tok.Symbol,
			Name:     tok.Name,
		})
	}
	return out
}

// PoolMeta returns the pool's token pair.
func (g Genesis) PoolMeta() model.PoolMeta {
	return model.PoolMeta{
		TokenA:  common.HexToAddress(g.TokenA.Address).Hex(),
		TokenB:  common.HexToAddress(g.TokenB.Address).Hex(),
		SymbolA: g.TokenA.Symbol,
		SymbolB: g.TokenB.Symbol,
	}
}

// ParseAmount parses a base-10 unsigned 256-bit amount. Empty means zero.
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return v, nil
}
