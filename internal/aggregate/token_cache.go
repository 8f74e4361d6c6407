package aggregate

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"soulsdex/internal/model"
)

// TokenDecimalsCache maps token addresses to their decimals.
type TokenDecimalsCache struct {
	mu   sync.RWMutex
	data map[common.Address]uint8
}

func NewTokenDecimalsCache() *TokenDecimalsCache {
	return &TokenDecimalsCache{data: make(map[common.Address]uint8)}
}

// Seed loads decimals for every known token.
func (c *TokenDecimalsCache) Seed(tokens []model.TokenMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tok := range tokens {
		if !common.IsHexAddress(tok.Address) {
			continue
		}
		c.data[common.HexToAddress(tok.Address)] = tok.Decimals
	}
}

func (c *TokenDecimalsCache) Get(address common.Address) (uint8, bool) {
	c.mu.RLock()
	decimals, ok := c.data[address]
	c.mu.RUnlock()
	return decimals, ok
}

func (c *TokenDecimalsCache) Set(address common.Address, decimals uint8) {
	c.mu.Lock()
	c.data[address] = decimals
	c.mu.Unlock()
}
