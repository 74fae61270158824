package id

import (
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/lendkit/internal/errors"
)

type Chain struct {
	Name       string
	Slug       string
	CAIP2      string
	EVMChainID int64
}

type Asset struct {
	ChainID  string
	AssetID  string
	Address  string
	Symbol   string
	Decimals int
}

// BaseSepolia is the only network the agent operates on.
var BaseSepolia = Chain{Name: "Base Sepolia", Slug: "base-sepolia", CAIP2: "eip155:84532", EVMChainID: 84532}

// USDC is Circle's test USDC deployment on Base Sepolia, the reserve used in the Aave pool.
var USDC = Asset{
	ChainID:  BaseSepolia.CAIP2,
	AssetID:  BaseSepolia.CAIP2 + "/erc20:0x036cbd53842c5426634e7929541ec2318f3dcf7e",
	Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	Symbol:   "USDC",
	Decimals: 6,
}

var chainBySlug = map[string]Chain{
	"base-sepolia": BaseSepolia,
	"basesepolia":  BaseSepolia,
	"84532":        BaseSepolia,
	"eip155:84532": BaseSepolia,
}

// ParseChain resolves a network identifier. Only Base Sepolia aliases are known.
func ParseChain(input string) (Chain, error) {
	norm := strings.ToLower(strings.TrimSpace(input))
	if norm == "" {
		return Chain{}, clierr.New(clierr.CodeUsage, "chain is required")
	}
	chain, ok := chainBySlug[norm]
	if !ok {
		return Chain{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported chain: %s", input))
	}
	return chain, nil
}

// ChainIDMatches reports whether a numeric chain id belongs to the chain.
func (c Chain) ChainIDMatches(chainID int64) bool {
	return c.EVMChainID == chainID
}
