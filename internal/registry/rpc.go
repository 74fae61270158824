package registry

import (
	"fmt"
	"strings"
)

// Canonical public RPC endpoint by chain ID.
// Used whenever the configuration does not set chain.rpc_url.
var defaultRPCByChainID = map[int64]string{
	84532: "https://sepolia.base.org",
}

func DefaultRPCURL(chainID int64) (string, bool) {
	value, ok := defaultRPCByChainID[chainID]
	return value, ok
}

func ResolveRPCURL(override string, chainID int64) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	if value, ok := DefaultRPCURL(chainID); ok {
		return value, nil
	}
	return "", fmt.Errorf("no default rpc configured for chain id %d; set chain.rpc_url", chainID)
}
