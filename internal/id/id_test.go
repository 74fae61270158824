package id

import "testing"

func TestParseChainVariants(t *testing.T) {
	for _, input := range []string{"base-sepolia", "BaseSepolia", "84532", "eip155:84532"} {
		chain, err := ParseChain(input)
		if err != nil {
			t.Fatalf("ParseChain(%s) failed: %v", input, err)
		}
		if chain.CAIP2 != "eip155:84532" {
			t.Fatalf("unexpected CAIP2: %s", chain.CAIP2)
		}
	}
}

func TestParseChainRejectsUnknown(t *testing.T) {
	if _, err := ParseChain("ethereum"); err == nil {
		t.Fatal("expected unsupported chain error")
	}
	if _, err := ParseChain(" "); err == nil {
		t.Fatal("expected missing chain error")
	}
}

func TestUSDCAsset(t *testing.T) {
	if USDC.Decimals != 6 {
		t.Fatalf("unexpected USDC decimals: %d", USDC.Decimals)
	}
	if USDC.ChainID != BaseSepolia.CAIP2 {
		t.Fatalf("unexpected USDC chain: %s", USDC.ChainID)
	}
	if !BaseSepolia.ChainIDMatches(84532) {
		t.Fatal("expected chain id match")
	}
}
