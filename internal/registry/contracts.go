package registry

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/lendkit/internal/id"
)

// Aave V3 deployment on Base Sepolia. These are fixed at build time.
const (
	AavePoolAddress = "0x07eA79F68B2B3df564D0A34F8e19D9B1e339814b"
	USDCAddress     = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
)

// Aave rate modes and referral code used for every pool call.
const (
	VariableRateMode int64  = 2
	NoReferralCode   uint16 = 0
)

// Scaling of getUserAccountData fields.
const (
	BaseCurrencyDecimals = 8
	PercentageDecimals   = 2
	HealthFactorDecimals = 18
)

const ExplorerTxBaseURL = "https://sepolia.basescan.org/tx/"

func AavePool() common.Address {
	return common.HexToAddress(AavePoolAddress)
}

func USDC() common.Address {
	return common.HexToAddress(USDCAddress)
}

// Network returns the chain every contract above lives on.
func Network() id.Chain {
	return id.BaseSepolia
}

// NetworkID is the wallet-platform identifier for the network.
func NetworkID() string {
	return id.BaseSepolia.Slug
}

func ExplorerTxURL(txHash string) string {
	return ExplorerTxBaseURL + txHash
}
