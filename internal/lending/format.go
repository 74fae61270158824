package lending

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"

	"github.com/ggonzalez94/lendkit/internal/id"
	"github.com/ggonzalez94/lendkit/internal/model"
	"github.com/ggonzalez94/lendkit/internal/registry"
)

// NoDebtHealthFactor is shown when the pool reports an unbounded health
// factor for a position without debt.
const NoDebtHealthFactor = "∞ (no debt)"

// Snapshot scales a raw position into decimal strings.
func Snapshot(position model.AccountPosition) model.AccountSnapshot {
	return model.AccountSnapshot{
		Address:                 position.Address,
		Network:                 registry.NetworkID(),
		TotalDeposited:          id.FormatUnits(position.TotalCollateralBase, registry.BaseCurrencyDecimals),
		TotalDebt:               id.FormatUnits(position.TotalDebtBase, registry.BaseCurrencyDecimals),
		AvailableBorrows:        id.FormatUnits(position.AvailableBorrowsBase, registry.BaseCurrencyDecimals),
		LiquidationThresholdPct: id.FormatUnits(position.CurrentLiquidationThreshold, registry.PercentageDecimals),
		LTVPct:                  id.FormatUnits(position.LTV, registry.PercentageDecimals),
		HealthFactor:            formatHealthFactor(position),
		TokenBalance:            id.FormatUnits(position.TokenBalance, id.USDC.Decimals),
	}
}

func formatHealthFactor(position model.AccountPosition) string {
	hf := position.HealthFactor
	noDebt := position.TotalDebtBase == nil || position.TotalDebtBase.Sign() == 0
	if noDebt && isMaxUint256(hf) {
		return NoDebtHealthFactor
	}
	return id.FormatUnits(hf, registry.HealthFactorDecimals)
}

// FormatAccountData renders a snapshot as the account overview text.
func FormatAccountData(s model.AccountSnapshot) string {
	lines := []string{
		"Your account data:",
		fmt.Sprintf("Total Deposited: %s USDC", s.TotalDeposited),
		fmt.Sprintf("Total Debt: %s USDC", s.TotalDebt),
		fmt.Sprintf("Available Borrows: %s USDC", s.AvailableBorrows),
		fmt.Sprintf("Current Liquidation Threshold: %s%%", s.LiquidationThresholdPct),
		fmt.Sprintf("LTV: %s%%", s.LTVPct),
		fmt.Sprintf("Health Factor: %s", s.HealthFactor),
		fmt.Sprintf("USDC Balance: %s", s.TokenBalance),
		fmt.Sprintf("User Address: %s", s.Address),
	}
	return strings.Join(lines, "\n")
}

// FormatWalletDetails renders wallet details for the model.
func FormatWalletDetails(d model.WalletDetails) string {
	lines := []string{
		"Wallet Details:",
		fmt.Sprintf("Wallet ID: %s", d.WalletID),
		fmt.Sprintf("Address: %s", d.Address),
		fmt.Sprintf("Network ID: %s", d.NetworkID),
		fmt.Sprintf("Chain ID: %s", d.ChainID),
		fmt.Sprintf("%s Balance: %s", d.NativeSymbol, d.NativeAmount),
		fmt.Sprintf("%s Balance: %s", d.TokenSymbol, d.TokenAmount),
	}
	return strings.Join(lines, "\n")
}

// FormatFaucet renders a faucet result for the model.
func FormatFaucet(tx model.FaucetTransaction) string {
	link := tx.TransactionLink
	if link == "" {
		link = registry.ExplorerTxURL(tx.TransactionHash)
	}
	return fmt.Sprintf("Received %s from the faucet. Transaction: %s", strings.ToUpper(tx.AssetID), link)
}

func isMaxUint256(v *big.Int) bool {
	return v != nil && v.Cmp(math.MaxBig256) == 0
}
