package planner

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/lendkit/internal/errors"
	"github.com/ggonzalez94/lendkit/internal/execution"
	"github.com/ggonzalez94/lendkit/internal/id"
)

// approvalStep builds an ERC20 approve(spender, amount) step. The approval is
// always issued for the exact amount, even when an allowance already exists.
func approvalStep(chain id.Chain, asset id.Asset, spender common.Address, amount *big.Int, description string) (execution.ActionStep, error) {
	if !common.IsHexAddress(asset.Address) {
		return execution.ActionStep{}, clierr.New(clierr.CodeActionPlan, "approval requires ERC20 token address")
	}
	if amount == nil || amount.Sign() <= 0 {
		return execution.ActionStep{}, clierr.New(clierr.CodeUsage, "approval amount must be positive")
	}
	data, err := plannerERC20ABI.Pack("approve", spender, amount)
	if err != nil {
		return execution.ActionStep{}, clierr.Wrap(clierr.CodeInternal, "pack approve calldata", err)
	}
	token := common.HexToAddress(asset.Address)
	return execution.ActionStep{
		StepID:      fmt.Sprintf("approve-%s", strings.ToLower(asset.Symbol)),
		Type:        execution.StepTypeApproval,
		Status:      execution.StepStatusPending,
		ChainID:     chain.CAIP2,
		Description: description,
		Target:      token.Hex(),
		Data:        "0x" + common.Bytes2Hex(data),
		Value:       "0",
	}, nil
}

func mustPlannerABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
