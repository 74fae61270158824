package planner

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/lendkit/internal/errors"
	"github.com/ggonzalez94/lendkit/internal/execution"
	"github.com/ggonzalez94/lendkit/internal/id"
	"github.com/ggonzalez94/lendkit/internal/registry"
)

type AaveLendVerb string

const (
	AaveVerbSupply   AaveLendVerb = "supply"
	AaveVerbWithdraw AaveLendVerb = "withdraw"
	AaveVerbBorrow   AaveLendVerb = "borrow"
	AaveVerbRepay    AaveLendVerb = "repay"
)

// AaveLendRequest describes one pool interaction for the wallet's own
// position. Pool, asset and network default to the fixed deployment.
type AaveLendRequest struct {
	Verb            AaveLendVerb
	AmountBaseUnits *big.Int
	Sender          common.Address
	Simulate        bool

	Chain       id.Chain
	Asset       id.Asset
	PoolAddress common.Address
}

var (
	plannerERC20ABI    = mustPlannerABI(registry.ERC20MinimalABI)
	plannerAavePoolABI = mustPlannerABI(registry.AavePoolABI)
)

// BuildAaveLendAction turns a verb and amount into an ordered action. supply
// and repay carry an approval step ahead of the pool call; borrow and withdraw
// are a single pool call. Every call is made on behalf of, and pays out to,
// the sender.
func BuildAaveLendAction(req AaveLendRequest) (execution.Action, error) {
	verb := AaveLendVerb(strings.ToLower(strings.TrimSpace(string(req.Verb))))
	if req.Sender == (common.Address{}) {
		return execution.Action{}, clierr.New(clierr.CodeActionPlan, "lend action requires sender address")
	}
	amount := req.AmountBaseUnits
	if amount == nil || amount.Sign() <= 0 {
		return execution.Action{}, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	chain := req.Chain
	if chain.CAIP2 == "" {
		chain = registry.Network()
	}
	asset := req.Asset
	if asset.Address == "" {
		asset = id.USDC
	}
	pool := req.PoolAddress
	if pool == (common.Address{}) {
		pool = registry.AavePool()
	}
	token := common.HexToAddress(asset.Address)
	self := req.Sender
	rateMode := big.NewInt(registry.VariableRateMode)

	action := execution.NewAction(execution.NewActionID(), "lend_"+string(verb), chain.CAIP2, execution.Constraints{Simulate: req.Simulate})
	action.FromAddress = self.Hex()
	action.InputAmount = amount.String()
	action.Metadata = map[string]any{
		"protocol":       "aave",
		"asset_id":       asset.AssetID,
		"pool":           pool.Hex(),
		"lending_action": string(verb),
	}

	var (
		method      string
		args        []interface{}
		description string
	)
	switch verb {
	case AaveVerbSupply:
		step, err := approvalStep(chain, asset, pool, amount, fmt.Sprintf("Approve %s for Aave supply", asset.Symbol))
		if err != nil {
			return execution.Action{}, err
		}
		action.Steps = append(action.Steps, step)
		method, args = "supply", []interface{}{token, amount, self, registry.NoReferralCode}
		description = fmt.Sprintf("Supply %s to Aave", asset.Symbol)
	case AaveVerbRepay:
		step, err := approvalStep(chain, asset, pool, amount, fmt.Sprintf("Approve %s for Aave repay", asset.Symbol))
		if err != nil {
			return execution.Action{}, err
		}
		action.Steps = append(action.Steps, step)
		method, args = "repay", []interface{}{token, amount, rateMode, self}
		description = fmt.Sprintf("Repay borrowed %s on Aave", asset.Symbol)
	case AaveVerbBorrow:
		method, args = "borrow", []interface{}{token, amount, rateMode, registry.NoReferralCode, self}
		description = fmt.Sprintf("Borrow %s from Aave", asset.Symbol)
	case AaveVerbWithdraw:
		method, args = "withdraw", []interface{}{token, amount, self}
		description = fmt.Sprintf("Withdraw %s from Aave", asset.Symbol)
	default:
		return execution.Action{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported lend action verb %q", req.Verb))
	}

	data, err := plannerAavePoolABI.Pack(method, args...)
	if err != nil {
		return execution.Action{}, clierr.Wrap(clierr.CodeInternal, fmt.Sprintf("pack aave %s calldata", method), err)
	}
	action.Steps = append(action.Steps, execution.ActionStep{
		StepID:      "aave-" + method,
		Type:        execution.StepTypeLend,
		Status:      execution.StepStatusPending,
		ChainID:     chain.CAIP2,
		Description: description,
		Target:      pool.Hex(),
		Data:        "0x" + common.Bytes2Hex(data),
		Value:       "0",
	})
	return action, nil
}
