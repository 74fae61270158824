package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ggonzalez94/lendkit/internal/lending"
)

// Lending is the set of actions the agent can take, one method per tool.
// Every method returns the text handed back to the model. A returned error
// means the request was not attempted or a read failed.
type Lending interface {
	CheckAccountData(ctx context.Context) (string, error)
	SupplyUSDC(ctx context.Context, amount string) (string, error)
	BorrowUSDC(ctx context.Context, amount string) (string, error)
	RepayUSDC(ctx context.Context, amount string) (string, error)
	WithdrawUSDC(ctx context.Context, amount string) (string, error)
	GetWalletDetails(ctx context.Context) (string, error)
	RequestFaucetFunds(ctx context.Context, assetID string) (string, error)
}

// FromService exposes a lending service through the tool interface.
func FromService(svc *lending.Service) Lending {
	return serviceTools{svc: svc}
}

type serviceTools struct {
	svc *lending.Service
}

func (s serviceTools) CheckAccountData(ctx context.Context) (string, error) {
	snapshot, err := s.svc.CheckAccountData(ctx)
	if err != nil {
		return "", err
	}
	return lending.FormatAccountData(snapshot), nil
}

func (s serviceTools) SupplyUSDC(ctx context.Context, amount string) (string, error) {
	return message(s.svc.Supply(ctx, amount))
}

func (s serviceTools) BorrowUSDC(ctx context.Context, amount string) (string, error) {
	return message(s.svc.Borrow(ctx, amount))
}

func (s serviceTools) RepayUSDC(ctx context.Context, amount string) (string, error) {
	return message(s.svc.Repay(ctx, amount))
}

func (s serviceTools) WithdrawUSDC(ctx context.Context, amount string) (string, error) {
	return message(s.svc.Withdraw(ctx, amount))
}

func (s serviceTools) GetWalletDetails(ctx context.Context) (string, error) {
	details, err := s.svc.WalletDetails(ctx)
	if err != nil {
		return "", err
	}
	return lending.FormatWalletDetails(details), nil
}

func (s serviceTools) RequestFaucetFunds(ctx context.Context, assetID string) (string, error) {
	tx, err := s.svc.RequestFaucetFunds(ctx, assetID)
	if err != nil {
		return fmt.Sprintf("Error requesting faucet funds: %v", err), nil
	}
	return lending.FormatFaucet(tx), nil
}

// Offline returns a Lending that refuses every call. It lets the tool
// surface be described without a wallet or RPC connection.
func Offline() Lending {
	return offlineTools{}
}

type offlineTools struct{}

var errOffline = errors.New("lending tools are not connected")

func (offlineTools) CheckAccountData(context.Context) (string, error) { return "", errOffline }
func (offlineTools) SupplyUSDC(context.Context, string) (string, error) { return "", errOffline }
func (offlineTools) BorrowUSDC(context.Context, string) (string, error) { return "", errOffline }
func (offlineTools) RepayUSDC(context.Context, string) (string, error) { return "", errOffline }
func (offlineTools) WithdrawUSDC(context.Context, string) (string, error) { return "", errOffline }
func (offlineTools) GetWalletDetails(context.Context) (string, error) { return "", errOffline }
func (offlineTools) RequestFaucetFunds(context.Context, string) (string, error) { return "", errOffline }

func message(outcome lending.Outcome, err error) (string, error) {
	if err != nil {
		return "", err
	}
	return outcome.Message(), nil
}

const healthFactorNote = "Health factor measures the stability of a borrow position; below 1 the position can be liquidated. " +
	"For example, $10,000 of collateral with an 80% liquidation threshold and $6,000 borrowed gives a health factor of 1.333. " +
	"LTV is the maximum share of the collateral that can be borrowed; the liquidation threshold is where a loan becomes undercollateralized."

const explorerNote = "Returns the transaction hash on success; present it as https://sepolia.basescan.org/tx/<hash>."

var amountSchema = JSONSchema{
	"type": "object",
	"properties": map[string]any{
		"amount": map[string]any{
			"type":        "string",
			"description": "USDC amount as a decimal string, e.g. \"10\" or \"2.5\". Digits beyond 6 decimals are dropped.",
		},
	},
	"required":             []string{"amount"},
	"additionalProperties": false,
}

var emptySchema = JSONSchema{
	"type":       "object",
	"properties": map[string]any{},
}

// RegisterLending adds every lending tool to the registry.
func RegisterLending(reg *Registry, l Lending) error {
	defs := []Tool{
		noArgTool{
			def: ToolDefinition{
				Name:        "check_account_data",
				Description: "Retrieves an overview of the user's Aave account and USDC wallet balance: total supplied, total borrowed, available borrows, liquidation threshold, LTV and health factor. " + healthFactorNote,
				Parameters:  emptySchema,
			},
			run: l.CheckAccountData,
		},
		amountTool{
			def: ToolDefinition{
				Name:        "supply_usdc",
				Description: "Supplies (deposits as collateral) USDC to the Aave pool on Base Sepolia. Approves the pool to spend the amount first. Supplying lowers liquidation risk. " + explorerNote,
				Parameters:  amountSchema,
			},
			run: l.SupplyUSDC,
		},
		amountTool{
			def: ToolDefinition{
				Name:        "borrow_usdc",
				Description: "Borrows USDC from the Aave pool on Base Sepolia at the variable rate. Borrowing raises liquidation risk, so check the account overview afterwards. " + explorerNote,
				Parameters:  amountSchema,
			},
			run: l.BorrowUSDC,
		},
		amountTool{
			def: ToolDefinition{
				Name:        "repay_usdc",
				Description: "Repays borrowed USDC to the Aave pool on Base Sepolia. Approves the pool to spend the amount first. Repaying lowers liquidation risk. " + explorerNote,
				Parameters:  amountSchema,
			},
			run: l.RepayUSDC,
		},
		amountTool{
			def: ToolDefinition{
				Name:        "withdraw_usdc",
				Description: "Withdraws supplied USDC from the Aave pool on Base Sepolia back to the wallet. Withdrawing reduces collateral and raises liquidation risk. " + explorerNote,
				Parameters:  amountSchema,
			},
			run: l.WithdrawUSDC,
		},
		noArgTool{
			def: ToolDefinition{
				Name:        "get_wallet_details",
				Description: "Gets the wallet id, address, network and ETH and USDC balances of the agent's wallet.",
				Parameters:  emptySchema,
			},
			run: l.GetWalletDetails,
		},
		faucetTool{run: l.RequestFaucetFunds},
	}
	for _, tool := range defs {
		if err := reg.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

type noArgTool struct {
	def ToolDefinition
	run func(ctx context.Context) (string, error)
}

func (t noArgTool) Definition() ToolDefinition { return t.def }

func (t noArgTool) Execute(ctx context.Context, _ string) (string, error) {
	return t.run(ctx)
}

type amountTool struct {
	def ToolDefinition
	run func(ctx context.Context, amount string) (string, error)
}

func (t amountTool) Definition() ToolDefinition { return t.def }

func (t amountTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Amount decimalArg `json:"amount"`
	}
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(string(args.Amount)) == "" {
		return "", fmt.Errorf("%s requires an amount", t.def.Name)
	}
	return t.run(ctx, string(args.Amount))
}

type faucetTool struct {
	run func(ctx context.Context, assetID string) (string, error)
}

func (faucetTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "request_faucet_funds",
		Description: "Requests testnet funds from the faucet into the agent's wallet on base-sepolia. Use eth for gas (default) or usdc for the lending asset.",
		Parameters: JSONSchema{
			"type": "object",
			"properties": map[string]any{
				"asset_id": map[string]any{
					"type":        "string",
					"enum":        []string{"eth", "usdc"},
					"description": "Asset to request. Defaults to eth.",
				},
			},
		},
	}
}

func (t faucetTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		AssetID string `json:"asset_id"`
	}
	if err := decodeArgs(argsJSON, &args); err != nil {
		return "", err
	}
	return t.run(ctx, args.AssetID)
}

// decimalArg accepts an amount sent either as a JSON string or a bare number.
type decimalArg string

func (d *decimalArg) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*d = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = decimalArg(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a decimal string")
	}
	*d = decimalArg(n.String())
	return nil
}
