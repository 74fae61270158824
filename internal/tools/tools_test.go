package tools

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ggonzalez94/lendkit/internal/execution"
	"github.com/ggonzalez94/lendkit/internal/execution/executiontest"
	"github.com/ggonzalez94/lendkit/internal/execution/signer"
	"github.com/ggonzalez94/lendkit/internal/lending"
	"github.com/ggonzalez94/lendkit/internal/model"
	"github.com/ggonzalez94/lendkit/internal/registry"
)

type recordingLending struct {
	calls []string
	args  []string
}

func (r *recordingLending) record(name, arg string) (string, error) {
	r.calls = append(r.calls, name)
	r.args = append(r.args, arg)
	return name + " ok", nil
}

func (r *recordingLending) CheckAccountData(context.Context) (string, error) {
	return r.record("check_account_data", "")
}
func (r *recordingLending) SupplyUSDC(_ context.Context, amount string) (string, error) {
	return r.record("supply_usdc", amount)
}
func (r *recordingLending) BorrowUSDC(_ context.Context, amount string) (string, error) {
	return r.record("borrow_usdc", amount)
}
func (r *recordingLending) RepayUSDC(_ context.Context, amount string) (string, error) {
	return r.record("repay_usdc", amount)
}
func (r *recordingLending) WithdrawUSDC(_ context.Context, amount string) (string, error) {
	return r.record("withdraw_usdc", amount)
}
func (r *recordingLending) GetWalletDetails(context.Context) (string, error) {
	return r.record("get_wallet_details", "")
}
func (r *recordingLending) RequestFaucetFunds(_ context.Context, asset string) (string, error) {
	return r.record("request_faucet_funds", asset)
}

func newLendingRegistry(t *testing.T, l Lending) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, RegisterLending(reg, l))
	return reg
}

func TestRegisterLendingDefinitions(t *testing.T) {
	reg := newLendingRegistry(t, &recordingLending{})
	defs := reg.Definitions()
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}
	require.Equal(t, []string{
		"check_account_data",
		"supply_usdc",
		"borrow_usdc",
		"repay_usdc",
		"withdraw_usdc",
		"get_wallet_details",
		"request_faucet_funds",
	}, names)

	for _, def := range defs[1:5] {
		require.Equal(t, []string{"amount"}, def.Parameters["required"], def.Name)
	}
}

func TestAmountToolsShareOneContract(t *testing.T) {
	l := &recordingLending{}
	reg := newLendingRegistry(t, l)
	ctx := context.Background()

	for _, name := range []string{"supply_usdc", "borrow_usdc", "repay_usdc", "withdraw_usdc"} {
		out, err := reg.Call(ctx, name, `{"amount":"2.5"}`)
		require.NoError(t, err)
		require.Equal(t, name+" ok", out)
	}
	require.Equal(t, []string{"2.5", "2.5", "2.5", "2.5"}, l.args)
}

func TestAmountAcceptsBareNumber(t *testing.T) {
	l := &recordingLending{}
	reg := newLendingRegistry(t, l)
	_, err := reg.Call(context.Background(), "supply_usdc", `{"amount": 10.25}`)
	require.NoError(t, err)
	require.Equal(t, "10.25", l.args[0])
}

func TestAmountRequired(t *testing.T) {
	l := &recordingLending{}
	reg := newLendingRegistry(t, l)
	_, err := reg.Call(context.Background(), "borrow_usdc", `{}`)
	require.ErrorContains(t, err, "requires an amount")
	_, err = reg.Call(context.Background(), "borrow_usdc", `not json`)
	require.ErrorContains(t, err, "invalid tool arguments")
	require.Empty(t, l.calls)
}

func TestNoArgToolsIgnorePayload(t *testing.T) {
	l := &recordingLending{}
	reg := newLendingRegistry(t, l)
	_, err := reg.Call(context.Background(), "check_account_data", "")
	require.NoError(t, err)
	_, err = reg.Call(context.Background(), "request_faucet_funds", `{"asset_id":"usdc"}`)
	require.NoError(t, err)
	require.Equal(t, []string{"check_account_data", "request_faucet_funds"}, l.calls)
	require.Equal(t, "usdc", l.args[1])
}

func TestUnknownTool(t *testing.T) {
	reg := newLendingRegistry(t, &recordingLending{})
	_, err := reg.Call(context.Background(), "liquidate", "{}")
	require.ErrorContains(t, err, "not found")
}

func TestRestrictHidesAndBlocksTools(t *testing.T) {
	l := &recordingLending{}
	reg := newLendingRegistry(t, l)
	reg.Restrict([]string{"check_account_data", "get_wallet_details"})

	defs := reg.Definitions()
	require.Len(t, defs, 2)
	require.Equal(t, "get_wallet_details", defs[1].Name)

	_, err := reg.Call(context.Background(), "borrow_usdc", `{"amount":"1"}`)
	require.ErrorContains(t, err, "blocked")
	require.Empty(t, l.calls)

	reg.Restrict(nil)
	require.Len(t, reg.Definitions(), 7)
}

func TestRegisterRejectsInvalidDefinitions(t *testing.T) {
	reg := NewRegistry()
	require.Error(t, reg.Register(noArgTool{def: ToolDefinition{Name: ""}}))
	require.Error(t, reg.Register(noArgTool{def: ToolDefinition{Name: "x", Parameters: JSONSchema{"type": "array"}}}))
	require.Error(t, reg.Register(noArgTool{def: ToolDefinition{Name: "x", Parameters: JSONSchema{
		"type":     "object",
		"required": []string{"missing"},
	}}}))
	require.NoError(t, reg.Register(noArgTool{def: ToolDefinition{Name: "x", Parameters: emptySchema}}))
	require.Error(t, reg.Register(noArgTool{def: ToolDefinition{Name: "x", Parameters: emptySchema}}))
}

type staticReader struct {
	position model.AccountPosition
}

func (s staticReader) AccountData(_ context.Context, account common.Address) (model.AccountPosition, error) {
	out := s.position
	out.Address = account.Hex()
	return out, nil
}

func (s staticReader) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	return big.NewInt(0), nil
}

func TestServiceToolsEndToEnd(t *testing.T) {
	hf, _ := new(big.Int).SetString("1333000000000000000", 10)
	collateral, _ := new(big.Int).SetString("1000000000000", 10)
	debt, _ := new(big.Int).SetString("600000000000", 10)
	reader := staticReader{position: model.AccountPosition{
		TotalCollateralBase:         collateral,
		TotalDebtBase:               debt,
		AvailableBorrowsBase:        big.NewInt(0),
		CurrentLiquidationThreshold: big.NewInt(8000),
		LTV:                         big.NewInt(7500),
		HealthFactor:                hf,
		TokenBalance:                big.NewInt(500_000_000),
	}}
	s, err := signer.NewLocalSigner(signer.LocalSignerConfig{PrivateKeyHex: "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"})
	require.NoError(t, err)
	client := executiontest.NewClient(84532)
	opts := execution.DefaultExecuteOptions()
	opts.PollInterval = time.Millisecond
	svc := lending.NewService(reader, execution.NewExecutor(client, s, opts, nil), s.Address(), lending.Options{Simulate: true})
	reg := newLendingRegistry(t, FromService(svc))

	out, err := reg.Call(context.Background(), "check_account_data", "{}")
	require.NoError(t, err)
	require.Contains(t, out, "Total Deposited: 10000")
	require.Contains(t, out, "Total Debt: 6000")
	require.Contains(t, out, "Health Factor: 1.333")
	require.Contains(t, out, "USDC Balance: 500")
	require.Empty(t, client.Sent())

	out, err = reg.Call(context.Background(), "borrow_usdc", `{"amount":"1"}`)
	require.NoError(t, err)
	require.Contains(t, out, "USDC borrowed from Aave: ")
	require.Equal(t, 1, client.SentTo(registry.AavePool()))

	_, err = reg.Call(context.Background(), "repay_usdc", `{"amount":"zero"}`)
	require.Error(t, err)
	require.Len(t, client.Sent(), 1)

	out, err = reg.Call(context.Background(), "request_faucet_funds", `{}`)
	require.NoError(t, err)
	require.Contains(t, out, "Error requesting faucet funds")
}
