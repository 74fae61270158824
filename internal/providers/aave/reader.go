package aave

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	clierr "github.com/ggonzalez94/lendkit/internal/errors"
	"github.com/ggonzalez94/lendkit/internal/model"
	"github.com/ggonzalez94/lendkit/internal/registry"
)

// Backend is the read side of ethclient.Client.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Reader struct {
	backend Backend
	pool    common.Address
	token   common.Address
}

var (
	poolABI  = mustABI(registry.AavePoolABI)
	erc20ABI = mustABI(registry.ERC20MinimalABI)
)

func NewReader(backend Backend) *Reader {
	return &Reader{backend: backend, pool: registry.AavePool(), token: registry.USDC()}
}

// AccountData fetches the pool's account summary and the wallet's token
// balance concurrently. Either failure fails the whole read.
func (r *Reader) AccountData(ctx context.Context, account common.Address) (model.AccountPosition, error) {
	var (
		summary []interface{}
		balance *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := r.call(gctx, poolABI, r.pool, "getUserAccountData", account)
		if err != nil {
			return err
		}
		summary = out
		return nil
	})
	g.Go(func() error {
		out, err := r.call(gctx, erc20ABI, r.token, "balanceOf", account)
		if err != nil {
			return err
		}
		v, ok := out[0].(*big.Int)
		if !ok {
			return clierr.New(clierr.CodeUnavailable, "invalid balanceOf response")
		}
		balance = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.AccountPosition{}, err
	}

	fields := make([]*big.Int, len(summary))
	for i, raw := range summary {
		v, ok := raw.(*big.Int)
		if !ok {
			return model.AccountPosition{}, clierr.New(clierr.CodeUnavailable, "invalid getUserAccountData response")
		}
		fields[i] = v
	}
	if len(fields) != 6 {
		return model.AccountPosition{}, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("getUserAccountData returned %d values, expected 6", len(fields)))
	}
	return model.AccountPosition{
		Address:                     account.Hex(),
		TotalCollateralBase:         fields[0],
		TotalDebtBase:               fields[1],
		AvailableBorrowsBase:        fields[2],
		CurrentLiquidationThreshold: fields[3],
		LTV:                         fields[4],
		HealthFactor:                fields[5],
		TokenBalance:                balance,
	}, nil
}

func (r *Reader) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	balance, err := r.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "read native balance", err)
	}
	return balance, nil
}

func (r *Reader) call(ctx context.Context, contract abi.ABI, target common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack "+method+" calldata", err)
	}
	raw, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "call "+method, err)
	}
	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "decode "+method, err)
	}
	if len(out) == 0 {
		return nil, clierr.New(clierr.CodeUnavailable, method+" returned no values")
	}
	return out, nil
}

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
