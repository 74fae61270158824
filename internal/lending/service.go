package lending

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	clierr "github.com/ggonzalez94/lendkit/internal/errors"
	"github.com/ggonzalez94/lendkit/internal/execution"
	"github.com/ggonzalez94/lendkit/internal/execution/planner"
	"github.com/ggonzalez94/lendkit/internal/id"
	"github.com/ggonzalez94/lendkit/internal/model"
	"github.com/ggonzalez94/lendkit/internal/providers"
	"github.com/ggonzalez94/lendkit/internal/registry"
)

// Executor submits planned actions from the session wallet.
type Executor interface {
	Address() common.Address
	Execute(ctx context.Context, action *execution.Action) error
}

// Faucet dispenses testnet funds to an address.
type Faucet interface {
	RequestFaucetFunds(ctx context.Context, networkID, address, asset string) (model.FaucetTransaction, error)
}

type Options struct {
	Simulate bool
	WalletID string
	Faucet   Faucet
	Logger   *slog.Logger
}

// Service carries out every lending operation for a single wallet.
type Service struct {
	reader   providers.AccountReader
	executor Executor
	address  common.Address
	opts     Options
	logger   *slog.Logger
}

func NewService(reader providers.AccountReader, executor Executor, address common.Address, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{reader: reader, executor: executor, address: address, opts: opts, logger: logger}
}

func (s *Service) Address() common.Address {
	return s.address
}

// CheckAccountData reads the current position. It never sends a transaction.
func (s *Service) CheckAccountData(ctx context.Context) (model.AccountSnapshot, error) {
	position, err := s.reader.AccountData(ctx, s.address)
	if err != nil {
		return model.AccountSnapshot{}, err
	}
	return Snapshot(position), nil
}

func (s *Service) Supply(ctx context.Context, amount string) (Outcome, error) {
	return s.run(ctx, planner.AaveVerbSupply, amount)
}

func (s *Service) Borrow(ctx context.Context, amount string) (Outcome, error) {
	return s.run(ctx, planner.AaveVerbBorrow, amount)
}

func (s *Service) Repay(ctx context.Context, amount string) (Outcome, error) {
	return s.run(ctx, planner.AaveVerbRepay, amount)
}

func (s *Service) Withdraw(ctx context.Context, amount string) (Outcome, error) {
	return s.run(ctx, planner.AaveVerbWithdraw, amount)
}

// run plans and executes one verb. The returned error covers only input and
// planning problems; chain failures are reported through the Outcome.
func (s *Service) run(ctx context.Context, verb planner.AaveLendVerb, amount string) (Outcome, error) {
	baseUnits, err := ParseAmount(amount)
	if err != nil {
		return Outcome{}, err
	}
	outcome := Outcome{
		Verb:            verb,
		Amount:          id.FormatUnits(baseUnits, id.USDC.Decimals),
		AmountBaseUnits: baseUnits,
	}

	action, err := planner.BuildAaveLendAction(planner.AaveLendRequest{
		Verb:            verb,
		AmountBaseUnits: baseUnits,
		Sender:          s.address,
		Simulate:        s.opts.Simulate,
	})
	if err != nil {
		return Outcome{}, err
	}

	log := s.logger.With(
		slog.String("verb", string(verb)),
		slog.String("requested", id.NormalizeDecimal(amount)),
		slog.String("amount", outcome.Amount),
		slog.String("action_id", action.ActionID))
	log.Info("lend action planned", slog.Int("steps", len(action.Steps)))

	execErr := s.executor.Execute(ctx, &action)
	if approval, ok := action.StepOfType(execution.StepTypeApproval); ok && approval.Status == execution.StepStatusConfirmed {
		outcome.ApprovalTxHash = approval.TxHash
	}
	if execErr != nil {
		outcome.Err = execErr
		outcome.Kind = OutcomeActionFailed
		if failed, ok := action.FailedStep(); ok && failed.Type == execution.StepTypeApproval {
			outcome.Kind = OutcomeApprovalFailed
		}
		if lend, ok := action.StepOfType(execution.StepTypeLend); ok {
			outcome.TxHash = lend.TxHash
		}
		log.Warn("lend action failed", slog.String("outcome", string(outcome.Kind)), slog.String("error", execErr.Error()))
		return outcome, nil
	}

	lend, _ := action.StepOfType(execution.StepTypeLend)
	outcome.Kind = OutcomeSucceeded
	outcome.TxHash = lend.TxHash
	log.Info("lend action confirmed", slog.String("tx_hash", outcome.TxHash))
	return outcome, nil
}

// WalletDetails reports the wallet's identity and balances.
func (s *Service) WalletDetails(ctx context.Context) (model.WalletDetails, error) {
	var (
		native   *big.Int
		position model.AccountPosition
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.reader.NativeBalance(gctx, s.address)
		native = v
		return err
	})
	g.Go(func() error {
		v, err := s.reader.AccountData(gctx, s.address)
		position = v
		return err
	})
	if err := g.Wait(); err != nil {
		return model.WalletDetails{}, err
	}
	network := registry.Network()
	return model.WalletDetails{
		WalletID:     s.opts.WalletID,
		Address:      s.address.Hex(),
		NetworkID:    registry.NetworkID(),
		ChainID:      strconv.FormatInt(network.EVMChainID, 10),
		NativeSymbol: "ETH",
		NativeAmount: id.FormatUnits(native, 18),
		TokenSymbol:  id.USDC.Symbol,
		TokenAmount:  id.FormatUnits(position.TokenBalance, id.USDC.Decimals),
	}, nil
}

// RequestFaucetFunds asks the testnet faucet for ETH (the default) or USDC.
func (s *Service) RequestFaucetFunds(ctx context.Context, asset string) (model.FaucetTransaction, error) {
	if s.opts.Faucet == nil {
		return model.FaucetTransaction{}, clierr.New(clierr.CodeConfig, "faucet is not configured")
	}
	tx, err := s.opts.Faucet.RequestFaucetFunds(ctx, registry.NetworkID(), s.address.Hex(), asset)
	if err != nil {
		return model.FaucetTransaction{}, err
	}
	s.logger.Info("faucet funds requested", slog.String("asset", tx.AssetID), slog.String("tx_hash", tx.TransactionHash))
	return tx, nil
}

// ParseAmount converts a decimal USDC amount to base units, truncating
// digits beyond the token's precision. Zero is rejected.
func ParseAmount(amount string) (*big.Int, error) {
	baseUnits, err := id.ParseUnits(amount, id.USDC.Decimals)
	if err != nil {
		return nil, err
	}
	if baseUnits.Sign() == 0 {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("amount %q is zero at %d decimal precision", amount, id.USDC.Decimals))
	}
	return baseUnits, nil
}
