package execution

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	clierr "github.com/ggonzalez94/lendkit/internal/errors"
	"github.com/ggonzalez94/lendkit/internal/execution/signer"
)

// Client is the subset of ethclient.Client the executor drives.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type ExecuteOptions struct {
	Simulate     bool
	PollInterval time.Duration
	// ReceiptTimeout bounds the wait for each receipt. Zero waits until the
	// context is cancelled.
	ReceiptTimeout time.Duration
	GasMultiplier  float64
}

func DefaultExecuteOptions() ExecuteOptions {
	return ExecuteOptions{
		Simulate:      true,
		PollInterval:  2 * time.Second,
		GasMultiplier: 1.2,
	}
}

type Executor struct {
	client Client
	signer signer.Signer
	opts   ExecuteOptions
	logger *slog.Logger

	// one action at a time keeps pending nonces in order
	mu sync.Mutex
}

func NewExecutor(client Client, txSigner signer.Signer, opts ExecuteOptions, logger *slog.Logger) *Executor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.ReceiptTimeout < 0 {
		opts.ReceiptTimeout = 0
	}
	if opts.GasMultiplier <= 1 {
		opts.GasMultiplier = 1.2
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{client: client, signer: txSigner, opts: opts, logger: logger}
}

func (e *Executor) Address() common.Address {
	return e.signer.Address()
}

// Execute runs every pending step in order and stops at the first failure.
// The failed step is marked on the action with its error text.
func (e *Executor) Execute(ctx context.Context, action *Action) error {
	if action == nil {
		return clierr.New(clierr.CodeInternal, "missing action")
	}
	if e.signer == nil {
		return clierr.New(clierr.CodeSigner, "missing signer")
	}
	if e.client == nil {
		return clierr.New(clierr.CodeUnavailable, "missing rpc client")
	}
	if len(action.Steps) == 0 {
		return clierr.New(clierr.CodeUsage, "action has no executable steps")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	action.Status = ActionStatusRunning
	action.FromAddress = e.signer.Address().Hex()
	action.Touch()
	log := e.logger.With(slog.String("action_id", action.ActionID), slog.String("intent", action.IntentType))

	for i := range action.Steps {
		step := &action.Steps[i]
		if step.Status == StepStatusConfirmed {
			continue
		}
		if !common.IsHexAddress(strings.TrimSpace(step.Target)) {
			markStepFailed(action, step, "invalid target address")
			return clierr.New(clierr.CodeUsage, "invalid target address for action step")
		}
		log.Info("executing step", slog.String("step_id", step.StepID), slog.String("type", string(step.Type)))
		if err := e.executeStep(ctx, step); err != nil {
			markStepFailed(action, step, err.Error())
			log.Warn("step failed", slog.String("step_id", step.StepID), slog.String("tx_hash", step.TxHash), slog.String("error", err.Error()))
			return err
		}
		log.Info("step confirmed", slog.String("step_id", step.StepID), slog.String("tx_hash", step.TxHash))
		action.Touch()
	}
	action.Status = ActionStatusCompleted
	action.Touch()
	return nil
}

func (e *Executor) executeStep(ctx context.Context, step *ActionStep) error {
	chainID, err := e.client.ChainID(ctx)
	if err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "read chain id", err)
	}
	if step.ChainID != "" {
		expected := fmt.Sprintf("eip155:%d", chainID.Int64())
		if !strings.EqualFold(strings.TrimSpace(step.ChainID), expected) {
			return clierr.New(clierr.CodeActionPlan, fmt.Sprintf("step chain mismatch: rpc is %s, step wants %s", expected, step.ChainID))
		}
	}
	target := common.HexToAddress(step.Target)
	data, err := decodeHex(step.Data)
	if err != nil {
		return clierr.Wrap(clierr.CodeUsage, "decode step calldata", err)
	}
	value := new(big.Int)
	if strings.TrimSpace(step.Value) != "" {
		if _, ok := value.SetString(step.Value, 10); !ok {
			return clierr.New(clierr.CodeUsage, "invalid step value")
		}
	}
	from := e.signer.Address()
	msg := ethereum.CallMsg{From: from, To: &target, Value: value, Data: data}

	if e.opts.Simulate {
		if _, err := e.client.CallContract(ctx, msg, nil); err != nil {
			return wrapEVMExecutionError(clierr.CodeActionSim, "simulate step (eth_call)", err)
		}
		step.Status = StepStatusSimulated
	}

	gasLimit, err := e.client.EstimateGas(ctx, msg)
	if err != nil {
		return wrapEVMExecutionError(clierr.CodeActionSim, "estimate gas", err)
	}
	gasLimit = uint64(float64(gasLimit) * e.opts.GasMultiplier)

	tipCap, err := e.client.SuggestGasTipCap(ctx)
	if err != nil || tipCap == nil {
		tipCap = big.NewInt(1_000_000) // 0.001 gwei, Base L2 fallback
	}
	header, err := e.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	nonce, err := e.client.PendingNonceAt(ctx, from)
	if err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "fetch nonce", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &target,
		Value:     value,
		Data:      data,
	})
	signed, err := e.signer.SignTx(chainID, tx)
	if err != nil {
		return clierr.Wrap(clierr.CodeSigner, "sign transaction", err)
	}
	if err := e.client.SendTransaction(ctx, signed); err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "broadcast transaction", err)
	}
	step.Status = StepStatusSubmitted
	step.TxHash = signed.Hash().Hex()

	return e.waitForReceipt(ctx, signed.Hash(), step)
}

func (e *Executor) waitForReceipt(ctx context.Context, hash common.Hash, step *ActionStep) error {
	waitCtx := ctx
	if e.opts.ReceiptTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, e.opts.ReceiptTimeout)
		defer cancel()
	}
	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()
	for {
		// transient polling errors are retried until the wait ends
		receipt, err := e.client.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				step.Status = StepStatusConfirmed
				return nil
			}
			return clierr.New(clierr.CodeActionSim, fmt.Sprintf("transaction %s reverted on-chain", hash.Hex()))
		}
		select {
		case <-waitCtx.Done():
			return clierr.Wrap(clierr.CodeActionTimeout, fmt.Sprintf("timed out waiting for receipt of %s", hash.Hex()), waitCtx.Err())
		case <-ticker.C:
		}
	}
}

func markStepFailed(action *Action, step *ActionStep, msg string) {
	step.Status = StepStatusFailed
	step.Error = msg
	action.Status = ActionStatusFailed
	action.Touch()
}

func decodeHex(v string) ([]byte, error) {
	clean := strings.TrimSpace(v)
	clean = strings.TrimPrefix(clean, "0x")
	if clean == "" {
		return []byte{}, nil
	}
	if len(clean)%2 != 0 {
		clean = "0" + clean
	}
	buf, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return buf, nil
}
