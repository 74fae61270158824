// Package executiontest provides an in-memory chain client for exercising the
// executor without a node.
package executiontest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Client records every transaction it is asked to send. Failures can be
// injected per target contract; receipts succeed unless the target is listed
// in RevertTargets.
type Client struct {
	ChainIDValue *big.Int

	SimulateErr   map[common.Address]error
	EstimateErr   map[common.Address]error
	SendErr       map[common.Address]error
	RevertTargets map[common.Address]bool
	// PendingReceipts holds back receipts so callers can exercise timeouts.
	PendingReceipts bool

	mu       sync.Mutex
	nonce    uint64
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	calls    []ethereum.CallMsg
}

func NewClient(chainID int64) *Client {
	return &Client{
		ChainIDValue:  big.NewInt(chainID),
		SimulateErr:   map[common.Address]error{},
		EstimateErr:   map[common.Address]error{},
		SendErr:       map[common.Address]error{},
		RevertTargets: map[common.Address]bool{},
		receipts:      map[common.Hash]*types.Receipt{},
	}
}

func (c *Client) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.ChainIDValue), nil
}

func (c *Client) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, msg)
	if msg.To != nil {
		if err := c.SimulateErr[*msg.To]; err != nil {
			return nil, err
		}
	}
	return []byte{}, nil
}

func (c *Client) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	if msg.To != nil {
		if err := c.EstimateErr[*msg.To]; err != nil {
			return 0, err
		}
	}
	return 100_000, nil
}

func (c *Client) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000), nil
}

func (c *Client) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(10_000_000)}, nil
}

func (c *Client) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce, nil
}

func (c *Client) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if tx.To() != nil {
		if err := c.SendErr[*tx.To()]; err != nil {
			return err
		}
	}
	c.sent = append(c.sent, tx)
	c.nonce++
	status := types.ReceiptStatusSuccessful
	if tx.To() != nil && c.RevertTargets[*tx.To()] {
		status = types.ReceiptStatusFailed
	}
	c.receipts[tx.Hash()] = &types.Receipt{Status: status, TxHash: tx.Hash()}
	return nil
}

func (c *Client) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PendingReceipts {
		return nil, ethereum.NotFound
	}
	receipt, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// Sent returns the transactions broadcast so far, in order.
func (c *Client) Sent() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.sent...)
}

// SentTo counts broadcasts addressed to target.
func (c *Client) SentTo(target common.Address) int {
	n := 0
	for _, tx := range c.Sent() {
		if tx.To() != nil && *tx.To() == target {
			n++
		}
	}
	return n
}

// Calls returns every eth_call made so far.
func (c *Client) Calls() []ethereum.CallMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ethereum.CallMsg(nil), c.calls...)
}

var ErrRejected = errors.New("execution reverted")
