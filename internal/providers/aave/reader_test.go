package aave

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ggonzalez94/lendkit/internal/registry"
)

type readerRPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type callArgs struct {
	To    string `json:"to"`
	Input string `json:"input"`
	Data  string `json:"data"`
}

type fakeChain struct {
	summary   []*big.Int
	balance   *big.Int
	native    *big.Int
	failPool  bool
	callCount int32
}

func newReaderRPCServer(t *testing.T, chain *fakeChain) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req readerRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Method {
		case "eth_call":
			atomic.AddInt32(&chain.callCount, 1)
			var args callArgs
			if err := json.Unmarshal(req.Params[0], &args); err != nil {
				writeRPCError(w, req.ID, -32602, err.Error())
				return
			}
			input := args.Input
			if input == "" {
				input = args.Data
			}
			switch {
			case strings.EqualFold(args.To, registry.AavePoolAddress):
				if chain.failPool {
					writeRPCError(w, req.ID, -32000, "header not found")
					return
				}
				values := make([]interface{}, len(chain.summary))
				for i, v := range chain.summary {
					values[i] = v
				}
				encoded, err := poolABI.Methods["getUserAccountData"].Outputs.Pack(values...)
				if err != nil {
					t.Errorf("pack account data: %v", err)
				}
				writeRPCResult(w, req.ID, "0x"+hex.EncodeToString(encoded))
			case strings.EqualFold(args.To, registry.USDCAddress):
				if !strings.HasPrefix(input, "0x70a08231") {
					writeRPCError(w, req.ID, -32602, "unexpected selector "+input)
					return
				}
				encoded, err := erc20ABI.Methods["balanceOf"].Outputs.Pack(chain.balance)
				if err != nil {
					t.Errorf("pack balance: %v", err)
				}
				writeRPCResult(w, req.ID, "0x"+hex.EncodeToString(encoded))
			default:
				writeRPCError(w, req.ID, -32602, "unexpected target "+args.To)
			}
		case "eth_getBalance":
			writeRPCResult(w, req.ID, hexutil.EncodeBig(chain.native))
		default:
			writeRPCError(w, req.ID, -32601, fmt.Sprintf("method not supported in test: %s", req.Method))
		}
	}))
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%q}`, rawID(id), result)
}

func writeRPCError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":%d,"message":%q}}`, rawID(id), code, message)
}

func rawID(id json.RawMessage) string {
	if len(id) == 0 {
		return "1"
	}
	return string(id)
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func TestAccountDataCombinesBothReads(t *testing.T) {
	hf, _ := new(big.Int).SetString("1333000000000000000", 10)
	chain := &fakeChain{
		summary: []*big.Int{
			new(big.Int).Mul(big.NewInt(10_000), pow10(8)),
			new(big.Int).Mul(big.NewInt(6_000), pow10(8)),
			new(big.Int).Mul(big.NewInt(1_500), pow10(8)),
			big.NewInt(8_000),
			big.NewInt(7_500),
			hf,
		},
		balance: new(big.Int).Mul(big.NewInt(500), pow10(6)),
		native:  big.NewInt(1),
	}
	srv := newReaderRPCServer(t, chain)
	defer srv.Close()

	client, err := ethclient.Dial(srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	account := common.HexToAddress("0x00000000000000000000000000000000000000AA")
	position, err := NewReader(client).AccountData(context.Background(), account)
	if err != nil {
		t.Fatalf("AccountData failed: %v", err)
	}
	if position.Address != account.Hex() {
		t.Fatalf("unexpected address: %s", position.Address)
	}
	if position.TotalCollateralBase.Cmp(chain.summary[0]) != 0 || position.TotalDebtBase.Cmp(chain.summary[1]) != 0 {
		t.Fatalf("unexpected totals: %s %s", position.TotalCollateralBase, position.TotalDebtBase)
	}
	if position.LTV.Int64() != 7_500 || position.CurrentLiquidationThreshold.Int64() != 8_000 {
		t.Fatalf("unexpected percentages: %s %s", position.LTV, position.CurrentLiquidationThreshold)
	}
	if position.HealthFactor.Cmp(hf) != 0 {
		t.Fatalf("unexpected health factor: %s", position.HealthFactor)
	}
	if position.TokenBalance.Cmp(chain.balance) != 0 {
		t.Fatalf("unexpected balance: %s", position.TokenBalance)
	}
	if atomic.LoadInt32(&chain.callCount) != 2 {
		t.Fatalf("expected exactly two eth_call reads, got %d", chain.callCount)
	}
}

func TestAccountDataFailsWhenEitherReadFails(t *testing.T) {
	chain := &fakeChain{failPool: true, balance: big.NewInt(5), native: big.NewInt(0)}
	srv := newReaderRPCServer(t, chain)
	defer srv.Close()

	client, err := ethclient.Dial(srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	_, err = NewReader(client).AccountData(context.Background(), common.HexToAddress("0x01"))
	if err == nil || !strings.Contains(err.Error(), "header not found") {
		t.Fatalf("expected pool read error, got %v", err)
	}
}

func TestNativeBalance(t *testing.T) {
	chain := &fakeChain{native: new(big.Int).Mul(big.NewInt(3), pow10(17))}
	srv := newReaderRPCServer(t, chain)
	defer srv.Close()

	client, err := ethclient.Dial(srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	balance, err := NewReader(client).NativeBalance(context.Background(), common.HexToAddress("0x01"))
	if err != nil {
		t.Fatalf("NativeBalance failed: %v", err)
	}
	if balance.Cmp(chain.native) != 0 {
		t.Fatalf("unexpected balance: %s", balance)
	}
}
