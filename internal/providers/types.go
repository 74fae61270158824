package providers

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/lendkit/internal/model"
)

// AccountReader reads a lending position straight from chain state.
type AccountReader interface {
	AccountData(ctx context.Context, account common.Address) (model.AccountPosition, error)
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
}
