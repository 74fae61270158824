package execution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/lendkit/internal/errors"
)

var errorStringSelector = common.FromHex("0x08c379a0")

// Aave V3 reverts with numeric error codes; the common ones are spelled out.
var aaveErrorText = map[string]string{
	"26": "amount must be greater than 0",
	"32": "not enough available user balance",
	"35": "health factor lower than liquidation threshold",
	"36": "collateral cannot cover new borrow",
	"50": "borrow cap exceeded",
	"51": "supply cap exceeded",
}

type rpcDataError interface {
	error
	ErrorData() interface{}
}

// wrapEVMExecutionError attaches a decoded revert reason when the node
// returned one.
func wrapEVMExecutionError(code clierr.Code, message string, err error) error {
	if reason := decodeRevertFromError(err); reason != "" {
		return clierr.Wrap(code, fmt.Sprintf("%s: execution reverted: %s", message, reason), err)
	}
	return clierr.Wrap(code, message, err)
}

func decodeRevertFromError(err error) string {
	var dataErr rpcDataError
	if !errors.As(err, &dataErr) {
		return ""
	}
	switch v := dataErr.ErrorData().(type) {
	case string:
		return decodeRevertData(common.FromHex(v))
	case []byte:
		return decodeRevertData(v)
	default:
		return ""
	}
}

func decodeRevertData(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	if string(data[:4]) == string(errorStringSelector) {
		reason, err := abi.UnpackRevert(data)
		if err != nil {
			return ""
		}
		reason = strings.TrimSpace(reason)
		if text, ok := aaveErrorText[reason]; ok {
			return fmt.Sprintf("%s (aave error %s)", text, reason)
		}
		return reason
	}
	return fmt.Sprintf("custom error 0x%x", data[:4])
}
