package lending

import (
	"fmt"
	"math/big"

	"github.com/ggonzalez94/lendkit/internal/execution/planner"
	"github.com/ggonzalez94/lendkit/internal/registry"
)

// OutcomeKind tags how far a state-changing request got.
type OutcomeKind string

const (
	OutcomeSucceeded OutcomeKind = "succeeded"
	// OutcomeApprovalFailed means the approval never confirmed and the pool
	// call was not sent.
	OutcomeApprovalFailed OutcomeKind = "approval_failed"
	// OutcomeActionFailed means the pool call failed. For supply and repay the
	// approval had already confirmed and is left in place.
	OutcomeActionFailed OutcomeKind = "action_failed"
)

type Outcome struct {
	Verb            planner.AaveLendVerb
	Kind            OutcomeKind
	Amount          string
	AmountBaseUnits *big.Int
	ApprovalTxHash  string
	TxHash          string
	Err             error
}

func (o Outcome) Succeeded() bool {
	return o.Kind == OutcomeSucceeded
}

type verbText struct {
	past   string
	gerund string
	prep   string
}

var verbTexts = map[planner.AaveLendVerb]verbText{
	planner.AaveVerbSupply:   {past: "supplied", gerund: "supplying", prep: "to"},
	planner.AaveVerbBorrow:   {past: "borrowed", gerund: "borrowing", prep: "from"},
	planner.AaveVerbRepay:    {past: "repaid", gerund: "repaying", prep: "to"},
	planner.AaveVerbWithdraw: {past: "withdrawn", gerund: "withdrawing", prep: "from"},
}

// Message renders the outcome as the text handed back to the model.
func (o Outcome) Message() string {
	text := verbTexts[o.Verb]
	switch o.Kind {
	case OutcomeSucceeded:
		return fmt.Sprintf("USDC %s %s Aave: %s (%s)", text.past, text.prep, o.TxHash, registry.ExplorerTxURL(o.TxHash))
	case OutcomeApprovalFailed:
		return fmt.Sprintf("Sorry, error approving USDC spend for Aave, nothing was %s: %v", text.past, o.Err)
	default:
		if o.ApprovalTxHash != "" {
			return fmt.Sprintf("Sorry, error %s USDC %s Aave: %v (approval %s was confirmed and remains in place)", text.gerund, text.prep, o.Err, o.ApprovalTxHash)
		}
		return fmt.Sprintf("Sorry, error %s USDC %s Aave: %v", text.gerund, text.prep, o.Err)
	}
}
