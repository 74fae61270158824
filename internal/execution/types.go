package execution

import "time"

type ActionStatus string

type StepStatus string

type StepType string

const (
	ActionStatusPlanned   ActionStatus = "planned"
	ActionStatusRunning   ActionStatus = "running"
	ActionStatusCompleted ActionStatus = "completed"
	ActionStatusFailed    ActionStatus = "failed"
)

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusSimulated StepStatus = "simulated"
	StepStatusSubmitted StepStatus = "submitted"
	StepStatusConfirmed StepStatus = "confirmed"
	StepStatusFailed    StepStatus = "failed"
)

const (
	StepTypeApproval StepType = "approval"
	StepTypeLend     StepType = "lend_call"
)

type Constraints struct {
	Simulate bool `json:"simulate"`
}

type ActionStep struct {
	StepID      string     `json:"step_id"`
	Type        StepType   `json:"type"`
	Status      StepStatus `json:"status"`
	ChainID     string     `json:"chain_id"`
	Description string     `json:"description,omitempty"`
	Target      string     `json:"target"`
	Data        string     `json:"data"`
	Value       string     `json:"value"`
	TxHash      string     `json:"tx_hash,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Action is an ordered list of transactions that together carry out one
// intent. Steps run in order and the first failure stops the action.
type Action struct {
	ActionID    string         `json:"action_id"`
	IntentType  string         `json:"intent_type"`
	Status      ActionStatus   `json:"status"`
	ChainID     string         `json:"chain_id"`
	FromAddress string         `json:"from_address,omitempty"`
	InputAmount string         `json:"input_amount,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
	Constraints Constraints    `json:"constraints"`
	Steps       []ActionStep   `json:"steps"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

func NewAction(actionID, intentType, chainID string, constraints Constraints) Action {
	now := time.Now().UTC().Format(time.RFC3339)
	return Action{
		ActionID:    actionID,
		IntentType:  intentType,
		Status:      ActionStatusPlanned,
		ChainID:     chainID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Constraints: constraints,
		Steps:       []ActionStep{},
	}
}

func (a *Action) Touch() {
	a.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

// FailedStep returns the step that stopped the action, if any.
func (a *Action) FailedStep() (*ActionStep, bool) {
	for i := range a.Steps {
		if a.Steps[i].Status == StepStatusFailed {
			return &a.Steps[i], true
		}
	}
	return nil, false
}

// StepOfType returns the first step of the given type.
func (a *Action) StepOfType(stepType StepType) (*ActionStep, bool) {
	for i := range a.Steps {
		if a.Steps[i].Type == stepType {
			return &a.Steps[i], true
		}
	}
	return nil, false
}
