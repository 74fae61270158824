package execution

import "github.com/google/uuid"

func NewActionID() string {
	return "act_" + uuid.NewString()
}
