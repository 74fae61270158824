package tools

import "context"

// JSONSchema is the JSON Schema object describing a tool's arguments.
type JSONSchema map[string]any

// ToolDefinition is what the model sees of a tool.
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

type Tool interface {
	Definition() ToolDefinition
	// Execute runs the tool with the raw JSON arguments the model sent.
	Execute(ctx context.Context, argsJSON string) (string, error)
}
