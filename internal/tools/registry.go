package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ggonzalez94/lendkit/internal/policy"
)

// Registry holds tools in registration order. Tools outside the allowlist
// stay registered but are neither offered to the model nor callable.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
	allow []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Restrict limits the registry to the named tools. An empty list lifts the
// restriction.
func (r *Registry) Restrict(allowlist []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allow = append([]string(nil), allowlist...)
}

func validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Parameters == nil {
		return fmt.Errorf("tool '%s': parameters cannot be nil", def.Name)
	}
	typeVal, ok := def.Parameters["type"].(string)
	if !ok || typeVal != "object" {
		return fmt.Errorf("tool '%s': parameters.type must be 'object'", def.Name)
	}
	if requiredVal, exists := def.Parameters["required"]; exists {
		required, ok := requiredVal.([]string)
		if !ok {
			return fmt.Errorf("tool '%s': parameters.required must be a string array", def.Name)
		}
		props, _ := def.Parameters["properties"].(map[string]any)
		for _, name := range required {
			if _, ok := props[name]; !ok {
				return fmt.Errorf("tool '%s': required parameter '%s' is not declared", def.Name, name)
			}
		}
	}
	return nil
}

func (r *Registry) Register(tool Tool) error {
	def := tool.Definition()
	if err := validateToolDefinition(def); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool '%s' already registered", def.Name)
	}
	r.tools[def.Name] = tool
	r.order = append(r.order, def.Name)
	return nil
}

func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool '%s' not found", name)
	}
	return tool, nil
}

// Definitions lists every tool in registration order.
func (r *Registry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		if policy.CheckToolAllowed(r.allow, name) != nil {
			continue
		}
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Call looks a tool up by name and executes it.
func (r *Registry) Call(ctx context.Context, name, argsJSON string) (string, error) {
	tool, err := r.Get(name)
	if err != nil {
		return "", err
	}
	r.mu.RLock()
	allow := r.allow
	r.mu.RUnlock()
	if err := policy.CheckToolAllowed(allow, name); err != nil {
		return "", err
	}
	return tool.Execute(ctx, argsJSON)
}

// decodeArgs unmarshals tool arguments, treating an empty payload as {}.
func decodeArgs(argsJSON string, out any) error {
	if argsJSON == "" {
		argsJSON = "{}"
	}
	if err := json.Unmarshal([]byte(argsJSON), out); err != nil {
		return fmt.Errorf("invalid tool arguments: %w", err)
	}
	return nil
}
