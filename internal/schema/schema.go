// Package schema describes the machine-facing surface of the CLI: its
// commands and the tools offered to the model.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ggonzalez94/lendkit/internal/tools"
)

type Document struct {
	Command CommandSchema `json:"command"`
	Tools   []ToolSchema  `json:"tools,omitempty"`
}

type CommandSchema struct {
	Path        string          `json:"path"`
	Use         string          `json:"use"`
	Short       string          `json:"short"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
}

type FlagSchema struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Usage   string `json:"usage"`
	Default string `json:"default,omitempty"`
}

type ToolSchema struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Arguments   []string `json:"arguments,omitempty"`
	Required    []string `json:"required,omitempty"`
}

// Build describes the command at commandPath (the root when empty) and,
// when defs is non-empty, the tools in the order they are offered.
func Build(root *cobra.Command, commandPath string, defs []tools.ToolDefinition) (Document, error) {
	cmd := root
	for _, part := range strings.Fields(commandPath) {
		next := findChild(cmd, part)
		if next == nil {
			return Document{}, fmt.Errorf("command not found: %s", commandPath)
		}
		cmd = next
	}
	doc := Document{Command: describeCommand(cmd)}
	for _, def := range defs {
		doc.Tools = append(doc.Tools, describeTool(def))
	}
	return doc, nil
}

func findChild(cmd *cobra.Command, name string) *cobra.Command {
	for _, c := range cmd.Commands() {
		if c.Name() == name || c.HasAlias(name) {
			return c
		}
	}
	return nil
}

func describeCommand(cmd *cobra.Command) CommandSchema {
	s := CommandSchema{
		Path:  strings.TrimSpace(cmd.CommandPath()),
		Use:   cmd.Use,
		Short: cmd.Short,
	}
	cmd.NonInheritedFlags().VisitAll(func(f *pflag.Flag) {
		s.Flags = append(s.Flags, FlagSchema{
			Name:    f.Name,
			Type:    f.Value.Type(),
			Usage:   f.Usage,
			Default: f.DefValue,
		})
	})
	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" || sub.Name() == "completion" {
			continue
		}
		s.Subcommands = append(s.Subcommands, describeCommand(sub))
	}
	return s
}

func describeTool(def tools.ToolDefinition) ToolSchema {
	out := ToolSchema{Name: def.Name, Description: def.Description}
	if props, ok := def.Parameters["properties"].(map[string]any); ok {
		for name := range props {
			out.Arguments = append(out.Arguments, name)
		}
		sort.Strings(out.Arguments)
	}
	if required, ok := def.Parameters["required"].([]string); ok {
		out.Required = append(out.Required, required...)
	}
	return out
}
