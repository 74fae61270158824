package schema

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/lendkit/internal/tools"
)

func TestBuildCommandPath(t *testing.T) {
	root := &cobra.Command{Use: "lendkit"}
	account := &cobra.Command{Use: "account", Short: "print the account snapshot", Run: func(*cobra.Command, []string) {}}
	account.Flags().Bool("plain", false, "plain output")
	root.AddCommand(account)

	doc, err := Build(root, "account", nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if doc.Command.Path != "lendkit account" {
		t.Fatalf("unexpected path: %s", doc.Command.Path)
	}
	if len(doc.Command.Flags) != 1 || doc.Command.Flags[0].Name != "plain" {
		t.Fatalf("unexpected flags: %+v", doc.Command.Flags)
	}
	if len(doc.Tools) != 0 {
		t.Fatalf("expected no tools, got %+v", doc.Tools)
	}

	if _, err := Build(root, "swap", nil); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestBuildDescribesTools(t *testing.T) {
	root := &cobra.Command{Use: "lendkit"}
	defs := []tools.ToolDefinition{{
		Name:        "supply_usdc",
		Description: "supply",
		Parameters: tools.JSONSchema{
			"type":       "object",
			"properties": map[string]any{"amount": map[string]any{"type": "string"}},
			"required":   []string{"amount"},
		},
	}}
	doc, err := Build(root, "", defs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(doc.Tools) != 1 {
		t.Fatalf("expected one tool, got %d", len(doc.Tools))
	}
	tool := doc.Tools[0]
	if tool.Name != "supply_usdc" || len(tool.Arguments) != 1 || tool.Required[0] != "amount" {
		t.Fatalf("unexpected tool schema: %+v", tool)
	}
}
