// Package agent runs the tool-calling loop between the user, the model and
// the lending tools.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ggonzalez94/lendkit/internal/memory"
	"github.com/ggonzalez94/lendkit/internal/tools"
)

// ChatCompleter is the part of the OpenAI client the agent needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type ChunkKind string

const (
	ChunkAgent ChunkKind = "agent"
	ChunkTools ChunkKind = "tools"
)

// Chunk is one streamed piece of a turn: model text or a tool result.
type Chunk struct {
	Kind    ChunkKind
	Content string
}

// ErrStepLimit is returned when a turn needs more model calls than allowed.
var ErrStepLimit = errors.New("agent step limit reached")

const DefaultMaxSteps = 25

type Options struct {
	Model        string
	ThreadID     string
	MaxSteps     int
	SystemPrompt string
	Logger       *slog.Logger
}

type Agent struct {
	llm      ChatCompleter
	registry *tools.Registry
	memory   memory.Store
	opts     Options
	logger   *slog.Logger
}

func New(llm ChatCompleter, registry *tools.Registry, store memory.Store, opts Options) *Agent {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if strings.TrimSpace(opts.ThreadID) == "" {
		opts.ThreadID = "lendkit"
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = SystemPrompt
	}
	if store == nil {
		store = memory.NewInMemory()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Agent{llm: llm, registry: registry, memory: store, opts: opts, logger: logger}
}

// Stream runs one user turn. Each assistant message with text and each tool
// result is passed to emit as soon as it is available. Tool failures are
// returned to the model as text; only model, memory or emit failures end
// the turn with an error.
func (a *Agent) Stream(ctx context.Context, input string, emit func(Chunk) error) error {
	history, err := a.memory.Load(ctx, a.opts.ThreadID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if len(history) == 0 {
		history = append(history, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: a.opts.SystemPrompt,
		})
	}
	history = append(history, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: input,
	})

	toolDefs := convertToolsToOpenAI(a.registry.Definitions())
	for step := 0; step < a.opts.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := openai.ChatCompletionRequest{
			Model:    a.opts.Model,
			Messages: history,
		}
		if len(toolDefs) > 0 {
			req.Tools = toolDefs
			req.ToolChoice = "auto"
		}

		started := time.Now()
		resp, err := a.llm.CreateChatCompletion(ctx, req)
		if err != nil {
			a.logger.Error("model request failed", slog.String("model", a.opts.Model), slog.String("error", err.Error()))
			return fmt.Errorf("openai api error: %w", err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("no choices in model response")
		}
		reply := resp.Choices[0].Message
		if reply.Role == "" {
			reply.Role = openai.ChatMessageRoleAssistant
		}
		history = append(history, reply)
		a.logger.Info("model response received",
			slog.Int("step", step+1),
			slog.Int("tool_calls", len(reply.ToolCalls)),
			slog.Int64("duration_ms", time.Since(started).Milliseconds()))

		if strings.TrimSpace(reply.Content) != "" {
			if err := emit(Chunk{Kind: ChunkAgent, Content: reply.Content}); err != nil {
				return err
			}
		}
		if len(reply.ToolCalls) == 0 {
			return a.save(ctx, history)
		}

		for _, call := range reply.ToolCalls {
			result := a.callTool(ctx, call)
			history = append(history, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			})
			if err := emit(Chunk{Kind: ChunkTools, Content: result}); err != nil {
				return err
			}
		}
		if err := a.save(ctx, history); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: stopped after %d model calls", ErrStepLimit, a.opts.MaxSteps)
}

func (a *Agent) callTool(ctx context.Context, call openai.ToolCall) string {
	started := time.Now()
	log := a.logger.With(slog.String("tool", call.Function.Name), slog.String("call_id", call.ID))
	result, err := a.registry.Call(ctx, call.Function.Name, call.Function.Arguments)
	if err != nil {
		log.Warn("tool failed", slog.String("error", err.Error()), slog.Int64("duration_ms", time.Since(started).Milliseconds()))
		return "Error: " + err.Error()
	}
	log.Info("tool finished", slog.Int64("duration_ms", time.Since(started).Milliseconds()))
	return result
}

func (a *Agent) save(ctx context.Context, history []openai.ChatCompletionMessage) error {
	if err := a.memory.Save(ctx, a.opts.ThreadID, history); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func convertToolsToOpenAI(defs []tools.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(defs))
	for i, def := range defs {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}
	return result
}

// NewOpenAIClient builds a chat client, honouring a custom base URL for
// OpenAI-compatible providers.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}
