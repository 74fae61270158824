package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ggonzalez94/lendkit/internal/agent"
)

const (
	Banner  = "Welcome to LendingKit, what can I help you with?"
	Prompt  = "\nPrompt: "
	Divider = "-------------------"
)

// Streamer runs one conversational turn, emitting chunks as they arrive.
type Streamer interface {
	Stream(ctx context.Context, input string, emit func(agent.Chunk) error) error
}

// Session is the interactive read-prompt loop.
type Session struct {
	in    io.Reader
	out   io.Writer
	agent Streamer
}

func NewSession(in io.Reader, out io.Writer, streamer Streamer) *Session {
	return &Session{in: in, out: out, agent: streamer}
}

type lineResult struct {
	text string
	err  error
	eof  bool
}

// Run prints the banner and serves prompts until the user types exit, stdin
// reaches EOF, or ctx is cancelled while waiting for input. An agent error
// ends the session and is returned.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if _, err := fmt.Fprintln(s.out, Banner); err != nil {
		return err
	}
	lines := s.readLines(ctx)
	for {
		if _, err := fmt.Fprint(s.out, Prompt); err != nil {
			return err
		}
		var line lineResult
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(s.out)
			return nil
		case line = <-lines:
		}
		if line.err != nil {
			return fmt.Errorf("read input: %w", line.err)
		}
		if line.eof {
			return nil
		}

		input := strings.TrimSpace(line.text)
		if strings.EqualFold(input, "exit") {
			return nil
		}
		if input == "" {
			continue
		}
		err := s.agent.Stream(ctx, input, func(chunk agent.Chunk) error {
			_, err := fmt.Fprintf(s.out, "%s\n%s\n", chunk.Content, Divider)
			return err
		})
		if err != nil {
			return err
		}
	}
}

func (s *Session) readLines(ctx context.Context) <-chan lineResult {
	ch := make(chan lineResult)
	go func() {
		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case ch <- lineResult{text: scanner.Text()}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case ch <- lineResult{err: scanner.Err(), eof: true}:
		case <-ctx.Done():
		}
	}()
	return ch
}
