package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/lendkit/internal/config"
	clierr "github.com/ggonzalez94/lendkit/internal/errors"
	"github.com/ggonzalez94/lendkit/internal/lending"
	"github.com/ggonzalez94/lendkit/internal/logging"
	"github.com/ggonzalez94/lendkit/internal/model"
	"github.com/ggonzalez94/lendkit/internal/out"
	"github.com/ggonzalez94/lendkit/internal/registry"
	"github.com/ggonzalez94/lendkit/internal/schema"
	"github.com/ggonzalez94/lendkit/internal/tools"
	"github.com/ggonzalez94/lendkit/internal/version"
)

// ServiceFactory connects the lending service for the configured wallet.
// The returned func releases its resources.
type ServiceFactory func(ctx context.Context, settings config.Settings, logger *slog.Logger) (*lending.Service, func(), error)

// AgentFactory builds the conversational agent over a tool registry.
type AgentFactory func(ctx context.Context, settings config.Settings, reg *tools.Registry, logger *slog.Logger) (Streamer, func(), error)

type Runner struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	newService ServiceFactory
	newAgent   AgentFactory
}

func NewRunner() *Runner {
	return NewRunnerWithIO(os.Stdin, os.Stdout, os.Stderr)
}

func NewRunnerWithIO(stdin io.Reader, stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdin:      stdin,
		stdout:     stdout,
		stderr:     stderr,
		now:        time.Now,
		newService: connectService,
		newAgent:   buildAgent,
	}
}

// WithFactories replaces how the service and agent are constructed.
func (r *Runner) WithFactories(svc ServiceFactory, ag AgentFactory) *Runner {
	if svc != nil {
		r.newService = svc
	}
	if ag != nil {
		r.newAgent = ag
	}
	return r
}

type runtimeState struct {
	runner      *Runner
	overrides   config.Overrides
	settings    config.Settings
	logger      *slog.Logger
	closers     []func()
	chat        bool
	lastCommand string
}

// missingEnvError lists required environment variables that are unset.
type missingEnvError struct {
	names []string
}

func (e *missingEnvError) Error() string {
	return "required environment variables are not set: " + strings.Join(e.names, ", ")
}

func (r *Runner) Run(ctx context.Context, args []string) int {
	state := &runtimeState{runner: r, logger: logging.Discard()}
	root := state.newRootCommand()
	root.SetArgs(args)
	root.SetIn(r.stdin)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.ExecuteContext(ctx)
	defer state.close()
	if err == nil {
		return 0
	}

	var missing *missingEnvError
	if errors.As(err, &missing) {
		_, _ = fmt.Fprintln(r.stderr, "Error: Required environment variables are not set")
		for _, name := range missing.names {
			_, _ = fmt.Fprintf(r.stderr, "%s=your_%s_here\n", name, strings.ToLower(name))
		}
		return 1
	}
	if state.chat {
		state.logger.Error("session ended with error", slog.String("error", err.Error()))
		_, _ = fmt.Fprintf(r.stderr, "Error: %s\n", err.Error())
		return 1
	}
	err = normalizeRunError(err)
	state.renderError(err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Chat with an agent that manages an Aave V3 USDC position on Base Sepolia",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s.chat = true
			return s.runChat(cmd.Context())
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().StringVar(&s.overrides.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&s.overrides.EnvFile, "env-file", "", "Path to .env file (default ./.env)")
	cmd.PersistentFlags().BoolVar(&s.overrides.Plain, "plain", false, "Output plain text for non-chat commands")

	cmd.AddCommand(s.newAccountCommand())
	cmd.AddCommand(s.newWalletCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// runChat validates credentials before anything is constructed, then wires
// the service, tools and agent and hands the terminal to the session loop.
func (s *runtimeState) runChat(ctx context.Context) error {
	if err := s.loadSettings(); err != nil {
		return err
	}
	if missing := s.settings.MissingRequired(); len(missing) > 0 {
		return &missingEnvError{names: missing}
	}
	if err := s.setupLogging(); err != nil {
		return err
	}

	svc, err := s.connect(ctx)
	if err != nil {
		return err
	}
	reg, err := s.toolRegistry(tools.FromService(svc))
	if err != nil {
		return err
	}
	streamer, closeAgent, err := s.runner.newAgent(ctx, s.settings, reg, s.logger)
	if err != nil {
		return err
	}
	s.onClose(closeAgent)

	s.logger.Info("session started",
		slog.String("address", svc.Address().Hex()),
		slog.String("model", s.settings.OpenAIModel),
		logging.Secret("openai_api_key", s.settings.OpenAIAPIKey),
		logging.Secret("cdp_api_key_private_key", s.settings.CDPAPIKeyPrivateKey),
		slog.Bool("simulate", s.settings.Simulate))
	return NewSession(s.runner.stdin, s.runner.stdout, streamer).Run(ctx)
}

func (s *runtimeState) newAccountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Print the Aave account overview of the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s.lastCommand = "account"
			if err := s.prepare(); err != nil {
				return err
			}
			svc, err := s.connect(cmd.Context())
			if err != nil {
				return err
			}
			snapshot, err := svc.CheckAccountData(cmd.Context())
			if err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "read account data", err)
			}
			return s.emitSuccess("account", snapshot)
		},
	}
}

func (s *runtimeState) newWalletCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "wallet",
		Short: "Print the wallet id, address and balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s.lastCommand = "wallet"
			if err := s.prepare(); err != nil {
				return err
			}
			svc, err := s.connect(cmd.Context())
			if err != nil {
				return err
			}
			details, err := svc.WalletDetails(cmd.Context())
			if err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "read wallet balances", err)
			}
			return s.emitSuccess("wallet", details)
		},
	}
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print the machine-readable command and tool schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s.lastCommand = "schema"
			if err := s.loadSettings(); err != nil {
				return err
			}
			reg, err := s.toolRegistry(tools.Offline())
			if err != nil {
				return err
			}
			doc, err := schema.Build(cmd.Root(), strings.Join(args, " "), reg.Definitions())
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess("schema", doc)
		},
	}
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) loadSettings() error {
	settings, err := config.Load(s.overrides)
	if err != nil {
		return clierr.Wrap(clierr.CodeConfig, "load configuration", err)
	}
	s.settings = settings
	return nil
}

func (s *runtimeState) prepare() error {
	if err := s.loadSettings(); err != nil {
		return err
	}
	return s.setupLogging()
}

func (s *runtimeState) setupLogging() error {
	logger, closer, err := logging.Setup(logging.Options{
		Path:    s.settings.LogPath,
		Level:   s.settings.LogLevel,
		Service: version.CLIName,
	})
	if err != nil {
		return clierr.Wrap(clierr.CodeConfig, "open log file", err)
	}
	s.logger = logger
	s.onClose(func() { _ = closer.Close() })
	return nil
}

func (s *runtimeState) connect(ctx context.Context) (*lending.Service, error) {
	svc, release, err := s.runner.newService(ctx, s.settings, s.logger)
	if err != nil {
		return nil, err
	}
	s.onClose(release)
	return svc, nil
}

func (s *runtimeState) toolRegistry(l tools.Lending) (*tools.Registry, error) {
	reg := tools.NewRegistry()
	if err := tools.RegisterLending(reg, l); err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "register tools", err)
	}
	reg.Restrict(s.settings.EnableTools)
	return reg, nil
}

func (s *runtimeState) onClose(fn func()) {
	if fn != nil {
		s.closers = append(s.closers, fn)
	}
}

// close releases resources in reverse order of acquisition.
func (s *runtimeState) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *runtimeState) outputOptions() out.Options {
	mode := s.settings.OutputMode
	if mode == "" {
		mode = "json"
	}
	if s.overrides.Plain {
		mode = "plain"
	}
	return out.Options{Mode: mode}
}

func (s *runtimeState) emitSuccess(commandPath string, data any) error {
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: true,
		Data:    data,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Network:   registry.NetworkID(),
		},
	}
	return out.Render(s.runner.stdout, env, s.outputOptions())
}

func (s *runtimeState) renderError(err error) {
	commandPath := s.lastCommand
	if commandPath == "" {
		commandPath = version.CLIName
	}
	code := clierr.ExitCode(err)
	typ := "internal_error"
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		typ = clierr.TypeName(cErr.Code)
	}
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
		},
	}
	_ = out.Render(s.runner.stderr, env, s.outputOptions())
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"flag needs an argument",
		"accepts ",
		"invalid argument",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
