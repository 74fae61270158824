package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/ggonzalez94/lendkit/internal/agent"
	"github.com/ggonzalez94/lendkit/internal/cdp"
	"github.com/ggonzalez94/lendkit/internal/config"
	clierr "github.com/ggonzalez94/lendkit/internal/errors"
	"github.com/ggonzalez94/lendkit/internal/execution"
	"github.com/ggonzalez94/lendkit/internal/httpx"
	"github.com/ggonzalez94/lendkit/internal/lending"
	"github.com/ggonzalez94/lendkit/internal/memory"
	"github.com/ggonzalez94/lendkit/internal/providers/aave"
	"github.com/ggonzalez94/lendkit/internal/registry"
	"github.com/ggonzalez94/lendkit/internal/tools"
	"github.com/ggonzalez94/lendkit/internal/version"
	"github.com/ggonzalez94/lendkit/internal/wallet"
)

func connectService(ctx context.Context, settings config.Settings, logger *slog.Logger) (*lending.Service, func(), error) {
	rpcURL, err := registry.ResolveRPCURL(settings.RPCURL, registry.Network().EVMChainID)
	if err != nil {
		return nil, nil, clierr.Wrap(clierr.CodeConfig, "resolve rpc url", err)
	}
	w, err := walletFor(ctx, settings, logger)
	if err != nil {
		return nil, nil, err
	}
	faucet, err := faucetFor(settings)
	if err != nil {
		return nil, nil, err
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, clierr.Wrap(clierr.CodeUnavailable, "connect rpc", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, clierr.Wrap(clierr.CodeUnavailable, "read rpc chain id", err)
	}
	if network := registry.Network(); !network.ChainIDMatches(chainID.Int64()) {
		client.Close()
		return nil, nil, clierr.New(clierr.CodeConfig, fmt.Sprintf("rpc %s serves chain %d, expected %s (%d)", rpcURL, chainID.Int64(), network.Name, network.EVMChainID))
	}
	executor := execution.NewExecutor(client, w.Signer, execution.ExecuteOptions{
		Simulate:       settings.Simulate,
		PollInterval:   settings.PollInterval,
		ReceiptTimeout: settings.ReceiptTimeout,
		GasMultiplier:  settings.GasMultiplier,
	}, logger)

	opts := lending.Options{
		Simulate: settings.Simulate,
		WalletID: w.Data.WalletID,
		Logger:   logger,
	}
	if faucet != nil {
		opts.Faucet = faucet
	}
	svc := lending.NewService(aave.NewReader(client), executor, w.Address(), opts)
	return svc, client.Close, nil
}

func walletFor(ctx context.Context, settings config.Settings, logger *slog.Logger) (*wallet.Wallet, error) {
	w, err := wallet.LoadOrCreate(ctx, settings.WalletDataPath, settings.WalletLockPath)
	if err != nil {
		return nil, err
	}
	if w.Created {
		logger.Info("created wallet", slog.String("wallet_id", w.Data.WalletID), slog.String("address", w.Address().Hex()), slog.String("path", settings.WalletDataPath))
	}
	return w, nil
}

// faucetFor returns nil when no platform key is configured; the faucet tool
// then reports itself as unavailable.
func faucetFor(settings config.Settings) (*cdp.Client, error) {
	if settings.CDPAPIKeyName == "" || settings.CDPAPIKeyPrivateKey == "" {
		return nil, nil
	}
	key, err := cdp.ParseAPIKey(settings.CDPAPIKeyName, settings.CDPAPIKeyPrivateKey)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeAuth, "parse CDP_API_KEY_PRIVATE_KEY", err)
	}
	httpClient := httpx.New(settings.HTTPTimeout, settings.HTTPRetries, version.UserAgent())
	return cdp.New(httpClient, key, settings.CDPBaseURL)
}

func buildAgent(_ context.Context, settings config.Settings, reg *tools.Registry, logger *slog.Logger) (Streamer, func(), error) {
	var store memory.Store = memory.NewInMemory()
	if settings.MemoryEnabled {
		sqlite, err := memory.OpenSQLite(settings.MemoryPath, settings.MemoryLockPath)
		if err != nil {
			return nil, nil, clierr.Wrap(clierr.CodeConfig, "open conversation memory", err)
		}
		store = sqlite
	}
	llm := agent.NewOpenAIClient(settings.OpenAIAPIKey, settings.OpenAIBaseURL)
	a := agent.New(llm, reg, store, agent.Options{
		Model:    settings.OpenAIModel,
		ThreadID: settings.ThreadID,
		MaxSteps: settings.MaxSteps,
		Logger:   logger,
	})
	return a, func() { _ = store.Close() }, nil
}
