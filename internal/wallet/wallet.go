package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	clierr "github.com/ggonzalez94/lendkit/internal/errors"
	"github.com/ggonzalez94/lendkit/internal/execution/signer"
	"github.com/ggonzalez94/lendkit/internal/id"
	"github.com/ggonzalez94/lendkit/internal/registry"
)

// Data is the persisted wallet record. Seed holds a hex secp256k1 key; a
// keystore path may be used instead, with the password read from a file.
type Data struct {
	WalletID             string `json:"wallet_id"`
	NetworkID            string `json:"network_id"`
	Address              string `json:"address"`
	Seed                 string `json:"seed,omitempty"`
	KeystorePath         string `json:"keystore_path,omitempty"`
	KeystorePasswordFile string `json:"keystore_password_file,omitempty"`
}

type Wallet struct {
	Data   Data
	Signer *signer.LocalSigner
	// Created reports whether this call generated a new wallet.
	Created bool
}

func (w *Wallet) Address() common.Address {
	return w.Signer.Address()
}

// LoadOrCreate reads the wallet file, generating and persisting a new wallet
// when the file does not exist. The lock file serializes concurrent starts.
func LoadOrCreate(ctx context.Context, path, lockPath string) (*Wallet, error) {
	if strings.TrimSpace(path) == "" {
		return nil, clierr.New(clierr.CodeConfig, "wallet data path is required")
	}
	if strings.TrimSpace(lockPath) == "" {
		lockPath = path + ".lock"
	}
	if dir := filepath.Dir(lockPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, clierr.Wrap(clierr.CodeConfig, "create wallet lock directory", err)
		}
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeConfig, "lock wallet data", err)
	}
	if !locked {
		return nil, clierr.New(clierr.CodeConfig, "lock wallet data: timeout acquiring lock")
	}
	defer func() { _ = lock.Unlock() }()

	buf, err := os.ReadFile(path)
	switch {
	case err == nil:
		return decode(buf)
	case errors.Is(err, os.ErrNotExist):
		return create(path)
	default:
		return nil, clierr.Wrap(clierr.CodeConfig, "read wallet data", err)
	}
}

func decode(buf []byte) (*Wallet, error) {
	var data Data
	if err := json.Unmarshal(buf, &data); err != nil {
		return nil, clierr.Wrap(clierr.CodeConfig, "parse wallet data", err)
	}
	if data.NetworkID != "" {
		chain, err := id.ParseChain(data.NetworkID)
		if err != nil || chain.CAIP2 != registry.Network().CAIP2 {
			return nil, clierr.New(clierr.CodeConfig, fmt.Sprintf("wallet data is for network %s, expected %s", data.NetworkID, registry.NetworkID()))
		}
	}
	s, err := signer.NewLocalSigner(signer.LocalSignerConfig{
		PrivateKeyHex:        data.Seed,
		KeystorePath:         data.KeystorePath,
		KeystorePasswordFile: data.KeystorePasswordFile,
	})
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "load wallet key", err)
	}
	if data.Address != "" && !strings.EqualFold(data.Address, s.Address().Hex()) {
		return nil, clierr.New(clierr.CodeSigner, fmt.Sprintf("wallet data address %s does not match its key (%s)", data.Address, s.Address().Hex()))
	}
	data.Address = s.Address().Hex()
	if data.NetworkID == "" {
		data.NetworkID = registry.NetworkID()
	}
	return &Wallet{Data: data, Signer: s}, nil
}

func create(path string) (*Wallet, error) {
	s, err := signer.GenerateLocalSigner()
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeSigner, "create wallet", err)
	}
	data := Data{
		WalletID:  uuid.NewString(),
		NetworkID: registry.NetworkID(),
		Address:   s.Address().Hex(),
		Seed:      s.PrivateKeyHex(),
	}
	buf, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "encode wallet data", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, clierr.Wrap(clierr.CodeConfig, "create wallet directory", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return nil, clierr.Wrap(clierr.CodeConfig, "write wallet data", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, clierr.Wrap(clierr.CodeConfig, "write wallet data", err)
	}
	return &Wallet{Data: data, Signer: s, Created: true}, nil
}
