package wallet

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ggonzalez94/lendkit/internal/registry"
)

func TestLoadOrCreatePersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallet_data.txt")

	first, err := LoadOrCreate(context.Background(), path, "")
	require.NoError(t, err)
	require.True(t, first.Created)
	_, err = uuid.Parse(first.Data.WalletID)
	require.NoError(t, err)
	require.Equal(t, registry.NetworkID(), first.Data.NetworkID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := LoadOrCreate(context.Background(), path, "")
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.Address(), second.Address())
	require.Equal(t, first.Data.WalletID, second.Data.WalletID)
}

func TestLoadRejectsOtherNetwork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	buf, err := json.Marshal(Data{
		WalletID:  "w",
		NetworkID: "base-mainnet",
		Seed:      "0x59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf, 0o600))

	_, err = LoadOrCreate(context.Background(), path, "")
	require.ErrorContains(t, err, "base-mainnet")
}

func TestLoadRejectsAddressMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	buf, err := json.Marshal(Data{
		NetworkID: registry.NetworkID(),
		Address:   "0x0000000000000000000000000000000000000001",
		Seed:      "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1",
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, buf, 0o600))

	_, err = LoadOrCreate(context.Background(), path, "")
	require.ErrorContains(t, err, "does not match")
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	_, err := LoadOrCreate(context.Background(), path, "")
	require.Error(t, err)
}
