package cdp

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/ggonzalez94/lendkit/internal/httpx"
)

const testKeyName = "organizations/org-1/apiKeys/key-1"

func newECKey(t *testing.T) (*ecdsa.PrivateKey, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	return key, string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}))
}

func TestTokenES256Claims(t *testing.T) {
	ecKey, pemKey := newECKey(t)
	key, err := ParseAPIKey(testKeyName, pemKey)
	require.NoError(t, err)
	require.Equal(t, "ES256", key.Algorithm())

	now := time.Now()
	signed, err := key.Token("post", "api.cdp.coinbase.com", "/platform/v1/networks/base-sepolia/addresses/0xabc/faucet", now)
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return &ecKey.PublicKey, nil
	}, jwt.WithValidMethods([]string{"ES256"}))
	require.NoError(t, err)
	require.Equal(t, testKeyName, parsed.Header["kid"])
	require.NotEmpty(t, parsed.Header["nonce"])

	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, testKeyName, claims["sub"])
	require.Equal(t, "cdp", claims["iss"])
	require.Equal(t, "POST api.cdp.coinbase.com/platform/v1/networks/base-sepolia/addresses/0xabc/faucet", claims["uri"])
	require.EqualValues(t, now.Add(2*time.Minute).Unix(), claims["exp"])
}

func TestTokenEdDSA(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ParseAPIKey("key-id", base64.StdEncoding.EncodeToString(priv))
	require.NoError(t, err)
	require.Equal(t, "EdDSA", key.Algorithm())

	signed, err := key.Token("GET", "example.com", "/x", time.Now())
	require.NoError(t, err)
	_, err = jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{"EdDSA"}))
	require.NoError(t, err)
}

func TestParseAPIKeyRejectsGarbage(t *testing.T) {
	_, err := ParseAPIKey(testKeyName, "not a key")
	require.Error(t, err)
	_, err = ParseAPIKey("", "x")
	require.Error(t, err)
}

func TestRequestFaucetFunds(t *testing.T) {
	ecKey, pemKey := newECKey(t)
	key, err := ParseAPIKey(testKeyName, pemKey)
	require.NoError(t, err)

	address := "0x00000000000000000000000000000000000000aa"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/platform/v1/networks/base-sepolia/addresses/"+address+"/faucet", r.URL.Path)
		require.Equal(t, "usdc", r.URL.Query().Get("asset_id"))

		bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		parsed, err := jwt.Parse(bearer, func(token *jwt.Token) (interface{}, error) {
			return &ecKey.PublicKey, nil
		})
		require.NoError(t, err)
		host := r.Host
		require.Equal(t, "POST "+host+r.URL.Path, parsed.Claims.(jwt.MapClaims)["uri"])

		_ = json.NewEncoder(w).Encode(map[string]string{
			"transaction_hash": "0xfeed",
			"transaction_link": "https://sepolia.basescan.org/tx/0xfeed",
		})
	}))
	defer srv.Close()

	client, err := New(httpx.New(2*time.Second, 0, "lendkit-test"), key, srv.URL)
	require.NoError(t, err)
	tx, err := client.RequestFaucetFunds(context.Background(), "base-sepolia", address, "USDC")
	require.NoError(t, err)
	require.Equal(t, "0xfeed", tx.TransactionHash)
	require.Equal(t, "usdc", tx.AssetID)
}

func TestRequestFaucetFundsDefaultsToETH(t *testing.T) {
	_, pemKey := newECKey(t)
	key, err := ParseAPIKey(testKeyName, pemKey)
	require.NoError(t, err)

	var gotAsset string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAsset = r.URL.Query().Get("asset_id")
		_, _ = w.Write([]byte(`{"transaction_hash":"0x01"}`))
	}))
	defer srv.Close()

	client, err := New(httpx.New(2*time.Second, 0, ""), key, srv.URL)
	require.NoError(t, err)
	_, err = client.RequestFaucetFunds(context.Background(), "base-sepolia", "0x01", "")
	require.NoError(t, err)
	require.Equal(t, AssetETH, gotAsset)
}

func TestRequestFaucetFundsRejectsUnknownAsset(t *testing.T) {
	_, pemKey := newECKey(t)
	key, err := ParseAPIKey(testKeyName, pemKey)
	require.NoError(t, err)
	client, err := New(httpx.New(time.Second, 0, ""), key, (&url.URL{Scheme: "http", Host: "127.0.0.1:1"}).String())
	require.NoError(t, err)
	_, err = client.RequestFaucetFunds(context.Background(), "base-sepolia", "0x01", "dai")
	require.ErrorContains(t, err, "faucet only dispenses")
}
