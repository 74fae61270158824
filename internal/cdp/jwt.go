package cdp

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	clierr "github.com/ggonzalez94/lendkit/internal/errors"
)

const (
	tokenIssuer   = "cdp"
	tokenLifetime = 2 * time.Minute
)

// APIKey is a Coinbase Developer Platform credential. PEM EC keys sign with
// ES256; base64 Ed25519 keys sign with EdDSA.
type APIKey struct {
	Name   string
	method jwt.SigningMethod
	key    crypto.Signer
}

func ParseAPIKey(name, privateKey string) (*APIKey, error) {
	name = strings.TrimSpace(name)
	privateKey = strings.TrimSpace(privateKey)
	if name == "" || privateKey == "" {
		return nil, clierr.New(clierr.CodeAuth, "cdp api key name and private key are required")
	}
	if block, _ := pem.Decode([]byte(privateKey)); block != nil {
		ecKey, err := parseECKey(block)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeAuth, "parse cdp api key", err)
		}
		return &APIKey{Name: name, method: jwt.SigningMethodES256, key: ecKey}, nil
	}
	raw, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil {
		return nil, clierr.New(clierr.CodeAuth, "cdp api key must be a PEM EC key or a base64 Ed25519 key")
	}
	switch len(raw) {
	case ed25519.PrivateKeySize:
		return &APIKey{Name: name, method: jwt.SigningMethodEdDSA, key: ed25519.PrivateKey(raw)}, nil
	case ed25519.SeedSize:
		return &APIKey{Name: name, method: jwt.SigningMethodEdDSA, key: ed25519.NewKeyFromSeed(raw)}, nil
	default:
		return nil, clierr.New(clierr.CodeAuth, fmt.Sprintf("cdp ed25519 key has %d bytes, expected 64", len(raw)))
	}
}

func parseECKey(block *pem.Block) (*ecdsa.PrivateKey, error) {
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("pem key is %T, expected ECDSA", parsed)
	}
	return key, nil
}

// Algorithm reports the JWT alg header the key signs with.
func (k *APIKey) Algorithm() string {
	return k.method.Alg()
}

// Token builds a short-lived bearer token bound to one request.
func (k *APIKey) Token(method, host, path string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": k.Name,
		"iss": tokenIssuer,
		"nbf": now.Unix(),
		"exp": now.Add(tokenLifetime).Unix(),
		"uri": fmt.Sprintf("%s %s%s", strings.ToUpper(method), host, path),
	}
	token := jwt.NewWithClaims(k.method, claims)
	token.Header["kid"] = k.Name
	nonce, err := randomNonce()
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "generate jwt nonce", err)
	}
	token.Header["nonce"] = nonce

	signed, err := token.SignedString(k.key)
	if err != nil {
		return "", clierr.Wrap(clierr.CodeAuth, "sign cdp jwt", err)
	}
	return signed, nil
}

func randomNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
