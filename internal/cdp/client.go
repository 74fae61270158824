package cdp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	clierr "github.com/ggonzalez94/lendkit/internal/errors"
	"github.com/ggonzalez94/lendkit/internal/httpx"
	"github.com/ggonzalez94/lendkit/internal/model"
)

const DefaultBaseURL = "https://api.cdp.coinbase.com"

// Faucet assets accepted by the platform. An empty asset requests ETH.
const (
	AssetETH  = "eth"
	AssetUSDC = "usdc"
)

type Client struct {
	http    *httpx.Client
	key     *APIKey
	baseURL *url.URL
	now     func() time.Time
}

func New(httpClient *httpx.Client, key *APIKey, baseURL string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || parsed.Host == "" {
		return nil, clierr.New(clierr.CodeConfig, fmt.Sprintf("invalid cdp base url %q", baseURL))
	}
	return &Client{http: httpClient, key: key, baseURL: parsed, now: time.Now}, nil
}

type faucetResponse struct {
	TransactionHash string `json:"transaction_hash"`
	TransactionLink string `json:"transaction_link"`
}

// RequestFaucetFunds asks the testnet faucet to fund an address.
func (c *Client) RequestFaucetFunds(ctx context.Context, networkID, address, asset string) (model.FaucetTransaction, error) {
	asset = strings.ToLower(strings.TrimSpace(asset))
	switch asset {
	case "":
		asset = AssetETH
	case AssetETH, AssetUSDC:
	default:
		return model.FaucetTransaction{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("faucet only dispenses %s or %s, got %q", AssetETH, AssetUSDC, asset))
	}

	path := fmt.Sprintf("%s/platform/v1/networks/%s/addresses/%s/faucet", c.baseURL.Path, url.PathEscape(networkID), url.PathEscape(address))
	token, err := c.key.Token(http.MethodPost, c.baseURL.Host, path, c.now())
	if err != nil {
		return model.FaucetTransaction{}, err
	}

	endpoint := *c.baseURL
	endpoint.Path = path
	endpoint.RawQuery = url.Values{"asset_id": []string{asset}}.Encode()

	var resp faucetResponse
	_, err = httpx.DoBodyJSON(ctx, c.http, http.MethodPost, endpoint.String(), nil, map[string]string{
		"Authorization": "Bearer " + token,
	}, &resp)
	if err != nil {
		return model.FaucetTransaction{}, err
	}
	if resp.TransactionHash == "" {
		return model.FaucetTransaction{}, clierr.New(clierr.CodeUnavailable, "faucet response missing transaction hash")
	}
	return model.FaucetTransaction{
		AssetID:         asset,
		TransactionHash: resp.TransactionHash,
		TransactionLink: resp.TransactionLink,
	}, nil
}
