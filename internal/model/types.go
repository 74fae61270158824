package model

import (
	"math/big"
	"time"
)

const EnvelopeVersion = "v1"

type Envelope struct {
	Version string       `json:"version"`
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorBody   `json:"error"`
	Meta    EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Network   string    `json:"network,omitempty"`
}

// AccountPosition is the raw on-chain view of a lending position. Base fields
// carry 8 decimals, threshold and LTV carry 2, the health factor carries 18 and
// the token balance carries the token's own decimals.
type AccountPosition struct {
	Address                     string   `json:"address"`
	TotalCollateralBase         *big.Int `json:"total_collateral_base"`
	TotalDebtBase               *big.Int `json:"total_debt_base"`
	AvailableBorrowsBase        *big.Int `json:"available_borrows_base"`
	CurrentLiquidationThreshold *big.Int `json:"current_liquidation_threshold"`
	LTV                         *big.Int `json:"ltv"`
	HealthFactor                *big.Int `json:"health_factor"`
	TokenBalance                *big.Int `json:"token_balance"`
}

// AccountSnapshot is an AccountPosition rendered to decimal strings.
type AccountSnapshot struct {
	Address                 string `json:"address"`
	Network                 string `json:"network"`
	TotalDeposited          string `json:"total_deposited_usd"`
	TotalDebt               string `json:"total_debt_usd"`
	AvailableBorrows        string `json:"available_borrows_usd"`
	LiquidationThresholdPct string `json:"liquidation_threshold_pct"`
	LTVPct                  string `json:"ltv_pct"`
	HealthFactor            string `json:"health_factor"`
	TokenBalance            string `json:"usdc_balance"`
}

type WalletDetails struct {
	WalletID     string `json:"wallet_id,omitempty"`
	Address      string `json:"address"`
	NetworkID    string `json:"network_id"`
	ChainID      string `json:"chain_id"`
	NativeSymbol string `json:"native_symbol"`
	NativeAmount string `json:"native_balance"`
	TokenSymbol  string `json:"token_symbol"`
	TokenAmount  string `json:"token_balance"`
}

type FaucetTransaction struct {
	AssetID         string `json:"asset_id"`
	TransactionHash string `json:"transaction_hash"`
	TransactionLink string `json:"transaction_link,omitempty"`
}
