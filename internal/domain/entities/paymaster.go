package entities

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Low-balance policy thresholds, USD
const (
	DefaultLowThresholdUSD = 10.0
	DefaultHardFloorUSD    = 1.0
)

// PaymentOperationType classifies what a sponsored payment paid for
type PaymentOperationType string

const (
	OpWalletDeploy        PaymentOperationType = "wallet_deploy"
	OpTransactionSponsor  PaymentOperationType = "transaction_sponsor"
	OpContractInteraction PaymentOperationType = "contract_interaction"
)

// PaymentStatus is monotonic: pending → confirmed | failed, terminal once reached
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// ProjectPaymaster is the per-(project, chain) sponsoring wallet
type ProjectPaymaster struct {
	ID                  string    `json:"id"`
	ProjectID           string    `json:"projectId"`
	Chain               Chain     `json:"chain"`
	Address             string    `json:"address"`
	EncryptedPrivateKey string    `json:"-"`
	Frozen              bool      `json:"frozen"`
	CreatedAt           time.Time `json:"createdAt"`
}

// PaymasterBalance is the cached chain balance, refreshed by a background
// worker and on explicit reads
type PaymasterBalance struct {
	ProjectID     string      `json:"projectId"`
	Chain         Chain       `json:"chain"`
	Address       string      `json:"address"`
	BalanceNative float64     `json:"balanceNative"`
	BalanceWei    string      `json:"balanceWei"`
	BalanceUSD    float64     `json:"balanceUsd"`
	TokenPriceUSD float64     `json:"tokenPriceUsd"`
	LastUpdated   time.Time   `json:"lastUpdated"`
	LastTxHash    null.String `json:"lastTxHash,omitempty"`
}

// PaymasterPayment is an append-only sponsored-payment ledger row.
// AmountWei is the canonical raw integer; Amount is derived from chain decimals.
type PaymasterPayment struct {
	ID                string               `json:"id"`
	ProjectID         string               `json:"projectId"`
	PaymasterAddress  string               `json:"paymasterAddress"`
	Chain             Chain                `json:"chain"`
	Amount            float64              `json:"amount"`
	AmountWei         string               `json:"amountWei"`
	GasForAddress     string               `json:"gasForAddress"`
	TxHash            string               `json:"txHash"`
	BlockNumber       null.Int64           `json:"blockNumber,omitempty"`
	GasPrice          null.String          `json:"gasPrice,omitempty"`
	GasUsed           null.Int64           `json:"gasUsed,omitempty"`
	USDValue          float64              `json:"usdValue"`
	OperationType     PaymentOperationType `json:"operationType"`
	UserOperationHash null.String          `json:"userOperationHash,omitempty"`
	Status            PaymentStatus        `json:"status"`
	CreatedAt         time.Time            `json:"createdAt"`
}

// FundingMethod selects how a paymaster is topped up
type FundingMethod string

const (
	FundingMethodDeposit FundingMethod = "deposit"
	FundingMethodCard    FundingMethod = "card"
)

// FundInput represents a funding request
type FundInput struct {
	Chain     Chain         `json:"chain" binding:"required"`
	Method    FundingMethod `json:"method" binding:"required"`
	AmountUSD float64       `json:"amountUsd,omitempty"`
}

// FundResponse carries either a deposit address + QR payload or an external
// checkout URL, depending on the method
type FundResponse struct {
	Method         FundingMethod `json:"method"`
	Chain          Chain         `json:"chain"`
	DepositAddress string        `json:"depositAddress,omitempty"`
	QRPayload      string        `json:"qrPayload,omitempty"`
	CheckoutURL    string        `json:"checkoutUrl,omitempty"`
}
