package entities

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// TxStatus represents on-chain transaction status
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
	TxStatusDropped   TxStatus = "dropped"
)

// Transaction types recorded in the log
const (
	TxTypeWalletDeployment = "wallet_deployment"
	TxTypeSponsoredOp      = "sponsored_operation"
	TxTypeTransfer         = "transfer"
)

// TransactionLog is the append-only per-project transaction record.
// A confirmed row with PaymasterPaid=true has a PaymasterPayment with the
// same txHash.
type TransactionLog struct {
	ID                 string                 `json:"id"`
	ProjectID          string                 `json:"projectId"`
	TransactionType    string                 `json:"transactionType"`
	Chain              Chain                  `json:"chain"`
	WalletAddress      string                 `json:"walletAddress"`
	UserIdentifier     string                 `json:"userIdentifier"`
	SocialType         string                 `json:"socialType"`
	TxHash             null.String            `json:"txHash,omitempty"`
	BlockNumber        null.Int64             `json:"blockNumber,omitempty"`
	GasLimit           null.Int64             `json:"gasLimit,omitempty"`
	GasUsed            null.Int64             `json:"gasUsed,omitempty"`
	GasPrice           null.String            `json:"gasPrice,omitempty"`
	GasCost            null.String            `json:"gasCost,omitempty"`
	GasCostUSD         float64                `json:"gasCostUsd"`
	Currency           string                 `json:"currency"`
	PaymasterPaid      bool                   `json:"paymasterPaid"`
	PaymasterAddress   null.String            `json:"paymasterAddress,omitempty"`
	Status             TxStatus               `json:"status"`
	ErrorMessage       null.String            `json:"errorMessage,omitempty"`
	TransactionDetails map[string]interface{} `json:"transactionDetails,omitempty"`
	Metadata           map[string]interface{} `json:"metadata,omitempty"`
	ExplorerURL        string                 `json:"explorerUrl,omitempty"`
	CreatedAt          time.Time              `json:"createdAt"`
	ConfirmedAt        null.Time              `json:"confirmedAt,omitempty"`
}

// TransactionFilter narrows list queries
type TransactionFilter struct {
	Chain  Chain     `form:"chain"`
	Status TxStatus  `form:"status"`
	From   time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}
