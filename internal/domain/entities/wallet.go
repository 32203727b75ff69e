package entities

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// DeployState is the per-chain wallet deployment state machine:
// undeployed → pending → deployed | failed. deployed is terminal;
// failed → pending only via explicit redeploy.
type DeployState string

const (
	DeployStateUndeployed DeployState = "undeployed"
	DeployStatePending    DeployState = "pending"
	DeployStateDeployed   DeployState = "deployed"
	DeployStateFailed     DeployState = "failed"
)

// ChainDeployment carries the mutable deployment state for one chain
type ChainDeployment struct {
	Status      DeployState `json:"status"`
	TxHash      null.String `json:"txHash,omitempty"`
	BlockNumber null.Int64  `json:"blockNumber,omitempty"`
	Error       null.String `json:"error,omitempty"`
}

// Wallet is the per-end-user wallet record, unique on
// (projectId, socialId, socialType). Addresses are deterministically derived
// and stable; only deployment state mutates.
type Wallet struct {
	ID              string                     `json:"id"`
	ProjectID       string                     `json:"projectId"`
	SocialID        string                     `json:"socialId"`
	SocialType      string                     `json:"socialType"`
	Addresses       map[Chain]string           `json:"addresses"`
	Deployments     map[Chain]ChainDeployment  `json:"deployments"`
	Metadata        map[string]interface{}     `json:"metadata,omitempty"`
	CreatedAt       time.Time                  `json:"createdAt"`
	UpdatedAt       time.Time                  `json:"updatedAt"`
}

// CreateWalletInput represents wallet creation input. socialType is opaque:
// the service stores whatever the caller supplies.
type CreateWalletInput struct {
	SocialID         string                 `json:"socialId" binding:"required"`
	SocialType       string                 `json:"socialType" binding:"required"`
	Chains           []Chain                `json:"chains" binding:"required,min=1"`
	PaymasterEnabled *bool                  `json:"paymasterEnabled,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// DeployWalletInput represents a deployment request
type DeployWalletInput struct {
	WalletID string  `json:"walletId" binding:"required"`
	Chains   []Chain `json:"chains" binding:"required,min=1"`
}

// DeployResult reports the outcome of a deploy call for one chain
type DeployResult struct {
	Chain  Chain       `json:"chain"`
	Status DeployState `json:"status"`
	TxHash string      `json:"txHash,omitempty"`
	Error  string      `json:"error,omitempty"`
}
