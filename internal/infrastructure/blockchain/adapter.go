package blockchain

import (
	"context"
	"math/big"

	"nexuspay.backend/internal/domain/entities"
)

// Receipt is the chain-neutral transaction receipt surfaced to the pollers
type Receipt struct {
	TxHash      string
	BlockNumber int64
	GasUsed     int64
	GasPriceWei string
	Success     bool
	// Confirmed reports whether the chain's confirmation requirement is met;
	// an unconfirmed receipt is re-polled.
	Confirmed bool
}

// SponsoredOp is a gas-sponsored operation submitted through a paymaster
type SponsoredOp struct {
	Sender   string
	Target   string
	CallData []byte
	ValueWei *big.Int
	OpType   entities.PaymentOperationType
}

// PaymasterDeployer is the factory surface of chains whose paymasters are
// on-chain contracts: a CREATE2 proxy owned by the sponsor EOA, deployed
// through the chain's paymaster factory. The predicted address is stable
// before the deployment lands, so it can be recorded and funded up front.
// Solana paymasters are plain fee-payer keypairs and do not implement it.
type PaymasterDeployer interface {
	// PredictPaymasterAddress returns the counterfactual proxy address for a
	// sponsor and salt without sending a transaction.
	PredictPaymasterAddress(ctx context.Context, sponsorAddress string, salt [32]byte) (string, error)

	// DeployPaymaster submits the factory deployment, gas paid by the sponsor.
	DeployPaymaster(ctx context.Context, sponsorKey []byte, sponsorAddress string, salt [32]byte) (string, error)
}

// ChainAdapter is the per-chain on-chain surface. sponsorKey is the raw
// private key material of the sponsoring paymaster: secp256k1 (32 bytes) on
// EVM chains, ed25519 on Solana.
type ChainAdapter interface {
	Chain() entities.Chain

	// PredictWalletAddress returns the counterfactual wallet address for a
	// derived owner and salt without sending a transaction.
	PredictWalletAddress(ctx context.Context, ownerAddress string, salt [32]byte) (string, error)

	// DeployWallet submits the factory deployment, gas paid by the sponsor.
	DeployWallet(ctx context.Context, sponsorKey []byte, ownerAddress string, salt [32]byte) (string, error)

	// SubmitSponsoredOp submits an arbitrary sponsored operation.
	SubmitSponsoredOp(ctx context.Context, sponsorKey []byte, op SponsoredOp) (string, error)

	// GetBalance returns the native balance in raw units (wei / lamports).
	GetBalance(ctx context.Context, address string) (*big.Int, error)

	// GetReceipt returns nil without error while the transaction is unmined.
	GetReceipt(ctx context.Context, txHash string) (*Receipt, error)

	ExplorerTxURL(txHash string) string
}
