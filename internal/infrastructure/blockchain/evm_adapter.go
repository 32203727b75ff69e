package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"nexuspay.backend/internal/domain/entities"
)

// Factory call gas ceilings. Deploys go through CREATE2 factories with a
// known upper bound; sponsored ops fall back to the same ceiling when the
// node cannot estimate.
const (
	deployGasLimit      = 600_000
	sponsoredOpGasLimit = 400_000
)

var (
	addressType, _ = abi.NewType("address", "", nil)
	bytes32Type, _ = abi.NewType("bytes32", "", nil)

	factoryCallArgs = abi.Arguments{
		{Name: "owner", Type: addressType},
		{Name: "salt", Type: bytes32Type},
	}

	getWalletAddressSelector = ethcrypto.Keccak256([]byte("getWalletAddress(address,bytes32)"))[:4]
	createWalletSelector     = ethcrypto.Keccak256([]byte("createWallet(address,bytes32)"))[:4]

	getPaymasterAddressSelector = ethcrypto.Keccak256([]byte("getPaymasterAddress(address,bytes32)"))[:4]
	createPaymasterSelector     = ethcrypto.Keccak256([]byte("createPaymaster(address,bytes32)"))[:4]
)

// EVMAdapter implements ChainAdapter for an EVM chain via its CREATE2 wallet
// and paymaster factories
type EVMAdapter struct {
	chain            entities.Chain
	client           *EVMClient
	factoryAddress   string
	paymasterFactory string
	explorerURL      string
}

// NewEVMAdapter creates an adapter bound to one chain's factories
func NewEVMAdapter(chain entities.Chain, client *EVMClient, factoryAddress, paymasterFactory, explorerURL string) *EVMAdapter {
	return &EVMAdapter{
		chain:            chain,
		client:           client,
		factoryAddress:   factoryAddress,
		paymasterFactory: paymasterFactory,
		explorerURL:      explorerURL,
	}
}

// Chain returns the adapter's chain
func (a *EVMAdapter) Chain() entities.Chain {
	return a.chain
}

func packFactoryCall(selector []byte, ownerAddress string, salt [32]byte) ([]byte, error) {
	packed, err := factoryCallArgs.Pack(common.HexToAddress(ownerAddress), salt)
	if err != nil {
		return nil, fmt.Errorf("pack factory call: %w", err)
	}
	return append(append([]byte{}, selector...), packed...), nil
}

// PredictWalletAddress asks the factory for the counterfactual CREATE2
// address. The call is pure, so the result is stable across invocations.
func (a *EVMAdapter) PredictWalletAddress(ctx context.Context, ownerAddress string, salt [32]byte) (string, error) {
	data, err := packFactoryCall(getWalletAddressSelector, ownerAddress, salt)
	if err != nil {
		return "", err
	}
	out, err := a.client.CallView(ctx, a.factoryAddress, data)
	if err != nil {
		return "", fmt.Errorf("factory getWalletAddress: %w", err)
	}
	if len(out) < 32 {
		return "", fmt.Errorf("factory returned %d bytes, want 32", len(out))
	}
	return common.BytesToAddress(out[12:32]).Hex(), nil
}

// DeployWallet submits createWallet through the factory, gas paid by the
// sponsor key
func (a *EVMAdapter) DeployWallet(ctx context.Context, sponsorKey []byte, ownerAddress string, salt [32]byte) (string, error) {
	data, err := packFactoryCall(createWalletSelector, ownerAddress, salt)
	if err != nil {
		return "", err
	}
	return a.sendSigned(ctx, sponsorKey, a.factoryAddress, data, nil, deployGasLimit)
}

// PredictPaymasterAddress asks the paymaster factory for the CREATE2 proxy
// address owned by the sponsor
func (a *EVMAdapter) PredictPaymasterAddress(ctx context.Context, sponsorAddress string, salt [32]byte) (string, error) {
	data, err := packFactoryCall(getPaymasterAddressSelector, sponsorAddress, salt)
	if err != nil {
		return "", err
	}
	out, err := a.client.CallView(ctx, a.paymasterFactory, data)
	if err != nil {
		return "", fmt.Errorf("factory getPaymasterAddress: %w", err)
	}
	if len(out) < 32 {
		return "", fmt.Errorf("factory returned %d bytes, want 32", len(out))
	}
	return common.BytesToAddress(out[12:32]).Hex(), nil
}

// DeployPaymaster submits createPaymaster through the factory, gas paid by
// the sponsor key
func (a *EVMAdapter) DeployPaymaster(ctx context.Context, sponsorKey []byte, sponsorAddress string, salt [32]byte) (string, error) {
	data, err := packFactoryCall(createPaymasterSelector, sponsorAddress, salt)
	if err != nil {
		return "", err
	}
	return a.sendSigned(ctx, sponsorKey, a.paymasterFactory, data, nil, deployGasLimit)
}

// SubmitSponsoredOp submits an arbitrary call signed and paid by the sponsor
func (a *EVMAdapter) SubmitSponsoredOp(ctx context.Context, sponsorKey []byte, op SponsoredOp) (string, error) {
	return a.sendSigned(ctx, sponsorKey, op.Target, op.CallData, op.ValueWei, sponsoredOpGasLimit)
}

func (a *EVMAdapter) sendSigned(ctx context.Context, sponsorKey []byte, to string, data []byte, value *big.Int, gasLimit uint64) (string, error) {
	key, err := ethcrypto.ToECDSA(sponsorKey)
	if err != nil {
		return "", fmt.Errorf("sponsor key: %w", err)
	}
	from := ethcrypto.PubkeyToAddress(key.PublicKey)

	nonce, err := a.client.PendingNonce(ctx, from.Hex())
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("gas price: %w", err)
	}
	if value == nil {
		value = new(big.Int)
	}

	toAddr := common.HexToAddress(to)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &toAddr,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(a.client.ChainID()), key)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}
	if err := a.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// GetBalance returns the native balance in wei
func (a *EVMAdapter) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return a.client.GetBalance(ctx, address)
}

// GetReceipt returns the receipt once mined, nil while pending
func (a *EVMAdapter) GetReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	receipt, err := a.client.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		// go-ethereum reports unmined transactions as not-found. Anything
		// else is a transport failure the poller must see, or a sustained
		// outage would age pending work into failure.
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("receipt %s: %w", txHash, err)
	}
	if receipt == nil {
		return nil, nil
	}

	head, err := a.client.GetBlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	gasPrice := ""
	if receipt.EffectiveGasPrice != nil {
		gasPrice = receipt.EffectiveGasPrice.String()
	}
	blockNumber := receipt.BlockNumber.Uint64()
	return &Receipt{
		TxHash:      txHash,
		BlockNumber: int64(blockNumber),
		GasUsed:     int64(receipt.GasUsed),
		GasPriceWei: gasPrice,
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		Confirmed:   head >= blockNumber && head-blockNumber+1 >= a.chain.Confirmations(),
	}, nil
}

// ExplorerTxURL builds the block-explorer link for a transaction
func (a *EVMAdapter) ExplorerTxURL(txHash string) string {
	return a.explorerURL + "/tx/" + txHash
}
