package blockchain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	dialEVMClient    = ethclient.Dial
	getClientChainID = func(client *ethclient.Client, ctx context.Context) (*big.Int, error) {
		return client.ChainID(ctx)
	}
)

// EVMClient provides EVM blockchain interaction
type EVMClient struct {
	client  *ethclient.Client
	chainID *big.Int
	rpcURL  string

	// test hooks allow deterministic unit tests without network sockets
	testCallView    func(ctx context.Context, to string, data []byte) ([]byte, error)
	testSendTx      func(ctx context.Context, tx *types.Transaction) error
	testNonce       func(ctx context.Context, account string) (uint64, error)
	testGasPrice    func(ctx context.Context) (*big.Int, error)
	testReceipt     func(ctx context.Context, txHash string) (*types.Receipt, error)
	testBlockNumber func(ctx context.Context) (uint64, error)
	testBalance     func(ctx context.Context, address string) (*big.Int, error)
}

// NewEVMClient creates a new EVM client
func NewEVMClient(rpcURL string) (*EVMClient, error) {
	client, err := dialEVMClient(rpcURL)
	if err != nil {
		return nil, err
	}

	chainID, err := getClientChainID(client, context.Background())
	if err != nil {
		return nil, err
	}

	return &EVMClient{
		client:  client,
		chainID: chainID,
		rpcURL:  rpcURL,
	}, nil
}

// NewEVMClientForTest creates a client backed entirely by injected hooks.
// Intended for unit tests where RPC sockets are unavailable.
func NewEVMClientForTest(chainID *big.Int, hooks EVMTestHooks) *EVMClient {
	if chainID == nil {
		chainID = big.NewInt(1)
	}
	return &EVMClient{
		chainID:         chainID,
		testCallView:    hooks.CallView,
		testSendTx:      hooks.SendTx,
		testNonce:       hooks.Nonce,
		testGasPrice:    hooks.GasPrice,
		testReceipt:     hooks.Receipt,
		testBlockNumber: hooks.BlockNumber,
		testBalance:     hooks.Balance,
	}
}

// EVMTestHooks bundles the injectable behaviors for NewEVMClientForTest
type EVMTestHooks struct {
	CallView    func(ctx context.Context, to string, data []byte) ([]byte, error)
	SendTx      func(ctx context.Context, tx *types.Transaction) error
	Nonce       func(ctx context.Context, account string) (uint64, error)
	GasPrice    func(ctx context.Context) (*big.Int, error)
	Receipt     func(ctx context.Context, txHash string) (*types.Receipt, error)
	BlockNumber func(ctx context.Context) (uint64, error)
	Balance     func(ctx context.Context, address string) (*big.Int, error)
}

// ChainID returns the chain ID
func (c *EVMClient) ChainID() *big.Int {
	return c.chainID
}

// GetBalance gets the native token balance of an address
func (c *EVMClient) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if c.testBalance != nil {
		return c.testBalance(ctx, address)
	}
	addr := common.HexToAddress(address)
	return c.client.BalanceAt(ctx, addr, nil)
}

// PendingNonce gets the next nonce for an account
func (c *EVMClient) PendingNonce(ctx context.Context, account string) (uint64, error) {
	if c.testNonce != nil {
		return c.testNonce(ctx, account)
	}
	return c.client.PendingNonceAt(ctx, common.HexToAddress(account))
}

// SuggestGasPrice gets the suggested gas price
func (c *EVMClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if c.testGasPrice != nil {
		return c.testGasPrice(ctx)
	}
	return c.client.SuggestGasPrice(ctx)
}

// SendTransaction broadcasts a signed transaction
func (c *EVMClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if c.testSendTx != nil {
		return c.testSendTx(ctx, tx)
	}
	return c.client.SendTransaction(ctx, tx)
}

// GetTransactionReceipt gets a transaction receipt
func (c *EVMClient) GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	if c.testReceipt != nil {
		return c.testReceipt(ctx, txHash)
	}
	return c.client.TransactionReceipt(ctx, common.HexToHash(txHash))
}

// GetBlockNumber gets the latest block number
func (c *EVMClient) GetBlockNumber(ctx context.Context) (uint64, error) {
	if c.testBlockNumber != nil {
		return c.testBlockNumber(ctx)
	}
	return c.client.BlockNumber(ctx)
}

// EstimateGas estimates gas for a transaction
func (c *EVMClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return c.client.EstimateGas(ctx, msg)
}

// CallView executes a read-only contract call
func (c *EVMClient) CallView(ctx context.Context, to string, data []byte) ([]byte, error) {
	if c.testCallView != nil {
		return c.testCallView(ctx, to, data)
	}
	addr := common.HexToAddress(to)
	msg := ethereum.CallMsg{
		To:   &addr,
		Data: data,
	}
	return c.client.CallContract(ctx, msg, nil)
}

// Close closes the client connection
func (c *EVMClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}
