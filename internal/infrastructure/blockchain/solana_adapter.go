package blockchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"nexuspay.backend/internal/domain/entities"
)

// walletPDASeed prefixes the program-derived address of every smart wallet.
const walletPDASeed = "wallet"

// solanaRPC is the slice of rpc.Client the adapter needs; tests inject a stub.
type solanaRPC interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetTransaction(ctx context.Context, txSig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
}

// SolanaAdapter implements ChainAdapter against a wallet program whose
// accounts are PDAs of (owner, salt)
type SolanaAdapter struct {
	client      solanaRPC
	programID   solana.PublicKey
	explorerURL string
}

// NewSolanaAdapter creates an adapter from an RPC endpoint
func NewSolanaAdapter(rpcURL, programID, explorerURL string) (*SolanaAdapter, error) {
	program, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("wallet program id: %w", err)
	}
	return &SolanaAdapter{
		client:      rpc.New(rpcURL),
		programID:   program,
		explorerURL: explorerURL,
	}, nil
}

// NewSolanaAdapterWithClient injects the RPC surface, for tests
func NewSolanaAdapterWithClient(client solanaRPC, programID solana.PublicKey, explorerURL string) *SolanaAdapter {
	return &SolanaAdapter{
		client:      client,
		programID:   programID,
		explorerURL: explorerURL,
	}
}

// Chain returns the adapter's chain
func (a *SolanaAdapter) Chain() entities.Chain {
	return entities.ChainSolana
}

// PredictWalletAddress derives the wallet PDA. FindProgramAddress is pure, so
// the address is stable without any network round trip.
func (a *SolanaAdapter) PredictWalletAddress(_ context.Context, ownerAddress string, salt [32]byte) (string, error) {
	owner, err := solana.PublicKeyFromBase58(ownerAddress)
	if err != nil {
		return "", fmt.Errorf("owner address: %w", err)
	}
	pda, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(walletPDASeed), owner.Bytes(), salt[:]},
		a.programID,
	)
	if err != nil {
		return "", fmt.Errorf("derive wallet pda: %w", err)
	}
	return pda.String(), nil
}

// DeployWallet sends the program's create instruction, fees paid by the sponsor
func (a *SolanaAdapter) DeployWallet(ctx context.Context, sponsorKey []byte, ownerAddress string, salt [32]byte) (string, error) {
	owner, err := solana.PublicKeyFromBase58(ownerAddress)
	if err != nil {
		return "", fmt.Errorf("owner address: %w", err)
	}
	pda, bump, err := solana.FindProgramAddress(
		[][]byte{[]byte(walletPDASeed), owner.Bytes(), salt[:]},
		a.programID,
	)
	if err != nil {
		return "", fmt.Errorf("derive wallet pda: %w", err)
	}

	payer := solana.PrivateKey(sponsorKey)

	// Instruction data: create discriminator, owner, salt, bump.
	data := make([]byte, 0, 1+32+32+1)
	data = append(data, 0)
	data = append(data, owner.Bytes()...)
	data = append(data, salt[:]...)
	data = append(data, bump)

	instruction := solana.NewInstruction(
		a.programID,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(payer.PublicKey(), true, true),
			solana.NewAccountMeta(pda, true, false),
			solana.NewAccountMeta(solana.SystemProgramID, false, false),
		},
		data,
	)
	return a.signAndSend(ctx, payer, []solana.Instruction{instruction})
}

// SubmitSponsoredOp submits a sponsored instruction, fees paid by the sponsor.
// op.Target is the program to invoke; op.CallData is its instruction data.
func (a *SolanaAdapter) SubmitSponsoredOp(ctx context.Context, sponsorKey []byte, op SponsoredOp) (string, error) {
	program, err := solana.PublicKeyFromBase58(op.Target)
	if err != nil {
		return "", fmt.Errorf("target program: %w", err)
	}
	sender, err := solana.PublicKeyFromBase58(op.Sender)
	if err != nil {
		return "", fmt.Errorf("sender: %w", err)
	}

	payer := solana.PrivateKey(sponsorKey)
	instruction := solana.NewInstruction(
		program,
		solana.AccountMetaSlice{
			solana.NewAccountMeta(payer.PublicKey(), true, true),
			solana.NewAccountMeta(sender, true, false),
		},
		op.CallData,
	)
	return a.signAndSend(ctx, payer, []solana.Instruction{instruction})
}

func (a *SolanaAdapter) signAndSend(ctx context.Context, payer solana.PrivateKey, instructions []solana.Instruction) (string, error) {
	recent, err := a.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(payer.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("build tx: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer.PublicKey()) {
			return &payer
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}

	sig, err := a.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}
	return sig.String(), nil
}

// GetBalance returns the native balance in lamports
func (a *SolanaAdapter) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	out, err := a.client.GetBalance(ctx, pubkey, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(out.Value), nil
}

// GetReceipt returns the transaction result once it reaches the confirmed
// commitment, nil while pending. GasUsed carries the fee in lamports with a
// unit gas price, so cost math stays uniform across chains.
func (a *SolanaAdapter) GetReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	sig, err := solana.SignatureFromBase58(txHash)
	if err != nil {
		return nil, fmt.Errorf("signature: %w", err)
	}

	out, err := a.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil || out == nil {
		// Not yet landed at the requested commitment.
		return nil, nil
	}

	receipt := &Receipt{
		TxHash:      txHash,
		BlockNumber: int64(out.Slot),
		GasPriceWei: "1",
		Success:     true,
		Confirmed:   true,
	}
	if out.Meta != nil {
		receipt.GasUsed = int64(out.Meta.Fee)
		receipt.Success = out.Meta.Err == nil
	}
	return receipt, nil
}

// ExplorerTxURL builds the explorer link for a signature
func (a *SolanaAdapter) ExplorerTxURL(txHash string) string {
	return a.explorerURL + "/tx/" + txHash
}
