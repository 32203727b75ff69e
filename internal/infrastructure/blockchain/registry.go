package blockchain

import (
	"fmt"
	"sync"

	"nexuspay.backend/internal/config"
	"nexuspay.backend/internal/domain/entities"
	domainerrors "nexuspay.backend/internal/domain/errors"
)

// Registry resolves the ChainAdapter for each enabled chain. Adapters dial
// lazily so the server boots even when a chain's RPC is briefly unreachable.
type Registry struct {
	cfg      config.ChainsConfig
	mu       sync.RWMutex
	adapters map[entities.Chain]ChainAdapter
}

// NewRegistry creates an empty registry over the chain configuration
func NewRegistry(cfg config.ChainsConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		adapters: make(map[entities.Chain]ChainAdapter),
	}
}

// Register injects an adapter, overriding lazy construction. Used by tests
// and by callers that pre-dial at startup.
func (r *Registry) Register(adapter ChainAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Chain()] = adapter
}

// Adapter returns the adapter for a chain, constructing it on first use
func (r *Registry) Adapter(chain entities.Chain) (ChainAdapter, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[chain]
	r.mu.RUnlock()
	if ok {
		return adapter, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if adapter, ok := r.adapters[chain]; ok {
		return adapter, nil
	}

	adapter, err := r.build(chain)
	if err != nil {
		return nil, err
	}
	r.adapters[chain] = adapter
	return adapter, nil
}

func (r *Registry) build(chain entities.Chain) (ChainAdapter, error) {
	switch chain {
	case entities.ChainEthereum:
		return r.buildEVM(chain, r.cfg.Ethereum)
	case entities.ChainArbitrum:
		return r.buildEVM(chain, r.cfg.Arbitrum)
	case entities.ChainSolana:
		return NewSolanaAdapter(r.cfg.Solana.RPCURL, r.cfg.Solana.WalletProgramID, r.cfg.Solana.ExplorerURL)
	default:
		return nil, domainerrors.ErrUnsupportedChain
	}
}

func (r *Registry) buildEVM(chain entities.Chain, cfg config.ChainConfig) (ChainAdapter, error) {
	client, err := NewEVMClient(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", chain, err)
	}
	return NewEVMAdapter(chain, client, cfg.WalletFactoryAddress, cfg.PaymasterFactoryAddress, cfg.ExplorerURL), nil
}
