package entities

// Chain identifies a supported network
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainArbitrum Chain = "arbitrum"
	ChainSolana   Chain = "solana"
)

// ChainKind distinguishes the execution environment
type ChainKind string

const (
	ChainKindEVM ChainKind = "evm"
	ChainKindSVM ChainKind = "svm"
)

// SupportedChains is the closed set a project may enable
var SupportedChains = []Chain{ChainEthereum, ChainArbitrum, ChainSolana}

// IsSupportedChain reports whether c is in the supported set
func IsSupportedChain(c Chain) bool {
	for _, s := range SupportedChains {
		if s == c {
			return true
		}
	}
	return false
}

// Kind returns the execution environment for a chain
func (c Chain) Kind() ChainKind {
	if c == ChainSolana {
		return ChainKindSVM
	}
	return ChainKindEVM
}

// NativeDecimals returns the raw-unit exponent of the chain's native token.
// amountWei is canonical; display amounts divide by 10^decimals.
func (c Chain) NativeDecimals() int {
	if c == ChainSolana {
		return 9
	}
	return 18
}

// NativeSymbol returns the native token ticker
func (c Chain) NativeSymbol() string {
	if c == ChainSolana {
		return "SOL"
	}
	return "ETH"
}

// Confirmations returns the receipt confirmation requirement
func (c Chain) Confirmations() uint64 {
	if c == ChainSolana {
		return 1 // commitment=confirmed
	}
	return 2
}
