package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Security  SecurityConfig
	Chains    ChainsConfig
	Oracle    OracleConfig
	Email     EmailConfig
	Stripe    StripeConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// IsProduction reports whether the service runs in the production environment
func (c ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode + "&prepare_threshold=0"
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Expiry   time.Duration
}

// SecurityConfig holds encryption and signing secrets
type SecurityConfig struct {
	// APIKeyEncryptionKey is the 32-byte hex master key for API-key AEAD
	APIKeyEncryptionKey string
	// KeyIndexSecret keys the plaintext HMAC lookup index
	KeyIndexSecret string
	// MasterDerivationSecret seeds all deterministic wallet/paymaster keys
	MasterDerivationSecret string
	// PaymasterKeyEncryptionKey is the 32-byte hex key for JWE at-rest keys
	PaymasterKeyEncryptionKey string
	// WebhookSigningSecret signs outbound webhook bodies
	WebhookSigningSecret string
}

// ChainConfig holds one chain registry entry
type ChainConfig struct {
	RPCURL                  string
	ExplorerURL             string
	WalletFactoryAddress    string
	EntryPointAddress       string
	PaymasterFactoryAddress string
	WalletProgramID         string // Solana only
	PriceID                 string // oracle asset id
}

// ChainsConfig holds per-chain registry entries
type ChainsConfig struct {
	Ethereum ChainConfig
	Arbitrum ChainConfig
	Solana   ChainConfig
}

// OracleConfig holds token price oracle settings
type OracleConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// EmailConfig holds the email collaborator settings
type EmailConfig struct {
	FromAddress string
	APIBaseURL  string
	APIKey      string
	Timeout     time.Duration
}

// StripeConfig holds card-funding settings
type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
}

// RateLimitConfig holds request-pipeline limits
type RateLimitConfig struct {
	PerKeyPerHour     int
	PerProjectPerHour int
	AuthPer15Min      int
	ResetPerHour      int
	MaxBodyBytes      int64
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "nexuspay"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", "change-this-in-production"),
			Issuer:   getEnv("JWT_ISSUER", "nexuspay"),
			Audience: getEnv("JWT_AUDIENCE", "nexuspay-api"),
			Expiry:   getEnvAsDuration("JWT_EXPIRY", 24*time.Hour),
		},
		Security: SecurityConfig{
			APIKeyEncryptionKey:       getEnv("API_KEY_ENCRYPTION_KEY", "0000000000000000000000000000000000000000000000000000000000000000"), // 32-bytes hex string
			KeyIndexSecret:            getEnv("KEY_INDEX_SECRET", "change-this-in-production"),
			MasterDerivationSecret:    getEnv("MASTER_DERIVATION_SECRET", "change-this-in-production"),
			PaymasterKeyEncryptionKey: getEnv("PAYMASTER_KEY_ENCRYPTION_KEY", "0000000000000000000000000000000000000000000000000000000000000000"),
			WebhookSigningSecret:      getEnv("WEBHOOK_SIGNING_SECRET", "change-this-in-production"),
		},
		Chains: ChainsConfig{
			Ethereum: ChainConfig{
				RPCURL:                  getEnv("ETHEREUM_RPC_URL", "https://ethereum-sepolia-rpc.publicnode.com"),
				ExplorerURL:             getEnv("ETHEREUM_EXPLORER_URL", "https://sepolia.etherscan.io"),
				WalletFactoryAddress:    getEnv("ETHEREUM_WALLET_FACTORY", ""),
				EntryPointAddress:       getEnv("ETHEREUM_ENTRYPOINT", "0x0000000071727De22E5E9d8BAf0edAc6f37da032"),
				PaymasterFactoryAddress: getEnv("ETHEREUM_PAYMASTER_FACTORY", ""),
				PriceID:                 getEnv("ETHEREUM_PRICE_ID", "ethereum"),
			},
			Arbitrum: ChainConfig{
				RPCURL:                  getEnv("ARBITRUM_RPC_URL", "https://sepolia-rollup.arbitrum.io/rpc"),
				ExplorerURL:             getEnv("ARBITRUM_EXPLORER_URL", "https://sepolia.arbiscan.io"),
				WalletFactoryAddress:    getEnv("ARBITRUM_WALLET_FACTORY", ""),
				EntryPointAddress:       getEnv("ARBITRUM_ENTRYPOINT", "0x0000000071727De22E5E9d8BAf0edAc6f37da032"),
				PaymasterFactoryAddress: getEnv("ARBITRUM_PAYMASTER_FACTORY", ""),
				PriceID:                 getEnv("ARBITRUM_PRICE_ID", "ethereum"),
			},
			Solana: ChainConfig{
				RPCURL:          getEnv("SOLANA_RPC_URL", "https://api.devnet.solana.com"),
				ExplorerURL:     getEnv("SOLANA_EXPLORER_URL", "https://explorer.solana.com"),
				WalletProgramID: getEnv("SOLANA_WALLET_PROGRAM_ID", ""),
				PriceID:         getEnv("SOLANA_PRICE_ID", "solana"),
			},
		},
		Oracle: OracleConfig{
			BaseURL: getEnv("PRICE_ORACLE_URL", "https://api.coingecko.com/api/v3"),
			APIKey:  getEnv("PRICE_ORACLE_KEY", ""),
			Timeout: getEnvAsDuration("PRICE_ORACLE_TIMEOUT", 10*time.Second),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM", "no-reply@nexuspay.dev"),
			APIBaseURL:  getEnv("EMAIL_API_URL", ""),
			APIKey:      getEnv("EMAIL_API_KEY", ""),
			Timeout:     getEnvAsDuration("EMAIL_TIMEOUT", 10*time.Second),
		},
		Stripe: StripeConfig{
			SecretKey:  getEnv("STRIPE_SECRET_KEY", ""),
			SuccessURL: getEnv("STRIPE_SUCCESS_URL", "https://dashboard.nexuspay.dev/funding/success"),
			CancelURL:  getEnv("STRIPE_CANCEL_URL", "https://dashboard.nexuspay.dev/funding/cancel"),
		},
		RateLimit: RateLimitConfig{
			PerKeyPerHour:     getEnvAsInt("RATE_LIMIT_PER_KEY_HOUR", 1000),
			PerProjectPerHour: getEnvAsInt("RATE_LIMIT_PER_PROJECT_HOUR", 5000),
			AuthPer15Min:      getEnvAsInt("RATE_LIMIT_AUTH_15MIN", 10),
			ResetPerHour:      getEnvAsInt("RATE_LIMIT_RESET_HOUR", 3),
			MaxBodyBytes:      int64(getEnvAsInt("MAX_BODY_BYTES", 1<<20)),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
