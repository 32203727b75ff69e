package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createUserTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT,
		oauth_id TEXT,
		oauth_provider TEXT,
		name TEXT NOT NULL,
		company TEXT,
		email_verified BOOLEAN DEFAULT FALSE,
		verification_token TEXT,
		verification_expires DATETIME,
		reset_token TEXT,
		reset_expires DATETIME,
		last_login DATETIME,
		login_attempts INTEGER DEFAULT 0,
		locked_until DATETIME,
		status TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	);`)
}

func createProjectTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT UNIQUE NOT NULL,
		description TEXT,
		website TEXT,
		owner_id TEXT NOT NULL,
		chains TEXT NOT NULL,
		paymaster_enabled BOOLEAN DEFAULT TRUE,
		webhook_url TEXT,
		rate_limit_per_minute INTEGER DEFAULT 1000,
		status TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE project_members (
		project_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		email TEXT NOT NULL,
		role TEXT NOT NULL,
		invited_by TEXT NOT NULL,
		invited_at DATETIME,
		accepted_at DATETIME,
		PRIMARY KEY (project_id, user_id)
	);`)
}

func createAPIKeyTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE api_keys (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		encrypted_key TEXT NOT NULL,
		key_index TEXT NOT NULL UNIQUE,
		key_preview TEXT NOT NULL,
		type TEXT NOT NULL,
		permissions TEXT NOT NULL,
		ip_allowlist TEXT,
		created_by TEXT NOT NULL,
		last_used_at DATETIME,
		usage_count INTEGER DEFAULT 0,
		expires_at DATETIME,
		rotated_at DATETIME,
		status TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME,
		deleted_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE api_key_usages (
		usage_id TEXT PRIMARY KEY,
		api_key_id TEXT NOT NULL,
		project_id TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		method TEXT NOT NULL,
		status_code INTEGER,
		response_time_ms INTEGER,
		ip_address TEXT,
		user_agent TEXT,
		request_size INTEGER,
		response_size INTEGER,
		error_message TEXT,
		created_at DATETIME
	);`)
}

func createPaymasterTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE project_paymasters (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		chain TEXT NOT NULL,
		address TEXT NOT NULL,
		encrypted_private_key TEXT NOT NULL,
		frozen BOOLEAN DEFAULT FALSE,
		created_at DATETIME,
		UNIQUE (project_id, chain)
	);`)
	mustExec(t, db, `CREATE TABLE paymaster_balances (
		project_id TEXT NOT NULL,
		chain TEXT NOT NULL,
		address TEXT NOT NULL,
		balance_native REAL,
		balance_wei TEXT NOT NULL DEFAULT '0',
		balance_usd REAL,
		token_price_usd REAL,
		last_updated DATETIME,
		last_tx_hash TEXT,
		PRIMARY KEY (project_id, chain)
	);`)
	mustExec(t, db, `CREATE TABLE paymaster_payments (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		paymaster_address TEXT NOT NULL,
		chain TEXT NOT NULL,
		amount REAL,
		amount_wei TEXT NOT NULL,
		gas_for_address TEXT,
		tx_hash TEXT NOT NULL UNIQUE,
		block_number INTEGER,
		gas_price TEXT,
		gas_used INTEGER,
		usd_value REAL,
		operation_type TEXT NOT NULL,
		user_operation_hash TEXT,
		status TEXT NOT NULL,
		created_at DATETIME
	);`)
}

func createWalletTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE wallets (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		social_id TEXT NOT NULL,
		social_type TEXT NOT NULL,
		addresses TEXT NOT NULL,
		deployments TEXT NOT NULL,
		metadata TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (project_id, social_id, social_type)
	);`)
}

func createTransactionLogTables(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE transaction_logs (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		chain TEXT NOT NULL,
		wallet_address TEXT NOT NULL,
		user_identifier TEXT NOT NULL,
		social_type TEXT,
		tx_hash TEXT,
		block_number INTEGER,
		gas_limit INTEGER,
		gas_used INTEGER,
		gas_price TEXT,
		gas_cost TEXT,
		gas_cost_usd REAL,
		currency TEXT,
		paymaster_paid BOOLEAN DEFAULT FALSE,
		paymaster_address TEXT,
		status TEXT NOT NULL,
		error_message TEXT,
		transaction_details TEXT,
		metadata TEXT,
		created_at DATETIME,
		confirmed_at DATETIME
	);`)
	mustExec(t, db, `CREATE TABLE user_activities (
		project_id TEXT NOT NULL,
		user_identifier TEXT NOT NULL,
		social_type TEXT,
		wallets_created INTEGER DEFAULT 0,
		transactions_sent INTEGER DEFAULT 0,
		total_gas_spent_usd REAL DEFAULT 0,
		paymaster_transactions INTEGER DEFAULT 0,
		user_paid_transactions INTEGER DEFAULT 0,
		chains_used TEXT,
		preferred_chain TEXT,
		first_active DATETIME,
		last_active DATETIME,
		engagement_score INTEGER DEFAULT 0,
		PRIMARY KEY (project_id, user_identifier)
	);`)
	mustExec(t, db, `CREATE TABLE daily_metrics (
		project_id TEXT NOT NULL,
		date DATETIME NOT NULL,
		chain TEXT NOT NULL,
		tx_count INTEGER DEFAULT 0,
		unique_users INTEGER DEFAULT 0,
		gas_usd REAL DEFAULT 0,
		paymaster_txs INTEGER DEFAULT 0,
		PRIMARY KEY (project_id, date, chain)
	);`)
}
