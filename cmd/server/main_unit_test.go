package main

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"nexuspay.backend/internal/config"
	plog "nexuspay.backend/pkg/logger"
	"nexuspay.backend/pkg/redis"
)

func withMainHooks(t *testing.T) {
	t.Helper()
	origLoadDotenv := loadDotenv
	origLoadCfg := loadCfg
	origInitLog := initLog
	origInitRedis := initRedis
	origOpenDB := openDB
	origRunServer := runServer
	origGetStdDB := getStdDB

	t.Cleanup(func() {
		loadDotenv = origLoadDotenv
		loadCfg = origLoadCfg
		initLog = origInitLog
		initRedis = origInitRedis
		openDB = origOpenDB
		runServer = origRunServer
		getStdDB = origGetStdDB
	})
}

func baseTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port: "18080",
			Env:  "development",
		},
		Database: config.DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			DBName:   "nexuspay",
			SSLMode:  "disable",
		},
		Redis: config.RedisConfig{
			URL:      "redis://localhost:6379",
			PASSWORD: "",
		},
		JWT: config.JWTConfig{
			Secret:   "secret",
			Issuer:   "nexuspay",
			Audience: "nexuspay-api",
			Expiry:   24 * time.Hour,
		},
		Security: config.SecurityConfig{
			APIKeyEncryptionKey:       "0000000000000000000000000000000000000000000000000000000000000000",
			KeyIndexSecret:            "index-secret",
			MasterDerivationSecret:    "master-secret",
			PaymasterKeyEncryptionKey: "0000000000000000000000000000000000000000000000000000000000000000",
			WebhookSigningSecret:      "whsec",
		},
		RateLimit: config.RateLimitConfig{
			PerKeyPerHour:     1000,
			PerProjectPerHour: 5000,
			AuthPer15Min:      10,
			ResetPerHour:      3,
			MaxBodyBytes:      1 << 20,
		},
	}
}

func openTestDB(name string) func(string) (*gorm.DB, error) {
	return func(string) (*gorm.DB, error) {
		return gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	}
}

func TestRunMainProcess_DBOpenError(t *testing.T) {
	withMainHooks(t)

	loadDotenv = func(...string) error { return nil }
	loadCfg = baseTestConfig
	initLog = plog.Init
	openDB = func(string) (*gorm.DB, error) { return nil, errors.New("db open failed") }

	if err := runMainProcess(false); err == nil {
		t.Fatal("expected db open error")
	}
}

func TestRunMainProcess_RedisInitError(t *testing.T) {
	withMainHooks(t)

	loadDotenv = func(...string) error { return nil }
	loadCfg = baseTestConfig
	initLog = plog.Init
	openDB = openTestDB("main_redis_err")
	initRedis = func(string, string) error { return errors.New("redis down") }

	if err := runMainProcess(false); err == nil {
		t.Fatal("expected redis init error")
	}
}

func TestRunMainProcess_BadVaultKey(t *testing.T) {
	withMainHooks(t)

	loadDotenv = func(...string) error { return nil }
	loadCfg = func() *config.Config {
		cfg := baseTestConfig()
		cfg.Security.PaymasterKeyEncryptionKey = "not-hex"
		return cfg
	}
	initLog = plog.Init
	openDB = openTestDB("main_vault_err")
	initRedis = func(string, string) error { return nil }

	if err := runMainProcess(false); err == nil {
		t.Fatal("expected key vault init error")
	}
}

func TestRunMainProcess_BadMasterKey(t *testing.T) {
	withMainHooks(t)

	loadDotenv = func(...string) error { return nil }
	loadCfg = func() *config.Config {
		cfg := baseTestConfig()
		cfg.Security.APIKeyEncryptionKey = "too-short"
		return cfg
	}
	initLog = plog.Init
	openDB = openTestDB("main_master_err")
	initRedis = func(string, string) error { return nil }

	if err := runMainProcess(false); err == nil {
		t.Fatal("expected api key usecase init error")
	}
}

func TestRunMainProcess_ServerRunError(t *testing.T) {
	withMainHooks(t)

	loadDotenv = func(...string) error { return nil }
	loadCfg = baseTestConfig
	initLog = plog.Init
	openDB = openTestDB("main_server_err")
	initRedis = func(string, string) error { return nil }
	runServer = func(*gin.Engine, string) error { return errors.New("listen failed") }

	if err := runMainProcess(false); err == nil {
		t.Fatal("expected server run error")
	}
}

func TestRunMainProcess_MigratePath(t *testing.T) {
	withMainHooks(t)

	loadDotenv = func(...string) error { return nil }
	loadCfg = baseTestConfig
	initLog = plog.Init
	openDB = openTestDB("main_migrate")
	initRedis = func(string, string) error { t.Fatal("migrate path must not touch redis"); return nil }
	runServer = func(*gin.Engine, string) error { t.Fatal("migrate path must not start the server"); return nil }

	if err := runMainProcess(true); err != nil {
		t.Fatalf("unexpected migration error: %v", err)
	}
}

func TestRunMainProcess_SuccessPath(t *testing.T) {
	withMainHooks(t)
	mr := miniredis.RunT(t)
	redis.SetClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))

	loadDotenv = func(...string) error { return nil }
	loadCfg = baseTestConfig
	initLog = plog.Init
	openDB = openTestDB("main_success")
	initRedis = func(string, string) error { return nil }
	runServer = func(*gin.Engine, string) error { return nil }

	if err := runMainProcess(false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
