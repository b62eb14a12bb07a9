package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Pool      PoolConfig      `mapstructure:"pool"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Lending   LendingConfig   `mapstructure:"lending"`
	Keeper    KeeperConfig    `mapstructure:"keeper"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	AuditDir string `mapstructure:"audit_dir"`
}

// AuthConfig maps static API keys to protocol roles. An empty key disables
// that role on the HTTP surface (in-process capabilities still work).
type AuthConfig struct {
	RequireRoleKey bool   `mapstructure:"require_role_key"`
	IssuerKey      string `mapstructure:"issuer_key"`
	OracleKey      string `mapstructure:"oracle_key"`
	KeeperKey      string `mapstructure:"keeper_key"`
	AdminKey       string `mapstructure:"admin_key"`
	VaultKey       string `mapstructure:"vault_key"`
}

type DatabaseConfig struct {
	DSN                string `mapstructure:"dsn"`
	EventRetentionDays int    `mapstructure:"event_retention_days"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

// PoolConfig seeds the synthetic asset pool at startup.
type PoolConfig struct {
	ID                   string `mapstructure:"id"`
	FaceValue            uint64 `mapstructure:"face_value"`
	NumberOfInvoices     uint64 `mapstructure:"number_of_invoices"`
	WeightedMaturityDays uint64 `mapstructure:"weighted_maturity_days"`
	ExpectedYieldBps     uint64 `mapstructure:"expected_yield_bps"`
}

// StrategyConfig seeds the leverage strategy instance.
type StrategyConfig struct {
	ID              string `mapstructure:"id"`
	Address         string `mapstructure:"address"`
	CollateralAsset string `mapstructure:"collateral_asset"`
	BorrowAsset     string `mapstructure:"borrow_asset"`
	TargetLTVBps    uint64 `mapstructure:"target_ltv_bps"`
	MaxLTVBps       uint64 `mapstructure:"max_ltv_bps"`
	MinHealthFactor uint64 `mapstructure:"min_health_factor"` // micro-units
}

// LendingConfig parameterizes the in-memory lending market.
type LendingConfig struct {
	CollateralPrice         uint64 `mapstructure:"collateral_price"` // micro-units
	LiquidationThresholdBps uint64 `mapstructure:"liquidation_threshold_bps"`
}

type KeeperConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	MLEndpoint          string  `mapstructure:"ml_endpoint"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	LeverageCron        string  `mapstructure:"leverage_cron"`
	NAVCron             string  `mapstructure:"nav_cron"`
	ComplianceCron      string  `mapstructure:"compliance_cron"`
	HealthCron          string  `mapstructure:"health_cron"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support, e.g. AEGIS_KEEPER_ML_ENDPOINT
	viper.SetEnvPrefix("aegis")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.audit_dir", "./logs")
	viper.SetDefault("auth.require_role_key", false)
	viper.SetDefault("database.event_retention_days", 30)
	viper.SetDefault("redis.idempotency_ttl_seconds", 86400)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("rate_limit.qps", 50)
	viper.SetDefault("rate_limit.burst", 100)

	viper.SetDefault("pool.id", "invoice-pool-1")
	viper.SetDefault("pool.face_value", uint64(1_000_000_000_000)) // $1,000,000
	viper.SetDefault("pool.number_of_invoices", 100)
	viper.SetDefault("pool.weighted_maturity_days", 90)
	viper.SetDefault("pool.expected_yield_bps", 800)

	viper.SetDefault("strategy.id", "leveraged-rwa-1")
	viper.SetDefault("strategy.address", "0x0000000000000000000000000000000000000A11")
	viper.SetDefault("strategy.collateral_asset", "mETH")
	viper.SetDefault("strategy.borrow_asset", "USDC")
	viper.SetDefault("strategy.target_ltv_bps", 6500)
	viper.SetDefault("strategy.max_ltv_bps", 7500)
	viper.SetDefault("strategy.min_health_factor", uint64(1_300_000))

	viper.SetDefault("lending.collateral_price", uint64(1_000_000))
	viper.SetDefault("lending.liquidation_threshold_bps", 8000)

	viper.SetDefault("keeper.enabled", false)
	viper.SetDefault("keeper.ml_endpoint", "http://localhost:5000")
	viper.SetDefault("keeper.confidence_threshold", 0.7)
	viper.SetDefault("keeper.leverage_cron", "*/5 * * * *")
	viper.SetDefault("keeper.nav_cron", "*/30 * * * *")
	viper.SetDefault("keeper.compliance_cron", "*/15 * * * *")
	viper.SetDefault("keeper.health_cron", "0 * * * *")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
