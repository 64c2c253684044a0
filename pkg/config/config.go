package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8081" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host" default:"localhost" validate:"required"`
	Port     int    `yaml:"port" default:"5432"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database" default:"comic_credits"`
	SSLMode  string `yaml:"ssl_mode" default:"disable"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" default:"info"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	OutputPath string `yaml:"output_path" default:"stdout"`
}

// AuthConfig holds SIWE and session token settings
type AuthConfig struct {
	// JWTSecret signs session tokens issued after a successful SIWE verification.
	JWTSecret string        `yaml:"jwt_secret" validate:"required,min=32"`
	TokenTTL  time.Duration `yaml:"token_ttl" default:"24h"`
	Issuer    string        `yaml:"issuer" default:"comic-credits"`
	// Domain is the EIP-4361 domain a signed message must name. Empty disables the check.
	Domain   string        `yaml:"domain"`
	NonceTTL time.Duration `yaml:"nonce_ttl" default:"10m"`
}

// PaymentConfig contains on-chain purchase verification settings
type PaymentConfig struct {
	RPCURL          string        `yaml:"rpc_url" validate:"required,url"`
	ChainID         int64         `yaml:"chain_id" default:"1" validate:"gt=0"`
	ContractAddress string        `yaml:"contract_address" validate:"required,eth_addr"`
	RPCTimeout      time.Duration `yaml:"rpc_timeout" default:"10s"`
	Event           EventConfig   `yaml:"event"`
	Breaker         BreakerConfig `yaml:"breaker"`
}

// EventConfig describes the purchase event emitted by the payment contract.
type EventConfig struct {
	// ABI is a JSON ABI fragment containing at least the purchase event.
	ABI          string `yaml:"abi" default:"[{\"anonymous\":false,\"inputs\":[{\"indexed\":true,\"internalType\":\"address\",\"name\":\"buyer\",\"type\":\"address\"},{\"indexed\":false,\"internalType\":\"uint256\",\"name\":\"credits\",\"type\":\"uint256\"},{\"indexed\":false,\"internalType\":\"uint256\",\"name\":\"amountPaid\",\"type\":\"uint256\"}],\"name\":\"CreditsPurchased\",\"type\":\"event\"}]"`
	Name         string `yaml:"name" default:"CreditsPurchased" validate:"required"`
	BuyerField   string `yaml:"buyer_field" default:"buyer" validate:"required"`
	CreditsField string `yaml:"credits_field" default:"credits" validate:"required"`
	AmountField  string `yaml:"amount_field" default:"amountPaid" validate:"required"`
}

// BreakerConfig configures the circuit breaker around chain RPC calls.
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" default:"1"`
	Interval         time.Duration `yaml:"interval" default:"60s"`
	Timeout          time.Duration `yaml:"timeout" default:"30s"`
	FailureThreshold uint32        `yaml:"failure_threshold" default:"5"`
}

// LedgerConfig contains credit ledger limits
type LedgerConfig struct {
	HistoryDefaultLimit int           `yaml:"history_default_limit" default:"20" validate:"min=1"`
	HistoryMaxLimit     int           `yaml:"history_max_limit" default:"100" validate:"min=1"`
	MaxAdjustment       int64         `yaml:"max_adjustment" default:"10000" validate:"gt=0"`
	StatsTTL            time.Duration `yaml:"stats_ttl" default:"1m"`
}

// HTTPConfig contains edge settings for the public router
type HTTPConfig struct {
	RateLimitRequests int           `yaml:"rate_limit_requests" default:"30"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window" default:"1m"`
	CORSOrigins       []string      `yaml:"cors_origins"`
	RequestTimeout    time.Duration `yaml:"request_timeout" default:"60s"`
}

// MaintenanceConfig contains background housekeeping settings
type MaintenanceConfig struct {
	NonceSweepInterval time.Duration `yaml:"nonce_sweep_interval" default:"5m"`
	// ReconcileInterval enables periodic reconciliation of every balance. Zero disables it.
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
}

// APIServerConfig represents the credits API server configuration
type APIServerConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
	Auth        AuthConfig        `yaml:"auth"`
	Payment     PaymentConfig     `yaml:"payment"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	HTTP        HTTPConfig        `yaml:"http"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// LoadAPIServer loads API server configuration from file.
// ${VAR} references in the file are expanded from the environment before parsing.
func LoadAPIServer(configPath string) (*APIServerConfig, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseAPIServer(raw)
}

// ParseAPIServer parses, defaults and validates a YAML document.
func ParseAPIServer(raw []byte) (*APIServerConfig, error) {
	var cfg APIServerConfig
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateAPIServer(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func validateAPIServer(cfg *APIServerConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return err
	}
	if cfg.Ledger.HistoryDefaultLimit > cfg.Ledger.HistoryMaxLimit {
		return fmt.Errorf("ledger.history_default_limit must not exceed ledger.history_max_limit")
	}
	if strings.TrimSpace(cfg.Payment.Event.ABI) == "" {
		return fmt.Errorf("payment.event.abi is required")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
