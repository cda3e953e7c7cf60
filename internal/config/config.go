package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ChainModeRPC       = "rpc"
	ChainModeSimulated = "simulated"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")

	privateKeyPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	addressPattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// DeploymentRecord is the file the contract deploy script writes.
type DeploymentRecord struct {
	Network         string `json:"network"`
	ContractAddress string `json:"contractAddress"`
	DeployerAddress string `json:"deployerAddress"`
	RelayerAddress  string `json:"relayerAddress"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
	DeployedAt      string `json:"deployedAt"`
	GasUsed         string `json:"gasUsed"`
	ChainID         int64  `json:"chainId"`
}

// AppConfig ties together the deployment record, environment and derived values.
type AppConfig struct {
	Deployment *DeploymentRecord
	Service    ServiceConfig
	Chain      ChainConfig
	RateLimit  RateLimitConfig
	Tips       TipConfig
	Log        LogConfig
}

type ServiceConfig struct {
	HTTPPort        int
	RequestLogSize  int
	AdminHMACSecret string
	AdminClockSkew  time.Duration
}

type ChainConfig struct {
	Mode                string
	RPCURL              string
	ChainID             int64
	ContractAddress     string
	PrivateKey          string
	ConfirmationTimeout time.Duration
	ReceiptPollInterval time.Duration
}

type RateLimitConfig struct {
	Window   time.Duration
	PerIP    int
	PerFan   int
	RedisURL string
}

type TipConfig struct {
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	defaultDeploymentsPath = "deployments/mantle-testnet.json"
	defaultRPCURL          = "https://rpc.sepolia.mantle.xyz"
	defaultChainID         = 5003
)

// Load aggregates configuration from the deployment record and the
// environment. Environment values win. A missing deployment record is not
// an error; a malformed one is.
func Load() (*AppConfig, error) {
	deploymentsPath := envOr("DEPLOYMENTS_PATH", defaultDeploymentsPath)

	deployment, err := loadDeployment(deploymentsPath)
	if err != nil {
		return nil, fmt.Errorf("load deployment record: %w", err)
	}

	contract := ""
	chainID := int64(defaultChainID)
	if deployment != nil {
		contract = deployment.ContractAddress
		if deployment.ChainID != 0 {
			chainID = deployment.ChainID
		}
	}

	minTip, err := envOrDecimal("MIN_TIP_AMOUNT", "0.001")
	if err != nil {
		return nil, err
	}
	maxTip, err := envOrDecimal("MAX_TIP_AMOUNT", "1000")
	if err != nil {
		return nil, err
	}

	cfg := &AppConfig{
		Deployment: deployment,
		Service: ServiceConfig{
			HTTPPort:        envOrInt("API_HTTP_PORT", 3000),
			RequestLogSize:  envOrInt("REQUEST_LOG_SIZE", 1000),
			AdminHMACSecret: envOr("ADMIN_HMAC_SECRET", ""),
			AdminClockSkew:  time.Duration(envOrInt("ADMIN_CLOCK_SKEW_SECONDS", 60)) * time.Second,
		},
		Chain: ChainConfig{
			Mode:                strings.ToLower(envOr("CHAIN_MODE", ChainModeRPC)),
			RPCURL:              envOr("MANTLE_RPC_URL", defaultRPCURL),
			ChainID:             int64(envOrInt("MANTLE_CHAIN_ID", int(chainID))),
			ContractAddress:     envOr("TIP_JAR_CONTRACT_ADDRESS", contract),
			PrivateKey:          envOr("RELAYER_PRIVATE_KEY", ""),
			ConfirmationTimeout: time.Duration(envOrInt("CONFIRMATION_TIMEOUT_SECONDS", 30)) * time.Second,
			ReceiptPollInterval: time.Duration(envOrInt("RECEIPT_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			Window:   time.Duration(envOrInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
			PerIP:    envOrInt("RATE_LIMIT_PER_IP", 10),
			PerFan:   envOrInt("RATE_LIMIT_PER_FAN", 5),
			RedisURL: envOr("RATE_LIMIT_REDIS_URL", ""),
		},
		Tips: TipConfig{
			MinAmount: minTip,
			MaxAmount: maxTip,
		},
		Log: LogConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
	}
	return cfg, nil
}

// Validate reports every problem at once, joined under ErrInvalidConfig.
func (c *AppConfig) Validate() error {
	var problems []string

	switch c.Chain.Mode {
	case ChainModeRPC:
		if c.Chain.PrivateKey == "" {
			problems = append(problems, "RELAYER_PRIVATE_KEY is required in rpc mode")
		}
		if c.Chain.ContractAddress == "" {
			problems = append(problems, "TIP_JAR_CONTRACT_ADDRESS is required in rpc mode")
		}
	case ChainModeSimulated:
	default:
		problems = append(problems, fmt.Sprintf("CHAIN_MODE must be %q or %q", ChainModeRPC, ChainModeSimulated))
	}

	if c.Chain.PrivateKey != "" && !privateKeyPattern.MatchString(c.Chain.PrivateKey) {
		problems = append(problems, "RELAYER_PRIVATE_KEY must be a valid private key (0x followed by 64 hex characters)")
	}
	if c.Chain.ContractAddress != "" && !addressPattern.MatchString(c.Chain.ContractAddress) {
		problems = append(problems, "TIP_JAR_CONTRACT_ADDRESS must be a valid Ethereum address")
	}
	if !strings.HasPrefix(c.Chain.RPCURL, "http://") && !strings.HasPrefix(c.Chain.RPCURL, "https://") {
		problems = append(problems, "MANTLE_RPC_URL must be a valid HTTP/HTTPS URL")
	}
	if c.Chain.ChainID <= 0 {
		problems = append(problems, "MANTLE_CHAIN_ID must be a positive number")
	}
	if c.Chain.ConfirmationTimeout <= 0 {
		problems = append(problems, "CONFIRMATION_TIMEOUT_SECONDS must be positive")
	}
	if c.RateLimit.Window <= 0 || c.RateLimit.PerIP <= 0 || c.RateLimit.PerFan <= 0 {
		problems = append(problems, "rate limit window and budgets must be positive")
	}
	if !c.Tips.MinAmount.IsPositive() || c.Tips.MaxAmount.LessThan(c.Tips.MinAmount) {
		problems = append(problems, "MIN_TIP_AMOUNT must be positive and not above MAX_TIP_AMOUNT")
	}
	if c.Service.HTTPPort <= 0 || c.Service.HTTPPort > 65535 {
		problems = append(problems, "API_HTTP_PORT must be a valid port")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(problems, "\n  - "))
	}
	return nil
}

func loadDeployment(path string) (*DeploymentRecord, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec DeploymentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &rec, nil
}

func envOr(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return fallback
}

func envOrDecimal(key, fallback string) (decimal.Decimal, error) {
	val := envOr(key, fallback)
	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
