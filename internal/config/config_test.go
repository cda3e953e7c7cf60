package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func writeDeployment(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mantle-testnet.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithoutDeployment(t *testing.T) {
	t.Setenv("DEPLOYMENTS_PATH", filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Nil(t, cfg.Deployment)
	require.Equal(t, 3000, cfg.Service.HTTPPort)
	require.Equal(t, int64(5003), cfg.Chain.ChainID)
	require.Equal(t, ChainModeRPC, cfg.Chain.Mode)
	require.Equal(t, 30*time.Second, cfg.Chain.ConfirmationTimeout)
	require.Equal(t, time.Minute, cfg.RateLimit.Window)
	require.Equal(t, 10, cfg.RateLimit.PerIP)
	require.Equal(t, 5, cfg.RateLimit.PerFan)
	require.Equal(t, "0.001", cfg.Tips.MinAmount.String())
	require.Equal(t, "1000", cfg.Tips.MaxAmount.String())
}

func TestLoadDeploymentRecordAndOverrides(t *testing.T) {
	path := writeDeployment(t, `{
  "network": "mantleTestnet",
  "contractAddress": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
  "relayerAddress": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
  "blockNumber": 123,
  "gasUsed": "812345"
}`)
	t.Setenv("DEPLOYMENTS_PATH", path)
	t.Setenv("API_HTTP_PORT", "8088")
	t.Setenv("CHAIN_MODE", "Simulated")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.Deployment)
	require.Equal(t, "mantleTestnet", cfg.Deployment.Network)
	require.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", cfg.Chain.ContractAddress)
	require.Equal(t, 8088, cfg.Service.HTTPPort)
	require.Equal(t, ChainModeSimulated, cfg.Chain.Mode)

	t.Setenv("TIP_JAR_CONTRACT_ADDRESS", "0x0000000000000000000000000000000000000001")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, "0x0000000000000000000000000000000000000001", cfg.Chain.ContractAddress)
}

func TestLoadRejectsMalformedDeployment(t *testing.T) {
	t.Setenv("DEPLOYMENTS_PATH", writeDeployment(t, `{not json`))
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadDecimal(t *testing.T) {
	t.Setenv("DEPLOYMENTS_PATH", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("MIN_TIP_AMOUNT", "one")
	_, err := Load()
	require.Error(t, err)
}

func validConfig(t *testing.T) *AppConfig {
	t.Helper()
	t.Setenv("DEPLOYMENTS_PATH", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("RELAYER_PRIVATE_KEY", "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	t.Setenv("TIP_JAR_CONTRACT_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *AppConfig)
		ok     bool
	}{
		{"valid", func(*AppConfig) {}, true},
		{"missing key in rpc mode", func(c *AppConfig) { c.Chain.PrivateKey = "" }, false},
		{"missing key in simulated mode", func(c *AppConfig) {
			c.Chain.Mode = ChainModeSimulated
			c.Chain.PrivateKey = ""
			c.Chain.ContractAddress = ""
		}, true},
		{"short key", func(c *AppConfig) { c.Chain.PrivateKey = "0x1234" }, false},
		{"unprefixed key", func(c *AppConfig) { c.Chain.PrivateKey = c.Chain.PrivateKey[2:] }, false},
		{"bad contract", func(c *AppConfig) { c.Chain.ContractAddress = "0xnothex" }, false},
		{"ws rpc", func(c *AppConfig) { c.Chain.RPCURL = "wss://rpc.example" }, false},
		{"unknown mode", func(c *AppConfig) { c.Chain.Mode = "fork" }, false},
		{"zero budget", func(c *AppConfig) { c.RateLimit.PerFan = 0 }, false},
		{"inverted tip bounds", func(c *AppConfig) { c.Tips.MaxAmount = decimal.RequireFromString("0.0001") }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}
