package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tipjar/internal/config"
	"tipjar/internal/eip712"
)

func nonceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nonce <fan>",
		Short: "Print the next nonce the escrow expects from a fan",
		Long:  "Reads getNonce from the deployed contract. Requires CHAIN_MODE=rpc.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return readView(cmd, args[0], func(ctx context.Context, b *chainBackend, addr common.Address) (*big.Int, error) {
				return b.client.Nonce(ctx, addr)
			})
		},
	}
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <creator>",
		Short: "Print a creator's claimable balance in wei",
		Long:  "Reads getClaimableBalance from the deployed contract. Requires CHAIN_MODE=rpc.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return readView(cmd, args[0], func(ctx context.Context, b *chainBackend, addr common.Address) (*big.Int, error) {
				return b.client.ClaimableBalance(ctx, addr)
			})
		},
	}
}

var errSimulatedView = errors.New("nonce and balance read the deployed contract and require CHAIN_MODE=rpc")

func readView(cmd *cobra.Command, rawAddr string, view func(context.Context, *chainBackend, common.Address) (*big.Int, error)) error {
	if !common.IsHexAddress(rawAddr) {
		return fmt.Errorf("invalid address %q", rawAddr)
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	// the simulated ledger only exists inside a running serve process
	if cfg.Chain.Mode != config.ChainModeRPC {
		return errSimulatedView
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	backend, err := buildChain(ctx, cfg, logger)
	if err != nil {
		return err
	}
	v, err := view(ctx, backend, common.HexToAddress(rawAddr))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), v.String())
	return nil
}

type signedTip struct {
	Fan       string `json:"fan"`
	Creator   string `json:"creator"`
	Amount    string `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

func signCmd() *cobra.Command {
	var (
		keyHex   string
		creator  string
		amount   string
		nonce    uint64
		contract string
		chainID  int64
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a tip as a fan and print a ready-to-POST request body",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if contract == "" {
				contract = cfg.Chain.ContractAddress
			}
			if chainID == 0 {
				chainID = cfg.Chain.ChainID
			}
			if !common.IsHexAddress(contract) {
				return fmt.Errorf("contract address is required (--contract or TIP_JAR_CONTRACT_ADDRESS)")
			}
			if !common.IsHexAddress(creator) {
				return fmt.Errorf("invalid creator address %q", creator)
			}

			key, err := crypto.HexToECDSA(trimHexPrefix(keyHex))
			if err != nil {
				return fmt.Errorf("parse fan key: %w", err)
			}
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("parse amount: %w", err)
			}
			wei := amt.Shift(18)
			if !wei.IsInteger() {
				return fmt.Errorf("amount %s has more than 18 decimals", amount)
			}

			fan := crypto.PubkeyToAddress(key.PublicKey)
			domain := eip712.NewDomain(big.NewInt(chainID), common.HexToAddress(contract))
			sig, err := eip712.Sign(domain, eip712.TipMessage{
				Fan:     fan,
				Creator: common.HexToAddress(creator),
				Amount:  wei.BigInt(),
				Nonce:   new(big.Int).SetUint64(nonce),
			}, key)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(signedTip{
				Fan:       fan.Hex(),
				Creator:   common.HexToAddress(creator).Hex(),
				Amount:    amount,
				Nonce:     nonce,
				Signature: hexutil.Encode(sig),
			})
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", "", "fan private key (hex)")
	cmd.Flags().StringVar(&creator, "creator", "", "creator address")
	cmd.Flags().StringVar(&amount, "amount", "", "tip amount in MNT, e.g. 0.1")
	cmd.Flags().Uint64Var(&nonce, "nonce", 0, "fan nonce (see the nonce command)")
	cmd.Flags().StringVar(&contract, "contract", "", "escrow address, defaults to TIP_JAR_CONTRACT_ADDRESS")
	cmd.Flags().Int64Var(&chainID, "chain-id", 0, "chain id, defaults to MANTLE_CHAIN_ID")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("creator")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
