package main

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"tipjar/internal/config"
	"tipjar/internal/eip712"
	"tipjar/internal/escrow"
	"tipjar/internal/logging"
)

// chainBackend is whatever the relay submits to, plus the domain fans sign for.
type chainBackend struct {
	client escrow.Client
	waiter escrow.ReceiptWaiter
	domain eip712.Domain
}

func buildChain(ctx context.Context, cfg *config.AppConfig, logger logging.Logger) (*chainBackend, error) {
	log := logging.ForComponent(logger, logging.ComponentEscrow)
	chainID := big.NewInt(cfg.Chain.ChainID)

	if cfg.Chain.Mode == config.ChainModeSimulated {
		relayerKey, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("generate relayer key: %w", err)
		}
		relayer := crypto.PubkeyToAddress(relayerKey.PublicKey)

		contract := crypto.CreateAddress(relayer, 0)
		if cfg.Chain.ContractAddress != "" {
			contract = common.HexToAddress(cfg.Chain.ContractAddress)
		}
		domain := eip712.NewDomain(chainID, contract)

		ledger, err := escrow.NewLedger(relayer, relayer, domain)
		if err != nil {
			return nil, fmt.Errorf("deploy simulated ledger: %w", err)
		}
		client := escrow.NewLedgerClient(ledger, relayer)

		log.Warn().
			Str(logging.FieldRelayer, relayer.Hex()).
			Str(logging.FieldContract, contract.Hex()).
			Int64(logging.FieldChainID, cfg.Chain.ChainID).
			Msg("running against simulated in-memory escrow, state is lost on exit")
		return &chainBackend{client: client, waiter: client, domain: domain}, nil
	}

	client, err := escrow.NewEthClient(ctx, escrow.EthClientConfig{
		RPCURL:          cfg.Chain.RPCURL,
		PrivateKeyHex:   cfg.Chain.PrivateKey,
		ContractAddress: cfg.Chain.ContractAddress,
		ChainID:         cfg.Chain.ChainID,
		PollInterval:    cfg.Chain.ReceiptPollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("escrow client: %w", err)
	}
	domain := eip712.NewDomain(chainID, common.HexToAddress(cfg.Chain.ContractAddress))

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	onChain, err := client.DomainSeparator(checkCtx)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("could not read domain separator from contract")
	case onChain != domain.Separator():
		log.Error().
			Str("contract_separator", onChain.Hex()).
			Str("local_separator", domain.Separator().Hex()).
			Msg("domain separator mismatch, every signature will be rejected")
	default:
		log.Info().
			Str(logging.FieldContract, cfg.Chain.ContractAddress).
			Int64(logging.FieldChainID, cfg.Chain.ChainID).
			Msg("connected to tip jar contract")
	}
	return &chainBackend{client: client, waiter: client, domain: domain}, nil
}
