package escrow

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"tipjar/internal/contracts"
)

var tipJarABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(contracts.TipJarABI))
	if err != nil {
		panic(fmt.Sprintf("parse tipjar abi: %v", err))
	}
	return parsed
}

type EthClientConfig struct {
	RPCURL          string
	PrivateKeyHex   string
	ContractAddress string
	// ChainID, when non-zero, must match the chain the node reports.
	ChainID      int64
	PollInterval time.Duration
}

// EthClient relays tips to a deployed TipJar over JSON-RPC. The relayer
// wallet is brought up on first submission so a bad key surfaces as a
// per-request error instead of a crash at boot.
type EthClient struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	address  common.Address
	cfg      EthClientConfig

	mu        sync.Mutex
	transacts *bind.TransactOpts
	nextNonce *big.Int // nil until synced from the node
}

func NewEthClient(ctx context.Context, cfg EthClientConfig) (*EthClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("tip jar contract address is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	address := common.HexToAddress(cfg.ContractAddress)
	return &EthClient{
		client:   cli,
		contract: bind.NewBoundContract(address, tipJarABI, cli, cli, cli),
		address:  address,
		cfg:      cfg,
	}, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// wallet returns the relayer transactor, initializing it once. Callers hold mu.
func (c *EthClient) wallet(ctx context.Context) (*bind.TransactOpts, error) {
	if c.transacts != nil {
		return c.transacts, nil
	}
	pk, err := parsePrivateKey(c.cfg.PrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWalletInit, err)
	}
	chainID, err := c.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch chain id: %v", ErrWalletInit, err)
	}
	if c.cfg.ChainID != 0 && chainID.Int64() != c.cfg.ChainID {
		return nil, fmt.Errorf("%w: node reports chain %s, expected %d", ErrWalletInit, chainID, c.cfg.ChainID)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(pk, chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: transactor: %v", ErrWalletInit, err)
	}
	opts.GasLimit = 0 // let node estimate
	c.transacts = opts
	return opts, nil
}

// SubmitTip sends tip(fan, creator, amount, nonce, signature) with value equal
// to amount. Submissions are serialized so the relayer's account nonce is
// never handed out twice.
func (c *EthClient) SubmitTip(ctx context.Context, call TipCall) (TipSubmission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	base, err := c.wallet(ctx)
	if err != nil {
		return TipSubmission{}, err
	}

	if c.nextNonce == nil {
		pending, err := c.client.PendingNonceAt(ctx, base.From)
		if err != nil {
			return TipSubmission{}, fmt.Errorf("fetch relayer nonce: %w", err)
		}
		c.nextNonce = new(big.Int).SetUint64(pending)
	}

	opts := *base
	opts.Context = ctx
	opts.Nonce = new(big.Int).Set(c.nextNonce)
	opts.Value = new(big.Int).Set(call.Amount)

	tx, err := c.contract.Transact(&opts, "tip", call.Fan, call.Creator, call.Amount, call.Nonce, call.Signature)
	if err != nil {
		// resync on the next submission
		c.nextNonce = nil
		return TipSubmission{}, fmt.Errorf("submit tip tx: %w", asRevert(err))
	}
	c.nextNonce.Add(c.nextNonce, big.NewInt(1))
	return TipSubmission{TxHash: tx.Hash(), Relayer: opts.From}, nil
}

func (c *EthClient) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, asRevert(err))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *EthClient) Nonce(ctx context.Context, fan common.Address) (*big.Int, error) {
	return c.callUint(ctx, "getNonce", fan)
}

func (c *EthClient) ClaimableBalance(ctx context.Context, creator common.Address) (*big.Int, error) {
	return c.callUint(ctx, "getClaimableBalance", creator)
}

// DomainSeparator reads the separator the deployed contract computed.
func (c *EthClient) DomainSeparator(ctx context.Context) (common.Hash, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getDomainSeparator"); err != nil {
		return common.Hash{}, fmt.Errorf("call getDomainSeparator: %w", err)
	}
	if len(out) == 0 {
		return common.Hash{}, fmt.Errorf("call getDomainSeparator: empty result")
	}
	raw := *abi.ConvertType(out[0], new([32]byte)).(*[32]byte)
	return common.Hash(raw), nil
}

func (c *EthClient) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := c.client.BlockNumber(ctx)
	return err
}

// WaitForReceipt polls until the transaction is mined or ctx is done.
func (c *EthClient) WaitForReceipt(ctx context.Context, txHash common.Hash) (Receipt, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, txHash)
		if receipt != nil {
			return receiptFrom(receipt), nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return Receipt{}, err
		}
		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func receiptFrom(r *types.Receipt) Receipt {
	out := Receipt{
		TxHash:  r.TxHash,
		Success: r.Status == types.ReceiptStatusSuccessful,
	}
	if r.BlockNumber != nil {
		out.BlockNumber = r.BlockNumber.Uint64()
	}
	return out
}
