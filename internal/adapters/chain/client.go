package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	domainerrors "github.com/kuya-relay/kuya_relay/internal/domain/errors"
	"github.com/kuya-relay/kuya_relay/internal/infrastructure/config"
	"github.com/kuya-relay/kuya_relay/pkg/logger"
	"github.com/sony/gobreaker"
)

// MintResult carries the confirmed outcome of a token mint.
type MintResult struct {
	TxHash            string
	GasUsed           uint64
	EffectiveGasPrice *big.Int
}

// Client talks to the settlement chain. It signs and submits mint
// transactions against the token contract and reads the exchange rate
// from the oracle contract.
type Client struct {
	eth            *ethclient.Client
	chainID        *big.Int
	privateKey     *ecdsa.PrivateKey
	fromAddress    common.Address
	tokenContract  common.Address
	oracleContract common.Address
	gasLimit       uint64
	callTimeout    time.Duration
	confirmTimeout time.Duration
	confirmPoll    time.Duration
	breaker        *gobreaker.CircuitBreaker
	logger         *logger.Logger
}

var (
	mintSelector = crypto.Keccak256([]byte("mint(address,uint256)"))[:4]
	rateSelector = crypto.Keccak256([]byte("getRate()"))[:4]
)

func NewClient(cfg config.ChainConfig, log *logger.Logger) (*Client, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain rpc: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid chain private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "chain-rpc",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		eth:            eth,
		chainID:        big.NewInt(cfg.ChainID),
		privateKey:     privateKey,
		fromAddress:    crypto.PubkeyToAddress(*publicKey),
		tokenContract:  common.HexToAddress(cfg.TokenContract),
		oracleContract: common.HexToAddress(cfg.OracleContract),
		gasLimit:       cfg.GasLimit,
		callTimeout:    time.Duration(cfg.CallTimeout) * time.Second,
		confirmTimeout: time.Duration(cfg.ConfirmTimeout) * time.Second,
		confirmPoll:    time.Duration(cfg.ConfirmPollMillis) * time.Millisecond,
		breaker:        breaker,
		logger:         log,
	}, nil
}

// GetRate reads the current integer exchange rate from the oracle contract.
func (c *Client) GetRate(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		msg := ethereum.CallMsg{
			To:   &c.oracleContract,
			Data: rateSelector,
		}
		return c.eth.CallContract(ctx, msg, nil)
	})
	if err != nil {
		return 0, fmt.Errorf("oracle rate call failed: %w", err)
	}

	data, ok := result.([]byte)
	if !ok || len(data) == 0 {
		return 0, fmt.Errorf("oracle returned empty response")
	}

	rate := new(big.Int).SetBytes(data)
	if !rate.IsInt64() || rate.Sign() <= 0 {
		return 0, fmt.Errorf("oracle returned unusable rate %s", rate.String())
	}

	return rate.Int64(), nil
}

// Mint submits a token mint to the recipient and waits for the receipt.
func (c *Client) Mint(ctx context.Context, recipient common.Address, amount *big.Int) (*MintResult, error) {
	submitCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	data := append([]byte{}, mintSelector...)
	data = append(data, common.LeftPadBytes(recipient.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		nonce, err := c.eth.PendingNonceAt(submitCtx, c.fromAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch nonce: %w", err)
		}

		gasPrice, err := c.eth.SuggestGasPrice(submitCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch gas price: %w", err)
		}

		tx := types.NewTransaction(nonce, c.tokenContract, big.NewInt(0), c.gasLimit, gasPrice, data)
		signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.privateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to sign mint transaction: %w", err)
		}

		if err := c.eth.SendTransaction(submitCtx, signedTx); err != nil {
			return nil, fmt.Errorf("failed to send mint transaction: %w", err)
		}

		return signedTx, nil
	})
	if err != nil {
		return nil, err
	}

	signedTx := result.(*types.Transaction)
	c.logger.Info("mint transaction submitted",
		"tx_hash", signedTx.Hash().Hex(),
		"recipient", recipient.Hex(),
	)

	receipt, err := c.waitForReceipt(ctx, signedTx.Hash())
	if err != nil {
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("mint transaction %s reverted", signedTx.Hash().Hex())
	}

	return &MintResult{
		TxHash:            signedTx.Hash().Hex(),
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
	}, nil
}

func (c *Client) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.confirmPoll)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if err != ethereum.NotFound {
			c.logger.Warn("receipt poll failed", "tx_hash", txHash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, confirmWaitError(txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// confirmWaitError maps a confirmation-wait expiry to the retryable
// timeout error kind so callers can tell it apart from a revert or an
// unreachable RPC.
func confirmWaitError(txHash string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domainerrors.TimeoutError("confirmation wait for "+txHash, err)
	}
	return fmt.Errorf("confirmation wait for %s aborted: %w", txHash, err)
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
