package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/kuya-relay/kuya_relay/internal/infrastructure/config"
	"github.com/kuya-relay/kuya_relay/pkg/logger"
)

const badgeGasLimit = 21000

// BadgeClient issues zero-value milestone transactions on a secondary
// network, independent of the settlement chain.
type BadgeClient struct {
	eth            *ethclient.Client
	chainID        *big.Int
	privateKey     *ecdsa.PrivateKey
	fromAddress    common.Address
	confirmTimeout time.Duration
	confirmPoll    time.Duration
	logger         *logger.Logger
}

func NewBadgeClient(cfg config.BadgeConfig, confirmTimeout time.Duration, confirmPollMillis int, log *logger.Logger) (*BadgeClient, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial badge rpc: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid badge private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type")
	}

	return &BadgeClient{
		eth:            eth,
		chainID:        big.NewInt(cfg.ChainID),
		privateKey:     privateKey,
		fromAddress:    crypto.PubkeyToAddress(*publicKey),
		confirmTimeout: confirmTimeout,
		confirmPoll:    time.Duration(confirmPollMillis) * time.Millisecond,
		logger:         log,
	}, nil
}

// Award sends a zero-value transaction to the recipient and waits until
// it is mined.
func (c *BadgeClient) Award(ctx context.Context, recipient common.Address) (string, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.fromAddress)
	if err != nil {
		return "", fmt.Errorf("failed to fetch badge nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch badge gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, recipient, big.NewInt(0), badgeGasLimit, gasPrice, nil)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign badge transaction: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send badge transaction: %w", err)
	}

	c.logger.Info("badge transaction submitted",
		"tx_hash", signedTx.Hash().Hex(),
		"recipient", recipient.Hex(),
	)

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.confirmPoll)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(waitCtx, signedTx.Hash())
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return "", fmt.Errorf("badge transaction %s reverted", signedTx.Hash().Hex())
			}
			return signedTx.Hash().Hex(), nil
		}
		if err != ethereum.NotFound {
			c.logger.Warn("badge receipt poll failed", "tx_hash", signedTx.Hash().Hex(), "error", err)
		}

		select {
		case <-waitCtx.Done():
			return "", confirmWaitError(signedTx.Hash().Hex(), waitCtx.Err())
		case <-ticker.C:
		}
	}
}

// Close releases the underlying RPC connection.
func (c *BadgeClient) Close() {
	c.eth.Close()
}
