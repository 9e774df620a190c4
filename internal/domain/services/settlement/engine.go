package settlement

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kuya-relay/kuya_relay/internal/adapters/chain"
	"github.com/kuya-relay/kuya_relay/internal/domain/entities"
	domainerrors "github.com/kuya-relay/kuya_relay/internal/domain/errors"
	"github.com/kuya-relay/kuya_relay/internal/domain/services/reply"
	"github.com/kuya-relay/kuya_relay/pkg/logger"
	"github.com/kuya-relay/kuya_relay/pkg/metrics"
	"github.com/kuya-relay/kuya_relay/pkg/retry"
	"github.com/shopspring/decimal"
)

// ============================================================================
// Dependencies
// ============================================================================

// WalletProvider resolves sender addresses.
type WalletProvider interface {
	GetOrCreate(ctx context.Context, senderID entities.SenderID) (string, error)
	Lookup(ctx context.Context, senderID entities.SenderID) (string, bool, error)
}

// RateOracle reads the current USD to local currency conversion factor.
type RateOracle interface {
	GetRate(ctx context.Context) (int64, error)
}

// Minter submits a token mint and blocks until it is mined.
type Minter interface {
	Mint(ctx context.Context, recipient common.Address, amount *big.Int) (*chain.MintResult, error)
}

// BadgeAwarder issues the zero-value milestone transaction on the
// secondary network.
type BadgeAwarder interface {
	Award(ctx context.Context, recipient common.Address) (string, error)
}

// Messenger delivers one outbound message.
type Messenger interface {
	Send(ctx context.Context, to string, body string) error
}

// ReferralRecorder claims a referee for a referrer, first write wins.
type ReferralRecorder interface {
	Record(ctx context.Context, referrerID, refereeID entities.SenderID) (bool, error)
}

// ============================================================================
// Engine
// ============================================================================

// Config holds the business constants of the settlement pipeline.
type Config struct {
	MaxSend        decimal.Decimal
	BadgeThreshold decimal.Decimal
	ReferralBonus  decimal.Decimal
	TokenDecimals  int32
	EthUsdPrice    decimal.Decimal
	OracleRetry    retry.Policy
}

func DefaultConfig() Config {
	return Config{
		MaxSend:        decimal.NewFromInt(100),
		BadgeThreshold: decimal.NewFromInt(100),
		ReferralBonus:  decimal.NewFromInt(5),
		TokenDecimals:  6,
		EthUsdPrice:    decimal.NewFromInt(2500),
	}
}

// Engine runs the settlement pipeline for each parsed command. Within one
// inbound event the steps are strictly sequential: validate, resolve
// wallet, convert, submit, confirm, reply.
type Engine struct {
	cfg       Config
	wallets   WalletProvider
	oracle    RateOracle
	minter    Minter
	badges    BadgeAwarder
	referrals ReferralRecorder
	messenger Messenger
	composer  *reply.Composer
	oracleTry retry.Policy
	logger    *logger.Logger
}

func NewEngine(
	cfg Config,
	wallets WalletProvider,
	oracle RateOracle,
	minter Minter,
	badges BadgeAwarder,
	referrals ReferralRecorder,
	messenger Messenger,
	composer *reply.Composer,
	log *logger.Logger,
) *Engine {
	oracleTry := cfg.OracleRetry
	if oracleTry.BaseBackoff == 0 {
		oracleTry = retry.DefaultPolicy()
	}
	return &Engine{
		cfg:       cfg,
		wallets:   wallets,
		oracle:    oracle,
		minter:    minter,
		badges:    badges,
		referrals: referrals,
		messenger: messenger,
		composer:  composer,
		oracleTry: oracleTry,
		logger:    log,
	}
}

// ============================================================================
// Send
// ============================================================================

// HandleSend settles one transfer and sends exactly one confirmation.
// The reply is only sent after on-chain confirmation, so the sender never
// sees a false success.
func (e *Engine) HandleSend(ctx context.Context, senderID entities.SenderID, cmd *entities.Command) (*entities.TransferReceipt, error) {
	start := time.Now()

	if cmd.Amount.Sign() <= 0 || cmd.Amount.GreaterThan(e.cfg.MaxSend) {
		metrics.TransfersTotal.WithLabelValues("rejected").Inc()
		return nil, domainerrors.AmountError(cmd.Amount.String())
	}

	address, err := e.wallets.GetOrCreate(ctx, senderID)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues("failed").Inc()
		return nil, domainerrors.InternalError("wallet provisioning", err)
	}

	rate, err := e.fetchRate(ctx)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	// The dollar amount may be fractional; it is floored only at the
	// smallest-unit conversion, never before.
	smallestUnit := cmd.Amount.Shift(e.cfg.TokenDecimals).Floor().BigInt()
	localAmount := cmd.Amount.Mul(decimal.NewFromInt(rate))

	mintResult, err := e.minter.Mint(ctx, common.HexToAddress(address), smallestUnit)
	if err != nil {
		metrics.TransfersTotal.WithLabelValues("failed").Inc()
		return nil, chainError(err)
	}

	receipt := &entities.TransferReceipt{
		Amount:      cmd.Amount,
		LocalAmount: localAmount,
		Recipient:   cmd.Recipient,
		TxHash:      mintResult.TxHash,
		GasCostUSD:  e.gasCostUSD(mintResult),
	}

	if e.badges != nil && cmd.Amount.Equal(e.cfg.BadgeThreshold) {
		badgeTx, err := e.badges.Award(ctx, common.HexToAddress(address))
		if err != nil {
			metrics.TransfersTotal.WithLabelValues("failed").Inc()
			return nil, chainError(err)
		}
		receipt.BadgeTxHash = badgeTx
		metrics.BadgeTransactionsTotal.Inc()
	}

	if err := e.messenger.Send(ctx, string(senderID), e.composer.SendSuccess(receipt)); err != nil {
		metrics.TransfersTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	metrics.TransfersTotal.WithLabelValues("settled").Inc()
	metrics.SettlementDuration.Observe(time.Since(start).Seconds())

	e.logger.Info("transfer settled",
		"sender_id", string(senderID),
		"amount", cmd.Amount.String(),
		"local_amount", localAmount.StringFixed(2),
		"tx_hash", mintResult.TxHash,
	)

	return receipt, nil
}

// ============================================================================
// Claim / Join / Unknown
// ============================================================================

// HandleClaim acknowledges a claim. No balance or chain check happens
// here; the cash-out rail is an external stub boundary.
func (e *Engine) HandleClaim(ctx context.Context, senderID entities.SenderID) error {
	return e.messenger.Send(ctx, string(senderID), e.composer.ClaimArrived())
}

// HandleJoin provisions the sender's wallet and sends the welcome reply.
// Join and Send are the two wallet-creating commands, so a joined user can
// refer friends before their first transfer.
func (e *Engine) HandleJoin(ctx context.Context, senderID entities.SenderID) error {
	if _, err := e.wallets.GetOrCreate(ctx, senderID); err != nil {
		return domainerrors.InternalError("wallet provisioning", err)
	}
	return e.messenger.Send(ctx, string(senderID), e.composer.Welcome())
}

func (e *Engine) HandleUnknown(ctx context.Context, senderID entities.SenderID) error {
	return e.messenger.Send(ctx, string(senderID), e.composer.UnknownCommand())
}

// ============================================================================
// Refer
// ============================================================================

// HandleRefer records the referral, mints the bonus to the referrer, and
// sends two messages: a bonus confirmation to the referrer and an invite
// to the referee. The two sends are at-least-once, not atomic; a failed
// invite after a delivered confirmation is logged, not rolled back.
func (e *Engine) HandleRefer(ctx context.Context, senderID entities.SenderID, cmd *entities.Command) error {
	address, exists, err := e.wallets.Lookup(ctx, senderID)
	if err != nil {
		return domainerrors.InternalError("wallet lookup", err)
	}
	if !exists {
		return domainerrors.PreconditionError("referrer has no wallet yet")
	}

	recorded, err := e.referrals.Record(ctx, senderID, cmd.Referee)
	if err != nil {
		return domainerrors.InternalError("referral ledger", err)
	}
	if !recorded {
		return e.messenger.Send(ctx, string(senderID), e.composer.AlreadyReferred())
	}

	bonusUnits := e.cfg.ReferralBonus.Shift(e.cfg.TokenDecimals).Floor().BigInt()
	mintResult, err := e.minter.Mint(ctx, common.HexToAddress(address), bonusUnits)
	if err != nil {
		return chainError(err)
	}
	metrics.ReferralsTotal.Inc()

	bonusReply := e.composer.ReferralBonus(e.cfg.ReferralBonus, mintResult.TxHash[:10])
	if err := e.messenger.Send(ctx, string(senderID), bonusReply); err != nil {
		return err
	}

	if err := e.messenger.Send(ctx, string(cmd.Referee), e.composer.ReferralInvite()); err != nil {
		// The bonus confirmation already went out; a lost invite is
		// logged rather than rolled back.
		e.logger.Warn("referral invite delivery failed",
			"referee_id", string(cmd.Referee),
			"error", err,
		)
	}

	e.logger.Info("referral bonus settled",
		"referrer_id", string(senderID),
		"referee_id", string(cmd.Referee),
		"tx_hash", mintResult.TxHash,
	)

	return nil
}

// ============================================================================
// Helpers
// ============================================================================

// fetchRate reads the oracle with bounded retry. A rate that cannot be
// fetched aborts the flow before any chain mutation.
func (e *Engine) fetchRate(ctx context.Context) (int64, error) {
	var rate int64
	err := retry.Do(ctx, e.oracleTry, e.logger.Zap(), func() error {
		var err error
		rate, err = e.oracle.GetRate(ctx)
		return err
	})
	if err != nil {
		return 0, domainerrors.ExternalServiceError("rate-oracle", err)
	}
	return rate, nil
}

// chainError classifies a chain failure. Confirmation-wait expiry keeps
// its distinguishable timeout kind; everything else is a generic upstream
// failure.
func chainError(err error) error {
	if domainerrors.IsTimeout(err) {
		return err
	}
	return domainerrors.ExternalServiceError("chain", err)
}

var weiPerEth = decimal.New(1, 18)

// gasCostUSD converts the receipt's gas spend to dollars using the
// configured ETH price. Display only, never part of settlement math.
func (e *Engine) gasCostUSD(result *chain.MintResult) decimal.Decimal {
	if result.EffectiveGasPrice == nil {
		return decimal.Zero
	}
	gasWei := decimal.NewFromBigInt(result.EffectiveGasPrice, 0).
		Mul(decimal.NewFromInt(int64(result.GasUsed)))
	return gasWei.Div(weiPerEth).Mul(e.cfg.EthUsdPrice)
}
