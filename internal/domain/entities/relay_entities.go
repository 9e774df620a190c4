package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SenderID is the stable external identifier of a chat user, including the
// channel prefix (e.g. "whatsapp:+15551234567"). Immutable once observed.
type SenderID string

// CommandType identifies a parsed inbound command
type CommandType string

const (
	CommandSend    CommandType = "send"
	CommandClaim   CommandType = "claim"
	CommandRefer   CommandType = "refer"
	CommandJoin    CommandType = "join"
	CommandUnknown CommandType = "unknown"
)

// Command is the typed result of parsing one inbound message
type Command struct {
	Type      CommandType
	Amount    decimal.Decimal // Send only, dollars
	Recipient string          // Send only, display name
	Referee   SenderID        // Refer only
}

// WalletRecord maps a sender to their custodial address. Created lazily on
// the first Send or Join, never overwritten.
type WalletRecord struct {
	ID        uuid.UUID `db:"id"`
	SenderID  SenderID  `db:"sender_id"`
	Address   string    `db:"address"`
	CreatedAt time.Time `db:"created_at"`
}

// ReferralRecord maps a referee to the referrer who invited them.
// One referrer per referee, first write wins.
type ReferralRecord struct {
	ID         uuid.UUID `db:"id"`
	RefereeID  SenderID  `db:"referee_id"`
	ReferrerID SenderID  `db:"referrer_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// ProcessedEvent records an inbound provider message id so redeliveries
// can be short-circuited without double-minting.
type ProcessedEvent struct {
	ID        uuid.UUID `db:"id"`
	EventID   string    `db:"event_id"`
	SenderID  SenderID  `db:"sender_id"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

// TransferReceipt captures the outcome of one settled transfer. It lives
// for the duration of a webhook invocation and feeds the reply composer.
type TransferReceipt struct {
	Amount      decimal.Decimal // dollars
	LocalAmount decimal.Decimal // local currency, pre-rounding
	Recipient   string
	TxHash      string
	GasCostUSD  decimal.Decimal
	BadgeTxHash string // empty unless a badge was issued
}

// ShortTxRef returns the truncated transaction reference used in replies
func (r *TransferReceipt) ShortTxRef() string {
	if len(r.TxHash) <= 10 {
		return r.TxHash
	}
	return r.TxHash[:10]
}
