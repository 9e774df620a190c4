package reply

import (
	"fmt"

	"github.com/kuya-relay/kuya_relay/internal/domain/entities"
	"github.com/shopspring/decimal"
)

// Composer formats every outbound message. Each pipeline outcome maps to
// exactly one message body, so wording lives in one place.
type Composer struct {
	currencySymbol string
	joinPhrase     string
	maxSend        decimal.Decimal
}

func NewComposer(currencySymbol, joinPhrase string, maxSend decimal.Decimal) *Composer {
	return &Composer{
		currencySymbol: currencySymbol,
		joinPhrase:     joinPhrase,
		maxSend:        maxSend,
	}
}

// SendSuccess builds the single confirmation for a settled transfer.
func (c *Composer) SendSuccess(receipt *entities.TransferReceipt) string {
	msg := fmt.Sprintf(
		"Sent $%s (%s%s) to %s! They can reply CLAIM to pick up the money at any partner outlet. This transfer cost $%s in network fees. Ref: %s",
		receipt.Amount.StringFixed(2),
		c.currencySymbol,
		receipt.LocalAmount.StringFixed(2),
		receipt.Recipient,
		receipt.GasCostUSD.StringFixed(4),
		receipt.ShortTxRef(),
	)
	if receipt.BadgeTxHash != "" {
		msg += fmt.Sprintf(" You also earned a milestone badge for this transfer (ref %s).", receipt.BadgeTxHash[:10])
	}
	return msg
}

// ClaimArrived is the unconditional claim acknowledgment. The cash-out
// rail itself is not modeled here.
func (c *Composer) ClaimArrived() string {
	return "Good news! Your money has arrived and is ready for pickup. Bring a valid ID to any partner outlet to claim it."
}

func (c *Composer) Welcome() string {
	return "Welcome to Kuya! Text \"send $<amount> to <name>\" to send money home, or \"refer <number>\" to invite a friend and earn a bonus."
}

func (c *Composer) UnknownCommand() string {
	return "Sorry, I didn't get that. Try \"send $5 to Maria\", \"claim\", or \"refer <number>\"."
}

// ReferralBonus confirms the bonus mint to the referrer.
func (c *Composer) ReferralBonus(bonus decimal.Decimal, txRef string) string {
	return fmt.Sprintf(
		"Thanks for spreading the word! A $%s bonus was added to your wallet. Ref: %s",
		bonus.StringFixed(2), txRef,
	)
}

// ReferralInvite is sent to the referee.
func (c *Composer) ReferralInvite() string {
	return fmt.Sprintf(
		"A friend invited you to Kuya! Reply \"join %s\" to start sending money home in seconds.",
		c.joinPhrase,
	)
}

func (c *Composer) AlreadyReferred() string {
	return "That number has already been referred. Thanks anyway!"
}

func (c *Composer) InvalidAmount() string {
	return fmt.Sprintf(
		"Invalid amount. You can send between $0.01 and $%s per transfer.",
		c.maxSend.StringFixed(0),
	)
}

func (c *Composer) BadFormat(hint string) string {
	return fmt.Sprintf("I couldn't read that. %s", hint)
}

// NeedWalletFirst covers the refer-before-send precondition.
func (c *Composer) NeedWalletFirst() string {
	return "You need to make a transfer before you can refer friends. Try \"send $5 to Maria\" first."
}

// TryAgain is the catch-all sent when an external dependency failed, so
// the sender never receives silence.
func (c *Composer) TryAgain() string {
	return "Something went wrong on our side and your transfer was not completed. Please try again in a few minutes."
}
