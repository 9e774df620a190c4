package reply

import (
	"testing"

	"github.com/kuya-relay/kuya_relay/internal/domain/entities"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testComposer() *Composer {
	return NewComposer("₱", "today-made", decimal.NewFromInt(100))
}

func TestSendSuccess(t *testing.T) {
	msg := testComposer().SendSuccess(&entities.TransferReceipt{
		Amount:      decimal.NewFromInt(5),
		LocalAmount: decimal.NewFromInt(280),
		Recipient:   "Dante",
		TxHash:      "0xabc1234567def0000000000000000000000000000000000000000000000000",
		GasCostUSD:  decimal.RequireFromString("2.5"),
	})

	assert.Contains(t, msg, "$5.00")
	assert.Contains(t, msg, "₱280.00")
	assert.Contains(t, msg, "Dante")
	assert.Contains(t, msg, "CLAIM")
	assert.Contains(t, msg, "$2.5000")
	assert.Contains(t, msg, "0xabc12345")
	assert.NotContains(t, msg, "badge")
}

func TestSendSuccess_BadgeClause(t *testing.T) {
	msg := testComposer().SendSuccess(&entities.TransferReceipt{
		Amount:      decimal.NewFromInt(100),
		LocalAmount: decimal.NewFromInt(5600),
		Recipient:   "Maria",
		TxHash:      "0xabc1234567def0000000000000000000000000000000000000000000000000",
		GasCostUSD:  decimal.RequireFromString("2.5"),
		BadgeTxHash: "0xfeed567890000000000000000000000000000000000000000000000000000000",
	})

	assert.Contains(t, msg, "badge")
	assert.Contains(t, msg, "0xfeed5678")
}

func TestInvalidAmountNamesBounds(t *testing.T) {
	msg := testComposer().InvalidAmount()
	assert.Contains(t, msg, "$100")
}

func TestReferralInviteCarriesJoinPhrase(t *testing.T) {
	msg := testComposer().ReferralInvite()
	assert.Contains(t, msg, "join today-made")
}
