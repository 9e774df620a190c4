package parser

import (
	"testing"

	"github.com/kuya-relay/kuya_relay/internal/domain/entities"
	domainerrors "github.com/kuya-relay/kuya_relay/internal/domain/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return New("today-made", "whatsapp:")
}

func TestParse_Send(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		amount    string
		recipient string
	}{
		{"simple", "Send $5 to Maria", "5", "Maria"},
		{"fractional", "send $5.50 to J", "5.5", "J"},
		{"lowercase", "send $20 to lola", "20", "lola"},
		{"multi word name", "SEND $1 to Tita Baby", "1", "Tita Baby"},
		{"surrounding whitespace", "  send $3 to Ana  ", "3", "Ana"},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := p.Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, entities.CommandSend, cmd.Type)
			assert.True(t, cmd.Amount.Equal(decimal.RequireFromString(tt.amount)),
				"amount: got %s want %s", cmd.Amount, tt.amount)
			assert.Equal(t, tt.recipient, cmd.Recipient)
		})
	}
}

func TestParse_SendFormatErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no space no recipient", "send$5"},
		{"missing to clause", "send $5"},
		{"missing dollar sign", "send 5 to Maria"},
		{"missing amount", "send $ to Maria"},
	}

	p := newTestParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(tt.input)
			require.Error(t, err)
			assert.True(t, domainerrors.IsInvalidInput(err))
		})
	}
}

func TestParse_Claim(t *testing.T) {
	p := newTestParser()
	for _, input := range []string{"CLAIM", "claim", " Claim "} {
		cmd, err := p.Parse(input)
		require.NoError(t, err)
		assert.Equal(t, entities.CommandClaim, cmd.Type)
	}
}

func TestParse_Refer(t *testing.T) {
	p := newTestParser()

	cmd, err := p.Parse("refer whatsapp:+15551234567")
	require.NoError(t, err)
	assert.Equal(t, entities.CommandRefer, cmd.Type)
	assert.Equal(t, entities.SenderID("whatsapp:+15551234567"), cmd.Referee)

	_, err = p.Parse("refer +15551234567")
	require.Error(t, err)
	assert.True(t, domainerrors.IsInvalidInput(err))

	_, err = p.Parse("refer")
	require.Error(t, err)
}

func TestParse_Join(t *testing.T) {
	p := newTestParser()

	cmd, err := p.Parse("join today-made")
	require.NoError(t, err)
	assert.Equal(t, entities.CommandJoin, cmd.Type)

	cmd, err = p.Parse("JOIN Today-Made")
	require.NoError(t, err)
	assert.Equal(t, entities.CommandJoin, cmd.Type)

	cmd, err = p.Parse("join something-else")
	require.NoError(t, err)
	assert.Equal(t, entities.CommandUnknown, cmd.Type)
}

func TestParse_UnknownNeverErrors(t *testing.T) {
	p := newTestParser()
	for _, input := range []string{"hello", "", "what is this", "balance?", "🙏",
		"sendoff at 5", "referral info?"} {
		cmd, err := p.Parse(input)
		require.NoError(t, err)
		assert.Equal(t, entities.CommandUnknown, cmd.Type)
	}
}
