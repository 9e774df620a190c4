package parser

import (
	"regexp"
	"strings"

	"github.com/kuya-relay/kuya_relay/internal/domain/entities"
	domainerrors "github.com/kuya-relay/kuya_relay/internal/domain/errors"
	"github.com/shopspring/decimal"
)

var (
	sendPattern  = regexp.MustCompile(`(?i)^send\s+\$([0-9]+(?:\.[0-9]+)?)\s+to\s+(\S.*)$`)
	referPattern = regexp.MustCompile(`(?i)^refer\s+(\S+)$`)

	// Attempt detection stops at a word boundary so "sendoff" and
	// "referral" stay unrecognized instead of failing as malformed
	// commands.
	sendAttempt  = regexp.MustCompile(`(?i)^send\b`)
	referAttempt = regexp.MustCompile(`(?i)^refer\b`)
)

// Parser turns raw inbound text into a typed command. The grammar is
// intentionally regular and total: anything unrecognized becomes
// CommandUnknown rather than an error, so the webhook can always
// acknowledge the provider within its delivery timeout. Only a clearly
// attempted-but-malformed command yields a FormatError.
type Parser struct {
	joinPhrase    string
	channelPrefix string
}

func New(joinPhrase, channelPrefix string) *Parser {
	return &Parser{
		joinPhrase:    joinPhrase,
		channelPrefix: channelPrefix,
	}
}

// Parse interprets one inbound message body.
func (p *Parser) Parse(body string) (*entities.Command, error) {
	text := strings.TrimSpace(body)
	lower := strings.ToLower(text)

	switch {
	case lower == "claim":
		return &entities.Command{Type: entities.CommandClaim}, nil

	case lower == "join "+strings.ToLower(p.joinPhrase):
		return &entities.Command{Type: entities.CommandJoin}, nil

	case sendAttempt.MatchString(text):
		matches := sendPattern.FindStringSubmatch(text)
		if matches == nil {
			return nil, domainerrors.FormatError("expected: send $<amount> to <name>")
		}
		amount, err := decimal.NewFromString(matches[1])
		if err != nil {
			return nil, domainerrors.FormatError("amount is not a number")
		}
		return &entities.Command{
			Type:      entities.CommandSend,
			Amount:    amount,
			Recipient: strings.TrimSpace(matches[2]),
		}, nil

	case referAttempt.MatchString(text):
		matches := referPattern.FindStringSubmatch(text)
		if matches == nil {
			return nil, domainerrors.FormatError("expected: refer <number>")
		}
		referee := matches[1]
		if p.channelPrefix != "" && !strings.HasPrefix(referee, p.channelPrefix) {
			return nil, domainerrors.FormatError("referral number must include the channel prefix")
		}
		return &entities.Command{
			Type:    entities.CommandRefer,
			Referee: entities.SenderID(referee),
		}, nil

	default:
		return &entities.Command{Type: entities.CommandUnknown}, nil
	}
}
