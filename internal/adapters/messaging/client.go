package messaging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainerrors "github.com/kuya-relay/kuya_relay/internal/domain/errors"
	"github.com/kuya-relay/kuya_relay/internal/infrastructure/config"
	"github.com/kuya-relay/kuya_relay/pkg/logger"
	"github.com/sony/gobreaker"
)

// Client delivers outbound messages through the conversational provider's
// REST API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	accountSID    string
	authToken     string
	fromNumber    string
	channelPrefix string
	breaker       *gobreaker.CircuitBreaker
	logger        *logger.Logger
}

func NewClient(cfg config.MessagingConfig, log *logger.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "messaging-api",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		accountSID:    cfg.AccountSID,
		authToken:     cfg.AuthToken,
		fromNumber:    cfg.FromNumber,
		channelPrefix: cfg.ChannelPrefix,
		breaker:       breaker,
		logger:        log,
	}
}

// Send posts one outbound message to the given sender handle. The handle
// is expected to already carry the channel prefix from the inbound event.
func (c *Client) Send(ctx context.Context, to string, body string) error {
	if !strings.HasPrefix(to, c.channelPrefix) {
		to = c.channelPrefix + to
	}

	form := url.Values{}
	form.Set("From", c.channelPrefix+c.fromNumber)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)

	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.accountSID, c.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return nil, fmt.Errorf("messaging api returned %d: %s", resp.StatusCode, string(respBody))
		}

		return nil, nil
	})
	if err != nil {
		return domainerrors.ExternalServiceError("messaging", err)
	}

	return nil
}
