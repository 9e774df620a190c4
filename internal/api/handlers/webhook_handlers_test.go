package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/kuya-relay/kuya_relay/internal/adapters/chain"
	"github.com/kuya-relay/kuya_relay/internal/domain/entities"
	"github.com/kuya-relay/kuya_relay/internal/domain/services/parser"
	"github.com/kuya-relay/kuya_relay/internal/domain/services/reply"
	"github.com/kuya-relay/kuya_relay/internal/domain/services/settlement"
	"github.com/kuya-relay/kuya_relay/pkg/logger"
	"github.com/kuya-relay/kuya_relay/pkg/retry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test doubles
// ============================================================================

type stubWallets struct {
	addresses map[entities.SenderID]string
}

func (s *stubWallets) GetOrCreate(ctx context.Context, senderID entities.SenderID) (string, error) {
	if addr, ok := s.addresses[senderID]; ok {
		return addr, nil
	}
	addr := "0x00000000000000000000000000000000000000aa"
	s.addresses[senderID] = addr
	return addr, nil
}

func (s *stubWallets) Lookup(ctx context.Context, senderID entities.SenderID) (string, bool, error) {
	addr, ok := s.addresses[senderID]
	return addr, ok, nil
}

type stubOracle struct{ rate int64 }

func (s *stubOracle) GetRate(ctx context.Context) (int64, error) { return s.rate, nil }

type stubMinter struct {
	amounts []*big.Int
}

func (s *stubMinter) Mint(ctx context.Context, recipient common.Address, amount *big.Int) (*chain.MintResult, error) {
	s.amounts = append(s.amounts, amount)
	return &chain.MintResult{
		TxHash:            "0xabc1234567def0000000000000000000000000000000000000000000000000",
		GasUsed:           50000,
		EffectiveGasPrice: big.NewInt(20_000_000_000),
	}, nil
}

type stubReferrals struct{}

func (s *stubReferrals) Record(ctx context.Context, referrerID, refereeID entities.SenderID) (bool, error) {
	return true, nil
}

type stubMessenger struct {
	bodies []string
}

func (s *stubMessenger) Send(ctx context.Context, to string, body string) error {
	s.bodies = append(s.bodies, body)
	return nil
}

type stubEventGuard struct {
	seen map[string]bool
}

func (s *stubEventGuard) MarkProcessed(ctx context.Context, event *entities.ProcessedEvent) (bool, error) {
	if s.seen[event.EventID] {
		return false, nil
	}
	s.seen[event.EventID] = true
	return true, nil
}

// ============================================================================
// Fixture
// ============================================================================

type handlerFixture struct {
	router    *gin.Engine
	minter    *stubMinter
	messenger *stubMessenger
}

func newHandlerFixture(t *testing.T, webhookSecret string) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("error", "development")
	minter := &stubMinter{}
	messenger := &stubMessenger{}
	composer := reply.NewComposer("₱", "today-made", decimal.NewFromInt(100))

	cfg := settlement.DefaultConfig()
	cfg.OracleRetry = retry.Policy{MaxRetries: 0, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

	engine := settlement.NewEngine(cfg,
		&stubWallets{addresses: map[entities.SenderID]string{}},
		&stubOracle{rate: 56},
		minter,
		nil,
		&stubReferrals{},
		messenger,
		composer,
		log,
	)

	handler := NewWebhookHandler(
		parser.New("today-made", "whatsapp:"),
		engine,
		composer,
		messenger,
		&stubEventGuard{seen: map[string]bool{}},
		webhookSecret,
		time.Hour,
		log,
	)

	router := gin.New()
	router.POST("/webhook", handler.HandleInbound)

	return &handlerFixture{router: router, minter: minter, messenger: messenger}
}

func (f *handlerFixture) post(form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// ============================================================================
// Tests
// ============================================================================

func TestHandleInbound_SendSettlesAndAcks(t *testing.T) {
	f := newHandlerFixture(t, "")

	rec := f.post(url.Values{
		"From": {"whatsapp:+15550001111"},
		"Body": {"send $5 to Dante"},
	}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	require.Len(t, f.minter.amounts, 1)
	assert.Equal(t, big.NewInt(5_000_000), f.minter.amounts[0])

	require.Len(t, f.messenger.bodies, 1)
	assert.Contains(t, f.messenger.bodies[0], "₱280.00")
	assert.Contains(t, f.messenger.bodies[0], "Dante")
}

func TestHandleInbound_MissingBody(t *testing.T) {
	f := newHandlerFixture(t, "")

	rec := f.post(url.Values{"From": {"whatsapp:+15550001111"}}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing From or Body", rec.Body.String())
	assert.Empty(t, f.minter.amounts)
	assert.Empty(t, f.messenger.bodies)
}

func TestHandleInbound_MissingFrom(t *testing.T) {
	f := newHandlerFixture(t, "")

	rec := f.post(url.Values{"Body": {"send $5 to Dante"}}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.minter.amounts)
}

func TestHandleInbound_InvalidAmount(t *testing.T) {
	f := newHandlerFixture(t, "")

	rec := f.post(url.Values{
		"From": {"whatsapp:+15550001111"},
		"Body": {"send $150 to Maria"},
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid amount", rec.Body.String())
	assert.Empty(t, f.minter.amounts)

	// The sender still gets an actionable reply.
	require.Len(t, f.messenger.bodies, 1)
	assert.Contains(t, f.messenger.bodies[0], "Invalid amount")
}

func TestHandleInbound_MalformedSendRepliesWithHint(t *testing.T) {
	f := newHandlerFixture(t, "")

	rec := f.post(url.Values{
		"From": {"whatsapp:+15550001111"},
		"Body": {"send$5"},
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.minter.amounts)
	require.Len(t, f.messenger.bodies, 1)
}

func TestHandleInbound_UnknownCommandAcks(t *testing.T) {
	f := newHandlerFixture(t, "")

	rec := f.post(url.Values{
		"From": {"whatsapp:+15550001111"},
		"Body": {"hello po"},
	}, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.Empty(t, f.minter.amounts)
	require.Len(t, f.messenger.bodies, 1)
}

func TestHandleInbound_DuplicateDeliveryShortCircuits(t *testing.T) {
	f := newHandlerFixture(t, "")

	form := url.Values{
		"From":       {"whatsapp:+15550001111"},
		"Body":       {"send $5 to Dante"},
		"MessageSid": {"SM1234567890"},
	}

	first := f.post(form, nil)
	assert.Equal(t, http.StatusOK, first.Code)
	require.Len(t, f.minter.amounts, 1)

	second := f.post(form, nil)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "OK", second.Body.String())
	assert.Len(t, f.minter.amounts, 1, "duplicate delivery must not mint again")
	assert.Len(t, f.messenger.bodies, 1, "duplicate delivery must not reply again")
}

func TestHandleInbound_SignatureVerification(t *testing.T) {
	secret := "shh"
	f := newHandlerFixture(t, secret)

	form := url.Values{
		"From": {"whatsapp:+15550001111"},
		"Body": {"claim"},
	}
	body := form.Encode()

	rec := f.post(form, map[string]string{"X-Webhook-Signature": "bogus"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.post(form, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	rec = f.post(form, map[string]string{"X-Webhook-Signature": hex.EncodeToString(mac.Sum(nil))})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", NewHealthHandler(nil, nil).Health)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Healthy", rec.Body.String())
}
