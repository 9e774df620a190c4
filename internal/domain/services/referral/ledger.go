package referral

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kuya-relay/kuya_relay/internal/domain/entities"
	"github.com/kuya-relay/kuya_relay/pkg/logger"
)

// Store persists referral records with first-write-wins semantics on the
// referee key.
type Store interface {
	Claim(ctx context.Context, record *entities.ReferralRecord) (bool, error)
	GetByReferee(ctx context.Context, refereeID entities.SenderID) (*entities.ReferralRecord, error)
}

// Ledger records referrer to referee relationships.
type Ledger struct {
	store  Store
	logger *logger.Logger
}

func NewLedger(store Store, log *logger.Logger) *Ledger {
	return &Ledger{store: store, logger: log}
}

// Record claims the referee for the referrer. It reports false when the
// referee was already claimed, by this referrer or another.
func (l *Ledger) Record(ctx context.Context, referrerID, refereeID entities.SenderID) (bool, error) {
	recorded, err := l.store.Claim(ctx, &entities.ReferralRecord{
		ID:         uuid.New(),
		RefereeID:  refereeID,
		ReferrerID: referrerID,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return false, err
	}

	if recorded {
		l.logger.Info("referral recorded",
			"referrer_id", string(referrerID),
			"referee_id", string(refereeID),
		)
	}

	return recorded, nil
}
