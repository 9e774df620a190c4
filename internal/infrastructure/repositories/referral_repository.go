package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kuya-relay/kuya_relay/internal/domain/entities"
	"github.com/kuya-relay/kuya_relay/pkg/tracing"
)

// ReferralRepository persists referral records. A referee may be claimed by
// at most one referrer; the first write wins.
type ReferralRepository struct {
	db *sqlx.DB
}

func NewReferralRepository(db *sqlx.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// Claim inserts a referral record for the referee. It reports whether this
// call was the one that recorded the claim.
func (r *ReferralRepository) Claim(ctx context.Context, record *entities.ReferralRecord) (bool, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "INSERT",
		Table:     "referrals",
	})
	query := `
		INSERT INTO referrals (id, referee_id, referrer_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (referee_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, record.ID, string(record.RefereeID), string(record.ReferrerID), record.CreatedAt)
	if err != nil {
		tracing.EndDBSpan(span, err, 0)
		return false, fmt.Errorf("failed to record referral: %w", err)
	}

	rows, _ := result.RowsAffected()
	tracing.EndDBSpan(span, nil, rows)
	return rows > 0, nil
}

// GetByReferee returns the referral claiming the given referee, or nil.
func (r *ReferralRepository) GetByReferee(ctx context.Context, refereeID entities.SenderID) (*entities.ReferralRecord, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "referrals",
	})
	var record entities.ReferralRecord
	query := `SELECT id, referee_id, referrer_id, created_at FROM referrals WHERE referee_id = $1`
	err := r.db.GetContext(ctx, &record, query, string(refereeID))
	if err != nil {
		if isNoRows(err) {
			tracing.EndDBSpan(span, nil, 0)
			return nil, nil
		}
		tracing.EndDBSpan(span, err, 0)
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}

	tracing.EndDBSpan(span, nil, 1)
	return &record, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
