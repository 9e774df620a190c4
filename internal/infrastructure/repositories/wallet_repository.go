package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kuya-relay/kuya_relay/internal/domain/entities"
	"github.com/kuya-relay/kuya_relay/pkg/tracing"
)

// WalletRepository persists sender wallet records in PostgreSQL.
type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetBySenderID returns the wallet for a sender, or nil if none exists.
func (r *WalletRepository) GetBySenderID(ctx context.Context, senderID entities.SenderID) (*entities.WalletRecord, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "SELECT",
		Table:     "wallets",
	})
	var record entities.WalletRecord
	query := `SELECT id, sender_id, address, created_at FROM wallets WHERE sender_id = $1`
	err := r.db.GetContext(ctx, &record, query, string(senderID))
	if err != nil {
		if isNoRows(err) {
			tracing.EndDBSpan(span, nil, 0)
			return nil, nil
		}
		tracing.EndDBSpan(span, err, 0)
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	tracing.EndDBSpan(span, nil, 1)
	return &record, nil
}

// Create inserts a wallet record unless the sender already has one.
// When a concurrent insert wins, the stored record is returned so callers
// always observe a single wallet per sender.
func (r *WalletRepository) Create(ctx context.Context, record *entities.WalletRecord) (*entities.WalletRecord, error) {
	ctx, span := tracing.StartDBSpan(ctx, tracing.DBSpanConfig{
		Operation: "INSERT",
		Table:     "wallets",
	})
	query := `
		INSERT INTO wallets (id, sender_id, address, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sender_id) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, record.ID, string(record.SenderID), record.Address, record.CreatedAt)
	if err != nil {
		tracing.EndDBSpan(span, err, 0)
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	rows, _ := result.RowsAffected()
	tracing.EndDBSpan(span, nil, rows)

	if rows == 0 {
		existing, err := r.GetBySenderID(ctx, record.SenderID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("wallet insert conflicted but no record found for sender")
		}
		return existing, nil
	}

	return record, nil
}
