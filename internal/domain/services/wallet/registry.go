package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/kuya-relay/kuya_relay/internal/domain/entities"
	"github.com/kuya-relay/kuya_relay/pkg/logger"
)

// Store persists wallet records. Create must be atomic per sender so two
// racing provisions never bind a second address.
type Store interface {
	GetBySenderID(ctx context.Context, senderID entities.SenderID) (*entities.WalletRecord, error)
	Create(ctx context.Context, record *entities.WalletRecord) (*entities.WalletRecord, error)
}

// Registry binds each sender to exactly one custodial address, created
// lazily on first use.
type Registry struct {
	store  Store
	logger *logger.Logger
}

func NewRegistry(store Store, log *logger.Logger) *Registry {
	return &Registry{store: store, logger: log}
}

// GetOrCreate returns the sender's address, generating and storing a new
// keypair when the sender is unseen. Concurrent calls for the same sender
// resolve to a single stored address; the losing keypair is discarded.
func (r *Registry) GetOrCreate(ctx context.Context, senderID entities.SenderID) (string, error) {
	existing, err := r.store.GetBySenderID(ctx, senderID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.Address, nil
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate wallet key: %w", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	record, err := r.store.Create(ctx, &entities.WalletRecord{
		ID:        uuid.New(),
		SenderID:  senderID,
		Address:   address,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	if record.Address != address {
		r.logger.Debug("concurrent wallet provision lost race", "sender_id", string(senderID))
	} else {
		r.logger.Info("wallet provisioned", "sender_id", string(senderID), "address", address)
	}

	return record.Address, nil
}

// Lookup returns the sender's address without provisioning one.
func (r *Registry) Lookup(ctx context.Context, senderID entities.SenderID) (string, bool, error) {
	record, err := r.store.GetBySenderID(ctx, senderID)
	if err != nil {
		return "", false, err
	}
	if record == nil {
		return "", false, nil
	}
	return record.Address, true, nil
}
