package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"survey_wallet/internal/domain"

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Structured logging
)

// Guard makes sure a gateway attempt credits a wallet at most once and a
// (user, subject) reward is paid at most once.
//
// The database is authoritative: claims happen inside the caller's atomic unit
// under row locks and unique indexes. Redis only remembers settled attempts so
// repeated deliveries can be acknowledged without opening a transaction.
type Guard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewGuard creates a guard. rdb may be nil, in which case only the database is consulted.
func NewGuard(rdb *redis.Client, ttl time.Duration) *Guard {
	return &Guard{rdb: rdb, ttl: ttl}
}

func settledKey(checkoutRequestID string) string {
	return "idem:checkout:" + checkoutRequestID
}

// Settled reports whether the attempt is already known to be settled.
// Redis failures read as "unknown" and fall through to the database.
func (g *Guard) Settled(ctx context.Context, checkoutRequestID string) bool {
	if g.rdb == nil || checkoutRequestID == "" {
		return false
	}
	n, err := g.rdb.Exists(ctx, settledKey(checkoutRequestID)).Result()
	if err != nil {
		logrus.WithError(err).Debug("idempotency marker lookup failed")
		return false
	}
	return n == 1
}

// MarkSettled remembers a settled attempt. Only call it after the settling unit committed.
func (g *Guard) MarkSettled(ctx context.Context, checkoutRequestID string) {
	if g.rdb == nil || checkoutRequestID == "" {
		return
	}
	if err := g.rdb.Set(ctx, settledKey(checkoutRequestID), "1", g.ttl).Err(); err != nil {
		logrus.WithError(err).Debug("idempotency marker write failed")
	}
}

// ClaimPayment locks the transaction for a gateway attempt inside tx.
// It returns the pending row, nil when no row exists yet, or ErrConflict when the attempt is settled.
func (g *Guard) ClaimPayment(tx *Tx, checkoutRequestID string) (*domain.Transaction, error) {
	txn, err := tx.LockTransaction(checkoutRequestID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if txn.Status.Terminal() {
		return nil, fmt.Errorf("%w: transaction %s is already %s", domain.ErrConflict, checkoutRequestID, txn.Status)
	}
	return txn, nil
}

// ClaimReward fails with ErrConflict when the user was already rewarded for the subject.
// The caller must hold the user's row lock so concurrent claims serialize.
func (g *Guard) ClaimReward(tx *Tx, userID uint, kind, subjectKey string) error {
	var count int64
	if err := tx.db.Model(&domain.RewardClaim{}).
		Where("user_id = ? AND kind = ? AND subject_key = ?", userID, kind, subjectKey).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: %s %s already rewarded", domain.ErrConflict, kind, subjectKey)
	}
	return nil
}

// RecordReward persists a claim. The unique index rejects a second claim even if ClaimReward was skipped.
func (g *Guard) RecordReward(tx *Tx, claim *domain.RewardClaim) error {
	if err := tx.db.Create(claim).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: %s %s already rewarded", domain.ErrConflict, claim.Kind, claim.SubjectKey)
		}
		return err
	}
	return nil
}
