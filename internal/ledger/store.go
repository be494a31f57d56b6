// Package ledger owns the Transaction table and every wallet balance.
// All mutations go through RunAtomically so a Transaction and the wallet
// delta it produced are committed together or not at all.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"survey_wallet/internal/domain"

	"github.com/go-sql-driver/mysql" // MySQL error numbers
	"github.com/shopspring/decimal"  // Exact decimal arithmetic for money
	"github.com/sirupsen/logrus"     // Structured logging
	"gorm.io/gorm"                   // GORM ORM library
	"gorm.io/gorm/clause"            // Row locking and association clauses
)

// MySQL error numbers for lock contention and unique violations
const (
	mysqlDeadlock     = 1213
	mysqlLockWait     = 1205
	mysqlDuplicateKey = 1062
	maxTransientRetry = 1
)

// Store is the durable ledger backed by a relational database
type Store struct {
	db *gorm.DB
}

// NewStore creates a ledger store on top of an open gorm connection
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Tx is the handle passed to an atomic unit. It is only valid inside RunAtomically.
type Tx struct {
	db *gorm.DB
}

// DB exposes the underlying database transaction for reads and writes outside the ledger tables.
func (t *Tx) DB() *gorm.DB {
	return t.db
}

// RunAtomically runs fn inside one database transaction. Any error or panic
// rolls the whole unit back. Deadlocks and lock wait timeouts are retried once.
// The unit ignores cancellation of ctx once started: it runs to commit or rollback.
func (s *Store) RunAtomically(ctx context.Context, fn func(tx *Tx) error) error {
	var err error
	for attempt := 0; attempt <= maxTransientRetry; attempt++ {
		err = s.db.WithContext(context.WithoutCancel(ctx)).Transaction(func(tx *gorm.DB) error {
			return fn(&Tx{db: tx})
		})
		if err == nil || !isTransient(err) {
			break
		}
		logrus.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"error":   err.Error(),
		}).Warn("Atomic unit hit lock contention")
	}
	if err == nil || domain.IsDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStore, err)
}

// LockUser reads a user and holds its row lock until the unit ends
func (t *Tx) LockUser(id uint) (*domain.User, error) {
	var user domain.User
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// LockTransaction reads the transaction for a gateway attempt and holds its row lock
func (t *Tx) LockTransaction(checkoutRequestID string) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("checkout_request_id = ?", checkoutRequestID).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, checkoutRequestID)
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// Credit increases a wallet and returns the new balance
func (t *Tx) Credit(userID uint, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative credit %s", domain.ErrValidation, amount)
	}
	if err := t.db.Model(&domain.User{}).
		Where("id = ?", userID).
		Update("wallet", gorm.Expr("wallet + ?", amount)).Error; err != nil {
		return decimal.Zero, err
	}
	return t.balance(userID)
}

// Debit decreases a wallet and returns the new balance. The wallet never goes below zero.
func (t *Tx) Debit(userID uint, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative debit %s", domain.ErrValidation, amount)
	}
	res := t.db.Model(&domain.User{}).
		Where("id = ? AND wallet >= ?", userID, amount).
		Update("wallet", gorm.Expr("wallet - ?", amount))
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		return decimal.Zero, fmt.Errorf("%w: user %d cannot cover %s", domain.ErrInsufficientFunds, userID, amount)
	}
	return t.balance(userID)
}

// Apply moves amount in the direction of the transaction type
func (t *Tx) Apply(userID uint, typ domain.TransactionType, amount decimal.Decimal) (decimal.Decimal, error) {
	if typ.Sign() < 0 {
		return t.Debit(userID, amount)
	}
	return t.Credit(userID, amount)
}

func (t *Tx) balance(userID uint) (decimal.Decimal, error) {
	var user domain.User
	if err := t.db.Select("id", "wallet").First(&user, userID).Error; err != nil {
		return decimal.Zero, err
	}
	return user.Wallet, nil
}

// CreateTransaction inserts a transaction. A second row for the same checkout request id is a conflict.
func (t *Tx) CreateTransaction(txn *domain.Transaction) error {
	err := t.db.Omit(clause.Associations).Create(txn).Error
	if isDuplicate(err) {
		return fmt.Errorf("%w: transaction %s already recorded", domain.ErrConflict, txn.CheckoutRequestID)
	}
	return err
}

// SettleTransaction moves a pending transaction to its terminal state.
// Settling a row that is no longer pending is a conflict.
func (t *Tx) SettleTransaction(txn *domain.Transaction) error {
	if !txn.Status.Terminal() {
		return fmt.Errorf("%w: cannot settle into %q", domain.ErrValidation, txn.Status)
	}
	res := t.db.Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", txn.ID, domain.StatusPending).
		Updates(map[string]any{
			"merchant_request_id": txn.MerchantRequestID,
			"status":              txn.Status,
			"result_code":         txn.ResultCode,
			"result_desc":         txn.ResultDesc,
			"amount":              txn.Amount,
			"phone_number":        txn.PhoneNumber,
			"receipt_number":      txn.ReceiptNumber,
			"transaction_date":    txn.TransactionDate,
			"user_id":             txn.UserID,
			"updated_at":          time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: transaction %s already settled", domain.ErrConflict, txn.CheckoutRequestID)
	}
	return nil
}

// RegisterPending records a gateway attempt before its callback arrives
func (s *Store) RegisterPending(ctx context.Context, txn *domain.Transaction) error {
	txn.Status = domain.StatusPending
	txn.Amount = decimal.NullDecimal{}
	txn.ReceiptNumber = nil
	return s.RunAtomically(ctx, func(tx *Tx) error {
		return tx.CreateTransaction(txn)
	})
}

// PendingWithdrawals sums the payouts a user has sent to the gateway that have not settled yet
func (t *Tx) PendingWithdrawals(userID uint) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := t.db.Model(&domain.Transaction{}).
		Where("user_id = ? AND type = ? AND status = ?", userID, domain.TypeWithdrawal, domain.StatusPending).
		Pluck("requested_amount", &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	return decimal.Sum(decimal.Zero, amounts...), nil
}

// ReserveWithdrawal records a pending payout when the wallet, less the payouts
// already in flight, still covers it. The wallet itself is debited on settlement.
func (s *Store) ReserveWithdrawal(ctx context.Context, txn *domain.Transaction) error {
	if txn.UserID == nil {
		return fmt.Errorf("%w: withdrawal needs an owner", domain.ErrValidation)
	}
	txn.Type = domain.TypeWithdrawal
	txn.Status = domain.StatusPending
	txn.Amount = decimal.NullDecimal{}
	txn.ReceiptNumber = nil
	return s.RunAtomically(ctx, func(tx *Tx) error {
		user, err := tx.LockUser(*txn.UserID)
		if err != nil {
			return err
		}
		pending, err := tx.PendingWithdrawals(user.ID)
		if err != nil {
			return err
		}
		if available := user.Wallet.Sub(pending); available.LessThan(txn.RequestedAmount) {
			return fmt.Errorf("%w: available balance %s is below %s", domain.ErrInsufficientFunds, available, txn.RequestedAmount)
		}
		return tx.CreateTransaction(txn)
	})
}

// AssignGatewayIDs replaces the provisional ids of a pending row with the ones the gateway issued
func (s *Store) AssignGatewayIDs(ctx context.Context, id uint, merchantRequestID, checkoutRequestID string) error {
	return s.RunAtomically(ctx, func(tx *Tx) error {
		res := tx.db.Model(&domain.Transaction{}).
			Where("id = ? AND status = ?", id, domain.StatusPending).
			Updates(map[string]any{
				"merchant_request_id": merchantRequestID,
				"checkout_request_id": checkoutRequestID,
			})
		if isDuplicate(res.Error) {
			return fmt.Errorf("%w: transaction %s already recorded", domain.ErrConflict, checkoutRequestID)
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: transaction %d is no longer pending", domain.ErrConflict, id)
		}
		return nil
	})
}

// FailPending settles a pending row as failed without moving money
func (s *Store) FailPending(ctx context.Context, id uint, desc string) error {
	return s.RunAtomically(ctx, func(tx *Tx) error {
		return tx.db.Model(&domain.Transaction{}).
			Where("id = ? AND status = ?", id, domain.StatusPending).
			Updates(map[string]any{
				"status":      domain.StatusFailed,
				"result_code": -1,
				"result_desc": desc,
			}).Error
	})
}

// Read returns a handle for plain reads outside any atomic unit
func (s *Store) Read(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// FindTransaction returns the transaction for a gateway attempt
func (s *Store) FindTransaction(ctx context.Context, checkoutRequestID string) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := s.db.WithContext(ctx).Where("checkout_request_id = ?", checkoutRequestID).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, checkoutRequestID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return &txn, nil
}

// Verify reports whether a gateway attempt has settled and how
func (s *Store) Verify(ctx context.Context, checkoutRequestID string) (*domain.Verification, error) {
	if checkoutRequestID == "" {
		return nil, fmt.Errorf("%w: checkout request id is required", domain.ErrValidation)
	}
	txn, err := s.FindTransaction(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}
	return &domain.Verification{
		IsCompleted:   txn.Status.Terminal(),
		IsSuccess:     txn.Status == domain.StatusSuccess,
		Amount:        txn.Amount,
		ReceiptNumber: txn.ReceiptNumber,
		Details:       txn,
	}, nil
}

// FindUser returns a user by id
func (s *Store) FindUser(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return &user, nil
}

// Wallet returns the wallet view of a user
func (s *Store) Wallet(ctx context.Context, userID uint) (*domain.WalletView, error) {
	user, err := s.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.WalletView{UserID: user.ID, Balance: user.Wallet, Level: user.Level}, nil
}

// UserTransactions returns one page of a user's transactions, newest first, and the total count
func (s *Store) UserTransactions(ctx context.Context, userID uint, page, pageSize int) ([]domain.Transaction, int64, error) {
	query := s.db.WithContext(ctx).Model(&domain.Transaction{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	var txs []domain.Transaction
	if err := query.Order("created_at desc").Order("id desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txs).Error; err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	return txs, total, nil
}

func isTransient(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWait
	}
	return false
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateKey
}
