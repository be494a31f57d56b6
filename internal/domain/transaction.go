package domain

import "github.com/shopspring/decimal" // Exact decimal arithmetic for money

// TransactionStatus is the settlement state of a Transaction
type TransactionStatus string

// Transaction statuses
const (
	StatusPending TransactionStatus = "pending" // Awaiting the gateway callback
	StatusSuccess TransactionStatus = "success" // Settled, money moved
	StatusFailed  TransactionStatus = "failed"  // Settled, no money moved
)

// Terminal reports whether the status can no longer change.
func (s TransactionStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// TransactionType is the direction of a money movement
type TransactionType string

// Transaction types
const (
	TypeDeposit    TransactionType = "deposit"    // Gateway deposit, credits the wallet
	TypeWithdrawal TransactionType = "withdrawal" // Gateway payout, debits the wallet
	TypeReward     TransactionType = "reward"     // Survey or video reward, credits the wallet
)

// Sign returns +1 for types that credit the wallet and -1 for types that debit it.
func (t TransactionType) Sign() int {
	if t == TypeWithdrawal {
		return -1
	}
	return 1
}

// Transaction Model
//
// A Transaction moves from pending to success or failed exactly once and is
// never deleted. Amount and ReceiptNumber are only set on success.
type Transaction struct {
	ID                uint                `gorm:"primaryKey" json:"id"`                                          // Primary key
	OrderID           string              `gorm:"size:64;not null" json:"order_id"`                              // Caller-assigned correlation key
	MerchantRequestID string              `gorm:"size:64" json:"merchant_request_id"`                            // Gateway merchant request id
	CheckoutRequestID string              `gorm:"size:64;uniqueIndex;not null" json:"checkout_request_id"`       // Gateway attempt id, idempotency key
	Status            TransactionStatus   `gorm:"size:16;index;not null;default:pending" json:"status"`          // pending, success or failed
	ResultCode        int                 `json:"result_code"`                                                   // Gateway result code, 0 is success
	ResultDesc        string              `json:"result_desc"`                                                   // Gateway result description
	RequestedAmount   decimal.Decimal     `gorm:"type:decimal(20,2);not null;default:0" json:"requested_amount"` // Amount asked of the gateway
	Amount            decimal.NullDecimal `gorm:"type:decimal(20,2)" json:"amount"`                              // Settled amount
	PhoneNumber       string              `gorm:"size:32" json:"phone_number"`                                   // Payer or payee number
	ReceiptNumber     *string             `gorm:"size:64" json:"receipt_number"`                                 // Gateway receipt
	TransactionDate   string              `gorm:"size:32" json:"transaction_date"`                               // Gateway timestamp, YYYYMMDDHHMMSS
	Type              TransactionType     `gorm:"size:16;not null" json:"type"`                                  // deposit, withdrawal or reward
	UserID            *uint               `gorm:"index" json:"user_id"`                                          // Owning user, nil when unattributed
	User              *User               `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`       // Owning user relation
	CreatedAt         int64               `gorm:"autoCreateTime:milli" json:"created_at"`                        // Timestamp of creation in milliseconds
	UpdatedAt         int64               `gorm:"autoUpdateTime:milli" json:"updated_at"`                        // Timestamp of last update in milliseconds
}
