package domain

import "github.com/shopspring/decimal" // Exact decimal arithmetic for money

// WalletView is the read model of a user's wallet
type WalletView struct {
	UserID  uint            `json:"user_id"` // Owning user
	Balance decimal.Decimal `json:"balance"` // Current balance
	Level   int             `json:"level"`   // Reward level
}

// Verification answers whether a gateway attempt has settled
type Verification struct {
	IsCompleted   bool                `json:"isCompleted"`   // Status is terminal
	IsSuccess     bool                `json:"isSuccess"`     // Status is success
	Amount        decimal.NullDecimal `json:"amount"`        // Settled amount
	ReceiptNumber *string             `json:"receiptNumber"` // Gateway receipt
	Details       *Transaction        `json:"details"`       // Full record
}
