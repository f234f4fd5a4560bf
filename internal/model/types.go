package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is an identity bound to one external messaging-channel id.
type User struct {
	UserID       string    `json:"userId"`
	ChannelID    string    `json:"channelId"`
	CreationTime time.Time `json:"creationTime"`
}

// AccountType enumerates the supported account kinds.
type AccountType string

const (
	AccountBank          AccountType = "bank"
	AccountCash          AccountType = "cash"
	AccountCreditCard    AccountType = "credit_card"
	AccountDigitalWallet AccountType = "digital_wallet"
)

// ValidAccountType reports whether t is a known account type.
func ValidAccountType(t AccountType) bool {
	switch t {
	case AccountBank, AccountCash, AccountCreditCard, AccountDigitalWallet:
		return true
	}
	return false
}

// Account is a ledger account owned by one user. Balance is signed; overdraft
// is allowed. Among a user's non-deleted accounts at most one is default.
type Account struct {
	AccountID    string          `json:"accountId"`
	UserID       string          `json:"userId"`
	Name         string          `json:"name"`
	Type         AccountType     `json:"type"`
	Balance      decimal.Decimal `json:"balance"`
	Currency     string          `json:"currency"`
	IsDefault    bool            `json:"isDefault"`
	IsDeleted    bool            `json:"isDeleted"`
	CreationTime time.Time       `json:"creationTime"`
	UpdateTime   time.Time       `json:"updateTime"`
}

// TransactionType is the sign of a ledger posting.
type TransactionType string

const (
	TransactionExpense TransactionType = "expense"
	TransactionIncome  TransactionType = "income"
)

// Transaction is an immutable ledger entry. Its insertion is always paired
// with the matching balance adjustment on the owning account.
type Transaction struct {
	TransactionID string          `json:"transactionId"`
	AccountID     string          `json:"accountId"`
	UserID        string          `json:"userId"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   *string         `json:"description,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
	CreationTime  time.Time       `json:"creationTime"`
}

// SetDefaultResult reports the outcome of a default-account switch.
// AlreadyDefault distinguishes the no-op case from a state change.
type SetDefaultResult struct {
	OldDefault     *Account `json:"oldDefault,omitempty"`
	NewDefault     *Account `json:"newDefault"`
	AlreadyDefault bool     `json:"alreadyDefault"`
}

// DialogueStateType tags the multi-turn flow a user is in the middle of.
type DialogueStateType string

const (
	AwaitingAccountName DialogueStateType = "awaiting_account_name"
	AwaitingAccountType DialogueStateType = "awaiting_account_type"
	AwaitingAmount      DialogueStateType = "awaiting_amount"
)

// DialogueState is the single active multi-turn flow slot for a user.
// Setting a new state supersedes any prior one; reads past ExpiresAt treat
// the state as absent even if it has not been physically removed yet.
type DialogueState struct {
	StateID      string            `json:"stateId"`
	UserID       string            `json:"userId"`
	StateType    DialogueStateType `json:"stateType"`
	Draft        ActionData        `json:"draft"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	CreationTime time.Time         `json:"creationTime"`
}

// Expired reports logical expiry. Physical deletion may lag behind.
func (s *DialogueState) Expired(now time.Time) bool { return now.After(s.ExpiresAt) }

// PendingAction is a staged mutation awaiting explicit confirmation,
// correlated with channel-level callbacks through CorrelationID.
type PendingAction struct {
	PendingID     string     `json:"pendingId"`
	UserID        string     `json:"userId"`
	ActionType    ActionType `json:"actionType"`
	Data          ActionData `json:"data"`
	CorrelationID string     `json:"correlationId"`
	MessageID     *string    `json:"messageId,omitempty"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	CreationTime  time.Time  `json:"creationTime"`
}

// Expired reports logical expiry. Physical deletion may lag behind.
func (p *PendingAction) Expired(now time.Time) bool { return now.After(p.ExpiresAt) }
