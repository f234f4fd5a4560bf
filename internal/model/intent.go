package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// IntentKind classifies the purpose of an utterance.
type IntentKind string

const (
	IntentNone          IntentKind = "none"
	IntentCreateAccount IntentKind = "create_account"
	IntentLogExpense    IntentKind = "log_expense"
	IntentLogIncome     IntentKind = "log_income"
	IntentSetDefault    IntentKind = "set_default"
	IntentViewAccounts  IntentKind = "view_accounts"
	IntentViewBalance   IntentKind = "view_balance"
)

// ValidIntentKind reports whether k is a known intent tag.
func ValidIntentKind(k IntentKind) bool {
	switch k {
	case IntentNone, IntentCreateAccount, IntentLogExpense, IntentLogIncome,
		IntentSetDefault, IntentViewAccounts, IntentViewBalance:
		return true
	}
	return false
}

// Entities are the structured values extracted from an utterance. Nil/empty
// fields were not present in the text.
type Entities struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	Category    string           `json:"category,omitempty"`
	AccountName string           `json:"accountName,omitempty"`
	AccountType *AccountType     `json:"accountType,omitempty"`
	OccurredAt  *time.Time       `json:"occurredAt,omitempty"`
}

// Resolution is the outcome of intent resolution for one utterance.
type Resolution struct {
	Intent     IntentKind `json:"intent"`
	Entities   Entities   `json:"entities"`
	Confidence float64    `json:"confidence"`
}
