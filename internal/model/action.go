package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActionType tags the kind of staged mutation.
type ActionType string

const (
	ActionCreateAccount ActionType = "create_account"
	ActionLogExpense    ActionType = "log_expense"
	ActionLogIncome     ActionType = "log_income"
	ActionSetDefault    ActionType = "set_default"
)

// ActionData is a tagged union keyed by ActionType; exactly one variant is
// populated for a given action.
type ActionData struct {
	CreateAccount  *CreateAccountData  `json:"createAccount,omitempty"`
	LogTransaction *LogTransactionData `json:"logTransaction,omitempty"`
	SetDefault     *SetDefaultData     `json:"setDefault,omitempty"`
}

// CreateAccountData stages an account creation.
type CreateAccountData struct {
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	Currency       string          `json:"currency"`
}

// LogTransactionData stages an expense or income posting. An empty AccountID
// means the user's default account at apply time.
type LogTransactionData struct {
	AccountID   string          `json:"accountId,omitempty"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description *string         `json:"description,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// SetDefaultData stages a default-account switch.
type SetDefaultData struct {
	AccountID string `json:"accountId"`
}

// ActionPatch carries field corrections for an edit-before-confirm flow.
// Only fields relevant to the pending action's variant are applied.
type ActionPatch struct {
	Name        *string          `json:"name,omitempty"`
	AccountType *AccountType     `json:"accountType,omitempty"`
	Currency    *string          `json:"currency,omitempty"`
	AccountID   *string          `json:"accountId,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Description *string          `json:"description,omitempty"`
	OccurredAt  *time.Time       `json:"occurredAt,omitempty"`
}

// Merge applies the patch to the populated variant. Fields that do not belong
// to the variant are ignored rather than rejected, so a transport can pass a
// full patch through unfiltered.
func (d *ActionData) Merge(p ActionPatch) {
	switch {
	case d.CreateAccount != nil:
		if p.Name != nil {
			d.CreateAccount.Name = *p.Name
		}
		if p.AccountType != nil {
			d.CreateAccount.Type = *p.AccountType
		}
		if p.Currency != nil {
			d.CreateAccount.Currency = *p.Currency
		}
		if p.Amount != nil {
			d.CreateAccount.InitialBalance = *p.Amount
		}
	case d.LogTransaction != nil:
		if p.AccountID != nil {
			d.LogTransaction.AccountID = *p.AccountID
		}
		if p.Amount != nil {
			d.LogTransaction.Amount = *p.Amount
		}
		if p.Category != nil {
			d.LogTransaction.Category = *p.Category
		}
		if p.Description != nil {
			d.LogTransaction.Description = p.Description
		}
		if p.OccurredAt != nil {
			d.LogTransaction.OccurredAt = *p.OccurredAt
		}
	case d.SetDefault != nil:
		if p.AccountID != nil {
			d.SetDefault.AccountID = *p.AccountID
		}
	}
}
