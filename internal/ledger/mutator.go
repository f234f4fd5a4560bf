// Package ledger validates and applies confirmed mutations against the
// stored accounts and transactions.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/masarif/masarif-backend/internal/model"
	"github.com/masarif/masarif-backend/internal/store"
)

const (
	maxNameLen      = 50
	defaultCurrency = "EGP"
)

// amounts must lie strictly inside (0, 1_000_000)
var maxAmount = decimal.NewFromInt(1_000_000)

// Mutator is the single path through which confirmed actions reach the
// store. Validation failures return model.ErrInvalid before any write.
type Mutator struct {
	store store.Store
	log   zerolog.Logger
}

func NewMutator(s store.Store, log zerolog.Logger) *Mutator {
	return &Mutator{store: s, log: log.With().Str("component", "ledger").Logger()}
}

// Validate checks an action's data without touching the store. It is run
// both at staging time, so broken proposals are never persisted, and again
// at apply time, so an edited pending action cannot smuggle bad values in.
func (m *Mutator) Validate(t model.ActionType, data model.ActionData) error {
	switch t {
	case model.ActionCreateAccount:
		ca := data.CreateAccount
		if ca == nil {
			return fmt.Errorf("%w: missing account data", model.ErrInvalid)
		}
		if _, err := validateName(ca.Name); err != nil {
			return err
		}
		if !model.ValidAccountType(ca.Type) {
			return fmt.Errorf("%w: unknown account type %q", model.ErrInvalid, ca.Type)
		}
		return nil
	case model.ActionLogExpense, model.ActionLogIncome:
		lt := data.LogTransaction
		if lt == nil {
			return fmt.Errorf("%w: missing transaction data", model.ErrInvalid)
		}
		return validateAmount(lt.Amount)
	case model.ActionSetDefault:
		sd := data.SetDefault
		if sd == nil || sd.AccountID == "" {
			return fmt.Errorf("%w: missing account id", model.ErrInvalid)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action type %q", model.ErrInvalid, t)
	}
}

// Apply executes a validated action for userID and summarizes the change.
func (m *Mutator) Apply(ctx context.Context, userID string, t model.ActionType, data model.ActionData) (*model.AppliedSummary, error) {
	if err := m.Validate(t, data); err != nil {
		return nil, err
	}
	switch t {
	case model.ActionCreateAccount:
		return m.createAccount(ctx, userID, data.CreateAccount)
	case model.ActionLogExpense, model.ActionLogIncome:
		return m.logTransaction(ctx, userID, data.LogTransaction)
	case model.ActionSetDefault:
		return m.setDefault(ctx, userID, data.SetDefault.AccountID)
	}
	return nil, fmt.Errorf("%w: unknown action type %q", model.ErrInvalid, t)
}

// UpdateAccount renames or retypes an account. Renames go through the same
// name rules as creation.
func (m *Mutator) UpdateAccount(ctx context.Context, userID, accountID string, name *string, accType *model.AccountType) (*model.Account, error) {
	if name == nil && accType == nil {
		return nil, fmt.Errorf("%w: nothing to update", model.ErrInvalid)
	}
	if name != nil {
		trimmed, err := validateName(*name)
		if err != nil {
			return nil, err
		}
		name = &trimmed
	}
	if accType != nil && !model.ValidAccountType(*accType) {
		return nil, fmt.Errorf("%w: unknown account type %q", model.ErrInvalid, *accType)
	}
	acc, err := m.store.Accounts().Update(ctx, userID, accountID, name, accType)
	if err != nil {
		return nil, err
	}
	m.log.Info().Str("userId", userID).Str("accountId", accountID).Msg("account updated")
	return acc, nil
}

func (m *Mutator) createAccount(ctx context.Context, userID string, ca *model.CreateAccountData) (*model.AppliedSummary, error) {
	currency := ca.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	// Validate already vetted the name; store the trimmed form so the
	// duplicate check never distinguishes "Cash" from " Cash ".
	name, err := validateName(ca.Name)
	if err != nil {
		return nil, err
	}
	acc, err := m.store.Accounts().Create(ctx, &model.Account{
		UserID:   userID,
		Name:     name,
		Type:     ca.Type,
		Balance:  ca.InitialBalance,
		Currency: currency,
	})
	if err != nil {
		return nil, err
	}
	m.log.Info().Str("userId", userID).Str("accountId", acc.AccountID).Msg("account created")
	return &model.AppliedSummary{Account: acc}, nil
}

func (m *Mutator) logTransaction(ctx context.Context, userID string, lt *model.LogTransactionData) (*model.AppliedSummary, error) {
	accountID := lt.AccountID
	if accountID == "" {
		def, err := m.store.Accounts().GetDefault(ctx, userID)
		if err != nil {
			return nil, err
		}
		accountID = def.AccountID
	}
	txn, balance, err := m.store.Transactions().Post(ctx, &model.Transaction{
		AccountID:   accountID,
		UserID:      userID,
		Type:        lt.Type,
		Amount:      lt.Amount,
		Category:    lt.Category,
		Description: lt.Description,
		OccurredAt:  lt.OccurredAt,
	})
	if err != nil {
		return nil, err
	}
	m.log.Info().
		Str("userId", userID).
		Str("accountId", accountID).
		Str("type", string(lt.Type)).
		Str("amount", lt.Amount.String()).
		Msg("transaction posted")
	b := balance.String()
	return &model.AppliedSummary{Transaction: txn, NewBalance: &b}, nil
}

func (m *Mutator) setDefault(ctx context.Context, userID, accountID string) (*model.AppliedSummary, error) {
	res, err := m.store.Accounts().SetDefault(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	m.log.Info().
		Str("userId", userID).
		Str("accountId", accountID).
		Bool("alreadyDefault", res.AlreadyDefault).
		Msg("default account set")
	return &model.AppliedSummary{SetDefault: res}, nil
}

// validateName returns the trimmed name that callers must persist.
func validateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: account name is empty", model.ErrInvalid)
	}
	if len([]rune(trimmed)) > maxNameLen {
		return "", fmt.Errorf("%w: account name exceeds %d characters", model.ErrInvalid, maxNameLen)
	}
	return trimmed, nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", model.ErrInvalid)
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: amount must be below %s", model.ErrInvalid, maxAmount.String())
	}
	return nil
}
