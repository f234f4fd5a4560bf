package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/masarif/masarif-backend/internal/model"
	"github.com/masarif/masarif-backend/internal/store"
	"github.com/masarif/masarif-backend/internal/store/sqlite"
)

func newMutator(t *testing.T) (*Mutator, store.Store) {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(context.Background(), db))
	s := sqlite.NewWithDB(db)
	return NewMutator(s, zerolog.Nop()), s
}

func registerUser(t *testing.T, s store.Store) *model.User {
	t.Helper()
	u, err := s.Users().Register(context.Background(), "tg:1001")
	require.NoError(t, err)
	return u
}

func TestMutator_ValidateRejectsBadInput(t *testing.T) {
	m, _ := newMutator(t)

	cases := []struct {
		name string
		typ  model.ActionType
		data model.ActionData
	}{
		{"empty account name", model.ActionCreateAccount, model.ActionData{
			CreateAccount: &model.CreateAccountData{Name: "   ", Type: model.AccountBank},
		}},
		{"name too long", model.ActionCreateAccount, model.ActionData{
			CreateAccount: &model.CreateAccountData{Name: makeName(51), Type: model.AccountBank},
		}},
		{"unknown account type", model.ActionCreateAccount, model.ActionData{
			CreateAccount: &model.CreateAccountData{Name: "Main", Type: "checking"},
		}},
		{"zero amount", model.ActionLogExpense, model.ActionData{
			LogTransaction: &model.LogTransactionData{Type: model.TransactionExpense, Amount: decimal.Zero},
		}},
		{"negative amount", model.ActionLogExpense, model.ActionData{
			LogTransaction: &model.LogTransactionData{Type: model.TransactionExpense, Amount: decimal.NewFromInt(-5)},
		}},
		{"amount at upper bound", model.ActionLogIncome, model.ActionData{
			LogTransaction: &model.LogTransactionData{Type: model.TransactionIncome, Amount: decimal.NewFromInt(1_000_000)},
		}},
		{"missing variant", model.ActionSetDefault, model.ActionData{}},
		{"unknown action type", "transfer", model.ActionData{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := m.Validate(tc.typ, tc.data)
			require.ErrorIs(t, err, model.ErrInvalid)
		})
	}
}

func TestMutator_ValidateAcceptsBoundaryName(t *testing.T) {
	m, _ := newMutator(t)
	err := m.Validate(model.ActionCreateAccount, model.ActionData{
		CreateAccount: &model.CreateAccountData{Name: makeName(50), Type: model.AccountCash},
	})
	require.NoError(t, err)
}

func TestMutator_ApplyCreateAccountDefaultsCurrency(t *testing.T) {
	m, s := newMutator(t)
	u := registerUser(t, s)

	sum, err := m.Apply(context.Background(), u.UserID, model.ActionCreateAccount, model.ActionData{
		CreateAccount: &model.CreateAccountData{Name: "Main", Type: model.AccountBank},
	})
	require.NoError(t, err)
	require.NotNil(t, sum.Account)
	require.Equal(t, "EGP", sum.Account.Currency)
	require.True(t, sum.Account.IsDefault)
}

func TestMutator_ApplyExpenseFallsBackToDefaultAccount(t *testing.T) {
	m, s := newMutator(t)
	u := registerUser(t, s)

	_, err := m.Apply(context.Background(), u.UserID, model.ActionCreateAccount, model.ActionData{
		CreateAccount: &model.CreateAccountData{
			Name: "Main", Type: model.AccountBank,
			InitialBalance: decimal.NewFromInt(100),
		},
	})
	require.NoError(t, err)

	sum, err := m.Apply(context.Background(), u.UserID, model.ActionLogExpense, model.ActionData{
		LogTransaction: &model.LogTransactionData{
			Type:       model.TransactionExpense,
			Amount:     decimal.NewFromInt(30),
			Category:   "food",
			OccurredAt: time.Now().UTC(),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, sum.Transaction)
	require.NotNil(t, sum.NewBalance)
	require.Equal(t, "70", *sum.NewBalance)
}

func TestMutator_ApplyExpenseWithoutAnyAccountFails(t *testing.T) {
	m, s := newMutator(t)
	u := registerUser(t, s)

	_, err := m.Apply(context.Background(), u.UserID, model.ActionLogExpense, model.ActionData{
		LogTransaction: &model.LogTransactionData{
			Type:   model.TransactionExpense,
			Amount: decimal.NewFromInt(10),
		},
	})
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestMutator_ApplySetDefaultSwitches(t *testing.T) {
	m, s := newMutator(t)
	u := registerUser(t, s)
	ctx := context.Background()

	first, err := m.Apply(ctx, u.UserID, model.ActionCreateAccount, model.ActionData{
		CreateAccount: &model.CreateAccountData{Name: "Main", Type: model.AccountBank},
	})
	require.NoError(t, err)
	second, err := m.Apply(ctx, u.UserID, model.ActionCreateAccount, model.ActionData{
		CreateAccount: &model.CreateAccountData{Name: "Cash", Type: model.AccountCash},
	})
	require.NoError(t, err)

	sum, err := m.Apply(ctx, u.UserID, model.ActionSetDefault, model.ActionData{
		SetDefault: &model.SetDefaultData{AccountID: second.Account.AccountID},
	})
	require.NoError(t, err)
	require.NotNil(t, sum.SetDefault)
	require.False(t, sum.SetDefault.AlreadyDefault)
	require.Equal(t, first.Account.AccountID, sum.SetDefault.OldDefault.AccountID)
	require.Equal(t, second.Account.AccountID, sum.SetDefault.NewDefault.AccountID)
}

func TestMutator_UpdateAccountValidatesRename(t *testing.T) {
	m, s := newMutator(t)
	u := registerUser(t, s)
	ctx := context.Background()

	sum, err := m.Apply(ctx, u.UserID, model.ActionCreateAccount, model.ActionData{
		CreateAccount: &model.CreateAccountData{Name: "Main", Type: model.AccountBank},
	})
	require.NoError(t, err)
	accID := sum.Account.AccountID

	for _, bad := range []string{"", "   ", makeName(51)} {
		name := bad
		_, err = m.UpdateAccount(ctx, u.UserID, accID, &name, nil)
		require.ErrorIs(t, err, model.ErrInvalid, "rename to %q must fail", bad)
	}

	// renames follow creation rules, so nothing bad was persisted
	got, err := s.Accounts().GetByID(ctx, u.UserID, accID)
	require.NoError(t, err)
	require.Equal(t, "Main", got.Name)

	badType := model.AccountType("checking")
	_, err = m.UpdateAccount(ctx, u.UserID, accID, nil, &badType)
	require.ErrorIs(t, err, model.ErrInvalid)

	_, err = m.UpdateAccount(ctx, u.UserID, accID, nil, nil)
	require.ErrorIs(t, err, model.ErrInvalid)

	name := "  Primary  "
	upd, err := m.UpdateAccount(ctx, u.UserID, accID, &name, nil)
	require.NoError(t, err)
	require.Equal(t, "Primary", upd.Name, "rename persists trimmed")

	boundary := makeName(50)
	upd, err = m.UpdateAccount(ctx, u.UserID, accID, &boundary, nil)
	require.NoError(t, err)
	require.Equal(t, boundary, upd.Name)
}

func TestMutator_CreateAccountStoresTrimmedName(t *testing.T) {
	m, s := newMutator(t)
	u := registerUser(t, s)
	ctx := context.Background()

	sum, err := m.Apply(ctx, u.UserID, model.ActionCreateAccount, model.ActionData{
		CreateAccount: &model.CreateAccountData{Name: "  Cash  ", Type: model.AccountCash},
	})
	require.NoError(t, err)
	require.Equal(t, "Cash", sum.Account.Name)

	// " Cash " and "Cash" are the same name once trimmed
	_, err = m.Apply(ctx, u.UserID, model.ActionCreateAccount, model.ActionData{
		CreateAccount: &model.CreateAccountData{Name: "Cash", Type: model.AccountCash},
	})
	require.ErrorIs(t, err, model.ErrDuplicateName)

	got, err := s.Accounts().GetByName(ctx, u.UserID, "Cash")
	require.NoError(t, err)
	require.Equal(t, sum.Account.AccountID, got.AccountID)
}

func TestMutator_ApplyDuplicateNameSurfaces(t *testing.T) {
	m, s := newMutator(t)
	u := registerUser(t, s)
	ctx := context.Background()

	data := model.ActionData{CreateAccount: &model.CreateAccountData{Name: "Main", Type: model.AccountBank}}
	_, err := m.Apply(ctx, u.UserID, model.ActionCreateAccount, data)
	require.NoError(t, err)
	_, err = m.Apply(ctx, u.UserID, model.ActionCreateAccount, data)
	require.ErrorIs(t, err, model.ErrDuplicateName)
}

func makeName(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
