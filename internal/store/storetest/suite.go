package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/masarif/masarif-backend/internal/model"
	"github.com/masarif/masarif-backend/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// makeStore must return a clean, isolated store per call.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("UserRegistrationIsIdempotent", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		channel := "chan-" + uuid.New().String()

		u1, err := s.Users().Register(ctx, channel)
		require.NoError(t, err)
		u2, err := s.Users().Register(ctx, channel)
		require.NoError(t, err)
		require.Equal(t, u1.UserID, u2.UserID)

		got, err := s.Users().Get(ctx, u1.UserID)
		require.NoError(t, err)
		require.Equal(t, channel, got.ChannelID)
	})

	t.Run("FirstAccountBecomesDefault", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		u := registerUser(t, s)

		a, err := s.Accounts().Create(ctx, &model.Account{
			UserID: u.UserID, Name: "Cash", Type: model.AccountCash,
			Balance: decimal.NewFromInt(500), Currency: "EGP",
		})
		require.NoError(t, err)
		require.True(t, a.IsDefault)

		b, err := s.Accounts().Create(ctx, &model.Account{
			UserID: u.UserID, Name: "Bank", Type: model.AccountBank,
			Balance: decimal.Zero, Currency: "EGP",
		})
		require.NoError(t, err)
		require.False(t, b.IsDefault, "second account must not steal default")

		def, err := s.Accounts().GetDefault(ctx, u.UserID)
		require.NoError(t, err)
		require.Equal(t, a.AccountID, def.AccountID)
	})

	t.Run("DuplicateNameIsCaseSensitiveExactMatch", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		u := registerUser(t, s)

		_, err := s.Accounts().Create(ctx, &model.Account{
			UserID: u.UserID, Name: "Cash", Type: model.AccountCash, Currency: "EGP",
		})
		require.NoError(t, err)

		_, err = s.Accounts().Create(ctx, &model.Account{
			UserID: u.UserID, Name: "Cash", Type: model.AccountCash, Currency: "EGP",
		})
		require.ErrorIs(t, err, model.ErrDuplicateName)

		// different case is a different name under current rules
		_, err = s.Accounts().Create(ctx, &model.Account{
			UserID: u.UserID, Name: "cash", Type: model.AccountCash, Currency: "EGP",
		})
		require.NoError(t, err)
	})

	t.Run("SetDefaultSwitchesAtomically", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		u := registerUser(t, s)
		a := createAccount(t, s, u.UserID, "A")
		b := createAccount(t, s, u.UserID, "B")

		res, err := s.Accounts().SetDefault(ctx, u.UserID, b.AccountID)
		require.NoError(t, err)
		require.False(t, res.AlreadyDefault)
		require.NotNil(t, res.OldDefault)
		require.Equal(t, a.AccountID, res.OldDefault.AccountID)
		require.False(t, res.OldDefault.IsDefault)
		require.True(t, res.NewDefault.IsDefault)
		require.True(t, res.OldDefault.UpdateTime.After(a.UpdateTime) || res.OldDefault.UpdateTime.Equal(res.NewDefault.UpdateTime))

		requireSingleDefault(t, s, u.UserID)

		// repeat is a distinguished no-op
		res, err = s.Accounts().SetDefault(ctx, u.UserID, b.AccountID)
		require.NoError(t, err)
		require.True(t, res.AlreadyDefault)
		requireSingleDefault(t, s, u.UserID)
	})

	t.Run("SetDefaultOwnershipAndDeletion", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		u1 := registerUser(t, s)
		u2 := registerUser(t, s)
		a := createAccount(t, s, u1.UserID, "A")

		_, err := s.Accounts().SetDefault(ctx, u2.UserID, a.AccountID)
		require.ErrorIs(t, err, model.ErrForbidden)

		_, err = s.Accounts().SetDefault(ctx, u1.UserID, uuid.New().String())
		require.ErrorIs(t, err, model.ErrNotFound)

		require.NoError(t, s.Accounts().SoftDelete(ctx, u1.UserID, a.AccountID))
		_, err = s.Accounts().SetDefault(ctx, u1.UserID, a.AccountID)
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("UpdateTouchesNameAndTypeOnly", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		u := registerUser(t, s)
		a := createAccount(t, s, u.UserID, "A")

		name := "Renamed"
		typ := model.AccountBank
		got, err := s.Accounts().Update(ctx, u.UserID, a.AccountID, &name, &typ)
		require.NoError(t, err)
		require.Equal(t, "Renamed", got.Name)
		require.Equal(t, model.AccountBank, got.Type)
		require.True(t, got.Balance.Equal(a.Balance))
		require.Equal(t, a.Currency, got.Currency)
		require.Equal(t, a.IsDefault, got.IsDefault)
		require.False(t, got.UpdateTime.Before(a.UpdateTime))

		_ = createAccount(t, s, u.UserID, "B")
		dup := "B"
		_, err = s.Accounts().Update(ctx, u.UserID, a.AccountID, &dup, nil)
		require.ErrorIs(t, err, model.ErrDuplicateName)
	})

	t.Run("PostTransactionAdjustsBalanceWithCorrectSign", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		u := registerUser(t, s)
		a, err := s.Accounts().Create(ctx, &model.Account{
			UserID: u.UserID, Name: "Cash", Type: model.AccountCash,
			Balance: decimal.NewFromInt(30), Currency: "EGP",
		})
		require.NoError(t, err)

		// expense overdraws without error
		_, newBal, err := s.Transactions().Post(ctx, &model.Transaction{
			AccountID: a.AccountID, UserID: u.UserID,
			Type: model.TransactionExpense, Amount: decimal.NewFromInt(50), Category: "food",
		})
		require.NoError(t, err)
		require.True(t, newBal.Equal(decimal.NewFromInt(-20)), "got %s", newBal)

		// income adds, never subtracts
		_, newBal, err = s.Transactions().Post(ctx, &model.Transaction{
			AccountID: a.AccountID, UserID: u.UserID,
			Type: model.TransactionIncome, Amount: decimal.NewFromInt(100), Category: "salary",
		})
		require.NoError(t, err)
		require.True(t, newBal.Equal(decimal.NewFromInt(80)), "got %s", newBal)

		// ledger entry exists iff the balance changed
		txs, err := s.Transactions().List(ctx, u.UserID, a.AccountID, 0)
		require.NoError(t, err)
		require.Len(t, txs, 2)

		got, err := s.Accounts().GetByID(ctx, u.UserID, a.AccountID)
		require.NoError(t, err)
		require.True(t, got.Balance.Equal(decimal.NewFromInt(80)))
	})

	t.Run("PostTransactionRejectsForeignAndDeletedAccounts", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		u1 := registerUser(t, s)
		u2 := registerUser(t, s)
		a := createAccount(t, s, u1.UserID, "A")

		_, _, err := s.Transactions().Post(ctx, &model.Transaction{
			AccountID: a.AccountID, UserID: u2.UserID,
			Type: model.TransactionExpense, Amount: decimal.NewFromInt(1), Category: "other",
		})
		require.ErrorIs(t, err, model.ErrForbidden)

		require.NoError(t, s.Accounts().SoftDelete(ctx, u1.UserID, a.AccountID))
		_, _, err = s.Transactions().Post(ctx, &model.Transaction{
			AccountID: a.AccountID, UserID: u1.UserID,
			Type: model.TransactionExpense, Amount: decimal.NewFromInt(1), Category: "other",
		})
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("DialogueStateSingleSlotAndExpiry", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		u := registerUser(t, s)
		now := time.Now().UTC()

		_, err := s.Dialogues().Set(ctx, &model.DialogueState{
			UserID: u.UserID, StateType: model.AwaitingAccountName,
			ExpiresAt: now.Add(time.Minute),
		})
		require.NoError(t, err)

		st2, err := s.Dialogues().Set(ctx, &model.DialogueState{
			UserID: u.UserID, StateType: model.AwaitingAmount,
			ExpiresAt: now.Add(time.Minute),
		})
		require.NoError(t, err)

		got, err := s.Dialogues().Get(ctx, u.UserID, now)
		require.NoError(t, err)
		require.Equal(t, st2.StateID, got.StateID, "newest state wins the slot")
		require.Equal(t, model.AwaitingAmount, got.StateType)

		// logically expired reads as absent even before any sweep
		_, err = s.Dialogues().Get(ctx, u.UserID, now.Add(2*time.Minute))
		require.ErrorIs(t, err, model.ErrNotFound)

		require.NoError(t, s.Dialogues().Clear(ctx, u.UserID))
		require.NoError(t, s.Dialogues().Clear(ctx, u.UserID), "clear is idempotent")
	})

	t.Run("PendingActionExpiryIndistinguishableFromAbsentToUpdate", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		u := registerUser(t, s)
		now := time.Now().UTC()

		p, err := s.Pendings().Create(ctx, &model.PendingAction{
			UserID:     u.UserID,
			ActionType: model.ActionLogExpense,
			Data: model.ActionData{LogTransaction: &model.LogTransactionData{
				Type: model.TransactionExpense, Amount: decimal.NewFromInt(50), Category: "food", OccurredAt: now,
			}},
			ExpiresAt: now.Add(5 * time.Minute),
		})
		require.NoError(t, err)
		require.NotEmpty(t, p.CorrelationID)

		got, err := s.Pendings().GetByCorrelationID(ctx, p.CorrelationID, now)
		require.NoError(t, err)
		require.Equal(t, p.PendingID, got.PendingID)

		// one minute past expiry: reported as expired, still physically present
		late := p.ExpiresAt.Add(time.Minute)
		_, err = s.Pendings().GetByCorrelationID(ctx, p.CorrelationID, late)
		require.ErrorIs(t, err, model.ErrExpired)

		amt := decimal.NewFromInt(60)
		_, err = s.Pendings().Update(ctx, p.PendingID, model.ActionPatch{Amount: &amt}, late)
		require.ErrorIs(t, err, model.ErrExpired)

		_, err = s.Pendings().GetByCorrelationID(ctx, uuid.New().String(), now)
		require.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("PendingUpdateMergesVariantFields", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		u := registerUser(t, s)
		now := time.Now().UTC()

		p, err := s.Pendings().Create(ctx, &model.PendingAction{
			UserID:     u.UserID,
			ActionType: model.ActionLogExpense,
			Data: model.ActionData{LogTransaction: &model.LogTransactionData{
				Type: model.TransactionExpense, Amount: decimal.NewFromInt(50), Category: "food", OccurredAt: now,
			}},
			ExpiresAt: now.Add(5 * time.Minute),
		})
		require.NoError(t, err)

		amt := decimal.NewFromInt(75)
		cat := "transport"
		got, err := s.Pendings().Update(ctx, p.PendingID, model.ActionPatch{Amount: &amt, Category: &cat}, now)
		require.NoError(t, err)
		require.True(t, got.Data.LogTransaction.Amount.Equal(amt))
		require.Equal(t, "transport", got.Data.LogTransaction.Category)
		require.Equal(t, p.CorrelationID, got.CorrelationID, "edit keeps correlation id")
		require.Equal(t, p.ExpiresAt.Unix(), got.ExpiresAt.Unix(), "edit keeps expiry")
	})

	t.Run("SweepExpiredDeletesOnlyPastTTL", func(t *testing.T) {
		s := makeStore(t)
		ctx := context.Background()
		u := registerUser(t, s)
		now := time.Now().UTC()

		old, err := s.Pendings().Create(ctx, &model.PendingAction{
			UserID: u.UserID, ActionType: model.ActionSetDefault,
			Data:      model.ActionData{SetDefault: &model.SetDefaultData{AccountID: "x"}},
			ExpiresAt: now.Add(-time.Hour),
		})
		require.NoError(t, err)
		live, err := s.Pendings().Create(ctx, &model.PendingAction{
			UserID: u.UserID, ActionType: model.ActionSetDefault,
			Data:      model.ActionData{SetDefault: &model.SetDefaultData{AccountID: "y"}},
			ExpiresAt: now.Add(time.Hour),
		})
		require.NoError(t, err)

		n, err := s.Pendings().SweepExpired(ctx, now)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		_, err = s.Pendings().GetByCorrelationID(ctx, old.CorrelationID, now)
		require.ErrorIs(t, err, model.ErrNotFound)
		_, err = s.Pendings().GetByCorrelationID(ctx, live.CorrelationID, now)
		require.NoError(t, err)

		// sweep is idempotent
		n, err = s.Pendings().SweepExpired(ctx, now)
		require.NoError(t, err)
		require.EqualValues(t, 0, n)
	})
}

func requireSingleDefault(t *testing.T, s store.Store, userID string) {
	t.Helper()
	accounts, err := s.Accounts().List(context.Background(), userID)
	require.NoError(t, err)
	defaults := 0
	for _, a := range accounts {
		if a.IsDefault {
			defaults++
		}
	}
	require.LessOrEqual(t, defaults, 1, "at most one default among non-deleted accounts")
}

func registerUser(t *testing.T, s store.Store) *model.User {
	t.Helper()
	u, err := s.Users().Register(context.Background(), "chan-"+uuid.New().String())
	require.NoError(t, err)
	return u
}

func createAccount(t *testing.T, s store.Store, userID, name string) *model.Account {
	t.Helper()
	a, err := s.Accounts().Create(context.Background(), &model.Account{
		UserID: userID, Name: name, Type: model.AccountBank,
		Balance: decimal.Zero, Currency: "EGP",
	})
	require.NoError(t, err)
	return a
}
