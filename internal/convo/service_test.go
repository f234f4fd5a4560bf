package convo

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/masarif/masarif-backend/internal/model"
	"github.com/masarif/masarif-backend/internal/store/sqlite"
)

func newService(t *testing.T) (*Service, string) {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(context.Background(), db))
	s := sqlite.NewWithDB(db)
	u, err := s.Users().Register(context.Background(), "tg:2001")
	require.NoError(t, err)
	return NewService(s, zerolog.Nop(), 5*time.Minute, 10*time.Minute), u.UserID
}

func expenseData(amount int64) model.ActionData {
	return model.ActionData{LogTransaction: &model.LogTransactionData{
		Type:     model.TransactionExpense,
		Amount:   decimal.NewFromInt(amount),
		Category: "food",
	}}
}

func TestService_StagePendingSupersedesSameType(t *testing.T) {
	svc, userID := newService(t)
	ctx := context.Background()

	first, err := svc.StagePending(ctx, userID, model.ActionLogExpense, expenseData(10), nil)
	require.NoError(t, err)
	second, err := svc.StagePending(ctx, userID, model.ActionLogExpense, expenseData(20), nil)
	require.NoError(t, err)
	require.NotEqual(t, first.CorrelationID, second.CorrelationID)

	// the first proposal is gone
	_, err = svc.GetPending(ctx, first.CorrelationID)
	require.ErrorIs(t, err, model.ErrNotFound)

	got, err := svc.GetPending(ctx, second.CorrelationID)
	require.NoError(t, err)
	require.True(t, got.Data.LogTransaction.Amount.Equal(decimal.NewFromInt(20)))
}

func TestService_StagePendingKeepsOtherTypes(t *testing.T) {
	svc, userID := newService(t)
	ctx := context.Background()

	create, err := svc.StagePending(ctx, userID, model.ActionCreateAccount, model.ActionData{
		CreateAccount: &model.CreateAccountData{Name: "Main", Type: model.AccountBank},
	}, nil)
	require.NoError(t, err)

	_, err = svc.StagePending(ctx, userID, model.ActionLogExpense, expenseData(10), nil)
	require.NoError(t, err)

	// staging an expense does not touch the staged account creation
	_, err = svc.GetPending(ctx, create.CorrelationID)
	require.NoError(t, err)
}

func TestService_EditPendingKeepsCorrelationAndExpiry(t *testing.T) {
	svc, userID := newService(t)
	ctx := context.Background()

	p, err := svc.StagePending(ctx, userID, model.ActionLogExpense, expenseData(10), nil)
	require.NoError(t, err)

	amt := decimal.NewFromInt(45)
	edited, err := svc.EditPending(ctx, p.CorrelationID, model.ActionPatch{Amount: &amt})
	require.NoError(t, err)
	require.Equal(t, p.CorrelationID, edited.CorrelationID)
	require.True(t, edited.ExpiresAt.Equal(p.ExpiresAt))
	require.True(t, edited.Data.LogTransaction.Amount.Equal(amt))
	require.Equal(t, "food", edited.Data.LogTransaction.Category)
}

func TestService_ExpiredPendingReturnsErrExpired(t *testing.T) {
	svc, userID := newService(t)
	ctx := context.Background()

	p, err := svc.StagePending(ctx, userID, model.ActionLogExpense, expenseData(10), nil)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(6 * time.Minute) }
	_, err = svc.GetPending(ctx, p.CorrelationID)
	require.ErrorIs(t, err, model.ErrExpired)

	amt := decimal.NewFromInt(99)
	_, err = svc.EditPending(ctx, p.CorrelationID, model.ActionPatch{Amount: &amt})
	require.ErrorIs(t, err, model.ErrExpired)
}

func TestService_DialogueSlotLifecycle(t *testing.T) {
	svc, userID := newService(t)
	ctx := context.Background()

	_, err := svc.GetDialogue(ctx, userID)
	require.ErrorIs(t, err, model.ErrNotFound)

	_, err = svc.SetDialogue(ctx, userID, model.AwaitingAccountType, model.ActionData{
		CreateAccount: &model.CreateAccountData{Name: "Main"},
	})
	require.NoError(t, err)

	got, err := svc.GetDialogue(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, model.AwaitingAccountType, got.StateType)
	require.Equal(t, "Main", got.Draft.CreateAccount.Name)

	// setting again replaces, never stacks
	_, err = svc.SetDialogue(ctx, userID, model.AwaitingAmount, model.ActionData{
		LogTransaction: &model.LogTransactionData{Type: model.TransactionExpense, Category: "food"},
	})
	require.NoError(t, err)
	got, err = svc.GetDialogue(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, model.AwaitingAmount, got.StateType)

	require.NoError(t, svc.ClearDialogue(ctx, userID))
	_, err = svc.GetDialogue(ctx, userID)
	require.ErrorIs(t, err, model.ErrNotFound)
	// clearing an empty slot stays silent
	require.NoError(t, svc.ClearDialogue(ctx, userID))
}
