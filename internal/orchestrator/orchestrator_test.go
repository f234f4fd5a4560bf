package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/masarif/masarif-backend/internal/convo"
	"github.com/masarif/masarif-backend/internal/intent"
	"github.com/masarif/masarif-backend/internal/ledger"
	"github.com/masarif/masarif-backend/internal/model"
	"github.com/masarif/masarif-backend/internal/store"
	"github.com/masarif/masarif-backend/internal/store/sqlite"
)

var testThresholds = Thresholds{Clarify: 0.5, SkipConfirm: 0.95}

func newHarness(t *testing.T, pendingTTL time.Duration) (*Orchestrator, store.Store, string) {
	t.Helper()
	log := zerolog.Nop()
	return newHarnessWith(t, intent.WithFallback(nil, intent.NewRuleResolver(), log), pendingTTL)
}

func newHarnessWith(t *testing.T, resolver intent.Resolver, pendingTTL time.Duration) (*Orchestrator, store.Store, string) {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(context.Background(), db))
	s := sqlite.NewWithDB(db)

	u, err := s.Users().Register(context.Background(), "tg:3001")
	require.NoError(t, err)

	log := zerolog.Nop()
	c := convo.NewService(s, log, pendingTTL, 10*time.Minute)
	m := ledger.NewMutator(s, log)
	return New(resolver, c, m, s, testThresholds, log), s, u.UserID
}

type fixedResolution struct{ res model.Resolution }

func (f fixedResolution) Resolve(context.Context, intent.Request) (model.Resolution, error) {
	return f.res, nil
}

func seedAccount(t *testing.T, s store.Store, userID, name string, balance int64) *model.Account {
	t.Helper()
	acc, err := s.Accounts().Create(context.Background(), &model.Account{
		UserID:   userID,
		Name:     name,
		Type:     model.AccountBank,
		Balance:  decimal.NewFromInt(balance),
		Currency: "EGP",
	})
	require.NoError(t, err)
	return acc
}

func TestOrchestrator_ExpenseStageThenConfirm(t *testing.T) {
	o, s, userID := newHarness(t, 5*time.Minute)
	ctx := context.Background()
	seedAccount(t, s, userID, "Main", 100)

	res, err := o.HandleUtterance(ctx, userID, "دفعت 50 جنيه على القهوة", "ar", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultStaged, res.Kind)
	require.Equal(t, model.ActionLogExpense, res.ActionType)
	require.NotEmpty(t, res.CorrelationID)
	require.True(t, res.Proposed.LogTransaction.Amount.Equal(decimal.NewFromInt(50)))
	require.Equal(t, "food", res.Proposed.LogTransaction.Category)

	conf, err := o.HandleConfirm(ctx, res.CorrelationID)
	require.NoError(t, err)
	require.Equal(t, model.ResultApplied, conf.Kind)
	require.Equal(t, "50", *conf.Applied.NewBalance)

	// confirming twice finds nothing
	again, err := o.HandleConfirm(ctx, res.CorrelationID)
	require.NoError(t, err)
	require.Equal(t, model.ResultRejected, again.Kind)
	require.Equal(t, model.ErrorNotFound, again.ErrorKind)
}

func TestOrchestrator_UnknownUtteranceAsksForClarification(t *testing.T) {
	o, _, userID := newHarness(t, 5*time.Minute)

	res, err := o.HandleUtterance(context.Background(), userID, "what is the weather like", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultClarify, res.Kind)
	require.Equal(t, "clarify.intent", res.PromptKey)
}

func TestOrchestrator_MissingAmountDialogueFlow(t *testing.T) {
	o, s, userID := newHarness(t, 5*time.Minute)
	ctx := context.Background()
	seedAccount(t, s, userID, "Main", 100)

	res, err := o.HandleUtterance(ctx, userID, "i paid for lunch", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultClarify, res.Kind)
	require.Equal(t, "clarify.amount", res.PromptKey)

	// the plain-number reply completes the awaited slot
	res, err = o.HandleUtterance(ctx, userID, "75", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultStaged, res.Kind)
	require.True(t, res.Proposed.LogTransaction.Amount.Equal(decimal.NewFromInt(75)))
	require.Equal(t, "food", res.Proposed.LogTransaction.Category)

	// staging emptied the dialogue slot
	_, err = s.Dialogues().Get(ctx, userID, time.Now().UTC())
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestOrchestrator_CreateAccountDialogueFlow(t *testing.T) {
	o, _, userID := newHarness(t, 5*time.Minute)
	ctx := context.Background()

	res, err := o.HandleUtterance(ctx, userID, "create a new account called Savings", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultClarify, res.Kind)
	require.Equal(t, "clarify.account_type", res.PromptKey)
	require.Contains(t, res.Options, "bank")

	res, err = o.HandleUtterance(ctx, userID, "bank", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultStaged, res.Kind)
	require.Equal(t, model.ActionCreateAccount, res.ActionType)

	conf, err := o.HandleConfirm(ctx, res.CorrelationID)
	require.NoError(t, err)
	require.Equal(t, model.ResultApplied, conf.Kind)
	require.Equal(t, "Savings", conf.Applied.Account.Name)
	require.Equal(t, model.AccountBank, conf.Applied.Account.Type)
	// first account becomes the default
	require.True(t, conf.Applied.Account.IsDefault)
}

func TestOrchestrator_ExpiredConfirmRejectsWithoutMutation(t *testing.T) {
	// a negative TTL stages actions that are already past expiry
	o, s, userID := newHarness(t, -time.Minute)
	ctx := context.Background()
	seedAccount(t, s, userID, "Main", 100)

	res, err := o.HandleUtterance(ctx, userID, "spent 50 on coffee", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultStaged, res.Kind)

	conf, err := o.HandleConfirm(ctx, res.CorrelationID)
	require.NoError(t, err)
	require.Equal(t, model.ResultRejected, conf.Kind)
	require.Equal(t, model.ErrorExpired, conf.ErrorKind)

	// no mutation happened
	acc, err := s.Accounts().GetDefault(ctx, userID)
	require.NoError(t, err)
	require.True(t, acc.Balance.Equal(decimal.NewFromInt(100)))
}

func TestOrchestrator_CancelDiscardsWithoutMutation(t *testing.T) {
	o, s, userID := newHarness(t, 5*time.Minute)
	ctx := context.Background()
	seedAccount(t, s, userID, "Main", 100)

	res, err := o.HandleUtterance(ctx, userID, "spent 30 on taxi", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultStaged, res.Kind)

	canc, err := o.HandleCancel(ctx, res.CorrelationID)
	require.NoError(t, err)
	require.Equal(t, model.ResultCancelled, canc.Kind)

	acc, err := s.Accounts().GetDefault(ctx, userID)
	require.NoError(t, err)
	require.True(t, acc.Balance.Equal(decimal.NewFromInt(100)))

	// cancel after cancel reports not found
	canc, err = o.HandleCancel(ctx, res.CorrelationID)
	require.NoError(t, err)
	require.Equal(t, model.ResultRejected, canc.Kind)
	require.Equal(t, model.ErrorNotFound, canc.ErrorKind)
}

func TestOrchestrator_EditBeforeConfirm(t *testing.T) {
	o, s, userID := newHarness(t, 5*time.Minute)
	ctx := context.Background()
	seedAccount(t, s, userID, "Main", 100)

	res, err := o.HandleUtterance(ctx, userID, "spent 50 on coffee", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultStaged, res.Kind)

	amt := decimal.NewFromInt(45)
	edited, err := o.HandleEdit(ctx, res.CorrelationID, model.ActionPatch{Amount: &amt})
	require.NoError(t, err)
	require.Equal(t, model.ResultStaged, edited.Kind)
	require.Equal(t, res.CorrelationID, edited.CorrelationID)
	require.True(t, edited.Proposed.LogTransaction.Amount.Equal(amt))

	conf, err := o.HandleConfirm(ctx, res.CorrelationID)
	require.NoError(t, err)
	require.Equal(t, model.ResultApplied, conf.Kind)
	require.Equal(t, "55", *conf.Applied.NewBalance)
}

func TestOrchestrator_EditToInvalidAmountRejects(t *testing.T) {
	o, s, userID := newHarness(t, 5*time.Minute)
	ctx := context.Background()
	seedAccount(t, s, userID, "Main", 100)

	res, err := o.HandleUtterance(ctx, userID, "spent 50 on coffee", "en", nil)
	require.NoError(t, err)

	bad := decimal.NewFromInt(-5)
	edited, err := o.HandleEdit(ctx, res.CorrelationID, model.ActionPatch{Amount: &bad})
	require.NoError(t, err)
	require.Equal(t, model.ResultRejected, edited.Kind)
	require.Equal(t, model.ErrorInvalidInput, edited.ErrorKind)
}

func TestOrchestrator_SetDefaultFlow(t *testing.T) {
	o, s, userID := newHarness(t, 5*time.Minute)
	ctx := context.Background()
	a := seedAccount(t, s, userID, "Main", 0)
	b := seedAccount(t, s, userID, "Cash", 0)

	// no account named: clarify with the user's account names
	res, err := o.HandleUtterance(ctx, userID, "make it default", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultClarify, res.Kind)
	require.ElementsMatch(t, []string{"Main", "Cash"}, res.Options)

	res, err = o.HandleUtterance(ctx, userID, "set default account named Cash", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultStaged, res.Kind)

	conf, err := o.HandleConfirm(ctx, res.CorrelationID)
	require.NoError(t, err)
	require.Equal(t, model.ResultApplied, conf.Kind)
	require.Equal(t, a.AccountID, conf.Applied.SetDefault.OldDefault.AccountID)
	require.Equal(t, b.AccountID, conf.Applied.SetDefault.NewDefault.AccountID)
}

func TestOrchestrator_DuplicateNameAtConfirmDiscardsPending(t *testing.T) {
	o, s, userID := newHarness(t, 5*time.Minute)
	ctx := context.Background()

	res, err := o.HandleUtterance(ctx, userID, "create account called Main at the bank", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultStaged, res.Kind)

	// the name gets taken between staging and confirming
	seedAccount(t, s, userID, "Main", 0)

	conf, err := o.HandleConfirm(ctx, res.CorrelationID)
	require.NoError(t, err)
	require.Equal(t, model.ResultRejected, conf.Kind)
	require.Equal(t, model.ErrorDuplicateName, conf.ErrorKind)

	// the dead proposal is gone, not stuck awaiting another confirm
	again, err := o.HandleConfirm(ctx, res.CorrelationID)
	require.NoError(t, err)
	require.Equal(t, model.ErrorNotFound, again.ErrorKind)
}

func TestOrchestrator_ViewIntentsApplyDirectly(t *testing.T) {
	o, s, userID := newHarness(t, 5*time.Minute)
	ctx := context.Background()
	seedAccount(t, s, userID, "Main", 250)

	res, err := o.HandleUtterance(ctx, userID, "what is my balance", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultApplied, res.Kind)
	require.Equal(t, "250", *res.Applied.NewBalance)

	res, err = o.HandleUtterance(ctx, userID, "show accounts", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultApplied, res.Kind)
	require.Len(t, res.Applied.Accounts, 1)

	// nothing got staged along the way
	pend, err := s.Pendings().ListByUserAndType(ctx, userID, model.ActionLogExpense, time.Now().UTC())
	require.NoError(t, err)
	require.Empty(t, pend)
}

func TestOrchestrator_NearCertainResolutionSkipsConfirmation(t *testing.T) {
	amt := decimal.NewFromInt(20)
	resolver := fixedResolution{res: model.Resolution{
		Intent:     model.IntentLogExpense,
		Entities:   model.Entities{Amount: &amt, Category: "food"},
		Confidence: 0.99,
	}}
	o, s, userID := newHarnessWith(t, resolver, 5*time.Minute)
	ctx := context.Background()
	seedAccount(t, s, userID, "Main", 100)

	res, err := o.HandleUtterance(ctx, userID, "spent 20 on lunch", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultApplied, res.Kind)
	require.Equal(t, "80", *res.Applied.NewBalance)

	pend, err := s.Pendings().ListByUserAndType(ctx, userID, model.ActionLogExpense, time.Now().UTC())
	require.NoError(t, err)
	require.Empty(t, pend)
}

func TestOrchestrator_ViewBalanceWithoutAccountsRejects(t *testing.T) {
	o, _, userID := newHarness(t, 5*time.Minute)

	res, err := o.HandleUtterance(context.Background(), userID, "what is my balance", "en", nil)
	require.NoError(t, err)
	require.Equal(t, model.ResultRejected, res.Kind)
	require.Equal(t, model.ErrorNotFound, res.ErrorKind)
}
