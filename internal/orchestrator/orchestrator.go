// Package orchestrator drives one interaction from utterance to outcome:
// resolve the intent, clarify, stage for confirmation, or apply directly,
// then handle the confirm/cancel/edit callbacks that follow.
package orchestrator

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/masarif/masarif-backend/internal/convo"
	"github.com/masarif/masarif-backend/internal/intent"
	"github.com/masarif/masarif-backend/internal/ledger"
	"github.com/masarif/masarif-backend/internal/model"
	"github.com/masarif/masarif-backend/internal/store"
)

// Thresholds tune when the orchestrator asks instead of acting.
type Thresholds struct {
	// Clarify is the floor below which any resolution triggers a
	// clarification prompt.
	Clarify float64
	// SkipConfirm lets a near-certain classification of a mutation apply
	// without staging. The deterministic fallback's fixed confidence sits
	// well below this, so rule matches always confirm.
	SkipConfirm float64
}

type Orchestrator struct {
	resolver intent.Resolver
	convo    *convo.Service
	ledger   *ledger.Mutator
	store    store.Store
	th       Thresholds
	log      zerolog.Logger
}

func New(r intent.Resolver, c *convo.Service, m *ledger.Mutator, s store.Store, th Thresholds, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		resolver: r,
		convo:    c,
		ledger:   m,
		store:    s,
		th:       th,
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
}

// HandleUtterance processes one inbound message for a registered user. A
// live dialogue slot is consulted first so a reply like "50" completes the
// awaited flow instead of being re-resolved from scratch.
func (o *Orchestrator) HandleUtterance(ctx context.Context, userID, text, languageHint string, messageID *string) (*model.Result, error) {
	if st, err := o.convo.GetDialogue(ctx, userID); err == nil {
		return o.continueDialogue(ctx, userID, st, text, messageID)
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	res, err := o.resolver.Resolve(ctx, intent.Request{Text: text, Language: languageHint})
	if err != nil {
		return nil, err
	}
	o.log.Debug().
		Str("userId", userID).
		Str("intent", string(res.Intent)).
		Float64("confidence", res.Confidence).
		Msg("utterance resolved")

	if res.Intent == model.IntentNone || res.Confidence < o.th.Clarify {
		return &model.Result{Kind: model.ResultClarify, PromptKey: "clarify.intent"}, nil
	}

	switch res.Intent {
	case model.IntentViewAccounts:
		return o.viewAccounts(ctx, userID)
	case model.IntentViewBalance:
		return o.viewBalance(ctx, userID, res.Entities.AccountName)
	case model.IntentCreateAccount:
		return o.proposeCreateAccount(ctx, userID, res, messageID)
	case model.IntentLogExpense, model.IntentLogIncome:
		return o.proposeTransaction(ctx, userID, res, messageID)
	case model.IntentSetDefault:
		return o.proposeSetDefault(ctx, userID, res, messageID)
	}
	return &model.Result{Kind: model.ResultClarify, PromptKey: "clarify.intent"}, nil
}

// HandleConfirm applies the staged action identified by correlationID.
func (o *Orchestrator) HandleConfirm(ctx context.Context, correlationID string) (*model.Result, error) {
	p, err := o.convo.GetPending(ctx, correlationID)
	if err != nil {
		return rejectFromErr(err), nil
	}
	summary, err := o.ledger.Apply(ctx, p.UserID, p.ActionType, p.Data)
	if err != nil {
		// a proposal the ledger refuses cannot become applicable later;
		// drop it so the user is not re-prompted for a dead action
		if derr := o.convo.DiscardPending(ctx, p.PendingID); derr != nil {
			o.log.Error().Err(derr).Str("pendingId", p.PendingID).Msg("discard after failed apply")
		}
		return rejectFromErr(err), nil
	}
	if err := o.convo.DiscardPending(ctx, p.PendingID); err != nil {
		return nil, err
	}
	if err := o.convo.ClearDialogue(ctx, p.UserID); err != nil {
		return nil, err
	}
	o.log.Info().
		Str("userId", p.UserID).
		Str("actionType", string(p.ActionType)).
		Str("correlationId", correlationID).
		Msg("pending action applied")
	return &model.Result{Kind: model.ResultApplied, Applied: summary}, nil
}

// HandleCancel discards the staged action without applying anything.
func (o *Orchestrator) HandleCancel(ctx context.Context, correlationID string) (*model.Result, error) {
	p, err := o.convo.GetPending(ctx, correlationID)
	if err != nil {
		return rejectFromErr(err), nil
	}
	if err := o.convo.DiscardPending(ctx, p.PendingID); err != nil {
		return nil, err
	}
	if err := o.convo.ClearDialogue(ctx, p.UserID); err != nil {
		return nil, err
	}
	return &model.Result{Kind: model.ResultCancelled}, nil
}

// HandleEdit merges field corrections into the staged action and re-surfaces
// it for confirmation under the same correlation id.
func (o *Orchestrator) HandleEdit(ctx context.Context, correlationID string, patch model.ActionPatch) (*model.Result, error) {
	p, err := o.convo.EditPending(ctx, correlationID, patch)
	if err != nil {
		return rejectFromErr(err), nil
	}
	if err := o.ledger.Validate(p.ActionType, p.Data); err != nil {
		return rejectFromErr(err), nil
	}
	return staged(p), nil
}

// --- dialogue continuation ---

// continueDialogue interprets the utterance against the awaited slot.
func (o *Orchestrator) continueDialogue(ctx context.Context, userID string, st *model.DialogueState, text string, messageID *string) (*model.Result, error) {
	switch st.StateType {
	case model.AwaitingAccountName:
		name := strings.TrimSpace(text)
		draft := st.Draft
		if draft.CreateAccount == nil {
			draft.CreateAccount = &model.CreateAccountData{}
		}
		draft.CreateAccount.Name = name
		if draft.CreateAccount.Type == "" {
			if _, err := o.convo.SetDialogue(ctx, userID, model.AwaitingAccountType, draft); err != nil {
				return nil, err
			}
			return clarifyAccountType(), nil
		}
		return o.stage(ctx, userID, model.ActionCreateAccount, draft, messageID)

	case model.AwaitingAccountType:
		at := intent.ExtractAccountType(text)
		if at == nil {
			return clarifyAccountType(), nil
		}
		draft := st.Draft
		if draft.CreateAccount == nil {
			draft.CreateAccount = &model.CreateAccountData{}
		}
		draft.CreateAccount.Type = *at
		if draft.CreateAccount.Name == "" {
			if _, err := o.convo.SetDialogue(ctx, userID, model.AwaitingAccountName, draft); err != nil {
				return nil, err
			}
			return &model.Result{Kind: model.ResultClarify, PromptKey: "clarify.account_name"}, nil
		}
		return o.stage(ctx, userID, model.ActionCreateAccount, draft, messageID)

	case model.AwaitingAmount:
		amt, _ := intent.ExtractAmount(text)
		if amt == nil {
			return &model.Result{Kind: model.ResultClarify, PromptKey: "clarify.amount"}, nil
		}
		draft := st.Draft
		if draft.LogTransaction == nil {
			return nil, errors.New("dialogue state awaiting_amount without transaction draft")
		}
		draft.LogTransaction.Amount = *amt
		t := model.ActionLogExpense
		if draft.LogTransaction.Type == model.TransactionIncome {
			t = model.ActionLogIncome
		}
		return o.stage(ctx, userID, t, draft, messageID)
	}
	return nil, errors.New("unknown dialogue state type " + string(st.StateType))
}

// --- proposal builders ---

func (o *Orchestrator) proposeCreateAccount(ctx context.Context, userID string, res model.Resolution, messageID *string) (*model.Result, error) {
	draft := model.ActionData{CreateAccount: &model.CreateAccountData{
		Name:     res.Entities.AccountName,
		Currency: res.Entities.Currency,
	}}
	if res.Entities.AccountType != nil {
		draft.CreateAccount.Type = *res.Entities.AccountType
	}
	if res.Entities.Amount != nil {
		draft.CreateAccount.InitialBalance = *res.Entities.Amount
	}
	if draft.CreateAccount.Name == "" {
		if _, err := o.convo.SetDialogue(ctx, userID, model.AwaitingAccountName, draft); err != nil {
			return nil, err
		}
		return &model.Result{Kind: model.ResultClarify, PromptKey: "clarify.account_name"}, nil
	}
	if draft.CreateAccount.Type == "" {
		if _, err := o.convo.SetDialogue(ctx, userID, model.AwaitingAccountType, draft); err != nil {
			return nil, err
		}
		return clarifyAccountType(), nil
	}
	if res.Confidence >= o.th.SkipConfirm {
		return o.applyDirect(ctx, userID, model.ActionCreateAccount, draft)
	}
	return o.stage(ctx, userID, model.ActionCreateAccount, draft, messageID)
}

func (o *Orchestrator) proposeTransaction(ctx context.Context, userID string, res model.Resolution, messageID *string) (*model.Result, error) {
	tt := model.TransactionExpense
	at := model.ActionLogExpense
	if res.Intent == model.IntentLogIncome {
		tt = model.TransactionIncome
		at = model.ActionLogIncome
	}
	draft := model.ActionData{LogTransaction: &model.LogTransactionData{
		Type:     tt,
		Category: res.Entities.Category,
	}}
	if res.Entities.OccurredAt != nil {
		draft.LogTransaction.OccurredAt = *res.Entities.OccurredAt
	}
	if res.Entities.Amount == nil {
		if _, err := o.convo.SetDialogue(ctx, userID, model.AwaitingAmount, draft); err != nil {
			return nil, err
		}
		return &model.Result{Kind: model.ResultClarify, PromptKey: "clarify.amount"}, nil
	}
	draft.LogTransaction.Amount = *res.Entities.Amount
	if res.Confidence >= o.th.SkipConfirm {
		return o.applyDirect(ctx, userID, at, draft)
	}
	return o.stage(ctx, userID, at, draft, messageID)
}

func (o *Orchestrator) proposeSetDefault(ctx context.Context, userID string, res model.Resolution, messageID *string) (*model.Result, error) {
	if res.Entities.AccountName == "" {
		// offer the account names so the user can pick one
		accs, err := o.store.Accounts().List(ctx, userID)
		if err != nil {
			return nil, err
		}
		options := make([]string, 0, len(accs))
		for _, a := range accs {
			options = append(options, a.Name)
		}
		return &model.Result{Kind: model.ResultClarify, PromptKey: "clarify.account", Options: options}, nil
	}
	acc, err := o.store.Accounts().GetByName(ctx, userID, res.Entities.AccountName)
	if err != nil {
		return rejectFromErr(err), nil
	}
	draft := model.ActionData{SetDefault: &model.SetDefaultData{AccountID: acc.AccountID}}
	if res.Confidence >= o.th.SkipConfirm {
		return o.applyDirect(ctx, userID, model.ActionSetDefault, draft)
	}
	return o.stage(ctx, userID, model.ActionSetDefault, draft, messageID)
}

// --- read-only intents, applied without confirmation ---

func (o *Orchestrator) viewAccounts(ctx context.Context, userID string) (*model.Result, error) {
	accs, err := o.store.Accounts().List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.Result{Kind: model.ResultApplied, Applied: &model.AppliedSummary{Accounts: accs}}, nil
}

func (o *Orchestrator) viewBalance(ctx context.Context, userID, accountName string) (*model.Result, error) {
	var (
		acc *model.Account
		err error
	)
	if accountName != "" {
		acc, err = o.store.Accounts().GetByName(ctx, userID, accountName)
	} else {
		acc, err = o.store.Accounts().GetDefault(ctx, userID)
	}
	if err != nil {
		return rejectFromErr(err), nil
	}
	b := acc.Balance.String()
	return &model.Result{Kind: model.ResultApplied, Applied: &model.AppliedSummary{Account: acc, NewBalance: &b}}, nil
}

// --- staging and applying ---

// stage validates the proposal, persists it for confirmation and empties the
// dialogue slot so the confirm callback is the only open thread.
func (o *Orchestrator) stage(ctx context.Context, userID string, t model.ActionType, data model.ActionData, messageID *string) (*model.Result, error) {
	if err := o.ledger.Validate(t, data); err != nil {
		return rejectFromErr(err), nil
	}
	p, err := o.convo.StagePending(ctx, userID, t, data, messageID)
	if err != nil {
		return nil, err
	}
	if err := o.convo.ClearDialogue(ctx, userID); err != nil {
		return nil, err
	}
	o.log.Info().
		Str("userId", userID).
		Str("actionType", string(t)).
		Str("correlationId", p.CorrelationID).
		Msg("action staged for confirmation")
	return staged(p), nil
}

func (o *Orchestrator) applyDirect(ctx context.Context, userID string, t model.ActionType, data model.ActionData) (*model.Result, error) {
	summary, err := o.ledger.Apply(ctx, userID, t, data)
	if err != nil {
		return rejectFromErr(err), nil
	}
	if err := o.convo.ClearDialogue(ctx, userID); err != nil {
		return nil, err
	}
	return &model.Result{Kind: model.ResultApplied, Applied: summary}, nil
}

// --- helpers ---

func staged(p *model.PendingAction) *model.Result {
	return &model.Result{
		Kind:          model.ResultStaged,
		CorrelationID: p.CorrelationID,
		Proposed:      &p.Data,
		ActionType:    p.ActionType,
	}
}

func clarifyAccountType() *model.Result {
	return &model.Result{
		Kind:      model.ResultClarify,
		PromptKey: "clarify.account_type",
		Options: []string{
			string(model.AccountBank),
			string(model.AccountCash),
			string(model.AccountCreditCard),
			string(model.AccountDigitalWallet),
		},
	}
}

// rejectFromErr maps store and validation errors onto stable error kinds the
// transport layer localizes. Expired is reported distinctly from not-found.
func rejectFromErr(err error) *model.Result {
	kind := model.ErrorMutationFailed
	switch {
	case errors.Is(err, model.ErrExpired):
		kind = model.ErrorExpired
	case errors.Is(err, model.ErrNotFound):
		kind = model.ErrorNotFound
	case errors.Is(err, model.ErrForbidden):
		kind = model.ErrorForbidden
	case errors.Is(err, model.ErrInvalid):
		kind = model.ErrorInvalidInput
	case errors.Is(err, model.ErrDuplicateName):
		kind = model.ErrorDuplicateName
	}
	return &model.Result{Kind: model.ResultRejected, ErrorKind: kind}
}
