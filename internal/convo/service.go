// Package convo manages the conversational working set: the single dialogue
// slot per user and the staged actions awaiting confirmation.
package convo

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/masarif/masarif-backend/internal/model"
	"github.com/masarif/masarif-backend/internal/store"
)

// Service applies TTLs and supersede semantics on top of the store. TTLs are
// fixed at construction; callers never pass expiry times.
type Service struct {
	store       store.Store
	log         zerolog.Logger
	pendingTTL  time.Duration
	dialogueTTL time.Duration
	now         func() time.Time
}

func NewService(s store.Store, log zerolog.Logger, pendingTTL, dialogueTTL time.Duration) *Service {
	return &Service{
		store:       s,
		log:         log.With().Str("component", "convo").Logger(),
		pendingTTL:  pendingTTL,
		dialogueTTL: dialogueTTL,
		now:         time.Now,
	}
}

// StagePending stages one action for confirmation. Any live pending of the
// same action type for the user is superseded first, so a user who proposes
// the same kind of thing twice only ever confirms the latest proposal.
func (s *Service) StagePending(ctx context.Context, userID string, t model.ActionType, data model.ActionData, messageID *string) (*model.PendingAction, error) {
	now := s.now().UTC()
	stale, err := s.store.Pendings().ListByUserAndType(ctx, userID, t, now)
	if err != nil {
		return nil, err
	}
	for _, p := range stale {
		if err := s.store.Pendings().Delete(ctx, p.PendingID); err != nil {
			return nil, err
		}
		s.log.Debug().Str("pendingId", p.PendingID).Msg("superseded pending action")
	}
	return s.store.Pendings().Create(ctx, &model.PendingAction{
		UserID:     userID,
		ActionType: t,
		Data:       data,
		MessageID:  messageID,
		ExpiresAt:  now.Add(s.pendingTTL),
	})
}

// GetPending loads a staged action by its correlation id. Expired actions
// return model.ErrExpired, absent ones model.ErrNotFound.
func (s *Service) GetPending(ctx context.Context, correlationID string) (*model.PendingAction, error) {
	return s.store.Pendings().GetByCorrelationID(ctx, correlationID, s.now().UTC())
}

// EditPending merges field corrections into the staged action identified by
// correlationID, keeping its correlation id and expiry untouched.
func (s *Service) EditPending(ctx context.Context, correlationID string, patch model.ActionPatch) (*model.PendingAction, error) {
	now := s.now().UTC()
	p, err := s.store.Pendings().GetByCorrelationID(ctx, correlationID, now)
	if err != nil {
		return nil, err
	}
	return s.store.Pendings().Update(ctx, p.PendingID, patch, now)
}

// DiscardPending removes a staged action. Idempotent.
func (s *Service) DiscardPending(ctx context.Context, pendingID string) error {
	return s.store.Pendings().Delete(ctx, pendingID)
}

// SetDialogue replaces the user's dialogue slot with a new awaited-slot state.
func (s *Service) SetDialogue(ctx context.Context, userID string, t model.DialogueStateType, draft model.ActionData) (*model.DialogueState, error) {
	now := s.now().UTC()
	return s.store.Dialogues().Set(ctx, &model.DialogueState{
		UserID:    userID,
		StateType: t,
		Draft:     draft,
		ExpiresAt: now.Add(s.dialogueTTL),
	})
}

// GetDialogue returns the live dialogue state, or model.ErrNotFound when the
// slot is empty or logically expired.
func (s *Service) GetDialogue(ctx context.Context, userID string) (*model.DialogueState, error) {
	return s.store.Dialogues().Get(ctx, userID, s.now().UTC())
}

// ClearDialogue empties the user's dialogue slot. Idempotent.
func (s *Service) ClearDialogue(ctx context.Context, userID string) error {
	return s.store.Dialogues().Clear(ctx, userID)
}
