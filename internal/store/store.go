package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/masarif/masarif-backend/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
// Every multi-record mutation (default switch, transaction posting) is a
// single atomic unit inside the driver; partial application never escapes.
type Store interface {
	Users() Users
	Accounts() Accounts
	Transactions() Transactions
	Dialogues() Dialogues
	Pendings() Pendings
}

type Users interface {
	// Register is idempotent: calling it twice with the same channel id
	// returns the same user both times and creates exactly one record.
	Register(ctx context.Context, channelID string) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
}

type Accounts interface {
	// Create rejects a case-sensitive duplicate name among the user's
	// non-deleted accounts with model.ErrDuplicateName. The user's first
	// non-deleted account becomes default unconditionally.
	Create(ctx context.Context, a *model.Account) (*model.Account, error)
	// GetByID returns model.ErrForbidden when the account belongs to another
	// user and model.ErrNotFound when it is absent or soft-deleted.
	GetByID(ctx context.Context, userID, accountID string) (*model.Account, error)
	GetByName(ctx context.Context, userID, name string) (*model.Account, error)
	GetDefault(ctx context.Context, userID string) (*model.Account, error)
	List(ctx context.Context, userID string) ([]*model.Account, error)
	// Update changes name and/or type only; it never touches balance,
	// currency, default or deleted flags. UpdateTime is always bumped.
	Update(ctx context.Context, userID, accountID string, name *string, accType *model.AccountType) (*model.Account, error)
	// SetDefault unsets the previous default and sets the new one in one
	// atomic unit, or reports AlreadyDefault without writing.
	SetDefault(ctx context.Context, userID, accountID string) (*model.SetDefaultResult, error)
	SoftDelete(ctx context.Context, userID, accountID string) error
}

type Transactions interface {
	// Post inserts the transaction and applies the signed balance delta to
	// the owning account in one atomic unit, returning the new balance.
	Post(ctx context.Context, t *model.Transaction) (*model.Transaction, decimal.Decimal, error)
	List(ctx context.Context, userID, accountID string, limit int) ([]*model.Transaction, error)
}

type Dialogues interface {
	// Set replaces any existing state for the user (single active slot).
	Set(ctx context.Context, s *model.DialogueState) (*model.DialogueState, error)
	// Get returns model.ErrNotFound when no state exists or the state is
	// logically expired, even if it has not been physically removed.
	Get(ctx context.Context, userID string, now time.Time) (*model.DialogueState, error)
	// Clear is an idempotent no-op when no state exists.
	Clear(ctx context.Context, userID string) error
	// SweepExpired reclaims expired dialogue slots; readers already treat
	// expired rows as absent.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

type Pendings interface {
	Create(ctx context.Context, p *model.PendingAction) (*model.PendingAction, error)
	// GetByCorrelationID distinguishes model.ErrExpired from model.ErrNotFound.
	GetByCorrelationID(ctx context.Context, correlationID string, now time.Time) (*model.PendingAction, error)
	ListByUserAndType(ctx context.Context, userID string, t model.ActionType, now time.Time) ([]*model.PendingAction, error)
	// Update merges the patch into the action's variant; model.ErrNotFound
	// when absent, model.ErrExpired when past TTL.
	Update(ctx context.Context, pendingID string, patch model.ActionPatch, now time.Time) (*model.PendingAction, error)
	// Delete is idempotent.
	Delete(ctx context.Context, pendingID string) error
	// SweepExpired bulk-deletes actions whose expiry has passed. It is space
	// reclamation only; readers already treat expired rows as absent.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}
