package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/masarif/masarif-backend/internal/model"
	"github.com/masarif/masarif-backend/internal/store"
)

// EnsureSchema creates the tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}

// NewWithDB constructs a SQLite store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &liteStore{db: db} }

type liteStore struct{ db *sql.DB }

func (s *liteStore) Users() store.Users               { return &users{db: s.db} }
func (s *liteStore) Accounts() store.Accounts         { return &accounts{db: s.db} }
func (s *liteStore) Transactions() store.Transactions { return &transactions{db: s.db} }
func (s *liteStore) Dialogues() store.Dialogues       { return &dialogues{db: s.db} }
func (s *liteStore) Pendings() store.Pendings         { return &pendings{db: s.db} }

// HealthPing implements health.HealthPinger for the SQLite-backed store.
func (s *liteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// decimal values are stored as TEXT; scan through a string to avoid relying
// on driver-level numeric affinity.
func scanDecimal(s string) (decimal.Decimal, error) { return decimal.NewFromString(s) }

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Register(ctx context.Context, channelID string) (*model.User, error) {
	if channelID == "" {
		return nil, fmt.Errorf("%w: empty channel id", model.ErrInvalid)
	}
	now := time.Now().UTC()
	id := uuid.New().String()
	if _, err := u.db.ExecContext(ctx, `
        INSERT INTO users (user_id, channel_id, creation_time)
        VALUES (?,?,?)
        ON CONFLICT (channel_id) DO NOTHING
    `, id, channelID, now); err != nil {
		return nil, err
	}
	var out model.User
	row := u.db.QueryRowContext(ctx, `
        SELECT user_id, channel_id, creation_time FROM users WHERE channel_id=?
    `, channelID)
	if err := row.Scan(&out.UserID, &out.ChannelID, &out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	var out model.User
	row := u.db.QueryRowContext(ctx, `
        SELECT user_id, channel_id, creation_time FROM users WHERE user_id=?
    `, userID)
	if err := row.Scan(&out.UserID, &out.ChannelID, &out.CreationTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// --- Accounts ---

type accounts struct{ db *sql.DB }

const accountCols = `account_id, user_id, name, account_type, balance, currency,
       is_default, is_deleted, creation_time, update_time`

type rowScanner interface{ Scan(dest ...any) error }

func scanAccount(row rowScanner) (*model.Account, error) {
	var out model.Account
	var balance string
	if err := row.Scan(&out.AccountID, &out.UserID, &out.Name, &out.Type, &balance,
		&out.Currency, &out.IsDefault, &out.IsDeleted, &out.CreationTime, &out.UpdateTime); err != nil {
		return nil, err
	}
	b, err := scanDecimal(balance)
	if err != nil {
		return nil, err
	}
	out.Balance = b
	return &out, nil
}

func (a *accounts) Create(ctx context.Context, in *model.Account) (*model.Account, error) {
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var dup int
	err = tx.QueryRowContext(ctx, `
        SELECT 1 FROM accounts WHERE user_id=? AND name=? AND is_deleted=0
    `, in.UserID, in.Name).Scan(&dup)
	if err == nil {
		return nil, model.ErrDuplicateName
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var existing int
	if err := tx.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM accounts WHERE user_id=? AND is_deleted=0
    `, in.UserID).Scan(&existing); err != nil {
		return nil, err
	}

	out := *in
	out.AccountID = uuid.New().String()
	out.IsDefault = existing == 0
	out.IsDeleted = false
	now := time.Now().UTC()
	out.CreationTime = now
	out.UpdateTime = now

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO accounts (account_id, user_id, name, account_type, balance, currency,
                              is_default, is_deleted, creation_time, update_time)
        VALUES (?,?,?,?,?,?,?,0,?,?)
    `, out.AccountID, out.UserID, out.Name, out.Type, out.Balance.String(), out.Currency,
		out.IsDefault, now, now); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
	}
	return &out, nil
}

func (a *accounts) GetByID(ctx context.Context, userID, accountID string) (*model.Account, error) {
	out, err := scanAccount(a.db.QueryRowContext(ctx, `
        SELECT `+accountCols+` FROM accounts WHERE account_id=?
    `, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	if out.UserID != userID {
		return nil, model.ErrForbidden
	}
	if out.IsDeleted {
		return nil, model.ErrNotFound
	}
	return out, nil
}

func (a *accounts) GetByName(ctx context.Context, userID, name string) (*model.Account, error) {
	out, err := scanAccount(a.db.QueryRowContext(ctx, `
        SELECT `+accountCols+` FROM accounts WHERE user_id=? AND name=? AND is_deleted=0
    `, userID, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

func (a *accounts) GetDefault(ctx context.Context, userID string) (*model.Account, error) {
	out, err := scanAccount(a.db.QueryRowContext(ctx, `
        SELECT `+accountCols+` FROM accounts WHERE user_id=? AND is_default=1 AND is_deleted=0
    `, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return out, nil
}

func (a *accounts) List(ctx context.Context, userID string) ([]*model.Account, error) {
	rows, err := a.db.QueryContext(ctx, `
        SELECT `+accountCols+` FROM accounts
        WHERE user_id=? AND is_deleted=0 ORDER BY creation_time ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.Account
	for rows.Next() {
		m, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (a *accounts) Update(ctx context.Context, userID, accountID string, name *string, accType *model.AccountType) (*model.Account, error) {
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := scanAccount(tx.QueryRowContext(ctx, `
        SELECT `+accountCols+` FROM accounts WHERE account_id=?
    `, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	if cur.UserID != userID {
		return nil, model.ErrForbidden
	}
	if cur.IsDeleted {
		return nil, model.ErrNotFound
	}
	if name != nil && *name != cur.Name {
		var dup int
		err = tx.QueryRowContext(ctx, `
            SELECT 1 FROM accounts WHERE user_id=? AND name=? AND is_deleted=0 AND account_id<>?
        `, userID, *name, accountID).Scan(&dup)
		if err == nil {
			return nil, model.ErrDuplicateName
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		cur.Name = *name
	}
	if accType != nil {
		cur.Type = *accType
	}
	cur.UpdateTime = time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
        UPDATE accounts SET name=?, account_type=?, update_time=? WHERE account_id=?
    `, cur.Name, cur.Type, cur.UpdateTime, accountID); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
	}
	return cur, nil
}

func (a *accounts) SetDefault(ctx context.Context, userID, accountID string) (*model.SetDefaultResult, error) {
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	target, err := scanAccount(tx.QueryRowContext(ctx, `
        SELECT `+accountCols+` FROM accounts WHERE account_id=?
    `, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	if target.UserID != userID {
		return nil, model.ErrForbidden
	}
	if target.IsDeleted {
		return nil, model.ErrNotFound
	}
	if target.IsDefault {
		return &model.SetDefaultResult{NewDefault: target, AlreadyDefault: true}, nil
	}

	var old *model.Account
	prev, err := scanAccount(tx.QueryRowContext(ctx, `
        SELECT `+accountCols+` FROM accounts WHERE user_id=? AND is_default=1 AND is_deleted=0
    `, userID))
	switch {
	case err == nil:
		old = prev
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, err
	}

	now := time.Now().UTC()
	if old != nil {
		if _, err := tx.ExecContext(ctx, `
            UPDATE accounts SET is_default=0, update_time=? WHERE account_id=?
        `, now, old.AccountID); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
		}
		old.IsDefault = false
		old.UpdateTime = now
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE accounts SET is_default=1, update_time=? WHERE account_id=?
    `, now, accountID); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
	}
	target.IsDefault = true
	target.UpdateTime = now
	return &model.SetDefaultResult{OldDefault: old, NewDefault: target}, nil
}

func (a *accounts) SoftDelete(ctx context.Context, userID, accountID string) error {
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := scanAccount(tx.QueryRowContext(ctx, `
        SELECT `+accountCols+` FROM accounts WHERE account_id=?
    `, accountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound
		}
		return err
	}
	if cur.UserID != userID {
		return model.ErrForbidden
	}
	if cur.IsDeleted {
		return model.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE accounts SET is_deleted=1, is_default=0, update_time=? WHERE account_id=?
    `, time.Now().UTC(), accountID); err != nil {
		return fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
	}
	return tx.Commit()
}

// --- Transactions ---

type transactions struct{ db *sql.DB }

func (t *transactions) Post(ctx context.Context, in *model.Transaction) (*model.Transaction, decimal.Decimal, error) {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer func() { _ = tx.Rollback() }()

	acc, err := scanAccount(tx.QueryRowContext(ctx, `
        SELECT `+accountCols+` FROM accounts WHERE account_id=?
    `, in.AccountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, decimal.Zero, model.ErrNotFound
		}
		return nil, decimal.Zero, err
	}
	if acc.UserID != in.UserID {
		return nil, decimal.Zero, model.ErrForbidden
	}
	if acc.IsDeleted {
		return nil, decimal.Zero, model.ErrNotFound
	}

	// Expense subtracts, income adds. The sign must never be inverted.
	var newBalance decimal.Decimal
	switch in.Type {
	case model.TransactionExpense:
		newBalance = acc.Balance.Sub(in.Amount)
	case model.TransactionIncome:
		newBalance = acc.Balance.Add(in.Amount)
	default:
		return nil, decimal.Zero, fmt.Errorf("%w: transaction type %q", model.ErrInvalid, in.Type)
	}

	out := *in
	out.TransactionID = uuid.New().String()
	now := time.Now().UTC()
	out.CreationTime = now
	if out.OccurredAt.IsZero() {
		out.OccurredAt = now
	}

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO transactions (transaction_id, account_id, user_id, tx_type, amount,
                                  category, description, occurred_at, creation_time)
        VALUES (?,?,?,?,?,?,?,?,?)
    `, out.TransactionID, out.AccountID, out.UserID, out.Type, out.Amount.String(),
		out.Category, out.Description, out.OccurredAt, out.CreationTime); err != nil {
		return nil, decimal.Zero, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE accounts SET balance=?, update_time=? WHERE account_id=?
    `, newBalance.String(), now, out.AccountID); err != nil {
		return nil, decimal.Zero, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, decimal.Zero, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
	}
	return &out, newBalance, nil
}

func (t *transactions) List(ctx context.Context, userID, accountID string, limit int) ([]*model.Transaction, error) {
	query := `
        SELECT transaction_id, account_id, user_id, tx_type, amount, category,
               description, occurred_at, creation_time
        FROM transactions WHERE user_id=? AND account_id=?
        ORDER BY occurred_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := t.db.QueryContext(ctx, query, userID, accountID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.Transaction
	for rows.Next() {
		var m model.Transaction
		var amount string
		if err := rows.Scan(&m.TransactionID, &m.AccountID, &m.UserID, &m.Type, &amount,
			&m.Category, &m.Description, &m.OccurredAt, &m.CreationTime); err != nil {
			return nil, err
		}
		d, err := scanDecimal(amount)
		if err != nil {
			return nil, err
		}
		m.Amount = d
		res = append(res, &m)
	}
	return res, rows.Err()
}

// --- Dialogues ---

type dialogues struct{ db *sql.DB }

func (d *dialogues) Set(ctx context.Context, s *model.DialogueState) (*model.DialogueState, error) {
	out := *s
	out.StateID = uuid.New().String()
	out.CreationTime = time.Now().UTC()
	draft, err := json.Marshal(out.Draft)
	if err != nil {
		return nil, err
	}
	if _, err := d.db.ExecContext(ctx, `
        INSERT INTO dialogue_states (user_id, state_id, state_type, draft, expires_at, creation_time)
        VALUES (?,?,?,?,?,?)
        ON CONFLICT (user_id) DO UPDATE SET
            state_id=excluded.state_id, state_type=excluded.state_type,
            draft=excluded.draft, expires_at=excluded.expires_at,
            creation_time=excluded.creation_time
    `, out.UserID, out.StateID, out.StateType, draft, out.ExpiresAt, out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *dialogues) Get(ctx context.Context, userID string, now time.Time) (*model.DialogueState, error) {
	var out model.DialogueState
	var draft []byte
	row := d.db.QueryRowContext(ctx, `
        SELECT user_id, state_id, state_type, draft, expires_at, creation_time
        FROM dialogue_states WHERE user_id=?
    `, userID)
	if err := row.Scan(&out.UserID, &out.StateID, &out.StateType, &draft, &out.ExpiresAt, &out.CreationTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	if out.Expired(now) {
		return nil, model.ErrNotFound
	}
	if err := json.Unmarshal(draft, &out.Draft); err != nil {
		return nil, err
	}
	return &out, nil
}

func (d *dialogues) Clear(ctx context.Context, userID string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM dialogue_states WHERE user_id=?`, userID)
	return err
}

func (d *dialogues) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM dialogue_states WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Pendings ---

type pendings struct{ db *sql.DB }

const pendingCols = `pending_id, user_id, action_type, action_data, correlation_id,
       message_id, expires_at, creation_time`

func scanPending(row rowScanner) (*model.PendingAction, error) {
	var out model.PendingAction
	var data []byte
	if err := row.Scan(&out.PendingID, &out.UserID, &out.ActionType, &data,
		&out.CorrelationID, &out.MessageID, &out.ExpiresAt, &out.CreationTime); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &out.Data); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *pendings) Create(ctx context.Context, in *model.PendingAction) (*model.PendingAction, error) {
	out := *in
	out.PendingID = uuid.New().String()
	if out.CorrelationID == "" {
		out.CorrelationID = uuid.New().String()
	}
	out.CreationTime = time.Now().UTC()
	data, err := json.Marshal(out.Data)
	if err != nil {
		return nil, err
	}
	if _, err := p.db.ExecContext(ctx, `
        INSERT INTO pending_actions (pending_id, user_id, action_type, action_data,
                                     correlation_id, message_id, expires_at, creation_time)
        VALUES (?,?,?,?,?,?,?,?)
    `, out.PendingID, out.UserID, out.ActionType, data, out.CorrelationID,
		out.MessageID, out.ExpiresAt, out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *pendings) GetByCorrelationID(ctx context.Context, correlationID string, now time.Time) (*model.PendingAction, error) {
	row := p.db.QueryRowContext(ctx, `
        SELECT `+pendingCols+` FROM pending_actions WHERE correlation_id=?
    `, correlationID)
	out, err := scanPending(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	if out.Expired(now) {
		return nil, model.ErrExpired
	}
	return out, nil
}

func (p *pendings) ListByUserAndType(ctx context.Context, userID string, t model.ActionType, now time.Time) ([]*model.PendingAction, error) {
	rows, err := p.db.QueryContext(ctx, `
        SELECT `+pendingCols+` FROM pending_actions
        WHERE user_id=? AND action_type=? AND expires_at >= ?
        ORDER BY creation_time ASC
    `, userID, t, now)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.PendingAction
	for rows.Next() {
		m, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (p *pendings) Update(ctx context.Context, pendingID string, patch model.ActionPatch, now time.Time) (*model.PendingAction, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
        SELECT `+pendingCols+` FROM pending_actions WHERE pending_id=?
    `, pendingID)
	out, err := scanPending(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	if out.Expired(now) {
		return nil, model.ErrExpired
	}
	out.Data.Merge(patch)
	data, err := json.Marshal(out.Data)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE pending_actions SET action_data=? WHERE pending_id=?
    `, data, pendingID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *pendings) Delete(ctx context.Context, pendingID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE pending_id=?`, pendingID)
	return err
}

func (p *pendings) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE expires_at < ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
