package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/masarif/masarif-backend/internal/model"
	"github.com/masarif/masarif-backend/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}

// NewWithDB constructs a native Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users               { return &users{db: s.db} }
func (s *pgStore) Accounts() store.Accounts         { return &accounts{db: s.db} }
func (s *pgStore) Transactions() store.Transactions { return &transactions{db: s.db} }
func (s *pgStore) Dialogues() store.Dialogues       { return &dialogues{db: s.db} }
func (s *pgStore) Pendings() store.Pendings         { return &pendings{db: s.db} }

// HealthPing implements health.HealthPinger for the Postgres-backed store.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Register(ctx context.Context, channelID string) (*model.User, error) {
	if channelID == "" {
		return nil, fmt.Errorf("%w: empty channel id", model.ErrInvalid)
	}
	now := time.Now().UTC()
	id := uuid.New().String()
	// ON CONFLICT DO NOTHING keeps registration idempotent under races; the
	// follow-up SELECT returns whichever row won.
	if _, err := u.db.ExecContext(ctx, `
        INSERT INTO users (user_id, channel_id, creation_time)
        VALUES ($1,$2,$3)
        ON CONFLICT (channel_id) DO NOTHING
    `, id, channelID, now); err != nil {
		return nil, err
	}
	var out model.User
	row := u.db.QueryRowContext(ctx, `
        SELECT user_id, channel_id, creation_time FROM users WHERE channel_id=$1
    `, channelID)
	if err := row.Scan(&out.UserID, &out.ChannelID, &out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID string) (*model.User, error) {
	var out model.User
	row := u.db.QueryRowContext(ctx, `
        SELECT user_id, channel_id, creation_time FROM users WHERE user_id=$1
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

func (a *accounts) Create(ctx context.Context, in *model.Account) (*model.Account, error) {
	tx, err := a.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var dup int
	err = tx.QueryRowContext(ctx, `
        SELECT 1 FROM accounts WHERE user_id=$1 AND name=$2 AND NOT is_deleted
    `, in.UserID, in.Name).Scan(&dup)
	if err == nil {
		return nil, model.ErrDuplicateName
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var existing int
	if err := tx.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM accounts WHERE user_id=$1 AND NOT is_deleted
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
        VALUES ($1,$2,$3,$4,$5,$6,$7,FALSE,$8,$8)
    `, out.AccountID, out.UserID, out.Name, out.Type, out.Balance, out.Currency, out.IsDefault, now); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
	}
	return &out, nil
}

func scanAccount(row *sql.Row) (*model.Account, error) {
	var out model.Account
	if err := row.Scan(&out.AccountID, &out.UserID, &out.Name, &out.Type, &out.Balance,
		&out.Currency, &out.IsDefault, &out.IsDeleted, &out.CreationTime, &out.UpdateTime); err != nil {
		return nil, err
	}
	return &out, nil
}

const accountCols = `account_id, user_id, name, account_type, balance, currency,
       is_default, is_deleted, creation_time, update_time`

func (a *accounts) GetByID(ctx context.Context, userID, accountID string) (*model.Account, error) {
	out, err := scanAccount(a.db.QueryRowContext(ctx, `
        SELECT `+accountCols+` FROM accounts WHERE account_id=$1
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
        SELECT `+accountCols+` FROM accounts WHERE user_id=$1 AND name=$2 AND NOT is_deleted
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
        SELECT `+accountCols+` FROM accounts WHERE user_id=$1 AND is_default AND NOT is_deleted
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
        WHERE user_id=$1 AND NOT is_deleted ORDER BY creation_time ASC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.Account
	for rows.Next() {
		var m model.Account
		if err := rows.Scan(&m.AccountID, &m.UserID, &m.Name, &m.Type, &m.Balance,
			&m.Currency, &m.IsDefault, &m.IsDeleted, &m.CreationTime, &m.UpdateTime); err != nil {
			return nil, err
		}
		res = append(res, &m)
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
        SELECT `+accountCols+` FROM accounts WHERE account_id=$1 FOR UPDATE
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
            SELECT 1 FROM accounts WHERE user_id=$1 AND name=$2 AND NOT is_deleted AND account_id<>$3
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
        UPDATE accounts SET name=$1, account_type=$2, update_time=$3 WHERE account_id=$4
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
        SELECT `+accountCols+` FROM accounts WHERE account_id=$1 FOR UPDATE
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
        SELECT `+accountCols+` FROM accounts
        WHERE user_id=$1 AND is_default AND NOT is_deleted FOR UPDATE
    `, userID))
	switch {
	case err == nil:
		old = prev
	case errors.Is(err, sql.ErrNoRows):
		// no current default; only the target is flipped
	default:
		return nil, err
	}

	now := time.Now().UTC()
	if old != nil {
		if _, err := tx.ExecContext(ctx, `
            UPDATE accounts SET is_default=FALSE, update_time=$1 WHERE account_id=$2
        `, now, old.AccountID); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
		}
		old.IsDefault = false
		old.UpdateTime = now
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE accounts SET is_default=TRUE, update_time=$1 WHERE account_id=$2
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
        SELECT `+accountCols+` FROM accounts WHERE account_id=$1 FOR UPDATE
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
        UPDATE accounts SET is_deleted=TRUE, is_default=FALSE, update_time=$1 WHERE account_id=$2
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
        SELECT `+accountCols+` FROM accounts WHERE account_id=$1 FOR UPDATE
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
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `, out.TransactionID, out.AccountID, out.UserID, out.Type, out.Amount,
		out.Category, out.Description, out.OccurredAt, out.CreationTime); err != nil {
		return nil, decimal.Zero, fmt.Errorf("%w: %v", model.ErrMutationFailed, err)
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE accounts SET balance=$1, update_time=$2 WHERE account_id=$3
    `, newBalance, now, out.AccountID); err != nil {
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
        FROM transactions WHERE user_id=$1 AND account_id=$2
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
		if err := rows.Scan(&m.TransactionID, &m.AccountID, &m.UserID, &m.Type, &m.Amount,
			&m.Category, &m.Description, &m.OccurredAt, &m.CreationTime); err != nil {
			return nil, err
		}
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
	// user_id PK + upsert keeps the slot single; the newest state wins.
	if _, err := d.db.ExecContext(ctx, `
        INSERT INTO dialogue_states (user_id, state_id, state_type, draft, expires_at, creation_time)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (user_id) DO UPDATE SET
            state_id=EXCLUDED.state_id, state_type=EXCLUDED.state_type,
            draft=EXCLUDED.draft, expires_at=EXCLUDED.expires_at,
            creation_time=EXCLUDED.creation_time
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
        FROM dialogue_states WHERE user_id=$1
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
	_, err := d.db.ExecContext(ctx, `DELETE FROM dialogue_states WHERE user_id=$1`, userID)
	return err
}

func (d *dialogues) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM dialogue_states WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Pendings ---

type pendings struct{ db *sql.DB }

const pendingCols = `pending_id, user_id, action_type, action_data, correlation_id,
       message_id, expires_at, creation_time`

func scanPending(scan func(dest ...any) error) (*model.PendingAction, error) {
	var out model.PendingAction
	var data []byte
	if err := scan(&out.PendingID, &out.UserID, &out.ActionType, &data,
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
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, out.PendingID, out.UserID, out.ActionType, data, out.CorrelationID,
		out.MessageID, out.ExpiresAt, out.CreationTime); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *pendings) GetByCorrelationID(ctx context.Context, correlationID string, now time.Time) (*model.PendingAction, error) {
	row := p.db.QueryRowContext(ctx, `
        SELECT `+pendingCols+` FROM pending_actions WHERE correlation_id=$1
    `, correlationID)
	out, err := scanPending(row.Scan)
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
        WHERE user_id=$1 AND action_type=$2 AND expires_at >= $3
        ORDER BY creation_time ASC
    `, userID, t, now)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.PendingAction
	for rows.Next() {
		m, err := scanPending(rows.Scan)
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
        SELECT `+pendingCols+` FROM pending_actions WHERE pending_id=$1 FOR UPDATE
    `, pendingID)
	out, err := scanPending(row.Scan)
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
        UPDATE pending_actions SET action_data=$1 WHERE pending_id=$2
    `, data, pendingID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *pendings) Delete(ctx context.Context, pendingID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE pending_id=$1`, pendingID)
	return err
}

func (p *pendings) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
