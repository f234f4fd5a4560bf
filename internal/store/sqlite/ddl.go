package sqlite

// Schema mirrors the Postgres DDL with SQLite types. TIMESTAMP columns let
// the driver round-trip time.Time values.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id        TEXT PRIMARY KEY,
    channel_id     TEXT NOT NULL UNIQUE,
    creation_time  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
    account_id     TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL REFERENCES users(user_id),
    name           TEXT NOT NULL,
    account_type   TEXT NOT NULL,
    balance        TEXT NOT NULL,
    currency       TEXT NOT NULL,
    is_default     INTEGER NOT NULL DEFAULT 0,
    is_deleted     INTEGER NOT NULL DEFAULT 0,
    creation_time  TIMESTAMP NOT NULL,
    update_time    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id);

CREATE TABLE IF NOT EXISTS transactions (
    transaction_id TEXT PRIMARY KEY,
    account_id     TEXT NOT NULL REFERENCES accounts(account_id),
    user_id        TEXT NOT NULL,
    tx_type        TEXT NOT NULL,
    amount         TEXT NOT NULL,
    category       TEXT NOT NULL,
    description    TEXT,
    occurred_at    TIMESTAMP NOT NULL,
    creation_time  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, occurred_at);

CREATE TABLE IF NOT EXISTS dialogue_states (
    user_id        TEXT PRIMARY KEY,
    state_id       TEXT NOT NULL,
    state_type     TEXT NOT NULL,
    draft          TEXT NOT NULL,
    expires_at     TIMESTAMP NOT NULL,
    creation_time  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_actions (
    pending_id     TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    action_type    TEXT NOT NULL,
    action_data    TEXT NOT NULL,
    correlation_id TEXT NOT NULL UNIQUE,
    message_id     TEXT,
    expires_at     TIMESTAMP NOT NULL,
    creation_time  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_user_type ON pending_actions(user_id, action_type);
`
