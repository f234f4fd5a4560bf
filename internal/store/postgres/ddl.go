package postgres

// Schema is applied at startup with CREATE TABLE IF NOT EXISTS so a fresh
// database is usable without a separate migration step.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id        TEXT PRIMARY KEY,
    channel_id     TEXT NOT NULL UNIQUE,
    creation_time  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
    account_id     TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL REFERENCES users(user_id),
    name           TEXT NOT NULL,
    account_type   TEXT NOT NULL,
    balance        NUMERIC NOT NULL,
    currency       TEXT NOT NULL,
    is_default     BOOLEAN NOT NULL DEFAULT FALSE,
    is_deleted     BOOLEAN NOT NULL DEFAULT FALSE,
    creation_time  TIMESTAMPTZ NOT NULL,
    update_time    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id) WHERE NOT is_deleted;

CREATE TABLE IF NOT EXISTS transactions (
    transaction_id TEXT PRIMARY KEY,
    account_id     TEXT NOT NULL REFERENCES accounts(account_id),
    user_id        TEXT NOT NULL,
    tx_type        TEXT NOT NULL,
    amount         NUMERIC NOT NULL,
    category       TEXT NOT NULL,
    description    TEXT,
    occurred_at    TIMESTAMPTZ NOT NULL,
    creation_time  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_account ON transactions(account_id, occurred_at);

CREATE TABLE IF NOT EXISTS dialogue_states (
    user_id        TEXT PRIMARY KEY,
    state_id       TEXT NOT NULL,
    state_type     TEXT NOT NULL,
    draft          JSONB NOT NULL,
    expires_at     TIMESTAMPTZ NOT NULL,
    creation_time  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_actions (
    pending_id     TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    action_type    TEXT NOT NULL,
    action_data    JSONB NOT NULL,
    correlation_id TEXT NOT NULL UNIQUE,
    message_id     TEXT,
    expires_at     TIMESTAMPTZ NOT NULL,
    creation_time  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pending_user_type ON pending_actions(user_id, action_type);
CREATE INDEX IF NOT EXISTS idx_pending_expiry ON pending_actions(expires_at);
`
