package database

// Schema is the ledger database schema, applied by Migrate on every startup.
//
// Date columns (next_due_date, start_date, end_date, dates on transactions)
// are stored as RFC3339 UTC strings. Boolean flags are stored as INTEGER 0/1.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id           TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES users(id),
    name       TEXT NOT NULL,
    currency   TEXT NOT NULL DEFAULT 'EUR',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS categories (
    id      TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    name    TEXT NOT NULL,
    kind    TEXT NOT NULL CHECK (kind IN ('income', 'expense'))
);

CREATE TABLE IF NOT EXISTS recurring_rules (
    id                            TEXT PRIMARY KEY,
    user_id                       TEXT NOT NULL REFERENCES users(id),
    account_id                    TEXT NOT NULL REFERENCES accounts(id),
    category_id                   TEXT NOT NULL REFERENCES categories(id),
    amount                        REAL NOT NULL,
    type                          TEXT NOT NULL CHECK (type IN ('income', 'expense')),
    description                   TEXT NOT NULL DEFAULT '',
    notes                         TEXT,
    frequency_type                TEXT NOT NULL,
    frequency_interval            INTEGER NOT NULL DEFAULT 1,
    day_of_month                  INTEGER,
    day_of_week                   INTEGER,
    start_date                    TEXT NOT NULL,
    end_date                      TEXT,
    next_due_date                 TEXT NOT NULL,
    occurrences_generated         INTEGER NOT NULL DEFAULT 0,
    is_first_occurrence_generated INTEGER NOT NULL DEFAULT 0,
    is_installment                INTEGER NOT NULL DEFAULT 0,
    total_occurrences             INTEGER,
    is_active                     INTEGER NOT NULL DEFAULT 1,
    last_processed_at             TEXT,
    created_at                    TEXT NOT NULL,
    updated_at                    TEXT NOT NULL
);

-- The sweep query: active rules due at or before now.
CREATE INDEX IF NOT EXISTS idx_recurring_rules_due
    ON recurring_rules(is_active, next_due_date);

CREATE TABLE IF NOT EXISTS transactions (
    id                    TEXT PRIMARY KEY,
    user_id               TEXT NOT NULL REFERENCES users(id),
    account_id            TEXT NOT NULL REFERENCES accounts(id),
    category_id           TEXT NOT NULL REFERENCES categories(id),
    amount                REAL NOT NULL,
    description           TEXT NOT NULL DEFAULT '',
    notes                 TEXT,
    date                  TEXT NOT NULL,
    is_recurring_instance INTEGER NOT NULL DEFAULT 0,
    recurring_rule_id     TEXT REFERENCES recurring_rules(id),
    created_at            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_rule
    ON transactions(recurring_rule_id);
`
