package store

// Money columns hold decimal strings; month columns hold first-of-month
// YYYY-MM-DD; timestamps hold RFC 3339 UTC.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS loans (
    id                   TEXT PRIMARY KEY,
    user_id              TEXT NOT NULL,
    name                 TEXT NOT NULL DEFAULT '',
    principal            TEXT NOT NULL,
    remaining_balance    TEXT NOT NULL,
    annual_rate          TEXT NOT NULL,
    term_months          INTEGER NOT NULL,
    original_term_months INTEGER NOT NULL,
    start_month          TEXT NOT NULL,
    is_closed            INTEGER NOT NULL DEFAULT 0,
    closed_month         TEXT,
    created_at           TEXT NOT NULL,
    updated_at           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_settings (
    user_id                   TEXT PRIMARY KEY,
    monthly_overpayment_limit TEXT NOT NULL DEFAULT '0',
    reinvest_reduced_payments INTEGER NOT NULL DEFAULT 0,
    updated_at                TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS simulations (
    id                         TEXT PRIMARY KEY,
    user_id                    TEXT NOT NULL,
    strategy                   TEXT NOT NULL,
    goal                       TEXT NOT NULL,
    payment_reduction_target   TEXT,
    monthly_overpayment_limit  TEXT NOT NULL,
    reinvest_reduced_payments  INTEGER NOT NULL DEFAULT 0,
    status                     TEXT NOT NULL,
    is_active                  INTEGER NOT NULL DEFAULT 0,
    stale                      INTEGER NOT NULL DEFAULT 0,
    baseline_interest          TEXT NOT NULL DEFAULT '0',
    strategy_interest          TEXT NOT NULL DEFAULT '0',
    total_interest_saved       TEXT NOT NULL DEFAULT '0',
    baseline_months_to_payoff  INTEGER NOT NULL DEFAULT 0,
    projected_months_to_payoff INTEGER NOT NULL DEFAULT 0,
    projected_payoff_month     TEXT NOT NULL DEFAULT '',
    error_message              TEXT NOT NULL DEFAULT '',
    created_at                 TEXT NOT NULL,
    started_at                 TEXT,
    completed_at               TEXT,
    cancelled_at               TEXT
);

CREATE TABLE IF NOT EXISTS loan_snapshots (
    simulation_id         TEXT NOT NULL REFERENCES simulations(id) ON DELETE CASCADE,
    loan_id               TEXT NOT NULL,
    starting_balance      TEXT NOT NULL,
    starting_rate         TEXT NOT NULL,
    remaining_term_months INTEGER NOT NULL,
    starting_month        TEXT NOT NULL,
    original_principal    TEXT NOT NULL,
    standard_payment      TEXT NOT NULL,
    PRIMARY KEY (simulation_id, loan_id)
);

CREATE TABLE IF NOT EXISTS history_metrics (
    id                         TEXT PRIMARY KEY,
    simulation_id              TEXT NOT NULL UNIQUE REFERENCES simulations(id) ON DELETE CASCADE,
    user_id                    TEXT NOT NULL,
    strategy                   TEXT NOT NULL,
    monthly_overpayment_limit  TEXT NOT NULL,
    baseline_interest          TEXT NOT NULL,
    strategy_interest          TEXT NOT NULL,
    total_interest_saved       TEXT NOT NULL,
    baseline_months_to_payoff  INTEGER NOT NULL,
    projected_months_to_payoff INTEGER NOT NULL,
    projected_payoff_month     TEXT NOT NULL,
    captured_at                TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS monthly_execution_logs (
    id                    TEXT PRIMARY KEY,
    user_id               TEXT NOT NULL,
    loan_id               TEXT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
    simulation_id         TEXT NOT NULL DEFAULT '',
    month                 TEXT NOT NULL,
    payment_status        TEXT NOT NULL,
    overpayment_status    TEXT NOT NULL,
    scheduled_overpayment TEXT NOT NULL DEFAULT '0',
    actual_overpayment    TEXT NOT NULL DEFAULT '0',
    interest_portion      TEXT NOT NULL DEFAULT '0',
    principal_portion     TEXT NOT NULL DEFAULT '0',
    reason_code           TEXT NOT NULL DEFAULT '',
    created_at            TEXT NOT NULL,
    updated_at            TEXT NOT NULL,
    UNIQUE (loan_id, month)
);

CREATE INDEX IF NOT EXISTS idx_loans_user ON loans(user_id);
CREATE INDEX IF NOT EXISTS idx_simulations_user ON simulations(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_simulations_status ON simulations(status);
CREATE UNIQUE INDEX IF NOT EXISTS idx_simulations_one_active ON simulations(user_id) WHERE is_active = 1;
CREATE UNIQUE INDEX IF NOT EXISTS idx_simulations_one_running ON simulations(user_id) WHERE status = 'running';
CREATE INDEX IF NOT EXISTS idx_execution_logs_user_month ON monthly_execution_logs(user_id, month);
`
