package store

// schema is idempotent; Open executes it on every start.
const schema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	chat_id        INTEGER PRIMARY KEY,
	alerts_enabled INTEGER NOT NULL DEFAULT 1,
	created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS targets (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id              INTEGER NOT NULL REFERENCES subscriptions(chat_id) ON DELETE CASCADE,
	name                 TEXT    NOT NULL,
	sealed_locator       BLOB    NOT NULL,
	fingerprint          TEXT    NOT NULL,
	enabled              INTEGER NOT NULL DEFAULT 1,
	interval_seconds     INTEGER NOT NULL,
	last_checked_at      INTEGER NOT NULL DEFAULT 0,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	state                TEXT    NOT NULL DEFAULT 'UP',
	created_at           INTEGER NOT NULL,
	UNIQUE (chat_id, name)
);

CREATE TABLE IF NOT EXISTS bench_targets (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id        INTEGER NOT NULL REFERENCES subscriptions(chat_id) ON DELETE CASCADE,
	sealed_name    BLOB    NOT NULL,
	fingerprint    TEXT    NOT NULL,
	network        TEXT    NOT NULL DEFAULT 'mainnet',
	last_sample_at INTEGER NOT NULL DEFAULT 0,
	last_value     REAL    NOT NULL DEFAULT 0,
	created_at     INTEGER NOT NULL,
	UNIQUE (chat_id, fingerprint)
);

CREATE TABLE IF NOT EXISTS check_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	target_id   INTEGER NOT NULL,
	observed_at INTEGER NOT NULL,
	success     INTEGER NOT NULL,
	latency_ms  INTEGER NOT NULL DEFAULT 0,
	err_class   TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_history_target_time
	ON check_history (target_id, observed_at);

CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id    INTEGER NOT NULL,
	action     TEXT    NOT NULL,
	detail     TEXT    NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
`
