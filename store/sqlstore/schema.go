package sqlstore

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS total_bottles (
	id TEXT PRIMARY KEY,
	total_bottles INTEGER NOT NULL CHECK (total_bottles >= 0),
	available_bottles INTEGER NOT NULL CHECK (available_bottles >= 0),
	used_bottles INTEGER NOT NULL CHECK (used_bottles >= 0),
	damaged_bottles INTEGER NOT NULL CHECK (damaged_bottles >= 0),
	deposit_bottles INTEGER NOT NULL CHECK (deposit_bottles >= 0),
	version INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS moderators (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE COLLATE NOCASE,
	phone TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	areas_json TEXT NOT NULL DEFAULT '[]',
	active INTEGER NOT NULL DEFAULT 1,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS admins (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS bottle_usage (
	id TEXT PRIMARY KEY,
	moderator_id TEXT NOT NULL,
	day TEXT NOT NULL,
	filled_bottles INTEGER NOT NULL DEFAULT 0,
	sales INTEGER NOT NULL DEFAULT 0,
	empty_bottles INTEGER NOT NULL DEFAULT 0,
	remaining_bottles INTEGER NOT NULL DEFAULT 0,
	damaged_bottles INTEGER NOT NULL DEFAULT 0,
	refilled_bottles INTEGER NOT NULL DEFAULT 0,
	caps INTEGER NOT NULL DEFAULT 0,
	empty_returned INTEGER NOT NULL DEFAULT 0,
	remaining_returned INTEGER NOT NULL DEFAULT 0,
	revenue TEXT NOT NULL DEFAULT '0',
	expense TEXT NOT NULL DEFAULT '0',
	done INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bottle_usage_moderator_day
	ON bottle_usage(moderator_id, day);
CREATE INDEX IF NOT EXISTS idx_bottle_usage_created_at
	ON bottle_usage(created_at);

CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	bottles INTEGER NOT NULL DEFAULT 0,
	balance TEXT NOT NULL DEFAULT '0',
	deposit INTEGER NOT NULL DEFAULT 0,
	bottle_price TEXT NOT NULL DEFAULT '0',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS deliveries (
	id TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL,
	moderator_id TEXT NOT NULL,
	day TEXT NOT NULL,
	filled_bottles INTEGER NOT NULL DEFAULT 0,
	empty_bottles INTEGER NOT NULL DEFAULT 0,
	damaged_bottles INTEGER NOT NULL DEFAULT 0,
	foc INTEGER NOT NULL DEFAULT 0,
	payment TEXT NOT NULL DEFAULT '0',
	note TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deliveries_moderator_day
	ON deliveries(moderator_id, day);
CREATE INDEX IF NOT EXISTS idx_deliveries_created_at
	ON deliveries(created_at);

CREATE TABLE IF NOT EXISTS misc_deliveries (
	id TEXT PRIMARY KEY,
	moderator_id TEXT NOT NULL,
	day TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	filled_bottles INTEGER NOT NULL DEFAULT 0,
	empty_bottles INTEGER NOT NULL DEFAULT 0,
	damaged_bottles INTEGER NOT NULL DEFAULT 0,
	foc INTEGER NOT NULL DEFAULT 0,
	payment TEXT NOT NULL DEFAULT '0',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_misc_moderator_day
	ON misc_deliveries(moderator_id, day);

CREATE TABLE IF NOT EXISTS other_expenses (
	id TEXT PRIMARY KEY,
	moderator_id TEXT NOT NULL,
	day TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	amount TEXT NOT NULL DEFAULT '0',
	refilled_bottles INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_expenses_moderator_day
	ON other_expenses(moderator_id, day)
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS total_bottles (
	id TEXT PRIMARY KEY,
	total_bottles BIGINT NOT NULL CHECK (total_bottles >= 0),
	available_bottles BIGINT NOT NULL CHECK (available_bottles >= 0),
	used_bottles BIGINT NOT NULL CHECK (used_bottles >= 0),
	damaged_bottles BIGINT NOT NULL CHECK (damaged_bottles >= 0),
	deposit_bottles BIGINT NOT NULL CHECK (deposit_bottles >= 0),
	version BIGINT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS moderators (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	areas_json TEXT NOT NULL DEFAULT '[]',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_moderators_name ON moderators(lower(name));

CREATE TABLE IF NOT EXISTS admins (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_admins_email ON admins(lower(email));

CREATE TABLE IF NOT EXISTS bottle_usage (
	id TEXT PRIMARY KEY,
	moderator_id TEXT NOT NULL,
	day TEXT NOT NULL,
	filled_bottles BIGINT NOT NULL DEFAULT 0,
	sales BIGINT NOT NULL DEFAULT 0,
	empty_bottles BIGINT NOT NULL DEFAULT 0,
	remaining_bottles BIGINT NOT NULL DEFAULT 0,
	damaged_bottles BIGINT NOT NULL DEFAULT 0,
	refilled_bottles BIGINT NOT NULL DEFAULT 0,
	caps BIGINT NOT NULL DEFAULT 0,
	empty_returned BIGINT NOT NULL DEFAULT 0,
	remaining_returned BIGINT NOT NULL DEFAULT 0,
	revenue NUMERIC(14,2) NOT NULL DEFAULT 0,
	expense NUMERIC(14,2) NOT NULL DEFAULT 0,
	done BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_bottle_usage_moderator_day
	ON bottle_usage(moderator_id, day);
CREATE INDEX IF NOT EXISTS idx_bottle_usage_created_at
	ON bottle_usage(created_at);

CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	bottles BIGINT NOT NULL DEFAULT 0,
	balance NUMERIC(14,2) NOT NULL DEFAULT 0,
	deposit BIGINT NOT NULL DEFAULT 0,
	bottle_price NUMERIC(14,2) NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS deliveries (
	id TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL,
	moderator_id TEXT NOT NULL,
	day TEXT NOT NULL,
	filled_bottles BIGINT NOT NULL DEFAULT 0,
	empty_bottles BIGINT NOT NULL DEFAULT 0,
	damaged_bottles BIGINT NOT NULL DEFAULT 0,
	foc BIGINT NOT NULL DEFAULT 0,
	payment NUMERIC(14,2) NOT NULL DEFAULT 0,
	note TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deliveries_moderator_day
	ON deliveries(moderator_id, day);
CREATE INDEX IF NOT EXISTS idx_deliveries_created_at
	ON deliveries(created_at);

CREATE TABLE IF NOT EXISTS misc_deliveries (
	id TEXT PRIMARY KEY,
	moderator_id TEXT NOT NULL,
	day TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	filled_bottles BIGINT NOT NULL DEFAULT 0,
	empty_bottles BIGINT NOT NULL DEFAULT 0,
	damaged_bottles BIGINT NOT NULL DEFAULT 0,
	foc BIGINT NOT NULL DEFAULT 0,
	payment NUMERIC(14,2) NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_misc_moderator_day
	ON misc_deliveries(moderator_id, day);

CREATE TABLE IF NOT EXISTS other_expenses (
	id TEXT PRIMARY KEY,
	moderator_id TEXT NOT NULL,
	day TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	amount NUMERIC(14,2) NOT NULL DEFAULT 0,
	refilled_bottles BIGINT NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_expenses_moderator_day
	ON other_expenses(moderator_id, day)
`
