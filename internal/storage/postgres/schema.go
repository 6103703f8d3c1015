package postgres

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	pool_address     TEXT PRIMARY KEY,
	seed             NUMERIC(20,0) NOT NULL,
	authority        TEXT,
	mint_x           TEXT NOT NULL,
	mint_y           TEXT NOT NULL,
	mint_lp          TEXT NOT NULL,
	fee_bps          INTEGER NOT NULL,
	precision_digits INTEGER NOT NULL,
	locked           BOOLEAN NOT NULL DEFAULT FALSE,
	balance_x        NUMERIC(20,0) NOT NULL,
	balance_y        NUMERIC(20,0) NOT NULL,
	total_shares     NUMERIC(20,0) NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pool_operations (
	id           BIGSERIAL PRIMARY KEY,
	pool_address TEXT NOT NULL REFERENCES pools (pool_address),
	kind         TEXT NOT NULL,
	actor        TEXT NOT NULL,
	asset_in     TEXT,
	amount_in    NUMERIC(20,0) NOT NULL DEFAULT 0,
	amount_out   NUMERIC(20,0) NOT NULL DEFAULT 0,
	fee          NUMERIC(20,0) NOT NULL DEFAULT 0,
	amount_x     NUMERIC(20,0) NOT NULL DEFAULT 0,
	amount_y     NUMERIC(20,0) NOT NULL DEFAULT 0,
	shares       NUMERIC(20,0) NOT NULL DEFAULT 0,
	balance_x    NUMERIC(20,0) NOT NULL,
	balance_y    NUMERIC(20,0) NOT NULL,
	total_shares NUMERIC(20,0) NOT NULL,
	ts           BIGINT NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS pool_operations_ts_idx ON pool_operations (ts, id);

CREATE TABLE IF NOT EXISTS pool_window_metrics (
	pool_address        TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts     TIMESTAMPTZ NOT NULL,
	window_end_ts       TIMESTAMPTZ NOT NULL,
	swap_count          BIGINT NOT NULL,
	deposit_count       BIGINT NOT NULL,
	withdraw_count      BIGINT NOT NULL,
	volume_x            NUMERIC NOT NULL,
	volume_y            NUMERIC NOT NULL,
	fee_x               NUMERIC NOT NULL,
	fee_y               NUMERIC NOT NULL,
	fee_rate_x          NUMERIC,
	fee_rate_y          NUMERIC,
	reserve_x           NUMERIC NOT NULL,
	reserve_y           NUMERIC NOT NULL,
	total_shares        NUMERIC NOT NULL,
	apr                 NUMERIC,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (pool_address, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS aggregator_state (
	name              TEXT PRIMARY KEY,
	last_processed_ts BIGINT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);
`
